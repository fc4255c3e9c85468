package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ALT-F4-LLC/llm-unify/internal/db"
	"github.com/ALT-F4-LLC/llm-unify/internal/envelope"
	"github.com/ALT-F4-LLC/llm-unify/internal/model"
)

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return b
}

func mustOpenStore(t *testing.T) *db.Store {
	t.Helper()
	s, err := db.OpenStore(context.Background(), ":memory:", db.DefaultRegistry())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func messageIDs(c *model.Conversation) []string {
	ids := make([]string, len(c.Messages))
	for i, m := range c.Messages {
		ids[i] = m.ID
	}
	return ids
}

func assertSequenced(t *testing.T, c *model.Conversation) {
	t.Helper()
	for i, m := range c.Messages {
		assert.Equal(t, i, m.Seq, "message %s seq", m.ID)
		assert.Equal(t, c.ID, m.ConversationID, "message %s conversation", m.ID)
		assert.NotEmpty(t, m.ID)
	}
}

func TestParseClaude(t *testing.T) {
	convs, err := parseClaude(readFixture(t, "claude.json"))
	require.NoError(t, err)
	require.Len(t, convs, 3)

	c := convs[0]
	assert.Equal(t, "c1a00000-0000-4000-8000-000000000001", c.ID)
	assert.Equal(t, model.ProviderClaude, c.Provider)
	assert.Equal(t, "Indexing text in SQLite", c.Title)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), c.CreatedAt)
	assert.Equal(t, []string{"c1m1", "c1m2", "c1m3", "c1m4"}, messageIDs(c))
	assert.Equal(t, model.RoleUser, c.Messages[0].Role)
	assert.Equal(t, model.RoleAssistant, c.Messages[1].Role)
	assert.Equal(t, "Yes, bm25() is built in.", c.Messages[3].Content)

	total := 0
	for _, c := range convs {
		assertSequenced(t, c)
		total += len(c.Messages)
	}
	assert.Equal(t, 11, total)
}

func TestParseChatGPTFollowsCurrentBranch(t *testing.T) {
	convs, err := parseChatGPT(readFixture(t, "chatgpt.json"))
	require.NoError(t, err)
	require.Len(t, convs, 2)

	c := convs[0]
	assert.Equal(t, "g1000000-0000-4000-8000-000000000001", c.ID)
	assert.Equal(t, time.Unix(1709805600, 123456000).UTC(), c.CreatedAt)
	assert.Equal(t, []string{"m-1", "m-2", "m-3", "m-4", "m-5"}, messageIDs(c))
	assert.Equal(t, model.RoleTool, c.Messages[3].Role)
	assert.Equal(t, "sha256sum backup.db", c.Messages[3].Content)
	assertSequenced(t, c)
}

func TestParseChatGPTWithoutCurrentNode(t *testing.T) {
	data := readFixture(t, "chatgpt.json")
	first, err := parseChatGPT(data)
	require.NoError(t, err)
	second, err := parseChatGPT(data)
	require.NoError(t, err)

	c := first[1]
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, c.ID, second[1].ID, "derived ids must be stable across parses")
	assert.Equal(t, messageIDs(c), messageIDs(second[1]))
	require.Len(t, c.Messages, 2)
	assert.Equal(t, "Write a haiku", c.Messages[0].Content)
	assert.Equal(t, "A frog jumps into the pond\nsplash! Silence again.", c.Messages[1].Content)
	assertSequenced(t, c)
}

func TestParseGeminiSortsByTime(t *testing.T) {
	convs, err := parseGemini(readFixture(t, "gemini.json"))
	require.NoError(t, err)
	require.Len(t, convs, 1)

	c := convs[0]
	assert.Equal(t, []string{"gm1", "gm2"}, messageIDs(c))
	assert.Equal(t, model.RoleUser, c.Messages[0].Role)
	assert.Equal(t, model.RoleAssistant, c.Messages[1].Role)
	assert.Equal(t, c.Messages[1].CreatedAt, c.UpdatedAt)
	assertSequenced(t, c)
}

func TestParseCopilot(t *testing.T) {
	convs, err := parseCopilot(readFixture(t, "copilot.json"))
	require.NoError(t, err)
	require.Len(t, convs, 1)

	c := convs[0]
	assert.Equal(t, "Regex help", c.Title)
	assert.Equal(t, time.UnixMilli(1711958400000).UTC(), c.CreatedAt)
	require.Len(t, c.Messages, 2, "whitespace-only messages are dropped")
	assert.Equal(t, model.RoleAssistant, c.Messages[1].Role)
	assert.Equal(t, `\d{4}-\d{2}-\d{2}`, c.Messages[1].Content)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name   string
		parser Parser
		input  string
	}{
		{"invalid json", parseClaude, `[{"uuid": `},
		{"scalar root", parseClaude, `42`},
		{"missing messages", parseClaude, `[{"uuid": "x"}]`},
		{"entry not object", parseGemini, `{"conversations": ["x"]}`},
		{"unknown role", parseCopilot, `[{"id": "x", "messages": [{"author": "narrator", "text": "hi"}]}]`},
		{"bad timestamp", parseClaude, `[{"uuid": "x", "created_at": "yesterday", "chat_messages": []}]`},
		{"chatgpt without mapping", parseChatGPT, `[{"id": "x"}]`},
		{"native garbage", parseNative, `{"id": "x", "provider": "aol"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.parser([]byte(tt.input))
			assert.ErrorIs(t, err, ErrParse)
		})
	}
}

func TestParserFor(t *testing.T) {
	for _, src := range Sources() {
		p, err := ParserFor(src)
		require.NoError(t, err, src)
		assert.NotNil(t, p, src)
	}
	_, err := ParserFor("  ChatGPT ")
	assert.NoError(t, err)
	_, err = ParserFor("myspace")
	assert.Error(t, err)
}

func TestImportFixtureCountsAndIdempotence(t *testing.T) {
	ctx := context.Background()
	s := mustOpenStore(t)
	im := NewImporter(s)

	for range 2 {
		results, err := im.ImportFiles(ctx, "claude", []string{filepath.Join("testdata", "claude.json")})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, 3, results[0].Conversations)

		results, err = im.ImportFiles(ctx, "chatgpt", []string{filepath.Join("testdata", "chatgpt.json")})
		require.NoError(t, err)
		assert.Equal(t, 2, results[0].Conversations)

		st, err := s.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 5, st.Conversations)
		assert.Equal(t, 18, st.Messages)
	}
}

func TestImportBadFileDoesNotPersist(t *testing.T) {
	ctx := context.Background()
	s := mustOpenStore(t)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`[{"uuid": "partial", "chat_messages": [{"sender": "alien", "text": "x"}]}]`), 0o644))

	results, err := NewImporter(s).ImportFiles(ctx, "claude", []string{bad, filepath.Join("testdata", "claude.json")})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrParse)
	require.Len(t, results, 2)
	assert.Error(t, results[0].Err())
	assert.NotEmpty(t, results[0].Error)
	assert.NoError(t, results[1].Err())

	_, err = s.GetConversation(ctx, "partial")
	assert.ErrorIs(t, err, db.ErrNotFound)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, st.Conversations)
}

func TestImportMissingFile(t *testing.T) {
	s := mustOpenStore(t)

	results, err := NewImporter(s).ImportFiles(context.Background(), "gemini", []string{filepath.Join(t.TempDir(), "nope.json")})
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Error(t, results[0].Err())
}

func TestNativeRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := mustOpenStore(t)
	im := NewImporter(s)

	_, err := im.ImportFiles(ctx, "claude", []string{filepath.Join("testdata", "claude.json")})
	require.NoError(t, err)

	id := "c1a00000-0000-4000-8000-000000000001"
	orig, err := s.GetConversation(ctx, id)
	require.NoError(t, err)

	dir := t.TempDir()
	for _, mode := range []envelope.Mode{envelope.ModeRaw, envelope.ModeVersioned} {
		t.Run(mode.String(), func(t *testing.T) {
			out, err := envelope.Export(orig, mode, envelope.Options{SchemaVersion: 3})
			require.NoError(t, err)
			path := filepath.Join(dir, mode.String()+".json")
			require.NoError(t, os.WriteFile(path, out, 0o644))

			require.NoError(t, s.DeleteConversation(ctx, id))
			_, err = im.ImportFiles(ctx, SourceNative, []string{path})
			require.NoError(t, err)

			got, err := s.GetConversation(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, orig, got)
		})
	}
}

package search

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ALT-F4-LLC/llm-unify/internal/db"
	"github.com/ALT-F4-LLC/llm-unify/internal/model"
)

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"FTS5", `"fts5"`},
		{"  sqlite   search ", `"sqlite" AND "search"`},
		{"sqlite sqlite", `"sqlite"`},
		{`NEAR(a b) OR "c"`, `"near" AND "a" AND "b" AND "or" AND "c"`},
		{"migrat*", `"migrat"*`},
		{"Straße", `"straße"`},
		{"École", `"ecole"`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, _, err := BuildQuery(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildQueryRejectsEmpty(t *testing.T) {
	for _, in := range []string{"", "   ", "*** ,.;"} {
		_, _, err := BuildQuery(in)
		assert.ErrorIs(t, err, ErrEmptyQuery, "input %q", in)
	}
}

func TestHighlight(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		query string
		want  string
	}{
		{"single", "use FTS5 here", "fts5", "use <mark>FTS5</mark> here"},
		{"repeated", "go go gophers", "go", "<mark>go</mark> <mark>go</mark> gophers"},
		{"prefix", "gophers go", "goph*", "<mark>gophers</mark> go"},
		{"lowercase only", "STRASSE und Straße", "straße", "STRASSE und <mark>Straße</mark>"},
		{"diacritics", "une école, ÉCOLE", "ecole", "une <mark>école</mark>, <mark>ÉCOLE</mark>"},
		{"no match", "nothing here", "absent", "nothing here"},
		{"punctuation boundary", "(sqlite)!", "sqlite", "(<mark>sqlite</mark>)!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Highlight(tt.text, ParseTerms(tt.query)))
		})
	}
}

func TestMergeSpans(t *testing.T) {
	got := MergeSpans([]Span{{10, 12}, {0, 3}, {2, 5}, {5, 7}, {20, 25}, {21, 22}})
	assert.Equal(t, []Span{{0, 7}, {10, 12}, {20, 25}}, got)
	assert.Nil(t, MergeSpans(nil))
}

// assertWellFormed checks that markers alternate open/close and never nest.
func assertWellFormed(t *testing.T, s string) {
	t.Helper()
	open := false
	for len(s) > 0 {
		switch {
		case strings.HasPrefix(s, Open):
			require.False(t, open, "nested %s", Open)
			open = true
			s = s[len(Open):]
		case strings.HasPrefix(s, Close):
			require.True(t, open, "unbalanced %s", Close)
			open = false
			s = s[len(Close):]
		default:
			s = s[1:]
		}
	}
	require.False(t, open, "unterminated %s", Open)
}

func TestHighlightNeverOverlaps(t *testing.T) {
	texts := []string{
		"aaa aaa aaa",
		"go gopher golang go-go gogo",
		"FTS5 fts5 Fts5fts5",
		"ÉCOLE école Ecole",
		"",
	}
	queries := []string{"a*", "go go* gopher", "fts5 fts*", "école", "x"}
	for _, text := range texts {
		for _, q := range queries {
			terms := ParseTerms(q)
			out := Highlight(text, terms)
			assertWellFormed(t, out)
			stripped := strings.NewReplacer(Open, "", Close, "").Replace(out)
			assert.Equal(t, text, stripped)

			spans := FindSpans(text, terms)
			for i := 1; i < len(spans); i++ {
				assert.Greater(t, spans[i].Start, spans[i-1].End)
			}
		}
	}
}

func TestSnippetWindow(t *testing.T) {
	long := strings.Repeat("filler ", 40) + "the FTS5 index\nis here " + strings.Repeat("tail ", 40)

	got := Snippet(long, ParseTerms("fts5"), 20)
	assert.True(t, strings.HasPrefix(got, "…"))
	assert.True(t, strings.HasSuffix(got, "…"))
	assert.Contains(t, got, "<mark>FTS5</mark>")
	assert.NotContains(t, got, "\n")
	assertWellFormed(t, got)

	short := Snippet("just FTS5", ParseTerms("fts5"), 20)
	assert.Equal(t, "just <mark>FTS5</mark>", short)

	none := Snippet("abcdef", ParseTerms("zzz"), 2)
	assert.Equal(t, "abcd…", none)
}

func TestSnippetKeepsRunesWhole(t *testing.T) {
	text := strings.Repeat("日本語", 20) + " match " + strings.Repeat("日本語", 20)
	got := Snippet(text, ParseTerms("match"), 5)
	assert.True(t, strings.ToValidUTF8(got, "?") == got, "snippet split a rune: %q", got)
}

var fixtureTime = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

func fixtureConversation(id string, p model.Provider, created time.Time, contents ...string) *model.Conversation {
	c := &model.Conversation{ID: id, Provider: p, Title: "title " + id, CreatedAt: created, UpdatedAt: created}
	for i, content := range contents {
		c.Messages = append(c.Messages, model.Message{
			ID: fmt.Sprintf("%s-%d", id, i), ConversationID: id,
			Role: model.RoleUser, Content: content, CreatedAt: created, Seq: i,
		})
	}
	return c
}

// fixtureStore holds 3 claude and 2 chatgpt conversations with 18 messages;
// only claude-2 mentions FTS5.
func fixtureStore(t *testing.T) *db.Store {
	t.Helper()
	ctx := context.Background()
	s, err := db.OpenStore(ctx, ":memory:", db.DefaultRegistry())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	convs := []*model.Conversation{
		fixtureConversation("claude-0", model.ProviderClaude, fixtureTime,
			"how do I index text in sqlite", "use a virtual table", "thanks", "welcome"),
		fixtureConversation("claude-1", model.ProviderClaude, fixtureTime.Add(time.Hour),
			"sqlite search ranking", "bm25 is the default", "ok"),
		fixtureConversation("claude-2", model.ProviderClaude, fixtureTime.Add(2*time.Hour),
			"which sqlite extension?", "FTS5 with external content", "and triggers", "yes"),
		fixtureConversation("chatgpt-0", model.ProviderChatGPT, fixtureTime.Add(3*time.Hour),
			"sqlite or postgres", "depends", "on scale", "and search"),
		fixtureConversation("chatgpt-1", model.ProviderChatGPT, fixtureTime.Add(4*time.Hour),
			"write a haiku", "an old silent pond", "a frog jumps in"),
	}
	require.NoError(t, s.UpsertConversations(ctx, convs))

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 5, st.Conversations)
	require.Equal(t, 18, st.Messages)
	return s
}

func TestSearchFindsOnlyFTS5Conversation(t *testing.T) {
	e := New(fixtureStore(t))

	results, err := e.Search(context.Background(), "FTS5", Filters{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "claude-2", results[0].ConversationID)
	assert.Equal(t, "claude-2-1", results[0].MessageID)
	assert.Equal(t, "<mark>FTS5</mark> with external content", results[0].Snippet)
	assert.Greater(t, results[0].Score, 0.0)
}

func TestSearchOrdersByScoreThenRecency(t *testing.T) {
	e := New(fixtureStore(t))

	results, err := e.Search(context.Background(), "sqlite", Filters{})
	require.NoError(t, err)
	require.Len(t, results, 4)
	for i := 1; i < len(results); i++ {
		prev, cur := results[i-1], results[i]
		assert.GreaterOrEqual(t, prev.Score, cur.Score)
		if prev.Score == cur.Score {
			assert.False(t, prev.CreatedAt.Before(cur.CreatedAt), "tie not broken by recency")
		}
	}
}

func TestSearchFiltersAndLimit(t *testing.T) {
	ctx := context.Background()
	e := New(fixtureStore(t))

	results, err := e.Search(ctx, "sqlite", Filters{Provider: model.ProviderChatGPT})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "chatgpt-0", results[0].ConversationID)

	results, err = e.Search(ctx, "sqlite", Filters{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, results, 2)

	// Every term must appear in the same message.
	results, err = e.Search(ctx, "sqlite search", Filters{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "claude-1", results[0].ConversationID)

	_, err = e.Search(ctx, "sqlite", Filters{Provider: "aol"})
	assert.Error(t, err)
	_, err = e.Search(ctx, "sqlite", Filters{Limit: -1})
	assert.Error(t, err)
	_, err = e.Search(ctx, "  ", Filters{})
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestSearchMatchesIndexTokenizer(t *testing.T) {
	ctx := context.Background()
	s := fixtureStore(t)
	require.NoError(t, s.UpsertConversations(ctx, []*model.Conversation{
		fixtureConversation("de", model.ProviderGemini, fixtureTime, "Die Straße ist lang"),
		fixtureConversation("fr", model.ProviderGemini, fixtureTime, "une école primaire"),
	}))
	e := New(s)

	results, err := e.Search(ctx, "Straße", Filters{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "de", results[0].ConversationID)
	assert.Equal(t, "Die <mark>Straße</mark> ist lang", results[0].Snippet)

	results, err = e.Search(ctx, "ecole", Filters{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "fr", results[0].ConversationID)
	assert.Equal(t, "une <mark>école</mark> primaire", results[0].Snippet)
}

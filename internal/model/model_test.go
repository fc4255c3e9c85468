package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestParseProvider(t *testing.T) {
	tests := []struct {
		input   string
		want    Provider
		wantErr bool
	}{
		{"chatgpt", ProviderChatGPT, false},
		{"ChatGPT", ProviderChatGPT, false},
		{" claude ", ProviderClaude, false},
		{"GEMINI", ProviderGemini, false},
		{"copilot", ProviderCopilot, false},
		{"", "", true},
		{"bard", "", true},
	}

	for _, tt := range tests {
		got, err := ParseProvider(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseProvider(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseProvider(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestProvidersReturnsCopy(t *testing.T) {
	ps := Providers()
	ps[0] = "mutated"
	if Providers()[0] != ProviderChatGPT {
		t.Error("Providers() exposed internal slice")
	}
}

func TestProviderDisplayName(t *testing.T) {
	if got := ProviderChatGPT.DisplayName(); got != "ChatGPT" {
		t.Errorf("DisplayName() = %q, want %q", got, "ChatGPT")
	}
	if got := Provider("other").DisplayName(); got != "other" {
		t.Errorf("DisplayName() = %q, want %q", got, "other")
	}
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		input   string
		want    Role
		wantErr bool
	}{
		{"user", RoleUser, false},
		{"Human", RoleUser, false},
		{"assistant", RoleAssistant, false},
		{"model", RoleAssistant, false},
		{"bot", RoleAssistant, false},
		{"system", RoleSystem, false},
		{"tool", RoleTool, false},
		{"function", RoleTool, false},
		{"narrator", "", true},
	}

	for _, tt := range tests {
		got, err := ParseRole(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseRole(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseRole(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func sampleConversation() Conversation {
	created := time.Date(2025, 3, 14, 9, 26, 53, 589000000, time.UTC)
	return Conversation{
		ID:        "conv-1",
		Provider:  ProviderClaude,
		Title:     "Indexing with FTS5",
		CreatedAt: created,
		UpdatedAt: created.Add(time.Hour),
		Messages: []Message{
			{ID: "m1", ConversationID: "conv-1", Role: RoleUser, Content: "How does bm25 work?", CreatedAt: created, Seq: 0},
			{ID: "m2", ConversationID: "conv-1", Role: RoleAssistant, Content: "It scores <terms> & docs.", CreatedAt: created.Add(time.Minute), Seq: 1},
		},
	}
}

func TestConversationJSONRoundTrip(t *testing.T) {
	orig := sampleConversation()

	data, err := json.Marshal(orig)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got Conversation
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if got.ID != orig.ID || got.Provider != orig.Provider || got.Title != orig.Title {
		t.Errorf("header mismatch: got %+v", got)
	}
	if !got.CreatedAt.Equal(orig.CreatedAt) || !got.UpdatedAt.Equal(orig.UpdatedAt) {
		t.Errorf("timestamps mismatch: got %v/%v", got.CreatedAt, got.UpdatedAt)
	}
	if len(got.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(got.Messages))
	}
	for i, m := range got.Messages {
		want := orig.Messages[i]
		if m.ID != want.ID || m.Role != want.Role || m.Content != want.Content || m.Seq != want.Seq {
			t.Errorf("message %d = %+v, want %+v", i, m, want)
		}
		if m.ConversationID != orig.ID {
			t.Errorf("message %d conversation id = %q, want %q", i, m.ConversationID, orig.ID)
		}
		if !m.CreatedAt.Equal(want.CreatedAt) {
			t.Errorf("message %d created_at = %v, want %v", i, m.CreatedAt, want.CreatedAt)
		}
	}
}

func TestConversationJSONOmitsNestedConversationID(t *testing.T) {
	data, err := json.Marshal(sampleConversation())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(data), "conversation_id") {
		t.Errorf("expected no conversation_id in nested messages, got %s", data)
	}
}

func TestConversationUnmarshalRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"missing id":   `{"provider":"claude","title":"x","created_at":"","updated_at":"","messages":[]}`,
		"bad provider": `{"id":"a","provider":"bard","title":"x","created_at":"","updated_at":"","messages":[]}`,
		"bad role":     `{"id":"a","provider":"claude","messages":[{"id":"m","role":"narrator","content":"","created_at":"","seq":0}]}`,
		"bad time":     `{"id":"a","provider":"claude","created_at":"yesterday","messages":[]}`,
	}

	for name, input := range cases {
		var c Conversation
		if err := json.Unmarshal([]byte(input), &c); err == nil {
			t.Errorf("%s: expected error, got nil", name)
		}
	}
}

func TestTitleOrUntitled(t *testing.T) {
	if got := (Conversation{}).TitleOrUntitled(); got != "(untitled)" {
		t.Errorf("TitleOrUntitled() = %q, want %q", got, "(untitled)")
	}
	if got := (Conversation{Title: "hi"}).TitleOrUntitled(); got != "hi" {
		t.Errorf("TitleOrUntitled() = %q, want %q", got, "hi")
	}
}

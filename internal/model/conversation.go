package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Conversation is a normalized transcript from a single provider. Messages are
// kept in creation order; Seq on each message is strictly increasing.
type Conversation struct {
	ID        string
	Provider  Provider
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
	Messages  []Message
}

// Message is one turn of a conversation.
type Message struct {
	ID             string
	ConversationID string
	Role           Role
	Content        string
	CreatedAt      time.Time
	Seq            int
}

// MessageCount returns the number of messages in the conversation.
func (c Conversation) MessageCount() int {
	return len(c.Messages)
}

// TitleOrUntitled returns the title, falling back to "(untitled)".
func (c Conversation) TitleOrUntitled() string {
	if c.Title == "" {
		return "(untitled)"
	}
	return c.Title
}

// conversationJSON is the raw wire format for Conversation.
type conversationJSON struct {
	ID        string        `json:"id"`
	Provider  string        `json:"provider"`
	Title     string        `json:"title"`
	CreatedAt string        `json:"created_at"`
	UpdatedAt string        `json:"updated_at"`
	Messages  []messageJSON `json:"messages"`
}

// messageJSON is the wire format for a message nested in a conversation.
// The conversation id is implied by the enclosing object.
type messageJSON struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
	Seq       int    `json:"seq"`
}

// MarshalJSON implements custom JSON serialization for Conversation.
func (c Conversation) MarshalJSON() ([]byte, error) {
	j := conversationJSON{
		ID:        c.ID,
		Provider:  string(c.Provider),
		Title:     c.Title,
		CreatedAt: formatTime(c.CreatedAt),
		UpdatedAt: formatTime(c.UpdatedAt),
		Messages:  make([]messageJSON, len(c.Messages)),
	}
	for i, m := range c.Messages {
		j.Messages[i] = messageJSON{
			ID:        m.ID,
			Role:      string(m.Role),
			Content:   m.Content,
			CreatedAt: formatTime(m.CreatedAt),
			Seq:       m.Seq,
		}
	}
	return json.Marshal(j)
}

// UnmarshalJSON implements custom JSON deserialization for Conversation.
func (c *Conversation) UnmarshalJSON(data []byte) error {
	var j conversationJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	if j.ID == "" {
		return fmt.Errorf("conversation id is required")
	}

	c.ID = j.ID
	c.Provider = Provider(j.Provider)
	if err := ValidateProvider(c.Provider); err != nil {
		return err
	}
	c.Title = j.Title

	var err error
	if c.CreatedAt, err = parseTime(j.CreatedAt); err != nil {
		return fmt.Errorf("parsing created_at: %w", err)
	}
	if c.UpdatedAt, err = parseTime(j.UpdatedAt); err != nil {
		return fmt.Errorf("parsing updated_at: %w", err)
	}

	c.Messages = make([]Message, len(j.Messages))
	for i, mj := range j.Messages {
		m := Message{
			ID:             mj.ID,
			ConversationID: c.ID,
			Role:           Role(mj.Role),
			Content:        mj.Content,
			Seq:            mj.Seq,
		}
		if err := ValidateRole(m.Role); err != nil {
			return fmt.Errorf("message %d: %w", i, err)
		}
		if m.CreatedAt, err = parseTime(mj.CreatedAt); err != nil {
			return fmt.Errorf("message %d: parsing created_at: %w", i, err)
		}
		c.Messages[i] = m
	}

	return nil
}

// ConversationSummary is the listing view of a conversation without its messages.
type ConversationSummary struct {
	ID           string    `json:"id"`
	Provider     Provider  `json:"provider"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

// SchemaVersion is one applied migration as recorded in the store.
type SchemaVersion struct {
	Version     int       `json:"version"`
	Description string    `json:"description"`
	AppliedAt   time.Time `json:"applied_at"`
}

// ProviderCount is the per-provider breakdown row of Stats.
type ProviderCount struct {
	Provider      Provider `json:"provider"`
	Conversations int      `json:"conversations"`
	Messages      int      `json:"messages"`
}

// Stats summarizes the contents of the store.
type Stats struct {
	Conversations int             `json:"conversations"`
	Messages      int             `json:"messages"`
	ByProvider    []ProviderCount `json:"by_provider"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

package ingest

import (
	"slices"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/ALT-F4-LLC/llm-unify/internal/envelope"
	"github.com/ALT-F4-LLC/llm-unify/internal/model"
)

// flatFormat describes exports that list messages as an array inside each
// conversation. Each field holds candidate gjson paths, tried in order.
type flatFormat struct {
	provider     model.Provider
	rootKeys     []string
	id           []string
	title        []string
	created      []string
	updated      []string
	messages     string
	messageID    []string
	role         []string
	content      []string
	messageTime  []string
	sortMessages bool
}

var claudeFormat = flatFormat{
	provider:    model.ProviderClaude,
	rootKeys:    []string{"conversations"},
	id:          []string{"uuid", "id"},
	title:       []string{"name", "title"},
	created:     []string{"created_at"},
	updated:     []string{"updated_at"},
	messages:    "chat_messages",
	messageID:   []string{"uuid", "id"},
	role:        []string{"sender", "role"},
	content:     []string{"text", "content"},
	messageTime: []string{"created_at"},
}

var geminiFormat = flatFormat{
	provider:     model.ProviderGemini,
	rootKeys:     []string{"conversations"},
	id:           []string{"id", "conversation_id"},
	title:        []string{"title", "name"},
	created:      []string{"create_time", "created_at"},
	updated:      []string{"update_time", "updated_at"},
	messages:     "messages",
	messageID:    []string{"id"},
	role:         []string{"author", "role"},
	content:      []string{"content", "text", "parts"},
	messageTime:  []string{"create_time", "timestamp", "created_at"},
	sortMessages: true,
}

var copilotFormat = flatFormat{
	provider:     model.ProviderCopilot,
	rootKeys:     []string{"conversations"},
	id:           []string{"id", "conversationId"},
	title:        []string{"title", "displayName"},
	created:      []string{"createdAt", "created_at"},
	updated:      []string{"updatedAt", "updated_at"},
	messages:     "messages",
	messageID:    []string{"id", "messageId"},
	role:         []string{"author", "role"},
	content:      []string{"text", "content"},
	messageTime:  []string{"createdAt", "timestamp"},
	sortMessages: true,
}

func parseClaude(data []byte) ([]*model.Conversation, error)  { return claudeFormat.parse(data) }
func parseGemini(data []byte) ([]*model.Conversation, error)  { return geminiFormat.parse(data) }
func parseCopilot(data []byte) ([]*model.Conversation, error) { return copilotFormat.parse(data) }

func (f flatFormat) parse(data []byte) ([]*model.Conversation, error) {
	items, err := rootItems(data, f.rootKeys...)
	if err != nil {
		return nil, err
	}

	convs := make([]*model.Conversation, 0, len(items))
	for i, item := range items {
		if !item.IsObject() {
			return nil, parseFailure("conversation %d is not an object", i)
		}
		msgs := item.Get(f.messages)
		if !msgs.IsArray() {
			return nil, parseFailure("conversation %d has no %q array", i, f.messages)
		}

		c := &model.Conversation{
			ID:       firstString(item, f.id...),
			Provider: f.provider,
			Title:    firstString(item, f.title...),
		}
		if c.CreatedAt, err = timeField(item, f.created...); err != nil {
			return nil, err
		}
		if c.UpdatedAt, err = timeField(item, f.updated...); err != nil {
			return nil, err
		}

		for j, m := range msgs.Array() {
			if !m.IsObject() {
				return nil, parseFailure("conversation %d message %d is not an object", i, j)
			}
			content := f.contentOf(m)
			if strings.TrimSpace(content) == "" {
				continue
			}
			role, err := model.ParseRole(firstString(m, f.role...))
			if err != nil {
				return nil, parseFailure("conversation %d message %d: %v", i, j, err)
			}
			created, err := timeField(m, f.messageTime...)
			if err != nil {
				return nil, err
			}
			c.Messages = append(c.Messages, model.Message{
				ID:        firstString(m, f.messageID...),
				Role:      role,
				Content:   content,
				CreatedAt: created,
			})
		}
		if f.sortMessages {
			sortByTime(c.Messages)
		}

		finish(c)
		convs = append(convs, c)
	}
	return convs, nil
}

func (f flatFormat) contentOf(m gjson.Result) string {
	for _, p := range f.content {
		if v := m.Get(p); v.Exists() {
			if s := textOf(v); s != "" {
				return s
			}
		}
	}
	return ""
}

// parseChatGPT reads conversations.json from a ChatGPT data export. Messages
// live in a tree under "mapping"; the active branch is the path from
// current_node back to the root.
func parseChatGPT(data []byte) ([]*model.Conversation, error) {
	items, err := rootItems(data, "conversations")
	if err != nil {
		return nil, err
	}

	convs := make([]*model.Conversation, 0, len(items))
	for i, item := range items {
		if !item.IsObject() {
			return nil, parseFailure("conversation %d is not an object", i)
		}
		mapping := item.Get("mapping")
		if !mapping.IsObject() {
			return nil, parseFailure("conversation %d has no mapping object", i)
		}

		c := &model.Conversation{
			ID:       firstString(item, "conversation_id", "id"),
			Provider: model.ProviderChatGPT,
			Title:    item.Get("title").String(),
		}
		if c.CreatedAt, err = timeField(item, "create_time"); err != nil {
			return nil, err
		}
		if c.UpdatedAt, err = timeField(item, "update_time"); err != nil {
			return nil, err
		}

		nodes := mapping.Map()
		for _, nodeID := range chatGPTOrder(nodes, item.Get("current_node").String()) {
			msg := nodes[nodeID].Get("message")
			if !msg.IsObject() {
				continue
			}
			content := textOf(msg.Get("content.parts"))
			if content == "" {
				content = msg.Get("content.text").String()
			}
			if strings.TrimSpace(content) == "" {
				continue
			}
			role, err := model.ParseRole(msg.Get("author.role").String())
			if err != nil {
				return nil, parseFailure("conversation %d node %s: %v", i, nodeID, err)
			}
			created, err := timeField(msg, "create_time")
			if err != nil {
				return nil, err
			}
			c.Messages = append(c.Messages, model.Message{
				ID:        firstString(msg, "id"),
				Role:      role,
				Content:   content,
				CreatedAt: created,
			})
		}

		finish(c)
		convs = append(convs, c)
	}
	return convs, nil
}

// chatGPTOrder returns node ids root first. Without a usable current node,
// every node is returned ordered by message time, then id.
func chatGPTOrder(nodes map[string]gjson.Result, current string) []string {
	if _, ok := nodes[current]; ok {
		var path []string
		seen := make(map[string]bool)
		for id := current; id != "" && !seen[id]; id = nodes[id].Get("parent").String() {
			if _, ok := nodes[id]; !ok {
				break
			}
			seen[id] = true
			path = append(path, id)
		}
		slices.Reverse(path)
		return path
	}

	ids := make([]string, 0, len(nodes))
	for id := range nodes {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b string) int {
		ta := nodes[a].Get("message.create_time").Float()
		tb := nodes[b].Get("message.create_time").Float()
		switch {
		case ta < tb:
			return -1
		case ta > tb:
			return 1
		}
		return strings.Compare(a, b)
	})
	return ids
}

// parseNative reads files written by the export command, versioned or raw.
func parseNative(data []byte) ([]*model.Conversation, error) {
	convs, err := envelope.Conversations(data)
	if err != nil {
		return nil, &ParseError{Reason: "invalid llm-unify export", Err: err}
	}
	for i, c := range convs {
		if c == nil || c.ID == "" {
			return nil, parseFailure("conversation %d has no id", i)
		}
	}
	return convs, nil
}

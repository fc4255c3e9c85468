package db

import (
	"context"
	"fmt"
	"time"

	"github.com/ALT-F4-LLC/llm-unify/internal/model"
)

// MessageMatch is the best-ranked matching message of one conversation.
// Rank is the raw bm25 value; lower is more relevant.
type MessageMatch struct {
	ConversationID string
	Provider       model.Provider
	Title          string
	CreatedAt      time.Time
	MessageID      string
	Role           model.Role
	Content        string
	Rank           float64
}

// MatchOptions narrows a full-text match.
type MatchOptions struct {
	Provider model.Provider // empty = all providers
	Limit    int            // required, > 0
}

// MatchMessages runs an FTS5 MATCH expression and returns at most one hit per
// conversation, ordered by bm25 rank then conversation created_at DESC. The
// limit is applied by SQLite.
func (s *Store) MatchMessages(ctx context.Context, expr string, opts MatchOptions) ([]MessageMatch, error) {
	if opts.Limit <= 0 {
		return nil, fmt.Errorf("match limit must be positive, got %d", opts.Limit)
	}

	providerFilter := ""
	args := []any{expr}
	if opts.Provider != "" {
		providerFilter = "AND m.conversation_id IN (SELECT id FROM conversations WHERE provider = ?)"
		args = append(args, string(opts.Provider))
	}
	args = append(args, opts.Limit)

	query := fmt.Sprintf(`
WITH hits AS (
	SELECT m.row_id, m.id AS message_id, m.conversation_id, m.role, m.content,
		bm25(messages_fts) AS rank
	FROM messages_fts
	JOIN messages m ON m.row_id = messages_fts.rowid
	WHERE messages_fts MATCH ? %s
), best AS (
	SELECT hits.*,
		ROW_NUMBER() OVER (PARTITION BY conversation_id ORDER BY rank, row_id) AS rn
	FROM hits
)
SELECT b.conversation_id, c.provider, c.title, c.created_at,
	b.message_id, b.role, b.content, b.rank
FROM best b
JOIN conversations c ON c.id = b.conversation_id
WHERE b.rn = 1
ORDER BY b.rank, c.created_at DESC, c.id
LIMIT ?`, providerFilter)

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("matching messages: %w", err)
	}
	defer rows.Close()

	matches := make([]MessageMatch, 0)
	for rows.Next() {
		var mm MessageMatch
		var provider, role, createdAt string
		if err := rows.Scan(
			&mm.ConversationID, &provider, &mm.Title, &createdAt,
			&mm.MessageID, &role, &mm.Content, &mm.Rank,
		); err != nil {
			return nil, fmt.Errorf("scanning match: %w", err)
		}
		mm.Provider = model.Provider(provider)
		mm.Role = model.Role(role)
		if mm.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		matches = append(matches, mm)
	}
	return matches, rows.Err()
}

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/ALT-F4-LLC/llm-unify/internal/model"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// listPageSize is how many summaries ListConversations fetches per query.
const listPageSize = 100

// ListOptions holds filtering and limit options for ListConversations.
type ListOptions struct {
	Provider model.Provider // empty = all providers
	Title    string         // case-insensitive title substring
	Limit    int            // 0 = no limit
}

// UpsertConversation writes a conversation and replaces its messages in a
// single transaction.
func (s *Store) UpsertConversation(ctx context.Context, c *model.Conversation) error {
	return s.UpsertConversations(ctx, []*model.Conversation{c})
}

// UpsertConversations writes every conversation in one transaction. Either
// all of them are visible afterwards or none are.
func (s *Store) UpsertConversations(ctx context.Context, convs []*model.Conversation) error {
	for _, c := range convs {
		if err := checkConversation(c); err != nil {
			return err
		}
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return &StoreError{Op: "beginning transaction", Err: err}
	}
	defer tx.Rollback()

	for _, c := range convs {
		if err := upsertConversationTx(ctx, tx, c); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return &StoreError{Op: "committing conversations", Err: err}
	}
	return nil
}

func checkConversation(c *model.Conversation) error {
	if c.ID == "" {
		return fmt.Errorf("conversation id must not be empty")
	}
	if err := model.ValidateProvider(c.Provider); err != nil {
		return fmt.Errorf("conversation %s: %w", c.ID, err)
	}
	for i, m := range c.Messages {
		if m.ID == "" {
			return fmt.Errorf("conversation %s: message %d has no id", c.ID, i)
		}
		if err := model.ValidateRole(m.Role); err != nil {
			return fmt.Errorf("conversation %s: message %s: %w", c.ID, m.ID, err)
		}
		if i > 0 && m.Seq <= c.Messages[i-1].Seq {
			return fmt.Errorf("conversation %s: message %s: seq %d does not follow %d", c.ID, m.ID, m.Seq, c.Messages[i-1].Seq)
		}
	}
	return nil
}

func upsertConversationTx(ctx context.Context, tx *sql.Tx, c *model.Conversation) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO conversations (id, provider, title, created_at, updated_at, message_count)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			provider = excluded.provider,
			title = excluded.title,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			message_count = excluded.message_count`,
		c.ID, string(c.Provider), c.Title,
		formatTime(c.CreatedAt), formatTime(c.UpdatedAt), len(c.Messages),
	)
	if err != nil {
		return &StoreError{Op: fmt.Sprintf("upserting conversation %s", c.ID), Err: err}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?`, c.ID); err != nil {
		return &StoreError{Op: fmt.Sprintf("clearing messages of %s", c.ID), Err: err}
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO messages (id, conversation_id, seq, role, content, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return &StoreError{Op: "preparing message insert", Err: err}
	}
	defer stmt.Close()

	for _, m := range c.Messages {
		if _, err := stmt.ExecContext(ctx,
			m.ID, c.ID, m.Seq, string(m.Role), m.Content, formatTime(m.CreatedAt),
		); err != nil {
			return &StoreError{Op: fmt.Sprintf("inserting message %s of %s", m.ID, c.ID), Err: err}
		}
	}

	return nil
}

// GetConversation returns a conversation with its messages in seq order, or
// ErrNotFound.
func (s *Store) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT id, provider, title, created_at, updated_at, message_count
		 FROM conversations WHERE id = ?`, id,
	)
	summary, err := scanSummaryFrom(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning conversation: %w", err)
	}

	c := &model.Conversation{
		ID:        summary.ID,
		Provider:  summary.Provider,
		Title:     summary.Title,
		CreatedAt: summary.CreatedAt,
		UpdatedAt: summary.UpdatedAt,
	}

	c.Messages, err = s.conversationMessages(ctx, id)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Store) conversationMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, conversation_id, seq, role, content, created_at
		 FROM messages WHERE conversation_id = ? ORDER BY seq`, conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	messages := make([]model.Message, 0)
	for rows.Next() {
		m, err := scanMessageFrom(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// ListConversations yields summaries newest first (created_at DESC, id DESC).
// Rows are fetched a page at a time, so stopping early never reads the
// whole table.
func (s *Store) ListConversations(ctx context.Context, opts ListOptions) iter.Seq2[model.ConversationSummary, error] {
	return func(yield func(model.ConversationSummary, error) bool) {
		var after *model.ConversationSummary
		emitted := 0

		for {
			size := listPageSize
			if opts.Limit > 0 && opts.Limit-emitted < size {
				size = opts.Limit - emitted
			}

			page, err := s.listPage(ctx, opts, after, size)
			if err != nil {
				yield(model.ConversationSummary{}, err)
				return
			}

			for _, cs := range page {
				if !yield(cs, nil) {
					return
				}
				emitted++
			}

			if len(page) < size || (opts.Limit > 0 && emitted >= opts.Limit) {
				return
			}
			last := page[len(page)-1]
			after = &last
		}
	}
}

func (s *Store) listPage(ctx context.Context, opts ListOptions, after *model.ConversationSummary, size int) ([]model.ConversationSummary, error) {
	query := `SELECT id, provider, title, created_at, updated_at, message_count FROM conversations`
	var where []string
	var args []any

	if opts.Provider != "" {
		where = append(where, "provider = ?")
		args = append(args, string(opts.Provider))
	}
	if opts.Title != "" {
		where = append(where, `title LIKE ? ESCAPE '\'`)
		args = append(args, "%"+likeEscaper.Replace(opts.Title)+"%")
	}
	if after != nil {
		ts := formatTime(after.CreatedAt)
		where = append(where, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, ts, ts, after.ID)
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, size)

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	defer rows.Close()

	page := make([]model.ConversationSummary, 0, size)
	for rows.Next() {
		cs, err := scanSummaryFrom(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning conversation row: %w", err)
		}
		page = append(page, cs)
	}
	return page, rows.Err()
}

// DeleteConversation removes a conversation and its messages in one
// transaction. It returns ErrNotFound if the id is unknown.
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return &StoreError{Op: "beginning transaction", Err: err}
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?`, id); err != nil {
		return &StoreError{Op: fmt.Sprintf("deleting messages of %s", id), Err: err}
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return &StoreError{Op: fmt.Sprintf("deleting conversation %s", id), Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &StoreError{Op: "checking rows affected", Err: err}
	}
	if n == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return &StoreError{Op: "committing delete", Err: err}
	}
	return nil
}

// --- helpers ---

func scanSummaryFrom(s scanner) (model.ConversationSummary, error) {
	var cs model.ConversationSummary
	var provider, createdAt, updatedAt string

	if err := s.Scan(&cs.ID, &provider, &cs.Title, &createdAt, &updatedAt, &cs.MessageCount); err != nil {
		return cs, err
	}
	cs.Provider = model.Provider(provider)

	var err error
	if cs.CreatedAt, err = parseTime(createdAt); err != nil {
		return cs, fmt.Errorf("parsing created_at: %w", err)
	}
	if cs.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return cs, fmt.Errorf("parsing updated_at: %w", err)
	}
	return cs, nil
}

func scanMessageFrom(s scanner) (model.Message, error) {
	var m model.Message
	var role, createdAt string

	if err := s.Scan(&m.ID, &m.ConversationID, &m.Seq, &role, &m.Content, &createdAt); err != nil {
		return m, err
	}
	m.Role = model.Role(role)

	t, err := parseTime(createdAt)
	if err != nil {
		return m, fmt.Errorf("parsing created_at: %w", err)
	}
	m.CreatedAt = t
	return m, nil
}

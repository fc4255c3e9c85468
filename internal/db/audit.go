package db

import (
	"context"
	"fmt"
	"strings"
)

// OrphanMessage is a message whose conversation row does not exist.
type OrphanMessage struct {
	MessageID      string
	ConversationID string
}

// CountMismatch is a conversation whose stored message_count disagrees with
// the number of message rows that reference it.
type CountMismatch struct {
	ConversationID string
	Stored         int
	Actual         int
}

// DuplicateSeq is a (conversation, seq) pair held by more than one message.
type DuplicateSeq struct {
	ConversationID string
	Seq            int
	Count          int
}

// IntegrityCheck runs SQLite's integrity check plus the full-text index
// self-check and returns every problem found. An empty result means the file
// is structurally sound.
func (s *Store) IntegrityCheck(ctx context.Context) ([]string, error) {
	rows, err := s.conn.QueryContext(ctx, `PRAGMA integrity_check`)
	if err != nil {
		return nil, fmt.Errorf("running integrity_check: %w", err)
	}
	defer rows.Close()

	var problems []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, fmt.Errorf("scanning integrity_check: %w", err)
		}
		if line != "ok" {
			problems = append(problems, line)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	hasFTS, err := s.hasTable(ctx, "messages_fts")
	if err != nil {
		return nil, err
	}
	if hasFTS {
		msg, err := s.ftsIntegrityCheck(ctx)
		if err != nil {
			return nil, err
		}
		if msg != "" {
			problems = append(problems, "full-text index: "+msg)
		}
	}

	return problems, nil
}

// ftsIntegrityCheck runs the FTS5 integrity-check command and returns its
// failure message, or "" when the index agrees with messages. The command is
// issued as an INSERT, so it holds the write lock while it runs; it stores no
// rows and its transaction is always rolled back.
func (s *Store) ftsIntegrityCheck(ctx context.Context) (string, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning index check: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT INTO messages_fts(messages_fts) VALUES ('integrity-check')`); err != nil {
		return err.Error(), nil
	}
	return "", nil
}

func (s *Store) hasTable(ctx context.Context, name string) (bool, error) {
	var n int
	err := s.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE name = ?`, name,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking table %s: %w", name, err)
	}
	return n > 0, nil
}

// OrphanMessages returns messages whose conversation is missing.
func (s *Store) OrphanMessages(ctx context.Context) ([]OrphanMessage, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT m.id, m.conversation_id
		 FROM messages m
		 LEFT JOIN conversations c ON c.id = m.conversation_id
		 WHERE c.id IS NULL
		 ORDER BY m.conversation_id, m.seq`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying orphan messages: %w", err)
	}
	defer rows.Close()

	var orphans []OrphanMessage
	for rows.Next() {
		var o OrphanMessage
		if err := rows.Scan(&o.MessageID, &o.ConversationID); err != nil {
			return nil, fmt.Errorf("scanning orphan message: %w", err)
		}
		orphans = append(orphans, o)
	}
	return orphans, rows.Err()
}

// CountMismatches returns conversations whose message_count is stale.
func (s *Store) CountMismatches(ctx context.Context) ([]CountMismatch, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT c.id, c.message_count, COUNT(m.row_id)
		 FROM conversations c
		 LEFT JOIN messages m ON m.conversation_id = c.id
		 GROUP BY c.id
		 HAVING c.message_count != COUNT(m.row_id)
		 ORDER BY c.id`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying count mismatches: %w", err)
	}
	defer rows.Close()

	var mismatches []CountMismatch
	for rows.Next() {
		var cm CountMismatch
		if err := rows.Scan(&cm.ConversationID, &cm.Stored, &cm.Actual); err != nil {
			return nil, fmt.Errorf("scanning count mismatch: %w", err)
		}
		mismatches = append(mismatches, cm)
	}
	return mismatches, rows.Err()
}

// DuplicateSequences returns seq values used more than once within a
// conversation.
func (s *Store) DuplicateSequences(ctx context.Context) ([]DuplicateSeq, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT conversation_id, seq, COUNT(*)
		 FROM messages
		 GROUP BY conversation_id, seq
		 HAVING COUNT(*) > 1
		 ORDER BY conversation_id, seq`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying duplicate sequences: %w", err)
	}
	defer rows.Close()

	var dups []DuplicateSeq
	for rows.Next() {
		var d DuplicateSeq
		if err := rows.Scan(&d.ConversationID, &d.Seq, &d.Count); err != nil {
			return nil, fmt.Errorf("scanning duplicate sequence: %w", err)
		}
		dups = append(dups, d)
	}
	return dups, rows.Err()
}

// IndexDrift lists disagreements between messages and the full-text index.
type IndexDrift struct {
	Orphaned  []int64 // index rows whose message is gone
	Unindexed []int64 // message rows missing from the index
}

// Empty reports whether the index and messages agree.
func (d IndexDrift) Empty() bool {
	return len(d.Orphaned) == 0 && len(d.Unindexed) == 0
}

// OrphanIndexRows compares the FTS5 document table with messages.row_id.
func (s *Store) OrphanIndexRows(ctx context.Context) (IndexDrift, error) {
	var drift IndexDrift

	hasFTS, err := s.hasTable(ctx, "messages_fts_docsize")
	if err != nil || !hasFTS {
		return drift, err
	}

	if drift.Orphaned, err = s.queryRowIDs(ctx,
		`SELECT id FROM messages_fts_docsize
		 WHERE id NOT IN (SELECT row_id FROM messages) ORDER BY id`,
	); err != nil {
		return drift, fmt.Errorf("querying orphaned index rows: %w", err)
	}
	if drift.Unindexed, err = s.queryRowIDs(ctx,
		`SELECT row_id FROM messages
		 WHERE row_id NOT IN (SELECT id FROM messages_fts_docsize) ORDER BY row_id`,
	); err != nil {
		return drift, fmt.Errorf("querying unindexed messages: %w", err)
	}
	return drift, nil
}

func (s *Store) queryRowIDs(ctx context.Context, query string) ([]int64, error) {
	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UnknownValues returns "table.column=value" entries for providers and roles
// outside the known sets.
func (s *Store) UnknownValues(ctx context.Context, providers, roles []string) ([]string, error) {
	var out []string

	checks := []struct {
		table, column string
		allowed       []string
	}{
		{"conversations", "provider", providers},
		{"messages", "role", roles},
	}
	for _, c := range checks {
		args := make([]any, len(c.allowed))
		for i, v := range c.allowed {
			args[i] = v
		}
		query := fmt.Sprintf(
			`SELECT DISTINCT %s FROM %s WHERE %s NOT IN (%s) ORDER BY 1`,
			c.column, c.table, c.column, makePlaceholders(len(c.allowed)),
		)
		rows, err := s.conn.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("querying unknown %s: %w", c.column, err)
		}
		for rows.Next() {
			var v string
			if err := rows.Scan(&v); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scanning unknown %s: %w", c.column, err)
			}
			out = append(out, c.table+"."+c.column+"="+v)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// makePlaceholders returns "?, ?, ..." with n placeholders.
func makePlaceholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

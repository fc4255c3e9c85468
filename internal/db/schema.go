package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ALT-F4-LLC/llm-unify/internal/model"
)

// ErrMigrationFailed matches any *MigrationFailedError via errors.Is.
var ErrMigrationFailed = errors.New("migration failed")

// ErrSchemaVersionUnsupported matches any *SchemaVersionUnsupportedError via errors.Is.
var ErrSchemaVersionUnsupported = errors.New("schema version unsupported")

// MigrationFailedError reports the migration step that could not be applied.
// Steps before Version remain committed.
type MigrationFailedError struct {
	Version int
	Cause   error
}

func (e *MigrationFailedError) Error() string {
	return fmt.Sprintf("migration %d failed: %v", e.Version, e.Cause)
}

func (e *MigrationFailedError) Unwrap() error { return e.Cause }

func (e *MigrationFailedError) Is(target error) bool { return target == ErrMigrationFailed }

// SchemaVersionUnsupportedError is returned when a database was written by a
// newer build than this one.
type SchemaVersionUnsupportedError struct {
	Found  int
	Latest int
}

func (e *SchemaVersionUnsupportedError) Error() string {
	return fmt.Sprintf("database schema version %d is newer than the latest supported version %d; upgrade llm-unify", e.Found, e.Latest)
}

func (e *SchemaVersionUnsupportedError) Unwrap() error { return ErrSchemaVersionUnsupported }

// Migration is one numbered, forward-only schema step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// Registry applies an ordered list of migrations and records each one in the
// schema_migrations table.
type Registry struct {
	migrations []Migration
}

// NewRegistry validates that migrations are numbered 1..n in order.
func NewRegistry(migrations []Migration) (*Registry, error) {
	for i, m := range migrations {
		if m.Version != i+1 {
			return nil, fmt.Errorf("migration at position %d has version %d, want %d", i, m.Version, i+1)
		}
		if m.Up == nil {
			return nil, fmt.Errorf("migration %d has no Up function", m.Version)
		}
	}
	return &Registry{migrations: slices.Clone(migrations)}, nil
}

// DefaultRegistry returns a registry over Migrations().
func DefaultRegistry() *Registry {
	r, err := NewRegistry(Migrations())
	if err != nil {
		panic(err)
	}
	return r
}

// Latest returns the highest version this registry knows how to apply.
func (r *Registry) Latest() int {
	return len(r.migrations)
}

// Supports reports whether a database at version v can be opened by this build.
func (r *Registry) Supports(v int) bool {
	return v >= 0 && v <= r.Latest()
}

const historyDDL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version     INTEGER PRIMARY KEY,
	description TEXT NOT NULL,
	applied_at  TEXT NOT NULL
);`

func hasHistoryTable(ctx context.Context, db *sql.DB) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'schema_migrations'`,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking schema_migrations table: %w", err)
	}
	return n > 0, nil
}

// CurrentVersion returns the highest applied version, or 0 for a fresh database.
func (r *Registry) CurrentVersion(ctx context.Context, db *sql.DB) (int, error) {
	ok, err := hasHistoryTable(ctx, db)
	if err != nil || !ok {
		return 0, err
	}

	var v int
	if err := db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&v); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return v, nil
}

// CheckSupported fails fast when the on-disk schema is newer than Latest.
func (r *Registry) CheckSupported(ctx context.Context, db *sql.DB) error {
	v, err := r.CurrentVersion(ctx, db)
	if err != nil {
		return err
	}
	if !r.Supports(v) {
		return &SchemaVersionUnsupportedError{Found: v, Latest: r.Latest()}
	}
	return nil
}

// History returns the applied migrations in version order.
func (r *Registry) History(ctx context.Context, db *sql.DB) ([]model.SchemaVersion, error) {
	ok, err := hasHistoryTable(ctx, db)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []model.SchemaVersion{}, nil
	}

	rows, err := db.QueryContext(ctx,
		`SELECT version, description, applied_at FROM schema_migrations ORDER BY version`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying schema history: %w", err)
	}
	defer rows.Close()

	history := make([]model.SchemaVersion, 0)
	for rows.Next() {
		var sv model.SchemaVersion
		var appliedAt string
		if err := rows.Scan(&sv.Version, &sv.Description, &appliedAt); err != nil {
			return nil, fmt.Errorf("scanning schema history: %w", err)
		}
		if sv.AppliedAt, err = parseTime(appliedAt); err != nil {
			return nil, fmt.Errorf("parsing applied_at for version %d: %w", sv.Version, err)
		}
		history = append(history, sv)
	}
	return history, rows.Err()
}

// ApplyPending runs every migration not yet recorded, each in its own
// transaction, and returns how many were applied. A failing step is reported
// as *MigrationFailedError; steps before it stay committed.
func (r *Registry) ApplyPending(ctx context.Context, db *sql.DB) (int, error) {
	if err := r.CheckSupported(ctx, db); err != nil {
		return 0, err
	}

	if _, err := db.ExecContext(ctx, historyDDL); err != nil {
		return 0, fmt.Errorf("creating schema_migrations table: %w", err)
	}

	history, err := r.History(ctx, db)
	if err != nil {
		return 0, err
	}
	done := make(map[int]bool, len(history))
	for _, h := range history {
		done[h.Version] = true
	}

	applied := 0
	for _, m := range r.migrations {
		if done[m.Version] {
			continue
		}
		if err := applyMigration(ctx, db, m); err != nil {
			return applied, &MigrationFailedError{Version: m.Version, Cause: err}
		}
		log.Debug().Int("version", m.Version).Str("description", m.Description).Msg("applied migration")
		applied++
	}

	return applied, nil
}

func applyMigration(ctx context.Context, db *sql.DB, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := m.Up(tx); err != nil {
		return err
	}

	if _, err := tx.Exec(
		`INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)`,
		m.Version, m.Description, formatTime(time.Now()),
	); err != nil {
		return fmt.Errorf("recording version: %w", err)
	}

	return tx.Commit()
}

func execStatements(stmts ...string) func(tx *sql.Tx) error {
	return func(tx *sql.Tx) error {
		for _, s := range stmts {
			if _, err := tx.Exec(s); err != nil {
				return err
			}
		}
		return nil
	}
}

// Migrations returns the schema history of the conversation store, oldest first.
func Migrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "conversations and messages",
			Up: execStatements(
				`CREATE TABLE conversations (
	id            TEXT PRIMARY KEY,
	provider      TEXT NOT NULL,
	title         TEXT NOT NULL DEFAULT '',
	created_at    TEXT NOT NULL,
	updated_at    TEXT NOT NULL,
	message_count INTEGER NOT NULL DEFAULT 0
)`,
				`CREATE TABLE messages (
	row_id          INTEGER PRIMARY KEY,
	id              TEXT NOT NULL,
	conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	seq             INTEGER NOT NULL,
	role            TEXT NOT NULL,
	content         TEXT NOT NULL,
	created_at      TEXT NOT NULL
)`,
				`CREATE UNIQUE INDEX idx_messages_conversation_seq ON messages(conversation_id, seq)`,
			),
		},
		{
			Version:     2,
			Description: "full-text index over message content",
			Up: execStatements(
				`CREATE VIRTUAL TABLE messages_fts USING fts5(
	content,
	content='messages',
	content_rowid='row_id',
	tokenize='unicode61'
)`,
				`CREATE TRIGGER messages_fts_ai AFTER INSERT ON messages BEGIN
	INSERT INTO messages_fts(rowid, content) VALUES (new.row_id, new.content);
END`,
				`CREATE TRIGGER messages_fts_ad AFTER DELETE ON messages BEGIN
	INSERT INTO messages_fts(messages_fts, rowid, content) VALUES ('delete', old.row_id, old.content);
END`,
				`CREATE TRIGGER messages_fts_au AFTER UPDATE ON messages BEGIN
	INSERT INTO messages_fts(messages_fts, rowid, content) VALUES ('delete', old.row_id, old.content);
	INSERT INTO messages_fts(rowid, content) VALUES (new.row_id, new.content);
END`,
				`INSERT INTO messages_fts(messages_fts) VALUES ('rebuild')`,
			),
		},
		{
			Version:     3,
			Description: "listing indexes",
			Up: execStatements(
				`CREATE INDEX idx_conversations_created_at ON conversations(created_at DESC, id DESC)`,
				`CREATE INDEX idx_conversations_provider ON conversations(provider, created_at DESC)`,
			),
		},
	}
}

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrStore matches any *StoreError via errors.Is.
var ErrStore = errors.New("store error")

// StoreError wraps a failed write. The transaction it belonged to has been
// rolled back.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool { return target == ErrStore }

// timeLayout is fixed width so that lexical order on the TEXT column equals
// chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// scanner abstracts *sql.Row and *sql.Rows for scanning a single row.
type scanner interface {
	Scan(dest ...any) error
}

// Store is the conversation store backed by a single SQLite file.
type Store struct {
	conn     *sql.DB
	path     string
	registry *Registry
}

// OpenStore opens the database at path, refuses schemas newer than the
// registry knows, and applies any pending migrations.
func OpenStore(ctx context.Context, path string, registry *Registry) (*Store, error) {
	conn, err := Open(path)
	if err != nil {
		return nil, err
	}

	if err := registry.CheckSupported(ctx, conn); err != nil {
		conn.Close()
		return nil, err
	}

	applied, err := registry.ApplyPending(ctx, conn)
	if err != nil {
		conn.Close()
		return nil, err
	}

	log.Debug().Str("path", path).Int("migrations_applied", applied).Msg("store opened")

	return &Store{conn: conn, path: path, registry: registry}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Path returns the database file path the store was opened with.
func (s *Store) Path() string {
	return s.path
}

// Registry returns the schema registry the store was opened with.
func (s *Store) Registry() *Registry {
	return s.registry
}

// SchemaVersion returns the highest applied migration version.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	return s.registry.CurrentVersion(ctx, s.conn)
}

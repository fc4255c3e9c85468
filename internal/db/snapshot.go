package db

import (
	"context"
	"fmt"
)

// Snapshot writes a consistent, self-contained copy of the database to path
// using VACUUM INTO. The target must not already exist.
func (s *Store) Snapshot(ctx context.Context, path string) error {
	if _, err := s.conn.ExecContext(ctx, `VACUUM INTO ?`, path); err != nil {
		return fmt.Errorf("snapshotting database to %s: %w", path, err)
	}
	return nil
}

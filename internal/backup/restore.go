package backup

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/ALT-F4-LLC/llm-unify/internal/db"
	"github.com/ALT-F4-LLC/llm-unify/internal/validate"
)

// OldSuffix is appended to the destination to preserve the database a
// restore replaced.
const OldSuffix = ".old"

// sqliteSidecars are the files SQLite keeps next to a database in WAL mode.
var sqliteSidecars = []string{"", "-wal", "-shm"}

// RestoreOptions controls Restore.
type RestoreOptions struct {
	// Registry gates the restored schema version. Nil means db.DefaultRegistry().
	Registry *db.Registry

	// RollbackOnInvalid moves the preserved database back into place when the
	// restored one fails the logical check.
	RollbackOnInvalid bool
}

// Result describes a completed swap.
type Result struct {
	Metadata     Metadata        `json:"metadata"`
	PreviousPath string          `json:"previous_path,omitempty"`
	Report       validate.Report `json:"report"`
	RolledBack   bool            `json:"rolled_back"`
}

// Restore verifies backupPath against its sidecar and swaps it in at destPath.
//
// The backup is copied to a staging file beside destPath while hashing, so the
// bytes checked are the bytes installed. A checksum mismatch or unsupported
// schema version fails before destPath is touched. An existing database is
// moved to destPath+OldSuffix. After the swap the logical check runs; on
// failure the error wraps validate.ErrLogicalInconsistency and the returned
// Result carries the report.
func Restore(ctx context.Context, backupPath, destPath string, opts RestoreOptions) (*Result, error) {
	registry := opts.Registry
	if registry == nil {
		registry = db.DefaultRegistry()
	}

	meta, err := ReadMetadata(backupPath)
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(destPath)
	staged, err := newStagingPath(dir, ".llm-unify-restore-*")
	if err != nil {
		return nil, err
	}
	defer removeDatabase(staged)

	sum, err := copyAndHash(backupPath, staged)
	if err != nil {
		return nil, err
	}
	if sum != meta.Checksum {
		return nil, &ChecksumMismatchError{Path: backupPath, Expected: meta.Checksum, Actual: sum}
	}

	if err := checkStagedVersion(ctx, staged, registry); err != nil {
		return nil, err
	}

	res := &Result{Metadata: *meta}

	hadPrevious, err := exists(destPath)
	if err != nil {
		return nil, fmt.Errorf("checking destination: %w", err)
	}
	oldPath := destPath + OldSuffix
	if hadPrevious {
		if err := moveDatabase(destPath, oldPath); err != nil {
			return nil, fmt.Errorf("preserving existing database: %w", err)
		}
		res.PreviousPath = oldPath
	}

	if err := os.Rename(staged, destPath); err != nil {
		if hadPrevious {
			if rerr := moveDatabase(oldPath, destPath); rerr != nil {
				log.Error().Err(rerr).Str("path", oldPath).Msg("could not move preserved database back")
			}
		}
		return nil, fmt.Errorf("moving restored database into place: %w", err)
	}
	syncDir(dir)

	log.Debug().Str("path", destPath).Str("previous", res.PreviousPath).Msg("backup swapped in")

	report, err := validateRestored(ctx, destPath, registry)
	if err != nil {
		return res, err
	}
	res.Report = report

	if !report.OK() {
		if opts.RollbackOnInvalid && hadPrevious {
			if err := removeDatabase(destPath); err != nil {
				return res, fmt.Errorf("removing invalid restore: %w", err)
			}
			if err := moveDatabase(oldPath, destPath); err != nil {
				return res, fmt.Errorf("rolling back to preserved database: %w", err)
			}
			res.RolledBack = true
			res.PreviousPath = ""
		}
		return res, fmt.Errorf("restored database: %w", report.Err())
	}

	return res, nil
}

func copyAndHash(src, dst string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("opening backup: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", fmt.Errorf("opening staging file: %w", err)
	}

	h := newHash()
	if _, err := io.CopyBuffer(io.MultiWriter(out, h), in, make([]byte, bufferSize)); err != nil {
		out.Close()
		return "", fmt.Errorf("copying backup: %w", err)
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return "", fmt.Errorf("syncing staging file: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("closing staging file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func checkStagedVersion(ctx context.Context, path string, registry *db.Registry) error {
	conn, err := db.Open(path)
	if err != nil {
		return err
	}
	defer conn.Close()

	return registry.CheckSupported(ctx, conn)
}

func validateRestored(ctx context.Context, path string, registry *db.Registry) (validate.Report, error) {
	s, err := db.OpenStore(ctx, path, registry)
	if err != nil {
		return validate.Report{}, fmt.Errorf("opening restored database: %w", err)
	}
	defer s.Close()

	return validate.ValidateLogical(ctx, s)
}

// moveDatabase renames a database file along with its WAL sidecars. Stale
// sidecars at the target are removed first.
func moveDatabase(from, to string) error {
	for _, suffix := range sqliteSidecars[1:] {
		if err := os.Remove(to + suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	for _, suffix := range sqliteSidecars {
		ok, err := exists(from + suffix)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := os.Rename(from+suffix, to+suffix); err != nil {
			return err
		}
	}
	return nil
}

func removeDatabase(path string) error {
	for _, suffix := range sqliteSidecars {
		if err := os.Remove(path + suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

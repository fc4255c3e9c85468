// Package backup takes checksummed snapshots of a conversation store and
// restores them with an atomic swap.
package backup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
)

// FormatVersion is the sidecar layout written by Backup.
const FormatVersion = 1

// bufferSize bounds memory used while hashing and copying.
const bufferSize = 32 * 1024

const metadataSuffix = ".meta.json"

var (
	// ErrDestinationExists is returned when Backup would overwrite a file
	// without BackupOptions.Overwrite.
	ErrDestinationExists = errors.New("backup destination already exists")

	// ErrChecksumMismatch matches any *ChecksumMismatchError via errors.Is.
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

// ChecksumMismatchError reports a backup whose bytes no longer hash to the
// recorded checksum.
type ChecksumMismatchError struct {
	Path     string
	Expected string
	Actual   string
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch for %s: expected %s, got %s", e.Path, e.Expected, e.Actual)
}

func (e *ChecksumMismatchError) Unwrap() error { return ErrChecksumMismatch }

// Metadata is the sidecar written next to every backup.
type Metadata struct {
	FormatVersion int       `json:"format_version"`
	SchemaVersion int       `json:"schema_version"`
	Checksum      string    `json:"checksum"`
	CreatedAt     time.Time `json:"created_at"`
	Size          int64     `json:"size"`
}

// MetadataPath returns the sidecar path for a backup file.
func MetadataPath(backupPath string) string {
	return backupPath + metadataSuffix
}

// Source is the store being backed up.
type Source interface {
	Snapshot(ctx context.Context, path string) error
	SchemaVersion(ctx context.Context) (int, error)
}

// BackupOptions controls Backup.
type BackupOptions struct {
	Overwrite bool
}

// Backup snapshots src into dest and writes the sidecar. Both files are
// staged beside dest and renamed into place only after they are complete
// and synced; on failure the staged files are removed. An overwrite
// interrupted between the two renames leaves a sidecar that fails
// verification against the data file.
func Backup(ctx context.Context, src Source, dest string, opts BackupOptions) (*Metadata, error) {
	metaPath := MetadataPath(dest)
	if !opts.Overwrite {
		for _, p := range []string{dest, metaPath} {
			if _, err := os.Stat(p); err == nil {
				return nil, fmt.Errorf("%w: %s", ErrDestinationExists, p)
			} else if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("checking %s: %w", p, err)
			}
		}
	}

	dir := filepath.Dir(dest)
	staged, err := newStagingPath(dir, ".llm-unify-backup-*")
	if err != nil {
		return nil, err
	}
	defer removeIfExists(staged)

	if err := src.Snapshot(ctx, staged); err != nil {
		return nil, err
	}

	sum, size, err := hashFile(staged)
	if err != nil {
		return nil, err
	}
	if err := syncFile(staged); err != nil {
		return nil, err
	}

	version, err := src.SchemaVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading schema version: %w", err)
	}

	meta := &Metadata{
		FormatVersion: FormatVersion,
		SchemaVersion: version,
		Checksum:      sum,
		CreatedAt:     time.Now().UTC(),
		Size:          size,
	}

	stagedMeta, err := writeStagedMetadata(dir, meta)
	if err != nil {
		return nil, err
	}
	defer removeIfExists(stagedMeta)

	// The sidecar goes first. If the data rename then fails, or the process
	// dies in between, the sidecar no longer describes the file at dest and
	// Verify and Restore report ChecksumMismatch instead of trusting it.
	if err := os.Rename(stagedMeta, metaPath); err != nil {
		return nil, fmt.Errorf("moving backup metadata into place: %w", err)
	}
	if err := os.Rename(staged, dest); err != nil {
		os.Remove(metaPath)
		return nil, fmt.Errorf("moving backup into place: %w", err)
	}
	syncDir(dir)

	log.Debug().Str("path", dest).Str("checksum", sum).Int64("size", size).Msg("backup written")
	return meta, nil
}

// ReadMetadata loads and checks the sidecar of a backup file.
func ReadMetadata(backupPath string) (*Metadata, error) {
	b, err := os.ReadFile(MetadataPath(backupPath))
	if err != nil {
		return nil, fmt.Errorf("reading backup metadata: %w", err)
	}

	var meta Metadata
	if err := json.Unmarshal(b, &meta); err != nil {
		return nil, fmt.Errorf("parsing backup metadata: %w", err)
	}
	if meta.FormatVersion != FormatVersion {
		return nil, fmt.Errorf("backup metadata format_version %d is not supported (want %d)", meta.FormatVersion, FormatVersion)
	}
	if meta.Checksum == "" {
		return nil, errors.New("backup metadata has no checksum")
	}
	return &meta, nil
}

// Verify recomputes the checksum of a backup and compares it with its sidecar.
func Verify(backupPath string) (*Metadata, error) {
	meta, err := ReadMetadata(backupPath)
	if err != nil {
		return nil, err
	}

	sum, _, err := hashFile(backupPath)
	if err != nil {
		return nil, err
	}
	if sum != meta.Checksum {
		return meta, &ChecksumMismatchError{Path: backupPath, Expected: meta.Checksum, Actual: sum}
	}
	return meta, nil
}

// --- helpers ---

func newHash() hash.Hash {
	return sha256.New()
}

func hashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	h := newHash()
	n, err := io.CopyBuffer(h, f, make([]byte, bufferSize))
	if err != nil {
		return "", 0, fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// newStagingPath reserves an empty file in dir and returns its name.
func newStagingPath(dir, pattern string) (string, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", fmt.Errorf("creating staging file: %w", err)
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", fmt.Errorf("closing staging file: %w", err)
	}
	return name, nil
}

func writeStagedMetadata(dir string, meta *Metadata) (string, error) {
	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding backup metadata: %w", err)
	}

	f, err := os.CreateTemp(dir, ".llm-unify-backup-meta-*")
	if err != nil {
		return "", fmt.Errorf("creating staging metadata: %w", err)
	}
	name := f.Name()

	if _, err := f.Write(append(b, '\n')); err != nil {
		f.Close()
		os.Remove(name)
		return "", fmt.Errorf("writing backup metadata: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(name)
		return "", fmt.Errorf("syncing backup metadata: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", fmt.Errorf("closing backup metadata: %w", err)
	}
	return name, nil
}

func syncFile(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("opening %s for sync: %w", path, err)
	}
	defer f.Close()
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing %s: %w", path, err)
	}
	return nil
}

// syncDir flushes directory entries after renames. Some platforms cannot
// fsync a directory; that is logged and ignored.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		log.Debug().Err(err).Str("dir", dir).Msg("open dir for sync")
		return
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		log.Debug().Err(err).Str("dir", dir).Msg("sync dir")
	}
}

func removeIfExists(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Str("path", path).Msg("could not remove staging file")
	}
}

func exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

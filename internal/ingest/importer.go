package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/ALT-F4-LLC/llm-unify/internal/model"
)

// Store is where parsed conversations are written.
type Store interface {
	UpsertConversations(ctx context.Context, convs []*model.Conversation) error
}

// FileResult is the outcome of importing one file.
type FileResult struct {
	Path          string `json:"path"`
	Conversations int    `json:"conversations"`
	Messages      int    `json:"messages"`
	Error         string `json:"error,omitempty"`
	err           error
}

// Err returns the failure for this file, if any.
func (r FileResult) Err() error { return r.err }

// Importer parses export files and persists them.
type Importer struct {
	store   Store
	workers int
}

// NewImporter returns an importer writing to s.
func NewImporter(s Store) *Importer {
	return &Importer{store: s, workers: runtime.GOMAXPROCS(0)}
}

// ImportFiles parses paths concurrently, then writes each file's
// conversations in its own transaction, in argument order. A file that fails
// to parse or store contributes nothing; the other files still import. The
// returned error joins every per-file failure.
func (im *Importer) ImportFiles(ctx context.Context, source string, paths []string) ([]FileResult, error) {
	parse, err := ParserFor(source)
	if err != nil {
		return nil, err
	}

	parsed := make([][]*model.Conversation, len(paths))
	results := make([]FileResult, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(im.workers)
	for i, path := range paths {
		results[i].Path = path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			convs, err := parseFile(parse, source, path)
			if err != nil {
				results[i].err = err
				return nil
			}
			parsed[i] = convs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var errs []error
	for i := range results {
		r := &results[i]
		if r.err == nil {
			if err := im.store.UpsertConversations(ctx, parsed[i]); err != nil {
				r.err = fmt.Errorf("storing %s: %w", r.Path, err)
			}
		}
		if r.err != nil {
			r.Error = r.err.Error()
			errs = append(errs, r.err)
			log.Debug().Err(r.err).Str("path", r.Path).Msg("import failed")
			continue
		}

		r.Conversations = len(parsed[i])
		for _, c := range parsed[i] {
			r.Messages += len(c.Messages)
		}
		log.Debug().Str("path", r.Path).Int("conversations", r.Conversations).Int("messages", r.Messages).Msg("imported file")
	}

	return results, errors.Join(errs...)
}

func parseFile(parse Parser, source, path string) ([]*model.Conversation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	convs, err := parse(data)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			pe.Source = source
			pe.Path = path
			return nil, pe
		}
		return nil, &ParseError{Source: source, Path: path, Reason: "unexpected failure", Err: err}
	}
	return convs, nil
}

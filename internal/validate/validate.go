// Package validate checks a conversation store for structural corruption and
// logical inconsistency without modifying it.
package validate

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/ALT-F4-LLC/llm-unify/internal/db"
	"github.com/ALT-F4-LLC/llm-unify/internal/model"
)

var (
	// ErrIntegrityCheckFailed means the engine reported file-level corruption.
	ErrIntegrityCheckFailed = errors.New("integrity check failed")

	// ErrLogicalInconsistency means the data violates store invariants.
	ErrLogicalInconsistency = errors.New("logical inconsistency")
)

// Auditor is the read-only view of the store the validator needs.
type Auditor interface {
	IntegrityCheck(ctx context.Context) ([]string, error)
	OrphanMessages(ctx context.Context) ([]db.OrphanMessage, error)
	CountMismatches(ctx context.Context) ([]db.CountMismatch, error)
	DuplicateSequences(ctx context.Context) ([]db.DuplicateSeq, error)
	OrphanIndexRows(ctx context.Context) (db.IndexDrift, error)
	UnknownValues(ctx context.Context, providers, roles []string) ([]string, error)
}

// Section is the outcome of one group of checks.
type Section struct {
	OK      bool     `json:"ok"`
	Details []string `json:"details"`
}

func newSection(details []string) Section {
	if details == nil {
		details = []string{}
	}
	return Section{OK: len(details) == 0, Details: details}
}

// Report holds both check groups. Every violation found is listed.
type Report struct {
	Structural Section `json:"structural"`
	Logical    Section `json:"logical"`
}

// OK reports whether both sections passed.
func (r Report) OK() bool {
	return r.Structural.OK && r.Logical.OK
}

// Err returns nil for a passing report, otherwise an error wrapping
// ErrIntegrityCheckFailed (preferred) or ErrLogicalInconsistency.
func (r Report) Err() error {
	switch {
	case !r.Structural.OK:
		return fmt.Errorf("%w: %d problem(s)", ErrIntegrityCheckFailed, len(r.Structural.Details))
	case !r.Logical.OK:
		return fmt.Errorf("%w: %d problem(s)", ErrLogicalInconsistency, len(r.Logical.Details))
	}
	return nil
}

// Validate runs the structural and logical checks.
func Validate(ctx context.Context, a Auditor) (Report, error) {
	structural, err := a.IntegrityCheck(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("structural check: %w", err)
	}

	logical, err := logicalDetails(ctx, a)
	if err != nil {
		return Report{}, err
	}

	r := Report{Structural: newSection(structural), Logical: newSection(logical)}
	log.Debug().Bool("structural_ok", r.Structural.OK).Bool("logical_ok", r.Logical.OK).Msg("validation finished")
	return r, nil
}

// ValidateLogical runs only the logical checks. The structural section is
// reported as passing.
func ValidateLogical(ctx context.Context, a Auditor) (Report, error) {
	logical, err := logicalDetails(ctx, a)
	if err != nil {
		return Report{}, err
	}
	return Report{Structural: newSection(nil), Logical: newSection(logical)}, nil
}

func logicalDetails(ctx context.Context, a Auditor) ([]string, error) {
	var details []string

	orphans, err := a.OrphanMessages(ctx)
	if err != nil {
		return nil, fmt.Errorf("orphan check: %w", err)
	}
	for _, o := range orphans {
		details = append(details, fmt.Sprintf("message %s references missing conversation %s", o.MessageID, o.ConversationID))
	}

	mismatches, err := a.CountMismatches(ctx)
	if err != nil {
		return nil, fmt.Errorf("count check: %w", err)
	}
	for _, m := range mismatches {
		details = append(details, fmt.Sprintf("conversation %s records %d messages but has %d", m.ConversationID, m.Stored, m.Actual))
	}

	dups, err := a.DuplicateSequences(ctx)
	if err != nil {
		return nil, fmt.Errorf("sequence check: %w", err)
	}
	for _, d := range dups {
		details = append(details, fmt.Sprintf("conversation %s has %d messages at seq %d", d.ConversationID, d.Count, d.Seq))
	}

	drift, err := a.OrphanIndexRows(ctx)
	if err != nil {
		return nil, fmt.Errorf("index check: %w", err)
	}
	for _, id := range drift.Orphaned {
		details = append(details, fmt.Sprintf("search index row %d has no message", id))
	}
	for _, id := range drift.Unindexed {
		details = append(details, fmt.Sprintf("message row %d is missing from the search index", id))
	}

	providers := make([]string, 0)
	for _, p := range model.Providers() {
		providers = append(providers, string(p))
	}
	roles := make([]string, 0)
	for _, r := range model.Roles() {
		roles = append(roles, string(r))
	}
	unknown, err := a.UnknownValues(ctx, providers, roles)
	if err != nil {
		return nil, fmt.Errorf("enum check: %w", err)
	}
	for _, u := range unknown {
		details = append(details, "unknown value "+u)
	}

	return details, nil
}

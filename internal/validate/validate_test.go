package validate

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ALT-F4-LLC/llm-unify/internal/db"
	"github.com/ALT-F4-LLC/llm-unify/internal/model"
)

func mustOpenStore(t *testing.T) (*db.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "llm-unify.db")
	s, err := db.OpenStore(context.Background(), path, db.DefaultRegistry())
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, path
}

func seed(t *testing.T, s *db.Store) {
	t.Helper()
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	c := &model.Conversation{
		ID:        "conv-1",
		Provider:  model.ProviderClaude,
		Title:     "seed",
		CreatedAt: created,
		UpdatedAt: created,
		Messages: []model.Message{
			{ID: "m1", ConversationID: "conv-1", Role: model.RoleUser, Content: "hi", CreatedAt: created, Seq: 0},
			{ID: "m2", ConversationID: "conv-1", Role: model.RoleAssistant, Content: "hello", CreatedAt: created, Seq: 1},
		},
	}
	if err := s.UpsertConversation(context.Background(), c); err != nil {
		t.Fatalf("UpsertConversation: %v", err)
	}
}

func TestValidateCleanStore(t *testing.T) {
	s, _ := mustOpenStore(t)
	seed(t, s)

	r, err := Validate(context.Background(), s)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !r.OK() {
		t.Errorf("report not OK: %+v", r)
	}
	if err := r.Err(); err != nil {
		t.Errorf("Err() = %v, want nil", err)
	}
	if r.Structural.Details == nil || r.Logical.Details == nil {
		t.Error("details should be empty slices, not nil")
	}
}

func TestValidateEmptyStore(t *testing.T) {
	s, _ := mustOpenStore(t)

	r, err := Validate(context.Background(), s)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !r.OK() {
		t.Errorf("empty store report not OK: %+v", r)
	}
}

func TestValidateReportsOrphanMessage(t *testing.T) {
	s, path := mustOpenStore(t)
	seed(t, s)

	raw, err := db.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for _, stmt := range []string{
		`PRAGMA foreign_keys=OFF`,
		`INSERT INTO messages (id, conversation_id, seq, role, content, created_at)
		 VALUES ('lost', 'no-such-conversation', 0, 'user', 'orphaned', '')`,
	} {
		if _, err := raw.Exec(stmt); err != nil {
			t.Fatalf("exec %q: %v", stmt, err)
		}
	}
	raw.Close()

	r, err := Validate(context.Background(), s)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !r.Structural.OK {
		t.Errorf("structural should pass, got %v", r.Structural.Details)
	}
	if r.Logical.OK {
		t.Fatal("logical should fail")
	}
	found := false
	for _, d := range r.Logical.Details {
		if strings.Contains(d, "lost") && strings.Contains(d, "no-such-conversation") {
			found = true
		}
	}
	if !found {
		t.Errorf("details %v do not name the orphan", r.Logical.Details)
	}
	if !errors.Is(r.Err(), ErrLogicalInconsistency) {
		t.Errorf("Err() = %v, want ErrLogicalInconsistency", r.Err())
	}
}

type fakeAuditor struct {
	structural []string
	orphans    []db.OrphanMessage
	mismatches []db.CountMismatch
	dups       []db.DuplicateSeq
	drift      db.IndexDrift
	unknown    []string
	err        error
}

func (f fakeAuditor) IntegrityCheck(context.Context) ([]string, error) { return f.structural, f.err }
func (f fakeAuditor) OrphanMessages(context.Context) ([]db.OrphanMessage, error) {
	return f.orphans, nil
}
func (f fakeAuditor) CountMismatches(context.Context) ([]db.CountMismatch, error) {
	return f.mismatches, nil
}
func (f fakeAuditor) DuplicateSequences(context.Context) ([]db.DuplicateSeq, error) {
	return f.dups, nil
}
func (f fakeAuditor) OrphanIndexRows(context.Context) (db.IndexDrift, error) { return f.drift, nil }
func (f fakeAuditor) UnknownValues(context.Context, []string, []string) ([]string, error) {
	return f.unknown, nil
}

func TestValidateCollectsEveryViolation(t *testing.T) {
	a := fakeAuditor{
		orphans:    []db.OrphanMessage{{MessageID: "m1", ConversationID: "x"}, {MessageID: "m2", ConversationID: "x"}},
		mismatches: []db.CountMismatch{{ConversationID: "c", Stored: 3, Actual: 1}},
		dups:       []db.DuplicateSeq{{ConversationID: "c", Seq: 0, Count: 2}},
		drift:      db.IndexDrift{Orphaned: []int64{7}, Unindexed: []int64{9}},
		unknown:    []string{"messages.role=robot"},
	}

	r, err := Validate(context.Background(), a)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got := len(r.Logical.Details); got != 7 {
		t.Errorf("len(details) = %d, want 7: %v", got, r.Logical.Details)
	}
	if !r.Structural.OK {
		t.Error("structural should pass")
	}
}

func TestValidateStructuralFailureTakesPrecedence(t *testing.T) {
	a := fakeAuditor{
		structural: []string{"row 3 missing from index"},
		orphans:    []db.OrphanMessage{{MessageID: "m1", ConversationID: "x"}},
	}

	r, err := Validate(context.Background(), a)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if r.OK() {
		t.Fatal("report should fail")
	}
	if !errors.Is(r.Err(), ErrIntegrityCheckFailed) {
		t.Errorf("Err() = %v, want ErrIntegrityCheckFailed", r.Err())
	}
	if r.Logical.OK {
		t.Error("logical section should still be evaluated")
	}
}

func TestValidateLogicalSkipsStructural(t *testing.T) {
	a := fakeAuditor{structural: []string{"corrupt"}}

	r, err := ValidateLogical(context.Background(), a)
	if err != nil {
		t.Fatalf("ValidateLogical: %v", err)
	}
	if !r.OK() {
		t.Errorf("ValidateLogical should not run the structural check: %+v", r)
	}
}

func TestValidatePropagatesAuditorErrors(t *testing.T) {
	a := fakeAuditor{err: errors.New("disk gone")}

	if _, err := Validate(context.Background(), a); err == nil {
		t.Error("expected error, got nil")
	}
}

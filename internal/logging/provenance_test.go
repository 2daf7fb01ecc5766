package logging

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/state"
)

// #region helpers
func setupProvenance(t *testing.T) (*sql.DB, *SQLProvenance) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	p, err := NewSQLProvenance(db)
	if err != nil {
		t.Fatalf("new provenance: %v", err)
	}
	return db, p
}

func experience(id string, passed bool, created time.Time) state.Experience {
	issues := []state.Issue{}
	if !passed {
		issues = append(issues, state.Issue{Check: "anchor_coverage", Step: -1, Message: "anchors P6 not hit"})
	}
	return state.Experience{
		ID:     id,
		Chain:  state.Chain{ID: "chain-" + id, TaskID: "task-1"},
		Reward: 0.8,
		Stage:  state.StageDiscovery,
		Verification: state.VerificationResult{
			Passed:    passed,
			Issues:    issues,
			SubScores: state.SubScores{Continuity: 1, Confidence: 0.5},
		},
		CreatedAt: created,
	}
}

// #endregion helpers

// #region log-decision-tests
func TestLogDecision_Success(t *testing.T) {
	db, _ := setupProvenance(t)
	defer db.Close()

	entry := ProvenanceEntry{
		ExperienceID: "e1",
		ChainID:      "c1",
		TaskID:       "t1",
		Stage:        "alignment",
		Reward:       1.2,
		Passed:       true,
		ScoresJSON:   `{"cycle":1}`,
		Decision:     DecisionCommit,
		Reason:       "all checks passed",
		CreatedAt:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	if err := LogDecision(context.Background(), db, entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var chainID, decision string
	db.QueryRow("SELECT chain_id, decision FROM provenance_log").Scan(&chainID, &decision)
	if chainID != "c1" {
		t.Errorf("expected chain_id 'c1', got %q", chainID)
	}
	if decision != DecisionCommit {
		t.Errorf("expected decision 'commit', got %q", decision)
	}
}

func TestLogDecision_ZeroCreatedAt(t *testing.T) {
	db, _ := setupProvenance(t)
	defer db.Close()

	before := time.Now().UTC()
	err := LogDecision(context.Background(), db, ProvenanceEntry{
		ExperienceID: "e2", ChainID: "c2", Stage: "discovery", Decision: DecisionNoOp,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var createdAtStr string
	var taskID, reason sql.NullString
	db.QueryRow("SELECT created_at, task_id, reason FROM provenance_log").Scan(&createdAtStr, &taskID, &reason)
	createdAt, err := time.Parse(time.RFC3339Nano, createdAtStr)
	if err != nil {
		t.Fatalf("parse created_at: %v", err)
	}
	if createdAt.Before(before) {
		t.Error("expected auto-filled created_at to be >= test start time")
	}
	if taskID.Valid || reason.Valid {
		t.Error("expected NULL for empty optional fields")
	}
}

func TestLogDecision_Error(t *testing.T) {
	db, _ := setupProvenance(t)
	db.Close() // close to force error

	err := LogDecision(context.Background(), db, ProvenanceEntry{ExperienceID: "e3", Decision: DecisionReject})
	if err == nil {
		t.Fatal("expected error on closed db")
	}
}

// #endregion log-decision-tests

// #region record-tests
func TestRecordAndRecent(t *testing.T) {
	db, p := setupProvenance(t)
	defer db.Close()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	if err := p.Record(ctx, experience("a", true, base), true); err != nil {
		t.Fatalf("record a: %v", err)
	}
	if err := p.Record(ctx, experience("b", false, base.Add(time.Minute)), false); err != nil {
		t.Fatalf("record b: %v", err)
	}

	entries, err := p.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	b, a := entries[0], entries[1]
	if b.ExperienceID != "b" || b.Decision != DecisionReject || b.Passed {
		t.Errorf("unexpected newest entry %+v", b)
	}
	if !strings.Contains(b.Reason, "anchors P6 not hit") {
		t.Errorf("expected issue summary in reason, got %q", b.Reason)
	}
	if a.Decision != DecisionCommit || a.TaskID != "task-1" || a.Reward != 0.8 {
		t.Errorf("unexpected oldest entry %+v", a)
	}
	if !strings.Contains(a.ScoresJSON, `"continuity":1`) {
		t.Errorf("expected sub-scores json, got %q", a.ScoresJSON)
	}
	if !a.CreatedAt.Equal(base) {
		t.Errorf("created_at %v, want %v", a.CreatedAt, base)
	}
}

func TestDecide(t *testing.T) {
	tests := []struct {
		passed, stored bool
		want           string
	}{
		{false, false, DecisionReject},
		{true, true, DecisionCommit},
		{true, false, DecisionNoOp},
	}
	for _, tt := range tests {
		if got := Decide(tt.passed, tt.stored); got != tt.want {
			t.Errorf("Decide(%v, %v) = %q, want %q", tt.passed, tt.stored, got, tt.want)
		}
	}
}

// #endregion record-tests

// #region null-if-empty-tests
func TestNullIfEmpty(t *testing.T) {
	if nullIfEmpty("") != nil {
		t.Error("expected nil for empty string")
	}
	if nullIfEmpty("hello") != "hello" {
		t.Error("expected passthrough for non-empty string")
	}
}

// #endregion null-if-empty-tests

package logging

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/state"
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/verify"
)

// #region schema
const provenanceSchema = `
CREATE TABLE IF NOT EXISTS provenance_log (
	experience_id TEXT NOT NULL,
	chain_id      TEXT NOT NULL,
	task_id       TEXT,
	stage         TEXT NOT NULL,
	reward        REAL NOT NULL,
	passed        INTEGER NOT NULL,
	scores_json   TEXT,
	decision      TEXT NOT NULL,
	reason        TEXT,
	created_at    TEXT NOT NULL
);
`

// #endregion schema

// #region log-decision
// LogDecision writes a provenance entry to the provenance_log table.
func LogDecision(ctx context.Context, db *sql.DB, entry ProvenanceEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	passed := 0
	if entry.Passed {
		passed = 1
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO provenance_log (experience_id, chain_id, task_id, stage, reward, passed, scores_json, decision, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ExperienceID,
		entry.ChainID,
		nullIfEmpty(entry.TaskID),
		entry.Stage,
		entry.Reward,
		passed,
		nullIfEmpty(entry.ScoresJSON),
		entry.Decision,
		nullIfEmpty(entry.Reason),
		entry.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log decision: %w", err)
	}
	return nil
}

// #endregion log-decision

// #region sql-provenance

// SQLProvenance records trainer decisions in provenance_log.
type SQLProvenance struct {
	db *sql.DB
}

// NewSQLProvenance creates the provenance table on db if needed.
func NewSQLProvenance(db *sql.DB) (*SQLProvenance, error) {
	if _, err := db.Exec(provenanceSchema); err != nil {
		return nil, fmt.Errorf("migrate provenance: %w", err)
	}
	return &SQLProvenance{db: db}, nil
}

// Record logs the keep/discard decision for one experience.
func (p *SQLProvenance) Record(ctx context.Context, exp state.Experience, stored bool) error {
	scores, err := json.Marshal(exp.Verification.SubScores)
	if err != nil {
		return fmt.Errorf("marshal sub-scores: %w", err)
	}
	return LogDecision(ctx, p.db, ProvenanceEntry{
		ExperienceID: exp.ID,
		ChainID:      exp.Chain.ID,
		TaskID:       exp.Chain.TaskID,
		Stage:        string(exp.Stage),
		Reward:       exp.Reward,
		Passed:       exp.Verification.Passed,
		ScoresJSON:   string(scores),
		Decision:     Decide(exp.Verification.Passed, stored),
		Reason:       verify.Summary(exp.Verification),
		CreatedAt:    exp.CreatedAt,
	})
}

// Recent returns the newest provenance entries, newest first.
func (p *SQLProvenance) Recent(ctx context.Context, limit int) ([]ProvenanceEntry, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT experience_id, chain_id, task_id, stage, reward, passed, scores_json, decision, reason, created_at
		 FROM provenance_log ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query provenance: %w", err)
	}
	defer rows.Close()

	var out []ProvenanceEntry
	for rows.Next() {
		var (
			e                   ProvenanceEntry
			taskID, scores, why sql.NullString
			passed              int
			createdAt           string
		)
		if err := rows.Scan(&e.ExperienceID, &e.ChainID, &taskID, &e.Stage, &e.Reward, &passed,
			&scores, &e.Decision, &why, &createdAt); err != nil {
			return nil, fmt.Errorf("scan provenance: %w", err)
		}
		e.TaskID = taskID.String
		e.ScoresJSON = scores.String
		e.Reason = why.String
		e.Passed = passed == 1
		if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Decide maps a verification verdict and store outcome to a decision label.
func Decide(passed, stored bool) string {
	switch {
	case !passed:
		return DecisionReject
	case stored:
		return DecisionCommit
	default:
		return DecisionNoOp
	}
}

// #endregion sql-provenance

// #region helpers
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers

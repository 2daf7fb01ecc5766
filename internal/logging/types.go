package logging

import "time"

// Trainer decisions recorded in the provenance log.
const (
	DecisionCommit = "commit" // verified and saved to the experience store
	DecisionNoOp   = "no_op"  // verified but not saved
	DecisionReject = "reject" // failed verification
)

// #region provenance-entry
// ProvenanceEntry is a single row in the provenance_log table.
type ProvenanceEntry struct {
	ExperienceID string
	ChainID      string
	TaskID       string
	Stage        string
	Reward       float32
	Passed       bool
	ScoresJSON   string
	Decision     string
	Reason       string
	CreatedAt    time.Time
}

// #endregion provenance-entry

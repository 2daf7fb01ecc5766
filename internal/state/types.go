package state

import (
	"time"

	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/position"
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/tensor"
)

// #region uncertainty-kind
// UncertaintyKind classifies why a step is uncertain.
type UncertaintyKind string

const (
	KindMissingFacts     UncertaintyKind = "missing_facts"
	KindUnclearCausality UncertaintyKind = "unclear_causality"
	KindMultiplePathways UncertaintyKind = "multiple_pathways"
	KindValueAmbiguity   UncertaintyKind = "value_ambiguity"
	KindLow              UncertaintyKind = "low"
)

// #endregion uncertainty-kind

// #region task
// Task is one problem statement fed to the chain builder.
type Task struct {
	ID          string          `json:"id" yaml:"id"`
	Problem     string          `json:"problem" yaml:"problem"`
	Tensor      tensor.Semantic `json:"tensor" yaml:"tensor"`
	Confidence  float32         `json:"confidence" yaml:"confidence"`
	Uncertainty float32         `json:"uncertainty" yaml:"uncertainty"`
}

// #endregion task

// #region step
// Step is one reasoning state. Appended once by the builder; only Confidence,
// Tensor and Repaired may later be touched by drift repair at anchor positions.
type Step struct {
	Index           int                `json:"index"`
	Content         string             `json:"content"`
	Tensor          tensor.Semantic    `json:"tensor"`
	Position        position.Position  `json:"position"`
	Confidence      float32            `json:"confidence"`
	Uncertainty     float32            `json:"uncertainty"`
	UncertaintyKind UncertaintyKind    `json:"uncertainty_kind"`
	OracleUsed      bool               `json:"oracle_used"`
	Anchor          position.Influence `json:"anchor_influence"`
	Drift           *DriftResult       `json:"drift,omitempty"`
	Repaired        bool               `json:"repaired,omitempty"`
}

// #endregion step

// #region drift-result
// DriftResult is the detector's verdict on one evaluated step.
type DriftResult struct {
	Flagged         bool    `json:"flagged"`
	ConfidenceScore float32 `json:"confidence_score"`
	Divergence      float32 `json:"divergence"`
	Degenerate      bool    `json:"degenerate,omitempty"`
}

// #endregion drift-result

// #region verification
// Issue is one failed or noteworthy check, with the measured value against its threshold.
// Step is -1 for chain-level issues.
type Issue struct {
	Check     string  `json:"check"`
	Step      int     `json:"step"`
	Measured  float32 `json:"measured"`
	Threshold float32 `json:"threshold"`
	Message   string  `json:"message"`
}

// SubScores holds one [0, 1] score per verification check.
type SubScores struct {
	Continuity     float32 `json:"continuity"`
	Confidence     float32 `json:"confidence"`
	AnchorCoverage float32 `json:"anchor_coverage"`
	Cycle          float32 `json:"cycle"`
	Drift          float32 `json:"drift"`
}

// CheckResult records a single named check.
type CheckResult struct {
	Name   string  `json:"name"`
	Score  float32 `json:"score"`
	Pass   bool    `json:"pass"`
	Gating bool    `json:"gating"`
}

// VerificationResult is the verifier's immutable verdict on one chain.
type VerificationResult struct {
	Passed    bool          `json:"passed"`
	Preset    string        `json:"preset"`
	Issues    []Issue       `json:"issues"`
	SubScores SubScores     `json:"sub_scores"`
	Checks    []CheckResult `json:"checks"`
}

// #endregion verification

// #region experience
// Stage is a trainer phase.
type Stage string

const (
	StageDiscovery Stage = "discovery"
	StageAlignment Stage = "alignment"
)

// Experience is one scored chain kept by the trainer.
type Experience struct {
	ID           string             `json:"id"`
	Chain        Chain              `json:"chain"`
	Verification VerificationResult `json:"verification"`
	Reward       float32            `json:"reward"`
	Stage        Stage              `json:"stage"`
	CreatedAt    time.Time          `json:"created_at"`
}

// #endregion experience

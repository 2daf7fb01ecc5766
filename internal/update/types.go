package update

import (
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/position"
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/tensor"
)

// #region update-config
// Config holds the step sizes for both branches of a step transition.
type Config struct {
	ConfidenceGain        float32 // internal: confidence increase per step (default 0.05)
	UncertaintyDecay      float32 // internal: uncertainty decrease per step (default 0.08)
	NudgeRate             float32 // internal: pull of anchor-tied channels toward NudgeTarget (default 0.1)
	NudgeTarget           float32 // internal: channel value the nudge pulls toward (default 7.0)
	MaxDeltaNorm          float32 // internal: L2 clamp on the nudge (default 1.0)
	MaxOracleDelta        float32 // oracle: L2 clamp on supplied deltas (default 3.0)
	OracleConfidenceGain  float32 // oracle: confidence increase on a successful answer (default 0.12)
	OracleUncertaintyDrop float32 // oracle: uncertainty decrease on a successful answer (default 0.25)
}

// DefaultConfig returns the step sizes used by the builder.
func DefaultConfig() Config {
	return Config{
		ConfidenceGain:        0.05,
		UncertaintyDecay:      0.08,
		NudgeRate:             0.1,
		NudgeTarget:           7.0,
		MaxDeltaNorm:          1.0,
		MaxOracleDelta:        3.0,
		OracleConfidenceGain:  0.12,
		OracleUncertaintyDrop: 0.25,
	}
}

// #endregion update-config

// #region input
// Input is the prior step's state carried into a transition.
type Input struct {
	Tensor      tensor.Semantic
	Position    position.Position
	LastFlow    position.Position // most recent flow position, Idle if none yet
	Confidence  float32
	Uncertainty float32
}

// OracleAnswer is the part of an oracle reply a transition consumes.
type OracleAnswer struct {
	TensorDelta       tensor.Semantic
	SuggestedPosition *position.Position
}

// #endregion input

// #region metrics
// Metrics captures telemetry from one transition.
type Metrics struct {
	DeltaNorm      float32
	DeltaClamped   bool   // delta exceeded its L2 cap
	RangeClamped   bool   // resulting tensor needed clamping into range
	PositionSource string // "flow" | "oracle"
}

// #endregion metrics

// #region result
// Result is the next step's state.
type Result struct {
	Tensor      tensor.Semantic
	Position    position.Position
	Confidence  float32
	Uncertainty float32
	Metrics     Metrics
}

// #endregion result

package update

import (
	"math"

	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/position"
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/tensor"
)

// #region internal
// Internal is the pure low-uncertainty transition: advance along the flow cycle,
// raise confidence, lower uncertainty, and nudge anchor-tied channels by a bounded delta.
func Internal(in Input, config Config) Result {
	next := position.Advance(in.Position, in.LastFlow)
	inf := position.AnchorInfluence(next, in.Tensor)

	// Each anchor pulls its own channel toward the nudge target, scaled by its weight.
	var delta [3]float32
	for _, w := range inf.Weights {
		ch, ok := position.ChannelFor(w.Anchor)
		if !ok {
			continue
		}
		cur := in.Tensor.Get(ch)
		delta[ch] += config.NudgeRate * w.Weight * (config.NudgeTarget - cur)
	}

	d, norm, clamped := clampNorm(tensor.FromArray(delta), config.MaxDeltaNorm)
	raw := in.Tensor.Add(d)

	return Result{
		Tensor:      raw.Clamp(),
		Position:    next,
		Confidence:  clamp01(in.Confidence + config.ConfidenceGain),
		Uncertainty: clamp01(in.Uncertainty - config.UncertaintyDecay),
		Metrics: Metrics{
			DeltaNorm:      norm,
			DeltaClamped:   clamped,
			RangeClamped:   !raw.InRange(),
			PositionSource: "flow",
		},
	}
}

// #endregion internal

// #region oracle
// Oracle merges an oracle answer into the prior state. Malformed deltas are
// clamped rather than rejected. A valid suggested position overrides the flow cycle.
func Oracle(in Input, answer OracleAnswer, config Config) Result {
	scrubbed := tensor.ClampDelta(answer.TensorDelta)
	d, norm, clamped := clampNorm(scrubbed, config.MaxOracleDelta)
	if scrubbed != answer.TensorDelta {
		clamped = true
	}
	raw := in.Tensor.Add(d)

	next := position.Advance(in.Position, in.LastFlow)
	source := "flow"
	if answer.SuggestedPosition != nil && answer.SuggestedPosition.Valid() {
		next = *answer.SuggestedPosition
		source = "oracle"
	}

	return Result{
		Tensor:      raw.Clamp(),
		Position:    next,
		Confidence:  clamp01(in.Confidence + config.OracleConfidenceGain),
		Uncertainty: clamp01(in.Uncertainty - config.OracleUncertaintyDrop),
		Metrics: Metrics{
			DeltaNorm:      norm,
			DeltaClamped:   clamped,
			RangeClamped:   !raw.InRange(),
			PositionSource: source,
		},
	}
}

// #endregion oracle

// #region helpers
// clampNorm scales d down to maxNorm when its L2 norm exceeds it. maxNorm <= 0 disables the cap.
func clampNorm(d tensor.Semantic, maxNorm float32) (tensor.Semantic, float32, bool) {
	var zero tensor.Semantic
	norm := tensor.Distance(d, zero)
	if maxNorm > 0 && norm > maxNorm {
		return d.Scale(maxNorm / norm), maxNorm, true
	}
	return d, norm, false
}

func clamp01(v float32) float32 {
	if math.IsNaN(float64(v)) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// #endregion helpers

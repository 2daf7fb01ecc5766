package drift

import (
	"math"

	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/position"
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/state"
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/tensor"
)

// #region detector

// Detector flags steps poorly explained by their chain's recent trajectory.
// It holds configuration only; every call fits a fresh subspace from the
// caller's own steps.
type Detector struct {
	config Config
}

// NewDetector creates a Detector.
func NewDetector(config Config) *Detector {
	return &Detector{config: config}
}

// Config returns the detector configuration.
func (d *Detector) Config() Config {
	return d.config
}

// #endregion detector

// #region detect

// Detect evaluates steps[idx] against a subspace fitted on the steps before it.
// A degenerate window gives the step the benefit of the doubt: score 1.0, never flagged.
func (d *Detector) Detect(steps []state.Step, idx int) (state.DriftResult, Subspace) {
	rows := Window(steps, idx, d.config.WindowSize)
	sub := Fit(rows, d.config.Components, d.config.PowerIterations)

	result := state.DriftResult{
		ConfidenceScore: float32(sub.CapturedRatio),
		Degenerate:      sub.Degenerate,
	}
	if sub.Rows > 0 && idx < len(steps) {
		result.Divergence = divergence(StepVector(steps[idx]), sub.Mean)
	}
	if sub.Degenerate {
		return result, sub
	}

	result.Flagged = result.ConfidenceScore < d.config.ConfidenceThreshold ||
		result.Divergence > d.config.DivergenceThreshold
	return result, sub
}

// divergence is mean |tensor - window mean| over the channels, as a fraction of the channel range.
func divergence(x, m Vector) float32 {
	var sum float64
	for i := 0; i < len(tensor.Channels); i++ {
		sum += math.Abs(x[i] - m[i])
	}
	return float32(sum / float64(len(tensor.Channels)))
}

// #endregion detect

// #region intervene

// Intervene repairs a flagged step in place: the tensor deviation is projected onto
// the subspace, magnified around the window mean and clamped, and confidence is
// boosted (capped at 1). Anchor influence is recomputed from the repaired tensor.
// A step already marked Repaired is left untouched.
func (d *Detector) Intervene(step *state.Step, sub Subspace) bool {
	if step == nil || step.Repaired || sub.Degenerate || len(sub.Basis) == 0 {
		return false
	}

	proj := sub.Project(StepVector(*step))
	var channels [3]float32
	for i := range channels {
		v := sub.Mean[i] + float64(d.config.Magnification)*proj[i]
		channels[i] = float32(v * float64(tensor.Max))
	}

	step.Tensor = tensor.FromArray(channels).Clamp()
	step.Confidence = float32(math.Min(1, float64(step.Confidence*d.config.ConfidenceBoost)))
	step.Anchor = position.AnchorInfluence(step.Position, step.Tensor)
	step.Repaired = true
	return true
}

// #endregion intervene

// #region inspect

// Inspect runs detection on steps[idx] and, when the step sits on an anchor and is
// flagged, repairs it. The DriftResult is attached to the step. Non-anchor steps
// are returned untouched.
func (d *Detector) Inspect(steps []state.Step, idx int) Outcome {
	if idx < 0 || idx >= len(steps) {
		return Outcome{Step: idx}
	}
	step := &steps[idx]
	out := Outcome{Step: idx, ConfidenceIn: step.Confidence, ConfidenceOut: step.Confidence}
	if !position.IsAnchor(step.Position) {
		return out
	}

	result, sub := d.Detect(steps, idx)
	step.Drift = &result
	out.Flagged = result.Flagged
	out.Degenerate = result.Degenerate
	out.Score = result.ConfidenceScore
	out.Divergence = result.Divergence

	if result.Flagged {
		out.Intervened = d.Intervene(step, sub)
	}
	out.ConfidenceOut = step.Confidence
	return out
}

// #endregion inspect

// #region scan

// Unresolved lists drift results for every step of a chain that is flagged and was
// not repaired. Steps are not modified.
func (d *Detector) Unresolved(steps []state.Step) []Finding {
	var findings []Finding
	for i := 1; i < len(steps); i++ {
		result, _ := d.Detect(steps, i)
		if result.Flagged && !steps[i].Repaired {
			findings = append(findings, Finding{Step: i, Result: result})
		}
	}
	return findings
}

// Finding is one unresolved drift flag.
type Finding struct {
	Step   int
	Result state.DriftResult
}

// #endregion scan

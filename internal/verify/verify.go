package verify

import (
	"fmt"
	"strings"

	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/drift"
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/position"
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/state"
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/tensor"
)

// Check names.
const (
	CheckContinuity     = "continuity"
	CheckConfidence     = "confidence"
	CheckAnchorCoverage = "anchor_coverage"
	CheckCycle          = "cycle"
	CheckDrift          = "drift"
)

// #region verifier

// Verifier scores finished chains. It never mutates its input.
type Verifier struct {
	preset    string
	constants Constants
	detector  *drift.Detector
}

// New creates a Verifier. preset is only a label; constants carry the thresholds.
func New(preset string, constants Constants, driftConfig drift.Config) *Verifier {
	return &Verifier{
		preset:    preset,
		constants: constants,
		detector:  drift.NewDetector(driftConfig),
	}
}

// NewPreset creates a Verifier from a named preset with optional overrides.
func NewPreset(preset string, overrides map[string]any, driftConfig drift.Config) (*Verifier, error) {
	c, err := Resolve(preset, overrides)
	if err != nil {
		return nil, err
	}
	label := preset
	if len(overrides) > 0 {
		label = PresetCustom
	}
	return New(label, c, driftConfig), nil
}

// Constants returns the thresholds in use.
func (v *Verifier) Constants() Constants { return v.constants }

// #endregion verifier

// #region verify

// Verify runs every check. Continuity, confidence, anchor coverage and drift gate the
// verdict; cycle is reported but informational, since anchor coverage already
// accepts a complete cycle. A chain that completes the cycle and hits all three
// anchors passes under every preset; failed checks still appear as issues.
func (v *Verifier) Verify(chain state.Chain) state.VerificationResult {
	var issues []state.Issue

	continuity, iss := v.continuity(chain.Steps)
	issues = append(issues, iss...)
	confidence, iss := v.confidence(chain.Steps)
	issues = append(issues, iss...)
	coverage, iss := v.anchorCoverage(chain)
	issues = append(issues, iss...)
	cycle, iss := v.cycle(chain)
	issues = append(issues, iss...)
	driftScore, iss := v.drift(chain.Steps)
	issues = append(issues, iss...)

	checks := []state.CheckResult{continuity, confidence, coverage, cycle, driftScore}
	passed := chain.CycleComplete && chain.AllAnchorsHit()
	if !passed {
		passed = true
		for _, c := range checks {
			if c.Gating && !c.Pass {
				passed = false
			}
		}
	}

	if issues == nil {
		issues = []state.Issue{}
	}
	return state.VerificationResult{
		Passed: passed,
		Preset: v.preset,
		Issues: issues,
		SubScores: state.SubScores{
			Continuity:     continuity.Score,
			Confidence:     confidence.Score,
			AnchorCoverage: coverage.Score,
			Cycle:          cycle.Score,
			Drift:          driftScore.Score,
		},
		Checks: checks,
	}
}

// #endregion verify

// #region checks

func (v *Verifier) continuity(steps []state.Step) (state.CheckResult, []state.Issue) {
	var issues []state.Issue
	transitions := len(steps) - 1
	for i := 1; i < len(steps); i++ {
		jump := tensor.Distance(steps[i-1].Tensor, steps[i].Tensor)
		if jump > v.constants.MaxJump {
			issues = append(issues, state.Issue{
				Check:     CheckContinuity,
				Step:      i,
				Measured:  jump,
				Threshold: v.constants.MaxJump,
				Message:   fmt.Sprintf("step %d jumps %.2f from step %d, above %.2f", i, jump, i-1, v.constants.MaxJump),
			})
		}
	}
	return result(CheckContinuity, transitions, len(issues), true), issues
}

// ConfidenceThreshold is the floor for step i. Anchor steps use the anchor floor;
// the first ColdStartSteps steps get an allowance decaying linearly to zero.
func (c Constants) ConfidenceThreshold(i int, p position.Position) float32 {
	if position.IsAnchor(p) {
		return c.AnchorMinConfidence
	}
	floor := c.MinConfidence
	if c.ColdStartSteps > 0 && i < c.ColdStartSteps {
		decay := 1 - float32(i)/float32(c.ColdStartSteps)
		floor -= c.ColdStartAllowance * decay
	}
	if floor < 0 {
		floor = 0
	}
	return floor
}

func (v *Verifier) confidence(steps []state.Step) (state.CheckResult, []state.Issue) {
	var issues []state.Issue
	for i, s := range steps {
		th := v.constants.ConfidenceThreshold(i, s.Position)
		if s.Confidence < th {
			issues = append(issues, state.Issue{
				Check:     CheckConfidence,
				Step:      i,
				Measured:  s.Confidence,
				Threshold: th,
				Message:   fmt.Sprintf("step %d at %s has confidence %.2f, below %.2f", i, s.Position, s.Confidence, th),
			})
		}
	}
	return result(CheckConfidence, len(steps), len(issues), true), issues
}

func (v *Verifier) anchorCoverage(chain state.Chain) (state.CheckResult, []state.Issue) {
	hit := float32(len(chain.AnchorsHit)) / float32(len(position.Anchors))
	if chain.AllAnchorsHit() || chain.CycleComplete {
		return state.CheckResult{Name: CheckAnchorCoverage, Score: 1, Pass: true, Gating: true}, nil
	}
	missing := make([]string, 0, len(position.Anchors))
	for _, a := range position.Anchors {
		if !chain.HasAnchor(a) {
			missing = append(missing, a.String())
		}
	}
	return state.CheckResult{Name: CheckAnchorCoverage, Score: hit, Pass: false, Gating: true},
		[]state.Issue{{
			Check:     CheckAnchorCoverage,
			Step:      -1,
			Measured:  hit,
			Threshold: 1,
			Message:   fmt.Sprintf("anchors %s not hit and flow cycle incomplete", strings.Join(missing, ",")),
		}}
}

func (v *Verifier) cycle(chain state.Chain) (state.CheckResult, []state.Issue) {
	if chain.CycleComplete {
		return state.CheckResult{Name: CheckCycle, Score: 1, Pass: true}, nil
	}
	progress := state.CycleProgress(chain.Positions())
	return state.CheckResult{Name: CheckCycle, Score: progress, Pass: false},
		[]state.Issue{{
			Check:     CheckCycle,
			Step:      -1,
			Measured:  progress,
			Threshold: 1,
			Message:   fmt.Sprintf("flow cycle %.0f%% complete", progress*100),
		}}
}

func (v *Verifier) drift(steps []state.Step) (state.CheckResult, []state.Issue) {
	findings := v.detector.Unresolved(steps)
	issues := make([]state.Issue, 0, len(findings))
	for _, f := range findings {
		msg := fmt.Sprintf("step %d drifted (score %.2f, divergence %.2f) without repair",
			f.Step, f.Result.ConfidenceScore, f.Result.Divergence)
		issues = append(issues, state.Issue{
			Check:     CheckDrift,
			Step:      f.Step,
			Measured:  f.Result.Divergence,
			Threshold: v.detector.Config().DivergenceThreshold,
			Message:   msg,
		})
	}
	evaluated := len(steps) - 1
	return result(CheckDrift, evaluated, len(findings), true), issues
}

// result builds a gating check whose score is the share of clean items.
func result(name string, total, failed int, gating bool) state.CheckResult {
	score := float32(1)
	if total > 0 {
		score = float32(total-failed) / float32(total)
	}
	return state.CheckResult{Name: name, Score: score, Pass: failed == 0, Gating: gating}
}

// #endregion checks

// #region summary

// Summary renders issues as one line for logs and provenance.
func Summary(r state.VerificationResult) string {
	if r.Passed && len(r.Issues) == 0 {
		return "all checks passed"
	}
	parts := make([]string, 0, len(r.Issues))
	for _, is := range r.Issues {
		parts = append(parts, is.Message)
	}
	verdict := "passed"
	if !r.Passed {
		verdict = "failed"
	}
	return fmt.Sprintf("%s: %s", verdict, strings.Join(parts, "; "))
}

// #endregion summary

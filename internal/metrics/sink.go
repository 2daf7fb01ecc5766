package metrics

import (
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/position"
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/state"
)

// #region sink

// Oracle call outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeFallback = "fallback"
)

// Sink receives reasoning events. Implementations must be safe for concurrent use
// and must never block the caller.
type Sink interface {
	StepTaken()
	OracleCall(outcome string)
	AnchorHit(anchor position.Position)
	DriftFlagged()
	InterventionApplied()
	Verified(passed bool)
	Rewarded(stage state.Stage, reward float32)
}

// Nop discards every event.
type Nop struct{}

func (Nop) StepTaken() {}
func (Nop) OracleCall(string) {}
func (Nop) AnchorHit(position.Position) {}
func (Nop) DriftFlagged() {}
func (Nop) InterventionApplied() {}
func (Nop) Verified(bool) {}
func (Nop) Rewarded(state.Stage, float32) {}

// #endregion sink

// #region multi

type multi []Sink

// Multi fans every event out to each sink. Nil sinks are skipped.
func Multi(sinks ...Sink) Sink {
	out := make(multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (m multi) StepTaken() {
	for _, s := range m {
		s.StepTaken()
	}
}

func (m multi) OracleCall(outcome string) {
	for _, s := range m {
		s.OracleCall(outcome)
	}
}

func (m multi) AnchorHit(anchor position.Position) {
	for _, s := range m {
		s.AnchorHit(anchor)
	}
}

func (m multi) DriftFlagged() {
	for _, s := range m {
		s.DriftFlagged()
	}
}

func (m multi) InterventionApplied() {
	for _, s := range m {
		s.InterventionApplied()
	}
}

func (m multi) Verified(passed bool) {
	for _, s := range m {
		s.Verified(passed)
	}
}

func (m multi) Rewarded(stage state.Stage, reward float32) {
	for _, s := range m {
		s.Rewarded(stage, reward)
	}
}

// #endregion multi

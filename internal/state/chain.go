package state

import (
	"sort"

	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/position"
)

// #region cycle-tier
// CycleTier records which matching rule established cycle completion.
type CycleTier int

const (
	CycleNone        CycleTier = 0
	CycleContiguous  CycleTier = 1 // exact contiguous [1,2,4,8,7,5,1]
	CycleSubsequence CycleTier = 2 // [1,2,4,8,7,5,1] in order, gaps allowed
	CycleCore        CycleTier = 3 // [1,2,4,8,7,5] in order, gaps allowed
)

// canonicalCycle is the flow cycle closed back onto its start.
var canonicalCycle = []position.Position{1, 2, 4, 8, 7, 5, 1}

// #endregion cycle-tier

// #region chain
// Chain is an ordered trajectory of steps plus derived bookkeeping.
// Owned by one build; treated as immutable once handed to the verifier.
type Chain struct {
	ID                  string              `json:"id"`
	TaskID              string              `json:"task_id"`
	Problem             string              `json:"problem"`
	Steps               []Step              `json:"steps"`
	AnchorsHit          []position.Position `json:"anchors_hit"`
	CycleComplete       bool                `json:"cycle_complete"`
	CycleTier           CycleTier           `json:"cycle_tier"`
	AggregateConfidence float32             `json:"aggregate_confidence"`
}

// NewChain builds a chain and computes its derived fields.
func NewChain(id, taskID, problem string, steps []Step) Chain {
	c := Chain{ID: id, TaskID: taskID, Problem: problem, Steps: steps}
	c.Derive()
	return c
}

// Derive recomputes AnchorsHit, CycleComplete, CycleTier and AggregateConfidence from Steps.
func (c *Chain) Derive() {
	c.AnchorsHit = anchorsHit(c.Steps)
	c.CycleTier = MatchCycle(c.Positions())
	c.CycleComplete = c.CycleTier != CycleNone
	c.AggregateConfidence = meanConfidence(c.Steps)
}

// Positions returns the position of every step in order.
func (c Chain) Positions() []position.Position {
	out := make([]position.Position, len(c.Steps))
	for i, s := range c.Steps {
		out[i] = s.Position
	}
	return out
}

// HasAnchor reports whether anchor a is in AnchorsHit.
func (c Chain) HasAnchor(a position.Position) bool {
	for _, h := range c.AnchorsHit {
		if h == a {
			return true
		}
	}
	return false
}

// AllAnchorsHit reports whether 3, 6 and 9 were all hit.
func (c Chain) AllAnchorsHit() bool {
	for _, a := range position.Anchors {
		if !c.HasAnchor(a) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy so callers can hand out chains without sharing step storage.
func (c Chain) Clone() Chain {
	out := c
	out.Steps = make([]Step, len(c.Steps))
	for i, s := range c.Steps {
		if s.Drift != nil {
			d := *s.Drift
			s.Drift = &d
		}
		out.Steps[i] = s
	}
	out.AnchorsHit = append([]position.Position(nil), c.AnchorsHit...)
	return out
}

// #endregion chain

// #region cycle-matching
// MatchCycle checks positions against the canonical cycle using three tiers:
// contiguous match, in-order subsequence of the closed cycle, in-order subsequence of the core.
func MatchCycle(positions []position.Position) CycleTier {
	if containsContiguous(positions, canonicalCycle) {
		return CycleContiguous
	}
	if containsSubsequence(positions, canonicalCycle) {
		return CycleSubsequence
	}
	if containsSubsequence(positions, canonicalCycle[:6]) {
		return CycleCore
	}
	return CycleNone
}

// CycleProgress is the longest in-order prefix of the closed cycle found in positions, in [0, 1].
func CycleProgress(positions []position.Position) float32 {
	matched := 0
	for _, p := range positions {
		if matched < len(canonicalCycle) && p == canonicalCycle[matched] {
			matched++
		}
	}
	return float32(matched) / float32(len(canonicalCycle))
}

func containsContiguous(hay, needle []position.Position) bool {
	if len(needle) == 0 {
		return true
	}
	for i := 0; i+len(needle) <= len(hay); i++ {
		match := true
		for j := range needle {
			if hay[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func containsSubsequence(hay, needle []position.Position) bool {
	j := 0
	for _, p := range hay {
		if j < len(needle) && p == needle[j] {
			j++
		}
	}
	return j == len(needle)
}

// #endregion cycle-matching

// #region helpers
func anchorsHit(steps []Step) []position.Position {
	seen := make(map[position.Position]bool)
	for _, s := range steps {
		if position.IsAnchor(s.Anchor.Hit) {
			seen[s.Anchor.Hit] = true
		}
	}
	out := make([]position.Position, 0, len(seen))
	for a := range seen {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func meanConfidence(steps []Step) float32 {
	if len(steps) == 0 {
		return 0
	}
	var sum float64
	for _, s := range steps {
		sum += float64(s.Confidence)
	}
	return float32(sum / float64(len(steps)))
}

// #endregion helpers

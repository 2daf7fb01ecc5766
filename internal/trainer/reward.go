package trainer

import (
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/position"
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/state"
)

// Reward bounds and shaping weights.
const (
	MaxReward = 1.5

	rewardBase          = 0.1
	rewardCycle         = 0.5
	rewardPartialCycle  = 0.2
	partialCycleMinLen  = 6
	rewardConfidence    = 0.4
	rewardAnchorShare   = 0.1
	rewardAllAnchors    = 0.3
	discoveryLength     = 0.2
	discoveryDiversity  = 0.1
	diversityNormalizer = 10
)

// #region reward

// Reward scores a verified chain for the given stage. Both stages share the base
// formula; Discovery adds length and position diversity terms. The result is
// clamped to [0, MaxReward].
func Reward(chain state.Chain, stage state.Stage, maxSteps int) float32 {
	r := float32(rewardBase)

	switch {
	case chain.CycleComplete:
		r += rewardCycle
	case len(chain.Steps) >= partialCycleMinLen:
		r += rewardPartialCycle
	}

	r += clamp01(chain.AggregateConfidence) * rewardConfidence
	r += rewardAnchorShare * float32(len(chain.AnchorsHit)) / float32(len(position.Anchors))
	if chain.AllAnchorsHit() {
		r += rewardAllAnchors
	}

	if stage == state.StageDiscovery {
		r += discoveryLength * lengthShare(len(chain.Steps), maxSteps)
		r += discoveryDiversity * float32(distinctPositions(chain)) / diversityNormalizer
	}

	if r < 0 {
		return 0
	}
	if r > MaxReward {
		return MaxReward
	}
	return r
}

func lengthShare(steps, maxSteps int) float32 {
	if maxSteps <= 0 {
		return 0
	}
	s := float32(steps) / float32(maxSteps)
	if s > 1 {
		return 1
	}
	return s
}

func distinctPositions(chain state.Chain) int {
	seen := make(map[position.Position]bool, len(chain.Steps))
	for _, s := range chain.Steps {
		seen[s.Position] = true
	}
	return len(seen)
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// #endregion reward

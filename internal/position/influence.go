package position

import "github.com/danielpatrickdp/adaptive-state/reasoner/internal/tensor"

// #region constants
const (
	// HighValueThreshold is the channel value above which an anchor's gain rises.
	HighValueThreshold float32 = 6.5
	// HighGain multiplies an anchor's weight when its channel is high.
	HighGain float32 = 1.5
	// HitThreshold is the total influence above which the strongest anchor counts as hit.
	HitThreshold float32 = 0.7
)

// #endregion constants

// #region types
// AnchorWeight is one anchor's contribution to a step.
type AnchorWeight struct {
	Anchor   Position `json:"anchor"`
	Distance int      `json:"distance"`
	Gain     float32  `json:"gain"`
	Weight   float32  `json:"weight"`
}

// Influence is the combined pull of the three anchors on a step.
type Influence struct {
	Weights [3]AnchorWeight `json:"weights"`
	Total   float32         `json:"total"`
	// Hit is the strongest anchor when Total exceeds HitThreshold, else Idle.
	Hit Position `json:"hit"`
}

// #endregion types

// #region influence
// AnchorInfluence computes the anchor pull on position p for tensor t.
// Pure: it depends only on its arguments and never consults the flow cycle.
func AnchorInfluence(p Position, t tensor.Semantic) Influence {
	var inf Influence
	best := -1
	for i, a := range Anchors {
		d := CircularDistance(p, a)
		gain := float32(1.0)
		if ch, ok := anchorChannel[a]; ok && t.Get(ch) > HighValueThreshold {
			gain = HighGain
		}
		w := gain / float32(1+d)
		inf.Weights[i] = AnchorWeight{Anchor: a, Distance: d, Gain: gain, Weight: w}
		inf.Total += w
		// strict > keeps the lowest anchor on ties
		if best < 0 || w > inf.Weights[best].Weight {
			best = i
		}
	}
	if inf.Total > HitThreshold && best >= 0 {
		inf.Hit = inf.Weights[best].Anchor
	}
	return inf
}

// CircularDistance is min(|p-a|, 10-|p-a|) on the ring of ten positions.
func CircularDistance(p, a Position) int {
	d := int(p) - int(a)
	if d < 0 {
		d = -d
	}
	if alt := 10 - d; alt < d {
		return alt
	}
	return d
}

// #endregion influence

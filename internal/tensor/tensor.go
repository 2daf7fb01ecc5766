package tensor

import "math"

// #region bounds
// Channel bounds. Every channel of a Semantic lives in [Min, Max].
const (
	Min   float32 = 0
	Max   float32 = 9
	Range float32 = Max - Min
)

// #endregion bounds

// #region channel
// Channel names one of the three semantic channels.
type Channel int

const (
	Character Channel = iota
	Logic
	Affect
)

// String returns the channel's wire name.
func (c Channel) String() string {
	switch c {
	case Character:
		return "character"
	case Logic:
		return "logic"
	case Affect:
		return "affect"
	default:
		return "unknown"
	}
}

// Channels lists all channels in storage order.
var Channels = [3]Channel{Character, Logic, Affect}

// #endregion channel

// #region semantic
// Semantic is a three-channel bounded vector describing a step's qualitative stance.
// Values are immutable by convention: every operation returns a new Semantic.
type Semantic struct {
	Character float32 `json:"character" yaml:"character"`
	Logic     float32 `json:"logic" yaml:"logic"`
	Affect    float32 `json:"affect" yaml:"affect"`
}

// New builds a clamped Semantic.
func New(character, logic, affect float32) Semantic {
	return Semantic{Character: character, Logic: logic, Affect: affect}.Clamp()
}

// Neutral is the midpoint of every channel.
func Neutral() Semantic {
	mid := Min + Range/2
	return Semantic{Character: mid, Logic: mid, Affect: mid}
}

// Get returns the value of a single channel.
func (s Semantic) Get(c Channel) float32 {
	switch c {
	case Character:
		return s.Character
	case Logic:
		return s.Logic
	case Affect:
		return s.Affect
	}
	return 0
}

// With returns a copy with one channel replaced (unclamped).
func (s Semantic) With(c Channel, v float32) Semantic {
	switch c {
	case Character:
		s.Character = v
	case Logic:
		s.Logic = v
	case Affect:
		s.Affect = v
	}
	return s
}

// Array returns the channels in storage order.
func (s Semantic) Array() [3]float32 {
	return [3]float32{s.Character, s.Logic, s.Affect}
}

// FromArray is the inverse of Array.
func FromArray(a [3]float32) Semantic {
	return Semantic{Character: a[0], Logic: a[1], Affect: a[2]}
}

// Add returns s + d without clamping.
func (s Semantic) Add(d Semantic) Semantic {
	return Semantic{
		Character: s.Character + d.Character,
		Logic:     s.Logic + d.Logic,
		Affect:    s.Affect + d.Affect,
	}
}

// Sub returns s - o without clamping.
func (s Semantic) Sub(o Semantic) Semantic {
	return Semantic{
		Character: s.Character - o.Character,
		Logic:     s.Logic - o.Logic,
		Affect:    s.Affect - o.Affect,
	}
}

// Scale multiplies every channel by f without clamping.
func (s Semantic) Scale(f float32) Semantic {
	return Semantic{Character: s.Character * f, Logic: s.Logic * f, Affect: s.Affect * f}
}

// Clamp scrubs NaN/Inf to the channel midpoint and restricts every channel to [Min, Max].
func (s Semantic) Clamp() Semantic {
	return Semantic{
		Character: clampChannel(s.Character),
		Logic:     clampChannel(s.Logic),
		Affect:    clampChannel(s.Affect),
	}
}

// InRange reports whether every channel is finite and within bounds.
func (s Semantic) InRange() bool {
	for _, v := range s.Array() {
		if !finite(v) || v < Min || v > Max {
			return false
		}
	}
	return true
}

// Distance is the Euclidean distance between two tensors.
func Distance(a, b Semantic) float32 {
	d := a.Sub(b)
	sum := float64(d.Character)*float64(d.Character) +
		float64(d.Logic)*float64(d.Logic) +
		float64(d.Affect)*float64(d.Affect)
	return float32(math.Sqrt(sum))
}

// #endregion semantic

// #region delta
// ClampDelta bounds a delta so that no channel moves by more than the full range.
// NaN/Inf components become 0.
func ClampDelta(d Semantic) Semantic {
	f := func(v float32) float32 {
		if !finite(v) {
			return 0
		}
		if v > Range {
			return Range
		}
		if v < -Range {
			return -Range
		}
		return v
	}
	return Semantic{Character: f(d.Character), Logic: f(d.Logic), Affect: f(d.Affect)}
}

// #endregion delta

// #region helpers
func clampChannel(v float32) float32 {
	if !finite(v) {
		return Min + Range/2
	}
	if v < Min {
		return Min
	}
	if v > Max {
		return Max
	}
	return v
}

func finite(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// #endregion helpers

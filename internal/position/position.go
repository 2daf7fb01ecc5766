package position

import (
	"fmt"

	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/tensor"
)

// #region position
// Position is a state in [0, 9]. 0 is idle, {1,2,4,8,7,5} form the flow cycle,
// {3,6,9} are anchors that never appear in the cycle.
type Position int

const (
	Idle Position = 0
	Max  Position = 9
)

// Valid reports whether p is within [0, 9].
func (p Position) Valid() bool {
	return p >= Idle && p <= Max
}

func (p Position) String() string {
	return fmt.Sprintf("P%d", int(p))
}

// #endregion position

// #region flow
// nextFlow is the doubling + digit-sum cycle 1→2→4→8→7→5→1.
var nextFlow = map[Position]Position{
	1: 2,
	2: 4,
	4: 8,
	8: 7,
	7: 5,
	5: 1,
}

// FlowCycle lists the flow positions in cycle order starting at 1.
var FlowCycle = [6]Position{1, 2, 4, 8, 7, 5}

// IsFlow reports whether p is one of the six cycle positions.
func IsFlow(p Position) bool {
	_, ok := nextFlow[p]
	return ok
}

// NextFlow returns the successor of a flow position. ok is false for idle and anchors.
func NextFlow(p Position) (next Position, ok bool) {
	next, ok = nextFlow[p]
	return next, ok
}

// Advance returns the position an internal step moves to. Flow positions step
// through the cycle. Anchors and idle resume from lastFlow, or enter the cycle at 1.
func Advance(current, lastFlow Position) Position {
	if next, ok := NextFlow(current); ok {
		return next
	}
	if next, ok := NextFlow(lastFlow); ok {
		return next
	}
	return FlowCycle[0]
}

// #endregion flow

// #region anchors
// Anchors lists the three out-of-cycle anchor positions in ascending order.
var Anchors = [3]Position{3, 6, 9}

// anchorChannel ties each anchor to the tensor channel that boosts its gain.
var anchorChannel = map[Position]tensor.Channel{
	3: tensor.Character,
	6: tensor.Affect,
	9: tensor.Logic,
}

// IsAnchor reports whether p is 3, 6 or 9.
func IsAnchor(p Position) bool {
	_, ok := anchorChannel[p]
	return ok
}

// ChannelFor returns the channel tied to an anchor.
func ChannelFor(anchor Position) (tensor.Channel, bool) {
	c, ok := anchorChannel[anchor]
	return c, ok
}

// #endregion anchors

package oracle

import (
	"context"
	"errors"

	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/position"
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/tensor"
)

// #region errors

// ErrUnavailable marks a timeout or transport failure. Callers recover locally.
var ErrUnavailable = errors.New("oracle unavailable")

// #endregion errors

// #region types

// Answer is the oracle's reply to one targeted question. TensorDelta may be
// malformed; callers clamp it. SuggestedPosition is nil when the oracle has no opinion.
type Answer struct {
	Text              string             `json:"text" yaml:"text"`
	TensorDelta       tensor.Semantic    `json:"tensor_delta" yaml:"tensor_delta"`
	SuggestedPosition *position.Position `json:"suggested_position,omitempty" yaml:"suggested_position,omitempty"`
}

// Oracle answers targeted questions about a reasoning state. Ask must honor ctx
// cancellation and release any in-flight request when ctx is done.
type Oracle interface {
	Ask(ctx context.Context, question string, contextTensor tensor.Semantic) (Answer, error)
}

// Func adapts a function to the Oracle interface.
type Func func(ctx context.Context, question string, contextTensor tensor.Semantic) (Answer, error)

// Ask calls f.
func (f Func) Ask(ctx context.Context, question string, contextTensor tensor.Semantic) (Answer, error) {
	return f(ctx, question, contextTensor)
}

// #endregion types

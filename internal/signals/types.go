package signals

import (
	"context"

	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/state"
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/tensor"
)

// #region context-provider-interface

// ContextProvider supplies extra text merged into oracle questions.
// Optional: a nil provider or a failing call leaves questions unchanged.
type ContextProvider interface {
	Context(ctx context.Context, query string) (string, error)
}

// #endregion context-provider-interface

// #region config

// ProducerConfig holds the thresholds used to classify uncertainty.
type ProducerConfig struct {
	UncertaintyThreshold   float32 // below this the step is KindLow (matches builder threshold)
	MissingFactsConfidence float32 // confidence below this → KindMissingFacts
	ValueConflictGap       float32 // |character - affect| at or above this → KindValueAmbiguity
	LogicFloor             float32 // logic channel below this → KindUnclearCausality
	PathwaySpread          float32 // channel spread at or below this → KindMultiplePathways
	MaxContextLen          int     // max chars of provider context merged into a question
}

// DefaultProducerConfig returns sensible defaults.
func DefaultProducerConfig() ProducerConfig {
	return ProducerConfig{
		UncertaintyThreshold:   0.7,
		MissingFactsConfidence: 0.3,
		ValueConflictGap:       3.0,
		LogicFloor:             3.5,
		PathwaySpread:          1.0,
		MaxContextLen:          600,
	}
}

// #endregion config

// #region input

// ProduceInput is the state of the step about to be extended.
type ProduceInput struct {
	Problem     string
	Tensor      tensor.Semantic
	Confidence  float32
	Uncertainty float32
	StepIndex   int
}

// Question is a targeted oracle question with its classification.
type Question struct {
	Text    string
	Kind    state.UncertaintyKind
	Context tensor.Semantic
}

// #endregion input

package builder

import (
	"context"
	"time"

	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/drift"
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/signals"
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/state"
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/update"
)

// #region strategy

// Strategy builds one reasoning chain for a task. An outer router may hold several
// strategies interchangeably.
type Strategy interface {
	Name() string
	Build(ctx context.Context, req Request) (state.Chain, error)
}

// Request is one build invocation.
type Request struct {
	Task    state.Task
	Epsilon float32 // probability of consulting the oracle regardless of uncertainty
	Seed    uint64  // seeds the exploration RNG; equal seeds give equal chains
}

// #endregion strategy

// #region config

// Config holds chain builder parameters.
type Config struct {
	MaxSteps               int
	OracleTimeout          time.Duration
	UncertaintyThreshold   float32 // above this the step consults the oracle
	ConvergenceUncertainty float32
	ConvergenceConfidence  float32
	ConvergenceAnchors     int // distinct anchors hit that end the chain early

	// Initial state for tasks that carry none.
	InitialConfidence  float32
	InitialUncertainty float32

	Update  update.Config
	Drift   drift.Config
	Signals signals.ProducerConfig
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxSteps:               12,
		OracleTimeout:          15 * time.Second,
		UncertaintyThreshold:   0.7,
		ConvergenceUncertainty: 0.35,
		ConvergenceConfidence:  0.65,
		ConvergenceAnchors:     2,
		InitialConfidence:      0.5,
		InitialUncertainty:     0.8,
		Update:                 update.DefaultConfig(),
		Drift:                  drift.DefaultConfig(),
		Signals:                signals.DefaultProducerConfig(),
	}
}

// #endregion config

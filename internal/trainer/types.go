package trainer

import (
	"context"

	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/state"
)

// #region config

// Config holds trainer parameters.
type Config struct {
	MaxSteps                  int     // reward length normalizer; match the builder's MaxSteps
	DiscoveryBufferSwitchSize int     // Discovery experiences before switching to Alignment
	EpsilonDiscovery          float32 // exploration rate during Discovery
	EpsilonAlignment          float32 // exploration rate during Alignment
	TauStore                  float32 // minimum aggregate confidence for a store save
	BufferCapacity            int     // ring buffer size
	Concurrency               int     // parallel builds (1 = sequential)
	Seed                      uint64  // base seed; iteration i builds with Seed+i
	WarmStart                 int     // experiences loaded from the store before the first run
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		MaxSteps:                  12,
		DiscoveryBufferSwitchSize: 3,
		EpsilonDiscovery:          0.25,
		EpsilonAlignment:          0.05,
		TauStore:                  0.6,
		BufferCapacity:            256,
		Concurrency:               1,
		Seed:                      1,
		WarmStart:                 0,
	}
}

// #endregion config

// #region results

// Result is the outcome of one training iteration.
type Result struct {
	Iteration           int         `json:"iteration"`
	Stage               state.Stage `json:"stage"`
	Epsilon             float32     `json:"epsilon"`
	TaskID              string      `json:"task_id"`
	ChainID             string      `json:"chain_id"`
	Steps               int         `json:"steps"`
	AggregateConfidence float32     `json:"aggregate_confidence"`
	Passed              bool        `json:"passed"`
	Reward              float32     `json:"reward"`
	Stored              bool        `json:"stored"`
}

// StageAverage is the running reward mean of one stage.
type StageAverage struct {
	Mean  float32 `json:"mean"`
	Count int     `json:"count"`
}

// Snapshot is an immutable view of trainer progress. Readers load it atomically
// and never block the collector.
type Snapshot struct {
	Stage      state.Stage                  `json:"stage"`
	Iterations int                          `json:"iterations"`
	BufferLen  int                          `json:"buffer_len"`
	WarmStart  int                          `json:"warm_start"`
	Averages   map[state.Stage]StageAverage `json:"averages"`
}

// Report is what Run returns: per-iteration results ordered by iteration and the
// snapshot taken after the last one was collected.
type Report struct {
	Results  []Result `json:"results"`
	Snapshot Snapshot `json:"snapshot"`
}

// #endregion results

// #region provenance

// Provenance records the trainer's keep/discard decision for each experience.
type Provenance interface {
	Record(ctx context.Context, exp state.Experience, stored bool) error
}

// #endregion provenance

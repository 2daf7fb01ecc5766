package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/position"
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/state"
)

// #region config

// PrometheusConfig names the exported metrics.
type PrometheusConfig struct {
	Namespace     string
	Subsystem     string
	RewardBuckets []float64
	// Registry receives the collectors. Nil means prometheus.DefaultRegisterer.
	Registry prometheus.Registerer
}

// DefaultPrometheusConfig returns sensible defaults.
func DefaultPrometheusConfig() PrometheusConfig {
	return PrometheusConfig{
		Namespace:     "reasoner",
		Subsystem:     "chain",
		RewardBuckets: prometheus.LinearBuckets(0, 0.15, 11),
	}
}

// #endregion config

// #region prometheus-sink

// Prometheus exports reasoning events as Prometheus metrics.
type Prometheus struct {
	steps         prometheus.Counter
	oracleCalls   *prometheus.CounterVec
	anchorHits    *prometheus.CounterVec
	driftFlags    prometheus.Counter
	interventions prometheus.Counter
	verifications *prometheus.CounterVec
	rewards       *prometheus.HistogramVec
}

// NewPrometheus creates and registers the collectors. A collector already
// registered under the same name is reused.
func NewPrometheus(config PrometheusConfig) (*Prometheus, error) {
	if config.Namespace == "" {
		return nil, errors.New("prometheus namespace is required")
	}
	reg := config.Registry
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	buckets := config.RewardBuckets
	if len(buckets) == 0 {
		buckets = DefaultPrometheusConfig().RewardBuckets
	}

	p := &Prometheus{
		steps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "steps_total",
			Help:      "Reasoning steps taken.",
		}),
		oracleCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "oracle_calls_total",
			Help:      "Oracle round-trips by outcome.",
		}, []string{"outcome"}),
		anchorHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "anchor_hits_total",
			Help:      "Steps whose dominant anchor influence was a hit, by anchor.",
		}, []string{"anchor"}),
		driftFlags: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "drift_flags_total",
			Help:      "Steps flagged by the drift detector.",
		}),
		interventions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "drift_interventions_total",
			Help:      "Drift repairs applied at anchor steps.",
		}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "verifications_total",
			Help:      "Chain verifications by result.",
		}, []string{"result"}),
		rewards: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "reward",
			Help:      "Trainer reward per chain, by stage.",
			Buckets:   buckets,
		}, []string{"stage"}),
	}

	if err := register(reg, &p.steps); err != nil {
		return nil, err
	}
	if err := register(reg, &p.oracleCalls); err != nil {
		return nil, err
	}
	if err := register(reg, &p.anchorHits); err != nil {
		return nil, err
	}
	if err := register(reg, &p.driftFlags); err != nil {
		return nil, err
	}
	if err := register(reg, &p.interventions); err != nil {
		return nil, err
	}
	if err := register(reg, &p.verifications); err != nil {
		return nil, err
	}
	if err := register(reg, &p.rewards); err != nil {
		return nil, err
	}
	return p, nil
}

// register adds c to reg, swapping in the existing collector on a duplicate.
func register[C prometheus.Collector](reg prometheus.Registerer, c *C) error {
	if err := reg.Register(*c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				*c = existing
				return nil
			}
		}
		return fmt.Errorf("register collector: %w", err)
	}
	return nil
}

func (p *Prometheus) StepTaken() { p.steps.Inc() }

func (p *Prometheus) OracleCall(outcome string) {
	p.oracleCalls.WithLabelValues(outcome).Inc()
}

func (p *Prometheus) AnchorHit(anchor position.Position) {
	if position.IsAnchor(anchor) {
		p.anchorHits.WithLabelValues(anchor.String()).Inc()
	}
}

func (p *Prometheus) DriftFlagged() { p.driftFlags.Inc() }

func (p *Prometheus) InterventionApplied() { p.interventions.Inc() }

func (p *Prometheus) Verified(passed bool) {
	result := "fail"
	if passed {
		result = "pass"
	}
	p.verifications.WithLabelValues(result).Inc()
}

func (p *Prometheus) Rewarded(stage state.Stage, reward float32) {
	p.rewards.WithLabelValues(string(stage)).Observe(float64(reward))
}

// #endregion prometheus-sink

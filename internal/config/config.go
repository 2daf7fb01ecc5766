package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/builder"
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/drift"
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/experience"
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/retrieval"
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/trainer"
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/verify"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

var validate = validator.New()

// #region config

// Config is the full set of recognized options. Components derive their own typed
// configs from it and never read it directly.
type Config struct {
	MaxSteps               int           `yaml:"max_steps" json:"max_steps" validate:"gte=1,lte=256"`
	OracleTimeout          time.Duration `yaml:"oracle_timeout" json:"oracle_timeout" validate:"gt=0"`
	UncertaintyThreshold   float32       `yaml:"uncertainty_threshold" json:"uncertainty_threshold" validate:"gte=0,lte=1"`
	ConvergenceUncertainty float32       `yaml:"convergence_uncertainty" json:"convergence_uncertainty" validate:"gte=0,lte=1"`
	ConvergenceConfidence  float32       `yaml:"convergence_confidence" json:"convergence_confidence" validate:"gte=0,lte=1"`
	ConvergenceAnchors     int           `yaml:"convergence_anchors" json:"convergence_anchors" validate:"gte=0,lte=3"`

	DriftWindowSize          int     `yaml:"drift_window_size" json:"drift_window_size" validate:"gte=3,lte=64"`
	DriftComponents          int     `yaml:"drift_components" json:"drift_components" validate:"gte=1,lte=5"`
	DriftConfidenceThreshold float32 `yaml:"drift_confidence_threshold" json:"drift_confidence_threshold" validate:"gte=0,lte=1"`
	DriftDivergenceThreshold float32 `yaml:"drift_divergence_threshold" json:"drift_divergence_threshold" validate:"gt=0,lte=1"`
	MagnificationFactor      float32 `yaml:"magnification_factor" json:"magnification_factor" validate:"gte=1.3,lte=2.0"`

	Verification Verification `yaml:"verification" json:"verification"`

	DiscoveryBufferSwitchSize int     `yaml:"discovery_buffer_switch_size" json:"discovery_buffer_switch_size" validate:"gte=1,lte=1000"`
	EpsilonDiscovery          float32 `yaml:"epsilon_discovery" json:"epsilon_discovery" validate:"gte=0,lte=1"`
	EpsilonAlignment          float32 `yaml:"epsilon_alignment" json:"epsilon_alignment" validate:"gte=0,lte=1"`
	TauStore                  float32 `yaml:"tau_store" json:"tau_store" validate:"gte=0,lte=1"`
	BufferCapacity            int     `yaml:"buffer_capacity" json:"buffer_capacity" validate:"gte=1"`
	Concurrency               int     `yaml:"concurrency" json:"concurrency" validate:"gte=1,lte=64"`
	Seed                      uint64  `yaml:"seed" json:"seed"`
	WarmStart                 int     `yaml:"warm_start" json:"warm_start" validate:"gte=0"`

	Oracle    Oracle    `yaml:"oracle" json:"oracle"`
	Store     Store     `yaml:"store" json:"store"`
	Retrieval Retrieval `yaml:"retrieval" json:"retrieval"`
	Log       Log       `yaml:"log" json:"log"`
}

// Verification selects a preset and optional constant overrides.
type Verification struct {
	Preset    string         `yaml:"preset" json:"preset" validate:"oneof=lenient balanced strict"`
	Overrides map[string]any `yaml:"overrides" json:"overrides"`
}

// Oracle configures the remote oracle. An empty address runs without one.
type Oracle struct {
	Address   string  `yaml:"address" json:"address" validate:"omitempty,hostname_port"`
	RateLimit float64 `yaml:"rate_limit" json:"rate_limit" validate:"gte=0"`
	Burst     int     `yaml:"burst" json:"burst" validate:"gte=1"`
}

// Store configures the experience store and the provenance log.
type Store struct {
	Driver     string `yaml:"driver" json:"driver" validate:"oneof=memory sqlite redis"`
	DSN        string `yaml:"dsn" json:"dsn" validate:"required_unless=Driver memory"`
	Provenance bool   `yaml:"provenance" json:"provenance"`
}

// Retrieval configures the experience-backed context provider.
type Retrieval struct {
	Enabled   bool    `yaml:"enabled" json:"enabled"`
	TopK      int     `yaml:"top_k" json:"top_k" validate:"gte=1"`
	MinReward float32 `yaml:"min_reward" json:"min_reward" validate:"gte=0"`
}

// Log configures the process logger.
type Log struct {
	Level  string `yaml:"level" json:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" json:"format" validate:"oneof=text json"`
}

// #endregion config

// #region defaults

// Default returns the production defaults.
func Default() Config {
	b := builder.DefaultConfig()
	d := drift.DefaultConfig()
	t := trainer.DefaultConfig()
	r := retrieval.DefaultConfig()
	return Config{
		MaxSteps:                  b.MaxSteps,
		OracleTimeout:             b.OracleTimeout,
		UncertaintyThreshold:      b.UncertaintyThreshold,
		ConvergenceUncertainty:    b.ConvergenceUncertainty,
		ConvergenceConfidence:     b.ConvergenceConfidence,
		ConvergenceAnchors:        b.ConvergenceAnchors,
		DriftWindowSize:           d.WindowSize,
		DriftComponents:           d.Components,
		DriftConfidenceThreshold:  d.ConfidenceThreshold,
		DriftDivergenceThreshold:  d.DivergenceThreshold,
		MagnificationFactor:       d.Magnification,
		Verification:              Verification{Preset: verify.PresetBalanced},
		DiscoveryBufferSwitchSize: t.DiscoveryBufferSwitchSize,
		EpsilonDiscovery:          t.EpsilonDiscovery,
		EpsilonAlignment:          t.EpsilonAlignment,
		TauStore:                  t.TauStore,
		BufferCapacity:            t.BufferCapacity,
		Concurrency:               t.Concurrency,
		Seed:                      t.Seed,
		WarmStart:                 t.WarmStart,
		Oracle:                    Oracle{Burst: 1},
		Store:                     Store{Driver: experience.DriverMemory},
		Retrieval:                 Retrieval{TopK: r.TopK, MinReward: r.MinReward},
		Log:                       Log{Level: "info", Format: "text"},
	}
}

// #endregion defaults

// #region load

// Load overlays the YAML (or JSON) file at path onto Default, applies REASONER_*
// environment overrides and validates. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := Parse(data, &cfg); err != nil {
			return cfg, err
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Parse decodes YAML into cfg, falling back to JSON. Fields absent from data keep
// their current values.
func Parse(data []byte, cfg *Config) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
			return fmt.Errorf("parse config (tried YAML and JSON): YAML error: %v, JSON error: %w", err, jsonErr)
		}
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("REASONER_ORACLE_ADDRESS"); v != "" {
		cfg.Oracle.Address = v
	}
	if v := os.Getenv("REASONER_STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("REASONER_STORE_DSN"); v != "" {
		cfg.Store.DSN = v
	}
	if v := os.Getenv("REASONER_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("REASONER_CONCURRENCY"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Concurrency = i
		}
	}
}

// Validate checks field ranges and that verification overrides resolve.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if c.EpsilonAlignment > c.EpsilonDiscovery {
		return fmt.Errorf("%w: epsilon_alignment %.2f exceeds epsilon_discovery %.2f",
			ErrInvalid, c.EpsilonAlignment, c.EpsilonDiscovery)
	}
	if _, err := verify.Resolve(c.Verification.Preset, c.Verification.Overrides); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// #endregion load

// #region derive

// Drift returns the drift detector config.
func (c Config) Drift() drift.Config {
	d := drift.DefaultConfig()
	d.WindowSize = c.DriftWindowSize
	d.Components = c.DriftComponents
	d.ConfidenceThreshold = c.DriftConfidenceThreshold
	d.DivergenceThreshold = c.DriftDivergenceThreshold
	d.Magnification = c.MagnificationFactor
	return d
}

// Builder returns the chain builder config.
func (c Config) Builder() builder.Config {
	b := builder.DefaultConfig()
	b.MaxSteps = c.MaxSteps
	b.OracleTimeout = c.OracleTimeout
	b.UncertaintyThreshold = c.UncertaintyThreshold
	b.ConvergenceUncertainty = c.ConvergenceUncertainty
	b.ConvergenceConfidence = c.ConvergenceConfidence
	b.ConvergenceAnchors = c.ConvergenceAnchors
	b.Drift = c.Drift()
	return b
}

// Verifier builds the verifier for the configured preset and overrides.
func (c Config) Verifier() (*verify.Verifier, error) {
	return verify.NewPreset(c.Verification.Preset, c.Verification.Overrides, c.Drift())
}

// Trainer returns the trainer config.
func (c Config) Trainer() trainer.Config {
	return trainer.Config{
		MaxSteps:                  c.MaxSteps,
		DiscoveryBufferSwitchSize: c.DiscoveryBufferSwitchSize,
		EpsilonDiscovery:          c.EpsilonDiscovery,
		EpsilonAlignment:          c.EpsilonAlignment,
		TauStore:                  c.TauStore,
		BufferCapacity:            c.BufferCapacity,
		Concurrency:               c.Concurrency,
		Seed:                      c.Seed,
		WarmStart:                 c.WarmStart,
	}
}

// RetrievalConfig returns the context provider config.
func (c Config) RetrievalConfig() retrieval.Config {
	r := retrieval.DefaultConfig()
	r.TopK = c.Retrieval.TopK
	r.MinReward = c.Retrieval.MinReward
	return r
}

// #endregion derive

package replay

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/builder"
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/oracle"
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/state"
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/verify"
)

// #region fixture-types

// Fixture is a recorded set of tasks with scripted oracle answers and the verdicts
// they are expected to produce.
type Fixture struct {
	Description string         `json:"description" yaml:"description"`
	Preset      string         `json:"preset" yaml:"preset"`
	Overrides   map[string]any `json:"overrides,omitempty" yaml:"overrides,omitempty"`
	Config      FixtureConfig  `json:"config" yaml:"config"`
	Cases       []FixtureCase  `json:"cases" yaml:"cases"`
}

// FixtureConfig overrides builder parameters for the run. Zero values keep the base.
type FixtureConfig struct {
	MaxSteps             int     `json:"max_steps,omitempty" yaml:"max_steps,omitempty"`
	UncertaintyThreshold float32 `json:"uncertainty_threshold,omitempty" yaml:"uncertainty_threshold,omitempty"`
	ConvergenceAnchors   *int    `json:"convergence_anchors,omitempty" yaml:"convergence_anchors,omitempty"`
	Epsilon              float32 `json:"epsilon,omitempty" yaml:"epsilon,omitempty"`
	Seed                 uint64  `json:"seed,omitempty" yaml:"seed,omitempty"`
}

// FixtureCase is one task replayed through the builder and verifier.
type FixtureCase struct {
	Task           state.Task      `json:"task" yaml:"task"`
	Answers        []oracle.Answer `json:"answers,omitempty" yaml:"answers,omitempty"`
	ExpectedPassed *bool           `json:"expected_passed,omitempty" yaml:"expected_passed,omitempty"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads a fixture file. .yaml and .yml files are parsed as YAML,
// everything else as JSON.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &f)
	default:
		err = json.Unmarshal(data, &f)
	}
	if err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	if len(f.Cases) == 0 {
		return nil, fmt.Errorf("fixture %s has no cases", path)
	}
	return &f, nil
}

// BuilderConfig applies the fixture's overrides to base.
func (f *Fixture) BuilderConfig(base builder.Config) builder.Config {
	if f.Config.MaxSteps > 0 {
		base.MaxSteps = f.Config.MaxSteps
	}
	if f.Config.UncertaintyThreshold > 0 {
		base.UncertaintyThreshold = f.Config.UncertaintyThreshold
	}
	if f.Config.ConvergenceAnchors != nil {
		base.ConvergenceAnchors = *f.Config.ConvergenceAnchors
	}
	return base
}

// Verifier builds the fixture's verifier. An empty preset means balanced.
func (f *Fixture) Verifier(base builder.Config) (*verify.Verifier, error) {
	preset := f.Preset
	if preset == "" {
		preset = verify.PresetBalanced
	}
	return verify.NewPreset(preset, f.Overrides, base.Drift)
}

// #endregion fixture-loader

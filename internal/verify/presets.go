package verify

import (
	"fmt"
	"sort"

	"github.com/mitchellh/mapstructure"
)

// #region constants

// Constants are the numeric thresholds of one verification preset.
type Constants struct {
	MaxJump             float32 `mapstructure:"max_jump" yaml:"max_jump" json:"max_jump"`
	MinConfidence       float32 `mapstructure:"min_confidence" yaml:"min_confidence" json:"min_confidence"`
	AnchorMinConfidence float32 `mapstructure:"anchor_min_confidence" yaml:"anchor_min_confidence" json:"anchor_min_confidence"`
	ColdStartAllowance  float32 `mapstructure:"cold_start_allowance" yaml:"cold_start_allowance" json:"cold_start_allowance"`
	ColdStartSteps      int     `mapstructure:"cold_start_steps" yaml:"cold_start_steps" json:"cold_start_steps"`
}

// Preset names.
const (
	PresetLenient  = "lenient"
	PresetBalanced = "balanced"
	PresetStrict   = "strict"
	PresetCustom   = "custom"
)

var presets = map[string]Constants{
	PresetLenient: {
		MaxJump:             5.0,
		MinConfidence:       0.30,
		AnchorMinConfidence: 0.40,
		ColdStartAllowance:  0.30,
		ColdStartSteps:      3,
	},
	PresetBalanced: {
		MaxJump:             3.5,
		MinConfidence:       0.40,
		AnchorMinConfidence: 0.55,
		ColdStartAllowance:  0.30,
		ColdStartSteps:      3,
	},
	PresetStrict: {
		MaxJump:             2.5,
		MinConfidence:       0.55,
		AnchorMinConfidence: 0.65,
		ColdStartAllowance:  0.20,
		ColdStartSteps:      3,
	},
}

// #endregion constants

// #region lookup

// Preset returns the constants of a named preset.
func Preset(name string) (Constants, error) {
	c, ok := presets[name]
	if !ok {
		return Constants{}, fmt.Errorf("unknown verification preset %q (known: %v)", name, PresetNames())
	}
	return c, nil
}

// PresetNames lists the known presets in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Resolve starts from a named preset and decodes overrides on top of it. Unknown
// override keys are an error; numeric strings are accepted.
func Resolve(name string, overrides map[string]any) (Constants, error) {
	c, err := Preset(name)
	if err != nil {
		return Constants{}, err
	}
	if len(overrides) == 0 {
		return c, nil
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &c,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return Constants{}, fmt.Errorf("build override decoder: %w", err)
	}
	if err := dec.Decode(overrides); err != nil {
		return Constants{}, fmt.Errorf("decode verification overrides: %w", err)
	}
	if c.MaxJump <= 0 || c.ColdStartSteps < 0 {
		return Constants{}, fmt.Errorf("invalid verification overrides: %+v", c)
	}
	return c, nil
}

// #endregion lookup

// Package astro defines the source and lens populations: their prior
// configuration, the cached quantile tables built from those priors, and
// the samplers that draw event parameters from them.
package astro

import (
	"bytes"
	"fmt"
	"math"
	"os"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// PriorSpec names a distribution model and its parameters. Params values
// arrive untyped from YAML and are coerced when the model is built.
type PriorSpec struct {
	Type   string         `yaml:"type"`
	Params map[string]any `yaml:"params,omitempty"`
}

// PopulationSpec is the top-level population configuration.
// Loaded from YAML via LoadPopulationSpec(path).
type PopulationSpec struct {
	Version   string     `yaml:"version"`
	EventType string     `yaml:"event_type"`
	ZMax      float64    `yaml:"z_max"`
	Source    SourceSpec `yaml:"source"`
	Lens      LensSpec   `yaml:"lens"`
	Grids     GridsSpec  `yaml:"grids,omitempty"`
}

// SourceSpec configures the compact binary source population.
type SourceSpec struct {
	Redshift PriorSpec `yaml:"redshift"`
	Mass     PriorSpec `yaml:"mass"`
}

// LensSpec configures the galaxy lens population.
type LensSpec struct {
	VelocityDispersion PriorSpec `yaml:"velocity_dispersion"`
	AxisRatio          PriorSpec `yaml:"axis_ratio"`
	Shear              PriorSpec `yaml:"shear"`
	Slope              PriorSpec `yaml:"slope"`
}

// GridsSpec sizes the tabulation grids behind the cached quantile tables.
// Zero fields fall back to the package defaults.
type GridsSpec struct {
	RedshiftResolution     int `yaml:"redshift_resolution,omitempty"`
	MassResolution         int `yaml:"mass_resolution,omitempty"`
	SigmaResolution        int `yaml:"sigma_resolution,omitempty"`
	ConditioningResolution int `yaml:"conditioning_resolution,omitempty"` // nodes per conditioning axis
}

// Grid size defaults.
const (
	defaultRedshiftResolution     = 500
	defaultMassResolution         = 300
	defaultSigmaResolution        = 200
	defaultConditioningResolution = 48
)

func (g GridsSpec) redshift() int {
	if g.RedshiftResolution > 0 {
		return g.RedshiftResolution
	}
	return defaultRedshiftResolution
}

func (g GridsSpec) mass() int {
	if g.MassResolution > 0 {
		return g.MassResolution
	}
	return defaultMassResolution
}

func (g GridsSpec) sigma() int {
	if g.SigmaResolution > 0 {
		return g.SigmaResolution
	}
	return defaultSigmaResolution
}

func (g GridsSpec) conditioning() int {
	if g.ConditioningResolution > 0 {
		return g.ConditioningResolution
	}
	return defaultConditioningResolution
}

// Valid value registries.
var (
	validEventTypes = map[string]bool{
		"bbh": true, "bns": true,
	}
	validRedshiftModels = map[string]bool{
		"oguri2018": true, "uniform_comoving": true,
	}
	validMassModels = map[string]bool{
		"powerlaw_peak": true, "uniform_pair": true,
	}
	validVelDispModels = map[string]bool{
		"gengamma": true, "gengamma_evolving": true,
	}
	validAxisRatioModels = map[string]bool{
		"rayleigh": true,
	}
	validShearModels = map[string]bool{
		"normal": true, "none": true,
	}
	validSlopeModels = map[string]bool{
		"normal": true, "constant": true,
	}
)

// LoadPopulationSpec reads and parses a YAML population specification.
// Uses strict parsing: unrecognized keys (typos) are rejected.
func LoadPopulationSpec(path string) (*PopulationSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading population spec: %w", err)
	}
	var spec PopulationSpec
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&spec); err != nil {
		return nil, fmt.Errorf("parsing population spec: %w", err)
	}
	return &spec, nil
}

// Validate checks that all fields in the spec are valid.
func (s *PopulationSpec) Validate() error {
	if !validEventTypes[s.EventType] {
		return fmt.Errorf("unknown event_type %q; valid: bbh, bns", s.EventType)
	}
	if s.ZMax <= 0 || math.IsNaN(s.ZMax) || math.IsInf(s.ZMax, 0) {
		return fmt.Errorf("z_max must be positive and finite, got %f", s.ZMax)
	}
	checks := []struct {
		name  string
		prior PriorSpec
		reg   map[string]bool
		valid string
	}{
		{"source.redshift", s.Source.Redshift, validRedshiftModels, "oguri2018, uniform_comoving"},
		{"source.mass", s.Source.Mass, validMassModels, "powerlaw_peak, uniform_pair"},
		{"lens.velocity_dispersion", s.Lens.VelocityDispersion, validVelDispModels, "gengamma, gengamma_evolving"},
		{"lens.axis_ratio", s.Lens.AxisRatio, validAxisRatioModels, "rayleigh"},
		{"lens.shear", s.Lens.Shear, validShearModels, "normal, none"},
		{"lens.slope", s.Lens.Slope, validSlopeModels, "normal, constant"},
	}
	for _, c := range checks {
		if err := validatePrior(c.name, c.prior, c.reg, c.valid); err != nil {
			return err
		}
	}
	return nil
}

func validatePrior(prefix string, p PriorSpec, registry map[string]bool, valid string) error {
	if !registry[p.Type] {
		return fmt.Errorf("%s: unknown model %q; valid: %s", prefix, p.Type, valid)
	}
	for name, raw := range p.Params {
		val, err := cast.ToFloat64E(raw)
		if err != nil {
			return fmt.Errorf("%s.params.%s must be numeric, got %v", prefix, name, raw)
		}
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return fmt.Errorf("%s.params.%s must be a finite number, got %f", prefix, name, val)
		}
	}
	return nil
}

// floatParam pulls a required numeric parameter from a prior, coercing
// YAML's int and string variants.
func floatParam(prefix string, p PriorSpec, name string) (float64, error) {
	raw, ok := p.Params[name]
	if !ok {
		return 0, fmt.Errorf("%s: model %q missing required param %q", prefix, p.Type, name)
	}
	val, err := cast.ToFloat64E(raw)
	if err != nil {
		return 0, fmt.Errorf("%s.params.%s: %w", prefix, name, err)
	}
	return val, nil
}

// floatParamOr pulls an optional numeric parameter, falling back to def.
func floatParamOr(prefix string, p PriorSpec, name string, def float64) (float64, error) {
	if _, ok := p.Params[name]; !ok {
		return def, nil
	}
	return floatParam(prefix, p, name)
}

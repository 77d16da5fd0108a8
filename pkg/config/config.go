// Package config provides configuration loading and management for the
// leakage-correction pipeline. It handles loading configuration from YAML
// files, fills unset fields from struct-tag defaults, and validates the
// physical ranges of every scalar before the pipeline runs.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/Chih-Hsein/Leakage-correction/pkg/dce"
	"github.com/Chih-Hsein/Leakage-correction/pkg/dsc"
	"github.com/Chih-Hsein/Leakage-correction/pkg/nlsfit"
)

var validate = validator.New()

// Config represents the application configuration loaded from YAML. The
// defaults reproduce the reference acquisition, so an absent or empty file
// runs the embedded dataset unchanged.
type Config struct {
	// DCE acquisition parameters
	DCE struct {
		// TR is the repetition time of the DCE sequence in seconds
		TR float64 `yaml:"tr" default:"0.0027" validate:"gt=0"`

		// FlipAngleDeg is the excitation flip angle in degrees
		FlipAngleDeg float64 `yaml:"flipAngleDeg" default:"25" validate:"gt=0,lte=90"`

		// T10Tissue is the measured pre-contrast tissue T1 in seconds
		T10Tissue float64 `yaml:"t10Tissue" default:"1.98" validate:"gt=0"`
	} `yaml:"dce"`

	// DSC acquisition parameters
	DSC struct {
		// TR is the repetition time of the DSC sequence in seconds
		TR float64 `yaml:"tr" default:"1.5" validate:"gt=0"`

		// TE is the echo time of the DSC sequence in seconds
		TE float64 `yaml:"te" default:"0.035" validate:"gt=0"`

		// FlipAngleDeg is the excitation flip angle in degrees
		FlipAngleDeg float64 `yaml:"flipAngleDeg" default:"60" validate:"gt=0,lte=90"`
	} `yaml:"dsc"`

	// Contrast agent and blood parameters shared by both sequences
	Contrast struct {
		// R1 is the longitudinal relaxivity of the agent in 1/(s*mM)
		R1 float64 `yaml:"r1" default:"4.5" validate:"gt=0"`

		// R2Blood is the effective transverse relaxivity in whole blood in 1/(s*mM)
		R2Blood float64 `yaml:"r2Blood" default:"87" validate:"gt=0"`

		// Hct is the arterial hematocrit fraction
		Hct float64 `yaml:"hct" default:"0.42" validate:"gte=0,lt=1"`
	} `yaml:"contrast"`

	// Solver parameters applied to both fitting stages
	Solver struct {
		// MaxIterations caps the outer solver iterations per fit
		MaxIterations int `yaml:"maxIterations" default:"200" validate:"gte=1"`

		// ParamTolerance is the parameter-step stopping tolerance
		ParamTolerance float64 `yaml:"paramTolerance" default:"1e-10" validate:"gt=0"`

		// ResidualTolerance is the relative sum-of-squares stopping tolerance
		ResidualTolerance float64 `yaml:"residualTolerance" default:"1e-12" validate:"gt=0"`

		// InitialDamping is the starting Levenberg-Marquardt damping factor
		InitialDamping float64 `yaml:"initialDamping" default:"0.001" validate:"gt=0"`
	} `yaml:"solver"`

	// Output parameters
	Output struct {
		// PlotDir is the directory where rendered charts are written
		PlotDir string `yaml:"plotDir" default:"plots" validate:"required"`

		// Plots controls whether charts are rendered at all
		Plots bool `yaml:"plots" default:"true"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose" default:"true"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration populated from the struct-tag
// defaults, matching the reference acquisition.
func DefaultConfig() (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("error applying default configuration: %w", err)
	}
	return cfg, nil
}

// LoadConfig loads configuration from a YAML file. If the file doesn't
// exist, it returns the default configuration; if it does, fields present in
// the file override the defaults and the merged result is validated.
func LoadConfig(configPath string) (*Config, error) {
	cfg, err := DefaultConfig()
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks every scalar against its physical range.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// SaveConfig saves the configuration to a YAML file.
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the
// specified path.
func CreateDefaultConfigFile(configPath string) error {
	cfg, err := DefaultConfig()
	if err != nil {
		return err
	}
	return SaveConfig(cfg, configPath)
}

// DCEProtocol maps the configuration onto the first-stage protocol scalars.
func (c *Config) DCEProtocol() dce.Protocol {
	return dce.NewProtocol(c.DCE.TR, c.DCE.FlipAngleDeg, c.DCE.T10Tissue,
		c.Contrast.R1, c.Contrast.Hct)
}

// DSCProtocol maps the configuration onto the second-stage protocol scalars.
func (c *Config) DSCProtocol() dsc.Protocol {
	return dsc.NewProtocol(c.DSC.TR, c.DSC.TE, c.DSC.FlipAngleDeg,
		c.Contrast.R1, c.Contrast.R2Blood, c.Contrast.Hct)
}

// SolverOptions maps the configuration onto the solver settings shared by
// both fitting stages.
func (c *Config) SolverOptions() nlsfit.Options {
	return nlsfit.Options{
		MaxIterations:     c.Solver.MaxIterations,
		ParamTolerance:    c.Solver.ParamTolerance,
		ResidualTolerance: c.Solver.ResidualTolerance,
		InitialDamping:    c.Solver.InitialDamping,
	}
}

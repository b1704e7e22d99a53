// Package config provides configuration loading and management for the
// imagefusion command. It handles loading fusion job descriptions from
// YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"imagefusion/pkg/fusion"
	"imagefusion/pkg/raster"
)

// InputImage describes one source raster of a fusion job.
type InputImage struct {
	// Path is the image file to load.
	Path string `yaml:"path"`

	// Tag is the resolution tag the image is stored under, typically
	// "high" or "low".
	Tag string `yaml:"tag"`

	// Date is the integer acquisition date of the image.
	Date int `yaml:"date"`
}

// Config represents a fusion job loaded from YAML.
type Config struct {
	// Inputs lists the source rasters keyed by tag and date.
	Inputs []InputImage `yaml:"inputs"`

	// Algorithm selects the prediction algorithm: "starfm" for the
	// similarity-weighted one, "fitfc" for the regression-enhanced one.
	Algorithm string `yaml:"algorithm"`

	// Fusion holds the algorithm parameters.
	Fusion struct {
		// HighTag and LowTag name the high- and low-resolution inputs.
		HighTag string `yaml:"highTag"`
		LowTag  string `yaml:"lowTag"`

		// RefDates lists one or two reference dates.
		RefDates []int `yaml:"refDates"`

		// PredictArea restricts the output rectangle. A zero-extent
		// area means the full image.
		PredictArea struct {
			X int `yaml:"x"`
			Y int `yaml:"y"`
			W int `yaml:"w"`
			H int `yaml:"h"`
		} `yaml:"predictArea"`

		// WinSize is the search window half-size (odd, >= 1).
		WinSize int `yaml:"winSize"`

		// NumClasses is the number of brightness classes.
		NumClasses int `yaml:"numClasses"`

		// SpectralUncertainty and TemporalUncertainty are the
		// candidate rejection thresholds.
		SpectralUncertainty float64 `yaml:"spectralUncertainty"`
		TemporalUncertainty float64 `yaml:"temporalUncertainty"`

		// CopyOnZeroDiff enables the exact-match fast path.
		CopyOnZeroDiff bool `yaml:"copyOnZeroDiff"`

		// SmoothSlope enables the correlation-weighted slope blend of
		// the regression-enhanced algorithm.
		SmoothSlope bool `yaml:"smoothSlope"`
	} `yaml:"fusion"`

	// Threads is the number of parallel worker bands.
	Threads int `yaml:"threads"`

	// TargetDates lists the dates to predict.
	TargetDates []int `yaml:"targetDates"`

	// Output is the output filename pattern; a %d verb receives the
	// target date.
	Output string `yaml:"output"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Algorithm = "starfm"
	cfg.Fusion.HighTag = "high"
	cfg.Fusion.LowTag = "low"
	cfg.Fusion.WinSize = 25
	cfg.Fusion.NumClasses = 40
	cfg.Fusion.SpectralUncertainty = 0.002
	cfg.Fusion.TemporalUncertainty = 0.002
	cfg.Fusion.CopyOnZeroDiff = true
	cfg.Threads = runtime.NumCPU()
	cfg.Output = "predicted_%d.tif"

	return cfg
}

// LoadConfig loads a fusion job from a YAML file. If the file doesn't
// exist, it returns the default configuration.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

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

	return cfg, nil
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

// FusionOptions maps the configuration to algorithm options. The
// prediction area is left empty when the config does not restrict it;
// callers substitute the full image bounds.
func (c *Config) FusionOptions() fusion.Options {
	a := c.Fusion.PredictArea
	return fusion.Options{
		HighTag:             c.Fusion.HighTag,
		LowTag:              c.Fusion.LowTag,
		RefDates:            append([]int(nil), c.Fusion.RefDates...),
		PredictArea:         raster.Rect{X: a.X, Y: a.Y, W: a.W, H: a.H},
		WinSize:             c.Fusion.WinSize,
		NumClasses:          c.Fusion.NumClasses,
		SpectralUncertainty: c.Fusion.SpectralUncertainty,
		TemporalUncertainty: c.Fusion.TemporalUncertainty,
		CopyOnZeroDiff:      c.Fusion.CopyOnZeroDiff,
		SmoothSlope:         c.Fusion.SmoothSlope,
	}
}

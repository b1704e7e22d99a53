package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Algorithm != "starfm" {
		t.Errorf("expected default algorithm starfm, got %q", cfg.Algorithm)
	}
	if cfg.Fusion.WinSize%2 == 0 || cfg.Fusion.WinSize < 1 {
		t.Errorf("default winSize %d is not odd and positive", cfg.Fusion.WinSize)
	}
	if cfg.Threads < 1 {
		t.Errorf("default thread count %d is not positive", cfg.Threads)
	}
	if !cfg.Fusion.CopyOnZeroDiff {
		t.Error("expected copyOnZeroDiff enabled by default")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("unexpected error for missing file: %v", err)
	}
	if cfg.Algorithm != DefaultConfig().Algorithm {
		t.Error("missing file should yield the default configuration")
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	yaml := `
algorithm: fitfc
threads: 4
targetDates: [3, 5]
output: out_%d.tif
inputs:
  - {path: h1.tif, tag: high, date: 1}
  - {path: l1.tif, tag: low, date: 1}
  - {path: l3.tif, tag: low, date: 3}
fusion:
  highTag: high
  lowTag: low
  refDates: [1]
  winSize: 7
  numClasses: 12
  spectralUncertainty: 0.01
  temporalUncertainty: 0.02
  smoothSlope: true
  predictArea: {x: 2, y: 3, w: 10, h: 8}
`
	path := filepath.Join(t.TempDir(), "job.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Algorithm != "fitfc" {
		t.Errorf("expected algorithm fitfc, got %q", cfg.Algorithm)
	}
	if cfg.Threads != 4 {
		t.Errorf("expected 4 threads, got %d", cfg.Threads)
	}
	if len(cfg.Inputs) != 3 || cfg.Inputs[2].Date != 3 {
		t.Errorf("unexpected inputs: %+v", cfg.Inputs)
	}
	if len(cfg.TargetDates) != 2 || cfg.TargetDates[1] != 5 {
		t.Errorf("unexpected target dates: %v", cfg.TargetDates)
	}
	// Values absent from the file keep their defaults.
	if !cfg.Fusion.CopyOnZeroDiff {
		t.Error("copyOnZeroDiff default should survive partial configs")
	}

	opts := cfg.FusionOptions()
	if opts.WinSize != 7 || opts.NumClasses != 12 {
		t.Errorf("unexpected mapped options: %+v", opts)
	}
	if len(opts.RefDates) != 1 || opts.RefDates[0] != 1 {
		t.Errorf("unexpected reference dates: %v", opts.RefDates)
	}
	if opts.PredictArea.X != 2 || opts.PredictArea.W != 10 {
		t.Errorf("unexpected prediction area: %v", opts.PredictArea)
	}
	if !opts.SmoothSlope {
		t.Error("expected smoothSlope mapped through")
	}
	if err := opts.Validate(); err != nil {
		t.Errorf("mapped options should validate: %v", err)
	}

	// The mapped slice must not alias the config.
	opts.RefDates[0] = 99
	if cfg.Fusion.RefDates[0] != 1 {
		t.Error("FusionOptions must copy the reference dates")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Algorithm = "fitfc"
	cfg.Fusion.RefDates = []int{1, 4}
	cfg.TargetDates = []int{2}

	path := filepath.Join(t.TempDir(), "sub", "job.yaml")
	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	got, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if got.Algorithm != "fitfc" {
		t.Errorf("expected algorithm fitfc, got %q", got.Algorithm)
	}
	if len(got.Fusion.RefDates) != 2 || got.Fusion.RefDates[1] != 4 {
		t.Errorf("unexpected reference dates: %v", got.Fusion.RefDates)
	}
}

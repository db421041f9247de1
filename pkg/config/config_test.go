package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigValues(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Processing.NumCores <= 0 {
		t.Errorf("DefaultConfig NumCores = %d, want > 0", cfg.Processing.NumCores)
	}
	if cfg.Processing.MinImageNumThreshold != 3 {
		t.Errorf("DefaultConfig MinImageNumThreshold = %d, want 3", cfg.Processing.MinImageNumThreshold)
	}
	if cfg.Processing.SequenceThreshold != -1 {
		t.Errorf("DefaultConfig SequenceThreshold = %d, want -1", cfg.Processing.SequenceThreshold)
	}
}

func TestLoadConfigMissingFileReturnsDefault(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig on a missing file returned an error: %v", err)
	}
	if cfg.Processing.Tau != DefaultConfig().Processing.Tau {
		t.Errorf("LoadConfig on a missing file should return the default config")
	}
}

func TestSaveAndLoadConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := DefaultConfig()
	cfg.Processing.WSize = 9
	cfg.Processing.NeighborPasses = 5
	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if loaded.Processing.WSize != 9 {
		t.Errorf("loaded WSize = %d, want 9", loaded.Processing.WSize)
	}
	if loaded.Processing.NeighborPasses != 5 {
		t.Errorf("loaded NeighborPasses = %d, want 5", loaded.Processing.NeighborPasses)
	}
}

func TestCreateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	if err := CreateDefaultConfigFile(path); err != nil {
		t.Fatalf("CreateDefaultConfigFile failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config file to exist at %s: %v", path, err)
	}
}

func TestToPMVSConfigConvertsDegreesToRadians(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Processing.AngleThreshold0Deg = 60
	pc := cfg.ToPMVSConfig(5, 5)
	want := 60 * math.Pi / 180
	if math.Abs(pc.AngleThreshold0-want) > 1e-9 {
		t.Errorf("ToPMVSConfig AngleThreshold0 = %v, want %v", pc.AngleThreshold0, want)
	}
	if pc.Num != 5 || pc.TNum != 5 {
		t.Errorf("ToPMVSConfig Num/TNum = %d/%d, want 5/5", pc.Num, pc.TNum)
	}
}

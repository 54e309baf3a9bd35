package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	if cfg.SurfaceCache.AtlasSize != 4096 {
		t.Errorf("expected atlas size 4096, got %d", cfg.SurfaceCache.AtlasSize)
	}
	if cfg.SurfaceCache.CapturesPerFrame != 300 {
		t.Errorf("expected 300 captures per frame, got %d", cfg.SurfaceCache.CapturesPerFrame)
	}
	if cfg.SurfaceCache.CaptureFactor != 64 {
		t.Errorf("expected capture factor 64, got %d", cfg.SurfaceCache.CaptureFactor)
	}
	if cfg.SurfaceCache.FramesToKeepUnusedPages != 256 {
		t.Errorf("expected 256 frames to keep unused pages, got %d", cfg.SurfaceCache.FramesToKeepUnusedPages)
	}
	if cfg.Scheduler.TexelDensityScale != 100 {
		t.Errorf("expected texel density scale 100, got %f", cfg.Scheduler.TexelDensityScale)
	}
	if cfg.Scheduler.MinCardResolution != 4 {
		t.Errorf("expected min card resolution 4, got %d", cfg.Scheduler.MinCardResolution)
	}
	if cfg.MeshCards.MinSize != 10 {
		t.Errorf("expected mesh cards min size 10, got %f", cfg.MeshCards.MinSize)
	}
	if cfg.MeshCards.MergedMinSurfaceArea != 0.05 {
		t.Errorf("expected merged min surface area 0.05, got %f", cfg.MeshCards.MergedMinSurfaceArea)
	}
	if cfg.Debug.FixedResolution != -1 {
		t.Errorf("expected fixed resolution disabled (-1), got %d", cfg.Debug.FixedResolution)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level info, got %s", cfg.Logging.Level)
	}
}

func TestLoadFromFileMergesOverDefaults(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "config_test")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	path := filepath.Join(tempDir, "radiant.yaml")
	content := []byte(`
surface_cache:
  atlas_size: 2048
scheduler:
  scene_detail: 2.0
logging:
  level: debug
`)
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, path); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.SurfaceCache.AtlasSize != 2048 {
		t.Errorf("expected atlas size 2048 from file, got %d", cfg.SurfaceCache.AtlasSize)
	}
	if cfg.Scheduler.SceneDetail != 2.0 {
		t.Errorf("expected scene detail 2.0 from file, got %f", cfg.Scheduler.SceneDetail)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level debug from file, got %s", cfg.Logging.Level)
	}
	// Untouched values keep their defaults.
	if cfg.SurfaceCache.CapturesPerFrame != 300 {
		t.Errorf("expected default captures per frame 300, got %d", cfg.SurfaceCache.CapturesPerFrame)
	}
	if cfg.MeshCards.MaxLOD != 1 {
		t.Errorf("expected default max LOD 1, got %d", cfg.MeshCards.MaxLOD)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "config_save_test")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	cfg := Default()
	cfg.SurfaceCache.AtlasSize = 1024
	cfg.Debug.StatsAddr = "localhost:7777"

	path := filepath.Join(tempDir, "nested", "radiant.yaml")
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("failed to save config: %v", err)
	}

	loaded := Default()
	if err := loadFromFile(loaded, path); err != nil {
		t.Fatalf("failed to reload config: %v", err)
	}

	if loaded.SurfaceCache.AtlasSize != 1024 {
		t.Errorf("expected atlas size 1024 after round trip, got %d", loaded.SurfaceCache.AtlasSize)
	}
	if loaded.Debug.StatsAddr != "localhost:7777" {
		t.Errorf("expected stats addr localhost:7777, got %s", loaded.Debug.StatsAddr)
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	cfg := Default()
	if err := loadFromFile(cfg, "/nonexistent/radiant.yaml"); err == nil {
		t.Error("expected error for missing config file")
	}
}

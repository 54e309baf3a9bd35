package surfacecache

import "testing"

func TestRefreshTexelBudgetTracksCaptureAtlas(t *testing.T) {
	cfg := DefaultConfig()

	// 4096 atlas with capture factor 64 gives a 512x512 capture atlas.
	capture := cfg.CaptureAtlasSize()
	if capture.X != 512 || capture.Y != 512 {
		t.Fatalf("expected a 512x512 capture atlas, got %dx%d", capture.X, capture.Y)
	}
	want := int64(float64(cfg.RefreshFraction) * 512 * 512)
	if got := cfg.RefreshTexelBudget(); got != want {
		t.Errorf("expected refresh budget %d, got %d", want, got)
	}

	// A tiny capture atlas still allows one full page per frame.
	cfg.PhysicalAtlasSize = IntPoint{256, 256}
	floor := int64(PhysicalPageSize) * int64(PhysicalPageSize)
	if got := cfg.RefreshTexelBudget(); got != floor {
		t.Errorf("expected one-page floor %d, got %d", floor, got)
	}
}

func TestSceneDetailScalesBudgetsAndCull(t *testing.T) {
	cfg := DefaultConfig()

	if got := cfg.MinCardResolutionClamped(); got != cfg.MinCardResolution {
		t.Errorf("expected min resolution %d at detail 1, got %d", cfg.MinCardResolution, got)
	}
	if got := cfg.MaxTileCapturesPerFrame(); got != cfg.CapturesPerFrame {
		t.Errorf("expected capture budget %d at detail 1, got %d", cfg.CapturesPerFrame, got)
	}

	// Higher detail lowers the resolution bar and raises the budget.
	cfg.SceneDetail = 2
	if got := cfg.MinCardResolutionClamped(); got != 2 {
		t.Errorf("expected min resolution 2 at detail 2, got %d", got)
	}
	if got := cfg.MaxTileCapturesPerFrame(); got != 2*cfg.CapturesPerFrame {
		t.Errorf("expected capture budget %d at detail 2, got %d", 2*cfg.CapturesPerFrame, got)
	}

	// Lower detail does the opposite, and the bar never drops below one.
	cfg.SceneDetail = 0.5
	if got := cfg.MinCardResolutionClamped(); got != 8 {
		t.Errorf("expected min resolution 8 at detail 0.5, got %d", got)
	}
	cfg.SceneDetail = 8
	if got := cfg.MinCardResolutionClamped(); got != 1 {
		t.Errorf("expected min resolution floor 1 at detail 8, got %d", got)
	}
}

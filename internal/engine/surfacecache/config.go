package surfacecache

import "github.com/Faultbox/radiant/pkg/math"

// Config is the per-frame snapshot of every cache tunable. The renderer
// builds one at frame start and passes it through the pipeline so worker
// tasks never read mutable global state.
type Config struct {
	// Physical atlas and capture budgets.
	PhysicalAtlasSize       IntPoint
	CapturesPerFrame        int32
	CaptureFactor           int32
	RefreshFraction         float32
	FramesToKeepUnusedPages uint32
	FeedbackTileSize        int32

	// Visibility and resolution scheduling.
	TexelDensityScale    float32
	MaxTexelDensity      float32
	MinCardResolution    int32
	MaxCardResolution    int32
	MaxDistance          float32
	SceneDetail          float32
	FarFieldTexelDensity float32
	FarFieldDistance     float32
	PrimitivesPerTask    int
	MeshCardsPerTask     int
	Parallel             bool

	// Card generation.
	MinCardSize           float32
	MaxLOD                int32
	MergedMinSurfaceArea  float32
	MergedResolutionScale float32
	MergedMaxWorldSize    float32

	// Debug overrides.
	FixedResolution   int32
	FreezeUpdates     bool
	ResetEveryNFrames int32
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		PhysicalAtlasSize:       IntPoint{4096, 4096},
		CapturesPerFrame:        300,
		CaptureFactor:           64,
		RefreshFraction:         0.125,
		FramesToKeepUnusedPages: 256,
		FeedbackTileSize:        16,

		TexelDensityScale:    100,
		MaxTexelDensity:      0.2,
		MinCardResolution:    4,
		MaxCardResolution:    512,
		MaxDistance:          20000,
		SceneDetail:          1,
		FarFieldTexelDensity: 0.001,
		FarFieldDistance:     40000,
		PrimitivesPerTask:    128,
		MeshCardsPerTask:     128,

		MinCardSize:           10,
		MaxLOD:                1,
		MergedMinSurfaceArea:  0.05,
		MergedResolutionScale: 0.3,
		MergedMaxWorldSize:    10000,

		FixedResolution: -1,
	}
}

// sceneDetail returns the clamped global detail scale.
func (c *Config) sceneDetail() float32 {
	return math.Clamp(c.SceneDetail, 0.125, 8)
}

// MaxDistanceFromCamera returns the card update distance cutoff.
func (c *Config) MaxDistanceFromCamera() float32 {
	return c.MaxDistance * c.sceneDetail()
}

// MaxTileCapturesPerFrame bounds page captures per frame, scaled by the
// scene detail level.
func (c *Config) MaxTileCapturesPerFrame() int32 {
	if c.CapturesPerFrame < 0 {
		return 0
	}
	return int32(float32(c.CapturesPerFrame) * c.sceneDetail())
}

// MeshCardsToAddPerFrame bounds mesh-cards creation per frame. Adding a
// group is cheaper than capturing it, so the budget is double the capture
// budget.
func (c *Config) MeshCardsToAddPerFrame() int32 {
	return 2 * c.MaxTileCapturesPerFrame()
}

// MinCardResolutionClamped applies the scene detail scale to the minimum
// card resolution: a higher detail level lowers the bar, so smaller and
// more distant cards survive the resolution cull.
func (c *Config) MinCardResolutionClamped() int32 {
	min := int32(float32(c.MinCardResolution)/c.sceneDetail() + 0.5)
	if min < 1 {
		min = 1
	}
	return min
}

// MinFaceSurfaceArea is the card cull threshold. Emissive sources keep
// smaller cards since they act as light sources.
func (c *Config) MinFaceSurfaceArea(emissive bool) float32 {
	area := c.MinCardSize * c.MinCardSize
	if emissive {
		area *= 0.2
	}
	return area
}

// CaptureAtlasSize derives the transient capture atlas edge from the
// physical atlas and the capture factor, rounded up to whole pages.
func (c *Config) CaptureAtlasSize() IntPoint {
	factor := c.CaptureFactor
	if factor < 1 {
		factor = 1
	}
	downscale := math.Sqrt(float32(factor))
	sizeX := int32(math.DivideRoundUp(int32(float32(c.PhysicalAtlasSize.X)/downscale), PhysicalPageSize)) * PhysicalPageSize
	sizeY := int32(math.DivideRoundUp(int32(float32(c.PhysicalAtlasSize.Y)/downscale), PhysicalPageSize)) * PhysicalPageSize
	if sizeX < PhysicalPageSize {
		sizeX = PhysicalPageSize
	}
	if sizeY < PhysicalPageSize {
		sizeY = PhysicalPageSize
	}
	return IntPoint{sizeX, sizeY}
}

// RefreshTexelBudget is the per-frame re-capture budget in texels, a
// fraction of the capture atlas with a one-page floor so refresh never
// stalls completely.
func (c *Config) RefreshTexelBudget() int64 {
	capture := c.CaptureAtlasSize()
	budget := int64(float64(c.RefreshFraction) * float64(int64(capture.X)*int64(capture.Y)))
	if floor := int64(PhysicalPageSize) * int64(PhysicalPageSize); budget < floor {
		budget = floor
	}
	return budget
}

// RefreshPageBudget is the per-frame re-capture budget in pages.
func (c *Config) RefreshPageBudget() int32 {
	budget := int32(c.RefreshFraction * float32(c.MaxTileCapturesPerFrame()))
	if budget < 1 {
		budget = 1
	}
	return budget
}

// Package renderer drives the surface cache frame loop: scene change
// intake, scheduling, capture work, atlas composition and GPU re-pack.
package renderer

import (
	"fmt"

	"github.com/Faultbox/radiant/internal/config"
	"github.com/Faultbox/radiant/internal/engine/atlas"
	"github.com/Faultbox/radiant/internal/engine/capture"
	"github.com/Faultbox/radiant/internal/engine/scene"
	"github.com/Faultbox/radiant/internal/engine/surfacecache"
	"github.com/Faultbox/radiant/internal/logger"
)

// MaxViewsPerCapturePass bounds how many card views one capture pass
// renders.
const MaxViewsPerCapturePass = 64

// FrameOutput is everything one UpdateScene produced.
type FrameOutput struct {
	Update  *surfacecache.CaptureUpdate
	Batches []capture.Batch
	Stats   surfacecache.SceneStats
}

// Renderer owns the per-scene cache state and the atlas compositor.
type Renderer struct {
	scene      *scene.Scene
	data       *surfacecache.SceneData
	compositor *atlas.Compositor
	feedback   surfacecache.FeedbackSource

	appCfg  *config.Config
	buffers surfacecache.GPUBuffers
}

// New wires the cache to a scene and an atlas backend. The backend's
// targets are created on the first UpdateScene.
func New(sc *scene.Scene, appCfg *config.Config, backend atlas.Backend) *Renderer {
	cfg := snapshotConfig(appCfg)
	return &Renderer{
		scene:      sc,
		data:       surfacecache.NewSceneData(cfg.PhysicalAtlasSize),
		compositor: atlas.NewCompositor(backend),
		appCfg:     appCfg,
	}
}

// SetFeedbackSource attaches GPU sampling feedback. Optional.
func (r *Renderer) SetFeedbackSource(src surfacecache.FeedbackSource) {
	r.feedback = src
}

// SceneData exposes the cache registry for debug tooling.
func (r *Renderer) SceneData() *surfacecache.SceneData {
	return r.data
}

// UpdateScene runs one frame of cache maintenance for the given view.
func (r *Renderer) UpdateScene(view *scene.View) (*FrameOutput, error) {
	cfg := snapshotConfig(r.appCfg)
	if err := r.compositor.BeginFrame(&cfg); err != nil {
		return nil, fmt.Errorf("preparing atlas targets: %w", err)
	}

	if cfg.FreezeUpdates {
		// Frozen state still serves lookups and stats, it just stops
		// reacting to the view.
		return &FrameOutput{
			Update: &surfacecache.CaptureUpdate{},
			Stats:  r.data.CollectStats(),
		}, nil
	}

	if cfg.ResetEveryNFrames > 0 &&
		r.data.FrameIndex()%uint32(cfg.ResetEveryNFrames) == 0 {
		r.data.ForceEvictEntireCache()
	}

	r.data.UpdatePrimitives(r.scene.ConsumeChanges(), &cfg)
	r.data.UpdateSurfaceCachePrimitives(view, &cfg)
	requests := r.data.UpdateSurfaceCacheMeshCards(view, &cfg)
	if r.feedback != nil {
		requests = r.data.ApplyFeedback(r.feedback.CollectFeedback(), requests)
	}
	update := r.data.ProcessSurfaceCacheRequests(requests, &cfg)

	batches := capture.BuildCardCaptureDraws(r.data, update, MaxViewsPerCapturePass)
	r.compositor.PrepareCapture(update)
	// Capture passes render the batches into the capture atlas between
	// prepare and composite.
	r.compositor.CompositeCapturedPages(r.data, update)

	ranges := r.data.PackDirty(&r.buffers)
	if hasDirty(ranges) {
		r.compositor.UploadBuffers(&r.buffers, ranges)
	}

	stats := r.data.CollectStats()
	r.data.AdvanceFrame()

	return &FrameOutput{Update: update, Batches: batches, Stats: stats}, nil
}

func hasDirty(ranges surfacecache.DirtyRanges) bool {
	return len(ranges.Cards) > 0 || len(ranges.MeshCards) > 0 ||
		len(ranges.PageTable) > 0 || len(ranges.Heightfields) > 0
}

// Close releases the atlas targets.
func (r *Renderer) Close() {
	logger.Info("closing renderer")
	r.compositor.Release()
}

func snapshotConfig(app *config.Config) surfacecache.Config {
	cfg := surfacecache.DefaultConfig()

	sc := app.SurfaceCache
	cfg.PhysicalAtlasSize = surfacecache.IntPoint{X: int32(sc.AtlasSize), Y: int32(sc.AtlasSize)}
	cfg.CapturesPerFrame = int32(sc.CapturesPerFrame)
	cfg.CaptureFactor = int32(sc.CaptureFactor)
	cfg.RefreshFraction = sc.RefreshFraction
	cfg.FramesToKeepUnusedPages = uint32(sc.FramesToKeepUnusedPages)
	cfg.FeedbackTileSize = int32(sc.FeedbackTileSize)

	sched := app.Scheduler
	cfg.TexelDensityScale = sched.TexelDensityScale
	cfg.MaxTexelDensity = sched.MaxTexelDensity
	cfg.MinCardResolution = int32(sched.MinCardResolution)
	cfg.MaxCardResolution = int32(sched.MaxCardResolution)
	cfg.MaxDistance = sched.MaxDistance
	cfg.SceneDetail = sched.SceneDetail
	cfg.FarFieldTexelDensity = sched.FarFieldTexelDensity
	cfg.FarFieldDistance = sched.FarFieldDistance
	cfg.PrimitivesPerTask = sched.PrimitivesPerTask
	cfg.MeshCardsPerTask = sched.MeshCardsPerTask
	cfg.Parallel = sched.Parallel

	mc := app.MeshCards
	cfg.MinCardSize = mc.MinSize
	cfg.MaxLOD = int32(mc.MaxLOD)
	cfg.MergedMinSurfaceArea = mc.MergedMinSurfaceArea
	cfg.MergedResolutionScale = mc.MergedResolutionScale
	cfg.MergedMaxWorldSize = mc.MergedMaxWorldSize

	dbg := app.Debug
	cfg.FixedResolution = int32(dbg.FixedResolution)
	cfg.FreezeUpdates = dbg.FreezeUpdates
	cfg.ResetEveryNFrames = int32(dbg.ResetEveryNFrames)

	return cfg
}

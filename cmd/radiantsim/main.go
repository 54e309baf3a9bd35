// Package main is the headless surface cache simulator. It flies a
// camera through a synthetic city scene and reports cache behavior.
package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/Faultbox/radiant/internal/config"
	"github.com/Faultbox/radiant/internal/engine/atlas"
	"github.com/Faultbox/radiant/internal/engine/debug"
	"github.com/Faultbox/radiant/internal/engine/renderer"
	"github.com/Faultbox/radiant/internal/engine/scene"
	"github.com/Faultbox/radiant/internal/engine/surfacecache"
	"github.com/Faultbox/radiant/internal/logger"
	"github.com/Faultbox/radiant/pkg/math"
)

var (
	flagFrames   = flag.Int("frames", 600, "Number of frames to simulate")
	flagGridSize = flag.Int("grid", 8, "Buildings per city axis")
)

func main() {
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	opts := logger.Options{Level: cfg.Logging.Level, Console: true}
	if cfg.Logging.LogFile != "" {
		opts.File = logger.DefaultFileConfig(cfg.Logging.LogFile)
	}
	logger.Init(opts)
	defer logger.Sync()

	logger.Info("=== Radiant Simulator ===",
		zap.Int("frames", *flagFrames),
		zap.Int("grid", *flagGridSize),
	)

	sc := scene.New()
	buildCity(sc, *flagGridSize)
	logger.Info("city built", zap.Int("primitives", sc.NumPrimitives()))

	backend := &atlas.NullBackend{}
	r := renderer.New(sc, cfg, backend)
	defer r.Close()

	var stats *debug.StatsServer
	if cfg.Debug.StatsAddr != "" {
		stats = debug.NewStatsServer(cfg.Debug.StatsAddr)
		stats.Start()
		defer stats.Close()
	}

	for frame := 0; frame < *flagFrames; frame++ {
		view := cameraAt(frame, *flagFrames, *flagGridSize)

		out, err := r.UpdateScene(view)
		if err != nil {
			logger.Error("frame failed", zap.Int("frame", frame), zap.Error(err))
			os.Exit(1)
		}

		if stats != nil {
			stats.Publish(out.Stats, out.Update)
		}
		if frame%60 == 0 {
			r.SceneData().DumpStats(out.Update)
		}
	}

	final, err := r.UpdateScene(cameraAt(*flagFrames, *flagFrames, *flagGridSize))
	if err != nil {
		logger.Error("final frame failed", zap.Error(err))
		os.Exit(1)
	}
	r.SceneData().DumpStats(final.Update)
	logger.Info("simulation finished",
		zap.Int("composited", backend.NumCompositedPages),
		zap.Int("resampled", backend.NumResampledPages),
		zap.Int("uploads", backend.NumBufferUploads),
	)
}

// citySpacing is the building grid pitch in world units.
const citySpacing = 400

// buildCity fills the scene with a ground heightfield, a grid of
// buildings and merged prop clusters around every fourth building.
func buildCity(sc *scene.Scene, grid int) {
	half := float32(grid) * citySpacing * 0.5

	sc.AddPrimitive(&scene.Primitive{
		LocalToWorld: math.Identity(),
		LocalBounds:  math.NewBounds(math.Vec3{}, math.Vec3{X: half, Y: half, Z: 50}),
		Heightfield:  true,
		LODs:         []scene.LOD{{ScreenSize: 1, NumBatches: 1}},
	})

	mergeGroup := int32(0)
	for gx := 0; gx < grid; gx++ {
		for gy := 0; gy < grid; gy++ {
			center := math.Vec3{
				X: float32(gx)*citySpacing - half + citySpacing/2,
				Y: float32(gy)*citySpacing - half + citySpacing/2,
			}
			// Deterministic pseudo-random building heights.
			height := float32(80 + (gx*31+gy*17)%120)
			addBuilding(sc, center, 60, height)

			if (gx+gy)%4 == 0 {
				mergeGroup++
				addPropCluster(sc, center, mergeGroup)
			}
		}
	}
}

func addBuilding(sc *scene.Scene, center math.Vec3, footprint, height float32) {
	extent := math.Vec3{X: footprint, Y: footprint, Z: height}
	sc.AddPrimitive(&scene.Primitive{
		LocalToWorld: math.Translate(center.X, center.Y, height),
		LocalBounds:  math.NewBounds(math.Vec3{}, extent),
		CardBuild:    boxCardBuild(extent),
		MergeGroup:   -1,
		LODs:         []scene.LOD{{ScreenSize: 1, NumBatches: 4}, {ScreenSize: 0.2, NumBatches: 1}},
	})
}

// addPropCluster scatters small merged props around a building.
func addPropCluster(sc *scene.Scene, center math.Vec3, mergeGroup int32) {
	offsets := []math.Vec3{
		{X: 120, Y: 90}, {X: -100, Y: 130}, {X: 140, Y: -110}, {X: -130, Y: -80},
	}
	for _, off := range offsets {
		extent := math.Vec3{X: 8, Y: 8, Z: 12}
		sc.AddPrimitive(&scene.Primitive{
			LocalToWorld: math.Translate(center.X+off.X, center.Y+off.Y, extent.Z),
			LocalBounds:  math.NewBounds(math.Vec3{}, extent),
			CardBuild:    boxCardBuild(extent),
			MergeGroup:   mergeGroup,
			LODs:         []scene.LOD{{ScreenSize: 1, NumBatches: 1}},
		})
	}
}

func boxCardBuild(extent math.Vec3) *scene.CardBuildData {
	bounds := math.NewBounds(math.Vec3{}, extent)
	build := &scene.CardBuildData{MaxLOD: 0}
	for dir := int32(0); dir < surfacecache.NumAxisDirections; dir++ {
		build.Cards = append(build.Cards, scene.CardBuildInfo{
			OBB: math.OBB{
				Origin: bounds.Center(),
				AxisX:  math.Vec3{X: 1},
				AxisY:  math.Vec3{Y: 1},
				AxisZ:  math.Vec3{Z: 1},
				Extent: extent,
			},
			DirectionIndex: dir,
		})
	}
	return build
}

// cameraAt flies the camera diagonally across the city.
func cameraAt(frame, totalFrames, grid int) *scene.View {
	half := float32(grid) * citySpacing * 0.5
	t := float32(frame) / float32(totalFrames)
	return &scene.View{Origins: []math.Vec3{{
		X: -half + 2*half*t,
		Y: -half + 2*half*t,
		Z: 400,
	}}}
}

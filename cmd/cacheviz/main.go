// Package main is the interactive atlas viewer. It runs the surface
// cache against a synthetic scene and shows the physical atlas layers.
package main

import (
	"fmt"
	"os"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/veandco/go-sdl2/sdl"
	"go.uber.org/zap"

	"github.com/Faultbox/radiant/internal/config"
	"github.com/Faultbox/radiant/internal/engine/atlas"
	"github.com/Faultbox/radiant/internal/engine/debug"
	"github.com/Faultbox/radiant/internal/engine/renderer"
	"github.com/Faultbox/radiant/internal/engine/scene"
	"github.com/Faultbox/radiant/internal/engine/surfacecache"
	"github.com/Faultbox/radiant/internal/engine/window"
	"github.com/Faultbox/radiant/internal/logger"
	"github.com/Faultbox/radiant/pkg/math"
)

var layerNames = [atlas.NumLayers]string{
	"albedo", "normal", "emissive", "depth", "direct", "indirect",
}

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

	logger.Info("=== Radiant Cache Viewer ===")

	win, err := window.New(window.Config{
		Title:  "radiant cacheviz",
		Width:  cfg.Viewer.Width,
		Height: cfg.Viewer.Height,
		VSync:  cfg.Viewer.VSync,
	})
	if err != nil {
		logger.Error("failed to create window", zap.Error(err))
		os.Exit(1)
	}
	defer win.Close()

	if err := gl.Init(); err != nil {
		logger.Error("failed to initialize OpenGL", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("OpenGL initialized",
		zap.String("version", gl.GoStr(gl.GetString(gl.VERSION))),
		zap.String("renderer", gl.GoStr(gl.GetString(gl.RENDERER))),
	)

	sc := scene.New()
	buildShowcase(sc)

	backend := atlas.NewGLBackend()
	r := renderer.New(sc, cfg, backend)
	defer r.Close()

	var stats *debug.StatsServer
	if cfg.Debug.StatsAddr != "" {
		stats = debug.NewStatsServer(cfg.Debug.StatsAddr)
		stats.Start()
		defer stats.Close()
	}

	layer := atlas.LayerAlbedo
	frame := 0
	running := true
	for running {
		for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
			switch ev := event.(type) {
			case *sdl.QuitEvent:
				running = false
			case *sdl.KeyboardEvent:
				if ev.Type != sdl.KEYDOWN {
					break
				}
				switch ev.Keysym.Sym {
				case sdl.K_ESCAPE:
					running = false
				case sdl.K_SPACE:
					cfg.Debug.FreezeUpdates = !cfg.Debug.FreezeUpdates
					logger.Info("freeze toggled", zap.Bool("frozen", cfg.Debug.FreezeUpdates))
				case sdl.K_r:
					r.SceneData().ForceEvictEntireCache()
				default:
					if ev.Keysym.Sym >= sdl.K_1 && ev.Keysym.Sym < sdl.K_1+atlas.NumLayers {
						layer = int(ev.Keysym.Sym - sdl.K_1)
						win.SetTitle("radiant cacheviz [" + layerNames[layer] + "]")
					}
				}
			}
		}

		out, err := r.UpdateScene(orbitView(frame))
		if err != nil {
			logger.Error("frame failed", zap.Error(err))
			break
		}
		if stats != nil {
			stats.Publish(out.Stats, out.Update)
		}

		w, h := win.GetSize()
		gl.Viewport(0, 0, int32(w), int32(h))
		gl.ClearColor(0.05, 0.05, 0.08, 1)
		gl.Clear(gl.COLOR_BUFFER_BIT)
		backend.BlitPhysicalLayer(layer, int32(w), int32(h))

		win.SwapBuffers()
		frame++
	}
}

// buildShowcase sets up a small scene with every card flavor: a ground
// heightfield, a few buildings and one merged prop cluster.
func buildShowcase(sc *scene.Scene) {
	sc.AddPrimitive(&scene.Primitive{
		LocalToWorld: math.Identity(),
		LocalBounds:  math.NewBounds(math.Vec3{}, math.Vec3{X: 1500, Y: 1500, Z: 40}),
		Heightfield:  true,
		LODs:         []scene.LOD{{ScreenSize: 1, NumBatches: 1}},
	})

	centers := []math.Vec3{
		{X: -400, Y: -200, Z: 120}, {X: 300, Y: 350, Z: 180}, {X: 500, Y: -450, Z: 90},
	}
	for i, center := range centers {
		extent := math.Vec3{X: 60, Y: 60, Z: 80 + float32(i)*40}
		sc.AddPrimitive(&scene.Primitive{
			LocalToWorld: math.Translate(center.X, center.Y, center.Z),
			LocalBounds:  math.NewBounds(math.Vec3{}, extent),
			CardBuild:    boxCardBuild(extent),
			MergeGroup:   -1,
			LODs:         []scene.LOD{{ScreenSize: 1, NumBatches: 2}},
		})
	}

	for _, off := range []math.Vec3{{X: -60, Y: 20}, {X: 40, Y: -50}, {X: 10, Y: 70}} {
		extent := math.Vec3{X: 10, Y: 10, Z: 15}
		sc.AddPrimitive(&scene.Primitive{
			LocalToWorld: math.Translate(off.X, off.Y, extent.Z),
			LocalBounds:  math.NewBounds(math.Vec3{}, extent),
			CardBuild:    boxCardBuild(extent),
			MergeGroup:   1,
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

// orbitView circles the camera around the scene center.
func orbitView(frame int) *scene.View {
	angle := float32(frame) * 0.005
	return &scene.View{Origins: []math.Vec3{{
		X: 900 * math.Cos(angle),
		Y: 900 * math.Sin(angle),
		Z: 400,
	}}}
}

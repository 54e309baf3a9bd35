package renderer

import (
	"testing"

	"github.com/Faultbox/radiant/internal/config"
	"github.com/Faultbox/radiant/internal/engine/atlas"
	"github.com/Faultbox/radiant/internal/engine/scene"
	"github.com/Faultbox/radiant/internal/engine/surfacecache"
	"github.com/Faultbox/radiant/pkg/math"
)

func buildCube(extent float32) *scene.CardBuildData {
	bounds := math.NewBounds(math.Vec3{}, math.Vec3{X: extent, Y: extent, Z: extent})
	build := &scene.CardBuildData{}
	for dir := int32(0); dir < surfacecache.NumAxisDirections; dir++ {
		build.Cards = append(build.Cards, scene.CardBuildInfo{
			OBB: math.OBB{
				Origin: bounds.Center(),
				AxisX:  math.Vec3{X: 1},
				AxisY:  math.Vec3{Y: 1},
				AxisZ:  math.Vec3{Z: 1},
				Extent: math.Vec3{X: extent, Y: extent, Z: extent},
			},
			DirectionIndex: dir,
		})
	}
	return build
}

func addCube(sc *scene.Scene, center math.Vec3, extent float32) int32 {
	return sc.AddPrimitive(&scene.Primitive{
		LocalToWorld: math.Translate(center.X, center.Y, center.Z),
		LocalBounds:  math.NewBounds(math.Vec3{}, math.Vec3{X: extent, Y: extent, Z: extent}),
		CardBuild:    buildCube(extent),
		MergeGroup:   -1,
		LODs:         []scene.LOD{{ScreenSize: 1, NumBatches: 1}},
	})
}

func TestUpdateSceneCapturesAndComposites(t *testing.T) {
	sc := scene.New()
	addCube(sc, math.Vec3{}, 50)

	backend := &atlas.NullBackend{}
	r := New(sc, config.Default(), backend)
	view := &scene.View{Origins: []math.Vec3{{Z: 200}}}

	out, err := r.UpdateScene(view)
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Update.Pages) == 0 {
		t.Fatal("expected capture work on the first frame")
	}
	if len(out.Batches) == 0 {
		t.Error("expected capture draw batches")
	}
	if backend.NumClearedRects != len(out.Update.Pages) {
		t.Errorf("expected %d cleared capture rects, got %d",
			len(out.Update.Pages), backend.NumClearedRects)
	}
	if backend.NumCompositedPages != len(out.Update.Pages) {
		t.Errorf("expected %d composited pages, got %d",
			len(out.Update.Pages), backend.NumCompositedPages)
	}
	if backend.NumBufferUploads == 0 {
		t.Error("expected a lookup buffer upload")
	}
	if out.Stats.NumMappedPages == 0 {
		t.Error("expected mapped pages in stats")
	}

	// A static scene and view settle into pure refresh work.
	settled, err := r.UpdateScene(view)
	if err != nil {
		t.Fatal(err)
	}
	if settled.Update.NumLockedCaptures != 0 {
		t.Errorf("expected no new locked captures on a settled frame, got %d",
			settled.Update.NumLockedCaptures)
	}
	if int(settled.Update.NumRefreshes) != len(settled.Update.Pages) {
		t.Errorf("expected settled frame captures to be refreshes, got %d of %d",
			settled.Update.NumRefreshes, len(settled.Update.Pages))
	}
}

func TestUpdateSceneRemovalReleasesPages(t *testing.T) {
	sc := scene.New()
	id := addCube(sc, math.Vec3{}, 50)

	r := New(sc, config.Default(), &atlas.NullBackend{})
	view := &scene.View{Origins: []math.Vec3{{Z: 200}}}

	if _, err := r.UpdateScene(view); err != nil {
		t.Fatal(err)
	}

	sc.RemovePrimitive(id)
	out, err := r.UpdateScene(view)
	if err != nil {
		t.Fatal(err)
	}
	if out.Stats.NumMappedPages != 0 {
		t.Errorf("expected 0 mapped pages after removal, got %d", out.Stats.NumMappedPages)
	}
	if out.Stats.NumPrimitiveGroups != 0 {
		t.Errorf("expected 0 groups after removal, got %d", out.Stats.NumPrimitiveGroups)
	}
}

func TestFreezeUpdatesStopsTheCache(t *testing.T) {
	sc := scene.New()
	addCube(sc, math.Vec3{}, 50)

	cfg := config.Default()
	r := New(sc, cfg, &atlas.NullBackend{})
	view := &scene.View{Origins: []math.Vec3{{Z: 200}}}

	first, err := r.UpdateScene(view)
	if err != nil {
		t.Fatal(err)
	}

	cfg.Debug.FreezeUpdates = true
	frozen, err := r.UpdateScene(&scene.View{Origins: []math.Vec3{{Z: 5000}}})
	if err != nil {
		t.Fatal(err)
	}
	if len(frozen.Update.Pages) != 0 {
		t.Errorf("expected no captures while frozen, got %d", len(frozen.Update.Pages))
	}
	if frozen.Stats.FrameIndex != first.Stats.FrameIndex+1 {
		t.Errorf("expected frame index to hold at %d, got %d",
			first.Stats.FrameIndex+1, frozen.Stats.FrameIndex)
	}
	if frozen.Stats.NumMappedPages != first.Stats.NumMappedPages {
		t.Errorf("expected mapped pages to hold at %d, got %d",
			first.Stats.NumMappedPages, frozen.Stats.NumMappedPages)
	}
}

func TestResetEveryNFramesRecaptures(t *testing.T) {
	sc := scene.New()
	addCube(sc, math.Vec3{}, 50)

	cfg := config.Default()
	cfg.Debug.ResetEveryNFrames = 1
	r := New(sc, cfg, &atlas.NullBackend{})
	view := &scene.View{Origins: []math.Vec3{{Z: 200}}}

	first, err := r.UpdateScene(view)
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.UpdateScene(view)
	if err != nil {
		t.Fatal(err)
	}
	if len(second.Update.Pages) != len(first.Update.Pages) {
		t.Errorf("expected a full recapture of %d pages, got %d",
			len(first.Update.Pages), len(second.Update.Pages))
	}
}

type stubFeedback struct {
	fb surfacecache.Feedback
}

func (s *stubFeedback) CollectFeedback() surfacecache.Feedback {
	return s.fb
}

func TestFeedbackHiResWantsAreServed(t *testing.T) {
	sc := scene.New()
	addCube(sc, math.Vec3{}, 50)

	r := New(sc, config.Default(), &atlas.NullBackend{})
	view := &scene.View{Origins: []math.Vec3{{Z: 800}}}

	first, err := r.UpdateScene(view)
	if err != nil {
		t.Fatal(err)
	}
	if len(first.Update.Pages) == 0 {
		t.Fatal("expected initial captures")
	}

	cardIndex := first.Update.Pages[0].CardIndex
	card := r.SceneData().Cards.Get(cardIndex)
	r.SetFeedbackSource(&stubFeedback{fb: surfacecache.Feedback{
		HiResWants: []surfacecache.SurfaceCacheRequest{{
			CardIndex:      cardIndex,
			ResLevel:       card.DesiredLockedResLevel + 1,
			LocalPageIndex: 0,
		}},
	}})

	out, err := r.UpdateScene(view)
	if err != nil {
		t.Fatal(err)
	}
	if out.Update.NumHiResCaptures != 1 {
		t.Errorf("expected 1 hi-res capture, got %d", out.Update.NumHiResCaptures)
	}
}

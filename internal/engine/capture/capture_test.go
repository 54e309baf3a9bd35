package capture

import (
	"testing"

	"github.com/Faultbox/radiant/internal/engine/scene"
	"github.com/Faultbox/radiant/internal/engine/surfacecache"
	"github.com/Faultbox/radiant/pkg/math"
)

func buildCube(extent float32) *scene.CardBuildData {
	bounds := math.NewBounds(math.Vec3{}, math.Vec3{X: extent, Y: extent, Z: extent})
	build := &scene.CardBuildData{}
	for dir := int32(0); dir < surfacecache.NumAxisDirections; dir++ {
		build.Cards = append(build.Cards, scene.CardBuildInfo{
			OBB:            math.OBB{Origin: bounds.Center(), AxisX: math.Vec3{X: 1}, AxisY: math.Vec3{Y: 1}, AxisZ: math.Vec3{Z: 1}, Extent: math.Vec3{X: extent, Y: extent, Z: extent}},
			DirectionIndex: dir,
		})
	}
	return build
}

func testScene(t *testing.T, prims []*scene.Primitive) (*surfacecache.SceneData, *surfacecache.CaptureUpdate) {
	t.Helper()
	cfg := surfacecache.DefaultConfig()
	sd := surfacecache.NewSceneData(cfg.PhysicalAtlasSize)
	sd.UpdatePrimitives(scene.Changes{Added: prims}, &cfg)

	view := &scene.View{Origins: []math.Vec3{{Z: 200}}}
	sd.UpdateSurfaceCachePrimitives(view, &cfg)
	requests := sd.UpdateSurfaceCacheMeshCards(view, &cfg)
	update := sd.ProcessSurfaceCacheRequests(requests, &cfg)
	if len(update.Pages) == 0 {
		t.Fatal("expected capture work")
	}
	return sd, update
}

func opaquePrimitive(id int32, extent float32) *scene.Primitive {
	return &scene.Primitive{
		ID:              id,
		LocalToWorld:    math.Identity(),
		LocalBounds:     math.NewBounds(math.Vec3{}, math.Vec3{X: extent, Y: extent, Z: extent}),
		CardBuild:       buildCube(extent),
		MergeGroup:      -1,
		ResolutionScale: 1,
		LODs:            []scene.LOD{{ScreenSize: 1, NumBatches: 1}, {ScreenSize: 0.1, NumBatches: 1}},
	}
}

func TestBuildCardViewCoversCardFace(t *testing.T) {
	var card surfacecache.Card
	card.Initialize(1, math.Identity(), math.OBB{
		AxisX:  math.Vec3{X: 1},
		AxisY:  math.Vec3{Y: 1},
		AxisZ:  math.Vec3{Z: 1},
		Extent: math.Vec3{X: 10, Y: 20, Z: 5},
	}, 0, 0, 5, false)

	page := &surfacecache.CardCapturePageData{
		CardIndex:  7,
		CardUVRect: math.Vec4{0, 0, 1, 1},
	}
	view := BuildCardView(&card, page)

	// The card face corners land on the projection window edges.
	corners := []struct {
		world      math.Vec3
		clipX, clipY float32
	}{
		{math.Vec3{X: -10, Y: 20, Z: 5}, -1, 1},
		{math.Vec3{X: 10, Y: -20, Z: 5}, 1, -1},
	}
	for _, c := range corners {
		clip := view.ProjectionMatrix.Mul(view.ViewMatrix).TransformPoint(c.world)
		if math.Abs(clip.X-c.clipX) > 1e-4 || math.Abs(clip.Y-c.clipY) > 1e-4 {
			t.Errorf("corner %v projected to (%v, %v), want (%v, %v)",
				c.world, clip.X, clip.Y, c.clipX, c.clipY)
		}
	}

	// The far plane reaches through the whole card volume.
	back := view.ProjectionMatrix.Mul(view.ViewMatrix).TransformPoint(math.Vec3{Z: -5})
	if math.Abs(back.Z-1) > 1e-4 {
		t.Errorf("back face projected to depth %v, want 1", back.Z)
	}
}

func TestCaptureLODSelection(t *testing.T) {
	prim := opaquePrimitive(1, 50)
	if lod := captureLOD(prim); lod != 1 {
		t.Errorf("expected coarsest available LOD 1, got %d", lod)
	}

	prim.LODs[1].ScreenSize = 0
	if lod := captureLOD(prim); lod != 0 {
		t.Errorf("expected LOD 0 when LOD 1 is unavailable, got %d", lod)
	}

	prim.Heightfield = true
	prim.LODs[1].ScreenSize = 0.1
	if lod := captureLOD(prim); lod != 0 {
		t.Errorf("expected heightfields pinned to LOD 0, got %d", lod)
	}
}

func TestBuildCardCaptureDrawsBatching(t *testing.T) {
	sd, update := testScene(t, []*scene.Primitive{opaquePrimitive(1, 50)})

	batches := BuildCardCaptureDraws(sd, update, 4)
	var views int
	for _, batch := range batches {
		if len(batch.Views) > 4 {
			t.Errorf("batch holds %d views, limit is 4", len(batch.Views))
		}
		for _, draw := range batch.Draws {
			if draw.ViewIndex < 0 || int(draw.ViewIndex) >= len(batch.Views) {
				t.Errorf("draw references view %d of %d", draw.ViewIndex, len(batch.Views))
			}
		}
		views += len(batch.Views)
	}
	if views != len(update.Pages) {
		t.Errorf("expected %d views total, got %d", len(update.Pages), views)
	}
}

func TestTranslucentPrimitivesExcluded(t *testing.T) {
	prim := opaquePrimitive(1, 50)
	glass := opaquePrimitive(2, 50)
	glass.Material.BlendMode = scene.BlendTranslucent
	glass.LocalToWorld = math.Translate(200, 0, 0)

	sd, update := testScene(t, []*scene.Primitive{prim, glass})
	batches := BuildCardCaptureDraws(sd, update, 8)
	for _, batch := range batches {
		for _, draw := range batch.Draws {
			if draw.Primitive.ID == glass.ID {
				t.Fatal("translucent primitive reached the capture draw list")
			}
		}
	}
}

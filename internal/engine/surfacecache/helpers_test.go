package surfacecache

import (
	"github.com/Faultbox/radiant/internal/engine/scene"
	"github.com/Faultbox/radiant/pkg/math"
)

func mathIdentity() math.Mat4 {
	return math.Identity()
}

func testOBB(ex, ey, ez float32) math.OBB {
	return math.OBB{
		AxisX:  math.Vec3{X: 1},
		AxisY:  math.Vec3{Y: 1},
		AxisZ:  math.Vec3{Z: 1},
		Extent: math.Vec3{X: ex, Y: ey, Z: ez},
	}
}

// testCardBuild bakes one card per axis direction over a box of the given
// half extent.
func testCardBuild(extent float32) *scene.CardBuildData {
	bounds := math.NewBounds(math.Vec3{}, math.Vec3{X: extent, Y: extent, Z: extent})
	build := &scene.CardBuildData{}
	for dir := int32(0); dir < NumAxisDirections; dir++ {
		build.Cards = append(build.Cards, buildCardForDirection(bounds, dir))
	}
	return build
}

var nextTestPrimID int32

func testPrimitive(center math.Vec3, extent float32) *scene.Primitive {
	nextTestPrimID++
	return &scene.Primitive{
		ID:              nextTestPrimID,
		LocalToWorld:    math.Translate(center.X, center.Y, center.Z),
		LocalBounds:     math.NewBounds(math.Vec3{}, math.Vec3{X: extent, Y: extent, Z: extent}),
		CardBuild:       testCardBuild(extent),
		MergeGroup:      -1,
		ResolutionScale: 1,
	}
}

func testView(origin math.Vec3) *scene.View {
	return &scene.View{Origins: []math.Vec3{origin}}
}

// addTestGroup registers one primitive and returns its group index.
func addTestGroup(sd *SceneData, prim *scene.Primitive, cfg *Config) int32 {
	sd.UpdatePrimitives(scene.Changes{Added: []*scene.Primitive{prim}}, cfg)
	return sd.groupByPrimitive[prim.ID]
}

// runFrame executes the scheduling and request phases for one frame.
func runFrame(sd *SceneData, view *scene.View, cfg *Config) *CaptureUpdate {
	sd.UpdateSurfaceCachePrimitives(view, cfg)
	requests := sd.UpdateSurfaceCacheMeshCards(view, cfg)
	update := sd.ProcessSurfaceCacheRequests(requests, cfg)
	sd.AdvanceFrame()
	return update
}

// countMappedPages walks the page table.
func countMappedPages(sd *SceneData) int32 {
	var n int32
	sd.PageTable.ForEach(func(_ int32, entry *PageTableEntry) {
		if entry.IsMapped() {
			n++
		}
	})
	return n
}

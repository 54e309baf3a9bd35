// Package capture builds the per-frame card capture pass: an orthographic
// camera proxy per page needing material data, and the filtered draw lists
// feeding the capture atlas.
package capture

import (
	"github.com/Faultbox/radiant/internal/engine/scene"
	"github.com/Faultbox/radiant/internal/engine/surfacecache"
	"github.com/Faultbox/radiant/pkg/math"
)

// CardView is the camera proxy rendering one capture page. The projection
// covers exactly the page's card-space UV sub-rect.
type CardView struct {
	CardIndex      int32
	PageTableIndex int32

	ViewMatrix       math.Mat4
	ProjectionMatrix math.Mat4

	CaptureAtlasRect     surfacecache.IntRect
	PhysicalAtlasRect    surfacecache.IntRect
	ResampleLastLighting bool
}

// DrawCommand is one mesh draw feeding a capture batch.
type DrawCommand struct {
	Primitive *scene.Primitive
	LODIndex  int32
	ViewIndex int32 // index into the batch's view list
}

// Batch groups capture views that render in one multi-view pass.
type Batch struct {
	Views []CardView
	Draws []DrawCommand
}

// BuildCardView derives the orthographic camera for a page of a card. The
// eye sits on the card plane's positive side looking back along the card
// normal; the projection window is the UV sub-rect of the card face.
func BuildCardView(card *surfacecache.Card, page *surfacecache.CardCapturePageData) CardView {
	obb := &card.WorldOBB
	eye := obb.Origin.Add(obb.AxisZ.Scale(obb.Extent.Z))
	viewMatrix := math.ViewFromAxes(obb.AxisX, obb.AxisY, obb.AxisZ, eye)

	uv := page.CardUVRect
	left := -obb.Extent.X + 2*obb.Extent.X*uv[0]
	right := -obb.Extent.X + 2*obb.Extent.X*uv[2]
	// Card V runs top-down; flip into GL bottom-up ortho coordinates.
	top := obb.Extent.Y - 2*obb.Extent.Y*uv[1]
	bottom := obb.Extent.Y - 2*obb.Extent.Y*uv[3]

	projection := math.Ortho(left, right, bottom, top, 0, 2*obb.Extent.Z)

	return CardView{
		CardIndex:            page.CardIndex,
		PageTableIndex:       page.PageTableIndex,
		ViewMatrix:           viewMatrix,
		ProjectionMatrix:     projection,
		CaptureAtlasRect:     page.CaptureAtlasRect,
		PhysicalAtlasRect:    page.PhysicalAtlasRect,
		ResampleLastLighting: page.ResampleLastLighting,
	}
}

// captureLOD picks the mesh LOD captured for a primitive: heightfields
// always render LOD 0, everything else the coarsest LOD that is still
// complete geometry.
func captureLOD(prim *scene.Primitive) int32 {
	if prim.Heightfield {
		return 0
	}
	lod := int32(0)
	for i := range prim.LODs {
		if prim.LODs[i].ScreenSize > 0 {
			lod = int32(i)
		}
	}
	return lod
}

// BuildCardCaptureDraws turns the frame's capture work into view batches
// bounded by maxViewsPerPass. Translucent primitives never capture.
func BuildCardCaptureDraws(sd *surfacecache.SceneData, update *surfacecache.CaptureUpdate,
	maxViewsPerPass int) []Batch {

	if maxViewsPerPass < 1 {
		maxViewsPerPass = 1
	}

	var batches []Batch
	current := Batch{}

	flush := func() {
		if len(current.Views) > 0 {
			batches = append(batches, current)
			current = Batch{}
		}
	}

	for i := range update.Pages {
		page := &update.Pages[i]
		if !sd.Cards.IsAllocated(page.CardIndex) {
			continue
		}
		card := sd.Cards.Get(page.CardIndex)
		meshCards := sd.MeshCards.Get(card.MeshCardsIndex)
		group := sd.PrimitiveGroups.Get(meshCards.PrimitiveGroupIndex)

		viewIndex := int32(len(current.Views))
		current.Views = append(current.Views, BuildCardView(card, page))

		for _, prim := range group.Primitives {
			if !prim.Material.IsOpaque() {
				continue
			}
			current.Draws = append(current.Draws, DrawCommand{
				Primitive: prim,
				LODIndex:  captureLOD(prim),
				ViewIndex: viewIndex,
			})
		}

		if len(current.Views) >= maxViewsPerPass {
			flush()
		}
	}
	flush()
	return batches
}

package surfacecache

import (
	"github.com/Faultbox/radiant/internal/engine/scene"
	"github.com/Faultbox/radiant/pkg/math"
)

// PrimitiveGroup is the unit of surface cache granularity: one primitive,
// or a merge of many small instances captured as a single volume.
type PrimitiveGroup struct {
	Primitives []*scene.Primitive

	MeshCardsIndex   int32
	HeightfieldIndex int32

	WorldBounds         math.Bounds3
	CardResolutionScale float32

	// ValidMeshCards goes false when card generation produced nothing,
	// so the scheduler stops retrying the group every frame.
	ValidMeshCards bool

	FarField            bool
	Heightfield         bool
	EmissiveLightSource bool

	// MergeID links the group back to the scene-side merge cluster,
	// negative for standalone groups.
	MergeID int32
}

// HasMeshCards reports whether the group currently owns a mesh cards entry.
func (g *PrimitiveGroup) HasMeshCards() bool {
	return g.MeshCardsIndex >= 0
}

// Merged reports whether the group captures multiple instances as one volume.
func (g *PrimitiveGroup) Merged() bool {
	return g.MergeID >= 0
}

// UpdateWorldBounds recomputes the merged bounds from the member primitives.
func (g *PrimitiveGroup) UpdateWorldBounds() {
	bounds := math.EmptyBounds()
	for _, prim := range g.Primitives {
		bounds = bounds.Union(prim.WorldBounds())
	}
	g.WorldBounds = bounds
}

// MaxExtent returns the largest half-extent of the group bounds.
func (g *PrimitiveGroup) MaxExtent() float32 {
	return g.WorldBounds.Extent().MaxComponent()
}

package surfacecache

import (
	"github.com/Faultbox/radiant/internal/engine/scene"
	"github.com/Faultbox/radiant/pkg/math"
)

// MeshCards is a rigid-transform group owning a contiguous run of cards.
type MeshCards struct {
	LocalToWorld math.Mat4

	FirstCardIndex int32
	NumCards       int32

	PrimitiveGroupIndex int32
	Heightfield         bool

	// CardLookup holds, per axis direction, a bitmask of local card
	// indices facing that direction.
	CardLookup [NumAxisDirections]uint32
}

// Heightfield is the registry entry for a landscape-style primitive group.
type Heightfield struct {
	MeshCardsIndex      int32
	PrimitiveGroupIndex int32
}

// heightfieldCaptureMargin extends the heightfield card volume above and
// below the bounds so displaced geometry is not clipped.
const heightfieldCaptureMargin = 100

// meshCardsBuildData is the card layout a group will be realized from.
type meshCardsBuildData struct {
	Bounds math.Bounds3 // group-local bounds
	Cards  []scene.CardBuildInfo
}

// isOrthogonalTransform reports whether a local-to-world matrix is a
// rotation/translation with per-axis scale. Sheared bases cannot be
// represented by the OBB card model.
func isOrthogonalTransform(m math.Mat4) bool {
	const epsilon = 0.01

	ax := m.ScaledAxis(0)
	ay := m.ScaledAxis(1)
	az := m.ScaledAxis(2)

	if ax.Length() < 1e-4 || ay.Length() < 1e-4 || az.Length() < 1e-4 {
		return false
	}

	nx := ax.Normalize()
	ny := ay.Normalize()
	nz := az.Normalize()
	return math.Abs(nx.Dot(ny)) < epsilon &&
		math.Abs(nx.Dot(nz)) < epsilon &&
		math.Abs(ny.Dot(nz)) < epsilon
}

// meshCardCullTest keeps a card when its projected face area clears the
// minimum threshold and its LOD matches the configured max LOD.
func meshCardCullTest(card *scene.CardBuildInfo, localToWorld math.Mat4,
	targetLOD int32, minFaceArea float32) bool {

	worldOBB := card.OBB.Transform(localToWorld)
	faceArea := (2 * worldOBB.Extent.X) * (2 * worldOBB.Extent.Y)
	return faceArea > minFaceArea && card.LODLevel == targetLOD
}

// cardTargetLOD picks the LOD baked cards are taken from.
func cardTargetLOD(build *scene.CardBuildData, cfg *Config) int32 {
	return minInt32(build.MaxLOD, cfg.MaxLOD)
}

// buildCardForDirection lays a capture card over local bounds facing the
// given axis direction.
func buildCardForDirection(bounds math.Bounds3, direction int32) scene.CardBuildInfo {
	x, y, z := cardBasisForDirection(direction)
	e := bounds.Extent()
	return scene.CardBuildInfo{
		OBB: math.OBB{
			Origin: bounds.Center(),
			AxisX:  x,
			AxisY:  y,
			AxisZ:  z,
			Extent: math.Vec3{
				X: x.Abs().Dot(e),
				Y: y.Abs().Dot(e),
				Z: z.Abs().Dot(e),
			},
		},
		DirectionIndex: direction,
	}
}

// buildMeshCardsDataForMesh builds the card set of a single-primitive
// group from its baked layout.
func buildMeshCardsDataForMesh(prim *scene.Primitive, emissive bool, cfg *Config) (meshCardsBuildData, bool) {
	if prim.CardBuild == nil || !isOrthogonalTransform(prim.LocalToWorld) {
		return meshCardsBuildData{}, false
	}

	targetLOD := cardTargetLOD(prim.CardBuild, cfg)
	minFaceArea := cfg.MinFaceSurfaceArea(emissive)

	data := meshCardsBuildData{Bounds: prim.LocalBounds}
	for i := range prim.CardBuild.Cards {
		card := &prim.CardBuild.Cards[i]
		if meshCardCullTest(card, prim.LocalToWorld, targetLOD, minFaceArea) {
			data.Cards = append(data.Cards, *card)
		}
	}
	return data, len(data.Cards) > 0
}

// buildMeshCardsDataForHeightfield builds the single top-down card of a
// heightfield group.
func buildMeshCardsDataForHeightfield(prim *scene.Primitive) (meshCardsBuildData, bool) {
	if !isOrthogonalTransform(prim.LocalToWorld) {
		return meshCardsBuildData{}, false
	}

	bounds := prim.LocalBounds
	bounds.Min.Z -= heightfieldCaptureMargin
	bounds.Max.Z += heightfieldCaptureMargin

	data := meshCardsBuildData{Bounds: bounds}
	data.Cards = append(data.Cards, buildCardForDirection(bounds, HeightfieldDirectionIndex))
	return data, true
}

// buildMeshCardsDataForMergedInstances builds cards over the merged world
// bounds of many small instances. A direction only gets a card when the
// summed projected card area of the instances on that face is a meaningful
// fraction of the merged face area, so faces with negligible contribution
// stay empty.
func buildMeshCardsDataForMergedInstances(group *PrimitiveGroup, cfg *Config) (meshCardsBuildData, bool) {
	var directionArea [NumAxisDirections]float32

	for _, prim := range group.Primitives {
		if prim.CardBuild == nil || !isOrthogonalTransform(prim.LocalToWorld) {
			continue
		}
		for i := range prim.CardBuild.Cards {
			card := &prim.CardBuild.Cards[i]
			worldOBB := card.OBB.Transform(prim.LocalToWorld)
			faceArea := (2 * worldOBB.Extent.X) * (2 * worldOBB.Extent.Y)
			for dir := int32(0); dir < NumAxisDirections; dir++ {
				if d := worldOBB.Direction().Dot(AxisAlignedDirection(dir)); d > 0 {
					directionArea[dir] += d * faceArea
				}
			}
		}
	}

	// Merged cards live in a world-axis-aligned frame centered on the
	// group, so the group transform reduces to a translation.
	extent := group.WorldBounds.Extent()
	safeExtent := extent.Add(math.Vec3{X: 1, Y: 1, Z: 1}).MaxVec(math.Vec3{X: 5, Y: 5, Z: 5})
	localBounds := math.NewBounds(math.Vec3{}, safeExtent)

	data := meshCardsBuildData{Bounds: localBounds}
	for dir := int32(0); dir < NumAxisDirections; dir++ {
		face := localBounds.FaceExtent(int(dir / 2))
		mergedFaceArea := (2 * face.X) * (2 * face.Y)
		if directionArea[dir] > cfg.MergedMinSurfaceArea*mergedFaceArea {
			data.Cards = append(data.Cards, buildCardForDirection(localBounds, dir))
		}
	}
	return data, len(data.Cards) > 0
}

// updateLookup rebuilds the per-direction card bitmask.
func (m *MeshCards) updateLookup(cards *cardArray) {
	for i := range m.CardLookup {
		m.CardLookup[i] = 0
	}
	for local := int32(0); local < m.NumCards; local++ {
		card := cards.Get(m.FirstCardIndex + local)
		m.CardLookup[card.DirectionIndex] |= 1 << uint(local)
	}
}

package surfacecache

import "github.com/Faultbox/radiant/pkg/math"

// SurfaceMipMap is one resolution level's virtual page span of a card.
type SurfaceMipMap struct {
	SizeInPagesX int32
	SizeInPagesY int32
	ResLevelX    int32
	ResLevelY    int32

	PageTableSpanOffset int32
	PageTableSpanSize   int32
	Locked              bool
}

// IsAllocated reports whether the mip holds a page table span.
func (m *SurfaceMipMap) IsAllocated() bool {
	return m.PageTableSpanSize > 0
}

// PageTableIndex maps a local page index into the global page table.
func (m *SurfaceMipMap) PageTableIndex(localPageIndex int32) int32 {
	return m.PageTableSpanOffset + localPageIndex
}

// MipMapDesc describes the page layout a card mip would have at a res level.
type MipMapDesc struct {
	Resolution     IntPoint
	SizeInPages    IntPoint
	PageResolution IntPoint
	ResLevelX      int32
	ResLevelY      int32
	SubAllocation  bool
}

// Card is a planar capture surface over one axis-aligned direction of a
// mesh. LocalOBB lives in the owning mesh-cards frame; WorldOBB is derived
// from it on every transform change.
type Card struct {
	LocalOBB math.OBB
	WorldOBB math.OBB

	Visible     bool
	Heightfield bool

	// Allocated mip range. Empty when MinAllocatedResLevel > MaxAllocatedResLevel.
	MinAllocatedResLevel  int32
	MaxAllocatedResLevel  int32
	DesiredLockedResLevel int32

	// Indexed by resLevel - MinResLevel.
	SurfaceMips [NumResLevels]SurfaceMipMap

	MeshCardsIndex   int32
	IndexInMeshCards int32
	DirectionIndex   int32
	ResolutionScale  float32
}

// Initialize sets up a freshly allocated card.
func (c *Card) Initialize(resolutionScale float32, localToWorld math.Mat4, obb math.OBB,
	meshCardsIndex, indexInMeshCards, directionIndex int32, heightfield bool) {

	*c = Card{
		LocalOBB:              obb,
		Heightfield:           heightfield,
		MinAllocatedResLevel:  MaxResLevel + 1,
		MaxAllocatedResLevel:  MinResLevel - 1,
		DesiredLockedResLevel: 0,
		MeshCardsIndex:        meshCardsIndex,
		IndexInMeshCards:      indexInMeshCards,
		DirectionIndex:        directionIndex,
		ResolutionScale:       resolutionScale,
	}
	c.SetTransform(localToWorld)
}

// SetTransform re-derives the world OBB from the owning group transform.
func (c *Card) SetTransform(localToWorld math.Mat4) {
	c.WorldOBB = c.LocalOBB.Transform(localToWorld)
}

// IsAllocated reports whether any mip of the card is resident.
func (c *Card) IsAllocated() bool {
	return c.MinAllocatedResLevel <= c.MaxAllocatedResLevel
}

// GetMipMap returns the mip at the given res level.
func (c *Card) GetMipMap(resLevel int32) *SurfaceMipMap {
	return &c.SurfaceMips[resLevel-MinResLevel]
}

// resLevelBias reduces the shorter card axis by the log2 aspect ratio so
// elongated cards don't waste texels on their thin dimension.
func (c *Card) resLevelBias() (biasX, biasY int32) {
	ex := c.LocalOBB.Extent.X
	ey := c.LocalOBB.Extent.Y
	if ex <= 0 || ey <= 0 {
		return 0, 0
	}
	maxBias := int32(MaxResLevel - MinResLevel)
	if ex >= ey {
		biasY = math.ClampInt(math.FloorLog2(uint32(ex/ey)), 0, maxBias)
	} else {
		biasX = math.ClampInt(math.FloorLog2(uint32(ey/ex)), 0, maxBias)
	}
	return biasX, biasY
}

// MipMapDesc computes the page layout of the card at a res level.
func (c *Card) MipMapDesc(resLevel int32) MipMapDesc {
	biasX, biasY := c.resLevelBias()

	var desc MipMapDesc
	desc.ResLevelX = math.ClampInt(resLevel-biasX, MinResLevel, MaxResLevel)
	desc.ResLevelY = math.ClampInt(resLevel-biasY, MinResLevel, MaxResLevel)
	desc.Resolution = IntPoint{
		X: 1 << desc.ResLevelX,
		Y: 1 << desc.ResLevelY,
	}
	desc.PageResolution = IntPoint{
		X: minInt32(desc.Resolution.X, PhysicalPageSize),
		Y: minInt32(desc.Resolution.Y, PhysicalPageSize),
	}
	desc.SizeInPages = IntPoint{
		X: desc.Resolution.X / desc.PageResolution.X,
		Y: desc.Resolution.Y / desc.PageResolution.Y,
	}
	desc.SubAllocation = desc.PageResolution.X < PhysicalPageSize ||
		desc.PageResolution.Y < PhysicalPageSize
	return desc
}

// UpdateMinMaxAllocatedLevel recomputes the allocated mip range.
func (c *Card) UpdateMinMaxAllocatedLevel() {
	c.MinAllocatedResLevel = MaxResLevel + 1
	c.MaxAllocatedResLevel = MinResLevel - 1
	for level := int32(MinResLevel); level <= MaxResLevel; level++ {
		if c.GetMipMap(level).IsAllocated() {
			if level < c.MinAllocatedResLevel {
				c.MinAllocatedResLevel = level
			}
			if level > c.MaxAllocatedResLevel {
				c.MaxAllocatedResLevel = level
			}
		}
	}
}

// PageUVRect returns the card-space UV sub-rect covered by a local page of
// the given mip.
func (m *SurfaceMipMap) PageUVRect(localPageIndex int32) math.Vec4 {
	pageX := localPageIndex % m.SizeInPagesX
	pageY := localPageIndex / m.SizeInPagesX
	sx := 1.0 / float32(m.SizeInPagesX)
	sy := 1.0 / float32(m.SizeInPagesY)
	return math.Vec4{
		float32(pageX) * sx,
		float32(pageY) * sy,
		float32(pageX+1) * sx,
		float32(pageY+1) * sy,
	}
}

func minInt32(a, b int32) int32 {
	if a < b {
		return a
	}
	return b
}

func maxInt32(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}

package surfacecache

import "github.com/Faultbox/radiant/pkg/math"

// PageTableEntry is the physical allocation unit of a card mip. One entry
// covers one virtual page; a mapped entry owns a physical atlas rect, an
// unmapped entry borrows a coarser mip's page through SamplePageIndex.
type PageTableEntry struct {
	CardIndex int32
	ResLevel  int32

	// CardUVRect is the card-space sub-rect this page covers.
	CardUVRect math.Vec4

	// SubAllocationSize is the sub-page element size in texels, or zero
	// when the entry occupies a full physical page.
	SubAllocationSize IntPoint

	PhysicalPageCoord IntPoint
	PhysicalAtlasRect IntRect

	// SamplePageIndex points at the page lighting passes should read:
	// the entry itself when mapped, the covering page of the nearest
	// coarser mapped mip otherwise.
	SamplePageIndex int32
}

// unmappedPageEntry returns a fresh entry with no physical backing.
func unmappedPageEntry(cardIndex, resLevel int32) PageTableEntry {
	return PageTableEntry{
		CardIndex:         cardIndex,
		ResLevel:          resLevel,
		PhysicalPageCoord: IntPoint{-1, -1},
		SamplePageIndex:   InvalidIndex,
	}
}

// IsMapped reports whether the entry holds a physical allocation.
func (p *PageTableEntry) IsMapped() bool {
	return p.PhysicalPageCoord.X >= 0 && p.PhysicalPageCoord.Y >= 0
}

// IsSubAllocation reports whether the entry shares a physical page.
func (p *PageTableEntry) IsSubAllocation() bool {
	return p.SubAllocationSize.X > 0
}

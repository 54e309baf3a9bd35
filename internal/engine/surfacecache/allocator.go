package surfacecache

// Allocation is the result of placing a page into the physical atlas.
type Allocation struct {
	PhysicalPageCoord IntPoint
	PhysicalAtlasRect IntRect
}

// binAllocation is one physical page owned by a sub-page bin.
type binAllocation struct {
	PageCoord IntPoint
	FreeList  []IntPoint // free element coords within the page grid
}

// pageBin packs all sub-page allocations of one element size.
type pageBin struct {
	ElementSize        IntPoint
	PageSizeInElements IntPoint
	Allocations        []binAllocation
}

func (b *pageBin) numFreeElements() int32 {
	var n int32
	for i := range b.Allocations {
		n += int32(len(b.Allocations[i].FreeList))
	}
	return n
}

// Allocator hands out physical atlas pages. Full-page requests come from a
// free list; smaller requests are routed to a bin matching their element
// size, created on demand, so many small card pages share physical pages
// without fragmenting them.
type Allocator struct {
	sizeInPages IntPoint
	freePages   []IntPoint
	bins        []pageBin
}

// NewAllocator creates an allocator over an atlas of the given texel size.
func NewAllocator(sizeInTexels IntPoint) *Allocator {
	a := &Allocator{
		sizeInPages: IntPoint{
			X: sizeInTexels.X / PhysicalPageSize,
			Y: sizeInTexels.Y / PhysicalPageSize,
		},
	}
	a.freePages = make([]IntPoint, 0, a.sizeInPages.X*a.sizeInPages.Y)
	for y := a.sizeInPages.Y - 1; y >= 0; y-- {
		for x := a.sizeInPages.X - 1; x >= 0; x-- {
			a.freePages = append(a.freePages, IntPoint{x, y})
		}
	}
	return a
}

// SizeInPages returns the atlas dimensions in pages.
func (a *Allocator) SizeInPages() IntPoint {
	return a.sizeInPages
}

// NumFreePages returns the number of unassigned physical pages.
func (a *Allocator) NumFreePages() int32 {
	return int32(len(a.freePages))
}

func (a *Allocator) popFreePage() IntPoint {
	if len(a.freePages) == 0 {
		panic("surfacecache: physical atlas exhausted; caller must check IsSpaceAvailable")
	}
	coord := a.freePages[len(a.freePages)-1]
	a.freePages = a.freePages[:len(a.freePages)-1]
	return coord
}

func (a *Allocator) findOrCreateBin(elementSize IntPoint) *pageBin {
	for i := range a.bins {
		if a.bins[i].ElementSize == elementSize {
			return &a.bins[i]
		}
	}
	a.bins = append(a.bins, pageBin{
		ElementSize: elementSize,
		PageSizeInElements: IntPoint{
			X: PhysicalPageSize / elementSize.X,
			Y: PhysicalPageSize / elementSize.Y,
		},
	})
	return &a.bins[len(a.bins)-1]
}

// Allocate places a page into the atlas and fills out. Space must have
// been confirmed through IsSpaceAvailable first.
func (a *Allocator) Allocate(page *PageTableEntry, out *Allocation) {
	if !page.IsSubAllocation() {
		coord := a.popFreePage()
		out.PhysicalPageCoord = coord
		out.PhysicalAtlasRect = IntRect{
			Min: IntPoint{coord.X * PhysicalPageSize, coord.Y * PhysicalPageSize},
			Max: IntPoint{(coord.X + 1) * PhysicalPageSize, (coord.Y + 1) * PhysicalPageSize},
		}
		return
	}

	bin := a.findOrCreateBin(page.SubAllocationSize)

	var alloc *binAllocation
	for i := range bin.Allocations {
		if len(bin.Allocations[i].FreeList) > 0 {
			alloc = &bin.Allocations[i]
			break
		}
	}
	if alloc == nil {
		coord := a.popFreePage()
		freeList := make([]IntPoint, 0, bin.PageSizeInElements.X*bin.PageSizeInElements.Y)
		for y := bin.PageSizeInElements.Y - 1; y >= 0; y-- {
			for x := bin.PageSizeInElements.X - 1; x >= 0; x-- {
				freeList = append(freeList, IntPoint{x, y})
			}
		}
		bin.Allocations = append(bin.Allocations, binAllocation{
			PageCoord: coord,
			FreeList:  freeList,
		})
		alloc = &bin.Allocations[len(bin.Allocations)-1]
	}

	elem := alloc.FreeList[len(alloc.FreeList)-1]
	alloc.FreeList = alloc.FreeList[:len(alloc.FreeList)-1]

	minX := alloc.PageCoord.X*PhysicalPageSize + elem.X*bin.ElementSize.X
	minY := alloc.PageCoord.Y*PhysicalPageSize + elem.Y*bin.ElementSize.Y
	out.PhysicalPageCoord = alloc.PageCoord
	out.PhysicalAtlasRect = IntRect{
		Min: IntPoint{minX, minY},
		Max: IntPoint{minX + bin.ElementSize.X, minY + bin.ElementSize.Y},
	}
}

// Free releases the page's physical allocation. Bin pages whose last
// element is released return to the whole-page free list.
func (a *Allocator) Free(page *PageTableEntry) {
	if !page.IsMapped() {
		panic("surfacecache: freeing unmapped page")
	}

	if !page.IsSubAllocation() {
		a.freePages = append(a.freePages, page.PhysicalPageCoord)
		return
	}

	var bin *pageBin
	for i := range a.bins {
		if a.bins[i].ElementSize == page.SubAllocationSize {
			bin = &a.bins[i]
			break
		}
	}
	if bin == nil {
		panic("surfacecache: freeing sub-allocation with no matching bin")
	}

	for i := range bin.Allocations {
		alloc := &bin.Allocations[i]
		if alloc.PageCoord != page.PhysicalPageCoord {
			continue
		}
		elem := IntPoint{
			X: (page.PhysicalAtlasRect.Min.X - alloc.PageCoord.X*PhysicalPageSize) / bin.ElementSize.X,
			Y: (page.PhysicalAtlasRect.Min.Y - alloc.PageCoord.Y*PhysicalPageSize) / bin.ElementSize.Y,
		}
		alloc.FreeList = append(alloc.FreeList, elem)
		if int32(len(alloc.FreeList)) == bin.PageSizeInElements.X*bin.PageSizeInElements.Y {
			a.freePages = append(a.freePages, alloc.PageCoord)
			bin.Allocations = append(bin.Allocations[:i], bin.Allocations[i+1:]...)
		}
		return
	}
	panic("surfacecache: freeing sub-allocation with no owning bin page")
}

// IsSpaceAvailable reports whether the card's mip at resLevel would fit,
// without committing anything. With singlePage only one page of the mip is
// considered.
func (a *Allocator) IsSpaceAvailable(card *Card, resLevel int32, singlePage bool) bool {
	desc := card.MipMapDesc(resLevel)

	numPages := desc.SizeInPages.X * desc.SizeInPages.Y
	if singlePage {
		numPages = 1
	}

	if desc.SubAllocation {
		elementSize := desc.PageResolution
		var freeElements int32
		var elementsPerPage int32 = (PhysicalPageSize / elementSize.X) * (PhysicalPageSize / elementSize.Y)
		for i := range a.bins {
			if a.bins[i].ElementSize == elementSize {
				freeElements = a.bins[i].numFreeElements()
				break
			}
		}
		return freeElements+a.NumFreePages()*elementsPerPage >= numPages
	}

	return a.NumFreePages() >= numPages
}

// BinStats describes one sub-page bin.
type BinStats struct {
	ElementSize    IntPoint
	NumAllocations int32
	NumPages       int32
}

// AllocatorStats is an observability snapshot of atlas occupancy.
type AllocatorStats struct {
	NumFreePages         int32
	BinNumPages          int32
	BinNumSubAllocations int32
	BinWastedTexels      int64
	Bins                 []BinStats
}

// Stats collects current occupancy counters.
func (a *Allocator) Stats() AllocatorStats {
	stats := AllocatorStats{
		NumFreePages: a.NumFreePages(),
	}
	for i := range a.bins {
		bin := &a.bins[i]
		elementsPerPage := bin.PageSizeInElements.X * bin.PageSizeInElements.Y
		numPages := int32(len(bin.Allocations))
		numFree := bin.numFreeElements()
		numAlloc := numPages*elementsPerPage - numFree

		stats.BinNumPages += numPages
		stats.BinNumSubAllocations += numAlloc
		stats.BinWastedTexels += int64(numFree) * int64(bin.ElementSize.X) * int64(bin.ElementSize.Y)
		stats.Bins = append(stats.Bins, BinStats{
			ElementSize:    bin.ElementSize,
			NumAllocations: numAlloc,
			NumPages:       numPages,
		})
	}
	return stats
}

package surfacecache

import "github.com/Faultbox/radiant/pkg/math"

const (
	// evictionGraceLocked protects pages used within the last N frames
	// from being evicted on behalf of locked mip allocations.
	evictionGraceLocked = uint32(2)
)

// CardCapturePageData is one page needing fresh material data this frame.
// PhysicalAtlasRect is the page's persistent home, CaptureAtlasRect its
// transient slot for the capture pass.
type CardCapturePageData struct {
	CardIndex      int32
	PageTableIndex int32
	ResLevel       int32

	CardUVRect        math.Vec4
	PhysicalAtlasRect IntRect
	CaptureAtlasRect  IntRect

	// ResampleLastLighting marks pages whose card held atlas content
	// before this frame, so accumulated lighting can be carried over.
	ResampleLastLighting bool
}

// CaptureUpdate is the request processor's per-frame output.
type CaptureUpdate struct {
	Pages []CardCapturePageData

	NumLockedCaptures int32
	NumHiResCaptures  int32
	NumRefreshes      int32
	NumEvictions      int32
}

// ProcessSurfaceCacheRequests arbitrates the sorted request list against
// the physical atlas and the frame capture budget. Phases run strictly in
// order: locked mips, hi-res pages, stale page refresh, idle eviction,
// then mip hierarchy repair of every touched card.
func (sd *SceneData) ProcessSurfaceCacheRequests(requests []SurfaceCacheRequest, cfg *Config) *CaptureUpdate {
	update := &CaptureUpdate{}
	captureAllocator := NewAllocator(cfg.CaptureAtlasSize())
	maxCaptures := cfg.MaxTileCapturesPerFrame()
	repair := newIndexSet()

	for i := range requests {
		if int32(len(update.Pages)) >= maxCaptures {
			break
		}
		if requests[i].IsLockedMip() {
			sd.processLockedRequest(&requests[i], maxCaptures, captureAllocator, update, repair)
		}
	}
	update.NumLockedCaptures = int32(len(update.Pages))

	hiResGrace := uint32(cfg.FeedbackTileSize) * uint32(cfg.FeedbackTileSize)
	for i := range requests {
		if int32(len(update.Pages)) >= maxCaptures {
			break
		}
		if !requests[i].IsLockedMip() {
			sd.processHiResRequest(&requests[i], hiResGrace, captureAllocator, update, repair)
		}
	}
	update.NumHiResCaptures = int32(len(update.Pages)) - update.NumLockedCaptures

	sd.refreshStalePages(cfg, captureAllocator, update)

	for sd.EvictOldestAllocation(cfg.FramesToKeepUnusedPages, repair) {
		update.NumEvictions++
	}

	for _, cardIndex := range repair.Indices() {
		if sd.Cards.IsAllocated(cardIndex) {
			sd.UpdateCardMipMapHierarchy(cardIndex)
		}
	}
	return update
}

// processLockedRequest (re)allocates a card's always-resident mip, evicting
// old pages and degrading the level when the atlas is tight. Requests whose
// page count no longer fits the frame budget are deferred whole, so the
// capture count never overshoots.
func (sd *SceneData) processLockedRequest(req *SurfaceCacheRequest, maxCaptures int32,
	captureAllocator *Allocator, update *CaptureUpdate, repair *indexSet) {

	card := sd.Cards.Get(req.CardIndex)
	if card.DesiredLockedResLevel == req.ResLevel {
		return
	}

	desc := card.MipMapDesc(req.ResLevel)
	if int32(len(update.Pages))+desc.SizeInPages.X*desc.SizeInPages.Y > maxCaptures {
		return
	}

	for level := req.ResLevel; level >= MinResLevel; level-- {
		if sd.tryAllocateLockedMip(req.CardIndex, card, level, captureAllocator, update, repair) {
			card.DesiredLockedResLevel = level
			repair.Add(req.CardIndex)
			sd.dirtyCards.Add(req.CardIndex)
			return
		}
	}
}

func (sd *SceneData) tryAllocateLockedMip(cardIndex int32, card *Card, resLevel int32,
	captureAllocator *Allocator, update *CaptureUpdate, repair *indexSet) bool {

	if card.GetMipMap(resLevel).IsAllocated() && card.MinAllocatedResLevel == resLevel {
		return true
	}

	for !sd.Allocator.IsSpaceAvailable(card, resLevel, false) {
		if !sd.EvictOldestAllocation(evictionGraceLocked, repair) {
			return false
		}
		update.NumEvictions++
	}

	// Capture capacity is an independent gate: a page we cannot capture
	// this frame must not displace resident content.
	if !captureAllocator.IsSpaceAvailable(card, resLevel, false) {
		return false
	}

	resample := card.IsAllocated()
	if resample {
		// Replace the old locked base and everything coarser than the
		// new one; finer detail mips stay resident.
		if card.MinAllocatedResLevel < resLevel {
			sd.FreeVirtualSurface(cardIndex, card.MinAllocatedResLevel, resLevel-1)
		} else {
			sd.FreeVirtualSurface(cardIndex, card.MinAllocatedResLevel, card.MinAllocatedResLevel)
		}
	}
	sd.ReallocVirtualSurface(cardIndex, resLevel, true)

	mip := card.GetMipMap(resLevel)
	for local := int32(0); local < mip.PageTableSpanSize; local++ {
		pageIndex := mip.PageTableIndex(local)
		if sd.PageTable.Get(pageIndex).IsMapped() {
			// A surviving detail page now backs the locked base.
			sd.UnlockedAllocationHeap.Remove(pageIndex)
			continue
		}
		sd.MapSurfaceCachePage(mip, pageIndex)
		sd.emitCapture(pageIndex, captureAllocator, update, resample)
	}
	return true
}

// processHiResRequest maps one optional detail page above the card's
// locked mip.
func (sd *SceneData) processHiResRequest(req *SurfaceCacheRequest, grace uint32,
	captureAllocator *Allocator, update *CaptureUpdate, repair *indexSet) {

	card := sd.Cards.Get(req.CardIndex)
	if !card.Visible || !card.IsAllocated() || req.ResLevel <= card.DesiredLockedResLevel {
		return
	}

	if !card.GetMipMap(req.ResLevel).IsAllocated() {
		sd.ReallocVirtualSurface(req.CardIndex, req.ResLevel, false)
		repair.Add(req.CardIndex)
	}

	mip := card.GetMipMap(req.ResLevel)
	if req.LocalPageIndex < 0 || req.LocalPageIndex >= mip.PageTableSpanSize {
		return
	}
	pageIndex := mip.PageTableIndex(req.LocalPageIndex)
	entry := sd.PageTable.Get(pageIndex)
	if entry.IsMapped() {
		sd.UnlockedAllocationHeap.Update(sd.frameIndex, pageIndex)
		return
	}

	for !sd.Allocator.IsSpaceAvailable(card, req.ResLevel, true) {
		if !sd.EvictOldestAllocation(grace, repair) {
			return
		}
		update.NumEvictions++
	}
	if !captureAllocator.IsSpaceAvailable(card, req.ResLevel, true) {
		return
	}

	sd.MapSurfaceCachePage(mip, pageIndex)
	sd.emitCapture(pageIndex, captureAllocator, update, true)
	repair.Add(req.CardIndex)
	sd.dirtyCards.Add(req.CardIndex)
}

// refreshStalePages re-captures the oldest-captured resident pages within
// the refresh budgets. Never-captured pages (key zero) bypass the budgets.
func (sd *SceneData) refreshStalePages(cfg *Config, captureAllocator *Allocator, update *CaptureUpdate) {
	texelBudget := cfg.RefreshTexelBudget()
	pageBudget := cfg.RefreshPageBudget()
	maxCaptures := cfg.MaxTileCapturesPerFrame()

	var usedTexels int64
	var usedPages int32

	for sd.LastCapturedPageHeap.Len() > 0 && int32(len(update.Pages)) < maxCaptures {
		pageIndex := sd.LastCapturedPageHeap.Top()
		lastCaptured := sd.LastCapturedPageHeap.Key(pageIndex)
		if lastCaptured == sd.frameIndex {
			break
		}

		entry := sd.PageTable.Get(pageIndex)
		if lastCaptured != 0 {
			texels := entry.PhysicalAtlasRect.Area()
			if usedTexels+texels > texelBudget || usedPages+1 > pageBudget {
				break
			}
			usedTexels += texels
			usedPages++
		}

		card := sd.Cards.Get(entry.CardIndex)
		if !captureAllocator.IsSpaceAvailable(card, entry.ResLevel, true) {
			break
		}

		sd.emitCapture(pageIndex, captureAllocator, update, lastCaptured != 0)
		update.NumRefreshes++
	}
}

// emitCapture reserves transient capture space for a mapped page and
// appends its capture work item, stamping the page's captured frame.
func (sd *SceneData) emitCapture(pageIndex int32, captureAllocator *Allocator,
	update *CaptureUpdate, resample bool) {

	entry := sd.PageTable.Get(pageIndex)

	var captureAlloc Allocation
	captureAllocator.Allocate(entry, &captureAlloc)
	sd.LastCapturedPageHeap.Update(sd.frameIndex, pageIndex)

	update.Pages = append(update.Pages, CardCapturePageData{
		CardIndex:            entry.CardIndex,
		PageTableIndex:       pageIndex,
		ResLevel:             entry.ResLevel,
		CardUVRect:           entry.CardUVRect,
		PhysicalAtlasRect:    entry.PhysicalAtlasRect,
		CaptureAtlasRect:     captureAlloc.PhysicalAtlasRect,
		ResampleLastLighting: resample,
	})
}

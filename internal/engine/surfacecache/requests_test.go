package surfacecache

import (
	"testing"

	"github.com/Faultbox/radiant/internal/engine/scene"
	"github.com/Faultbox/radiant/pkg/math"
)

func TestCaptureBudgetMonotonicity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CapturesPerFrame = 4
	sd := NewSceneData(cfg.PhysicalAtlasSize)

	var prims []*scene.Primitive
	for i := 0; i < 8; i++ {
		prims = append(prims, testPrimitive(math.Vec3{X: float32(200 + i*150)}, 50))
	}
	sd.UpdatePrimitives(scene.Changes{Added: prims}, &cfg)

	view := testView(math.Vec3{})
	for frame := 0; frame < 12; frame++ {
		update := runFrame(sd, view, &cfg)
		if int32(len(update.Pages)) > cfg.MaxTileCapturesPerFrame() {
			t.Fatalf("frame %d captured %d pages, budget is %d",
				frame, len(update.Pages), cfg.MaxTileCapturesPerFrame())
		}
	}
}

func TestAllocationFreeBalance(t *testing.T) {
	cfg := DefaultConfig()
	sd := NewSceneData(cfg.PhysicalAtlasSize)
	totalPages := sd.Allocator.NumFreePages()

	var prims []*scene.Primitive
	for i := 0; i < 4; i++ {
		prims = append(prims, testPrimitive(math.Vec3{X: float32(200 + i*200)}, 50))
	}
	sd.UpdatePrimitives(scene.Changes{Added: prims}, &cfg)

	view := testView(math.Vec3{})
	for frame := 0; frame < 4; frame++ {
		runFrame(sd, view, &cfg)
	}

	// Every mapped page must be reachable from an allocated card mip.
	var reachable int32
	sd.Cards.ForEach(func(_ int32, card *Card) {
		for level := int32(MinResLevel); level <= MaxResLevel; level++ {
			mip := card.GetMipMap(level)
			for local := int32(0); local < mip.PageTableSpanSize; local++ {
				if sd.PageTable.Get(mip.PageTableIndex(local)).IsMapped() {
					reachable++
				}
			}
		}
	})
	if mapped := countMappedPages(sd); mapped != reachable {
		t.Errorf("mapped pages %d != pages reachable from cards %d", mapped, reachable)
	}

	sd.UpdatePrimitives(scene.Changes{Removed: prims}, &cfg)
	if countMappedPages(sd) != 0 {
		t.Errorf("expected no mapped pages after removal, got %d", countMappedPages(sd))
	}
	if sd.Allocator.NumFreePages() != totalPages {
		t.Errorf("expected %d free pages after removal, got %d",
			totalPages, sd.Allocator.NumFreePages())
	}
}

func TestFullAtlasEvictsOldestFirst(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PhysicalAtlasSize = IntPoint{512, 512} // 16 physical pages
	sd := NewSceneData(cfg.PhysicalAtlasSize)

	// Fill the atlas with an unlocked 4x4 page mip.
	fillerIndex := addTestGroup(sd, testPrimitive(math.Vec3{X: 500}, 50), &cfg)
	sd.AddMeshCards(fillerIndex, &cfg)
	fillerCard := sd.MeshCards.Get(sd.PrimitiveGroups.Get(fillerIndex).MeshCardsIndex).FirstCardIndex
	sd.ReallocVirtualSurface(fillerCard, 9, false)
	mip := sd.Cards.Get(fillerCard).GetMipMap(9)
	for local := int32(0); local < mip.PageTableSpanSize; local++ {
		sd.MapSurfaceCachePage(mip, mip.PageTableIndex(local))
	}
	if sd.Allocator.NumFreePages() != 0 {
		t.Fatalf("expected a full atlas, got %d free pages", sd.Allocator.NumFreePages())
	}

	for i := 0; i < 4; i++ {
		sd.AdvanceFrame()
	}

	// One filler page was just sampled and sits inside the grace period.
	recentPage := mip.PageTableIndex(5)
	sd.UnlockedAllocationHeap.Update(sd.FrameIndex(), recentPage)

	// A locked request for a new card evicts the oldest filler pages.
	newIndex := addTestGroup(sd, testPrimitive(math.Vec3{X: 100}, 50), &cfg)
	sd.AddMeshCards(newIndex, &cfg)
	newCard := sd.MeshCards.Get(sd.PrimitiveGroups.Get(newIndex).MeshCardsIndex).FirstCardIndex

	requests := []SurfaceCacheRequest{{
		CardIndex:      newCard,
		ResLevel:       7,
		LocalPageIndex: LockedPageIndex,
		Distance:       50,
	}}
	update := sd.ProcessSurfaceCacheRequests(requests, &cfg)

	card := sd.Cards.Get(newCard)
	if card.DesiredLockedResLevel != 7 || !card.IsAllocated() {
		t.Fatal("expected the locked request to succeed by evicting")
	}
	if update.NumEvictions == 0 {
		t.Error("expected at least one eviction")
	}
	if !sd.PageTable.Get(recentPage).IsMapped() {
		t.Error("expected the recently used page to survive eviction")
	}
}

func TestLockedRequestDegradesResolution(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PhysicalAtlasSize = IntPoint{256, 256} // 4 physical pages
	cfg.CaptureFactor = 1                      // capture capacity is not the constraint here
	sd := NewSceneData(cfg.PhysicalAtlasSize)

	groupIndex := addTestGroup(sd, testPrimitive(math.Vec3{}, 50), &cfg)
	sd.AddMeshCards(groupIndex, &cfg)
	cardIndex := sd.MeshCards.Get(sd.PrimitiveGroups.Get(groupIndex).MeshCardsIndex).FirstCardIndex

	// Level 9 wants 16 pages, the atlas holds 4: the request degrades to
	// the largest feasible level.
	requests := []SurfaceCacheRequest{{
		CardIndex:      cardIndex,
		ResLevel:       9,
		LocalPageIndex: LockedPageIndex,
		Distance:       100,
	}}
	sd.ProcessSurfaceCacheRequests(requests, &cfg)

	card := sd.Cards.Get(cardIndex)
	if !card.IsAllocated() {
		t.Fatal("expected a degraded allocation")
	}
	if card.DesiredLockedResLevel >= 9 {
		t.Errorf("expected degraded res level below 9, got %d", card.DesiredLockedResLevel)
	}
	if card.DesiredLockedResLevel != 8 {
		t.Errorf("expected res level 8 (4 pages), got %d", card.DesiredLockedResLevel)
	}
}

func TestHiResFeedbackRequests(t *testing.T) {
	cfg := DefaultConfig()
	sd := NewSceneData(cfg.PhysicalAtlasSize)

	view := testView(math.Vec3{Z: 200})
	groupIndex := addTestGroup(sd, testPrimitive(math.Vec3{}, 50), &cfg)
	runFrame(sd, view, &cfg)

	meshCards := sd.MeshCards.Get(sd.PrimitiveGroups.Get(groupIndex).MeshCardsIndex)
	cardIndex := meshCards.FirstCardIndex
	card := sd.Cards.Get(cardIndex)
	if !card.IsAllocated() {
		t.Fatal("expected a resident locked mip")
	}
	lockedLevel := card.DesiredLockedResLevel

	fb := Feedback{HiResWants: []SurfaceCacheRequest{{
		CardIndex:      cardIndex,
		ResLevel:       lockedLevel + 2,
		LocalPageIndex: 0,
		Distance:       10,
	}}}
	requests := sd.ApplyFeedback(fb, sd.UpdateSurfaceCacheMeshCards(view, &cfg))
	update := sd.ProcessSurfaceCacheRequests(requests, &cfg)

	if update.NumHiResCaptures != 1 {
		t.Fatalf("expected one hi-res capture, got %d", update.NumHiResCaptures)
	}
	hiMip := card.GetMipMap(lockedLevel + 2)
	if !hiMip.IsAllocated() || hiMip.Locked {
		t.Fatal("expected an unlocked hi-res mip")
	}
	if !sd.PageTable.Get(hiMip.PageTableIndex(0)).IsMapped() {
		t.Error("expected the wanted page mapped")
	}
}

func TestLockedReallocPreservesFinerMips(t *testing.T) {
	cfg := DefaultConfig()
	sd := NewSceneData(cfg.PhysicalAtlasSize)

	view := testView(math.Vec3{Z: 200})
	groupIndex := addTestGroup(sd, testPrimitive(math.Vec3{}, 50), &cfg)
	runFrame(sd, view, &cfg)

	cardIndex := sd.MeshCards.Get(sd.PrimitiveGroups.Get(groupIndex).MeshCardsIndex).FirstCardIndex
	card := sd.Cards.Get(cardIndex)
	if !card.IsAllocated() {
		t.Fatal("expected a resident locked mip")
	}
	lockedLevel := card.DesiredLockedResLevel

	fb := Feedback{HiResWants: []SurfaceCacheRequest{{
		CardIndex:      cardIndex,
		ResLevel:       lockedLevel + 2,
		LocalPageIndex: 0,
		Distance:       10,
	}}}
	sd.ProcessSurfaceCacheRequests(sd.ApplyFeedback(fb, nil), &cfg)
	hiMip := card.GetMipMap(lockedLevel + 2)
	if !hiMip.IsAllocated() {
		t.Fatal("expected a resident hi-res mip")
	}
	sd.AdvanceFrame()

	// Raising the locked base replaces only the old base; the finer mip
	// already resident above the new level stays mapped.
	requests := []SurfaceCacheRequest{{
		CardIndex:      cardIndex,
		ResLevel:       lockedLevel + 1,
		LocalPageIndex: LockedPageIndex,
		Distance:       10,
	}}
	sd.ProcessSurfaceCacheRequests(requests, &cfg)

	if card.DesiredLockedResLevel != lockedLevel+1 {
		t.Fatalf("expected locked level %d, got %d", lockedLevel+1, card.DesiredLockedResLevel)
	}
	if card.GetMipMap(lockedLevel).IsAllocated() {
		t.Error("expected the old locked base freed")
	}
	if !hiMip.IsAllocated() {
		t.Fatal("expected the finer mip to survive the locked realloc")
	}
	if !sd.PageTable.Get(hiMip.PageTableIndex(0)).IsMapped() {
		t.Error("expected the finer mip's page still mapped")
	}
}

func TestRefreshRecapturesStalePages(t *testing.T) {
	cfg := DefaultConfig()
	sd := NewSceneData(cfg.PhysicalAtlasSize)

	view := testView(math.Vec3{Z: 200})
	addTestGroup(sd, testPrimitive(math.Vec3{}, 50), &cfg)
	first := runFrame(sd, view, &cfg)
	if len(first.Pages) == 0 {
		t.Fatal("expected initial captures")
	}

	for i := 0; i < 100; i++ {
		sd.AdvanceFrame()
	}

	update := sd.ProcessSurfaceCacheRequests(nil, &cfg)
	if update.NumRefreshes != int32(len(first.Pages)) {
		t.Errorf("expected %d refreshes, got %d", len(first.Pages), update.NumRefreshes)
	}

	// Refreshed pages are fresh again.
	again := sd.ProcessSurfaceCacheRequests(nil, &cfg)
	if again.NumRefreshes != 0 {
		t.Errorf("expected no refreshes in the same frame, got %d", again.NumRefreshes)
	}
}

func TestResampleEligibility(t *testing.T) {
	cfg := DefaultConfig()
	sd := NewSceneData(cfg.PhysicalAtlasSize)

	view := testView(math.Vec3{Z: 800})
	groupIndex := addTestGroup(sd, testPrimitive(math.Vec3{}, 50), &cfg)
	first := runFrame(sd, view, &cfg)
	for i := range first.Pages {
		if first.Pages[i].ResampleLastLighting {
			t.Error("expected first-time captures without resample")
		}
	}
	if !sd.PrimitiveGroups.Get(groupIndex).HasMeshCards() {
		t.Fatal("expected mesh cards")
	}

	// Moving closer re-resolves the cards to a higher level; the new
	// pages may reuse the old lighting.
	near := testView(math.Vec3{Z: 150})
	second := runFrame(sd, near, &cfg)
	if len(second.Pages) == 0 {
		t.Fatal("expected re-resolve captures")
	}
	for i := range second.Pages {
		if !second.Pages[i].ResampleLastLighting {
			t.Errorf("expected resample flag on re-resolved page %d", i)
		}
	}
}

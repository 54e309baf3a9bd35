package surfacecache

import (
	"go.uber.org/zap"

	"github.com/Faultbox/radiant/internal/engine/scene"
	"github.com/Faultbox/radiant/internal/logger"
	"github.com/Faultbox/radiant/pkg/container"
	"github.com/Faultbox/radiant/pkg/math"
)

type cardArray = container.SparseSpanArray[Card]

// indexSet is an order-preserving deduplicated index list used for dirty
// tracking between the request processor and the GPU upload pass.
type indexSet struct {
	indices []int32
	seen    map[int32]bool
}

func newIndexSet() *indexSet {
	return &indexSet{seen: make(map[int32]bool)}
}

func (s *indexSet) Add(i int32) {
	if !s.seen[i] {
		s.seen[i] = true
		s.indices = append(s.indices, i)
	}
}

func (s *indexSet) Indices() []int32 {
	return s.indices
}

func (s *indexSet) Reset() {
	s.indices = s.indices[:0]
	for k := range s.seen {
		delete(s.seen, k)
	}
}

// SceneData owns every surface cache registry: primitive groups, mesh
// cards groups, cards, heightfields and the page table, plus the physical
// atlas allocator and the eviction/refresh heaps. All mutation happens on
// the render goroutine.
type SceneData struct {
	Cards           cardArray
	MeshCards       container.SparseSpanArray[MeshCards]
	Heightfields    container.SparseSpanArray[Heightfield]
	PrimitiveGroups container.SparseSpanArray[PrimitiveGroup]
	PageTable       container.SparseSpanArray[PageTableEntry]

	Allocator *Allocator

	// UnlockedAllocationHeap orders evictable pages by last-used frame.
	UnlockedAllocationHeap *container.FrameHeap
	// LastCapturedPageHeap orders mapped pages by last-captured frame;
	// key zero means never captured.
	LastCapturedPageHeap *container.FrameHeap

	frameIndex uint32

	dirtyCards     *indexSet
	dirtyMeshCards *indexSet
	dirtyPages     *indexSet

	groupByMergeID   map[int32]int32
	groupByPrimitive map[int32]int32
}

// NewSceneData creates an empty cache over a physical atlas of the given size.
func NewSceneData(atlasSize IntPoint) *SceneData {
	return &SceneData{
		Allocator:              NewAllocator(atlasSize),
		UnlockedAllocationHeap: container.NewFrameHeap(),
		LastCapturedPageHeap:   container.NewFrameHeap(),
		frameIndex:             1,
		dirtyCards:             newIndexSet(),
		dirtyMeshCards:         newIndexSet(),
		dirtyPages:             newIndexSet(),
		groupByMergeID:         make(map[int32]int32),
		groupByPrimitive:       make(map[int32]int32),
	}
}

// FrameIndex returns the cache update frame counter.
func (sd *SceneData) FrameIndex() uint32 {
	return sd.frameIndex
}

// AdvanceFrame bumps the frame counter, skipping zero on wraparound since
// a last-captured key of zero means "never captured".
func (sd *SceneData) AdvanceFrame() {
	sd.frameIndex++
	if sd.frameIndex == 0 {
		sd.frameIndex = 1
	}
}

// UpdatePrimitives ingests one frame of scene notifications, keeping the
// primitive group registry in sync.
func (sd *SceneData) UpdatePrimitives(changes scene.Changes, cfg *Config) {
	for _, prim := range changes.Removed {
		sd.removePrimitive(prim)
	}
	for _, prim := range changes.Added {
		sd.addPrimitive(prim, cfg)
	}
	for _, prim := range changes.Updated {
		sd.updatePrimitive(prim, cfg)
	}
}

func (sd *SceneData) addPrimitive(prim *scene.Primitive, cfg *Config) {
	if !prim.AffectsIndirectLighting() {
		return
	}

	if prim.MergeGroup >= 0 && !prim.Heightfield {
		if groupIndex, ok := sd.groupByMergeID[prim.MergeGroup]; ok {
			group := sd.PrimitiveGroups.Get(groupIndex)
			grown := group.WorldBounds.Union(prim.WorldBounds())
			size := grown.Extent().Scale(2)
			if math.Max(size.X, math.Max(size.Y, size.Z)) <= cfg.MergedMaxWorldSize {
				group.Primitives = append(group.Primitives, prim)
				group.WorldBounds = grown
				group.EmissiveLightSource = group.EmissiveLightSource || prim.Material.Emissive
				sd.groupByPrimitive[prim.ID] = groupIndex
				// Membership changed, so the card layout is stale.
				sd.invalidateGroupMeshCards(groupIndex)
				return
			}
		} else {
			groupIndex := sd.createGroup([]*scene.Primitive{prim}, prim.MergeGroup, cfg)
			sd.groupByMergeID[prim.MergeGroup] = groupIndex
			return
		}
	}

	sd.createGroup([]*scene.Primitive{prim}, -1, cfg)
}

func (sd *SceneData) createGroup(prims []*scene.Primitive, mergeID int32, cfg *Config) int32 {
	groupIndex := sd.PrimitiveGroups.AddSpan(1)
	group := sd.PrimitiveGroups.Get(groupIndex)

	resolutionScale := prims[0].ResolutionScale
	if mergeID >= 0 {
		resolutionScale *= cfg.MergedResolutionScale
	}

	*group = PrimitiveGroup{
		Primitives:          append([]*scene.Primitive(nil), prims...),
		MeshCardsIndex:      InvalidIndex,
		HeightfieldIndex:    InvalidIndex,
		CardResolutionScale: resolutionScale,
		ValidMeshCards:      true,
		MergeID:             mergeID,
	}
	for _, prim := range prims {
		group.FarField = group.FarField || prim.FarField
		group.Heightfield = group.Heightfield || prim.Heightfield
		group.EmissiveLightSource = group.EmissiveLightSource || prim.Material.Emissive
		sd.groupByPrimitive[prim.ID] = groupIndex
	}
	group.UpdateWorldBounds()
	return groupIndex
}

func (sd *SceneData) removePrimitive(prim *scene.Primitive) {
	groupIndex, ok := sd.groupByPrimitive[prim.ID]
	if !ok {
		return
	}
	delete(sd.groupByPrimitive, prim.ID)

	group := sd.PrimitiveGroups.Get(groupIndex)
	for i, member := range group.Primitives {
		if member.ID == prim.ID {
			group.Primitives = append(group.Primitives[:i], group.Primitives[i+1:]...)
			break
		}
	}

	if len(group.Primitives) == 0 {
		sd.RemoveMeshCards(groupIndex)
		if group.MergeID >= 0 {
			delete(sd.groupByMergeID, group.MergeID)
		}
		sd.PrimitiveGroups.RemoveSpan(groupIndex, 1)
		return
	}

	group.UpdateWorldBounds()
	sd.invalidateGroupMeshCards(groupIndex)
}

func (sd *SceneData) updatePrimitive(prim *scene.Primitive, cfg *Config) {
	groupIndex, ok := sd.groupByPrimitive[prim.ID]
	if !ok {
		sd.addPrimitive(prim, cfg)
		return
	}

	group := sd.PrimitiveGroups.Get(groupIndex)
	group.UpdateWorldBounds()

	if group.Merged() {
		// Merged card layout depends on instance placement.
		sd.invalidateGroupMeshCards(groupIndex)
		return
	}
	if group.HasMeshCards() {
		sd.UpdateMeshCards(groupIndex, prim.LocalToWorld)
	}
}

// invalidateGroupMeshCards drops the group's cards so the primitive
// scheduler rebuilds them on the next eligible frame.
func (sd *SceneData) invalidateGroupMeshCards(groupIndex int32) {
	group := sd.PrimitiveGroups.Get(groupIndex)
	if group.HasMeshCards() {
		sd.RemoveMeshCards(groupIndex)
	}
	group.ValidMeshCards = true
}

// AddMeshCards realizes the cards of a primitive group. Calling it on a
// group that already has cards is a no-op.
func (sd *SceneData) AddMeshCards(groupIndex int32, cfg *Config) {
	group := sd.PrimitiveGroups.Get(groupIndex)
	if group.HasMeshCards() || !group.ValidMeshCards || len(group.Primitives) == 0 {
		return
	}

	var data meshCardsBuildData
	var localToWorld math.Mat4
	var ok bool

	switch {
	case group.Heightfield:
		data, ok = buildMeshCardsDataForHeightfield(group.Primitives[0])
		localToWorld = group.Primitives[0].LocalToWorld
	case group.Merged():
		data, ok = buildMeshCardsDataForMergedInstances(group, cfg)
		center := group.WorldBounds.Center()
		localToWorld = math.Translate(center.X, center.Y, center.Z)
	default:
		data, ok = buildMeshCardsDataForMesh(group.Primitives[0], group.EmissiveLightSource, cfg)
		localToWorld = group.Primitives[0].LocalToWorld
	}

	if !ok {
		group.ValidMeshCards = false
		logger.Debug("no cards generated for primitive group",
			zap.Int32("group", groupIndex),
			zap.Bool("merged", group.Merged()),
		)
		return
	}

	group.MeshCardsIndex = sd.addMeshCardsFromBuildData(groupIndex, group, localToWorld, &data)

	if group.Heightfield {
		heightfieldIndex := sd.Heightfields.AddSpan(1)
		*sd.Heightfields.Get(heightfieldIndex) = Heightfield{
			MeshCardsIndex:      group.MeshCardsIndex,
			PrimitiveGroupIndex: groupIndex,
		}
		group.HeightfieldIndex = heightfieldIndex
	}
}

func (sd *SceneData) addMeshCardsFromBuildData(groupIndex int32, group *PrimitiveGroup,
	localToWorld math.Mat4, data *meshCardsBuildData) int32 {

	numCards := int32(len(data.Cards))
	firstCard := sd.Cards.AddSpan(numCards)
	meshCardsIndex := sd.MeshCards.AddSpan(1)

	*sd.MeshCards.Get(meshCardsIndex) = MeshCards{
		LocalToWorld:        localToWorld,
		FirstCardIndex:      firstCard,
		NumCards:            numCards,
		PrimitiveGroupIndex: groupIndex,
		Heightfield:         group.Heightfield,
	}

	for i := int32(0); i < numCards; i++ {
		buildCard := &data.Cards[i]
		card := sd.Cards.Get(firstCard + i)
		card.Initialize(group.CardResolutionScale, localToWorld, buildCard.OBB,
			meshCardsIndex, i, buildCard.DirectionIndex, group.Heightfield)
		sd.dirtyCards.Add(firstCard + i)
	}

	sd.MeshCards.Get(meshCardsIndex).updateLookup(&sd.Cards)
	sd.dirtyMeshCards.Add(meshCardsIndex)
	return meshCardsIndex
}

// RemoveMeshCards frees every card page of the group and returns its card
// and mesh-cards spans to the registry free pool.
func (sd *SceneData) RemoveMeshCards(groupIndex int32) {
	group := sd.PrimitiveGroups.Get(groupIndex)
	if !group.HasMeshCards() {
		return
	}

	meshCards := sd.MeshCards.Get(group.MeshCardsIndex)
	for i := int32(0); i < meshCards.NumCards; i++ {
		sd.removeCardFromAtlas(meshCards.FirstCardIndex + i)
	}

	sd.Cards.RemoveSpan(meshCards.FirstCardIndex, meshCards.NumCards)
	sd.MeshCards.RemoveSpan(group.MeshCardsIndex, 1)
	group.MeshCardsIndex = InvalidIndex

	if group.HeightfieldIndex >= 0 {
		sd.Heightfields.RemoveSpan(group.HeightfieldIndex, 1)
		group.HeightfieldIndex = InvalidIndex
	}
}

// UpdateMeshCards re-transforms an existing group without reallocating
// cards. Non-orthogonal transforms are ignored.
func (sd *SceneData) UpdateMeshCards(groupIndex int32, localToWorld math.Mat4) {
	group := sd.PrimitiveGroups.Get(groupIndex)
	if !group.HasMeshCards() || !isOrthogonalTransform(localToWorld) {
		return
	}

	meshCards := sd.MeshCards.Get(group.MeshCardsIndex)
	meshCards.LocalToWorld = localToWorld
	for i := int32(0); i < meshCards.NumCards; i++ {
		cardIndex := meshCards.FirstCardIndex + i
		sd.Cards.Get(cardIndex).SetTransform(localToWorld)
		sd.dirtyCards.Add(cardIndex)
	}
	sd.dirtyMeshCards.Add(group.MeshCardsIndex)
}

// removeCardFromAtlas frees the card's entire mip chain.
func (sd *SceneData) removeCardFromAtlas(cardIndex int32) {
	sd.FreeVirtualSurface(cardIndex, MinResLevel, MaxResLevel)
	card := sd.Cards.Get(cardIndex)
	card.Visible = false
	card.DesiredLockedResLevel = 0
}

// ReallocVirtualSurface gives the card's mip at resLevel a page table
// span. Pages start unmapped; MapSurfaceCachePage realizes them.
func (sd *SceneData) ReallocVirtualSurface(cardIndex, resLevel int32, lock bool) {
	card := sd.Cards.Get(cardIndex)
	mip := card.GetMipMap(resLevel)
	if mip.IsAllocated() {
		mip.Locked = mip.Locked || lock
		return
	}

	desc := card.MipMapDesc(resLevel)
	numPages := desc.SizeInPages.X * desc.SizeInPages.Y
	offset := sd.PageTable.AddSpan(numPages)

	mip.SizeInPagesX = desc.SizeInPages.X
	mip.SizeInPagesY = desc.SizeInPages.Y
	mip.ResLevelX = desc.ResLevelX
	mip.ResLevelY = desc.ResLevelY
	mip.PageTableSpanOffset = offset
	mip.PageTableSpanSize = numPages
	mip.Locked = lock

	for local := int32(0); local < numPages; local++ {
		entry := sd.PageTable.Get(offset + local)
		*entry = unmappedPageEntry(cardIndex, resLevel)
		entry.CardUVRect = mip.PageUVRect(local)
		if desc.SubAllocation {
			entry.SubAllocationSize = desc.PageResolution
		}
		sd.dirtyPages.Add(offset + local)
	}

	card.UpdateMinMaxAllocatedLevel()
	sd.dirtyCards.Add(cardIndex)
}

// FreeVirtualSurface releases the card's mips in [fromResLevel, toResLevel],
// unmapping any physical pages they hold.
func (sd *SceneData) FreeVirtualSurface(cardIndex, fromResLevel, toResLevel int32) {
	card := sd.Cards.Get(cardIndex)

	for level := fromResLevel; level <= toResLevel; level++ {
		mip := card.GetMipMap(level)
		if !mip.IsAllocated() {
			continue
		}
		for local := int32(0); local < mip.PageTableSpanSize; local++ {
			pageIndex := mip.PageTableIndex(local)
			entry := sd.PageTable.Get(pageIndex)
			if entry.IsMapped() {
				sd.UnmapSurfaceCachePage(entry, pageIndex)
			}
		}
		sd.PageTable.RemoveSpan(mip.PageTableSpanOffset, mip.PageTableSpanSize)
		*mip = SurfaceMipMap{}
	}

	card.UpdateMinMaxAllocatedLevel()
	sd.dirtyCards.Add(cardIndex)
}

// MapSurfaceCachePage realizes one page of a mip into the physical atlas.
// Unlocked pages become eviction candidates keyed by the current frame.
func (sd *SceneData) MapSurfaceCachePage(mip *SurfaceMipMap, pageIndex int32) {
	entry := sd.PageTable.Get(pageIndex)
	if entry.IsMapped() {
		return
	}

	var alloc Allocation
	sd.Allocator.Allocate(entry, &alloc)
	entry.PhysicalPageCoord = alloc.PhysicalPageCoord
	entry.PhysicalAtlasRect = alloc.PhysicalAtlasRect
	entry.SamplePageIndex = pageIndex

	if !mip.Locked {
		sd.UnlockedAllocationHeap.Update(sd.frameIndex, pageIndex)
	}
	sd.LastCapturedPageHeap.Update(0, pageIndex)
	sd.dirtyPages.Add(pageIndex)
}

// UnmapSurfaceCachePage releases one page's physical allocation.
func (sd *SceneData) UnmapSurfaceCachePage(entry *PageTableEntry, pageIndex int32) {
	if !entry.IsMapped() {
		return
	}
	sd.Allocator.Free(entry)
	entry.PhysicalPageCoord = IntPoint{-1, -1}
	entry.PhysicalAtlasRect = IntRect{}
	entry.SamplePageIndex = InvalidIndex

	sd.UnlockedAllocationHeap.Remove(pageIndex)
	sd.LastCapturedPageHeap.Remove(pageIndex)
	sd.dirtyPages.Add(pageIndex)
}

// EvictOldestAllocation unmaps the globally oldest-used unlocked page,
// unless it was used within the grace window. Returns whether a page was
// evicted.
func (sd *SceneData) EvictOldestAllocation(maxFramesSinceLastUsed uint32, dirtyCards *indexSet) bool {
	if sd.UnlockedAllocationHeap.Len() == 0 {
		return false
	}

	pageIndex := sd.UnlockedAllocationHeap.Top()
	lastUsed := sd.UnlockedAllocationHeap.Key(pageIndex)
	if lastUsed+maxFramesSinceLastUsed > sd.frameIndex {
		return false
	}

	entry := sd.PageTable.Get(pageIndex)
	cardIndex := entry.CardIndex
	sd.UnmapSurfaceCachePage(entry, pageIndex)
	dirtyCards.Add(cardIndex)
	return true
}

// UpdateCardMipMapHierarchy repairs the card's mip chain so every
// unmapped page samples the covering page of the nearest coarser fully
// mapped mip.
func (sd *SceneData) UpdateCardMipMapHierarchy(cardIndex int32) {
	card := sd.Cards.Get(cardIndex)
	card.UpdateMinMaxAllocatedLevel()

	fallbackLevel := InvalidIndex
	for level := int32(MinResLevel); level <= MaxResLevel; level++ {
		mip := card.GetMipMap(level)
		if !mip.IsAllocated() {
			continue
		}

		fullyMapped := true
		for local := int32(0); local < mip.PageTableSpanSize; local++ {
			pageIndex := mip.PageTableIndex(local)
			entry := sd.PageTable.Get(pageIndex)
			if entry.IsMapped() {
				entry.SamplePageIndex = pageIndex
				continue
			}
			fullyMapped = false
			if fallbackLevel != InvalidIndex {
				entry.SamplePageIndex = sd.coveringPageIndex(card, fallbackLevel, entry.CardUVRect)
			} else {
				entry.SamplePageIndex = InvalidIndex
			}
			sd.dirtyPages.Add(pageIndex)
		}

		if fullyMapped {
			fallbackLevel = level
		}
	}
	sd.dirtyCards.Add(cardIndex)
}

// coveringPageIndex returns the page of the given mip level containing the
// center of a card-space UV rect.
func (sd *SceneData) coveringPageIndex(card *Card, level int32, uvRect math.Vec4) int32 {
	mip := card.GetMipMap(level)
	u := (uvRect[0] + uvRect[2]) * 0.5
	v := (uvRect[1] + uvRect[3]) * 0.5
	pageX := math.ClampInt(int32(u*float32(mip.SizeInPagesX)), 0, mip.SizeInPagesX-1)
	pageY := math.ClampInt(int32(v*float32(mip.SizeInPagesY)), 0, mip.SizeInPagesY-1)
	return mip.PageTableIndex(pageY*mip.SizeInPagesX + pageX)
}

// ForceEvictEntireCache drops every card's resident mips. The next frame
// rebuilds the cache from scratch.
func (sd *SceneData) ForceEvictEntireCache() {
	var cardIndices []int32
	sd.Cards.ForEach(func(index int32, _ *Card) {
		cardIndices = append(cardIndices, index)
	})
	for _, cardIndex := range cardIndices {
		sd.removeCardFromAtlas(cardIndex)
	}
	logger.Info("surface cache evicted", zap.Int("cards", len(cardIndices)))
}

package surfacecache

import (
	"go.uber.org/zap"

	"github.com/Faultbox/radiant/internal/logger"
)

// SceneStats is an occupancy snapshot of the whole cache, cheap enough to
// collect every frame.
type SceneStats struct {
	FrameIndex uint32

	NumPrimitiveGroups int32
	NumMeshCards       int32
	NumCards           int32
	NumHeightfields    int32

	NumPageTableEntries int32
	NumMappedPages      int32
	NumLockedPages      int32

	Allocator AllocatorStats
}

// CollectStats walks the registries and the allocator.
func (sd *SceneData) CollectStats() SceneStats {
	stats := SceneStats{
		FrameIndex:         sd.frameIndex,
		NumPrimitiveGroups: sd.PrimitiveGroups.NumAllocated(),
		NumMeshCards:       sd.MeshCards.NumAllocated(),
		NumCards:           sd.Cards.NumAllocated(),
		NumHeightfields:    sd.Heightfields.NumAllocated(),
		Allocator:          sd.Allocator.Stats(),
	}

	sd.PageTable.ForEach(func(pageIndex int32, entry *PageTableEntry) {
		stats.NumPageTableEntries++
		if entry.IsMapped() {
			stats.NumMappedPages++
			if !sd.UnlockedAllocationHeap.Contains(pageIndex) {
				stats.NumLockedPages++
			}
		}
	})
	return stats
}

// DumpStats logs the snapshot plus the frame's capture counters.
func (sd *SceneData) DumpStats(update *CaptureUpdate) {
	stats := sd.CollectStats()

	fields := []zap.Field{
		zap.Uint32("frame", stats.FrameIndex),
		zap.Int32("groups", stats.NumPrimitiveGroups),
		zap.Int32("meshCards", stats.NumMeshCards),
		zap.Int32("cards", stats.NumCards),
		zap.Int32("heightfields", stats.NumHeightfields),
		zap.Int32("pageEntries", stats.NumPageTableEntries),
		zap.Int32("mappedPages", stats.NumMappedPages),
		zap.Int32("lockedPages", stats.NumLockedPages),
		zap.Int32("freePages", stats.Allocator.NumFreePages),
		zap.Int32("binPages", stats.Allocator.BinNumPages),
		zap.Int32("binSubAllocations", stats.Allocator.BinNumSubAllocations),
		zap.Int64("binWastedTexels", stats.Allocator.BinWastedTexels),
	}
	if update != nil {
		fields = append(fields,
			zap.Int("captures", len(update.Pages)),
			zap.Int32("locked", update.NumLockedCaptures),
			zap.Int32("hiRes", update.NumHiResCaptures),
			zap.Int32("refreshes", update.NumRefreshes),
			zap.Int32("evictions", update.NumEvictions),
		)
	}
	logger.Info("surface cache stats", fields...)
}

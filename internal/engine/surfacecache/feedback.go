package surfacecache

import "sort"

// Feedback carries one frame of readback from the lighting passes: which
// resident pages were actually sampled, and which cards want optional
// hi-res detail pages.
type Feedback struct {
	// SampledPages are page table indices touched by lighting reads.
	SampledPages []int32

	// HiResWants become single page requests behind the locked phase.
	HiResWants []SurfaceCacheRequest
}

// FeedbackSource produces surface cache feedback for the current frame.
// The renderer polls it once per frame before request processing.
type FeedbackSource interface {
	CollectFeedback() Feedback
}

// ApplyFeedback folds feedback into the frame's request list. Sampled
// pages refresh their last-used stamp so eviction spares them; hi-res
// wants are merged into the request list, which is re-sorted by distance.
func (sd *SceneData) ApplyFeedback(fb Feedback, requests []SurfaceCacheRequest) []SurfaceCacheRequest {
	for _, pageIndex := range fb.SampledPages {
		if !sd.PageTable.IsAllocated(pageIndex) {
			continue
		}
		if sd.UnlockedAllocationHeap.Contains(pageIndex) {
			sd.UnlockedAllocationHeap.Update(sd.frameIndex, pageIndex)
		}
	}

	if len(fb.HiResWants) == 0 {
		return requests
	}
	for _, want := range fb.HiResWants {
		if !sd.Cards.IsAllocated(want.CardIndex) || want.IsLockedMip() {
			continue
		}
		if want.ResLevel < MinResLevel || want.ResLevel > MaxResLevel {
			continue
		}
		requests = append(requests, want)
	}
	sort.Slice(requests, func(i, j int) bool {
		return requests[i].Distance < requests[j].Distance
	})
	return requests
}

package atlas

import (
	"github.com/Faultbox/radiant/internal/engine/surfacecache"
	"github.com/Faultbox/radiant/pkg/math"
)

// cardHistory remembers where a card's captured mip lived in the physical
// atlas, so lighting can be resampled after the card moves or re-resolves.
type cardHistory struct {
	sizeInPages surfacecache.IntPoint
	pageRects   []surfacecache.IntRect
}

// Compositor drives the atlas backend for one frame of capture work:
// clear the target capture rects, resample eligible history into them,
// and after the capture pass copy everything to its persistent home.
type Compositor struct {
	backend Backend
	history map[int32]cardHistory

	physicalSize surfacecache.IntPoint
	captureSize  surfacecache.IntPoint
}

// NewCompositor wraps a backend.
func NewCompositor(backend Backend) *Compositor {
	return &Compositor{
		backend: backend,
		history: make(map[int32]cardHistory),
	}
}

// BeginFrame resizes the atlas targets when the configuration changed.
func (c *Compositor) BeginFrame(cfg *surfacecache.Config) error {
	physical := cfg.PhysicalAtlasSize
	capture := cfg.CaptureAtlasSize()
	if physical == c.physicalSize && capture == c.captureSize {
		return nil
	}
	if err := c.backend.Resize(physical, capture); err != nil {
		return err
	}
	c.physicalSize = physical
	c.captureSize = capture
	// A resize invalidates all prior atlas content.
	c.history = make(map[int32]cardHistory)
	return nil
}

// PrepareCapture clears the capture rects the frame will write and queues
// lighting resampling for every eligible page.
func (c *Compositor) PrepareCapture(update *surfacecache.CaptureUpdate) {
	if len(update.Pages) == 0 {
		return
	}

	rects := make([]surfacecache.IntRect, 0, len(update.Pages))
	var resamples []ResampleOp

	for i := range update.Pages {
		page := &update.Pages[i]
		rects = append(rects, page.CaptureAtlasRect)

		if !page.ResampleLastLighting {
			// First-time content invalidates whatever an earlier card
			// left behind under a recycled index.
			delete(c.history, page.CardIndex)
			continue
		}
		if src, ok := c.historySourceRect(page.CardIndex, page.CardUVRect); ok {
			resamples = append(resamples, ResampleOp{Src: src, Dst: page.CaptureAtlasRect})
		}
	}

	c.backend.ClearCaptureRects(rects)
	if len(resamples) > 0 {
		c.backend.ResampleLighting(resamples)
	}
}

// historySourceRect finds the previously captured page covering a UV rect's
// center. The rect sizes may differ; the backend stretches on copy.
func (c *Compositor) historySourceRect(cardIndex int32, uvRect math.Vec4) (surfacecache.IntRect, bool) {
	hist, ok := c.history[cardIndex]
	if !ok || len(hist.pageRects) == 0 {
		return surfacecache.IntRect{}, false
	}
	u := (uvRect[0] + uvRect[2]) * 0.5
	v := (uvRect[1] + uvRect[3]) * 0.5
	pageX := math.ClampInt(int32(u*float32(hist.sizeInPages.X)), 0, hist.sizeInPages.X-1)
	pageY := math.ClampInt(int32(v*float32(hist.sizeInPages.Y)), 0, hist.sizeInPages.Y-1)
	return hist.pageRects[pageY*hist.sizeInPages.X+pageX], true
}

// CompositeCapturedPages copies the frame's written capture rects into the
// physical atlas and records the new page placement as history.
func (c *Compositor) CompositeCapturedPages(sd *surfacecache.SceneData, update *surfacecache.CaptureUpdate) {
	if len(update.Pages) == 0 {
		return
	}

	ops := make([]CopyOp, 0, len(update.Pages))
	for i := range update.Pages {
		page := &update.Pages[i]
		ops = append(ops, CopyOp{Src: page.CaptureAtlasRect, Dst: page.PhysicalAtlasRect})
	}
	c.backend.CompositePages(ops)

	for i := range update.Pages {
		c.recordHistory(sd, update.Pages[i].CardIndex)
	}
}

// recordHistory snapshots the card's locked mip placement.
func (c *Compositor) recordHistory(sd *surfacecache.SceneData, cardIndex int32) {
	if !sd.Cards.IsAllocated(cardIndex) {
		return
	}
	card := sd.Cards.Get(cardIndex)
	if !card.IsAllocated() {
		return
	}

	mip := card.GetMipMap(card.MinAllocatedResLevel)
	hist := cardHistory{
		sizeInPages: surfacecache.IntPoint{X: mip.SizeInPagesX, Y: mip.SizeInPagesY},
		pageRects:   make([]surfacecache.IntRect, mip.PageTableSpanSize),
	}
	for local := int32(0); local < mip.PageTableSpanSize; local++ {
		entry := sd.PageTable.Get(mip.PageTableIndex(local))
		if !entry.IsMapped() {
			return // incomplete mip, keep the old history
		}
		hist.pageRects[local] = entry.PhysicalAtlasRect
	}
	c.history[cardIndex] = hist
}

// UploadBuffers forwards the packed lookup buffers.
func (c *Compositor) UploadBuffers(buffers *surfacecache.GPUBuffers, ranges surfacecache.DirtyRanges) {
	c.backend.UploadBuffers(buffers, ranges)
}

// Release frees the backend targets.
func (c *Compositor) Release() {
	c.backend.Release()
}

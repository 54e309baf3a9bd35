// Package atlas owns the persistent surface cache textures and the
// transient capture atlas: rect-scoped clears before capture, page
// composition into the persistent atlas afterwards, and resampling of
// accumulated lighting across card reallocations.
package atlas

import "github.com/Faultbox/radiant/internal/engine/surfacecache"

// CopyOp copies one written capture rect into its persistent home.
type CopyOp struct {
	Src surfacecache.IntRect // capture atlas
	Dst surfacecache.IntRect // physical atlas
}

// ResampleOp stretches prior persistent lighting into a capture rect
// before the capture pass overwrites the page.
type ResampleOp struct {
	Src surfacecache.IntRect // physical atlas, previous allocation
	Dst surfacecache.IntRect // capture atlas
}

// Backend abstracts the GPU side of the atlas. The null backend keeps the
// whole pipeline runnable headless.
type Backend interface {
	// Resize (re)creates the persistent and capture atlas targets.
	Resize(physicalSize, captureSize surfacecache.IntPoint) error

	// ClearCaptureRects clears only the capture rects about to be
	// rewritten, never the whole atlas.
	ClearCaptureRects(rects []surfacecache.IntRect)

	// ResampleLighting copies prior lighting into capture rects.
	ResampleLighting(ops []ResampleOp)

	// CompositePages copies written capture rects into the physical atlas.
	CompositePages(ops []CopyOp)

	// UploadBuffers pushes the packed lookup buffers to the GPU.
	UploadBuffers(buffers *surfacecache.GPUBuffers, ranges surfacecache.DirtyRanges)

	Release()
}

// NullBackend is the headless Backend used by the simulator and tests.
// It only counts work.
type NullBackend struct {
	PhysicalSize surfacecache.IntPoint
	CaptureSize  surfacecache.IntPoint

	NumResizes         int
	NumClearedRects    int
	NumResampledPages  int
	NumCompositedPages int
	NumBufferUploads   int
}

func (b *NullBackend) Resize(physicalSize, captureSize surfacecache.IntPoint) error {
	b.PhysicalSize = physicalSize
	b.CaptureSize = captureSize
	b.NumResizes++
	return nil
}

func (b *NullBackend) ClearCaptureRects(rects []surfacecache.IntRect) {
	b.NumClearedRects += len(rects)
}

func (b *NullBackend) ResampleLighting(ops []ResampleOp) {
	b.NumResampledPages += len(ops)
}

func (b *NullBackend) CompositePages(ops []CopyOp) {
	b.NumCompositedPages += len(ops)
}

func (b *NullBackend) UploadBuffers(buffers *surfacecache.GPUBuffers, ranges surfacecache.DirtyRanges) {
	b.NumBufferUploads++
}

func (b *NullBackend) Release() {}

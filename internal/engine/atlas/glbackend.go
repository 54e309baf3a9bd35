package atlas

import (
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"
	"go.uber.org/zap"

	"github.com/Faultbox/radiant/internal/engine/surfacecache"
	"github.com/Faultbox/radiant/internal/logger"
)

// Atlas texture layers. Material layers are written by capture passes,
// lighting layers by the lighting passes and carried across frames.
const (
	LayerAlbedo = iota
	LayerNormal
	LayerEmissive
	LayerDepth
	LayerDirectLighting
	LayerIndirectLighting
	NumLayers
)

var layerFormats = [NumLayers]struct {
	internal int32
	format   uint32
	pixel    uint32
}{
	{gl.RGBA8, gl.RGBA, gl.UNSIGNED_BYTE},    // albedo
	{gl.RGBA8, gl.RGBA, gl.UNSIGNED_BYTE},    // normal
	{gl.RGBA8, gl.RGBA, gl.UNSIGNED_BYTE},    // emissive
	{gl.R32F, gl.RED, gl.FLOAT},              // depth
	{gl.RGBA16F, gl.RGBA, gl.HALF_FLOAT},     // direct lighting
	{gl.RGBA16F, gl.RGBA, gl.HALF_FLOAT},     // indirect lighting
}

// atlasTarget is one multi-layer atlas with a framebuffer per layer for
// blit sources and destinations.
type atlasTarget struct {
	size     surfacecache.IntPoint
	textures [NumLayers]uint32
	fbos     [NumLayers]uint32
}

func (t *atlasTarget) create(size surfacecache.IntPoint) error {
	t.size = size
	gl.GenTextures(NumLayers, &t.textures[0])
	gl.GenFramebuffers(NumLayers, &t.fbos[0])

	for layer := 0; layer < NumLayers; layer++ {
		fmtDesc := layerFormats[layer]
		gl.BindTexture(gl.TEXTURE_2D, t.textures[layer])
		gl.TexImage2D(gl.TEXTURE_2D, 0, fmtDesc.internal, size.X, size.Y, 0,
			fmtDesc.format, fmtDesc.pixel, nil)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)

		gl.BindFramebuffer(gl.FRAMEBUFFER, t.fbos[layer])
		gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0,
			gl.TEXTURE_2D, t.textures[layer], 0)
		if status := gl.CheckFramebufferStatus(gl.FRAMEBUFFER); status != gl.FRAMEBUFFER_COMPLETE {
			gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
			return fmt.Errorf("atlas layer %d framebuffer incomplete: 0x%x", layer, status)
		}
	}
	gl.BindTexture(gl.TEXTURE_2D, 0)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	return nil
}

func (t *atlasTarget) release() {
	if t.textures[0] != 0 {
		gl.DeleteTextures(NumLayers, &t.textures[0])
		gl.DeleteFramebuffers(NumLayers, &t.fbos[0])
		t.textures = [NumLayers]uint32{}
		t.fbos = [NumLayers]uint32{}
	}
}

// lookupBuffer is one packed registry buffer exposed to shaders as a
// texture buffer object.
type lookupBuffer struct {
	bo     uint32
	tex    uint32
	format uint32
}

func (b *lookupBuffer) create(format uint32) {
	gl.GenBuffers(1, &b.bo)
	gl.GenTextures(1, &b.tex)
	b.format = format
}

func (b *lookupBuffer) upload(size int, data interface{}) {
	if size == 0 {
		return
	}
	gl.BindBuffer(gl.TEXTURE_BUFFER, b.bo)
	gl.BufferData(gl.TEXTURE_BUFFER, size, gl.Ptr(data), gl.DYNAMIC_DRAW)
	gl.BindTexture(gl.TEXTURE_BUFFER, b.tex)
	gl.TexBuffer(gl.TEXTURE_BUFFER, b.format, b.bo)
	gl.BindBuffer(gl.TEXTURE_BUFFER, 0)
}

func (b *lookupBuffer) release() {
	if b.bo != 0 {
		gl.DeleteBuffers(1, &b.bo)
		gl.DeleteTextures(1, &b.tex)
		b.bo = 0
		b.tex = 0
	}
}

// GLBackend keeps the atlases as OpenGL textures. It must be used on the
// thread owning the GL context.
type GLBackend struct {
	physical atlasTarget
	capture  atlasTarget

	cards        lookupBuffer
	meshCards    lookupBuffer
	heightfields lookupBuffer
	pageTable    lookupBuffer
}

// NewGLBackend creates the lookup buffers. Atlas targets are created on
// the first Resize.
func NewGLBackend() *GLBackend {
	b := &GLBackend{}
	b.cards.create(gl.RGBA32F)
	b.meshCards.create(gl.RGBA32F)
	b.heightfields.create(gl.RGBA32UI)
	b.pageTable.create(gl.RGBA32UI)
	return b
}

func (b *GLBackend) Resize(physicalSize, captureSize surfacecache.IntPoint) error {
	b.physical.release()
	b.capture.release()
	if err := b.physical.create(physicalSize); err != nil {
		return fmt.Errorf("creating physical atlas: %w", err)
	}
	if err := b.capture.create(captureSize); err != nil {
		return fmt.Errorf("creating capture atlas: %w", err)
	}
	logger.Info("atlas targets created",
		zap.Int32("physicalWidth", physicalSize.X),
		zap.Int32("physicalHeight", physicalSize.Y),
		zap.Int32("captureWidth", captureSize.X),
		zap.Int32("captureHeight", captureSize.Y),
	)
	return nil
}

// ClearCaptureRects scissor-clears only the rects about to be rewritten.
func (b *GLBackend) ClearCaptureRects(rects []surfacecache.IntRect) {
	gl.Enable(gl.SCISSOR_TEST)
	for layer := 0; layer < NumLayers; layer++ {
		gl.BindFramebuffer(gl.FRAMEBUFFER, b.capture.fbos[layer])
		gl.ClearColor(0, 0, 0, 0)
		for _, rect := range rects {
			gl.Scissor(rect.Min.X, rect.Min.Y, rect.Width(), rect.Height())
			gl.Clear(gl.COLOR_BUFFER_BIT)
		}
	}
	gl.Disable(gl.SCISSOR_TEST)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
}

// ResampleLighting stretches prior lighting from the physical atlas into
// capture rects.
func (b *GLBackend) ResampleLighting(ops []ResampleOp) {
	for _, layer := range []int{LayerDirectLighting, LayerIndirectLighting} {
		gl.BindFramebuffer(gl.READ_FRAMEBUFFER, b.physical.fbos[layer])
		gl.BindFramebuffer(gl.DRAW_FRAMEBUFFER, b.capture.fbos[layer])
		for _, op := range ops {
			gl.BlitFramebuffer(
				op.Src.Min.X, op.Src.Min.Y, op.Src.Max.X, op.Src.Max.Y,
				op.Dst.Min.X, op.Dst.Min.Y, op.Dst.Max.X, op.Dst.Max.Y,
				gl.COLOR_BUFFER_BIT, gl.LINEAR)
		}
	}
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
}

// CompositePages copies written capture rects into the physical atlas.
func (b *GLBackend) CompositePages(ops []CopyOp) {
	for layer := 0; layer < NumLayers; layer++ {
		gl.BindFramebuffer(gl.READ_FRAMEBUFFER, b.capture.fbos[layer])
		gl.BindFramebuffer(gl.DRAW_FRAMEBUFFER, b.physical.fbos[layer])
		for _, op := range ops {
			gl.BlitFramebuffer(
				op.Src.Min.X, op.Src.Min.Y, op.Src.Max.X, op.Src.Max.Y,
				op.Dst.Min.X, op.Dst.Min.Y, op.Dst.Max.X, op.Dst.Max.Y,
				gl.COLOR_BUFFER_BIT, gl.NEAREST)
		}
	}
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
}

// UploadBuffers re-uploads the packed lookup buffers.
func (b *GLBackend) UploadBuffers(buffers *surfacecache.GPUBuffers, ranges surfacecache.DirtyRanges) {
	if len(ranges.Cards) > 0 {
		b.cards.upload(len(buffers.Cards)*4, buffers.Cards)
	}
	if len(ranges.MeshCards) > 0 {
		b.meshCards.upload(len(buffers.MeshCards)*4, buffers.MeshCards)
	}
	if len(ranges.Heightfields) > 0 {
		b.heightfields.upload(len(buffers.Heightfields)*4, buffers.Heightfields)
	}
	if len(ranges.PageTable) > 0 {
		b.pageTable.upload(len(buffers.PageTable)*4, buffers.PageTable)
	}
}

// PhysicalTexture exposes a layer of the persistent atlas for debug views.
func (b *GLBackend) PhysicalTexture(layer int) uint32 {
	return b.physical.textures[layer]
}

// BlitPhysicalLayer stretches one atlas layer onto the default
// framebuffer for debug viewing.
func (b *GLBackend) BlitPhysicalLayer(layer int, dstWidth, dstHeight int32) {
	if layer < 0 || layer >= NumLayers || b.physical.textures[0] == 0 {
		return
	}
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, b.physical.fbos[layer])
	gl.BindFramebuffer(gl.DRAW_FRAMEBUFFER, 0)
	gl.BlitFramebuffer(
		0, 0, b.physical.size.X, b.physical.size.Y,
		0, 0, dstWidth, dstHeight,
		gl.COLOR_BUFFER_BIT, gl.LINEAR)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
}

func (b *GLBackend) Release() {
	b.physical.release()
	b.capture.release()
	b.cards.release()
	b.meshCards.release()
	b.heightfields.release()
	b.pageTable.release()
}

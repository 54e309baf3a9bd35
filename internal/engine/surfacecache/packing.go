package surfacecache

// Strides of the flat GPU records, in elements per entry.
const (
	CardStrideFloats       = 20
	MeshCardsStrideFloats  = 24
	HeightfieldStrideUints = 4
	PageTableStrideUints   = 8
)

// GPUBuffers are the flat lookup buffers lighting passes read. Entries are
// addressed by registry index times stride; unallocated slots stay zeroed.
type GPUBuffers struct {
	Cards        []float32
	MeshCards    []float32
	Heightfields []uint32
	PageTable    []uint32
}

// DirtyRanges lists the entry indices rewritten by the last pack, per
// buffer, for partial uploads.
type DirtyRanges struct {
	Cards        []int32
	MeshCards    []int32
	PageTable    []int32
	Heightfields []int32
}

// PackDirty rewrites the GPU records of every index dirtied since the last
// call and clears the dirty sets. Buffers grow to cover the registries.
func (sd *SceneData) PackDirty(buf *GPUBuffers) DirtyRanges {
	buf.Cards = growFloats(buf.Cards, sd.Cards.Len()*CardStrideFloats)
	buf.MeshCards = growFloats(buf.MeshCards, sd.MeshCards.Len()*MeshCardsStrideFloats)
	buf.Heightfields = growUints(buf.Heightfields, sd.Heightfields.Len()*HeightfieldStrideUints)
	buf.PageTable = growUints(buf.PageTable, sd.PageTable.Len()*PageTableStrideUints)

	var ranges DirtyRanges

	for _, index := range sd.dirtyCards.Indices() {
		out := buf.Cards[index*CardStrideFloats : (index+1)*CardStrideFloats]
		if sd.Cards.IsAllocated(index) {
			packCard(sd.Cards.Get(index), out)
		} else {
			zeroFloats(out)
		}
		ranges.Cards = append(ranges.Cards, index)
	}

	for _, index := range sd.dirtyMeshCards.Indices() {
		out := buf.MeshCards[index*MeshCardsStrideFloats : (index+1)*MeshCardsStrideFloats]
		if sd.MeshCards.IsAllocated(index) {
			packMeshCards(sd.MeshCards.Get(index), out)
		} else {
			zeroFloats(out)
		}
		ranges.MeshCards = append(ranges.MeshCards, index)
	}

	for _, index := range sd.dirtyPages.Indices() {
		out := buf.PageTable[index*PageTableStrideUints : (index+1)*PageTableStrideUints]
		if sd.PageTable.IsAllocated(index) {
			packPageTableEntry(sd.PageTable.Get(index), out)
		} else {
			zeroUints(out)
		}
		ranges.PageTable = append(ranges.PageTable, index)
	}

	sd.Heightfields.ForEach(func(index int32, hf *Heightfield) {
		out := buf.Heightfields[index*HeightfieldStrideUints : (index+1)*HeightfieldStrideUints]
		packHeightfield(hf, out)
		ranges.Heightfields = append(ranges.Heightfields, index)
	})

	sd.dirtyCards.Reset()
	sd.dirtyMeshCards.Reset()
	sd.dirtyPages.Reset()
	return ranges
}

func packCard(card *Card, out []float32) {
	obb := &card.WorldOBB
	out[0], out[1], out[2] = obb.Origin.X, obb.Origin.Y, obb.Origin.Z
	out[3] = float32(card.DirectionIndex)
	out[4], out[5], out[6] = obb.AxisX.X, obb.AxisX.Y, obb.AxisX.Z
	out[7] = float32(card.MeshCardsIndex)
	out[8], out[9], out[10] = obb.AxisY.X, obb.AxisY.Y, obb.AxisY.Z
	out[11] = float32(card.DesiredLockedResLevel)
	out[12], out[13], out[14] = obb.AxisZ.X, obb.AxisZ.Y, obb.AxisZ.Z
	out[15] = boolFloat(card.Visible)
	out[16], out[17], out[18] = obb.Extent.X, obb.Extent.Y, obb.Extent.Z
	out[19] = boolFloat(card.Heightfield)
}

func packMeshCards(meshCards *MeshCards, out []float32) {
	m := &meshCards.LocalToWorld
	// Upper 3x4 of the transform, row padded with registry data.
	out[0], out[1], out[2], out[3] = m[0], m[4], m[8], m[12]
	out[4], out[5], out[6], out[7] = m[1], m[5], m[9], m[13]
	out[8], out[9], out[10], out[11] = m[2], m[6], m[10], m[14]
	out[12] = float32(meshCards.FirstCardIndex)
	out[13] = float32(meshCards.NumCards)
	out[14] = float32(meshCards.PrimitiveGroupIndex)
	out[15] = boolFloat(meshCards.Heightfield)
	for i := 0; i < NumAxisDirections; i++ {
		out[16+i] = float32(meshCards.CardLookup[i])
	}
	out[22] = 0
	out[23] = 0
}

func packHeightfield(hf *Heightfield, out []uint32) {
	out[0] = uint32(hf.MeshCardsIndex)
	out[1] = uint32(hf.PrimitiveGroupIndex)
	out[2] = 0
	out[3] = 0
}

func packPageTableEntry(entry *PageTableEntry, out []uint32) {
	out[0] = uint32(entry.CardIndex)
	out[1] = uint32(entry.ResLevel)
	out[2] = uint32(entry.SamplePageIndex)
	out[3] = uint32(entry.PhysicalAtlasRect.Min.X)
	out[4] = uint32(entry.PhysicalAtlasRect.Min.Y)
	out[5] = uint32(entry.PhysicalAtlasRect.Max.X)
	out[6] = uint32(entry.PhysicalAtlasRect.Max.Y)
	var flags uint32
	if entry.IsMapped() {
		flags |= 1
	}
	if entry.IsSubAllocation() {
		flags |= 2
	}
	out[7] = flags
}

func growFloats(buf []float32, size int) []float32 {
	if len(buf) >= size {
		return buf
	}
	grown := make([]float32, size)
	copy(grown, buf)
	return grown
}

func growUints(buf []uint32, size int) []uint32 {
	if len(buf) >= size {
		return buf
	}
	grown := make([]uint32, size)
	copy(grown, buf)
	return grown
}

func zeroFloats(out []float32) {
	for i := range out {
		out[i] = 0
	}
}

func zeroUints(out []uint32) {
	for i := range out {
		out[i] = 0
	}
}

func boolFloat(v bool) float32 {
	if v {
		return 1
	}
	return 0
}

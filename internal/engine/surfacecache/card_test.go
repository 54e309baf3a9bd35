package surfacecache

import "testing"

func TestMipMapDescSquareCard(t *testing.T) {
	var card Card
	card.Initialize(1, mathIdentity(), testOBB(50, 50, 5), 0, 0, 0, false)

	// 512x512 splits into a 4x4 page grid.
	desc := card.MipMapDesc(9)
	if desc.Resolution != (IntPoint{512, 512}) {
		t.Errorf("expected 512x512 resolution, got %v", desc.Resolution)
	}
	if desc.SizeInPages != (IntPoint{4, 4}) {
		t.Errorf("expected 4x4 pages, got %v", desc.SizeInPages)
	}
	if desc.SubAllocation {
		t.Error("expected full page allocation at res level 9")
	}

	// 32x32 shares a physical page.
	desc = card.MipMapDesc(5)
	if desc.Resolution != (IntPoint{32, 32}) {
		t.Errorf("expected 32x32 resolution, got %v", desc.Resolution)
	}
	if desc.SizeInPages != (IntPoint{1, 1}) {
		t.Errorf("expected single page, got %v", desc.SizeInPages)
	}
	if !desc.SubAllocation {
		t.Error("expected sub-allocation at res level 5")
	}
}

func TestMipMapDescAspectBias(t *testing.T) {
	var card Card
	card.Initialize(1, mathIdentity(), testOBB(40, 10, 1), 0, 0, 0, false)

	// 4:1 aspect drops the short axis two levels.
	desc := card.MipMapDesc(7)
	if desc.ResLevelX != 7 || desc.ResLevelY != 5 {
		t.Errorf("expected res levels 7/5, got %d/%d", desc.ResLevelX, desc.ResLevelY)
	}
	if desc.Resolution != (IntPoint{128, 32}) {
		t.Errorf("expected 128x32 resolution, got %v", desc.Resolution)
	}
	if !desc.SubAllocation {
		t.Error("expected sub-allocation for a 128x32 mip")
	}
}

func TestUpdateMinMaxAllocatedLevel(t *testing.T) {
	var card Card
	card.Initialize(1, mathIdentity(), testOBB(10, 10, 1), 0, 0, 0, false)

	if card.IsAllocated() {
		t.Error("expected fresh card to be unallocated")
	}

	card.GetMipMap(5).PageTableSpanSize = 1
	card.GetMipMap(8).PageTableSpanSize = 4
	card.UpdateMinMaxAllocatedLevel()

	if card.MinAllocatedResLevel != 5 || card.MaxAllocatedResLevel != 8 {
		t.Errorf("expected allocated range 5..8, got %d..%d",
			card.MinAllocatedResLevel, card.MaxAllocatedResLevel)
	}
}

func TestPageUVRect(t *testing.T) {
	mip := SurfaceMipMap{SizeInPagesX: 2, SizeInPagesY: 2}

	rect := mip.PageUVRect(3)
	want := [4]float32{0.5, 0.5, 1, 1}
	for i := 0; i < 4; i++ {
		if rect[i] != want[i] {
			t.Errorf("expected page 3 rect %v, got %v", want, rect)
			break
		}
	}
}

func TestCardBasisRightHanded(t *testing.T) {
	for dir := int32(0); dir < NumAxisDirections; dir++ {
		x, y, z := cardBasisForDirection(dir)
		cross := x.Cross(y)
		if cross.Sub(z).Length() > 1e-5 {
			t.Errorf("direction %d: x cross y = %v, want %v", dir, cross, z)
		}
		if z.Sub(AxisAlignedDirection(dir)).Length() > 1e-5 {
			t.Errorf("direction %d: z axis %v does not match direction", dir, z)
		}
	}
}

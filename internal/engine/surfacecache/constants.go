// Package surfacecache manages the card-based lighting surface cache: the
// card registry, the physical atlas page allocator, per-frame visibility
// and resolution scheduling, and capture request arbitration under frame
// budgets.
package surfacecache

import "github.com/Faultbox/radiant/pkg/math"

const (
	// PhysicalPageSize is the edge of one physical atlas page in texels.
	PhysicalPageSize = 128

	// SubAllocationResLevel is the largest res level that still fits a
	// single physical page; mips at or below it become sub-page bins.
	SubAllocationResLevel = 7

	// MinResLevel is the smallest mip level a card can hold (8x8 texels).
	MinResLevel = 3

	// MaxResLevel is the largest mip level a card can hold (2048x2048 texels).
	MaxResLevel = 11

	// NumResLevels is the length of a card's mip array.
	NumResLevels = MaxResLevel - MinResLevel + 1

	// NumAxisDirections is the number of axis-aligned card directions.
	NumAxisDirections = 6

	// HeightfieldDirectionIndex is the direction heightfield cards capture
	// from (looking down the +Z axis).
	HeightfieldDirectionIndex = 5

	// InvalidIndex marks an unset registry or page-table reference.
	InvalidIndex = int32(-1)

	// LockedPageIndex is the LocalPageIndex sentinel marking a request for
	// a card's always-resident mip instead of a single optional page.
	LockedPageIndex = int32(0xFFFF)
)

// IntPoint is a 2D integer coordinate.
type IntPoint struct {
	X, Y int32
}

// IntRect is an integer rectangle, min inclusive, max exclusive.
type IntRect struct {
	Min, Max IntPoint
}

// Width returns the rectangle width.
func (r IntRect) Width() int32 {
	return r.Max.X - r.Min.X
}

// Height returns the rectangle height.
func (r IntRect) Height() int32 {
	return r.Max.Y - r.Min.Y
}

// Area returns the rectangle area in texels.
func (r IntRect) Area() int64 {
	return int64(r.Width()) * int64(r.Height())
}

// AxisAlignedDirection returns the unit direction for index 0..5.
// Directions pair up per axis: even index is the negative side.
func AxisAlignedDirection(index int32) math.Vec3 {
	sign := float32(-1)
	if index&1 == 1 {
		sign = 1
	}
	switch index / 2 {
	case 0:
		return math.Vec3{X: sign}
	case 1:
		return math.Vec3{Y: sign}
	default:
		return math.Vec3{Z: sign}
	}
}

// cardBasisForDirection returns a right-handed card basis whose Z axis is
// the outward capture direction.
func cardBasisForDirection(index int32) (x, y, z math.Vec3) {
	z = AxisAlignedDirection(index)
	switch index / 2 {
	case 0:
		x = math.Vec3{Y: 1}
	case 1:
		x = math.Vec3{Z: 1}
	default:
		x = math.Vec3{X: 1}
	}
	y = z.Cross(x)
	return x, y, z
}

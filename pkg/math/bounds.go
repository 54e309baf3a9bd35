package math

// Bounds3 is an axis-aligned bounding box.
type Bounds3 struct {
	Min, Max Vec3
}

// EmptyBounds returns an inverted box ready for Extend calls.
func EmptyBounds() Bounds3 {
	const inf = float32(3.4e38)
	return Bounds3{
		Min: Vec3{inf, inf, inf},
		Max: Vec3{-inf, -inf, -inf},
	}
}

// NewBounds returns a box centered at center with the given half-extent.
func NewBounds(center, extent Vec3) Bounds3 {
	return Bounds3{Min: center.Sub(extent), Max: center.Add(extent)}
}

// Center returns the box center.
func (b Bounds3) Center() Vec3 {
	return b.Min.Add(b.Max).Scale(0.5)
}

// Extent returns the half-size of the box.
func (b Bounds3) Extent() Vec3 {
	return b.Max.Sub(b.Min).Scale(0.5)
}

// Extend grows the box to contain p.
func (b Bounds3) Extend(p Vec3) Bounds3 {
	return Bounds3{Min: b.Min.MinVec(p), Max: b.Max.MaxVec(p)}
}

// Union returns the smallest box containing both b and other.
func (b Bounds3) Union(other Bounds3) Bounds3 {
	return Bounds3{Min: b.Min.MinVec(other.Min), Max: b.Max.MaxVec(other.Max)}
}

// Intersects reports whether the two boxes overlap.
func (b Bounds3) Intersects(other Bounds3) bool {
	return b.Min.X <= other.Max.X && b.Max.X >= other.Min.X &&
		b.Min.Y <= other.Max.Y && b.Max.Y >= other.Min.Y &&
		b.Min.Z <= other.Max.Z && b.Max.Z >= other.Min.Z
}

// FaceExtent returns the half-extents of the face perpendicular to axis
// (0=X, 1=Y, 2=Z).
func (b Bounds3) FaceExtent(axis int) Vec2 {
	e := b.Extent()
	switch axis {
	case 0:
		return Vec2{e.Y, e.Z}
	case 1:
		return Vec2{e.X, e.Z}
	default:
		return Vec2{e.X, e.Y}
	}
}

// Transform returns the AABB of the box transformed by m.
func (b Bounds3) Transform(m Mat4) Bounds3 {
	out := EmptyBounds()
	for i := 0; i < 8; i++ {
		corner := Vec3{
			pick(i&1 != 0, b.Max.X, b.Min.X),
			pick(i&2 != 0, b.Max.Y, b.Min.Y),
			pick(i&4 != 0, b.Max.Z, b.Min.Z),
		}
		out = out.Extend(m.TransformPoint(corner))
	}
	return out
}

func pick(cond bool, a, c float32) float32 {
	if cond {
		return a
	}
	return c
}

// DistanceSquaredTo returns the squared distance from p to the box, 0 if inside.
func (b Bounds3) DistanceSquaredTo(p Vec3) float32 {
	clamped := p.MaxVec(b.Min).MinVec(b.Max)
	return clamped.DistanceSquared(p)
}

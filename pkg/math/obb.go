package math

// OBB is an oriented bounding box with a unit axis basis and half-extents.
type OBB struct {
	Origin Vec3
	AxisX  Vec3
	AxisY  Vec3
	AxisZ  Vec3
	Extent Vec3
}

// Direction returns the box normal axis.
func (o OBB) Direction() Vec3 {
	return o.AxisZ
}

// Transform applies a local-to-world matrix to the box. Axis scale is
// folded into the extents so the returned basis stays unit length.
func (o OBB) Transform(m Mat4) OBB {
	var out OBB
	out.Origin = m.TransformPoint(o.Origin)

	sx := m.TransformDirection(o.AxisX)
	sy := m.TransformDirection(o.AxisY)
	sz := m.TransformDirection(o.AxisZ)

	lx := sx.Length()
	ly := sy.Length()
	lz := sz.Length()

	out.AxisX = sx.Normalize()
	out.AxisY = sy.Normalize()
	out.AxisZ = sz.Normalize()
	out.Extent = Vec3{o.Extent.X * lx, o.Extent.Y * ly, o.Extent.Z * lz}
	return out
}

// RotateBy rotates the basis and origin by a rotation-only matrix,
// leaving the extents untouched.
func (o OBB) RotateBy(rotation Mat4) OBB {
	return OBB{
		Origin: rotation.TransformDirection(o.Origin),
		AxisX:  rotation.TransformDirection(o.AxisX),
		AxisY:  rotation.TransformDirection(o.AxisY),
		AxisZ:  rotation.TransformDirection(o.AxisZ),
		Extent: o.Extent,
	}
}

// ToLocal maps a world-space point into the box basis, relative to the origin.
func (o OBB) ToLocal(p Vec3) Vec3 {
	d := p.Sub(o.Origin)
	return Vec3{d.Dot(o.AxisX), d.Dot(o.AxisY), d.Dot(o.AxisZ)}
}

// WorldBounds returns the world-space AABB enclosing the box.
func (o OBB) WorldBounds() Bounds3 {
	e := o.AxisX.Scale(o.Extent.X).Abs().
		Add(o.AxisY.Scale(o.Extent.Y).Abs()).
		Add(o.AxisZ.Scale(o.Extent.Z).Abs())
	return NewBounds(o.Origin, e)
}

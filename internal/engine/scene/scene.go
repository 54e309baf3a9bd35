// Package scene provides the primitive registry feeding the surface cache.
// It carries world transforms, bounds and the pre-baked per-mesh card
// layout, and queues add/update/remove notifications for the renderer to
// consume once per frame.
package scene

import (
	"github.com/Faultbox/radiant/pkg/math"
)

// BlendMode describes how a material composites.
type BlendMode int

const (
	BlendOpaque BlendMode = iota
	BlendMasked
	BlendTranslucent
)

// Material is the subset of material state the capture path cares about.
type Material struct {
	BlendMode BlendMode
	TwoSided  bool
	Emissive  bool
}

// IsOpaque reports whether the material can be captured into the surface cache.
func (m Material) IsOpaque() bool {
	return m.BlendMode != BlendTranslucent
}

// LOD is one level of detail of a primitive's mesh.
// ScreenSize is the minimum projected screen size at which the LOD is used;
// a zero ScreenSize marks the LOD as unavailable.
type LOD struct {
	ScreenSize float32
	NumBatches int
}

// CardBuildInfo is one pre-baked capture surface of a mesh, in mesh-local space.
type CardBuildInfo struct {
	OBB            math.OBB
	DirectionIndex int32 // axis-aligned direction, 0..5
	LODLevel       int32
}

// CardBuildData is the baked card layout of a mesh asset.
type CardBuildData struct {
	MaxLOD int32
	Cards  []CardBuildInfo
}

// Primitive is one renderable mesh instance registered with the scene.
type Primitive struct {
	ID           int32
	LocalToWorld math.Mat4
	LocalBounds  math.Bounds3
	Material     Material
	LODs         []LOD
	CardBuild    *CardBuildData

	// MergeGroup clusters many small instances into one capture group.
	// Negative means standalone.
	MergeGroup int32

	Heightfield     bool
	FarField        bool
	ResolutionScale float32
}

// WorldBounds returns the primitive's world-space AABB.
func (p *Primitive) WorldBounds() math.Bounds3 {
	return p.LocalBounds.Transform(p.LocalToWorld)
}

// AffectsIndirectLighting reports whether the primitive should contribute
// surface cache cards at all.
func (p *Primitive) AffectsIndirectLighting() bool {
	return p.Material.IsOpaque() && (p.CardBuild != nil || p.Heightfield)
}

// View is a camera descriptor; the surface cache only needs origins.
type View struct {
	Origins []math.Vec3
}

// Changes is one frame's worth of primitive notifications.
type Changes struct {
	Added   []*Primitive
	Updated []*Primitive
	Removed []*Primitive
}

// Scene owns the primitive registry.
type Scene struct {
	primitives map[int32]*Primitive
	nextID     int32

	pendingAdds    []*Primitive
	pendingUpdates []*Primitive
	pendingRemoves []*Primitive
}

// New returns an empty scene.
func New() *Scene {
	return &Scene{
		primitives: make(map[int32]*Primitive),
	}
}

// NumPrimitives returns the number of registered primitives.
func (s *Scene) NumPrimitives() int {
	return len(s.primitives)
}

// Primitive returns the primitive with the given id, or nil.
func (s *Scene) Primitive(id int32) *Primitive {
	return s.primitives[id]
}

// AddPrimitive registers a primitive and queues an add notification.
// The scene assigns and returns the primitive id.
func (s *Scene) AddPrimitive(p *Primitive) int32 {
	p.ID = s.nextID
	s.nextID++
	if p.ResolutionScale <= 0 {
		p.ResolutionScale = 1
	}
	s.primitives[p.ID] = p
	s.pendingAdds = append(s.pendingAdds, p)
	return p.ID
}

// UpdateTransform moves a primitive and queues an update notification.
func (s *Scene) UpdateTransform(id int32, localToWorld math.Mat4) {
	p := s.primitives[id]
	if p == nil {
		return
	}
	p.LocalToWorld = localToWorld
	s.pendingUpdates = append(s.pendingUpdates, p)
}

// RemovePrimitive unregisters a primitive and queues a remove notification.
func (s *Scene) RemovePrimitive(id int32) {
	p := s.primitives[id]
	if p == nil {
		return
	}
	delete(s.primitives, id)
	s.pendingRemoves = append(s.pendingRemoves, p)
}

// ConsumeChanges returns all queued notifications and clears the queues.
// A primitive both added and removed since the last call cancels out.
func (s *Scene) ConsumeChanges() Changes {
	removed := make(map[int32]bool, len(s.pendingRemoves))
	for _, p := range s.pendingRemoves {
		removed[p.ID] = true
	}

	var ch Changes
	for _, p := range s.pendingAdds {
		if !removed[p.ID] {
			ch.Added = append(ch.Added, p)
		}
	}
	seen := make(map[int32]bool)
	for _, p := range s.pendingUpdates {
		if !removed[p.ID] && !seen[p.ID] {
			seen[p.ID] = true
			ch.Updated = append(ch.Updated, p)
		}
	}
	ch.Removed = s.pendingRemoves

	s.pendingAdds = nil
	s.pendingUpdates = nil
	s.pendingRemoves = nil
	return ch
}

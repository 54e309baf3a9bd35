package surfacecache

import (
	"sort"

	"github.com/Faultbox/radiant/internal/engine/scene"
	"github.com/Faultbox/radiant/pkg/math"
	"github.com/Faultbox/radiant/pkg/parallel"
)

// SurfaceCacheRequest asks the request processor for surface cache space.
// LocalPageIndex == LockedPageIndex requests a whole locked mip, anything
// else a single opportunistic hi-res page.
type SurfaceCacheRequest struct {
	CardIndex      int32
	ResLevel       int32
	LocalPageIndex int32
	Distance       float32
}

// IsLockedMip reports whether the request covers a whole always-resident mip.
func (r *SurfaceCacheRequest) IsLockedMip() bool {
	return r.LocalPageIndex == LockedPageIndex
}

type meshCardsAdd struct {
	GroupIndex int32
	Distance   float32
}

// nearestDistanceSquared returns the squared distance from bounds to the
// closest viewer origin.
func nearestDistanceSquared(bounds math.Bounds3, view *scene.View) float32 {
	best := float32(mathMaxFloat32)
	for _, origin := range view.Origins {
		d := bounds.DistanceSquaredTo(origin)
		if d < best {
			best = d
		}
	}
	return best
}

const mathMaxFloat32 = 3.4028234663852886e+38

// UpdateSurfaceCachePrimitives decides which primitive groups gain or lose
// mesh cards this frame. Candidates are gathered in parallel chunks, adds
// are sorted nearest first and realized up to the per-frame budget, removes
// apply unconditionally.
func (sd *SceneData) UpdateSurfaceCachePrimitives(view *scene.View, cfg *Config) {
	numSlots := sd.PrimitiveGroups.Len()
	numChunks := parallel.NumChunks(numSlots, cfg.PrimitivesPerTask)

	adds := make([][]meshCardsAdd, numChunks)
	removes := make([][]int32, numChunks)

	texelDensityScale := cfg.TexelDensityScale
	maxDistance := cfg.MaxDistanceFromCamera()
	minResolution := float32(cfg.MinCardResolutionClamped())

	parallel.For(numChunks, cfg.Parallel, func(chunk int) {
		first, last := parallel.ChunkRange(chunk, cfg.PrimitivesPerTask, numSlots)
		for slot := first; slot < last; slot++ {
			groupIndex := int32(slot)
			if !sd.PrimitiveGroups.IsAllocated(groupIndex) {
				continue
			}
			group := sd.PrimitiveGroups.Get(groupIndex)

			distanceSquared := nearestDistanceSquared(group.WorldBounds, view)
			maxExtent := group.MaxExtent()

			cutoff := maxDistance
			var maxCardResolution float32
			if group.FarField {
				cutoff = cfg.FarFieldDistance
				maxCardResolution = cfg.FarFieldTexelDensity * maxExtent
			} else {
				maxCardResolution = texelDensityScale*maxExtent/
					math.Sqrt(math.Max(distanceSquared, 1)) + 0.01
			}

			minRes := minResolution
			if group.EmissiveLightSource {
				minRes = 1
			}

			qualifies := distanceSquared <= cutoff*cutoff && maxCardResolution >= minRes
			switch {
			case qualifies && !group.HasMeshCards() && group.ValidMeshCards:
				adds[chunk] = append(adds[chunk], meshCardsAdd{
					GroupIndex: groupIndex,
					Distance:   math.Sqrt(distanceSquared),
				})
			case !qualifies && group.HasMeshCards():
				removes[chunk] = append(removes[chunk], groupIndex)
			}
		}
	})

	for _, chunkRemoves := range removes {
		for _, groupIndex := range chunkRemoves {
			sd.RemoveMeshCards(groupIndex)
		}
	}

	var merged []meshCardsAdd
	for _, chunkAdds := range adds {
		merged = append(merged, chunkAdds...)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Distance < merged[j].Distance
	})

	budget := cfg.MeshCardsToAddPerFrame()
	for i, add := range merged {
		if int32(i) >= budget {
			break
		}
		sd.AddMeshCards(add.GroupIndex, cfg)
	}
}

// UpdateSurfaceCacheMeshCards computes each card's desired resolution level
// and emits locked mip requests for cards whose resident level no longer
// matches. The returned list is sorted by ascending priority distance.
func (sd *SceneData) UpdateSurfaceCacheMeshCards(view *scene.View, cfg *Config) []SurfaceCacheRequest {
	numSlots := sd.MeshCards.Len()
	numChunks := parallel.NumChunks(numSlots, cfg.MeshCardsPerTask)

	requests := make([][]SurfaceCacheRequest, numChunks)
	hides := make([][]int32, numChunks)

	texelDensityScale := cfg.TexelDensityScale
	maxDistance := cfg.MaxDistanceFromCamera()

	parallel.For(numChunks, cfg.Parallel, func(chunk int) {
		first, last := parallel.ChunkRange(chunk, cfg.MeshCardsPerTask, numSlots)
		for slot := first; slot < last; slot++ {
			meshCardsIndex := int32(slot)
			if !sd.MeshCards.IsAllocated(meshCardsIndex) {
				continue
			}
			meshCards := sd.MeshCards.Get(meshCardsIndex)
			farField := sd.PrimitiveGroups.Get(meshCards.PrimitiveGroupIndex).FarField

			for i := int32(0); i < meshCards.NumCards; i++ {
				cardIndex := meshCards.FirstCardIndex + i
				card := sd.Cards.Get(cardIndex)

				viewerDistance, resLevel, visible := cardResLevel(card, view, cfg,
					texelDensityScale, maxDistance, farField)

				if !visible {
					if card.Visible {
						hides[chunk] = append(hides[chunk], cardIndex)
					}
					continue
				}

				card.Visible = true
				if card.DesiredLockedResLevel == resLevel {
					continue
				}

				distance := viewerDistance
				if card.IsAllocated() {
					// Re-resolving an already cached card matters less
					// than first-time coverage.
					delta := float32(absInt32(resLevel - card.MinAllocatedResLevel))
					distance += (1 - math.Clamp((delta+1)/3, 0, 1)) * 2500
				}

				requests[chunk] = append(requests[chunk], SurfaceCacheRequest{
					CardIndex:      cardIndex,
					ResLevel:       resLevel,
					LocalPageIndex: LockedPageIndex,
					Distance:       distance,
				})
			}
		}
	})

	for _, chunkHides := range hides {
		for _, cardIndex := range chunkHides {
			sd.removeCardFromAtlas(cardIndex)
			sd.dirtyCards.Add(cardIndex)
		}
	}

	var merged []SurfaceCacheRequest
	for _, chunkRequests := range requests {
		merged = append(merged, chunkRequests...)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Distance < merged[j].Distance
	})
	return merged
}

// cardResLevel runs the per-card resolution law: distance-based projected
// size, texel density cap, power-of-two snap, discrete res level.
func cardResLevel(card *Card, view *scene.View, cfg *Config,
	texelDensityScale, maxDistance float32, farField bool) (float32, int32, bool) {

	center := card.WorldOBB.Origin
	best := float32(mathMaxFloat32)
	for _, origin := range view.Origins {
		d := origin.DistanceSquared(center)
		if d < best {
			best = d
		}
	}
	distance := math.Sqrt(best)
	viewerDistance := math.Max(distance, 100)
	// Resolution follows the capture face; the card's depth never adds
	// texels to the projection.
	maxExtent := math.Max(card.WorldOBB.Extent.X, card.WorldOBB.Extent.Y)

	cutoff := maxDistance
	var maxProjectedSize float32
	if farField {
		cutoff = cfg.FarFieldDistance
		maxProjectedSize = cfg.FarFieldTexelDensity * maxExtent
	} else {
		maxProjectedSize = math.Min(
			texelDensityScale*maxExtent*card.ResolutionScale/viewerDistance,
			cfg.MaxTexelDensity*maxExtent)
	}
	if cfg.FixedResolution > 0 {
		maxProjectedSize = float32(cfg.FixedResolution)
	}

	maxSnappedRes := math.RoundUpPow2(uint32(minInt32(int32(maxProjectedSize), cfg.MaxCardResolution)))
	visible := distance < cutoff && int32(maxSnappedRes) >= cfg.MinCardResolutionClamped()
	if !visible {
		return viewerDistance, 0, false
	}

	resLevel := math.FloorLog2(uint32(maxInt32(int32(maxSnappedRes), 1<<MinResLevel)))
	resLevel = math.ClampInt(resLevel, MinResLevel, MaxResLevel)
	return viewerDistance, resLevel, true
}

func absInt32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

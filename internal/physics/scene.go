package physics

import (
	"math"
	"sync"

	"github.com/fpsframework/firearm/internal/hit"
	"github.com/fpsframework/firearm/pkg/core"
)

// Shape is a collision primitive.
type Shape interface {
	// intersect returns the entry distance and surface normal of a ray
	// against the shape grown by radius.
	intersect(origin, dir core.Vec3, radius, maxDistance float64) (float64, core.Vec3, bool)
}

// Sphere is a sphere collider shape.
type Sphere struct {
	Center core.Vec3
	Radius float64
}

// Box is an axis-aligned box collider shape.
type Box struct {
	Min core.Vec3
	Max core.Vec3
}

// BoxAt builds a box from a center and half extents.
func BoxAt(center, halfExtents core.Vec3) Box {
	return Box{Min: center.Sub(halfExtents), Max: center.Add(halfExtents)}
}

type entry struct {
	collider *hit.Collider
	shape    Shape
}

// Scene is a flat list of colliders. It is safe for concurrent use.
type Scene struct {
	mu      sync.RWMutex
	entries []entry
}

func NewScene() *Scene {
	return &Scene{}
}

// Add places a collider in the scene.
func (s *Scene) Add(c *hit.Collider, shape Shape) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry{collider: c, shape: shape})
}

// Remove deletes every entry for the collider ID. It returns the number removed.
func (s *Scene) Remove(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.entries[:0]
	removed := 0
	for _, e := range s.entries {
		if e.collider.ID == id {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
	return removed
}

// Len returns the number of colliders in the scene.
func (s *Scene) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Collider returns the collider with the given ID.
func (s *Scene) Collider(id string) (*hit.Collider, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		if e.collider.ID == id {
			return e.collider, true
		}
	}
	return nil, false
}

// Raycast returns the nearest collider hit along the ray.
func (s *Scene) Raycast(origin, direction core.Vec3, maxDistance float64, filter Filter) (hit.Hit, bool) {
	return s.cast(origin, 0, direction, maxDistance, filter)
}

// SphereCast sweeps a sphere along the ray and returns the first contact.
// The hit point lies on the collider surface.
func (s *Scene) SphereCast(origin core.Vec3, radius float64, direction core.Vec3, maxDistance float64, filter Filter) (hit.Hit, bool) {
	return s.cast(origin, math.Max(radius, 0), direction, maxDistance, filter)
}

func (s *Scene) cast(origin core.Vec3, radius float64, direction core.Vec3, maxDistance float64, filter Filter) (hit.Hit, bool) {
	dir := direction.Normalized()
	if dir.IsZero() || maxDistance < 0 {
		return hit.Hit{}, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var best hit.Hit
	found := false
	for _, e := range s.entries {
		if filter != nil && !filter(e.collider) {
			continue
		}
		t, normal, ok := e.shape.intersect(origin, dir, radius, maxDistance)
		if !ok || (found && t >= best.Distance) {
			continue
		}
		center := origin.Add(dir.Scale(t))
		best = hit.Hit{
			Collider: e.collider,
			Point:    center.Sub(normal.Scale(radius)),
			Normal:   normal,
			Distance: t,
		}
		found = true
	}
	return best, found
}

func (sp Sphere) intersect(origin, dir core.Vec3, radius, maxDistance float64) (float64, core.Vec3, bool) {
	r := sp.Radius + radius
	m := origin.Sub(sp.Center)
	b := m.Dot(dir)
	c := m.Dot(m) - r*r
	if c > 0 && b > 0 {
		return 0, core.Zero, false
	}
	disc := b*b - c
	if disc < 0 {
		return 0, core.Zero, false
	}
	t := -b - math.Sqrt(disc)
	if t < 0 {
		// origin starts inside
		return 0, dir.Scale(-1), true
	}
	if t > maxDistance {
		return 0, core.Zero, false
	}
	normal := origin.Add(dir.Scale(t)).Sub(sp.Center).Normalized()
	return t, normal, true
}

// intersect grows the box by radius on every axis. Corners are treated as
// square, which overestimates contact near edges.
func (bx Box) intersect(origin, dir core.Vec3, radius, maxDistance float64) (float64, core.Vec3, bool) {
	grow := core.Vec3{X: radius, Y: radius, Z: radius}
	lo := axes(bx.Min.Sub(grow))
	hi := axes(bx.Max.Add(grow))
	o := axes(origin)
	d := axes(dir)

	tMin, tMax := 0.0, maxDistance
	entryAxis := -1
	for i := 0; i < 3; i++ {
		if math.Abs(d[i]) < 1e-12 {
			if o[i] < lo[i] || o[i] > hi[i] {
				return 0, core.Zero, false
			}
			continue
		}
		inv := 1 / d[i]
		t1 := (lo[i] - o[i]) * inv
		t2 := (hi[i] - o[i]) * inv
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		if t1 > tMin {
			tMin = t1
			entryAxis = i
		}
		if t2 < tMax {
			tMax = t2
		}
		if tMin > tMax {
			return 0, core.Zero, false
		}
	}

	if entryAxis < 0 {
		return 0, dir.Scale(-1), true
	}
	var n [3]float64
	n[entryAxis] = -math.Copysign(1, d[entryAxis])
	return tMin, core.Vec3{X: n[0], Y: n[1], Z: n[2]}, true
}

func axes(v core.Vec3) [3]float64 {
	return [3]float64{v.X, v.Y, v.Z}
}

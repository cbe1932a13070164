// Package physics defines the collision queries the simulation core consumes
// and a small reference scene implementing them.
package physics

import (
	"github.com/fpsframework/firearm/internal/hit"
	"github.com/fpsframework/firearm/pkg/core"
)

// Filter reports whether a collider takes part in a query. A nil filter
// accepts every collider.
type Filter func(c *hit.Collider) bool

// World answers ray and swept-sphere queries, returning the nearest hit.
type World interface {
	Raycast(origin, direction core.Vec3, maxDistance float64, filter Filter) (hit.Hit, bool)
	SphereCast(origin core.Vec3, radius float64, direction core.Vec3, maxDistance float64, filter Filter) (hit.Hit, bool)
}

// ExcludeSource skips colliders owned by the shooter and colliders flagged
// to ignore hit detection.
func ExcludeSource(sourceID string) Filter {
	return func(c *hit.Collider) bool {
		if c.IgnoreHitDetection {
			return false
		}
		return sourceID == "" || c.OwnerID() != sourceID
	}
}

// Empty is a world with nothing in it.
type Empty struct{}

func (Empty) Raycast(core.Vec3, core.Vec3, float64, Filter) (hit.Hit, bool) {
	return hit.Hit{}, false
}

func (Empty) SphereCast(core.Vec3, float64, core.Vec3, float64, Filter) (hit.Hit, bool) {
	return hit.Hit{}, false
}

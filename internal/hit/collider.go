// Package hit resolves damage, decals, impulses and observer callbacks for a
// single ray or projectile impact.
package hit

import (
	"github.com/fpsframework/firearm/pkg/core"
)

// Source identifies the shooter a hit is attributed to.
type Source struct {
	ID        string
	Name      string
	FirearmID string
}

// Damageable is a health pool that can receive damage.
type Damageable interface {
	Health() float64
	Damage(amount float64, src Source)
	DeadConfirmed() bool
}

// RigidBody receives impact impulses.
type RigidBody interface {
	AddForceAtPosition(force, position core.Vec3)
}

// Scope selects which hits an observer is notified about.
type Scope int

const (
	// ScopeSelf observers only hear hits on their own collider.
	ScopeSelf Scope = iota
	// ScopeHierarchy observers also hear hits on any descendant collider.
	ScopeHierarchy
)

// Event is delivered to observers after a hit has been resolved.
type Event struct {
	Collider *Collider
	Source   Source
	Point    core.Vec3
	Normal   core.Vec3
	Damage   float64
	Killed   bool
}

// Observer is notified of resolved hits.
type Observer interface {
	OnHit(e Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(e Event)

func (f ObserverFunc) OnHit(e Event) { f(e) }

type registration struct {
	observer Observer
	scope    Scope
}

// Collider is a hittable shape's identity in the scene graph.
type Collider struct {
	ID string
	// Owner is the entity this collider belongs to; hits whose source ID
	// equals the owner are self-hits.
	Owner  string
	Parent *Collider

	// Health is the damage receiver. When nil the nearest ancestor's pool is used.
	Health Damageable
	// PartMultiplier scales damage for this body part; 0 means 1.
	PartMultiplier float64
	Body           RigidBody
	// CustomDecal overrides the shooter's decal prefab.
	CustomDecal        string
	IgnoreHitDetection bool

	observers []registration
}

// Observe registers an observer on this collider.
func (c *Collider) Observe(o Observer, scope Scope) {
	c.observers = append(c.observers, registration{observer: o, scope: scope})
}

// OwnerID returns the first non-empty owner walking up the hierarchy.
func (c *Collider) OwnerID() string {
	for n := c; n != nil; n = n.Parent {
		if n.Owner != "" {
			return n.Owner
		}
	}
	return ""
}

// Damageable returns the health pool of the collider or its nearest ancestor.
func (c *Collider) Damageable() Damageable {
	for n := c; n != nil; n = n.Parent {
		if n.Health != nil {
			return n.Health
		}
	}
	return nil
}

func (c *Collider) partMultiplier() float64 {
	if c.PartMultiplier <= 0 {
		return 1
	}
	return c.PartMultiplier
}

// notify delivers e to this collider's observers and to hierarchy-scoped
// observers of every ancestor, nearest first.
func (c *Collider) notify(e Event) {
	for _, r := range c.observers {
		r.observer.OnHit(e)
	}
	for n := c.Parent; n != nil; n = n.Parent {
		for _, r := range n.observers {
			if r.scope == ScopeHierarchy {
				r.observer.OnHit(e)
			}
		}
	}
}

// HealthPool is a basic Damageable.
type HealthPool struct {
	current float64
	max     float64
	dead    bool

	// LastSource is the source of the most recent damage.
	LastSource Source
}

// NewHealthPool creates a full pool.
func NewHealthPool(maxHealth float64) *HealthPool {
	return &HealthPool{current: maxHealth, max: maxHealth}
}

func (h *HealthPool) Health() float64 { return h.current }

func (h *HealthPool) Max() float64 { return h.max }

func (h *HealthPool) Damage(amount float64, src Source) {
	if h.dead {
		return
	}
	h.LastSource = src
	h.current -= amount
	if h.current <= 0 {
		h.current = 0
		h.dead = true
	}
}

func (h *HealthPool) DeadConfirmed() bool { return h.dead }

// Body is a RigidBody that accumulates applied impulses.
type Body struct {
	Impulse core.Vec3
	Pushes  int
}

func (b *Body) AddForceAtPosition(force, _ core.Vec3) {
	b.Impulse = b.Impulse.Add(force)
	b.Pushes++
}

package hit

import (
	"github.com/fpsframework/firearm/internal/fx"
	"github.com/fpsframework/firearm/pkg/core"
)

// Hit is one intersection returned by a ray or sweep query.
type Hit struct {
	Collider *Collider
	Point    core.Vec3
	Normal   core.Vec3
	Distance float64
}

// DecalConfig describes the shooter's default impact decal.
type DecalConfig struct {
	Prefab string
	Size   float64
}

// Request carries everything Resolve needs for one impact.
type Request struct {
	Hit    Hit
	Source Source
	// Damage is the base damage before part and attachment multipliers.
	Damage float64
	// DamageModifier is the aggregated attachment damage modifier; 0 means 1.
	DamageModifier float64
	Direction      core.Vec3
	ImpactForce    float64
	Decal          DecalConfig
	Effects        fx.Sink
}

// Result summarises what Resolve did.
type Result struct {
	ColliderID   string
	VictimID     string
	Damage       float64
	HealthBefore float64
	HealthAfter  float64
	Damaged      bool
	Killed       bool
	Decal        bool
	Impulse      bool
}

// Resolve applies damage, decal, impulse and observer notification for a hit.
// It returns false without side effects for ignored colliders and self-hits.
func Resolve(req Request) (Result, bool) {
	c := req.Hit.Collider
	if c == nil || c.IgnoreHitDetection {
		return Result{}, false
	}
	owner := c.OwnerID()
	if req.Source.ID != "" && owner == req.Source.ID {
		return Result{}, false
	}

	res := Result{ColliderID: c.ID, VictimID: owner}

	modifier := req.DamageModifier
	if modifier == 0 {
		modifier = 1
	}
	amount := req.Damage * c.partMultiplier() * modifier

	if target := c.Damageable(); target != nil {
		res.HealthBefore = target.Health()
		res.HealthAfter = res.HealthBefore
		if res.HealthBefore > 0 {
			target.Damage(amount, req.Source)
			res.Damaged = true
			res.Damage = amount
			res.HealthAfter = target.Health()
			res.Killed = res.HealthAfter <= 0 || target.DeadConfirmed()
		}
	}

	prefab := req.Decal.Prefab
	if c.CustomDecal != "" {
		prefab = c.CustomDecal
	}
	if prefab != "" && req.Effects != nil {
		req.Effects.SpawnDecal(fx.Decal{
			Prefab:   prefab,
			Position: req.Hit.Point,
			Normal:   req.Hit.Normal,
			Size:     req.Decal.Size,
			ParentID: c.ID,
		})
		res.Decal = true
	}

	if c.Body != nil && req.ImpactForce != 0 {
		c.Body.AddForceAtPosition(req.Direction.Normalized().Scale(req.ImpactForce), req.Hit.Point)
		res.Impulse = true
	}

	c.notify(Event{
		Collider: c,
		Source:   req.Source,
		Point:    req.Hit.Point,
		Normal:   req.Hit.Normal,
		Damage:   res.Damage,
		Killed:   res.Killed,
	})

	return res, true
}

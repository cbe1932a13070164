// Package projectile simulates physical bullets with gravity, swept hit
// detection and distance-based damage falloff.
package projectile

import (
	"log/slog"
	"math"

	"github.com/fpsframework/firearm/internal/fx"
	"github.com/fpsframework/firearm/internal/hit"
	"github.com/fpsframework/firearm/internal/physics"
	"github.com/fpsframework/firearm/pkg/core"
)

// Outcome is how a projectile flight ended.
type Outcome int

const (
	Flying Outcome = iota
	Hit
	Detonated
	Expired
	OutOfRange
)

func (o Outcome) String() string {
	switch o {
	case Hit:
		return "hit"
	case Detonated:
		return "detonated"
	case Expired:
		return "expired"
	case OutOfRange:
		return "out_of_range"
	default:
		return "flying"
	}
}

// Explosive replaces direct damage on impact.
type Explosive interface {
	Detonate(at core.Vec3, src hit.Source)
}

// Params configures one projectile.
type Params struct {
	Source            hit.Source
	Origin            core.Vec3
	Direction         core.Vec3
	InheritedVelocity core.Vec3
	Speed             float64
	Range             float64
	// Radius of the swept sphere used for hit detection.
	Radius   float64
	Gravity  core.Vec3
	LifeTime float64

	Damage      float64
	ShotCount   int
	DamageCurve Curve
	// DamageModifier is passed through to hit resolution; 0 means 1.
	DamageModifier float64

	// VelocityModifier and RangeModifier come from attachments; 0 means 1.
	VelocityModifier float64
	RangeModifier    float64

	ImpactForce float64
	Decal       hit.DecalConfig
	Payload     Explosive

	SpawnTime float64
}

// Projectile is one bullet in flight. It is owned by a Simulator.
type Projectile struct {
	ID     uint
	params Params

	position  core.Vec3
	velocity  core.Vec3
	initial   core.Vec3
	maxRange  float64
	travelled float64
	age       float64

	outcome    Outcome
	trajectory []core.TrajectoryPoint
	impact     *core.ProjectileHit
	result     *hit.Result
}

// New creates a projectile at its origin with attachment scaling applied.
func New(id uint, p Params) *Projectile {
	vm := p.VelocityModifier
	if vm == 0 {
		vm = 1
	}
	rm := p.RangeModifier
	if rm == 0 {
		rm = 1
	}
	velocity := p.Direction.Normalized().Scale(p.Speed).Add(p.InheritedVelocity).Scale(vm)
	return &Projectile{
		ID:         id,
		params:     p,
		position:   p.Origin,
		velocity:   velocity,
		initial:    velocity,
		maxRange:   p.Range * rm,
		trajectory: []core.TrajectoryPoint{{Position: p.Origin, SimTime: p.SpawnTime}},
	}
}

// Position returns the current position.
func (p *Projectile) Position() core.Vec3 { return p.position }

// Velocity returns the current velocity, gravity included.
func (p *Projectile) Velocity() core.Vec3 { return p.velocity }

// Range returns the maximum travel distance after attachment scaling.
func (p *Projectile) Range() float64 { return p.maxRange }

// Travelled returns the distance covered so far.
func (p *Projectile) Travelled() float64 { return p.travelled }

// Outcome returns how the flight ended, or Flying.
func (p *Projectile) Outcome() Outcome { return p.outcome }

// Done reports whether the flight has ended.
func (p *Projectile) Done() bool { return p.outcome != Flying }

// Params returns the spawn parameters.
func (p *Projectile) Params() Params { return p.params }

// Result returns the hit resolution of a direct impact, or nil.
func (p *Projectile) Result() *hit.Result { return p.result }

// Impact returns the recorded impact, or nil when nothing was hit.
func (p *Projectile) Impact() *core.ProjectileHit { return p.impact }

// Trajectory returns the recorded positions, starting with the origin.
func (p *Projectile) Trajectory() []core.TrajectoryPoint {
	return p.trajectory
}

// DamageAt returns the direct damage dealt after travelling distance.
func (p *Projectile) DamageAt(distance float64) float64 {
	fraction := 0.0
	if p.maxRange > 0 {
		fraction = core.Clamp01(distance / p.maxRange)
	}
	shots := p.params.ShotCount
	if shots < 1 {
		shots = 1
	}
	return p.params.DamageCurve.Evaluate(fraction) * p.params.Damage / float64(shots)
}

// Step advances the projectile by dt. simTime is the time at the end of the step.
func (p *Projectile) Step(dt, simTime float64, world physics.World, effects fx.Sink, logger *slog.Logger) Outcome {
	if p.outcome != Flying || dt <= 0 {
		return p.outcome
	}
	if logger == nil {
		logger = slog.Default()
	}
	prevAge := p.age
	p.age += dt

	p.velocity = p.velocity.Add(p.params.Gravity.Scale(dt))
	segment := p.velocity.Scale(dt)
	distance := segment.Length()

	// the flight ends at whichever limit is reached first inside this step,
	// and nothing beyond that point is swept
	scale, limit := 1.0, Flying
	if p.maxRange > 0 {
		if left := p.maxRange - p.travelled; left <= distance {
			scale, limit = 0, OutOfRange
			if distance > 0 {
				scale = math.Max(left, 0) / distance
			}
		}
	}
	if lt := p.params.LifeTime; lt > 0 && p.age >= lt {
		if f := math.Max(lt-prevAge, 0) / dt; limit == Flying || f < scale {
			scale, limit = f, Expired
		}
	}
	segment = segment.Scale(scale)
	reach := distance * scale

	if world != nil && reach > 0 {
		filter := physics.ExcludeSource(p.params.Source.ID)
		if h, ok := world.SphereCast(p.position, p.params.Radius, segment, reach, filter); ok {
			p.impactAt(h, simTime, effects, logger)
			return p.outcome
		}
	}

	p.position = p.position.Add(segment)
	p.travelled += reach
	p.trajectory = append(p.trajectory, core.TrajectoryPoint{Position: p.position, SimTime: simTime})
	p.outcome = limit
	return p.outcome
}

func (p *Projectile) impactAt(h hit.Hit, simTime float64, effects fx.Sink, logger *slog.Logger) {
	p.travelled += h.Distance
	p.position = h.Point
	p.trajectory = append(p.trajectory, core.TrajectoryPoint{Position: h.Point, SimTime: simTime})

	p.impact = &core.ProjectileHit{
		SimTime:    simTime,
		Position:   h.Point,
		ColliderID: h.Collider.ID,
		VictimID:   h.Collider.OwnerID(),
		Travelled:  p.travelled,
	}

	if p.params.Payload != nil {
		p.params.Payload.Detonate(h.Point, p.params.Source)
		p.outcome = Detonated
		logger.Debug("Projectile detonated", "id", p.ID, "collider", h.Collider.ID)
		return
	}

	res, ok := hit.Resolve(hit.Request{
		Hit:            h,
		Source:         p.params.Source,
		Damage:         p.DamageAt(p.travelled),
		DamageModifier: p.params.DamageModifier,
		Direction:      p.velocity,
		ImpactForce:    p.params.ImpactForce,
		Decal:          p.params.Decal,
		Effects:        effects,
	})
	if ok {
		p.result = &res
		p.impact.Damage = res.Damage
	}
	p.outcome = Hit
}

// Event converts the finished flight into a recordable event.
func (p *Projectile) Event() core.ProjectileEvent {
	return core.ProjectileEvent{
		FirearmID:       p.params.Source.FirearmID,
		ShooterID:       p.params.Source.ID,
		SpawnSimTime:    p.params.SpawnTime,
		InitialVelocity: p.initial,
		Outcome:         p.outcome.String(),
		Trajectory:      p.trajectory,
		Hit:             p.impact,
	}
}

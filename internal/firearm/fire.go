package firearm

import (
	"context"
	"math"
	"time"

	"github.com/fpsframework/firearm/internal/attachment"
	"github.com/fpsframework/firearm/internal/hit"
	"github.com/fpsframework/firearm/internal/physics"
	"github.com/fpsframework/firearm/internal/projectile"
	"github.com/fpsframework/firearm/internal/spray"
	"github.com/fpsframework/firearm/internal/util"
	"github.com/fpsframework/firearm/pkg/core"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Clock is the simulation context a firearm reads each tick.
// *sim.Context implements it.
type Clock interface {
	Now() float64
	Tick() uint64
	Paused() bool
	Active() bool
	WallTime(simTime float64) time.Time
}

// movingThreshold is the speed above which the shooter counts as moving.
const movingThreshold = 0.1

// Tick runs one simulation step: pending deadlines first, then input, then
// spray and movement updates.
func (f *Firearm) Tick(ctx Clock, in Input, dt float64) {
	if !f.equipped {
		return
	}
	f.updateReadiness(ctx)
	if ctx.Paused() || !ctx.Active() {
		f.state.IsFiring = false
		f.state.AttemptingToFire = false
		return
	}

	f.updateReload(ctx)
	f.updateBurst(ctx)

	if in.SwitchFireMode {
		f.SwitchFireMode(ctx)
	}
	if in.Drop {
		f.emit(ctx, Event{Kind: EventDropRequested})
	}
	if in.Reload {
		f.Reload(ctx)
	}

	trigger := in.FirePressed
	if f.state.FireMode == Auto {
		trigger = in.FireHeld || in.FirePressed
	}
	f.state.AttemptingToFire = trigger

	if trigger {
		if f.state.RemainingAmmo <= 0 {
			if f.preset.AutomaticReload && !f.state.IsReloading {
				f.Reload(ctx)
			}
		} else {
			f.Fire(ctx)
		}
	}
	f.updateReadiness(ctx)
	f.state.IsFiring = (trigger && f.state.ReadyToFire) || f.burst.remaining > 0

	f.updateSpray(dt)
	f.updateMovement()
	f.syncState()
}

// Fire attempts one trigger pull. It returns false when the shot is not
// admitted by readiness or the fire timer.
func (f *Firearm) Fire(ctx Clock) bool {
	f.updateReadiness(ctx)
	if !f.equipped || !f.state.ReadyToFire {
		return false
	}
	now := ctx.Now()
	if now+timeEpsilon < f.state.FireTimer {
		return false
	}
	if f.burst.remaining > 0 {
		return false
	}
	if f.state.IsReloading {
		if !f.preset.CanCancelReload {
			return false
		}
		f.CancelReload(ctx)
	}

	f.advanceFireTimer(now)
	f.state.ShotsFired = 0

	origin, direction := f.aim()
	f.burst = burst{
		remaining: f.preset.shotCount(),
		origin:    origin,
		direction: direction,
	}

	if f.preset.ShotDelay <= 0 {
		for f.burst.remaining > 0 {
			if !f.fireBurstShot(ctx) {
				break
			}
		}
	} else {
		f.fireBurstShot(ctx)
		f.burst.nextAt = now + f.preset.ShotDelay
	}

	f.animator.CrossFade(ParamFire, 0.05)
	f.updateReadiness(ctx)
	f.syncState()
	return true
}

func (f *Firearm) advanceFireTimer(now float64) {
	interval := f.FireInterval()
	if f.policy == PolicyCatchUp && now-f.state.FireTimer < interval {
		f.state.FireTimer += interval
		return
	}
	f.state.FireTimer = now + interval
}

// updateBurst fires due sub-shots of a delayed multi-shot sequence.
func (f *Firearm) updateBurst(ctx Clock) {
	now := ctx.Now()
	for f.burst.remaining > 0 && now+timeEpsilon >= f.burst.nextAt {
		if !f.fireBurstShot(ctx) {
			return
		}
		f.burst.nextAt += f.preset.ShotDelay
	}
}

// fireBurstShot fires the next sub-shot, ending the sequence when the
// magazine is empty.
func (f *Firearm) fireBurstShot(ctx Clock) bool {
	if f.state.RemainingAmmo <= 0 {
		f.burst = burst{}
		return false
	}
	f.fireOnce(ctx, f.burst.origin, f.burst.direction)
	f.burst.remaining--
	if f.burst.remaining <= 0 {
		f.burst = burst{}
	}
	return true
}

// fireOnce applies one round: pre-fire event, ammo, recoil, effects, casing
// and hit resolution, then the fire-done event.
func (f *Firearm) fireOnce(ctx Clock, origin, direction core.Vec3) {
	now := ctx.Now()
	shot := core.ShotEvent{
		FirearmID:     f.id,
		ShooterID:     f.shooter.ID,
		Time:          ctx.WallTime(now),
		SimTime:       now,
		Tick:          ctx.Tick(),
		Preset:        f.preset.Name,
		FireMode:      f.state.FireMode.String(),
		Mechanism:     f.preset.Mechanism.String(),
		ShotIndex:     f.state.ShotsFired,
		Origin:        origin,
		Direction:     direction,
		AmmoRemaining: f.state.RemainingAmmo - 1,
		Attachments:   f.activeAttachments(),
	}
	f.emit(ctx, Event{Kind: EventFire, Shot: &shot})

	local := f.authority == nil || f.authority.AllowLocalEffects(shot)
	if local {
		f.state.RemainingAmmo--
	} else {
		shot.AmmoRemaining = f.state.RemainingAmmo
	}
	f.state.ShotsFired++
	f.animator.SetFloat(ParamAmmo, float64(f.state.RemainingAmmo))

	f.applyRecoil()

	if f.audio.Fire != nil {
		f.audio.Fire.Play(true)
	} else {
		f.errorOnce("audio.fire", "Fire audio cue is not assigned")
	}
	muzzle := f.muzzle()
	f.effects.PlayMuzzleFlash(f.id, muzzle)
	f.ejectCasing()

	if local {
		switch f.preset.Mechanism {
		case Projectile:
			f.spawnProjectile(ctx, origin, direction)
		default:
			f.hitscan(ctx, origin, direction, muzzle)
		}
	}

	f.metrics.shots.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("preset", f.preset.Name),
		attribute.String("mechanism", f.preset.Mechanism.String()),
	))
	f.syncState()
	f.emit(ctx, Event{Kind: EventFireDone, Shot: &shot})
}

func (f *Firearm) applyRecoil() {
	recoil := f.Modifier(attachment.Recoil)
	pitch := f.preset.Recoil.CameraVertical * recoil
	yaw := f.preset.Recoil.CameraHorizontal * (f.rng.Float64()*2 - 1) * recoil
	f.motion.AddLookDelta(pitch, yaw)
	f.animator.SetFloat(ParamRecoil, f.preset.Recoil.Visual*f.Modifier(attachment.VisualRecoil))
}

func (f *Firearm) ejectCasing() {
	if f.preset.Prefabs.Casing == "" {
		return
	}
	self := f.rig.Self()
	speed := f.preset.CasingSpeed * (0.6 + 0.4*f.rng.Float64())
	velocity := self.Right.Scale(speed).Add(f.motion.Velocity())
	f.effects.EjectCasing(f.id, f.preset.Prefabs.Casing, self.Position, velocity)
	if f.audio.Casing != nil {
		f.audio.Casing.Play(false)
	}
}

func (f *Firearm) hitscan(ctx Clock, origin, direction core.Vec3, muzzle core.Transform) {
	maxDistance := f.preset.Range * f.Modifier(attachment.Range)
	h, ok := f.world.Raycast(origin, direction, maxDistance, physics.ExcludeSource(f.shooter.ID))
	end := origin.Add(direction.Scale(maxDistance))
	if ok {
		end = h.Point
	}
	if f.preset.Prefabs.Tracer != "" {
		f.effects.SpawnTracer(f.id, muzzle.Position, end)
	}
	if !ok {
		return
	}

	res, applied := hit.Resolve(hit.Request{
		Hit:            h,
		Source:         f.shooter,
		Damage:         f.preset.Damage,
		DamageModifier: f.Modifier(attachment.Damage),
		Direction:      direction,
		ImpactForce:    f.preset.ImpactForce,
		Decal:          hit.DecalConfig{Prefab: f.preset.Prefabs.Decal, Size: f.preset.Prefabs.DecalSize},
		Effects:        f.effects,
	})
	if !applied {
		return
	}

	now := ctx.Now()
	f.metrics.hits.Add(context.Background(), 1, metric.WithAttributes(attribute.String("preset", f.preset.Name)))
	f.metrics.damage.Add(context.Background(), res.Damage, metric.WithAttributes(attribute.String("preset", f.preset.Name)))
	f.emit(ctx, Event{Kind: EventHit, Hit: &core.HitEvent{
		Time:         ctx.WallTime(now),
		SimTime:      now,
		Tick:         ctx.Tick(),
		FirearmID:    f.id,
		ShooterID:    f.shooter.ID,
		VictimID:     res.VictimID,
		ColliderID:   res.ColliderID,
		Mechanism:    f.preset.Mechanism.String(),
		Position:     h.Point,
		Distance:     h.Distance,
		Damage:       res.Damage,
		HealthBefore: res.HealthBefore,
		HealthAfter:  res.HealthAfter,
		Killed:       res.Killed,
		EventText:    util.FormatWeaponText(f.preset.Name, f.preset.AmmoType, f.activeAttachments()),
		ExtraData:    map[string]any{"decal": res.Decal, "impulse": res.Impulse},
	}})
}

func (f *Firearm) spawnProjectile(ctx Clock, origin, direction core.Vec3) {
	if f.projectiles == nil {
		f.errorOnce("projectiles", "Projectile firearm has no projectile simulator, shot skipped")
		return
	}
	if f.preset.Prefabs.Projectile == "" {
		f.errorOnce("prefab.projectile", "Projectile prefab is not assigned")
	}
	cfg := f.preset.Projectile
	f.projectiles.Spawn(projectile.Params{
		Source:            f.shooter,
		Origin:            origin,
		Direction:         direction,
		InheritedVelocity: f.motion.Velocity(),
		Speed:             f.preset.MuzzleVelocity,
		Range:             f.preset.Range,
		Radius:            cfg.Radius,
		Gravity:           cfg.Gravity,
		LifeTime:          cfg.LifeTime,
		Damage:            f.preset.Damage,
		ShotCount:         f.preset.shotCount(),
		DamageCurve:       cfg.DamageCurve,
		DamageModifier:    f.Modifier(attachment.Damage),
		VelocityModifier:  f.Modifier(attachment.MuzzleVelocity),
		RangeModifier:     f.Modifier(attachment.Range),
		ImpactForce:       f.preset.ImpactForce,
		Decal:             hit.DecalConfig{Prefab: f.preset.Prefabs.Decal, Size: f.preset.Prefabs.DecalSize},
		SpawnTime:         ctx.Now(),
	})
}

// aim returns the shot origin and the spray-adjusted direction.
func (f *Firearm) aim() (core.Vec3, core.Vec3) {
	camera := f.rig.Camera()
	muzzle := f.muzzle()

	var origin core.Vec3
	var basis core.Transform
	switch f.preset.Direction {
	case FromCamera:
		origin, basis = camera.Position, camera
	case FromMuzzle:
		origin, basis = muzzle.Position, muzzle
	default:
		origin = muzzle.Position
		target := camera.Position.Add(camera.Forward.Scale(math.Max(f.preset.Range, 1)))
		basis = core.LookTransform(origin, target.Sub(origin))
	}

	pattern := f.currentPattern()
	if pattern == nil {
		return origin, basis.Forward.Normalized()
	}
	dir := pattern.Calculate(spray.Request{
		Forward:        basis.Forward,
		Right:          basis.Right,
		Up:             basis.Up,
		Multiplier:     f.spray.Multiplier,
		AmountOverride: -1,
		SpreadModifier: f.Modifier(attachment.Spread),
	}, &f.spray.PointIndex, f.rng, f.logger)
	return origin, dir.Normalized()
}

func (f *Firearm) muzzle() core.Transform {
	if t, ok := f.rig.Muzzle(); ok {
		return t
	}
	f.errorOnce("muzzle", "Muzzle transform is not assigned, using firearm transform")
	return f.rig.Self()
}

func (f *Firearm) activeAttachments() []string {
	if f.attachments == nil {
		return nil
	}
	return f.attachments.ActiveKeys()
}

// updateReadiness recomputes the fire and reload guards.
func (f *Firearm) updateReadiness(ctx Clock) {
	paused := ctx == nil || ctx.Paused() || !ctx.Active()
	blockedByReload := f.state.IsReloading && !f.preset.CanCancelReload

	f.state.ReadyToFire = f.equipped &&
		!blockedByReload &&
		f.animator.RotationNeutral() &&
		f.state.RemainingAmmo > 0 &&
		!f.playingRestricted() &&
		!paused

	// a pending multi-shot sequence runs to completion before a reload
	f.state.ReadyToReload = f.state.RemainingAmmo < f.preset.MagazineCapacity &&
		f.ammo.Count > 0 &&
		!f.state.IsReloading &&
		f.burst.remaining == 0
}

func (f *Firearm) playingRestricted() bool {
	for _, name := range f.preset.RestrictedAnimations {
		if f.animator.IsPlaying(name) {
			return true
		}
	}
	return false
}

// updateSpray ramps the directional multiplier while firing, recovers it
// while idle and stationary, and derives the visible spread amount.
func (f *Firearm) updateSpray(dt float64) {
	velocity := f.motion.Velocity()
	grounded := f.motion.IsGrounded()
	moving := core.Vec3{X: velocity.X, Z: velocity.Z}.Length() > movingThreshold

	if pattern := f.currentPattern(); pattern != nil && dt > 0 {
		switch {
		case f.state.IsFiring:
			pattern.RampUp(&f.spray, dt)
		case !moving && grounded:
			pattern.Recover(&f.spray, dt, f.logger)
		}
	}

	spread := f.preset.Spread
	baseline := spread.Stationary
	switch {
	case !grounded:
		baseline = spread.Airborne
	case moving:
		baseline = spread.Moving
	}
	f.state.SprayAmount = core.Lerp(baseline, spread.Aiming, f.motion.AimProgress()) * f.Modifier(attachment.Spread)
}

func (f *Firearm) updateMovement() {
	mv := f.preset.Movement
	hip, aim := mv.HipSpeed, mv.AimSpeed
	if hip == 0 {
		hip = 1
	}
	if aim == 0 {
		aim = hip
	}
	f.motion.SetSpeedMultiplier(core.Lerp(hip, aim, f.motion.AimProgress()))
	f.animator.SetFloat(ParamAimSpeed, f.AimSpeed())
}

// AimSpeed returns the aim-down-sights transition speed after attachments.
func (f *Firearm) AimSpeed() float64 {
	base := f.preset.Movement.AimTransition
	if base == 0 {
		base = 1
	}
	return base * f.Modifier(attachment.AimSpeed)
}

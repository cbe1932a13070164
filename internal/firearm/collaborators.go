package firearm

import (
	"github.com/fpsframework/firearm/pkg/core"
)

// Motion is the character controller state the firearm reads and pushes to.
type Motion interface {
	Velocity() core.Vec3
	IsGrounded() bool
	// AimProgress is the aim-down-sights blend in [0,1].
	AimProgress() float64
	IsAiming() bool
	SetSpeedMultiplier(m float64)
	// AddLookDelta applies camera recoil in degrees.
	AddLookDelta(pitch, yaw float64)
}

// Animator is the animation output sink.
type Animator interface {
	CrossFade(state string, blend float64)
	IsPlaying(state string) bool
	SetBool(name string, v bool)
	SetFloat(name string, v float64)
	// RotationNeutral reports whether procedural sway allows firing.
	RotationNeutral() bool
}

// AudioCue is an opaque sound handle.
type AudioCue interface {
	Play(interrupt bool)
	Stop()
	DisableEvents()
}

// Audio groups the cues a firearm plays. Nil cues are skipped.
type Audio struct {
	Fire           AudioCue
	Reload         AudioCue
	ReloadEmpty    AudioCue
	Casing         AudioCue
	FireModeSwitch AudioCue
}

// Rig supplies the transforms a firearm shoots from.
type Rig interface {
	Self() core.Transform
	Camera() core.Transform
	// Muzzle returns false when the firearm has no muzzle reference.
	Muzzle() (core.Transform, bool)
}

// StaticRig is a Rig with fixed transforms.
type StaticRig struct {
	SelfTransform   core.Transform
	CameraTransform core.Transform
	MuzzleTransform *core.Transform
}

func (r *StaticRig) Self() core.Transform   { return r.SelfTransform }
func (r *StaticRig) Camera() core.Transform { return r.CameraTransform }

func (r *StaticRig) Muzzle() (core.Transform, bool) {
	if r.MuzzleTransform == nil {
		return core.Transform{}, false
	}
	return *r.MuzzleTransform, true
}

// Input is one tick's sampled input.
type Input struct {
	FireHeld       bool
	FirePressed    bool
	Reload         bool
	Drop           bool
	SwitchFireMode bool
}

// Animator parameter names written by the firearm.
const (
	ParamAmmo        = "Ammo"
	ParamIsReloading = "Is Reloading"
	ParamRecoil      = "Recoil"
	ParamAimSpeed    = "ADS Speed"
	ParamFire        = "Fire"
)

type nopMotion struct{}

func (nopMotion) Velocity() core.Vec3           { return core.Zero }
func (nopMotion) IsGrounded() bool              { return true }
func (nopMotion) AimProgress() float64          { return 0 }
func (nopMotion) IsAiming() bool                { return false }
func (nopMotion) SetSpeedMultiplier(float64)    {}
func (nopMotion) AddLookDelta(float64, float64) {}

type nopAnimator struct{}

func (nopAnimator) CrossFade(string, float64) {}
func (nopAnimator) IsPlaying(string) bool     { return false }
func (nopAnimator) SetBool(string, bool)      {}
func (nopAnimator) SetFloat(string, float64)  {}
func (nopAnimator) RotationNeutral() bool     { return true }

// Package firearm implements the firearm state machine: fire admission and
// timing, multi-shot sequences, recoil, spray accumulation, hit resolution
// and reload sequencing.
//
// A Firearm is driven by Tick once per simulation step and is not safe for
// concurrent use.
package firearm

import (
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/fpsframework/firearm/internal/attachment"
	"github.com/fpsframework/firearm/internal/fx"
	"github.com/fpsframework/firearm/internal/hit"
	"github.com/fpsframework/firearm/internal/physics"
	"github.com/fpsframework/firearm/internal/projectile"
	"github.com/fpsframework/firearm/internal/spray"
	"github.com/fpsframework/firearm/pkg/core"
)

// timeEpsilon absorbs float drift when comparing the clock to deadlines.
const timeEpsilon = 1e-9

// State is the mutable runtime state of one firearm.
type State struct {
	RemainingAmmo int
	// ReserveAmmo mirrors the ammo profile's pool.
	ReserveAmmo int

	IsReloading      bool
	IsFiring         bool
	IsOutOfAmmo      bool
	AttemptingToFire bool
	ReadyToFire      bool
	ReadyToReload    bool

	FireMode   FireMode
	ShotsFired int

	SprayAmount     float64
	SprayMultiplier float64
	SprayPointIndex int

	// FireTimer is the earliest simulation time of the next accepted shot.
	FireTimer float64
}

// Dependencies are the collaborators injected into a Firearm.
type Dependencies struct {
	ID      string
	Shooter hit.Source
	Preset  *Preset

	Rig         Rig
	Motion      Motion
	Animator    Animator
	Audio       Audio
	Effects     fx.Sink
	World       physics.World
	Projectiles *projectile.Simulator
	Attachments *attachment.Manager
	Ammo        AmmoInventory
	Authority   Authority

	Policy FireRatePolicy
	Rand   *rand.Rand
	Logger *slog.Logger
}

// Firearm is one equipped weapon instance.
type Firearm struct {
	id      string
	shooter hit.Source
	preset  *Preset

	rig         Rig
	motion      Motion
	animator    Animator
	audio       Audio
	effects     fx.Sink
	world       physics.World
	projectiles *projectile.Simulator
	attachments *attachment.Manager
	ammo        *AmmoProfile
	authority   Authority
	policy      FireRatePolicy
	rng         *rand.Rand
	logger      *slog.Logger
	metrics     *instruments

	listeners []Listener
	loggedErr map[string]bool

	state    State
	spray    spray.State
	equipped bool

	// pending Default reload; reloadStartAmmo is the magazine count when
	// the running reload started
	reloadPending   bool
	reloadDeadline  float64
	reloadEmpty     bool
	reloadStartAmmo int

	// pending multi-shot sequence
	burst burst
}

type burst struct {
	remaining int
	nextAt    float64
	origin    core.Vec3
	direction core.Vec3
}

// New builds a firearm with a full magazine. Missing collaborators are
// replaced with inert defaults and logged.
func New(deps Dependencies) (*Firearm, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	f := &Firearm{
		id:          deps.ID,
		shooter:     deps.Shooter,
		preset:      deps.Preset,
		rig:         deps.Rig,
		motion:      deps.Motion,
		animator:    deps.Animator,
		audio:       deps.Audio,
		effects:     deps.Effects,
		world:       deps.World,
		projectiles: deps.Projectiles,
		attachments: deps.Attachments,
		authority:   deps.Authority,
		policy:      deps.Policy,
		rng:         deps.Rand,
		loggedErr:   make(map[string]bool),
	}
	if f.shooter.FirearmID == "" {
		f.shooter.FirearmID = f.id
	}
	f.logger = logger.With("firearm", f.id)

	if f.preset == nil {
		f.logger.Error("Firearm has no preset, using default preset")
		f.preset = DefaultPreset()
	}
	f.logger = f.logger.With("preset", f.preset.Name)

	if f.rig == nil {
		f.rig = &StaticRig{SelfTransform: core.IdentityTransform(), CameraTransform: core.IdentityTransform()}
	}
	if f.motion == nil {
		f.motion = nopMotion{}
	}
	if f.animator == nil {
		f.animator = nopAnimator{}
	}
	if f.effects == nil {
		f.effects = fx.Nop{}
	}
	if f.world == nil {
		f.world = physics.Empty{}
	}
	if f.rng == nil {
		f.rng = rand.New(rand.NewSource(1))
	}
	if f.attachments == nil {
		f.logger.Warn("Firearm has no attachments manager, modifiers are neutral")
	}
	f.ammo = f.resolveAmmo(deps.Ammo)

	metrics, err := newInstruments()
	if err != nil {
		return nil, fmt.Errorf("firearm %s: %w", f.id, err)
	}
	f.metrics = metrics

	f.state.FireMode = f.preset.FireMode
	if f.state.FireMode == Selective {
		f.state.FireMode = Auto
	}
	f.state.RemainingAmmo = f.preset.MagazineCapacity
	f.spray.Reset(f.currentPattern())
	f.syncState()
	return f, nil
}

func (f *Firearm) resolveAmmo(inv AmmoInventory) *AmmoProfile {
	name := f.preset.AmmoType
	if inv != nil {
		if p, ok := inv.Profile(name); ok {
			return p
		}
	}
	f.logger.Warn("Ammo profile not found, using empty placeholder", "ammoType", name)
	return &AmmoProfile{Name: name}
}

// ID returns the firearm instance ID.
func (f *Firearm) ID() string { return f.id }

// Preset returns the firearm's preset.
func (f *Firearm) Preset() *Preset { return f.preset }

// Shooter returns the identity hits are attributed to.
func (f *Firearm) Shooter() hit.Source { return f.shooter }

// State returns a snapshot of the runtime state.
func (f *Firearm) State() State { return f.state }

// Equipped reports whether the firearm accepts input.
func (f *Firearm) Equipped() bool { return f.equipped }

// AmmoProfile returns the reserve pool in use.
func (f *Firearm) AmmoProfile() *AmmoProfile { return f.ammo }

// Attachments returns the attachment manager, which may be nil.
func (f *Firearm) Attachments() *attachment.Manager { return f.attachments }

// AddListener registers a listener. Listeners are called in registration order.
func (f *Firearm) AddListener(l Listener) {
	f.listeners = append(f.listeners, l)
}

// SetAmmo sets the magazine count, clamped to [0, capacity]. Used to carry
// ammo across pickup and drop.
func (f *Firearm) SetAmmo(n int) {
	f.state.RemainingAmmo = clampInt(n, 0, f.preset.MagazineCapacity)
	f.syncState()
}

// Modifier returns the aggregated attachment modifier for a category.
func (f *Firearm) Modifier(c attachment.Category) float64 {
	return f.attachments.CalculateModifier(c)
}

// FireInterval returns the minimum time between accepted shots.
func (f *Firearm) FireInterval() float64 {
	rate := f.preset.FireRate * f.Modifier(attachment.FireRate)
	if rate <= 0 {
		f.errorOnce("fireRate", "Fire rate is not positive, shots are not rate limited", "fireRate", f.preset.FireRate)
		return 0
	}
	return 60 / rate
}

// Equip makes the firearm ready to receive input.
func (f *Firearm) Equip(ctx Clock) {
	if f.equipped {
		return
	}
	f.equipped = true
	f.animator.SetFloat(ParamAmmo, float64(f.state.RemainingAmmo))
	f.updateReadiness(ctx)
	f.logger.Debug("Firearm equipped")
}

// Unequip cancels any pending reload or multi-shot sequence and resets the
// spray state. The magazine count is kept.
func (f *Firearm) Unequip(ctx Clock) {
	if !f.equipped {
		return
	}
	if f.state.IsReloading {
		f.CancelReload(ctx)
	}
	f.burst = burst{}
	f.spray.Reset(f.currentPattern())
	f.state.IsFiring = false
	f.state.AttemptingToFire = false
	f.state.ShotsFired = 0
	f.equipped = false
	f.syncState()
	f.updateReadiness(ctx)
	f.logger.Debug("Firearm unequipped")
}

// SwitchFireMode toggles Auto and SemiAuto on Selective presets.
func (f *Firearm) SwitchFireMode(ctx Clock) bool {
	if f.preset.FireMode != Selective {
		return false
	}
	if f.state.FireMode == Auto {
		f.state.FireMode = SemiAuto
	} else {
		f.state.FireMode = Auto
	}
	if f.audio.FireModeSwitch != nil {
		f.audio.FireModeSwitch.Play(true)
	}
	f.emit(ctx, Event{Kind: EventFireModeChanged, FireMode: f.state.FireMode})
	return true
}

func (f *Firearm) currentPattern() *spray.Pattern {
	if f.motion != nil && f.motion.IsAiming() && f.preset.AimPattern != nil {
		return f.preset.AimPattern
	}
	return f.preset.HipPattern
}

func (f *Firearm) emit(ctx Clock, e Event) {
	e.Firearm = f
	if ctx != nil {
		e.SimTime = ctx.Now()
		e.Tick = ctx.Tick()
	}
	for _, l := range f.listeners {
		l.OnFirearmEvent(e)
	}
}

func (f *Firearm) errorOnce(key, msg string, args ...any) {
	if f.loggedErr[key] {
		return
	}
	f.loggedErr[key] = true
	f.logger.Error(msg, args...)
}

// syncState copies derived values into the state snapshot.
func (f *Firearm) syncState() {
	f.state.ReserveAmmo = f.ammo.Count
	f.state.IsOutOfAmmo = f.state.RemainingAmmo <= 0
	f.state.SprayMultiplier = f.spray.Multiplier
	f.state.SprayPointIndex = f.spray.PointIndex
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

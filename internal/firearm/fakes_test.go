package firearm

import (
	"bytes"
	"log/slog"
	"math/rand"
	"testing"

	"github.com/fpsframework/firearm/internal/attachment"
	"github.com/fpsframework/firearm/internal/fx"
	"github.com/fpsframework/firearm/internal/hit"
	"github.com/fpsframework/firearm/internal/physics"
	"github.com/fpsframework/firearm/internal/projectile"
	"github.com/fpsframework/firearm/internal/sim"
	"github.com/fpsframework/firearm/pkg/core"
	"github.com/stretchr/testify/require"
)

type fakeMotion struct {
	velocity    core.Vec3
	airborne    bool
	aimProgress float64
	aiming      bool

	speedMultiplier float64
	pitch, yaw      float64
	kicks           int
}

func (m *fakeMotion) Velocity() core.Vec3  { return m.velocity }
func (m *fakeMotion) IsGrounded() bool     { return !m.airborne }
func (m *fakeMotion) AimProgress() float64 { return m.aimProgress }
func (m *fakeMotion) IsAiming() bool       { return m.aiming }

func (m *fakeMotion) SetSpeedMultiplier(v float64) { m.speedMultiplier = v }

func (m *fakeMotion) AddLookDelta(pitch, yaw float64) {
	m.pitch += pitch
	m.yaw += yaw
	m.kicks++
}

type fakeAnimator struct {
	playing    map[string]bool
	notNeutral bool
	bools      map[string]bool
	floats     map[string]float64
	crossFades []string
}

func newFakeAnimator() *fakeAnimator {
	return &fakeAnimator{
		playing: make(map[string]bool),
		bools:   make(map[string]bool),
		floats:  make(map[string]float64),
	}
}

func (a *fakeAnimator) CrossFade(state string, _ float64) { a.crossFades = append(a.crossFades, state) }
func (a *fakeAnimator) IsPlaying(state string) bool       { return a.playing[state] }
func (a *fakeAnimator) SetBool(name string, v bool)       { a.bools[name] = v }
func (a *fakeAnimator) SetFloat(name string, v float64)   { a.floats[name] = v }
func (a *fakeAnimator) RotationNeutral() bool             { return !a.notNeutral }

type fakeCue struct {
	plays, stops int
}

func (c *fakeCue) Play(bool)      { c.plays++ }
func (c *fakeCue) Stop()          { c.stops++ }
func (c *fakeCue) DisableEvents() {}

type harness struct {
	t        *testing.T
	ctx      *sim.Context
	f        *Firearm
	scene    *physics.Scene
	target   *hit.HealthPool
	motion   *fakeMotion
	animator *fakeAnimator
	effects  *fx.Recorder
	audio    Audio
	ammo     *AmmoProfile
	manager  *attachment.Manager
	sim      *projectile.Simulator
	logs     *bytes.Buffer
	events   []Event
}

type option func(*Dependencies)

func withAuthority(a Authority) option {
	return func(d *Dependencies) { d.Authority = a }
}

func withPolicy(p FireRatePolicy) option {
	return func(d *Dependencies) { d.Policy = p }
}

func withoutMuzzle() option {
	return func(d *Dependencies) {
		d.Rig.(*StaticRig).MuzzleTransform = nil
	}
}

func rifle() *Preset {
	return &Preset{
		Name:             "Rifle",
		FireMode:         Auto,
		Mechanism:        Hitscan,
		FireRate:         600,
		MuzzleVelocity:   100,
		Damage:           20,
		Range:            100,
		ShotCount:        1,
		MagazineCapacity: 30,
		AmmoType:         "5.56",
		ReloadTime:       1.5,
		EmptyReloadTime:  2,
		AutomaticReload:  true,
		CasingSpeed:      4,
		Recoil:           RecoilConfig{CameraVertical: 2, CameraHorizontal: 1, Visual: 3},
		Spread:           SpreadConfig{Stationary: 1, Moving: 2, Airborne: 4, Aiming: 0},
		Prefabs:          PrefabConfig{Casing: "casing", Decal: "hole", DecalSize: 0.1},
		Movement:         MovementConfig{HipSpeed: 1, AimSpeed: 0.5, AimTransition: 2},
	}
}

// newHarness builds an equipped firearm at the origin facing a 100 HP
// target ten units down +Z.
func newHarness(t *testing.T, preset *Preset, reserve int, opts ...option) *harness {
	t.Helper()
	h := &harness{
		t:        t,
		ctx:      sim.NewContext(),
		scene:    physics.NewScene(),
		target:   hit.NewHealthPool(100),
		motion:   &fakeMotion{},
		animator: newFakeAnimator(),
		effects:  fx.NewRecorder(),
		audio:    Audio{Fire: &fakeCue{}, Reload: &fakeCue{}, ReloadEmpty: &fakeCue{}},
		logs:     &bytes.Buffer{},
	}
	h.scene.Add(&hit.Collider{ID: "dummy", Owner: "dummy", Health: h.target}, physics.Sphere{Center: core.Vec3{Z: 10}, Radius: 1})
	h.manager = attachment.NewManager(nil)
	logger := slog.New(slog.NewTextHandler(h.logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	h.sim = projectile.NewSimulator(h.scene, h.effects, logger)

	inv := NewInventory()
	if preset != nil {
		h.ammo = inv.Add(preset.AmmoType, reserve)
	}

	muzzle := core.IdentityTransform()
	deps := Dependencies{
		ID:          "rifle-1",
		Shooter:     hit.Source{ID: "player", Name: "Player"},
		Preset:      preset,
		Rig:         &StaticRig{SelfTransform: core.IdentityTransform(), CameraTransform: core.IdentityTransform(), MuzzleTransform: &muzzle},
		Motion:      h.motion,
		Animator:    h.animator,
		Audio:       h.audio,
		Effects:     h.effects,
		World:       h.scene,
		Projectiles: h.sim,
		Attachments: h.manager,
		Ammo:        inv,
		Rand:        rand.New(rand.NewSource(42)),
		Logger:      logger,
	}
	for _, o := range opts {
		o(&deps)
	}

	f, err := New(deps)
	require.NoError(t, err)
	f.AddListener(ListenerFunc(func(e Event) { h.events = append(h.events, e) }))
	f.Equip(h.ctx)
	h.f = f
	return h
}

// tick runs one firearm tick at the current time, then advances the clock.
func (h *harness) tick(in Input, dt float64) {
	h.f.Tick(h.ctx, in, dt)
	h.sim.Step(dt, h.ctx.Now()+dt)
	h.ctx.Advance(dt)
}

func (h *harness) idle(seconds, dt float64) {
	for end := h.ctx.Now() + seconds; h.ctx.Now() < end-1e-9; {
		h.tick(Input{}, dt)
	}
}

func (h *harness) kinds() []EventKind {
	out := make([]EventKind, 0, len(h.events))
	for _, e := range h.events {
		out = append(out, e.Kind)
	}
	return out
}

func (h *harness) count(kind EventKind) int {
	n := 0
	for _, e := range h.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

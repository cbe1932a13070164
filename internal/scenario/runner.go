package scenario

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"

	"github.com/fpsframework/firearm/internal/firearm"
	"github.com/fpsframework/firearm/internal/fx"
	"github.com/fpsframework/firearm/internal/hit"
	"github.com/fpsframework/firearm/internal/physics"
	"github.com/fpsframework/firearm/internal/preset"
	"github.com/fpsframework/firearm/internal/projectile"
	"github.com/fpsframework/firearm/internal/sim"
	"github.com/fpsframework/firearm/pkg/core"
)

// Observer is attached to every firearm and to the projectile simulator of
// a run. *recorder.Recorder implements it.
type Observer interface {
	Attach(f *firearm.Firearm)
	AttachSimulator(s *projectile.Simulator)
}

// Dependencies configure a Runner.
type Dependencies struct {
	Library *preset.Library
	// Context is advanced by the runner. A fresh context is used when nil.
	Context  *sim.Context
	Effects  fx.Sink
	Observer Observer
	TickRate float64
	Policy   firearm.FireRatePolicy
	Seed     int64
	Logger   *slog.Logger
}

// TargetReport is the end state of one target.
type TargetReport struct {
	ID      string
	Health  float64
	Max     float64
	Dead    bool
	Impulse core.Vec3
}

// FirearmReport is the end state of one firearm.
type FirearmReport struct {
	ID            string
	Preset        string
	Shots         int
	Hits          int
	Reloads       int
	RemainingAmmo int
	ReserveAmmo   int
}

// Report summarises a run.
type Report struct {
	Ticks    uint64
	SimTime  float64
	Targets  []TargetReport
	Firearms []FirearmReport
}

// Runner executes scripts. A Runner can run several scripts in sequence;
// each run gets a fresh scene and ammo inventory.
type Runner struct {
	deps   Dependencies
	dt     float64
	logger *slog.Logger
}

// aimBlendTime is the time the scripted shooter takes to fully aim down sights.
const aimBlendTime = 0.2

// defaultInsertInterval paces scripted reloads when the preset has no reload time.
const defaultInsertInterval = 0.5

// NewRunner validates the dependencies and returns a runner.
func NewRunner(deps Dependencies) (*Runner, error) {
	if deps.Library == nil {
		return nil, fmt.Errorf("scenario runner needs a preset library")
	}
	if deps.TickRate <= 0 {
		return nil, fmt.Errorf("tick rate must be positive, got %v", deps.TickRate)
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Effects == nil {
		deps.Effects = fx.Nop{}
	}
	return &Runner{deps: deps, dt: 1 / deps.TickRate, logger: logger.With("component", "scenario")}, nil
}

type run struct {
	r      *Runner
	ctx    *sim.Context
	scene  *physics.Scene
	sim    *projectile.Simulator
	inv    *firearm.Inventory
	rng    *rand.Rand
	guns   []*gun
	byID   map[string]*gun
	pools  []*target
	tgtIDs map[string]bool
}

type gun struct {
	id      string
	f       *firearm.Firearm
	motion  *motion
	report  FirearmReport
	nextIns float64 // next scripted round insertion, 0 when idle
}

type target struct {
	id   string
	pool *hit.HealthPool
	body *hit.Body
}

// motion is a stationary shooter that blends into aim over aimBlendTime.
type motion struct {
	aiming   bool
	progress float64
	speed    float64
	pitch    float64
	yaw      float64
}

func (m *motion) Velocity() core.Vec3  { return core.Zero }
func (m *motion) IsGrounded() bool     { return true }
func (m *motion) AimProgress() float64 { return m.progress }
func (m *motion) IsAiming() bool       { return m.aiming }

func (m *motion) SetSpeedMultiplier(v float64) { m.speed = v }

func (m *motion) AddLookDelta(pitch, yaw float64) {
	m.pitch += pitch
	m.yaw += yaw
}

func (m *motion) update(dt float64) {
	goal := 0.0
	if m.aiming {
		goal = 1
	}
	m.progress = core.MoveTowards(m.progress, goal, dt/aimBlendTime)
}

// Run executes the script. It stops early with ctx's error when ctx is done.
func (r *Runner) Run(ctx context.Context, s *Script) (*Report, error) {
	simCtx := r.deps.Context
	if simCtx == nil {
		simCtx = sim.NewContext()
	}
	x := &run{
		r:      r,
		ctx:    simCtx,
		scene:  physics.NewScene(),
		inv:    r.deps.Library.Inventory(),
		rng:    rand.New(rand.NewSource(r.deps.Seed)),
		byID:   make(map[string]*gun),
		tgtIDs: make(map[string]bool),
	}
	x.sim = projectile.NewSimulator(x.scene, r.deps.Effects, r.logger)
	if r.deps.Observer != nil {
		r.deps.Observer.AttachSimulator(x.sim)
	}

	for _, cmd := range s.Commands {
		if err := x.exec(ctx, cmd); err != nil {
			return nil, fmt.Errorf("line %d (%s): %w", cmd.Line, cmd.Op, err)
		}
	}
	// let projectiles in flight land
	for x.sim.Live() > 0 {
		if err := x.step(ctx, nil); err != nil {
			return nil, err
		}
	}
	return x.report(), nil
}

// SessionName returns the name given by the last session command, or "".
func (s *Script) SessionName() string {
	name := ""
	for _, c := range s.Commands {
		if c.Op == OpSession {
			name = c.Name
		}
	}
	return name
}

func (x *run) exec(ctx context.Context, cmd Command) error {
	switch cmd.Op {
	case OpSession:
		sess := *x.ctx.GetSession()
		sess.Name = cmd.Name
		x.ctx.SetSession(&sess)
		return nil
	case OpTarget:
		return x.addTarget(cmd)
	case OpFirearm:
		return x.addFirearm(cmd)
	case OpWait:
		return x.runFor(ctx, cmd.Duration, nil)
	}

	g, ok := x.byID[cmd.Name]
	if !ok {
		return fmt.Errorf("no firearm %q", cmd.Name)
	}
	switch cmd.Op {
	case OpAttach:
		if g.f.Attachments() == nil {
			return fmt.Errorf("firearm %q has no attachments", cmd.Name)
		}
		return g.f.Attachments().SwitchAttachment(cmd.Attachment)
	case OpAim:
		g.motion.aiming = cmd.Aiming
		return nil
	case OpTap:
		return x.step(ctx, map[*gun]firearm.Input{g: {FirePressed: true, FireHeld: true}})
	case OpReload:
		return x.step(ctx, map[*gun]firearm.Input{g: {Reload: true}})
	case OpSwitchMode:
		return x.step(ctx, map[*gun]firearm.Input{g: {SwitchFireMode: true}})
	case OpHold:
		first := true
		return x.runFor(ctx, cmd.Duration, func() map[*gun]firearm.Input {
			in := firearm.Input{FireHeld: true, FirePressed: first}
			first = false
			return map[*gun]firearm.Input{g: in}
		})
	}
	return nil
}

func (x *run) addTarget(cmd Command) error {
	if x.tgtIDs[cmd.Name] {
		return fmt.Errorf("target %q already exists", cmd.Name)
	}
	t := &target{id: cmd.Name, pool: hit.NewHealthPool(cmd.Health), body: &hit.Body{}}
	collider := &hit.Collider{ID: cmd.Name, Owner: cmd.Name, Health: t.pool, Body: t.body}
	switch cmd.Shape {
	case ShapeSphere:
		x.scene.Add(collider, physics.Sphere{Center: cmd.Position, Radius: cmd.Radius})
	default:
		x.scene.Add(collider, physics.BoxAt(cmd.Position, cmd.HalfExtents))
	}
	x.tgtIDs[cmd.Name] = true
	x.pools = append(x.pools, t)
	return nil
}

func (x *run) addFirearm(cmd Command) error {
	if _, ok := x.byID[cmd.Name]; ok {
		return fmt.Errorf("firearm %q already exists", cmd.Name)
	}
	p, ok := x.r.deps.Library.Preset(cmd.Preset)
	if !ok {
		return fmt.Errorf("preset %q: %w", cmd.Preset, preset.ErrUnknownReference)
	}
	attachments, err := x.r.deps.Library.AttachmentManager(p.Name, x.r.logger)
	if err != nil {
		return err
	}

	view := core.LookTransform(cmd.Position, cmd.Facing)
	muzzle := view
	g := &gun{id: cmd.Name, motion: &motion{speed: 1}}
	g.report = FirearmReport{ID: cmd.Name, Preset: p.Name}

	f, err := firearm.New(firearm.Dependencies{
		ID:          cmd.Name,
		Shooter:     hit.Source{ID: "shooter:" + cmd.Name, Name: cmd.Name},
		Preset:      p,
		Rig:         &firearm.StaticRig{SelfTransform: view, CameraTransform: view, MuzzleTransform: &muzzle},
		Motion:      g.motion,
		Effects:     x.r.deps.Effects,
		World:       x.scene,
		Projectiles: x.sim,
		Attachments: attachments,
		Ammo:        x.inv,
		Policy:      x.r.deps.Policy,
		Rand:        rand.New(rand.NewSource(x.rng.Int63())),
		Logger:      x.r.logger,
	})
	if err != nil {
		return err
	}
	f.AddListener(firearm.ListenerFunc(func(e firearm.Event) { x.onEvent(g, e) }))
	if x.r.deps.Observer != nil {
		x.r.deps.Observer.Attach(f)
	}
	f.Equip(x.ctx)
	g.f = f
	x.guns = append(x.guns, g)
	x.byID[cmd.Name] = g
	return nil
}

func (x *run) onEvent(g *gun, e firearm.Event) {
	switch e.Kind {
	case firearm.EventFireDone:
		g.report.Shots++
	case firearm.EventHit:
		g.report.Hits++
	case firearm.EventReloadStarting:
		if g.f.Preset().ReloadMethod == firearm.ScriptedReload {
			g.nextIns = e.SimTime + insertInterval(g.f.Preset())
		}
	case firearm.EventReloadComplete:
		g.report.Reloads++
		g.nextIns = 0
	case firearm.EventReloadCancelled:
		g.nextIns = 0
	}
}

func insertInterval(p *firearm.Preset) float64 {
	if p.ReloadTime > 0 {
		return p.ReloadTime
	}
	return defaultInsertInterval
}

// runFor steps the simulation for d seconds. inputs may be nil for idle ticks.
func (x *run) runFor(ctx context.Context, d float64, inputs func() map[*gun]firearm.Input) error {
	n := int(math.Ceil(d/x.r.dt - 1e-9))
	for i := 0; i < n; i++ {
		var in map[*gun]firearm.Input
		if inputs != nil {
			in = inputs()
		}
		if err := x.step(ctx, in); err != nil {
			return err
		}
	}
	return nil
}

// step runs one tick: scripted reload inserts, every firearm, projectiles,
// then the clock.
func (x *run) step(ctx context.Context, inputs map[*gun]firearm.Input) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dt := x.r.dt
	now := x.ctx.Now()
	for _, g := range x.guns {
		if g.nextIns > 0 && now+1e-9 >= g.nextIns {
			g.nextIns = now + insertInterval(g.f.Preset())
			g.f.InsertRounds(x.ctx, 1)
		}
		g.motion.update(dt)
		g.f.Tick(x.ctx, inputs[g], dt)
	}
	x.sim.Step(dt, now+dt)
	x.ctx.Advance(dt)
	return nil
}

func (x *run) report() *Report {
	rep := &Report{Ticks: x.ctx.Tick(), SimTime: x.ctx.Now()}
	for _, t := range x.pools {
		rep.Targets = append(rep.Targets, TargetReport{
			ID:      t.id,
			Health:  t.pool.Health(),
			Max:     t.pool.Max(),
			Dead:    t.pool.DeadConfirmed(),
			Impulse: t.body.Impulse,
		})
	}
	for _, g := range x.guns {
		st := g.f.State()
		g.report.RemainingAmmo = st.RemainingAmmo
		g.report.ReserveAmmo = st.ReserveAmmo
		rep.Firearms = append(rep.Firearms, g.report)
	}
	return rep
}

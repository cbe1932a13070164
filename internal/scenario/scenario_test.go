package scenario

import (
	"context"
	"testing"

	"github.com/fpsframework/firearm/internal/firearm"
	"github.com/fpsframework/firearm/internal/preset"
	"github.com/fpsframework/firearm/internal/projectile"
	"github.com/fpsframework/firearm/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPresets = `
firearms:
  - name: Rifle
    fireMode: auto
    mechanism: hitscan
    fireRate: 600
    damage: 20
    range: 100
    magazineCapacity: 5
    ammoType: "5.56"
    reloadTime: 0.5
    automaticReload: true
  - name: Pump
    fireMode: semiAuto
    mechanism: hitscan
    fireRate: 600
    damage: 10
    range: 100
    magazineCapacity: 2
    ammoType: "12ga"
    reloadMethod: scripted
    reloadTime: 0.25
  - name: Launcher
    fireMode: semiAuto
    mechanism: projectile
    fireRate: 60
    muzzleVelocity: 100
    damage: 30
    range: 100
    magazineCapacity: 1
    ammoType: "40mm"
attachments:
  - type: Muzzle
    name: Heavy
    modifiers: {damage: 150}
ammo:
  - {name: "5.56", count: 10}
  - {name: "12ga", count: 10}
  - {name: "40mm", count: 2}
`

func newRunner(t *testing.T, obs Observer) *Runner {
	t.Helper()
	lib, err := preset.Parse([]byte(testPresets))
	require.NoError(t, err)
	r, err := NewRunner(Dependencies{Library: lib, Observer: obs, TickRate: 60, Seed: 7})
	require.NoError(t, err)
	return r
}

func runScript(t *testing.T, r *Runner, src string) *Report {
	t.Helper()
	s, err := Parse(src)
	require.NoError(t, err)
	rep, err := r.Run(context.Background(), s)
	require.NoError(t, err)
	return rep
}

func TestParseScript(t *testing.T) {
	s, err := Parse(`
# zeroing
session "Drill ""A"""
target plate sphere 0,0,10 1 100
target wall box 0,0,40 5,5,0.5 1000
firearm rifle Rifle at 0,1.6,0 facing 0,0,1
attach rifle Muzzle/Heavy
aim rifle on
hold rifle 0.5
tap rifle
reload rifle
mode rifle
wait 1
`)
	require.NoError(t, err)
	require.Len(t, s.Commands, 11)

	assert.Equal(t, `Drill "A"`, s.SessionName())
	assert.Equal(t, 3, s.Commands[0].Line)

	plate := s.Commands[1]
	assert.Equal(t, OpTarget, plate.Op)
	assert.Equal(t, ShapeSphere, plate.Shape)
	assert.Equal(t, core.Vec3{Z: 10}, plate.Position)
	assert.Equal(t, 1.0, plate.Radius)
	assert.Equal(t, 100.0, plate.Health)

	wall := s.Commands[2]
	assert.Equal(t, core.Vec3{X: 5, Y: 5, Z: 0.5}, wall.HalfExtents)

	gun := s.Commands[3]
	assert.Equal(t, "Rifle", gun.Preset)
	assert.Equal(t, core.Vec3{Y: 1.6}, gun.Position)
	assert.Equal(t, core.Vec3{Z: 1}, gun.Facing)

	assert.Equal(t, "Muzzle/Heavy", s.Commands[4].Attachment)
	assert.True(t, s.Commands[5].Aiming)
	assert.Equal(t, 0.5, s.Commands[6].Duration)
	assert.Equal(t, OpSwitchMode, s.Commands[9].Op)
	assert.Equal(t, "wait", s.Commands[10].Op.String())
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want error
	}{
		{"unknown command", "jump rifle", ErrUnknownCommand},
		{"missing args", "hold rifle", ErrInvalidArgs},
		{"negative duration", "wait -1", ErrInvalidArgs},
		{"bad shape", "target t cone 0,0,1 1 10", ErrInvalidArgs},
		{"bad vector", "target t sphere 0;0;1 1 10", ErrInvalidArgs},
		{"zero facing", "firearm a Rifle facing 0,0,0", ErrInvalidArgs},
		{"unterminated quote", `session "open`, ErrInvalidArgs},
		{"aim value", "aim rifle maybe", ErrInvalidArgs},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.src)
			require.Error(t, err)
			if tc.name == "bad vector" {
				assert.Contains(t, err.Error(), "0;0;1")
				return
			}
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestParseCollectsEveryLineError(t *testing.T) {
	_, err := Parse("jump\nwait\nwait 1\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 1")
	assert.Contains(t, err.Error(), "line 2")
	assert.NotContains(t, err.Error(), "line 3")
}

func TestNewRunnerValidates(t *testing.T) {
	_, err := NewRunner(Dependencies{TickRate: 60})
	assert.Error(t, err)

	lib, err := preset.Parse(nil)
	require.NoError(t, err)
	_, err = NewRunner(Dependencies{Library: lib})
	assert.Error(t, err)
}

func TestSingleTapDamagesTarget(t *testing.T) {
	rep := runScript(t, newRunner(t, nil), `
target dummy sphere 0,0,10 1 100
firearm rifle Rifle
tap rifle
`)
	require.Len(t, rep.Targets, 1)
	assert.Equal(t, 80.0, rep.Targets[0].Health)
	assert.False(t, rep.Targets[0].Dead)

	require.Len(t, rep.Firearms, 1)
	assert.Equal(t, 1, rep.Firearms[0].Shots)
	assert.Equal(t, 1, rep.Firearms[0].Hits)
	assert.Equal(t, 4, rep.Firearms[0].RemainingAmmo)
	assert.Equal(t, uint64(1), rep.Ticks)
}

func TestAttachmentScalesDamage(t *testing.T) {
	rep := runScript(t, newRunner(t, nil), `
target dummy sphere 0,0,10 1 100
firearm rifle Rifle
attach rifle Muzzle/Heavy
tap rifle
`)
	assert.Equal(t, 70.0, rep.Targets[0].Health)
}

func TestHoldEmptiesMagazineThenAutoReloads(t *testing.T) {
	rep := runScript(t, newRunner(t, nil), `
target wall box 0,0,20 5,5,0.5 1000
firearm rifle Rifle
hold rifle 0.8
wait 1
`)
	gun := rep.Firearms[0]
	assert.Equal(t, 5, gun.Shots)
	assert.Equal(t, 1, gun.Reloads)
	assert.Equal(t, 5, gun.RemainingAmmo)
	assert.Equal(t, 5, gun.ReserveAmmo)
	assert.Equal(t, 900.0, rep.Targets[0].Health)
}

func TestScriptedReloadInsertsRounds(t *testing.T) {
	rep := runScript(t, newRunner(t, nil), `
firearm pump Pump
tap pump
wait 0.2
tap pump
reload pump
wait 1
`)
	gun := rep.Firearms[0]
	assert.Equal(t, 2, gun.Shots)
	assert.Equal(t, 1, gun.Reloads)
	assert.Equal(t, 2, gun.RemainingAmmo)
	assert.Equal(t, 8, gun.ReserveAmmo)
}

func TestProjectileLandsBeforeReport(t *testing.T) {
	rep := runScript(t, newRunner(t, nil), `
target wall box 0,0,20 5,5,0.5 100
firearm launcher Launcher
tap launcher
`)
	assert.Equal(t, 70.0, rep.Targets[0].Health)
	assert.Equal(t, 1, rep.Firearms[0].Shots)
	assert.Greater(t, rep.SimTime, 0.19)
}

func TestRunErrors(t *testing.T) {
	r := newRunner(t, nil)
	cases := map[string]string{
		"unknown firearm":   "tap ghost",
		"unknown preset":    "firearm a Minigun",
		"duplicate firearm": "firearm a Rifle\nfirearm a Rifle",
		"duplicate target":  "target t sphere 0,0,1 1 1\ntarget t sphere 0,0,2 1 1",
		"bad attachment":    "firearm a Rifle\nattach a Sight/Nope",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			s, err := Parse(src)
			require.NoError(t, err)
			_, err = r.Run(context.Background(), s)
			assert.Error(t, err)
		})
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	r := newRunner(t, nil)
	s, err := Parse("firearm a Rifle\nwait 10")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Run(ctx, s)
	assert.ErrorIs(t, err, context.Canceled)
}

type fakeObserver struct {
	firearms   []string
	simulators int
	events     []firearm.EventKind
}

func (o *fakeObserver) Attach(f *firearm.Firearm) {
	o.firearms = append(o.firearms, f.ID())
	f.AddListener(firearm.ListenerFunc(func(e firearm.Event) { o.events = append(o.events, e.Kind) }))
}

func (o *fakeObserver) AttachSimulator(*projectile.Simulator) { o.simulators++ }

func TestObserverAttached(t *testing.T) {
	obs := &fakeObserver{}
	runScript(t, newRunner(t, obs), `
firearm a Rifle
firearm b Pump
tap a
`)
	assert.Equal(t, []string{"a", "b"}, obs.firearms)
	assert.Equal(t, 1, obs.simulators)
	assert.Contains(t, obs.events, firearm.EventFireDone)
}

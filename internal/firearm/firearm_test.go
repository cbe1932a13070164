package firearm

import (
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/fpsframework/firearm/internal/attachment"
	"github.com/fpsframework/firearm/internal/fx"
	"github.com/fpsframework/firearm/internal/hit"
	"github.com/fpsframework/firearm/internal/physics"
	"github.com/fpsframework/firearm/internal/projectile"
	"github.com/fpsframework/firearm/internal/spray"
	"github.com/fpsframework/firearm/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSingleHitscanShot(t *testing.T) {
	h := newHarness(t, rifle(), 90)

	h.tick(Input{FirePressed: true}, 0.05)
	assert.Equal(t, 80.0, h.target.Health())
	assert.Equal(t, 29, h.f.State().RemainingAmmo)

	// 0.05s later is inside the 0.1s cooldown
	assert.False(t, h.f.Fire(h.ctx))
	h.tick(Input{FirePressed: true}, 0.05)
	assert.Equal(t, 80.0, h.target.Health())
	assert.Equal(t, 29, h.f.State().RemainingAmmo)

	assert.True(t, h.f.Fire(h.ctx))
	assert.Equal(t, 60.0, h.target.Health())
	assert.InDelta(t, 0.2, h.f.State().FireTimer, 1e-9)
}

func TestMagazineEmptyAutoReload(t *testing.T) {
	p := rifle()
	p.FireMode = SemiAuto
	p.EmptyReloadTime = 0
	h := newHarness(t, p, 90)
	h.f.SetAmmo(0)

	h.tick(Input{FirePressed: true}, 0.1)
	st := h.f.State()
	assert.True(t, st.IsReloading)
	assert.Equal(t, 0, st.RemainingAmmo)
	assert.Equal(t, 100.0, h.target.Health())
	assert.Equal(t, 0, h.count(EventFire))

	deadline, pending := h.f.ReloadDeadline()
	require.True(t, pending)
	assert.InDelta(t, 1.5, deadline, 1e-9)

	h.idle(1.5, 0.1)
	st = h.f.State()
	assert.False(t, st.IsReloading)
	assert.Equal(t, 30, st.RemainingAmmo)
	assert.Equal(t, 60, st.ReserveAmmo)
	assert.Equal(t, 60, h.ammo.Count)
	assert.Equal(t, []EventKind{EventReloadStarting, EventReloadComplete}, h.kinds())
}

func TestEmptyReloadUsesEmptyReloadTime(t *testing.T) {
	h := newHarness(t, rifle(), 90)
	h.f.SetAmmo(0)

	require.True(t, h.f.Reload(h.ctx))
	deadline, _ := h.f.ReloadDeadline()
	assert.InDelta(t, 2.0, deadline, 1e-9)
	assert.Equal(t, 1, h.audio.ReloadEmpty.(*fakeCue).plays)
	assert.Equal(t, 0, h.audio.Reload.(*fakeCue).plays)
}

func TestMultiplicativeAttachmentDamage(t *testing.T) {
	h := newHarness(t, rifle(), 90)
	h.manager.Register(
		attachment.New("Muzzle", "Compensator").SetPercent(attachment.Damage, 120),
		attachment.New("Stock", "Heavy").SetPercent(attachment.Damage, 80),
	)
	require.NoError(t, h.manager.SwitchAttachment("Muzzle/Compensator"))
	require.NoError(t, h.manager.SwitchAttachment("Stock/Heavy"))

	require.True(t, h.f.Fire(h.ctx))
	assert.InDelta(t, 80.8, h.target.Health(), 1e-9)

	require.Equal(t, 1, h.count(EventHit))
	for _, e := range h.events {
		if e.Kind == EventHit {
			assert.InDelta(t, 19.2, e.Hit.Damage, 1e-9)
			assert.Equal(t, "dummy", e.Hit.VictimID)
			assert.InDelta(t, 9.0, e.Hit.Distance, 1e-9)
		}
		if e.Kind == EventFire {
			assert.Equal(t, []string{"Muzzle/Compensator", "Stock/Heavy"}, e.Shot.Attachments)
		}
	}
}

func TestProjectileRangeFalloff(t *testing.T) {
	p := rifle()
	p.Mechanism = Projectile
	p.Damage = 40
	p.Prefabs.Projectile = "bullet"
	p.Projectile = ProjectileConfig{LifeTime: 5, DamageCurve: projectile.LinearCurve(1, 0.3)}
	h := newHarness(t, p, 0)

	h.scene.Remove("dummy")
	h.scene.Add(&hit.Collider{ID: "plate", Owner: "dummy", Health: h.target}, physics.Box{Min: core.Vec3{X: -2, Y: -2, Z: 50}, Max: core.Vec3{X: 2, Y: 2, Z: 51}})

	var finished *projectile.Projectile
	h.sim.OnFinished(func(pr *projectile.Projectile) { finished = pr })

	require.True(t, h.f.Fire(h.ctx))
	assert.Equal(t, 1, h.sim.Live())
	for i := 0; i < 100 && finished == nil; i++ {
		h.sim.Step(0.03, h.ctx.Now()+0.03)
		h.ctx.Advance(0.03)
	}

	require.NotNil(t, finished)
	assert.Equal(t, projectile.Hit, finished.Outcome())
	assert.InDelta(t, 50.0, finished.Travelled(), 1e-6)
	assert.InDelta(t, 40*0.65, finished.Result().Damage, 1e-6)
	assert.InDelta(t, 100-40*0.65, h.target.Health(), 1e-6)
}

func TestProjectileSpawnUsesAttachmentModifiers(t *testing.T) {
	p := rifle()
	p.Mechanism = Projectile
	p.Prefabs.Projectile = "bullet"
	h := newHarness(t, p, 0)
	h.motion.velocity = core.Vec3{X: 2}
	h.manager.Register(attachment.New("Barrel", "Long").
		SetPercent(attachment.MuzzleVelocity, 150).
		SetPercent(attachment.Range, 200))
	require.NoError(t, h.manager.SwitchAttachment("Barrel/Long"))

	var spawned *projectile.Projectile
	h.sim.OnFinished(func(pr *projectile.Projectile) { spawned = pr })
	require.True(t, h.f.Fire(h.ctx))
	h.scene.Remove("dummy")
	for i := 0; i < 200 && spawned == nil; i++ {
		h.sim.Step(0.1, float64(i)*0.1)
	}

	require.NotNil(t, spawned)
	ev := spawned.Event()
	assert.InDelta(t, 150.0, ev.InitialVelocity.Z, 1e-9)
	assert.InDelta(t, 3.0, ev.InitialVelocity.X, 1e-9)
	assert.Equal(t, 200.0, spawned.Range())
	assert.Equal(t, projectile.OutOfRange, spawned.Outcome())
}

func TestProjectileWithoutSimulatorIsSkipped(t *testing.T) {
	p := rifle()
	p.Mechanism = Projectile
	h := newHarness(t, p, 0)
	h.f.projectiles = nil

	require.True(t, h.f.Fire(h.ctx))
	h.ctx.Advance(1)
	require.True(t, h.f.Fire(h.ctx))
	assert.Equal(t, 28, h.f.State().RemainingAmmo)
	assert.Equal(t, 1, countLines(h.logs.String(), "no projectile simulator"))
}

func TestFireRateInvariant(t *testing.T) {
	p := rifle()
	p.MagazineCapacity = 500
	h := newHarness(t, p, 0)
	h.manager.Register(attachment.New("Bolt", "Light").SetPercent(attachment.FireRate, 150))
	require.NoError(t, h.manager.SwitchAttachment("Bolt/Light"))

	interval := 60 / (600 * 1.5)
	assert.InDelta(t, interval, h.f.FireInterval(), 1e-12)

	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 400; i++ {
		h.tick(Input{FireHeld: true}, 0.005+rng.Float64()*0.045)
	}

	var times []float64
	for _, e := range h.events {
		if e.Kind == EventFire {
			times = append(times, e.SimTime)
		}
	}
	require.Greater(t, len(times), 50)
	for i := 1; i < len(times); i++ {
		assert.GreaterOrEqual(t, times[i]-times[i-1], interval-1e-9)
	}
}

func TestFireRatePolicies(t *testing.T) {
	fireTimes := func(policy FireRatePolicy) []float64 {
		p := rifle()
		p.MagazineCapacity = 100
		h := newHarness(t, p, 0, withPolicy(policy))
		for i := 0; i < 15; i++ {
			h.tick(Input{FireHeld: true}, 0.07)
		}
		var times []float64
		for _, e := range h.events {
			if e.Kind == EventFire {
				times = append(times, e.SimTime)
			}
		}
		return times
	}
	minGap := func(times []float64) float64 {
		gap := math.Inf(1)
		for i := 1; i < len(times); i++ {
			gap = math.Min(gap, times[i]-times[i-1])
		}
		return gap
	}

	interval := 60 / rifle().FireRate

	absolute := fireTimes(PolicyAbsolute)
	catchUp := fireTimes(PolicyCatchUp)
	assert.Len(t, absolute, 8)
	assert.Greater(t, len(catchUp), len(absolute))

	assert.GreaterOrEqual(t, minGap(absolute), interval-1e-9)
	// catch-up trades the spacing guarantee for the sustained rate
	assert.InDelta(t, 0.07, minGap(catchUp), 1e-9)
	assert.Less(t, minGap(catchUp), interval)
}

func TestAmmoInvariant(t *testing.T) {
	p := rifle()
	p.ShotCount = 3
	p.CanCancelReload = true
	h := newHarness(t, p, 1000)
	rng := rand.New(rand.NewSource(9))

	for i := 0; i < 2000; i++ {
		switch rng.Intn(6) {
		case 0:
			h.f.Fire(h.ctx)
		case 1:
			h.f.Reload(h.ctx)
		case 2:
			h.f.ApplyReload(h.ctx)
		case 3:
			h.f.InsertRounds(h.ctx, rng.Intn(5))
		case 4:
			h.f.CancelReload(h.ctx)
		default:
			h.tick(Input{FireHeld: rng.Intn(2) == 0, Reload: rng.Intn(8) == 0}, rng.Float64()*0.2)
		}
		st := h.f.State()
		require.GreaterOrEqual(t, st.RemainingAmmo, 0)
		require.LessOrEqual(t, st.RemainingAmmo, p.MagazineCapacity)
		require.GreaterOrEqual(t, h.ammo.Count, 0)
	}
}

func TestReloadCompleteness(t *testing.T) {
	cases := []struct {
		name            string
		ammo, reserve   int
		wantAmmo, wantK int
	}{
		{"partial reserve", 12, 10, 22, 0},
		{"plenty reserve", 5, 90, 30, 65},
		{"exact fill", 10, 20, 30, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, rifle(), tc.reserve)
			h.f.SetAmmo(tc.ammo)

			require.True(t, h.f.Reload(h.ctx))
			h.idle(2.5, 0.1)

			st := h.f.State()
			assert.False(t, st.IsReloading)
			assert.Equal(t, tc.wantAmmo, st.RemainingAmmo)
			assert.Equal(t, tc.wantK, h.ammo.Count)
		})
	}
}

func TestReloadRejected(t *testing.T) {
	t.Run("full magazine", func(t *testing.T) {
		h := newHarness(t, rifle(), 90)
		assert.False(t, h.f.Reload(h.ctx))
		assert.False(t, h.f.State().IsReloading)
	})
	t.Run("empty reserve", func(t *testing.T) {
		h := newHarness(t, rifle(), 0)
		h.f.SetAmmo(3)
		assert.False(t, h.f.Reload(h.ctx))
		assert.Equal(t, 3, h.f.State().RemainingAmmo)
	})
	t.Run("already reloading", func(t *testing.T) {
		h := newHarness(t, rifle(), 90)
		h.f.SetAmmo(3)
		require.True(t, h.f.Reload(h.ctx))
		first, _ := h.f.ReloadDeadline()
		h.ctx.Advance(0.5)
		assert.False(t, h.f.Reload(h.ctx))
		second, _ := h.f.ReloadDeadline()
		assert.Equal(t, first, second)
		assert.Equal(t, 1, h.count(EventReloadStarting))
	})
}

func TestFiringCancelsReloadWhenAllowed(t *testing.T) {
	p := rifle()
	p.CanCancelReload = true
	h := newHarness(t, p, 90)
	h.f.SetAmmo(10)

	require.True(t, h.f.Reload(h.ctx))
	h.tick(Input{}, 0.5)
	h.tick(Input{FirePressed: true}, 0.1)

	st := h.f.State()
	assert.False(t, st.IsReloading)
	assert.Equal(t, 9, st.RemainingAmmo)
	assert.Equal(t, 90, h.ammo.Count)
	_, pending := h.f.ReloadDeadline()
	assert.False(t, pending)
	assert.Equal(t, 1, h.count(EventReloadCancelled))
	assert.Equal(t, 1, h.audio.Reload.(*fakeCue).stops)

	// the cancelled deadline must not fire later
	h.idle(3, 0.1)
	assert.Equal(t, 9, h.f.State().RemainingAmmo)
	assert.Equal(t, 0, h.count(EventReloadComplete))
}

func TestFiringDuringReloadRejectedWhenNotCancellable(t *testing.T) {
	h := newHarness(t, rifle(), 90)
	h.f.SetAmmo(10)

	require.True(t, h.f.Reload(h.ctx))
	assert.False(t, h.f.State().ReadyToFire)
	h.tick(Input{FireHeld: true}, 0.1)

	assert.True(t, h.f.State().IsReloading)
	assert.Equal(t, 10, h.f.State().RemainingAmmo)
	assert.Equal(t, 100.0, h.target.Health())
}

func TestScriptedReload(t *testing.T) {
	p := rifle()
	p.ReloadMethod = ScriptedReload
	p.ReloadAnimation = "Reload Mag"
	h := newHarness(t, p, 90)
	h.f.SetAmmo(4)

	require.True(t, h.f.Reload(h.ctx))
	assert.Contains(t, h.animator.crossFades, "Reload Mag")
	assert.True(t, h.animator.bools[ParamIsReloading])
	_, pending := h.f.ReloadDeadline()
	assert.False(t, pending)

	h.idle(5, 0.1)
	assert.True(t, h.f.State().IsReloading)
	assert.Equal(t, 4, h.f.State().RemainingAmmo)

	assert.Equal(t, 26, h.f.ApplyReload(h.ctx))
	assert.False(t, h.f.State().IsReloading)
	assert.Equal(t, 30, h.f.State().RemainingAmmo)
	assert.Equal(t, 64, h.ammo.Count)
	assert.False(t, h.animator.bools[ParamIsReloading])
}

func TestInsertRoundsShellByShell(t *testing.T) {
	p := rifle()
	p.Name = "Shotgun"
	p.MagazineCapacity = 6
	p.ReloadMethod = ScriptedReload
	h := newHarness(t, p, 4)
	h.f.SetAmmo(1)

	require.True(t, h.f.Reload(h.ctx))
	assert.Equal(t, 1, h.f.InsertRounds(h.ctx, 1))
	assert.Equal(t, 1, h.f.InsertRounds(h.ctx, 1))
	assert.True(t, h.f.State().IsReloading)
	assert.Equal(t, 3, h.f.State().RemainingAmmo)

	// reserve runs out, completing the reload
	assert.Equal(t, 2, h.f.InsertRounds(h.ctx, 5))
	assert.False(t, h.f.State().IsReloading)
	assert.Equal(t, 5, h.f.State().RemainingAmmo)
	assert.Equal(t, 0, h.ammo.Count)
	assert.Equal(t, 0, h.f.InsertRounds(h.ctx, 1))

	var complete *core.ReloadEvent
	for _, e := range h.events {
		if e.Kind == EventReloadComplete {
			complete = e.Reload
		}
	}
	require.NotNil(t, complete)
	assert.Equal(t, 1, complete.AmmoBefore)
	assert.Equal(t, 5, complete.AmmoAfter)
	assert.Equal(t, core.ReloadCompleted, complete.Phase)
}

func TestFinishReloadEndsPartialScriptedReload(t *testing.T) {
	p := rifle()
	p.ReloadMethod = ScriptedReload
	h := newHarness(t, p, 90)
	h.f.SetAmmo(0)

	require.True(t, h.f.Reload(h.ctx))
	h.f.InsertRounds(h.ctx, 2)
	assert.True(t, h.f.FinishReload(h.ctx))
	assert.Equal(t, 2, h.f.State().RemainingAmmo)
	assert.False(t, h.f.FinishReload(h.ctx))
}

func TestMultiShotBackToBack(t *testing.T) {
	p := rifle()
	p.ShotCount = 3
	h := newHarness(t, p, 0)

	require.True(t, h.f.Fire(h.ctx))
	assert.Equal(t, 27, h.f.State().RemainingAmmo)
	assert.Equal(t, 3, h.f.State().ShotsFired)
	assert.Equal(t, 40.0, h.target.Health())
	assert.Equal(t, 3, h.count(EventFire))
	assert.Equal(t, 3, h.count(EventFireDone))
	assert.Equal(t, 3, h.motion.kicks)
}

func TestMultiShotStopsWhenMagazineRunsDry(t *testing.T) {
	p := rifle()
	p.ShotCount = 5
	p.AutomaticReload = false
	h := newHarness(t, p, 0)
	h.f.SetAmmo(2)

	require.True(t, h.f.Fire(h.ctx))
	assert.Equal(t, 0, h.f.State().RemainingAmmo)
	assert.Equal(t, 2, h.count(EventFire))
	assert.True(t, h.f.State().IsOutOfAmmo)
}

func TestMultiShotWithDelay(t *testing.T) {
	p := rifle()
	p.ShotCount = 3
	p.ShotDelay = 0.05
	p.FireMode = SemiAuto
	h := newHarness(t, p, 0)

	h.tick(Input{FirePressed: true}, 0.01)
	assert.Equal(t, 1, h.count(EventFire))
	assert.True(t, h.f.State().IsFiring)

	// a second pull during the sequence is not admitted
	h.tick(Input{FirePressed: true}, 0.04)
	h.idle(0.2, 0.01)
	assert.Equal(t, 3, h.count(EventFire))
	assert.Equal(t, 27, h.f.State().RemainingAmmo)

	var times []float64
	var dirs []core.Vec3
	for _, e := range h.events {
		if e.Kind == EventFire {
			times = append(times, e.SimTime)
			dirs = append(dirs, e.Shot.Direction)
		}
	}
	assert.InDelta(t, 0.05, times[1]-times[0], 0.011)
	assert.InDelta(t, 0.05, times[2]-times[1], 0.011)
	assert.Equal(t, dirs[0], dirs[2])
}

func TestReloadWaitsForMultiShotSequence(t *testing.T) {
	p := rifle()
	p.ShotCount = 3
	p.ShotDelay = 0.1
	p.FireMode = SemiAuto
	p.CanCancelReload = false
	h := newHarness(t, p, 90)

	h.tick(Input{FirePressed: true}, 0.01)
	require.Equal(t, 1, h.count(EventFire))

	assert.False(t, h.f.Reload(h.ctx))
	h.tick(Input{Reload: true}, 0.01)
	assert.False(t, h.f.State().IsReloading)
	assert.False(t, h.f.State().ReadyToReload)

	h.idle(0.3, 0.01)
	assert.Equal(t, 3, h.count(EventFire))
	assert.Equal(t, 0, h.count(EventReloadStarting))
	assert.Equal(t, 27, h.f.State().RemainingAmmo)

	require.True(t, h.f.Reload(h.ctx))
	for _, e := range h.events {
		if e.Kind == EventReloadStarting {
			assert.Equal(t, 27, e.Reload.AmmoBefore)
		}
	}
	firesBefore := h.count(EventFire)
	h.idle(0.5, 0.01)
	assert.Equal(t, firesBefore, h.count(EventFire))
}

func TestPreFireEventPrecedesMutation(t *testing.T) {
	h := newHarness(t, rifle(), 90)
	var ammoAtFire, ammoAtDone int
	var healthAtFire float64
	h.f.AddListener(ListenerFunc(func(e Event) {
		switch e.Kind {
		case EventFire:
			ammoAtFire = e.Firearm.State().RemainingAmmo
			healthAtFire = h.target.Health()
		case EventFireDone:
			ammoAtDone = e.Firearm.State().RemainingAmmo
		}
	}))

	require.True(t, h.f.Fire(h.ctx))
	assert.Equal(t, 30, ammoAtFire)
	assert.Equal(t, 100.0, healthAtFire)
	assert.Equal(t, 29, ammoAtDone)
	assert.Equal(t, []EventKind{EventFire, EventHit, EventFireDone}, h.kinds())
}

func TestAuthorityVetoSkipsLocalEffects(t *testing.T) {
	var seen []core.ShotEvent
	veto := AuthorityFunc(func(shot core.ShotEvent) bool {
		seen = append(seen, shot)
		return false
	})
	h := newHarness(t, rifle(), 90, withAuthority(veto))

	require.True(t, h.f.Fire(h.ctx))
	assert.Len(t, seen, 1)
	assert.Equal(t, 30, h.f.State().RemainingAmmo)
	assert.Equal(t, 100.0, h.target.Health())
	assert.Equal(t, 1, h.motion.kicks)
	assert.Equal(t, 1, h.effects.Count(fx.KindMuzzleFlash))
}

func TestReadyToFireGuards(t *testing.T) {
	t.Run("paused", func(t *testing.T) {
		h := newHarness(t, rifle(), 90)
		h.ctx.SetPaused(true)
		h.tick(Input{FireHeld: true}, 0.1)
		assert.False(t, h.f.State().ReadyToFire)
		assert.False(t, h.f.Fire(h.ctx))
		assert.Equal(t, 30, h.f.State().RemainingAmmo)
	})
	t.Run("inactive", func(t *testing.T) {
		h := newHarness(t, rifle(), 90)
		h.ctx.SetActive(false)
		assert.False(t, h.f.Fire(h.ctx))
	})
	t.Run("restricted animation", func(t *testing.T) {
		p := rifle()
		p.RestrictedAnimations = []string{"Inspect"}
		h := newHarness(t, p, 90)
		h.animator.playing["Inspect"] = true
		assert.False(t, h.f.Fire(h.ctx))
		h.animator.playing["Inspect"] = false
		assert.True(t, h.f.Fire(h.ctx))
	})
	t.Run("rotation not neutral", func(t *testing.T) {
		h := newHarness(t, rifle(), 90)
		h.animator.notNeutral = true
		assert.False(t, h.f.Fire(h.ctx))
	})
	t.Run("unequipped", func(t *testing.T) {
		h := newHarness(t, rifle(), 90)
		h.f.Unequip(h.ctx)
		assert.False(t, h.f.Fire(h.ctx))
		h.tick(Input{FireHeld: true}, 0.1)
		assert.Equal(t, 30, h.f.State().RemainingAmmo)
	})
	t.Run("empty magazine without auto reload", func(t *testing.T) {
		p := rifle()
		p.AutomaticReload = false
		h := newHarness(t, p, 90)
		h.f.SetAmmo(0)
		h.tick(Input{FirePressed: true}, 0.1)
		assert.False(t, h.f.State().IsReloading)
		assert.Equal(t, 0, h.count(EventFire))
	})
}

func TestSemiAutoNeedsPress(t *testing.T) {
	p := rifle()
	p.FireMode = SemiAuto
	h := newHarness(t, p, 90)

	for i := 0; i < 10; i++ {
		h.tick(Input{FireHeld: true}, 0.2)
	}
	assert.Equal(t, 0, h.count(EventFire))

	h.tick(Input{FireHeld: true, FirePressed: true}, 0.2)
	assert.Equal(t, 1, h.count(EventFire))
}

func TestSwitchFireMode(t *testing.T) {
	p := rifle()
	p.FireMode = Selective
	h := newHarness(t, p, 90)
	assert.Equal(t, Auto, h.f.State().FireMode)

	h.tick(Input{SwitchFireMode: true}, 0.1)
	assert.Equal(t, SemiAuto, h.f.State().FireMode)
	h.tick(Input{SwitchFireMode: true}, 0.1)
	assert.Equal(t, Auto, h.f.State().FireMode)
	assert.Equal(t, 2, h.count(EventFireModeChanged))

	fixed := newHarness(t, rifle(), 90)
	assert.False(t, fixed.f.SwitchFireMode(fixed.ctx))
}

func TestDropRequested(t *testing.T) {
	h := newHarness(t, rifle(), 90)
	h.tick(Input{Drop: true}, 0.1)
	assert.Equal(t, []EventKind{EventDropRequested}, h.kinds())
}

func TestRecoilScaledByAttachments(t *testing.T) {
	h := newHarness(t, rifle(), 90)
	h.manager.Register(attachment.New("Stock", "Heavy").
		SetPercent(attachment.Recoil, 50).
		SetPercent(attachment.VisualRecoil, 200))
	require.NoError(t, h.manager.SwitchAttachment("Stock/Heavy"))

	require.True(t, h.f.Fire(h.ctx))
	assert.InDelta(t, 1.0, h.motion.pitch, 1e-12)
	assert.LessOrEqual(t, h.motion.yaw, 0.5)
	assert.GreaterOrEqual(t, h.motion.yaw, -0.5)
	assert.InDelta(t, 6.0, h.animator.floats[ParamRecoil], 1e-12)
}

func TestCasingEjection(t *testing.T) {
	h := newHarness(t, rifle(), 90)
	h.motion.velocity = core.Vec3{Z: 3}

	require.True(t, h.f.Fire(h.ctx))
	var casing *fx.Effect
	for _, e := range h.effects.Effects() {
		if e.Kind == fx.KindCasing {
			casing = &e
		}
	}
	require.NotNil(t, casing)
	assert.Equal(t, "casing", casing.Prefab)
	assert.GreaterOrEqual(t, casing.Velocity.X, 4*0.6)
	assert.LessOrEqual(t, casing.Velocity.X, 4.0)
	assert.Equal(t, 3.0, casing.Velocity.Z)
}

func TestHitscanEffects(t *testing.T) {
	p := rifle()
	p.Prefabs.Tracer = "tracer"
	h := newHarness(t, p, 90)

	require.True(t, h.f.Fire(h.ctx))
	assert.Equal(t, 1, h.effects.Count(fx.KindMuzzleFlash))
	assert.Equal(t, 1, h.effects.Count(fx.KindTracer))
	assert.Equal(t, 1, h.effects.Count(fx.KindDecal))
	assert.Equal(t, 1, h.audio.Fire.(*fakeCue).plays)
}

func TestRangeModifierLimitsHitscan(t *testing.T) {
	p := rifle()
	p.Range = 8
	h := newHarness(t, p, 90)

	require.True(t, h.f.Fire(h.ctx))
	assert.Equal(t, 100.0, h.target.Health())

	h.manager.Register(attachment.New("Barrel", "Long").SetPercent(attachment.Range, 200))
	require.NoError(t, h.manager.SwitchAttachment("Barrel/Long"))
	h.ctx.Advance(1)
	require.True(t, h.f.Fire(h.ctx))
	assert.Equal(t, 80.0, h.target.Health())
}

func TestMissingMuzzleFallsBackToSelf(t *testing.T) {
	h := newHarness(t, rifle(), 90, withoutMuzzle())

	require.True(t, h.f.Fire(h.ctx))
	h.ctx.Advance(1)
	require.True(t, h.f.Fire(h.ctx))
	assert.Equal(t, 60.0, h.target.Health())
	assert.Equal(t, 1, countLines(h.logs.String(), "Muzzle transform is not assigned"))
}

func TestNilPresetUsesDefault(t *testing.T) {
	h := newHarness(t, nil, 0)

	assert.Equal(t, "Default", h.f.Preset().Name)
	assert.Contains(t, h.logs.String(), "Firearm has no preset")
	assert.Contains(t, h.logs.String(), "Ammo profile not found")
	assert.Equal(t, 0, h.f.AmmoProfile().Count)
	assert.True(t, h.f.Fire(h.ctx))
	assert.False(t, h.f.State().ReadyToReload)
}

func TestSprayRampAndRecovery(t *testing.T) {
	p := rifle()
	p.MagazineCapacity = 200
	pattern := spray.NewPattern("hip")
	pattern.RampUpTime = 1
	pattern.RecoveryTime = 0.5
	pattern.Points = []spray.Point{{UpDown: 0.1}, {UpDown: 0.2}, {UpDown: 0.3}, {UpDown: 0.4}}
	p.HipPattern = pattern
	h := newHarness(t, p, 0)

	for i := 0; i < 5; i++ {
		h.tick(Input{FireHeld: true}, 0.1)
	}
	st := h.f.State()
	assert.InDelta(t, 0.5, st.SprayMultiplier, 1e-9)
	assert.Equal(t, 3, st.SprayPointIndex)

	// moving shooters do not recover
	h.motion.velocity = core.Vec3{X: 3}
	h.tick(Input{}, 0.1)
	assert.InDelta(t, 0.5, h.f.State().SprayMultiplier, 1e-9)

	h.motion.velocity = core.Zero
	h.tick(Input{}, 0.1)
	st = h.f.State()
	assert.InDelta(t, 0.3, st.SprayMultiplier, 1e-9)
	assert.Equal(t, 1, st.SprayPointIndex)
}

func TestVisibleSprayAmount(t *testing.T) {
	h := newHarness(t, rifle(), 90)

	h.tick(Input{}, 0.1)
	assert.InDelta(t, 1.0, h.f.State().SprayAmount, 1e-12)

	h.motion.aimProgress = 0.5
	h.tick(Input{}, 0.1)
	assert.InDelta(t, 0.5, h.f.State().SprayAmount, 1e-12)

	h.motion.aimProgress = 0
	h.motion.airborne = true
	h.tick(Input{}, 0.1)
	assert.InDelta(t, 4.0, h.f.State().SprayAmount, 1e-12)

	h.motion.airborne = false
	h.motion.velocity = core.Vec3{Z: 5}
	h.manager.Register(attachment.New("Laser", "Red").SetPercent(attachment.Spread, 50))
	require.NoError(t, h.manager.SwitchAttachment("Laser/Red"))
	h.tick(Input{}, 0.1)
	assert.InDelta(t, 1.0, h.f.State().SprayAmount, 1e-12)
}

func TestAimPatternAndMovementSpeed(t *testing.T) {
	p := rifle()
	hip := spray.NewPattern("hip")
	hip.MaxAmount = 90
	hip.PassiveMultiplier = 1
	hip.Points = []spray.Point{{UpDown: 1}}
	aim := spray.NewPattern("aim")
	aim.Points = []spray.Point{{UpDown: 0}}
	aim.PassiveMultiplier = 1
	p.HipPattern = hip
	p.AimPattern = aim
	h := newHarness(t, p, 90)
	h.manager.Register(attachment.New("Sight", "Holo").SetPercent(attachment.AimSpeed, 150))
	require.NoError(t, h.manager.SwitchAttachment("Sight/Holo"))

	require.True(t, h.f.Fire(h.ctx))
	hipDir := h.events[0].Shot.Direction
	assert.Greater(t, hipDir.Y, 0.5)

	h.motion.aiming = true
	h.motion.aimProgress = 1
	h.tick(Input{}, 0.5)
	h.events = nil
	require.True(t, h.f.Fire(h.ctx))
	assert.InDelta(t, 0.0, h.events[0].Shot.Direction.Y, 1e-12)

	assert.InDelta(t, 0.5, h.motion.speedMultiplier, 1e-12)
	assert.InDelta(t, 3.0, h.f.AimSpeed(), 1e-12)
	assert.InDelta(t, 3.0, h.animator.floats[ParamAimSpeed], 1e-12)
}

func TestUnequipCancelsReloadKeepsAmmo(t *testing.T) {
	h := newHarness(t, rifle(), 90)
	h.f.SetAmmo(7)
	require.True(t, h.f.Reload(h.ctx))

	h.f.Unequip(h.ctx)
	assert.False(t, h.f.Equipped())
	assert.False(t, h.f.State().IsReloading)
	assert.Equal(t, 7, h.f.State().RemainingAmmo)
	assert.Equal(t, 1, h.count(EventReloadCancelled))

	h.f.Equip(h.ctx)
	assert.True(t, h.f.State().ReadyToFire)
}

func countLines(logs, substr string) int {
	n := 0
	for _, line := range strings.Split(logs, "\n") {
		if strings.Contains(line, substr) {
			n++
		}
	}
	return n
}

package firearm

import (
	"context"

	"github.com/fpsframework/firearm/pkg/core"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Reload starts a reload. It returns false when the magazine is full, the
// reserve is empty, a reload is already running or a multi-shot sequence is
// still firing.
func (f *Firearm) Reload(ctx Clock) bool {
	f.updateReadiness(ctx)
	if !f.equipped || !f.state.ReadyToReload {
		return false
	}
	if ctx.Paused() || !ctx.Active() {
		return false
	}

	f.state.IsReloading = true
	f.reloadEmpty = f.state.RemainingAmmo == 0
	f.reloadStartAmmo = f.state.RemainingAmmo
	f.animator.SetBool(ParamIsReloading, true)
	f.emitReload(ctx, EventReloadStarting, core.ReloadStarted, f.state.RemainingAmmo)

	switch f.preset.ReloadMethod {
	case ScriptedReload:
		state := f.preset.ReloadAnimation
		if state == "" {
			state = "Reload"
		}
		f.animator.CrossFade(state, 0.1)
	default:
		duration := f.preset.ReloadTime
		cue := f.audio.Reload
		if f.reloadEmpty {
			if f.preset.EmptyReloadTime > 0 {
				duration = f.preset.EmptyReloadTime
			}
			if f.audio.ReloadEmpty != nil {
				cue = f.audio.ReloadEmpty
			}
		}
		f.reloadPending = true
		f.reloadDeadline = ctx.Now() + duration
		if cue != nil {
			cue.Play(true)
		} else {
			f.errorOnce("audio.reload", "Reload audio cue is not assigned")
		}
	}

	f.logger.Debug("Reload started", "method", f.preset.ReloadMethod.String(),
		"ammo", f.state.RemainingAmmo, "reserve", f.ammo.Count)
	f.updateReadiness(ctx)
	f.syncState()
	return true
}

// updateReload applies a Default reload whose deadline has passed.
func (f *Firearm) updateReload(ctx Clock) {
	if !f.reloadPending || ctx.Now()+timeEpsilon < f.reloadDeadline {
		return
	}
	f.ApplyReload(ctx)
}

// ApplyReload transfers min(reserve, capacity-current) rounds and completes
// any running reload. Scripted reloads call it from their animation event.
// It returns the number of rounds transferred.
func (f *Firearm) ApplyReload(ctx Clock) int {
	moved := f.transfer(f.preset.MagazineCapacity - f.state.RemainingAmmo)
	f.reloadPending = false
	if f.state.IsReloading {
		f.finishReload(ctx)
	}
	f.updateReadiness(ctx)
	f.syncState()
	return moved
}

// InsertRounds transfers up to n rounds during a scripted reload, for
// firearms loaded one round at a time. The reload completes on its own once
// the magazine is full or the reserve is empty.
func (f *Firearm) InsertRounds(ctx Clock, n int) int {
	if !f.state.IsReloading || n <= 0 {
		return 0
	}
	moved := f.transfer(n)
	f.animator.SetFloat(ParamAmmo, float64(f.state.RemainingAmmo))
	if f.state.RemainingAmmo >= f.preset.MagazineCapacity || f.ammo.Count <= 0 {
		f.finishReload(ctx)
	}
	f.updateReadiness(ctx)
	f.syncState()
	return moved
}

// FinishReload ends a running reload without transferring more rounds.
func (f *Firearm) FinishReload(ctx Clock) bool {
	if !f.state.IsReloading {
		return false
	}
	f.reloadPending = false
	f.finishReload(ctx)
	f.updateReadiness(ctx)
	f.syncState()
	return true
}

// CancelReload aborts a running reload without transferring ammo.
func (f *Firearm) CancelReload(ctx Clock) bool {
	if !f.state.IsReloading {
		return false
	}
	f.reloadPending = false
	f.reloadDeadline = 0
	f.state.IsReloading = false
	f.animator.SetBool(ParamIsReloading, false)
	if f.audio.Reload != nil {
		f.audio.Reload.Stop()
	}
	if f.audio.ReloadEmpty != nil {
		f.audio.ReloadEmpty.Stop()
	}
	f.emitReload(ctx, EventReloadCancelled, core.ReloadCancelled, f.reloadStartAmmo)
	f.logger.Debug("Reload cancelled", "ammo", f.state.RemainingAmmo)
	f.updateReadiness(ctx)
	f.syncState()
	return true
}

// ReloadDeadline returns the completion time of a pending Default reload.
func (f *Firearm) ReloadDeadline() (float64, bool) {
	return f.reloadDeadline, f.reloadPending
}

func (f *Firearm) transfer(want int) int {
	space := f.preset.MagazineCapacity - f.state.RemainingAmmo
	n := min(want, space, f.ammo.Count)
	if n <= 0 {
		return 0
	}
	f.state.RemainingAmmo += n
	f.ammo.Count -= n
	return n
}

func (f *Firearm) finishReload(ctx Clock) {
	f.state.IsReloading = false
	f.animator.SetBool(ParamIsReloading, false)
	f.animator.SetFloat(ParamAmmo, float64(f.state.RemainingAmmo))
	f.syncState()
	f.emitReload(ctx, EventReloadComplete, core.ReloadCompleted, f.reloadStartAmmo)
	f.logger.Debug("Reload complete", "ammo", f.state.RemainingAmmo, "reserve", f.ammo.Count)
}

func (f *Firearm) emitReload(ctx Clock, kind EventKind, phase core.ReloadPhase, before int) {
	ev := &core.ReloadEvent{
		FirearmID:    f.id,
		ShooterID:    f.shooter.ID,
		Phase:        phase,
		Method:       f.preset.ReloadMethod.String(),
		AmmoBefore:   before,
		AmmoAfter:    f.state.RemainingAmmo,
		ReserveAfter: f.ammo.Count,
	}
	if ctx != nil {
		ev.SimTime = ctx.Now()
		ev.Tick = ctx.Tick()
		ev.Time = ctx.WallTime(ev.SimTime)
	}
	f.metrics.reloads.Add(context.Background(), 1, metric.WithAttributes(attribute.String("phase", string(phase))))
	f.emit(ctx, Event{Kind: kind, Reload: ev})
}

package convert

import (
	"encoding/json"

	"github.com/fpsframework/firearm/internal/geo"
	"github.com/fpsframework/firearm/internal/model"
	"github.com/fpsframework/firearm/pkg/core"
)

// SessionToCore converts a GORM Session to a core.Session.
func SessionToCore(s model.Session) core.Session {
	return core.Session{
		ID:        s.ID,
		Name:      s.Name,
		StartTime: s.StartTime,
		TickRate:  s.TickRate,
		Seed:      s.Seed,
		Tag:       s.Tag,
	}
}

// ShotToCore converts a GORM Shot to a core.ShotEvent. A malformed direction
// yields the zero vector.
func ShotToCore(s model.Shot) core.ShotEvent {
	var attachments []string
	if len(s.Attachments) > 0 {
		_ = json.Unmarshal(s.Attachments, &attachments)
	}
	dir, _ := geo.Vec3FromString(s.Direction)

	return core.ShotEvent{
		SessionID:     s.SessionID,
		FirearmID:     s.FirearmID,
		ShooterID:     s.ShooterID,
		Time:          s.Time,
		SimTime:       s.SimTime,
		Tick:          s.Tick,
		Preset:        s.Preset,
		FireMode:      s.FireMode,
		Mechanism:     s.Mechanism,
		ShotIndex:     s.ShotIndex,
		Origin:        geo.Vec3FromPoint(s.Origin),
		Direction:     dir,
		AmmoRemaining: s.AmmoRemaining,
		Attachments:   attachments,
	}
}

// HitToCore converts a GORM Hit to a core.HitEvent.
func HitToCore(h model.Hit) core.HitEvent {
	var extra map[string]any
	if len(h.ExtraData) > 0 {
		_ = json.Unmarshal(h.ExtraData, &extra)
	}
	if len(extra) == 0 {
		extra = nil
	}

	return core.HitEvent{
		ID:           h.ID,
		SessionID:    h.SessionID,
		Time:         h.Time,
		SimTime:      h.SimTime,
		Tick:         h.Tick,
		FirearmID:    h.FirearmID,
		ShooterID:    h.ShooterID,
		VictimID:     h.VictimID,
		ColliderID:   h.ColliderID,
		Mechanism:    h.Mechanism,
		Position:     geo.Vec3FromPoint(h.Position),
		Distance:     h.Distance,
		Damage:       h.Damage,
		HealthBefore: h.HealthBefore,
		HealthAfter:  h.HealthAfter,
		Killed:       h.Killed,
		EventText:    h.EventText,
		ExtraData:    extra,
	}
}

// ReloadToCore converts a GORM Reload to a core.ReloadEvent.
func ReloadToCore(r model.Reload) core.ReloadEvent {
	return core.ReloadEvent{
		ID:           r.ID,
		SessionID:    r.SessionID,
		Time:         r.Time,
		SimTime:      r.SimTime,
		Tick:         r.Tick,
		FirearmID:    r.FirearmID,
		ShooterID:    r.ShooterID,
		Phase:        core.ReloadPhase(r.Phase),
		Method:       r.Method,
		AmmoBefore:   r.AmmoBefore,
		AmmoAfter:    r.AmmoAfter,
		ReserveAfter: r.ReserveAfter,
	}
}

// ProjectileFlightToCore converts a GORM ProjectileFlight to a
// core.ProjectileEvent, expanding the stored line back into samples.
func ProjectileFlightToCore(p model.ProjectileFlight) core.ProjectileEvent {
	result := core.ProjectileEvent{
		ID:           p.ID,
		SessionID:    p.SessionID,
		FirearmID:    p.FirearmID,
		ShooterID:    p.ShooterID,
		SpawnTime:    p.Time,
		SpawnSimTime: p.SpawnSimTime,
		Outcome:      p.Outcome,
	}
	result.InitialVelocity, _ = geo.Vec3FromString(p.InitialVelocity)

	if !p.Positions.IsEmpty() {
		if ls, ok := p.Positions.AsLineString(); ok {
			result.Trajectory = geo.LineStringToTrajectory(ls)
		}
	}

	if p.HitSimTime.Valid {
		result.Hit = &core.ProjectileHit{
			SimTime:    p.HitSimTime.Float64,
			Position:   geo.Vec3FromPoint(p.HitPosition),
			VictimID:   p.VictimID,
			ColliderID: p.ColliderID,
			Damage:     p.Damage,
			Travelled:  p.Travelled,
		}
	}

	return result
}

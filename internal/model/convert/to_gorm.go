// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"database/sql"
	"encoding/json"

	"github.com/fpsframework/firearm/internal/geo"
	"github.com/fpsframework/firearm/internal/model"
	"github.com/fpsframework/firearm/pkg/core"
	"gorm.io/datatypes"
)

// stringsToJSON converts a []string to datatypes.JSON for DB storage.
func stringsToJSON(values []string) datatypes.JSON {
	if len(values) == 0 {
		return datatypes.JSON("[]")
	}
	data, _ := json.Marshal(values)
	return datatypes.JSON(data)
}

// mapToJSON converts free-form event data to datatypes.JSON. Values that do
// not marshal are stored as an empty object.
func mapToJSON(values map[string]any) datatypes.JSON {
	if len(values) == 0 {
		return datatypes.JSON("{}")
	}
	data, err := json.Marshal(values)
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(data)
}

// CoreToSession converts a core.Session to a GORM model.Session.
func CoreToSession(s core.Session) model.Session {
	return model.Session{
		ID:        s.ID,
		Name:      s.Name,
		StartTime: s.StartTime,
		TickRate:  s.TickRate,
		Seed:      s.Seed,
		Tag:       s.Tag,
	}
}

// CoreToShot converts a core.ShotEvent to a GORM model.Shot.
func CoreToShot(e core.ShotEvent) model.Shot {
	return model.Shot{
		Time:          e.Time,
		SessionID:     e.SessionID,
		SimTime:       e.SimTime,
		Tick:          e.Tick,
		FirearmID:     e.FirearmID,
		ShooterID:     e.ShooterID,
		Preset:        e.Preset,
		FireMode:      e.FireMode,
		Mechanism:     e.Mechanism,
		ShotIndex:     e.ShotIndex,
		Origin:        geo.PointFromVec3(e.Origin),
		Direction:     geo.Vec3String(e.Direction),
		AmmoRemaining: e.AmmoRemaining,
		Attachments:   stringsToJSON(e.Attachments),
	}
}

// CoreToHit converts a core.HitEvent to a GORM model.Hit.
func CoreToHit(e core.HitEvent) model.Hit {
	return model.Hit{
		ID:           e.ID,
		Time:         e.Time,
		SessionID:    e.SessionID,
		SimTime:      e.SimTime,
		Tick:         e.Tick,
		FirearmID:    e.FirearmID,
		ShooterID:    e.ShooterID,
		VictimID:     e.VictimID,
		ColliderID:   e.ColliderID,
		Mechanism:    e.Mechanism,
		Position:     geo.PointFromVec3(e.Position),
		Distance:     e.Distance,
		Damage:       e.Damage,
		HealthBefore: e.HealthBefore,
		HealthAfter:  e.HealthAfter,
		Killed:       e.Killed,
		EventText:    e.EventText,
		ExtraData:    mapToJSON(e.ExtraData),
	}
}

// CoreToReload converts a core.ReloadEvent to a GORM model.Reload.
func CoreToReload(e core.ReloadEvent) model.Reload {
	return model.Reload{
		ID:           e.ID,
		Time:         e.Time,
		SessionID:    e.SessionID,
		SimTime:      e.SimTime,
		Tick:         e.Tick,
		FirearmID:    e.FirearmID,
		ShooterID:    e.ShooterID,
		Phase:        string(e.Phase),
		Method:       e.Method,
		AmmoBefore:   e.AmmoBefore,
		AmmoAfter:    e.AmmoAfter,
		ReserveAfter: e.ReserveAfter,
	}
}

// CoreToProjectileFlight converts a core.ProjectileEvent to a GORM
// model.ProjectileFlight. Trajectories with fewer than two distinct samples
// are stored without a line.
func CoreToProjectileFlight(e core.ProjectileEvent) model.ProjectileFlight {
	result := model.ProjectileFlight{
		ID:              e.ID,
		Time:            e.SpawnTime,
		SessionID:       e.SessionID,
		SpawnSimTime:    e.SpawnSimTime,
		FirearmID:       e.FirearmID,
		ShooterID:       e.ShooterID,
		InitialVelocity: geo.Vec3String(e.InitialVelocity),
		Outcome:         e.Outcome,
	}

	if ls, err := geo.TrajectoryToLineString(e.Trajectory); err == nil {
		result.Positions = ls.AsGeometry()
	}

	if e.Hit != nil {
		result.HitSimTime = sql.NullFloat64{Float64: e.Hit.SimTime, Valid: true}
		result.HitPosition = geo.PointFromVec3(e.Hit.Position)
		result.VictimID = e.Hit.VictimID
		result.ColliderID = e.Hit.ColliderID
		result.Damage = e.Hit.Damage
		result.Travelled = e.Hit.Travelled
	}

	return result
}

package v1

import (
	"sort"
	"time"

	"github.com/fpsframework/firearm/pkg/core"
)

// SessionData contains all the data needed to build an export
type SessionData struct {
	Session     *core.Session
	Firearms    []*FirearmRecord // in first-seen order
	Hits        []core.HitEvent
	Projectiles []core.ProjectileEvent
	EndSimTime  float64
}

// Build creates an Export from the session data
func Build(data *SessionData) Export {
	export := Export{
		Version:     FormatVersion,
		Duration:    data.EndSimTime,
		Firearms:    make([]Firearm, 0, len(data.Firearms)),
		Events:      make([][]any, 0, len(data.Hits)),
		Projectiles: make([]Projectile, 0, len(data.Projectiles)),
	}
	if s := data.Session; s != nil {
		export.SessionName = s.Name
		export.Tags = s.Tag
		export.StartTime = s.StartTime.UTC().Format(time.RFC3339)
		export.TickRate = s.TickRate
		export.Seed = s.Seed
	}

	for _, record := range data.Firearms {
		fa := Firearm{
			ID:        record.FirearmID,
			ShooterID: record.ShooterID,
			Preset:    record.Preset,
			Shots:     make([][]any, 0, len(record.Shots)),
			Reloads:   make([][]any, 0, len(record.Reloads)),
		}

		// [tick, simTime, shotIndex, [ox, oy, oz], [dx, dy, dz], ammoRemaining, fireMode]
		for _, shot := range record.Shots {
			fa.Shots = append(fa.Shots, []any{
				shot.Tick,
				shot.SimTime,
				shot.ShotIndex,
				vec(shot.Origin),
				vec(shot.Direction),
				shot.AmmoRemaining,
				shot.FireMode,
			})
		}

		// [tick, simTime, phase, method, ammoBefore, ammoAfter, reserveAfter]
		for _, r := range record.Reloads {
			fa.Reloads = append(fa.Reloads, []any{
				r.Tick,
				r.SimTime,
				string(r.Phase),
				r.Method,
				r.AmmoBefore,
				r.AmmoAfter,
				r.ReserveAfter,
			})
		}

		export.Summary.Shots += len(record.Shots)
		export.Firearms = append(export.Firearms, fa)
	}

	hits := append([]core.HitEvent(nil), data.Hits...)
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].SimTime < hits[j].SimTime })

	// Format: [tick, "hit"|"killed", firearmId, victimId, damage, [x, y, z], distance, eventText]
	for _, h := range hits {
		kind := "hit"
		if h.Killed {
			kind = "killed"
			export.Summary.Kills++
		}
		export.Events = append(export.Events, []any{
			h.Tick,
			kind,
			h.FirearmID,
			h.VictimID,
			h.Damage,
			vec(h.Position),
			h.Distance,
			h.EventText,
		})
		export.Summary.Hits++
		export.Summary.DamageDealt += h.Damage
	}
	if export.Summary.Shots > 0 {
		export.Summary.Accuracy = float64(export.Summary.Hits) / float64(export.Summary.Shots)
	}

	for _, p := range data.Projectiles {
		proj := Projectile{
			ID:              p.ID,
			FirearmID:       p.FirearmID,
			SpawnSimTime:    p.SpawnSimTime,
			Outcome:         p.Outcome,
			InitialVelocity: vec(p.InitialVelocity),
			Positions:       make([][]float64, 0, len(p.Trajectory)),
		}
		for _, tp := range p.Trajectory {
			proj.Positions = append(proj.Positions, []float64{tp.Position.X, tp.Position.Y, tp.Position.Z, tp.SimTime})
		}
		// [simTime, [x, y, z], victimId, damage, travelled]
		if p.Hit != nil {
			proj.Hit = []any{p.Hit.SimTime, vec(p.Hit.Position), p.Hit.VictimID, p.Hit.Damage, p.Hit.Travelled}
		}
		export.Projectiles = append(export.Projectiles, proj)
	}

	return export
}

func vec(v core.Vec3) []float64 {
	return []float64{v.X, v.Y, v.Z}
}

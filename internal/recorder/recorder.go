// Package recorder turns firearm and projectile notifications into recorded
// events and publishes them on the dispatcher.
package recorder

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/fpsframework/firearm/internal/dispatcher"
	"github.com/fpsframework/firearm/internal/firearm"
	"github.com/fpsframework/firearm/internal/projectile"
	"github.com/fpsframework/firearm/internal/worker"
	"github.com/fpsframework/firearm/pkg/core"
)

// Publisher is the part of the dispatcher the recorder uses.
type Publisher interface {
	Dispatch(e dispatcher.Event) error
}

// Clock maps simulation time to wall time and reports the current tick.
type Clock interface {
	Tick() uint64
	WallTime(simTime float64) time.Time
}

// Stats counts what the recorder published.
type Stats struct {
	Shots       int64 `json:"shots"`
	Hits        int64 `json:"hits"`
	Kills       int64 `json:"kills"`
	Reloads     int64 `json:"reloads"`
	Projectiles int64 `json:"projectiles"`
	Failed      int64 `json:"failed"`
}

// Recorder implements firearm.Listener and listens for finished projectiles.
type Recorder struct {
	pub    Publisher
	clock  Clock
	logger *slog.Logger

	shots, hits, kills atomic.Int64
	reloads, flights   atomic.Int64
	failed             atomic.Int64
}

// New creates a recorder publishing to pub.
func New(pub Publisher, clock Clock, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{pub: pub, clock: clock, logger: logger.With("component", "recorder")}
}

// Attach registers the recorder on a firearm.
func (r *Recorder) Attach(f *firearm.Firearm) {
	f.AddListener(r)
}

// AttachSimulator registers the recorder for finished projectile flights.
func (r *Recorder) AttachSimulator(s *projectile.Simulator) {
	s.OnFinished(r.OnProjectileFinished)
}

// OnFirearmEvent records shots after their effects resolved, hits and reload
// phases. Other kinds are ignored.
func (r *Recorder) OnFirearmEvent(e firearm.Event) {
	switch e.Kind {
	case firearm.EventFireDone:
		if e.Shot == nil {
			return
		}
		shot := *e.Shot
		shot.Attachments = append([]string(nil), e.Shot.Attachments...)
		if r.publish(worker.TopicShot, &shot, shot.Time) {
			r.shots.Add(1)
		}
	case firearm.EventHit:
		if e.Hit == nil {
			return
		}
		h := *e.Hit
		r.publishHit(&h)
	case firearm.EventReloadStarting, firearm.EventReloadComplete, firearm.EventReloadCancelled:
		if e.Reload == nil {
			return
		}
		reload := *e.Reload
		if r.publish(worker.TopicReload, &reload, reload.Time) {
			r.reloads.Add(1)
		}
	}
}

// OnProjectileFinished records the flight and, when it damaged something,
// the resulting hit.
func (r *Recorder) OnProjectileFinished(p *projectile.Projectile) {
	flight := p.Event()
	flight.SpawnTime = r.clock.WallTime(flight.SpawnSimTime)
	flight.Trajectory = append([]core.TrajectoryPoint(nil), flight.Trajectory...)
	if flight.Hit != nil {
		impact := *flight.Hit
		flight.Hit = &impact
	}
	if r.publish(worker.TopicProjectile, &flight, flight.SpawnTime) {
		r.flights.Add(1)
	}

	res, impact := p.Result(), p.Impact()
	if res == nil || impact == nil {
		return
	}
	r.publishHit(&core.HitEvent{
		Time:         r.clock.WallTime(impact.SimTime),
		SimTime:      impact.SimTime,
		Tick:         r.clock.Tick(),
		FirearmID:    flight.FirearmID,
		ShooterID:    flight.ShooterID,
		VictimID:     res.VictimID,
		ColliderID:   res.ColliderID,
		Mechanism:    firearm.Projectile.String(),
		Position:     impact.Position,
		Distance:     impact.Travelled,
		Damage:       res.Damage,
		HealthBefore: res.HealthBefore,
		HealthAfter:  res.HealthAfter,
		Killed:       res.Killed,
		ExtraData:    map[string]any{"decal": res.Decal, "impulse": res.Impulse, "projectile": p.ID},
	})
}

func (r *Recorder) publishHit(h *core.HitEvent) {
	if !r.publish(worker.TopicHit, h, h.Time) {
		return
	}
	r.hits.Add(1)
	if h.Killed {
		r.kills.Add(1)
	}
}

func (r *Recorder) publish(topic string, payload any, ts time.Time) bool {
	if err := r.pub.Dispatch(dispatcher.Event{Topic: topic, Payload: payload, Timestamp: ts}); err != nil {
		r.failed.Add(1)
		r.logger.Error("Failed to publish event", "topic", topic, "error", err)
		return false
	}
	return true
}

// Stats returns a snapshot of the published counts.
func (r *Recorder) Stats() Stats {
	return Stats{
		Shots:       r.shots.Load(),
		Hits:        r.hits.Load(),
		Kills:       r.kills.Load(),
		Reloads:     r.reloads.Load(),
		Projectiles: r.flights.Load(),
		Failed:      r.failed.Load(),
	}
}

package projectile

import (
	"context"
	"log/slog"

	"github.com/fpsframework/firearm/internal/fx"
	"github.com/fpsframework/firearm/internal/physics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/fpsframework/firearm/internal/projectile"

// Listener is called once for every projectile that finishes its flight.
type Listener func(p *Projectile)

// Simulator owns all live projectiles of a scene and steps them each tick.
type Simulator struct {
	world     physics.World
	effects   fx.Sink
	logger    *slog.Logger
	listeners []Listener

	nextID uint
	live   []*Projectile

	liveGauge metric.Int64UpDownCounter
	finished  metric.Int64Counter
}

// NewSimulator creates a simulator. Nil effects and logger use no-op defaults.
func NewSimulator(world physics.World, effects fx.Sink, logger *slog.Logger) *Simulator {
	if world == nil {
		world = physics.Empty{}
	}
	if effects == nil {
		effects = fx.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Simulator{world: world, effects: effects, logger: logger}

	m := otel.Meter(instrumentationName)
	var err error
	s.liveGauge, err = m.Int64UpDownCounter("projectile.live",
		metric.WithDescription("Projectiles currently in flight"))
	if err != nil {
		logger.Warn("Failed to create projectile gauge", "error", err)
	}
	s.finished, err = m.Int64Counter("projectile.finished",
		metric.WithDescription("Projectile flights ended, by outcome"))
	if err != nil {
		logger.Warn("Failed to create projectile counter", "error", err)
	}
	return s
}

// OnFinished registers a listener for finished flights.
func (s *Simulator) OnFinished(l Listener) {
	s.listeners = append(s.listeners, l)
}

// Spawn creates and tracks a new projectile.
func (s *Simulator) Spawn(params Params) *Projectile {
	s.nextID++
	p := New(s.nextID, params)
	s.live = append(s.live, p)
	if s.liveGauge != nil {
		s.liveGauge.Add(context.Background(), 1)
	}
	s.logger.Debug("Projectile spawned", "id", p.ID, "firearm", params.Source.FirearmID,
		"speed", p.velocity.Length(), "range", p.maxRange)
	return p
}

// Step advances every live projectile and removes the finished ones.
// simTime is the simulation time at the end of the step.
func (s *Simulator) Step(dt, simTime float64) {
	if len(s.live) == 0 {
		return
	}
	kept := s.live[:0]
	for _, p := range s.live {
		if p.Step(dt, simTime, s.world, s.effects, s.logger) == Flying {
			kept = append(kept, p)
			continue
		}
		s.finish(p)
	}
	for i := len(kept); i < len(s.live); i++ {
		s.live[i] = nil
	}
	s.live = kept
}

func (s *Simulator) finish(p *Projectile) {
	ctx := context.Background()
	if s.liveGauge != nil {
		s.liveGauge.Add(ctx, -1)
	}
	if s.finished != nil {
		s.finished.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", p.outcome.String())))
	}
	s.logger.Debug("Projectile finished", "id", p.ID, "outcome", p.outcome.String(), "travelled", p.travelled)
	for _, l := range s.listeners {
		l(p)
	}
}

// Live returns the number of projectiles in flight.
func (s *Simulator) Live() int {
	return len(s.live)
}

// World returns the collision world the simulator queries.
func (s *Simulator) World() physics.World {
	return s.world
}

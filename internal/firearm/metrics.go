package firearm

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/fpsframework/firearm/internal/firearm"

type instruments struct {
	shots   metric.Int64Counter
	hits    metric.Int64Counter
	reloads metric.Int64Counter
	damage  metric.Float64Counter
}

func newInstruments() (*instruments, error) {
	m := otel.Meter(instrumentationName)
	var (
		in  instruments
		err error
	)
	if in.shots, err = m.Int64Counter("firearm.shots",
		metric.WithDescription("Rounds fired")); err != nil {
		return nil, fmt.Errorf("creating shots counter: %w", err)
	}
	if in.hits, err = m.Int64Counter("firearm.hits",
		metric.WithDescription("Resolved hitscan hits")); err != nil {
		return nil, fmt.Errorf("creating hits counter: %w", err)
	}
	if in.reloads, err = m.Int64Counter("firearm.reloads",
		metric.WithDescription("Reload phase changes")); err != nil {
		return nil, fmt.Errorf("creating reloads counter: %w", err)
	}
	if in.damage, err = m.Float64Counter("firearm.damage",
		metric.WithDescription("Damage dealt by hitscan hits")); err != nil {
		return nil, fmt.Errorf("creating damage counter: %w", err)
	}
	return &in, nil
}

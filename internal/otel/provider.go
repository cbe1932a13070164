// Package otel installs the process-wide meter provider. When enabled, counter
// instruments are tallied in process and reported on Flush and Shutdown.
package otel

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Config holds OTel configuration
type Config struct {
	Enabled     bool
	ServiceName string
	Logger      *slog.Logger
}

// Provider manages the global meter provider.
type Provider struct {
	config Config
	logger *slog.Logger
	tally  *tallyProvider
}

// New installs a meter provider. If OTel is disabled, a no-op provider is set.
func New(cfg Config) *Provider {
	p := &Provider{config: cfg, logger: cfg.Logger}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if !cfg.Enabled {
		otel.SetMeterProvider(noop.NewMeterProvider())
		return p
	}
	p.tally = newTallyProvider()
	otel.SetMeterProvider(p.tally)
	return p
}

// Meter returns a meter with the given name for creating metrics.
func (p *Provider) Meter(name string) metric.Meter {
	return otel.GetMeterProvider().Meter(name)
}

// Snapshot returns the current totals keyed by instrument name and attribute
// set, e.g. "firearm.shots{mechanism=hitscan,preset=Rifle}". It is empty when
// disabled.
func (p *Provider) Snapshot() map[string]float64 {
	if p.tally == nil {
		return map[string]float64{}
	}
	return p.tally.snapshot()
}

// Flush logs the current totals.
func (p *Provider) Flush(ctx context.Context) error {
	if p.tally == nil {
		return nil
	}
	snap := p.tally.snapshot()
	keys := slices.Sorted(maps.Keys(snap))
	for _, k := range keys {
		p.logger.InfoContext(ctx, "Metric total", "service", p.config.ServiceName, "metric", k, "value", snap[k])
	}
	return nil
}

// Shutdown flushes the totals and restores a no-op provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tally == nil {
		return nil
	}
	err := p.Flush(ctx)
	otel.SetMeterProvider(noop.NewMeterProvider())
	p.tally = nil
	return err
}

type tallyProvider struct {
	noop.MeterProvider

	mu     sync.Mutex
	totals map[string]float64
}

func newTallyProvider() *tallyProvider {
	return &tallyProvider{totals: make(map[string]float64)}
}

func (t *tallyProvider) Meter(string, ...metric.MeterOption) metric.Meter {
	return tallyMeter{tally: t}
}

func (t *tallyProvider) add(name string, v float64, opts []metric.AddOption) {
	set := metric.NewAddConfig(opts).Attributes()
	key := name
	if set.Len() > 0 {
		parts := make([]string, 0, set.Len())
		for _, kv := range set.ToSlice() {
			parts = append(parts, string(kv.Key)+"="+kv.Value.Emit())
		}
		sort.Strings(parts)
		key += "{" + strings.Join(parts, ",") + "}"
	}
	t.mu.Lock()
	t.totals[key] += v
	t.mu.Unlock()
}

func (t *tallyProvider) snapshot() map[string]float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return maps.Clone(t.totals)
}

// tallyMeter records counters and up-down counters. Every other instrument
// kind comes from the embedded no-op meter.
type tallyMeter struct {
	noop.Meter
	tally *tallyProvider
}

func (m tallyMeter) Int64Counter(name string, _ ...metric.Int64CounterOption) (metric.Int64Counter, error) {
	return int64Counter{name: name, tally: m.tally}, nil
}

func (m tallyMeter) Float64Counter(name string, _ ...metric.Float64CounterOption) (metric.Float64Counter, error) {
	return float64Counter{name: name, tally: m.tally}, nil
}

func (m tallyMeter) Int64UpDownCounter(name string, _ ...metric.Int64UpDownCounterOption) (metric.Int64UpDownCounter, error) {
	return int64UpDown{name: name, tally: m.tally}, nil
}

type int64Counter struct {
	noop.Int64Counter
	name  string
	tally *tallyProvider
}

func (c int64Counter) Add(_ context.Context, v int64, opts ...metric.AddOption) {
	c.tally.add(c.name, float64(v), opts)
}

type float64Counter struct {
	noop.Float64Counter
	name  string
	tally *tallyProvider
}

func (c float64Counter) Add(_ context.Context, v float64, opts ...metric.AddOption) {
	c.tally.add(c.name, v, opts)
}

type int64UpDown struct {
	noop.Int64UpDownCounter
	name  string
	tally *tallyProvider
}

func (c int64UpDown) Add(_ context.Context, v int64, opts ...metric.AddOption) {
	c.tally.add(c.name, float64(v), opts)
}

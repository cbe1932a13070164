package logging

import (
	"context"
	"errors"
	"log/slog"
)

// FanoutHandler delivers every record to each of its sinks that accepts the
// record's level.
type FanoutHandler struct {
	sinks []slog.Handler
}

// NewFanoutHandler skips nil sinks.
func NewFanoutHandler(sinks ...slog.Handler) *FanoutHandler {
	f := &FanoutHandler{}
	for _, h := range sinks {
		if h != nil {
			f.sinks = append(f.sinks, h)
		}
	}
	return f
}

func (f *FanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f.sinks {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle keeps delivering after a sink fails and reports all failures.
func (f *FanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f.sinks {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *FanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return f.derive(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (f *FanoutHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return f
	}
	return f.derive(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (f *FanoutHandler) derive(fn func(slog.Handler) slog.Handler) *FanoutHandler {
	out := &FanoutHandler{sinks: make([]slog.Handler, len(f.sinks))}
	for i, h := range f.sinks {
		out.sinks[i] = fn(h)
	}
	return out
}

// SimClock is the part of the simulation context stamped on every record.
type SimClock interface {
	Now() float64
	Tick() uint64
}

// ClockHandler stamps records with the simulation tick and time read at
// the moment the record is handled.
type ClockHandler struct {
	inner slog.Handler
	clock SimClock
}

func NewClockHandler(inner slog.Handler, clock SimClock) *ClockHandler {
	return &ClockHandler{inner: inner, clock: clock}
}

func (h *ClockHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *ClockHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.clock != nil {
		r.AddAttrs(slog.Uint64("tick", h.clock.Tick()), slog.Float64("simTime", h.clock.Now()))
	}
	return h.inner.Handle(ctx, r)
}

func (h *ClockHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ClockHandler{inner: h.inner.WithAttrs(attrs), clock: h.clock}
}

// WithGroup nests caller attributes; the clock attributes are still added
// under the same group.
func (h *ClockHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &ClockHandler{inner: h.inner.WithGroup(name), clock: h.clock}
}

// Package worker registers the dispatcher handlers that persist recorded
// events to the storage backend and forward them to telemetry.
package worker

import (
	"fmt"
	"log/slog"

	"github.com/fpsframework/firearm/internal/storage"
	"github.com/fpsframework/firearm/pkg/core"
)

// Telemetry receives a copy of every persisted shot, hit and reload.
type Telemetry interface {
	WriteShot(e *core.ShotEvent) error
	WriteHit(e *core.HitEvent) error
	WriteReload(e *core.ReloadEvent) error
}

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	Logger *slog.Logger
	// Telemetry is optional.
	Telemetry Telemetry
	// BufferSize is the queue length of each buffered topic.
	BufferSize int
}

// Manager manages worker goroutines
type Manager struct {
	deps    Dependencies
	backend storage.Backend
	log     *slog.Logger
}

// NewManager creates a new worker manager
func NewManager(deps Dependencies, backend storage.Backend) *Manager {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.BufferSize <= 0 {
		deps.BufferSize = 10000
	}
	return &Manager{
		deps:    deps,
		backend: backend,
		log:     deps.Logger.With("component", "worker"),
	}
}

// unexpectedPayload is returned when a topic carries the wrong type.
func unexpectedPayload(topic string, payload any) error {
	return fmt.Errorf("%s: unexpected payload %T", topic, payload)
}

// telemetry forwards to the telemetry sink, logging instead of failing the
// handler since the record is already stored.
func (m *Manager) telemetry(kind string, write func(Telemetry) error) {
	if m.deps.Telemetry == nil {
		return
	}
	if err := write(m.deps.Telemetry); err != nil {
		m.log.Warn("Failed to write telemetry", "kind", kind, "error", err)
	}
}

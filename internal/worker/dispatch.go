package worker

import (
	"fmt"

	"github.com/fpsframework/firearm/internal/dispatcher"
	"github.com/fpsframework/firearm/pkg/core"
)

// Topics published by the recorder.
const (
	TopicShot       = ":SHOT:"
	TopicHit        = ":HIT:"
	TopicReload     = ":RELOAD:"
	TopicProjectile = ":PROJECTILE:"
)

// RegisterHandlers registers all event handlers with the dispatcher.
// Every topic is buffered and blocking: a full queue stalls the publisher
// instead of dropping records.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	size := m.deps.BufferSize
	d.Register(TopicShot, m.handleShot, dispatcher.Buffered(size), dispatcher.Blocking(), dispatcher.Logged())
	d.Register(TopicHit, m.handleHit, dispatcher.Buffered(size), dispatcher.Blocking(), dispatcher.Logged())
	d.Register(TopicReload, m.handleReload, dispatcher.Buffered(size/10+1), dispatcher.Blocking(), dispatcher.Logged())
	d.Register(TopicProjectile, m.handleProjectile, dispatcher.Buffered(size/10+1), dispatcher.Blocking(), dispatcher.Logged())
}

func (m *Manager) handleShot(e dispatcher.Event) error {
	shot, ok := e.Payload.(*core.ShotEvent)
	if !ok {
		return unexpectedPayload(e.Topic, e.Payload)
	}
	if err := m.backend.RecordShot(shot); err != nil {
		return fmt.Errorf("failed to record shot: %w", err)
	}
	m.telemetry("shot", func(t Telemetry) error { return t.WriteShot(shot) })
	return nil
}

func (m *Manager) handleHit(e dispatcher.Event) error {
	hit, ok := e.Payload.(*core.HitEvent)
	if !ok {
		return unexpectedPayload(e.Topic, e.Payload)
	}
	if err := m.backend.RecordHit(hit); err != nil {
		return fmt.Errorf("failed to record hit: %w", err)
	}
	m.telemetry("hit", func(t Telemetry) error { return t.WriteHit(hit) })
	return nil
}

func (m *Manager) handleReload(e dispatcher.Event) error {
	reload, ok := e.Payload.(*core.ReloadEvent)
	if !ok {
		return unexpectedPayload(e.Topic, e.Payload)
	}
	if err := m.backend.RecordReload(reload); err != nil {
		return fmt.Errorf("failed to record reload: %w", err)
	}
	m.telemetry("reload", func(t Telemetry) error { return t.WriteReload(reload) })
	return nil
}

func (m *Manager) handleProjectile(e dispatcher.Event) error {
	flight, ok := e.Payload.(*core.ProjectileEvent)
	if !ok {
		return unexpectedPayload(e.Topic, e.Payload)
	}
	if err := m.backend.RecordProjectile(flight); err != nil {
		return fmt.Errorf("failed to record projectile: %w", err)
	}
	return nil
}

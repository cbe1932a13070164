// Package websocket streams recorded events to a live viewer over a
// WebSocket. Session boundaries are acknowledged by the viewer; individual
// events are fire-and-forget.
package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/fpsframework/firearm/pkg/core"
	"github.com/fpsframework/firearm/pkg/streaming"
)

// Config holds the viewer connection settings.
type Config struct {
	URL    string
	Secret string
}

// Backend implements storage.Backend but not storage.Uploadable.
type Backend struct {
	link      *link
	cfg       Config
	sessionID atomic.Uint64
	current   atomic.Uint64
}

// New creates a streaming backend. A nil logger falls back to slog.Default.
func New(cfg Config, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		link: newLink(logger.With("backend", "websocket")),
		cfg:  cfg,
	}
}

// Init connects to the viewer.
func (b *Backend) Init() error {
	return b.link.open(b.cfg.URL, b.cfg.Secret)
}

// Close disconnects from the viewer.
func (b *Backend) Close() error {
	return b.link.shutdown()
}

func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	data, err := json.Marshal(streaming.Envelope{Type: msgType, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

func (b *Backend) sendEnvelope(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	b.link.enqueue(data)
	return nil
}

// StartSession assigns the session ID, announces it and waits for the ack.
// The announcement is replayed after a reconnect.
func (b *Backend) StartSession(s *core.Session) error {
	s.ID = uint(b.sessionID.Add(1))
	b.current.Store(uint64(s.ID))

	data, err := marshalEnvelope(streaming.TypeStartSession, streaming.StartSessionPayload{Session: s})
	if err != nil {
		return err
	}
	b.link.setReplay(data)
	return b.link.request(data, streaming.TypeStartSession, ackTimeout)
}

// EndSession closes the current session and waits for the ack.
func (b *Backend) EndSession() error {
	data, err := marshalEnvelope(streaming.TypeEndSession, streaming.EndSessionPayload{SessionID: uint(b.current.Load())})
	if err != nil {
		return err
	}
	err = b.link.request(data, streaming.TypeEndSession, ackTimeout)

	b.link.setReplay(nil)
	b.current.Store(0)

	return err
}

func (b *Backend) RecordShot(e *core.ShotEvent) error {
	return b.sendEnvelope(streaming.TypeShot, e)
}

func (b *Backend) RecordHit(e *core.HitEvent) error {
	return b.sendEnvelope(streaming.TypeHit, e)
}

func (b *Backend) RecordReload(e *core.ReloadEvent) error {
	return b.sendEnvelope(streaming.TypeReload, e)
}

func (b *Backend) RecordProjectile(e *core.ProjectileEvent) error {
	return b.sendEnvelope(streaming.TypeProjectile, e)
}

// Dropped returns how many events never reached the socket.
func (b *Backend) Dropped() int64 {
	return b.link.dropped.Load()
}

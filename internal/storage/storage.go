// Package storage defines the contract every recording backend satisfies.
package storage

import "github.com/fpsframework/firearm/pkg/core"

// Backend is the interface all storage implementations must satisfy.
// Record calls may arrive from dispatcher goroutines and must be safe for
// concurrent use.
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Session management. StartSession assigns s.ID.
	StartSession(s *core.Session) error
	EndSession() error

	// Event recording
	RecordShot(e *core.ShotEvent) error
	RecordHit(e *core.HitEvent) error
	RecordReload(e *core.ReloadEvent) error
	RecordProjectile(e *core.ProjectileEvent) error
}

// Uploadable is an optional interface for storage backends that produce
// a recording file when the session ends.
type Uploadable interface {
	GetExportedFilePath() string
	GetExportMetadata() core.UploadMetadata
}

// Flusher is an optional interface for backends that buffer writes.
// Flush blocks until everything recorded so far is persisted.
type Flusher interface {
	Flush() error
}

// Package memory implements storage.Backend by keeping the session in memory
// and exporting it as (optionally gzipped) JSON when the session ends.
package memory

import (
	"errors"
	"sync"

	"github.com/fpsframework/firearm/internal/config"
	v1 "github.com/fpsframework/firearm/internal/storage/memory/export/v1"
	"github.com/fpsframework/firearm/pkg/core"
)

// ErrNoSession is returned by EndSession when no session was started.
var ErrNoSession = errors.New("no session started")

// FirearmRecord groups a firearm with all its time-series data
type FirearmRecord = v1.FirearmRecord

// Backend stores session data in memory and exports to JSON
type Backend struct {
	cfg     config.MemoryConfig
	session *core.Session

	firearms     map[string]*FirearmRecord // keyed by firearm ID
	firearmOrder []string

	hits        []core.HitEvent
	projectiles []core.ProjectileEvent

	sessionCounter uint
	idCounter      uint
	endSimTime     float64
	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:      cfg,
		firearms: make(map[string]*FirearmRecord),
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartSession begins recording a new session and resets all collections.
func (b *Backend) StartSession(s *core.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.sessionCounter++
	s.ID = b.sessionCounter
	b.session = s

	b.firearms = make(map[string]*FirearmRecord)
	b.firearmOrder = nil
	b.hits = nil
	b.projectiles = nil
	b.idCounter = 0
	b.endSimTime = 0
	b.lastExportPath = ""

	return nil
}

// EndSession finalizes and exports the session data
func (b *Backend) EndSession() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return ErrNoSession
	}
	return b.exportJSON()
}

// firearm returns the record for id, creating it on first use. Callers hold mu.
func (b *Backend) firearm(id, shooter, preset string) *FirearmRecord {
	r, ok := b.firearms[id]
	if !ok {
		r = &FirearmRecord{FirearmID: id, ShooterID: shooter}
		b.firearms[id] = r
		b.firearmOrder = append(b.firearmOrder, id)
	}
	if r.Preset == "" {
		r.Preset = preset
	}
	return r
}

func (b *Backend) observe(simTime float64) {
	if simTime > b.endSimTime {
		b.endSimTime = simTime
	}
}

func (b *Backend) sessionID() uint {
	if b.session == nil {
		return 0
	}
	return b.session.ID
}

// RecordShot records a shot under its firearm.
func (b *Backend) RecordShot(e *core.ShotEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	e.SessionID = b.sessionID()
	r := b.firearm(e.FirearmID, e.ShooterID, e.Preset)
	r.Shots = append(r.Shots, *e)
	b.observe(e.SimTime)
	return nil
}

// RecordHit records a resolved hit and assigns its ID.
func (b *Backend) RecordHit(e *core.HitEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.idCounter++
	e.ID = b.idCounter
	e.SessionID = b.sessionID()
	b.hits = append(b.hits, *e)
	b.observe(e.SimTime)
	return nil
}

// RecordReload records a reload phase under its firearm.
func (b *Backend) RecordReload(e *core.ReloadEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.idCounter++
	e.ID = b.idCounter
	e.SessionID = b.sessionID()
	r := b.firearm(e.FirearmID, e.ShooterID, "")
	r.Reloads = append(r.Reloads, *e)
	b.observe(e.SimTime)
	return nil
}

// RecordProjectile records a finished projectile flight and assigns its ID.
func (b *Backend) RecordProjectile(e *core.ProjectileEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.idCounter++
	e.ID = b.idCounter
	e.SessionID = b.sessionID()
	b.projectiles = append(b.projectiles, *e)
	if n := len(e.Trajectory); n > 0 {
		b.observe(e.Trajectory[n-1].SimTime)
	}
	return nil
}

// GetFirearm returns a copy of a firearm's record.
func (b *Backend) GetFirearm(id string) (FirearmRecord, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	r, ok := b.firearms[id]
	if !ok {
		return FirearmRecord{}, false
	}
	return *r, true
}

// Hits returns a copy of the recorded hits.
func (b *Backend) Hits() []core.HitEvent {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]core.HitEvent(nil), b.hits...)
}

// Projectiles returns a copy of the recorded projectile flights.
func (b *Backend) Projectiles() []core.ProjectileEvent {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]core.ProjectileEvent(nil), b.projectiles...)
}

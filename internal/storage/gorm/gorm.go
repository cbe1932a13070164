// Package gormstorage implements the storage.Backend interface on any gorm
// dialect, with internal queues drained in batches by a background writer.
package gormstorage

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fpsframework/firearm/internal/database"
	"github.com/fpsframework/firearm/internal/model"
	"github.com/fpsframework/firearm/internal/model/convert"
	"github.com/fpsframework/firearm/internal/queue"
	"github.com/fpsframework/firearm/pkg/core"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultWriteInterval = 2 * time.Second
	defaultBatchSize     = 500
)

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	// DB may be nil, in which case records are only queued.
	DB     *gorm.DB
	Logger *slog.Logger

	WriteInterval time.Duration
	BatchSize     int
}

// queues holds all the write queues for batch DB insertion.
type queues struct {
	Shots       *queue.Queue[model.Shot]
	Hits        *queue.Queue[model.Hit]
	Reloads     *queue.Queue[model.Reload]
	Projectiles *queue.Queue[model.ProjectileFlight]
}

func newQueues() *queues {
	return &queues{
		Shots:       queue.New[model.Shot](),
		Hits:        queue.New[model.Hit](),
		Reloads:     queue.New[model.Reload](),
		Projectiles: queue.New[model.ProjectileFlight](),
	}
}

// Backend implements storage.Backend using GORM with queue-based batch writes.
type Backend struct {
	deps   Dependencies
	log    *slog.Logger
	queues *queues

	sessionID atomic.Uint64
	shots     atomic.Int64
	hits      atomic.Int64
	endBits   atomic.Uint64 // math.Float64bits of the latest sim time seen

	writeMu  sync.Mutex
	stopChan chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.WriteInterval <= 0 {
		deps.WriteInterval = defaultWriteInterval
	}
	if deps.BatchSize <= 0 {
		deps.BatchSize = defaultBatchSize
	}
	return &Backend{
		deps:   deps,
		log:    deps.Logger.With("component", "gormstorage"),
		queues: newQueues(),
	}
}

// Init runs schema migration and starts the DB writer goroutine.
func (b *Backend) Init() error {
	b.stopChan = make(chan struct{})
	b.done = make(chan struct{})

	if b.deps.DB != nil {
		if err := database.Migrate(b.deps.DB); err != nil {
			return fmt.Errorf("failed to setup DB: %w", err)
		}
	}

	go b.writeLoop()
	return nil
}

// Close stops the DB writer goroutine and writes whatever is still queued.
func (b *Backend) Close() error {
	if b.stopChan == nil {
		return nil
	}
	b.stopOnce.Do(func() {
		close(b.stopChan)
		<-b.done
	})
	return b.Flush()
}

// StartSession inserts the session synchronously so that its ID is known
// before any event is queued. Without a DB the ID is a local counter.
func (b *Backend) StartSession(s *core.Session) error {
	b.shots.Store(0)
	b.hits.Store(0)
	b.endBits.Store(0)

	if b.deps.DB == nil {
		s.ID = uint(b.sessionID.Add(1))
		return nil
	}

	row := convert.CoreToSession(*s)
	row.ID = 0
	if err := b.deps.DB.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert new session: %w", err)
	}
	s.ID = row.ID
	b.sessionID.Store(uint64(row.ID))
	b.log.Info("Session started", "sessionId", row.ID, "name", row.Name)
	return nil
}

// EndSession flushes the queues and stores the session totals.
func (b *Backend) EndSession() error {
	id := uint(b.sessionID.Load())
	if id == 0 {
		return errors.New("no session started")
	}
	if err := b.Flush(); err != nil {
		return err
	}
	if b.deps.DB == nil {
		return nil
	}

	err := b.deps.DB.Model(&model.Session{}).Where("id = ?", id).Updates(map[string]any{
		"end_time": sql.NullTime{Time: time.Now(), Valid: true},
		"duration": b.endSimTime(),
		"shots":    int(b.shots.Load()),
		"hits":     int(b.hits.Load()),
	}).Error
	if err != nil {
		return fmt.Errorf("failed to update session %d: %w", id, err)
	}
	b.log.Info("Session ended", "sessionId", id, "shots", b.shots.Load(), "hits", b.hits.Load())
	return nil
}

func (b *Backend) observe(simTime float64) {
	for {
		old := b.endBits.Load()
		if simTime <= math.Float64frombits(old) {
			return
		}
		if b.endBits.CompareAndSwap(old, math.Float64bits(simTime)) {
			return
		}
	}
}

func (b *Backend) endSimTime() float64 {
	return math.Float64frombits(b.endBits.Load())
}

func (b *Backend) currentSession() uint {
	return uint(b.sessionID.Load())
}

// RecordShot converts and queues a shot.
func (b *Backend) RecordShot(e *core.ShotEvent) error {
	e.SessionID = b.currentSession()
	b.queues.Shots.Push(convert.CoreToShot(*e))
	b.shots.Add(1)
	b.observe(e.SimTime)
	return nil
}

// RecordHit converts and queues a hit.
func (b *Backend) RecordHit(e *core.HitEvent) error {
	e.SessionID = b.currentSession()
	b.queues.Hits.Push(convert.CoreToHit(*e))
	b.hits.Add(1)
	b.observe(e.SimTime)
	return nil
}

// RecordReload converts and queues a reload phase.
func (b *Backend) RecordReload(e *core.ReloadEvent) error {
	e.SessionID = b.currentSession()
	b.queues.Reloads.Push(convert.CoreToReload(*e))
	b.observe(e.SimTime)
	return nil
}

// RecordProjectile converts and queues a projectile flight.
func (b *Backend) RecordProjectile(e *core.ProjectileEvent) error {
	e.SessionID = b.currentSession()
	b.queues.Projectiles.Push(convert.CoreToProjectileFlight(*e))
	if n := len(e.Trajectory); n > 0 {
		b.observe(e.Trajectory[n-1].SimTime)
	}
	return nil
}

// writeQueue drains a queue into the database, one transaction per batch.
// A failed batch goes back to the front of the queue.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, batch int, log *slog.Logger) error {
	n, err := q.Drain(batch, func(items []T) error {
		return db.Transaction(func(tx *gorm.DB) error {
			return tx.Omit(clause.Associations).Create(&items).Error
		})
	})
	if err != nil {
		log.Error("Error writing "+name, "error", err, "written", n, "pending", q.Len())
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if n > 0 {
		log.Debug("Wrote "+name, "count", n)
	}
	return nil
}

// Flush writes every queue to the database. Without a DB it is a no-op and
// records stay queued.
func (b *Backend) Flush() error {
	if b.deps.DB == nil {
		return nil
	}
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	db, batch := b.deps.DB, b.deps.BatchSize
	return errors.Join(
		writeQueue(db, b.queues.Shots, "shots", batch, b.log),
		writeQueue(db, b.queues.Hits, "hits", batch, b.log),
		writeQueue(db, b.queues.Reloads, "reloads", batch, b.log),
		writeQueue(db, b.queues.Projectiles, "projectile flights", batch, b.log),
	)
}

// writeLoop periodically drains the queues into the DB until Close.
func (b *Backend) writeLoop() {
	defer close(b.done)

	ticker := time.NewTicker(b.deps.WriteInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			// errors are logged by writeQueue and retried next cycle
			_ = b.Flush()
		}
	}
}

// Pending returns the number of queued, unwritten records.
func (b *Backend) Pending() int {
	return b.queues.Shots.Len() + b.queues.Hits.Len() + b.queues.Reloads.Len() + b.queues.Projectiles.Len()
}

// Session loads a stored session.
func (b *Backend) Session(id uint) (core.Session, error) {
	var row model.Session
	if err := b.deps.DB.First(&row, id).Error; err != nil {
		return core.Session{}, fmt.Errorf("failed to load session %d: %w", id, err)
	}
	return convert.SessionToCore(row), nil
}

// Shots loads the stored shots of a session in tick order.
func (b *Backend) Shots(sessionID uint) ([]core.ShotEvent, error) {
	var rows []model.Shot
	if err := b.deps.DB.Where("session_id = ?", sessionID).Order("tick, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load shots: %w", err)
	}
	out := make([]core.ShotEvent, len(rows))
	for i, r := range rows {
		out[i] = convert.ShotToCore(r)
	}
	return out, nil
}

// Hits loads the stored hits of a session in tick order.
func (b *Backend) Hits(sessionID uint) ([]core.HitEvent, error) {
	var rows []model.Hit
	if err := b.deps.DB.Where("session_id = ?", sessionID).Order("tick, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load hits: %w", err)
	}
	out := make([]core.HitEvent, len(rows))
	for i, r := range rows {
		out[i] = convert.HitToCore(r)
	}
	return out, nil
}

// Reloads loads the stored reload phases of a session in tick order.
func (b *Backend) Reloads(sessionID uint) ([]core.ReloadEvent, error) {
	var rows []model.Reload
	if err := b.deps.DB.Where("session_id = ?", sessionID).Order("tick, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load reloads: %w", err)
	}
	out := make([]core.ReloadEvent, len(rows))
	for i, r := range rows {
		out[i] = convert.ReloadToCore(r)
	}
	return out, nil
}

// Projectiles loads the stored projectile flights of a session.
func (b *Backend) Projectiles(sessionID uint) ([]core.ProjectileEvent, error) {
	var rows []model.ProjectileFlight
	if err := b.deps.DB.Where("session_id = ?", sessionID).Order("spawn_sim_time, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load projectile flights: %w", err)
	}
	out := make([]core.ProjectileEvent, len(rows))
	for i, r := range rows {
		out[i] = convert.ProjectileFlightToCore(r)
	}
	return out, nil
}

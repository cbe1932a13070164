// Package sqlitestorage records sessions into SQLite. By default the database
// lives in memory and is snapshotted to a file on a timer, at every session
// end and on close.
package sqlitestorage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fpsframework/firearm/internal/database"
	gormstorage "github.com/fpsframework/firearm/internal/storage/gorm"
	"gorm.io/gorm"
)

type Config struct {
	// DumpPath is the snapshot file. Empty disables snapshots.
	DumpPath     string
	DumpInterval time.Duration

	WriteInterval time.Duration
	BatchSize     int
}

// Backend is the gorm backend plus snapshotting.
type Backend struct {
	*gormstorage.Backend
	db  *gorm.DB
	cfg Config
	log *slog.Logger

	stop context.CancelFunc
	done sync.WaitGroup

	mu       sync.Mutex
	lastDump time.Time
	closed   bool
}

// New wraps db, or a private in-memory database when db is nil.
func New(cfg Config, db *gorm.DB, logger *slog.Logger) (*Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if db == nil {
		mem, err := database.OpenMemory()
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory SQLite DB: %w", err)
		}
		db = mem
	}
	return &Backend{
		Backend: gormstorage.New(gormstorage.Dependencies{
			DB:            db,
			Logger:        logger,
			WriteInterval: cfg.WriteInterval,
			BatchSize:     cfg.BatchSize,
		}),
		db:   db,
		cfg:  cfg,
		log:  logger.With("component", "sqlitestorage"),
		stop: func() {},
	}, nil
}

func (b *Backend) Init() error {
	if err := b.Backend.Init(); err != nil {
		return err
	}
	if b.cfg.DumpPath == "" || b.cfg.DumpInterval <= 0 {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	b.stop = cancel
	b.done.Add(1)
	go func() {
		defer b.done.Done()
		ticker := time.NewTicker(b.cfg.DumpInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = b.Dump()
			}
		}
	}()
	return nil
}

// EndSession flushes the session totals and snapshots them.
func (b *Backend) EndSession() error {
	if err := b.Backend.EndSession(); err != nil {
		return err
	}
	return b.dumpIfConfigured()
}

// Close stops the snapshot timer, flushes pending rows and writes a last
// snapshot. Calling it again is a no-op.
func (b *Backend) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.stop()
	b.done.Wait()
	if err := b.Backend.Close(); err != nil {
		return err
	}
	return b.dumpIfConfigured()
}

func (b *Backend) dumpIfConfigured() error {
	if b.cfg.DumpPath == "" {
		return nil
	}
	return b.Dump()
}

// Dump snapshots the database to DumpPath.
func (b *Backend) Dump() error {
	took, err := database.Snapshot(b.db, b.cfg.DumpPath)
	if err != nil {
		b.log.Error("Snapshot failed", "path", b.cfg.DumpPath, "error", err)
		return err
	}
	b.mu.Lock()
	b.lastDump = time.Now()
	b.mu.Unlock()
	b.log.Debug("Snapshot written", "path", b.cfg.DumpPath, "took", took)
	return nil
}

// LastDump returns when the last snapshot completed, or the zero time.
func (b *Backend) LastDump() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastDump
}

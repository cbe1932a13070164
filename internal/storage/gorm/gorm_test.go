package gormstorage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/fpsframework/firearm/internal/database"
	"github.com/fpsframework/firearm/internal/model"
	"github.com/fpsframework/firearm/internal/storage"
	"github.com/fpsframework/firearm/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// Compile-time interface checks
var (
	_ storage.Backend = (*Backend)(nil)
	_ storage.Flusher = (*Backend)(nil)
)

// newTestBackend creates a Backend with no DB (queue-only mode for unit testing).
func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	b := New(Dependencies{})
	require.NoError(t, b.Init())
	t.Cleanup(func() { _ = b.Close() })
	return b
}

// newDBBackend creates a Backend on a sqlite file in a temp dir. The writer
// interval is long so tests control writes through Flush.
func newDBBackend(t *testing.T) (*Backend, *gorm.DB) {
	t.Helper()
	db, err := database.OpenSqlite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	b := New(Dependencies{DB: db, WriteInterval: time.Hour, BatchSize: 2})
	require.NoError(t, b.Init())
	t.Cleanup(func() { _ = b.Close() })
	return b, db
}

func session() *core.Session {
	return &core.Session{Name: "drill", StartTime: time.Now(), TickRate: 60, Seed: 1, Tag: "Range"}
}

func TestNewAppliesDefaults(t *testing.T) {
	b := New(Dependencies{})
	assert.Equal(t, defaultWriteInterval, b.deps.WriteInterval)
	assert.Equal(t, defaultBatchSize, b.deps.BatchSize)
	assert.NotNil(t, b.deps.Logger)
}

func TestCloseWithoutInit(t *testing.T) {
	assert.NoError(t, New(Dependencies{}).Close())
}

func TestCloseIsIdempotent(t *testing.T) {
	b := New(Dependencies{})
	require.NoError(t, b.Init())
	assert.NoError(t, b.Close())
	assert.NoError(t, b.Close())
}

func TestRecord_QueuesWithoutDB(t *testing.T) {
	b := newTestBackend(t)

	s := session()
	require.NoError(t, b.StartSession(s))
	assert.Equal(t, uint(1), s.ID)

	shot := &core.ShotEvent{FirearmID: "r1", SimTime: 0.1}
	require.NoError(t, b.RecordShot(shot))
	require.NoError(t, b.RecordHit(&core.HitEvent{FirearmID: "r1"}))
	require.NoError(t, b.RecordReload(&core.ReloadEvent{FirearmID: "r1", Phase: core.ReloadStarted}))
	require.NoError(t, b.RecordProjectile(&core.ProjectileEvent{FirearmID: "l1"}))

	assert.Equal(t, uint(1), shot.SessionID)
	assert.Equal(t, 1, b.queues.Shots.Len())
	assert.Equal(t, 1, b.queues.Hits.Len())
	assert.Equal(t, 1, b.queues.Reloads.Len())
	assert.Equal(t, 1, b.queues.Projectiles.Len())
	assert.Equal(t, 4, b.Pending())

	// Flush without a DB keeps everything queued
	require.NoError(t, b.Flush())
	assert.Equal(t, 4, b.Pending())
}

func TestEndSessionWithoutStart(t *testing.T) {
	b := newTestBackend(t)
	assert.Error(t, b.EndSession())
}

func TestStartSessionInsertsRow(t *testing.T) {
	b, db := newDBBackend(t)

	s := session()
	require.NoError(t, b.StartSession(s))
	require.NotZero(t, s.ID)

	var row model.Session
	require.NoError(t, db.First(&row, s.ID).Error)
	assert.Equal(t, "drill", row.Name)
	assert.Equal(t, "Range", row.Tag)
	assert.False(t, row.EndTime.Valid)
}

func TestFlushWritesInBatches(t *testing.T) {
	b, db := newDBBackend(t)
	s := session()
	require.NoError(t, b.StartSession(s))

	for i := range 5 {
		require.NoError(t, b.RecordShot(&core.ShotEvent{
			FirearmID:   "r1",
			Tick:        uint64(i),
			SimTime:     float64(i) / 60,
			Origin:      core.Vec3{Y: 1.5},
			Direction:   core.Vec3{Z: 1},
			Attachments: []string{"Muzzle/Brake"},
		}))
	}
	require.NoError(t, b.Flush())
	assert.Zero(t, b.Pending())

	var count int64
	require.NoError(t, db.Model(&model.Shot{}).Where("session_id = ?", s.ID).Count(&count).Error)
	assert.Equal(t, int64(5), count)

	shots, err := b.Shots(s.ID)
	require.NoError(t, err)
	require.Len(t, shots, 5)
	assert.Equal(t, uint64(0), shots[0].Tick)
	assert.Equal(t, core.Vec3{Y: 1.5}, shots[0].Origin)
	assert.Equal(t, core.Vec3{Z: 1}, shots[0].Direction)
	assert.Equal(t, []string{"Muzzle/Brake"}, shots[0].Attachments)
}

func TestHitsReloadsAndProjectilesRoundTrip(t *testing.T) {
	b, _ := newDBBackend(t)
	s := session()
	require.NoError(t, b.StartSession(s))

	require.NoError(t, b.RecordHit(&core.HitEvent{
		FirearmID: "r1",
		VictimID:  "dummy",
		Tick:      6,
		Position:  core.Vec3{Z: 9},
		Damage:    20,
		ExtraData: map[string]any{"decal": "hole"},
	}))
	require.NoError(t, b.RecordReload(&core.ReloadEvent{FirearmID: "r1", Phase: core.ReloadCompleted, AmmoAfter: 30}))
	require.NoError(t, b.RecordProjectile(&core.ProjectileEvent{
		FirearmID:       "l1",
		SpawnSimTime:    1,
		InitialVelocity: core.Vec3{Z: 40},
		Outcome:         "hit",
		Trajectory: []core.TrajectoryPoint{
			{Position: core.Vec3{}, SimTime: 1},
			{Position: core.Vec3{Z: 4}, SimTime: 1.1},
		},
		Hit: &core.ProjectileHit{SimTime: 1.1, Position: core.Vec3{Z: 4}, VictimID: "dummy", Damage: 50, Travelled: 4},
	}))
	require.NoError(t, b.Flush())

	hits, err := b.Hits(s.ID)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "dummy", hits[0].VictimID)
	assert.Equal(t, core.Vec3{Z: 9}, hits[0].Position)
	assert.Equal(t, "hole", hits[0].ExtraData["decal"])

	reloads, err := b.Reloads(s.ID)
	require.NoError(t, err)
	require.Len(t, reloads, 1)
	assert.Equal(t, core.ReloadCompleted, reloads[0].Phase)

	flights, err := b.Projectiles(s.ID)
	require.NoError(t, err)
	require.Len(t, flights, 1)
	require.Len(t, flights[0].Trajectory, 2)
	assert.Equal(t, 1.1, flights[0].Trajectory[1].SimTime)
	require.NotNil(t, flights[0].Hit)
	assert.Equal(t, 50.0, flights[0].Hit.Damage)
}

func TestEndSessionStoresTotals(t *testing.T) {
	b, _ := newDBBackend(t)
	s := session()
	require.NoError(t, b.StartSession(s))

	require.NoError(t, b.RecordShot(&core.ShotEvent{FirearmID: "r1", SimTime: 0.5}))
	require.NoError(t, b.RecordShot(&core.ShotEvent{FirearmID: "r1", SimTime: 1.5}))
	require.NoError(t, b.RecordHit(&core.HitEvent{FirearmID: "r1", SimTime: 1.5}))
	require.NoError(t, b.RecordReload(&core.ReloadEvent{FirearmID: "r1", SimTime: 3}))

	require.NoError(t, b.EndSession())
	assert.Zero(t, b.Pending())

	var row model.Session
	require.NoError(t, b.deps.DB.First(&row, s.ID).Error)
	assert.True(t, row.EndTime.Valid)
	assert.Equal(t, 2, row.Shots)
	assert.Equal(t, 1, row.Hits)
	assert.Equal(t, 3.0, row.Duration)

	loaded, err := b.Session(s.ID)
	require.NoError(t, err)
	assert.Equal(t, "drill", loaded.Name)
}

func TestWriteLoopDrainsQueues(t *testing.T) {
	db, err := database.OpenSqlite(filepath.Join(t.TempDir(), "loop.db"))
	require.NoError(t, err)
	b := New(Dependencies{DB: db, WriteInterval: 10 * time.Millisecond})
	require.NoError(t, b.Init())
	defer b.Close()

	s := session()
	require.NoError(t, b.StartSession(s))
	require.NoError(t, b.RecordShot(&core.ShotEvent{FirearmID: "r1"}))

	assert.Eventually(t, func() bool { return b.Pending() == 0 }, time.Second, 5*time.Millisecond)
}

func TestFailedBatchIsRequeued(t *testing.T) {
	b, db := newDBBackend(t)
	require.NoError(t, b.StartSession(session()))
	require.NoError(t, b.RecordShot(&core.ShotEvent{FirearmID: "r1"}))

	require.NoError(t, db.Migrator().DropTable(&model.Shot{}))
	assert.Error(t, b.Flush())
	assert.Equal(t, 1, b.Pending())

	require.NoError(t, db.AutoMigrate(&model.Shot{}))
	require.NoError(t, b.Flush())
	assert.Zero(t, b.Pending())
}

package sqlitestorage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fpsframework/firearm/internal/database"
	"github.com/fpsframework/firearm/internal/model"
	"github.com/fpsframework/firearm/internal/storage"
	"github.com/fpsframework/firearm/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ storage.Backend = (*Backend)(nil)

func newBackend(t *testing.T, cfg Config) *Backend {
	t.Helper()
	db, err := database.OpenSqlite(filepath.Join(t.TempDir(), "live.db"))
	require.NoError(t, err)
	b, err := New(cfg, db, nil)
	require.NoError(t, err)
	require.NoError(t, b.Init())
	return b
}

func TestEndSessionDumpsToDisk(t *testing.T) {
	dump := filepath.Join(t.TempDir(), "session.db")
	b := newBackend(t, Config{DumpPath: dump, WriteInterval: time.Hour})
	defer b.Close()

	s := &core.Session{Name: "drill", StartTime: time.Now()}
	require.NoError(t, b.StartSession(s))
	require.NoError(t, b.RecordShot(&core.ShotEvent{FirearmID: "r1", SimTime: 1}))
	require.NoError(t, b.EndSession())

	dumped, err := database.OpenSqlite(dump)
	require.NoError(t, err)
	var shots []model.Shot
	require.NoError(t, dumped.Find(&shots).Error)
	assert.Len(t, shots, 1)

	var sessions []model.Session
	require.NoError(t, dumped.Find(&sessions).Error)
	require.Len(t, sessions, 1)
	assert.Equal(t, 1, sessions[0].Shots)
}

func TestDumpLoopWritesPeriodically(t *testing.T) {
	dump := filepath.Join(t.TempDir(), "periodic.db")
	b := newBackend(t, Config{DumpPath: dump, DumpInterval: 10 * time.Millisecond})
	defer b.Close()

	assert.Eventually(t, func() bool {
		_, err := os.Stat(dump)
		return err == nil && !b.LastDump().IsZero()
	}, time.Second, 5*time.Millisecond)
}

func TestInMemoryBackendSnapshotsOnClose(t *testing.T) {
	dump := filepath.Join(t.TempDir(), "mem.db")
	b, err := New(Config{DumpPath: dump, WriteInterval: time.Hour}, nil, nil)
	require.NoError(t, err)
	require.NoError(t, b.Init())

	require.NoError(t, b.StartSession(&core.Session{Name: "range", StartTime: time.Now()}))
	require.NoError(t, b.RecordShot(&core.ShotEvent{FirearmID: "r1", SimTime: 0.5}))
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	dumped, err := database.OpenSqlite(dump)
	require.NoError(t, err)
	var shots []model.Shot
	require.NoError(t, dumped.Find(&shots).Error)
	assert.Len(t, shots, 1)
	assert.NoFileExists(t, dump+".tmp")
}

func TestCloseWithoutDumpPath(t *testing.T) {
	b := newBackend(t, Config{})
	require.NoError(t, b.StartSession(&core.Session{Name: "drill"}))
	assert.NoError(t, b.EndSession())
	assert.NoError(t, b.Close())
}

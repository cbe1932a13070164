package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fpsframework/firearm/internal/config"
	"github.com/fpsframework/firearm/internal/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresDSN(t *testing.T) {
	dsn := PostgresDSN(config.DBConfig{
		Host:     "db.local",
		Port:     "5433",
		Username: "sim",
		Password: "it's secret",
		Database: "firearm_sim",
	})
	assert.Equal(t, `host='db.local' port='5433' user='sim' password='it\'s secret' dbname='firearm_sim' sslmode=disable`, dsn)
}

func TestSqliteFileSetup(t *testing.T) {
	m := NewManager(zerolog.Nop())
	require.NoError(t, m.ConnectSqlite(filepath.Join(t.TempDir(), "sim.db")))
	defer m.Close()

	require.NoError(t, m.Setup())
	for _, table := range []string{"sessions", "shots", "hits", "reloads", "projectile_flights"} {
		assert.True(t, m.DB.Migrator().HasTable(table), table)
	}
}

func TestSetupWithoutConnection(t *testing.T) {
	assert.Error(t, NewManager(zerolog.Nop()).Setup())
}

func TestMemoryDatabasesAreIsolated(t *testing.T) {
	a, err := OpenMemory()
	require.NoError(t, err)
	b, err := OpenMemory()
	require.NoError(t, err)

	require.NoError(t, Migrate(a))
	require.NoError(t, a.Create(&model.Session{Name: "drill"}).Error)

	assert.False(t, b.Migrator().HasTable("sessions"))
}

func TestSnapshotReplacesPreviousFile(t *testing.T) {
	db, err := OpenMemory()
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	require.NoError(t, db.Create(&model.Session{Name: "drill"}).Error)

	out := filepath.Join(t.TempDir(), "nested", "dump.db")
	require.NoError(t, os.MkdirAll(filepath.Dir(out), 0o755))
	require.NoError(t, os.WriteFile(out, []byte("stale"), 0o644))
	require.NoError(t, os.WriteFile(out+".tmp", []byte("half"), 0o644))

	elapsed, err := Snapshot(db, out)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, elapsed.Nanoseconds(), int64(0))
	assert.NoFileExists(t, out+".tmp")

	dumped, err := OpenSqlite(out)
	require.NoError(t, err)
	var sessions []model.Session
	require.NoError(t, dumped.Find(&sessions).Error)
	require.Len(t, sessions, 1)
	assert.Equal(t, "drill", sessions[0].Name)
}

func TestSnapshotWithoutPath(t *testing.T) {
	_, err := Snapshot(nil, "")
	assert.ErrorIs(t, err, ErrNoDumpPath)
}

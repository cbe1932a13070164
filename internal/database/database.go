// Package database opens the gorm connections used by the sqlite and postgres
// storage backends and snapshots in-memory databases to disk.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fpsframework/firearm/internal/config"
	"github.com/fpsframework/firearm/internal/model"
	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrNoDumpPath is returned when a snapshot is requested without a target file.
var ErrNoDumpPath = errors.New("sqlite file path not set")

var memoryDBs atomic.Uint64

var (
	filePragmas = []string{
		"PRAGMA user_version = 1;",
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA busy_timeout = 5000;",
	}
	memoryPragmas = []string{
		"PRAGMA user_version = 1;",
		"PRAGMA journal_mode = MEMORY;",
		"PRAGMA synchronous = OFF;",
		"PRAGMA cache_size = -32000;",
		"PRAGMA temp_store = MEMORY;",
	}
)

// Manager owns one database connection pool.
type Manager struct {
	DB     *gorm.DB
	SqlDB  *sql.DB
	Logger zerolog.Logger
}

func NewManager(log zerolog.Logger) *Manager {
	return &Manager{Logger: log}
}

// ConnectPostgres opens and pings the configured Postgres database.
func (m *Manager) ConnectPostgres(cfg config.DBConfig) error {
	db, err := OpenPostgres(PostgresDSN(cfg))
	if err != nil {
		return fmt.Errorf("failed to connect to Postgres DB: %w", err)
	}
	if err := m.use(db); err != nil {
		return err
	}
	m.SqlDB.SetMaxOpenConns(10)
	m.Logger.Info().Str("host", cfg.Host).Str("database", cfg.Database).Msg("Connected to Postgres")
	return nil
}

// ConnectSqlite opens a sqlite file, or a private in-memory database when
// path is empty.
func (m *Manager) ConnectSqlite(path string) error {
	open := func() (*gorm.DB, error) { return OpenSqlite(path) }
	if path == "" {
		open = OpenMemory
	}
	db, err := open()
	if err != nil {
		return fmt.Errorf("failed to open SQLite DB: %w", err)
	}
	if err := m.use(db); err != nil {
		return err
	}
	m.Logger.Info().Str("path", path).Bool("memory", path == "").Msg("Using local SQLite DB")
	return nil
}

func (m *Manager) use(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to access sql interface: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("failed to validate connection: %w", err)
	}
	m.DB = db
	m.SqlDB = sqlDB
	return nil
}

// Setup migrates the recording schema.
func (m *Manager) Setup() error {
	if m.DB == nil {
		return errors.New("database not connected")
	}
	start := time.Now()
	if err := Migrate(m.DB); err != nil {
		return err
	}
	m.Logger.Info().Str("dialect", m.DB.Dialector.Name()).Dur("took", time.Since(start)).Msg("Database schema ready")
	return nil
}

func (m *Manager) Close() error {
	if m.SqlDB == nil {
		return nil
	}
	return m.SqlDB.Close()
}

// Migrate creates or updates the recording schema on db.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(model.DatabaseModels...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// PostgresDSN builds a keyword/value DSN. Values are quoted so passwords
// may contain spaces.
func PostgresDSN(cfg config.DBConfig) string {
	quote := func(v string) string {
		return "'" + strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(v) + "'"
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		quote(cfg.Host), quote(cfg.Port), quote(cfg.Username), quote(cfg.Password), quote(cfg.Database))
}

func gormConfig(batch int, prepare bool) *gorm.Config {
	return &gorm.Config{
		PrepareStmt:            prepare,
		SkipDefaultTransaction: true,
		CreateBatchSize:        batch,
		Logger:                 logger.Default.LogMode(logger.Silent),
	}
}

// OpenPostgres connects to Postgres.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), gormConfig(10000, false))
}

// OpenSqlite opens a sqlite file in WAL mode.
func OpenSqlite(path string) (*gorm.DB, error) {
	return openSqlite(path, filePragmas)
}

// OpenMemory opens a fresh in-memory database. Each call gets its own
// database; the pool is limited to one connection so the database lives as
// long as the pool.
func OpenMemory() (*gorm.DB, error) {
	dsn := fmt.Sprintf("file:firearm_mem_%d?mode=memory&cache=shared", memoryDBs.Add(1))
	db, err := openSqlite(dsn, memoryPragmas)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access sql interface: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

func openSqlite(dsn string, pragmas []string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), gormConfig(2000, true))
	if err != nil {
		return nil, err
	}
	for _, pragma := range pragmas {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("error setting %s: %w", strings.TrimSuffix(pragma, ";"), err)
		}
	}
	return db, nil
}

// Snapshot writes a consistent copy of db to path with VACUUM INTO. The
// copy is built next to path and renamed over it, so readers never see a
// partial file. It returns how long the snapshot took.
func Snapshot(db *gorm.DB, path string) (time.Duration, error) {
	if path == "" {
		return 0, ErrNoDumpPath
	}
	start := time.Now()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return 0, fmt.Errorf("error creating dump directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.Remove(tmp); err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("error removing stale snapshot: %w", err)
	}
	target := strings.ReplaceAll(tmp, "'", "''")
	if err := db.Exec("VACUUM INTO 'file:" + target + "';").Error; err != nil {
		return 0, fmt.Errorf("error writing snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return 0, fmt.Errorf("error replacing snapshot: %w", err)
	}
	return time.Since(start), nil
}

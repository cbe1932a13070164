// Package influx writes shot, hit and reload telemetry points to InfluxDB,
// falling back to a gzipped line-protocol file when the server is unreachable.
package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fpsframework/firearm/internal/config"
	"github.com/fpsframework/firearm/pkg/core"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"
)

// Measurement names
const (
	MeasurementShot   = "shot"
	MeasurementHit    = "hit"
	MeasurementReload = "reload"
)

// ErrDisabled is returned by Connect when influx.enabled is false.
var ErrDisabled = errors.New("influx is disabled")

// Manager handles InfluxDB connections and writes.
type Manager struct {
	cfg          config.InfluxConfig
	Client       influxdb2.Client
	Writer       influxdb2_api.WriteAPI
	IsValid      bool
	Logger       zerolog.Logger
	BackupPath   string
	backupFile   *os.File
	BackupWriter *gzip.Writer
	mu           sync.Mutex
}

// NewManager creates a new InfluxDB manager.
func NewManager(cfg config.InfluxConfig, log zerolog.Logger, backupPath string) *Manager {
	return &Manager{
		cfg:        cfg,
		Logger:     log,
		BackupPath: backupPath,
	}
}

// Connect establishes a connection to InfluxDB. When the server does not
// answer, points go to the backup file instead.
func (m *Manager) Connect(ctx context.Context) error {
	if !m.cfg.Enabled {
		return ErrDisabled
	}

	m.Client = influxdb2.NewClientWithOptions(
		fmt.Sprintf("%s://%s:%s", m.cfg.Protocol, m.cfg.Host, m.cfg.Port),
		m.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(2500).
			SetFlushInterval(1000),
	)

	// validate client connection health
	running, err := m.Client.Ping(ctx)
	if err != nil || !running {
		m.Logger.Info().Str("backupPath", m.BackupPath).
			Msg("Failed to initialize InfluxDB client, writing to backup file")
		return m.openBackup()
	}

	if err := m.setupOrganizationAndBucket(ctx); err != nil {
		return err
	}
	m.createWriter()
	m.IsValid = true
	m.Logger.Info().Str("bucket", m.cfg.Bucket).Msg("InfluxDB client initialized")
	return nil
}

func (m *Manager) openBackup() error {
	if m.BackupWriter != nil {
		return nil
	}
	if m.BackupPath == "" {
		return errors.New("influx unreachable and no backup path set")
	}
	file, err := os.OpenFile(m.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %w", err)
	}
	m.backupFile = file
	m.BackupWriter = gzip.NewWriter(file)
	return nil
}

func (m *Manager) setupOrganizationAndBucket(ctx context.Context) error {
	orgName := m.cfg.Org

	// ensure org exists
	influxOrg, err := m.Client.OrganizationsAPI().FindOrganizationByName(ctx, orgName)
	if err != nil {
		m.Logger.Info().Str("org", orgName).Msg("Organization not found, creating")
		influxOrg, err = m.Client.OrganizationsAPI().CreateOrganizationWithName(ctx, orgName)
		if err != nil {
			m.Logger.Error().Err(err).Str("org", orgName).Msg("Error creating organization")
			return fmt.Errorf("failed to create organization %s: %w", orgName, err)
		}
	}

	// ensure bucket exists with 90 day retention
	if _, err = m.Client.BucketsAPI().FindBucketByName(ctx, m.cfg.Bucket); err != nil {
		m.Logger.Info().Str("bucket", m.cfg.Bucket).Msg("Bucket not found, creating")

		rule := domain.RetentionRuleTypeExpire
		_, err = m.Client.BucketsAPI().CreateBucketWithName(ctx, influxOrg, m.cfg.Bucket, domain.RetentionRule{
			Type:         &rule,
			EverySeconds: 60 * 60 * 24 * 90, // 90 days
		})
		if err != nil {
			m.Logger.Error().Err(err).Str("bucket", m.cfg.Bucket).Msg("Error creating bucket")
			return fmt.Errorf("failed to create bucket %s: %w", m.cfg.Bucket, err)
		}
	}

	return nil
}

func (m *Manager) createWriter() {
	m.Writer = m.Client.WriteAPI(m.cfg.Org, m.cfg.Bucket)

	errorsCh := m.Writer.Errors()
	go func() {
		for writeErr := range errorsCh {
			m.Logger.Error().Err(writeErr).Str("bucket", m.cfg.Bucket).
				Msg("Error sending data to InfluxDB")
		}
	}()
}

// WritePoint writes a point to InfluxDB or backup file.
func (m *Manager) WritePoint(point *influxdb2_write.Point) error {
	if m.IsValid {
		m.Writer.WritePoint(point)
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.BackupWriter == nil {
		return errors.New("influxDB client not initialized and backup writer not available")
	}

	lineProtocol := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
	if !strings.HasSuffix(lineProtocol, "\n") {
		lineProtocol += "\n"
	}
	if _, err := m.BackupWriter.Write([]byte(lineProtocol)); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

// WriteShot records a shot point.
func (m *Manager) WriteShot(e *core.ShotEvent) error {
	return m.WritePoint(ShotPoint(e))
}

// WriteHit records a hit point.
func (m *Manager) WriteHit(e *core.HitEvent) error {
	return m.WritePoint(HitPoint(e))
}

// WriteReload records a reload phase point.
func (m *Manager) WriteReload(e *core.ReloadEvent) error {
	return m.WritePoint(ReloadPoint(e))
}

// Close flushes pending points and releases the client and backup file.
func (m *Manager) Close() error {
	if m.Writer != nil {
		m.Writer.Flush()
	}
	if m.Client != nil {
		m.Client.Close()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var errs []error
	if m.BackupWriter != nil {
		errs = append(errs, m.BackupWriter.Close())
		m.BackupWriter = nil
	}
	if m.backupFile != nil {
		errs = append(errs, m.backupFile.Close())
		m.backupFile = nil
	}
	return errors.Join(errs...)
}

func pointTime(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}

// ShotPoint builds the point for one shot.
func ShotPoint(e *core.ShotEvent) *influxdb2_write.Point {
	return influxdb2.NewPoint(MeasurementShot,
		map[string]string{
			"session":   fmt.Sprint(e.SessionID),
			"firearm":   e.FirearmID,
			"shooter":   e.ShooterID,
			"preset":    e.Preset,
			"fireMode":  e.FireMode,
			"mechanism": e.Mechanism,
		},
		map[string]any{
			"tick":          int64(e.Tick),
			"simTime":       e.SimTime,
			"shotIndex":     e.ShotIndex,
			"ammoRemaining": e.AmmoRemaining,
			"dirX":          e.Direction.X,
			"dirY":          e.Direction.Y,
			"dirZ":          e.Direction.Z,
		},
		pointTime(e.Time),
	)
}

// HitPoint builds the point for one hit.
func HitPoint(e *core.HitEvent) *influxdb2_write.Point {
	return influxdb2.NewPoint(MeasurementHit,
		map[string]string{
			"session":   fmt.Sprint(e.SessionID),
			"firearm":   e.FirearmID,
			"shooter":   e.ShooterID,
			"victim":    e.VictimID,
			"mechanism": e.Mechanism,
		},
		map[string]any{
			"tick":     int64(e.Tick),
			"simTime":  e.SimTime,
			"damage":   e.Damage,
			"distance": e.Distance,
			"killed":   e.Killed,
		},
		pointTime(e.Time),
	)
}

// ReloadPoint builds the point for one reload phase.
func ReloadPoint(e *core.ReloadEvent) *influxdb2_write.Point {
	return influxdb2.NewPoint(MeasurementReload,
		map[string]string{
			"session": fmt.Sprint(e.SessionID),
			"firearm": e.FirearmID,
			"phase":   string(e.Phase),
			"method":  e.Method,
		},
		map[string]any{
			"tick":         int64(e.Tick),
			"simTime":      e.SimTime,
			"ammoBefore":   e.AmmoBefore,
			"ammoAfter":    e.AmmoAfter,
			"reserveAfter": e.ReserveAfter,
		},
		pointTime(e.Time),
	)
}

// Command firearm_sim runs a range scenario script against the firearm
// simulation and records every shot, hit, reload and projectile flight.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fpsframework/firearm/internal/api"
	"github.com/fpsframework/firearm/internal/config"
	"github.com/fpsframework/firearm/internal/dispatcher"
	"github.com/fpsframework/firearm/internal/firearm"
	"github.com/fpsframework/firearm/internal/fx"
	"github.com/fpsframework/firearm/internal/influx"
	"github.com/fpsframework/firearm/internal/logging"
	"github.com/fpsframework/firearm/internal/monitor"
	intOtel "github.com/fpsframework/firearm/internal/otel"
	"github.com/fpsframework/firearm/internal/preset"
	"github.com/fpsframework/firearm/internal/recorder"
	"github.com/fpsframework/firearm/internal/scenario"
	"github.com/fpsframework/firearm/internal/sim"
	"github.com/fpsframework/firearm/internal/storage"
	"github.com/fpsframework/firearm/internal/util"
	"github.com/fpsframework/firearm/internal/worker"
	"github.com/fpsframework/firearm/pkg/core"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// BuildDate can be set at build time via ldflags
var (
	Version   = "0.0.1"
	BuildDate = "unknown"

	AppName = "firearm_sim"
)

func main() {
	flags := pflag.NewFlagSet(AppName, pflag.ExitOnError)
	configDir := flags.String("config-dir", ".", "directory containing "+config.FileName)
	flags.String("presets", "", "preset file or directory (overrides presets.path)")
	flags.String("storage", "", "storage backend: memory, sqlite, postgres or websocket (overrides storage.type)")
	flags.String("log-level", "", "log level (overrides logLevel)")
	console := flags.Bool("console", false, "log to stdout instead of a log file")
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <scenario script>\n", AppName)
		flags.PrintDefaults()
	}
	_ = flags.Parse(os.Args[1:])
	if flags.NArg() != 1 {
		flags.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, flags, *configDir, flags.Arg(0), *console); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func loadConfig(flags *pflag.FlagSet, configDir string) (bool, error) {
	found := true
	if err := config.Load(configDir); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return false, err
		}
		found = false
	}
	for key, flag := range map[string]string{
		"presets.path": "presets",
		"storage.type": "storage",
		"logLevel":     "log-level",
	} {
		if f := flags.Lookup(flag); f != nil && f.Changed {
			if err := viper.BindPFlag(key, f); err != nil {
				return found, fmt.Errorf("failed to bind flag %s: %w", flag, err)
			}
		}
	}
	return found, nil
}

func run(ctx context.Context, flags *pflag.FlagSet, configDir, scriptPath string, console bool) error {
	configFound, err := loadConfig(flags, configDir)
	if err != nil {
		return err
	}
	start := time.Now()
	level := viper.GetString("logLevel")

	// logging
	var logOut io.Writer = os.Stdout
	if !console {
		f, err := logging.OpenLogFile(viper.GetString("logsDir"), AppName, start)
		if err != nil {
			return err
		}
		defer f.Close()
		logOut = f
	}
	simCtx := sim.NewContext()
	slogManager := logging.NewSlogManager()
	logOpts := logging.Options{Level: level, Clock: simCtx}
	if !console {
		logOpts.File = logOut
	}
	if gl := config.GetGraylogConfig(); gl.Enabled {
		logOpts.GelfAddress = gl.Address
	}
	if err := slogManager.Setup(logOpts); err != nil {
		slogManager.Logger().Warn("Graylog disabled", "error", err)
	}
	defer func() { logErr(slogManager.Logger(), "Failed to close log shipping", slogManager.Close()) }()
	logger := slogManager.Logger()
	zl := logging.NewZerolog(logOut, level)

	logger.Info("Starting up", "version", Version, "buildDate", BuildDate)
	if !configFound {
		logger.Warn("Config file not found, using defaults", "configDir", configDir, "file", config.FileName)
	}

	otelCfg := config.GetOTelConfig()
	otelProvider := intOtel.New(intOtel.Config{
		Enabled:     otelCfg.Enabled,
		ServiceName: otelCfg.ServiceName,
		Logger:      logger,
	})
	defer func() {
		if err := otelProvider.Shutdown(context.Background()); err != nil {
			logger.Warn("OTel shutdown failed", "error", err)
		}
	}()

	// inputs
	lib, err := preset.Load(viper.GetString("presets.path"))
	if err != nil {
		return fmt.Errorf("failed to load presets: %w", err)
	}
	src, err := os.ReadFile(scriptPath)
	if err != nil {
		return fmt.Errorf("failed to read scenario: %w", err)
	}
	script, err := scenario.Parse(string(src))
	if err != nil {
		return fmt.Errorf("failed to parse scenario %s: %w", scriptPath, err)
	}
	logger.Info("Loaded inputs", "presets", len(lib.Presets()), "commands", len(script.Commands))

	simCfg := config.GetSimulationConfig()
	var policy firearm.FireRatePolicy
	if err := policy.UnmarshalText([]byte(simCfg.FireRatePolicy)); err != nil {
		return fmt.Errorf("simulation.fireRatePolicy: %w", err)
	}

	// recording pipeline
	eventDispatcher, err := dispatcher.New(logging.NewDispatcherLogger(zl))
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}

	storageCfg := config.GetStorageConfig()
	backend, err := createStorageBackend(storageCfg, logger, zl, start)
	if err != nil {
		return err
	}
	if err := backend.Init(); err != nil {
		return fmt.Errorf("failed to initialize %s storage: %w", storageCfg.Type, err)
	}
	defer func() { logErr(logger, "Failed to close storage backend", backend.Close()) }()

	deps := worker.Dependencies{Logger: logger, BufferSize: viper.GetInt("dispatcher.bufferSize")}
	influxManager := influx.NewManager(config.GetInfluxConfig(), zl,
		filepath.Join(viper.GetString("logsDir"), fmt.Sprintf("%s_influx_%s.lp.gz", AppName, start.Format("20060102_150405"))))
	switch err := influxManager.Connect(ctx); {
	case errors.Is(err, influx.ErrDisabled):
	case err != nil:
		logger.Warn("InfluxDB telemetry disabled", "error", err)
	default:
		deps.Telemetry = influxManager
		defer func() { logErr(logger, "Failed to close InfluxDB client", influxManager.Close()) }()
	}
	worker.NewManager(deps, backend).RegisterHandlers(eventDispatcher)

	session := &core.Session{
		Name:      sessionName(script, scriptPath),
		StartTime: start,
		TickRate:  simCfg.TickRate,
		Seed:      simCfg.Seed,
		Tag:       viper.GetString("defaultTag"),
	}
	if err := backend.StartSession(session); err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	simCtx.SetSession(session)
	logger.Info("Session started", "id", session.ID, "name", session.Name, "storage", storageCfg.Type)

	rec := recorder.New(eventDispatcher, simCtx, logger)
	if monCfg := config.GetMonitorConfig(); monCfg.Enabled {
		monDeps := monitor.Dependencies{
			Logger:     logger,
			Session:    simCtx.GetSession,
			Stats:      rec.Stats,
			Metrics:    otelProvider.Snapshot,
			StatusPath: filepath.Join(viper.GetString("logsDir"), "status.json"),
			Interval:   monCfg.Interval,
		}
		monDeps.Topics = eventDispatcher.Stats
		monDeps.Pending = eventDispatcher.Pending
		if p, ok := backend.(interface{ Pending() int }); ok {
			monDeps.Pending = func() int { return eventDispatcher.Pending() + p.Pending() }
		}
		statusMonitor := monitor.NewService(monDeps)
		statusMonitor.Start()
		defer statusMonitor.Stop()
	}
	effects := fx.NewRecorder()
	runner, err := scenario.NewRunner(scenario.Dependencies{
		Library:  lib,
		Context:  simCtx,
		Effects:  effects,
		Observer: rec,
		TickRate: simCfg.TickRate,
		Policy:   policy,
		Seed:     simCfg.Seed,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	report, runErr := runner.Run(ctx, script)

	// drain queued records before closing the session
	eventDispatcher.Close()
	if err := backend.EndSession(); err != nil {
		logger.Error("Failed to end session", "error", err)
	}
	if runErr != nil {
		return fmt.Errorf("scenario failed: %w", runErr)
	}

	stats := rec.Stats()
	logger.Info("Scenario finished",
		"ticks", report.Ticks, "simTime", report.SimTime,
		"shots", stats.Shots, "hits", stats.Hits, "kills", stats.Kills,
		"reloads", stats.Reloads, "projectiles", stats.Projectiles, "failed", stats.Failed,
		"decals", effects.Count(fx.KindDecal))
	if up, ok := backend.(storage.Uploadable); ok && up.GetExportedFilePath() != "" {
		meta := up.GetExportMetadata()
		logger.Info("Recording exported", "path", up.GetExportedFilePath(),
			"duration", meta.Duration, "shots", meta.Shots, "hits", meta.Hits)
		if apiCfg := config.GetAPIConfig(); apiCfg.Upload {
			uploadRecording(ctx, logger, apiCfg, up)
		}
	}
	printReport(os.Stdout, session, report)
	return nil
}

// uploadRecording sends the exported file to the recording server. Failures
// are logged; the local file is kept either way.
func uploadRecording(ctx context.Context, logger *slog.Logger, cfg config.APIConfig, up storage.Uploadable) {
	client := api.New(cfg.ServerURL, cfg.APIKey)
	if err := client.Healthcheck(ctx); err != nil {
		logger.Warn("Recording server unreachable, upload skipped", "url", cfg.ServerURL, "error", err)
		return
	}
	if err := client.Upload(ctx, up.GetExportedFilePath(), up.GetExportMetadata()); err != nil {
		logger.Error("Failed to upload recording", "path", up.GetExportedFilePath(), "error", err)
		return
	}
	logger.Info("Recording uploaded", "url", cfg.ServerURL, "path", up.GetExportedFilePath())
}

// sessionName prefers the script's session command, then the script file name.
func sessionName(s *scenario.Script, path string) string {
	if name := s.SessionName(); name != "" {
		return name
	}
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

func printReport(w io.Writer, session *core.Session, rep *scenario.Report) {
	fmt.Fprintf(w, "%s: %d ticks, %.3fs\n\n", session.Name, rep.Ticks, rep.SimTime)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FIREARM\tPRESET\tSHOTS\tHITS\tRELOADS\tMAGAZINE\tRESERVE")
	for _, f := range rep.Firearms {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%d\n",
			f.ID, util.FormatWeaponText(f.Preset, "", nil), f.Shots, f.Hits, f.Reloads, f.RemainingAmmo, f.ReserveAmmo)
	}
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "TARGET\tHEALTH\tMAX\tDEAD")
	for _, t := range rep.Targets {
		fmt.Fprintf(tw, "%s\t%.1f\t%.1f\t%t\n", t.ID, t.Health, t.Max, t.Dead)
	}
	_ = tw.Flush()
}

// logErr is used for deferred closes whose error only needs logging.
func logErr(logger *slog.Logger, msg string, err error) {
	if err != nil {
		logger.Error(msg, "error", err)
	}
}

package main

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fpsframework/firearm/internal/config"
	"github.com/fpsframework/firearm/internal/database"
	"github.com/fpsframework/firearm/internal/storage"
	gormstorage "github.com/fpsframework/firearm/internal/storage/gorm"
	"github.com/fpsframework/firearm/internal/storage/memory"
	sqlitestorage "github.com/fpsframework/firearm/internal/storage/sqlite"
	"github.com/fpsframework/firearm/internal/storage/websocket"
	"github.com/rs/zerolog"
)

func createStorageBackend(storageCfg config.StorageConfig, logger *slog.Logger, zl zerolog.Logger, start time.Time) (storage.Backend, error) {
	switch storageCfg.Type {
	case "postgres":
		dbManager := database.NewManager(zl)
		if err := dbManager.ConnectPostgres(config.GetDBConfig()); err != nil {
			return nil, err
		}
		logger.Info("Postgres storage backend initialized")
		return gormstorage.New(gormstorage.Dependencies{
			DB:            dbManager.DB,
			Logger:        logger,
			WriteInterval: storageCfg.Gorm.WriteInterval,
			BatchSize:     storageCfg.Gorm.BatchSize,
		}), nil

	case "sqlite":
		dumpPath := storageCfg.SQLite.Path
		if dumpPath == "" {
			dumpPath = filepath.Join(storageCfg.Memory.OutputDir, fmt.Sprintf("%s_%s.db", AppName, start.Format("20060102_150405")))
		}
		backend, err := sqlitestorage.New(sqlitestorage.Config{
			DumpInterval:  storageCfg.SQLite.DumpInterval,
			DumpPath:      dumpPath,
			WriteInterval: storageCfg.Gorm.WriteInterval,
			BatchSize:     storageCfg.Gorm.BatchSize,
		}, nil, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		logger.Info("SQLite storage backend initialized", "dumpPath", dumpPath)
		return backend, nil

	case "websocket":
		logger.Info("WebSocket storage backend initialized", "url", storageCfg.WebSocket.URL)
		return websocket.New(websocket.Config{
			URL:    storageCfg.WebSocket.URL,
			Secret: storageCfg.WebSocket.Secret,
		}, logger), nil

	case "", "memory":
		logger.Info("Memory storage backend initialized", "outputDir", storageCfg.Memory.OutputDir)
		return memory.New(storageCfg.Memory), nil

	default:
		return nil, fmt.Errorf("unknown storage type %q", storageCfg.Type)
	}
}

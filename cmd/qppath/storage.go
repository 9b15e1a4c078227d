package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/qppath/qppath/internal/config"
	"github.com/qppath/qppath/internal/database"
	"github.com/qppath/qppath/internal/influx"
	"github.com/qppath/qppath/internal/storage"
	gormstorage "github.com/qppath/qppath/internal/storage/gorm"
	influxstorage "github.com/qppath/qppath/internal/storage/influx"
	"github.com/qppath/qppath/internal/storage/memory"
	sqlitestorage "github.com/qppath/qppath/internal/storage/sqlite"
	"github.com/qppath/qppath/internal/storage/websocket"
	"github.com/rs/zerolog"
)

// newStorageBackend builds the backend selected by cfg.Type. The caller
// calls Init.
func newStorageBackend(ctx context.Context, cfg config.StorageConfig, log zerolog.Logger, logger *slog.Logger) (storage.Backend, error) {
	switch cfg.Type {
	case "none":
		return storage.Nop{}, nil

	case "sqlite":
		backend, err := sqlitestorage.New(cfg.SQLite, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		return backend, nil

	case "postgres":
		db := database.NewManager(log)
		if err := db.Connect(cfg.Postgres, cfg.SQLite.Path); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if db.ShouldSaveLocal {
			// Postgres unreachable: record to SQLite with periodic dumps instead
			_ = db.Close()
			log.Warn().Str("path", cfg.SQLite.Path).Msg("Postgres unavailable, recording to SQLite")
			return newStorageBackend(ctx, config.StorageConfig{Type: "sqlite", SQLite: cfg.SQLite}, log, logger)
		}
		return gormstorage.New(db), nil

	case "influx":
		return influxstorage.New(ctx, influx.NewManager(log, cfg.Influx)), nil

	case "memory":
		return memory.New(cfg.Memory), nil

	case "websocket":
		return websocket.New(cfg.WebSocket, logger.With("component", "websocket")), nil

	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownStorage, cfg.Type)
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/qppath/qppath/internal/config"
	"github.com/qppath/qppath/internal/logging"
	"github.com/qppath/qppath/internal/monitor"
	intOtel "github.com/qppath/qppath/internal/otel"
	"github.com/qppath/qppath/internal/planner"
	"github.com/qppath/qppath/internal/storage"
	"github.com/qppath/qppath/internal/worker"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// app holds everything a command needs for one run.
type app struct {
	Logger    *slog.Logger
	Metrics   *intOtel.Provider
	Backend   storage.Backend
	Recorder  *worker.Recorder
	Monitor   *monitor.Service
	Optimizer *planner.Optimizer

	zlog    zerolog.Logger
	closers []io.Closer
}

// newApp loads configuration from dir and wires logging, metrics, storage,
// the recorder and an initialized optimizer. A missing config file is not
// an error; defaults apply.
func newApp(ctx context.Context, dir string, stderr io.Writer) (*app, error) {
	a := &app{}
	if err := a.setup(ctx, dir, stderr); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) setup(ctx context.Context, dir string, stderr io.Writer) error {
	sessionStart := time.Now()

	if err := config.Load(dir); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return err
		}
	}

	level := config.GetString("logLevel")
	logsDir := config.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}
	logFile, err := os.Create(logging.LogFilePath(logsDir, AppName, sessionStart))
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}
	a.closers = append(a.closers, logFile)

	session := sessionStart.Format("20060102_150405")
	var (
		slogOpts = []logging.Option{
			logging.WithConsole(stderr),
			logging.WithContextProvider(func() []slog.Attr {
				return []slog.Attr{slog.String("session", session)}
			}),
		}
		rawWriters []io.Writer
		graylogErr error
	)
	if gl := config.GetGraylogConfig(); gl.Enabled {
		gw, err := logging.NewGraylogWriter(gl.Address)
		if err != nil {
			graylogErr = err
		} else {
			a.closers = append(a.closers, gw)
			slogOpts = append(slogOpts, logging.WithGraylog(gw))
			rawWriters = append(rawWriters, gw)
		}
	}

	logManager := logging.NewSlogManager()
	logManager.Setup(logFile, level, slogOpts...)
	a.Logger = logManager.Logger()
	a.zlog = logging.NewZerolog(level, nil, logFile, rawWriters...).
		With().Str("component", "storage").Logger()
	if graylogErr != nil {
		a.Logger.Warn("Graylog disabled", "error", graylogErr)
	}

	if a.Metrics, err = a.setupMetrics(); err != nil {
		return err
	}

	storageCfg := config.GetStorageConfig()
	if err := storageCfg.Validate(); err != nil {
		return fmt.Errorf("invalid storage config: %w", err)
	}
	backend, err := newStorageBackend(ctx, storageCfg, a.zlog, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create storage backend: %w", err)
	}
	a.Backend = backend
	if err := backend.Init(); err != nil {
		return fmt.Errorf("failed to initialize %s storage: %w", storageCfg.Type, err)
	}
	a.Logger.Info("Storage backend initialized", "type", storageCfg.Type)

	a.Recorder, err = worker.NewRecorder(backend, logging.NewZerologAdapter(a.zlog),
		worker.WithInterval(storageCfg.FlushInterval),
		worker.WithCapacity(storageCfg.QueueCapacity),
		worker.WithMeterProvider(a.Metrics.MeterProvider()),
	)
	if err != nil {
		return fmt.Errorf("failed to create recorder: %w", err)
	}
	a.Recorder.Start(ctx)

	if statusFile := config.GetString("statusFile"); statusFile != "" {
		a.Monitor = monitor.NewService(a.Recorder, statusFile, config.GetDuration("statusInterval"), a.Logger)
		if err := a.Monitor.Start(); err != nil {
			return err
		}
	}

	a.Optimizer, err = planner.NewOptimizer(a.Logger,
		planner.WithSolverConfig(config.GetSolverConfig()),
		planner.WithMeterProvider(a.Metrics.MeterProvider()),
		planner.WithRecorder(a.Recorder),
	)
	if err != nil {
		return fmt.Errorf("failed to create optimizer: %w", err)
	}
	if err := a.Optimizer.Init(config.GetPlannerConfig()); err != nil {
		return err
	}
	return nil
}

func (a *app) setupMetrics() (*intOtel.Provider, error) {
	cfg := config.GetOTelConfig()
	var w io.Writer
	if cfg.Enabled && cfg.MetricsFile != "" {
		f, err := os.Create(cfg.MetricsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to create metrics file: %w", err)
		}
		a.closers = append(a.closers, f)
		w = f
	}

	p, err := intOtel.New(intOtel.Config{
		Enabled:        cfg.Enabled,
		ServiceName:    cfg.ServiceName,
		ExportInterval: cfg.ExportInterval,
		MetricsWriter:  w,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up metrics: %w", err)
	}
	if p.Enabled() {
		a.Logger.Info("Metrics enabled", "file", cfg.MetricsFile)
	}
	return p, nil
}

// Close drains the recorder, then closes storage, metrics and log outputs.
func (a *app) Close() {
	if a.Recorder != nil {
		a.Recorder.Stop()
	}
	if a.Monitor != nil {
		a.Monitor.Stop()
	}
	if a.Backend != nil {
		if err := a.Backend.Close(); err != nil {
			a.Logger.Error("Failed to close storage backend", "error", err)
		}
		if exp, ok := a.Backend.(storage.Exporter); ok && exp.ExportedFilePath() != "" {
			a.Logger.Info("Cycles exported", "path", exp.ExportedFilePath())
		}
	}
	if a.Metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.Metrics.Shutdown(ctx); err != nil {
			a.Logger.Error("Failed to shut down metrics", "error", err)
		}
		cancel()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i].Close()
	}
	a.closers = nil
}

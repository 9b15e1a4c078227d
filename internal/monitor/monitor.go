// Package monitor periodically writes the recorder's queue and write
// statistics to a status file.
package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// DefaultInterval is used when no interval is configured.
const DefaultInterval = time.Second

// StatsSource exposes the counters reported in the status file.
// *worker.Recorder implements it.
type StatsSource interface {
	Pending() int
	Written() uint64
	Failed() uint64
	Dropped() uint64
	LastFlushDuration() time.Duration
	LastWriteDuration() time.Duration
}

// Status is one snapshot of the recorder.
type Status struct {
	Time                time.Time `json:"time"`
	Pending             int       `json:"pending"`
	Written             uint64    `json:"written"`
	Failed              uint64    `json:"failed"`
	Dropped             uint64    `json:"dropped"`
	LastFlushDurationMs float64   `json:"lastFlushDurationMs"`
	LastWriteDurationMs float64   `json:"lastWriteDurationMs"`
}

// Service manages status monitoring
type Service struct {
	source   StatsSource
	path     string
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time

	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a monitor writing source's status to path every interval.
func NewService(source StatsSource, path string, interval time.Duration, logger *slog.Logger) *Service {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		source:   source,
		path:     path,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Status returns the current recorder status.
func (s *Service) Status() Status {
	return Status{
		Time:                s.now(),
		Pending:             s.source.Pending(),
		Written:             s.source.Written(),
		Failed:              s.source.Failed(),
		Dropped:             s.source.Dropped(),
		LastFlushDurationMs: durationMs(s.source.LastFlushDuration()),
		LastWriteDurationMs: durationMs(s.source.LastWriteDuration()),
	}
}

func durationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// writeStatus replaces the content of f with the current status.
func (s *Service) writeStatus(f *os.File) error {
	data, err := json.MarshalIndent(s.Status(), "", "  ")
	if err != nil {
		return err
	}
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.Seek(0, 0); err != nil {
		return err
	}
	_, err = f.Write(append(data, '\n'))
	return err
}

// Start creates the status file and starts the monitor goroutine.
// Calling Start on a running monitor is a no-op.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}

	statusFile, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("error creating status file: %w", err)
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})

	go s.run(statusFile, s.stopChan, s.done)
	return nil
}

func (s *Service) run(statusFile *os.File, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer statusFile.Close()
	s.logger.Debug("Starting status monitor", "path", s.path, "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			// final snapshot so the file reflects the drained recorder
			if err := s.writeStatus(statusFile); err != nil {
				s.logger.Error("Error writing status file", "error", err)
			}
			return
		case <-ticker.C:
			if err := s.writeStatus(statusFile); err != nil {
				s.logger.Error("Error writing status file", "error", err)
			}
		}
	}
}

// Stop stops the status monitor after writing a last snapshot.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()
	<-done
}

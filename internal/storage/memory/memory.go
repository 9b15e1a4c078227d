// Package memory keeps planning cycles in memory and exports them as JSON on Close.
package memory

import (
	"sync"
	"time"

	"github.com/qppath/qppath/internal/config"
	"github.com/qppath/qppath/internal/storage"
	"github.com/qppath/qppath/pkg/core"
)

// Backend stores cycle records in memory and exports to JSON
type Backend struct {
	cfg       config.MemoryConfig
	startedAt time.Time
	records   []core.CycleRecord
	closed    bool

	lastExportPath string
	now            func() time.Time
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg: cfg,
		now: time.Now,
	}
}

// Init starts a new recording session
func (b *Backend) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.startedAt = b.now()
	b.records = nil
	b.closed = false
	b.lastExportPath = ""
	return nil
}

// Close exports the session if an output directory is configured
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	if b.cfg.OutputDir == "" {
		return nil
	}
	return b.exportJSON()
}

// RecordCycle stores a copy of the record
func (b *Backend) RecordCycle(r *core.CycleRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return storage.ErrClosed
	}
	b.records = append(b.records, cloneRecord(r))
	return nil
}

// Records returns a copy of everything recorded so far, in arrival order
func (b *Backend) Records() []core.CycleRecord {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]core.CycleRecord, len(b.records))
	for i := range b.records {
		out[i] = cloneRecord(&b.records[i])
	}
	return out
}

// ExportedFilePath returns the path of the last export, empty before Close
func (b *Backend) ExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

func cloneRecord(r *core.CycleRecord) core.CycleRecord {
	c := *r
	if r.Corridor.Intervals != nil {
		c.Corridor.Intervals = append([]core.Interval(nil), r.Corridor.Intervals...)
	}
	if r.Points != nil {
		c.Points = append([]core.FrenetPoint(nil), r.Points...)
	}
	return c
}

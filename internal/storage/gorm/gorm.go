// Package gormstorage implements storage.Backend on top of a GORM database
// managed by internal/database. Each cycle becomes a planning_cycles row
// with its corridor stations as child rows.
package gormstorage

import (
	"fmt"
	"sync"
	"time"

	"github.com/qppath/qppath/internal/database"
	"github.com/qppath/qppath/internal/model"
	"github.com/qppath/qppath/internal/model/convert"
	"github.com/qppath/qppath/internal/storage"
	"github.com/qppath/qppath/pkg/core"
)

// Backend writes cycles through a database.Manager.
type Backend struct {
	db *database.Manager

	mu                sync.Mutex
	lastWriteDuration time.Duration
	written           int
}

// New creates a GORM backend. The manager must already be connected.
func New(db *database.Manager) *Backend {
	return &Backend{db: db}
}

// Init migrates the schema.
func (b *Backend) Init() error {
	if b.db == nil || b.db.DB == nil {
		return fmt.Errorf("gorm backend: database not connected")
	}
	return b.db.Setup()
}

// Close closes the database connection.
func (b *Backend) Close() error {
	return b.db.Close()
}

// RecordCycle converts and inserts one cycle.
func (b *Backend) RecordCycle(r *core.CycleRecord) error {
	if !b.db.IsValid {
		return storage.ErrClosed
	}

	row, err := convert.CycleToModel(*r)
	if err != nil {
		return fmt.Errorf("failed to convert cycle %d: %w", r.Cycle, err)
	}

	start := time.Now()
	if err := b.db.DB.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert cycle %d: %w", r.Cycle, err)
	}

	b.mu.Lock()
	b.lastWriteDuration = time.Since(start)
	b.written++
	b.mu.Unlock()
	return nil
}

// LastWriteDuration returns how long the last insert took.
func (b *Backend) LastWriteDuration() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastWriteDuration
}

// Written returns the number of cycles inserted.
func (b *Backend) Written() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.written
}

// Cycles loads stored cycles ordered by cycle number. A limit of zero or
// less loads every cycle.
func (b *Backend) Cycles(limit int) ([]core.CycleRecord, error) {
	if b.db == nil || b.db.DB == nil {
		return nil, fmt.Errorf("gorm backend: database not connected")
	}

	var rows []model.PlanningCycle
	q := b.db.DB.Preload("Stations").Order("cycle ASC").Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load cycles: %w", err)
	}

	out := make([]core.CycleRecord, 0, len(rows))
	for i := range rows {
		r, err := convert.ModelToCycle(rows[i])
		if err != nil {
			return nil, fmt.Errorf("cycle row %d: %w", rows[i].ID, err)
		}
		out = append(out, r)
	}
	return out, nil
}

// Manager exposes the underlying database manager.
func (b *Backend) Manager() *database.Manager {
	return b.db
}

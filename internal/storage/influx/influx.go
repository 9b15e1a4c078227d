// Package influxstorage implements storage.Backend by writing one InfluxDB
// point per planning cycle.
package influxstorage

import (
	"context"
	"fmt"

	"github.com/qppath/qppath/internal/influx"
	"github.com/qppath/qppath/internal/storage"
	"github.com/qppath/qppath/pkg/core"
)

// Backend forwards cycles to an influx.Manager.
type Backend struct {
	mgr    *influx.Manager
	ctx    context.Context
	closed bool
	backup bool
}

// New creates an InfluxDB backend. Init connects the manager.
func New(ctx context.Context, mgr *influx.Manager) *Backend {
	return &Backend{mgr: mgr, ctx: ctx}
}

// Init connects to the server or opens the backup file.
func (b *Backend) Init() error {
	if err := b.mgr.Connect(b.ctx); err != nil {
		return fmt.Errorf("influx backend: %w", err)
	}
	b.closed = false
	b.backup = !b.mgr.IsValid
	return nil
}

// Close flushes and releases the manager.
func (b *Backend) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	return b.mgr.Close()
}

// RecordCycle writes one point.
func (b *Backend) RecordCycle(r *core.CycleRecord) error {
	if b.closed {
		return storage.ErrClosed
	}
	return b.mgr.WriteCycle(r)
}

// ExportedFilePath returns the backup file when the server was unreachable.
func (b *Backend) ExportedFilePath() string {
	if !b.backup {
		return ""
	}
	return b.mgr.BackupPath
}

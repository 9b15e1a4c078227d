// Package storage defines where finished planning cycles are written.
package storage

import (
	"errors"
	"time"

	"github.com/qppath/qppath/pkg/core"
)

// ErrClosed is returned when a cycle is recorded after Close.
var ErrClosed = errors.New("storage backend closed")

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// RecordCycle persists one finished cycle. The record must not be
	// modified by the backend.
	RecordCycle(r *core.CycleRecord) error
}

// Exporter is an optional interface for backends that produce a file on Close.
type Exporter interface {
	ExportedFilePath() string
}

// WriteDurationProvider is an optional interface that backends can implement
// to expose their last write duration for monitoring.
type WriteDurationProvider interface {
	LastWriteDuration() time.Duration
}

// Nop discards every record. It backs the "none" storage type.
type Nop struct{}

func (Nop) Init() error                         { return nil }
func (Nop) Close() error                        { return nil }
func (Nop) RecordCycle(*core.CycleRecord) error { return nil }

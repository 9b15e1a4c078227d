// Package websocket streams planning cycles to a live viewer over a WebSocket.
package websocket

import (
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/qppath/qppath/internal/config"
	"github.com/qppath/qppath/internal/storage"
	"github.com/qppath/qppath/pkg/core"
)

// ErrNotConnected is returned when a cycle is recorded before Init.
var ErrNotConnected = errors.New("websocket backend not connected")

// Backend sends every recorded cycle as a "cycle" message inside a
// start_session/end_session pair. It implements storage.Backend.
type Backend struct {
	cfg    config.WebSocketConfig
	logger *slog.Logger
	conn   *connection
	now    func() time.Time

	session string
	sent    atomic.Uint64
	closed  atomic.Bool

	reconnectBackoff time.Duration
}

// New creates a new WebSocket storage backend.
func New(cfg config.WebSocketConfig, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Init connects to the server and waits for the session to be acknowledged.
func (b *Backend) Init() error {
	started := b.now().UTC()
	b.session = b.cfg.Session
	if b.session == "" {
		b.session = "qppath-" + started.Format("20060102T150405Z")
	}

	conn := newConnection(b.logger, b.reconnectBackoff)
	if err := conn.dial(b.cfg.URL, b.cfg.Secret); err != nil {
		return err
	}

	data, err := marshalEnvelope(TypeStartSession, StartSessionPayload{Session: b.session, StartedAt: started})
	if err != nil {
		_ = conn.close()
		return err
	}
	conn.setStartMessage(data)
	if err := conn.sendAndWait(data, TypeStartSession, ackTimeout); err != nil {
		_ = conn.close()
		return err
	}

	b.conn = conn
	b.logger.Info("WebSocket session started", "url", b.cfg.URL, "session", b.session)
	return nil
}

// RecordCycle queues r for sending. It fails fast when the send buffer is full.
func (b *Backend) RecordCycle(r *core.CycleRecord) error {
	if b.closed.Load() {
		return storage.ErrClosed
	}
	if b.conn == nil {
		return ErrNotConnected
	}
	data, err := marshalEnvelope(TypeCycle, r)
	if err != nil {
		return err
	}
	if err := b.conn.send(data); err != nil {
		return err
	}
	b.sent.Add(1)
	return nil
}

// Sent returns the number of cycles queued since Init.
func (b *Backend) Sent() uint64 {
	return b.sent.Load()
}

// Close ends the session, waiting for the server to acknowledge it, and
// disconnects.
func (b *Backend) Close() error {
	if b.closed.Swap(true) || b.conn == nil {
		return nil
	}

	var endErr error
	data, err := marshalEnvelope(TypeEndSession, EndSessionPayload{Session: b.session, Cycles: b.sent.Load()})
	if err == nil {
		endErr = b.conn.sendAndWait(data, TypeEndSession, ackTimeout)
	} else {
		endErr = err
	}
	if endErr != nil {
		b.logger.Warn("WebSocket session not acknowledged", "session", b.session, "error", endErr)
	}
	return errors.Join(endErr, b.conn.close())
}

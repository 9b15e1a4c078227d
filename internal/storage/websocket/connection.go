package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
)

const (
	sendChSize     = 4096
	ackChSize      = 16
	maxReconnect   = 10
	maxBackoff     = 30 * time.Second
	writeWait      = 10 * time.Second
	ackTimeout     = 10 * time.Second
	defaultBackoff = time.Second
)

var (
	errSendBufferFull = errors.New("websocket send buffer full")
	errConnClosed     = errors.New("websocket connection closed")
)

// connection owns one live WebSocket at a time. Each attached socket gets
// its own reader and a single writer; both stop when the socket is lost.
type connection struct {
	mu       sync.Mutex
	conn     *ws.Conn
	lostCh   chan struct{} // closed when conn is abandoned
	writerCh chan struct{} // closed when conn's writer exits
	closed   bool

	sendCh chan []byte
	ackCh  chan AckMessage
	done   chan struct{}

	wsURL   string
	secret  string
	backoff time.Duration

	// replayed first on every reconnect
	startMsg []byte

	logger *slog.Logger
}

func newConnection(logger *slog.Logger, backoff time.Duration) *connection {
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	return &connection{
		sendCh:  make(chan []byte, sendChSize),
		ackCh:   make(chan AckMessage, ackChSize),
		done:    make(chan struct{}),
		backoff: backoff,
		logger:  logger,
	}
}

func (c *connection) dial(rawURL, secret string) error {
	c.wsURL = rawURL
	c.secret = secret

	conn, err := c.dialOnce()
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.attach(conn)
	c.mu.Unlock()
	return nil
}

func (c *connection) dialOnce() (*ws.Conn, error) {
	u, err := url.Parse(c.wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket URL: %w", err)
	}
	if c.secret != "" {
		q := u.Query()
		q.Set("secret", c.secret)
		u.RawQuery = q.Encode()
	}

	conn, _, err := ws.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

// attach makes conn the live socket and starts its loops. c.mu must be held.
func (c *connection) attach(conn *ws.Conn) {
	c.conn = conn
	c.lostCh = make(chan struct{})
	c.writerCh = make(chan struct{})
	go c.writeLoop(conn, c.lostCh, c.writerCh)
	go c.readLoop(conn)
}

// lost abandons conn and starts reconnecting. Only the first caller for a
// given socket has any effect.
func (c *connection) lost(conn *ws.Conn, err error) {
	c.mu.Lock()
	if c.closed || c.conn != conn {
		c.mu.Unlock()
		return
	}
	close(c.lostCh)
	writer := c.writerCh
	c.conn = nil
	c.mu.Unlock()

	_ = conn.Close()
	c.logger.Warn("WebSocket connection lost", "error", err)
	go c.reconnect(writer)
}

func (c *connection) writeLoop(conn *ws.Conn, lost <-chan struct{}, exited chan<- struct{}) {
	defer close(exited)
	for {
		select {
		case <-c.done:
			return
		case <-lost:
			return
		case data := <-c.sendCh:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.lost(conn, err)
				return
			}
			if err := conn.WriteMessage(ws.TextMessage, data); err != nil {
				c.lost(conn, err)
				return
			}
		}
	}
}

// readLoop routes acks to ackCh and ignores anything else.
func (c *connection) readLoop(conn *ws.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				c.lost(conn, err)
			}
			return
		}

		var ack AckMessage
		if err := json.Unmarshal(message, &ack); err != nil || ack.Type != TypeAck {
			c.logger.Debug("Non-ack message received", "raw", string(message))
			continue
		}
		select {
		case c.ackCh <- ack:
		default:
			c.logger.Debug("Ack channel full, dropping", "for", ack.For)
		}
	}
}

// reconnect waits for the old writer to exit, dials with exponential
// backoff, replays the start message on the new socket and then resumes
// the loops.
func (c *connection) reconnect(oldWriter <-chan struct{}) {
	select {
	case <-c.done:
		return
	case <-oldWriter:
	}

	backoff := c.backoff
	for attempt := 1; attempt <= maxReconnect; attempt++ {
		select {
		case <-c.done:
			return
		case <-time.After(backoff):
		}

		c.logger.Info("Reconnecting to WebSocket", "attempt", attempt)
		conn, err := c.dialOnce()
		if err != nil {
			c.logger.Warn("Reconnect dial failed", "attempt", attempt, "error", err)
			backoff = min(backoff*2, maxBackoff)
			continue
		}

		c.mu.Lock()
		start := c.startMsg
		c.mu.Unlock()
		if start != nil {
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(ws.TextMessage, start); err != nil {
				c.logger.Warn("Failed to replay start message", "error", err)
				_ = conn.Close()
				continue
			}
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			_ = conn.Close()
			return
		}
		c.attach(conn)
		c.mu.Unlock()
		c.logger.Info("WebSocket reconnected", "attempt", attempt)
		return
	}

	c.logger.Error("WebSocket reconnect failed after max attempts", "maxAttempts", maxReconnect)
}

func (c *connection) setStartMessage(data []byte) {
	c.mu.Lock()
	c.startMsg = data
	c.mu.Unlock()
}

// send queues data for the writer without blocking.
func (c *connection) send(data []byte) error {
	select {
	case <-c.done:
		return errConnClosed
	default:
	}
	select {
	case c.sendCh <- data:
		return nil
	default:
		return errSendBufferFull
	}
}

// sendAndWait queues data and blocks until the server acknowledges ackFor.
// Messages are written in order, so the ack also covers everything queued
// before data.
func (c *connection) sendAndWait(data []byte, ackFor string, timeout time.Duration) error {
	if err := c.send(data); err != nil {
		return err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case ack := <-c.ackCh:
			if ack.For == ackFor {
				return nil
			}
		case <-timer.C:
			return fmt.Errorf("timeout waiting for ack of %q", ackFor)
		case <-c.done:
			return fmt.Errorf("connection closed while waiting for ack of %q", ackFor)
		}
	}
}

// close stops the loops and sends a close frame on the live socket.
func (c *connection) close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	conn, writer := c.conn, c.writerCh
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	select {
	case <-writer:
	case <-time.After(writeWait):
	}
	_ = conn.WriteControl(
		ws.CloseMessage,
		ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
		time.Now().Add(writeWait),
	)
	return conn.Close()
}

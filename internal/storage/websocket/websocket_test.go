package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qppath/qppath/internal/config"
	"github.com/qppath/qppath/internal/storage"
	"github.com/qppath/qppath/pkg/core"
)

var _ storage.Backend = (*Backend)(nil)

type received struct {
	conn int
	env  Envelope
}

type viewer struct {
	mu       sync.Mutex
	conns    int
	messages []received
	secrets  []string

	// closes the first connection right after acking its start message
	dropFirst bool
}

func (v *viewer) add(conn int, env Envelope) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.messages = append(v.messages, received{conn: conn, env: env})
}

func (v *viewer) all() []received {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]received(nil), v.messages...)
}

func (v *viewer) countType(msgType string) int {
	n := 0
	for _, m := range v.all() {
		if m.env.Type == msgType {
			n++
		}
	}
	return n
}

func newViewer(t *testing.T, v *viewer) *httptest.Server {
	t.Helper()
	upgrader := ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer c.Close()

		v.mu.Lock()
		idx := v.conns
		v.conns++
		v.secrets = append(v.secrets, r.URL.Query().Get("secret"))
		v.mu.Unlock()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}
			var env Envelope
			if err := json.Unmarshal(msg, &env); err != nil {
				continue
			}
			v.add(idx, env)

			if env.Type == TypeStartSession || env.Type == TypeEndSession {
				data, _ := json.Marshal(AckMessage{Type: TypeAck, For: env.Type})
				if err := c.WriteMessage(ws.TextMessage, data); err != nil {
					return
				}
				if env.Type == TypeStartSession && idx == 0 && v.dropFirst {
					return
				}
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestSessionLifecycle(t *testing.T) {
	v := &viewer{}
	srv := newViewer(t, v)

	b := New(config.WebSocketConfig{URL: wsURL(srv), Secret: "s3cret", Session: "run-1"}, nil)
	require.NoError(t, b.Init())

	for i := uint64(1); i <= 3; i++ {
		require.NoError(t, b.RecordCycle(&core.CycleRecord{Cycle: i, Result: core.CycleOK}))
	}
	assert.Equal(t, uint64(3), b.Sent())
	require.NoError(t, b.Close())
	require.NoError(t, b.Close(), "second Close is a no-op")

	msgs := v.all()
	require.Len(t, msgs, 5)
	assert.Equal(t, TypeStartSession, msgs[0].env.Type)
	assert.Equal(t, TypeEndSession, msgs[4].env.Type)

	var start StartSessionPayload
	require.NoError(t, json.Unmarshal(msgs[0].env.Payload, &start))
	assert.Equal(t, "run-1", start.Session)

	for i, m := range msgs[1:4] {
		require.Equal(t, TypeCycle, m.env.Type)
		var rec core.CycleRecord
		require.NoError(t, json.Unmarshal(m.env.Payload, &rec))
		assert.Equal(t, uint64(i+1), rec.Cycle)
		assert.Equal(t, core.CycleOK, rec.Result)
	}

	var end EndSessionPayload
	require.NoError(t, json.Unmarshal(msgs[4].env.Payload, &end))
	assert.Equal(t, EndSessionPayload{Session: "run-1", Cycles: 3}, end)

	assert.Equal(t, []string{"s3cret"}, v.secrets)
	assert.ErrorIs(t, b.RecordCycle(&core.CycleRecord{}), storage.ErrClosed)
}

func TestDefaultSessionName(t *testing.T) {
	srv := newViewer(t, &viewer{})

	b := New(config.WebSocketConfig{URL: wsURL(srv)}, nil)
	b.now = func() time.Time { return time.Date(2025, 6, 2, 8, 30, 0, 0, time.UTC) }
	require.NoError(t, b.Init())
	defer b.Close()

	assert.Equal(t, "qppath-20250602T083000Z", b.session)
}

func TestRecordBeforeInit(t *testing.T) {
	b := New(config.WebSocketConfig{URL: "ws://127.0.0.1:1"}, nil)
	assert.ErrorIs(t, b.RecordCycle(&core.CycleRecord{}), ErrNotConnected)
	assert.NoError(t, b.Close())
}

func TestInit_DialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	b := New(config.WebSocketConfig{URL: wsURL(srv)}, nil)
	require.Error(t, b.Init())
	assert.ErrorIs(t, b.RecordCycle(&core.CycleRecord{}), ErrNotConnected)
	assert.NoError(t, b.Close())
}

func TestInit_InvalidURL(t *testing.T) {
	b := New(config.WebSocketConfig{URL: "://nope"}, nil)
	require.Error(t, b.Init())
}

func TestReconnectReplaysStart(t *testing.T) {
	v := &viewer{dropFirst: true}
	srv := newViewer(t, v)

	b := New(config.WebSocketConfig{URL: wsURL(srv), Session: "replay"}, nil)
	b.reconnectBackoff = 5 * time.Millisecond
	require.NoError(t, b.Init())

	assert.Eventually(t, func() bool {
		return v.countType(TypeStartSession) == 2
	}, 2*time.Second, 5*time.Millisecond)

	// the new writer is attached once the replay has been read
	assert.Eventually(t, func() bool {
		b.conn.mu.Lock()
		defer b.conn.mu.Unlock()
		return b.conn.conn != nil
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, b.RecordCycle(&core.CycleRecord{Cycle: 9}))
	require.NoError(t, b.Close())

	var last []received
	for _, m := range v.all() {
		if m.conn == 1 {
			last = append(last, m)
		}
	}
	require.Len(t, last, 3)
	assert.Equal(t, TypeStartSession, last[0].env.Type)
	assert.Equal(t, TypeCycle, last[1].env.Type)
	assert.Equal(t, TypeEndSession, last[2].env.Type)
}

func TestSend_BufferFull(t *testing.T) {
	c := newConnection(nil, 0)
	for range sendChSize {
		require.NoError(t, c.send([]byte("x")))
	}
	assert.ErrorIs(t, c.send([]byte("x")), errSendBufferFull)

	require.NoError(t, c.close())
	assert.ErrorIs(t, c.send([]byte("x")), errConnClosed)
}

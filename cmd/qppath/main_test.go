package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	ws "github.com/gorilla/websocket"
	"github.com/qppath/qppath/internal/monitor"
	"github.com/qppath/qppath/internal/storage/memory"
	"github.com/qppath/qppath/internal/storage/websocket"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testScenario = `{
  "name": "straight",
  "reference": {"points": [[0,0],[300,0]]},
  "widths": [{"s": 0, "laneLeft": 1.75, "laneRight": 1.75, "roadLeft": 3.75, "roadRight": 4}],
  "vehicle": {"x": 0, "y": 0, "length": 4, "width": 2},
  "obstacles": []
}`

type testEnv struct {
	configDir string
	scenario  string
	outputDir string
}

func newTestEnv(t *testing.T, storageType string, storageExtra ...map[string]any) testEnv {
	t.Helper()
	root := t.TempDir()
	env := testEnv{
		configDir: filepath.Join(root, "conf"),
		scenario:  filepath.Join(root, "road.json"),
		outputDir: filepath.Join(root, "cycles"),
	}
	require.NoError(t, os.MkdirAll(env.configDir, 0o755))

	cfg := map[string]any{
		"logLevel":   "debug",
		"logsDir":    filepath.Join(root, "logs"),
		"statusFile": filepath.Join(root, "status.json"),
		"planner":    map[string]any{"minLookAheadDistance": 20},
		"storage": map[string]any{
			"type":          storageType,
			"flushInterval": "10ms",
			"memory":        map[string]any{"outputDir": env.outputDir, "compressOutput": false},
			"sqlite":        map[string]any{"path": filepath.Join(root, "cycles.db"), "dumpInterval": "0s"},
		},
	}
	for _, extra := range storageExtra {
		for k, v := range extra {
			cfg["storage"].(map[string]any)[k] = v
		}
	}
	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(env.configDir, "qppath.cfg.json"), data, 0o644))
	require.NoError(t, os.WriteFile(env.scenario, []byte(testScenario), 0o644))
	return env
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(viper.Reset)
	configDir, scenarioPath, cycleCount, outputFormat = ".", "", 1, outputJSON
	cyclesDB, cyclesLimit = "", 0

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestPlan_JSON(t *testing.T) {
	env := newTestEnv(t, "memory")

	out, err := run(t, "plan", "--config-dir", env.configDir, "--scenario", env.scenario, "--cycles", "3")
	require.NoError(t, err)

	var points []pathPoint
	require.NoError(t, json.Unmarshal([]byte(out), &points))
	require.Len(t, points, 20)
	for i, p := range points {
		assert.InDelta(t, float64(i), p.S, 1e-6)
		assert.InDelta(t, 0, p.L, 1e-6)
		assert.InDelta(t, float64(i), p.X, 1e-6)
		assert.InDelta(t, 0, p.Y, 1e-6)
	}

	exports, err := filepath.Glob(filepath.Join(env.outputDir, "cycles_*.json"))
	require.NoError(t, err)
	require.Len(t, exports, 1)

	data, err := os.ReadFile(exports[0])
	require.NoError(t, err)
	var export memory.CycleExport
	require.NoError(t, json.Unmarshal(data, &export))
	assert.Equal(t, 3, export.Cycles)
	assert.Equal(t, 3, export.Results["ok"])

	data, err = os.ReadFile(filepath.Join(filepath.Dir(env.scenario), "status.json"))
	require.NoError(t, err)
	var status monitor.Status
	require.NoError(t, json.Unmarshal(data, &status))
	assert.Equal(t, uint64(3), status.Written)
	assert.Zero(t, status.Pending)
}

func TestPlan_Table(t *testing.T) {
	env := newTestEnv(t, "none")

	out, err := run(t, "plan", "--config-dir", env.configDir, "--scenario", env.scenario, "-o", "table")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 21)
	assert.Equal(t, []string{"s", "l", "dl", "ddl", "x", "y"}, strings.Fields(lines[0]))
	assert.Equal(t, "19.000", strings.Fields(lines[20])[0])
}

func TestCorridor_JSON(t *testing.T) {
	env := newTestEnv(t, "none")

	out, err := run(t, "corridor", "--config-dir", env.configDir, "--scenario", env.scenario)
	require.NoError(t, err)

	var rows []stationRow
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 20)
	for i, r := range rows {
		assert.Equal(t, i, r.Index)
		assert.InDelta(t, float64(i), r.S, 1e-9)
		assert.Less(t, r.Lower, r.Upper)
		assert.False(t, r.Crossed)
	}
}

func TestPlan_SQLite(t *testing.T) {
	env := newTestEnv(t, "sqlite")

	_, err := run(t, "plan", "--config-dir", env.configDir, "--scenario", env.scenario, "--cycles", "2")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(filepath.Dir(env.scenario), "cycles.db"))
}

func TestPlan_WebSocket(t *testing.T) {
	var (
		mu    sync.Mutex
		types []string
	)
	upgrader := ws.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}
			var env websocket.Envelope
			if json.Unmarshal(msg, &env) != nil {
				continue
			}
			mu.Lock()
			types = append(types, env.Type)
			mu.Unlock()
			if env.Type == websocket.TypeStartSession || env.Type == websocket.TypeEndSession {
				ack, _ := json.Marshal(websocket.AckMessage{Type: websocket.TypeAck, For: env.Type})
				_ = c.WriteMessage(ws.TextMessage, ack)
			}
		}
	}))
	defer srv.Close()

	env := newTestEnv(t, "websocket", map[string]any{
		"websocket": map[string]any{"url": "ws" + strings.TrimPrefix(srv.URL, "http")},
	})
	_, err := run(t, "plan", "--config-dir", env.configDir, "--scenario", env.scenario, "--cycles", "2")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{
		websocket.TypeStartSession,
		websocket.TypeCycle,
		websocket.TypeCycle,
		websocket.TypeEndSession,
	}, types)
}

func TestCycles_ReadsSQLiteDump(t *testing.T) {
	env := newTestEnv(t, "sqlite")
	dbPath := filepath.Join(filepath.Dir(env.scenario), "cycles.db")

	_, err := run(t, "plan", "--config-dir", env.configDir, "--scenario", env.scenario, "--cycles", "4")
	require.NoError(t, err)

	out, err := run(t, "cycles", "--db", dbPath, "--limit", "3")
	require.NoError(t, err)

	var rows []cycleRow
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 3)
	for i, r := range rows {
		assert.Equal(t, uint64(i+1), r.Cycle)
		assert.Equal(t, "ok", r.Result)
		assert.Equal(t, 20, r.Stations)
		assert.Zero(t, r.Crossed)
	}

	out, err = run(t, "cycles", "--db", dbPath, "-o", "table")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 5)
	assert.True(t, strings.HasPrefix(lines[0], "cycle"))

	_, err = run(t, "cycles", "--db", filepath.Join(env.configDir, "missing.db"))
	require.Error(t, err)
}

func TestPlan_RejectsBadFlags(t *testing.T) {
	env := newTestEnv(t, "none")

	_, err := run(t, "plan", "--config-dir", env.configDir, "--scenario", env.scenario, "-o", "yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")

	_, err = run(t, "plan", "--config-dir", env.configDir, "--scenario", env.scenario, "--cycles", "0")
	require.Error(t, err)

	_, err = run(t, "corridor", "--config-dir", env.configDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenario")
}

func TestPlan_MissingScenario(t *testing.T) {
	env := newTestEnv(t, "none")

	_, err := run(t, "plan", "--config-dir", env.configDir, "--scenario", filepath.Join(env.configDir, "nope.json"))
	require.Error(t, err)
}

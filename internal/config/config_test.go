package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/qppath/qppath/internal/solver"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(body), 0644))
	return dir
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"logLevel": "debug",
		"planner": { "qpDeltaS": 0.5, "lateralBuffer": 0.3 }
	}`)
	require.NoError(t, Load(dir))

	assert.Equal(t, "debug", GetString("logLevel"))
	pc := GetPlannerConfig()
	assert.Equal(t, 0.5, pc.QPDeltaS)
	assert.Equal(t, 0.3, pc.LateralBuffer)
	assert.Equal(t, 6.0, pc.MinLookAheadTime)
}

func TestLoad_DefaultValues(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{}`)))

	assert.Equal(t, "info", GetString("logLevel"))
	assert.Equal(t, "./qppathlogs", GetString("logsDir"))
	assert.Equal(t, PlannerConfig{
		QPDeltaS:             1.0,
		LateralBuffer:        0.2,
		MinLookAheadTime:     6.0,
		MinLookAheadDistance: 60.0,
	}, GetPlannerConfig())
	assert.Equal(t, solver.DefaultConfig(), GetSolverConfig())
}

func TestLoad_MissingFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	err := Load("/nonexistent/path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestGetString(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testKey", "testValue")
	assert.Equal(t, "testValue", GetString("testKey"))
}

func TestGetSolverConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{
		"solver": { "dddlWeight": 2500, "maxIterations": 200 }
	}`)))

	sc := GetSolverConfig()
	assert.Equal(t, 2500.0, sc.DDDLWeight)
	assert.Equal(t, 200, sc.MaxIterations)
	assert.Equal(t, 100.0, sc.DLWeight)
	require.NoError(t, sc.Validate())
}

func TestGetStorageConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{}`)))

	cfg := GetStorageConfig()
	assert.Equal(t, "memory", cfg.Type)
	assert.Equal(t, time.Second, cfg.FlushInterval)
	assert.Equal(t, 1024, cfg.QueueCapacity)
	assert.Equal(t, "./cycles", cfg.Memory.OutputDir)
	assert.Equal(t, true, cfg.Memory.CompressOutput)
	assert.Equal(t, 3*time.Minute, cfg.SQLite.DumpInterval)
	assert.Equal(t, "http://localhost:8086", cfg.Influx.URL())
	assert.Equal(t, "host=localhost port=5432 user=postgres password=postgres dbname=qppath sslmode=disable", cfg.Postgres.DSN())
	require.NoError(t, cfg.Validate())
}

func TestGetStorageConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{
		"storage": {
			"type": "sqlite",
			"flushInterval": "250ms",
			"memory": { "outputDir": "/tmp/out", "compressOutput": false },
			"sqlite": { "path": "/tmp/cycles.db", "dumpInterval": "10m" },
			"websocket": { "url": "ws://viewer:8080/stream", "secret": "abc" }
		}
	}`)))

	sc := GetStorageConfig()
	assert.Equal(t, "sqlite", sc.Type)
	assert.Equal(t, 250*time.Millisecond, sc.FlushInterval)
	assert.Equal(t, "/tmp/out", sc.Memory.OutputDir)
	assert.Equal(t, false, sc.Memory.CompressOutput)
	assert.Equal(t, "/tmp/cycles.db", sc.SQLite.Path)
	assert.Equal(t, 10*time.Minute, sc.SQLite.DumpInterval)
	assert.Equal(t, WebSocketConfig{URL: "ws://viewer:8080/stream", Secret: "abc"}, sc.WebSocket)
}

func TestStorageConfig_Validate(t *testing.T) {
	base := StorageConfig{Type: "memory", FlushInterval: time.Second}
	require.NoError(t, base.Validate())

	bad := base
	bad.Type = "cassandra"
	assert.ErrorIs(t, bad.Validate(), ErrUnknownStorage)

	bad = base
	bad.FlushInterval = 0
	assert.Error(t, bad.Validate())

	bad = base
	bad.QueueCapacity = -1
	assert.Error(t, bad.Validate())
}

func TestGetOTelConfig(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{
		"otel": { "enabled": true, "metricsFile": "metrics.json", "exportInterval": "30s" }
	}`)))

	oc := GetOTelConfig()
	assert.Equal(t, true, oc.Enabled)
	assert.Equal(t, "qppath", oc.ServiceName)
	assert.Equal(t, "metrics.json", oc.MetricsFile)
	assert.Equal(t, 30*time.Second, oc.ExportInterval)
}

func TestGetGraylogConfig(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{}`)))

	gc := GetGraylogConfig()
	assert.Equal(t, false, gc.Enabled)
	assert.Equal(t, "localhost:12201", gc.Address)
}

func TestPlannerConfig_Validate(t *testing.T) {
	valid := PlannerConfig{QPDeltaS: 1, LateralBuffer: 0.2, MinLookAheadTime: 6, MinLookAheadDistance: 60}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*PlannerConfig)
	}{
		{"zero spacing", func(c *PlannerConfig) { c.QPDeltaS = 0 }},
		{"nan spacing", func(c *PlannerConfig) { c.QPDeltaS = math.NaN() }},
		{"negative buffer", func(c *PlannerConfig) { c.LateralBuffer = -0.1 }},
		{"negative time", func(c *PlannerConfig) { c.MinLookAheadTime = -1 }},
		{"infinite distance", func(c *PlannerConfig) { c.MinLookAheadDistance = math.Inf(1) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestPlannerConfig_CorridorLength(t *testing.T) {
	c := PlannerConfig{MinLookAheadTime: 6, MinLookAheadDistance: 60}
	assert.Equal(t, 60.0, c.CorridorLength(5))
	assert.Equal(t, 120.0, c.CorridorLength(20))
	assert.Equal(t, 60.0, c.CorridorLength(0))
}

package memory

import (
	"compress/gzip"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/qppath/qppath/internal/config"
	"github.com/qppath/qppath/internal/storage"
	"github.com/qppath/qppath/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Verify Backend implements the storage interfaces
var (
	_ storage.Backend  = (*Backend)(nil)
	_ storage.Exporter = (*Backend)(nil)
)

var sessionStart = time.Date(2024, 3, 9, 14, 30, 0, 0, time.UTC)

func newTestBackend(t *testing.T, cfg config.MemoryConfig) *Backend {
	t.Helper()
	b := New(cfg)
	b.now = func() time.Time { return sessionStart }
	require.NoError(t, b.Init())
	return b
}

func okRecord(cycle uint64) *core.CycleRecord {
	return &core.CycleRecord{
		Cycle:  cycle,
		Result: core.CycleOK,
		Corridor: core.Corridor{
			Spacing:   1,
			Intervals: []core.Interval{{Lower: -1, Upper: 1}, {Lower: -1, Upper: 0.5}},
		},
		Points: []core.FrenetPoint{{S: 0}, {S: 1, L: 0.1}},
	}
}

func TestRecordCycle_StoresCopies(t *testing.T) {
	b := newTestBackend(t, config.MemoryConfig{})

	r := okRecord(1)
	require.NoError(t, b.RecordCycle(r))
	r.Corridor.Intervals[0].Lower = 99
	r.Points[1].L = 99

	got := b.Records()
	require.Len(t, got, 1)
	assert.Equal(t, -1.0, got[0].Corridor.Intervals[0].Lower)
	assert.Equal(t, 0.1, got[0].Points[1].L)

	// Records hands out copies too
	got[0].Points[1].L = 42
	assert.Equal(t, 0.1, b.Records()[0].Points[1].L)
}

func TestInitResetsSession(t *testing.T) {
	b := newTestBackend(t, config.MemoryConfig{})
	require.NoError(t, b.RecordCycle(okRecord(1)))

	require.NoError(t, b.Init())
	assert.Empty(t, b.Records())
}

func TestCloseWithoutOutputDir(t *testing.T) {
	b := newTestBackend(t, config.MemoryConfig{})
	require.NoError(t, b.RecordCycle(okRecord(1)))

	require.NoError(t, b.Close())
	assert.Empty(t, b.ExportedFilePath())
	assert.ErrorIs(t, b.RecordCycle(okRecord(2)), storage.ErrClosed)

	// closing twice is harmless
	assert.NoError(t, b.Close())
}

func TestExportJSON(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	b := newTestBackend(t, config.MemoryConfig{OutputDir: dir})

	require.NoError(t, b.RecordCycle(okRecord(1)))
	require.NoError(t, b.RecordCycle(&core.CycleRecord{Cycle: 2, Result: core.CycleOptimizationFailed}))
	require.NoError(t, b.RecordCycle(okRecord(3)))
	require.NoError(t, b.Close())

	path := b.ExportedFilePath()
	assert.Equal(t, filepath.Join(dir, "cycles_20240309_143000.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var export CycleExport
	require.NoError(t, json.Unmarshal(data, &export))
	assert.Equal(t, 3, export.Cycles)
	assert.Equal(t, map[string]int{"ok": 2, "optimization_failed": 1}, export.Results)
	require.Len(t, export.Records, 3)
	assert.Equal(t, uint64(2), export.Records[1].Cycle)
	assert.Equal(t, okRecord(3).Points, export.Records[2].Points)
}

func TestExportGzipJSON(t *testing.T) {
	dir := t.TempDir()
	b := newTestBackend(t, config.MemoryConfig{OutputDir: dir, CompressOutput: true})
	require.NoError(t, b.Close())

	path := b.ExportedFilePath()
	require.True(t, strings.HasSuffix(path, ".json.gz"))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	defer gz.Close()

	var export CycleExport
	require.NoError(t, json.NewDecoder(gz).Decode(&export))
	assert.Equal(t, 0, export.Cycles)
	assert.NotNil(t, export.Records)
	assert.True(t, sessionStart.Equal(export.StartedAt))
}

func TestConcurrentRecord(t *testing.T) {
	b := newTestBackend(t, config.MemoryConfig{})

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(cycle uint64) {
			defer wg.Done()
			_ = b.RecordCycle(okRecord(cycle))
		}(uint64(i))
	}
	wg.Wait()
	assert.Len(t, b.Records(), 50)
}

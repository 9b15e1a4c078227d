package sqlitestorage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/qppath/qppath/internal/config"
	"github.com/qppath/qppath/internal/database"
	"github.com/qppath/qppath/internal/model"
	"github.com/qppath/qppath/internal/storage"
	"github.com/qppath/qppath/pkg/core"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ storage.Backend  = (*Backend)(nil)
	_ storage.Exporter = (*Backend)(nil)
)

func cycle(n uint64) *core.CycleRecord {
	return &core.CycleRecord{
		Cycle:    n,
		Result:   core.CycleOK,
		Corridor: core.Corridor{Spacing: 1, Intervals: []core.Interval{{Lower: -1, Upper: 1}}},
	}
}

func countCycles(t *testing.T, path string) int64 {
	t.Helper()
	m := database.NewManager(zerolog.Nop())
	require.NoError(t, m.ConnectSqlite(path, ""))
	defer m.Close()
	var count int64
	require.NoError(t, m.DB.Model(&model.PlanningCycle{}).Count(&count).Error)
	return count
}

func TestCloseWritesFinalDump(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cycles.db")
	b, err := New(config.SQLiteConfig{Path: path}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, b.Init())

	require.NoError(t, b.RecordCycle(cycle(1)))
	require.NoError(t, b.RecordCycle(cycle(2)))
	require.NoError(t, b.Close())
	assert.NoError(t, b.Close())

	assert.Equal(t, path, b.ExportedFilePath())
	assert.Equal(t, int64(2), countCycles(t, path))
}

func TestPeriodicDump(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cycles.db")
	b, err := New(config.SQLiteConfig{Path: path, DumpInterval: 10 * time.Millisecond}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, b.Init())
	defer b.Close()

	require.NoError(t, b.RecordCycle(cycle(1)))

	assert.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestNoPathSkipsDump(t *testing.T) {
	b, err := New(config.SQLiteConfig{}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, b.Init())
	require.NoError(t, b.RecordCycle(cycle(1)))
	assert.NoError(t, b.Close())
	assert.Empty(t, b.ExportedFilePath())
}

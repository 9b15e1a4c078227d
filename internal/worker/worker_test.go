package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/qppath/qppath/internal/storage"
	"github.com/qppath/qppath/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeBackend struct {
	mu       sync.Mutex
	cycles   []uint64
	rejectID map[uint64]bool
}

func (b *fakeBackend) Init() error  { return nil }
func (b *fakeBackend) Close() error { return nil }

func (b *fakeBackend) RecordCycle(r *core.CycleRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.rejectID[r.Cycle] {
		return errors.New("rejected")
	}
	b.cycles = append(b.cycles, r.Cycle)
	return nil
}

func (b *fakeBackend) LastWriteDuration() time.Duration { return 3 * time.Millisecond }

func (b *fakeBackend) recorded() []uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]uint64(nil), b.cycles...)
}

var _ storage.WriteDurationProvider = (*fakeBackend)(nil)

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

func newRecorder(t *testing.T, b storage.Backend, opts ...Option) (*Recorder, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	r, err := NewRecorder(b, nopLogger{}, append(opts, WithMeterProvider(provider))...)
	require.NoError(t, err)
	return r, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func TestFlush_WritesInOrder(t *testing.T) {
	b := &fakeBackend{}
	r, _ := newRecorder(t, b)

	for i := uint64(1); i <= 3; i++ {
		r.Record(core.CycleRecord{Cycle: i})
	}
	assert.Equal(t, 3, r.Pending())

	assert.Equal(t, 3, r.Flush(context.Background()))
	assert.Equal(t, []uint64{1, 2, 3}, b.recorded())
	assert.Equal(t, 0, r.Pending())
	assert.Equal(t, uint64(3), r.Written())

	// empty flush is a no-op
	assert.Equal(t, 0, r.Flush(context.Background()))
}

func TestFlush_CountsFailures(t *testing.T) {
	b := &fakeBackend{rejectID: map[uint64]bool{2: true}}
	r, reader := newRecorder(t, b)

	for i := uint64(1); i <= 3; i++ {
		r.Record(core.CycleRecord{Cycle: i})
	}
	assert.Equal(t, 2, r.Flush(context.Background()))
	assert.Equal(t, []uint64{1, 3}, b.recorded())
	assert.Equal(t, uint64(1), r.Failed())

	sum, ok := collect(t, reader)["recorder.records.written"].(metricdata.Sum[int64])
	require.True(t, ok)
	byStatus := map[string]int64{}
	for _, dp := range sum.DataPoints {
		status, _ := dp.Attributes.Value("status")
		byStatus[status.AsString()] = dp.Value
	}
	assert.Equal(t, map[string]int64{"ok": 2, "error": 1}, byStatus)
}

func TestQueueGauge(t *testing.T) {
	r, reader := newRecorder(t, &fakeBackend{})
	r.Record(core.CycleRecord{Cycle: 1})
	r.Record(core.CycleRecord{Cycle: 2})

	gauge, ok := collect(t, reader)["recorder.queue.size"].(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.Equal(t, int64(2), gauge.DataPoints[0].Value)
}

func TestCapacityDropsOldest(t *testing.T) {
	b := &fakeBackend{}
	r, _ := newRecorder(t, b, WithCapacity(2))

	for i := uint64(1); i <= 5; i++ {
		r.Record(core.CycleRecord{Cycle: i})
	}
	assert.Equal(t, uint64(3), r.Dropped())
	r.Flush(context.Background())
	assert.Equal(t, []uint64{4, 5}, b.recorded())
}

func TestStartStop_FlushesOnInterval(t *testing.T) {
	b := &fakeBackend{}
	r, _ := newRecorder(t, b, WithInterval(5*time.Millisecond))
	r.Start(context.Background())

	r.Record(core.CycleRecord{Cycle: 1})
	assert.Eventually(t, func() bool {
		return len(b.recorded()) == 1
	}, 2*time.Second, 5*time.Millisecond)

	r.Record(core.CycleRecord{Cycle: 2})
	r.Stop()
	assert.Equal(t, []uint64{1, 2}, b.recorded())

	// second Stop is a no-op
	r.Stop()
}

func TestStop_FlushesWithoutStart(t *testing.T) {
	b := &fakeBackend{}
	r, _ := newRecorder(t, b, WithInterval(time.Hour))

	r.Record(core.CycleRecord{Cycle: 9})
	r.Stop()
	assert.Equal(t, []uint64{9}, b.recorded())
}

func TestContextCancelFlushes(t *testing.T) {
	b := &fakeBackend{}
	r, _ := newRecorder(t, b, WithInterval(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)
	r.Record(core.CycleRecord{Cycle: 4})
	cancel()

	assert.Eventually(t, func() bool {
		return len(b.recorded()) == 1
	}, 2*time.Second, 5*time.Millisecond)
	r.Stop()
}

func TestLastWriteDuration(t *testing.T) {
	r, _ := newRecorder(t, &fakeBackend{})
	assert.Equal(t, 3*time.Millisecond, r.LastWriteDuration())

	plain, _ := newRecorder(t, storage.Nop{})
	assert.Zero(t, plain.LastWriteDuration())
	plain.Record(core.CycleRecord{Cycle: 1})
	plain.Flush(context.Background())
	assert.Equal(t, uint64(1), plain.Written())
}

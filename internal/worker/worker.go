// Package worker moves finished planning cycles from the planner to a
// storage backend on a background goroutine.
package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/qppath/qppath/internal/queue"
	"github.com/qppath/qppath/internal/storage"
	"github.com/qppath/qppath/pkg/core"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/qppath/qppath/internal/worker"

// DefaultFlushInterval is used when no interval is configured.
const DefaultFlushInterval = time.Second

// Logger is the logging surface the recorder needs.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Recorder queues cycle records and writes them to a backend on an interval.
// Record never blocks on I/O; a full queue drops the oldest records.
type Recorder struct {
	backend  storage.Backend
	log      Logger
	queue    *queue.Queue[core.CycleRecord]
	interval time.Duration

	flushMu           sync.Mutex
	lastFlushDuration atomic.Int64
	written           atomic.Uint64
	failed            atomic.Uint64

	meterProvider metric.MeterProvider
	writtenCount  metric.Int64Counter
	queueGauge    metric.Int64ObservableGauge
	registration  metric.Registration

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithInterval sets how often queued records are written.
func WithInterval(d time.Duration) Option {
	return func(r *Recorder) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithCapacity bounds the queue. Zero means unbounded.
func WithCapacity(n int) Option {
	return func(r *Recorder) {
		r.queue = queue.NewBounded[core.CycleRecord](n)
	}
}

// WithMeterProvider uses provider instead of the global meter provider.
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(r *Recorder) {
		r.meterProvider = provider
	}
}

// NewRecorder creates a Recorder writing to backend. The backend must
// already be initialized; Stop does not close it.
func NewRecorder(backend storage.Backend, log Logger, opts ...Option) (*Recorder, error) {
	r := &Recorder{
		backend:  backend,
		log:      log,
		queue:    queue.New[core.CycleRecord](),
		interval: DefaultFlushInterval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}

	var m metric.Meter
	if r.meterProvider != nil {
		m = r.meterProvider.Meter(instrumentationName)
	} else {
		m = otel.Meter(instrumentationName)
	}

	var err error
	r.writtenCount, err = m.Int64Counter(
		"recorder.records.written",
		metric.WithDescription("Cycle records handed to the storage backend"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating written counter: %w", err)
	}

	r.queueGauge, err = m.Int64ObservableGauge(
		"recorder.queue.size",
		metric.WithDescription("Cycle records waiting to be written"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating queue gauge: %w", err)
	}
	r.registration, err = m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(r.queueGauge, int64(r.queue.Len()))
		return nil
	}, r.queueGauge)
	if err != nil {
		return nil, fmt.Errorf("registering queue gauge: %w", err)
	}

	return r, nil
}

// Record queues a copy of rec for writing.
func (r *Recorder) Record(rec core.CycleRecord) {
	r.queue.Push(rec)
}

// Start launches the flush loop. It returns immediately; the loop runs
// until ctx is cancelled or Stop is called, then flushes what is left.
func (r *Recorder) Start(ctx context.Context) {
	r.startOnce.Do(func() {
		go r.loop(ctx)
	})
}

// Stop ends the flush loop and writes any remaining records.
// Safe to call without Start and more than once.
func (r *Recorder) Stop() {
	r.stopOnce.Do(func() {
		close(r.stop)
		started := true
		r.startOnce.Do(func() { started = false })
		if started {
			<-r.done
		} else {
			r.Flush(context.Background())
		}
		if r.registration != nil {
			_ = r.registration.Unregister()
		}
		r.log.Info("Recorder stopped",
			"written", r.written.Load(),
			"failed", r.failed.Load(),
			"dropped", r.queue.Dropped(),
		)
	})
}

func (r *Recorder) loop(ctx context.Context) {
	defer close(r.done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.Flush(context.WithoutCancel(ctx))
			return
		case <-r.stop:
			r.Flush(context.WithoutCancel(ctx))
			return
		case <-ticker.C:
			r.Flush(ctx)
		}
	}
}

// Flush writes every queued record and returns how many the backend accepted.
func (r *Recorder) Flush(ctx context.Context) int {
	r.flushMu.Lock()
	defer r.flushMu.Unlock()

	records := r.queue.GetAndEmpty()
	if len(records) == 0 {
		return 0
	}

	start := time.Now()
	ok := 0
	for i := range records {
		if err := r.backend.RecordCycle(&records[i]); err != nil {
			r.failed.Add(1)
			r.log.Error("Failed to write cycle record", "cycle", records[i].Cycle, "error", err)
			continue
		}
		ok++
	}
	elapsed := time.Since(start)
	r.lastFlushDuration.Store(int64(elapsed))
	r.written.Add(uint64(ok))

	r.writtenCount.Add(ctx, int64(ok), metric.WithAttributes(attribute.String("status", "ok")))
	if failed := len(records) - ok; failed > 0 {
		r.writtenCount.Add(ctx, int64(failed), metric.WithAttributes(attribute.String("status", "error")))
	}
	r.log.Debug("Flushed cycle records", "count", len(records), "written", ok, "duration", elapsed)
	return ok
}

// Pending returns the number of queued records.
func (r *Recorder) Pending() int {
	return r.queue.Len()
}

// Written returns the number of records the backend accepted.
func (r *Recorder) Written() uint64 {
	return r.written.Load()
}

// Failed returns the number of records the backend rejected.
func (r *Recorder) Failed() uint64 {
	return r.failed.Load()
}

// Dropped returns the number of records discarded because the queue was full.
func (r *Recorder) Dropped() uint64 {
	return r.queue.Dropped()
}

// LastFlushDuration returns the duration of the last non-empty flush.
func (r *Recorder) LastFlushDuration() time.Duration {
	return time.Duration(r.lastFlushDuration.Load())
}

// LastWriteDuration returns the backend's last write duration.
// Returns 0 if the backend doesn't support this metric.
func (r *Recorder) LastWriteDuration() time.Duration {
	if p, ok := r.backend.(storage.WriteDurationProvider); ok {
		return p.LastWriteDuration()
	}
	return 0
}

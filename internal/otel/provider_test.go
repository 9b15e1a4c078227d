package otel

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestNew_Disabled(t *testing.T) {
	p, err := New(Config{Enabled: false})
	require.NoError(t, err)

	assert.False(t, p.Enabled())
	assert.IsType(t, noop.MeterProvider{}, p.MeterProvider())

	counter, err := p.Meter("test").Int64Counter("ignored")
	require.NoError(t, err)
	counter.Add(context.Background(), 1)

	assert.NoError(t, p.Flush(context.Background()))
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNew_EnabledWithoutWriter(t *testing.T) {
	_, err := New(Config{Enabled: true, ServiceName: "qppath"})
	assert.ErrorIs(t, err, ErrNoWriter)
}

func TestNew_ExportsToWriter(t *testing.T) {
	var buf bytes.Buffer
	p, err := New(Config{
		Enabled:        true,
		ServiceName:    "qppath-test",
		ExportInterval: time.Hour,
		MetricsWriter:  &buf,
	})
	require.NoError(t, err)
	assert.True(t, p.Enabled())

	counter, err := p.Meter("github.com/qppath/qppath/internal/otel").Int64Counter("planner.cycles")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	require.NoError(t, p.Flush(context.Background()))
	out := buf.String()
	assert.Contains(t, out, "planner.cycles")
	assert.Contains(t, out, "qppath-test")

	require.NoError(t, p.Shutdown(context.Background()))
}

package planner

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/qppath/qppath/internal/planner"

func meter(provider metric.MeterProvider) metric.Meter {
	if provider == nil {
		return otel.Meter(instrumentationName)
	}
	return provider.Meter(instrumentationName)
}

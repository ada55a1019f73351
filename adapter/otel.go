// Package adapter assembles the transports with their observability and
// health wiring.
package adapter

import (
	"go.opentelemetry.io/otel"

	"github.com/srediag/xfer/pkg/shm"
)

const instrumentationName = "github.com/srediag/xfer"

// NewSegmentProvider returns a segment provider reporting spans and metrics to
// the global OpenTelemetry providers.
func NewSegmentProvider() (*shm.Provider, error) {
	return shm.NewProvider(shm.Config{
		Meter:  otel.GetMeterProvider().Meter(instrumentationName),
		Tracer: otel.GetTracerProvider().Tracer(instrumentationName),
	})
}

package telemetry

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Tracer returns the tracer used for build spans. Without InitTelemetry the
// global provider is a no-op.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

package telemetry

import (
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.trai.ch/bundle/internal/core/ports"
)

// InstrumentationName names the tracer of every span this program creates.
const InstrumentationName = "go.trai.ch/bundle"

// NewProvider returns a TracerProvider that reports every span to renderer.
// The caller shuts it down when the run ends.
func NewProvider(renderer ports.Renderer) *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(NewBridge(renderer)),
	)
}

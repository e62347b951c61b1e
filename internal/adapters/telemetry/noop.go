package telemetry

import (
	"context"
	"io"

	"go.trai.ch/bundle/internal/core/ports"
)

var (
	_ ports.Tracer = NoOpTracer{}
	_ ports.Span   = noopSpan{}
)

// NoOpTracer discards every span. Commands that install nothing, like clean,
// hand it to the installer.
type NoOpTracer struct{}

// NewNoOpTracer returns a NoOpTracer.
func NewNoOpTracer() NoOpTracer {
	return NoOpTracer{}
}

// Start implements ports.Tracer.
func (NoOpTracer) Start(ctx context.Context, _ string, _ ...ports.SpanOption) (context.Context, ports.Span) {
	return ctx, noopSpan{}
}

// EmitPlan implements ports.Tracer.
func (NoOpTracer) EmitPlan(context.Context, []string) {}

type noopSpan struct{}

func (noopSpan) End() {}
func (noopSpan) RecordError(error) {}
func (noopSpan) SetAttribute(string, any) {}
func (noopSpan) Write(p []byte) (int, error) { return io.Discard.Write(p) }

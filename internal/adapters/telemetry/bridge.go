package telemetry

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.trai.ch/bundle/internal/core/ports"
)

// Bridge implements sdktrace.SpanProcessor to forward span lifecycles to a
// Renderer.
type Bridge struct {
	renderer ports.Renderer
}

// NewBridge returns a new Bridge.
func NewBridge(renderer ports.Renderer) *Bridge {
	return &Bridge{renderer: renderer}
}

// OnStart is called when a span starts.
func (b *Bridge) OnStart(_ context.Context, s sdktrace.ReadWriteSpan) {
	if b.renderer == nil {
		return
	}
	sc := s.SpanContext()
	if !sc.IsValid() {
		return
	}
	b.renderer.OnInstallStart(sc.SpanID().String(), s.Name(), s.StartTime())
}

// OnEnd is called when a span ends.
func (b *Bridge) OnEnd(s sdktrace.ReadOnlySpan) {
	if b.renderer == nil {
		return
	}
	sc := s.SpanContext()
	if !sc.IsValid() {
		return
	}

	var err error
	if s.Status().Code == codes.Error {
		desc := s.Status().Description
		if desc == "" {
			desc = "install failed"
		}
		err = errors.New(desc)
	}

	cached := false
	for _, kv := range s.Attributes() {
		if string(kv.Key) == AttrCached {
			cached = kv.Value.AsBool()
		}
	}

	b.renderer.OnInstallComplete(sc.SpanID().String(), s.EndTime(), err, cached)
}

// ForceFlush does nothing.
func (b *Bridge) ForceFlush(_ context.Context) error {
	return nil
}

// Shutdown does nothing.
func (b *Bridge) Shutdown(_ context.Context) error {
	return nil
}

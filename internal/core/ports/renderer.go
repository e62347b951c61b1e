package ports

import (
	"context"
	"io"
	"time"

	"go.trai.ch/bundle/internal/core/domain"
)

//go:generate mockgen -source=renderer.go -destination=mocks/mock_renderer.go -package=mocks

// Renderer presents install progress. The same event stream drives either the
// interactive view or linear CI output.
type Renderer interface {
	// Start initializes the renderer. Asynchronous renderers launch their
	// event loop here.
	Start(ctx context.Context) error

	// Stop stops accepting events and flushes buffered output.
	Stop() error

	// Wait blocks until the renderer has terminated.
	Wait() error

	// OnPlanEmit is called with the full names of every gem of the run, in
	// install order.
	OnPlanEmit(names []string)

	// OnInstallStart is called when the install of name begins.
	OnInstallStart(spanID, name string, startTime time.Time)

	// OnInstallComplete is called when an install ends. cached reports that no
	// work was needed.
	OnInstallComplete(spanID string, endTime time.Time, err error, cached bool)
}

// GraphRenderer draws a resolved spec set.
type GraphRenderer interface {
	// Render writes the dependency graph of set to w in format ("dot", "svg" or "png").
	Render(ctx context.Context, set *domain.SpecSet, format string, w io.Writer) error
}

// Package linear provides a synchronous, line-oriented progress renderer for
// CI and other non-interactive environments.
package linear

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/muesli/termenv"
	"go.trai.ch/bundle/internal/ui/output"
	"go.trai.ch/bundle/internal/ui/style"
)

// Renderer implements ports.Renderer by printing one line per finished gem.
type Renderer struct {
	w      io.Writer
	output *termenv.Output

	mu      sync.Mutex
	planned map[string]bool
	pending map[string]install
	total   int
	done    int
}

type install struct {
	name      string
	startTime time.Time
}

// NewRenderer creates a Renderer writing to w. A nil w writes to stdout.
func NewRenderer(w io.Writer) *Renderer {
	if w == nil {
		w = os.Stdout
	}
	return &Renderer{
		w:       w,
		output:  output.NewWithProfile(w, output.ColorProfileANSI),
		planned: make(map[string]bool),
		pending: make(map[string]install),
	}
}

// Start is a no-op for the linear renderer.
func (r *Renderer) Start(_ context.Context) error {
	return nil
}

// Stop is a no-op; every line is written as soon as it is complete.
func (r *Renderer) Stop() error {
	return nil
}

// Wait is a no-op for the linear renderer.
func (r *Renderer) Wait() error {
	return nil
}

// OnPlanEmit records the gems of the run. Spans for other names are ignored.
func (r *Renderer) OnPlanEmit(names []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, n := range names {
		r.planned[n] = true
	}
	r.total = len(names)
}

// OnInstallStart records when the install of name began.
func (r *Renderer) OnInstallStart(spanID, name string, startTime time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.planned[name] {
		return
	}
	r.pending[spanID] = install{name: name, startTime: startTime}
}

// OnInstallComplete prints the outcome of one gem.
func (r *Renderer) OnInstallComplete(spanID string, endTime time.Time, err error, cached bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.pending[spanID]
	if !ok {
		return
	}
	delete(r.pending, spanID)
	r.done++

	progress := r.output.String(fmt.Sprintf("[%d/%d]", r.done, r.total)).Faint().String()
	elapsed := endTime.Sub(t.startTime).Round(time.Millisecond)

	switch {
	case err != nil:
		symbol := r.output.String(style.Cross).Foreground(termenv.ANSIRed).String()
		_, _ = fmt.Fprintf(r.w, "%s %s Failed %s after %v: %v\n", progress, symbol, t.name, elapsed, err)
	case cached:
		_, _ = fmt.Fprintf(r.w, "%s Using %s\n", progress, t.name)
	default:
		symbol := r.output.String(style.Check).Foreground(termenv.ANSIGreen).String()
		_, _ = fmt.Fprintf(r.w, "%s %s Installed %s in %v\n", progress, symbol, t.name, elapsed)
	}
}

package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Renderer wraps the Bubble Tea program as a ports.Renderer.
type Renderer struct {
	program *tea.Program
	model   *Model
	errCh   chan error
}

// NewRenderer creates a new TUI renderer.
func NewRenderer(model *Model, opts ...tea.ProgramOption) *Renderer {
	return &Renderer{
		program: tea.NewProgram(model, opts...),
		model:   model,
		errCh:   make(chan error, 1),
	}
}

// Start launches the program in a background goroutine.
func (r *Renderer) Start(_ context.Context) error {
	go func() {
		_, err := r.program.Run()
		r.errCh <- err
	}()
	return nil
}

// Stop signals the program to quit.
func (r *Renderer) Stop() error {
	r.program.Quit()
	return nil
}

// Wait blocks until the program has terminated.
func (r *Renderer) Wait() error {
	return <-r.errCh
}

// OnPlanEmit forwards the plan to the program.
func (r *Renderer) OnPlanEmit(names []string) {
	r.program.Send(MsgInitGems{Names: names})
}

// OnInstallStart forwards an install start to the program.
func (r *Renderer) OnInstallStart(spanID, name string, _ time.Time) {
	r.program.Send(MsgGemStart{SpanID: spanID, Name: name})
}

// OnInstallComplete forwards an install result to the program.
func (r *Renderer) OnInstallComplete(spanID string, _ time.Time, err error, cached bool) {
	r.program.Send(MsgGemComplete{SpanID: spanID, Err: err, Cached: cached})
}

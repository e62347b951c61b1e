// Package app implements the application layer for bundle.
package app

import (
	"context"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"go.trai.ch/bundle/internal/adapters/detector"
	"go.trai.ch/bundle/internal/adapters/linear"
	"go.trai.ch/bundle/internal/adapters/tui"
	"go.trai.ch/bundle/internal/core/ports"
)

// App represents the main application logic.
type App struct {
	manifests ports.ManifestStore
	locks     ports.LockStore
	settings  ports.SettingsLoader
	sources   ports.SourceFactory
	locker    ports.Locker
	tracer    ports.Tracer
	logger    ports.Logger
	metrics   ports.Metrics
	runner    ports.CommandRunner
	graphs    ports.GraphRenderer
	watcher   ports.Watcher

	stdin   io.Reader
	stdout  io.Writer
	stderr  io.Writer
	environ []string
	workDir string

	teaOptions []tea.ProgramOption
}

// Dependencies groups the collaborators of an App.
type Dependencies struct {
	Manifests ports.ManifestStore
	Locks     ports.LockStore
	Settings  ports.SettingsLoader
	Sources   ports.SourceFactory
	Locker    ports.Locker
	Tracer    ports.Tracer
	Logger    ports.Logger
	Metrics   ports.Metrics
	Runner    ports.CommandRunner
	Graphs    ports.GraphRenderer
	Watcher   ports.Watcher
}

// New creates a new App instance. The process environment is captured once
// here and is the base of every environment handed to child processes.
func New(deps Dependencies) *App {
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}
	return &App{
		manifests: deps.Manifests,
		locks:     deps.Locks,
		settings:  deps.Settings,
		sources:   deps.Sources,
		locker:    deps.Locker,
		tracer:    deps.Tracer,
		logger:    deps.Logger,
		metrics:   deps.Metrics,
		runner:    deps.Runner,
		graphs:    deps.Graphs,
		watcher:   deps.Watcher,
		stdin:     os.Stdin,
		stdout:    os.Stdout,
		stderr:    os.Stderr,
		environ:   os.Environ(),
		workDir:   wd,
	}
}

// WithTeaOptions adds bubbletea program options to the App.
// This is primarily used for testing to disable input/output.
func (a *App) WithTeaOptions(opts ...tea.ProgramOption) *App {
	a.teaOptions = append(a.teaOptions, opts...)
	return a
}

// WithIO replaces the standard streams used by exec, show and viz.
func (a *App) WithIO(stdin io.Reader, stdout, stderr io.Writer) *App {
	a.stdin = stdin
	a.stdout = stdout
	a.stderr = stderr
	return a
}

// WithEnviron replaces the captured process environment.
func (a *App) WithEnviron(env []string) *App {
	a.environ = env
	return a
}

// WithWorkDir replaces the directory the manifest is searched from.
func (a *App) WithWorkDir(dir string) *App {
	a.workDir = dir
	return a
}

// newRenderer picks the progress renderer for mode ("auto", "tui" or
// "linear").
func (a *App) newRenderer(ctx context.Context, mode string) ports.Renderer {
	if detector.ResolveMode(detector.DetectEnvironment(), mode) != detector.ModeTUI {
		return linear.NewRenderer(a.stdout)
	}
	opts := append([]tea.ProgramOption{tea.WithContext(ctx), tea.WithOutput(a.stderr)}, a.teaOptions...)
	return tui.NewRenderer(tui.NewModel(), opts...)
}

// logConfigurer is implemented by loggers whose output can be tuned.
type logConfigurer interface {
	SetVerbose(enable bool)
	SetJSON(enable bool)
}

// ConfigureLogging switches the logger to debug level or JSON output.
func (a *App) ConfigureLogging(verbose, json bool) {
	if l, ok := a.logger.(logConfigurer); ok {
		l.SetVerbose(verbose)
		l.SetJSON(json)
	}
}

// Package main is the entry point for the bundle dependency manager.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/grindlemire/graft"
	"go.trai.ch/bundle/cmd/bundle/commands"
	"go.trai.ch/bundle/internal/adapters/shell"
	"go.trai.ch/bundle/internal/app"
	"go.trai.ch/bundle/internal/core/domain"
	_ "go.trai.ch/bundle/internal/wiring"
)

// ComponentProvider is a function that returns the application components.
type ComponentProvider func(context.Context) (*app.Components, func(), error)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stderr, func(ctx context.Context) (*app.Components, func(), error) {
		c, _, err := graft.ExecuteFor[*app.Components](ctx)
		return c, func() {}, err
	}))
}

func run(
	ctx context.Context,
	args []string,
	stderr io.Writer,
	provider ComponentProvider,
	opts ...func(*app.App),
) int {
	// 0. Context with signal handling
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// 1. Initialize application components
	components, cleanup, err := provider(ctx)
	if err != nil {
		// Logger is not available yet if initialization failed
		_, _ = fmt.Fprintln(stderr, "Error: "+err.Error())
		return 1
	}
	defer cleanup()

	for _, opt := range opts {
		opt(components.App)
	}

	// 2. Interface - CLI
	cli := commands.New(components.App)
	cli.SetArgs(args)
	cli.SetOutput(os.Stdout, stderr)

	// 3. Execution
	if err := cli.Execute(ctx); err != nil {
		return exitStatus(err, components.Logger.Error)
	}
	return 0
}

// exitStatus maps a failed command to the process exit status. A command
// run by exec that exits non-zero has already reported its failure, so its
// status passes through silently.
func exitStatus(err error, report func(error)) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	report(err)
	if errors.Is(err, exec.ErrNotFound) {
		code, _ := shell.ExitCode(err)
		return code
	}
	return domain.ExitCode(err)
}

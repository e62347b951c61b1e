package ports

import (
	"context"
	"io"
)

// Command is a process to run inside the bundle environment.
type Command struct {
	// Args is the program followed by its arguments.
	Args []string
	// Env is the complete environment in "KEY=VALUE" form.
	Env []string
	// Dir is the working directory.
	Dir string
	// TTY runs the process under a pseudo terminal.
	TTY bool
}

// CommandRunner runs processes.
//
//go:generate mockgen -source=runner.go -destination=mocks/mock_runner.go -package=mocks
type CommandRunner interface {
	// Run executes cmd and waits for it. The error carries the exit code when
	// the process fails.
	Run(ctx context.Context, cmd Command, stdin io.Reader, stdout, stderr io.Writer) error
}

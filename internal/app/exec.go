package app

import (
	"context"

	"go.trai.ch/bundle/internal/core/ports"
	"go.trai.ch/bundle/internal/engine/runtime"
	"go.trai.ch/zerr"
)

// ExecOptions configure Exec.
type ExecOptions struct {
	Options
	// TTY runs the command under a pseudo terminal.
	TTY bool
}

// Exec runs args with only the bundled gems activated. The error carries the
// command's exit status when it fails.
func (a *App) Exec(ctx context.Context, args []string, opts ExecOptions) error {
	if len(args) == 0 {
		return zerr.New("no command given")
	}

	p, err := a.load(opts.Options)
	if err != nil {
		return err
	}
	lock, err := a.current(ctx, p)
	if err != nil {
		return err
	}

	env, err := runtime.Activate(p.manifest, lock.Specs, p.settings.Layout(), p.settings.Without, p.settings.DisableSharedGems)
	if err != nil {
		return err
	}

	cmd := ports.Command{
		Args: args,
		Env:  env.Environ(a.environ),
		Dir:  a.workDir,
		TTY:  opts.TTY,
	}
	return a.runner.Run(ctx, cmd, a.stdin, a.stdout, a.stderr)
}

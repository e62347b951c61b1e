// Package shell runs commands inside an activated bundle.
package shell

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/creack/pty"
	"go.trai.ch/bundle/internal/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/term"
)

var _ ports.CommandRunner = (*Runner)(nil)

// Exit statuses reported for commands that could not be started.
const (
	ExitNotFound      = 127
	ExitNotExecutable = 126
)

// Runner implements ports.CommandRunner using os/exec and, on request, a
// pseudo terminal.
type Runner struct {
	logger ports.Logger
}

// NewRunner creates a new Runner.
func NewRunner(logger ports.Logger) *Runner {
	return &Runner{logger: logger}
}

// Run implements ports.CommandRunner. The program is looked up on the PATH
// of cmd.Env rather than the caller's environment.
func (r *Runner) Run(ctx context.Context, cmd ports.Command, stdin io.Reader, stdout, stderr io.Writer) error {
	if len(cmd.Args) == 0 {
		return zerr.New("no command given")
	}

	name := cmd.Args[0]
	executable := name
	if !strings.ContainsRune(name, filepath.Separator) {
		lp, err := lookPath(name, cmd.Env)
		if err != nil {
			return zerr.With(zerr.Wrap(err, "command not found"), "command", name)
		}
		executable = lp
	}

	c := exec.CommandContext(ctx, executable, cmd.Args[1:]...) //nolint:gosec // user provided command
	c.Args[0] = name
	c.Env = cmd.Env
	c.Dir = cmd.Dir

	r.logger.Debug("exec " + strings.Join(cmd.Args, " "))

	var err error
	if cmd.TTY {
		err = runPTY(c, stdin, stdout)
	} else {
		c.Stdin = stdin
		c.Stdout = stdout
		c.Stderr = stderr
		err = c.Run()
	}
	if err != nil {
		code, _ := ExitCode(err)
		return zerr.With(zerr.With(zerr.Wrap(err, "command failed"), "command", name), "exit_code", code)
	}
	return nil
}

// runPTY runs c attached to a pseudo terminal. When stdin is a terminal it
// is switched to raw mode and the window size is forwarded.
func runPTY(c *exec.Cmd, stdin io.Reader, stdout io.Writer) error {
	ptmx, err := pty.Start(c)
	if err != nil {
		return zerr.Wrap(err, "failed to start pty")
	}

	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		_ = pty.InheritSize(f, ptmx)
		if state, err := term.MakeRaw(int(f.Fd())); err == nil {
			defer func() { _ = term.Restore(int(f.Fd()), state) }()
		}
	}

	if stdin != nil {
		go func() { _, _ = io.Copy(ptmx, stdin) }()
	}

	ioDone := make(chan struct{})
	go func() {
		defer close(ioDone)
		// The pty merges stdout and stderr.
		_, _ = io.Copy(stdout, ptmx)
	}()

	err = c.Wait()
	// Closing the master unblocks the copy loop once the child is gone.
	_ = ptmx.Close()
	<-ioDone
	return err
}

// ExitCode returns the status a shell would report for a failed Run. ok is
// false when err does not come from running a command.
func ExitCode(err error) (code int, ok bool) {
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return 0, true
	case errors.As(err, &exitErr):
		return exitErr.ExitCode(), true
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return ExitNotFound, true
	case errors.Is(err, fs.ErrPermission):
		return ExitNotExecutable, true
	default:
		return 1, false
	}
}

// lookPath searches for an executable in the directories named by the PATH
// entry of env.
func lookPath(file string, env []string) (string, error) {
	var path string
	for _, e := range env {
		if v, ok := strings.CutPrefix(e, "PATH="); ok {
			path = v
		}
	}
	if path == "" {
		return "", exec.ErrNotFound
	}

	for _, dir := range filepath.SplitList(path) {
		if dir == "" {
			// Unix shell semantics: path element "" means "."
			dir = "."
		}
		candidate := filepath.Join(dir, file)
		if err := findExecutable(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", exec.ErrNotFound
}

func findExecutable(file string) error {
	d, err := os.Stat(file)
	if err != nil {
		return err
	}
	if m := d.Mode(); !m.IsDir() && m&0o111 != 0 {
		return nil
	}
	return os.ErrPermission
}

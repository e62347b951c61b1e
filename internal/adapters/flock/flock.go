// Package flock implements ports.Locker with advisory flock(2) locks.
package flock

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"go.trai.ch/bundle/internal/core/domain"
	"go.trai.ch/zerr"
	"golang.org/x/sys/unix"
)

// DefaultPollInterval is how often a contended lock is retried.
const DefaultPollInterval = 50 * time.Millisecond

// Locker takes exclusive advisory locks on files. Locks taken through
// different Lock calls exclude each other, also within one process.
type Locker struct {
	poll time.Duration
}

// New returns a Locker polling contended locks every poll interval. A
// non-positive poll uses DefaultPollInterval.
func New(poll time.Duration) *Locker {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return &Locker{poll: poll}
}

// Lock blocks until the exclusive lock on path is held or ctx is done. The
// file and its directory are created if missing. The returned function
// releases the lock.
func (l *Locker) Lock(ctx context.Context, path string) (func() error, error) {
	if err := os.MkdirAll(filepath.Dir(path), domain.DirPerm); err != nil {
		return nil, zerr.With(domain.ErrLockAcquireFailed.Wrap(err), "path", path)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, domain.PrivateFilePerm) //nolint:gosec // path is the layout's lock file
	if err != nil {
		return nil, zerr.With(domain.ErrLockAcquireFailed.Wrap(err), "path", path)
	}

	fd := int(f.Fd()) //nolint:gosec // fd fits in int
	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()

	for {
		err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			break
		}
		if !errors.Is(err, unix.EWOULDBLOCK) && !errors.Is(err, unix.EINTR) {
			_ = f.Close()
			return nil, zerr.With(domain.ErrLockAcquireFailed.Wrap(err), "path", path)
		}

		select {
		case <-ctx.Done():
			_ = f.Close()
			return nil, zerr.With(domain.ErrLockAcquireFailed.Wrap(ctx.Err()), "path", path)
		case <-ticker.C:
		}
	}

	return func() error {
		unlockErr := unix.Flock(fd, unix.LOCK_UN)
		closeErr := f.Close()
		if err := errors.Join(unlockErr, closeErr); err != nil {
			return zerr.With(zerr.Wrap(err, "failed to release lock"), "path", path)
		}
		return nil
	}, nil
}

package ports

import "context"

// Locker provides a process-wide advisory lock.
//
//go:generate mockgen -source=locker.go -destination=mocks/mock_locker.go -package=mocks
type Locker interface {
	// Lock blocks until the lock at path is held or ctx is done. The returned
	// function releases it.
	Lock(ctx context.Context, path string) (func() error, error)
}

package ports

import "go.trai.ch/bundle/internal/core/domain"

// LockStore persists resolved spec sets.
//
//go:generate mockgen -source=lockstore.go -destination=mocks/mock_lockstore.go -package=mocks
type LockStore interface {
	// Load reads the lock at path. It returns nil, nil when no lock exists.
	Load(path string) (*domain.LockedSpecSet, error)

	// Save writes lock to path atomically and reports whether the file content
	// changed.
	Save(path string, lock *domain.LockedSpecSet) (bool, error)
}

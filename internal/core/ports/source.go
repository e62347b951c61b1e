// Package ports defines the core interfaces for the application.
package ports

import (
	"context"

	"go.trai.ch/bundle/internal/core/domain"
)

//go:generate mockgen -source=source.go -destination=mocks/mock_source.go -package=mocks

// Source is a provider of specifications.
type Source interface {
	// Identity returns the identity every specification of this source carries.
	Identity() domain.SourceIdentity

	// Specs lists every specification the source offers for name, in any order.
	// An unknown name yields an empty list, not an error. A source that cannot
	// be reached returns domain.ErrSourceUnavailable.
	Specs(ctx context.Context, name string) ([]*domain.Specification, error)

	// Materialize places the files of spec into dir, which already exists and
	// is empty.
	Materialize(ctx context.Context, spec *domain.Specification, dir string) error
}

// SourceFactory builds a Source for a declared identity.
type SourceFactory interface {
	// For returns the Source serving id. Network and cache behavior follows
	// settings.
	For(ctx context.Context, id domain.SourceIdentity, settings domain.Settings) (Source, error)
}

// Package sources builds the Source serving each declared source identity.
package sources

import (
	"context"
	"sync"

	"go.trai.ch/bundle/internal/adapters/git"
	"go.trai.ch/bundle/internal/adapters/path"
	"go.trai.ch/bundle/internal/adapters/rubygems"
	"go.trai.ch/bundle/internal/core/domain"
	"go.trai.ch/bundle/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.SourceFactory = (*Factory)(nil)

// Factory implements ports.SourceFactory. Sources are reused for repeated
// requests of the same identity and settings, so their caches survive across
// resolution and installation.
type Factory struct {
	mu      sync.Mutex
	sources map[string]ports.Source
}

// NewFactory creates a new Factory.
func NewFactory() *Factory {
	return &Factory{sources: make(map[string]ports.Source)}
}

// For implements ports.SourceFactory.
func (f *Factory) For(_ context.Context, id domain.SourceIdentity, settings domain.Settings) (ports.Source, error) {
	cache := settings.Layout().CachePath()
	key := id.Key() + "#" + id.Revision + "#" + cache

	f.mu.Lock()
	defer f.mu.Unlock()
	if src, ok := f.sources[key]; ok {
		return src, nil
	}

	var src ports.Source
	switch id.Kind {
	case domain.SourceRubygems:
		remote, err := rubygems.New(id, cache,
			rubygems.WithCacheTTL(settings.CacheTTL),
			rubygems.WithRetry(settings.Retry, rubygems.DefaultRetryDelay),
		)
		if err != nil {
			return nil, err
		}
		src = remote
	case domain.SourceGit:
		src = git.New(id, cache)
	case domain.SourcePath:
		src = path.New(id)
	default:
		return nil, zerr.With(domain.ErrSourceUnavailable, "kind", string(id.Kind))
	}

	f.sources[key] = src
	return src, nil
}

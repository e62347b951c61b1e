package definition

import (
	"context"
	"runtime"
	"slices"
	"sync"

	"go.trai.ch/bundle/internal/core/domain"
	"go.trai.ch/bundle/internal/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// BuildIndex queries every source for every name reachable from roots and
// returns the merged Index. Sources are given in priority order.
//
// Listings are fetched concurrently, one round per dependency depth. Any
// source error aborts the build; a partial index is never returned.
func BuildIndex(ctx context.Context, sources []ports.Source, roots []domain.Dependency) (*domain.Index, error) {
	idx := domain.NewIndex()
	seen := make(map[string]struct{})

	var frontier []string
	for _, dep := range roots {
		if _, ok := seen[dep.Name]; !ok {
			seen[dep.Name] = struct{}{}
			frontier = append(frontier, dep.Name)
		}
	}

	for len(frontier) > 0 {
		listings, err := fetchRound(ctx, sources, frontier)
		if err != nil {
			return nil, err
		}

		var next []string
		for priority, bySource := range listings {
			for _, name := range frontier {
				specs := bySource[name]
				idx.Add(priority, specs...)
				for _, spec := range specs {
					for _, dep := range spec.Dependencies {
						if _, ok := seen[dep.Name]; !ok {
							seen[dep.Name] = struct{}{}
							next = append(next, dep.Name)
						}
					}
				}
			}
		}
		slices.Sort(next)
		frontier = next
	}
	return idx, nil
}

// fetchRound lists names from every source. The result is indexed by source
// priority, then name.
func fetchRound(ctx context.Context, sources []ports.Source, names []string) ([]map[string][]*domain.Specification, error) {
	out := make([]map[string][]*domain.Specification, len(sources))
	for i := range out {
		out[i] = make(map[string][]*domain.Specification, len(names))
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	for i, src := range sources {
		for _, name := range names {
			g.Go(func() error {
				specs, err := src.Specs(gctx, name)
				if err != nil {
					return zerr.With(err, "source", src.Identity().Short())
				}
				mu.Lock()
				out[i][name] = specs
				mu.Unlock()
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Package resolver selects one specification per gem name such that every
// dependency in the selection is satisfied.
//
// The search is depth-first with conflict-directed backjumping: when a branch
// fails, the search returns to the most recent choice point that contributed
// to the failure instead of exhausting every intermediate alternative.
package resolver

import (
	"context"
	"maps"
	"slices"

	"go.trai.ch/bundle/internal/core/domain"
	"go.trai.ch/zerr"
)

// DefaultMaxSteps bounds the number of attempted assignments.
const DefaultMaxSteps = 200_000

// Option configures a Resolver.
type Option func(*Resolver)

// WithPlatforms sets the platforms the result must serve.
func WithPlatforms(platforms ...domain.Platform) Option {
	return func(r *Resolver) {
		r.platforms = slices.Clone(platforms)
	}
}

// WithMaxSteps overrides DefaultMaxSteps. Zero or less disables the guard.
func WithMaxSteps(n int) Option {
	return func(r *Resolver) {
		r.maxSteps = n
	}
}

// Resolver searches an Index for a complete, consistent SpecSet.
type Resolver struct {
	index     *domain.Index
	platforms []domain.Platform
	maxSteps  int
	steps     int
}

// New creates a Resolver over index.
func New(index *domain.Index, opts ...Option) *Resolver {
	r := &Resolver{
		index:     index,
		platforms: []domain.Platform{domain.PlatformRuby},
		maxSteps:  DefaultMaxSteps,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Steps returns the number of assignments attempted by the last Resolve.
func (r *Resolver) Steps() int {
	return r.steps
}

// pending is a requirement waiting to be processed.
type pending struct {
	dep   domain.Dependency
	chain []string
	from  string
}

func (p pending) requirer() domain.Requirer {
	return domain.Requirer{Dependency: p.dep, Chain: p.chain}
}

// culprits are the names whose choices contributed to a failure.
type culprits map[string]struct{}

func (c culprits) add(names ...string) {
	for _, n := range names {
		if n != "" {
			c[n] = struct{}{}
		}
	}
}

func (c culprits) has(name string) bool {
	_, ok := c[name]
	return ok
}

// search holds the state of one Resolve call.
type search struct {
	*Resolver

	ctx      context.Context
	locked   map[string]*domain.Specification
	assigned map[string]*domain.Specification
	reqs     map[string][]pending
	trail    []domain.Conflict
	fatal    error

	// released holds locked names whose locked spec failed a requirement
	// on that name. They may take any version from then on.
	released map[string]bool
	// missing are transitive requirements on names no source knows.
	missing   []pending
	conflicts int
}

// Resolve finds a SpecSet satisfying roots. Roots are processed in order.
// A name listed in locked is restricted to its locked spec for as long as
// that spec satisfies every requirement on the name. Once a requirement on
// the name rejects it, the name is released to every version.
//
// Failures are reported as domain.ErrGemNotFound when a root names a gem
// unknown to the index, or when the only dead ends were unknown transitive
// names. Otherwise a *domain.ConflictError (a VersionConflict) names every
// set of requirements that could not be satisfied together.
func (r *Resolver) Resolve(
	ctx context.Context,
	roots []domain.Dependency,
	locked map[string]*domain.Specification,
) (*domain.SpecSet, error) {
	r.steps = 0
	s := &search{
		Resolver: r,
		ctx:      ctx,
		locked:   locked,
		assigned: make(map[string]*domain.Specification),
		reqs:     make(map[string][]pending),
		released: make(map[string]bool),
	}

	queue := make([]pending, 0, len(roots))
	for _, dep := range roots {
		queue = append(queue, pending{dep: dep, chain: []string{domain.ManifestName}})
	}

	ok, _ := s.solve(queue)
	if s.fatal != nil {
		return nil, s.fatal
	}
	if !ok {
		if len(s.missing) > 0 && s.conflicts == 0 {
			return nil, s.notFound(s.missing[0])
		}
		return nil, domain.NewConflictError(s.trail)
	}

	set := domain.NewSpecSet(slices.Collect(maps.Values(s.assigned))...)
	if err := set.Validate(r.platforms); err != nil {
		return nil, zerr.Wrap(err, "resolver produced an inconsistent set")
	}
	return set, nil
}

// solve processes the queue head and recurses. On failure it returns the
// names whose choices led to it.
func (s *search) solve(queue []pending) (bool, culprits) {
	for len(queue) > 0 && !queue[0].dep.ActiveOn(s.platforms) {
		queue = queue[1:]
	}
	if len(queue) == 0 {
		return true, nil
	}
	if s.fatal != nil {
		return false, nil
	}

	head, rest := queue[0], queue[1:]
	name := head.dep.Name

	s.reqs[name] = append(s.reqs[name], head)
	defer func() { s.reqs[name] = s.reqs[name][:len(s.reqs[name])-1] }()

	if chosen, ok := s.assigned[name]; ok {
		if head.dep.Matches(chosen, s.platforms) {
			return s.solve(rest)
		}
		if pin, ok := s.locked[name]; ok && sameRelease(pin, chosen) {
			s.released[name] = true
		}
		s.record(name, chosen.FullName())
		blame := s.blame(name)
		blame.add(name)
		return false, blame
	}

	if !s.index.Has(name) {
		if len(head.chain) == 1 {
			s.fatal = s.notFound(head)
			return false, nil
		}
		s.missing = append(s.missing, head)
		return false, s.blame(name)
	}

	candidates, pinned := s.candidates(name)
	if len(candidates) == 0 {
		s.record(name, "")
		return false, s.blame(name)
	}

	conflict := make(culprits)
	for i := 0; i < len(candidates); i++ {
		spec := candidates[i]
		if err := s.step(); err != nil {
			s.fatal = err
			return false, nil
		}

		s.assigned[name] = spec
		next := make([]pending, 0, len(rest)+len(spec.Dependencies))
		next = append(next, rest...)
		chain := append(slices.Clone(head.chain), spec.FullName())
		for _, dep := range spec.Dependencies {
			next = append(next, pending{dep: dep, chain: chain, from: name})
		}

		ok, failed := s.solve(next)
		if ok {
			return true, nil
		}
		delete(s.assigned, name)
		if s.fatal != nil {
			return false, nil
		}
		if !failed.has(name) {
			// Another version of name cannot change the outcome.
			return false, failed
		}
		maps.Copy(conflict, failed)

		if pinned && s.released[name] {
			pinned = false
			tried := candidates[:i+1]
			more, _ := s.candidates(name)
			for _, c := range more {
				if !slices.ContainsFunc(tried, func(t *domain.Specification) bool { return sameRelease(t, c) }) {
					candidates = append(candidates, c)
				}
			}
		}
	}

	delete(conflict, name)
	maps.Copy(conflict, s.blame(name))
	return false, conflict
}

func (s *search) step() error {
	s.steps++
	if s.maxSteps > 0 && s.steps > s.maxSteps {
		return zerr.With(domain.ErrResolutionTooComplex, "steps", s.maxSteps)
	}
	if s.steps%256 == 0 {
		if err := s.ctx.Err(); err != nil {
			return zerr.Wrap(err, "resolution canceled")
		}
	}
	return nil
}

// blame returns the names of the gems that required name.
func (s *search) blame(name string) culprits {
	out := make(culprits)
	for _, p := range s.reqs[name] {
		out.add(p.from)
	}
	return out
}

func (s *search) record(name, existing string) {
	s.conflicts++
	reqs := s.reqs[name]
	requirers := make([]domain.Requirer, len(reqs))
	for i, p := range reqs {
		requirers[i] = p.requirer()
	}
	s.trail = append(s.trail, domain.Conflict{Name: name, Existing: existing, Requirers: requirers})
}

func (s *search) notFound(p pending) error {
	err := zerr.With(domain.ErrGemNotFound, "gem", p.dep.String())
	return zerr.With(err, "required_by", p.requirer().String())
}

// candidates returns the specifications that satisfy every active
// requirement on name, one representative per version, newest first. A
// version qualifies only when its platform variants cover every platform
// requested for name. While name is locked and its locked version is still
// acceptable, that version is the only candidate and pinned is true.
func (s *search) candidates(name string) (out []*domain.Specification, pinned bool) {
	reqs := s.reqs[name]
	merged := domain.Dependency{Name: name}
	var platforms []domain.Platform
	for _, p := range reqs {
		merged.Requirement = merged.Requirement.Merge(p.dep.Requirement)
		if p.dep.Source != nil {
			if merged.Source != nil && merged.Source.Key() != p.dep.Source.Key() {
				return nil, false
			}
			merged.Source = p.dep.Source
		}
		for _, plat := range p.dep.EffectivePlatforms(s.platforms) {
			if !slices.Contains(platforms, plat) {
				platforms = append(platforms, plat)
			}
		}
	}
	merged.Platforms = platforms

	matches := s.index.Search(merged, s.platforms)

	for i := 0; i < len(matches); {
		j := i + 1
		for j < len(matches) && matches[j].Version.Equal(matches[i].Version) && matches[j].Source.Key() == matches[i].Source.Key() {
			j++
		}
		variants := matches[i:j]
		if covers(variants, platforms) {
			out = append(out, variants[0])
		}
		i = j
	}

	if pin, ok := s.locked[name]; ok && !s.released[name] {
		idx := slices.IndexFunc(out, func(c *domain.Specification) bool { return sameRelease(c, pin) })
		if idx >= 0 {
			return out[idx : idx+1], true
		}
		s.released[name] = true
	}
	return out, false
}

// sameRelease reports whether a and b are the same version from the same
// source.
func sameRelease(a, b *domain.Specification) bool {
	return a.Version.Equal(b.Version) && a.Source.Key() == b.Source.Key()
}

func covers(variants []*domain.Specification, platforms []domain.Platform) bool {
	for _, want := range platforms {
		if !slices.ContainsFunc(variants, func(v *domain.Specification) bool { return v.Platform.Matches(want) }) {
			return false
		}
	}
	return true
}

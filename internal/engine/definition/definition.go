// Package definition reconciles a project's manifest with its prior lock.
//
// A Definition decides whether the locked set can be reused verbatim, which
// locked specifications stay pinned, and runs the resolver for the rest.
package definition

import (
	"context"
	"slices"

	"go.trai.ch/bundle/internal/core/domain"
	"go.trai.ch/bundle/internal/core/ports"
	"go.trai.ch/bundle/internal/engine/resolver"
	"go.trai.ch/zerr"
)

// Outcome describes how a resolution was obtained.
type Outcome struct {
	// FastPath is true when the prior lock was reused without searching.
	FastPath bool

	// Steps is the number of assignments the resolver attempted.
	Steps int

	// Unlocked lists the gem names released from the prior lock.
	Unlocked []string
}

// Option configures a Definition.
type Option func(*Definition)

// WithFrozen makes any difference between manifest and lock an error.
func WithFrozen(frozen bool) Option {
	return func(d *Definition) {
		d.frozen = frozen
	}
}

// WithTracer wraps resolution in a span.
func WithTracer(tracer ports.Tracer) Option {
	return func(d *Definition) {
		d.tracer = tracer
	}
}

// WithMaxSteps bounds the resolver's search.
func WithMaxSteps(n int) Option {
	return func(d *Definition) {
		d.maxSteps = n
	}
}

// Definition is the reconciliation of a manifest against its prior lock.
type Definition struct {
	manifest  *domain.Manifest
	lock      *domain.LockedSpecSet
	unlocked  map[string]struct{}
	unlockAll bool
	frozen    bool
	tracer    ports.Tracer
	maxSteps  int
}

// New creates a Definition. lock may be nil when no lock exists yet.
func New(manifest *domain.Manifest, lock *domain.LockedSpecSet, opts ...Option) *Definition {
	d := &Definition{
		manifest: manifest,
		lock:     lock,
		unlocked: make(map[string]struct{}),
		maxSteps: resolver.DefaultMaxSteps,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Unlock releases the named gems from the prior lock. Names that are neither
// locked nor declared are reported as domain.ErrGemNotFound.
func (d *Definition) Unlock(names ...string) error {
	for _, n := range names {
		_, declared := findDependency(d.manifest.Dependencies, n)
		locked := false
		if d.lock != nil && d.lock.Specs != nil {
			_, locked = d.lock.Specs.Lookup(n)
		}
		if !declared && !locked {
			return zerr.With(domain.ErrGemNotFound, "gem", n)
		}
		d.unlocked[n] = struct{}{}
	}
	return nil
}

// UnlockAll releases every locked gem.
func (d *Definition) UnlockAll() {
	d.unlockAll = true
}

// Changes lists the root dependencies added, removed or modified since the
// lock was written, sorted by name. Every root counts as changed when there
// is no lock.
func (d *Definition) Changes() []string {
	var changed []string
	var locked []domain.Dependency
	if d.lock != nil {
		locked = d.lock.Dependencies
	}
	for _, dep := range d.manifest.Dependencies {
		prior, ok := findDependency(locked, dep.Name)
		if !ok || !prior.Equal(dep) {
			changed = append(changed, dep.Name)
		}
	}
	for _, dep := range locked {
		if _, ok := findDependency(d.manifest.Dependencies, dep.Name); !ok {
			changed = append(changed, dep.Name)
		}
	}
	slices.Sort(changed)
	return slices.Compact(changed)
}

func findDependency(deps []domain.Dependency, name string) (domain.Dependency, bool) {
	for _, d := range deps {
		if d.Name == name {
			return d, true
		}
	}
	return domain.Dependency{}, false
}

// Reusable reports whether the prior lock can be used without searching:
// it exists, its roots equal the manifest's exactly, nothing is unlocked,
// and its set is still closed.
func (d *Definition) Reusable() bool {
	if d.lock == nil || d.lock.Specs == nil || d.unlockAll || len(d.unlocked) > 0 {
		return false
	}
	if len(d.Changes()) > 0 {
		return false
	}
	if !sameSources(d.lock.Sources, d.manifest.Sources) {
		return false
	}
	platforms := d.manifest.ResolutionPlatforms()
	if !slices.Equal(d.lock.Platforms, platforms) {
		return false
	}
	for _, dep := range d.manifest.Dependencies {
		if !dep.ActiveOn(platforms) {
			continue
		}
		spec, ok := d.lock.Specs.Lookup(dep.Name)
		if !ok || !dep.Matches(spec, platforms) {
			return false
		}
	}
	return d.lock.Specs.Validate(platforms) == nil
}

func sameSources(a, b []domain.SourceIdentity) bool {
	return slices.EqualFunc(a, b, func(x, y domain.SourceIdentity) bool { return x.Key() == y.Key() })
}

// FromLock returns the prior lock without consulting any source. It fails
// with domain.ErrLockOutOfDate when the lock cannot be reused.
func (d *Definition) FromLock() (*domain.LockedSpecSet, error) {
	if d.Reusable() {
		return d.lock, nil
	}
	err := zerr.With(domain.ErrLockOutOfDate, "lockfile", d.manifest.LockPath())
	if d.lock == nil {
		return nil, zerr.With(err, "reason", "no lock file")
	}
	if changed := d.Changes(); len(changed) > 0 {
		return nil, zerr.With(err, "changed", changed)
	}
	return nil, err
}

// Resolve produces the locked set for the manifest. sources must correspond
// one to one with the manifest's declared sources.
//
// When the prior lock is reusable it is returned verbatim with zero steps
// and no source is queried. Otherwise every locked specification that is
// still reachable from an unchanged root stays pinned, and the rest is
// searched afresh.
func (d *Definition) Resolve(ctx context.Context, sources []ports.Source) (*domain.LockedSpecSet, Outcome, error) {
	if d.Reusable() {
		return d.lock, Outcome{FastPath: true}, nil
	}
	if d.frozen {
		_, err := d.FromLock()
		return nil, Outcome{}, err
	}

	if d.tracer != nil {
		var span ports.Span
		ctx, span = d.tracer.Start(ctx, "resolve")
		defer span.End()
		lock, outcome, err := d.resolve(ctx, sources)
		span.SetAttribute("steps", outcome.Steps)
		if err != nil {
			span.RecordError(err)
		}
		return lock, outcome, err
	}
	return d.resolve(ctx, sources)
}

func (d *Definition) resolve(ctx context.Context, sources []ports.Source) (*domain.LockedSpecSet, Outcome, error) {
	if len(sources) != len(d.manifest.Sources) {
		return nil, Outcome{}, zerr.With(domain.ErrSourceUnavailable, "reason", "source count mismatch")
	}

	platforms := d.manifest.ResolutionPlatforms()
	pinned, released := d.pins()

	index, err := BuildIndex(ctx, sources, d.manifest.Dependencies)
	if err != nil {
		return nil, Outcome{}, err
	}

	r := resolver.New(index, resolver.WithPlatforms(platforms...), resolver.WithMaxSteps(d.maxSteps))
	set, err := r.Resolve(ctx, d.manifest.Dependencies, pinned)
	outcome := Outcome{Steps: r.Steps(), Unlocked: released}
	if err != nil {
		return nil, outcome, err
	}

	identities := make([]domain.SourceIdentity, len(sources))
	for i, src := range sources {
		identities[i] = src.Identity()
	}

	return &domain.LockedSpecSet{
		Sources:      identities,
		Dependencies: slices.Clone(d.manifest.Dependencies),
		Platforms:    platforms,
		Specs:        set,
		Digest:       d.manifest.Digest(),
	}, outcome, nil
}

// pins returns the locked specifications that stay pinned and the sorted
// names released from the lock. A locked spec stays pinned when it is
// reachable from an unchanged root, is not explicitly unlocked and its
// source is still declared.
func (d *Definition) pins() (map[string]*domain.Specification, []string) {
	if d.lock == nil || d.lock.Specs == nil {
		return nil, nil
	}

	changed := d.Changes()
	var unchanged []domain.Dependency
	for _, dep := range d.manifest.Dependencies {
		if !slices.Contains(changed, dep.Name) {
			unchanged = append(unchanged, dep)
		}
	}
	reachable := d.lock.Specs.Materialize(unchanged)

	declared := make(map[string]struct{}, len(d.manifest.Sources))
	for _, s := range d.manifest.Sources {
		declared[s.Key()] = struct{}{}
	}

	pinned := make(map[string]*domain.Specification)
	var released []string
	for _, spec := range d.lock.Specs.Sorted() {
		_, explicit := d.unlocked[spec.Name]
		_, reached := reachable.Lookup(spec.Name)
		_, known := declared[spec.Source.Key()]
		if d.unlockAll || explicit || !reached || !known || slices.Contains(changed, spec.Name) {
			released = append(released, spec.Name)
			continue
		}
		pinned[spec.Name] = spec
	}
	return pinned, released
}

package resolver_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/bundle/internal/core/domain"
	"go.trai.ch/bundle/internal/engine/resolver"
	"go.trai.ch/zerr"
)

var remote = domain.SourceIdentity{Kind: domain.SourceRubygems, Location: domain.DefaultRemote}

func mkspec(name, version string, deps ...string) *domain.Specification {
	s := &domain.Specification{
		Name:     name,
		Version:  domain.MustParseVersion(version),
		Platform: domain.PlatformRuby,
		Source:   remote,
	}
	for _, d := range deps {
		s.Dependencies = append(s.Dependencies, mkdep(d))
	}
	return s
}

func mkdep(s string) domain.Dependency {
	name, req, _ := strings.Cut(s, " ")
	return domain.Dependency{Name: name, Requirement: domain.MustParseRequirement(req)}
}

func mkindex(specs ...*domain.Specification) *domain.Index {
	idx := domain.NewIndex()
	idx.Add(0, specs...)
	return idx
}

func resolved(set *domain.SpecSet) []string {
	var out []string
	for _, s := range set.Sorted() {
		out = append(out, s.FullName())
	}
	return out
}

func fooBarIndex() *domain.Index {
	return mkindex(
		mkspec("foo", "1.0", "bar = 1.0"),
		mkspec("foo", "1.1", "bar = 1.0"),
		mkspec("foo", "2.0", "bar = 2.0"),
		mkspec("bar", "1.0"),
		mkspec("bar", "2.0"),
	)
}

func TestResolve_NewestSatisfyingVersion(t *testing.T) {
	r := resolver.New(fooBarIndex())

	set, err := r.Resolve(context.Background(), []domain.Dependency{mkdep("foo >= 1.0, < 2.0")}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"bar-1.0", "foo-1.1"}, resolved(set))
	assert.Equal(t, 2, r.Steps())
}

func TestResolve_ConflictNamesBothRequirements(t *testing.T) {
	r := resolver.New(fooBarIndex())

	_, err := r.Resolve(context.Background(), []domain.Dependency{mkdep("foo = 1.0"), mkdep("foo = 2.0")}, nil)
	require.Error(t, err)
	require.ErrorIs(t, err, domain.ErrVersionConflict)
	assert.Equal(t, domain.KindVersionConflict, domain.KindOf(err))
	assert.Equal(t, 6, domain.ExitCode(err))

	var conflict *domain.ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, []string{"foo"}, conflict.Names())
	assert.Contains(t, err.Error(), "Bundlefile depends on foo (= 1.0)")
	assert.Contains(t, err.Error(), "Bundlefile depends on foo (= 2.0)")
}

func TestResolve_TransitiveConflictReportsChains(t *testing.T) {
	idx := mkindex(
		mkspec("a", "1.0", "c = 1.0"),
		mkspec("b", "1.0", "c = 2.0"),
		mkspec("c", "1.0"),
		mkspec("c", "2.0"),
	)

	_, err := resolver.New(idx).Resolve(context.Background(), []domain.Dependency{mkdep("a"), mkdep("b")}, nil)
	require.ErrorIs(t, err, domain.ErrVersionConflict)
	assert.Contains(t, err.Error(), "Bundlefile -> a-1.0 depends on c (= 1.0)")
	assert.Contains(t, err.Error(), "Bundlefile -> b-1.0 depends on c (= 2.0)")
}

func TestResolve_Backtracks(t *testing.T) {
	idx := mkindex(
		mkspec("a", "2.0", "c = 2.0"),
		mkspec("a", "1.0", "c = 1.0"),
		mkspec("b", "1.0", "c = 1.0"),
		mkspec("c", "1.0"),
		mkspec("c", "2.0"),
	)
	r := resolver.New(idx)

	set, err := r.Resolve(context.Background(), []domain.Dependency{mkdep("a"), mkdep("b")}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"a-1.0", "b-1.0", "c-1.0"}, resolved(set))
	assert.Equal(t, 6, r.Steps())
}

func TestResolve_BackjumpsOverUnrelatedChoices(t *testing.T) {
	specs := []*domain.Specification{mkspec("b", "1.0", "c = 9.9"), mkspec("c", "1.0")}
	for _, v := range []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10"} {
		specs = append(specs, mkspec("a", v))
	}
	r := resolver.New(mkindex(specs...))

	_, err := r.Resolve(context.Background(), []domain.Dependency{mkdep("a"), mkdep("b")}, nil)
	require.ErrorIs(t, err, domain.ErrVersionConflict)
	assert.Equal(t, 2, r.Steps(), "versions of a are irrelevant to the failure")
}

func TestResolve_GemNotFound(t *testing.T) {
	tests := []struct {
		name  string
		index *domain.Index
		roots []domain.Dependency
	}{
		{
			name:  "root",
			index: fooBarIndex(),
			roots: []domain.Dependency{mkdep("missing")},
		},
		{
			name:  "transitive",
			index: mkindex(mkspec("foo", "1.0", "nope >= 1")),
			roots: []domain.Dependency{mkdep("foo")},
		},
		{
			name:  "transitive in every version",
			index: mkindex(mkspec("foo", "1.0", "nope >= 1"), mkspec("foo", "2.0", "ghost >= 0")),
			roots: []domain.Dependency{mkdep("foo")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := resolver.New(tt.index).Resolve(context.Background(), tt.roots, nil)
			require.ErrorIs(t, err, domain.ErrGemNotFound)
			assert.Equal(t, 7, domain.ExitCode(err))
		})
	}
}

func TestResolve_MissingTransitiveBacktracks(t *testing.T) {
	idx := mkindex(mkspec("foo", "1.0"), mkspec("foo", "2.0", "ghost >= 0"))

	set, err := resolver.New(idx).Resolve(context.Background(), []domain.Dependency{mkdep("foo")}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"foo-1.0"}, resolved(set))
}

func TestResolve_MissingTransitiveNamesChain(t *testing.T) {
	idx := mkindex(mkspec("foo", "1.0", "bar >= 0"), mkspec("bar", "1.0", "ghost >= 0"))

	_, err := resolver.New(idx).Resolve(context.Background(), []domain.Dependency{mkdep("foo")}, nil)
	require.ErrorIs(t, err, domain.ErrGemNotFound)

	var zErr *zerr.Error
	require.ErrorAs(t, err, &zErr)
	assert.Equal(t, "Bundlefile -> foo-1.0 -> bar-1.0 depends on ghost (>= 0)", zErr.Metadata()["required_by"])
}

func TestResolve_Deterministic(t *testing.T) {
	specs := []*domain.Specification{
		mkspec("rails", "7.0", "activesupport = 7.0", "rack >= 2"),
		mkspec("rails", "7.1", "activesupport = 7.1", "rack >= 3"),
		mkspec("activesupport", "7.0", "i18n ~> 1.6"),
		mkspec("activesupport", "7.1", "i18n ~> 1.6"),
		mkspec("rack", "2.2"),
		mkspec("rack", "3.0"),
		mkspec("i18n", "1.6"),
		mkspec("i18n", "1.14"),
		mkspec("puma", "6.0", "rack >= 2, < 3"),
	}
	roots := []domain.Dependency{mkdep("rails"), mkdep("puma")}

	reversed := make([]*domain.Specification, len(specs))
	for i, s := range specs {
		reversed[len(specs)-1-i] = s
	}

	first, err := resolver.New(mkindex(specs...)).Resolve(context.Background(), roots, nil)
	require.NoError(t, err)
	second, err := resolver.New(mkindex(reversed...)).Resolve(context.Background(), roots, nil)
	require.NoError(t, err)

	if diff := cmp.Diff(resolved(first), resolved(second)); diff != "" {
		t.Errorf("resolution differs (-first +second):\n%s", diff)
	}
	assert.Equal(t, []string{"activesupport-7.0", "i18n-1.14", "puma-6.0", "rack-2.2", "rails-7.0"}, resolved(first))
	require.NoError(t, first.Validate([]domain.Platform{domain.PlatformRuby}))
}

func TestResolve_PrefersLockedVersion(t *testing.T) {
	idx := mkindex(mkspec("foo", "1.0"), mkspec("foo", "1.1"))
	locked := map[string]*domain.Specification{"foo": mkspec("foo", "1.0")}

	t.Run("still acceptable", func(t *testing.T) {
		set, err := resolver.New(idx).Resolve(context.Background(), []domain.Dependency{mkdep("foo")}, locked)
		require.NoError(t, err)
		assert.Equal(t, []string{"foo-1.0"}, resolved(set))
	})

	t.Run("excluded by a new constraint", func(t *testing.T) {
		set, err := resolver.New(idx).Resolve(context.Background(), []domain.Dependency{mkdep("foo >= 1.1")}, locked)
		require.NoError(t, err)
		assert.Equal(t, []string{"foo-1.1"}, resolved(set))
	})

	t.Run("held to the lock", func(t *testing.T) {
		idx := mkindex(
			mkspec("foo", "1.0", "bar = 1.0"),
			mkspec("foo", "1.1", "bar >= 2.0"),
			mkspec("bar", "1.0"),
			mkspec("bar", "2.0"),
		)
		locked := map[string]*domain.Specification{"foo": mkspec("foo", "1.0", "bar = 1.0")}
		roots := []domain.Dependency{mkdep("foo >= 0"), mkdep("bar >= 2.0")}

		_, err := resolver.New(idx).Resolve(context.Background(), roots, locked)
		require.ErrorIs(t, err, domain.ErrVersionConflict)

		set, err := resolver.New(idx).Resolve(context.Background(), roots, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"bar-2.0", "foo-1.1"}, resolved(set))
	})

	t.Run("released by a later requirement on the same name", func(t *testing.T) {
		idx := mkindex(
			mkspec("foo", "1.0", "bar >= 2.0"),
			mkspec("bar", "1.0"),
			mkspec("bar", "2.0"),
		)
		locked := map[string]*domain.Specification{"bar": mkspec("bar", "1.0")}
		roots := []domain.Dependency{mkdep("bar >= 0"), mkdep("foo")}

		set, err := resolver.New(idx).Resolve(context.Background(), roots, locked)
		require.NoError(t, err)
		assert.Equal(t, []string{"bar-2.0", "foo-1.0"}, resolved(set))
	})
}

func TestResolve_Prereleases(t *testing.T) {
	idx := mkindex(mkspec("foo", "1.0"), mkspec("foo", "2.0.rc1"))

	set, err := resolver.New(idx).Resolve(context.Background(), []domain.Dependency{mkdep("foo")}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"foo-1.0"}, resolved(set))

	set, err = resolver.New(idx).Resolve(context.Background(), []domain.Dependency{mkdep("foo >= 2.0.rc1")}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"foo-2.0.rc1"}, resolved(set))
}

func TestResolve_Platforms(t *testing.T) {
	linux := domain.Platform("x86_64-linux")
	native := mkspec("nokogiri", "1.1")
	native.Platform = linux
	idx := mkindex(mkspec("nokogiri", "1.0"), native)

	t.Run("every platform must be covered", func(t *testing.T) {
		r := resolver.New(idx, resolver.WithPlatforms(domain.PlatformRuby, linux))
		set, err := r.Resolve(context.Background(), []domain.Dependency{mkdep("nokogiri")}, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"nokogiri-1.0"}, resolved(set))
	})

	t.Run("native only", func(t *testing.T) {
		r := resolver.New(idx, resolver.WithPlatforms(linux))
		set, err := r.Resolve(context.Background(), []domain.Dependency{mkdep("nokogiri")}, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"nokogiri-1.1-x86_64-linux"}, resolved(set))
	})

	t.Run("dependency for another platform is ignored", func(t *testing.T) {
		dep := mkdep("missing")
		dep.Platforms = []domain.Platform{"java"}
		set, err := resolver.New(idx).Resolve(context.Background(), []domain.Dependency{dep, mkdep("nokogiri")}, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"nokogiri-1.0"}, resolved(set))
	})
}

func TestResolve_SourcePin(t *testing.T) {
	mirror := domain.SourceIdentity{Kind: domain.SourceRubygems, Location: "https://gems.example.com"}
	pinned := mkspec("foo", "1.0")
	pinned.Source = mirror

	idx := domain.NewIndex()
	idx.Add(0, mkspec("foo", "2.0"))
	idx.Add(1, pinned)

	dep := mkdep("foo")
	dep.Source = &mirror
	set, err := resolver.New(idx).Resolve(context.Background(), []domain.Dependency{dep}, nil)
	require.NoError(t, err)

	got, ok := set.Lookup("foo")
	require.True(t, ok)
	assert.Equal(t, mirror.Key(), got.Source.Key())
	assert.Equal(t, "1.0", got.Version.String())
}

func TestResolve_MaxSteps(t *testing.T) {
	idx := mkindex(
		mkspec("a", "2.0", "c = 2.0"),
		mkspec("a", "1.0", "c = 1.0"),
		mkspec("b", "1.0", "c = 1.0"),
		mkspec("c", "1.0"),
		mkspec("c", "2.0"),
	)

	_, err := resolver.New(idx, resolver.WithMaxSteps(3)).
		Resolve(context.Background(), []domain.Dependency{mkdep("a"), mkdep("b")}, nil)
	require.ErrorIs(t, err, domain.ErrResolutionTooComplex)
	assert.Equal(t, domain.KindVersionConflict, domain.KindOf(err))
}

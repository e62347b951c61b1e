package definition_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/bundle/internal/adapters/lockfile"
	"go.trai.ch/bundle/internal/core/domain"
	"go.trai.ch/bundle/internal/core/ports"
	"go.trai.ch/bundle/internal/core/ports/mocks"
	"go.trai.ch/bundle/internal/engine/definition"
	"go.trai.ch/zerr"
	"go.uber.org/mock/gomock"
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

func mkmanifest(deps ...string) *domain.Manifest {
	m := &domain.Manifest{Path: "/project/Bundlefile", Sources: []domain.SourceIdentity{remote}}
	for _, d := range deps {
		m.Dependencies = append(m.Dependencies, mkdep(d))
	}
	return m
}

// catalogSource returns a mock source serving specs grouped by name.
func catalogSource(ctrl *gomock.Controller, id domain.SourceIdentity, specs ...*domain.Specification) *mocks.MockSource {
	byName := make(map[string][]*domain.Specification)
	for _, s := range specs {
		byName[s.Name] = append(byName[s.Name], s)
	}
	src := mocks.NewMockSource(ctrl)
	src.EXPECT().Identity().Return(id).AnyTimes()
	src.EXPECT().Specs(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, name string) ([]*domain.Specification, error) {
			return byName[name], nil
		},
	).AnyTimes()
	return src
}

func versionOf(t *testing.T, lock *domain.LockedSpecSet, name string) string {
	t.Helper()
	spec, ok := lock.Specs.Lookup(name)
	require.True(t, ok, "%s is not in the set", name)
	return spec.Version.String()
}

var catalog = []*domain.Specification{
	mkspec("foo", "1.0", "bar = 1.0"),
	mkspec("foo", "1.1", "bar = 1.0"),
	mkspec("foo", "2.0", "bar = 2.0"),
	mkspec("bar", "1.0"),
	mkspec("bar", "2.0"),
	mkspec("baz", "1.0"),
}

func TestResolve_WithoutLock(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := catalogSource(ctrl, remote, catalog...)
	m := mkmanifest("foo >= 1.0, < 2.0")

	lock, outcome, err := definition.New(m, nil).Resolve(context.Background(), []ports.Source{src})
	require.NoError(t, err)

	assert.False(t, outcome.FastPath)
	assert.Equal(t, 2, outcome.Steps)
	assert.Equal(t, "1.1", versionOf(t, lock, "foo"))
	assert.Equal(t, "1.0", versionOf(t, lock, "bar"))
	assert.Equal(t, m.Digest(), lock.Digest)
	assert.Equal(t, []domain.Platform{domain.PlatformRuby}, lock.Platforms)
	assert.True(t, lock.Matches(m))
}

func TestResolve_FastPathSkipsSources(t *testing.T) {
	linux := domain.Platform("x86_64-linux")
	engine := domain.SourceIdentity{Kind: domain.SourceGit, Location: "https://example.com/engine.git", Ref: "main"}
	checkout := engine
	checkout.Revision = "abc123"

	rspec := mkdep("rspec >= 3.0")
	rspec.Groups = []string{"test", "development"}
	nokogiri := mkdep("nokogiri")
	nokogiri.Platforms = []domain.Platform{linux}
	nokogiri.Groups = []string{"test"}
	engineDep := mkdep("engine")
	engineDep.Source = &engine

	m := &domain.Manifest{
		Path:         "/project/Bundlefile",
		Sources:      []domain.SourceIdentity{remote, engine},
		Dependencies: []domain.Dependency{mkdep("rails ~> 7.0"), rspec, nokogiri, engineDep},
		Platforms:    []domain.Platform{linux, domain.PlatformRuby},
	}

	native := mkspec("nokogiri", "1.15.0")
	native.Platform = linux
	engineSpec := mkspec("engine", "0.1.0", "rails >= 7.0")
	engineSpec.Source = checkout

	ctrl := gomock.NewController(t)
	sources := []ports.Source{
		catalogSource(ctrl, remote,
			mkspec("rails", "7.0.1", "rack >= 2.0"),
			mkspec("rails", "7.1.0", "rack >= 3.0"),
			mkspec("rack", "2.2.8"),
			mkspec("rack", "3.0.0"),
			mkspec("rspec", "3.12.0"),
			native,
		),
		catalogSource(ctrl, checkout, engineSpec),
	}

	first, outcome, err := definition.New(m, nil).Resolve(context.Background(), sources)
	require.NoError(t, err)
	require.False(t, outcome.FastPath)

	data, err := lockfile.Encode(first)
	require.NoError(t, err)
	decoded, err := lockfile.Decode(data)
	require.NoError(t, err)

	untouched := mocks.NewMockSource(ctrl)
	untouched.EXPECT().Specs(gomock.Any(), gomock.Any()).Times(0)

	second, outcome, err := definition.New(m, decoded).Resolve(context.Background(), []ports.Source{untouched, untouched})
	require.NoError(t, err)

	assert.True(t, outcome.FastPath)
	assert.Zero(t, outcome.Steps)
	assert.Same(t, decoded, second)

	locked, ok := second.Specs.Lookup("nokogiri")
	require.True(t, ok)
	assert.Equal(t, linux, locked.Platform)
	locked, ok = second.Specs.Lookup("engine")
	require.True(t, ok)
	assert.Equal(t, "abc123", locked.Source.Revision)
	assert.Equal(t, "7.1.0", versionOf(t, second, "rails"))

	again, err := lockfile.Encode(second)
	require.NoError(t, err)
	assert.Equal(t, string(data), string(again))
}

func lockWith(m *domain.Manifest, specs ...*domain.Specification) *domain.LockedSpecSet {
	return &domain.LockedSpecSet{
		Sources:      m.Sources,
		Dependencies: m.Dependencies,
		Platforms:    m.ResolutionPlatforms(),
		Specs:        domain.NewSpecSet(specs...),
		Digest:       m.Digest(),
	}
}

func TestResolve_PinsUnchangedRoots(t *testing.T) {
	ctrl := gomock.NewController(t)
	prior := lockWith(mkmanifest("foo", "baz"), mkspec("foo", "1.0", "bar = 1.0"), mkspec("bar", "1.0"), mkspec("baz", "1.0"))
	src := catalogSource(ctrl, remote, append(catalog, mkspec("baz", "2.0"), mkspec("qux", "1.0"))...)

	lock, outcome, err := definition.New(mkmanifest("foo", "baz", "qux"), prior).Resolve(context.Background(), []ports.Source{src})
	require.NoError(t, err)

	assert.False(t, outcome.FastPath)
	assert.Empty(t, outcome.Unlocked)
	assert.Equal(t, "1.0", versionOf(t, lock, "foo"))
	assert.Equal(t, "1.0", versionOf(t, lock, "bar"))
	assert.Equal(t, "1.0", versionOf(t, lock, "baz"))
	assert.Equal(t, "1.0", versionOf(t, lock, "qux"))
}

func TestResolve_Unlock(t *testing.T) {
	prior := lockWith(mkmanifest("foo", "baz"), mkspec("foo", "1.0", "bar = 1.0"), mkspec("bar", "1.0"), mkspec("baz", "1.0"))
	extended := append(catalog, mkspec("baz", "2.0"))

	t.Run("named gem", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		def := definition.New(mkmanifest("foo", "baz"), prior)
		require.NoError(t, def.Unlock("baz"))

		lock, outcome, err := def.Resolve(context.Background(), []ports.Source{catalogSource(ctrl, remote, extended...)})
		require.NoError(t, err)

		assert.Equal(t, []string{"baz"}, outcome.Unlocked)
		assert.Equal(t, "2.0", versionOf(t, lock, "baz"))
		assert.Equal(t, "1.0", versionOf(t, lock, "foo"))
	})

	t.Run("everything", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		def := definition.New(mkmanifest("foo", "baz"), prior)
		def.UnlockAll()

		lock, outcome, err := def.Resolve(context.Background(), []ports.Source{catalogSource(ctrl, remote, extended...)})
		require.NoError(t, err)

		assert.Equal(t, []string{"bar", "baz", "foo"}, outcome.Unlocked)
		assert.Equal(t, "2.0", versionOf(t, lock, "foo"))
		assert.Equal(t, "2.0", versionOf(t, lock, "bar"))
		assert.Equal(t, "2.0", versionOf(t, lock, "baz"))
	})

	t.Run("unknown gem", func(t *testing.T) {
		err := definition.New(mkmanifest("foo", "baz"), prior).Unlock("nope")
		require.ErrorIs(t, err, domain.ErrGemNotFound)
	})
}

func TestResolve_Frozen(t *testing.T) {
	prior := lockWith(mkmanifest("baz"), mkspec("baz", "1.0"))

	t.Run("unchanged", func(t *testing.T) {
		lock, outcome, err := definition.New(mkmanifest("baz"), prior, definition.WithFrozen(true)).
			Resolve(context.Background(), []ports.Source{mocks.NewMockSource(gomock.NewController(t))})
		require.NoError(t, err)
		assert.True(t, outcome.FastPath)
		assert.Same(t, prior, lock)
	})

	t.Run("changed", func(t *testing.T) {
		_, _, err := definition.New(mkmanifest("baz", "foo"), prior, definition.WithFrozen(true)).
			Resolve(context.Background(), []ports.Source{mocks.NewMockSource(gomock.NewController(t))})
		require.ErrorIs(t, err, domain.ErrLockOutOfDate)
		assert.Equal(t, 4, domain.ExitCode(err))

		var zErr *zerr.Error
		require.ErrorAs(t, err, &zErr)
		assert.Equal(t, []string{"foo"}, zErr.Metadata()["changed"])
	})
}

func TestResolve_Errors(t *testing.T) {
	t.Run("unreachable source", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		src := mocks.NewMockSource(ctrl)
		src.EXPECT().Identity().Return(remote).AnyTimes()
		src.EXPECT().Specs(gomock.Any(), "foo").Return(nil, zerr.With(domain.ErrSourceUnavailable, "status", 503))

		_, _, err := definition.New(mkmanifest("foo"), nil).Resolve(context.Background(), []ports.Source{src})
		require.ErrorIs(t, err, domain.ErrSourceUnavailable)
		assert.Equal(t, domain.KindGemfileError, domain.KindOf(err))
	})

	t.Run("unknown gem", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		_, _, err := definition.New(mkmanifest("missing"), nil).
			Resolve(context.Background(), []ports.Source{catalogSource(ctrl, remote, catalog...)})
		require.ErrorIs(t, err, domain.ErrGemNotFound)
	})

	t.Run("conflict passes through", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		_, outcome, err := definition.New(mkmanifest("foo = 1.0", "bar = 2.0"), nil).
			Resolve(context.Background(), []ports.Source{catalogSource(ctrl, remote, catalog...)})
		require.ErrorIs(t, err, domain.ErrVersionConflict)
		assert.Positive(t, outcome.Steps)
	})
}

func TestFromLock(t *testing.T) {
	_, err := definition.New(mkmanifest("foo"), nil).FromLock()
	require.ErrorIs(t, err, domain.ErrLockOutOfDate)

	prior := lockWith(mkmanifest("baz"), mkspec("baz", "1.0"))
	lock, err := definition.New(mkmanifest("baz"), prior).FromLock()
	require.NoError(t, err)
	assert.Same(t, prior, lock)
}

func TestResolve_Traced(t *testing.T) {
	ctrl := gomock.NewController(t)
	span := mocks.NewMockSpan(ctrl)
	span.EXPECT().SetAttribute("steps", 2)
	span.EXPECT().End()
	tracer := mocks.NewMockTracer(ctrl)
	tracer.EXPECT().Start(gomock.Any(), "resolve").DoAndReturn(
		func(ctx context.Context, _ string, _ ...ports.SpanOption) (context.Context, ports.Span) {
			return ctx, span
		},
	)

	_, _, err := definition.New(mkmanifest("foo >= 1.0, < 2.0"), nil, definition.WithTracer(tracer)).
		Resolve(context.Background(), []ports.Source{catalogSource(ctrl, remote, catalog...)})
	require.NoError(t, err)
}

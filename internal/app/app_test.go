package app_test

import (
	"bytes"
	"context"
	"io"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/bundle/internal/adapters/telemetry"
	"go.trai.ch/bundle/internal/adapters/watcher"
	"go.trai.ch/bundle/internal/app"
	"go.trai.ch/bundle/internal/core/domain"
	"go.trai.ch/bundle/internal/core/ports"
	"go.trai.ch/bundle/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

var remote = domain.SourceIdentity{Kind: domain.SourceRubygems, Location: domain.DefaultRemote}

type fixture struct {
	manifests *mocks.MockManifestStore
	locks     *mocks.MockLockStore
	sources   *mocks.MockSourceFactory
	source    *mocks.MockSource
	runner    *mocks.MockCommandRunner
	graphs    *mocks.MockGraphRenderer
	watcher   *mocks.MockWatcher

	dir      string
	layout   domain.Layout
	manifest *domain.Manifest
	stdout   *bytes.Buffer
	app      *app.App
}

func rack(version string) *domain.Specification {
	return &domain.Specification{
		Name:     "rack",
		Version:  domain.MustParseVersion(version),
		Platform: domain.PlatformRuby,
		Source:   remote,
	}
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	dir := t.TempDir()
	bundle := t.TempDir()
	dep, err := domain.NewDependency("rack", ">= 1")
	require.NoError(t, err)

	f := &fixture{
		manifests: mocks.NewMockManifestStore(ctrl),
		locks:     mocks.NewMockLockStore(ctrl),
		sources:   mocks.NewMockSourceFactory(ctrl),
		source:    mocks.NewMockSource(ctrl),
		runner:    mocks.NewMockCommandRunner(ctrl),
		graphs:    mocks.NewMockGraphRenderer(ctrl),
		watcher:   mocks.NewMockWatcher(ctrl),
		dir:       dir,
		layout:    domain.NewLayout(bundle),
		manifest: &domain.Manifest{
			Path:         filepath.Join(dir, domain.ManifestName),
			Sources:      []domain.SourceIdentity{remote},
			Dependencies: []domain.Dependency{dep},
		},
		stdout: &bytes.Buffer{},
	}
	require.NoError(t, os.WriteFile(f.manifest.Path, []byte("gems: [{name: rack}]\n"), 0o644))

	log := mocks.NewMockLogger(ctrl)
	log.EXPECT().Debug(gomock.Any()).AnyTimes()
	log.EXPECT().Info(gomock.Any()).AnyTimes()
	log.EXPECT().Warn(gomock.Any()).AnyTimes()
	log.EXPECT().Error(gomock.Any()).AnyTimes()

	metrics := mocks.NewMockMetrics(ctrl)
	metrics.EXPECT().ObserveResolve(gomock.Any(), gomock.Any()).AnyTimes()
	metrics.EXPECT().ObserveInstall(gomock.Any(), gomock.Any()).AnyTimes()
	metrics.EXPECT().Flush(gomock.Any()).Return(nil).AnyTimes()

	locker := mocks.NewMockLocker(ctrl)
	locker.EXPECT().Lock(gomock.Any(), f.layout.LockFile()).Return(func() error { return nil }, nil).AnyTimes()

	settings := mocks.NewMockSettingsLoader(ctrl)
	settings.EXPECT().Load(gomock.Any()).Return(domain.Settings{Path: bundle, Jobs: 2}, nil).AnyTimes()

	f.manifests.EXPECT().Find(dir).Return(f.manifest.Path, nil).AnyTimes()
	f.sources.EXPECT().For(gomock.Any(), remote, gomock.Any()).Return(f.source, nil).AnyTimes()
	f.source.EXPECT().Identity().Return(remote).AnyTimes()

	f.app = app.New(app.Dependencies{
		Manifests: f.manifests,
		Locks:     f.locks,
		Settings:  settings,
		Sources:   f.sources,
		Locker:    locker,
		Tracer:    telemetry.NewNoOpTracer(),
		Logger:    log,
		Metrics:   metrics,
		Runner:    f.runner,
		Graphs:    f.graphs,
		Watcher:   f.watcher,
	}).
		WithIO(strings.NewReader(""), f.stdout, &bytes.Buffer{}).
		WithEnviron([]string{"PATH=/usr/bin", "RUBYOPT=-w"}).
		WithWorkDir(dir)
	return f
}

// lockFor returns a lock the manifest can reuse without resolving.
func (f *fixture) lockFor(specs ...*domain.Specification) *domain.LockedSpecSet {
	return &domain.LockedSpecSet{
		Sources:      f.manifest.Sources,
		Dependencies: f.manifest.Dependencies,
		Platforms:    f.manifest.ResolutionPlatforms(),
		Specs:        domain.NewSpecSet(specs...),
		Digest:       f.manifest.Digest(),
	}
}

func (f *fixture) markInstalled(t *testing.T, spec *domain.Specification) {
	t.Helper()
	dir := f.layout.InstallDir(spec)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "lib"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, domain.InstalledMarker), nil, 0o644))
}

func writeLib(_ context.Context, spec *domain.Specification, dir string) error {
	lib := filepath.Join(dir, "lib")
	if err := os.MkdirAll(lib, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(lib, spec.Name+".rb"), []byte("# "+spec.FullName()+"\n"), 0o644)
}

func TestApp_Install(t *testing.T) {
	f := setup(t)

	var saved *domain.LockedSpecSet
	f.manifests.EXPECT().Load(f.manifest.Path).Return(f.manifest, nil)
	f.locks.EXPECT().Load(f.manifest.LockPath()).Return(nil, nil)
	f.source.EXPECT().Specs(gomock.Any(), "rack").Return([]*domain.Specification{rack("2.2.7"), rack("2.2.8")}, nil).MinTimes(1)
	f.source.EXPECT().Materialize(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(writeLib).Times(1)
	f.locks.EXPECT().Save(f.manifest.LockPath(), gomock.Any()).DoAndReturn(
		func(_ string, lock *domain.LockedSpecSet) (bool, error) {
			saved = lock
			return true, nil
		})

	err := f.app.Install(context.Background(), app.Options{OutputMode: "linear"})
	require.NoError(t, err)

	require.NotNil(t, saved)
	spec, ok := saved.Specs.Lookup("rack")
	require.True(t, ok)
	assert.Equal(t, "2.2.8", spec.Version.String())
	assert.FileExists(t, filepath.Join(f.layout.InstallDir(spec), "lib", "rack.rb"))
	assert.Contains(t, f.stdout.String(), "rack-2.2.8")
}

func TestApp_Install_FastPath(t *testing.T) {
	f := setup(t)

	f.manifests.EXPECT().Load(f.manifest.Path).Return(f.manifest, nil)
	f.locks.EXPECT().Load(f.manifest.LockPath()).Return(f.lockFor(rack("2.2.7")), nil)
	f.source.EXPECT().Specs(gomock.Any(), gomock.Any()).Times(0)
	f.source.EXPECT().Materialize(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(writeLib).Times(1)
	f.locks.EXPECT().Save(f.manifest.LockPath(), gomock.Any()).Return(false, nil)

	require.NoError(t, f.app.Install(context.Background(), app.Options{OutputMode: "linear"}))
	assert.FileExists(t, filepath.Join(f.layout.InstallDir(rack("2.2.7")), domain.InstalledMarker))
}

func TestApp_Install_Frozen(t *testing.T) {
	f := setup(t)

	stale := f.lockFor(rack("2.2.7"))
	stale.Dependencies = nil
	f.manifests.EXPECT().Load(f.manifest.Path).Return(f.manifest, nil)
	f.locks.EXPECT().Load(f.manifest.LockPath()).Return(stale, nil)
	f.locks.EXPECT().Save(gomock.Any(), gomock.Any()).Times(0)

	err := f.app.Install(context.Background(), app.Options{Frozen: true, OutputMode: "linear"})
	require.ErrorIs(t, err, domain.ErrLockOutOfDate)
	assert.Equal(t, 4, domain.ExitCode(err))
}

func TestApp_Install_Failure(t *testing.T) {
	f := setup(t)

	f.manifests.EXPECT().Load(f.manifest.Path).Return(f.manifest, nil)
	f.locks.EXPECT().Load(f.manifest.LockPath()).Return(f.lockFor(rack("2.2.7")), nil)
	f.locks.EXPECT().Save(gomock.Any(), gomock.Any()).Return(false, nil)
	f.source.EXPECT().Materialize(gomock.Any(), gomock.Any(), gomock.Any()).Return(domain.ErrChecksumMismatch)

	err := f.app.Install(context.Background(), app.Options{OutputMode: "linear"})
	require.ErrorIs(t, err, domain.ErrInstallFailed)
	assert.Equal(t, 5, domain.ExitCode(err))
}

func TestApp_Update(t *testing.T) {
	f := setup(t)

	var saved *domain.LockedSpecSet
	f.manifests.EXPECT().Load(f.manifest.Path).Return(f.manifest, nil)
	f.locks.EXPECT().Load(f.manifest.LockPath()).Return(f.lockFor(rack("2.2.7")), nil)
	f.source.EXPECT().Specs(gomock.Any(), "rack").Return([]*domain.Specification{rack("2.2.7"), rack("2.2.8")}, nil).MinTimes(1)
	f.source.EXPECT().Materialize(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(writeLib)
	f.locks.EXPECT().Save(f.manifest.LockPath(), gomock.Any()).DoAndReturn(
		func(_ string, lock *domain.LockedSpecSet) (bool, error) {
			saved = lock
			return true, nil
		})

	require.NoError(t, f.app.Update(context.Background(), nil, app.Options{OutputMode: "linear"}))
	spec, _ := saved.Specs.Lookup("rack")
	assert.Equal(t, "2.2.8", spec.Version.String())
}

func TestApp_Update_UnknownGem(t *testing.T) {
	f := setup(t)

	f.manifests.EXPECT().Load(f.manifest.Path).Return(f.manifest, nil)
	f.locks.EXPECT().Load(f.manifest.LockPath()).Return(f.lockFor(rack("2.2.7")), nil)

	err := f.app.Update(context.Background(), []string{"rails"}, app.Options{})
	require.ErrorIs(t, err, domain.ErrGemNotFound)
	assert.Equal(t, 7, domain.ExitCode(err))
}

func TestApp_Lock(t *testing.T) {
	f := setup(t)

	f.manifests.EXPECT().Load(f.manifest.Path).Return(f.manifest, nil)
	f.locks.EXPECT().Load(f.manifest.LockPath()).Return(nil, nil)
	f.source.EXPECT().Specs(gomock.Any(), "rack").Return([]*domain.Specification{rack("2.2.8")}, nil).MinTimes(1)
	f.source.EXPECT().Materialize(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
	f.locks.EXPECT().Save(f.manifest.LockPath(), gomock.Any()).Return(true, nil)

	require.NoError(t, f.app.Lock(context.Background(), nil, app.Options{}))
}

func TestApp_Lock_KeepsGitRevision(t *testing.T) {
	f := setup(t)

	git := domain.SourceIdentity{Kind: domain.SourceGit, Location: "https://example.com/x.git", Ref: "main"}
	pinned := git
	pinned.Revision = "abc123"
	f.manifest.Sources = []domain.SourceIdentity{git}

	lock := f.lockFor(&domain.Specification{Name: "rack", Version: domain.MustParseVersion("3.0"), Platform: domain.PlatformRuby, Source: pinned})
	lock.Sources = []domain.SourceIdentity{pinned}

	gitSource := mocks.NewMockSource(gomock.NewController(t))
	gitSource.EXPECT().Identity().Return(pinned).AnyTimes()

	f.manifests.EXPECT().Load(f.manifest.Path).Return(f.manifest, nil)
	f.locks.EXPECT().Load(f.manifest.LockPath()).Return(lock, nil)
	f.sources.EXPECT().For(gomock.Any(), pinned, gomock.Any()).Return(gitSource, nil)
	f.locks.EXPECT().Save(gomock.Any(), gomock.Any()).Return(false, nil)

	require.NoError(t, f.app.Lock(context.Background(), nil, app.Options{}))
}

func TestApp_Check(t *testing.T) {
	f := setup(t)
	spec := rack("2.2.7")

	f.manifests.EXPECT().Load(f.manifest.Path).Return(f.manifest, nil).Times(2)
	f.locks.EXPECT().Load(f.manifest.LockPath()).Return(f.lockFor(spec), nil).Times(2)

	err := f.app.Check(context.Background(), app.Options{})
	require.ErrorIs(t, err, domain.ErrGemNotInstalled)

	f.markInstalled(t, spec)
	require.NoError(t, f.app.Check(context.Background(), app.Options{}))
}

func TestApp_Check_NoLock(t *testing.T) {
	f := setup(t)

	f.manifests.EXPECT().Load(f.manifest.Path).Return(f.manifest, nil)
	f.locks.EXPECT().Load(f.manifest.LockPath()).Return(nil, nil)

	err := f.app.Check(context.Background(), app.Options{})
	require.ErrorIs(t, err, domain.ErrLockOutOfDate)
}

func TestApp_Check_MissingManifest(t *testing.T) {
	f := setup(t)
	missing := filepath.Join(f.dir, "nope", domain.ManifestName)
	f.manifests.EXPECT().Load(missing).Return(nil, domain.ErrGemfileNotFound)

	err := f.app.Check(context.Background(), app.Options{Gemfile: "nope/Bundlefile"})
	require.ErrorIs(t, err, domain.ErrGemfileNotFound)
	assert.Equal(t, 10, domain.ExitCode(err))
}

func TestApp_Show(t *testing.T) {
	f := setup(t)
	spec := rack("2.2.7")

	f.manifests.EXPECT().Load(f.manifest.Path).Return(f.manifest, nil).Times(3)
	f.locks.EXPECT().Load(f.manifest.LockPath()).Return(f.lockFor(spec), nil).Times(3)
	f.locks.EXPECT().Save(gomock.Any(), gomock.Any()).Return(false, nil).Times(3)

	require.NoError(t, f.app.Show(context.Background(), "", app.Options{}))
	assert.Contains(t, f.stdout.String(), "  * rack (2.2.7)")

	f.stdout.Reset()
	require.NoError(t, f.app.Show(context.Background(), "rack", app.Options{}))
	assert.Equal(t, f.layout.InstallDir(spec)+"\n", f.stdout.String())

	err := f.app.Show(context.Background(), "rails", app.Options{})
	require.ErrorIs(t, err, domain.ErrGemNotFound)
}

func TestApp_Viz(t *testing.T) {
	f := setup(t)
	lock := f.lockFor(rack("2.2.7"))
	out := filepath.Join(f.dir, "graph.dot")

	f.manifests.EXPECT().Load(f.manifest.Path).Return(f.manifest, nil)
	f.locks.EXPECT().Load(f.manifest.LockPath()).Return(lock, nil)
	f.graphs.EXPECT().Render(gomock.Any(), lock.Specs, "dot", gomock.Any()).DoAndReturn(
		func(_ context.Context, _ *domain.SpecSet, _ string, w io.Writer) error {
			_, err := io.WriteString(w, "digraph bundle {}\n")
			return err
		})

	require.NoError(t, f.app.Viz(context.Background(), app.VizOptions{
		Options: app.Options{Frozen: true},
		Format:  "dot",
		Output:  out,
	}))
	content, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "digraph bundle {}\n", string(content))
}

func TestApp_Exec(t *testing.T) {
	f := setup(t)
	spec := rack("2.2.7")
	f.markInstalled(t, spec)

	f.manifests.EXPECT().Load(f.manifest.Path).Return(f.manifest, nil)
	f.locks.EXPECT().Load(f.manifest.LockPath()).Return(f.lockFor(spec), nil)

	var got ports.Command
	f.runner.EXPECT().Run(gomock.Any(), gomock.Any(), gomock.Any(), f.stdout, gomock.Any()).DoAndReturn(
		func(_ context.Context, cmd ports.Command, _ io.Reader, _, _ io.Writer) error {
			got = cmd
			return nil
		})

	err := f.app.Exec(context.Background(), []string{"rake", "test"}, app.ExecOptions{
		Options: app.Options{Frozen: true},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"rake", "test"}, got.Args)
	assert.Equal(t, f.dir, got.Dir)
	assert.Contains(t, got.Env, "GEM_HOME="+f.layout.BundlePath)
	assert.Contains(t, got.Env, "RUBYLIB="+filepath.Join(f.layout.InstallDir(spec), "lib"))
	assert.Contains(t, got.Env, "BUNDLE_GEMFILE="+f.manifest.Path)
}

func TestApp_Exec_NotInstalled(t *testing.T) {
	f := setup(t)

	f.manifests.EXPECT().Load(f.manifest.Path).Return(f.manifest, nil)
	f.locks.EXPECT().Load(f.manifest.LockPath()).Return(f.lockFor(rack("2.2.7")), nil)
	f.runner.EXPECT().Run(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	err := f.app.Exec(context.Background(), []string{"rake"}, app.ExecOptions{Options: app.Options{Frozen: true}})
	require.ErrorIs(t, err, domain.ErrGemNotInstalled)
}

func TestApp_Exec_NoCommand(t *testing.T) {
	f := setup(t)
	require.Error(t, f.app.Exec(context.Background(), nil, app.ExecOptions{}))
}

func TestApp_Clean(t *testing.T) {
	f := setup(t)
	spec := rack("2.2.7")
	f.markInstalled(t, spec)
	f.markInstalled(t, rack("1.0"))
	require.NoError(t, os.MkdirAll(f.layout.CachePath(), 0o755))

	f.manifests.EXPECT().Load(f.manifest.Path).Return(f.manifest, nil).Times(2)
	f.locks.EXPECT().Load(f.manifest.LockPath()).Return(f.lockFor(spec), nil).Times(2)

	require.NoError(t, f.app.Clean(context.Background(), app.CleanOptions{DryRun: true, Cache: true}))
	assert.DirExists(t, f.layout.InstallDir(rack("1.0")))
	assert.DirExists(t, f.layout.CachePath())

	require.NoError(t, f.app.Clean(context.Background(), app.CleanOptions{Cache: true}))
	assert.NoDirExists(t, f.layout.InstallDir(rack("1.0")))
	assert.DirExists(t, f.layout.InstallDir(spec))
	assert.NoDirExists(t, f.layout.CachePath())
}

func TestApp_Init(t *testing.T) {
	f := setup(t)

	f.manifests.EXPECT().Init(f.dir, filepath.Join(f.dir, "demo.gemspec.yaml")).Return(f.manifest.Path, nil)
	require.NoError(t, f.app.Init(context.Background(), app.InitOptions{Gemspec: "demo.gemspec.yaml"}))

	f.manifests.EXPECT().Init(f.dir, "").Return("", domain.ErrGemfileExists)
	require.ErrorIs(t, f.app.Init(context.Background(), app.InitOptions{}), domain.ErrGemfileExists)
}

func TestApp_Watch(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		f := setup(t)
		events := make(chan ports.WatchEvent)

		f.manifests.EXPECT().Load(f.manifest.Path).Return(f.manifest, nil).Times(3)
		f.locks.EXPECT().Load(f.manifest.LockPath()).Return(f.lockFor(rack("2.2.7")), nil).Times(3)
		f.locks.EXPECT().Save(gomock.Any(), gomock.Any()).Return(false, nil).Times(2)
		f.source.EXPECT().Materialize(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(writeLib).Times(1)

		f.watcher.EXPECT().Start(gomock.Any(), f.manifest.Path).Return(nil)
		f.watcher.EXPECT().Events().Return(iter.Seq[ports.WatchEvent](func(yield func(ports.WatchEvent) bool) {
			for e := range events {
				if !yield(e) {
					return
				}
			}
		}))
		f.watcher.EXPECT().Stop().DoAndReturn(func() error {
			close(events)
			return nil
		})

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- f.app.Watch(ctx, app.Options{OutputMode: "linear"}) }()
		synctest.Wait()

		// Same content: filtered out.
		events <- ports.WatchEvent{Path: f.manifest.Path, Operation: ports.OpWrite}
		time.Sleep(2 * watcher.DefaultDebounceWindow)
		synctest.Wait()

		require.NoError(t, os.WriteFile(f.manifest.Path, []byte("gems: [{name: rack, version: ['>= 2']}]\n"), 0o644))
		events <- ports.WatchEvent{Path: f.manifest.Path, Operation: ports.OpWrite}
		time.Sleep(2 * watcher.DefaultDebounceWindow)
		synctest.Wait()

		cancel()
		require.NoError(t, <-done)
	})
}

package app

import (
	"context"
	"fmt"
	"path/filepath"

	"go.trai.ch/bundle/internal/core/domain"
	"go.trai.ch/bundle/internal/core/ports"
	"go.trai.ch/bundle/internal/engine/definition"
	"go.trai.ch/zerr"
)

// Options are the settings given on the command line. Zero values leave the
// configured value in place.
type Options struct {
	Gemfile     string
	Path        string
	Jobs        int
	Frozen      bool
	Without     []string
	OutputMode  string
	MetricsFile string
}

func (o Options) apply(s *domain.Settings) {
	if o.Path != "" {
		s.Path = o.Path
	}
	if o.Jobs > 0 {
		s.Jobs = o.Jobs
	}
	if o.Frozen {
		s.Frozen = true
	}
	if len(o.Without) > 0 {
		s.Without = o.Without
	}
}

// project is a loaded manifest with its settings and prior lock.
type project struct {
	settings domain.Settings
	manifest *domain.Manifest
	lock     *domain.LockedSpecSet
}

// load locates the manifest, reads the settings of its project and the
// prior lock. The manifest comes from, in order, the --gemfile flag, the
// gemfile setting or the nearest Bundlefile above the working directory.
func (a *App) load(opts Options) (*project, error) {
	global, err := a.settings.Load("")
	if err != nil {
		return nil, err
	}

	gemfile := opts.Gemfile
	if gemfile == "" {
		gemfile = global.Gemfile
	}
	if gemfile == "" {
		if gemfile, err = a.manifests.Find(a.workDir); err != nil {
			return nil, err
		}
	} else if !filepath.IsAbs(gemfile) {
		gemfile = filepath.Join(a.workDir, gemfile)
	}

	settings, err := a.settings.Load(filepath.Dir(gemfile))
	if err != nil {
		return nil, err
	}
	opts.apply(&settings)
	settings.Gemfile = gemfile

	manifest, err := a.manifests.Load(gemfile)
	if err != nil {
		return nil, err
	}

	lock, err := a.locks.Load(manifest.LockPath())
	if err != nil {
		return nil, err
	}

	return &project{settings: settings, manifest: manifest, lock: lock}, nil
}

// sourcesFor builds the sources serving ids, in order.
func (a *App) sourcesFor(ctx context.Context, settings domain.Settings, ids []domain.SourceIdentity) ([]ports.Source, error) {
	sources := make([]ports.Source, len(ids))
	for i, id := range ids {
		src, err := a.sources.For(ctx, id, settings)
		if err != nil {
			return nil, zerr.With(err, "source", id.Short())
		}
		sources[i] = src
	}
	return sources, nil
}

// resolveOptions narrows what a resolution may change.
type resolveOptions struct {
	// unlock lists gems released from the prior lock.
	unlock []string
	// unlockAll releases every gem.
	unlockAll bool
}

// resolve reconciles the manifest with the prior lock and writes the result
// unless the settings are frozen.
func (a *App) resolve(ctx context.Context, p *project, ro resolveOptions) (*domain.LockedSpecSet, error) {
	def := definition.New(p.manifest, p.lock,
		definition.WithFrozen(p.settings.Frozen),
		definition.WithTracer(a.tracer),
	)
	if ro.unlockAll {
		def.UnlockAll()
	} else if err := def.Unlock(ro.unlock...); err != nil {
		return nil, err
	}

	sources, err := a.sourcesFor(ctx, p.settings, a.resolutionSources(p, ro))
	if err != nil {
		return nil, err
	}

	lock, outcome, err := def.Resolve(ctx, sources)
	a.metrics.ObserveResolve(outcome.FastPath, outcome.Steps)
	if err != nil {
		return nil, err
	}

	if outcome.FastPath {
		a.logger.Debug("lock file is up to date")
	} else {
		a.logger.Debug(fmt.Sprintf("resolved %d gems in %d steps", lock.Specs.Len(), outcome.Steps))
	}

	if p.settings.Frozen {
		return lock, nil
	}
	changed, err := a.locks.Save(p.manifest.LockPath(), lock)
	if err != nil {
		return nil, err
	}
	if changed {
		a.logger.Info("Writing " + filepath.Base(p.manifest.LockPath()))
	}
	p.lock = lock
	return lock, nil
}

// resolutionSources returns the declared sources. A git source keeps the
// revision recorded in the prior lock unless one of its gems is unlocked.
func (a *App) resolutionSources(p *project, ro resolveOptions) []domain.SourceIdentity {
	ids := make([]domain.SourceIdentity, len(p.manifest.Sources))
	copy(ids, p.manifest.Sources)
	if p.lock == nil || ro.unlockAll {
		return ids
	}

	released := make(map[string]bool)
	for _, name := range ro.unlock {
		if p.lock.Specs == nil {
			break
		}
		if spec, ok := p.lock.Specs.Lookup(name); ok {
			released[spec.Source.Key()] = true
		}
	}

	for i, id := range ids {
		if released[id.Key()] {
			continue
		}
		for _, locked := range p.lock.Sources {
			if locked.Key() == id.Key() {
				ids[i].Revision = locked.Revision
			}
		}
	}
	return ids
}

// current returns the lock to act on: the prior lock when frozen, or a
// fresh resolution, which takes the fast path when nothing changed.
func (a *App) current(ctx context.Context, p *project) (*domain.LockedSpecSet, error) {
	if p.settings.Frozen {
		return definition.New(p.manifest, p.lock).FromLock()
	}
	return a.resolve(ctx, p, resolveOptions{})
}

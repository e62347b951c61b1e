package app

import (
	"context"
	"fmt"
	"os"

	"go.trai.ch/bundle/internal/adapters/telemetry"
	"go.trai.ch/bundle/internal/core/domain"
	"go.trai.ch/bundle/internal/engine/installer"
	"go.trai.ch/bundle/internal/engine/runtime"
	"golang.org/x/sync/errgroup"
)

// Install resolves the manifest, writes the lock and installs every gem
// outside the without groups.
func (a *App) Install(ctx context.Context, opts Options) error {
	p, err := a.load(opts)
	if err != nil {
		return err
	}
	lock, err := a.resolve(ctx, p, resolveOptions{})
	if err != nil {
		return err
	}
	return a.install(ctx, p, lock, opts)
}

// Update releases gems from the prior lock, all of them when gems is empty,
// then resolves, locks and installs like Install.
func (a *App) Update(ctx context.Context, gems []string, opts Options) error {
	p, err := a.load(opts)
	if err != nil {
		return err
	}
	lock, err := a.resolve(ctx, p, resolveOptions{unlock: gems, unlockAll: len(gems) == 0})
	if err != nil {
		return err
	}
	return a.install(ctx, p, lock, opts)
}

// Lock resolves the manifest and writes the lock without installing.
// Named gems are released from the prior lock first.
func (a *App) Lock(ctx context.Context, gems []string, opts Options) error {
	p, err := a.load(opts)
	if err != nil {
		return err
	}
	_, err = a.resolve(ctx, p, resolveOptions{unlock: gems})
	return err
}

// install materializes the selected part of lock while a renderer shows the
// progress of every gem.
func (a *App) install(ctx context.Context, p *project, lock *domain.LockedSpecSet, opts Options) error {
	sources, err := a.sourcesFor(ctx, p.settings, lock.Sources)
	if err != nil {
		return err
	}
	set := runtime.Select(p.manifest, lock.Specs, p.settings.Without)

	renderer := a.newRenderer(ctx, opts.OutputMode)
	provider := telemetry.NewProvider(renderer)
	defer func() {
		_ = provider.Shutdown(context.WithoutCancel(ctx))
	}()
	tracer := telemetry.NewOTelTracer(telemetry.InstrumentationName, provider, renderer)

	inst := installer.New(p.settings.Layout(), a.locker, tracer, a.logger,
		installer.WithJobs(p.settings.Jobs),
		installer.WithMetrics(a.metrics),
	)

	var report *installer.Report
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := renderer.Start(gctx); err != nil {
			return err
		}
		return renderer.Wait()
	})

	g.Go(func() error {
		defer func() {
			if r := recover(); r != nil {
				_, _ = fmt.Fprintf(os.Stderr, "Installer panic: %v\n", r)
			}
			_ = renderer.Stop()
		}()
		var err error
		report, err = inst.Install(ctx, set, sources)
		return err
	})

	err = g.Wait()
	if ferr := a.metrics.Flush(opts.MetricsFile); ferr != nil {
		a.logger.Warn("failed to write metrics: " + ferr.Error())
	}
	if report != nil {
		a.summarize(report, lock.Specs.Len()-set.Len())
	}
	return err
}

func (a *App) summarize(r *installer.Report, excluded int) {
	if len(r.Failed) > 0 || len(r.Skipped) > 0 {
		a.logger.Warn(fmt.Sprintf("%d gems failed and %d were skipped", len(r.Failed), len(r.Skipped)))
		return
	}
	msg := fmt.Sprintf("Bundle complete! %d gems now installed (%d new).", r.Total(), len(r.Installed))
	if excluded > 0 {
		msg += fmt.Sprintf(" %d gems in excluded groups were not installed.", excluded)
	}
	a.logger.Info(msg)
}

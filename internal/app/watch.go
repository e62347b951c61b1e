package app

import (
	"context"
	"strings"

	"go.trai.ch/bundle/internal/adapters/watcher"
	"go.trai.ch/bundle/internal/core/domain"
)

// Watch installs once, then again whenever the manifest or a path source
// changes, until ctx is done. Failed runs are logged and watching goes on.
func (a *App) Watch(ctx context.Context, opts Options) error {
	p, err := a.load(opts)
	if err != nil {
		return err
	}
	paths := watchedPaths(p.manifest)

	filter := watcher.NewContentFilter()
	filter.Prime(paths...)

	a.reinstall(ctx, opts)

	if err := a.watcher.Start(ctx, paths...); err != nil {
		return err
	}
	defer func() { _ = a.watcher.Stop() }()

	batches := make(chan []string, 1)
	debouncer := watcher.NewDebouncer(watcher.DefaultDebounceWindow, func(changed []string) {
		select {
		case batches <- changed:
		case <-ctx.Done():
		}
	})
	defer debouncer.Stop()

	go func() {
		for event := range a.watcher.Events() {
			debouncer.Add(event.Path)
		}
	}()

	a.logger.Info("Watching " + strings.Join(paths, ", "))
	for {
		select {
		case <-ctx.Done():
			return nil
		case changed := <-batches:
			if len(filter.Changed(changed)) == 0 {
				continue
			}
			a.logger.Info("Change detected, reinstalling")
			a.reinstall(ctx, opts)
		}
	}
}

func (a *App) reinstall(ctx context.Context, opts Options) {
	if err := a.Install(ctx, opts); err != nil && ctx.Err() == nil {
		a.logger.Error(err)
	}
}

// watchedPaths returns the manifest and the directories of path sources.
func watchedPaths(m *domain.Manifest) []string {
	paths := []string{m.Path}
	for _, src := range m.Sources {
		if src.Kind == domain.SourcePath {
			paths = append(paths, src.Location)
		}
	}
	return paths
}

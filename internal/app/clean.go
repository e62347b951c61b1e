package app

import (
	"context"
	"errors"
	"os"

	"go.trai.ch/bundle/internal/adapters/telemetry"
	"go.trai.ch/bundle/internal/engine/definition"
	"go.trai.ch/bundle/internal/engine/installer"
	"go.trai.ch/zerr"
)

// CleanOptions configuration for the Clean method.
type CleanOptions struct {
	Options
	// DryRun lists what would be removed without removing it.
	DryRun bool
	// Cache also removes the download cache.
	Cache bool
}

// Clean removes installed gems the lock no longer references.
func (a *App) Clean(ctx context.Context, opts CleanOptions) error {
	p, err := a.load(opts.Options)
	if err != nil {
		return err
	}
	lock, err := definition.New(p.manifest, p.lock).FromLock()
	if err != nil {
		return err
	}

	layout := p.settings.Layout()
	inst := installer.New(layout, a.locker, telemetry.NewNoOpTracer(), a.logger)
	removed, err := inst.Clean(ctx, lock.Specs, opts.DryRun)
	for _, name := range removed {
		if opts.DryRun {
			a.logger.Info("Would have removed " + name)
		} else {
			a.logger.Info("Removing " + name)
		}
	}
	if err != nil {
		return err
	}

	if opts.Cache && !opts.DryRun {
		a.logger.Info("removing download cache...")
		if err := os.RemoveAll(layout.CachePath()); err != nil && !errors.Is(err, os.ErrNotExist) {
			return zerr.With(zerr.Wrap(err, "failed to remove download cache"), "path", layout.CachePath())
		}
	}
	return nil
}

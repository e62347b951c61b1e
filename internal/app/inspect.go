package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.trai.ch/bundle/internal/core/domain"
	"go.trai.ch/bundle/internal/engine/definition"
	"go.trai.ch/bundle/internal/engine/installer"
	"go.trai.ch/bundle/internal/engine/runtime"
	"go.trai.ch/zerr"
)

// Check verifies that the lock satisfies the manifest and that every gem
// outside the without groups is installed. No source is consulted.
func (a *App) Check(_ context.Context, opts Options) error {
	p, err := a.load(opts)
	if err != nil {
		return err
	}
	lock, err := definition.New(p.manifest, p.lock).FromLock()
	if err != nil {
		return err
	}

	layout := p.settings.Layout()
	var missing []string
	for _, spec := range runtime.Select(p.manifest, lock.Specs, p.settings.Without).Sorted() {
		if !installer.Installed(layout, spec) {
			missing = append(missing, spec.FullName())
		}
	}
	if len(missing) > 0 {
		return zerr.With(domain.ErrGemNotInstalled, "missing", missing)
	}

	a.logger.Info("The Bundlefile's dependencies are satisfied")
	return nil
}

// Show lists the locked gems, or prints the install directory of name.
func (a *App) Show(ctx context.Context, name string, opts Options) error {
	p, err := a.load(opts)
	if err != nil {
		return err
	}
	lock, err := a.current(ctx, p)
	if err != nil {
		return err
	}

	if name != "" {
		spec, ok := lock.Specs.Lookup(name)
		if !ok {
			return zerr.With(domain.ErrGemNotFound, "gem", name)
		}
		_, err := fmt.Fprintln(a.stdout, p.settings.Layout().InstallDir(spec))
		return err
	}

	if _, err := fmt.Fprintln(a.stdout, "Gems included by the bundle:"); err != nil {
		return err
	}
	for _, spec := range lock.Specs.Sorted() {
		line := fmt.Sprintf("  * %s (%s)", spec.Name, spec.Version)
		if spec.Platform != domain.PlatformRuby {
			line = fmt.Sprintf("  * %s (%s %s)", spec.Name, spec.Version, spec.Platform)
		}
		if spec.Source.Kind != domain.SourceRubygems {
			line += " from " + spec.Source.Short()
		}
		if _, err := fmt.Fprintln(a.stdout, line); err != nil {
			return err
		}
	}
	return nil
}

// VizOptions configure Viz.
type VizOptions struct {
	Options
	// Format is "dot", "svg" or "png".
	Format string
	// Output is the file to write. Empty writes to stdout.
	Output string
}

// Viz renders the dependency graph of the locked gems.
func (a *App) Viz(ctx context.Context, opts VizOptions) error {
	p, err := a.load(opts.Options)
	if err != nil {
		return err
	}
	lock, err := a.current(ctx, p)
	if err != nil {
		return err
	}

	var w io.Writer = a.stdout
	if opts.Output != "" {
		f, err := os.OpenFile(opts.Output, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, domain.FilePerm) //nolint:gosec // user chosen output
		if err != nil {
			return zerr.With(domain.ErrRenderFailed.Wrap(err), "path", opts.Output)
		}
		defer func() { _ = f.Close() }()
		w = f
	}

	if err := a.graphs.Render(ctx, lock.Specs, opts.Format, w); err != nil {
		return err
	}
	if opts.Output != "" {
		a.logger.Info("Wrote graph to " + opts.Output)
	}
	return nil
}

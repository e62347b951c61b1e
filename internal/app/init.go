package app

import (
	"context"
	"path/filepath"
)

// InitOptions configure Init.
type InitOptions struct {
	// Gemspec is a gem descriptor whose dependencies are declared.
	Gemspec string
}

// Init writes a starter Bundlefile into the working directory.
func (a *App) Init(_ context.Context, opts InitOptions) error {
	descriptor := opts.Gemspec
	if descriptor != "" && !filepath.IsAbs(descriptor) {
		descriptor = filepath.Join(a.workDir, descriptor)
	}
	path, err := a.manifests.Init(a.workDir, descriptor)
	if err != nil {
		return err
	}
	a.logger.Info("Writing new Bundlefile to " + path)
	return nil
}

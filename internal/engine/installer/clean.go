package installer

import (
	"context"
	"os"
	"path/filepath"
	"slices"

	"go.trai.ch/bundle/internal/core/domain"
	"go.trai.ch/zerr"
)

// Clean removes every installed gem that keep does not reference, along with
// leftover staging directories. It returns the removed directory names,
// sorted. When dryRun is set nothing is deleted.
func (i *Installer) Clean(ctx context.Context, keep *domain.SpecSet, dryRun bool) ([]string, error) {
	wanted := make(map[string]struct{}, keep.Len())
	for _, spec := range keep.Sorted() {
		wanted[filepath.Base(i.layout.InstallDir(spec))] = struct{}{}
	}

	if !dryRun {
		unlock, err := i.locker.Lock(ctx, i.layout.LockFile())
		if err != nil {
			return nil, err
		}
		defer func() { _ = unlock() }()
	}

	dirs, err := os.ReadDir(i.layout.InstallPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, zerr.With(zerr.Wrap(err, "failed to list installed gems"), "path", i.layout.InstallPath())
	}

	var removed []string
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		if _, ok := wanted[d.Name()]; ok {
			continue
		}
		removed = append(removed, d.Name())
		if dryRun {
			continue
		}
		if err := os.RemoveAll(filepath.Join(i.layout.InstallPath(), d.Name())); err != nil {
			return removed, zerr.With(zerr.Wrap(err, "failed to remove installed gem"), "gem", d.Name())
		}
	}

	if dryRun {
		slices.Sort(removed)
		return removed, nil
	}

	entries, err := ReadRegistry(i.layout)
	if err != nil {
		return removed, err
	}
	for _, e := range entries {
		if _, ok := wanted[filepath.Base(e.Path)]; ok {
			continue
		}
		if err := os.Remove(e.File); err != nil && !os.IsNotExist(err) {
			return removed, zerr.With(zerr.Wrap(err, "failed to remove registry entry"), "path", e.File)
		}
	}

	slices.Sort(removed)
	return removed, nil
}

package installer

import (
	"os"
	"path/filepath"

	"go.trai.ch/bundle/internal/core/domain"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// RegistryEntry is the on-disk record of one installed specification.
type RegistryEntry struct {
	Name         string   `yaml:"name"`
	Version      string   `yaml:"version"`
	Platform     string   `yaml:"platform"`
	Source       string   `yaml:"source"`
	Dependencies []string `yaml:"dependencies,omitempty"`
	Path         string   `yaml:"path"`

	// File is the registry file the entry was read from.
	File string `yaml:"-"`
}

func writeRegistry(layout domain.Layout, spec *domain.Specification, dir string) error {
	entry := RegistryEntry{
		Name:     spec.Name,
		Version:  spec.Version.String(),
		Platform: string(spec.Platform),
		Source:   spec.Source.Key(),
		Path:     dir,
	}
	for _, dep := range spec.Dependencies {
		entry.Dependencies = append(entry.Dependencies, dep.String())
	}

	data, err := yaml.Marshal(&entry)
	if err != nil {
		return zerr.Wrap(err, "failed to encode registry entry")
	}

	path := layout.SpecFile(spec)
	if err := os.MkdirAll(filepath.Dir(path), domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create registry directory"), "path", filepath.Dir(path))
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, domain.FilePerm); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to write registry entry"), "path", path)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return zerr.With(zerr.Wrap(err, "failed to write registry entry"), "path", path)
	}
	return nil
}

// ReadRegistry returns every registry entry under layout, in file name order.
// Unreadable entries are skipped.
func ReadRegistry(layout domain.Layout) ([]RegistryEntry, error) {
	files, err := filepath.Glob(filepath.Join(layout.SpecsPath(), "*"+domain.SpecFileExt))
	if err != nil {
		return nil, zerr.Wrap(err, "failed to list registry")
	}
	entries := make([]RegistryEntry, 0, len(files))
	for _, f := range files {
		data, err := os.ReadFile(f) //nolint:gosec // path comes from the registry directory
		if err != nil {
			continue
		}
		var e RegistryEntry
		if yaml.Unmarshal(data, &e) != nil {
			continue
		}
		e.File = f
		entries = append(entries, e)
	}
	return entries, nil
}

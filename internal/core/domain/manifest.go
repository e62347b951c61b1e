package domain

import (
	"cmp"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Manifest is the parsed root declaration of a project.
type Manifest struct {
	// Path is the absolute path of the manifest file.
	Path string

	// Sources are the declared sources in priority order.
	Sources []SourceIdentity

	// Dependencies are the root dependencies in declaration order.
	Dependencies []Dependency

	// Platforms are the platforms to resolve for. Empty means the generic
	// platform only.
	Platforms []Platform
}

// Root returns the project directory.
func (m *Manifest) Root() string {
	return filepath.Dir(m.Path)
}

// LockPath returns the path of the lock file next to the manifest.
func (m *Manifest) LockPath() string {
	return LockPathFor(m.Path)
}

// LockPathFor returns the lock file path for a manifest path. The extension of
// a TOML manifest is dropped so both formats share "Bundlefile.lock".
func LockPathFor(manifestPath string) string {
	return strings.TrimSuffix(manifestPath, filepath.Ext(manifestPath)) + LockSuffix
}

// ResolutionPlatforms returns the platforms resolution targets.
func (m *Manifest) ResolutionPlatforms() []Platform {
	if len(m.Platforms) > 0 {
		return sortedPlatforms(m.Platforms)
	}
	return []Platform{PlatformRuby}
}

// Digest returns a stable hash of the manifest's declarations. Declaration
// order of dependencies does not affect it; source order does.
func (m *Manifest) Digest() string {
	h := xxhash.New()
	for _, s := range m.Sources {
		_, _ = h.WriteString("source " + s.Key() + "\n")
	}
	deps := slices.Clone(m.Dependencies)
	slices.SortStableFunc(deps, func(a, b Dependency) int { return cmp.Compare(a.Name, b.Name) })
	for _, d := range deps {
		src := ""
		if d.Source != nil {
			src = d.Source.Key()
		}
		_, _ = fmt.Fprintf(h, "gem %s %s %v %v %s\n",
			d.Name, d.Requirement.String(), sortedPlatforms(d.Platforms), sortedStrings(d.Groups), src)
	}
	for _, p := range sortedPlatforms(m.Platforms) {
		_, _ = h.WriteString("platform " + string(p) + "\n")
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

// SourceFor returns the declared source with the given key.
func (m *Manifest) SourceFor(key string) (SourceIdentity, bool) {
	for _, s := range m.Sources {
		if s.Key() == key {
			return s, true
		}
	}
	return SourceIdentity{}, false
}

// Package runtime exposes an installed spec set to child processes.
package runtime

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.trai.ch/bundle/internal/core/domain"
	"go.trai.ch/bundle/internal/engine/installer"
	"go.trai.ch/zerr"
)

// Variables set by Environ.
const (
	EnvGemfile = "BUNDLE_GEMFILE"
	EnvGemHome = "GEM_HOME"
	EnvGemPath = "GEM_PATH"
	EnvRubyLib = "RUBYLIB"
	EnvRubyOpt = "RUBYOPT"
	EnvPath    = "PATH"
)

// binDirs are the directories of an installed gem holding executables.
var binDirs = []string{"exe", "bin"}

// Environment is an activated bundle: the exact install locations of the
// selected specifications in load order.
type Environment struct {
	// Gemfile is the manifest path.
	Gemfile string

	// BundlePath is the root of the install layout.
	BundlePath string

	// Specs are the activated specifications, dependencies first.
	Specs []*domain.Specification

	// LoadPaths are the lib directories of Specs in the same order.
	LoadPaths []string

	// BinPaths are the existing executable directories of Specs.
	BinPaths []string

	// Isolated hides gems that are not part of the bundle.
	Isolated bool
}

// Activate selects the specifications reachable from the manifest's root
// dependencies outside the without groups and returns their install
// locations. Every selected spec must be installed.
func Activate(
	manifest *domain.Manifest,
	set *domain.SpecSet,
	layout domain.Layout,
	without []string,
	isolate bool,
) (*Environment, error) {
	graph := domain.NewGraph(Select(manifest, set, without))
	if err := graph.Validate(); err != nil {
		return nil, err
	}

	env := &Environment{
		Gemfile:    manifest.Path,
		BundlePath: layout.BundlePath,
		Isolated:   isolate,
	}
	for spec := range graph.Walk() {
		if !installer.Installed(layout, spec) {
			return nil, zerr.With(domain.ErrGemNotInstalled, "gem", spec.FullName())
		}
		env.Specs = append(env.Specs, spec)
		dir := layout.InstallDir(spec)
		env.LoadPaths = append(env.LoadPaths, filepath.Join(dir, "lib"))
		for _, bin := range binDirs {
			if info, err := os.Stat(filepath.Join(dir, bin)); err == nil && info.IsDir() {
				env.BinPaths = append(env.BinPaths, filepath.Join(dir, bin))
			}
		}
	}
	return env, nil
}

// Select returns the part of set reachable from the manifest's root
// dependencies that belong to a group outside without and apply to the
// resolution platforms.
func Select(manifest *domain.Manifest, set *domain.SpecSet, without []string) *domain.SpecSet {
	platforms := manifest.ResolutionPlatforms()
	var roots []domain.Dependency
	for _, dep := range manifest.Dependencies {
		if dep.InGroups(without) && dep.ActiveOn(platforms) {
			roots = append(roots, dep)
		}
	}
	return set.Materialize(roots)
}

// Environ applies the bundle to base, a list of "KEY=VALUE" entries, and
// returns the result sorted by key. Gem executables are put first on PATH.
// When isolated, ambient gem paths and interpreter options are dropped so
// only bundled gems are visible.
func (e *Environment) Environ(base []string) []string {
	vars := make(map[string]string, len(base)+4)
	for _, kv := range base {
		if k, v, ok := strings.Cut(kv, "="); ok {
			vars[k] = v
		}
	}

	sep := string(os.PathListSeparator)
	rubyLib := strings.Join(e.LoadPaths, sep)

	vars[EnvGemfile] = e.Gemfile
	vars[EnvGemHome] = e.BundlePath
	if e.Isolated {
		vars[EnvGemPath] = ""
		delete(vars, EnvRubyOpt)
	} else {
		vars[EnvGemPath] = joinNonEmpty(sep, e.BundlePath, vars[EnvGemPath])
		rubyLib = joinNonEmpty(sep, rubyLib, vars[EnvRubyLib])
	}
	if len(e.BinPaths) > 0 {
		vars[EnvPath] = joinNonEmpty(sep, strings.Join(e.BinPaths, sep), vars[EnvPath])
	}
	if rubyLib == "" {
		delete(vars, EnvRubyLib)
	} else {
		vars[EnvRubyLib] = rubyLib
	}

	out := make([]string, 0, len(vars))
	for k, v := range vars {
		out = append(out, k+"="+v)
	}
	slices.Sort(out)
	return out
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := slices.DeleteFunc(slices.Clone(parts), func(s string) bool { return s == "" })
	return strings.Join(kept, sep)
}

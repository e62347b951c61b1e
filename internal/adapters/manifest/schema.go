package manifest

import "go.trai.ch/bundle/internal/adapters/gemspec"

// Bundlefile represents the structure of a Bundlefile or Bundlefile.toml.
type Bundlefile struct {
	Sources   []SourceDTO `yaml:"sources,omitempty" toml:"sources"`
	Platforms []string    `yaml:"platforms,omitempty" toml:"platforms"`
	Gems      []GemDTO    `yaml:"gems" toml:"gems"`
}

// SourceDTO declares one source. Exactly one of Rubygems, Git and Path is set.
type SourceDTO struct {
	Rubygems string `yaml:"rubygems,omitempty" toml:"rubygems"`
	Git      string `yaml:"git,omitempty" toml:"git"`
	Ref      string `yaml:"ref,omitempty" toml:"ref"`
	Path     string `yaml:"path,omitempty" toml:"path"`
}

// GemDTO declares one root dependency. Git and Path declare and pin an inline
// source; Source pins a declared rubygems remote.
type GemDTO struct {
	Name      string               `yaml:"name" toml:"name"`
	Version   gemspec.Requirements `yaml:"version,omitempty" toml:"version"`
	Groups    []string             `yaml:"groups,omitempty" toml:"groups"`
	Platforms []string             `yaml:"platforms,omitempty" toml:"platforms"`
	Source    string               `yaml:"source,omitempty" toml:"source"`
	Git       string               `yaml:"git,omitempty" toml:"git"`
	Ref       string               `yaml:"ref,omitempty" toml:"ref"`
	Path      string               `yaml:"path,omitempty" toml:"path"`
}

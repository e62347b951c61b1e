package lockfile

import "go.trai.ch/bundle/internal/adapters/gemspec"

// File is the on-disk lock. Field order is the section order of the file.
type File struct {
	Sources      []SourceDTO     `yaml:"sources"`
	Specs        []SpecDTO       `yaml:"specs"`
	Platforms    []string        `yaml:"platforms"`
	Dependencies []DependencyDTO `yaml:"dependencies"`
	Digest       string          `yaml:"digest"`
	Version      int             `yaml:"version"`
}

// SourceDTO is a locked source.
type SourceDTO struct {
	Kind     string `yaml:"kind"`
	Location string `yaml:"location"`
	Ref      string `yaml:"ref,omitempty"`
	Revision string `yaml:"revision,omitempty"`
}

// SpecDTO is a locked specification. Source is the key of one of the locked
// sources.
type SpecDTO struct {
	Name         string          `yaml:"name"`
	Version      string          `yaml:"version"`
	Platform     string          `yaml:"platform,omitempty"`
	Source       string          `yaml:"source"`
	Checksum     string          `yaml:"checksum,omitempty"`
	Dependencies []DependencyDTO `yaml:"dependencies,omitempty"`
}

// DependencyDTO is a locked dependency, either a root or a specification's.
type DependencyDTO struct {
	Name      string               `yaml:"name"`
	Version   gemspec.Requirements `yaml:"version,omitempty"`
	Platforms []string             `yaml:"platforms,omitempty"`
	Groups    []string             `yaml:"groups,omitempty"`
	Source    string               `yaml:"source,omitempty"`
}

// Package gemspec reads gem descriptors, the YAML files that describe a gem
// shipped by a path or git source.
package gemspec

import (
	"os"
	"path/filepath"
	"slices"

	"go.trai.ch/bundle/internal/core/domain"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// FileName is the descriptor file of a path source.
const FileName = "gem.yaml"

// Pattern matches the descriptors of a git source.
const Pattern = "*.gemspec.yaml"

// Descriptor is the on-disk description of a gem.
type Descriptor struct {
	Name                    string          `yaml:"name"`
	Version                 string          `yaml:"version"`
	Platform                string          `yaml:"platform,omitempty"`
	Dependencies            []DependencyDTO `yaml:"dependencies,omitempty"`
	DevelopmentDependencies []DependencyDTO `yaml:"development_dependencies,omitempty"`

	// Path is the file the descriptor was read from.
	Path string `yaml:"-"`
}

// DependencyDTO is one dependency of a descriptor.
type DependencyDTO struct {
	Name    string       `yaml:"name"`
	Version Requirements `yaml:"version,omitempty"`
}

// Requirements accepts either a single requirement string or a list.
type Requirements []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (r *Requirements) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*r = Requirements{node.Value}
		return nil
	}
	var list []string
	if err := node.Decode(&list); err != nil {
		return err
	}
	*r = list
	return nil
}

// MarshalYAML implements yaml.Marshaler. A single requirement is written as
// a plain string.
func (r Requirements) MarshalYAML() (any, error) {
	if len(r) == 1 {
		return r[0], nil
	}
	return []string(r), nil
}

// UnmarshalTOML implements toml.Unmarshaler.
func (r *Requirements) UnmarshalTOML(data any) error {
	switch v := data.(type) {
	case string:
		*r = Requirements{v}
	case []any:
		out := make(Requirements, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return zerr.With(domain.ErrInvalidRequirement, "requirement", item)
			}
			out = append(out, s)
		}
		*r = out
	default:
		return zerr.With(domain.ErrInvalidRequirement, "requirement", data)
	}
	return nil
}

// Read parses the descriptor at path.
func Read(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path) //nolint:gosec // descriptor paths come from declared sources
	if err != nil {
		return nil, zerr.With(domain.ErrGemspecInvalid.Wrap(err), "path", path)
	}
	return Parse(path, data)
}

// Parse decodes a descriptor and validates its name, version and
// requirements.
func Parse(path string, data []byte) (*Descriptor, error) {
	var d Descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, zerr.With(domain.ErrGemspecInvalid.Wrap(err), "path", path)
	}
	d.Path = path

	if d.Name == "" {
		return nil, zerr.With(zerr.With(domain.ErrGemspecInvalid, "path", path), "reason", "missing name")
	}
	if _, err := domain.ParseVersion(d.Version); err != nil || d.Version == "" {
		return nil, zerr.With(zerr.With(domain.ErrGemspecInvalid, "path", path), "version", d.Version)
	}
	for _, dep := range slices.Concat(d.Dependencies, d.DevelopmentDependencies) {
		if dep.Name == "" {
			return nil, zerr.With(zerr.With(domain.ErrGemspecInvalid, "path", path), "reason", "dependency without name")
		}
		if _, err := domain.ParseRequirement(dep.Version...); err != nil {
			return nil, zerr.With(domain.ErrGemspecInvalid.Wrap(err), "path", path)
		}
	}
	return &d, nil
}

// Specification converts the descriptor into a specification served by src.
// Development dependencies are not part of it.
func (d *Descriptor) Specification(src domain.SourceIdentity) (*domain.Specification, error) {
	version, err := domain.ParseVersion(d.Version)
	if err != nil {
		return nil, zerr.With(domain.ErrGemspecInvalid.Wrap(err), "path", d.Path)
	}
	platform := domain.Platform(d.Platform)
	if platform == "" {
		platform = domain.PlatformRuby
	}

	deps, err := convert(d.Dependencies)
	if err != nil {
		return nil, zerr.With(domain.ErrGemspecInvalid.Wrap(err), "path", d.Path)
	}
	return &domain.Specification{
		Name:         d.Name,
		Version:      version,
		Platform:     platform,
		Dependencies: deps,
		Source:       src,
	}, nil
}

// Runtime returns the parsed runtime dependencies.
func (d *Descriptor) Runtime() ([]domain.Dependency, error) {
	return convert(d.Dependencies)
}

// Development returns the parsed development dependencies.
func (d *Descriptor) Development() ([]domain.Dependency, error) {
	return convert(d.DevelopmentDependencies)
}

func convert(dtos []DependencyDTO) ([]domain.Dependency, error) {
	out := make([]domain.Dependency, 0, len(dtos))
	for _, dto := range dtos {
		dep, err := domain.NewDependency(dto.Name, dto.Version...)
		if err != nil {
			return nil, err
		}
		out = append(out, dep)
	}
	return out, nil
}

// Glob returns the descriptors matching Pattern in dir, in file name order.
func Glob(dir string) ([]*Descriptor, error) {
	files, err := filepath.Glob(filepath.Join(dir, Pattern))
	if err != nil {
		return nil, zerr.Wrap(err, "failed to list gem descriptors")
	}
	out := make([]*Descriptor, 0, len(files))
	for _, f := range files {
		d, err := Read(f)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// Package manifest reads and creates Bundlefiles.
package manifest

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"go.trai.ch/bundle/internal/core/domain"
	"go.trai.ch/bundle/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// Store implements ports.ManifestStore for YAML and TOML Bundlefiles.
type Store struct {
	Logger ports.Logger
}

// NewStore creates a new Store with the given logger.
func NewStore(logger ports.Logger) *Store {
	return &Store{Logger: logger}
}

// names are the manifest file names probed in each directory, in order.
var names = []string{domain.ManifestName, domain.TOMLManifestName}

// Find walks up from dir and returns the nearest manifest.
func (s *Store) Find(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", zerr.Wrap(err, "failed to resolve working directory")
	}

	current := abs
	for {
		for _, name := range names {
			candidate := filepath.Join(current, name)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate, nil
			}
		}

		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}
	return "", zerr.With(domain.ErrGemfileNotFound, "cwd", abs)
}

// Load parses and validates the manifest at path.
func (s *Store) Load(path string) (*domain.Manifest, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to resolve manifest path")
	}

	data, err := os.ReadFile(abs) //nolint:gosec // path is the user's manifest
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, zerr.With(domain.ErrGemfileNotFound, "path", abs)
		}
		return nil, zerr.With(domain.ErrGemfileInvalid.Wrap(err), "path", abs)
	}

	file, err := decode(abs, data)
	if err != nil {
		return nil, err
	}

	m, err := s.build(abs, file)
	if err != nil {
		return nil, zerr.With(err, "path", abs)
	}
	return m, nil
}

func decode(path string, data []byte) (*Bundlefile, error) {
	var file Bundlefile
	if filepath.Ext(path) == ".toml" {
		if _, err := toml.Decode(string(data), &file); err != nil {
			return nil, zerr.With(domain.ErrGemfileInvalid.Wrap(err), "path", path)
		}
		return &file, nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, zerr.With(domain.ErrGemfileInvalid.Wrap(err), "path", path)
	}
	return &file, nil
}

func (s *Store) build(path string, file *Bundlefile) (*domain.Manifest, error) {
	root := filepath.Dir(path)
	m := &domain.Manifest{Path: path}

	for i, dto := range file.Sources {
		id, err := sourceIdentity(root, dto)
		if err != nil {
			return nil, zerr.With(err, "source", i)
		}
		addSource(m, id)
	}

	for _, p := range file.Platforms {
		if p == "" {
			return nil, zerr.With(domain.ErrGemfileInvalid, "reason", "empty platform")
		}
		m.Platforms = append(m.Platforms, domain.Platform(p))
	}

	for _, dto := range file.Gems {
		dep, err := s.dependency(root, m, dto)
		if err != nil {
			return nil, err
		}
		if err := s.declare(m, dep); err != nil {
			return nil, err
		}
	}

	if needsDefaultRemote(m) {
		m.Sources = append([]domain.SourceIdentity{{Kind: domain.SourceRubygems, Location: domain.DefaultRemote}}, m.Sources...)
	}
	return m, nil
}

func sourceIdentity(root string, dto SourceDTO) (domain.SourceIdentity, error) {
	set := 0
	for _, v := range []string{dto.Rubygems, dto.Git, dto.Path} {
		if v != "" {
			set++
		}
	}
	if set != 1 {
		return domain.SourceIdentity{}, zerr.With(domain.ErrGemfileInvalid, "reason", "a source needs exactly one of rubygems, git or path")
	}

	switch {
	case dto.Rubygems != "":
		if dto.Ref != "" {
			return domain.SourceIdentity{}, zerr.With(domain.ErrGemfileInvalid, "reason", "ref is only valid for git sources")
		}
		return domain.SourceIdentity{Kind: domain.SourceRubygems, Location: strings.TrimRight(dto.Rubygems, "/")}, nil
	case dto.Git != "":
		return domain.SourceIdentity{Kind: domain.SourceGit, Location: dto.Git, Ref: dto.Ref}, nil
	default:
		return domain.SourceIdentity{Kind: domain.SourcePath, Location: resolvePath(root, dto.Path)}, nil
	}
}

func resolvePath(root, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(root, p)
}

func addSource(m *domain.Manifest, id domain.SourceIdentity) domain.SourceIdentity {
	if existing, ok := m.SourceFor(id.Key()); ok {
		return existing
	}
	m.Sources = append(m.Sources, id)
	return id
}

func (s *Store) dependency(root string, m *domain.Manifest, dto GemDTO) (domain.Dependency, error) {
	if dto.Name == "" {
		return domain.Dependency{}, zerr.With(domain.ErrGemfileInvalid, "reason", "gem without name")
	}

	dep, err := domain.NewDependency(dto.Name, dto.Version...)
	if err != nil {
		return domain.Dependency{}, zerr.With(err, "gem", dto.Name)
	}
	dep.Groups = slices.Clone(dto.Groups)
	for _, p := range dto.Platforms {
		dep.Platforms = append(dep.Platforms, domain.Platform(p))
	}

	pins := 0
	for _, v := range []string{dto.Source, dto.Git, dto.Path} {
		if v != "" {
			pins++
		}
	}
	if pins > 1 {
		return domain.Dependency{}, zerr.With(zerr.With(domain.ErrGemfileInvalid, "gem", dto.Name), "reason", "only one of source, git or path may be given")
	}

	switch {
	case dto.Git != "":
		id := addSource(m, domain.SourceIdentity{Kind: domain.SourceGit, Location: dto.Git, Ref: dto.Ref})
		dep.Source = &id
	case dto.Path != "":
		id := addSource(m, domain.SourceIdentity{Kind: domain.SourcePath, Location: resolvePath(root, dto.Path)})
		dep.Source = &id
	case dto.Source != "":
		id, ok := findDeclared(m, dto.Source)
		if !ok {
			return domain.Dependency{}, zerr.With(zerr.With(domain.ErrUnknownSource, "gem", dto.Name), "source", dto.Source)
		}
		dep.Source = &id
	case dto.Ref != "":
		return domain.Dependency{}, zerr.With(zerr.With(domain.ErrGemfileInvalid, "gem", dto.Name), "reason", "ref is only valid with git")
	}
	return dep, nil
}

func findDeclared(m *domain.Manifest, ref string) (domain.SourceIdentity, bool) {
	ref = strings.TrimRight(ref, "/")
	for _, s := range m.Sources {
		if s.Key() == ref || strings.TrimRight(s.Location, "/") == ref {
			return s, true
		}
	}
	return domain.SourceIdentity{}, false
}

// declare adds dep to m. A repeated declaration with the same source merges
// requirements, groups and platforms; a different source is an error.
func (s *Store) declare(m *domain.Manifest, dep domain.Dependency) error {
	i := slices.IndexFunc(m.Dependencies, func(d domain.Dependency) bool { return d.Name == dep.Name })
	if i < 0 {
		m.Dependencies = append(m.Dependencies, dep)
		return nil
	}

	prior := &m.Dependencies[i]
	if sourceKey(prior.Source) != sourceKey(dep.Source) {
		err := zerr.With(domain.ErrConflictingDeclaration, "gem", dep.Name)
		return zerr.With(err, "sources", []string{sourceKey(prior.Source), sourceKey(dep.Source)})
	}

	s.Logger.Warn("gem " + dep.Name + " is declared more than once; requirements are combined")
	prior.Requirement = prior.Requirement.Merge(dep.Requirement)
	prior.Groups = union(prior.Groups, dep.Groups)
	if len(prior.Platforms) > 0 && len(dep.Platforms) > 0 {
		prior.Platforms = union(prior.Platforms, dep.Platforms)
	} else {
		prior.Platforms = nil
	}
	return nil
}

func sourceKey(id *domain.SourceIdentity) string {
	if id == nil {
		return "(default)"
	}
	return id.Key()
}

func union[T comparable](a, b []T) []T {
	out := slices.Clone(a)
	for _, v := range b {
		if !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

// needsDefaultRemote reports whether some root dependency would resolve from
// a remote although the manifest declares none.
func needsDefaultRemote(m *domain.Manifest) bool {
	for _, s := range m.Sources {
		if s.Kind == domain.SourceRubygems {
			return false
		}
	}
	if len(m.Dependencies) == 0 {
		return len(m.Sources) == 0
	}
	for _, d := range m.Dependencies {
		if d.Source == nil {
			return true
		}
	}
	return false
}

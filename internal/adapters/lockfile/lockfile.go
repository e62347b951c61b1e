// Package lockfile persists resolved spec sets as deterministic YAML.
package lockfile

import (
	"bytes"
	"cmp"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/google/uuid"
	"go.trai.ch/bundle/internal/core/domain"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// Store implements ports.LockStore.
type Store struct{}

// NewStore creates a new Store.
func NewStore() *Store {
	return &Store{}
}

// Load reads the lock at path. A missing file yields nil, nil.
func (s *Store) Load(path string) (*domain.LockedSpecSet, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is derived from the manifest location
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil //nolint:nilnil // a missing lock is not an error
		}
		return nil, zerr.With(domain.ErrLockfileReadFailed.Wrap(err), "path", path)
	}

	lock, err := Decode(data)
	if err != nil {
		return nil, zerr.With(err, "path", path)
	}
	return lock, nil
}

// Save writes lock to path unless the file already holds the same content.
// It reports whether the file changed.
func (s *Store) Save(path string, lock *domain.LockedSpecSet) (bool, error) {
	data, err := Encode(lock)
	if err != nil {
		return false, err
	}

	existing, err := os.ReadFile(path) //nolint:gosec // path is derived from the manifest location
	if err == nil && bytes.Equal(existing, data) {
		return false, nil
	}

	tmp := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+"."+uuid.NewString())
	if err := os.WriteFile(tmp, data, domain.FilePerm); err != nil {
		return false, zerr.With(domain.ErrLockfileWriteFailed.Wrap(err), "path", path)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return false, zerr.With(domain.ErrLockfileWriteFailed.Wrap(err), "path", path)
	}
	return true, nil
}

// Encode renders lock. Equal locks always render to identical bytes.
func Encode(lock *domain.LockedSpecSet) ([]byte, error) {
	file := File{
		Digest:  lock.Digest,
		Version: domain.LockfileVersion,
	}
	for _, src := range lock.Sources {
		file.Sources = append(file.Sources, SourceDTO{
			Kind:     string(src.Kind),
			Location: src.Location,
			Ref:      src.Ref,
			Revision: src.Revision,
		})
	}

	if lock.Specs != nil {
		for _, spec := range lock.Specs.Sorted() {
			dto := SpecDTO{
				Name:     spec.Name,
				Version:  spec.Version.String(),
				Source:   spec.Source.Key(),
				Checksum: spec.Checksum,
			}
			if !spec.Platform.IsGeneric() {
				dto.Platform = string(spec.Platform)
			}
			for _, dep := range sortedDependencies(spec.Dependencies) {
				dto.Dependencies = append(dto.Dependencies, dependencyDTO(dep))
			}
			file.Specs = append(file.Specs, dto)
		}
	}

	for _, p := range lock.Platforms {
		file.Platforms = append(file.Platforms, string(p))
	}
	slices.Sort(file.Platforms)

	for _, dep := range sortedDependencies(lock.Dependencies) {
		file.Dependencies = append(file.Dependencies, dependencyDTO(dep))
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&file); err != nil {
		return nil, domain.ErrLockfileWriteFailed.Wrap(err)
	}
	if err := enc.Close(); err != nil {
		return nil, domain.ErrLockfileWriteFailed.Wrap(err)
	}
	return buf.Bytes(), nil
}

func sortedDependencies(deps []domain.Dependency) []domain.Dependency {
	out := slices.Clone(deps)
	slices.SortStableFunc(out, func(a, b domain.Dependency) int { return cmp.Compare(a.Name, b.Name) })
	return out
}

func dependencyDTO(dep domain.Dependency) DependencyDTO {
	dto := DependencyDTO{Name: dep.Name}
	if !dep.Requirement.IsAny() {
		dto.Version = dep.Requirement.Strings()
	}
	for _, p := range dep.Platforms {
		dto.Platforms = append(dto.Platforms, string(p))
	}
	slices.Sort(dto.Platforms)
	dto.Platforms = slices.Compact(dto.Platforms)
	dto.Groups = slices.Clone(dep.Groups)
	slices.Sort(dto.Groups)
	if dep.Source != nil {
		dto.Source = dep.Source.Key()
	}
	return dto
}

// Decode parses a lock rendered by Encode.
func Decode(data []byte) (*domain.LockedSpecSet, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, domain.ErrLockfileInvalid.Wrap(err)
	}
	if file.Version > domain.LockfileVersion {
		return nil, zerr.With(domain.ErrLockfileInvalid, "version", file.Version)
	}

	lock := &domain.LockedSpecSet{Digest: file.Digest}
	sources := make(map[string]domain.SourceIdentity, len(file.Sources))
	for _, dto := range file.Sources {
		kind := domain.SourceKind(dto.Kind)
		if kind != domain.SourceRubygems && kind != domain.SourceGit && kind != domain.SourcePath {
			return nil, zerr.With(domain.ErrLockfileInvalid, "source_kind", dto.Kind)
		}
		id := domain.SourceIdentity{Kind: kind, Location: dto.Location, Ref: dto.Ref, Revision: dto.Revision}
		sources[id.Key()] = id
		lock.Sources = append(lock.Sources, id)
	}

	specs := make([]*domain.Specification, 0, len(file.Specs))
	for _, dto := range file.Specs {
		spec, err := decodeSpec(dto, sources)
		if err != nil {
			return nil, zerr.With(err, "gem", dto.Name)
		}
		specs = append(specs, spec)
	}
	lock.Specs = domain.NewSpecSet(specs...)

	for _, p := range file.Platforms {
		lock.Platforms = append(lock.Platforms, domain.Platform(p))
	}

	for _, dto := range file.Dependencies {
		dep, err := decodeDependency(dto, sources)
		if err != nil {
			return nil, zerr.With(err, "dependency", dto.Name)
		}
		lock.Dependencies = append(lock.Dependencies, dep)
	}
	return lock, nil
}

func decodeSpec(dto SpecDTO, sources map[string]domain.SourceIdentity) (*domain.Specification, error) {
	version, err := domain.ParseVersion(dto.Version)
	if err != nil || dto.Name == "" {
		return nil, domain.ErrLockfileInvalid.Wrap(err)
	}
	src, ok := sources[dto.Source]
	if !ok {
		return nil, zerr.With(domain.ErrLockfileInvalid, "source", dto.Source)
	}
	platform := domain.Platform(dto.Platform)
	if platform == "" {
		platform = domain.PlatformRuby
	}

	spec := &domain.Specification{
		Name:     dto.Name,
		Version:  version,
		Platform: platform,
		Source:   src,
		Checksum: dto.Checksum,
	}
	for _, d := range dto.Dependencies {
		dep, err := decodeDependency(d, sources)
		if err != nil {
			return nil, err
		}
		spec.Dependencies = append(spec.Dependencies, dep)
	}
	return spec, nil
}

func decodeDependency(dto DependencyDTO, sources map[string]domain.SourceIdentity) (domain.Dependency, error) {
	dep, err := domain.NewDependency(dto.Name, dto.Version...)
	if err != nil || dto.Name == "" {
		return domain.Dependency{}, domain.ErrLockfileInvalid.Wrap(err)
	}
	for _, p := range dto.Platforms {
		dep.Platforms = append(dep.Platforms, domain.Platform(p))
	}
	dep.Groups = dto.Groups
	if dto.Source != "" {
		src, ok := sources[dto.Source]
		if !ok {
			return domain.Dependency{}, zerr.With(domain.ErrLockfileInvalid, "source", dto.Source)
		}
		dep.Source = &src
	}
	return dep, nil
}

package manifest

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"go.trai.ch/bundle/internal/adapters/gemspec"
	"go.trai.ch/bundle/internal/core/domain"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

const header = "# Declare the gems of this project, then run `bundle install`.\n"

// DevelopmentGroup is the group of dependencies taken from a descriptor's
// development dependencies.
const DevelopmentGroup = "development"

// Init writes a starter Bundlefile into dir. With a gem descriptor, its
// runtime and development dependencies are declared. An existing manifest
// is left untouched.
func (s *Store) Init(dir, descriptor string) (string, error) {
	for _, name := range names {
		existing := filepath.Join(dir, name)
		if _, err := os.Stat(existing); err == nil {
			return "", zerr.With(domain.ErrGemfileExists, "path", existing)
		}
	}

	file := Bundlefile{
		Sources: []SourceDTO{{Rubygems: domain.DefaultRemote}},
		Gems:    []GemDTO{},
	}
	if descriptor != "" {
		gems, err := gemsFrom(descriptor)
		if err != nil {
			return "", err
		}
		file.Gems = gems
	}

	var buf bytes.Buffer
	buf.WriteString(header)
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&file); err != nil {
		return "", zerr.Wrap(err, "failed to encode Bundlefile")
	}
	if err := enc.Close(); err != nil {
		return "", zerr.Wrap(err, "failed to encode Bundlefile")
	}

	path := filepath.Join(dir, domain.ManifestName)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, domain.FilePerm) //nolint:gosec // path is inside the target directory
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", zerr.With(domain.ErrGemfileExists, "path", path)
		}
		return "", zerr.With(zerr.Wrap(err, "failed to create Bundlefile"), "path", path)
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		_ = f.Close()
		return "", zerr.With(zerr.Wrap(err, "failed to write Bundlefile"), "path", path)
	}
	if err := f.Close(); err != nil {
		return "", zerr.With(zerr.Wrap(err, "failed to write Bundlefile"), "path", path)
	}
	return path, nil
}

func gemsFrom(path string) ([]GemDTO, error) {
	d, err := gemspec.Read(path)
	if err != nil {
		return nil, err
	}
	runtime, err := d.Runtime()
	if err != nil {
		return nil, zerr.With(domain.ErrGemspecInvalid.Wrap(err), "path", path)
	}
	development, err := d.Development()
	if err != nil {
		return nil, zerr.With(domain.ErrGemspecInvalid.Wrap(err), "path", path)
	}

	gems := make([]GemDTO, 0, len(runtime)+len(development))
	for _, dep := range runtime {
		gems = append(gems, gemDTO(dep, nil))
	}
	for _, dep := range development {
		gems = append(gems, gemDTO(dep, []string{DevelopmentGroup}))
	}
	return gems, nil
}

func gemDTO(dep domain.Dependency, groups []string) GemDTO {
	dto := GemDTO{Name: dep.Name, Groups: groups}
	if !dep.Requirement.IsAny() {
		dto.Version = dep.Requirement.Strings()
	}
	return dto
}

// Package path implements a source backed by a local directory holding a
// single gem.
package path

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	walk "go.trai.ch/bundle/internal/adapters/fs"
	"go.trai.ch/bundle/internal/adapters/gemspec"
	"go.trai.ch/bundle/internal/core/domain"
	"go.trai.ch/zerr"
)

// Source implements ports.Source for a gem directory.
type Source struct {
	id     domain.SourceIdentity
	walker *walk.Walker

	once       sync.Once
	descriptor *gemspec.Descriptor
	err        error
}

// New creates a Source for the directory named by id.Location.
func New(id domain.SourceIdentity) *Source {
	return &Source{id: id, walker: walk.NewWalker()}
}

// Identity implements ports.Source.
func (s *Source) Identity() domain.SourceIdentity {
	return s.id
}

// Specs implements ports.Source. The directory offers exactly one gem.
func (s *Source) Specs(_ context.Context, name string) ([]*domain.Specification, error) {
	d, err := s.load()
	if err != nil {
		return nil, err
	}
	if d.Name != name {
		return nil, nil
	}
	spec, err := d.Specification(s.id)
	if err != nil {
		return nil, err
	}
	return []*domain.Specification{spec}, nil
}

// Materialize implements ports.Source by copying the directory into dir.
func (s *Source) Materialize(_ context.Context, spec *domain.Specification, dir string) error {
	d, err := s.load()
	if err != nil {
		return err
	}
	if d.Name != spec.Name || d.Version != spec.Version.String() {
		return zerr.With(zerr.With(domain.ErrPathSource, "gem", spec.FullName()), "path", s.id.Location)
	}
	if err := s.walker.CopyTree(s.id.Location, dir, nil); err != nil {
		return zerr.With(domain.ErrPathSource.Wrap(err), "path", s.id.Location)
	}
	return nil
}

// load reads the descriptor once. gem.yaml is preferred; otherwise the
// directory must hold exactly one "*.gemspec.yaml".
func (s *Source) load() (*gemspec.Descriptor, error) {
	s.once.Do(func() {
		s.descriptor, s.err = s.read()
	})
	return s.descriptor, s.err
}

func (s *Source) read() (*gemspec.Descriptor, error) {
	info, err := os.Stat(s.id.Location)
	if err != nil || !info.IsDir() {
		if err == nil {
			err = fs.ErrInvalid
		}
		return nil, zerr.With(domain.ErrPathSource.Wrap(err), "path", s.id.Location)
	}

	file := filepath.Join(s.id.Location, gemspec.FileName)
	d, err := gemspec.Read(file)
	if err == nil {
		return d, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	found, err := gemspec.Glob(s.id.Location)
	if err != nil {
		return nil, err
	}
	if len(found) != 1 {
		err := zerr.With(domain.ErrPathSource, "path", s.id.Location)
		return nil, zerr.With(err, "descriptors", len(found))
	}
	return found[0], nil
}

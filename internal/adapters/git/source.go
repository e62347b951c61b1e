// Package git implements a source backed by a git repository holding one or
// more gem descriptors.
package git

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"go.trai.ch/bundle/internal/adapters/fs"
	"go.trai.ch/bundle/internal/adapters/gemspec"
	"go.trai.ch/bundle/internal/core/domain"
	"go.trai.ch/zerr"
)

// checkoutsDir is the directory below the cache holding repository checkouts.
const checkoutsDir = "git"

// Source implements ports.Source for a git repository checked out at a ref.
type Source struct {
	walker *fs.Walker
	dir    string

	mu          sync.Mutex
	id          domain.SourceIdentity
	ready       bool
	descriptors []*gemspec.Descriptor
}

// New creates a Source for id. The repository is cloned below cacheDir on
// first use. When id carries a Revision, that commit is checked out instead
// of resolving Ref again.
func New(id domain.SourceIdentity, cacheDir string) *Source {
	return &Source{
		walker: fs.NewWalker(),
		dir:    filepath.Join(cacheDir, checkoutsDir, id.Hash()),
		id:     id,
	}
}

// Identity implements ports.Source. After the first listing it carries the
// resolved revision.
func (s *Source) Identity() domain.SourceIdentity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Specs implements ports.Source.
func (s *Source) Specs(ctx context.Context, name string) ([]*domain.Specification, error) {
	descriptors, id, err := s.checkout(ctx)
	if err != nil {
		return nil, err
	}

	var specs []*domain.Specification
	for _, d := range descriptors {
		if d.Name != name {
			continue
		}
		spec, err := d.Specification(id)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// Materialize implements ports.Source. The directory holding the gem's
// descriptor is copied into dir.
func (s *Source) Materialize(ctx context.Context, spec *domain.Specification, dir string) error {
	descriptors, _, err := s.checkout(ctx)
	if err != nil {
		return err
	}
	for _, d := range descriptors {
		if d.Name == spec.Name && d.Version == spec.Version.String() {
			return s.walker.CopyTree(filepath.Dir(d.Path), dir, nil)
		}
	}
	return zerr.With(zerr.With(domain.ErrGitSource, "gem", spec.FullName()), "repository", s.id.Location)
}

// checkout clones or updates the repository once, pins it to a revision and
// reads the descriptors it holds.
func (s *Source) checkout(ctx context.Context) ([]*gemspec.Descriptor, domain.SourceIdentity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ready {
		return s.descriptors, s.id, nil
	}

	if _, err := os.Stat(filepath.Join(s.dir, ".git")); err != nil {
		if err := os.MkdirAll(filepath.Dir(s.dir), domain.DirPerm); err != nil {
			return nil, s.id, s.fail(err)
		}
		_ = os.RemoveAll(s.dir)
		if _, err := run(ctx, "", "clone", "--quiet", "--no-checkout", s.id.Location, s.dir); err != nil {
			return nil, s.id, s.fail(err)
		}
	} else if _, err := run(ctx, s.dir, "fetch", "--quiet", "--tags", "--force", "origin"); err != nil {
		return nil, s.id, s.fail(err)
	}

	revision := s.id.Revision
	if revision == "" {
		rev, err := s.resolve(ctx)
		if err != nil {
			return nil, s.id, err
		}
		revision = rev
	}
	if _, err := run(ctx, s.dir, "checkout", "--quiet", "--force", "--detach", revision); err != nil {
		return nil, s.id, zerr.With(s.fail(err), "revision", revision)
	}

	descriptors, err := glob(s.dir)
	if err != nil {
		return nil, s.id, err
	}

	s.id.Revision = revision
	s.descriptors = descriptors
	s.ready = true
	return s.descriptors, s.id, nil
}

// resolve turns Ref into a commit. Branches are looked up on the remote
// first so that a fetched branch wins over a stale local one.
func (s *Source) resolve(ctx context.Context) (string, error) {
	candidates := []string{"origin/HEAD", "HEAD"}
	if s.id.Ref != "" {
		candidates = []string{"origin/" + s.id.Ref, s.id.Ref}
	}

	var lastErr error
	for _, c := range candidates {
		out, err := run(ctx, s.dir, "rev-parse", "--verify", "--quiet", c+"^{commit}")
		if err == nil {
			return strings.TrimSpace(out), nil
		}
		lastErr = err
	}
	return "", zerr.With(s.fail(lastErr), "ref", s.id.Ref)
}

func (s *Source) fail(err error) error {
	return zerr.With(domain.ErrGitSource.Wrap(err), "repository", s.id.Location)
}

// glob reads the descriptors at the repository root and one level below it.
func glob(root string) ([]*gemspec.Descriptor, error) {
	descriptors, err := gemspec.Glob(root)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to read checkout")
	}
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		nested, err := gemspec.Glob(filepath.Join(root, e.Name()))
		if err != nil {
			return nil, err
		}
		descriptors = append(descriptors, nested...)
	}
	return descriptors, nil
}

// run executes git with args in dir and returns its standard output.
func run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return "", zerr.With(err, "command", "git "+args[0])
		}
		return "", zerr.With(zerr.Wrap(err, msg), "command", "git "+args[0])
	}
	return stdout.String(), nil
}

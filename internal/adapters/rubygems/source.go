// Package rubygems implements a source backed by a remote gem server that
// speaks the compact index protocol.
package rubygems

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"go.trai.ch/bundle/internal/core/domain"
	"go.trai.ch/zerr"
	"golang.org/x/sync/singleflight"
)

const maxCachedInfos = 1024

// Option configures a Source.
type Option func(*Source)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Source) {
		s.client.http = c
	}
}

// WithRetry sets the number of extra attempts and the initial backoff.
func WithRetry(retries int, delay time.Duration) Option {
	return func(s *Source) {
		s.client.attempts = retries + 1
		s.client.delay = delay
	}
}

// WithCacheTTL bounds how long fetched listings are reused.
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Source) {
		s.ttl = ttl
	}
}

// Source implements ports.Source for a compact index remote.
type Source struct {
	id       domain.SourceIdentity
	client   *client
	cacheDir string
	ttl      time.Duration
	infos    *lru.LRU[string, []*domain.Specification]
	group    singleflight.Group
}

// New creates a Source for id. Downloaded gems are kept under cacheDir.
func New(id domain.SourceIdentity, cacheDir string, opts ...Option) (*Source, error) {
	base := strings.TrimRight(id.Location, "/")
	if u, err := url.Parse(base); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, zerr.With(domain.ErrSourceUnavailable.Wrap(err), "remote", id.Location)
	}

	s := &Source{
		id:       id,
		cacheDir: filepath.Join(cacheDir, id.Hash()),
		ttl:      domain.DefaultSettings().CacheTTL,
		client: &client{
			http:     &http.Client{Timeout: httpClientTimeout},
			base:     base,
			attempts: domain.DefaultSettings().Retry + 1,
			delay:    DefaultRetryDelay,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.infos = lru.NewLRU[string, []*domain.Specification](maxCachedInfos, nil, s.ttl)
	return s, nil
}

// Identity implements ports.Source.
func (s *Source) Identity() domain.SourceIdentity {
	return s.id
}

// Specs implements ports.Source. Listings are cached for the configured TTL
// and concurrent requests for the same name share one fetch.
func (s *Source) Specs(ctx context.Context, name string) ([]*domain.Specification, error) {
	if specs, ok := s.infos.Get(name); ok {
		return specs, nil
	}

	v, err, _ := s.group.Do(name, func() (any, error) {
		data, err := s.client.get(ctx, "/info/"+url.PathEscape(name))
		if errors.Is(err, errNotFound) {
			return []*domain.Specification(nil), nil
		}
		if err != nil {
			return nil, s.unavailable(err)
		}
		return ParseInfo(name, s.id, data)
	})
	if err != nil {
		return nil, zerr.With(err, "gem", name)
	}

	specs, _ := v.([]*domain.Specification)
	s.infos.Add(name, specs)
	return specs, nil
}

// Materialize implements ports.Source. The package is downloaded into the
// cache once, verified against the advertised checksum and unpacked into dir.
func (s *Source) Materialize(ctx context.Context, spec *domain.Specification, dir string) error {
	archive, err := s.fetchPackage(ctx, spec)
	if err != nil {
		return err
	}
	if err := extractPackage(archive, dir); err != nil {
		return zerr.With(err, "package", archive)
	}
	return nil
}

func (s *Source) fetchPackage(ctx context.Context, spec *domain.Specification) (string, error) {
	file := spec.FullName() + ".gem"
	target := filepath.Join(s.cacheDir, file)

	if _, err := os.Stat(target); err == nil {
		if err := verifyFile(target, spec.Checksum); err == nil {
			return target, nil
		}
		_ = os.Remove(target)
	}

	_, err, _ := s.group.Do("gem:"+file, func() (any, error) {
		data, err := s.client.get(ctx, "/gems/"+url.PathEscape(file))
		if errors.Is(err, errNotFound) {
			return nil, zerr.With(domain.ErrGemNotFound.Wrap(err), "gem", spec.FullName())
		}
		if err != nil {
			return nil, s.unavailable(err)
		}
		if err := verify(data, spec.Checksum); err != nil {
			return nil, zerr.With(err, "gem", spec.FullName())
		}
		return nil, s.store(target, data)
	})
	if err != nil {
		return "", err
	}
	return target, nil
}

// store writes data to target through a temporary file and a rename.
func (s *Source) store(target string, data []byte) error {
	if err := os.MkdirAll(s.cacheDir, domain.DirPerm); err != nil {
		return zerr.Wrap(err, "failed to create download cache")
	}
	tmp := filepath.Join(s.cacheDir, "."+filepath.Base(target)+"."+uuid.NewString())
	if err := os.WriteFile(tmp, data, domain.FilePerm); err != nil {
		return zerr.Wrap(err, "failed to write package")
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return zerr.Wrap(err, "failed to store package")
	}
	return nil
}

func (s *Source) unavailable(err error) error {
	return zerr.With(domain.ErrSourceUnavailable.Wrap(err), "remote", s.id.Location)
}

func verifyFile(path, checksum string) error {
	f, err := os.Open(path) //nolint:gosec // path is inside the download cache
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return err
	}
	return compareDigest(h.Sum(nil), checksum)
}

func verify(data []byte, checksum string) error {
	sum := sha256.Sum256(data)
	return compareDigest(sum[:], checksum)
}

// compareDigest checks sum against checksum. An empty checksum accepts any
// content.
func compareDigest(sum []byte, checksum string) error {
	want := strings.TrimPrefix(checksum, "sha256:")
	if want == "" {
		return nil
	}
	got := hex.EncodeToString(sum)
	if !strings.EqualFold(got, want) {
		return zerr.With(zerr.With(domain.ErrChecksumMismatch, "want", want), "got", got)
	}
	return nil
}

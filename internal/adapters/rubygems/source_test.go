package rubygems_test

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/bundle/internal/adapters/rubygems"
	"go.trai.ch/bundle/internal/core/domain"
)

const rackInfo = `created_at: 2024-01-01T00:00:00Z
---
2.2.7 |checksum:aa11
2.2.8 webrick:>= 1.0&< 2|checksum:bb22,ruby:>= 2.4
3.0.0.beta1 |checksum:cc33
`

type server struct {
	*httptest.Server
	infoHits atomic.Int32
	gemHits  atomic.Int32
	failures atomic.Int32
	gems     map[string][]byte
}

func newServer(t *testing.T) *server {
	t.Helper()
	s := &server{gems: map[string][]byte{}}

	r := chi.NewRouter()
	r.Get("/info/{name}", func(w http.ResponseWriter, req *http.Request) {
		s.infoHits.Add(1)
		if s.failures.Load() > 0 {
			s.failures.Add(-1)
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		switch chi.URLParam(req, "name") {
		case "rack":
			_, _ = w.Write([]byte(rackInfo))
		case "nokogiri":
			_, _ = w.Write([]byte("---\n1.15.0-x86_64-linux racc:~> 1.4|checksum:dd44\n1.15.0 racc:~> 1.4\n"))
		case "broken":
			_, _ = w.Write([]byte("---\nnot-a-version |\n"))
		default:
			http.NotFound(w, req)
		}
	})
	r.Get("/gems/{file}", func(w http.ResponseWriter, req *http.Request) {
		s.gemHits.Add(1)
		data, ok := s.gems[chi.URLParam(req, "file")]
		if !ok {
			http.NotFound(w, req)
			return
		}
		_, _ = w.Write(data)
	})

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

func (s *server) identity() domain.SourceIdentity {
	return domain.SourceIdentity{Kind: domain.SourceRubygems, Location: s.URL}
}

func newSource(t *testing.T, s *server) *rubygems.Source {
	t.Helper()
	src, err := rubygems.New(s.identity(), t.TempDir(), rubygems.WithRetry(2, time.Millisecond))
	require.NoError(t, err)
	return src
}

func buildGem(t *testing.T, files map[string]string) []byte {
	t.Helper()

	var data bytes.Buffer
	gz := gzip.NewWriter(&data)
	inner := tar.NewWriter(gz)
	for name, content := range files {
		require.NoError(t, inner.WriteHeader(&tar.Header{
			Name:     name,
			Mode:     0o644,
			Size:     int64(len(content)),
			Typeflag: tar.TypeReg,
		}))
		_, err := inner.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, inner.Close())
	require.NoError(t, gz.Close())

	var pkg bytes.Buffer
	outer := tar.NewWriter(&pkg)
	for _, member := range []struct {
		name string
		body []byte
	}{
		{"metadata.gz", []byte("meta")},
		{"data.tar.gz", data.Bytes()},
	} {
		require.NoError(t, outer.WriteHeader(&tar.Header{
			Name:     member.name,
			Mode:     0o644,
			Size:     int64(len(member.body)),
			Typeflag: tar.TypeReg,
		}))
		_, err := outer.Write(member.body)
		require.NoError(t, err)
	}
	require.NoError(t, outer.Close())
	return pkg.Bytes()
}

func digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func TestParseInfo(t *testing.T) {
	src := domain.SourceIdentity{Kind: domain.SourceRubygems, Location: domain.DefaultRemote}
	specs, err := rubygems.ParseInfo("rack", src, []byte(rackInfo))
	require.NoError(t, err)
	require.Len(t, specs, 3)

	assert.Equal(t, "2.2.7", specs[0].Version.String())
	assert.Empty(t, specs[0].Dependencies)
	assert.Equal(t, "aa11", specs[0].Checksum)

	assert.Equal(t, "rack-2.2.8", specs[1].FullName())
	require.Len(t, specs[1].Dependencies, 1)
	assert.Equal(t, "webrick", specs[1].Dependencies[0].Name)
	assert.Equal(t, []string{">= 1.0", "< 2"}, specs[1].Dependencies[0].Requirement.Strings())
	assert.Equal(t, src, specs[1].Source)

	assert.True(t, specs[2].Version.IsPrerelease())
}

func TestParseInfo_Platform(t *testing.T) {
	specs, err := rubygems.ParseInfo("nokogiri", domain.SourceIdentity{}, []byte("1.15.0-x86_64-linux |\n"))
	require.NoError(t, err)
	require.Len(t, specs, 1)
	assert.Equal(t, domain.Platform("x86_64-linux"), specs[0].Platform)
	assert.Equal(t, "nokogiri-1.15.0-x86_64-linux", specs[0].FullName())
}

func TestParseInfo_Malformed(t *testing.T) {
	for _, body := range []string{
		"---\nnot-a-version |\n",
		"---\n1.0.0 :>= 1|\n",
		"---\n1.0.0 rack:>>> 1|\n",
	} {
		_, err := rubygems.ParseInfo("x", domain.SourceIdentity{}, []byte(body))
		require.ErrorIs(t, err, domain.ErrGemspecInvalid, body)
		assert.Equal(t, 14, domain.ExitCode(err))
	}
}

func TestSource_Specs(t *testing.T) {
	s := newServer(t)
	src := newSource(t, s)
	ctx := context.Background()

	specs, err := src.Specs(ctx, "rack")
	require.NoError(t, err)
	require.Len(t, specs, 3)
	assert.Equal(t, s.identity(), specs[0].Source)

	_, err = src.Specs(ctx, "rack")
	require.NoError(t, err)
	assert.Equal(t, int32(1), s.infoHits.Load(), "second lookup is served from memory")
}

func TestSource_SpecsPlatforms(t *testing.T) {
	s := newServer(t)
	specs, err := newSource(t, s).Specs(context.Background(), "nokogiri")
	require.NoError(t, err)
	require.Len(t, specs, 2)
	assert.Equal(t, domain.Platform("x86_64-linux"), specs[0].Platform)
	assert.Equal(t, domain.PlatformRuby, specs[1].Platform)
}

func TestSource_UnknownName(t *testing.T) {
	s := newServer(t)
	specs, err := newSource(t, s).Specs(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, specs)
}

func TestSource_Retry(t *testing.T) {
	s := newServer(t)
	s.failures.Store(2)

	specs, err := newSource(t, s).Specs(context.Background(), "rack")
	require.NoError(t, err)
	assert.Len(t, specs, 3)
	assert.Equal(t, int32(3), s.infoHits.Load())
}

func TestSource_Unavailable(t *testing.T) {
	s := newServer(t)
	s.failures.Store(10)

	_, err := newSource(t, s).Specs(context.Background(), "rack")
	require.ErrorIs(t, err, domain.ErrSourceUnavailable)
	assert.Equal(t, int32(3), s.infoHits.Load(), "one attempt plus two retries")
}

func TestSource_Unreachable(t *testing.T) {
	s := newServer(t)
	id := s.identity()
	s.Close()

	src, err := rubygems.New(id, t.TempDir(), rubygems.WithRetry(0, time.Millisecond))
	require.NoError(t, err)
	_, err = src.Specs(context.Background(), "rack")
	require.ErrorIs(t, err, domain.ErrSourceUnavailable)
	assert.Equal(t, 4, domain.ExitCode(err))
}

func TestSource_BadLocation(t *testing.T) {
	_, err := rubygems.New(domain.SourceIdentity{Kind: domain.SourceRubygems, Location: "not a url"}, t.TempDir())
	require.ErrorIs(t, err, domain.ErrSourceUnavailable)
}

func TestSource_Materialize(t *testing.T) {
	s := newServer(t)
	pkg := buildGem(t, map[string]string{"lib/rack.rb": "module Rack; end\n"})
	s.gems["rack-2.2.8.gem"] = pkg

	cache := t.TempDir()
	src, err := rubygems.New(s.identity(), cache)
	require.NoError(t, err)

	spec := &domain.Specification{
		Name:     "rack",
		Version:  domain.MustParseVersion("2.2.8"),
		Platform: domain.PlatformRuby,
		Source:   s.identity(),
		Checksum: digest(pkg),
	}

	for range 2 {
		dir := t.TempDir()
		require.NoError(t, src.Materialize(context.Background(), spec, dir))
		content, err := os.ReadFile(filepath.Join(dir, "lib", "rack.rb"))
		require.NoError(t, err)
		assert.Equal(t, "module Rack; end\n", string(content))
	}
	assert.Equal(t, int32(1), s.gemHits.Load(), "package is downloaded once")
	assert.FileExists(t, filepath.Join(cache, s.identity().Hash(), "rack-2.2.8.gem"))
}

func TestSource_MaterializeChecksumMismatch(t *testing.T) {
	s := newServer(t)
	s.gems["rack-2.2.8.gem"] = buildGem(t, map[string]string{"lib/rack.rb": ""})

	spec := &domain.Specification{
		Name:     "rack",
		Version:  domain.MustParseVersion("2.2.8"),
		Source:   s.identity(),
		Checksum: "00ff",
	}
	err := newSource(t, s).Materialize(context.Background(), spec, t.TempDir())
	require.ErrorIs(t, err, domain.ErrChecksumMismatch)
	assert.Equal(t, 5, domain.ExitCode(err))
}

func TestSource_MaterializeRejectsEscapingEntries(t *testing.T) {
	s := newServer(t)
	s.gems["evil-1.0.gem"] = buildGem(t, map[string]string{"../outside.rb": "x"})

	spec := &domain.Specification{Name: "evil", Version: domain.MustParseVersion("1.0"), Source: s.identity()}
	dir := t.TempDir()
	err := newSource(t, s).Materialize(context.Background(), spec, dir)
	require.ErrorIs(t, err, domain.ErrGemspecInvalid)
	assert.NoFileExists(t, filepath.Join(filepath.Dir(dir), "outside.rb"))
}

func TestSource_MaterializeMissingPackage(t *testing.T) {
	s := newServer(t)
	spec := &domain.Specification{Name: "rack", Version: domain.MustParseVersion("9.9"), Source: s.identity()}
	err := newSource(t, s).Materialize(context.Background(), spec, t.TempDir())
	require.ErrorIs(t, err, domain.ErrGemNotFound)
}

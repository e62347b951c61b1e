package manifest_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/bundle/internal/adapters/manifest"
	"go.trai.ch/bundle/internal/core/domain"
	"go.trai.ch/bundle/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

func createFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), domain.DirPerm))
	require.NoError(t, os.WriteFile(path, []byte(content), domain.FilePerm))
	return path
}

func newStore(t *testing.T) *manifest.Store {
	t.Helper()
	ctrl := gomock.NewController(t)
	mockLogger := mocks.NewMockLogger(ctrl)
	mockLogger.EXPECT().Warn(gomock.Any()).AnyTimes()
	return manifest.NewStore(mockLogger)
}

func TestStore_Find(t *testing.T) {
	store := newStore(t)
	root := t.TempDir()
	path := createFile(t, root, domain.ManifestName, "gems: []\n")
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, domain.DirPerm))

	got, err := store.Find(nested)
	require.NoError(t, err)
	assert.Equal(t, path, got)
}

func TestStore_Find_TOML(t *testing.T) {
	store := newStore(t)
	root := t.TempDir()
	path := createFile(t, root, domain.TOMLManifestName, "")

	got, err := store.Find(root)
	require.NoError(t, err)
	assert.Equal(t, path, got)
}

func TestStore_Find_NotFound(t *testing.T) {
	store := newStore(t)

	_, err := store.Find(t.TempDir())
	require.ErrorIs(t, err, domain.ErrGemfileNotFound)
	assert.Equal(t, 10, domain.ExitCode(err))
}

func TestStore_Load_YAML(t *testing.T) {
	store := newStore(t)
	root := t.TempDir()
	path := createFile(t, root, domain.ManifestName, `
sources:
  - rubygems: https://gems.example.com/
platforms: [ruby, x86_64-linux]
gems:
  - name: rails
    version: "~> 7.0"
  - name: rspec
    version: [">= 3.0", "< 4"]
    groups: [test]
  - name: local
    path: vendor/local
  - name: engine
    git: https://example.com/engine.git
    ref: main
  - name: pinned
    source: https://gems.example.com
`)

	m, err := store.Load(path)
	require.NoError(t, err)

	require.Len(t, m.Sources, 3)
	assert.Equal(t, domain.SourceIdentity{Kind: domain.SourceRubygems, Location: "https://gems.example.com"}, m.Sources[0])
	assert.Equal(t, domain.SourceIdentity{Kind: domain.SourcePath, Location: filepath.Join(root, "vendor", "local")}, m.Sources[1])
	assert.Equal(t, domain.SourceIdentity{Kind: domain.SourceGit, Location: "https://example.com/engine.git", Ref: "main"}, m.Sources[2])
	assert.Equal(t, []domain.Platform{"ruby", "x86_64-linux"}, m.Platforms)

	require.Len(t, m.Dependencies, 5)
	assert.Equal(t, "~> 7.0", m.Dependencies[0].Requirement.String())
	assert.Nil(t, m.Dependencies[0].Source)
	assert.Equal(t, ">= 3.0, < 4", m.Dependencies[1].Requirement.String())
	assert.Equal(t, []string{"test"}, m.Dependencies[1].Groups)
	require.NotNil(t, m.Dependencies[2].Source)
	assert.Equal(t, domain.SourcePath, m.Dependencies[2].Source.Kind)
	require.NotNil(t, m.Dependencies[4].Source)
	assert.Equal(t, m.Sources[0].Key(), m.Dependencies[4].Source.Key())
}

func TestStore_Load_TOML(t *testing.T) {
	store := newStore(t)
	root := t.TempDir()
	path := createFile(t, root, domain.TOMLManifestName, `
platforms = ["ruby"]

[[sources]]
rubygems = "https://rubygems.org"

[[gems]]
name = "rack"
version = "= 1.0.1"

[[gems]]
name = "rspec"
version = [">= 1.2"]
groups = ["development"]
`)

	m, err := store.Load(path)
	require.NoError(t, err)

	require.Len(t, m.Dependencies, 2)
	assert.Equal(t, "= 1.0.1", m.Dependencies[0].Requirement.String())
	assert.Equal(t, ">= 1.2", m.Dependencies[1].Requirement.String())
	assert.Equal(t, filepath.Join(root, "Bundlefile.lock"), m.LockPath())
}

func TestStore_Load_DefaultRemote(t *testing.T) {
	store := newStore(t)
	path := createFile(t, t.TempDir(), domain.ManifestName, "gems:\n  - name: rack\n")

	m, err := store.Load(path)
	require.NoError(t, err)
	require.Len(t, m.Sources, 1)
	assert.Equal(t, domain.DefaultRemote, m.Sources[0].Location)
}

func TestStore_Load_PathOnly(t *testing.T) {
	store := newStore(t)
	path := createFile(t, t.TempDir(), domain.ManifestName, "gems:\n  - name: local\n    path: ./local\n")

	m, err := store.Load(path)
	require.NoError(t, err)
	require.Len(t, m.Sources, 1)
	assert.Equal(t, domain.SourcePath, m.Sources[0].Kind)
}

func TestStore_Load_DuplicateMerges(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockLogger := mocks.NewMockLogger(ctrl)
	mockLogger.EXPECT().Warn(gomock.Any()).Times(1)
	store := manifest.NewStore(mockLogger)

	path := createFile(t, t.TempDir(), domain.ManifestName, `
gems:
  - name: rack
    version: ">= 1.0"
  - name: rack
    version: "< 2.0"
    groups: [test]
`)

	m, err := store.Load(path)
	require.NoError(t, err)
	require.Len(t, m.Dependencies, 1)
	assert.Equal(t, ">= 1.0, < 2.0", m.Dependencies[0].Requirement.String())
	assert.Equal(t, []string{"test"}, m.Dependencies[0].Groups)
}

func TestStore_Load_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    error
	}{
		{"malformed yaml", "gems: [", domain.ErrGemfileInvalid},
		{"unknown field", "gemz: []\n", domain.ErrGemfileInvalid},
		{"gem without name", "gems:\n  - version: '1'\n", domain.ErrGemfileInvalid},
		{"bad requirement", "gems:\n  - name: x\n    version: '>= banana!'\n", domain.ErrInvalidRequirement},
		{"ambiguous source", "sources:\n  - rubygems: a\n    path: b\n", domain.ErrGemfileInvalid},
		{"undeclared source", "gems:\n  - name: x\n    source: https://nowhere\n", domain.ErrUnknownSource},
		{
			"conflicting sources",
			"gems:\n  - name: x\n    path: a\n  - name: x\n    path: b\n",
			domain.ErrConflictingDeclaration,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStore(t)
			path := createFile(t, t.TempDir(), domain.ManifestName, tt.content)

			_, err := store.Load(path)
			require.ErrorIs(t, err, tt.want)
			assert.Equal(t, 4, domain.ExitCode(err))
		})
	}
}

func TestStore_Load_Missing(t *testing.T) {
	store := newStore(t)

	_, err := store.Load(filepath.Join(t.TempDir(), domain.ManifestName))
	require.ErrorIs(t, err, domain.ErrGemfileNotFound)
}

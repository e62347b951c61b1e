package gemspec_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/bundle/internal/adapters/gemspec"
	"go.trai.ch/bundle/internal/core/domain"
)

const descriptor = `
name: test
version: 1.0.0
dependencies:
  - name: rack
    version: "= 1.0.1"
  - name: json
development_dependencies:
  - name: rspec
    version: ["1.2"]
`

func TestParse(t *testing.T) {
	d, err := gemspec.Parse("test.gemspec.yaml", []byte(descriptor))
	require.NoError(t, err)

	src := domain.SourceIdentity{Kind: domain.SourcePath, Location: "/src/test"}
	spec, err := d.Specification(src)
	require.NoError(t, err)

	assert.Equal(t, "test-1.0.0", spec.FullName())
	assert.Equal(t, domain.PlatformRuby, spec.Platform)
	assert.Equal(t, []string{"rack", "json"}, spec.DependencyNames())
	assert.Equal(t, "= 1.0.1", spec.Dependencies[0].Requirement.String())
	assert.True(t, spec.Dependencies[1].Requirement.IsAny())
	assert.Equal(t, src, spec.Source)

	dev, err := d.Development()
	require.NoError(t, err)
	require.Len(t, dev, 1)
	assert.Equal(t, "= 1.2", dev[0].Requirement.String())
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"missing name", "version: 1.0\n"},
		{"missing version", "name: x\n"},
		{"bad version", "name: x\nversion: not-a-version!\n"},
		{"bad requirement", "name: x\nversion: '1'\ndependencies:\n  - name: y\n    version: '~> '\n"},
		{"dependency without name", "name: x\nversion: '1'\ndependencies:\n  - version: '1'\n"},
		{"malformed yaml", "name: [x\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := gemspec.Parse("x.gemspec.yaml", []byte(tt.data))
			require.ErrorIs(t, err, domain.ErrGemspecInvalid)
			assert.Equal(t, 14, domain.ExitCode(err))
		})
	}
}

func TestGlob(t *testing.T) {
	dir := t.TempDir()
	for name, content := range map[string]string{
		"b.gemspec.yaml": "name: b\nversion: '2.0'\n",
		"a.gemspec.yaml": "name: a\nversion: '1.0'\n",
		"README.md":      "ignored",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), domain.FilePerm))
	}

	got, err := gemspec.Glob(dir)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Name)
	assert.Equal(t, "b", got[1].Name)
}

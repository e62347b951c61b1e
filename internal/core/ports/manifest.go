package ports

import "go.trai.ch/bundle/internal/core/domain"

// ManifestStore locates, parses and creates project manifests.
//
//go:generate mockgen -source=manifest.go -destination=mocks/mock_manifest.go -package=mocks
type ManifestStore interface {
	// Find walks up from dir and returns the path of the nearest manifest.
	// It returns domain.ErrGemfileNotFound when there is none.
	Find(dir string) (string, error)

	// Load parses the manifest at path.
	Load(path string) (*domain.Manifest, error)

	// Init writes a starter manifest into dir and returns its path. When
	// gemspec is not empty, the dependencies of that gem descriptor are
	// declared. An existing manifest is never overwritten.
	Init(dir, gemspec string) (string, error)
}

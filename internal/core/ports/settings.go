package ports

import "go.trai.ch/bundle/internal/core/domain"

// SettingsLoader reads configuration.
//
//go:generate mockgen -source=settings.go -destination=mocks/mock_settings.go -package=mocks
type SettingsLoader interface {
	// Load merges the global and project configuration (root may be empty)
	// with the environment and returns the result.
	Load(root string) (domain.Settings, error)
}

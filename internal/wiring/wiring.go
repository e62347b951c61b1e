// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "go.trai.ch/bundle/internal/adapters/flock"
	_ "go.trai.ch/bundle/internal/adapters/lockfile"
	_ "go.trai.ch/bundle/internal/adapters/logger"
	_ "go.trai.ch/bundle/internal/adapters/manifest"
	_ "go.trai.ch/bundle/internal/adapters/metrics"
	_ "go.trai.ch/bundle/internal/adapters/settings"
	_ "go.trai.ch/bundle/internal/adapters/shell"
	_ "go.trai.ch/bundle/internal/adapters/sources"
	_ "go.trai.ch/bundle/internal/adapters/telemetry"
	_ "go.trai.ch/bundle/internal/adapters/viz"
	_ "go.trai.ch/bundle/internal/adapters/watcher"
	// Register app nodes.
	_ "go.trai.ch/bundle/internal/app"
)

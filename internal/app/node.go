package app

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/bundle/internal/adapters/flock"     //nolint:depguard // Wired in app layer
	"go.trai.ch/bundle/internal/adapters/lockfile"  //nolint:depguard // Wired in app layer
	"go.trai.ch/bundle/internal/adapters/logger"    //nolint:depguard // Wired in app layer
	"go.trai.ch/bundle/internal/adapters/manifest"  //nolint:depguard // Wired in app layer
	"go.trai.ch/bundle/internal/adapters/metrics"   //nolint:depguard // Wired in app layer
	"go.trai.ch/bundle/internal/adapters/settings"  //nolint:depguard // Wired in app layer
	"go.trai.ch/bundle/internal/adapters/shell"     //nolint:depguard // Wired in app layer
	"go.trai.ch/bundle/internal/adapters/sources"   //nolint:depguard // Wired in app layer
	"go.trai.ch/bundle/internal/adapters/telemetry" //nolint:depguard // Wired in app layer
	"go.trai.ch/bundle/internal/adapters/viz"       //nolint:depguard // Wired in app layer
	"go.trai.ch/bundle/internal/adapters/watcher"   //nolint:depguard // Wired in app layer
	"go.trai.ch/bundle/internal/core/ports"
)

const (
	// AppNodeID is the unique identifier for the main App Graft node.
	AppNodeID graft.ID = "app.main"
	// ComponentsNodeID is the unique identifier for the App components Graft node.
	ComponentsNodeID graft.ID = "app.components"
)

func init() {
	graft.Register(graft.Node[*App]{
		ID:        AppNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			manifest.NodeID,
			lockfile.NodeID,
			settings.NodeID,
			sources.NodeID,
			flock.NodeID,
			telemetry.TracerNodeID,
			logger.NodeID,
			metrics.NodeID,
			shell.NodeID,
			viz.NodeID,
			watcher.NodeID,
		},
		Run: runAppNode,
	})

	graft.Register(graft.Node[*Components]{
		ID:        ComponentsNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			AppNodeID,
			logger.NodeID,
		},
		Run: func(ctx context.Context) (*Components, error) {
			app, err := graft.Dep[*App](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return NewComponents(app, log), nil
		},
	})
}

//nolint:cyclop // one lookup per collaborator
func runAppNode(ctx context.Context) (*App, error) {
	var deps Dependencies
	var err error

	if deps.Manifests, err = graft.Dep[ports.ManifestStore](ctx); err != nil {
		return nil, err
	}
	if deps.Locks, err = graft.Dep[ports.LockStore](ctx); err != nil {
		return nil, err
	}
	if deps.Settings, err = graft.Dep[ports.SettingsLoader](ctx); err != nil {
		return nil, err
	}
	if deps.Sources, err = graft.Dep[ports.SourceFactory](ctx); err != nil {
		return nil, err
	}
	if deps.Locker, err = graft.Dep[ports.Locker](ctx); err != nil {
		return nil, err
	}
	if deps.Tracer, err = graft.Dep[ports.Tracer](ctx); err != nil {
		return nil, err
	}
	if deps.Logger, err = graft.Dep[ports.Logger](ctx); err != nil {
		return nil, err
	}
	if deps.Metrics, err = graft.Dep[ports.Metrics](ctx); err != nil {
		return nil, err
	}
	if deps.Runner, err = graft.Dep[ports.CommandRunner](ctx); err != nil {
		return nil, err
	}
	if deps.Graphs, err = graft.Dep[ports.GraphRenderer](ctx); err != nil {
		return nil, err
	}
	if deps.Watcher, err = graft.Dep[ports.Watcher](ctx); err != nil {
		return nil, err
	}
	return New(deps), nil
}

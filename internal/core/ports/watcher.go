package ports

import (
	"context"
	"iter"
)

// WatchOp is the kind of change reported for a watched path.
type WatchOp uint8

const (
	// OpCreate indicates a file or directory was created.
	OpCreate WatchOp = iota
	// OpWrite indicates a file was modified.
	OpWrite
	// OpRemove indicates a file or directory was removed.
	OpRemove
	// OpRename indicates a file or directory was renamed.
	OpRename
)

// WatchEvent is one change below a watched Bundlefile or path gem.
type WatchEvent struct {
	Path      string
	Operation WatchOp
}

// Watcher reports changes to the files a bundle is built from. Directories
// are watched recursively.
//
//go:generate mockgen -source=watcher.go -destination=mocks/mock_watcher.go -package=mocks
type Watcher interface {
	Start(ctx context.Context, paths ...string) error
	Stop() error
	// Events yields changes until Stop is called.
	Events() iter.Seq[WatchEvent]
}

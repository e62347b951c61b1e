// Package watcher reports changes to a project's manifest and local gems.
package watcher

import (
	"context"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.trai.ch/bundle/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Watcher = (*Watcher)(nil)

// skippedDirectories are never watched below a watched directory.
var skippedDirectories = map[string]bool{
	".git":         true,
	".jj":          true,
	".bundle":      true,
	"node_modules": true,
}

const eventChannelBuffer = 100

// Watcher implements ports.Watcher with fsnotify. Files are watched through
// their parent directory so that editors replacing a file by rename are
// still seen; events for unrelated siblings are dropped.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	logger    ports.Logger
	events    chan ports.WatchEvent

	mu    sync.RWMutex
	files map[string]bool
	trees []string
}

// NewWatcher creates a file system watcher. No resources are held until
// Start.
func NewWatcher(logger ports.Logger) *Watcher {
	return &Watcher{
		logger: logger,
		events: make(chan ports.WatchEvent, eventChannelBuffer),
		files:  make(map[string]bool),
	}
}

// Start begins watching paths. Directories are watched recursively.
func (w *Watcher) Start(ctx context.Context, paths ...string) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return zerr.Wrap(err, "failed to create file watcher")
	}
	w.fsWatcher = fsw

	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return zerr.With(zerr.Wrap(err, "failed to resolve watch path"), "path", p)
		}
		if err := w.add(abs); err != nil {
			_ = fsw.Close()
			return err
		}
	}

	go w.processEvents(ctx)
	return nil
}

func (w *Watcher) add(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to watch path"), "path", path)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if !info.IsDir() {
		w.files[path] = true
		return w.watch(filepath.Dir(path))
	}

	w.trees = append(w.trees, path)
	for dir := range walkDirs(path) {
		if err := w.watch(dir); err != nil {
			return err
		}
	}
	return nil
}

func (w *Watcher) watch(dir string) error {
	if err := w.fsWatcher.Add(dir); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to watch directory"), "path", dir)
	}
	return nil
}

// Stop stops the watcher and releases all resources.
func (w *Watcher) Stop() error {
	if w.fsWatcher == nil {
		return nil
	}
	return w.fsWatcher.Close()
}

// Events returns an iterator of file system events. It ends when the
// watcher stops or the context given to Start is canceled.
func (w *Watcher) Events() iter.Seq[ports.WatchEvent] {
	return func(yield func(ports.WatchEvent) bool) {
		for event := range w.events {
			if !yield(event) {
				return
			}
		}
	}
}

// walkDirs yields root and every directory below it that is not skipped.
func walkDirs(root string) iter.Seq[string] {
	return func(yield func(string) bool) {
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil //nolint:nilerr // unreadable directories are not watched
			}
			if !d.IsDir() {
				return nil
			}
			if path != root && skippedDirectories[d.Name()] {
				return fs.SkipDir
			}
			if !yield(path) {
				return filepath.SkipAll
			}
			return nil
		})
	}
}

// relevant reports whether path is a watched file or lies in a watched tree.
func (w *Watcher) relevant(path string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.files[path] {
		return true
	}
	for _, root := range w.trees {
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer close(w.events)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event.Name) {
				continue
			}
			watchEvent, ok := convertEvent(event)
			if !ok {
				continue
			}

			select {
			case w.events <- watchEvent:
			case <-ctx.Done():
				return
			}

			if watchEvent.Operation == ports.OpCreate {
				w.watchCreated(event.Name)
			}
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher: " + err.Error())
		}
	}
}

// watchCreated starts watching a directory created inside a watched tree.
func (w *Watcher) watchCreated(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() || skippedDirectories[info.Name()] {
		return
	}
	for dir := range walkDirs(path) {
		_ = w.fsWatcher.Add(dir)
	}
}

func convertEvent(event fsnotify.Event) (ports.WatchEvent, bool) {
	var op ports.WatchOp
	switch {
	case event.Has(fsnotify.Write):
		op = ports.OpWrite
	case event.Has(fsnotify.Create):
		op = ports.OpCreate
	case event.Has(fsnotify.Remove):
		op = ports.OpRemove
	case event.Has(fsnotify.Rename):
		op = ports.OpRename
	default:
		return ports.WatchEvent{}, false
	}
	return ports.WatchEvent{Path: event.Name, Operation: op}, true
}

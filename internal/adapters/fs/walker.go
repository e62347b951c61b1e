// Package fs walks and copies gem source trees.
package fs

import (
	"io/fs"
	"iter"
	"path/filepath"

	"go.trai.ch/zerr"
)

// skipped are directory names never copied out of a gem tree.
var skipped = []string{".git", ".jj", ".bundle"}

// Walker provides file walking functionality.
type Walker struct{}

// NewWalker creates a new Walker.
func NewWalker() *Walker {
	return &Walker{}
}

// WalkFiles yields every file and symlink below root, skipping version
// control and bundle state directories and any name matching ignores.
// Yielded paths include root. A walk failure, including a missing root, is
// yielded once with an empty path and ends the sequence.
func (w *Walker) WalkFiles(root string, ignores []string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		stopped := false
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if path == root {
				return nil
			}

			if skip, action := w.shouldSkip(d, ignores); skip {
				return action
			}
			if d.IsDir() {
				return nil
			}

			if !yield(path, nil) {
				stopped = true
				return filepath.SkipAll
			}
			return nil
		})
		if err != nil && !stopped {
			yield("", zerr.With(zerr.Wrap(err, "failed to walk directory"), "root", root))
		}
	}
}

// shouldSkip reports whether d is excluded. For directories the returned
// action prunes the subtree.
func (w *Walker) shouldSkip(d fs.DirEntry, ignores []string) (bool, error) {
	name := d.Name()

	var action error
	if d.IsDir() {
		action = filepath.SkipDir
	}

	for _, dir := range skipped {
		if d.IsDir() && name == dir {
			return true, action
		}
	}
	for _, ignore := range ignores {
		if matched, _ := filepath.Match(ignore, name); matched {
			return true, action
		}
	}
	return false, nil
}

package watcher

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// absent is the digest recorded for a path that does not exist.
const absent uint64 = 0

// ContentFilter drops change notifications for files whose content is the
// same as when it last looked.
type ContentFilter struct {
	mu      sync.Mutex
	digests map[string]uint64
}

// NewContentFilter creates an empty filter.
func NewContentFilter() *ContentFilter {
	return &ContentFilter{digests: make(map[string]uint64)}
}

// Prime records the current content of paths without reporting changes.
func (f *ContentFilter) Prime(paths ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range paths {
		if sum, ok := digest(p); ok {
			f.digests[p] = sum
		}
	}
}

// Changed returns the paths whose content differs from the recorded state,
// in input order, and records the new state. Directories and unreadable
// paths are always reported.
func (f *ContentFilter) Changed(paths []string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []string
	for _, p := range paths {
		sum, ok := digest(p)
		if !ok {
			delete(f.digests, p)
			out = append(out, p)
			continue
		}
		if prev, seen := f.digests[p]; seen && prev == sum {
			continue
		}
		f.digests[p] = sum
		out = append(out, p)
	}
	return out
}

// digest hashes the content of a regular file. ok is false for anything
// that cannot be compared by content.
func digest(path string) (sum uint64, ok bool) {
	file, err := os.Open(path) //nolint:gosec // paths are watched project files
	if err != nil {
		return absent, errors.Is(err, fs.ErrNotExist)
	}
	defer file.Close() //nolint:errcheck // Best effort close in defer

	info, err := file.Stat()
	if err != nil || !info.Mode().IsRegular() {
		return 0, false
	}

	h := xxhash.New()
	if _, err := io.Copy(h, file); err != nil {
		return 0, false
	}
	// Keep empty files distinct from missing ones.
	return h.Sum64() | 1, true
}

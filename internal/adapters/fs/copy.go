package fs

import (
	"io"
	"os"
	"path/filepath"

	"go.trai.ch/bundle/internal/core/domain"
	"go.trai.ch/zerr"
)

// CopyTree copies the files below src into dst, preserving relative paths,
// executable bits and symlinks. dst must exist.
func (w *Walker) CopyTree(src, dst string, ignores []string) error {
	for path, err := range w.WalkFiles(src, ignores) {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return zerr.With(zerr.Wrap(err, "failed to relativize path"), "path", path)
		}
		target := filepath.Join(dst, rel)
		if err := os.MkdirAll(filepath.Dir(target), domain.DirPerm); err != nil {
			return zerr.With(zerr.Wrap(err, "failed to create directory"), "path", filepath.Dir(target))
		}
		if err := copyEntry(path, target); err != nil {
			return zerr.With(err, "path", path)
		}
	}
	return nil
}

func copyEntry(src, dst string) error {
	info, err := os.Lstat(src)
	if err != nil {
		return zerr.Wrap(err, "failed to stat file")
	}

	if info.Mode()&os.ModeSymlink != 0 {
		link, err := os.Readlink(src)
		if err != nil {
			return zerr.Wrap(err, "failed to read link")
		}
		return zerr.Wrap(os.Symlink(link, dst), "failed to create link")
	}

	in, err := os.Open(src) //nolint:gosec // src is below a declared gem directory
	if err != nil {
		return zerr.Wrap(err, "failed to open file")
	}
	defer in.Close() //nolint:errcheck // Best effort close in defer

	perm := os.FileMode(domain.FilePerm)
	if info.Mode()&0o111 != 0 {
		perm |= 0o111
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm) //nolint:gosec // dst is inside the staging directory
	if err != nil {
		return zerr.Wrap(err, "failed to create file")
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return zerr.Wrap(err, "failed to copy file")
	}
	return zerr.Wrap(out.Close(), "failed to close file")
}

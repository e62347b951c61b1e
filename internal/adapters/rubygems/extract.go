package rubygems

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.trai.ch/bundle/internal/core/domain"
	"go.trai.ch/zerr"
)

// dataEntry is the member of a package archive holding the gem's files.
const dataEntry = "data.tar.gz"

var errNoData = errors.New("package has no " + dataEntry)

// extractPackage unpacks the data member of the package at archive into dir.
func extractPackage(archive, dir string) error {
	f, err := os.Open(archive) //nolint:gosec // archive is inside the download cache
	if err != nil {
		return zerr.Wrap(err, "failed to open package")
	}
	defer func() { _ = f.Close() }()

	outer := tar.NewReader(f)
	for {
		hdr, err := outer.Next()
		if errors.Is(err, io.EOF) {
			return domain.ErrGemspecInvalid.Wrap(errNoData)
		}
		if err != nil {
			return domain.ErrGemspecInvalid.Wrap(err)
		}
		if hdr.Name != dataEntry {
			continue
		}

		gz, err := gzip.NewReader(outer)
		if err != nil {
			return domain.ErrGemspecInvalid.Wrap(err)
		}
		defer func() { _ = gz.Close() }()
		return extractTar(tar.NewReader(gz), dir)
	}
}

// extractTar writes the entries of r below dir. Entries escaping dir are
// rejected; links are only kept when their target stays inside dir.
func extractTar(r *tar.Reader, dir string) error {
	root, err := filepath.Abs(dir)
	if err != nil {
		return err
	}

	for {
		hdr, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return domain.ErrGemspecInvalid.Wrap(err)
		}

		target, err := within(root, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, domain.DirPerm); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeEntry(r, target, hdr.FileInfo().Mode()); err != nil {
				return err
			}
		case tar.TypeSymlink:
			link := filepath.Join(filepath.Dir(target), hdr.Linkname)
			if filepath.IsAbs(hdr.Linkname) || !inside(root, link) {
				return zerr.With(domain.ErrGemspecInvalid, "link", hdr.Name)
			}
			if err := os.MkdirAll(filepath.Dir(target), domain.DirPerm); err != nil {
				return err
			}
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return err
			}
		}
	}
}

func writeEntry(r io.Reader, target string, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), domain.DirPerm); err != nil {
		return err
	}
	perm := os.FileMode(domain.FilePerm)
	if mode&0o111 != 0 {
		perm |= 0o111
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm) //nolint:gosec // target is checked by within
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil { //nolint:gosec // packages are checksummed before extraction
		_ = out.Close()
		return err
	}
	return out.Close()
}

func within(root, name string) (string, error) {
	if filepath.IsAbs(name) {
		return "", zerr.With(domain.ErrGemspecInvalid, "entry", name)
	}
	target := filepath.Join(root, name)
	if !inside(root, target) {
		return "", zerr.With(domain.ErrGemspecInvalid, "entry", name)
	}
	return target, nil
}

func inside(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

package domain

import (
	"os"
	"path/filepath"
)

const (
	// ManifestName is the default manifest file name.
	ManifestName = "Bundlefile"

	// TOMLManifestName is the manifest file name in TOML format.
	TOMLManifestName = "Bundlefile.toml"

	// LockSuffix is appended to the manifest base name to form the lock path.
	LockSuffix = ".lock"

	// BundleDirName is the per-user and per-project settings directory.
	BundleDirName = ".bundle"

	// ConfigFileName is the settings file inside BundleDirName.
	ConfigFileName = "config"

	// InstallLockName is the advisory lock file inside the bundle path.
	InstallLockName = ".bundle.lock"

	// InstalledMarker marks a fully materialized install directory.
	InstalledMarker = ".installed"

	// SpecFileExt is the extension of registry files under the specifications path.
	SpecFileExt = ".yaml"

	// DirPerm is the default permission for directories (rwxr-x---).
	DirPerm = 0o750

	// FilePerm is the default permission for files (rw-r--r--).
	FilePerm = 0o644

	// PrivateFilePerm is the default permission for private files (rw-------).
	PrivateFilePerm = 0o600
)

// Layout resolves every on-disk location from the bundle path.
type Layout struct {
	BundlePath string
}

// NewLayout creates a Layout rooted at bundlePath.
func NewLayout(bundlePath string) Layout {
	return Layout{BundlePath: filepath.Clean(bundlePath)}
}

// DefaultBundlePath returns "~/.bundle/<engine>/<abi>".
func DefaultBundlePath(engine, abi string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, BundleDirName, engine, abi)
}

// Home returns the bundler home inside the bundle path.
func (l Layout) Home() string {
	return filepath.Join(l.BundlePath, "bundler")
}

// InstallPath returns the directory holding installed gems.
func (l Layout) InstallPath() string {
	return filepath.Join(l.Home(), "gems")
}

// SpecsPath returns the shared specification registry directory.
func (l Layout) SpecsPath() string {
	return filepath.Join(l.BundlePath, "specifications")
}

// CachePath returns the download cache directory.
func (l Layout) CachePath() string {
	return filepath.Join(l.BundlePath, "cache", "bundler")
}

// LockFile returns the path of the process-wide install lock.
func (l Layout) LockFile() string {
	return filepath.Join(l.BundlePath, InstallLockName)
}

// InstallDir returns the target directory of spec, keyed by name, version,
// platform and source identity.
func (l Layout) InstallDir(spec *Specification) string {
	return filepath.Join(l.InstallPath(), spec.FullName()+"-"+spec.Source.Hash())
}

// SpecFile returns the registry file path for spec.
func (l Layout) SpecFile(spec *Specification) string {
	return filepath.Join(l.SpecsPath(), spec.FullName()+"-"+spec.Source.Hash()+SpecFileExt)
}

package domain

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// SourceKind identifies the kind of a source.
type SourceKind string

const (
	// SourceRubygems is a remote gem server speaking the compact index protocol.
	SourceRubygems SourceKind = "rubygems"
	// SourceGit is a git repository checked out at a ref.
	SourceGit SourceKind = "git"
	// SourcePath is a local directory holding a single gem.
	SourcePath SourceKind = "path"
)

// DefaultRemote is the remote used when a manifest declares no sources.
const DefaultRemote = "https://rubygems.org"

// SourceIdentity identifies where a specification comes from.
type SourceIdentity struct {
	// Kind is the source type.
	Kind SourceKind

	// Location is the remote URL, repository URL or directory.
	Location string

	// Ref is the branch, tag or commit requested for git sources.
	Ref string

	// Revision is the exact commit a git source resolved to. It is recorded in
	// the lock but is not part of the identity key.
	Revision string
}

// Key returns a stable identifier for the source.
func (s SourceIdentity) Key() string {
	key := string(s.Kind) + ":" + strings.TrimRight(s.Location, "/")
	if s.Ref != "" {
		key += "@" + s.Ref
	}
	return key
}

// Hash returns a short hex digest of Key, used to namespace install directories.
func (s SourceIdentity) Hash() string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(s.Key()))[:12]
}

// Short returns a human readable label for the source.
func (s SourceIdentity) Short() string {
	switch s.Kind {
	case SourceGit:
		label := s.Location
		if s.Ref != "" {
			label += " (at " + s.Ref + ")"
		}
		return label
	case SourcePath:
		return filepath.Clean(s.Location)
	default:
		return s.Location
	}
}

// String implements fmt.Stringer.
func (s SourceIdentity) String() string {
	return s.Key()
}

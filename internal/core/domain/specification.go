// Package domain contains the core models of dependency resolution and installation.
package domain

import "strings"

// Specification describes one concrete, versioned, platform-specific gem.
// It is immutable once produced by a source.
type Specification struct {
	// Name is the gem name.
	Name string

	// Version is the exact version.
	Version Version

	// Platform is the platform the gem is built for.
	Platform Platform

	// Dependencies are the gem's runtime dependencies in declaration order.
	Dependencies []Dependency

	// Source identifies where the gem comes from.
	Source SourceIdentity

	// Checksum is the artifact digest advertised by the source, if any.
	Checksum string
}

// FullName returns "name-version" with a "-platform" suffix for non-generic gems.
func (s *Specification) FullName() string {
	name := s.Name + "-" + s.Version.String()
	if !s.Platform.IsGeneric() {
		name += "-" + string(s.Platform)
	}
	return name
}

// ID identifies the gem by name, version, platform and source. Two
// specifications with the same ID are the same gem.
func (s *Specification) ID() string {
	platform := s.Platform
	if platform == "" {
		platform = PlatformRuby
	}
	return strings.Join([]string{s.Name, s.Version.String(), string(platform), s.Source.Key()}, "|")
}

// DependencyNames returns the names of the gem's dependencies in declaration order.
func (s *Specification) DependencyNames() []string {
	names := make([]string, 0, len(s.Dependencies))
	for _, d := range s.Dependencies {
		names = append(names, d.Name)
	}
	return names
}

// String implements fmt.Stringer.
func (s *Specification) String() string {
	return s.FullName()
}

package domain

import (
	"slices"
	"strings"
)

// Dependency is a requirement on a gem, either declared in the manifest or by
// another specification.
type Dependency struct {
	// Name is the gem name.
	Name string

	// Requirement constrains the acceptable versions.
	Requirement Requirement

	// Platforms restricts the platforms the dependency applies to. Empty means
	// every platform the resolution targets.
	Platforms []Platform

	// Groups tags root dependencies (e.g. "default", "test"). Transitive
	// dependencies carry no groups.
	Groups []string

	// Source pins the dependency to one declared source. Nil means any source
	// in declaration priority order.
	Source *SourceIdentity
}

// DefaultGroup is the group of a root dependency declared without one.
const DefaultGroup = "default"

// NewDependency creates a dependency on name with the given requirement strings.
func NewDependency(name string, requirements ...string) (Dependency, error) {
	req, err := ParseRequirement(requirements...)
	if err != nil {
		return Dependency{}, err
	}
	return Dependency{Name: name, Requirement: req}, nil
}

// EffectivePlatforms returns the dependency's platforms, or fallback when it
// declares none.
func (d Dependency) EffectivePlatforms(fallback []Platform) []Platform {
	if len(d.Platforms) == 0 {
		return fallback
	}
	return d.Platforms
}

// ActiveOn reports whether the dependency applies to at least one of the
// resolution platforms.
func (d Dependency) ActiveOn(platforms []Platform) bool {
	if len(d.Platforms) == 0 || len(platforms) == 0 {
		return true
	}
	for _, p := range d.Platforms {
		if slices.Contains(platforms, p) {
			return true
		}
	}
	return false
}

// InGroups reports whether the dependency belongs to any group not excluded
// by without. Dependencies without groups belong to DefaultGroup.
func (d Dependency) InGroups(without []string) bool {
	groups := d.Groups
	if len(groups) == 0 {
		groups = []string{DefaultGroup}
	}
	for _, g := range groups {
		if !slices.Contains(without, g) {
			return true
		}
	}
	return false
}

// Matches reports whether spec satisfies the dependency's name, requirement,
// platform restriction and source pin.
func (d Dependency) Matches(spec *Specification, platforms []Platform) bool {
	if spec.Name != d.Name || !d.Requirement.Satisfied(spec.Version) {
		return false
	}
	if d.Source != nil && d.Source.Key() != spec.Source.Key() {
		return false
	}
	for _, p := range d.EffectivePlatforms(platforms) {
		if spec.Platform.Matches(p) {
			return true
		}
	}
	return len(d.EffectivePlatforms(platforms)) == 0
}

// Equal reports whether two dependencies declare the same constraint,
// platforms, groups and source.
func (d Dependency) Equal(o Dependency) bool {
	if d.Name != o.Name || !d.Requirement.Equal(o.Requirement) {
		return false
	}
	if !slices.Equal(sortedPlatforms(d.Platforms), sortedPlatforms(o.Platforms)) {
		return false
	}
	if !slices.Equal(sortedStrings(d.Groups), sortedStrings(o.Groups)) {
		return false
	}
	switch {
	case d.Source == nil && o.Source == nil:
		return true
	case d.Source == nil || o.Source == nil:
		return false
	default:
		return d.Source.Key() == o.Source.Key()
	}
}

// String renders the dependency as "name (requirement)".
func (d Dependency) String() string {
	var b strings.Builder
	b.WriteString(d.Name)
	b.WriteString(" (")
	b.WriteString(d.Requirement.String())
	b.WriteString(")")
	if len(d.Platforms) > 0 {
		b.WriteString(" [")
		for i, p := range sortedPlatforms(d.Platforms) {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(string(p))
		}
		b.WriteString("]")
	}
	return b.String()
}

func sortedStrings(in []string) []string {
	out := slices.Clone(in)
	slices.Sort(out)
	return out
}

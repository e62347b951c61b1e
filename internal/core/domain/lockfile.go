package domain

// LockfileVersion is the current lock format version.
const LockfileVersion = 1

// LockedSpecSet is a resolved SpecSet together with the root dependencies
// that produced it. It is persisted so a later run can detect that nothing
// changed and skip the search.
type LockedSpecSet struct {
	// Sources are the manifest's sources in declaration order.
	Sources []SourceIdentity

	// Dependencies are the exact root dependencies used for resolution.
	Dependencies []Dependency

	// Platforms are the platforms the set was resolved for.
	Platforms []Platform

	// Specs is the resolved set.
	Specs *SpecSet

	// Digest is the manifest digest at the time of resolution.
	Digest string
}

// Dependency returns the locked root dependency named name.
func (l *LockedSpecSet) Dependency(name string) (Dependency, bool) {
	for _, d := range l.Dependencies {
		if d.Name == name {
			return d, true
		}
	}
	return Dependency{}, false
}

// Matches reports whether the lock was produced from the same declarations as m.
func (l *LockedSpecSet) Matches(m *Manifest) bool {
	return l.Digest != "" && l.Digest == m.Digest()
}

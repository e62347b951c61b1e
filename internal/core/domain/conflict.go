package domain

import (
	"slices"
	"strings"
)

// Requirer is a dependency together with the chain of gems that introduced it.
type Requirer struct {
	// Dependency is the requirement as declared.
	Dependency Dependency

	// Chain lists the full names of the requesting gems from the manifest down
	// to the direct requirer. Root dependencies have the chain [ManifestName].
	Chain []string
}

// Origin returns the direct requirer, or "" for root dependencies.
func (r Requirer) Origin() string {
	if len(r.Chain) <= 1 {
		return ""
	}
	return r.Chain[len(r.Chain)-1]
}

// String renders "A -> B depends on name (requirement)".
func (r Requirer) String() string {
	return strings.Join(r.Chain, " -> ") + " depends on " + r.Dependency.String()
}

// Conflict records a set of requirements on one name that could not be
// satisfied together.
type Conflict struct {
	// Name is the contested gem.
	Name string

	// Existing is the full name of the version already chosen, if any.
	Existing string

	// Requirers are every requirement active on Name at the time.
	Requirers []Requirer
}

func (c Conflict) key() string {
	parts := make([]string, 0, len(c.Requirers)+2)
	parts = append(parts, c.Name)
	for _, r := range c.Requirers {
		parts = append(parts, r.String())
	}
	slices.Sort(parts[1:])
	return strings.Join(parts, "\n")
}

// String renders the conflict for humans.
func (c Conflict) String() string {
	var b strings.Builder
	b.WriteString(`could not find compatible versions for gem "` + c.Name + `":`)
	for _, r := range c.Requirers {
		b.WriteString("\n  " + r.String())
	}
	if c.Existing != "" {
		b.WriteString("\n  (" + c.Existing + " was already selected)")
	}
	return b.String()
}

// ConflictError is a VersionConflict that carries the conflicts found while
// walking the backtrack trail.
type ConflictError struct {
	Conflicts []Conflict
}

// NewConflictError deduplicates trail and returns the error.
func NewConflictError(trail []Conflict) *ConflictError {
	seen := make(map[string]struct{}, len(trail))
	out := make([]Conflict, 0, len(trail))
	for _, c := range trail {
		k := c.key()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, c)
	}
	return &ConflictError{Conflicts: out}
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	if len(e.Conflicts) == 0 {
		return ErrVersionConflict.msg
	}
	lines := make([]string, len(e.Conflicts))
	for i, c := range e.Conflicts {
		lines[i] = c.String()
	}
	return strings.Join(lines, "\n")
}

// Message returns the rendered conflicts.
func (e *ConflictError) Message() string { return e.Error() }

// Kind returns KindVersionConflict.
func (e *ConflictError) Kind() Kind { return KindVersionConflict }

// Is makes ConflictError match ErrVersionConflict.
func (e *ConflictError) Is(target error) bool { return target == ErrVersionConflict }

// Names returns the contested gem names in first-seen order.
func (e *ConflictError) Names() []string {
	var names []string
	for _, c := range e.Conflicts {
		if !slices.Contains(names, c.Name) {
			names = append(names, c.Name)
		}
	}
	return names
}

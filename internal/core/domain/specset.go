package domain

import (
	"cmp"
	"slices"

	"go.trai.ch/zerr"
)

// SpecSet maps each gem name to exactly one specification.
type SpecSet struct {
	specs map[string]*Specification
}

// NewSpecSet creates a SpecSet from specs. A later spec replaces an earlier
// one with the same name.
func NewSpecSet(specs ...*Specification) *SpecSet {
	s := &SpecSet{specs: make(map[string]*Specification, len(specs))}
	for _, spec := range specs {
		s.specs[spec.Name] = spec
	}
	return s
}

// Lookup returns the specification chosen for name.
func (s *SpecSet) Lookup(name string) (*Specification, bool) {
	spec, ok := s.specs[name]
	return spec, ok
}

// Len returns the number of specifications in the set.
func (s *SpecSet) Len() int {
	return len(s.specs)
}

// Names returns the gem names in sorted order.
func (s *SpecSet) Names() []string {
	names := make([]string, 0, len(s.specs))
	for n := range s.specs {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Sorted returns the specifications ordered by name, then platform.
func (s *SpecSet) Sorted() []*Specification {
	out := make([]*Specification, 0, len(s.specs))
	for _, spec := range s.specs {
		out = append(out, spec)
	}
	slices.SortFunc(out, func(a, b *Specification) int {
		if c := cmp.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return cmp.Compare(a.Platform, b.Platform)
	})
	return out
}

// Equal reports whether both sets hold the same specifications.
func (s *SpecSet) Equal(o *SpecSet) bool {
	if s.Len() != o.Len() {
		return false
	}
	for name, spec := range s.specs {
		other, ok := o.specs[name]
		if !ok || other.ID() != spec.ID() {
			return false
		}
	}
	return true
}

// Validate checks the closure property: every dependency declared by a
// member is satisfied by the member chosen for that name.
func (s *SpecSet) Validate(platforms []Platform) error {
	for _, spec := range s.Sorted() {
		for _, dep := range spec.Dependencies {
			if !dep.ActiveOn(platforms) {
				continue
			}
			target, ok := s.specs[dep.Name]
			if !ok {
				err := zerr.With(ErrIncompleteSpecSet, "gem", spec.FullName())
				return zerr.With(err, "missing", dep.String())
			}
			if !dep.Requirement.Satisfied(target.Version) || !platformServes(target.Platform, dep.EffectivePlatforms(platforms)) {
				err := zerr.With(ErrIncompleteSpecSet, "gem", spec.FullName())
				err = zerr.With(err, "requirement", dep.String())
				return zerr.With(err, "chosen", target.FullName())
			}
		}
	}
	return nil
}

func platformServes(p Platform, wanted []Platform) bool {
	if len(wanted) == 0 {
		return true
	}
	for _, w := range wanted {
		if p.Matches(w) {
			return true
		}
	}
	return false
}

// Materialize returns the subset reachable from roots, following every
// member's dependencies. Roots not present in the set are ignored.
func (s *SpecSet) Materialize(roots []Dependency) *SpecSet {
	out := NewSpecSet()
	queue := make([]string, 0, len(roots))
	for _, r := range roots {
		queue = append(queue, r.Name)
	}
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if _, seen := out.specs[name]; seen {
			continue
		}
		spec, ok := s.specs[name]
		if !ok {
			continue
		}
		out.specs[name] = spec
		queue = append(queue, spec.DependencyNames()...)
	}
	return out
}

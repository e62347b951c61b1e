package domain

import (
	"cmp"
	"slices"
)

// Index aggregates specifications from one or more sources.
//
// Sources are added with a priority (lower wins). A name listed by a
// higher-priority source shadows the same name in every lower-priority
// source, unless a dependency pins a source explicitly.
type Index struct {
	specs    map[string][]*Specification
	ids      map[string]struct{}
	priority map[string]int
	owner    map[string]int
}

// NewIndex creates an empty Index.
func NewIndex() *Index {
	return &Index{
		specs:    make(map[string][]*Specification),
		ids:      make(map[string]struct{}),
		priority: make(map[string]int),
		owner:    make(map[string]int),
	}
}

// Add merges specs listed by a source with the given priority. Duplicate
// (name, version, platform, source) entries collapse to one.
func (i *Index) Add(priority int, specs ...*Specification) {
	touched := make(map[string]struct{})
	for _, s := range specs {
		id := s.ID()
		if _, dup := i.ids[id]; dup {
			continue
		}
		i.ids[id] = struct{}{}

		key := s.Source.Key()
		if p, ok := i.priority[key]; !ok || priority < p {
			i.priority[key] = priority
		}
		if p, ok := i.owner[s.Name]; !ok || priority < p {
			i.owner[s.Name] = priority
		}
		i.specs[s.Name] = append(i.specs[s.Name], s)
		touched[s.Name] = struct{}{}
	}
	for name := range touched {
		slices.SortStableFunc(i.specs[name], i.compare)
	}
}

// compare orders by version descending, then source priority, then generic
// platform last, then platform name.
func (i *Index) compare(a, b *Specification) int {
	if c := b.Version.Compare(a.Version); c != 0 {
		return c
	}
	if c := cmp.Compare(i.priority[a.Source.Key()], i.priority[b.Source.Key()]); c != 0 {
		return c
	}
	if a.Platform.IsGeneric() != b.Platform.IsGeneric() {
		if a.Platform.IsGeneric() {
			return 1
		}
		return -1
	}
	return cmp.Compare(a.Platform, b.Platform)
}

// Has reports whether any source lists name.
func (i *Index) Has(name string) bool {
	return len(i.specs[name]) > 0
}

// Names returns every known name in sorted order.
func (i *Index) Names() []string {
	names := make([]string, 0, len(i.specs))
	for n := range i.specs {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Len returns the number of distinct specifications in the index.
func (i *Index) Len() int {
	return len(i.ids)
}

// SpecsFor returns the specifications for name from the highest-priority
// source that lists it, newest first. It returns nil for unknown names.
func (i *Index) SpecsFor(name string) []*Specification {
	all := i.specs[name]
	if len(all) == 0 {
		return nil
	}
	owner := i.owner[name]
	out := make([]*Specification, 0, len(all))
	for _, s := range all {
		if i.priority[s.Source.Key()] == owner {
			out = append(out, s)
		}
	}
	return out
}

// Search returns the specifications satisfying dep, newest first. Candidates
// must match dep's requirement and at least one of its effective platforms.
// Prerelease versions are only considered when the requirement names one.
// When dep pins a source, only that source is consulted.
func (i *Index) Search(dep Dependency, platforms []Platform) []*Specification {
	var pool []*Specification
	if dep.Source != nil {
		key := dep.Source.Key()
		for _, s := range i.specs[dep.Name] {
			if s.Source.Key() == key {
				pool = append(pool, s)
			}
		}
	} else {
		pool = i.SpecsFor(dep.Name)
	}

	allowPre := dep.Requirement.Prerelease()
	out := make([]*Specification, 0, len(pool))
	for _, s := range pool {
		if s.Version.IsPrerelease() && !allowPre {
			continue
		}
		if dep.Matches(s, platforms) {
			out = append(out, s)
		}
	}
	return out
}

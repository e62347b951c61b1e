package domain_test

import (
	"strings"

	"go.trai.ch/bundle/internal/core/domain"
)

var remote = domain.SourceIdentity{Kind: domain.SourceRubygems, Location: domain.DefaultRemote}

// mkspec builds a generic specification. deps use "name requirement" strings,
// e.g. "bar = 1.0" or "bar" for any version.
func mkspec(name, version string, deps ...string) *domain.Specification {
	s := &domain.Specification{
		Name:     name,
		Version:  domain.MustParseVersion(version),
		Platform: domain.PlatformRuby,
		Source:   remote,
	}
	for _, d := range deps {
		s.Dependencies = append(s.Dependencies, mkdep(d))
	}
	return s
}

func mkdep(s string) domain.Dependency {
	name, req, _ := strings.Cut(s, " ")
	return domain.Dependency{Name: name, Requirement: domain.MustParseRequirement(req)}
}

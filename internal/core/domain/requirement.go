package domain

import (
	"slices"
	"strings"

	"go.trai.ch/zerr"
)

// Operator is a requirement comparison operator.
type Operator string

// Supported operators.
const (
	OpEqual       Operator = "="
	OpNotEqual    Operator = "!="
	OpGreater     Operator = ">"
	OpLess        Operator = "<"
	OpGreaterEq   Operator = ">="
	OpLessEq      Operator = "<="
	OpPessimistic Operator = "~>"
)

// operators is ordered so that two-character tokens are tried first.
var operators = []Operator{OpNotEqual, OpGreaterEq, OpLessEq, OpPessimistic, OpEqual, OpGreater, OpLess}

// Clause is a single (operator, version) constraint.
type Clause struct {
	Op      Operator
	Version Version
}

// Satisfied reports whether v satisfies the clause.
func (c Clause) Satisfied(v Version) bool {
	cmp := v.Compare(c.Version)
	switch c.Op {
	case OpEqual:
		return cmp == 0
	case OpNotEqual:
		return cmp != 0
	case OpGreater:
		return cmp > 0
	case OpLess:
		return cmp < 0
	case OpGreaterEq:
		return cmp >= 0
	case OpLessEq:
		return cmp <= 0
	case OpPessimistic:
		return cmp >= 0 && v.Release().Compare(c.Version.Bump()) < 0
	default:
		return false
	}
}

// String renders the clause as "op version".
func (c Clause) String() string {
	return string(c.Op) + " " + c.Version.String()
}

// Requirement is a conjunction of clauses. The zero value matches every version.
type Requirement struct {
	clauses []Clause
}

// AnyVersion is the requirement ">= 0".
var AnyVersion = Requirement{}

// ParseRequirement parses one or more requirement strings such as "~> 1.2"
// or ">= 1.0, < 2.0". A bare version means "= version".
func ParseRequirement(specs ...string) (Requirement, error) {
	var clauses []Clause
	for _, spec := range specs {
		for _, part := range strings.Split(spec, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			c, err := parseClause(part)
			if err != nil {
				return Requirement{}, err
			}
			clauses = append(clauses, c)
		}
	}
	return NewRequirement(clauses...), nil
}

// MustParseRequirement is like ParseRequirement but panics on malformed input.
func MustParseRequirement(specs ...string) Requirement {
	r, err := ParseRequirement(specs...)
	if err != nil {
		panic(err)
	}
	return r
}

func parseClause(s string) (Clause, error) {
	op := OpEqual
	rest := s
	for _, candidate := range operators {
		if strings.HasPrefix(s, string(candidate)) {
			op = candidate
			rest = strings.TrimSpace(s[len(candidate):])
			break
		}
	}
	v, err := ParseVersion(rest)
	if err != nil || rest == "" {
		return Clause{}, zerr.With(ErrInvalidRequirement, "requirement", s)
	}
	return Clause{Op: op, Version: v}, nil
}

// NewRequirement builds a requirement from clauses. Redundant ">= 0" clauses
// are dropped and the rest are kept in a canonical order.
func NewRequirement(clauses ...Clause) Requirement {
	out := make([]Clause, 0, len(clauses))
	for _, c := range clauses {
		if c.Op == OpGreaterEq && c.Version.Compare(Version{}) == 0 {
			continue
		}
		if slices.ContainsFunc(out, func(o Clause) bool { return o.Op == c.Op && o.Version.Equal(c.Version) }) {
			continue
		}
		out = append(out, c)
	}
	slices.SortStableFunc(out, func(a, b Clause) int {
		if c := a.Version.Compare(b.Version); c != 0 {
			return c
		}
		return strings.Compare(string(a.Op), string(b.Op))
	})
	return Requirement{clauses: out}
}

// Clauses returns a copy of the requirement's clauses.
func (r Requirement) Clauses() []Clause {
	return slices.Clone(r.clauses)
}

// Satisfied reports whether v satisfies every clause.
func (r Requirement) Satisfied(v Version) bool {
	for _, c := range r.clauses {
		if !c.Satisfied(v) {
			return false
		}
	}
	return true
}

// Merge returns the conjunction of r and o.
func (r Requirement) Merge(o Requirement) Requirement {
	return NewRequirement(append(slices.Clone(r.clauses), o.clauses...)...)
}

// Prerelease reports whether any clause names a prerelease version, which
// makes prerelease candidates eligible.
func (r Requirement) Prerelease() bool {
	return slices.ContainsFunc(r.clauses, func(c Clause) bool { return c.Version.IsPrerelease() })
}

// IsAny reports whether the requirement matches every version.
func (r Requirement) IsAny() bool { return len(r.clauses) == 0 }

// Strings returns each clause rendered as a string.
func (r Requirement) Strings() []string {
	if len(r.clauses) == 0 {
		return []string{">= 0"}
	}
	out := make([]string, len(r.clauses))
	for i, c := range r.clauses {
		out[i] = c.String()
	}
	return out
}

// String renders the requirement as a comma-separated list of clauses.
func (r Requirement) String() string {
	return strings.Join(r.Strings(), ", ")
}

// Equal reports whether both requirements have the same canonical clauses.
func (r Requirement) Equal(o Requirement) bool {
	return r.String() == o.String()
}

package domain

import (
	"regexp"
	"strconv"
	"strings"

	"go.trai.ch/zerr"
)

var versionPattern = regexp.MustCompile(`^[0-9]+(\.[0-9a-zA-Z]+)*(-[0-9A-Za-z-]+(\.[0-9A-Za-z-]+)*)?$`)

var segmentPattern = regexp.MustCompile(`[0-9]+|[a-zA-Z]+`)

// segment is one dot-separated (or digit/alpha boundary) component of a version.
type segment struct {
	num   uint64
	str   string
	alpha bool
}

func (s segment) compare(o segment) int {
	switch {
	case s.alpha && o.alpha:
		return strings.Compare(s.str, o.str)
	case s.alpha:
		return -1
	case o.alpha:
		return 1
	case s.num < o.num:
		return -1
	case s.num > o.num:
		return 1
	default:
		return 0
	}
}

// Version is a parsed gem version. The zero value is version "0".
type Version struct {
	raw      string
	segments []segment
}

// ParseVersion parses a dot-separated version such as "1.2.3" or "2.0.0.rc1".
// A hyphenated suffix ("1.0-beta") is treated as a prerelease.
func ParseVersion(s string) (Version, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		raw = "0"
	}
	if !versionPattern.MatchString(raw) {
		return Version{}, zerr.With(ErrInvalidVersion, "version", s)
	}

	normalized := strings.ReplaceAll(raw, "-", ".pre.")
	parts := segmentPattern.FindAllString(normalized, -1)
	segs := make([]segment, 0, len(parts))
	for _, p := range parts {
		if p[0] >= '0' && p[0] <= '9' {
			n, err := strconv.ParseUint(p, 10, 64)
			if err != nil {
				return Version{}, zerr.With(ErrInvalidVersion, "version", s)
			}
			segs = append(segs, segment{num: n})
			continue
		}
		segs = append(segs, segment{str: p, alpha: true})
	}

	return Version{raw: raw, segments: canonical(segs)}, nil
}

// MustParseVersion is like ParseVersion but panics on malformed input.
func MustParseVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

// canonical drops trailing zeros of both the release and the prerelease part
// so that "1.0" and "1" compare equal and "1.0.a" equals "1.a".
func canonical(segs []segment) []segment {
	split := len(segs)
	for i, s := range segs {
		if s.alpha {
			split = i
			break
		}
	}
	release := trimZeros(segs[:split])
	pre := trimZeros(segs[split:])
	out := make([]segment, 0, len(release)+len(pre))
	out = append(out, release...)
	return append(out, pre...)
}

func trimZeros(segs []segment) []segment {
	end := len(segs)
	for end > 0 && !segs[end-1].alpha && segs[end-1].num == 0 {
		end--
	}
	return segs[:end]
}

// String returns the version as it was written.
func (v Version) String() string {
	if v.raw == "" {
		return "0"
	}
	return v.raw
}

// Compare returns -1, 0 or 1. Missing segments compare as zero, and an alpha
// segment sorts before any numeric one, so prereleases precede their release.
func (v Version) Compare(o Version) int {
	n := max(len(v.segments), len(o.segments))
	for i := range n {
		a, b := segment{}, segment{}
		if i < len(v.segments) {
			a = v.segments[i]
		}
		if i < len(o.segments) {
			b = o.segments[i]
		}
		if c := a.compare(b); c != 0 {
			return c
		}
	}
	return 0
}

// Equal reports whether v and o denote the same version.
func (v Version) Equal(o Version) bool { return v.Compare(o) == 0 }

// IsPrerelease reports whether the version has an alphabetic segment.
func (v Version) IsPrerelease() bool {
	for _, s := range v.segments {
		if s.alpha {
			return true
		}
	}
	return false
}

// Release returns v without its prerelease segments.
func (v Version) Release() Version {
	if !v.IsPrerelease() {
		return v
	}
	var segs []segment
	for _, s := range v.segments {
		if s.alpha {
			break
		}
		segs = append(segs, s)
	}
	return fromSegments(segs)
}

// Bump returns the upper bound used by the pessimistic operator:
// prerelease segments are dropped, then the last release segment is removed
// (unless it is the only one) and the new last one is incremented.
func (v Version) Bump() Version {
	var segs []segment
	for _, s := range v.segments {
		if s.alpha {
			break
		}
		segs = append(segs, s)
	}
	if len(segs) == 0 {
		segs = []segment{{}}
	}
	// Trailing zeros were trimmed when parsing; restore the written precision.
	if w := writtenReleaseLen(v.raw); w > len(segs) {
		for len(segs) < w {
			segs = append(segs, segment{})
		}
	}
	if len(segs) > 1 {
		segs = segs[:len(segs)-1]
	}
	bumped := make([]segment, len(segs))
	copy(bumped, segs)
	bumped[len(bumped)-1].num++
	return fromSegments(bumped)
}

func writtenReleaseLen(raw string) int {
	n := 0
	for _, p := range strings.Split(raw, ".") {
		if p == "" || p[0] < '0' || p[0] > '9' {
			break
		}
		if strings.IndexFunc(p, func(r rune) bool { return r < '0' || r > '9' }) >= 0 {
			n++
			break
		}
		n++
	}
	return n
}

func fromSegments(segs []segment) Version {
	parts := make([]string, len(segs))
	for i, s := range segs {
		if s.alpha {
			parts[i] = s.str
		} else {
			parts[i] = strconv.FormatUint(s.num, 10)
		}
	}
	raw := strings.Join(parts, ".")
	if raw == "" {
		raw = "0"
	}
	return Version{raw: raw, segments: canonical(segs)}
}

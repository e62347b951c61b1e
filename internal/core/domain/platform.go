package domain

import (
	"runtime"
	"slices"
)

// Platform names the platform a specification is built for.
type Platform string

// PlatformRuby is the generic platform. A generic specification runs anywhere.
const PlatformRuby Platform = "ruby"

// Matches reports whether a specification built for p can serve a request for
// the platform want.
func (p Platform) Matches(want Platform) bool {
	return p == PlatformRuby || p == "" || p == want
}

// IsGeneric reports whether p is the generic platform.
func (p Platform) IsGeneric() bool {
	return p == PlatformRuby || p == ""
}

// LocalPlatform returns the platform string of the running host.
func LocalPlatform() Platform {
	arch := runtime.GOARCH
	switch arch {
	case "amd64":
		arch = "x86_64"
	case "arm64":
		if runtime.GOOS == "darwin" {
			arch = "arm64"
		} else {
			arch = "aarch64"
		}
	}
	return Platform(arch + "-" + runtime.GOOS)
}

func sortedPlatforms(in []Platform) []Platform {
	out := slices.Clone(in)
	slices.Sort(out)
	return slices.Compact(out)
}

// Package detector provides environment detection for output mode selection.
package detector

import (
	"os"

	"golang.org/x/term"
)

// OutputMode represents the progress rendering mode.
type OutputMode int

const (
	// ModeAuto automatically detects the appropriate mode.
	ModeAuto OutputMode = iota
	// ModeTUI forces the interactive renderer.
	ModeTUI
	// ModeLinear forces line-oriented CI output.
	ModeLinear
)

// DetectEnvironment returns the recommended output mode: linear when stdout
// is not a terminal or CI is set, interactive otherwise.
func DetectEnvironment() OutputMode {
	ci := os.Getenv("CI")
	if !IsTerminal(os.Stdout) || ci == "true" || ci == "1" {
		return ModeLinear
	}
	return ModeTUI
}

// ResolveMode applies the user's --output flag to auto-detection. flag is
// one of "auto", "tui", "linear", "ci" or empty; anything else defers to
// autoDetected.
func ResolveMode(autoDetected OutputMode, flag string) OutputMode {
	switch flag {
	case "tui":
		return ModeTUI
	case "linear", "ci":
		return ModeLinear
	default:
		return autoDetected
	}
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd())) //nolint:gosec // fd fits in int
}

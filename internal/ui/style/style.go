// Package style provides shared UI styling primitives: brand colors, icons
// and the lipgloss styles used for gem listings.
package style

import "github.com/charmbracelet/lipgloss"

// Brand Colors.
var (
	Ruby   = lipgloss.Color("#CC342D")
	Slate  = lipgloss.Color("#667085")
	White  = lipgloss.Color("#FFFFFF")
	Green  = lipgloss.Color("#22A06B")
	Red    = lipgloss.Color("#D93025")
	Yellow = lipgloss.Color("#F59E0B")
)

// Icons.
const (
	Check   = "✓"
	Cross   = "✗"
	Warning = "!"
	Dot     = "●"
	Circle  = "○"
	Arrow   = "→"
)

var (
	// Name renders a gem name.
	Name = lipgloss.NewStyle().Bold(true)

	// Version renders a version next to a gem name.
	Version = lipgloss.NewStyle().Foreground(Slate)

	// Success renders completed work.
	Success = lipgloss.NewStyle().Foreground(Green)

	// Failure renders failed work.
	Failure = lipgloss.NewStyle().Foreground(Red)

	// Muted renders cached or skipped work.
	Muted = lipgloss.NewStyle().Foreground(Slate).Faint(true)

	// Title renders a section header.
	Title = lipgloss.NewStyle().
		Bold(true).
		Padding(0, 1).
		Background(Ruby).
		Foreground(White)
)

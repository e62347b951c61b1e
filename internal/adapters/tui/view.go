package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"go.trai.ch/bundle/internal/ui/style"
)

// headerLines is the number of rows the title takes.
const headerLines = 2

var pendingStyle = lipgloss.NewStyle().Foreground(style.Slate)

// View renders the title and the visible window of gems. When the list is
// taller than the terminal, running and failed gems stay visible first.
func (m *Model) View() string {
	done, total := m.Counts()

	var s strings.Builder
	s.WriteString(style.Title.Render(fmt.Sprintf("Installing gems %d/%d", done, total)))
	s.WriteString("\n\n")

	for _, g := range m.visible() {
		s.WriteString(renderRow(g) + "\n")
	}
	return s.String()
}

func (m *Model) visible() []*GemNode {
	limit := m.Height - headerLines
	if m.Height == 0 || limit >= len(m.Gems) {
		return m.Gems
	}
	if limit < 1 {
		limit = 1
	}

	rows := make([]*GemNode, 0, limit)
	for _, pass := range [][]GemStatus{
		{StatusRunning, StatusError},
		{StatusPending},
		{StatusDone, StatusCached},
	} {
		for _, g := range m.Gems {
			if len(rows) == limit {
				return rows
			}
			for _, st := range pass {
				if g.Status == st {
					rows = append(rows, g)
				}
			}
		}
	}
	return rows
}

func renderRow(g *GemNode) string {
	switch g.Status {
	case StatusRunning:
		return style.Name.Render(style.Dot + " " + g.Name)
	case StatusDone:
		return style.Success.Render(style.Check + " " + g.Name)
	case StatusCached:
		return style.Muted.Render(style.Check + " " + g.Name + " (cached)")
	case StatusError:
		return style.Failure.Render(style.Cross + " " + g.Name + ": " + g.Err.Error())
	default:
		return pendingStyle.Render(style.Circle + " " + g.Name)
	}
}

// Package tui provides an interactive install progress view built on
// Bubble Tea.
package tui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// GemStatus represents the install state of one gem.
type GemStatus string

const (
	// StatusPending means the gem waits for its dependencies.
	StatusPending GemStatus = "Pending"
	// StatusRunning means the gem is being installed.
	StatusRunning GemStatus = "Running"
	// StatusDone means the gem was installed.
	StatusDone GemStatus = "Done"
	// StatusCached means the gem was already installed.
	StatusCached GemStatus = "Cached"
	// StatusError means the install failed.
	StatusError GemStatus = "Error"
)

// MsgInitGems resets the gem list to the planned names.
type MsgInitGems struct {
	Names []string
}

// MsgGemStart marks a gem as running.
type MsgGemStart struct {
	SpanID string
	Name   string
}

// MsgGemComplete marks the gem of a span as finished.
type MsgGemComplete struct {
	SpanID string
	Err    error
	Cached bool
}

// GemNode is one row of the list.
type GemNode struct {
	Name   string
	Status GemStatus
	Err    error
}

// Model is the Bubble Tea model of the install view.
type Model struct {
	Gems   []*GemNode
	ByName map[string]*GemNode
	BySpan map[string]*GemNode
	Height int
}

// NewModel returns an empty Model.
func NewModel() *Model {
	return &Model{
		ByName: make(map[string]*GemNode),
		BySpan: make(map[string]*GemNode),
	}
}

// Init initializes the model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update applies one message.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Interrupt
		}

	case tea.WindowSizeMsg:
		m.Height = msg.Height

	case MsgInitGems:
		m.Gems = make([]*GemNode, len(msg.Names))
		m.ByName = make(map[string]*GemNode, len(msg.Names))
		m.BySpan = make(map[string]*GemNode)
		for i, name := range msg.Names {
			m.Gems[i] = &GemNode{Name: name, Status: StatusPending}
			m.ByName[name] = m.Gems[i]
		}

	case MsgGemStart:
		if node, ok := m.ByName[msg.Name]; ok {
			node.Status = StatusRunning
			m.BySpan[msg.SpanID] = node
		}

	case MsgGemComplete:
		if node, ok := m.BySpan[msg.SpanID]; ok {
			switch {
			case msg.Err != nil:
				node.Status = StatusError
				node.Err = msg.Err
			case msg.Cached:
				node.Status = StatusCached
			default:
				node.Status = StatusDone
			}
		}
	}

	return m, nil
}

// Counts returns the number of finished gems and the total.
func (m *Model) Counts() (done, total int) {
	for _, g := range m.Gems {
		switch g.Status {
		case StatusDone, StatusCached, StatusError:
			done++
		case StatusPending, StatusRunning:
		}
	}
	return done, len(m.Gems)
}

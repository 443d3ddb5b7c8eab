package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/exajoy/aider/core/events"
	"github.com/exajoy/aider/core/session"
)

// footerHeight covers the blank separator, the status line and the prompt.
const footerHeight = 3

type snapshotMsg struct {
	snapshot session.Snapshot
}

type model struct {
	ctx context.Context
	out chan<- events.InputEvent

	viewport viewport.Model
	snapshot session.Snapshot
	width    int
	ready    bool
}

func newModel(ctx context.Context, out chan<- events.InputEvent) *model {
	return &model{ctx: ctx, out: out}
}

func (m *model) Init() tea.Cmd {
	return nil
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		m.forward(events.NewResize(msg.Width, msg.Height))
		return m, nil

	case tea.KeyMsg:
		if isScrollKey(msg) {
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
		for _, input := range translateKey(msg) {
			m.forward(input)
		}
		return m, nil

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case snapshotMsg:
		m.snapshot = msg.snapshot
		m.refresh()
		return m, nil
	}

	return m, nil
}

// forward blocks while the control loop's input queue is full.
func (m *model) forward(input events.InputEvent) {
	select {
	case m.out <- input:
	case <-m.ctx.Done():
	}
}

func (m *model) resize(width, height int) {
	m.width = width
	viewportHeight := max(height-footerHeight, 1)

	if !m.ready {
		m.viewport = viewport.New(width, viewportHeight)
		m.ready = true
	} else {
		m.viewport.Width = width
		m.viewport.Height = viewportHeight
	}
	m.refresh()
}

func (m *model) refresh() {
	if !m.ready {
		return
	}

	follow := m.viewport.AtBottom()
	m.viewport.SetContent(renderHistory(m.snapshot.History, m.width))
	if follow || m.snapshot.Awaiting {
		m.viewport.GotoBottom()
	}
}

func (m *model) View() string {
	if !m.ready {
		return "Starting..."
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.viewport.View(),
		"",
		renderStatus(m.snapshot.Awaiting),
		renderPrompt(m.snapshot.Draft),
	)
}

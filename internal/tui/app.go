package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"lettrly/internal/live"
)

// Stream is the live inbox feeding the screen.
type Stream interface {
	Status() live.Status
	Changes() <-chan struct{}
	Connect()
}

// Notifications is the batch banner state.
type Notifications interface {
	Batch() live.Batch
	ClearNewLetters()
	DismissBatchNotification()
}

type changedMsg struct{}

type AppModel struct {
	stream Stream
	notes  Notifications

	view     live.View
	viewport viewport.Model

	width, height int
}

func NewAppModel(stream Stream, notes Notifications) AppModel {
	return AppModel{
		stream:   stream,
		notes:    notes,
		viewport: viewport.New(0, 0),
	}
}

func (m *AppModel) Init() tea.Cmd {
	m.refresh()
	return m.waitForChange()
}

// waitForChange turns the next consumer notification into a tea message.
func (m *AppModel) waitForChange() tea.Cmd {
	ch := m.stream.Changes()
	return func() tea.Msg {
		<-ch
		return changedMsg{}
	}
}

func (m *AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case changedMsg:
		m.refresh()
		return m, m.waitForChange()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "v":
			m.notes.ClearNewLetters()
			m.refresh()
			m.viewport.GotoTop()
			return m, nil
		case "x":
			m.notes.DismissBatchNotification()
			m.refresh()
			return m, nil
		case "r":
			m.stream.Connect()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *AppModel) refresh() {
	m.view = live.BuildView(m.stream.Status(), m.notes.Batch())
	m.viewport.SetContent(renderLetters(m.view))
	m.resize()
}

// resize gives the letter list whatever the header, banner and footer leave.
func (m *AppModel) resize() {
	if m.width == 0 {
		return
	}
	used := lipgloss.Height(header(m.view)) + lipgloss.Height(footer())
	if m.view.Batch.ShowBanner() {
		used += lipgloss.Height(banner(m.view.Batch))
	}
	m.viewport.Width = m.width
	m.viewport.Height = max(m.height-used, 1)
}

func (m *AppModel) View() string {
	var b strings.Builder

	b.WriteString(header(m.view))
	b.WriteString("\n")
	if m.view.Batch.ShowBanner() {
		b.WriteString(banner(m.view.Batch))
		b.WriteString("\n")
	}
	if m.width == 0 {
		b.WriteString(renderLetters(m.view))
	} else {
		b.WriteString(m.viewport.View())
	}
	b.WriteString("\n")
	b.WriteString(footer())
	return b.String()
}

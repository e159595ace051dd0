package main

import (
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/GoradiaNishant/OfflineFileSharing/config"
)

const (
	accent = "#87d7ff"
	muted  = "#4d4d4d"
	errCol = "#ff5f5f"
	okCol  = "#87ff87"
)

var (
	containerStyle = lipgloss.NewStyle().Padding(1, 2)
	titleStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color(accent)).Bold(true)
	mutedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color(muted))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color(errCol)).Bold(true)
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color(okCol)).Bold(true)
	payloadStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(accent)).
			Padding(0, 1)
)

type modeItem struct {
	name, desc string
}

func (i modeItem) Title() string       { return i.name }
func (i modeItem) Description() string { return i.desc }
func (i modeItem) FilterValue() string { return "" }

// appModel is the top-level model: a mode chooser that hands control to the
// send or receive flow.
type appModel struct {
	cfg     config.Config
	modes   list.Model
	choice  string
	send    sendModel
	receive receiveModel
	width   int
	height  int
}

func newAppModel(cfg config.Config) appModel {
	items := []list.Item{
		modeItem{name: "Send", desc: "Share a file with a nearby device"},
		modeItem{name: "Receive", desc: "Download a file from a scanned code"},
	}
	l := list.New(items, list.NewDefaultDelegate(), 40, len(items)*3+2)
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)

	return appModel{
		cfg:     cfg,
		modes:   l,
		send:    newSendModel(cfg),
		receive: newReceiveModel(cfg),
	}
}

func (m *appModel) Init() tea.Cmd {
	return tea.SetWindowTitle("Offline File Sharing")
}

func (m *appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.modes.SetWidth(msg.Width)

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.send.shutdown()
			m.receive.shutdown()
			return m, tea.Quit
		}
		if m.choice == "" {
			if msg.Type == tea.KeyEnter {
				if item, ok := m.modes.SelectedItem().(modeItem); ok {
					m.choice = item.name
					switch m.choice {
					case "Send":
						return m, m.send.start()
					case "Receive":
						return m, m.receive.start()
					}
				}
			}
			if msg.String() == "q" {
				return m, tea.Quit
			}
		}
	}

	switch m.choice {
	case "Send":
		var cmd tea.Cmd
		m.send, cmd = m.send.update(msg)
		return m, cmd
	case "Receive":
		var cmd tea.Cmd
		m.receive, cmd = m.receive.update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.modes, cmd = m.modes.Update(msg)
	return m, cmd
}

func (m *appModel) View() string {
	switch m.choice {
	case "Send":
		return m.send.view()
	case "Receive":
		return m.receive.view()
	}
	return containerStyle.Render(
		titleStyle.Render("Offline File Sharing") + "\n\n" +
			m.modes.View() + "\n" +
			mutedStyle.Render("enter: select • q: quit"))
}

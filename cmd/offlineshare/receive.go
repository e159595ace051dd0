package main

import (
	"context"
	"fmt"
	"time"

	bubbleprogress "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	offlineshare "github.com/GoradiaNishant/OfflineFileSharing"
	"github.com/GoradiaNishant/OfflineFileSharing/apperrors"
	"github.com/GoradiaNishant/OfflineFileSharing/config"
	"github.com/GoradiaNishant/OfflineFileSharing/progress"
)

type downloadDoneMsg struct {
	path string
	err  error
}

type receiveProgressMsg struct {
	snap progress.Snapshot
	ok   bool
}

type receiveModel struct {
	input       textinput.Model
	bar         bubbleprogress.Model
	receiver    *offlineshare.Receiver
	updates     <-chan progress.Snapshot
	unsub       func()
	snap        progress.Snapshot
	downloading bool
	savedPath   string
	err         error
	cancel      context.CancelFunc
	width       int
}

func newReceiveModel(cfg config.Config) receiveModel {
	input := textinput.New()
	input.Placeholder = "paste the scanned QR payload here"
	input.CharLimit = 0
	input.Width = 64
	return receiveModel{
		input:    input,
		bar:      bubbleprogress.New(bubbleprogress.WithSolidFill(accent)),
		receiver: offlineshare.NewReceiver(cfg),
	}
}

func (m receiveModel) start() tea.Cmd {
	return textinput.Blink
}

func (m *receiveModel) download(payload string) tea.Cmd {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	return func() tea.Msg {
		path, err := m.receiver.Receive(ctx, payload, "")
		return downloadDoneMsg{path: path, err: err}
	}
}

func waitForReceiveProgress(updates <-chan progress.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-updates
		return receiveProgressMsg{snap: snap, ok: ok}
	}
}

func (m receiveModel) update(msg tea.Msg) (receiveModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = msg.Width - 20
		return m, nil

	case tea.KeyMsg:
		switch {
		case msg.String() == "q" && !m.downloading:
			return m, tea.Quit
		case msg.Type == tea.KeyEsc && m.downloading:
			m.receiver.Cancel()
			return m, nil
		case msg.Type == tea.KeyEnter && !m.downloading && m.savedPath == "":
			payload := m.input.Value()
			if payload == "" {
				return m, nil
			}
			m.downloading = true
			m.err = nil
			m.updates, m.unsub = m.receiver.Progress()
			return m, tea.Batch(m.download(payload), waitForReceiveProgress(m.updates))
		}

	case receiveProgressMsg:
		if !msg.ok {
			return m, nil
		}
		m.snap = msg.snap
		return m, waitForReceiveProgress(m.updates)

	case downloadDoneMsg:
		m.downloading = false
		m.savedPath = msg.path
		m.err = msg.err
		if m.unsub != nil {
			m.unsub()
			m.unsub = nil
		}
		return m, nil
	}

	if !m.downloading && m.savedPath == "" {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m receiveModel) view() string {
	var body string
	switch {
	case m.err != nil:
		retryHint := "This failure needs a fresh start."
		if apperrors.Recoverable(m.err) {
			retryHint = "Press enter to try again."
		}
		body = errorStyle.Render(apperrors.UserMessage(m.err)) + "\n" +
			mutedStyle.Render(m.err.Error()) + "\n" + retryHint
	case m.savedPath != "":
		body = successStyle.Render("Saved to "+m.savedPath) + "\n\n" +
			m.bar.ViewAs(1.0)
	case m.downloading:
		body = fmt.Sprintf("Downloading… %d of %d bytes\n\n",
			m.snap.BytesTransferred, m.snap.TotalBytes) +
			m.bar.ViewAs(m.snap.Percentage()/100) +
			mutedStyle.Render(fmt.Sprintf("  %.0f KB/s, about %s left",
				m.snap.Speed()/1024, m.snap.ETA().Round(time.Second))) + "\n\n" +
			mutedStyle.Render("esc: cancel")
	default:
		body = "Paste the payload from the sender's QR code:\n\n" + m.input.View()
	}
	return containerStyle.Render(titleStyle.Render("Receive") + "\n\n" + body + "\n\n" +
		mutedStyle.Render("q: quit"))
}

func (m *receiveModel) shutdown() {
	if m.cancel != nil {
		m.cancel()
	}
	if m.unsub != nil {
		m.unsub()
	}
	m.receiver.Cancel()
}

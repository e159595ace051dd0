package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/bubbles/filepicker"
	bubbleprogress "github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	offlineshare "github.com/GoradiaNishant/OfflineFileSharing"
	"github.com/GoradiaNishant/OfflineFileSharing/apperrors"
	"github.com/GoradiaNishant/OfflineFileSharing/config"
	"github.com/GoradiaNishant/OfflineFileSharing/progress"
)

type shareReadyMsg struct {
	share *offlineshare.Share
}

type shareFailedMsg struct {
	err error
}

type sendProgressMsg struct {
	snap progress.Snapshot
	ok   bool
}

type sendModel struct {
	picker   filepicker.Model
	bar      bubbleprogress.Model
	sender   *offlineshare.Sender
	share    *offlineshare.Share
	snap     progress.Snapshot
	updates  <-chan progress.Snapshot
	unsub    func()
	err      error
	finished bool
	width    int
}

func newSendModel(cfg config.Config) sendModel {
	fp := filepicker.New()
	fp.CurrentDirectory, _ = os.UserHomeDir()
	return sendModel{
		picker: fp,
		bar:    bubbleprogress.New(bubbleprogress.WithSolidFill(accent)),
		sender: offlineshare.NewSender(cfg),
	}
}

func (m sendModel) start() tea.Cmd {
	return m.picker.Init()
}

// shareFile starts serving the picked file off the UI loop.
func (m *sendModel) shareFile(path string) tea.Cmd {
	return func() tea.Msg {
		share, err := m.sender.Share(path)
		if err != nil {
			return shareFailedMsg{err: err}
		}
		return shareReadyMsg{share: share}
	}
}

func waitForSendProgress(updates <-chan progress.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-updates
		return sendProgressMsg{snap: snap, ok: ok}
	}
}

func (m sendModel) update(msg tea.Msg) (sendModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = msg.Width - 20
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "q" {
			m.shutdown()
			return m, tea.Quit
		}

	case shareReadyMsg:
		m.share = msg.share
		m.updates, m.unsub = m.sender.Progress()
		return m, waitForSendProgress(m.updates)

	case shareFailedMsg:
		m.err = msg.err
		return m, nil

	case sendProgressMsg:
		if !msg.ok {
			return m, nil
		}
		m.snap = msg.snap
		if m.snap.Complete() {
			m.finished = true
			return m, nil
		}
		return m, waitForSendProgress(m.updates)
	}

	if m.share == nil && m.err == nil {
		var cmd tea.Cmd
		m.picker, cmd = m.picker.Update(msg)
		if selected, path := m.picker.DidSelectFile(msg); selected {
			return m, m.shareFile(path)
		}
		return m, cmd
	}
	return m, nil
}

func (m sendModel) view() string {
	var body string
	switch {
	case m.err != nil:
		body = errorStyle.Render("Could not share: "+apperrors.UserMessage(m.err)) + "\n" +
			mutedStyle.Render(m.err.Error())
	case m.share == nil:
		body = "Pick a file to share:\n\n" + m.picker.View()
	case m.finished:
		body = successStyle.Render("Transfer complete.") + "\n" +
			mutedStyle.Render("The server has shut itself down.")
	default:
		sess := m.share.Session
		body = fmt.Sprintf("Sharing %s (%d bytes) at %s\n\n", sess.FileName, sess.FileSize, sess.Endpoint()) +
			"Scan this payload on the receiving device:\n" +
			payloadStyle.Render(m.share.QRText) + "\n\n" +
			m.bar.ViewAs(m.snap.Percentage()/100) +
			mutedStyle.Render(fmt.Sprintf("  %.0f KB/s", m.snap.Speed()/1024))
	}
	return containerStyle.Render(titleStyle.Render("Send") + "\n\n" + body + "\n\n" +
		mutedStyle.Render("q: stop and quit"))
}

func (m *sendModel) shutdown() {
	if m.unsub != nil {
		m.unsub()
	}
	if m.sender != nil {
		m.sender.Stop()
	}
}

package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/GoradiaNishant/OfflineFileSharing/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "configuration error:", err)
		os.Exit(1)
	}

	// The terminal belongs to the UI; keep structured logs in a file.
	if f, err := os.OpenFile(logPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
		logrus.SetOutput(f)
		defer f.Close()
	} else {
		logrus.SetOutput(io.Discard)
	}

	m := newAppModel(cfg)
	if _, err := tea.NewProgram(&m, tea.WithAltScreen()).Run(); err != nil {
		fmt.Fprintln(os.Stderr, "error running program:", err)
		os.Exit(1)
	}
}

func logPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "offlineshare.log"
	}
	return filepath.Join(dir, "offlineshare.log")
}

package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	config "github.com/cuecard/backend/config/prompter"
	"github.com/cuecard/backend/gateways/prompter"
)

func main() {
	cfg := config.MustLoad()

	notes, err := os.ReadFile(cfg.NotesPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read notes from %s: %v\n", cfg.NotesPath, err)
		os.Exit(1)
	}

	program := tea.NewProgram(prompter.New(prompter.Config{
		Notes:        string(notes),
		DefaultSpeed: cfg.DefaultSpeed,
	}), tea.WithAltScreen())

	if _, err := program.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "prompter failed: %v\n", err)
		os.Exit(1)
	}
}

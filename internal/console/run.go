package console

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
)

// Run connects to the server and hands the terminal to the interface until
// the player quits or the connection drops.
func Run(cfg *Config, logger *log.Logger) error {
	client := NewClient(cfg.Server.URL, cfg.Player.Token, logger)
	if err := client.Connect(); err != nil {
		return err
	}
	defer client.Close()

	model := NewModel(client, logger, cfg.Player.DefaultBuyIn)
	model.appendLines(
		"Connected to "+cfg.Server.URL,
		"",
		"/tables lists tables, /join <table> watches one, /sit <seat> [buyin] deals you in.",
		"/help shows everything else.",
		"",
	)

	program := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("interface failed: %w", err)
	}
	return nil
}

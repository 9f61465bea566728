package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/openfelt/cardroom/internal/console"
)

// ClientCmd runs the interactive terminal client.
type ClientCmd struct {
	Config   string `kong:"short='c',default='cardroom-client.hcl',help='Path to HCL configuration file'"`
	Server   string `kong:"short='s',help='Server URL (overrides config)'"`
	Token    string `kong:"short='t',help='Auth token (overrides config)'"`
	LogLevel string `kong:"short='l',help='Log level (overrides config)'"`
	LogFile  string `kong:"help='Log file path (overrides config)'"`
}

func (c *ClientCmd) Run() error {
	cfg, err := console.LoadConfig(c.Config)
	if err != nil {
		return err
	}
	if c.Server != "" {
		cfg.Server.URL = c.Server
	}
	if c.Token != "" {
		cfg.Player.Token = c.Token
	}
	if c.LogLevel != "" {
		cfg.UI.LogLevel = c.LogLevel
	}
	if c.LogFile != "" {
		cfg.UI.LogFile = c.LogFile
	}

	// Ask for an identity rather than failing when none is configured.
	if cfg.Player.Token == "" {
		fmt.Print("Enter your player name: ")
		var input string
		_, _ = fmt.Scanln(&input)
		cfg.Player.Token = strings.TrimSpace(input)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// The TUI owns the terminal, so log output goes to a file.
	logFile, err := os.OpenFile(cfg.UI.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer func() { _ = logFile.Close() }()

	logger := log.New(logFile)
	switch cfg.UI.LogLevel {
	case "debug":
		logger.SetLevel(log.DebugLevel)
	case "info":
		logger.SetLevel(log.InfoLevel)
	case "warn":
		logger.SetLevel(log.WarnLevel)
	case "error":
		logger.SetLevel(log.ErrorLevel)
	}

	logger.Info("Starting cardroom client", "server", cfg.Server.URL, "config", c.Config)

	return console.Run(cfg, logger)
}

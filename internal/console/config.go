package console

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// Config is the console's HCL file. Every block is optional; a missing file
// yields the defaults.
type Config struct {
	Server *ServerSettings `hcl:"server,block"`
	Player *PlayerSettings `hcl:"player,block"`
	UI     *UISettings     `hcl:"ui,block"`
}

// ServerSettings points the console at a cardroom.
type ServerSettings struct {
	URL string `hcl:"url,optional"`
}

// PlayerSettings carries the identity and bankroll defaults.
type PlayerSettings struct {
	Token        string `hcl:"token,optional"`
	DefaultBuyIn int64  `hcl:"default_buy_in,optional"`
}

// UISettings tunes client-side logging. The TUI owns the terminal, so log
// output goes to a file.
type UISettings struct {
	LogLevel string `hcl:"log_level,optional"`
	LogFile  string `hcl:"log_file,optional"`
}

// DefaultConfig is a local server and a fresh identity.
func DefaultConfig() *Config {
	return &Config{
		Server: &ServerSettings{URL: "http://localhost:8080"},
		Player: &PlayerSettings{DefaultBuyIn: 500},
		UI:     &UISettings{LogLevel: "warn", LogFile: "cardroom-client.log"},
	}
}

// LoadConfig reads the HCL file, falling back to defaults when it does not
// exist.
func LoadConfig(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parse %s: %s", path, diags.Error())
	}

	var cfg Config
	if diags := gohcl.DecodeBody(file.Body, nil, &cfg); diags.HasErrors() {
		return nil, fmt.Errorf("decode %s: %s", path, diags.Error())
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.Server == nil {
		c.Server = def.Server
	}
	if c.Server.URL == "" {
		c.Server.URL = def.Server.URL
	}
	if c.Player == nil {
		c.Player = def.Player
	}
	if c.Player.DefaultBuyIn <= 0 {
		c.Player.DefaultBuyIn = def.Player.DefaultBuyIn
	}
	if c.UI == nil {
		c.UI = def.UI
	}
	if c.UI.LogLevel == "" {
		c.UI.LogLevel = def.UI.LogLevel
	}
	if c.UI.LogFile == "" {
		c.UI.LogFile = def.UI.LogFile
	}
}

// Validate rejects configurations the console cannot run with.
func (c *Config) Validate() error {
	if c.Server == nil || c.Server.URL == "" {
		return fmt.Errorf("server url is required")
	}
	if c.Player == nil || c.Player.Token == "" {
		return fmt.Errorf("player token is required")
	}
	switch c.UI.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.UI.LogLevel)
	}
	return nil
}

package gateway

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/openfelt/cardroom/internal/engine"
	"github.com/openfelt/cardroom/internal/store"
)

// Config is the full server configuration decoded from HCL.
type Config struct {
	Server   ServerSettings `hcl:"server,block"`
	Redis    *RedisSettings `hcl:"redis,block"`
	Postgres *PGSettings    `hcl:"postgres,block"`
	Auth     *AuthSettings  `hcl:"auth,block"`
	Timing   *Timing        `hcl:"timing,block"`
	Tables   []TableConfig  `hcl:"table,block"`
}

// ServerSettings is the server-level block.
type ServerSettings struct {
	Listen          string `hcl:"listen,optional"`
	LogLevel        string `hcl:"log_level,optional"`
	LogFormat       string `hcl:"log_format,optional"` // console or json
	StartingBalance int64  `hcl:"starting_balance,optional"`
}

// RedisSettings selects the shared KV. Absent means in-memory dev mode.
type RedisSettings struct {
	Addr     string `hcl:"addr"`
	Password string `hcl:"password,optional"`
	DB       int    `hcl:"db,optional"`
}

// PGSettings selects the durable store. Absent means in-memory dev mode.
type PGSettings struct {
	DSN string `hcl:"dsn"`
}

// AuthSettings selects the token verifier.
type AuthSettings struct {
	Mode   string `hcl:"mode,optional"` // insecure or http
	URL    string `hcl:"url,optional"`
	Secret string `hcl:"secret,optional"`
}

// Timing tunes the shared pacing policy. A zero field keeps the stock
// value, so explicit zero delays are not expressible from the file.
type Timing struct {
	TurnTimeMS          int   `hcl:"turn_time_ms,optional"`
	AwayTimeoutsInRow   int   `hcl:"away_timeouts_in_row,optional"`
	StreetPreDelayMS    int   `hcl:"street_pre_delay_ms,optional"`
	BoardCardIntervalMS int   `hcl:"board_card_interval_ms,optional"`
	StreetPostDelayMS   int   `hcl:"street_post_delay_ms,optional"`
	WinByFoldHoldMS     int   `hcl:"win_by_fold_hold_ms,optional"`
	ShowdownHoldMS      int   `hcl:"showdown_hold_ms,optional"`
	BuyInMinBB          int64 `hcl:"buy_in_min_bb,optional"`
	BuyInMaxBB          int64 `hcl:"buy_in_max_bb,optional"`
}

// TableConfig defines one cash-game table. The label doubles as the
// table id.
type TableConfig struct {
	Name       string `hcl:"name,label"`
	SmallBlind int64  `hcl:"small_blind"`
	BigBlind   int64  `hcl:"big_blind"`
	MaxSeats   int    `hcl:"max_seats,optional"`
}

// DefaultConfig returns the dev-mode configuration: one table, in-memory
// stores, insecure auth.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerSettings{
			Listen:          ":8080",
			LogLevel:        "info",
			LogFormat:       "console",
			StartingBalance: 10_000,
		},
		Auth: &AuthSettings{Mode: "insecure"},
		Tables: []TableConfig{
			{Name: "main", SmallBlind: 5, BigBlind: 10, MaxSeats: 6},
		},
	}
}

// LoadConfig reads an HCL file. A missing file yields DefaultConfig so a
// bare `cardroom server` works out of the box.
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
	if c.Server.Listen == "" {
		c.Server.Listen = ":8080"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Server.LogFormat == "" {
		c.Server.LogFormat = "console"
	}
	if c.Server.StartingBalance == 0 {
		c.Server.StartingBalance = 10_000
	}
	if c.Auth == nil {
		c.Auth = &AuthSettings{}
	}
	if c.Auth.Mode == "" {
		c.Auth.Mode = "insecure"
	}
	for i := range c.Tables {
		if c.Tables[i].MaxSeats == 0 {
			c.Tables[i].MaxSeats = 6
		}
	}
}

// Validate rejects configurations the server cannot run.
func (c *Config) Validate() error {
	switch c.Auth.Mode {
	case "insecure":
	case "http":
		if c.Auth.URL == "" {
			return fmt.Errorf("auth mode http requires url")
		}
	default:
		return fmt.Errorf("unknown auth mode %q", c.Auth.Mode)
	}

	if c.Server.StartingBalance < 0 {
		return fmt.Errorf("starting_balance must not be negative")
	}

	if len(c.Tables) == 0 {
		return fmt.Errorf("at least one table must be configured")
	}
	for _, t := range c.Tables {
		if t.SmallBlind <= 0 {
			return fmt.Errorf("table %s: small blind must be positive", t.Name)
		}
		if t.BigBlind <= t.SmallBlind {
			return fmt.Errorf("table %s: big blind must be greater than small blind", t.Name)
		}
		if t.MaxSeats < 2 || t.MaxSeats > 10 {
			return fmt.Errorf("table %s: max seats must be between 2 and 10", t.Name)
		}
	}

	if tm := c.Timing; tm != nil {
		for name, v := range map[string]int{
			"turn_time_ms":           tm.TurnTimeMS,
			"away_timeouts_in_row":   tm.AwayTimeoutsInRow,
			"street_pre_delay_ms":    tm.StreetPreDelayMS,
			"board_card_interval_ms": tm.BoardCardIntervalMS,
			"street_post_delay_ms":   tm.StreetPostDelayMS,
			"win_by_fold_hold_ms":    tm.WinByFoldHoldMS,
			"showdown_hold_ms":       tm.ShowdownHoldMS,
		} {
			if v < 0 {
				return fmt.Errorf("timing %s must not be negative", name)
			}
		}
		if tm.BuyInMinBB < 0 || tm.BuyInMaxBB < 0 {
			return fmt.Errorf("buy-in bounds must not be negative")
		}
		if tm.BuyInMinBB > 0 && tm.BuyInMaxBB > 0 && tm.BuyInMinBB >= tm.BuyInMaxBB {
			return fmt.Errorf("buy_in_min_bb must be below buy_in_max_bb")
		}
	}
	return nil
}

// EngineConfig maps the timing block onto the engine's policy, falling
// back to stock values for unset fields.
func (c *Config) EngineConfig() engine.Config {
	out := engine.DefaultConfig()
	tm := c.Timing
	if tm == nil {
		return out
	}
	if tm.TurnTimeMS > 0 {
		out.TurnTime = time.Duration(tm.TurnTimeMS) * time.Millisecond
	}
	if tm.AwayTimeoutsInRow > 0 {
		out.AwayTimeoutsInRow = tm.AwayTimeoutsInRow
	}
	if tm.StreetPreDelayMS > 0 {
		out.StreetPreDelay = time.Duration(tm.StreetPreDelayMS) * time.Millisecond
	}
	if tm.BoardCardIntervalMS > 0 {
		out.BoardCardInterval = time.Duration(tm.BoardCardIntervalMS) * time.Millisecond
	}
	if tm.StreetPostDelayMS > 0 {
		out.StreetPostDelay = time.Duration(tm.StreetPostDelayMS) * time.Millisecond
	}
	if tm.WinByFoldHoldMS > 0 {
		out.WinByFoldHold = time.Duration(tm.WinByFoldHoldMS) * time.Millisecond
	}
	if tm.ShowdownHoldMS > 0 {
		out.ShowdownHold = time.Duration(tm.ShowdownHoldMS) * time.Millisecond
	}
	if tm.BuyInMinBB > 0 {
		out.BuyInMinBB = tm.BuyInMinBB
	}
	if tm.BuyInMaxBB > 0 {
		out.BuyInMaxBB = tm.BuyInMaxBB
	}
	return out
}

// StoreTables converts the table blocks into store rows.
func (c *Config) StoreTables() []*store.Table {
	out := make([]*store.Table, 0, len(c.Tables))
	for _, t := range c.Tables {
		out = append(out, &store.Table{
			ID:         t.Name,
			Name:       t.Name,
			SmallBlind: t.SmallBlind,
			BigBlind:   t.BigBlind,
			MaxSeats:   t.MaxSeats,
		})
	}
	return out
}

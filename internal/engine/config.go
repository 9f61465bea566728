package engine

import "time"

// Config carries the timing and buy-in policy shared by every table the
// engine runs. Zero fields are replaced by the matching DefaultConfig
// value when the engine is constructed.
type Config struct {
	// TurnTime is how long a seat may hold the action before the clock
	// acts for it.
	TurnTime time.Duration

	// AwayTimeoutsInRow is the consecutive-timeout count that marks a
	// player away and removes them at the next safe point.
	AwayTimeoutsInRow int

	// StreetPreDelay runs before the first card of a street is revealed,
	// BoardCardInterval between cards, StreetPostDelay after the last.
	StreetPreDelay    time.Duration
	BoardCardInterval time.Duration
	StreetPostDelay   time.Duration

	// WinByFoldHold and ShowdownHold pause the table after a hand ends
	// before the next one is attempted.
	WinByFoldHold time.Duration
	ShowdownHold  time.Duration

	// BuyInMinBB and BuyInMaxBB bound buy-ins and rebuys as multiples of
	// the table's big blind.
	BuyInMinBB int64
	BuyInMaxBB int64
}

// DefaultConfig is the stock cash-game pacing.
func DefaultConfig() Config {
	return Config{
		TurnTime:          15 * time.Second,
		AwayTimeoutsInRow: 2,
		StreetPreDelay:    250 * time.Millisecond,
		BoardCardInterval: 220 * time.Millisecond,
		StreetPostDelay:   350 * time.Millisecond,
		WinByFoldHold:     1500 * time.Millisecond,
		ShowdownHold:      2500 * time.Millisecond,
		BuyInMinBB:        20,
		BuyInMaxBB:        100,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.TurnTime <= 0 {
		c.TurnTime = def.TurnTime
	}
	if c.AwayTimeoutsInRow <= 0 {
		c.AwayTimeoutsInRow = def.AwayTimeoutsInRow
	}
	if c.StreetPreDelay < 0 {
		c.StreetPreDelay = def.StreetPreDelay
	}
	if c.BoardCardInterval < 0 {
		c.BoardCardInterval = def.BoardCardInterval
	}
	if c.StreetPostDelay < 0 {
		c.StreetPostDelay = def.StreetPostDelay
	}
	if c.WinByFoldHold < 0 {
		c.WinByFoldHold = def.WinByFoldHold
	}
	if c.ShowdownHold < 0 {
		c.ShowdownHold = def.ShowdownHold
	}
	if c.BuyInMinBB <= 0 {
		c.BuyInMinBB = def.BuyInMinBB
	}
	if c.BuyInMaxBB <= 0 {
		c.BuyInMaxBB = def.BuyInMaxBB
	}
	return c
}

// Package engine is the authoritative per-table hand engine: betting state
// machine, turn clock, board-reveal pacing, side-pot resolution and
// crash recovery. Canonical hand state lives in the shared KV so it survives
// restarts; timers and pacing loops live in process memory and are rebuilt
// from the KV on boot.
package engine

import (
	"sort"

	"github.com/openfelt/cardroom/internal/deck"
)

// Street is a betting round. Streets order from PREFLOP to SHOWDOWN.
type Street int

const (
	Preflop Street = iota
	Flop
	Turn
	River
	Showdown
)

var streetNames = [...]string{"PREFLOP", "FLOP", "TURN", "RIVER", "SHOWDOWN"}

func (s Street) String() string {
	if s < Preflop || s > Showdown {
		return "UNKNOWN"
	}
	return streetNames[s]
}

// MarshalText stores streets by name so runtime blobs stay readable.
func (s Street) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Street) UnmarshalText(text []byte) error {
	for i, name := range streetNames {
		if name == string(text) {
			*s = Street(i)
			return nil
		}
	}
	return Errf(CodeInvalidAction, "unknown street %q", text)
}

// Action is a player decision. The values are the wire strings clients send.
type Action string

const (
	ActionFold  Action = "FOLD"
	ActionCheck Action = "CHECK"
	ActionCall  Action = "CALL"
	ActionRaise Action = "RAISE"
)

// ParseAction validates a wire action string.
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionFold, ActionCheck, ActionCall, ActionRaise:
		return Action(s), nil
	default:
		return "", Errf(CodeInvalidAction, "unknown action %q", s)
	}
}

// SeatRuntime is the per-seat state of one hand.
type SeatRuntime struct {
	SeatNo        int    `json:"seatNo"`
	UserID        string `json:"userId"`
	Username      string `json:"username"`
	Stack         int64  `json:"stack"`
	Bet           int64  `json:"bet"`       // committed to the current street
	Committed     int64  `json:"committed"` // committed across the whole hand
	HasFolded     bool   `json:"hasFolded"`
	IsAllIn       bool   `json:"isAllIn"`
	IsSittingOut  bool   `json:"isSittingOut"`
	TimeoutsInRow int    `json:"timeoutsInRow"`
}

// CanAct reports whether the seat still owes decisions this hand: not
// folded, not all-in, chips behind. Sitting out does not remove the
// obligation; the engine acts for sitting-out seats silently.
func (s *SeatRuntime) CanAct() bool {
	return !s.HasFolded && !s.IsAllIn && s.Stack > 0
}

// Pot is the running pot. Side pots are derived at showdown from the
// per-seat committed totals, so only the sum is tracked here.
type Pot struct {
	Total int64 `json:"total"`
}

// TableRuntime is the canonical state of one hand in flight. It serializes
// to JSON under runtime:{tableId}; the blob round-trips losslessly.
type TableRuntime struct {
	TableID           string               `json:"tableId"`
	HandID            string               `json:"handId"`
	Round             Street               `json:"round"`
	DealerSeat        int                  `json:"dealerSeat"`
	CurrentTurnSeat   int                  `json:"currentTurnSeat"` // 0 = nobody to act
	TurnEndsAt        int64                `json:"turnEndsAt"`      // ms since epoch, 0 = no deadline
	Deck              []deck.Card          `json:"deck"`
	Board             []deck.Card          `json:"board"`
	PendingBoard      []deck.Card          `json:"pendingBoard"`
	IsDealingBoard    bool                 `json:"isDealingBoard"`
	AutoRunout        bool                 `json:"autoRunout"`
	Pot               Pot                  `json:"pot"`
	CurrentBet        int64                `json:"currentBet"`
	MinRaise          int64                `json:"minRaise"`
	LastAggressorSeat int                  `json:"lastAggressorSeat"` // 0 = none
	ActedThisRound    map[int]bool         `json:"actedThisRound"`
	Players           map[int]*SeatRuntime `json:"players"`
	SmallBlind        int64                `json:"smallBlind"`
	BigBlind          int64                `json:"bigBlind"`
	MaxSeats          int                  `json:"maxSeats"`
	StartedAt         int64                `json:"startedAt"` // ms since epoch
}

// SeatOf returns the dealt-in seat owned by userID, or nil.
func (r *TableRuntime) SeatOf(userID string) *SeatRuntime {
	for _, p := range r.Players {
		if p.UserID == userID {
			return p
		}
	}
	return nil
}

// Contenders returns the non-folded seats in seat order.
func (r *TableRuntime) Contenders() []*SeatRuntime {
	out := make([]*SeatRuntime, 0, len(r.Players))
	for _, p := range r.Players {
		if !p.HasFolded {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SeatNo < out[j].SeatNo })
	return out
}

// ToCall is the amount the seat must add to match the current bet.
func (r *TableRuntime) ToCall(s *SeatRuntime) int64 {
	if diff := r.CurrentBet - s.Bet; diff > 0 {
		return diff
	}
	return 0
}

// seatAfter returns the seat number i positions clockwise of from, wrapping
// around the table.
func (r *TableRuntime) seatAfter(from, i int) int {
	return (from-1+i)%r.MaxSeats + 1
}

// NextCanActSeat returns the first seat strictly after from (clockwise,
// wrapping) that still owes decisions, or 0 when none does.
func (r *TableRuntime) NextCanActSeat(from int) int {
	for i := 1; i <= r.MaxSeats; i++ {
		seat := r.seatAfter(from, i)
		if p, ok := r.Players[seat]; ok && p.CanAct() {
			return seat
		}
	}
	return 0
}

// NextDealtSeat returns the first dealt-in seat strictly after from
// (clockwise, wrapping), or 0 on an empty table.
func (r *TableRuntime) NextDealtSeat(from int) int {
	for i := 1; i <= r.MaxSeats; i++ {
		seat := r.seatAfter(from, i)
		if _, ok := r.Players[seat]; ok {
			return seat
		}
	}
	return 0
}

// FirstToAct returns the opening seat for a fresh postflop street. Heads-up
// the dealer is the small blind and acts first; with three or more players
// action starts at the first live seat clockwise of the dealer.
func (r *TableRuntime) FirstToAct() int {
	if len(r.Players) == 2 {
		if p, ok := r.Players[r.DealerSeat]; ok && p.CanAct() {
			return r.DealerSeat
		}
	}
	return r.NextCanActSeat(r.DealerSeat)
}

// DealerDistance orders seats by clockwise distance from the dealer's left:
// the seat immediately left of the dealer is 0, the dealer itself is last.
// The odd-chip rule pays the closest seat first.
func (r *TableRuntime) DealerDistance(seatNo int) int {
	d := (seatNo - r.DealerSeat - 1) % r.MaxSeats
	if d < 0 {
		d += r.MaxSeats
	}
	return d
}

package engine

import (
	"github.com/openfelt/cardroom/internal/deck"
	"github.com/openfelt/cardroom/internal/store"
)

// Snapshot is the public view of a table: everything any spectator may
// see. Hole cards, the remaining deck and undealt board cards never appear
// here; revealed showdown cards travel in SHOWDOWN_REVEAL events instead.
type Snapshot struct {
	TableID    string     `json:"tableId"`
	Name       string     `json:"name"`
	SmallBlind int64      `json:"smallBlind"`
	BigBlind   int64      `json:"bigBlind"`
	MaxSeats   int        `json:"maxSeats"`
	Seats      []SeatView `json:"seats"`
	Game       *GameView  `json:"game,omitempty"`
}

// SeatUser identifies the player in a seat.
type SeatUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// SeatView is one occupied seat as spectators see it.
type SeatView struct {
	SeatNo       int       `json:"seatNo"`
	User         *SeatUser `json:"user,omitempty"`
	Stack        int64     `json:"stack"`
	Bet          int64     `json:"bet"`
	HasFolded    bool      `json:"hasFolded"`
	IsAllIn      bool      `json:"isAllIn"`
	IsSittingOut bool      `json:"isSittingOut"`
	IsDealer     bool      `json:"isDealer"`
	IsTurn       bool      `json:"isTurn"`
}

// GameView is the hand in flight, present only while one runs.
type GameView struct {
	HandID         string      `json:"handId"`
	Round          Street      `json:"round"`
	Board          []deck.Card `json:"board"`
	Pot            Pot         `json:"pot"`
	CurrentBet     int64       `json:"currentBet"`
	MinRaise       int64       `json:"minRaise"`
	CurrentTurn    int         `json:"currentTurnSeat"`
	TurnEndsAt     int64       `json:"turnEndsAt"`
	IsDealingBoard bool        `json:"isDealingBoard"`
	AutoRunout     bool        `json:"autoRunout"`
}

// buildSnapshot projects the table row, its seat rows and the optional
// hand runtime into the public view. During a hand the runtime is
// authoritative for stacks and seat flags; seat rows cover everyone else.
func buildSnapshot(table *store.Table, seats []*store.Seat, run *TableRuntime) *Snapshot {
	snap := &Snapshot{
		TableID:    table.ID,
		Name:       table.Name,
		SmallBlind: table.SmallBlind,
		BigBlind:   table.BigBlind,
		MaxSeats:   table.MaxSeats,
		Seats:      make([]SeatView, 0, len(seats)),
	}
	for _, seat := range seats {
		view := SeatView{
			SeatNo:       seat.SeatNo,
			User:         &SeatUser{ID: seat.UserID, Username: seat.Username},
			Stack:        seat.Stack,
			IsSittingOut: seat.SittingOut,
		}
		if run != nil {
			if p, ok := run.Players[seat.SeatNo]; ok && p.UserID == seat.UserID {
				view.Stack = p.Stack
				view.Bet = p.Bet
				view.HasFolded = p.HasFolded
				view.IsAllIn = p.IsAllIn
				view.IsSittingOut = p.IsSittingOut
			}
			view.IsDealer = run.DealerSeat == seat.SeatNo
			view.IsTurn = run.CurrentTurnSeat == seat.SeatNo
		}
		snap.Seats = append(snap.Seats, view)
	}
	if run != nil {
		board := make([]deck.Card, len(run.Board))
		copy(board, run.Board)
		snap.Game = &GameView{
			HandID:         run.HandID,
			Round:          run.Round,
			Board:          board,
			Pot:            run.Pot,
			CurrentBet:     run.CurrentBet,
			MinRaise:       run.MinRaise,
			CurrentTurn:    run.CurrentTurnSeat,
			TurnEndsAt:     run.TurnEndsAt,
			IsDealingBoard: run.IsDealingBoard,
			AutoRunout:     run.AutoRunout,
		}
	}
	return snap
}

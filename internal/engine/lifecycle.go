package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/openfelt/cardroom/internal/deck"
	"github.com/openfelt/cardroom/internal/store"
)

// StartHand deals a new hand if the table is idle and two or more seats
// can play. It reports whether a hand was started; an idle table with too
// few players is not an error, the next sit or rebuy tries again.
func (e *Engine) StartHand(ctx context.Context, tableID string) (bool, error) {
	unlock := e.mux.lock(tableID)
	defer unlock()

	st, started, err := e.startHandLocked(ctx, tableID)
	if err != nil {
		return false, err
	}
	e.followUp(tableID, st)
	return started, nil
}

func (e *Engine) startHandLocked(ctx context.Context, tableID string) (*step, bool, error) {
	run, err := e.rt.LoadRuntime(ctx, tableID)
	if err != nil {
		return nil, false, err
	}
	if run != nil {
		return nil, false, nil
	}

	table, err := e.store.GetTable(ctx, tableID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, false, Errf(CodeTableNotFound, "table %s not found", tableID)
		}
		return nil, false, err
	}
	seats, err := e.store.ListSeats(ctx, tableID)
	if err != nil {
		return nil, false, err
	}

	departing := e.departingUsers(tableID)
	dealt := make([]*store.Seat, 0, len(seats))
	for _, s := range seats {
		if s.Stack > 0 && !s.SittingOut && !departing[s.UserID] {
			dealt = append(dealt, s)
		}
	}
	if len(dealt) < 2 {
		return nil, false, nil
	}

	// The KV lock closes the race with a sibling process starting the same
	// table; in-process callers are already serialized by the table mutex.
	ok, err := e.rt.AcquireStartLock(ctx, tableID)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	defer e.rt.ReleaseStartLock(ctx, tableID)

	run = &TableRuntime{
		TableID:        tableID,
		HandID:         uuid.NewString(),
		Round:          Preflop,
		ActedThisRound: make(map[int]bool),
		Players:        make(map[int]*SeatRuntime, len(dealt)),
		SmallBlind:     table.SmallBlind,
		BigBlind:       table.BigBlind,
		MinRaise:       table.BigBlind,
		MaxSeats:       table.MaxSeats,
		StartedAt:      e.now(),
	}
	for _, s := range dealt {
		run.Players[s.SeatNo] = &SeatRuntime{
			SeatNo:        s.SeatNo,
			UserID:        s.UserID,
			Username:      s.Username,
			Stack:         s.Stack,
			TimeoutsInRow: e.strikeCount(tableID, s.UserID),
		}
	}

	// Button moves to the next dealt-in seat. Heads-up the dealer posts the
	// small blind and acts first preflop.
	dealer := run.NextDealtSeat(0)
	if last, found, err := e.rt.LoadDealer(ctx, tableID); err != nil {
		return nil, false, err
	} else if found {
		dealer = run.NextDealtSeat(last)
	}
	run.DealerSeat = dealer

	var sbSeat, bbSeat int
	if len(dealt) == 2 {
		sbSeat = dealer
		bbSeat = run.NextDealtSeat(dealer)
	} else {
		sbSeat = run.NextDealtSeat(dealer)
		bbSeat = run.NextDealtSeat(sbSeat)
	}
	postBlind(run, sbSeat, run.SmallBlind)
	postBlind(run, bbSeat, run.BigBlind)
	run.CurrentBet = run.BigBlind
	run.LastAggressorSeat = bbSeat

	cards := deck.New()
	e.shuffle(cards)
	run.Deck = cards

	privates := make(map[string][]deck.Card, len(run.Players))
	for seatNo, n := sbSeat, 0; n < len(run.Players); seatNo, n = run.NextDealtSeat(seatNo), n+1 {
		p := run.Players[seatNo]
		drawn, rest := deck.Draw(run.Deck, 2)
		run.Deck = rest
		if err := e.rt.SaveHoleCards(ctx, tableID, run.HandID, p.UserID, drawn); err != nil {
			return nil, false, err
		}
		privates[p.UserID] = drawn
	}

	// Posting a blind is not acting: the big blind keeps the option even
	// when everyone just calls.
	if !isRoundSettled(run) {
		run.CurrentTurnSeat = run.NextCanActSeat(bbSeat)
		run.TurnEndsAt = e.now() + e.cfg.TurnTime.Milliseconds()
	}

	if err := e.rt.SaveDealer(ctx, tableID, dealer); err != nil {
		e.log.Error().Err(err).Str("table_id", tableID).Msg("dealer pointer write failed")
	}
	if err := e.persistHand(ctx, run); err != nil {
		return nil, false, err
	}

	e.mon.HandStarted(tableID, run.HandID, len(run.Players))
	e.bc.ToTable(tableID, &Event{
		Type:       EventHandStarted,
		TableID:    tableID,
		HandID:     run.HandID,
		DealerSeat: dealer,
	})
	for userID, hole := range privates {
		e.bc.ToUser(userID, &Event{
			Type:    EventPrivateCards,
			TableID: tableID,
			HandID:  run.HandID,
			Cards:   hole,
		})
	}
	e.broadcastSnapshot(ctx, tableID, run)
	e.log.Info().
		Str("table_id", tableID).
		Str("hand_id", run.HandID).
		Int("players", len(run.Players)).
		Int("dealer", dealer).
		Msg("hand started")

	if run.CurrentTurnSeat != 0 {
		return &step{
			kind: stepTurn,
			key:  TimerKey{HandID: run.HandID, Seat: run.CurrentTurnSeat, EndsAt: run.TurnEndsAt},
		}, true, nil
	}
	// Both blinds are already all-in; the hand runs itself out.
	st, err := e.settle(ctx, run, bbSeat)
	return st, true, err
}

// postBlind commits the blind, clamped to the stack. The table bet stays
// at the full blind even when the post is short.
func postBlind(run *TableRuntime, seatNo int, blind int64) {
	p := run.Players[seatNo]
	pay := blind
	if pay > p.Stack {
		pay = p.Stack
	}
	commit(run, p, pay)
}

func (e *Engine) departingUsers(tableID string) map[string]bool {
	e.depMu.Lock()
	defer e.depMu.Unlock()
	out := make(map[string]bool, len(e.departures[tableID]))
	for _, d := range e.departures[tableID] {
		out[d.userID] = true
	}
	return out
}

// holdThenNext pauses the table after a hand, lets queued departures out
// and tries to deal the next hand.
func (e *Engine) holdThenNext(tableID string, hold time.Duration) {
	ctx := e.ctx
	e.flushDepartures(ctx, tableID)
	if !e.sleep(ctx, hold) {
		return
	}
	if _, err := e.StartHand(ctx, tableID); err != nil {
		e.log.Error().Err(err).Str("table_id", tableID).Msg("next hand start failed")
	}
}

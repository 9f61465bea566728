package engine

import (
	"context"

	"github.com/openfelt/cardroom/internal/deck"
)

// advanceStreet closes the settled betting round and opens the next one.
// Street bets fold into the pot implicitly, the raise increment resets to
// the big blind and the drawn cards go through the paced reveal queue; the
// hand resolves directly when the river is already out.
func (e *Engine) advanceStreet(ctx context.Context, run *TableRuntime) (*step, error) {
	for _, p := range run.Players {
		p.Bet = 0
	}
	run.CurrentBet = 0
	run.MinRaise = run.BigBlind
	run.LastAggressorSeat = 0
	run.ActedThisRound = make(map[int]bool)
	run.CurrentTurnSeat = 0
	run.TurnEndsAt = 0
	run.Round++

	if run.Round >= Showdown {
		return e.endHandAtShowdown(ctx, run)
	}

	n := 1
	if run.Round == Flop {
		n = 3
	}
	drawn, rest := deck.Draw(run.Deck, n)
	run.Deck = rest
	run.PendingBoard = drawn
	run.IsDealingBoard = true
	if !run.AutoRunout && shouldAutoRunout(run) {
		run.AutoRunout = true
		e.log.Info().Str("table_id", run.TableID).Str("hand_id", run.HandID).Msg("auto runout engaged")
	}
	if err := e.persistHand(ctx, run); err != nil {
		return nil, err
	}
	e.broadcastSnapshot(ctx, run.TableID, run)
	return &step{kind: stepReveal}, nil
}

// endHandByFold pays the last contender the whole pot without a showdown.
func (e *Engine) endHandByFold(ctx context.Context, run *TableRuntime, winner *SeatRuntime) (*step, error) {
	winner.Stack += run.Pot.Total
	winners := []Winner{{Seat: winner.SeatNo, UserID: winner.UserID, Payout: run.Pot.Total}}
	if err := e.finishHand(ctx, run, EndReasonFold, nil, winners); err != nil {
		return nil, err
	}
	return &step{kind: stepEnded, hold: e.cfg.WinByFoldHold}, nil
}

// finishHand persists the final stacks, clears the hand from the KV and
// announces the result. Stacks are written before the runtime is deleted:
// if the write fails the runtime stays put and recovery resolves the hand
// again, arriving at the same stacks.
func (e *Engine) finishHand(ctx context.Context, run *TableRuntime, reason string, reveals []Reveal, winners []Winner) error {
	run.CurrentTurnSeat = 0
	run.TurnEndsAt = 0
	run.IsDealingBoard = false
	run.PendingBoard = nil

	stacks := make(map[int]int64, len(run.Players))
	for seatNo, p := range run.Players {
		stacks[seatNo] = p.Stack
	}
	if err := e.store.UpdateStacks(ctx, run.TableID, stacks); err != nil {
		// One retry; a second failure leaves the runtime for recovery.
		if err = e.store.UpdateStacks(ctx, run.TableID, stacks); err != nil {
			return err
		}
	}

	board := make([]deck.Card, len(run.Board))
	copy(board, run.Board)
	e.mon.HandEnded(HandEnd{
		TableID: run.TableID,
		HandID:  run.HandID,
		Board:   board,
		Pot:     run.Pot.Total,
		Reason:  reason,
		Winners: winners,
	})

	if err := e.rt.DeleteHand(ctx, run); err != nil {
		// The blob TTL reaps it eventually; a recovery in between replays
		// the resolution and lands on the same stacks.
		e.log.Error().Err(err).Str("hand_id", run.HandID).Msg("hand cleanup failed")
	}

	if len(reveals) > 0 {
		e.bc.ToTable(run.TableID, &Event{
			Type:    EventShowdownReveal,
			TableID: run.TableID,
			HandID:  run.HandID,
			Reveals: reveals,
		})
	}
	e.bc.ToTable(run.TableID, &Event{
		Type:    EventHandEnded,
		TableID: run.TableID,
		HandID:  run.HandID,
		Winners: winners,
		Pot:     run.Pot.Total,
		Reason:  reason,
	})
	e.broadcastSnapshot(ctx, run.TableID, nil)

	e.log.Info().
		Str("table_id", run.TableID).
		Str("hand_id", run.HandID).
		Str("reason", reason).
		Int64("pot", run.Pot.Total).
		Msg("hand ended")
	return nil
}

package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfelt/cardroom/internal/deck"
	"github.com/openfelt/cardroom/internal/store"
)

// reserveSeats plants seat rows matching a crafted runtime.
func reserveSeats(r *rig, stacks map[int]int64) {
	r.t.Helper()
	for seatNo, stack := range stacks {
		userID := fmt.Sprintf("u%d", seatNo)
		require.NoError(r.t, r.store.Reserve(r.ctx, &store.Seat{
			TableID:  testTable,
			SeatNo:   seatNo,
			UserID:   userID,
			Username: testNames[userID],
			Stack:    stack,
		}))
	}
}

// plantHand writes a crafted runtime and the players' hole cards into the
// KV, as if another process had crashed mid-hand.
func plantHand(r *rig, run *TableRuntime, holes map[string][]deck.Card) {
	r.t.Helper()
	require.NoError(r.t, r.eng.rt.SaveRuntime(r.ctx, run))
	for userID, cards := range holes {
		require.NoError(r.t, r.eng.rt.SaveHoleCards(r.ctx, testTable, run.HandID, userID, cards))
	}
}

func TestRecoverPastDueTurnActs(t *testing.T) {
	r := newRig(t)
	reserveSeats(r, map[int]int64{1: 995, 2: 990})

	full := deck.New()
	run := testRun(map[int]int64{1: 995, 2: 990})
	run.HandID = "h-recovered"
	run.DealerSeat = 1
	run.Players[1].Bet = 5
	run.Players[1].Committed = 5
	run.Players[2].Bet = 10
	run.Players[2].Committed = 10
	run.Pot.Total = 15
	run.CurrentBet = 10
	run.CurrentTurnSeat = 1
	run.TurnEndsAt = r.clock.Now().UnixMilli() - 5_000
	run.Deck = full[4:]
	plantHand(r, run, map[string][]deck.Card{"u1": full[0:2], "u2": full[2:4]})

	require.NoError(t, r.eng.Recover(r.ctx))

	key, armed := r.eng.turns.pending(testTable)
	require.True(t, armed, "an expired deadline is rearmed to fire at once")
	assert.Equal(t, run.TurnEndsAt, key.EndsAt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r.clock.Advance(time.Millisecond).MustWait(ctx)

	// Facing the big blind, the clock folds for the absent seat, which ends
	// the heads-up hand on the spot.
	assert.Nil(t, r.run())
	assert.EqualValues(t, 995, r.seatRow(1).Stack)
	assert.EqualValues(t, 1005, r.seatRow(2).Stack)

	ends := r.mon.handEnds()
	require.Len(t, ends, 1)
	assert.Equal(t, EndReasonFold, ends[0].Reason)
	assert.Equal(t, "h-recovered", ends[0].HandID)
}

func TestRecoverMidRevealFinishesStreet(t *testing.T) {
	r := newRig(t)
	reserveSeats(r, map[int]int64{1: 970, 2: 970})

	full := deck.New()
	run := testRun(map[int]int64{1: 970, 2: 970})
	run.HandID = "h-dealing"
	run.Round = Flop
	run.DealerSeat = 1
	run.Players[1].Committed = 30
	run.Players[2].Committed = 30
	run.Pot.Total = 60
	run.CurrentBet = 0
	run.PendingBoard = full[4:7]
	run.IsDealingBoard = true
	run.Deck = full[7:]
	plantHand(r, run, map[string][]deck.Card{"u1": full[0:2], "u2": full[2:4]})

	require.NoError(t, r.eng.Recover(r.ctx))

	r.waitForRound(Flop)
	got := r.run()
	assert.Equal(t, full[4:7], got.Board, "the queued cards finish dealing")
	assert.Empty(t, got.PendingBoard)
	assert.Equal(t, 1, got.CurrentTurnSeat, "heads-up the dealer opens the street")
	assert.Greater(t, got.TurnEndsAt, int64(0))
	r.waitForTimer(1)
}

func TestRecoverStalledBetweenTransitions(t *testing.T) {
	r := newRig(t)
	reserveSeats(r, map[int]int64{1: 970, 2: 970})

	full := deck.New()
	run := testRun(map[int]int64{1: 970, 2: 970})
	run.HandID = "h-stalled"
	run.Round = Flop
	run.DealerSeat = 1
	run.Players[1].Committed = 30
	run.Players[2].Committed = 30
	run.Pot.Total = 60
	run.CurrentBet = 0
	run.Board = full[4:7]
	run.Deck = full[7:]
	plantHand(r, run, map[string][]deck.Card{"u1": full[0:2], "u2": full[2:4]})

	require.NoError(t, r.eng.Recover(r.ctx))

	// Cards out, no turn, nothing pending: the reveal loop finds no work
	// and simply opens the betting round.
	r.waitForRound(Flop)
	assert.Equal(t, 1, r.run().CurrentTurnSeat)
	r.waitForTimer(1)
}

func TestRecoverAutoRunoutResolves(t *testing.T) {
	r := newRig(t)
	reserveSeats(r, map[int]int64{1: 0, 2: 0})

	full := deck.New()
	run := testRun(map[int]int64{1: 0, 2: 0})
	run.HandID = "h-runout"
	run.Round = River
	run.DealerSeat = 2
	run.Players[1].Committed = 1000
	run.Players[1].IsAllIn = true
	run.Players[2].Committed = 1000
	run.Players[2].IsAllIn = true
	run.Pot.Total = 2000
	run.AutoRunout = true
	run.Board = full[4:8]
	run.PendingBoard = full[8:9]
	run.IsDealingBoard = true
	run.Deck = full[9:]
	plantHand(r, run, map[string][]deck.Card{"u1": full[0:2], "u2": full[2:4]})

	require.NoError(t, r.eng.Recover(r.ctx))
	r.waitForHandEnd()

	ends := r.mon.handEnds()
	require.Len(t, ends, 1)
	assert.Equal(t, EndReasonShowdown, ends[0].Reason)
	assert.EqualValues(t, 2000, ends[0].Pot)
	assert.Len(t, ends[0].Board, 5)
	assert.EqualValues(t, 2000, r.seatRow(1).Stack+r.seatRow(2).Stack)
}

func TestRecoverNothingToDo(t *testing.T) {
	r := newRig(t)
	require.NoError(t, r.eng.Recover(r.ctx))
	_, armed := r.eng.turns.pending(testTable)
	assert.False(t, armed)
	assert.Empty(t, r.mon.handEnds())
}

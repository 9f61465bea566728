package engine

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfelt/cardroom/internal/deck"
)

// testRun builds a minimal runtime with the given stacks keyed by seat.
func testRun(stacks map[int]int64) *TableRuntime {
	run := &TableRuntime{
		TableID:        "t1",
		HandID:         "h1",
		Round:          Preflop,
		MaxSeats:       6,
		SmallBlind:     5,
		BigBlind:       10,
		MinRaise:       10,
		ActedThisRound: make(map[int]bool),
		Players:        make(map[int]*SeatRuntime),
	}
	for seatNo, stack := range stacks {
		run.Players[seatNo] = &SeatRuntime{
			SeatNo:   seatNo,
			UserID:   fmt.Sprintf("u%d", seatNo),
			Username: fmt.Sprintf("player%d", seatNo),
			Stack:    stack,
		}
	}
	return run
}

func TestTableRuntimeRoundTrip(t *testing.T) {
	run := testRun(map[int]int64{1: 990, 3: 0, 5: 480})
	run.Round = Turn
	run.DealerSeat = 3
	run.CurrentTurnSeat = 5
	run.TurnEndsAt = 1712345678901
	run.Deck = deck.MustParseMany("2C 9H KD")
	run.Board = deck.MustParseMany("AS KS 7D 2H")
	run.PendingBoard = deck.MustParseMany("QC")
	run.IsDealingBoard = true
	run.AutoRunout = true
	run.Pot = Pot{Total: 1530}
	run.CurrentBet = 500
	run.MinRaise = 250
	run.LastAggressorSeat = 1
	run.ActedThisRound = map[int]bool{1: true, 5: true}
	run.Players[3].HasFolded = true
	run.Players[3].IsAllIn = true
	run.Players[5].IsSittingOut = true
	run.Players[5].TimeoutsInRow = 1
	run.StartedAt = 1712345600000

	data, err := json.Marshal(run)
	require.NoError(t, err)

	var back TableRuntime
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, *run, back)
}

func TestStreetText(t *testing.T) {
	for s, want := range map[Street]string{
		Preflop:  "PREFLOP",
		Flop:     "FLOP",
		Turn:     "TURN",
		River:    "RIVER",
		Showdown: "SHOWDOWN",
	} {
		assert.Equal(t, want, s.String())
		var back Street
		require.NoError(t, back.UnmarshalText([]byte(want)))
		assert.Equal(t, s, back)
	}
	var s Street
	assert.Error(t, s.UnmarshalText([]byte("EIGHTH")))
}

func TestParseAction(t *testing.T) {
	for _, raw := range []string{"FOLD", "CHECK", "CALL", "RAISE"} {
		a, err := ParseAction(raw)
		require.NoError(t, err)
		assert.Equal(t, Action(raw), a)
	}
	_, err := ParseAction("BET")
	require.Error(t, err)
	assert.Equal(t, CodeInvalidAction, CodeOf(err))
}

func TestNextCanActSeat(t *testing.T) {
	run := testRun(map[int]int64{1: 100, 2: 100, 4: 100, 6: 100})
	run.Players[2].HasFolded = true
	run.Players[4].IsAllIn = true

	assert.Equal(t, 6, run.NextCanActSeat(1), "skips folded and all-in seats")
	assert.Equal(t, 1, run.NextCanActSeat(6), "wraps past the top seat")
	assert.Equal(t, 1, run.NextCanActSeat(2))

	run.Players[6].Stack = 0
	assert.Equal(t, 1, run.NextCanActSeat(1), "reaches itself when nobody else can act")
	run.Players[1].HasFolded = true
	assert.Equal(t, 0, run.NextCanActSeat(1), "zero when nobody can act")
}

func TestFirstToAct(t *testing.T) {
	ring := testRun(map[int]int64{1: 100, 2: 100, 3: 100})
	ring.DealerSeat = 3
	assert.Equal(t, 1, ring.FirstToAct(), "ring: first live seat after the dealer")

	hu := testRun(map[int]int64{2: 100, 5: 100})
	hu.DealerSeat = 5
	assert.Equal(t, 5, hu.FirstToAct(), "heads-up: the dealer opens every street")

	hu.Players[5].IsAllIn = true
	assert.Equal(t, 2, hu.FirstToAct(), "all-in dealer passes the open")
}

func TestDealerDistance(t *testing.T) {
	run := testRun(map[int]int64{1: 100, 2: 100, 3: 100})
	run.DealerSeat = 2

	assert.Equal(t, 0, run.DealerDistance(3), "seat left of the dealer is closest")
	assert.Equal(t, 4, run.DealerDistance(1))
	assert.Equal(t, 5, run.DealerDistance(2), "the dealer is farthest from itself")
}

func TestSeatOfAndContenders(t *testing.T) {
	run := testRun(map[int]int64{4: 100, 2: 100, 6: 100})
	run.Players[4].HasFolded = true

	require.NotNil(t, run.SeatOf("u2"))
	assert.Equal(t, 2, run.SeatOf("u2").SeatNo)
	assert.Nil(t, run.SeatOf("stranger"))

	cs := run.Contenders()
	require.Len(t, cs, 2)
	assert.Equal(t, 2, cs[0].SeatNo, "contenders come back in seat order")
	assert.Equal(t, 6, cs[1].SeatNo)
}

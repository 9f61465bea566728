package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfelt/cardroom/internal/kv"
	"github.com/openfelt/cardroom/internal/randutil"
	"github.com/openfelt/cardroom/internal/store"
)

const testTable = "t1"

var testNames = map[string]string{
	"u1": "alice",
	"u2": "bob",
	"u3": "carol",
	"u4": "dave",
}

// recBroadcaster records every event the engine emits.
type recBroadcaster struct {
	mu    sync.Mutex
	table []*Event
	user  map[string][]*Event
}

func newRecBroadcaster() *recBroadcaster {
	return &recBroadcaster{user: make(map[string][]*Event)}
}

func (b *recBroadcaster) ToTable(_ string, event *Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.table = append(b.table, event)
}

func (b *recBroadcaster) ToUser(userID string, event *Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.user[userID] = append(b.user[userID], event)
}

func (b *recBroadcaster) tableEvents(typ EventType) []*Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []*Event
	for _, ev := range b.table {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func (b *recBroadcaster) userEvents(userID string, typ EventType) []*Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []*Event
	for _, ev := range b.user[userID] {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func (b *recBroadcaster) anySnapshot(pred func(*Snapshot) bool) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ev := range b.table {
		if ev.Type == EventStateSnapshot && ev.Snapshot != nil && pred(ev.Snapshot) {
			return true
		}
	}
	return false
}

// recMonitor records hand ends and kicks.
type recMonitor struct {
	NullMonitor
	mu     sync.Mutex
	starts int
	fires  int
	ends   []HandEnd
	kicks  []string
}

func (m *recMonitor) HandStarted(string, string, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.starts++
}

func (m *recMonitor) HandEnded(end HandEnd) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ends = append(m.ends, end)
}

func (m *recMonitor) TimerFired(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fires++
}

func (m *recMonitor) PlayerKicked(_, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kicks = append(m.kicks, userID)
}

func (m *recMonitor) handEnds() []HandEnd {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]HandEnd, len(m.ends))
	copy(out, m.ends)
	return out
}

func (m *recMonitor) kicked() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.kicks))
	copy(out, m.kicks)
	return out
}

// rig is one engine over in-memory stores with a mock clock and a seeded
// deck. Street pacing delays are zero so reveal loops finish on their own;
// the holds are huge so a finished table stays put until the test advances
// the clock.
type rig struct {
	t     *testing.T
	ctx   context.Context
	eng   *Engine
	kv    *kv.Memory
	store *store.Memory
	clock *quartz.Mock
	bc    *recBroadcaster
	mon   *recMonitor
}

func newRig(t *testing.T, mutate ...func(*Config)) *rig {
	t.Helper()
	cfg := Config{
		TurnTime:          15 * time.Second,
		AwayTimeoutsInRow: 2,
		WinByFoldHold:     time.Hour,
		ShowdownHold:      time.Hour,
		BuyInMinBB:        20,
		BuyInMaxBB:        100,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	r := &rig{
		t:     t,
		ctx:   context.Background(),
		kv:    kv.NewMemory(),
		store: store.NewMemory(),
		clock: quartz.NewMock(t),
		bc:    newRecBroadcaster(),
		mon:   &recMonitor{},
	}
	r.eng = New(cfg, zerolog.Nop(), r.kv, r.store,
		WithClock(r.clock),
		WithRNG(randutil.NewSeeded(7)),
		WithBroadcaster(r.bc),
		WithMonitor(r.mon),
	)
	t.Cleanup(r.eng.Close)

	require.NoError(t, r.store.EnsureTable(r.ctx, &store.Table{
		ID:         testTable,
		Name:       "Test Table",
		SmallBlind: 5,
		BigBlind:   10,
		MaxSeats:   6,
	}))
	for userID, username := range testNames {
		require.NoError(t, r.store.EnsureUser(r.ctx, userID, username, 10_000))
	}
	return r
}

func (r *rig) sit(userID string, seatNo int, buyIn int64) {
	r.t.Helper()
	require.NoError(r.t, r.eng.Sit(r.ctx, testTable, userID, testNames[userID], seatNo, buyIn))
}

func (r *rig) apply(userID string, action Action, amount int64) {
	r.t.Helper()
	require.NoError(r.t, r.eng.Apply(r.ctx, testTable, userID, action, amount))
}

func (r *rig) run() *TableRuntime {
	r.t.Helper()
	run, err := r.eng.rt.LoadRuntime(r.ctx, testTable)
	require.NoError(r.t, err)
	return run
}

func (r *rig) seatRow(seatNo int) *store.Seat {
	r.t.Helper()
	seat, err := r.store.GetSeat(r.ctx, testTable, seatNo)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	require.NoError(r.t, err)
	return seat
}

func (r *rig) balance(userID string) int64 {
	r.t.Helper()
	b, err := r.store.Balance(r.ctx, userID)
	require.NoError(r.t, err)
	return b
}

// waitForRound waits until betting is open on the given street.
func (r *rig) waitForRound(street Street) {
	r.t.Helper()
	require.Eventually(r.t, func() bool {
		run, err := r.eng.rt.LoadRuntime(r.ctx, testTable)
		if err != nil || run == nil {
			return false
		}
		return run.Round == street && !run.IsDealingBoard && run.CurrentTurnSeat != 0
	}, 3*time.Second, 2*time.Millisecond, "street %s never opened", street)
}

// waitForTimer waits until the turn clock is armed for the given seat.
func (r *rig) waitForTimer(seatNo int) {
	r.t.Helper()
	require.Eventually(r.t, func() bool {
		key, ok := r.eng.turns.pending(testTable)
		return ok && key.Seat == seatNo
	}, 3*time.Second, 2*time.Millisecond, "turn timer for seat %d never armed", seatNo)
}

// fireTurn advances the mock clock by a full turn so the pending turn
// timer fires, and waits for the resulting transition to finish.
func (r *rig) fireTurn() {
	r.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r.clock.Advance(r.eng.cfg.TurnTime).MustWait(ctx)
}

func (r *rig) waitForHandEnd() {
	r.t.Helper()
	require.Eventually(r.t, func() bool {
		run, err := r.eng.rt.LoadRuntime(r.ctx, testTable)
		return err == nil && run == nil && len(r.mon.handEnds()) > 0
	}, 3*time.Second, 2*time.Millisecond, "hand never ended")
}

func TestHeadsUpFoldEndsHand(t *testing.T) {
	r := newRig(t)
	r.sit("u1", 1, 1000)
	r.sit("u2", 2, 1000)

	run := r.run()
	require.NotNil(t, run)
	assert.Equal(t, 1, run.DealerSeat, "first hand button sits on the lowest seat")
	assert.Equal(t, 1, run.CurrentTurnSeat, "heads-up the dealer posts small blind and opens")
	assert.EqualValues(t, 15, run.Pot.Total)
	assert.EqualValues(t, 10, run.CurrentBet)
	assert.EqualValues(t, 995, run.Players[1].Stack)
	assert.EqualValues(t, 990, run.Players[2].Stack)

	for _, userID := range []string{"u1", "u2"} {
		cards := r.bc.userEvents(userID, EventPrivateCards)
		require.Len(t, cards, 1)
		assert.Len(t, cards[0].Cards, 2)
	}

	r.apply("u1", ActionFold, 0)

	assert.Nil(t, r.run(), "hand state is gone once the hand ends")
	assert.EqualValues(t, 995, r.seatRow(1).Stack)
	assert.EqualValues(t, 1005, r.seatRow(2).Stack)

	ends := r.mon.handEnds()
	require.Len(t, ends, 1)
	assert.Equal(t, EndReasonFold, ends[0].Reason)
	assert.EqualValues(t, 15, ends[0].Pot)
	require.Len(t, ends[0].Winners, 1)
	assert.Equal(t, 2, ends[0].Winners[0].Seat)
	assert.EqualValues(t, 15, ends[0].Winners[0].Payout)

	endedEvents := r.bc.tableEvents(EventHandEnded)
	require.Len(t, endedEvents, 1)
	assert.Equal(t, EndReasonFold, endedEvents[0].Reason)

	keys, err := r.kv.Keys(r.ctx, "hand:*")
	require.NoError(t, err)
	assert.Empty(t, keys, "hole card keys are cleaned with the hand")
}

func TestRingBlindsAndOpeningOrder(t *testing.T) {
	r := newRig(t)
	r.sit("u1", 1, 1000)
	r.sit("u2", 2, 1000)
	r.sit("u3", 3, 1000)

	run := r.run()
	require.NotNil(t, run)
	assert.Equal(t, 1, run.DealerSeat)
	assert.EqualValues(t, 5, run.Players[2].Bet, "small blind posts left of the button")
	assert.EqualValues(t, 10, run.Players[3].Bet, "big blind posts next")
	assert.Equal(t, 1, run.CurrentTurnSeat, "under the gun opens")
	assert.Equal(t, 3, run.LastAggressorSeat)
	assert.Equal(t, r.clock.Now().UnixMilli()+r.eng.cfg.TurnTime.Milliseconds(), run.TurnEndsAt)
	assert.False(t, run.ActedThisRound[2], "posting a blind is not acting")
	assert.False(t, run.ActedThisRound[3])
}

func TestBigBlindKeepsOption(t *testing.T) {
	r := newRig(t)
	r.sit("u1", 1, 1000)
	r.sit("u2", 2, 1000)
	r.sit("u3", 3, 1000)

	r.apply("u1", ActionCall, 0)
	r.apply("u2", ActionCall, 0)

	run := r.run()
	require.NotNil(t, run)
	assert.Equal(t, Preflop, run.Round, "limps do not close the round")
	assert.Equal(t, 3, run.CurrentTurnSeat, "the big blind still holds the option")

	r.apply("u3", ActionCheck, 0)

	r.waitForRound(Flop)
	run = r.run()
	assert.Len(t, run.Board, 3)
	assert.EqualValues(t, 30, run.Pot.Total)
	assert.EqualValues(t, 0, run.CurrentBet)
	assert.EqualValues(t, 10, run.MinRaise, "the raise increment resets each street")
	assert.Equal(t, 2, run.CurrentTurnSeat, "postflop action starts left of the button")
	assert.Empty(t, run.ActedThisRound)
	for _, p := range run.Players {
		assert.EqualValues(t, 0, p.Bet)
	}
}

func TestRaiseAndCallsReachFlop(t *testing.T) {
	r := newRig(t)
	r.sit("u1", 1, 1000)
	r.sit("u2", 2, 1000)
	r.sit("u3", 3, 1000)

	r.apply("u1", ActionRaise, 30)

	run := r.run()
	assert.EqualValues(t, 30, run.CurrentBet)
	assert.EqualValues(t, 20, run.MinRaise)
	assert.Equal(t, 1, run.LastAggressorSeat)
	assert.Equal(t, 2, run.CurrentTurnSeat)

	r.apply("u2", ActionCall, 0)
	r.apply("u3", ActionCall, 0)

	r.waitForRound(Flop)
	run = r.run()
	assert.EqualValues(t, 90, run.Pot.Total)
	assert.EqualValues(t, 970, run.Players[1].Stack)
	assert.EqualValues(t, 970, run.Players[2].Stack)
	assert.EqualValues(t, 970, run.Players[3].Stack)
}

func TestTurnTimeoutActsAndCountsStrike(t *testing.T) {
	r := newRig(t)
	r.sit("u1", 1, 1000)
	r.sit("u2", 2, 1000)
	r.sit("u3", 3, 1000)

	r.apply("u1", ActionCall, 0)
	r.apply("u2", ActionCall, 0)
	r.apply("u3", ActionCheck, 0)

	r.waitForRound(Flop)
	r.waitForTimer(2)
	r.fireTurn()

	run := r.run()
	require.NotNil(t, run)
	assert.True(t, run.ActedThisRound[2], "the clock checked for the absent seat")
	assert.False(t, run.Players[2].HasFolded, "nothing to call, so no fold")
	assert.Equal(t, 1, run.Players[2].TimeoutsInRow)
	assert.Equal(t, 1, r.eng.strikeCount(testTable, "u2"))
	assert.Equal(t, 3, run.CurrentTurnSeat)

	r.apply("u3", ActionCheck, 0)
	r.apply("u1", ActionCheck, 0)

	r.waitForRound(Turn)
	r.apply("u2", ActionCheck, 0)

	run = r.run()
	assert.Equal(t, 0, run.Players[2].TimeoutsInRow, "a manual action clears the strikes")
	assert.Equal(t, 0, r.eng.strikeCount(testTable, "u2"))
}

func TestConsecutiveTimeoutsKickAtStreetEnd(t *testing.T) {
	r := newRig(t)
	r.sit("u1", 1, 1000)
	r.sit("u2", 2, 1000)
	r.sit("u3", 3, 1000)

	r.apply("u1", ActionCall, 0)
	r.apply("u2", ActionCall, 0)
	r.apply("u3", ActionCheck, 0)

	// Seat 1 acts last postflop and times out on two streets in a row.
	r.waitForRound(Flop)
	r.apply("u2", ActionCheck, 0)
	r.apply("u3", ActionCheck, 0)
	r.waitForTimer(1)
	r.fireTurn()

	r.waitForRound(Turn)
	r.apply("u2", ActionCheck, 0)
	r.apply("u3", ActionCheck, 0)
	r.waitForTimer(1)
	r.fireTurn()

	// The river reveal is the next safe point; the kick lands there.
	r.waitForRound(River)
	assert.Nil(t, r.seatRow(1), "kicked seat is released")
	assert.EqualValues(t, 9990, r.balance("u1"), "the remaining stack cashes out")
	assert.Equal(t, []string{"u1"}, r.mon.kicked())

	kickEvents := r.bc.tableEvents(EventPlayerKicked)
	require.Len(t, kickEvents, 1)
	assert.Equal(t, "u1", kickEvents[0].UserID)
	assert.Equal(t, DepartAwayKick, kickEvents[0].Reason)

	run := r.run()
	require.NotNil(t, run)
	assert.True(t, run.Players[1].HasFolded, "the kicked seat folds out of the live hand")
	assert.Len(t, run.Contenders(), 2)
	assert.Equal(t, 2, run.CurrentTurnSeat)

	// The survivors play out the river to showdown.
	r.apply("u2", ActionCheck, 0)
	r.apply("u3", ActionCheck, 0)
	r.waitForHandEnd()

	ends := r.mon.handEnds()
	require.Len(t, ends, 1)
	assert.Equal(t, EndReasonShowdown, ends[0].Reason)
	total := r.seatRow(2).Stack + r.seatRow(3).Stack
	assert.EqualValues(t, 2010, total, "the dead stake stays in the pot")
}

func TestManualActionCancelsPendingKick(t *testing.T) {
	r := newRig(t, func(cfg *Config) { cfg.AwayTimeoutsInRow = 1 })
	r.sit("u1", 1, 1000)
	r.sit("u2", 2, 1000)
	r.sit("u3", 3, 1000)

	r.apply("u1", ActionCall, 0)
	r.apply("u2", ActionCall, 0)
	r.apply("u3", ActionCheck, 0)

	r.waitForRound(Flop)
	r.waitForTimer(2)
	r.fireTurn()
	assert.True(t, r.eng.departingUsers(testTable)["u2"], "one timeout queues the kick")

	// A bet re-opens the street, giving seat 2 the turn back before the
	// next safe point. Acting on it withdraws the kick.
	r.apply("u3", ActionRaise, 20)
	r.apply("u1", ActionCall, 0)
	r.apply("u2", ActionCall, 0)
	assert.False(t, r.eng.departingUsers(testTable)["u2"])

	r.waitForRound(Turn)
	r.apply("u2", ActionCheck, 0)
	r.apply("u3", ActionCheck, 0)
	r.apply("u1", ActionCheck, 0)
	r.waitForRound(River)
	r.apply("u2", ActionCheck, 0)
	r.apply("u3", ActionCheck, 0)
	r.apply("u1", ActionCheck, 0)
	r.waitForHandEnd()

	assert.NotNil(t, r.seatRow(2), "seat 2 survives the hand")
	assert.Empty(t, r.mon.kicked())
	assert.Empty(t, r.bc.tableEvents(EventPlayerKicked))

	reveals := r.bc.tableEvents(EventShowdownReveal)
	require.Len(t, reveals, 1)
	assert.Len(t, reveals[0].Reveals, 3, "nobody folded, three hands on their backs")

	total := r.seatRow(1).Stack + r.seatRow(2).Stack + r.seatRow(3).Stack
	assert.EqualValues(t, 3000, total)
}

func TestAllInTriggersRunout(t *testing.T) {
	r := newRig(t)
	r.sit("u1", 1, 1000)
	r.sit("u2", 2, 1000)

	r.apply("u1", ActionRaise, 1000)
	r.apply("u2", ActionCall, 0)

	r.waitForHandEnd()

	ends := r.mon.handEnds()
	require.Len(t, ends, 1)
	assert.Equal(t, EndReasonShowdown, ends[0].Reason)
	assert.Len(t, ends[0].Board, 5, "the board runs out with betting closed")
	assert.EqualValues(t, 2000, ends[0].Pot)

	var paid int64
	for _, w := range ends[0].Winners {
		paid += w.Payout
	}
	assert.EqualValues(t, 2000, paid)
	assert.EqualValues(t, 2000, r.seatRow(1).Stack+r.seatRow(2).Stack)

	assert.True(t, r.bc.anySnapshot(func(s *Snapshot) bool {
		return s.Game != nil && s.Game.AutoRunout
	}), "spectators see the runout flag")

	reveals := r.bc.tableEvents(EventShowdownReveal)
	require.Len(t, reveals, 1)
	assert.Len(t, reveals[0].Reveals, 2)
}

func TestActionsBlockedWhileBoardDeals(t *testing.T) {
	r := newRig(t, func(cfg *Config) { cfg.BoardCardInterval = time.Minute })
	r.sit("u1", 1, 1000)
	r.sit("u2", 2, 1000)

	r.apply("u1", ActionRaise, 30)
	r.apply("u2", ActionCall, 0)

	require.Eventually(t, func() bool {
		run := r.run()
		return run != nil && run.IsDealingBoard && len(run.Board) == 1
	}, 3*time.Second, 2*time.Millisecond, "first flop card never landed")

	err := r.eng.Apply(r.ctx, testTable, "u1", ActionCheck, 0)
	require.Error(t, err)
	assert.Equal(t, CodeDealingBoard, CodeOf(err))

	_, armed := r.eng.turns.pending(testTable)
	assert.False(t, armed, "no turn deadline while cards are falling")
}

func TestSitOutActsImmediatelyOnOwnTurn(t *testing.T) {
	r := newRig(t)
	r.sit("u1", 1, 1000)
	r.sit("u2", 2, 1000)

	require.NoError(t, r.eng.SitOut(r.ctx, testTable, "u1"))

	assert.Nil(t, r.run(), "folding the small blind ends the heads-up hand")
	assert.EqualValues(t, 995, r.seatRow(1).Stack)
	assert.EqualValues(t, 1005, r.seatRow(2).Stack)
	assert.True(t, r.seatRow(1).SittingOut)

	started, err := r.eng.StartHand(r.ctx, testTable)
	require.NoError(t, err)
	assert.False(t, started, "one active player is not enough")

	// Coming back deals the next hand, with the button moved on.
	require.NoError(t, r.eng.SitIn(r.ctx, testTable, "u1"))
	run := r.run()
	require.NotNil(t, run)
	assert.Equal(t, 2, run.DealerSeat, "the button rotates between hands")
	assert.False(t, r.seatRow(1).SittingOut)
}

func TestHoldThenNextHandDeals(t *testing.T) {
	r := newRig(t)
	r.sit("u1", 1, 1000)
	r.sit("u2", 2, 1000)

	first := r.run().HandID
	r.apply("u1", ActionFold, 0)
	require.Nil(t, r.run())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r.clock.Advance(r.eng.cfg.WinByFoldHold).MustWait(ctx)

	require.Eventually(t, func() bool {
		run := r.run()
		return run != nil && run.HandID != first
	}, 3*time.Second, 2*time.Millisecond, "next hand never dealt")
	assert.Equal(t, 2, r.run().DealerSeat)
}

func TestLeaveBetweenHands(t *testing.T) {
	r := newRig(t)
	r.sit("u1", 1, 400)

	pending, err := r.eng.Leave(r.ctx, testTable, "u1")
	require.NoError(t, err)
	assert.False(t, pending)
	assert.Nil(t, r.seatRow(1))
	assert.EqualValues(t, 10_000, r.balance("u1"))
	assert.EqualValues(t, 0, r.store.LedgerSum("u1"), "buy-in and cash-out cancel out")

	_, err = r.eng.Leave(r.ctx, testTable, "u1")
	require.Error(t, err)
	assert.Equal(t, CodeNotSeated, CodeOf(err))
}

func TestLeaveMidHandDefersToHandEnd(t *testing.T) {
	r := newRig(t)
	r.sit("u1", 1, 1000)
	r.sit("u2", 2, 1000)

	pending, err := r.eng.Leave(r.ctx, testTable, "u2")
	require.NoError(t, err)
	assert.True(t, pending, "a dealt-in player leaves at the next safe point")
	require.Len(t, r.bc.userEvents("u2", EventLeavePending), 1)
	require.NotNil(t, r.seatRow(2), "the seat stays until then")

	// The hand folds out to the leaver; they collect the pot on the way out.
	r.apply("u1", ActionFold, 0)

	require.Eventually(t, func() bool {
		return r.seatRow(2) == nil
	}, 3*time.Second, 2*time.Millisecond, "departing seat never released")
	assert.EqualValues(t, 10_005, r.balance("u2"))
	assert.Empty(t, r.bc.tableEvents(EventPlayerKicked), "a voluntary leave is not a kick")
}

func TestDepartingLastContenderTakesPotFirst(t *testing.T) {
	r := newRig(t)
	r.sit("u1", 1, 1000)
	r.sit("u2", 2, 1000)
	r.sit("u3", 3, 1000)

	r.apply("u1", ActionFold, 0)

	pending, err := r.eng.Leave(r.ctx, testTable, "u2")
	require.NoError(t, err)
	assert.True(t, pending)
	pending, err = r.eng.Leave(r.ctx, testTable, "u3")
	require.NoError(t, err)
	assert.True(t, pending)

	// Both leavers still play. Their limp and check close the street, and
	// the flop boundary lets them both out: first out folds, which leaves
	// the second as last contender, so the hand settles to them before the
	// cash-out.
	r.apply("u2", ActionCall, 0)
	r.apply("u3", ActionCheck, 0)

	require.Eventually(t, func() bool {
		return r.seatRow(2) == nil && r.seatRow(3) == nil && r.run() == nil
	}, 3*time.Second, 2*time.Millisecond, "departures never flushed")

	assert.EqualValues(t, 9_990, r.balance("u2"), "first leaver forfeits the committed blind")
	assert.EqualValues(t, 10_010, r.balance("u3"), "last contender collects the pot on the way out")

	ends := r.mon.handEnds()
	require.Len(t, ends, 1)
	assert.Equal(t, EndReasonFold, ends[0].Reason)
	require.Len(t, ends[0].Winners, 1)
	assert.Equal(t, 3, ends[0].Winners[0].Seat)
	assert.EqualValues(t, 20, ends[0].Winners[0].Payout)

	require.NotNil(t, r.seatRow(1), "the folded player keeps their seat")
	assert.EqualValues(t, 1000, r.seatRow(1).Stack)
}

func TestRebuy(t *testing.T) {
	t.Run("between hands", func(t *testing.T) {
		r := newRig(t)
		r.sit("u1", 1, 400)

		require.NoError(t, r.eng.Rebuy(r.ctx, testTable, "u1", 500))
		assert.EqualValues(t, 900, r.seatRow(1).Stack)
		assert.EqualValues(t, 9_100, r.balance("u1"))

		err := r.eng.Rebuy(r.ctx, testTable, "u1", 200)
		require.Error(t, err)
		assert.Equal(t, CodeRebuyExceedsMax, CodeOf(err))

		err = r.eng.Rebuy(r.ctx, testTable, "u1", 0)
		require.Error(t, err)
		assert.Equal(t, CodeInvalidAmount, CodeOf(err))

		err = r.eng.Rebuy(r.ctx, testTable, "u2", 100)
		require.Error(t, err)
		assert.Equal(t, CodeNotSeated, CodeOf(err))
	})

	t.Run("mid-hand", func(t *testing.T) {
		r := newRig(t)
		r.sit("u1", 1, 500)
		r.sit("u2", 2, 1000)
		r.sit("u3", 3, 1000)

		err := r.eng.Rebuy(r.ctx, testTable, "u2", 100)
		require.Error(t, err)
		assert.Equal(t, CodeHandInProgress, CodeOf(err), "live seats wait for the hand to end")

		// A folded seat may top up while the others play on.
		r.apply("u1", ActionFold, 0)
		require.NoError(t, r.eng.Rebuy(r.ctx, testTable, "u1", 300))
		assert.EqualValues(t, 800, r.run().Players[1].Stack)

		r.apply("u2", ActionFold, 0)
		r.waitForHandEnd()
		assert.EqualValues(t, 800, r.seatRow(1).Stack, "the rebuy survives the end-of-hand stack write")
	})
}

func TestSitRejections(t *testing.T) {
	r := newRig(t)

	err := r.eng.Sit(r.ctx, "nowhere", "u1", "alice", 1, 400)
	require.Error(t, err)
	assert.Equal(t, CodeTableNotFound, CodeOf(err))

	for _, seatNo := range []int{0, 7} {
		err = r.eng.Sit(r.ctx, testTable, "u1", "alice", seatNo, 400)
		require.Error(t, err)
		assert.Equal(t, CodeSeatNotFound, CodeOf(err))
	}

	err = r.eng.Sit(r.ctx, testTable, "u1", "alice", 1, 100)
	require.Error(t, err)
	assert.Equal(t, CodeBuyinTooSmall, CodeOf(err))

	err = r.eng.Sit(r.ctx, testTable, "u1", "alice", 1, 1500)
	require.Error(t, err)
	assert.Equal(t, CodeBuyinTooLarge, CodeOf(err))

	r.sit("u1", 1, 400)
	err = r.eng.Sit(r.ctx, testTable, "u2", "bob", 1, 400)
	require.Error(t, err)
	assert.Equal(t, CodeSeatTaken, CodeOf(err))

	err = r.eng.Sit(r.ctx, testTable, "u1", "alice", 2, 400)
	require.Error(t, err)
	assert.Equal(t, CodeAlreadySeated, CodeOf(err))
	assert.EqualValues(t, 9_600, r.balance("u1"), "the rejected buy-in is refunded")

	require.NoError(t, r.store.EnsureUser(r.ctx, "u9", "eve", 50))
	err = r.eng.Sit(r.ctx, testTable, "u9", "eve", 3, 400)
	require.Error(t, err)
	assert.Equal(t, CodeInsufficientFunds, CodeOf(err))
}

func TestApplyRejections(t *testing.T) {
	t.Run("no hand", func(t *testing.T) {
		r := newRig(t)
		err := r.eng.Apply(r.ctx, testTable, "u1", ActionCheck, 0)
		require.Error(t, err)
		assert.Equal(t, CodeNoHandRunning, CodeOf(err))
	})

	t.Run("heads-up", func(t *testing.T) {
		r := newRig(t)
		r.sit("u1", 1, 1000)
		r.sit("u2", 2, 1000)

		// Sat down mid-hand: seated, but not dealt in.
		r.sit("u3", 3, 1000)
		require.Nil(t, r.run().SeatOf("u3"))
		err := r.eng.Apply(r.ctx, testTable, "u3", ActionCheck, 0)
		require.Error(t, err)
		assert.Equal(t, CodeNotSeated, CodeOf(err))

		err = r.eng.Apply(r.ctx, testTable, "u2", ActionCheck, 0)
		require.Error(t, err)
		assert.Equal(t, CodeNotYourTurn, CodeOf(err))

		err = r.eng.Apply(r.ctx, testTable, "u1", ActionCheck, 0)
		require.Error(t, err)
		assert.Equal(t, CodeCannotCheck, CodeOf(err))
		assert.Equal(t, 1, r.run().CurrentTurnSeat, "a rejected action keeps the turn in place")
	})

	t.Run("already folded", func(t *testing.T) {
		r := newRig(t)
		r.sit("u1", 1, 1000)
		r.sit("u2", 2, 1000)
		r.sit("u3", 3, 1000)

		r.apply("u1", ActionFold, 0)
		err := r.eng.Apply(r.ctx, testTable, "u1", ActionFold, 0)
		require.Error(t, err)
		assert.Equal(t, CodeAlreadyFolded, CodeOf(err))
	})
}

func TestSitMovesTables(t *testing.T) {
	r := newRig(t)
	require.NoError(t, r.store.EnsureTable(r.ctx, &store.Table{
		ID:         "t2",
		Name:       "Second Table",
		SmallBlind: 5,
		BigBlind:   10,
		MaxSeats:   6,
	}))

	r.sit("u1", 1, 400)
	require.NoError(t, r.eng.Sit(r.ctx, "t2", "u1", "alice", 4, 300))

	assert.Nil(t, r.seatRow(1), "the idle seat settles before the move")
	seat, err := r.store.GetSeat(r.ctx, "t2", 4)
	require.NoError(t, err)
	assert.Equal(t, "u1", seat.UserID)
	assert.EqualValues(t, 9_700, r.balance("u1"))

	// Mid-hand the move is refused; the player stays dealt in where they are.
	r.sit("u2", 2, 1000)
	require.NoError(t, r.eng.Sit(r.ctx, testTable, "u3", "carol", 3, 1000))
	err = r.eng.Sit(r.ctx, "t2", "u2", "bob", 5, 300)
	require.Error(t, err)
	assert.Equal(t, CodeHandInProgress, CodeOf(err))
	require.NotNil(t, r.seatRow(2))
	assert.False(t, r.eng.departingUsers(testTable)["u2"], "a refused move must not schedule a leave")
	_, err = r.store.GetSeat(r.ctx, "t2", 5)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSnapshotPublicView(t *testing.T) {
	r := newRig(t)
	r.sit("u1", 1, 1000)
	r.sit("u2", 2, 1000)

	snap, err := r.eng.Snapshot(r.ctx, testTable)
	require.NoError(t, err)
	assert.Equal(t, testTable, snap.TableID)
	assert.EqualValues(t, 5, snap.SmallBlind)
	require.NotNil(t, snap.Game)
	assert.Equal(t, r.run().HandID, snap.Game.HandID)
	assert.Equal(t, Preflop, snap.Game.Round)
	assert.Empty(t, snap.Game.Board)

	require.Len(t, snap.Seats, 2)
	for _, seat := range snap.Seats {
		require.NotNil(t, seat.User)
		assert.Equal(t, seat.SeatNo == 1, seat.IsDealer)
		assert.Equal(t, seat.SeatNo == 1, seat.IsTurn)
	}

	_, err = r.eng.Snapshot(r.ctx, "nowhere")
	require.Error(t, err)
	assert.Equal(t, CodeTableNotFound, CodeOf(err))
}

func TestHoleCardsPrivateLookup(t *testing.T) {
	r := newRig(t)
	r.sit("u1", 1, 1000)
	r.sit("u2", 2, 1000)

	run := r.run()
	cards, handID, err := r.eng.HoleCards(r.ctx, testTable, "u1")
	require.NoError(t, err)
	assert.Equal(t, run.HandID, handID)
	require.Len(t, cards, 2)

	sent := r.bc.userEvents("u1", EventPrivateCards)
	require.Len(t, sent, 1)
	assert.Equal(t, sent[0].Cards, cards, "the lookup matches what was dealt")

	cards, handID, err = r.eng.HoleCards(r.ctx, testTable, "u4")
	require.NoError(t, err)
	assert.Nil(t, cards)
	assert.Empty(t, handID)
}

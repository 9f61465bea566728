package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	rand "math/rand/v2"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"

	"github.com/openfelt/cardroom/internal/deck"
	"github.com/openfelt/cardroom/internal/kv"
	"github.com/openfelt/cardroom/internal/randutil"
	"github.com/openfelt/cardroom/internal/store"
)

// Engine runs every table in the process. One engine instance owns the
// turn timers, pacing loops and departure queues; the hand state itself
// lives in the KV so another instance can pick it up after a crash.
type Engine struct {
	cfg   Config
	log   zerolog.Logger
	rt    *runtimeStore
	store store.Store
	clock quartz.Clock
	bc    Broadcaster
	mon   Monitor
	mux   *tableMux
	turns *turnClock

	rngMu sync.Mutex
	rng   *rand.Rand

	revealMu  sync.Mutex
	revealing map[string]chan struct{}

	depMu      sync.Mutex
	departures map[string][]departure

	strikeMu sync.Mutex
	strikes  map[string]map[string]int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type departure struct {
	userID string
	reason string
}

// Option configures the engine.
type Option func(*Engine)

// WithClock injects the clock. Tests pass a quartz mock.
func WithClock(clock quartz.Clock) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithRNG injects the shuffle RNG. Tests pass a seeded source.
func WithRNG(rng *rand.Rand) Option {
	return func(e *Engine) { e.rng = rng }
}

// WithBroadcaster wires the event sink, usually the websocket hub.
func WithBroadcaster(bc Broadcaster) Option {
	return func(e *Engine) { e.bc = bc }
}

// WithMonitor attaches an activity monitor. Use MultiMonitor to attach
// several.
func WithMonitor(mon Monitor) Option {
	return func(e *Engine) { e.mon = mon }
}

// New builds an engine over the given KV and relational store.
func New(cfg Config, logger zerolog.Logger, kvs kv.Store, st store.Store, opts ...Option) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		cfg:        cfg.withDefaults(),
		log:        logger.With().Str("component", "engine").Logger(),
		rt:         &runtimeStore{kv: kvs},
		store:      st,
		clock:      quartz.NewReal(),
		bc:         NopBroadcaster{},
		mon:        NullMonitor{},
		mux:        newTableMux(),
		rng:        randutil.New(),
		revealing:  make(map[string]chan struct{}),
		departures: make(map[string][]departure),
		strikes:    make(map[string]map[string]int),
		ctx:        ctx,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.turns = newTurnClock(e.clock, e.log, e.onTurnTimeout)
	return e
}

// Close stops the timers and waits for pacing loops to drain.
func (e *Engine) Close() {
	e.cancel()
	e.turns.StopAll()
	e.wg.Wait()
}

func (e *Engine) now() int64 {
	return e.clock.Now().UnixMilli()
}

// sleep waits for d on the engine clock. It returns false when the engine
// is shutting down.
func (e *Engine) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	fired := make(chan struct{})
	timer := e.clock.AfterFunc(d, func() { close(fired) })
	defer timer.Stop()
	select {
	case <-fired:
		return true
	case <-ctx.Done():
		return false
	}
}

func (e *Engine) spawn(f func()) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		f()
	}()
}

// shuffle deals a fresh deck. The RNG is shared across tables, so draws
// are serialized.
func (e *Engine) shuffle(cards []deck.Card) {
	e.rngMu.Lock()
	deck.Shuffle(cards, e.rng)
	e.rngMu.Unlock()
}

// followUp runs the side effects a state step asks for: arming or
// disarming the turn timer, spawning a reveal loop, or scheduling the next
// hand after a hold. Callers invoke it while still holding the table lock
// so a faster client cannot slip an action in before the timer is armed.
func (e *Engine) followUp(tableID string, st *step) {
	if st == nil {
		return
	}
	switch st.kind {
	case stepTurn:
		e.turns.Schedule(tableID, st.key)
	case stepReveal:
		e.turns.Stop(tableID)
		e.spawnReveal(tableID)
	case stepEnded:
		e.turns.Stop(tableID)
		hold := st.hold
		e.spawn(func() { e.holdThenNext(tableID, hold) })
	}
}

// step tells followUp what a locked state transition produced.
type step struct {
	kind stepKind
	key  TimerKey      // stepTurn: the armed deadline
	hold time.Duration // stepEnded: pause before the next hand
}

type stepKind int

const (
	stepNone stepKind = iota
	stepTurn
	stepReveal
	stepEnded
)

// persistHand writes the runtime blob and mirrors the live stacks onto the
// seat rows, so the relational view stays at most one action behind.
func (e *Engine) persistHand(ctx context.Context, run *TableRuntime) error {
	if err := e.rt.SaveRuntime(ctx, run); err != nil {
		return err
	}
	stacks := make(map[int]int64, len(run.Players))
	for seatNo, p := range run.Players {
		stacks[seatNo] = p.Stack
	}
	if err := e.store.UpdateStacks(ctx, run.TableID, stacks); err != nil {
		return fmt.Errorf("update stacks %s: %w", run.TableID, err)
	}
	return nil
}

func (e *Engine) buildSnapshot(ctx context.Context, tableID string, run *TableRuntime) (*Snapshot, error) {
	table, err := e.store.GetTable(ctx, tableID)
	if err != nil {
		return nil, fmt.Errorf("load table %s: %w", tableID, err)
	}
	seats, err := e.store.ListSeats(ctx, tableID)
	if err != nil {
		return nil, fmt.Errorf("list seats %s: %w", tableID, err)
	}
	return buildSnapshot(table, seats, run), nil
}

// broadcastSnapshot pushes the current public view to the table room and
// refreshes the cached copy joiners read.
func (e *Engine) broadcastSnapshot(ctx context.Context, tableID string, run *TableRuntime) {
	snap, err := e.buildSnapshot(ctx, tableID, run)
	if err != nil {
		e.log.Error().Err(err).Str("table_id", tableID).Msg("snapshot build failed")
		return
	}
	if data, err := json.Marshal(snap); err == nil {
		if err := e.rt.SavePublicState(ctx, tableID, data); err != nil {
			e.log.Debug().Err(err).Str("table_id", tableID).Msg("snapshot cache write failed")
		}
	}
	e.bc.ToTable(tableID, &Event{Type: EventStateSnapshot, TableID: tableID, Snapshot: snap})
}

// Snapshot returns the public view of a table. It serves the cached copy
// when fresh and rebuilds it otherwise; no table lock is taken.
func (e *Engine) Snapshot(ctx context.Context, tableID string) (*Snapshot, error) {
	if data, err := e.rt.LoadPublicState(ctx, tableID); err == nil {
		var snap Snapshot
		if err := json.Unmarshal(data, &snap); err == nil {
			return &snap, nil
		}
	}
	run, err := e.rt.LoadRuntime(ctx, tableID)
	if err != nil {
		return nil, err
	}
	snap, err := e.buildSnapshot(ctx, tableID, run)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, Errf(CodeTableNotFound, "table %s not found", tableID)
		}
		return nil, err
	}
	if data, err := json.Marshal(snap); err == nil {
		_ = e.rt.SavePublicState(ctx, tableID, data)
	}
	return snap, nil
}

// HoleCards returns the caller's private cards for the hand in flight, or
// nil when the caller is not dealt in. Used on connect and reconnect.
func (e *Engine) HoleCards(ctx context.Context, tableID, userID string) ([]deck.Card, string, error) {
	run, err := e.rt.LoadRuntime(ctx, tableID)
	if err != nil || run == nil {
		return nil, "", err
	}
	if run.SeatOf(userID) == nil {
		return nil, "", nil
	}
	cards, err := e.rt.LoadHoleCards(ctx, tableID, run.HandID, userID)
	if err != nil {
		return nil, "", err
	}
	return cards, run.HandID, nil
}

// Strike bookkeeping. Consecutive timeouts persist across hands in
// process memory; the per-hand count inside the runtime blob is seeded
// from here at deal time so it survives a crash mid-hand.

func (e *Engine) strikeCount(tableID, userID string) int {
	e.strikeMu.Lock()
	defer e.strikeMu.Unlock()
	return e.strikes[tableID][userID]
}

func (e *Engine) rememberStrikes(run *TableRuntime) {
	e.strikeMu.Lock()
	defer e.strikeMu.Unlock()
	byUser, ok := e.strikes[run.TableID]
	if !ok {
		byUser = make(map[string]int)
		e.strikes[run.TableID] = byUser
	}
	for _, p := range run.Players {
		byUser[p.UserID] = p.TimeoutsInRow
	}
}

func (e *Engine) dropStrikes(tableID, userID string) {
	e.strikeMu.Lock()
	defer e.strikeMu.Unlock()
	delete(e.strikes[tableID], userID)
}

// Departure queue. Leaves and away kicks are deferred to the next safe
// point so pot math never loses a committed stake mid-street.

func (e *Engine) queueDeparture(tableID, userID, reason string) {
	e.depMu.Lock()
	defer e.depMu.Unlock()
	for _, d := range e.departures[tableID] {
		if d.userID == userID {
			return
		}
	}
	e.departures[tableID] = append(e.departures[tableID], departure{userID: userID, reason: reason})
}

func (e *Engine) takeDepartures(tableID string) []departure {
	e.depMu.Lock()
	defer e.depMu.Unlock()
	out := e.departures[tableID]
	delete(e.departures, tableID)
	return out
}

func (e *Engine) requeueDeparture(tableID string, d departure) {
	e.depMu.Lock()
	defer e.depMu.Unlock()
	e.departures[tableID] = append([]departure{d}, e.departures[tableID]...)
}

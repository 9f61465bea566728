package engine

import (
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"
)

// TimerKey identifies one turn deadline. A timer is keyed by the hand, the
// seat holding the action and the exact deadline, so a fire can be matched
// against the current runtime and dropped when the state has moved on.
type TimerKey struct {
	HandID string
	Seat   int
	EndsAt int64 // ms since epoch
}

type turnTimer struct {
	key   TimerKey
	timer *quartz.Timer
}

// turnClock runs at most one pending turn timer per table. Scheduling the
// key already pending is a no-op; scheduling a different key replaces the
// old timer. Fires for superseded keys are swallowed.
type turnClock struct {
	clock  quartz.Clock
	log    zerolog.Logger
	onFire func(tableID string, key TimerKey)

	mu     sync.Mutex
	timers map[string]*turnTimer
}

func newTurnClock(clock quartz.Clock, log zerolog.Logger, onFire func(string, TimerKey)) *turnClock {
	return &turnClock{
		clock:  clock,
		log:    log,
		onFire: onFire,
		timers: make(map[string]*turnTimer),
	}
}

// Schedule arms the timer for key. Past-due deadlines fire immediately,
// which is how recovery catches up after a crash.
func (tc *turnClock) Schedule(tableID string, key TimerKey) {
	if key.EndsAt <= 0 {
		return
	}
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if cur, ok := tc.timers[tableID]; ok {
		if cur.key == key {
			return
		}
		cur.timer.Stop()
	}
	delay := time.Duration(key.EndsAt-tc.clock.Now().UnixMilli()) * time.Millisecond
	if delay < 0 {
		delay = 0
	}
	tc.timers[tableID] = &turnTimer{
		key:   key,
		timer: tc.clock.AfterFunc(delay, func() { tc.fire(tableID, key) }),
	}
	tc.log.Debug().Str("table_id", tableID).Int("seat", key.Seat).Dur("delay", delay).Msg("turn timer armed")
}

func (tc *turnClock) fire(tableID string, key TimerKey) {
	tc.mu.Lock()
	cur, ok := tc.timers[tableID]
	if !ok || cur.key != key {
		tc.mu.Unlock()
		return
	}
	delete(tc.timers, tableID)
	tc.mu.Unlock()
	tc.onFire(tableID, key)
}

// Stop cancels the table's pending timer, if any.
func (tc *turnClock) Stop(tableID string) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if cur, ok := tc.timers[tableID]; ok {
		cur.timer.Stop()
		delete(tc.timers, tableID)
	}
}

// StopAll cancels every pending timer. Used on shutdown.
func (tc *turnClock) StopAll() {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	for id, cur := range tc.timers {
		cur.timer.Stop()
		delete(tc.timers, id)
	}
}

// pending returns the armed key for a table. Test hook.
func (tc *turnClock) pending(tableID string) (TimerKey, bool) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if cur, ok := tc.timers[tableID]; ok {
		return cur.key, true
	}
	return TimerKey{}, false
}

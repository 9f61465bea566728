package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/openfelt/cardroom/internal/deck"
	"github.com/openfelt/cardroom/internal/kv"
)

const (
	runtimeTTL     = time.Hour
	publicStateTTL = 30 * time.Second
	startLockTTL   = 5 * time.Second
)

func runtimeKey(tableID string) string   { return "runtime:" + tableID }
func dealerKey(tableID string) string    { return "dealer:" + tableID }
func startLockKey(tableID string) string { return "hand_start_lock:" + tableID }
func publicKey(tableID string) string    { return "public_state:" + tableID }

func holeKey(tableID, handID, userID string) string {
	return fmt.Sprintf("hand:%s:%s:%s", tableID, handID, userID)
}

// runtimeStore wraps the KV with the engine's key layout. Reads and writes
// are retried once, so a transient hiccup costs a round-trip instead of a
// stalled hand.
type runtimeStore struct {
	kv kv.Store
}

func (s *runtimeStore) get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.kv.Get(ctx, key)
	if err != nil && err != kv.ErrNotFound {
		data, err = s.kv.Get(ctx, key)
	}
	return data, err
}

func (s *runtimeStore) set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	err := s.kv.Set(ctx, key, value, ttl)
	if err != nil {
		err = s.kv.Set(ctx, key, value, ttl)
	}
	return err
}

// LoadRuntime returns the hand in flight for the table, or nil when the
// table is between hands.
func (s *runtimeStore) LoadRuntime(ctx context.Context, tableID string) (*TableRuntime, error) {
	data, err := s.get(ctx, runtimeKey(tableID))
	if err == kv.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load runtime %s: %w", tableID, err)
	}
	var run TableRuntime
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("decode runtime %s: %w", tableID, err)
	}
	return &run, nil
}

func (s *runtimeStore) SaveRuntime(ctx context.Context, run *TableRuntime) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("encode runtime %s: %w", run.TableID, err)
	}
	if err := s.set(ctx, runtimeKey(run.TableID), data, runtimeTTL); err != nil {
		return fmt.Errorf("save runtime %s: %w", run.TableID, err)
	}
	return nil
}

// DeleteHand removes the runtime blob and every hole-card key of the hand.
func (s *runtimeStore) DeleteHand(ctx context.Context, run *TableRuntime) error {
	keys := []string{runtimeKey(run.TableID)}
	for _, p := range run.Players {
		keys = append(keys, holeKey(run.TableID, run.HandID, p.UserID))
	}
	if err := s.kv.Del(ctx, keys...); err != nil {
		if err = s.kv.Del(ctx, keys...); err != nil {
			return fmt.Errorf("delete hand %s: %w", run.HandID, err)
		}
	}
	return nil
}

func (s *runtimeStore) SaveHoleCards(ctx context.Context, tableID, handID, userID string, cards []deck.Card) error {
	data, err := json.Marshal(cards)
	if err != nil {
		return fmt.Errorf("encode hole cards: %w", err)
	}
	if err := s.set(ctx, holeKey(tableID, handID, userID), data, runtimeTTL); err != nil {
		return fmt.Errorf("save hole cards %s: %w", userID, err)
	}
	return nil
}

func (s *runtimeStore) LoadHoleCards(ctx context.Context, tableID, handID, userID string) ([]deck.Card, error) {
	data, err := s.get(ctx, holeKey(tableID, handID, userID))
	if err != nil {
		return nil, err
	}
	var cards []deck.Card
	if err := json.Unmarshal(data, &cards); err != nil {
		return nil, fmt.Errorf("decode hole cards %s: %w", userID, err)
	}
	return cards, nil
}

// LoadDealer returns the dealer seat of the previous hand, if any.
func (s *runtimeStore) LoadDealer(ctx context.Context, tableID string) (int, bool, error) {
	data, err := s.get(ctx, dealerKey(tableID))
	if err == kv.ErrNotFound {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("load dealer %s: %w", tableID, err)
	}
	var seat int
	if err := json.Unmarshal(data, &seat); err != nil {
		return 0, false, fmt.Errorf("decode dealer %s: %w", tableID, err)
	}
	return seat, true, nil
}

func (s *runtimeStore) SaveDealer(ctx context.Context, tableID string, seat int) error {
	data, _ := json.Marshal(seat)
	if err := s.set(ctx, dealerKey(tableID), data, 0); err != nil {
		return fmt.Errorf("save dealer %s: %w", tableID, err)
	}
	return nil
}

// AcquireStartLock takes the short-lived hand-start lock. The TTL covers
// the crash window between acquiring and persisting the first runtime.
func (s *runtimeStore) AcquireStartLock(ctx context.Context, tableID string) (bool, error) {
	ok, err := s.kv.SetNX(ctx, startLockKey(tableID), []byte("1"), startLockTTL)
	if err != nil {
		ok, err = s.kv.SetNX(ctx, startLockKey(tableID), []byte("1"), startLockTTL)
	}
	if err != nil {
		return false, fmt.Errorf("start lock %s: %w", tableID, err)
	}
	return ok, nil
}

func (s *runtimeStore) ReleaseStartLock(ctx context.Context, tableID string) {
	_ = s.kv.Del(ctx, startLockKey(tableID))
}

// SavePublicState caches the latest snapshot for cheap reads by joiners.
func (s *runtimeStore) SavePublicState(ctx context.Context, tableID string, data []byte) error {
	return s.set(ctx, publicKey(tableID), data, publicStateTTL)
}

func (s *runtimeStore) LoadPublicState(ctx context.Context, tableID string) ([]byte, error) {
	return s.get(ctx, publicKey(tableID))
}

// ListRuntimeTables returns the IDs of every table with a hand in flight.
func (s *runtimeStore) ListRuntimeTables(ctx context.Context) ([]string, error) {
	keys, err := s.kv.Keys(ctx, "runtime:*")
	if err != nil {
		return nil, fmt.Errorf("list runtimes: %w", err)
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, strings.TrimPrefix(k, "runtime:"))
	}
	return ids, nil
}

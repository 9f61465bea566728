package store

import (
	"context"
	"sync"
	"time"
)

type seatKey struct {
	tableID string
	seatNo  int
}

// Memory is an in-process Store for tests and single-node dev mode. It
// mirrors the postgres semantics including the one-seat-per-user rule.
type Memory struct {
	mu       sync.RWMutex
	users    map[string]*User
	balances map[string]int64
	ledger   []ledgerEntry
	tables   map[string]*Table
	seats    map[seatKey]*Seat
	history  []*HandRecord
}

type ledgerEntry struct {
	userID string
	amount int64
	ref    string
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		users:    make(map[string]*User),
		balances: make(map[string]int64),
		tables:   make(map[string]*Table),
		seats:    make(map[seatKey]*Seat),
	}
}

func (m *Memory) Close() error { return nil }

func (m *Memory) EnsureUser(_ context.Context, id, username string, startingBalance int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if u, ok := m.users[id]; ok {
		u.Username = username
		return nil
	}
	m.users[id] = &User{ID: id, Username: username, CreatedAt: time.Now()}
	m.balances[id] = startingBalance
	return nil
}

func (m *Memory) GetUser(_ context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (m *Memory) Balance(_ context.Context, userID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	balance, ok := m.balances[userID]
	if !ok {
		return 0, ErrWalletNotFound
	}
	return balance, nil
}

func (m *Memory) Debit(_ context.Context, userID string, amount int64, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	balance, ok := m.balances[userID]
	if !ok {
		return ErrWalletNotFound
	}
	if balance < amount {
		return ErrInsufficientFunds
	}
	m.balances[userID] = balance - amount
	m.ledger = append(m.ledger, ledgerEntry{userID: userID, amount: -amount, ref: ref})
	return nil
}

func (m *Memory) Credit(_ context.Context, userID string, amount int64, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.balances[userID]; !ok {
		return ErrWalletNotFound
	}
	m.balances[userID] += amount
	m.ledger = append(m.ledger, ledgerEntry{userID: userID, amount: amount, ref: ref})
	return nil
}

func (m *Memory) EnsureTable(_ context.Context, table *Table) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *table
	if existing, ok := m.tables[table.ID]; ok {
		copied.CreatedAt = existing.CreatedAt
	} else if copied.CreatedAt.IsZero() {
		copied.CreatedAt = time.Now()
	}
	m.tables[table.ID] = &copied
	return nil
}

func (m *Memory) GetTable(_ context.Context, id string) (*Table, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tables[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *t
	return &copied, nil
}

func (m *Memory) ListTables(_ context.Context) ([]*Table, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tables := make([]*Table, 0, len(m.tables))
	for _, t := range m.tables {
		copied := *t
		tables = append(tables, &copied)
	}
	return tables, nil
}

func (m *Memory) ListSeats(_ context.Context, tableID string) ([]*Seat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var seats []*Seat
	for key, s := range m.seats {
		if key.tableID != tableID {
			continue
		}
		copied := *s
		seats = append(seats, &copied)
	}
	// Stable seat order keeps snapshots deterministic.
	for i := 1; i < len(seats); i++ {
		for j := i; j > 0 && seats[j-1].SeatNo > seats[j].SeatNo; j-- {
			seats[j-1], seats[j] = seats[j], seats[j-1]
		}
	}
	return seats, nil
}

func (m *Memory) GetSeat(_ context.Context, tableID string, seatNo int) (*Seat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.seats[seatKey{tableID: tableID, seatNo: seatNo}]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *s
	return &copied, nil
}

func (m *Memory) SeatOfUser(_ context.Context, userID string) (*Seat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, s := range m.seats {
		if s.UserID == userID {
			copied := *s
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) Reserve(_ context.Context, seat *Seat) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := seatKey{tableID: seat.TableID, seatNo: seat.SeatNo}
	if _, ok := m.seats[key]; ok {
		return ErrSeatTaken
	}
	for _, s := range m.seats {
		if s.UserID == seat.UserID {
			return ErrAlreadySeated
		}
	}

	copied := *seat
	if copied.SeatedAt.IsZero() {
		copied.SeatedAt = time.Now()
	}
	m.seats[key] = &copied
	return nil
}

func (m *Memory) Release(_ context.Context, tableID string, seatNo int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.seats, seatKey{tableID: tableID, seatNo: seatNo})
	return nil
}

func (m *Memory) UpdateStacks(_ context.Context, tableID string, stacks map[int]int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for seatNo, stack := range stacks {
		if s, ok := m.seats[seatKey{tableID: tableID, seatNo: seatNo}]; ok {
			s.Stack = stack
		}
	}
	return nil
}

func (m *Memory) SetSittingOut(_ context.Context, tableID string, seatNo int, sittingOut bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.seats[seatKey{tableID: tableID, seatNo: seatNo}]
	if !ok {
		return ErrNotFound
	}
	s.SittingOut = sittingOut
	return nil
}

func (m *Memory) RecordHand(_ context.Context, rec *HandRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *rec
	if copied.EndedAt.IsZero() {
		copied.EndedAt = time.Now()
	}
	m.history = append(m.history, &copied)
	return nil
}

// HandCount reports recorded hands. Test helper.
func (m *Memory) HandCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.history)
}

// LedgerSum adds up all ledger entries for a user. Test helper.
func (m *Memory) LedgerSum(userID string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var sum int64
	for _, e := range m.ledger {
		if e.userID == userID {
			sum += e.amount
		}
	}
	return sum
}

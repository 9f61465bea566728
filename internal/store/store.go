// Package store persists accounts, wallets, tables and seats. The engine
// treats chips on the table as authoritative in the runtime blob and writes
// stack changes back here so money survives restarts.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrSeatTaken is returned when reserving an occupied seat.
	ErrSeatTaken = errors.New("store: seat taken")
	// ErrAlreadySeated is returned when a user tries to hold two seats.
	ErrAlreadySeated = errors.New("store: user already seated")
	// ErrWalletNotFound is returned for wallet operations on unknown users.
	ErrWalletNotFound = errors.New("store: wallet not found")
	// ErrInsufficientFunds is returned when a debit exceeds the balance.
	ErrInsufficientFunds = errors.New("store: insufficient funds")
)

// User is a player account resolved from the auth layer.
type User struct {
	ID        string
	Username  string
	CreatedAt time.Time
}

// Table is a configured cash-game table.
type Table struct {
	ID         string
	Name       string
	SmallBlind int64
	BigBlind   int64
	MaxSeats   int
	CreatedAt  time.Time
}

// Seat is an occupied seat. Stack is the chips currently on the table.
type Seat struct {
	TableID    string
	SeatNo     int
	UserID     string
	Username   string
	Stack      int64
	SittingOut bool
	SeatedAt   time.Time
}

// HandRecord is one completed hand for the audit trail.
type HandRecord struct {
	HandID  string
	TableID string
	Board   string
	Pot     int64
	Reason  string
	Winners []byte // JSON summary of payouts
	EndedAt time.Time
}

// Users manages player accounts.
type Users interface {
	// EnsureUser upserts the account and creates its wallet on first sight,
	// seeding it with startingBalance.
	EnsureUser(ctx context.Context, id, username string, startingBalance int64) error
	GetUser(ctx context.Context, id string) (*User, error)
}

// Wallet moves chips between bankroll and table. Every movement writes an
// append-only ledger entry in the same transaction as the balance change.
type Wallet interface {
	Balance(ctx context.Context, userID string) (int64, error)
	// Debit removes amount from the balance. ErrInsufficientFunds when the
	// balance cannot cover it.
	Debit(ctx context.Context, userID string, amount int64, ref string) error
	// Credit adds amount to the balance.
	Credit(ctx context.Context, userID string, amount int64, ref string) error
}

// Tables manages table definitions.
type Tables interface {
	EnsureTable(ctx context.Context, table *Table) error
	GetTable(ctx context.Context, id string) (*Table, error)
	ListTables(ctx context.Context) ([]*Table, error)
}

// Seats manages seat occupancy. A user holds at most one seat across all
// tables; Reserve enforces it.
type Seats interface {
	ListSeats(ctx context.Context, tableID string) ([]*Seat, error)
	GetSeat(ctx context.Context, tableID string, seatNo int) (*Seat, error)
	// SeatOfUser returns the seat a user occupies anywhere, or ErrNotFound.
	SeatOfUser(ctx context.Context, userID string) (*Seat, error)
	Reserve(ctx context.Context, seat *Seat) error
	Release(ctx context.Context, tableID string, seatNo int) error
	// UpdateStacks writes the given seat stacks in one transaction.
	UpdateStacks(ctx context.Context, tableID string, stacks map[int]int64) error
	SetSittingOut(ctx context.Context, tableID string, seatNo int, sittingOut bool) error
}

// Histories records completed hands.
type Histories interface {
	RecordHand(ctx context.Context, rec *HandRecord) error
}

// Store is the full persistence surface.
type Store interface {
	Users
	Wallet
	Tables
	Seats
	Histories
	Close() error
}

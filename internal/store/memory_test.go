package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalletDebitCredit(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.EnsureUser(ctx, "u1", "alice", 1000))

	require.NoError(t, m.Debit(ctx, "u1", 400, "buyin:t1:3"))
	balance, err := m.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(600), balance)

	err = m.Debit(ctx, "u1", 601, "buyin:t1:3")
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	require.NoError(t, m.Credit(ctx, "u1", 250, "cashout:t1"))
	balance, err = m.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(850), balance)

	// Ledger mirrors the balance delta.
	assert.Equal(t, int64(-150), m.LedgerSum("u1"))
}

func TestWalletUnknownUser(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.Balance(ctx, "ghost")
	assert.ErrorIs(t, err, ErrWalletNotFound)
	assert.ErrorIs(t, m.Debit(ctx, "ghost", 1, "x"), ErrWalletNotFound)
	assert.ErrorIs(t, m.Credit(ctx, "ghost", 1, "x"), ErrWalletNotFound)
}

func TestEnsureUserIdempotent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.EnsureUser(ctx, "u1", "alice", 1000))
	require.NoError(t, m.Debit(ctx, "u1", 100, "x"))

	// Re-ensuring must not reset the balance.
	require.NoError(t, m.EnsureUser(ctx, "u1", "alice2", 1000))
	balance, err := m.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(900), balance)

	u, err := m.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "alice2", u.Username)
}

func TestSeatReservation(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.EnsureUser(ctx, "u1", "alice", 0))
	require.NoError(t, m.EnsureUser(ctx, "u2", "bob", 0))

	require.NoError(t, m.Reserve(ctx, &Seat{TableID: "t1", SeatNo: 1, UserID: "u1", Username: "alice", Stack: 500}))

	err := m.Reserve(ctx, &Seat{TableID: "t1", SeatNo: 1, UserID: "u2", Username: "bob", Stack: 500})
	assert.ErrorIs(t, err, ErrSeatTaken)

	// One seat per user across all tables.
	err = m.Reserve(ctx, &Seat{TableID: "t2", SeatNo: 4, UserID: "u1", Username: "alice", Stack: 500})
	assert.ErrorIs(t, err, ErrAlreadySeated)

	seat, err := m.SeatOfUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "t1", seat.TableID)
	assert.Equal(t, 1, seat.SeatNo)

	require.NoError(t, m.Release(ctx, "t1", 1))
	_, err = m.SeatOfUser(ctx, "u1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateStacksAndListOrder(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Reserve(ctx, &Seat{TableID: "t1", SeatNo: 5, UserID: "u5", Stack: 100}))
	require.NoError(t, m.Reserve(ctx, &Seat{TableID: "t1", SeatNo: 2, UserID: "u2", Stack: 200}))
	require.NoError(t, m.Reserve(ctx, &Seat{TableID: "t2", SeatNo: 1, UserID: "u9", Stack: 900}))

	require.NoError(t, m.UpdateStacks(ctx, "t1", map[int]int64{5: 150, 2: 175}))

	seats, err := m.ListSeats(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, seats, 2)
	assert.Equal(t, 2, seats[0].SeatNo)
	assert.Equal(t, int64(175), seats[0].Stack)
	assert.Equal(t, 5, seats[1].SeatNo)
	assert.Equal(t, int64(150), seats[1].Stack)
}

func TestSittingOutFlag(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Reserve(ctx, &Seat{TableID: "t1", SeatNo: 1, UserID: "u1", Stack: 100}))

	require.NoError(t, m.SetSittingOut(ctx, "t1", 1, true))
	seat, err := m.GetSeat(ctx, "t1", 1)
	require.NoError(t, err)
	assert.True(t, seat.SittingOut)

	assert.ErrorIs(t, m.SetSittingOut(ctx, "t1", 9, true), ErrNotFound)
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id         TEXT PRIMARY KEY,
	username   TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS wallets (
	user_id    TEXT PRIMARY KEY REFERENCES users(id),
	balance    BIGINT NOT NULL DEFAULT 0,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS wallet_ledger (
	id         BIGSERIAL PRIMARY KEY,
	user_id    TEXT NOT NULL REFERENCES users(id),
	amount     BIGINT NOT NULL,
	ref        TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS tables (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	small_blind BIGINT NOT NULL,
	big_blind   BIGINT NOT NULL,
	max_seats   INT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS seats (
	table_id    TEXT NOT NULL REFERENCES tables(id),
	seat_no     INT NOT NULL,
	user_id     TEXT NOT NULL REFERENCES users(id),
	username    TEXT NOT NULL,
	stack       BIGINT NOT NULL,
	sitting_out BOOLEAN NOT NULL DEFAULT FALSE,
	seated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (table_id, seat_no)
);

CREATE UNIQUE INDEX IF NOT EXISTS seats_user_unique ON seats(user_id);

CREATE TABLE IF NOT EXISTS hand_history (
	id       BIGSERIAL PRIMARY KEY,
	hand_id  TEXT NOT NULL,
	table_id TEXT NOT NULL,
	board    TEXT NOT NULL,
	pot      BIGINT NOT NULL,
	reason   TEXT NOT NULL,
	winners  JSONB NOT NULL,
	ended_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Postgres implements Store on a postgres database.
type Postgres struct {
	db *sql.DB
}

// OpenPostgres connects, verifies the connection and applies the schema.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Close() error {
	return p.db.Close()
}

func (p *Postgres) EnsureUser(ctx context.Context, id, username string, startingBalance int64) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO users (id, username) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET username = EXCLUDED.username`,
		id, username)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO wallets (user_id, balance) VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING`,
		id, startingBalance)
	if err != nil {
		return fmt.Errorf("ensure wallet: %w", err)
	}

	return tx.Commit()
}

func (p *Postgres) GetUser(ctx context.Context, id string) (*User, error) {
	var u User
	err := p.db.QueryRowContext(ctx,
		`SELECT id, username, created_at FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Username, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (p *Postgres) Balance(ctx context.Context, userID string) (int64, error) {
	var balance int64
	err := p.db.QueryRowContext(ctx,
		`SELECT balance FROM wallets WHERE user_id = $1`, userID).
		Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrWalletNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("wallet balance: %w", err)
	}
	return balance, nil
}

func (p *Postgres) Debit(ctx context.Context, userID string, amount int64, ref string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE wallets SET balance = balance - $1, updated_at = now()
		WHERE user_id = $2 AND balance >= $1`,
		amount, userID)
	if err != nil {
		return fmt.Errorf("debit wallet: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var balance int64
		err := tx.QueryRowContext(ctx,
			`SELECT balance FROM wallets WHERE user_id = $1`, userID).
			Scan(&balance)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrWalletNotFound
		}
		if err != nil {
			return fmt.Errorf("debit wallet: %w", err)
		}
		return ErrInsufficientFunds
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO wallet_ledger (user_id, amount, ref) VALUES ($1, $2, $3)`,
		userID, -amount, ref)
	if err != nil {
		return fmt.Errorf("ledger entry: %w", err)
	}

	return tx.Commit()
}

func (p *Postgres) Credit(ctx context.Context, userID string, amount int64, ref string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE wallets SET balance = balance + $1, updated_at = now()
		WHERE user_id = $2`,
		amount, userID)
	if err != nil {
		return fmt.Errorf("credit wallet: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrWalletNotFound
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO wallet_ledger (user_id, amount, ref) VALUES ($1, $2, $3)`,
		userID, amount, ref)
	if err != nil {
		return fmt.Errorf("ledger entry: %w", err)
	}

	return tx.Commit()
}

func (p *Postgres) EnsureTable(ctx context.Context, table *Table) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO tables (id, name, small_blind, big_blind, max_seats)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			small_blind = EXCLUDED.small_blind,
			big_blind = EXCLUDED.big_blind,
			max_seats = EXCLUDED.max_seats`,
		table.ID, table.Name, table.SmallBlind, table.BigBlind, table.MaxSeats)
	if err != nil {
		return fmt.Errorf("ensure table: %w", err)
	}
	return nil
}

func (p *Postgres) GetTable(ctx context.Context, id string) (*Table, error) {
	var t Table
	err := p.db.QueryRowContext(ctx, `
		SELECT id, name, small_blind, big_blind, max_seats, created_at
		FROM tables WHERE id = $1`, id).
		Scan(&t.ID, &t.Name, &t.SmallBlind, &t.BigBlind, &t.MaxSeats, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get table: %w", err)
	}
	return &t, nil
}

func (p *Postgres) ListTables(ctx context.Context) ([]*Table, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, name, small_blind, big_blind, max_seats, created_at
		FROM tables ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var tables []*Table
	for rows.Next() {
		var t Table
		if err := rows.Scan(&t.ID, &t.Name, &t.SmallBlind, &t.BigBlind, &t.MaxSeats, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		tables = append(tables, &t)
	}
	return tables, rows.Err()
}

func (p *Postgres) ListSeats(ctx context.Context, tableID string) ([]*Seat, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT table_id, seat_no, user_id, username, stack, sitting_out, seated_at
		FROM seats WHERE table_id = $1 ORDER BY seat_no`, tableID)
	if err != nil {
		return nil, fmt.Errorf("list seats: %w", err)
	}
	defer rows.Close()

	var seats []*Seat
	for rows.Next() {
		var s Seat
		if err := rows.Scan(&s.TableID, &s.SeatNo, &s.UserID, &s.Username, &s.Stack, &s.SittingOut, &s.SeatedAt); err != nil {
			return nil, fmt.Errorf("scan seat: %w", err)
		}
		seats = append(seats, &s)
	}
	return seats, rows.Err()
}

func (p *Postgres) GetSeat(ctx context.Context, tableID string, seatNo int) (*Seat, error) {
	var s Seat
	err := p.db.QueryRowContext(ctx, `
		SELECT table_id, seat_no, user_id, username, stack, sitting_out, seated_at
		FROM seats WHERE table_id = $1 AND seat_no = $2`, tableID, seatNo).
		Scan(&s.TableID, &s.SeatNo, &s.UserID, &s.Username, &s.Stack, &s.SittingOut, &s.SeatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get seat: %w", err)
	}
	return &s, nil
}

func (p *Postgres) SeatOfUser(ctx context.Context, userID string) (*Seat, error) {
	var s Seat
	err := p.db.QueryRowContext(ctx, `
		SELECT table_id, seat_no, user_id, username, stack, sitting_out, seated_at
		FROM seats WHERE user_id = $1`, userID).
		Scan(&s.TableID, &s.SeatNo, &s.UserID, &s.Username, &s.Stack, &s.SittingOut, &s.SeatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("seat of user: %w", err)
	}
	return &s, nil
}

func (p *Postgres) Reserve(ctx context.Context, seat *Seat) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO seats (table_id, seat_no, user_id, username, stack, sitting_out)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		seat.TableID, seat.SeatNo, seat.UserID, seat.Username, seat.Stack, seat.SittingOut)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			if pqErr.Constraint == "seats_user_unique" {
				return ErrAlreadySeated
			}
			return ErrSeatTaken
		}
		return fmt.Errorf("reserve seat: %w", err)
	}
	return nil
}

func (p *Postgres) Release(ctx context.Context, tableID string, seatNo int) error {
	_, err := p.db.ExecContext(ctx,
		`DELETE FROM seats WHERE table_id = $1 AND seat_no = $2`, tableID, seatNo)
	if err != nil {
		return fmt.Errorf("release seat: %w", err)
	}
	return nil
}

func (p *Postgres) UpdateStacks(ctx context.Context, tableID string, stacks map[int]int64) error {
	if len(stacks) == 0 {
		return nil
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for seatNo, stack := range stacks {
		if _, err := tx.ExecContext(ctx,
			`UPDATE seats SET stack = $1 WHERE table_id = $2 AND seat_no = $3`,
			stack, tableID, seatNo); err != nil {
			return fmt.Errorf("update stack seat %d: %w", seatNo, err)
		}
	}

	return tx.Commit()
}

func (p *Postgres) SetSittingOut(ctx context.Context, tableID string, seatNo int, sittingOut bool) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE seats SET sitting_out = $1 WHERE table_id = $2 AND seat_no = $3`,
		sittingOut, tableID, seatNo)
	if err != nil {
		return fmt.Errorf("set sitting out: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) RecordHand(ctx context.Context, rec *HandRecord) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO hand_history (hand_id, table_id, board, pot, reason, winners)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.HandID, rec.TableID, rec.Board, rec.Pot, rec.Reason, rec.Winners)
	if err != nil {
		return fmt.Errorf("record hand: %w", err)
	}
	return nil
}

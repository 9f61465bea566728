package engine

import (
	"context"
	"errors"

	"github.com/openfelt/cardroom/internal/store"
)

// Sit buys a player into a seat. Each player holds at most one seat across
// all tables: sitting elsewhere first settles the old seat, which only
// works between that table's hands. Mid-hand sits succeed but the player
// is dealt in from the next hand.
func (e *Engine) Sit(ctx context.Context, tableID, userID, username string, seatNo int, buyIn int64) error {
	if cur, err := e.store.SeatOfUser(ctx, userID); err == nil && cur.TableID != tableID {
		// Peek before leaving: a refused move must not queue a departure on
		// the old table.
		old, err := e.rt.LoadRuntime(ctx, cur.TableID)
		if err != nil {
			return err
		}
		if old != nil {
			if p := old.SeatOf(userID); p != nil && !p.HasFolded {
				return Errf(CodeHandInProgress, "finish the hand at table %s first", cur.TableID)
			}
		}
		pending, err := e.Leave(ctx, cur.TableID, userID)
		if err != nil {
			return err
		}
		if pending {
			return Errf(CodeHandInProgress, "finish the hand at table %s first", cur.TableID)
		}
	} else if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}

	unlock := e.mux.lock(tableID)
	defer unlock()

	table, err := e.store.GetTable(ctx, tableID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Errf(CodeTableNotFound, "table %s not found", tableID)
		}
		return err
	}
	if seatNo < 1 || seatNo > table.MaxSeats {
		return Errf(CodeSeatNotFound, "table has seats 1..%d", table.MaxSeats)
	}
	minBuy := table.BigBlind * e.cfg.BuyInMinBB
	maxBuy := table.BigBlind * e.cfg.BuyInMaxBB
	if buyIn < minBuy {
		return Errf(CodeBuyinTooSmall, "minimum buy-in is %d", minBuy)
	}
	if buyIn > maxBuy {
		return Errf(CodeBuyinTooLarge, "maximum buy-in is %d", maxBuy)
	}
	if _, err := e.store.GetSeat(ctx, tableID, seatNo); err == nil {
		return Errf(CodeSeatTaken, "seat %d is taken", seatNo)
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	if err := e.store.Debit(ctx, userID, buyIn, "buyin:"+tableID); err != nil {
		switch {
		case errors.Is(err, store.ErrWalletNotFound):
			return Errf(CodeWalletNotFound, "no wallet for user")
		case errors.Is(err, store.ErrInsufficientFunds):
			return Errf(CodeInsufficientFunds, "wallet cannot cover buy-in of %d", buyIn)
		default:
			return err
		}
	}
	seat := &store.Seat{
		TableID:  tableID,
		SeatNo:   seatNo,
		UserID:   userID,
		Username: username,
		Stack:    buyIn,
	}
	if err := e.store.Reserve(ctx, seat); err != nil {
		if cerr := e.store.Credit(ctx, userID, buyIn, "refund:"+tableID); cerr != nil {
			e.log.Error().Err(cerr).Str("user_id", userID).Int64("amount", buyIn).Msg("buy-in refund failed")
		}
		switch {
		case errors.Is(err, store.ErrSeatTaken):
			return Errf(CodeSeatTaken, "seat %d is taken", seatNo)
		case errors.Is(err, store.ErrAlreadySeated):
			return Errf(CodeAlreadySeated, "already seated at a table")
		default:
			return err
		}
	}
	e.log.Info().
		Str("table_id", tableID).
		Str("user_id", userID).
		Int("seat", seatNo).
		Int64("buy_in", buyIn).
		Msg("player seated")

	run, err := e.rt.LoadRuntime(ctx, tableID)
	if err != nil {
		return err
	}
	e.broadcastSnapshot(ctx, tableID, run)

	st, _, err := e.startHandLocked(ctx, tableID)
	if err != nil {
		e.log.Error().Err(err).Str("table_id", tableID).Msg("hand start after sit failed")
		return nil
	}
	e.followUp(tableID, st)
	return nil
}

// Leave removes the caller from the table. Between hands, or when the
// caller is not in the current hand, the seat cashes out immediately.
// Mid-hand the departure queues for the next safe point and the call
// reports pending=true; the caller keeps playing until then.
func (e *Engine) Leave(ctx context.Context, tableID, userID string) (bool, error) {
	unlock := e.mux.lock(tableID)
	defer unlock()

	seat, err := e.store.SeatOfUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, Errf(CodeNotSeated, "not seated anywhere")
		}
		return false, err
	}
	if seat.TableID != tableID {
		return false, Errf(CodeNotSeated, "not seated at table %s", tableID)
	}
	run, err := e.rt.LoadRuntime(ctx, tableID)
	if err != nil {
		return false, err
	}
	if run != nil {
		if p := run.SeatOf(userID); p != nil && !p.HasFolded {
			e.queueDeparture(tableID, userID, DepartLeave)
			e.bc.ToUser(userID, &Event{Type: EventLeavePending, TableID: tableID})
			return true, nil
		}
	}
	if err := e.releaseSeat(ctx, tableID, run, departure{userID: userID, reason: DepartLeave}); err != nil {
		return false, err
	}
	if run != nil {
		if err := e.persistHand(ctx, run); err != nil {
			return false, err
		}
	}
	e.broadcastSnapshot(ctx, tableID, run)
	return false, nil
}

// Rebuy tops up the caller's stack between hands, up to the table maximum.
func (e *Engine) Rebuy(ctx context.Context, tableID, userID string, amount int64) error {
	if amount <= 0 {
		return Errf(CodeInvalidAmount, "rebuy amount must be positive")
	}
	unlock := e.mux.lock(tableID)
	defer unlock()

	seat, err := e.store.SeatOfUser(ctx, userID)
	if err != nil || seat.TableID != tableID {
		if err == nil || errors.Is(err, store.ErrNotFound) {
			return Errf(CodeNotSeated, "not seated at table %s", tableID)
		}
		return err
	}
	table, err := e.store.GetTable(ctx, tableID)
	if err != nil {
		return err
	}
	run, err := e.rt.LoadRuntime(ctx, tableID)
	if err != nil {
		return err
	}
	var p *SeatRuntime
	if run != nil {
		p = run.SeatOf(userID)
		if p != nil && !p.HasFolded {
			return Errf(CodeHandInProgress, "rebuy is available between hands")
		}
	}
	stack := seat.Stack
	if p != nil {
		stack = p.Stack
	}
	maxBuy := table.BigBlind * e.cfg.BuyInMaxBB
	if stack+amount > maxBuy {
		return Errf(CodeRebuyExceedsMax, "stack may not exceed %d", maxBuy)
	}
	if err := e.store.Debit(ctx, userID, amount, "rebuy:"+tableID); err != nil {
		switch {
		case errors.Is(err, store.ErrWalletNotFound):
			return Errf(CodeWalletNotFound, "no wallet for user")
		case errors.Is(err, store.ErrInsufficientFunds):
			return Errf(CodeInsufficientFunds, "wallet cannot cover rebuy of %d", amount)
		default:
			return err
		}
	}
	if p != nil {
		// Keep the runtime copy ahead so the end-of-hand stack write
		// cannot roll the rebuy back.
		p.Stack += amount
		if err := e.persistHand(ctx, run); err != nil {
			return err
		}
	} else {
		if err := e.store.UpdateStacks(ctx, tableID, map[int]int64{seat.SeatNo: stack + amount}); err != nil {
			return err
		}
	}
	e.log.Info().
		Str("table_id", tableID).
		Str("user_id", userID).
		Int64("amount", amount).
		Msg("rebuy applied")
	e.broadcastSnapshot(ctx, tableID, run)

	st, _, err := e.startHandLocked(ctx, tableID)
	if err != nil {
		e.log.Error().Err(err).Str("table_id", tableID).Msg("hand start after rebuy failed")
		return nil
	}
	e.followUp(tableID, st)
	return nil
}

// SitOut marks the caller away by choice: not dealt into new hands and,
// if a hand is running, the engine acts for them without penalty. A sit
// out on the caller's own turn acts immediately.
func (e *Engine) SitOut(ctx context.Context, tableID, userID string) error {
	unlock := e.mux.lock(tableID)
	defer unlock()

	seat, err := e.store.SeatOfUser(ctx, userID)
	if err != nil || seat.TableID != tableID {
		if err == nil || errors.Is(err, store.ErrNotFound) {
			return Errf(CodeNotSeated, "not seated at table %s", tableID)
		}
		return err
	}
	if err := e.store.SetSittingOut(ctx, tableID, seat.SeatNo, true); err != nil {
		return err
	}
	run, err := e.rt.LoadRuntime(ctx, tableID)
	if err != nil {
		return err
	}
	var st *step
	if run != nil {
		if p := run.SeatOf(userID); p != nil {
			p.IsSittingOut = true
			if run.CurrentTurnSeat == p.SeatNo && !run.IsDealingBoard {
				action := ActionCheck
				if run.ToCall(p) > 0 {
					action = ActionFold
				}
				st, err = e.applyCurrent(ctx, run, action, 0, false)
				if err != nil {
					return err
				}
			} else if err := e.persistHand(ctx, run); err != nil {
				return err
			}
		}
	}
	if st == nil {
		e.broadcastSnapshot(ctx, tableID, run)
	}
	e.followUp(tableID, st)
	return nil
}

// SitIn brings a sitting-out player back; they are dealt into the next
// hand.
func (e *Engine) SitIn(ctx context.Context, tableID, userID string) error {
	unlock := e.mux.lock(tableID)
	defer unlock()

	seat, err := e.store.SeatOfUser(ctx, userID)
	if err != nil || seat.TableID != tableID {
		if err == nil || errors.Is(err, store.ErrNotFound) {
			return Errf(CodeNotSeated, "not seated at table %s", tableID)
		}
		return err
	}
	if err := e.store.SetSittingOut(ctx, tableID, seat.SeatNo, false); err != nil {
		return err
	}
	run, err := e.rt.LoadRuntime(ctx, tableID)
	if err != nil {
		return err
	}
	if run != nil {
		if p := run.SeatOf(userID); p != nil {
			p.IsSittingOut = false
			if err := e.persistHand(ctx, run); err != nil {
				return err
			}
		}
	}
	e.broadcastSnapshot(ctx, tableID, run)

	st, _, err := e.startHandLocked(ctx, tableID)
	if err != nil {
		e.log.Error().Err(err).Str("table_id", tableID).Msg("hand start after sit-in failed")
		return nil
	}
	e.followUp(tableID, st)
	return nil
}

// Disconnect is the socket-drop hook: the player leaves, deferred to the
// hand end when they are mid-hand. Not-seated users are a no-op.
func (e *Engine) Disconnect(ctx context.Context, userID string) {
	seat, err := e.store.SeatOfUser(ctx, userID)
	if err != nil {
		return
	}
	if _, err := e.Leave(ctx, seat.TableID, userID); err != nil {
		e.log.Error().Err(err).Str("user_id", userID).Msg("disconnect leave failed")
	}
}

package engine

import "context"

// Apply validates and applies one player action, then advances the hand as
// far as it can go without waiting: passing the turn, revealing the next
// street, or ending the hand. The table lock is held for the whole
// transition so timers and faster clients cannot interleave.
func (e *Engine) Apply(ctx context.Context, tableID, userID string, action Action, amount int64) error {
	unlock := e.mux.lock(tableID)
	defer unlock()

	run, err := e.rt.LoadRuntime(ctx, tableID)
	if err != nil {
		return err
	}
	if run == nil {
		return Errf(CodeNoHandRunning, "no hand running at table %s", tableID)
	}
	seat := run.SeatOf(userID)
	if seat == nil {
		return Errf(CodeNotSeated, "not dealt into this hand")
	}
	if seat.HasFolded {
		return Errf(CodeAlreadyFolded, "seat %d already folded", seat.SeatNo)
	}
	if run.IsDealingBoard {
		return Errf(CodeDealingBoard, "board cards are being dealt")
	}
	if run.CurrentTurnSeat != seat.SeatNo {
		return Errf(CodeNotYourTurn, "seat %d does not hold the action", seat.SeatNo)
	}

	st, err := e.applyCurrent(ctx, run, action, amount, false)
	if err != nil {
		return err
	}
	e.cancelAwayKick(tableID, userID)
	e.log.Debug().
		Str("table_id", tableID).
		Str("hand_id", run.HandID).
		Int("seat", seat.SeatNo).
		Str("action", string(action)).
		Int64("amount", amount).
		Msg("action applied")
	e.followUp(tableID, st)
	return nil
}

// applyCurrent applies an action for the seat holding the turn and settles
// what follows. The caller holds the table lock and has verified the seat
// owns the action.
func (e *Engine) applyCurrent(ctx context.Context, run *TableRuntime, action Action, amount int64, timeout bool) (*step, error) {
	seatNo := run.CurrentTurnSeat
	seat := run.Players[seatNo]
	if seat == nil {
		return nil, Errf(CodeInternal, "turn seat %d not dealt in", seatNo)
	}
	if err := applyAction(run, seat, action, amount, timeout); err != nil {
		return nil, err
	}
	run.CurrentTurnSeat = 0
	run.TurnEndsAt = 0
	e.mon.ActionApplied(run.TableID, action, timeout)
	e.rememberStrikes(run)
	return e.settle(ctx, run, seatNo)
}

// settle advances the hand after an action from seat from: win by fold,
// street advance, or pass the turn clockwise.
func (e *Engine) settle(ctx context.Context, run *TableRuntime, from int) (*step, error) {
	if cs := run.Contenders(); len(cs) == 1 {
		return e.endHandByFold(ctx, run, cs[0])
	}
	if isRoundSettled(run) {
		return e.advanceStreet(ctx, run)
	}
	next := run.NextCanActSeat(from)
	if next == 0 {
		return e.advanceStreet(ctx, run)
	}
	return e.grantTurn(ctx, run, next)
}

// grantTurn rests the action on seatNo. Sitting-out seats never hold the
// turn for real: the engine checks or folds for them on the spot, without
// a deadline and without an away strike.
func (e *Engine) grantTurn(ctx context.Context, run *TableRuntime, seatNo int) (*step, error) {
	seat := run.Players[seatNo]
	run.CurrentTurnSeat = seatNo
	if seat.IsSittingOut {
		run.TurnEndsAt = 0
		action := ActionCheck
		if run.ToCall(seat) > 0 {
			action = ActionFold
		}
		return e.applyCurrent(ctx, run, action, 0, false)
	}
	run.TurnEndsAt = e.now() + e.cfg.TurnTime.Milliseconds()
	if err := e.persistHand(ctx, run); err != nil {
		return nil, err
	}
	e.broadcastSnapshot(ctx, run.TableID, run)
	return &step{
		kind: stepTurn,
		key:  TimerKey{HandID: run.HandID, Seat: seatNo, EndsAt: run.TurnEndsAt},
	}, nil
}

// onTurnTimeout is the turn clock callback. The fire is matched against
// the live runtime and dropped when the state has moved on; a genuine
// timeout checks when free and folds when facing a bet, and counts toward
// the seat's away strikes.
func (e *Engine) onTurnTimeout(tableID string, key TimerKey) {
	ctx := e.ctx
	unlock := e.mux.lock(tableID)
	defer unlock()

	run, err := e.rt.LoadRuntime(ctx, tableID)
	if err != nil {
		e.log.Error().Err(err).Str("table_id", tableID).Msg("timeout load failed")
		return
	}
	if run == nil || run.HandID != key.HandID || run.CurrentTurnSeat != key.Seat || run.TurnEndsAt != key.EndsAt {
		return
	}
	if run.IsDealingBoard || run.AutoRunout {
		return
	}
	seat := run.Players[key.Seat]
	if seat == nil {
		return
	}
	e.mon.TimerFired(tableID)

	action := ActionCheck
	if run.ToCall(seat) > 0 {
		action = ActionFold
	}
	timeout := !seat.IsSittingOut
	st, err := e.applyCurrent(ctx, run, action, 0, timeout)
	if err != nil {
		e.log.Error().Err(err).Str("table_id", tableID).Int("seat", key.Seat).Msg("timeout apply failed")
		return
	}
	e.log.Info().
		Str("table_id", tableID).
		Str("hand_id", key.HandID).
		Int("seat", key.Seat).
		Str("action", string(action)).
		Msg("turn clock acted")
	if timeout && seat.TimeoutsInRow >= e.cfg.AwayTimeoutsInRow {
		e.queueDeparture(tableID, seat.UserID, DepartAwayKick)
		e.log.Info().Str("table_id", tableID).Str("user_id", seat.UserID).Msg("player marked away")
	}
	e.followUp(tableID, st)
}

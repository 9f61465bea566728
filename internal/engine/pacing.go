package engine

import "context"

// maxRevealStreets bounds one reveal loop. A hand advances at most four
// streets; the headroom covers recovery re-entering mid-runout.
const maxRevealStreets = 10

func (e *Engine) spawnReveal(tableID string) {
	e.spawn(func() { e.runReveal(tableID) })
}

// revealLock returns the table's reveal mutex. Reveal loops for the same
// table queue up behind it; a late loop finds the work already done and
// exits through the completeReveal guard.
func (e *Engine) revealLock(tableID string) func() {
	e.revealMu.Lock()
	l, ok := e.revealing[tableID]
	if !ok {
		l = make(chan struct{}, 1)
		e.revealing[tableID] = l
	}
	e.revealMu.Unlock()
	select {
	case l <- struct{}{}:
	case <-e.ctx.Done():
		return nil
	}
	return func() { <-l }
}

// runReveal paces the pending board cards out one at a time, then hands
// the table over to the next betting round, the next runout street or the
// hand end.
func (e *Engine) runReveal(tableID string) {
	release := e.revealLock(tableID)
	if release == nil {
		return
	}
	defer release()
	ctx := e.ctx

	if !e.sleep(ctx, e.cfg.StreetPreDelay) {
		return
	}
	for i := 0; i < maxRevealStreets; i++ {
		for {
			more, err := e.revealNext(ctx, tableID)
			if err != nil {
				e.log.Error().Err(err).Str("table_id", tableID).Msg("board reveal failed")
				return
			}
			if !more {
				break
			}
			if !e.sleep(ctx, e.cfg.BoardCardInterval) {
				return
			}
		}
		again, err := e.completeReveal(ctx, tableID)
		if err != nil {
			e.log.Error().Err(err).Str("table_id", tableID).Msg("street completion failed")
			return
		}
		if !again {
			return
		}
		if !e.sleep(ctx, e.cfg.StreetPostDelay) {
			return
		}
		if !e.sleep(ctx, e.cfg.StreetPreDelay) {
			return
		}
	}
	e.log.Warn().Str("table_id", tableID).Msg("reveal loop hit street bound")
}

// revealNext moves one card from the pending queue onto the board. It
// reports whether cards remain.
func (e *Engine) revealNext(ctx context.Context, tableID string) (bool, error) {
	unlock := e.mux.lock(tableID)
	defer unlock()

	run, err := e.rt.LoadRuntime(ctx, tableID)
	if err != nil {
		return false, err
	}
	if run == nil || len(run.PendingBoard) == 0 {
		return false, nil
	}
	run.Board = append(run.Board, run.PendingBoard[0])
	run.PendingBoard = run.PendingBoard[1:]
	if err := e.rt.SaveRuntime(ctx, run); err != nil {
		return false, err
	}
	e.broadcastSnapshot(ctx, tableID, run)
	return len(run.PendingBoard) > 0, nil
}

// completeReveal runs once a street's cards are all out. This is a safe
// point: queued departures drain first, then the hand either ends, runs
// out another street or opens the betting round. It reports whether the
// runout continues in the calling loop.
func (e *Engine) completeReveal(ctx context.Context, tableID string) (bool, error) {
	unlock := e.mux.lock(tableID)
	defer unlock()

	run, err := e.rt.LoadRuntime(ctx, tableID)
	if err != nil {
		return false, err
	}
	// A turn already on the clock means another path finished this street.
	if run == nil || run.CurrentTurnSeat != 0 {
		return false, nil
	}
	run.IsDealingBoard = false
	run.PendingBoard = nil

	st, err := e.flushLocked(ctx, tableID, run)
	if err != nil {
		return false, err
	}
	if st == nil {
		st, err = e.nextMove(ctx, run)
		if err != nil {
			return false, err
		}
	}
	if st != nil && st.kind == stepReveal {
		return true, nil
	}
	e.followUp(tableID, st)
	return false, nil
}

// nextMove picks up a street whose cards are out: end the hand if the
// field collapsed, keep running out, or give the first live seat the turn.
func (e *Engine) nextMove(ctx context.Context, run *TableRuntime) (*step, error) {
	if cs := run.Contenders(); len(cs) == 1 {
		return e.endHandByFold(ctx, run, cs[0])
	}
	if run.AutoRunout {
		return e.advanceStreet(ctx, run)
	}
	first := run.FirstToAct()
	if first == 0 {
		return e.advanceStreet(ctx, run)
	}
	return e.grantTurn(ctx, run, first)
}

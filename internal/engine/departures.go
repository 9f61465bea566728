package engine

import (
	"context"
	"errors"

	"github.com/openfelt/cardroom/internal/store"
)

// flushDepartures drains the table's departure queue between hands.
func (e *Engine) flushDepartures(ctx context.Context, tableID string) {
	e.depMu.Lock()
	pending := len(e.departures[tableID])
	e.depMu.Unlock()
	if pending == 0 {
		return
	}

	unlock := e.mux.lock(tableID)
	defer unlock()

	run, err := e.rt.LoadRuntime(ctx, tableID)
	if err != nil {
		e.log.Error().Err(err).Str("table_id", tableID).Msg("departure flush load failed")
		return
	}
	st, err := e.flushLocked(ctx, tableID, run)
	if err != nil {
		e.log.Error().Err(err).Str("table_id", tableID).Msg("departure flush failed")
		return
	}
	e.followUp(tableID, st)
}

// flushLocked lets every queued departure out of the table: live seats
// fold, the seat stack cashes out to the wallet and the row frees up.
// Runs only at safe points so committed stakes stay in the pot. When a
// departing seat is the last contender the hand settles to it first, pot
// included, before the cash-out.
func (e *Engine) flushLocked(ctx context.Context, tableID string, run *TableRuntime) (*step, error) {
	deps := e.takeDepartures(tableID)
	if len(deps) == 0 {
		return nil, nil
	}

	var ended *step
	changed := false
	for _, d := range deps {
		if run != nil && ended == nil {
			if p := run.SeatOf(d.userID); p != nil && !p.HasFolded && len(run.Contenders()) == 1 {
				st, err := e.endHandByFold(ctx, run, p)
				if err != nil {
					e.requeueDeparture(tableID, d)
					return nil, err
				}
				ended = st
			}
		}
		target := run
		if ended != nil {
			target = nil // hand already settled and cleaned up
		}
		if err := e.releaseSeat(ctx, tableID, target, d); err != nil {
			e.log.Error().Err(err).Str("table_id", tableID).Str("user_id", d.userID).Msg("departure requeued")
			e.requeueDeparture(tableID, d)
			continue
		}
		changed = true
	}
	if ended != nil {
		e.broadcastSnapshot(ctx, tableID, nil)
		return ended, nil
	}
	if run == nil {
		if changed {
			e.broadcastSnapshot(ctx, tableID, nil)
		}
		return nil, nil
	}
	if !changed {
		return nil, nil
	}
	if cs := run.Contenders(); len(cs) == 1 {
		return e.endHandByFold(ctx, run, cs[0])
	}
	if err := e.persistHand(ctx, run); err != nil {
		return nil, err
	}
	e.broadcastSnapshot(ctx, tableID, run)
	return nil, nil
}

// releaseSeat cashes one player off the table. The wallet credit lands
// before the seat state is touched, so a failed credit leaves everything
// in place for a retry; a failed row release after the credit is logged
// and never retried, because retrying would pay the stack twice.
func (e *Engine) releaseSeat(ctx context.Context, tableID string, run *TableRuntime, d departure) error {
	seat, err := e.store.SeatOfUser(ctx, d.userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			e.dropStrikes(tableID, d.userID)
			return nil
		}
		return err
	}
	if seat.TableID != tableID {
		e.dropStrikes(tableID, d.userID)
		return nil
	}

	stack := seat.Stack
	var p *SeatRuntime
	if run != nil {
		if p = run.SeatOf(d.userID); p != nil {
			stack = p.Stack
		}
	}
	if stack > 0 {
		if err := e.store.Credit(ctx, d.userID, stack, "cashout:"+tableID); err != nil {
			return err
		}
	}
	if p != nil {
		if !p.HasFolded {
			p.HasFolded = true
			run.ActedThisRound[p.SeatNo] = true
		}
		p.Stack = 0
	}
	if err := e.store.Release(ctx, tableID, seat.SeatNo); err != nil {
		if err = e.store.Release(ctx, tableID, seat.SeatNo); err != nil {
			e.log.Error().Err(err).
				Str("table_id", tableID).
				Int("seat", seat.SeatNo).
				Msg("seat release failed after cash-out, manual cleanup needed")
		}
	}
	e.dropStrikes(tableID, d.userID)

	if d.reason == DepartAwayKick {
		e.mon.PlayerKicked(tableID, d.userID)
		e.bc.ToTable(tableID, &Event{
			Type:    EventPlayerKicked,
			TableID: tableID,
			Seat:    seat.SeatNo,
			UserID:  d.userID,
			Reason:  d.reason,
		})
	}
	e.log.Info().
		Str("table_id", tableID).
		Str("user_id", d.userID).
		Str("reason", d.reason).
		Int64("cashout", stack).
		Msg("seat released")
	return nil
}

// cancelAwayKick withdraws a queued kick when the player acts for
// themselves before the next safe point. Voluntary leaves stay queued:
// leaving players still play out their hand.
func (e *Engine) cancelAwayKick(tableID, userID string) {
	e.depMu.Lock()
	defer e.depMu.Unlock()
	q := e.departures[tableID]
	for i, d := range q {
		if d.userID == userID && d.reason == DepartAwayKick {
			e.departures[tableID] = append(q[:i:i], q[i+1:]...)
			return
		}
	}
}

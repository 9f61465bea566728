package engine

import "context"

// Recover rebuilds the in-process side of every hand the KV still holds:
// a timer for a hand waiting on a seat, a reveal loop for one caught
// mid-pacing, mid-runout or between transitions. Hands whose deadline
// passed while the process was down fire immediately and play on. Called
// once on boot, before the gateway accepts traffic.
func (e *Engine) Recover(ctx context.Context) error {
	ids, err := e.rt.ListRuntimeTables(ctx)
	if err != nil {
		return err
	}
	recovered := 0
	for _, tableID := range ids {
		if err := e.recoverTable(ctx, tableID); err != nil {
			e.log.Error().Err(err).Str("table_id", tableID).Msg("table recovery failed")
			continue
		}
		recovered++
	}
	e.log.Info().Int("tables", recovered).Msg("recovery complete")
	return nil
}

func (e *Engine) recoverTable(ctx context.Context, tableID string) error {
	unlock := e.mux.lock(tableID)
	defer unlock()

	run, err := e.rt.LoadRuntime(ctx, tableID)
	if err != nil {
		return err
	}
	if run == nil {
		return nil
	}
	e.rememberStrikes(run)

	if run.CurrentTurnSeat != 0 && run.TurnEndsAt > 0 {
		e.turns.Schedule(tableID, TimerKey{
			HandID: run.HandID,
			Seat:   run.CurrentTurnSeat,
			EndsAt: run.TurnEndsAt,
		})
	} else {
		// Mid-reveal, mid-runout or stalled between transitions; the
		// reveal loop sorts out all three.
		e.spawnReveal(tableID)
	}
	e.broadcastSnapshot(ctx, tableID, run)
	e.log.Info().
		Str("table_id", tableID).
		Str("hand_id", run.HandID).
		Str("round", run.Round.String()).
		Msg("hand recovered")
	return nil
}

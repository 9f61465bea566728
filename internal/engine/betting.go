package engine

// Betting rules. Everything in this file mutates only the in-memory
// TableRuntime; persistence and broadcasting happen in the engine methods
// that call it. Validation completes before the first mutation, so a
// rejected action leaves the runtime untouched.

// applyAction applies one action for seat. amount is the raise-to total and
// is ignored for the other actions. timeout marks actions injected by the
// turn clock; those count toward the away strike, while voluntary and
// sitting-out actions reset it.
func applyAction(run *TableRuntime, seat *SeatRuntime, action Action, amount int64, timeout bool) error {
	toCall := run.ToCall(seat)

	switch action {
	case ActionFold:
		seat.HasFolded = true

	case ActionCheck:
		if toCall > 0 {
			return Errf(CodeCannotCheck, "facing a bet of %d, check not available", run.CurrentBet)
		}

	case ActionCall:
		pay := toCall
		if pay > seat.Stack {
			pay = seat.Stack
		}
		commit(run, seat, pay)

	case ActionRaise:
		if seat.Stack <= 0 {
			return Errf(CodeInsufficientStack, "no chips behind")
		}
		if amount <= 0 {
			return Errf(CodeInvalidAmount, "raise amount must be positive")
		}
		raiseTo := amount
		if raiseTo <= run.CurrentBet {
			return Errf(CodeInvalidRaise, "raise to %d does not exceed current bet %d", raiseTo, run.CurrentBet)
		}
		need := raiseTo - seat.Bet
		if need > seat.Stack {
			// Clamp to all-in. The clamped total must still exceed the
			// current bet or the move is a call, not a raise.
			raiseTo = seat.Bet + seat.Stack
			need = seat.Stack
			if raiseTo <= run.CurrentBet {
				return Errf(CodeInvalidRaise, "stack only covers a call of %d", toCall)
			}
		}
		minTo := minRaiseTo(run)
		allIn := need == seat.Stack
		if raiseTo < minTo && !allIn {
			return Errf(CodeRaiseTooSmall, "minimum raise is to %d", minTo)
		}
		fullRaise := raiseTo >= minTo
		commit(run, seat, need)
		if fullRaise {
			// A full raise re-opens the action: everyone else may act again
			// and the raise increment grows. A short all-in does neither.
			run.MinRaise = raiseTo - run.CurrentBet
			run.ActedThisRound = make(map[int]bool)
		}
		run.CurrentBet = raiseTo
		run.LastAggressorSeat = seat.SeatNo

	default:
		return Errf(CodeInvalidAction, "unknown action %q", action)
	}

	run.ActedThisRound[seat.SeatNo] = true
	if timeout {
		seat.TimeoutsInRow++
	} else {
		seat.TimeoutsInRow = 0
	}
	return nil
}

// commit moves chips from the seat's stack into the pot.
func commit(run *TableRuntime, seat *SeatRuntime, amount int64) {
	seat.Stack -= amount
	seat.Bet += amount
	seat.Committed += amount
	run.Pot.Total += amount
	if seat.Stack == 0 {
		seat.IsAllIn = true
	}
}

// minRaiseTo is the smallest legal raise-to total: the opening bet must be
// at least minRaise, and a re-raise must top the current bet by at least
// the last full raise increment.
func minRaiseTo(run *TableRuntime) int64 {
	if run.CurrentBet == 0 {
		return run.MinRaise
	}
	return run.CurrentBet + run.MinRaise
}

// isRoundSettled reports whether no further action is possible on the
// current street: at most one contender remains, or nobody can act, or
// every contender who can act has acted and matched the current bet.
func isRoundSettled(run *TableRuntime) bool {
	contenders := run.Contenders()
	if len(contenders) <= 1 {
		return true
	}
	canAct := 0
	for _, c := range contenders {
		if c.CanAct() {
			canAct++
		}
	}
	if canAct == 0 {
		return true
	}
	for _, c := range contenders {
		if !c.CanAct() {
			continue
		}
		if !run.ActedThisRound[c.SeatNo] {
			return false
		}
		if run.CurrentBet > 0 && c.Bet != run.CurrentBet {
			return false
		}
	}
	return true
}

// shouldAutoRunout reports whether the remaining board should be dealt out
// without further betting: two or more contenders, at least one all-in and
// at most one still able to act. Evaluated on the state of a freshly
// advanced street; once set on the runtime the flag is never cleared for
// the rest of the hand.
func shouldAutoRunout(run *TableRuntime) bool {
	contenders := run.Contenders()
	if len(contenders) < 2 {
		return false
	}
	anyAllIn := false
	canAct := 0
	for _, c := range contenders {
		if c.IsAllIn {
			anyAllIn = true
		}
		if c.CanAct() {
			canAct++
		}
	}
	return anyAllIn && canAct <= 1
}

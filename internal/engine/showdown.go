package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/openfelt/cardroom/internal/deck"
	"github.com/openfelt/cardroom/internal/eval"
)

// sidePot is one layer of the pot. Folded stakes fund the layer but the
// folder is never eligible to win it.
type sidePot struct {
	amount       int64
	eligible     []int // non-folded seats whose stake covers this layer
	contributors []int // every seat staked into this layer
}

// buildSidePots layers the pot by the distinct committed totals. Each
// layer between two adjacent levels collects (level - previous) from every
// seat committed at least to that level, so the layers sum exactly to the
// pot.
func buildSidePots(run *TableRuntime) []sidePot {
	seen := make(map[int64]bool)
	var levels []int64
	for _, p := range run.Players {
		if p.Committed > 0 && !seen[p.Committed] {
			seen[p.Committed] = true
			levels = append(levels, p.Committed)
		}
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i] < levels[j] })

	seats := make([]int, 0, len(run.Players))
	for seatNo := range run.Players {
		seats = append(seats, seatNo)
	}
	sort.Ints(seats)

	pots := make([]sidePot, 0, len(levels))
	prev := int64(0)
	for _, lvl := range levels {
		var pot sidePot
		for _, seatNo := range seats {
			p := run.Players[seatNo]
			if p.Committed < lvl {
				continue
			}
			pot.contributors = append(pot.contributors, seatNo)
			if !p.HasFolded {
				pot.eligible = append(pot.eligible, seatNo)
			}
		}
		pot.amount = (lvl - prev) * int64(len(pot.contributors))
		pots = append(pots, pot)
		prev = lvl
	}
	return pots
}

// resolveShowdown ranks the contenders' seven-card hands and splits every
// pot layer among its best eligible seats. Split remainders go one chip at
// a time to the tied seats nearest the dealer's left. A layer whose every
// contributor folded is returned to those contributors: an uncalled
// overbet flows back to its owner.
func resolveShowdown(run *TableRuntime, holes map[int][]deck.Card) ([]Reveal, []Winner) {
	values := make(map[int]eval.Value)
	contenders := run.Contenders()
	reveals := make([]Reveal, 0, len(contenders))
	for _, c := range contenders {
		cards := make([]deck.Card, 0, 7)
		cards = append(cards, holes[c.SeatNo]...)
		cards = append(cards, run.Board...)
		v := eval.Evaluate(cards)
		values[c.SeatNo] = v
		reveals = append(reveals, Reveal{
			Seat:     c.SeatNo,
			UserID:   c.UserID,
			Username: c.Username,
			Cards:    holes[c.SeatNo],
			Value:    v,
			Hand:     v.String(),
		})
	}

	payouts := make(map[int]int64)
	for _, pot := range buildSidePots(run) {
		if pot.amount == 0 {
			continue
		}
		if len(pot.eligible) == 0 {
			share := pot.amount / int64(len(pot.contributors))
			for _, seatNo := range pot.contributors {
				payouts[seatNo] += share
			}
			continue
		}
		var best eval.Value
		for _, seatNo := range pot.eligible {
			if values[seatNo] > best {
				best = values[seatNo]
			}
		}
		var tied []int
		for _, seatNo := range pot.eligible {
			if values[seatNo] == best {
				tied = append(tied, seatNo)
			}
		}
		sort.Slice(tied, func(i, j int) bool {
			return run.DealerDistance(tied[i]) < run.DealerDistance(tied[j])
		})
		n := int64(len(tied))
		base := pot.amount / n
		rem := pot.amount % n
		for i, seatNo := range tied {
			pay := base
			if int64(i) < rem {
				pay++
			}
			payouts[seatNo] += pay
		}
	}

	winners := make([]Winner, 0, len(payouts))
	for seatNo, payout := range payouts {
		winners = append(winners, Winner{
			Seat:   seatNo,
			UserID: run.Players[seatNo].UserID,
			Payout: payout,
		})
	}
	sort.Slice(winners, func(i, j int) bool { return winners[i].Seat < winners[j].Seat })
	return reveals, winners
}

// endHandAtShowdown turns up the contenders' cards, splits the pots and
// finishes the hand.
func (e *Engine) endHandAtShowdown(ctx context.Context, run *TableRuntime) (*step, error) {
	holes := make(map[int][]deck.Card)
	for _, c := range run.Contenders() {
		cards, err := e.rt.LoadHoleCards(ctx, run.TableID, run.HandID, c.UserID)
		if err != nil {
			return nil, fmt.Errorf("hole cards for seat %d: %w", c.SeatNo, err)
		}
		holes[c.SeatNo] = cards
	}
	reveals, winners := resolveShowdown(run, holes)
	for _, w := range winners {
		run.Players[w.Seat].Stack += w.Payout
	}
	if err := e.finishHand(ctx, run, EndReasonShowdown, reveals, winners); err != nil {
		return nil, err
	}
	return &step{kind: stepEnded, hold: e.cfg.ShowdownHold}, nil
}

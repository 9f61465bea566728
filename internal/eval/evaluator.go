// Package eval ranks Texas Hold'em hands. Evaluate maps 5 to 7 cards onto a
// single comparable value: greater is stronger, equal values split the pot.
package eval

import (
	"math/bits"

	"github.com/openfelt/cardroom/internal/deck"
)

// Category enumerates hand categories from weakest to strongest.
type Category uint8

const (
	HighCard Category = iota
	OnePair
	TwoPair
	ThreeOfAKind
	Straight
	Flush
	FullHouse
	FourOfAKind
	StraightFlush
)

// String returns the display name used in showdown reveals.
func (c Category) String() string {
	switch c {
	case HighCard:
		return "High Card"
	case OnePair:
		return "Pair"
	case TwoPair:
		return "Two Pair"
	case ThreeOfAKind:
		return "Three of a Kind"
	case Straight:
		return "Straight"
	case Flush:
		return "Flush"
	case FullHouse:
		return "Full House"
	case FourOfAKind:
		return "Four of a Kind"
	case StraightFlush:
		return "Straight Flush"
	default:
		return "Unknown"
	}
}

// Value is the strength of a hand. The category occupies the bits above 20;
// up to five rank nibbles below break ties within a category, ordered most
// significant first. Hands of equal strength compare equal.
type Value uint32

// Category returns the hand category encoded in the value.
func (v Value) Category() Category {
	return Category(v >> 20)
}

// String returns the category display name.
func (v Value) String() string {
	return v.Category().String()
}

func value(c Category, ranks ...deck.Rank) Value {
	v := Value(c) << 20
	shift := 16
	for _, r := range ranks {
		v |= Value(r) << shift
		shift -= 4
	}
	return v
}

// Evaluate returns the strength of the best five-card hand that can be made
// from 5, 6 or 7 cards. Any other input size returns the zero Value.
func Evaluate(cards []deck.Card) Value {
	if len(cards) < 5 || len(cards) > 7 {
		return 0
	}

	// One bit per rank per suit: bit i is rank i+2, deuce through ace.
	var suitMasks [4]uint16
	var rankMask uint16
	for _, c := range cards {
		suitMasks[c.Suit] |= 1 << uint(c.Rank-deck.Two)
	}
	for _, m := range suitMasks {
		rankMask |= m
	}

	// Flush beats everything below a full house, so resolve flushes first.
	// At most one suit can hold five of seven cards.
	for _, suitMask := range suitMasks {
		if bits.OnesCount16(suitMask) < 5 {
			continue
		}
		if high := straightHigh(suitMask); high != 0 {
			return value(StraightFlush, high)
		}
		return value(Flush, topRanks(suitMask, 5)...)
	}

	s0, s1, s2, s3 := suitMasks[0], suitMasks[1], suitMasks[2], suitMasks[3]

	quadsMask := s0 & s1 & s2 & s3
	tripCandidates := (s0 & s1 & s2) | (s0 & s1 & s3) | (s0 & s2 & s3) | (s1 & s2 & s3)
	tripsMask := tripCandidates &^ quadsMask
	pairsMask := ((s0 & s1) | (s0 & s2) | (s0 & s3) | (s1 & s2) | (s1 & s3) | (s2 & s3)) &^ tripCandidates

	if quad := highestRank(quadsMask); quad != 0 {
		kicker := highestRank(rankMask &^ rankBit(quad))
		return value(FourOfAKind, quad, kicker)
	}

	if trip := highestRank(tripsMask); trip != 0 {
		// A second trip rank fills the house as the pair.
		if pair := highestRank(pairsMask | (tripsMask &^ rankBit(trip))); pair != 0 {
			return value(FullHouse, trip, pair)
		}
	}

	if high := straightHigh(rankMask); high != 0 {
		return value(Straight, high)
	}

	if trip := highestRank(tripsMask); trip != 0 {
		kickers := topRanks(rankMask&^rankBit(trip), 2)
		return value(ThreeOfAKind, append([]deck.Rank{trip}, kickers...)...)
	}

	if hi := highestRank(pairsMask); hi != 0 {
		if lo := highestRank(pairsMask &^ rankBit(hi)); lo != 0 {
			kicker := highestRank(rankMask &^ (rankBit(hi) | rankBit(lo)))
			return value(TwoPair, hi, lo, kicker)
		}
		kickers := topRanks(rankMask&^rankBit(hi), 3)
		return value(OnePair, append([]deck.Rank{hi}, kickers...)...)
	}

	return value(HighCard, topRanks(rankMask, 5)...)
}

func rankBit(r deck.Rank) uint16 {
	return 1 << uint(r-deck.Two)
}

// highestRank returns the highest rank present in the mask, or 0 when empty.
func highestRank(mask uint16) deck.Rank {
	if mask == 0 {
		return 0
	}
	return deck.Rank(bits.Len16(mask)-1) + deck.Two
}

// topRanks returns the n highest ranks in the mask in descending order.
func topRanks(mask uint16, n int) []deck.Rank {
	ranks := make([]deck.Rank, 0, n)
	for len(ranks) < n && mask != 0 {
		top := highestRank(mask)
		ranks = append(ranks, top)
		mask &^= rankBit(top)
	}
	return ranks
}

// straightHigh returns the high rank of the best straight in the mask, or 0
// when the mask holds none. The wheel counts with the five high.
func straightHigh(mask uint16) deck.Rank {
	const wheel = 0x100F // A-2-3-4-5

	if mask&wheel == wheel {
		high := deck.Five
		// A higher straight may coexist in a 7-card mask.
		if h := cascadeHigh(mask); h > high {
			return h
		}
		return high
	}
	return cascadeHigh(mask)
}

// cascadeHigh finds runs of five consecutive ranks with a bitwise cascade.
func cascadeHigh(mask uint16) deck.Rank {
	seq := mask & (mask >> 1) & (mask >> 2) & (mask >> 3) & (mask >> 4)
	if seq == 0 {
		return 0
	}
	return deck.Rank(bits.Len16(seq)-1) + deck.Two + 4
}

package deck

import rand "math/rand/v2"

// New returns a full 52-card deck in fixed order: ranks ascending, suits
// S/H/D/C within each rank. Callers shuffle before dealing.
func New() []Card {
	cards := make([]Card, 0, 52)
	for rank := Two; rank <= Ace; rank++ {
		for suit := Spades; suit <= Clubs; suit++ {
			cards = append(cards, Card{Rank: rank, Suit: suit})
		}
	}
	return cards
}

// Shuffle permutes cards in place with a Fisher-Yates pass driven by rng.
// The RNG is injected so hands can be replayed deterministically in tests.
func Shuffle(cards []Card, rng *rand.Rand) {
	for i := len(cards) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		cards[i], cards[j] = cards[j], cards[i]
	}
}

// Draw splits off the top n cards. It returns the drawn cards and the
// remaining deck without mutating the input; the drawn slice is capped so
// appends to it cannot clobber the remainder.
func Draw(cards []Card, n int) (drawn, rest []Card) {
	if n < 0 || n > len(cards) {
		return nil, cards
	}
	return cards[:n:n], cards[n:]
}

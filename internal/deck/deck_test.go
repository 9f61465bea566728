package deck

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfelt/cardroom/internal/randutil"
)

func TestNewContains52UniqueCards(t *testing.T) {
	cards := New()
	require.Len(t, cards, 52)

	seen := make(map[Card]bool, 52)
	for _, c := range cards {
		assert.False(t, seen[c], "duplicate card %s", c)
		seen[c] = true
	}
}

func TestShuffleDeterministicForSeed(t *testing.T) {
	a := New()
	b := New()
	Shuffle(a, randutil.NewSeeded(42))
	Shuffle(b, randutil.NewSeeded(42))
	assert.Equal(t, a, b)

	c := New()
	Shuffle(c, randutil.NewSeeded(43))
	assert.NotEqual(t, a, c)
}

func TestDrawDoesNotMutate(t *testing.T) {
	cards := MustParseMany("AS KD QH JC TS")

	drawn, rest := Draw(cards, 2)
	require.Equal(t, MustParseMany("AS KD"), drawn)
	require.Equal(t, MustParseMany("QH JC TS"), rest)
	assert.Equal(t, MustParseMany("AS KD QH JC TS"), cards)

	// Appending to the drawn slice must not bleed into the remainder.
	drawn = append(drawn, Card{Rank: Two, Suit: Clubs})
	assert.Equal(t, MustParseMany("QH JC TS"), rest)
	_ = drawn
}

func TestDrawOverdraw(t *testing.T) {
	cards := MustParseMany("AS KD")
	drawn, rest := Draw(cards, 3)
	assert.Nil(t, drawn)
	assert.Equal(t, cards, rest)
}

package qafoon

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sortedCodes(cards []Card) []string {
	codes := CodeCards(cards)
	sort.Strings(codes)
	return codes
}

func TestShufflePreservesDeck(t *testing.T) {
	reference := sortedCodes(GenerateDeck())
	methods := []ShuffleMethod{ShuffleHard, ShuffleRiffle, ShuffleCut, ShuffleOverhand, ShuffleHindu}
	for _, method := range methods {
		deck := GenerateDeck()
		rng := rand.New(rand.NewSource(7))
		for i := 0; i < 10; i++ {
			Shuffle(deck, method, rng)
		}
		require.Len(t, deck, 52)
		assert.Equal(t, reference, sortedCodes(deck), "method %d", method)
	}
}

func TestShuffleDeterministic(t *testing.T) {
	a := GenerateDeck()
	b := GenerateDeck()
	Shuffle(a, ShuffleHard, rand.New(rand.NewSource(42)))
	Shuffle(b, ShuffleHard, rand.New(rand.NewSource(42)))
	assert.Equal(t, CodeCards(a), CodeCards(b))
}

func TestHardShuffleChangesOrder(t *testing.T) {
	deck := GenerateDeck()
	Shuffle(deck, ShuffleHard, rand.New(rand.NewSource(1)))
	assert.NotEqual(t, CodeCards(GenerateDeck()), CodeCards(deck))
}

package qafoon

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func playAll(g *Ground, cards ...Card) []uuid.UUID {
	ids := make([]uuid.UUID, len(cards))
	for i, c := range cards {
		ids[i] = uuid.New()
		g.AddCard(ids[i], c)
	}
	return ids
}

func TestGroundLeadingSuit(t *testing.T) {
	var g Ground
	assert.Equal(t, HokmNone, g.Suit)
	playAll(&g, NewCard(Hearts, "7"), NewCard(Spades, "A"))
	assert.Equal(t, Hearts, g.Suit)
	g.Reset()
	assert.Equal(t, HokmNone, g.Suit)
	assert.Empty(t, g.Cards)
}

func TestWinnerEmptyGround(t *testing.T) {
	var g Ground
	_, err := g.Winner(Spades)
	assert.ErrorIs(t, err, ErrNoValidCard)
}

func TestWinnerOrdinaryTrump(t *testing.T) {
	var g Ground
	ids := playAll(&g,
		NewCard(Hearts, "A"),
		NewCard(Hearts, "K"),
		NewCard(Spades, "2"),
		NewCard(Spades, "5"),
	)
	// Any trump beats the leading suit; the higher trump wins.
	winner, err := g.Winner(Spades)
	require.NoError(t, err)
	assert.Equal(t, ids[3], winner)
}

func TestWinnerOrdinaryNoTrumpPlayed(t *testing.T) {
	var g Ground
	ids := playAll(&g,
		NewCard(Hearts, "7"),
		NewCard(Hearts, "J"),
		NewCard(Diamonds, "A"),
		NewCard(Hearts, "3"),
	)
	// Off-suit cards never win; the highest heart takes it.
	winner, err := g.Winner(Spades)
	require.NoError(t, err)
	assert.Equal(t, ids[1], winner)
}

func TestWinnerNaras(t *testing.T) {
	var g Ground
	ids := playAll(&g,
		NewCard(Clubs, "9"),
		NewCard(Clubs, "2"),
		NewCard(Clubs, "A"),
		NewCard(Diamonds, "2"),
	)
	winner, err := g.Winner(Naras)
	require.NoError(t, err)
	assert.Equal(t, ids[1], winner)
}

func TestWinnerSaras(t *testing.T) {
	var g Ground
	ids := playAll(&g,
		NewCard(Clubs, "9"),
		NewCard(Clubs, "Q"),
		NewCard(Spades, "A"),
		NewCard(Clubs, "3"),
	)
	winner, err := g.Winner(Saras)
	require.NoError(t, err)
	assert.Equal(t, ids[1], winner)
}

func TestWinnerTakNarasAceLowest(t *testing.T) {
	var g Ground
	ids := playAll(&g,
		NewCard(Hearts, "2"),
		NewCard(Hearts, "A"),
		NewCard(Hearts, "K"),
		NewCard(Hearts, "5"),
	)
	// The Ace ranks below the 2 in Tak Naras.
	winner, err := g.Winner(TakNaras)
	require.NoError(t, err)
	assert.Equal(t, ids[1], winner)
}

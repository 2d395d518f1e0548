package qafoon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateDeck(t *testing.T) {
	deck := GenerateDeck()
	require.Len(t, deck, 52)

	seen := make(map[string]bool)
	suitCount := make(map[Hokm]int)
	for _, c := range deck {
		code := c.Code()
		require.False(t, seen[code], "duplicate card %s", code)
		seen[code] = true
		suitCount[c.Suit]++
	}
	for _, suit := range Suits {
		assert.Equal(t, 13, suitCount[suit], "suit %s", suit.Name())
	}
}

func TestCardCodeRoundTrip(t *testing.T) {
	for _, c := range GenerateDeck() {
		parsed, err := ParseCard(c.Code())
		require.NoError(t, err, "code %s", c.Code())
		assert.Equal(t, c, parsed)
	}
}

func TestParseCardInvalid(t *testing.T) {
	for _, code := range []string{"", "S", "S-", "-2", "X-2", "S-1", "S-Joker", "spades-2", "S_2"} {
		_, err := ParseCard(code)
		assert.ErrorIs(t, err, ErrNoValidCard, "code %q", code)
	}
}

func TestCardOrdering(t *testing.T) {
	two := NewCard(Spades, "2")
	ace := NewCard(Spades, "A")
	king := NewCard(Spades, "K")
	assert.Equal(t, 0, two.Ord)
	assert.Equal(t, 12, ace.Ord)
	assert.Greater(t, ace.Ord, king.Ord)
}

func TestHokmNamesAndCodes(t *testing.T) {
	cases := []struct {
		hokm Hokm
		name string
		code string
	}{
		{Spades, "Spades", "S"},
		{Hearts, "Hearts", "H"},
		{Diamonds, "Diamonds", "D"},
		{Clubs, "Clubs", "C"},
		{Naras, "Naras", "N"},
		{Saras, "Saras", "A"},
		{TakNaras, "Tak Naras", "T"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.name, tc.hokm.Name())
		assert.Equal(t, tc.code, tc.hokm.Code())
		assert.Equal(t, tc.hokm, ParseHokm(tc.code))
	}
	assert.Equal(t, HokmNone, ParseHokm("Z"))
	assert.Equal(t, HokmNone, ParseHokm(""))
}

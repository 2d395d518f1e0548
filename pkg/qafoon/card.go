// Package qafoon implements the Qafoon rule engine: a four-player,
// two-team trick-taking game with bidding, trump selection and score
// accumulation to a target score.
package qafoon

import (
	"fmt"
	"strings"

	"github.com/qafoongame/qafoon/pkg/wire"
)

// Hokm is a trump marker: one of the four ordinary suits, one of the
// three special trump modes, or the unset sentinel. The special modes
// are legal only after a maximum bid.
type Hokm int

const (
	HokmNone Hokm = iota
	Spades
	Hearts
	Diamonds
	Clubs
	Naras
	Saras
	TakNaras
)

// Suits are the four ordinary suits, in deck-generation order.
var Suits = [4]Hokm{Spades, Hearts, Diamonds, Clubs}

// AllHokms are every trump option available after a maximum bid.
var AllHokms = [7]Hokm{Spades, Hearts, Diamonds, Clubs, Naras, Saras, TakNaras}

// Name returns the display name of the trump marker.
func (h Hokm) Name() string {
	switch h {
	case Spades:
		return "Spades"
	case Hearts:
		return "Hearts"
	case Diamonds:
		return "Diamonds"
	case Clubs:
		return "Clubs"
	case Naras:
		return "Naras"
	case Saras:
		return "Saras"
	case TakNaras:
		return "Tak Naras"
	default:
		return "Hokm"
	}
}

// Code returns the one-character wire code, or "" for the sentinel.
func (h Hokm) Code() string {
	switch h {
	case Spades:
		return "S"
	case Hearts:
		return "H"
	case Diamonds:
		return "D"
	case Clubs:
		return "C"
	case Naras:
		return "N"
	case Saras:
		return "A"
	case TakNaras:
		return "T"
	default:
		return ""
	}
}

// Glyph returns the decorative symbol shown next to the name.
func (h Hokm) Glyph() string {
	switch h {
	case Spades:
		return "♠"
	case Hearts:
		return "♥"
	case Diamonds:
		return "♦"
	case Clubs:
		return "♣"
	case Naras:
		return "↓"
	case Saras:
		return "↑"
	case TakNaras:
		return "↧"
	default:
		return ""
	}
}

func (h Hokm) String() string {
	return h.Name() + " " + h.Glyph()
}

// ParseHokm maps a wire code back to its trump marker. Unknown codes
// map to the sentinel, mirroring the wire format's leniency; callers
// validate against the legal set for the current bid.
func ParseHokm(code string) Hokm {
	switch code {
	case "S":
		return Spades
	case "H":
		return Hearts
	case "D":
		return Diamonds
	case "C":
		return Clubs
	case "N":
		return Naras
	case "A":
		return Saras
	case "T":
		return TakNaras
	default:
		return HokmNone
	}
}

// Ranks are the thirteen rank labels, lowest to highest. A card's
// ordinal is its index here.
var Ranks = [13]string{"2", "3", "4", "5", "6", "7", "8", "9", "10", "J", "Q", "K", "A"}

var rankOrd = func() map[string]int {
	m := make(map[string]int, len(Ranks))
	for i, r := range Ranks {
		m[r] = i
	}
	return m
}()

// ErrNoValidCard rejects malformed card codes and cards a player does
// not hold.
var ErrNoValidCard = fmt.Errorf("no valid card was found")

// Card is a playing card. Ord is derived from Rank via the fixed rank
// table; equality is defined by (Suit, Ord).
type Card struct {
	Suit Hokm
	Rank string
	Ord  int
}

// NewCard builds a card from a suit and rank label. It panics on an
// unknown rank label; deck generation only uses labels from Ranks.
func NewCard(suit Hokm, rank string) Card {
	ord, ok := rankOrd[rank]
	if !ok {
		panic("qafoon: unknown rank label " + rank)
	}
	return Card{Suit: suit, Rank: rank, Ord: ord}
}

// Code returns the wire code, e.g. "S-2" or "H-K".
func (c Card) Code() string {
	return c.Suit.Code() + "-" + c.Rank
}

func (c Card) String() string {
	return c.Suit.Glyph() + " " + c.Rank
}

// ParseCard parses a wire code produced by Code. It fails with
// ErrNoValidCard on a missing separator, unknown suit code or unknown
// rank label.
func ParseCard(code string) (Card, error) {
	suitCode, rank, ok := strings.Cut(code, "-")
	if !ok {
		return Card{}, ErrNoValidCard
	}
	suit := ParseHokm(suitCode)
	if suit == HokmNone {
		return Card{}, ErrNoValidCard
	}
	if _, ok := rankOrd[rank]; !ok {
		return Card{}, ErrNoValidCard
	}
	return NewCard(suit, rank), nil
}

// GenerateDeck returns the full 52-card deck in (suit, rank) order.
func GenerateDeck() []Card {
	cards := make([]Card, 0, len(Suits)*len(Ranks))
	for _, suit := range Suits {
		for _, rank := range Ranks {
			cards = append(cards, NewCard(suit, rank))
		}
	}
	return cards
}

// CodeCards maps a hand to wire codes, preserving order.
func CodeCards(cards []Card) []string {
	codes := make([]string, len(cards))
	for i, c := range cards {
		codes[i] = c.Code()
	}
	return codes
}

// groundCodes converts played cards to their wire representation.
func groundCodes(played []PlayedCard, names func(PlayedCard) string) []wire.GroundCard {
	out := make([]wire.GroundCard, len(played))
	for i, pc := range played {
		out[i] = wire.GroundCard{PlayerName: names(pc), Card: pc.Card.Code()}
	}
	return out
}

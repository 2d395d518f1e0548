package qafoon

import "github.com/google/uuid"

// PlayedCard is a card on the ground together with the player who
// played it.
type PlayedCard struct {
	PlayerID uuid.UUID
	Card     Card
}

// Ground is the trick in progress. Suit is the leading suit, captured
// from the first card played; it stays HokmNone until then.
type Ground struct {
	Cards []PlayedCard
	Suit  Hokm
}

// AddCard places a card on the ground. The first card sets the leading
// suit.
func (g *Ground) AddCard(playerID uuid.UUID, c Card) {
	if len(g.Cards) == 0 {
		g.Suit = c.Suit
	}
	g.Cards = append(g.Cards, PlayedCard{PlayerID: playerID, Card: c})
}

// Reset empties the ground for the next trick.
func (g *Ground) Reset() {
	g.Cards = g.Cards[:0]
	g.Suit = HokmNone
}

// Winner resolves the trick under the given trump marker:
//
//   - ordinary suit: highest trump if any trump was played, else the
//     highest card of the leading suit
//   - Naras: lowest card of the leading suit
//   - Saras: highest card of the leading suit
//   - TakNaras: lowest card of the leading suit, with the Ace counting
//     below every other rank
//
// It fails with ErrNoValidCard on an empty ground.
func (g *Ground) Winner(hokm Hokm) (uuid.UUID, error) {
	var winner *PlayedCard
	switch hokm {
	case Naras:
		winner = g.pickLeading(func(best, next Card) bool { return next.Ord < best.Ord })
	case Saras:
		winner = g.pickLeading(func(best, next Card) bool { return next.Ord > best.Ord })
	case TakNaras:
		winner = g.pickLeading(func(best, next Card) bool {
			return takNarasOrd(next) < takNarasOrd(best)
		})
	default:
		winner = g.pick(hokm, func(best, next Card) bool { return next.Ord > best.Ord })
		if winner == nil {
			winner = g.pickLeading(func(best, next Card) bool { return next.Ord > best.Ord })
		}
	}
	if winner == nil {
		return uuid.Nil, ErrNoValidCard
	}
	return winner.PlayerID, nil
}

// takNarasOrd demotes the Ace under every other rank.
func takNarasOrd(c Card) int {
	if c.Ord == 12 {
		return -1
	}
	return c.Ord
}

func (g *Ground) pickLeading(better func(best, next Card) bool) *PlayedCard {
	return g.pick(g.Suit, better)
}

func (g *Ground) pick(suit Hokm, better func(best, next Card) bool) *PlayedCard {
	var best *PlayedCard
	for i := range g.Cards {
		pc := &g.Cards[i]
		if pc.Card.Suit != suit {
			continue
		}
		if best == nil || better(best.Card, pc.Card) {
			best = pc
		}
	}
	return best
}

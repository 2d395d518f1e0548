package qafoon

import (
	"sort"

	"github.com/google/uuid"

	"github.com/qafoongame/qafoon/pkg/conn"
)

// Team is one of the two partnerships. CollectedHands holds the tricks
// (and the declarer's fold pile) won this round; it is drained back
// into the deck between rounds. Score only ever grows.
type Team struct {
	ID             uuid.UUID
	Name           string
	Score          int
	CollectedHands [][]Card
	Players        []uuid.UUID
}

// NewTeam creates an empty team with a fresh id.
func NewTeam(name string) *Team {
	return &Team{ID: uuid.New(), Name: name}
}

// Player is a seated participant. Hand is kept sorted by suit name then
// rank ordinal after every mutation so client-facing card lists are
// deterministic.
type Player struct {
	ID     uuid.UUID
	Name   string
	TeamID uuid.UUID
	Hand   []Card
	Conn   *conn.PlayerConn
}

// NewPlayer seats a player on a team with the given connection actors.
func NewPlayer(id uuid.UUID, name string, teamID uuid.UUID, pc *conn.PlayerConn) *Player {
	return &Player{ID: id, Name: name, TeamID: teamID, Conn: pc}
}

// SetCards replaces the hand.
func (p *Player) SetCards(cards []Card) {
	p.Hand = append(p.Hand[:0], cards...)
	p.sortHand()
}

// AddCards appends cards to the hand.
func (p *Player) AddCards(cards []Card) {
	p.Hand = append(p.Hand, cards...)
	p.sortHand()
}

// RemoveCard removes the first card equal to c. It fails with
// ErrNoValidCard when the player does not hold it.
func (p *Player) RemoveCard(c Card) (Card, error) {
	for i, held := range p.Hand {
		if held.Suit == c.Suit && held.Ord == c.Ord {
			removed := held
			p.Hand = append(p.Hand[:i], p.Hand[i+1:]...)
			p.sortHand()
			return removed, nil
		}
	}
	return Card{}, ErrNoValidCard
}

// HasSuit reports whether the player holds any card of the given suit.
func (p *Player) HasSuit(suit Hokm) bool {
	for _, c := range p.Hand {
		if c.Suit == suit {
			return true
		}
	}
	return false
}

func (p *Player) sortHand() {
	sort.Slice(p.Hand, func(i, j int) bool {
		if p.Hand[i].Suit != p.Hand[j].Suit {
			return p.Hand[i].Suit.Name() < p.Hand[j].Suit.Name()
		}
		return p.Hand[i].Ord < p.Hand[j].Ord
	})
}

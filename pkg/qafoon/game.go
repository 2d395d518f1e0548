package qafoon

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/decred/slog"
	"github.com/google/uuid"

	"github.com/qafoongame/qafoon/pkg/conn"
	"github.com/qafoongame/qafoon/pkg/statemachine"
	"github.com/qafoongame/qafoon/pkg/wire"
)

const (
	// NumPlayers is the fixed table size.
	NumPlayers = 4
	// TeamSize is the fixed partnership size.
	TeamSize = 2
	// TargetScore ends the game when any team reaches it.
	TargetScore = 104
	// HighestBet is the maximum bid; bidding ends instantly when it is
	// reached and it doubles the round's payout.
	HighestBet = 13
	// KittySize is the number of face-down cards set aside each deal
	// for the bid winner.
	KittySize = 4

	numTeams = NumPlayers / TeamSize
)

const (
	invalidResponse = "Invalid. try again\n"
	cantPass        = "You can't pass this one"
)

// Config holds per-game tunables.
type Config struct {
	Log slog.Logger
	// TeamSelectionTimeout bounds the whole team-formation phase.
	TeamSelectionTimeout time.Duration
	// PlayerChoiceTimeout bounds every demand/answer exchange when
	// ChoiceTimeoutEnabled is set.
	PlayerChoiceTimeout  time.Duration
	ChoiceTimeoutEnabled bool
	// Seed makes deals deterministic when non-zero.
	Seed int64
}

// Reconnection re-wires a returning player onto a fresh stream.
type Reconnection struct {
	PlayerID uuid.UUID
	Stream   io.ReadWriteCloser
}

// Game owns all players, teams and cards for one table and drives a
// complete game from team formation to a final winner. All mutable
// game state is owned by the run-loop goroutine while Run executes;
// out-of-band readers only ever touch the SharedState snapshot. The
// registry serializes its own access through mu, which Run holds for
// the entire game.
type Game struct {
	id   uuid.UUID
	log  slog.Logger
	cfg Config
	rng *rand.Rand
	mu  sync.Mutex

	teams     map[uuid.UUID]*Team
	players   map[uuid.UUID]*Player
	joinOrder []uuid.UUID
	field     []uuid.UUID
	cards     []Card
	starter   uuid.UUID
	hokm      Hokm
	ground    Ground

	shared      *SharedState
	reconnectCh chan Reconnection

	// Per-round context used by the state functions.
	ctx      context.Context
	kitty    []Card
	bet      int
	declarer uuid.UUID
	offTeam    uuid.UUID
	defTeam    uuid.UUID
	winnerTeam uuid.UUID
	initDone   bool
}

// New creates an empty Qafoon table.
func New(cfg Config) *Game {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Game{
		id:          uuid.New(),
		log:         cfg.Log,
		cfg:         cfg,
		rng:         rand.New(rand.NewSource(seed)),
		teams:       make(map[uuid.UUID]*Team),
		players:     make(map[uuid.UUID]*Player),
		shared:      NewSharedState(),
		reconnectCh: make(chan Reconnection, NumPlayers),
	}
}

// ID returns the game id.
func (g *Game) ID() uuid.UUID { return g.id }

// Status returns the lifecycle state from the published snapshot.
func (g *Game) Status() Status { return g.shared.Status() }

// IsFinished reports whether the game reached a terminal state.
func (g *Game) IsFinished() bool {
	s := g.Status()
	return s == StatusFinished || s == StatusEnded
}

// Init generates teams and the 52-card deck. Called once, when the
// first player joins the queue.
func (g *Game) Init() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.initDone {
		return fmt.Errorf("game already initialized")
	}
	for i := 0; i < numTeams; i++ {
		team := NewTeam(fmt.Sprintf("Team %d", i+1))
		g.teams[team.ID] = team
	}
	g.cards = GenerateDeck()
	g.initDone = true
	return nil
}

// AddPlayer seats a player and spawns their connection actors. Team
// assignment happens later, during the team-selection phase.
func (g *Game) AddPlayer(userID uuid.UUID, username string, stream io.ReadWriteCloser) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.players) >= NumPlayers {
		return fmt.Errorf("game is full")
	}
	pc := conn.New(stream, g.shared, g.log)
	g.players[userID] = NewPlayer(userID, username, uuid.Nil, pc)
	g.joinOrder = append(g.joinOrder, userID)
	return nil
}

// PlayerCount returns the number of seated players.
func (g *Game) PlayerCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.players)
}

// IsFull reports whether the table reached capacity.
func (g *Game) IsFull() bool {
	return g.PlayerCount() >= NumPlayers
}

// PlayerIDs returns the seated player ids in join order.
func (g *Game) PlayerIDs() []uuid.UUID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]uuid.UUID(nil), g.joinOrder...)
}

// Reconnect hands a returning player's fresh stream to the run loop.
func (g *Game) Reconnect(playerID uuid.UUID, stream io.ReadWriteCloser) error {
	select {
	case g.reconnectCh <- Reconnection{PlayerID: playerID, Stream: stream}:
		return nil
	default:
		return fmt.Errorf("reconnection channel full for game %s", g.id)
	}
}

// NotifyQueueTimeout tells every waiting player the queue expired and
// closes their connections. Only called on games that never started.
func (g *Game) NotifyQueueTimeout() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, p := range g.players {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = p.Conn.Send(ctx, wire.NewBroadcast(wire.Broadcast{Kind: wire.BroadcastQueueTimeout}))
		cancel()
	}
	g.closeConnections()
	g.shared.Publish(Snapshot{Status: StatusEnded})
}

// CloseAll closes every connection if the game is not mid-step. Used
// by the registry's cleanup sweep; a busy game is left for the next
// tick.
func (g *Game) CloseAll() bool {
	if !g.mu.TryLock() {
		return false
	}
	defer g.mu.Unlock()
	g.closeConnections()
	return true
}

func (g *Game) closeConnections() {
	for _, p := range g.players {
		if err := p.Conn.Close(); err != nil {
			g.log.Debugf("closing connection for %s: %v", p.Name, err)
		}
	}
}

// Run drives the whole game: team selection, then repeated rounds
// until a team reaches the target score. Any unrecoverable per-player
// failure cancels the game for everyone.
func (g *Game) Run(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ctx = ctx
	err := statemachine.New(g, (*Game).stateTeamSelection).Run()
	if err != nil && g.Status() != StatusFinished {
		g.endGame(err.Error())
	}
	return err
}

// Outcome reports, per player name, whether their team won. It is
// empty until the game finishes normally.
func (g *Game) Outcome() map[string]bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.winnerTeam == uuid.Nil {
		return nil
	}
	outcome := make(map[string]bool, len(g.players))
	for _, p := range g.players {
		outcome[p.Name] = p.TeamID == g.winnerTeam
	}
	return outcome
}

// endGame broadcasts the cancellation reason to everyone still
// reachable, closes all connections and marks the game Ended.
func (g *Game) endGame(reason string) {
	g.log.Warnf("game %s cancelled: %s", g.id, reason)
	msg := wire.NewBroadcast(wire.Broadcast{Kind: wire.BroadcastGameCancelled, Reason: reason})
	for _, p := range g.players {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = p.Conn.Send(ctx, msg)
		cancel()
	}
	g.closeConnections()
	g.shared.Publish(Snapshot{
		GameScores:  g.gameScores(),
		RoundScores: g.roundScores(),
		Hokm:        g.hokm.Code(),
		Status:      StatusEnded,
	})
}

// State functions. Each performs one phase and returns the next.

func (g *Game) stateTeamSelection() (statemachine.StateFn[Game], error) {
	if err := g.broadcast(wire.Broadcast{Kind: wire.BroadcastTeamSelectionStarting}); err != nil {
		return nil, err
	}
	ctx := g.ctx
	if g.cfg.TeamSelectionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(g.ctx, g.cfg.TeamSelectionTimeout)
		defer cancel()
	}
	for _, playerID := range g.joinOrder {
		if err := g.selectTeam(ctx, g.players[playerID]); err != nil {
			return nil, err
		}
	}
	return (*Game).stateGameStart, nil
}

func (g *Game) stateGameStart() (statemachine.StateFn[Game], error) {
	g.generateField()
	Shuffle(g.cards, ShuffleHard, g.rng)
	g.publish(StatusStarted)
	if err := g.broadcast(wire.Broadcast{Kind: wire.BroadcastGameStarting}); err != nil {
		return nil, err
	}
	return (*Game).stateRoundStart, nil
}

func (g *Game) stateRoundStart() (statemachine.StateFn[Game], error) {
	if !g.shouldContinueGame() {
		return (*Game).stateGameEnd, nil
	}
	if err := g.broadcast(wire.Broadcast{Kind: wire.BroadcastGameScore, TeamScores: g.gameScores()}); err != nil {
		return nil, err
	}
	if err := g.broadcast(wire.Broadcast{Kind: wire.BroadcastShufflingCards}); err != nil {
		return nil, err
	}
	Shuffle(g.cards, ShuffleRiffle, g.rng)
	g.kitty = append([]Card(nil), g.cards[:KittySize]...)
	g.cards = g.cards[KittySize:]
	if err := g.handOutCards(); err != nil {
		return nil, err
	}
	return (*Game).stateBetting, nil
}

func (g *Game) stateBetting() (statemachine.StateFn[Game], error) {
	bet, declarer, offTeam, err := g.runBetting()
	if err != nil {
		return nil, err
	}
	g.bet, g.declarer, g.offTeam = bet, declarer, offTeam
	defTeam, err := g.opposingTeam(offTeam)
	if err != nil {
		return nil, err
	}
	g.defTeam = defTeam
	if err := g.setStarter(declarer, bet); err != nil {
		return nil, err
	}
	return (*Game).stateFold, nil
}

func (g *Game) stateFold() (statemachine.StateFn[Game], error) {
	if err := g.foldDown(g.declarer); err != nil {
		return nil, err
	}
	return (*Game).stateHokm, nil
}

func (g *Game) stateHokm() (statemachine.StateFn[Game], error) {
	if err := g.selectHokm(g.declarer, g.bet); err != nil {
		return nil, err
	}
	return (*Game).stateTricks, nil
}

func (g *Game) stateTricks() (statemachine.StateFn[Game], error) {
	leader := g.starter
	for g.shouldContinueRound() {
		if err := g.broadcast(wire.Broadcast{Kind: wire.BroadcastRoundScore, TeamScores: g.roundScores()}); err != nil {
			return nil, err
		}
		winner, err := g.playTrick(leader)
		if err != nil {
			return nil, err
		}
		leader = winner
	}
	return (*Game).stateRoundEnd, nil
}

func (g *Game) stateRoundEnd() (statemachine.StateFn[Game], error) {
	if err := g.finishRound(); err != nil {
		return nil, err
	}
	g.prepareNextRound()
	return (*Game).stateRoundStart, nil
}

func (g *Game) stateGameEnd() (statemachine.StateFn[Game], error) {
	winner := ""
	for _, team := range g.sortedTeams() {
		if team.Score >= TargetScore {
			winner = team.Name
			g.winnerTeam = team.ID
			break
		}
	}
	if winner == "" {
		return nil, fmt.Errorf("no team reached the target score")
	}
	if err := g.broadcast(wire.Broadcast{Kind: wire.BroadcastGameWinner, Name: winner}); err != nil {
		return nil, err
	}
	g.closeConnections()
	g.publish(StatusFinished)
	g.log.Infof("game %s won by %s", g.id, winner)
	return nil, nil
}

// Phase implementations.

func (g *Game) selectTeam(ctx context.Context, p *Player) error {
	errText := ""
	for {
		available := g.availableTeams()
		names := make([]string, len(available))
		for i, t := range available {
			names[i] = t.Name
		}
		demand := wire.NewTeamDemand(names, errText)
		choice, err := g.exchange(ctx, p, demand)
		if err != nil {
			return fmt.Errorf("%s left during team selection: %w", p.Name, err)
		}
		for _, t := range available {
			if t.Name == choice {
				p.TeamID = t.ID
				t.Players = append(t.Players, p.ID)
				return nil
			}
		}
		errText = invalidResponse
	}
}

func (g *Game) availableTeams() []*Team {
	teams := g.sortedTeams()
	open := teams[:0]
	for _, t := range teams {
		if len(t.Players) < TeamSize {
			open = append(open, t)
		}
	}
	return open
}

func (g *Game) sortedTeams() []*Team {
	teams := make([]*Team, 0, len(g.teams))
	for _, t := range g.teams {
		teams = append(teams, t)
	}
	sort.Slice(teams, func(i, j int) bool { return teams[i].Name < teams[j].Name })
	return teams
}

// generateField fixes the seat order: partners sit across from each
// other, so play alternates between the two teams.
func (g *Game) generateField() {
	teams := g.sortedTeams()
	g.field = g.field[:0]
	for j := 0; j < TeamSize; j++ {
		for i := 0; i < numTeams; i++ {
			g.field = append(g.field, teams[i].Players[j])
		}
	}
}

func (g *Game) handOutCards() error {
	if err := g.broadcast(wire.Broadcast{Kind: wire.BroadcastHandingOutCards}); err != nil {
		return err
	}
	perPlayer := len(g.cards) / NumPlayers
	for i, playerID := range g.field {
		p := g.players[playerID]
		p.SetCards(g.cards[i*perPlayer : (i+1)*perPlayer])
		if err := g.send(p, &wire.Message{Kind: wire.KindCards, Cards: CodeCards(p.Hand)}); err != nil {
			return err
		}
	}
	g.cards = g.cards[:0]
	g.publish(StatusStarted)
	return nil
}

// runBetting asks every seat in field order for "pass" or 0..13. A bid
// replaces the leader only when strictly higher, so the first player
// to name a value wins ties; a bid of 13 ends the phase immediately.
// The rotation repeats until somebody bids.
func (g *Game) runBetting() (int, uuid.UUID, uuid.UUID, error) {
	highest := -1
	var bettor uuid.UUID
	var bets []wire.SeatBet
	for {
		for _, playerID := range g.field {
			p := g.players[playerID]
			passed, amount, err := g.getBet(p)
			if err != nil {
				return 0, uuid.Nil, uuid.Nil, err
			}
			bets = append(bets, wire.SeatBet{Name: p.Name, Passed: passed, Amount: amount})
			if !passed && amount > highest {
				highest = amount
				bettor = playerID
				if amount == HighestBet {
					break
				}
			}
			if err := g.broadcast(wire.Broadcast{Kind: wire.BroadcastBets, Bets: bets}); err != nil {
				return 0, uuid.Nil, uuid.Nil, err
			}
		}
		if highest < 0 {
			continue
		}
		winner := g.players[bettor]
		winner.AddCards(g.kitty)
		if err := g.send(winner, &wire.Message{Kind: wire.KindAddGroundCards, GroundCards: CodeCards(g.kitty)}); err != nil {
			return 0, uuid.Nil, uuid.Nil, err
		}
		g.kitty = nil
		if err := g.broadcast(wire.Broadcast{
			Kind:      wire.BroadcastBetWinner,
			BetWinner: &wire.BetWinner{Name: winner.Name, Amount: highest},
		}); err != nil {
			return 0, uuid.Nil, uuid.Nil, err
		}
		return highest, bettor, winner.TeamID, nil
	}
}

// setStarter applies the bidder-rotation rule: the first round's bet
// winner starts, as does any winner of a maximum bid. Otherwise the
// previous starter keeps the lead only while their team holds the
// highest score; else the lead moves one seat along the field.
func (g *Game) setStarter(bettor uuid.UUID, bet int) error {
	if g.starter == uuid.Nil || bet == HighestBet {
		g.starter = bettor
	} else {
		teams := g.sortedTeams()
		leadingTeam := teams[0]
		for _, t := range teams[1:] {
			if t.Score > leadingTeam.Score {
				leadingTeam = t
			}
		}
		if g.players[g.starter].TeamID != leadingTeam.ID {
			idx := g.fieldIndex(g.starter)
			if idx < 0 {
				return fmt.Errorf("starter %s not found in field", g.starter)
			}
			g.starter = g.field[(idx+1)%len(g.field)]
		}
	}
	return g.broadcast(wire.Broadcast{Kind: wire.BroadcastStarter, Name: g.players[g.starter].Name})
}

func (g *Game) fieldIndex(playerID uuid.UUID) int {
	for i, id := range g.field {
		if id == playerID {
			return i
		}
	}
	return -1
}

// foldDown makes the bid winner discard back to a regular hand. The
// discards form the declarer team's first collected pile of the round.
func (g *Game) foldDown(playerID uuid.UUID) error {
	p := g.players[playerID]
	target := (len(Ranks)*len(Suits) - KittySize) / NumPlayers
	var folded []Card
	for len(p.Hand) > target {
		card, err := g.getCard(p, wire.DemandFold)
		if err != nil {
			return err
		}
		removed, err := p.RemoveCard(card)
		if err != nil {
			// getCard validated hand membership already.
			return err
		}
		folded = append(folded, removed)
		if err := g.send(p, &wire.Message{Kind: wire.KindRemoveCard, Card: removed.Code()}); err != nil {
			return err
		}
	}
	team := g.teams[p.TeamID]
	team.CollectedHands = append(team.CollectedHands, folded)
	g.publish(StatusStarted)
	return nil
}

// selectHokm restricts the declarer to the four suits unless the
// winning bid was the maximum, which unlocks the special trump modes.
func (g *Game) selectHokm(playerID uuid.UUID, bet int) error {
	allowed := Suits[:]
	if bet == HighestBet {
		allowed = AllHokms[:]
	}
	p := g.players[playerID]
	demand := wire.NewDemand(wire.DemandHokm)
	for {
		choice, err := g.exchange(g.ctx, p, demand)
		if err != nil {
			return fmt.Errorf("%s left during hokm selection: %w", p.Name, err)
		}
		hokm := ParseHokm(choice)
		legal := false
		for _, h := range allowed {
			if h == hokm {
				legal = true
				break
			}
		}
		if !legal {
			demand.SetDemandError(invalidResponse)
			continue
		}
		g.hokm = hokm
		g.publish(StatusStarted)
		return g.broadcast(wire.Broadcast{Kind: wire.BroadcastHokm, Hokm: hokm.Code()})
	}
}

// playTrick runs one trick starting from leader and returns the
// winner, who leads the next trick.
func (g *Game) playTrick(leader uuid.UUID) (uuid.UUID, error) {
	g.ground.Reset()
	if err := g.broadcast(wire.Broadcast{Kind: wire.BroadcastEmptyGround}); err != nil {
		return uuid.Nil, err
	}
	leaderIdx := g.fieldIndex(leader)
	if leaderIdx < 0 {
		return uuid.Nil, fmt.Errorf("trick leader %s not found in field", leader)
	}
	if err := g.playCard(leader); err != nil {
		return uuid.Nil, err
	}
	for i := 1; i < NumPlayers; i++ {
		if err := g.broadcast(wire.Broadcast{Kind: wire.BroadcastGroundCards, GroundCards: g.groundCards()}); err != nil {
			return uuid.Nil, err
		}
		if err := g.playCard(g.field[(leaderIdx+i)%NumPlayers]); err != nil {
			return uuid.Nil, err
		}
	}
	winner, err := g.ground.Winner(g.hokm)
	if err != nil {
		return uuid.Nil, err
	}
	g.collectTrick(winner)
	g.publish(StatusStarted)
	return winner, nil
}

// playCard demands a card, enforcing that non-leaders follow the
// leading suit whenever they can.
func (g *Game) playCard(playerID uuid.UUID) error {
	p := g.players[playerID]
	isLeader := len(g.ground.Cards) == 0
	demand := wire.NewDemand(wire.DemandPlayCard)
	for {
		card, err := g.getCardWithDemand(p, demand)
		if err != nil {
			return err
		}
		if !isLeader && p.HasSuit(g.ground.Suit) && card.Suit != g.ground.Suit {
			demand.SetDemandError(fmt.Sprintf("You have %s!\n", g.ground.Suit.Name()))
			continue
		}
		removed, err := p.RemoveCard(card)
		if err != nil {
			return err
		}
		g.ground.AddCard(playerID, removed)
		g.publish(StatusStarted)
		return g.send(p, &wire.Message{Kind: wire.KindRemoveCard, Card: removed.Code()})
	}
}

func (g *Game) collectTrick(winner uuid.UUID) {
	team := g.teams[g.players[winner].TeamID]
	cards := make([]Card, len(g.ground.Cards))
	for i, pc := range g.ground.Cards {
		cards[i] = pc.Card
	}
	team.CollectedHands = append(team.CollectedHands, cards)
	g.ground.Reset()
}

// finishRound settles the score: the declarer team scores the bid
// (doubled for a maximum bid) when they collected enough piles,
// otherwise the defenders score double the bid. Exactly one team's
// score changes.
func (g *Game) finishRound() error {
	off := g.teams[g.offTeam]
	def := g.teams[g.defTeam]
	var winner *Team
	if len(off.CollectedHands) >= g.bet {
		if g.bet == HighestBet {
			off.Score += g.bet * 2
		} else {
			off.Score += g.bet
		}
		winner = off
	} else {
		def.Score += g.bet * 2
		winner = def
	}
	g.publish(StatusStarted)
	return g.broadcast(wire.Broadcast{Kind: wire.BroadcastRoundWinner, Name: winner.Name})
}

// prepareNextRound drains every collected pile and hand back into the
// deck pool.
func (g *Game) prepareNextRound() {
	for _, team := range g.teams {
		for _, pile := range team.CollectedHands {
			g.cards = append(g.cards, pile...)
		}
		team.CollectedHands = team.CollectedHands[:0]
	}
	for _, p := range g.players {
		g.cards = append(g.cards, p.Hand...)
		p.Hand = p.Hand[:0]
	}
	g.hokm = HokmNone
	g.ground.Reset()
	g.publish(StatusStarted)
}

// shouldContinueRound reports whether the round outcome is still open:
// the declarers have not met their bid and the defenders have not made
// it unreachable.
func (g *Game) shouldContinueRound() bool {
	off := g.teams[g.offTeam]
	def := g.teams[g.defTeam]
	return len(off.CollectedHands) < g.bet && len(def.CollectedHands) < (HighestBet+1)-g.bet
}

func (g *Game) shouldContinueGame() bool {
	for _, team := range g.teams {
		if team.Score >= TargetScore {
			return false
		}
	}
	return true
}

func (g *Game) opposingTeam(teamID uuid.UUID) (uuid.UUID, error) {
	for id := range g.teams {
		if id != teamID {
			return id, nil
		}
	}
	return uuid.Nil, fmt.Errorf("opposing team not found")
}

// Choice retrieval.

// getBet demands "pass" or an integer bid 0..13.
func (g *Game) getBet(p *Player) (passed bool, amount int, err error) {
	demand := wire.NewDemand(wire.DemandBet)
	for {
		choice, err := g.exchange(g.ctx, p, demand)
		if err != nil {
			return false, 0, fmt.Errorf("%s left during betting: %w", p.Name, err)
		}
		if choice == "pass" {
			return true, 0, nil
		}
		value, convErr := strconv.Atoi(choice)
		if convErr != nil {
			demand.SetDemandError(invalidResponse)
			continue
		}
		if value < 0 || value > HighestBet {
			demand.SetDemandError(fmt.Sprintf("Choice can't be greater than %d", HighestBet))
			continue
		}
		return false, value, nil
	}
}

// getCard demands a card code that the player actually holds.
func (g *Game) getCard(p *Player, kind wire.DemandKind) (Card, error) {
	return g.getCardWithDemand(p, wire.NewDemand(kind))
}

func (g *Game) getCardWithDemand(p *Player, demand *wire.Message) (Card, error) {
	for {
		choice, err := g.exchange(g.ctx, p, demand)
		if err != nil {
			return Card{}, fmt.Errorf("%s left the game: %w", p.Name, err)
		}
		if choice == "pass" {
			demand.SetDemandError(cantPass)
			continue
		}
		card, parseErr := ParseCard(choice)
		if parseErr != nil {
			demand.SetDemandError(invalidResponse)
			continue
		}
		held := false
		for _, c := range p.Hand {
			if c.Suit == card.Suit && c.Ord == card.Ord {
				held = true
				break
			}
		}
		if !held {
			demand.SetDemandError(invalidResponse)
			continue
		}
		return card, nil
	}
}

// exchange performs one demand/answer round trip with the configured
// choice timeout. A non-PlayerChoice answer re-prompts; delivery
// failures and timeouts are returned to the caller, which treats them
// as the player leaving.
func (g *Game) exchange(parent context.Context, p *Player, demand *wire.Message) (string, error) {
	for {
		g.applyPendingReconnects()
		p.Conn.Drain()
		ctx := parent
		var cancel context.CancelFunc
		if g.cfg.ChoiceTimeoutEnabled && g.cfg.PlayerChoiceTimeout > 0 {
			ctx, cancel = context.WithTimeout(parent, g.cfg.PlayerChoiceTimeout)
		}
		msg, err := g.demandAnswer(ctx, p, demand)
		if cancel != nil {
			cancel()
		}
		if err != nil {
			return "", err
		}
		if msg.Kind != wire.KindPlayerChoice {
			demand.SetDemandError(invalidResponse)
			continue
		}
		return msg.Choice, nil
	}
}

// demandAnswer sends the demand and waits for the player's next
// message, servicing reconnections for any player while it waits.
func (g *Game) demandAnswer(ctx context.Context, p *Player, demand *wire.Message) (*wire.Message, error) {
	if err := g.send(p, demand); err != nil {
		return nil, err
	}
	for {
		select {
		case msg, ok := <-p.Conn.Inbound():
			if !ok {
				return nil, conn.ErrClosed
			}
			return msg, nil
		case rc := <-g.reconnectCh:
			resend := rc.PlayerID == p.ID
			g.applyReconnect(rc)
			if resend {
				if err := g.send(p, demand); err != nil {
					return nil, err
				}
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (g *Game) applyPendingReconnects() {
	for {
		select {
		case rc := <-g.reconnectCh:
			g.applyReconnect(rc)
		default:
			return
		}
	}
}

// applyReconnect swaps a returning player onto their fresh stream and
// replays their current hand.
func (g *Game) applyReconnect(rc Reconnection) {
	p, ok := g.players[rc.PlayerID]
	if !ok {
		g.log.Warnf("reconnect for unknown player %s", rc.PlayerID)
		_ = rc.Stream.Close()
		return
	}
	_ = p.Conn.Close()
	p.Conn = conn.New(rc.Stream, g.shared, g.log)
	g.log.Infof("player %s reconnected to game %s", p.Name, g.id)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Conn.Send(ctx, &wire.Message{Kind: wire.KindCards, Cards: CodeCards(p.Hand)}); err != nil {
		g.log.Debugf("failed to replay hand to %s: %v", p.Name, err)
	}
}

// Messaging helpers.

func (g *Game) send(p *Player, msg *wire.Message) error {
	if err := p.Conn.Send(g.ctx, msg); err != nil {
		return fmt.Errorf("failed to send %s to %s: %w", msg.MessageType(), p.Name, err)
	}
	return nil
}

// broadcast fans a notification out to every player concurrently.
// Delivery failure to anyone is fatal to the game: the trick state has
// no well-defined continuation without a full table.
func (g *Game) broadcast(b wire.Broadcast) error {
	msg := wire.NewBroadcast(b)
	var wg sync.WaitGroup
	failed := make(chan string, len(g.players))
	for _, p := range g.players {
		wg.Add(1)
		go func(p *Player) {
			defer wg.Done()
			if err := p.Conn.Send(g.ctx, msg); err != nil {
				failed <- p.Name
			}
		}(p)
	}
	wg.Wait()
	close(failed)
	var names []string
	for name := range failed {
		names = append(names, name)
	}
	if len(names) > 0 {
		sort.Strings(names)
		return fmt.Errorf("failed to reach %v", names)
	}
	return nil
}

// Snapshot publication.

func (g *Game) publish(status Status) {
	g.shared.Publish(Snapshot{
		GameScores:  g.gameScores(),
		RoundScores: g.roundScores(),
		Hokm:        g.hokm.Code(),
		Ground:      g.groundCards(),
		Status:      status,
	})
}

func (g *Game) gameScores() []wire.TeamScore {
	teams := g.sortedTeams()
	scores := make([]wire.TeamScore, len(teams))
	for i, t := range teams {
		scores[i] = wire.TeamScore{Team: t.Name, Score: t.Score}
	}
	return scores
}

func (g *Game) roundScores() []wire.TeamScore {
	teams := g.sortedTeams()
	scores := make([]wire.TeamScore, len(teams))
	for i, t := range teams {
		scores[i] = wire.TeamScore{Team: t.Name, Score: len(t.CollectedHands)}
	}
	return scores
}

func (g *Game) groundCards() []wire.GroundCard {
	return groundCodes(g.ground.Cards, func(pc PlayedCard) string {
		if p, ok := g.players[pc.PlayerID]; ok {
			return p.Name
		}
		return ""
	})
}

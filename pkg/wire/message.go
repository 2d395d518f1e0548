package wire

// Kind identifies the top-level message envelope variant.
type Kind string

const (
	KindHandshake         Kind = "Handshake"
	KindHandshakeResponse Kind = "HandshakeResponse"
	KindBroadcast         Kind = "Broadcast"
	KindDemand            Kind = "Demand"
	KindCards             Kind = "Cards"
	KindPlayerRequest     Kind = "PlayerRequest"
	KindPlayerResponse    Kind = "PlayerResponse"
	KindAddGroundCards    Kind = "AddGroundCards"
	KindGameSessionToken  Kind = "GameSessionToken"
	KindPlayerChoice      Kind = "PlayerChoice"
	KindRemoveCard        Kind = "RemoveCard"
)

// DemandKind identifies what input the server is asking the client for.
type DemandKind string

const (
	DemandUsername DemandKind = "Username"
	DemandTeam     DemandKind = "Team"
	DemandBet      DemandKind = "Bet"
	DemandFold     DemandKind = "Fold"
	DemandHokm     DemandKind = "Hokm"
	DemandPlayCard DemandKind = "PlayCard"
)

// Demand asks the client to supply input. Error carries the reason for a
// re-prompt after an invalid answer; it is empty on the first prompt.
type Demand struct {
	Kind           DemandKind `msgpack:"kind"`
	AvailableTeams []string   `msgpack:"available_teams,omitempty"`
	Error          string     `msgpack:"error"`
}

// BroadcastKind identifies a one-way server notification.
type BroadcastKind string

const (
	BroadcastGameStarting          BroadcastKind = "GameStarting"
	BroadcastTeamSelectionStarting BroadcastKind = "TeamSelectionStarting"
	BroadcastHandingOutCards       BroadcastKind = "HandingOutCards"
	BroadcastShufflingCards        BroadcastKind = "ShufflingCards"
	BroadcastEmptyGround           BroadcastKind = "EmptyGround"
	BroadcastStarter               BroadcastKind = "Starter"
	BroadcastHokm                  BroadcastKind = "Hokm"
	BroadcastBets                  BroadcastKind = "Bets"
	BroadcastBetWinner             BroadcastKind = "BetWinner"
	BroadcastGroundCards           BroadcastKind = "GroundCards"
	BroadcastRoundWinner           BroadcastKind = "RoundWinner"
	BroadcastGameWinner            BroadcastKind = "GameWinner"
	BroadcastGameScore             BroadcastKind = "GameScore"
	BroadcastRoundScore            BroadcastKind = "RoundScore"
	BroadcastQueueTimeout          BroadcastKind = "QueueTimeout"
	BroadcastGameCancelled         BroadcastKind = "GameCancelled"
)

// SeatBet is one player's answer during the betting phase.
type SeatBet struct {
	Name   string `msgpack:"name"`
	Passed bool   `msgpack:"passed"`
	Amount int    `msgpack:"amount"`
}

// BetWinner names the highest bidder and their winning bid.
type BetWinner struct {
	Name   string `msgpack:"name"`
	Amount int    `msgpack:"amount"`
}

// GroundCard is a card on the ground together with the name of the
// player who played it.
type GroundCard struct {
	PlayerName string `msgpack:"player_name"`
	Card       string `msgpack:"card"`
}

// TeamScore reports one team's score (game points or tricks this round,
// depending on the enclosing broadcast kind).
type TeamScore struct {
	Team  string `msgpack:"team"`
	Score int    `msgpack:"score"`
}

// Broadcast is a one-way server→players notification. Only the fields
// relevant to Kind are populated.
type Broadcast struct {
	Kind        BroadcastKind `msgpack:"kind"`
	Name        string        `msgpack:"name,omitempty"`
	Hokm        string        `msgpack:"hokm,omitempty"`
	Reason      string        `msgpack:"reason,omitempty"`
	Bets        []SeatBet     `msgpack:"bets,omitempty"`
	BetWinner   *BetWinner    `msgpack:"bet_winner,omitempty"`
	GroundCards []GroundCard  `msgpack:"ground_cards,omitempty"`
	TeamScores  []TeamScore   `msgpack:"team_scores,omitempty"`
}

// RequestKind identifies an out-of-band player query, answered from the
// shared-state snapshot regardless of whose turn it is.
type RequestKind string

const (
	RequestGameScore   RequestKind = "GameScore"
	RequestRoundScore  RequestKind = "RoundScore"
	RequestCurrentHokm RequestKind = "CurrentHokm"
	RequestGroundCards RequestKind = "GroundCards"
	RequestGameStatus  RequestKind = "GameStatus"
)

// PlayerRequest is a player-initiated query.
type PlayerRequest struct {
	Kind RequestKind `msgpack:"kind"`
}

// PlayerResponse answers a PlayerRequest.
type PlayerResponse struct {
	Kind        RequestKind  `msgpack:"kind"`
	TeamScores  []TeamScore  `msgpack:"team_scores,omitempty"`
	Hokm        string       `msgpack:"hokm,omitempty"`
	GroundCards []GroundCard `msgpack:"ground_cards,omitempty"`
	GameStatus  string       `msgpack:"game_status,omitempty"`
}

// Message is the wire envelope. Kind selects the variant; exactly the
// fields belonging to that variant are populated.
type Message struct {
	Kind        Kind            `msgpack:"type"`
	Broadcast   *Broadcast      `msgpack:"broadcast,omitempty"`
	Demand      *Demand         `msgpack:"demand,omitempty"`
	Cards       []string        `msgpack:"cards,omitempty"`
	Request     *PlayerRequest  `msgpack:"request,omitempty"`
	Response    *PlayerResponse `msgpack:"response,omitempty"`
	GroundCards []string        `msgpack:"ground_cards,omitempty"`
	Token       string          `msgpack:"token,omitempty"`
	Choice      string          `msgpack:"choice,omitempty"`
	Card        string          `msgpack:"card,omitempty"`
}

// MessageType reports the protocol-level type name used in
// InvalidResponse errors. Demands report their demand kind.
func (m *Message) MessageType() string {
	if m.Kind == KindDemand && m.Demand != nil {
		return string(m.Demand.Kind)
	}
	return string(m.Kind)
}

// NewDemand builds a Demand message with no error annotation.
func NewDemand(kind DemandKind) *Message {
	return &Message{Kind: KindDemand, Demand: &Demand{Kind: kind}}
}

// NewTeamDemand builds a Team demand offering the given team names.
func NewTeamDemand(availableTeams []string, errText string) *Message {
	return &Message{Kind: KindDemand, Demand: &Demand{
		Kind:           DemandTeam,
		AvailableTeams: availableTeams,
		Error:          errText,
	}}
}

// SetDemandError annotates a Demand for a re-prompt. It panics when the
// message is not a Demand; that is a programming error, not input.
func (m *Message) SetDemandError(errText string) {
	if m.Kind != KindDemand || m.Demand == nil {
		panic("wire: SetDemandError on non-Demand message")
	}
	m.Demand.Error = errText
}

// NewBroadcast wraps a Broadcast body in an envelope.
func NewBroadcast(b Broadcast) *Message {
	return &Message{Kind: KindBroadcast, Broadcast: &b}
}

// NewPlayerChoice builds the client's answer to a pending demand.
func NewPlayerChoice(choice string) *Message {
	return &Message{Kind: KindPlayerChoice, Choice: choice}
}

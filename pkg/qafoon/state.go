package qafoon

import (
	"sync"

	"github.com/qafoongame/qafoon/pkg/wire"
)

// Status is the game lifecycle state. Ended is the cancellation
// outcome, reachable from any point.
type Status string

const (
	StatusNotStarted Status = "NotStarted"
	StatusStarted    Status = "Started"
	StatusFinished   Status = "Finished"
	StatusEnded      Status = "Ended"
)

// SharedState is the read-mostly snapshot the run loop republishes
// after every state-changing step. Receiver goroutines answer player
// requests from it and the registry's cleanup sweep checks liveness,
// neither of which may touch the run loop's own state.
type SharedState struct {
	mu          sync.RWMutex
	gameScores  []wire.TeamScore
	roundScores []wire.TeamScore
	hokm        string
	ground      []wire.GroundCard
	status      Status
}

// NewSharedState returns a snapshot in the NotStarted state.
func NewSharedState() *SharedState {
	return &SharedState{status: StatusNotStarted}
}

// Snapshot is the value published by the run loop.
type Snapshot struct {
	GameScores  []wire.TeamScore
	RoundScores []wire.TeamScore
	Hokm        string
	Ground      []wire.GroundCard
	Status      Status
}

// Publish replaces the snapshot. Only the run loop writes.
func (s *SharedState) Publish(snap Snapshot) {
	s.mu.Lock()
	s.gameScores = snap.GameScores
	s.roundScores = snap.RoundScores
	s.hokm = snap.Hokm
	s.ground = snap.Ground
	s.status = snap.Status
	s.mu.Unlock()
}

// Status returns the lifecycle state of the last published snapshot.
func (s *SharedState) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// AnswerRequest serves an out-of-band player query from the snapshot.
// It implements conn.StateQuerier.
func (s *SharedState) AnswerRequest(req *wire.PlayerRequest) *wire.PlayerResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	resp := &wire.PlayerResponse{Kind: req.Kind}
	switch req.Kind {
	case wire.RequestGameScore:
		resp.TeamScores = append([]wire.TeamScore(nil), s.gameScores...)
	case wire.RequestRoundScore:
		resp.TeamScores = append([]wire.TeamScore(nil), s.roundScores...)
	case wire.RequestCurrentHokm:
		resp.Hokm = s.hokm
	case wire.RequestGroundCards:
		resp.GroundCards = append([]wire.GroundCard(nil), s.ground...)
	case wire.RequestGameStatus:
		resp.GameStatus = string(s.status)
	default:
		return nil
	}
	return resp
}

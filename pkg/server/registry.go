package server

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/decred/slog"
	"github.com/google/uuid"

	"github.com/qafoongame/qafoon/pkg/qafoon"
)

// Session is one matchmade game from the registry's point of view.
// *qafoon.Game implements it; tests substitute fakes.
type Session interface {
	ID() uuid.UUID
	Init() error
	AddPlayer(userID uuid.UUID, username string, stream io.ReadWriteCloser) error
	PlayerCount() int
	IsFull() bool
	PlayerIDs() []uuid.UUID
	Run(ctx context.Context) error
	Reconnect(playerID uuid.UUID, stream io.ReadWriteCloser) error
	NotifyQueueTimeout()
	CloseAll() bool
	Status() qafoon.Status
	IsFinished() bool
}

// Factory creates a fresh session for a game type.
type Factory func() (Session, error)

// RegistryConfig holds matchmaking tunables.
type RegistryConfig struct {
	Log slog.Logger
	// QueueCutoff expires queues that never filled.
	QueueCutoff time.Duration
	// CleanupInterval is the sweep period; zero disables the sweep.
	CleanupInterval time.Duration
	// GameDuration caps a running game's lifetime.
	GameDuration time.Duration
	// OnGameDone, when set, is called after every run loop exits, with
	// the session and the run loop's error.
	OnGameDone func(session Session, runErr error)
}

type queuedGame struct {
	session Session
	created time.Time
}

type activeGame struct {
	session  Session
	gameType string
	started  time.Time
	cancel   context.CancelFunc
	done     chan struct{}
}

// Registry owns matchmaking: one open queue per game type, promotion
// to an active game at capacity, per-user session tracking for
// reconnection, and a periodic sweep of expired queues and finished
// games.
type Registry struct {
	log slog.Logger
	cfg RegistryConfig

	mu        sync.Mutex
	factories map[string]Factory
	queues    map[string]*queuedGame
	active    map[uuid.UUID]*activeGame
	sessions  map[uuid.UUID]uuid.UUID

	quit chan struct{}
	wg   sync.WaitGroup
}

// NewRegistry creates a registry and starts its cleanup sweep.
func NewRegistry(cfg RegistryConfig) *Registry {
	r := &Registry{
		log:       cfg.Log,
		cfg:       cfg,
		factories: make(map[string]Factory),
		queues:    make(map[string]*queuedGame),
		active:    make(map[uuid.UUID]*activeGame),
		sessions:  make(map[uuid.UUID]uuid.UUID),
		quit:      make(chan struct{}),
	}
	if cfg.CleanupInterval > 0 {
		r.wg.Add(1)
		go r.cleanupLoop()
	}
	return r
}

// RegisterFactory installs the session factory for a game type.
func (r *Registry) RegisterFactory(gameType string, f Factory) {
	r.mu.Lock()
	r.factories[gameType] = f
	r.mu.Unlock()
}

// HasGameType reports whether a factory is registered for gameType.
func (r *Registry) HasGameType(gameType string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.factories[gameType]
	return ok
}

// AddPlayerToQueue seats a player in the open queue for gameType,
// creating it when needed, and promotes the game to active once full.
// prepare, when non-nil, runs after the game id is known but before
// the stream is handed to the game; it is the caller's last chance to
// write to the stream directly. prepare talks to the socket, so it
// runs outside the registry lock against a reserved seat; the queue is
// re-checked afterwards in case the sweep expired it meanwhile.
func (r *Registry) AddPlayerToQueue(gameType string, userID uuid.UUID, username string, stream io.ReadWriteCloser, prepare func(gameID uuid.UUID) error) (uuid.UUID, error) {
	r.mu.Lock()
	if gameID, ok := r.sessions[userID]; ok {
		r.mu.Unlock()
		return uuid.Nil, fmt.Errorf("user %s is already in game %s", username, gameID)
	}

	q, ok := r.queues[gameType]
	if !ok {
		factory, ok := r.factories[gameType]
		if !ok {
			r.mu.Unlock()
			return uuid.Nil, fmt.Errorf("unknown game type %q", gameType)
		}
		session, err := factory()
		if err != nil {
			r.mu.Unlock()
			return uuid.Nil, fmt.Errorf("creating %s game: %w", gameType, err)
		}
		if err := session.Init(); err != nil {
			r.mu.Unlock()
			return uuid.Nil, err
		}
		q = &queuedGame{session: session, created: time.Now()}
		r.queues[gameType] = q
		r.log.Infof("opened %s queue, game %s", gameType, session.ID())
	}
	gameID := q.session.ID()
	r.sessions[userID] = gameID
	r.mu.Unlock()

	if prepare != nil {
		if err := prepare(gameID); err != nil {
			r.unbind(userID, gameID)
			return uuid.Nil, err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok = r.queues[gameType]
	if !ok || q.session.ID() != gameID {
		delete(r.sessions, userID)
		return uuid.Nil, fmt.Errorf("game %s is no longer open", gameID)
	}
	if err := q.session.AddPlayer(userID, username, stream); err != nil {
		delete(r.sessions, userID)
		return uuid.Nil, err
	}
	r.log.Debugf("queued %s for %s (%d seated)", username, gameType, q.session.PlayerCount())

	if q.session.IsFull() {
		delete(r.queues, gameType)
		r.promote(gameType, q.session)
	}
	return gameID, nil
}

func (r *Registry) unbind(userID, gameID uuid.UUID) {
	r.mu.Lock()
	if r.sessions[userID] == gameID {
		delete(r.sessions, userID)
	}
	r.mu.Unlock()
}

// promote moves a full queue into the active set and spawns its run
// loop. Caller holds the lock.
func (r *Registry) promote(gameType string, session Session) {
	ctx, cancel := context.WithCancel(context.Background())
	if r.cfg.GameDuration > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), r.cfg.GameDuration)
	}
	ag := &activeGame{
		session:  session,
		gameType: gameType,
		started:  time.Now(),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	r.active[session.ID()] = ag
	r.log.Infof("game %s is full, starting", session.ID())

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer close(ag.done)
		err := session.Run(ctx)
		cancel()
		if err != nil {
			r.log.Warnf("game %s exited: %v", session.ID(), err)
		} else {
			r.log.Infof("game %s finished", session.ID())
		}
		r.retire(session, err)
	}()
}

// retire removes a finished game and its players' session bindings.
func (r *Registry) retire(session Session, runErr error) {
	r.mu.Lock()
	delete(r.active, session.ID())
	for _, playerID := range session.PlayerIDs() {
		if r.sessions[playerID] == session.ID() {
			delete(r.sessions, playerID)
		}
	}
	r.mu.Unlock()
	if r.cfg.OnGameDone != nil {
		r.cfg.OnGameDone(session, runErr)
	}
}

// ReconnectPlayer routes a returning player's fresh stream to their
// running game.
func (r *Registry) ReconnectPlayer(playerID, gameID uuid.UUID, stream io.ReadWriteCloser) error {
	r.mu.Lock()
	bound, ok := r.sessions[playerID]
	ag, running := r.active[gameID]
	r.mu.Unlock()

	if !ok || bound != gameID {
		return fmt.Errorf("player %s has no seat in game %s", playerID, gameID)
	}
	if !running {
		return fmt.Errorf("game %s is not running", gameID)
	}
	return ag.session.Reconnect(playerID, stream)
}

// SessionFor reports the game a user is currently bound to, queued or
// running.
func (r *Registry) SessionFor(userID uuid.UUID) (uuid.UUID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	gameID, ok := r.sessions[userID]
	return gameID, ok
}

// GetActiveGame looks up a running session by id.
func (r *Registry) GetActiveGame(gameID uuid.UUID) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ag, ok := r.active[gameID]
	if !ok {
		return nil, false
	}
	return ag.session, true
}

// ListActiveGames returns a snapshot of every running game, newest
// last.
func (r *Registry) ListActiveGames() []ActiveGameInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	games := make([]ActiveGameInfo, 0, len(r.active))
	for _, ag := range r.active {
		games = append(games, activeInfo(ag))
	}
	sort.Slice(games, func(i, j int) bool { return games[i].Started.Before(games[j].Started) })
	return games
}

// GamesByType returns the running games of one type.
func (r *Registry) GamesByType(gameType string) []ActiveGameInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	var games []ActiveGameInfo
	for _, ag := range r.active {
		if ag.gameType == gameType {
			games = append(games, activeInfo(ag))
		}
	}
	sort.Slice(games, func(i, j int) bool { return games[i].Started.Before(games[j].Started) })
	return games
}

// ActiveGameCount reports the number of running games.
func (r *Registry) ActiveGameCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}

// AvailableGames lists the registered game types, sorted.
func (r *Registry) AvailableGames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]string, 0, len(r.factories))
	for gameType := range r.factories {
		types = append(types, gameType)
	}
	sort.Strings(types)
	return types
}

// ActiveGameInfo describes one running game in status snapshots.
type ActiveGameInfo struct {
	ID       uuid.UUID     `json:"id"`
	GameType string        `json:"game_type"`
	Started  time.Time     `json:"started"`
	Players  int           `json:"players"`
	Status   qafoon.Status `json:"status"`
}

func activeInfo(ag *activeGame) ActiveGameInfo {
	// Games only promote when full, so the seat count is fixed.
	return ActiveGameInfo{
		ID:       ag.session.ID(),
		GameType: ag.gameType,
		Started:  ag.started,
		Players:  qafoon.NumPlayers,
		Status:   ag.session.Status(),
	}
}

// RegistryStatus is the matchmaking snapshot served by the status API.
type RegistryStatus struct {
	GameTypes   []string         `json:"game_types"`
	Queues      map[string]int   `json:"queues"`
	ActiveGames int              `json:"active_games"`
	Games       []ActiveGameInfo `json:"games"`
}

// Status reports the registered game types, queue occupancy and the
// running games.
func (r *Registry) Status() RegistryStatus {
	queues := func() map[string]int {
		r.mu.Lock()
		defer r.mu.Unlock()
		queues := make(map[string]int, len(r.queues))
		for gameType, q := range r.queues {
			queues[gameType] = q.session.PlayerCount()
		}
		return queues
	}()
	games := r.ListActiveGames()
	return RegistryStatus{
		GameTypes:   r.AvailableGames(),
		Queues:      queues,
		ActiveGames: len(games),
		Games:       games,
	}
}

func (r *Registry) cleanupLoop() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.quit:
			return
		case <-ticker.C:
			r.cleanup(time.Now())
		}
	}
}

// cleanup expires queues past the cutoff and reaps finished games
// whose connections are still open. A game busy mid-step skips a tick
// rather than blocking the sweep.
func (r *Registry) cleanup(now time.Time) {
	r.mu.Lock()
	var expired []*queuedGame
	for gameType, q := range r.queues {
		if now.Sub(q.created) > r.cfg.QueueCutoff {
			r.log.Infof("expiring %s queue, game %s", gameType, q.session.ID())
			delete(r.queues, gameType)
			for _, playerID := range q.session.PlayerIDs() {
				if r.sessions[playerID] == q.session.ID() {
					delete(r.sessions, playerID)
				}
			}
			expired = append(expired, q)
		}
	}
	var finished []*activeGame
	for _, ag := range r.active {
		if ag.session.IsFinished() {
			finished = append(finished, ag)
		}
	}
	r.mu.Unlock()

	// Notify outside the lock; these talk to sockets.
	for _, q := range expired {
		q.session.NotifyQueueTimeout()
	}
	for _, ag := range finished {
		if !ag.session.CloseAll() {
			r.log.Debugf("game %s busy, skipping close", ag.session.ID())
		}
	}
}

// Close stops the sweep, cancels every running game and waits for
// their run loops to exit.
func (r *Registry) Close() {
	close(r.quit)
	r.mu.Lock()
	for _, ag := range r.active {
		ag.cancel()
	}
	r.mu.Unlock()
	r.wg.Wait()
}

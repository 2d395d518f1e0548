package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/decred/slog"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/crypto/bcrypt"

	"github.com/qafoongame/qafoon/pkg/auth"
	"github.com/qafoongame/qafoon/pkg/server/internal/db"
)

// DefaultGameType is used when a login does not name one.
const DefaultGameType = "qafoon"

type apiServer struct {
	log      slog.Logger
	db       Database
	auth     *auth.Manager
	registry *Registry
}

// NewHTTPHandler builds the auth/status HTTP API.
func NewHTTPHandler(log slog.Logger, database Database, authm *auth.Manager, registry *Registry) http.Handler {
	api := &apiServer{log: log, db: database, auth: authm, registry: registry}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Route("/api", func(r chi.Router) {
		r.Post("/register", api.handleRegister)
		r.Post("/login", api.handleLogin)
		r.Get("/status", api.handleStatus)
		r.Get("/users/{username}/stats", api.handleStats)
	})
	return r
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	GameType string `json:"game_type,omitempty"`
}

func (a *apiServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		writeError(w, http.StatusBadRequest, emptyUsername)
		return
	}
	if req.Password == "" {
		writeError(w, http.StatusBadRequest, "password must not be empty")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		a.log.Errorf("hashing password: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	user, err := a.db.CreateUser(req.Username, string(hash))
	if errors.Is(err, db.ErrUserExists) {
		writeError(w, http.StatusConflict, "username is taken")
		return
	}
	if err != nil {
		a.log.Errorf("creating user %s: %v", req.Username, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"username": user.Username})
}

func (a *apiServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	gameType := req.GameType
	if gameType == "" {
		gameType = DefaultGameType
	}
	if a.registry != nil && !a.registry.HasGameType(gameType) {
		writeError(w, http.StatusBadRequest, "unknown game type")
		return
	}

	user, err := a.db.UserByUsername(strings.TrimSpace(req.Username))
	if errors.Is(err, db.ErrUserNotFound) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		a.log.Errorf("loading user %s: %v", req.Username, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := a.auth.IssueSession(user.Username, gameType)
	if err != nil {
		a.log.Errorf("issuing session for %s: %v", user.Username, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (a *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.registry.Status())
}

func (a *apiServer) handleStats(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	user, err := a.db.UserByUsername(username)
	if errors.Is(err, db.ErrUserNotFound) {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		a.log.Errorf("loading user %s: %v", username, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"username":     user.Username,
		"games_played": user.GamesPlayed,
		"games_won":    user.GamesWon,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

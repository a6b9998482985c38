package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/fluentquest/backend/internal/backend"
	"github.com/fluentquest/backend/internal/domain"
	"github.com/fluentquest/backend/internal/websocket"
)

// Handler provides HTTP handlers for the game backend API
type Handler struct {
	backend *backend.Backend
	hub     *websocket.Hub
	logger  *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(b *backend.Backend, hub *websocket.Hub, logger *slog.Logger) *Handler {
	return &Handler{
		backend: b,
		hub:     hub,
		logger:  logger,
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware)

	// Health check
	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)

	// WebSocket endpoint
	r.Get("/ws", h.HandleWebSocket)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Session
		r.Get("/session", h.GetSession)
		r.Post("/session", h.SignIn)
		r.Delete("/session", h.SignOut)
		r.Post("/accounts", h.CreateAccount)

		// Profile
		r.Get("/profile", h.GetProfile)
		r.Get("/profile/username", h.HasUsername)
		r.Put("/profile/username", h.UpdateUsername)

		// Scores and leaderboard
		r.Post("/scores", h.SubmitScore)
		r.Get("/leaderboard", h.GetLeaderboard)
		r.Patch("/leaderboard/entries/{entryID}", h.RenameEntry)

		// Game progress
		r.Post("/guesses", h.RecordGuess)
		r.Get("/gamestate", h.GetGameState)
		r.Get("/gamestate/daily", h.DailyAvailable)
	})

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Player-ID, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeSuccess writes a successful JSON response
func (h *Handler) writeSuccess(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError writes an error JSON response mapped from the error taxonomy
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case domain.IsValidationError(err) || err == domain.ErrInvalidRequest:
		status = http.StatusBadRequest
	case domain.IsAuthError(err):
		status = http.StatusUnauthorized
	case domain.IsNotFoundError(err):
		status = http.StatusNotFound
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "error", err)
		err = domain.ErrInternalError
	}

	h.writeJSON(w, status, APIResponse{
		Success: false,
		Error:   err.Error(),
	})
}

// sessionToken extracts the bearer token, if any
func sessionToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

// identity resolves the calling player: a signed-in session wins, an
// explicit X-Player-ID header covers anonymous local play.
func (h *Handler) identity(r *http.Request) (string, error) {
	session, err := h.backend.GetSession(r.Context(), sessionToken(r))
	if err != nil {
		return "", err
	}
	if session.Identity != "" {
		return session.Identity, nil
	}
	if id := r.Header.Get("X-Player-ID"); id != "" {
		return id, nil
	}
	return "", domain.ErrNotSignedIn
}

// HandleWebSocket handles WebSocket upgrade requests
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWs(h.hub, h.logger, w, r)
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "healthy"})
}

// ReadyCheck returns service readiness status
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "ready"})
}

// GetSession returns the current session state
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.backend.GetSession(r.Context(), sessionToken(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSuccess(w, session)
}

// SignIn authenticates and returns a session
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	var creds domain.Credentials
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
			h.writeError(w, domain.ErrInvalidRequest)
			return
		}
	}

	session, err := h.backend.SignIn(r.Context(), creds)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSuccess(w, session)
}

// SignOut ends the current session
func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.backend.SignOut(r.Context(), sessionToken(r)); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSuccess(w, map[string]string{"status": "signed out"})
}

// CreateAccount registers an email/password account
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, domain.ErrInvalidRequest)
		return
	}

	identity, err := h.backend.CreateAccount(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, APIResponse{
		Success: true,
		Data:    map[string]string{"identity": identity},
	})
}

// GetProfile returns the calling player's profile
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	identity, err := h.identity(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	p, err := h.backend.GetProfile(r.Context(), identity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSuccess(w, p)
}

// HasUsername reports whether the calling player picked a display name
func (h *Handler) HasUsername(w http.ResponseWriter, r *http.Request) {
	identity, err := h.identity(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	has, err := h.backend.HasUsername(r.Context(), identity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSuccess(w, map[string]bool{"has_username": has})
}

// UpdateUsername sets the calling player's display name
func (h *Handler) UpdateUsername(w http.ResponseWriter, r *http.Request) {
	identity, err := h.identity(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var req struct {
		Username string `json:"username"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, domain.ErrInvalidRequest)
		return
	}

	p, err := h.backend.UpdateUsername(r.Context(), identity, req.Username)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSuccess(w, p)
}

// SubmitScore records a score and returns the refreshed leaderboard
func (h *Handler) SubmitScore(w http.ResponseWriter, r *http.Request) {
	identity, err := h.identity(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var req struct {
		Score int64 `json:"score"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, domain.ErrInvalidRequest)
		return
	}

	view, err := h.backend.SubmitScore(r.Context(), identity, req.Score)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSuccess(w, view)
}

// GetLeaderboard returns the current standings
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	view, err := h.backend.FetchLeaderboard(r.Context(), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSuccess(w, view)
}

// RenameEntry updates the display name on a stored leaderboard entry
func (h *Handler) RenameEntry(w http.ResponseWriter, r *http.Request) {
	entryID := chi.URLParam(r, "entryID")
	if entryID == "" {
		h.writeError(w, domain.ErrInvalidRequest)
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, domain.ErrInvalidRequest)
		return
	}

	view, err := h.backend.UpdateEntryName(r.Context(), entryID, req.Name)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSuccess(w, view)
}

// RecordGuess scores a guess and updates the player's progress
func (h *Handler) RecordGuess(w http.ResponseWriter, r *http.Request) {
	identity, err := h.identity(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var req struct {
		CountryCorrect bool `json:"country_correct"`
		MeaningCorrect bool `json:"meaning_correct"`
		WordID         int  `json:"word_id"`
		HintsUsed      int  `json:"hints_used"`
		DailyChallenge bool `json:"daily_challenge"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, domain.ErrInvalidRequest)
		return
	}

	result := domain.GuessResult{
		CountryCorrect: req.CountryCorrect,
		MeaningCorrect: req.MeaningCorrect,
	}
	state, view, err := h.backend.RecordGuess(r.Context(), identity, result, req.WordID, req.HintsUsed, req.DailyChallenge)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeSuccess(w, map[string]interface{}{
		"state":       state,
		"leaderboard": view,
	})
}

// GetGameState returns the calling player's cumulative progress
func (h *Handler) GetGameState(w http.ResponseWriter, r *http.Request) {
	identity, err := h.identity(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	state, err := h.backend.GameState(r.Context(), identity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSuccess(w, state)
}

// DailyAvailable reports whether today's daily challenge is unplayed
func (h *Handler) DailyAvailable(w http.ResponseWriter, r *http.Request) {
	identity, err := h.identity(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	available, err := h.backend.NewDailyAvailable(r.Context(), identity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSuccess(w, map[string]bool{"available": available})
}

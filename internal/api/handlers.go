package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/anime-guess/internal/auth"
	"github.com/anime-guess/internal/cache"
	"github.com/anime-guess/internal/character"
	"github.com/anime-guess/internal/kafka"
	"github.com/anime-guess/internal/leaderboard"
	"github.com/anime-guess/internal/maintenance"
	"github.com/anime-guess/internal/middleware"
	"github.com/anime-guess/internal/sessions"
	"github.com/anime-guess/internal/storage"
)

// Deps are the services the API is built on. Cache, Producer, Consumer,
// Sessions, Characters and SearchTitles may be nil.
type Deps struct {
	Store        storage.Store
	Auth         *auth.Service
	Leaderboard  *leaderboard.Service
	Cache        *cache.RankCache
	Characters   sessions.CharacterSource
	SearchTitles character.SearchFunc
	Sessions     *sessions.Manager
	Producer     *kafka.Producer
	Consumer     *kafka.Consumer
	AdminToken   string
	Persistent   bool
}

// Handlers holds API handler dependencies
type Handlers struct {
	Deps
}

// NewHandlers creates a new API handlers instance
func NewHandlers(deps Deps) *Handlers {
	return &Handlers{Deps: deps}
}

// RegisterRoutes registers API routes
func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Post("/auth/register", h.Register)
	r.Post("/auth/login", h.Login)

	r.Get("/leaderboard", h.GetLeaderboard)
	r.Get("/leaderboard/rank/{userID}", h.GetUserRank)
	r.Get("/titles/search", h.SearchTitleCandidates)
	r.Get("/character", h.GetCharacter)
	r.Get("/analytics", h.GetAnalytics)
	r.Get("/status", h.GetStatus)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.Auth.Tokens()))
		r.Post("/leaderboard", h.SubmitScore)
		r.Get("/profile", h.GetProfile)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAdmin(h.AdminToken))
		r.Post("/maintenance/{job}", h.RunMaintenance)
	})
}

// GetAnalytics returns gameplay analytics
func (h *Handlers) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"realtime": h.realtime(),
	}

	if h.Consumer != nil {
		response["kafka"] = map[string]interface{}{
			"avgAccuracy":  h.Consumer.GetAverageAccuracy(),
			"gamesPerHour": h.Consumer.GetGamesPerHour(),
			"metrics":      h.Consumer.GetMetrics(),
		}
	}

	respondJSON(w, response)
}

// GetStatus returns server status
func (h *Handlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	status := h.realtime()
	status["status"] = "ok"
	respondJSON(w, status)
}

func (h *Handlers) realtime() map[string]interface{} {
	active := 0
	if h.Sessions != nil {
		active = h.Sessions.ActiveCount()
	}
	return map[string]interface{}{
		"activeSessions": active,
		"persistent":     h.Persistent,
		"kafkaEnabled":   h.Producer.IsEnabled(),
		"cacheEnabled":   h.Cache.Enabled(),
	}
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, data interface{}) {
	respondStatus(w, http.StatusOK, data)
}

func respondStatus(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError maps service errors onto HTTP statuses
func respondError(w http.ResponseWriter, err error, msg string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, leaderboard.ErrInvalid),
		errors.Is(err, auth.ErrInvalidInput),
		errors.Is(err, maintenance.ErrUnknownJob):
		status = http.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, storage.ErrConflict):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg(msg)
	} else {
		msg = err.Error()
	}
	respondStatus(w, status, middleware.ErrorResponse{Error: msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(v)
}

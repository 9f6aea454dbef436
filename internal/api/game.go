package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/anime-guess/internal/character"
	"github.com/anime-guess/internal/middleware"
	"github.com/anime-guess/internal/storage"
)

// ProfileResponse is the authenticated player's profile
type ProfileResponse struct {
	User     *storage.User `json:"user"`
	Rank     int           `json:"rank,omitempty"`
	Accuracy float64       `json:"accuracy"`
}

// CharacterResponse is a character with everything needed to play it
// without a live session
type CharacterResponse struct {
	Character  *character.Character `json:"character"`
	Titles     []string             `json:"titles"`
	Hints      []string             `json:"hints"`
	ExtraHints []string             `json:"extraHints"`
}

// GetProfile returns the current player's profile and all-time rank
func (h *Handlers) GetProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserClaims(r)
	if !ok {
		respondStatus(w, http.StatusUnauthorized, middleware.ErrorResponse{Error: "Not authenticated"})
		return
	}

	user, err := h.Store.GetProfile(r.Context(), claims.UserID)
	if err != nil {
		respondError(w, err, "Failed to get profile")
		return
	}

	rank, err := h.Leaderboard.UserRank(r.Context(), user.ID, "")
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		log.Warn().Err(err).Str("user", user.ID).Msg("rank unavailable for profile")
	}

	respondJSON(w, ProfileResponse{
		User:     user,
		Rank:     rank,
		Accuracy: user.Accuracy(),
	})
}

// SearchTitleCandidates returns title suggestions for a partial guess
func (h *Handlers) SearchTitleCandidates(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		respondStatus(w, http.StatusBadRequest, middleware.ErrorResponse{Error: "q is required"})
		return
	}
	if h.SearchTitles == nil {
		respondStatus(w, http.StatusServiceUnavailable, middleware.ErrorResponse{Error: "Title search is unavailable"})
		return
	}

	results, err := h.SearchTitles(r.Context(), query)
	if err != nil {
		log.Error().Err(err).Str("query", query).Msg("title search failed")
		respondStatus(w, http.StatusBadGateway, middleware.ErrorResponse{Error: "Title search failed"})
		return
	}
	if results == nil {
		results = []character.TitleCandidate{}
	}

	respondJSON(w, map[string]interface{}{
		"query":       query,
		"suggestions": character.RankCandidates(query, results),
	})
}

// GetCharacter returns a random character with its answers and hints
func (h *Handlers) GetCharacter(w http.ResponseWriter, r *http.Request) {
	if h.Characters == nil {
		respondStatus(w, http.StatusServiceUnavailable, middleware.ErrorResponse{Error: "Character source is unavailable"})
		return
	}

	c, err := h.Characters.FetchCharacter(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("character fetch failed")
		respondStatus(w, http.StatusBadGateway, middleware.ErrorResponse{Error: "Could not load a character"})
		return
	}

	respondJSON(w, CharacterResponse{
		Character:  c,
		Titles:     character.ValidTitles(c),
		Hints:      character.Hints(c),
		ExtraHints: character.ExtraHints(c),
	})
}

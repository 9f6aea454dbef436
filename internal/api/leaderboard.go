package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/anime-guess/internal/leaderboard"
	"github.com/anime-guess/internal/maintenance"
	"github.com/anime-guess/internal/middleware"
	"github.com/anime-guess/internal/storage"
)

// LeaderboardResponse is one page of the leaderboard
type LeaderboardResponse struct {
	Entries []storage.LeaderboardEntry `json:"entries"`
	Total   int                        `json:"total"`
	Limit   int                        `json:"limit"`
	Offset  int                        `json:"offset"`
}

// RankResponse is a player's position on the leaderboard
type RankResponse struct {
	UserID    string `json:"userId"`
	Rank      int    `json:"rank"`
	TimeFrame string `json:"timeFrame"`
}

func queryInt(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.New(key + " must be a number")
	}
	return n, nil
}

// GetLeaderboard returns a filtered, sorted page of entries
func (h *Handlers) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		respondStatus(w, http.StatusBadRequest, middleware.ErrorResponse{Error: err.Error()})
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		respondStatus(w, http.StatusBadRequest, middleware.ErrorResponse{Error: err.Error()})
		return
	}

	q := r.URL.Query()
	query := leaderboard.Query{
		TimeFrame:  q.Get("timeFrame"),
		Difficulty: q.Get("difficulty"),
		Sort:       q.Get("sort"),
		Limit:      limit,
		Offset:     offset,
	}
	res, err := h.Leaderboard.Query(r.Context(), query)
	if err != nil {
		respondError(w, err, "Failed to get leaderboard")
		return
	}

	entries := res.Entries
	if entries == nil {
		entries = []storage.LeaderboardEntry{}
	}
	if limit <= 0 {
		limit = leaderboard.DefaultLimit
	}
	respondJSON(w, LeaderboardResponse{
		Entries: entries,
		Total:   res.Total,
		Limit:   min(limit, leaderboard.MaxLimit),
		Offset:  max(offset, 0),
	})
}

// GetUserRank returns a player's rank by their best entry
func (h *Handlers) GetUserRank(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	tf := r.URL.Query().Get("timeFrame")

	rank, err := h.Leaderboard.UserRank(r.Context(), userID, tf)
	if err != nil {
		respondError(w, err, "Failed to get rank")
		return
	}
	if tf == "" {
		tf = string(leaderboard.AllTime)
	}
	respondJSON(w, RankResponse{UserID: userID, Rank: rank, TimeFrame: tf})
}

// SubmitScore records a finished game for the authenticated player
func (h *Handlers) SubmitScore(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserClaims(r)
	if !ok {
		respondStatus(w, http.StatusUnauthorized, middleware.ErrorResponse{Error: "Not authenticated"})
		return
	}

	var sub leaderboard.Submission
	if err := decodeBody(w, r, &sub); err != nil {
		respondStatus(w, http.StatusBadRequest, middleware.ErrorResponse{Error: "Invalid request body"})
		return
	}
	sub.UserID = claims.UserID

	entry, err := h.Leaderboard.Submit(r.Context(), sub)
	if err != nil {
		respondError(w, err, "Failed to submit score")
		return
	}
	respondStatus(w, http.StatusCreated, entry)
}

// RunMaintenance runs one maintenance job, or all of them, then rebuilds
// the rank cache from the cleaned entries
func (h *Handlers) RunMaintenance(w http.ResponseWriter, r *http.Request) {
	job := chi.URLParam(r, "job")
	ctx := r.Context()

	report, err := maintenance.Run(ctx, h.Store, job)
	if err != nil {
		respondError(w, err, "Maintenance failed")
		return
	}

	if h.Cache.Enabled() {
		entries, err := h.Store.ListEntries(ctx)
		if err == nil {
			err = h.Cache.Rebuild(ctx, entries)
		}
		if err != nil {
			log.Warn().Err(err).Msg("rank cache not rebuilt after maintenance")
		}
	}
	h.Producer.EmitMaintenance(job, report.Changed())

	log.Info().Str("job", job).Int("changed", report.Changed()).Dur("took", report.Duration).Msg("Maintenance finished")
	respondJSON(w, report)
}

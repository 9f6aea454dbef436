package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/anime-guess/internal/game"
	"github.com/anime-guess/internal/storage"
)

// ErrInvalid is returned for submissions and filters that fail validation
var ErrInvalid = errors.New("invalid request")

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// RankCache serves ranks without touching the database
type RankCache interface {
	Record(ctx context.Context, userID, difficulty string, streak, points int) error
	Rank(ctx context.Context, userID, difficulty string) (int, error)
}

// EventEmitter publishes accepted submissions
type EventEmitter interface {
	EmitScoreSubmitted(entry *storage.LeaderboardEntry)
}

// Submission is a finished game sent for the leaderboard
type Submission struct {
	SubmissionID string    `json:"submissionId"`
	UserID       string    `json:"userId"`
	Streak       int       `json:"streak"`
	Points       int       `json:"points"`
	Difficulty   string    `json:"difficulty"`
	Accuracy     float64   `json:"accuracy"`
	Suspicious   bool      `json:"suspicious"`
	TabSwitches  int       `json:"tabSwitches"`
	PlayedAt     time.Time `json:"playedAt,omitempty"`
}

// Query selects a page of the leaderboard. Empty fields take defaults.
type Query struct {
	TimeFrame  string
	Difficulty string
	Sort       string
	Limit      int
	Offset     int
}

// Service validates submissions and answers leaderboard queries
type Service struct {
	store  storage.Store
	cache  RankCache
	events EventEmitter
	now    func() time.Time
}

// NewService creates a leaderboard service. cache and events may be nil.
func NewService(store storage.Store, cache RankCache, events EventEmitter) *Service {
	return &Service{
		store:  store,
		cache:  cache,
		events: events,
		now:    time.Now,
	}
}

func (s *Submission) validate() (game.Difficulty, error) {
	if strings.TrimSpace(s.UserID) == "" {
		return "", fmt.Errorf("%w: missing user id", ErrInvalid)
	}
	d, ok := game.ParseDifficulty(s.Difficulty)
	if !ok {
		return "", fmt.Errorf("%w: unknown difficulty %q", ErrInvalid, s.Difficulty)
	}
	if s.Streak < 0 || s.Points < 0 || s.TabSwitches < 0 {
		return "", fmt.Errorf("%w: counters must not be negative", ErrInvalid)
	}
	if s.Accuracy < 0 || s.Accuracy > 100 {
		return "", fmt.Errorf("%w: accuracy must be between 0 and 100", ErrInvalid)
	}
	return d, nil
}

// Submit stores a finished game with a snapshot of the player's profile.
// Nothing is written when validation fails.
func (s *Service) Submit(ctx context.Context, sub Submission) (*storage.LeaderboardEntry, error) {
	d, err := sub.validate()
	if err != nil {
		return nil, err
	}

	profile, err := s.store.GetProfile(ctx, sub.UserID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	snap := profile.Snapshot()

	now := s.now().UTC()
	played := sub.PlayedAt
	if played.IsZero() || played.After(now) {
		played = now
	}

	entry := &storage.LeaderboardEntry{
		SubmissionID: sub.SubmissionID,
		UserID:       profile.ID,
		Username:     snap.Username,
		Avatar:       snap.Avatar,
		Streak:       sub.Streak,
		Points:       sub.Points,
		Difficulty:   string(d),
		Level:        snap.Level,
		Accuracy:     sub.Accuracy,
		Suspicious:   sub.Suspicious,
		TabSwitches:  sub.TabSwitches,
		CreatedAt:    now,
		LastPlayedAt: played,
	}
	if entry.LastPlayedAt.Before(entry.CreatedAt) {
		entry.LastPlayedAt = entry.CreatedAt
	}

	if err := s.store.InsertEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("insert entry: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Record(ctx, entry.UserID, entry.Difficulty, entry.Streak, entry.Points); err != nil {
			log.Debug().Err(err).Str("user", entry.UserID).Msg("rank cache not updated")
		}
	}
	if s.events != nil {
		s.events.EmitScoreSubmitted(entry)
	}

	log.Info().
		Str("user", entry.Username).
		Str("difficulty", entry.Difficulty).
		Int("streak", entry.Streak).
		Int("points", entry.Points).
		Msg("Leaderboard entry submitted")
	return entry, nil
}

func (s *Service) filter(q Query) (storage.Filter, error) {
	tf, ok := ParseTimeFrame(q.TimeFrame)
	if !ok {
		return storage.Filter{}, fmt.Errorf("%w: unknown time frame %q", ErrInvalid, q.TimeFrame)
	}
	sort, ok := storage.ParseSortMode(q.Sort)
	if !ok {
		return storage.Filter{}, fmt.Errorf("%w: unknown sort %q", ErrInvalid, q.Sort)
	}

	f := storage.Filter{Since: tf.Since(s.now()), Sort: sort, Limit: q.Limit, Offset: q.Offset}
	if diff := strings.ToLower(strings.TrimSpace(q.Difficulty)); diff != "" && diff != "all" {
		d, ok := game.ParseDifficulty(diff)
		if !ok {
			return storage.Filter{}, fmt.Errorf("%w: unknown difficulty %q", ErrInvalid, q.Difficulty)
		}
		f.Difficulty = string(d)
	}

	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	f.Limit = min(f.Limit, MaxLimit)
	f.Offset = max(f.Offset, 0)
	return f, nil
}

// Query returns one page of the leaderboard and the number of matching entries
func (s *Service) Query(ctx context.Context, q Query) (*storage.QueryResult, error) {
	f, err := s.filter(q)
	if err != nil {
		return nil, err
	}
	return s.store.QueryEntries(ctx, f)
}

// UserRank returns the player's 1-based rank by their best entry. All-time
// ranks come from the cache when it has them.
func (s *Service) UserRank(ctx context.Context, userID, timeFrame string) (int, error) {
	f, err := s.filter(Query{TimeFrame: timeFrame})
	if err != nil {
		return 0, err
	}
	if strings.TrimSpace(userID) == "" {
		return 0, fmt.Errorf("%w: missing user id", ErrInvalid)
	}

	if f.Since.IsZero() && s.cache != nil {
		rank, err := s.cache.Rank(ctx, userID, "")
		if err == nil {
			return rank, nil
		}
		log.Debug().Err(err).Str("user", userID).Msg("rank cache miss")
	}
	return s.store.UserRank(ctx, userID, f)
}

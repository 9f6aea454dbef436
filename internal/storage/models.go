package storage

import (
	"time"

	"github.com/anime-guess/internal/game"
)

// User is a registered player and their persistent profile
type User struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	PasswordHash   string    `json:"-"`
	Avatar         string    `json:"avatar,omitempty"`
	XP             int       `json:"xp"`
	Level          int       `json:"level"`
	Coins          int       `json:"coins"`
	HintTokens     int       `json:"hintTokens"`
	CorrectGuesses int       `json:"correctGuesses"`
	TotalGuesses   int       `json:"totalGuesses"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Progress is what one guess adds to a profile
type Progress struct {
	XP      int
	Coins   int
	Correct int
	Guesses int
}

// LeaderboardEntry is one submitted game. Username, avatar and level are a
// snapshot of the profile at submission time.
type LeaderboardEntry struct {
	ID           string     `json:"id"`
	SubmissionID string     `json:"submissionId,omitempty"`
	UserID       string     `json:"userId"`
	Username     string     `json:"username"`
	Avatar       string     `json:"avatar,omitempty"`
	Streak       int        `json:"streak"`
	Points       int        `json:"points"`
	Difficulty   string     `json:"difficulty"`
	Level        int        `json:"level"`
	Accuracy     float64    `json:"accuracy"`
	Suspicious   bool       `json:"suspicious"`
	TabSwitches  int        `json:"tabSwitches"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastPlayedAt time.Time  `json:"lastPlayedAt"`
	LegacyDate   *time.Time `json:"-"`
	Rank         int        `json:"rank,omitempty"`
}

// Snapshot is the denormalized profile data carried by an entry
type Snapshot struct {
	Username string
	Avatar   string
	Level    int
}

// Snapshot returns the profile fields an entry copies
func (u *User) Snapshot() Snapshot {
	return Snapshot{Username: u.Username, Avatar: u.Avatar, Level: max(u.Level, 1)}
}

// Filter selects leaderboard entries. A zero Since means no time bound and
// an empty Difficulty means every difficulty.
type Filter struct {
	Since      time.Time
	Difficulty string
	Sort       SortMode
	Limit      int
	Offset     int
}

func (f Filter) matches(e *LeaderboardEntry) bool {
	if !f.Since.IsZero() && e.CreatedAt.Before(f.Since) {
		return false
	}
	return f.Difficulty == "" || e.Difficulty == f.Difficulty
}

// QueryResult is one page of entries plus the total number matching
type QueryResult struct {
	Entries []LeaderboardEntry `json:"entries"`
	Total   int                `json:"total"`
}

// Accuracy is the lifetime share of correct guesses as a percentage
func (u *User) Accuracy() float64 {
	return game.Accuracy(u.CorrectGuesses, u.TotalGuesses)
}

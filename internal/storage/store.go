package storage

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("already exists")
	ErrNoHintTokens = errors.New("no hint tokens left")
)

// DefaultHintTokens is what a new account starts with
const DefaultHintTokens = 3

// Store is the persistence surface shared by the Postgres and in-memory
// implementations
type Store interface {
	CreateUser(ctx context.Context, u *User) error
	GetUserByName(ctx context.Context, username string) (*User, error)
	GetProfile(ctx context.Context, userID string) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
	ApplyRewards(ctx context.Context, userID string, p Progress) (*User, error)
	ConsumeHintToken(ctx context.Context, userID string) (int, error)

	InsertEntry(ctx context.Context, e *LeaderboardEntry) error
	QueryEntries(ctx context.Context, f Filter) (*QueryResult, error)
	UserRank(ctx context.Context, userID string, f Filter) (int, error)
	ListEntries(ctx context.Context) ([]LeaderboardEntry, error)
	UpdateEntryDates(ctx context.Context, entryID string, lastPlayedAt time.Time) error
	UpdateEntrySnapshot(ctx context.Context, entryID string, s Snapshot) error
	DeleteEntries(ctx context.Context, entryIDs []string) (int, error)

	Close()
}

package storage

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/anime-guess/internal/game"
)

// MemoryStore keeps everything in process. The server falls back to it
// when Postgres is unavailable.
type MemoryStore struct {
	users       map[string]*User
	byName      map[string]string
	entries     map[string]*LeaderboardEntry
	submissions map[string]string
	mu          sync.RWMutex
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:       make(map[string]*User),
		byName:      make(map[string]string),
		entries:     make(map[string]*LeaderboardEntry),
		submissions: make(map[string]string),
	}
}

func (m *MemoryStore) CreateUser(ctx context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := strings.ToLower(u.Username)
	if _, ok := m.byName[key]; ok {
		return ErrConflict
	}
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	u.Level = max(u.Level, 1)

	cp := *u
	m.users[u.ID] = &cp
	m.byName[key] = u.ID
	return nil
}

func (m *MemoryStore) GetUserByName(ctx context.Context, username string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byName[strings.ToLower(username)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m.users[id]
	return &cp, nil
}

func (m *MemoryStore) GetProfile(ctx context.Context, userID string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MemoryStore) ListUsers(ctx context.Context) ([]User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, *u)
	}
	return out, nil
}

// DeleteUser removes a profile but leaves its entries behind
func (m *MemoryStore) DeleteUser(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	delete(m.byName, strings.ToLower(u.Username))
	delete(m.users, userID)
	return nil
}

// UpdateProfile changes a user's name and avatar
func (m *MemoryStore) UpdateProfile(ctx context.Context, userID, username, avatar string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	if other, taken := m.byName[strings.ToLower(username)]; taken && other != userID {
		return ErrConflict
	}
	delete(m.byName, strings.ToLower(u.Username))
	u.Username = username
	u.Avatar = avatar
	m.byName[strings.ToLower(username)] = userID
	return nil
}

func (m *MemoryStore) ApplyRewards(ctx context.Context, userID string, p Progress) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	u.XP += p.XP
	u.Coins += p.Coins
	u.CorrectGuesses += p.Correct
	u.TotalGuesses += p.Guesses
	u.Level = game.LevelForXP(u.XP)
	cp := *u
	return &cp, nil
}

func (m *MemoryStore) ConsumeHintToken(ctx context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		return 0, ErrNotFound
	}
	if u.HintTokens <= 0 {
		return 0, ErrNoHintTokens
	}
	u.HintTokens--
	return u.HintTokens, nil
}

func (m *MemoryStore) InsertEntry(ctx context.Context, e *LeaderboardEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e.SubmissionID != "" {
		if _, dup := m.submissions[e.SubmissionID]; dup {
			return ErrConflict
		}
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	cp := *e
	m.entries[e.ID] = &cp
	if e.SubmissionID != "" {
		m.submissions[e.SubmissionID] = e.ID
	}
	return nil
}

// snapshotLocked returns canonical copies of every entry
func (m *MemoryStore) snapshotLocked() []LeaderboardEntry {
	out := make([]LeaderboardEntry, 0, len(m.entries))
	for _, e := range m.entries {
		cp := *e
		CanonicalEntry(&cp)
		out = append(out, cp)
	}
	return out
}

func (m *MemoryStore) QueryEntries(ctx context.Context, f Filter) (*QueryResult, error) {
	m.mu.RLock()
	all := m.snapshotLocked()
	m.mu.RUnlock()

	var matched []LeaderboardEntry
	for i := range all {
		if f.matches(&all[i]) {
			matched = append(matched, all[i])
		}
	}
	SortEntries(matched, f.Sort)

	result := &QueryResult{Entries: []LeaderboardEntry{}, Total: len(matched)}
	if f.Offset >= len(matched) {
		return result, nil
	}
	end := len(matched)
	if f.Limit > 0 && f.Offset+f.Limit < end {
		end = f.Offset + f.Limit
	}
	for i, e := range matched[f.Offset:end] {
		e.Rank = f.Offset + i + 1
		result.Entries = append(result.Entries, e)
	}
	return result, nil
}

func (m *MemoryStore) UserRank(ctx context.Context, userID string, f Filter) (int, error) {
	m.mu.RLock()
	all := m.snapshotLocked()
	m.mu.RUnlock()

	best := make(map[string]float64)
	for i := range all {
		e := &all[i]
		if !f.matches(e) {
			continue
		}
		score := CompositeScore(e.Streak, e.Points)
		if cur, ok := best[e.UserID]; !ok || score > cur {
			best[e.UserID] = score
		}
	}

	mine, ok := best[userID]
	if !ok {
		return 0, ErrNotFound
	}
	rank := 1
	for id, score := range best {
		if id != userID && score > mine {
			rank++
		}
	}
	return rank, nil
}

func (m *MemoryStore) ListEntries(ctx context.Context) ([]LeaderboardEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked(), nil
}

func (m *MemoryStore) UpdateEntryDates(ctx context.Context, entryID string, lastPlayedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[entryID]
	if !ok {
		return ErrNotFound
	}
	e.LastPlayedAt = lastPlayedAt
	e.LegacyDate = nil
	return nil
}

func (m *MemoryStore) UpdateEntrySnapshot(ctx context.Context, entryID string, s Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[entryID]
	if !ok {
		return ErrNotFound
	}
	e.Username = s.Username
	e.Avatar = s.Avatar
	e.Level = s.Level
	return nil
}

func (m *MemoryStore) DeleteEntries(ctx context.Context, entryIDs []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for _, id := range entryIDs {
		e, ok := m.entries[id]
		if !ok {
			continue
		}
		if e.SubmissionID != "" {
			delete(m.submissions, e.SubmissionID)
		}
		delete(m.entries, id)
		removed++
	}
	return removed, nil
}

func (m *MemoryStore) Close() {}

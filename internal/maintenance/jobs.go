package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/anime-guess/internal/storage"
)

// Store is the part of the storage layer the jobs need
type Store interface {
	ListUsers(ctx context.Context) ([]storage.User, error)
	ListEntries(ctx context.Context) ([]storage.LeaderboardEntry, error)
	UpdateEntryDates(ctx context.Context, entryID string, lastPlayedAt time.Time) error
	UpdateEntrySnapshot(ctx context.Context, entryID string, s storage.Snapshot) error
	DeleteEntries(ctx context.Context, entryIDs []string) (int, error)
}

// Job names accepted by Run
const (
	JobMigrate = "migrate"
	JobOrphans = "orphans"
	JobSync    = "sync"
	JobDedup   = "dedup"
	JobAll     = "all"
)

var ErrUnknownJob = errors.New("unknown maintenance job")

type DateReport struct {
	Migrated    int `json:"migrated"`
	FieldsFixed int `json:"fieldsFixed"`
}

type SyncReport struct {
	Synced int `json:"synced"`
}

type OrphanReport struct {
	Removed int `json:"removed"`
}

type DedupReport struct {
	Removed int `json:"removed"`
	Players int `json:"players"`
}

// Report collects the results of the jobs that ran
type Report struct {
	Dates    *DateReport   `json:"dates,omitempty"`
	Orphans  *OrphanReport `json:"orphans,omitempty"`
	Sync     *SyncReport   `json:"sync,omitempty"`
	Dedup    *DedupReport  `json:"dedup,omitempty"`
	Duration time.Duration `json:"durationNs"`
}

// Changed is the number of rows the run wrote or deleted
func (r *Report) Changed() int {
	n := 0
	if r.Dates != nil {
		n += r.Dates.FieldsFixed
	}
	if r.Orphans != nil {
		n += r.Orphans.Removed
	}
	if r.Sync != nil {
		n += r.Sync.Synced
	}
	if r.Dedup != nil {
		n += r.Dedup.Removed
	}
	return n
}

// Run executes one named job, or all of them
func Run(ctx context.Context, store Store, job string) (*Report, error) {
	start := time.Now()
	report := &Report{}
	var err error

	switch job {
	case JobMigrate:
		report.Dates, err = MigrateDates(ctx, store)
	case JobOrphans:
		report.Orphans, err = RemoveOrphans(ctx, store)
	case JobSync:
		report.Sync, err = SyncProfiles(ctx, store)
	case JobDedup:
		report.Dedup, err = Deduplicate(ctx, store)
	case JobAll:
		report, err = RunAll(ctx, store)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownJob, job)
	}
	if err != nil {
		return nil, err
	}
	report.Duration = time.Since(start)
	return report, nil
}

// RunAll runs every job in order: migrate, orphans, sync, dedup
func RunAll(ctx context.Context, store Store) (*Report, error) {
	start := time.Now()
	report := &Report{}
	var err error

	if report.Dates, err = MigrateDates(ctx, store); err != nil {
		return nil, err
	}
	if report.Orphans, err = RemoveOrphans(ctx, store); err != nil {
		return nil, err
	}
	if report.Sync, err = SyncProfiles(ctx, store); err != nil {
		return nil, err
	}
	if report.Dedup, err = Deduplicate(ctx, store); err != nil {
		return nil, err
	}
	report.Duration = time.Since(start)
	return report, nil
}

// MigrateDates backfills a missing or malformed lastPlayedAt from the legacy
// date column, falling back to createdAt, and clears the legacy column.
// A lastPlayedAt is malformed when it is zero or earlier than createdAt.
func MigrateDates(ctx context.Context, store Store) (*DateReport, error) {
	entries, err := store.ListEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("migrate dates: list entries: %w", err)
	}

	report := &DateReport{}
	for _, e := range entries {
		target := e.LastPlayedAt
		fixed := 0

		if !validPlayedAt(target, e.CreatedAt) {
			switch {
			case e.LegacyDate != nil && validPlayedAt(*e.LegacyDate, e.CreatedAt):
				target = *e.LegacyDate
			case !e.CreatedAt.IsZero():
				target = e.CreatedAt
			default:
				log.Warn().Str("entry", e.ID).Msg("entry has no usable date, skipping")
				continue
			}
			fixed++
		}
		if e.LegacyDate != nil {
			fixed++
		}
		if fixed == 0 {
			continue
		}

		if err := store.UpdateEntryDates(ctx, e.ID, target); err != nil {
			return nil, fmt.Errorf("migrate dates: entry %s: %w", e.ID, err)
		}
		if !target.Equal(e.LastPlayedAt) {
			report.Migrated++
		}
		report.FieldsFixed += fixed
	}

	log.Info().Int("migrated", report.Migrated).Int("fieldsFixed", report.FieldsFixed).Msg("Date migration finished")
	return report, nil
}

func validPlayedAt(t, createdAt time.Time) bool {
	return !t.IsZero() && !t.Before(createdAt)
}

// SyncProfiles rewrites the username, avatar and level snapshot of every
// entry whose live profile has drifted
func SyncProfiles(ctx context.Context, store Store) (*SyncReport, error) {
	users, err := store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("sync profiles: list users: %w", err)
	}
	entries, err := store.ListEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("sync profiles: list entries: %w", err)
	}

	profiles := make(map[string]storage.Snapshot, len(users))
	for i := range users {
		profiles[users[i].ID] = users[i].Snapshot()
	}

	report := &SyncReport{}
	for _, e := range entries {
		snap, ok := profiles[e.UserID]
		if !ok {
			continue
		}
		if e.Username == snap.Username && e.Avatar == snap.Avatar && e.Level == snap.Level {
			continue
		}
		if err := store.UpdateEntrySnapshot(ctx, e.ID, snap); err != nil {
			return nil, fmt.Errorf("sync profiles: entry %s: %w", e.ID, err)
		}
		report.Synced++
	}

	log.Info().Int("synced", report.Synced).Msg("Profile sync finished")
	return report, nil
}

// RemoveOrphans deletes entries whose player no longer exists
func RemoveOrphans(ctx context.Context, store Store) (*OrphanReport, error) {
	users, err := store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("remove orphans: list users: %w", err)
	}
	entries, err := store.ListEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("remove orphans: list entries: %w", err)
	}

	known := make(map[string]bool, len(users))
	for _, u := range users {
		known[u.ID] = true
	}

	var orphans []string
	for _, e := range entries {
		if !known[e.UserID] {
			orphans = append(orphans, e.ID)
		}
	}

	removed, err := store.DeleteEntries(ctx, orphans)
	if err != nil {
		return nil, fmt.Errorf("remove orphans: %w", err)
	}

	log.Info().Int("removed", removed).Msg("Orphan cleanup finished")
	return &OrphanReport{Removed: removed}, nil
}

// Deduplicate keeps each player's best entry by the streak ordering and
// deletes the rest. Scores are never modified.
func Deduplicate(ctx context.Context, store Store) (*DedupReport, error) {
	entries, err := store.ListEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("deduplicate: list entries: %w", err)
	}

	best := make(map[string]int)
	for i := range entries {
		cur, ok := best[entries[i].UserID]
		if !ok || storage.Better(&entries[i], &entries[cur], storage.SortStreak) {
			best[entries[i].UserID] = i
		}
	}

	var losers []string
	for i := range entries {
		if best[entries[i].UserID] != i {
			losers = append(losers, entries[i].ID)
		}
	}

	removed, err := store.DeleteEntries(ctx, losers)
	if err != nil {
		return nil, fmt.Errorf("deduplicate: %w", err)
	}

	report := &DedupReport{Removed: removed, Players: len(best)}
	log.Info().Int("removed", removed).Int("players", report.Players).Msg("Deduplication finished")
	return report, nil
}

package maintenance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/anime-guess/internal/storage"
)

var created = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func newStore(t *testing.T, users ...string) *storage.MemoryStore {
	t.Helper()
	m := storage.NewMemoryStore()
	for _, id := range users {
		if err := m.CreateUser(context.Background(), &storage.User{ID: id, Username: id, Level: 1}); err != nil {
			t.Fatalf("create user %s: %v", id, err)
		}
	}
	return m
}

func insert(t *testing.T, m *storage.MemoryStore, e storage.LeaderboardEntry) {
	t.Helper()
	if e.Username == "" {
		e.Username = e.UserID
	}
	if e.Difficulty == "" {
		e.Difficulty = "medium"
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = created
	}
	if e.LastPlayedAt.IsZero() && e.LegacyDate == nil {
		e.LastPlayedAt = e.CreatedAt
	}
	e.Level = max(e.Level, 1)
	if err := m.InsertEntry(context.Background(), &e); err != nil {
		t.Fatalf("insert %s: %v", e.ID, err)
	}
}

func ids(t *testing.T, m *storage.MemoryStore) map[string]storage.LeaderboardEntry {
	t.Helper()
	entries, err := m.ListEntries(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	out := make(map[string]storage.LeaderboardEntry, len(entries))
	for _, e := range entries {
		out[e.ID] = e
	}
	return out
}

func TestDeduplicateKeepsMaxStreakThenPoints(t *testing.T) {
	m := newStore(t, "p1", "p2")
	insert(t, m, storage.LeaderboardEntry{ID: "a", UserID: "p1", Streak: 4, Points: 900})
	insert(t, m, storage.LeaderboardEntry{ID: "b", UserID: "p1", Streak: 6, Points: 100})
	insert(t, m, storage.LeaderboardEntry{ID: "c", UserID: "p1", Streak: 6, Points: 400})
	insert(t, m, storage.LeaderboardEntry{ID: "d", UserID: "p1", Streak: 2, Points: 2000})
	insert(t, m, storage.LeaderboardEntry{ID: "e", UserID: "p2", Streak: 1, Points: 10})

	report, err := Deduplicate(context.Background(), m)
	if err != nil {
		t.Fatal(err)
	}
	if report.Removed != 3 || report.Players != 2 {
		t.Fatalf("unexpected report: %+v", report)
	}

	left := ids(t, m)
	if len(left) != 2 {
		t.Fatalf("expected one entry per player, got %d", len(left))
	}
	if _, ok := left["c"]; !ok {
		t.Fatalf("expected entry c (streak 6, points 400) to survive, got %v", left)
	}
	if _, ok := left["e"]; !ok {
		t.Fatal("single entry of p2 must be untouched")
	}
}

func TestDeduplicateFullTieKeepsOldest(t *testing.T) {
	m := newStore(t, "p1")
	insert(t, m, storage.LeaderboardEntry{ID: "new", UserID: "p1", Streak: 3, Points: 50, CreatedAt: created.Add(time.Hour)})
	insert(t, m, storage.LeaderboardEntry{ID: "old", UserID: "p1", Streak: 3, Points: 50})

	if _, err := Deduplicate(context.Background(), m); err != nil {
		t.Fatal(err)
	}
	if _, ok := ids(t, m)["old"]; !ok {
		t.Fatal("the older of two identical entries should survive")
	}
}

func TestRemoveOrphans(t *testing.T) {
	ctx := context.Background()
	m := newStore(t, "alive", "gone")
	insert(t, m, storage.LeaderboardEntry{ID: "a", UserID: "alive", Streak: 1})
	insert(t, m, storage.LeaderboardEntry{ID: "b", UserID: "gone", Streak: 9})
	insert(t, m, storage.LeaderboardEntry{ID: "c", UserID: "gone", Streak: 2})

	if err := m.DeleteUser(ctx, "gone"); err != nil {
		t.Fatal(err)
	}

	report, err := RemoveOrphans(ctx, m)
	if err != nil {
		t.Fatal(err)
	}
	if report.Removed != 2 {
		t.Fatalf("expected 2 orphans removed, got %d", report.Removed)
	}
	left := ids(t, m)
	if len(left) != 1 || left["a"].Streak != 1 {
		t.Fatalf("entries of existing players must be untouched: %v", left)
	}
}

func TestSyncProfiles(t *testing.T) {
	ctx := context.Background()
	m := newStore(t, "p1", "p2")
	insert(t, m, storage.LeaderboardEntry{ID: "a", UserID: "p1", Username: "p1", Streak: 5, Points: 70})
	insert(t, m, storage.LeaderboardEntry{ID: "b", UserID: "p2", Username: "p2"})

	if err := m.UpdateProfile(ctx, "p1", "renamed", "new.png"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.ApplyRewards(ctx, "p1", storage.Progress{XP: 420}); err != nil {
		t.Fatal(err)
	}

	report, err := SyncProfiles(ctx, m)
	if err != nil {
		t.Fatal(err)
	}
	if report.Synced != 1 {
		t.Fatalf("only the drifted entry should sync, got %d", report.Synced)
	}

	got := ids(t, m)["a"]
	if got.Username != "renamed" || got.Avatar != "new.png" || got.Level != 5 {
		t.Fatalf("snapshot not refreshed: %+v", got)
	}
	if got.Streak != 5 || got.Points != 70 {
		t.Fatalf("sync must not touch scores: %+v", got)
	}
}

func TestMigrateDates(t *testing.T) {
	m := newStore(t, "p1")
	legacy := created.Add(2 * time.Hour)
	badLegacy := created.Add(-24 * time.Hour)

	insert(t, m, storage.LeaderboardEntry{ID: "from-legacy", UserID: "p1", LegacyDate: &legacy})
	insert(t, m, storage.LeaderboardEntry{ID: "from-created", UserID: "p1", LegacyDate: &badLegacy})
	insert(t, m, storage.LeaderboardEntry{ID: "before-created", UserID: "p1", LastPlayedAt: created.Add(-time.Minute)})
	insert(t, m, storage.LeaderboardEntry{ID: "clean", UserID: "p1", LastPlayedAt: created.Add(time.Minute)})

	report, err := MigrateDates(context.Background(), m)
	if err != nil {
		t.Fatal(err)
	}
	if report.Migrated != 3 || report.FieldsFixed != 5 {
		t.Fatalf("unexpected report: %+v", report)
	}

	got := ids(t, m)
	if !got["from-legacy"].LastPlayedAt.Equal(legacy) {
		t.Fatalf("expected legacy date, got %v", got["from-legacy"].LastPlayedAt)
	}
	if !got["from-created"].LastPlayedAt.Equal(created) || !got["before-created"].LastPlayedAt.Equal(created) {
		t.Fatal("malformed dates should fall back to createdAt")
	}
	if !got["clean"].LastPlayedAt.Equal(created.Add(time.Minute)) {
		t.Fatal("valid dates must be left alone")
	}
	for id, e := range got {
		if e.LegacyDate != nil {
			t.Fatalf("legacy date of %s not cleared", id)
		}
	}
}

func TestJobsAreIdempotent(t *testing.T) {
	ctx := context.Background()
	m := newStore(t, "p1", "p2", "p3")
	legacy := created.Add(time.Hour)
	insert(t, m, storage.LeaderboardEntry{ID: "a", UserID: "p1", Streak: 2, LegacyDate: &legacy})
	insert(t, m, storage.LeaderboardEntry{ID: "b", UserID: "p1", Streak: 5})
	insert(t, m, storage.LeaderboardEntry{ID: "c", UserID: "p2", Username: "stale"})
	insert(t, m, storage.LeaderboardEntry{ID: "d", UserID: "p3"})
	insert(t, m, storage.LeaderboardEntry{ID: "e", UserID: "ghost"})
	m.DeleteUser(ctx, "p3")

	first, err := RunAll(ctx, m)
	if err != nil {
		t.Fatal(err)
	}
	if first.Changed() == 0 {
		t.Fatal("first run should have fixed something")
	}

	second, err := RunAll(ctx, m)
	if err != nil {
		t.Fatal(err)
	}
	if second.Changed() != 0 {
		t.Fatalf("second run changed %d rows: dates=%+v orphans=%+v sync=%+v dedup=%+v",
			second.Changed(), second.Dates, second.Orphans, second.Sync, second.Dedup)
	}
	if second.Dates.Migrated != 0 {
		t.Fatalf("second run migrated %d entries", second.Dates.Migrated)
	}
}

func TestRunUnknownJob(t *testing.T) {
	if _, err := Run(context.Background(), newStore(t), "vacuum"); !errors.Is(err, ErrUnknownJob) {
		t.Fatalf("expected ErrUnknownJob, got %v", err)
	}
}

func TestRunSingleJob(t *testing.T) {
	m := newStore(t)
	insert(t, m, storage.LeaderboardEntry{ID: "a", UserID: "ghost"})

	report, err := Run(context.Background(), m, JobOrphans)
	if err != nil {
		t.Fatal(err)
	}
	if report.Orphans == nil || report.Orphans.Removed != 1 || report.Dedup != nil {
		t.Fatalf("unexpected report: %+v", report)
	}
}

package storage

import (
	"sort"
	"strings"
)

// SortMode is the primary leaderboard ordering. Every mode sorts descending.
type SortMode string

const (
	SortStreak   SortMode = "streak"
	SortPoints   SortMode = "points"
	SortLevel    SortMode = "level"
	SortAccuracy SortMode = "accuracy"
)

// ParseSortMode accepts a mode name, defaulting to streak for ""
func ParseSortMode(s string) (SortMode, bool) {
	switch m := SortMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return SortStreak, true
	case SortStreak, SortPoints, SortLevel, SortAccuracy:
		return m, true
	}
	return "", false
}

// Better reports whether a ranks ahead of b under mode. Remaining ties go
// to the older entry, then the lower ID, so the order is total.
func Better(a, b *LeaderboardEntry, mode SortMode) bool {
	primary, secondary := keys(a, mode), keys(b, mode)
	for i := range primary {
		if primary[i] != secondary[i] {
			return primary[i] > secondary[i]
		}
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

func keys(e *LeaderboardEntry, mode SortMode) [2]float64 {
	switch mode {
	case SortPoints:
		return [2]float64{float64(e.Points), float64(e.Streak)}
	case SortLevel:
		return [2]float64{float64(e.Level), float64(e.Points)}
	case SortAccuracy:
		return [2]float64{e.Accuracy, float64(e.Points)}
	default:
		return [2]float64{float64(e.Streak), float64(e.Points)}
	}
}

// SortEntries orders entries best first
func SortEntries(entries []LeaderboardEntry, mode SortMode) {
	sort.SliceStable(entries, func(i, j int) bool {
		return Better(&entries[i], &entries[j], mode)
	})
}

// orderClause is the SQL equivalent of Better
func (m SortMode) orderClause() string {
	switch m {
	case SortPoints:
		return "points DESC, streak DESC, created_at ASC, id ASC"
	case SortLevel:
		return "level DESC, points DESC, created_at ASC, id ASC"
	case SortAccuracy:
		return "accuracy DESC, points DESC, created_at ASC, id ASC"
	default:
		return "streak DESC, points DESC, created_at ASC, id ASC"
	}
}

// maxRankPoints caps points so they never outweigh one streak step
const maxRankPoints = 999999

// CompositeScore folds streak and points into one rank score
func CompositeScore(streak, points int) float64 {
	return float64(streak)*1e6 + float64(min(max(points, 0), maxRankPoints))
}

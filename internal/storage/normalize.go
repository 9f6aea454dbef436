package storage

import (
	"strings"
)

// CanonicalEntry fixes up a stored row so nothing past the read path has to
// care how old or hand-edited it is: difficulty lowercased, counters never
// negative, level at least 1, accuracy within 0..100.
func CanonicalEntry(e *LeaderboardEntry) {
	e.Difficulty = strings.ToLower(strings.TrimSpace(e.Difficulty))
	e.Username = strings.TrimSpace(e.Username)
	e.Streak = max(e.Streak, 0)
	e.Points = max(e.Points, 0)
	e.TabSwitches = max(e.TabSwitches, 0)
	e.Level = max(e.Level, 1)
	switch {
	case e.Accuracy < 0:
		e.Accuracy = 0
	case e.Accuracy > 100:
		e.Accuracy = 100
	}
}

package leaderboard

import (
	"strings"
	"time"
)

// TimeFrame limits a query to recent entries
type TimeFrame string

const (
	AllTime   TimeFrame = "all"
	Today     TimeFrame = "today"
	ThisWeek  TimeFrame = "week"
	ThisMonth TimeFrame = "month"
)

// ParseTimeFrame accepts a time frame name, defaulting to all for ""
func ParseTimeFrame(s string) (TimeFrame, bool) {
	switch tf := TimeFrame(strings.ToLower(strings.TrimSpace(s))); tf {
	case "":
		return AllTime, true
	case AllTime, Today, ThisWeek, ThisMonth:
		return tf, true
	}
	return "", false
}

// Since returns the UTC start of the time frame containing now, or the zero
// time for all. Weeks start on Monday.
func (tf TimeFrame) Since(now time.Time) time.Time {
	now = now.UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	switch tf {
	case Today:
		return day
	case ThisWeek:
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case ThisMonth:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Time{}
	}
}

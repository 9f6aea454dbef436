package leaderboard

import (
	"testing"
	"time"
)

func TestTimeFrameSince(t *testing.T) {
	wed := time.Date(2024, 6, 12, 15, 30, 0, 0, time.UTC)
	sun := time.Date(2024, 6, 16, 23, 0, 0, 0, time.UTC)
	mon := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		tf   TimeFrame
		now  time.Time
		want time.Time
	}{
		{AllTime, wed, time.Time{}},
		{Today, wed, time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC)},
		{ThisWeek, wed, mon},
		{ThisWeek, sun, mon},
		{ThisWeek, mon, mon},
		{ThisMonth, wed, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		if got := tc.tf.Since(tc.now); !got.Equal(tc.want) {
			t.Fatalf("%s.Since(%v) = %v, want %v", tc.tf, tc.now, got, tc.want)
		}
	}
}

func TestTimeFrameSinceUsesUTC(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)
	// 02:00 on the 13th in Tokyo is still the 12th in UTC
	local := time.Date(2024, 6, 13, 2, 0, 0, 0, tokyo)
	want := time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC)
	if got := Today.Since(local); !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestParseTimeFrame(t *testing.T) {
	if tf, ok := ParseTimeFrame(""); !ok || tf != AllTime {
		t.Fatalf("got %q %v", tf, ok)
	}
	if tf, ok := ParseTimeFrame("WEEK"); !ok || tf != ThisWeek {
		t.Fatalf("got %q %v", tf, ok)
	}
	if _, ok := ParseTimeFrame("year"); ok {
		t.Fatal("unknown frame accepted")
	}
}

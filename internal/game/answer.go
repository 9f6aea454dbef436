package game

import (
	"strings"
	"unicode"
)

const (
	// minFuzzyLength guards short guesses against partial matches
	minFuzzyLength = 3
	// minLengthRatio is the shorter/longer length ratio a partial match needs
	minLengthRatio = 0.8
)

// NormalizeTitle canonicalizes a title for comparison: lowercase, only
// [a-z0-9] and whitespace kept, whitespace runs collapsed, trimmed.
func NormalizeTitle(s string) string {
	lowered := strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// CheckAnswer reports whether guess names one of the valid titles.
// Exact matches on the normalized form always count; guesses of at least
// three characters may also match a title that contains them (or that
// they contain) when the two lengths are within 80% of each other.
func CheckAnswer(guess string, titles []string) bool {
	if guess == "" || len(titles) == 0 {
		return false
	}

	g := NormalizeTitle(guess)
	if g == "" {
		return false
	}

	normalized := make([]string, 0, len(titles))
	for _, t := range titles {
		n := NormalizeTitle(t)
		if n == g {
			return true
		}
		normalized = append(normalized, n)
	}

	if len(g) < minFuzzyLength {
		return false
	}

	for _, t := range normalized {
		if t == "" {
			continue
		}
		ratio := float64(min(len(g), len(t))) / float64(max(len(g), len(t)))
		if ratio < minLengthRatio {
			continue
		}
		if strings.Contains(t, g) || strings.Contains(g, t) {
			return true
		}
	}

	return false
}

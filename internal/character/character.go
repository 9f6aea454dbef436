package character

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/anime-guess/internal/game"
)

// Name holds the display names of a character
type Name struct {
	Full   string `json:"full"`
	Native string `json:"native,omitempty"`
}

// Appearance is one anime a character appears in
type Appearance struct {
	ID      int    `json:"id"`
	Romaji  string `json:"romaji"`
	English string `json:"english,omitempty"`
	Format  string `json:"format,omitempty"`
	Year    int    `json:"year,omitempty"`
}

// Character is the subject of one round
type Character struct {
	ID          int          `json:"id"`
	Name        Name         `json:"name"`
	Image       string       `json:"image"`
	Appearances []Appearance `json:"appearances"`
}

// ValidTitles returns every romaji title plus the English titles that
// differ from them, in appearance order
func ValidTitles(c *Character) []string {
	if c == nil {
		return nil
	}
	seen := make(map[string]bool)
	titles := make([]string, 0, len(c.Appearances)*2)
	add := func(t string) {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			return
		}
		seen[t] = true
		titles = append(titles, t)
	}
	for _, a := range c.Appearances {
		add(a.Romaji)
	}
	for _, a := range c.Appearances {
		add(a.English)
	}
	return titles
}

// primaryTitle is the title hints are derived from
func primaryTitle(c *Character) string {
	for _, a := range c.Appearances {
		if a.Romaji != "" {
			return a.Romaji
		}
		if a.English != "" {
			return a.English
		}
	}
	return ""
}

// Hints returns the ordered hint texts for a character, one per reveal
func Hints(c *Character) []string {
	if c == nil {
		return nil
	}
	title := primaryTitle(c)
	hints := make([]string, 0, 5)

	if n := len(c.Appearances); n == 1 {
		hints = append(hints, "This character appears in 1 anime")
	} else {
		hints = append(hints, fmt.Sprintf("This character appears in %d anime", n))
	}

	first := Appearance{}
	if len(c.Appearances) > 0 {
		first = c.Appearances[0]
	}
	switch {
	case first.Year > 0 && first.Format != "":
		hints = append(hints, fmt.Sprintf("The %s first aired in %d", formatLabel(first.Format), first.Year))
	case first.Year > 0:
		hints = append(hints, fmt.Sprintf("The anime first aired in %d", first.Year))
	case first.Format != "":
		hints = append(hints, fmt.Sprintf("The anime is a %s", formatLabel(first.Format)))
	default:
		hints = append(hints, "No airing information is available")
	}

	words := strings.Fields(title)
	if len(words) == 1 {
		hints = append(hints, "The title is a single word")
	} else {
		hints = append(hints, fmt.Sprintf("The title has %d words", len(words)))
	}

	if initial := firstLetter(title); initial != "" {
		hints = append(hints, fmt.Sprintf("The title starts with %q", initial))
	} else {
		hints = append(hints, "The title starts with a symbol")
	}

	hints = append(hints, fmt.Sprintf("The character's name is %s", c.Name.Full))
	return hints
}

// ExtraHints returns progressively unmasked forms of the primary title,
// revealed by purchased hint items
func ExtraHints(c *Character) []string {
	if c == nil {
		return nil
	}
	title := primaryTitle(c)
	if title == "" {
		return nil
	}
	return []string{MaskTitle(title, 1), MaskTitle(title, 2)}
}

// MaskTitle hides letters and digits of title. Level 1 keeps the first
// letter of each word; level 2 also keeps every other letter.
func MaskTitle(title string, level int) string {
	var b strings.Builder
	pos := 0
	for _, r := range title {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			b.WriteRune(r)
			pos = 0
			continue
		}
		switch {
		case pos == 0 && level >= 1:
			b.WriteRune(r)
		case level >= 2 && pos%2 == 0:
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
		pos++
	}
	return b.String()
}

// ToRound reduces a character to what the game economy needs
func ToRound(c *Character) game.Round {
	return game.Round{
		CharacterID: c.ID,
		Name:        c.Name.Full,
		Image:       c.Image,
		Titles:      ValidTitles(c),
		Hints:       Hints(c),
		ExtraHints:  ExtraHints(c),
	}
}

func firstLetter(s string) string {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return string(unicode.ToUpper(r))
		}
	}
	return ""
}

func formatLabel(format string) string {
	switch strings.ToUpper(format) {
	case "TV":
		return "TV series"
	case "TV_SHORT":
		return "short TV series"
	case "MOVIE":
		return "movie"
	case "OVA", "ONA":
		return strings.ToUpper(format)
	case "SPECIAL":
		return "special"
	default:
		return "anime"
	}
}

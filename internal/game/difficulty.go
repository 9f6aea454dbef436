package game

import (
	"strings"
	"time"
)

// Difficulty selects one of the fixed economy profiles
type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
	Timed  Difficulty = "timed"
)

// Profile fixes the starting economy of a difficulty
type Profile struct {
	Lives      int
	Hints      int
	Multiplier float64
	Countdown  time.Duration // zero unless timed
}

var profiles = map[Difficulty]Profile{
	Easy:   {Lives: 5, Hints: 5, Multiplier: 1},
	Medium: {Lives: 3, Hints: 4, Multiplier: 1},
	Hard:   {Lives: 2, Hints: 2, Multiplier: 1},
	Timed:  {Lives: 3, Hints: 3, Multiplier: 1.5, Countdown: 30 * time.Second},
}

// Difficulties lists the profiles in menu order
var Difficulties = []Difficulty{Easy, Medium, Hard, Timed}

// ProfileFor returns the economy profile for d, falling back to medium
func ProfileFor(d Difficulty) Profile {
	if p, ok := profiles[d]; ok {
		return p
	}
	return profiles[Medium]
}

// ParseDifficulty canonicalizes a stored or requested difficulty.
// Legacy rows carry mixed-case values ("Hard", "EASY").
func ParseDifficulty(s string) (Difficulty, bool) {
	d := Difficulty(strings.ToLower(strings.TrimSpace(s)))
	_, ok := profiles[d]
	return d, ok
}

// Valid reports whether d is one of the four profiles
func (d Difficulty) Valid() bool {
	_, ok := profiles[d]
	return ok
}

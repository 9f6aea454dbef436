package game

import (
	"github.com/shopspring/decimal"
)

const (
	hintPenalty      = 25
	extraHintPenalty = 15
	minPoints        = 10

	xpPerLevel      = 100
	suspiciousScale = 0.5
)

var basePoints = map[Difficulty]int{
	Easy:   100,
	Medium: 200,
	Hard:   300,
	Timed:  200,
}

var coinBonus = map[Difficulty]int{
	Hard:   10,
	Medium: 5,
}

// CalculatePoints returns the leaderboard points for one correct guess.
// Negative hint counts are treated as zero.
func CalculatePoints(hintsUsed int, d Difficulty, extraHintsUsed int) int {
	base, ok := basePoints[d]
	if !ok {
		base = basePoints[Medium]
	}
	deduction := max(hintsUsed, 0)*hintPenalty + max(extraHintsUsed, 0)*extraHintPenalty
	return max(minPoints, base-deduction)
}

// Rewards is the profile currency earned by a correct guess
type Rewards struct {
	XP    int `json:"xp"`
	Coins int `json:"coins"`
}

// CalculateRewards computes XP and coins for a correct guess at the given
// streak. Suspicious rounds earn half, rounded down.
func CalculateRewards(streak, hintsRevealed int, d Difficulty, suspicious bool) Rewards {
	penalty := 1.0
	if suspicious {
		penalty = suspiciousScale
	}

	xp := float64(10+min(max(streak, 0)*2, 20)) * penalty
	hintBonus := max(0, (4-max(hintsRevealed, 0))*2)
	coins := float64(5+coinBonus[d]+hintBonus) * penalty

	return Rewards{XP: int(xp), Coins: int(coins)}
}

// LevelForXP derives the profile level from lifetime XP
func LevelForXP(xp int) int {
	if xp < 0 {
		return 1
	}
	return xp/xpPerLevel + 1
}

// Accuracy returns correct/total as a percentage rounded to two decimals
func Accuracy(correct, total int) float64 {
	if total <= 0 || correct <= 0 {
		return 0
	}
	if correct > total {
		correct = total
	}
	pct := decimal.NewFromInt(int64(correct)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(total))).
		Round(2)
	f, _ := pct.Float64()
	return f
}

package game

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Phase represents where a session is in the economy state machine
type Phase string

const (
	PhaseMenu     Phase = "menu"
	PhasePlaying  Phase = "playing"
	PhaseCorrect  Phase = "correct"
	PhaseGameOver Phase = "gameover"
)

// EndReason explains why a session reached gameover
type EndReason string

const (
	EndLives   EndReason = "lives"
	EndTimeout EndReason = "timeout"
)

// Round is the character currently being guessed, reduced to what the
// economy needs. Titles are the raw valid titles.
type Round struct {
	CharacterID int
	Name        string
	Image       string
	Titles      []string
	Hints       []string
	ExtraHints  []string
}

// GuessResult describes the effect of a submitted guess
type GuessResult struct {
	Correct   bool      `json:"correct"`
	Points    int       `json:"points"`
	Rewards   Rewards   `json:"rewards"`
	LivesLeft int       `json:"livesLeft"`
	Streak    int       `json:"streak"`
	GameOver  bool      `json:"gameOver"`
	Answer    string    `json:"answer,omitempty"`
	Reason    EndReason `json:"reason,omitempty"`
}

// Summary is the final record of a session, taken before the anti-cheat
// state is cleared on gameover
type Summary struct {
	SessionID   string     `json:"sessionId"`
	PlayerID    string     `json:"playerId"`
	Difficulty  Difficulty `json:"difficulty"`
	Streak      int        `json:"streak"`
	Points      int        `json:"points"`
	Correct     int        `json:"correct"`
	Guesses     int        `json:"guesses"`
	Accuracy    float64    `json:"accuracy"`
	Suspicious  bool       `json:"suspicious"`
	TabSwitches int        `json:"tabSwitches"`
	Reason      EndReason  `json:"reason"`
	StartedAt   time.Time  `json:"startedAt"`
	EndedAt     time.Time  `json:"endedAt"`
}

// Session is one player's game: lives, hints, timer, streak and points
type Session struct {
	ID         string
	PlayerID   string
	Difficulty Difficulty
	Phase      Phase

	Lives          int
	MaxLives       int
	HintsRevealed  int
	MaxHints       int
	ExtraHintsUsed int
	ExtraHintsLeft int
	TimeLeft       int // seconds, timed mode only
	Streak         int
	Points         int
	Correct        int
	Guesses        int

	AntiCheat *AntiCheat
	StartedAt time.Time

	round     *Round
	roundID   string
	pendingID string
	summary   *Summary
	mu        sync.RWMutex
}

// NewSession creates a session in the menu phase
func NewSession(playerID string, d Difficulty, maxSwitches int) *Session {
	if !d.Valid() {
		d = Medium
	}
	s := &Session{
		ID:         uuid.New().String(),
		PlayerID:   playerID,
		Difficulty: d,
		AntiCheat:  NewAntiCheat(maxSwitches),
	}
	s.resetLocked()
	return s
}

// Start resets the session to the profile of d and prepares the first round.
// The returned round ID must accompany the fetched character.
func (s *Session) Start(d Difficulty, extraHints int) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d.Valid() {
		s.Difficulty = d
	}
	s.resetLocked()
	s.ExtraHintsLeft = max(extraHints, 0)
	s.StartedAt = time.Now()
	s.pendingID = uuid.New().String()
	return s.pendingID
}

// PrepareRound issues a new round ID for the next character fetch.
// Any response tagged with an older ID will be rejected by BeginRound.
func (s *Session) PrepareRound() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Phase == PhaseGameOver {
		return "", ErrGameOver
	}
	if s.Phase == PhaseMenu && s.StartedAt.IsZero() {
		return "", ErrNotPlaying
	}
	s.pendingID = uuid.New().String()
	return s.pendingID, nil
}

// BeginRound installs the character fetched for roundID and starts play
func (s *Session) BeginRound(roundID string, r Round) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if roundID == "" || roundID != s.pendingID {
		return ErrStaleRound
	}
	if s.Phase == PhaseGameOver {
		return ErrGameOver
	}

	rc := r
	s.round = &rc
	s.roundID = roundID
	s.pendingID = ""
	s.Phase = PhasePlaying
	s.HintsRevealed = 0
	s.ExtraHintsUsed = 0
	s.TimeLeft = int(ProfileFor(s.Difficulty).Countdown / time.Second)
	s.AntiCheat.Enable()
	return nil
}

// RoundID returns the ID of the character currently on screen
func (s *Session) RoundID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roundID
}

// Loading reports whether a character fetch is outstanding
func (s *Session) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pendingID != ""
}

func (s *Session) playableLocked() bool {
	return s.Phase == PhasePlaying && s.pendingID == "" && s.round != nil
}

// RevealHint reveals the next standard hint. It returns false when no hint
// is left or nothing is being guessed.
func (s *Session) RevealHint() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.playableLocked() || s.HintsRevealed >= s.MaxHints {
		return "", false
	}
	s.HintsRevealed++
	return hintAt(s.round.Hints, s.HintsRevealed-1), true
}

// UseExtraHint spends one purchased hint token
func (s *Session) UseExtraHint() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.playableLocked() || s.ExtraHintsLeft <= 0 || s.ExtraHintsUsed >= len(s.round.ExtraHints) {
		return "", false
	}
	s.ExtraHintsLeft--
	s.ExtraHintsUsed++
	return s.round.ExtraHints[s.ExtraHintsUsed-1], true
}

func hintAt(hints []string, i int) string {
	if i < 0 || i >= len(hints) {
		return ""
	}
	return hints[i]
}

// SubmitGuess checks a guess against the current character. The second
// return value is false when the guess was ignored.
func (s *Session) SubmitGuess(text string) (GuessResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.playableLocked() || text == "" {
		return GuessResult{}, false
	}

	s.Guesses++
	if CheckAnswer(text, s.round.Titles) {
		s.Correct++
		s.Streak++
		profile := ProfileFor(s.Difficulty)
		points := int(float64(CalculatePoints(s.HintsRevealed, s.Difficulty, s.ExtraHintsUsed)) * profile.Multiplier)
		s.Points += points
		rewards := CalculateRewards(s.Streak, s.HintsRevealed, s.Difficulty, s.AntiCheat.Suspicious)
		s.Phase = PhaseCorrect
		// switches only count while a character is on screen
		s.AntiCheat.Disable()
		return GuessResult{
			Correct:   true,
			Points:    points,
			Rewards:   rewards,
			LivesLeft: s.Lives,
			Streak:    s.Streak,
			Answer:    s.answerLocked(),
		}, true
	}

	s.Lives--
	res := GuessResult{LivesLeft: max(s.Lives, 0), Streak: s.Streak}
	if s.Lives <= 0 {
		s.Lives = 0
		s.endLocked(EndLives)
		res.GameOver = true
		res.Reason = EndLives
		res.Answer = s.answerLocked()
	}
	return res, true
}

// Skip gives up on the current character at the cost of one life
func (s *Session) Skip() (GuessResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.playableLocked() {
		return GuessResult{}, false
	}

	s.Lives--
	res := GuessResult{LivesLeft: max(s.Lives, 0), Streak: s.Streak, Answer: s.answerLocked()}
	if s.Lives <= 0 {
		s.Lives = 0
		s.endLocked(EndLives)
		res.GameOver = true
		res.Reason = EndLives
		return res, true
	}
	// the skipped character is no longer guessable
	s.round = nil
	s.AntiCheat.Disable()
	return res, true
}

// Tick decrements the countdown of a timed round. Ticks for a round that is
// no longer on screen are ignored. It returns true when time ran out.
func (s *Session) Tick(roundID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Difficulty != Timed || !s.playableLocked() || roundID != s.roundID {
		return false
	}
	if s.TimeLeft > 0 {
		s.TimeLeft--
	}
	if s.TimeLeft == 0 {
		s.endLocked(EndTimeout)
		return true
	}
	return false
}

// Hide records a tab switch away from the game
func (s *Session) Hide() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.AntiCheat.Hide()
}

// Show records the player returning to the game
func (s *Session) Show() *Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.AntiCheat.Show()
}

// DismissWarning removes an expired anti-cheat warning
func (s *Session) DismissWarning(msg string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.AntiCheat.Dismiss(msg)
}

// Reset returns to the menu with the defaults of the selected difficulty
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

func (s *Session) resetLocked() {
	profile := ProfileFor(s.Difficulty)
	s.Phase = PhaseMenu
	s.Lives = profile.Lives
	s.MaxLives = profile.Lives
	s.MaxHints = profile.Hints
	s.HintsRevealed = 0
	s.ExtraHintsUsed = 0
	s.ExtraHintsLeft = 0
	s.TimeLeft = int(profile.Countdown / time.Second)
	s.Streak = 0
	s.Points = 0
	s.Correct = 0
	s.Guesses = 0
	s.StartedAt = time.Time{}
	s.round = nil
	s.roundID = ""
	s.pendingID = ""
	s.summary = nil
	s.AntiCheat.Disable()
	s.AntiCheat.Reset()
}

func (s *Session) endLocked(reason EndReason) {
	s.Phase = PhaseGameOver
	s.pendingID = ""
	s.summary = &Summary{
		SessionID:   s.ID,
		PlayerID:    s.PlayerID,
		Difficulty:  s.Difficulty,
		Streak:      s.Streak,
		Points:      s.Points,
		Correct:     s.Correct,
		Guesses:     s.Guesses,
		Accuracy:    Accuracy(s.Correct, s.Guesses),
		Suspicious:  s.AntiCheat.Suspicious,
		TabSwitches: s.AntiCheat.Switches,
		Reason:      reason,
		StartedAt:   s.StartedAt,
		EndedAt:     time.Now(),
	}
	s.AntiCheat.Disable()
	s.AntiCheat.Reset()
}

func (s *Session) answerLocked() string {
	if s.round == nil || len(s.round.Titles) == 0 {
		return ""
	}
	return s.round.Titles[0]
}

// Summary returns the final record once the session is over
func (s *Session) Summary() (Summary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.summary == nil {
		return Summary{}, false
	}
	return *s.summary, true
}

// GetState returns the current session state for serialization
func (s *Session) GetState() *State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state := &State{
		SessionID:      s.ID,
		Difficulty:     s.Difficulty,
		Phase:          s.Phase,
		Lives:          s.Lives,
		MaxLives:       s.MaxLives,
		HintsRevealed:  s.HintsRevealed,
		MaxHints:       s.MaxHints,
		ExtraHintsUsed: s.ExtraHintsUsed,
		ExtraHintsLeft: s.ExtraHintsLeft,
		TimeLeft:       s.TimeLeft,
		Streak:         s.Streak,
		Points:         s.Points,
		Suspicious:     s.AntiCheat.Suspicious,
		TabSwitches:    s.AntiCheat.Switches,
		Warnings:       append([]string(nil), s.AntiCheat.Warnings...),
		RoundID:        s.roundID,
		Loading:        s.pendingID != "",
	}
	if s.round != nil {
		state.Image = s.round.Image
		for i := 0; i < s.HintsRevealed; i++ {
			state.Hints = append(state.Hints, hintAt(s.round.Hints, i))
		}
		for i := 0; i < s.ExtraHintsUsed && i < len(s.round.ExtraHints); i++ {
			state.Hints = append(state.Hints, s.round.ExtraHints[i])
		}
		if s.Phase == PhaseCorrect || s.Phase == PhaseGameOver {
			state.Answer = s.answerLocked()
			state.CharacterName = s.round.Name
		}
	}
	if s.summary != nil {
		state.Accuracy = s.summary.Accuracy
	} else {
		state.Accuracy = Accuracy(s.Correct, s.Guesses)
	}
	return state
}

// State represents the serializable session state
type State struct {
	SessionID      string     `json:"sessionId"`
	Difficulty     Difficulty `json:"difficulty"`
	Phase          Phase      `json:"phase"`
	Lives          int        `json:"lives"`
	MaxLives       int        `json:"maxLives"`
	HintsRevealed  int        `json:"hintsRevealed"`
	MaxHints       int        `json:"maxHints"`
	ExtraHintsUsed int        `json:"extraHintsUsed"`
	ExtraHintsLeft int        `json:"extraHintsLeft"`
	TimeLeft       int        `json:"timeLeft,omitempty"`
	Streak         int        `json:"streak"`
	Points         int        `json:"points"`
	Accuracy       float64    `json:"accuracy"`
	Suspicious     bool       `json:"suspicious"`
	TabSwitches    int        `json:"tabSwitches"`
	Warnings       []string   `json:"warnings,omitempty"`
	RoundID        string     `json:"roundId,omitempty"`
	Loading        bool       `json:"loading"`
	Image          string     `json:"image,omitempty"`
	Hints          []string   `json:"hints,omitempty"`
	Answer         string     `json:"answer,omitempty"`
	CharacterName  string     `json:"characterName,omitempty"`
}

// Errors
var (
	ErrStaleRound = &GameError{"round is no longer current"}
	ErrNotPlaying = &GameError{"game is not in progress"}
	ErrGameOver   = &GameError{"game is over"}
)

type GameError struct {
	msg string
}

func (e *GameError) Error() string {
	return e.msg
}

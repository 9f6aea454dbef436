package sessions

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/anime-guess/internal/character"
	"github.com/anime-guess/internal/game"
	"github.com/anime-guess/internal/leaderboard"
	"github.com/anime-guess/internal/storage"
)

const (
	// CorrectDelay is how long the answer stays on screen after a correct guess
	CorrectDelay = 2 * time.Second
	// TickInterval is the countdown resolution of timed rounds
	TickInterval = time.Second

	fetchTimeout = 15 * time.Second
)

// CharacterSource fetches the next character to guess
type CharacterSource interface {
	FetchCharacter(ctx context.Context) (*character.Character, error)
}

// ProfileStore persists per-guess rewards and hint tokens
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*storage.User, error)
	ApplyRewards(ctx context.Context, userID string, p storage.Progress) (*storage.User, error)
	ConsumeHintToken(ctx context.Context, userID string) (int, error)
}

// Submitter records finished games on the leaderboard
type Submitter interface {
	Submit(ctx context.Context, sub leaderboard.Submission) (*storage.LeaderboardEntry, error)
}

// Events publishes gameplay analytics
type Events interface {
	EmitRoundStart(sessionID, playerID string, d game.Difficulty, characterID int, first bool)
	EmitGuess(sessionID, playerID string, res game.GuessResult, skipped bool)
	EmitHint(sessionID, playerID string, extra bool)
	EmitSuspicious(sessionID, playerID string, tabSwitches int)
	EmitGameOver(summary game.Summary)
}

// UpdateKind tells subscribers what changed
type UpdateKind string

const (
	UpdateState    UpdateKind = "state"
	UpdateNotice   UpdateKind = "notice"
	UpdateResult   UpdateKind = "result"
	UpdateGameOver UpdateKind = "gameOver"
	UpdateError    UpdateKind = "error"
)

// Update is delivered to subscribers whenever a player's session changes
type Update struct {
	PlayerID string
	Kind     UpdateKind
	State    *game.State
	Notice   *game.Notice
	Result   *game.GuessResult
	Summary  *game.Summary
	Rewards  *storage.User
	Error    string
}

// Options tunes a Manager
type Options struct {
	MaxSwitches  int
	CorrectDelay time.Duration
	TickInterval time.Duration
}

// live is one player's session plus the timers driving it. gen changes on
// every start, reset and removal so callbacks from older timers give up.
type live struct {
	session   *game.Session
	countdown *game.Countdown
	advance   *time.Timer
	dismiss   []*time.Timer
	gen       uint64
	mu        sync.Mutex
}

// Manager owns the live session of every connected player and drives the
// parts of the game that happen on timers or network responses
type Manager struct {
	sessions    map[string]*live
	characters  CharacterSource
	profiles    ProfileStore
	board       Submitter
	events      Events
	opts        Options
	subscribers []func(Update)
	wg          sync.WaitGroup
	closed      bool // set by Shutdown; guarded by mu like wg.Add
	mu          sync.RWMutex
}

// NewManager creates a session manager. board and events may be nil.
func NewManager(characters CharacterSource, profiles ProfileStore, board Submitter, events Events, opts Options) *Manager {
	if opts.CorrectDelay <= 0 {
		opts.CorrectDelay = CorrectDelay
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = TickInterval
	}
	return &Manager{
		sessions:   make(map[string]*live),
		characters: characters,
		profiles:   profiles,
		board:      board,
		events:     events,
		opts:       opts,
	}
}

// OnUpdate registers a subscriber. Subscribers must not block.
func (m *Manager) OnUpdate(fn func(Update)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers = append(m.subscribers, fn)
}

func (m *Manager) notify(u Update) {
	m.mu.RLock()
	subs := m.subscribers
	m.mu.RUnlock()
	for _, fn := range subs {
		fn(u)
	}
}

func (m *Manager) notifyState(playerID string, l *live) {
	m.notify(Update{PlayerID: playerID, Kind: UpdateState, State: l.session.GetState()})
}

func (m *Manager) get(playerID string) *live {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[playerID]
}

func (m *Manager) getOrCreate(playerID string, d game.Difficulty) *live {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.sessions[playerID]
	if !ok {
		l = &live{session: game.NewSession(playerID, d, m.opts.MaxSwitches)}
		m.sessions[playerID] = l
	}
	return l
}

// Session returns a snapshot of a player's session
func (m *Manager) Session(playerID string) (*game.State, bool) {
	l := m.get(playerID)
	if l == nil {
		return nil, false
	}
	return l.session.GetState(), true
}

// ActiveCount returns the number of players with a session
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// stopTimersLocked cancels everything scheduled for the session
func (l *live) stopTimersLocked() {
	l.countdown.Stop()
	l.countdown = nil
	if l.advance != nil {
		l.advance.Stop()
		l.advance = nil
	}
	for _, t := range l.dismiss {
		t.Stop()
	}
	l.dismiss = nil
}

// Start begins a new game at the given difficulty, replacing any game the
// player already has
func (m *Manager) Start(ctx context.Context, playerID, difficulty string) error {
	d, ok := game.ParseDifficulty(difficulty)
	if !ok {
		return errors.New("unknown difficulty")
	}

	tokens := 0
	if profile, err := m.profiles.GetProfile(ctx, playerID); err == nil {
		tokens = profile.HintTokens
	} else if !errors.Is(err, storage.ErrNotFound) {
		log.Warn().Err(err).Str("player", playerID).Msg("profile unavailable, starting without hint tokens")
	}

	l := m.getOrCreate(playerID, d)
	l.mu.Lock()
	l.stopTimersLocked()
	l.gen++
	gen := l.gen
	roundID := l.session.Start(d, tokens)
	l.mu.Unlock()

	log.Info().Str("player", playerID).Str("difficulty", string(d)).Msg("Game started")
	m.notifyState(playerID, l)
	m.fetchRound(playerID, l, gen, roundID, true)
	return nil
}

// Retry refetches the character after a failed fetch
func (m *Manager) Retry(playerID string) {
	l := m.get(playerID)
	if l == nil || !l.session.Loading() {
		return
	}
	m.nextRound(playerID, l, m.generation(l))
}

func (m *Manager) generation(l *live) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.gen
}

// nextRound issues a new round ID and fetches its character
func (m *Manager) nextRound(playerID string, l *live, gen uint64) {
	if m.generation(l) != gen {
		return
	}
	roundID, err := l.session.PrepareRound()
	if err != nil {
		log.Debug().Err(err).Str("player", playerID).Msg("no next round")
		return
	}
	m.notifyState(playerID, l)
	m.fetchRound(playerID, l, gen, roundID, false)
}

// fetchRound loads a character in the background. A response for a round
// that is no longer pending is discarded by the session.
func (m *Manager) fetchRound(playerID string, l *live, gen uint64, roundID string, first bool) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		log.Debug().Str("player", playerID).Msg("manager shut down, fetch skipped")
		return
	}
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()

		ch, err := m.characters.FetchCharacter(ctx)
		if err != nil {
			log.Error().Err(err).Str("player", playerID).Msg("character fetch failed")
			m.notify(Update{PlayerID: playerID, Kind: UpdateError, Error: "Could not load a character. Try again."})
			return
		}

		l.mu.Lock()
		if l.gen != gen {
			l.mu.Unlock()
			log.Debug().Str("player", playerID).Msg("discarding character for an abandoned game")
			return
		}
		if err := l.session.BeginRound(roundID, character.ToRound(ch)); err != nil {
			l.mu.Unlock()
			log.Debug().Err(err).Str("player", playerID).Msg("discarding stale character")
			return
		}
		st := l.session.GetState()
		if st.Difficulty == game.Timed {
			l.countdown.Stop()
			l.countdown = game.StartCountdown(m.opts.TickInterval, func() bool {
				return m.tick(playerID, l, gen, roundID)
			})
		}
		l.mu.Unlock()

		if m.events != nil {
			m.events.EmitRoundStart(st.SessionID, playerID, st.Difficulty, ch.ID, first)
		}
		m.notify(Update{PlayerID: playerID, Kind: UpdateState, State: st})
	}()
}

// tick runs once per interval while a timed round is on screen
func (m *Manager) tick(playerID string, l *live, gen uint64, roundID string) bool {
	if m.generation(l) != gen {
		return false
	}
	expired := l.session.Tick(roundID)
	if l.session.RoundID() != roundID {
		return false
	}
	m.notifyState(playerID, l)
	if expired {
		m.finish(playerID, l)
		return false
	}
	return l.session.GetState().Phase == game.PhasePlaying
}

// Guess submits an answer for the current character
func (m *Manager) Guess(ctx context.Context, playerID, text string) {
	l := m.get(playerID)
	if l == nil {
		return
	}
	res, ok := l.session.SubmitGuess(text)
	if !ok {
		return
	}

	if m.events != nil {
		m.events.EmitGuess(l.session.ID, playerID, res, false)
	}

	progress := storage.Progress{Guesses: 1}
	if res.Correct {
		progress = storage.Progress{XP: res.Rewards.XP, Coins: res.Rewards.Coins, Correct: 1, Guesses: 1}
	}
	profile, err := m.profiles.ApplyRewards(ctx, playerID, progress)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		log.Error().Err(err).Str("player", playerID).Msg("could not save rewards")
	}

	m.notify(Update{PlayerID: playerID, Kind: UpdateResult, Result: &res, Rewards: profile})
	m.notifyState(playerID, l)

	switch {
	case res.Correct:
		l.mu.Lock()
		l.countdown.Stop()
		l.countdown = nil
		gen := l.gen
		l.advance = time.AfterFunc(m.opts.CorrectDelay, func() {
			m.nextRound(playerID, l, gen)
		})
		l.mu.Unlock()
	case res.GameOver:
		m.finish(playerID, l)
	}
}

// Hint reveals the next standard hint
func (m *Manager) Hint(playerID string) {
	l := m.get(playerID)
	if l == nil {
		return
	}
	if _, ok := l.session.RevealHint(); !ok {
		return
	}
	if m.events != nil {
		m.events.EmitHint(l.session.ID, playerID, false)
	}
	m.notifyState(playerID, l)
}

// ExtraHint spends one of the player's purchased hint tokens
func (m *Manager) ExtraHint(ctx context.Context, playerID string) {
	l := m.get(playerID)
	if l == nil {
		return
	}
	if _, ok := l.session.UseExtraHint(); !ok {
		return
	}
	if _, err := m.profiles.ConsumeHintToken(ctx, playerID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		log.Warn().Err(err).Str("player", playerID).Msg("hint token not consumed")
	}
	if m.events != nil {
		m.events.EmitHint(l.session.ID, playerID, true)
	}
	m.notifyState(playerID, l)
}

// Skip gives up on the current character for one life
func (m *Manager) Skip(playerID string) {
	l := m.get(playerID)
	if l == nil {
		return
	}
	res, ok := l.session.Skip()
	if !ok {
		return
	}

	l.mu.Lock()
	l.countdown.Stop()
	l.countdown = nil
	gen := l.gen
	l.mu.Unlock()

	if m.events != nil {
		m.events.EmitGuess(l.session.ID, playerID, res, true)
	}
	m.notify(Update{PlayerID: playerID, Kind: UpdateResult, Result: &res})

	if res.GameOver {
		m.notifyState(playerID, l)
		m.finish(playerID, l)
		return
	}
	m.nextRound(playerID, l, gen)
}

// Visibility records the page being hidden or shown again
func (m *Manager) Visibility(playerID string, hidden bool) {
	l := m.get(playerID)
	if l == nil {
		return
	}
	if hidden {
		l.session.Hide()
		return
	}

	notice := l.session.Show()
	if notice == nil {
		return
	}
	m.notify(Update{PlayerID: playerID, Kind: UpdateNotice, Notice: notice})

	switch notice.Kind {
	case game.NoticeSuspicious:
		st := l.session.GetState()
		log.Warn().Str("player", playerID).Int("tabSwitches", st.TabSwitches).Msg("Round flagged as suspicious")
		if m.events != nil {
			m.events.EmitSuspicious(l.session.ID, playerID, st.TabSwitches)
		}
	case game.NoticeWarning:
		l.mu.Lock()
		gen := l.gen
		msg := notice.Message
		l.dismiss = append(l.dismiss, time.AfterFunc(notice.TTL, func() {
			if m.generation(l) != gen {
				return
			}
			if l.session.DismissWarning(msg) {
				m.notifyState(playerID, l)
			}
		}))
		l.mu.Unlock()
	}
	m.notifyState(playerID, l)
}

// Reset returns the player to the menu
func (m *Manager) Reset(playerID string) {
	l := m.get(playerID)
	if l == nil {
		return
	}
	l.mu.Lock()
	l.stopTimersLocked()
	l.gen++
	l.session.Reset()
	l.mu.Unlock()
	m.notifyState(playerID, l)
}

// Remove drops a player's session, typically on disconnect
func (m *Manager) Remove(playerID string) {
	m.mu.Lock()
	l, ok := m.sessions[playerID]
	delete(m.sessions, playerID)
	m.mu.Unlock()
	if !ok {
		return
	}

	l.mu.Lock()
	l.stopTimersLocked()
	l.gen++
	l.mu.Unlock()
}

// finish reports a finished game and submits it to the leaderboard
func (m *Manager) finish(playerID string, l *live) {
	l.mu.Lock()
	l.countdown.Stop()
	l.countdown = nil
	l.mu.Unlock()

	summary, ok := l.session.Summary()
	if !ok {
		return
	}

	log.Info().
		Str("player", playerID).
		Int("streak", summary.Streak).
		Int("points", summary.Points).
		Str("reason", string(summary.Reason)).
		Msg("Game over")

	if m.events != nil {
		m.events.EmitGameOver(summary)
	}
	m.notify(Update{PlayerID: playerID, Kind: UpdateGameOver, Summary: &summary, State: l.session.GetState()})

	if m.board == nil || (summary.Streak == 0 && summary.Points == 0) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()
	_, err := m.board.Submit(ctx, leaderboard.Submission{
		SubmissionID: summary.SessionID + "/" + summary.StartedAt.UTC().Format(time.RFC3339Nano),
		UserID:       playerID,
		Streak:       summary.Streak,
		Points:       summary.Points,
		Difficulty:   string(summary.Difficulty),
		Accuracy:     summary.Accuracy,
		Suspicious:   summary.Suspicious,
		TabSwitches:  summary.TabSwitches,
		PlayedAt:     summary.EndedAt,
	})
	if err != nil && !errors.Is(err, storage.ErrConflict) {
		log.Error().Err(err).Str("player", playerID).Msg("leaderboard submission failed")
	}
}

// Shutdown stops every timer and waits for outstanding fetches
func (m *Manager) Shutdown() {
	m.mu.Lock()
	m.closed = true
	all := m.sessions
	m.sessions = make(map[string]*live)
	m.mu.Unlock()

	for _, l := range all {
		l.mu.Lock()
		l.stopTimersLocked()
		l.gen++
		l.mu.Unlock()
	}
	m.wg.Wait()
}

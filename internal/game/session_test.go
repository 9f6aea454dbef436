package game

import "testing"

func testRound() Round {
	return Round{
		CharacterID: 40,
		Name:        "Lelouch Lamperouge",
		Titles:      []string{"Code Geass: Hangyaku no Lelouch", "Code Geass: Lelouch of the Rebellion"},
		Hints:       []string{"hint one", "hint two", "hint three", "hint four", "hint five"},
		ExtraHints:  []string{"C___ G____", "Co__ Ge___"},
	}
}

func startedSession(t *testing.T, d Difficulty) *Session {
	t.Helper()
	s := NewSession("player-1", d, DefaultMaxSwitches)
	roundID := s.Start(d, 1)
	if err := s.BeginRound(roundID, testRound()); err != nil {
		t.Fatalf("begin round: %v", err)
	}
	return s
}

func TestSessionMediumRoundScoring(t *testing.T) {
	s := startedSession(t, Medium)

	if s.Lives != 3 || s.MaxHints != 4 {
		t.Fatalf("medium profile: lives=%d hints=%d", s.Lives, s.MaxHints)
	}

	if _, ok := s.RevealHint(); !ok {
		t.Fatal("expected hint to be revealed")
	}

	res, ok := s.SubmitGuess("code geass hangyaku no lelouch")
	if !ok || !res.Correct {
		t.Fatalf("expected correct guess, got %+v ok=%v", res, ok)
	}
	if res.Points != 175 {
		t.Fatalf("expected 175 points, got %d", res.Points)
	}
	if s.Phase != PhaseCorrect || s.Streak != 1 || s.Points != 175 {
		t.Fatalf("unexpected state after correct guess: phase=%s streak=%d points=%d", s.Phase, s.Streak, s.Points)
	}
}

func TestSessionTimedMultiplier(t *testing.T) {
	s := startedSession(t, Timed)
	res, _ := s.SubmitGuess("Code Geass: Lelouch of the Rebellion")
	if res.Points != 300 {
		t.Fatalf("expected 200 * 1.5 = 300 points, got %d", res.Points)
	}
}

func TestSessionHintLimit(t *testing.T) {
	s := startedSession(t, Hard)

	for i := 0; i < 2; i++ {
		if _, ok := s.RevealHint(); !ok {
			t.Fatalf("hint %d should be allowed", i+1)
		}
	}
	if _, ok := s.RevealHint(); ok {
		t.Fatal("hint beyond the limit must be ignored")
	}
	if s.HintsRevealed != 2 {
		t.Fatalf("expected 2 hints revealed, got %d", s.HintsRevealed)
	}
}

func TestSessionExtraHints(t *testing.T) {
	s := startedSession(t, Medium)

	hint, ok := s.UseExtraHint()
	if !ok || hint != "C___ G____" {
		t.Fatalf("expected first extra hint, got %q ok=%v", hint, ok)
	}
	if _, ok := s.UseExtraHint(); ok {
		t.Fatal("no purchased hints left, expected no-op")
	}

	res, _ := s.SubmitGuess("Code Geass: Hangyaku no Lelouch")
	if res.Points != 185 {
		t.Fatalf("expected 200 - 15 = 185 points, got %d", res.Points)
	}
}

func TestSessionWrongGuessesEndGame(t *testing.T) {
	s := startedSession(t, Hard)

	res, _ := s.SubmitGuess("naruto")
	if res.Correct || res.LivesLeft != 1 || res.GameOver {
		t.Fatalf("unexpected result after first miss: %+v", res)
	}
	res, _ = s.SubmitGuess("bleach")
	if !res.GameOver || res.Reason != EndLives {
		t.Fatalf("expected gameover, got %+v", res)
	}
	if s.Phase != PhaseGameOver {
		t.Fatalf("expected gameover phase, got %s", s.Phase)
	}

	if _, ok := s.SubmitGuess("code geass"); ok {
		t.Fatal("guess after gameover must be ignored")
	}
	sum, ok := s.Summary()
	if !ok || sum.Guesses != 2 || sum.Accuracy != 0 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
}

func TestSessionStaleRoundRejected(t *testing.T) {
	s := NewSession("player-1", Easy, DefaultMaxSwitches)
	first := s.Start(Easy, 0)

	// the player restarts before the first fetch returns
	s.Reset()
	second := s.Start(Easy, 0)

	if err := s.BeginRound(first, testRound()); err != ErrStaleRound {
		t.Fatalf("expected stale round error, got %v", err)
	}
	if s.Phase != PhaseMenu {
		t.Fatalf("stale response changed phase to %s", s.Phase)
	}
	if err := s.BeginRound(second, testRound()); err != nil {
		t.Fatalf("current round rejected: %v", err)
	}
}

func TestSessionSkipWhileLoading(t *testing.T) {
	s := startedSession(t, Easy)

	res, ok := s.Skip()
	if !ok || res.LivesLeft != 4 {
		t.Fatalf("unexpected skip result: %+v ok=%v", res, ok)
	}
	pending, err := s.PrepareRound()
	if err != nil {
		t.Fatalf("prepare round: %v", err)
	}

	// nothing on screen while the next character loads
	if _, ok := s.Skip(); ok {
		t.Fatal("skip while loading must be ignored")
	}
	if _, ok := s.SubmitGuess("code geass"); ok {
		t.Fatal("guess while loading must be ignored")
	}

	newer, _ := s.PrepareRound()
	if err := s.BeginRound(pending, testRound()); err != ErrStaleRound {
		t.Fatalf("older fetch must be discarded, got %v", err)
	}
	if err := s.BeginRound(newer, testRound()); err != nil {
		t.Fatalf("newest fetch rejected: %v", err)
	}
}

func TestSessionTimerExpires(t *testing.T) {
	s := startedSession(t, Timed)
	roundID := s.RoundID()

	if s.TimeLeft != 30 {
		t.Fatalf("expected 30s countdown, got %d", s.TimeLeft)
	}
	for i := 0; i < 29; i++ {
		if s.Tick(roundID) {
			t.Fatalf("timer expired early at tick %d", i+1)
		}
	}
	if s.Tick("some-other-round") {
		t.Fatal("tick for another round must be ignored")
	}
	if !s.Tick(roundID) {
		t.Fatal("expected expiry on the 30th tick")
	}
	sum, _ := s.Summary()
	if s.Phase != PhaseGameOver || sum.Reason != EndTimeout {
		t.Fatalf("expected timeout gameover, phase=%s reason=%s", s.Phase, sum.Reason)
	}
	if s.Tick(roundID) {
		t.Fatal("tick after gameover must be ignored")
	}
}

func TestSessionTickIgnoredOutsideTimedMode(t *testing.T) {
	s := startedSession(t, Medium)
	if s.Tick(s.RoundID()) || s.TimeLeft != 0 {
		t.Fatal("medium sessions have no countdown")
	}
}

func TestSessionSuspiciousHalvesRewards(t *testing.T) {
	s := startedSession(t, Easy)
	for i := 0; i < DefaultMaxSwitches; i++ {
		s.Hide()
		s.Show()
	}

	res, _ := s.SubmitGuess("code geass hangyaku no lelouch")
	if res.Rewards != (Rewards{XP: 6, Coins: 6}) {
		t.Fatalf("expected halved rewards, got %+v", res.Rewards)
	}
	// raw points are not penalized
	if res.Points != 100 {
		t.Fatalf("expected 100 points, got %d", res.Points)
	}
}

func TestSessionGameOverKeepsAntiCheatInSummary(t *testing.T) {
	s := startedSession(t, Hard)
	for i := 0; i < 3; i++ {
		s.Hide()
		s.Show()
	}
	s.SubmitGuess("x y z")
	s.SubmitGuess("x y z")

	sum, ok := s.Summary()
	if !ok || !sum.Suspicious || sum.TabSwitches != 3 {
		t.Fatalf("summary lost anti-cheat data: %+v", sum)
	}
	if s.AntiCheat.Suspicious || s.AntiCheat.Switches != 0 {
		t.Fatal("anti-cheat should reset on gameover")
	}
}

func TestSessionReset(t *testing.T) {
	s := startedSession(t, Medium)
	s.RevealHint()
	s.SubmitGuess("Code Geass: Hangyaku no Lelouch")

	s.Reset()
	st := s.GetState()
	if st.Phase != PhaseMenu || st.Lives != 3 || st.Streak != 0 || st.Points != 0 || st.HintsRevealed != 0 {
		t.Fatalf("reset did not restore defaults: %+v", st)
	}
	if _, err := s.PrepareRound(); err != ErrNotPlaying {
		t.Fatalf("expected ErrNotPlaying from menu, got %v", err)
	}
}

func TestSessionStateHidesAnswerWhilePlaying(t *testing.T) {
	s := startedSession(t, Easy)
	s.RevealHint()

	st := s.GetState()
	if st.Answer != "" || st.CharacterName != "" {
		t.Fatalf("answer leaked while playing: %+v", st)
	}
	if len(st.Hints) != 1 || st.Hints[0] != "hint one" {
		t.Fatalf("expected revealed hint in state, got %v", st.Hints)
	}

	s.SubmitGuess("Code Geass: Lelouch of the Rebellion")
	st = s.GetState()
	if st.Answer == "" || st.CharacterName != "Lelouch Lamperouge" {
		t.Fatalf("answer should be shown after a correct guess: %+v", st)
	}
}

func TestSessionTabSwitchesOnlyCountWhilePlaying(t *testing.T) {
	s := startedSession(t, Medium)
	if _, ok := s.SubmitGuess("code geass hangyaku no lelouch"); !ok || s.Phase != PhaseCorrect {
		t.Fatalf("expected correct phase, got %s", s.Phase)
	}

	for i := 0; i < DefaultMaxSwitches; i++ {
		s.Hide()
		if n := s.Show(); n != nil {
			t.Fatalf("no notice expected during the correct pause, got %+v", n)
		}
	}
	if s.AntiCheat.Switches != 0 || s.AntiCheat.Suspicious {
		t.Fatalf("correct pause: switches=%d suspicious=%v", s.AntiCheat.Switches, s.AntiCheat.Suspicious)
	}

	// still paused while the next character loads
	next, err := s.PrepareRound()
	if err != nil {
		t.Fatalf("prepare round: %v", err)
	}
	s.Hide()
	s.Show()
	if s.AntiCheat.Switches != 0 {
		t.Fatalf("switch counted while loading: %d", s.AntiCheat.Switches)
	}

	if err := s.BeginRound(next, testRound()); err != nil {
		t.Fatalf("begin round: %v", err)
	}
	s.Hide()
	s.Show()
	if s.AntiCheat.Switches != 1 {
		t.Fatalf("switch during play not counted: %d", s.AntiCheat.Switches)
	}
}

func TestSessionSkipPausesAntiCheat(t *testing.T) {
	s := startedSession(t, Easy)
	if _, ok := s.Skip(); !ok {
		t.Fatal("skip ignored")
	}
	s.Hide()
	s.Show()
	if s.AntiCheat.Switches != 0 {
		t.Fatalf("switch counted after skip: %d", s.AntiCheat.Switches)
	}
}

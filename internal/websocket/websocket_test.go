package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/anime-guess/internal/auth"
	"github.com/anime-guess/internal/character"
	"github.com/anime-guess/internal/game"
	"github.com/anime-guess/internal/sessions"
	"github.com/anime-guess/internal/storage"
)

type staticSource struct{}

func (staticSource) FetchCharacter(ctx context.Context) (*character.Character, error) {
	return &character.Character{
		ID:          1,
		Name:        character.Name{Full: "Edward Elric"},
		Image:       "https://img.example/ed.png",
		Appearances: []character.Appearance{{ID: 5114, Romaji: "Hagane no Renkinjutsushi", English: "Fullmetal Alchemist"}},
	}, nil
}

type testServer struct {
	srv    *httptest.Server
	tokens *auth.Tokens
	hub    *Hub
	m      *sessions.Manager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := storage.NewMemoryStore()
	if err := store.CreateUser(context.Background(), &storage.User{ID: "u1", Username: "ed"}); err != nil {
		t.Fatal(err)
	}

	m := sessions.NewManager(staticSource{}, store, nil, nil, sessions.Options{CorrectDelay: time.Hour})
	hub := NewHub(m)
	search := func(ctx context.Context, q string) ([]character.TitleCandidate, error) {
		return []character.TitleCandidate{
			{ID: 1, Romaji: "Gintama"},
			{ID: 2, Romaji: "Hagane no Renkinjutsushi", English: "Fullmetal Alchemist"},
		}, nil
	}
	handler := NewHandler(hub, m, search)
	tokens := auth.NewTokens("test-secret")

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, handler, tokens, w, r)
	}))
	t.Cleanup(func() {
		srv.Close()
		cancel()
		m.Shutdown()
	})
	return &testServer{srv: srv, tokens: tokens, hub: hub, m: m}
}

func (s *testServer) dial(t *testing.T, userID, username string) *websocket.Conn {
	t.Helper()
	token, err := s.tokens.Generate(userID, username)
	if err != nil {
		t.Fatal(err)
	}
	url := "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads messages until match returns true
func readUntil(t *testing.T, conn *websocket.Conn, match func(Message) bool) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		if match(msg) {
			return msg
		}
	}
}

func TestServeWsRejectsMissingToken(t *testing.T) {
	s := newTestServer(t)
	url := "ws" + strings.TrimPrefix(s.srv.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", resp)
	}
}

func TestGameOverWebsocket(t *testing.T) {
	s := newTestServer(t)
	conn := s.dial(t, "u1", "ed")

	if err := conn.WriteJSON(IncomingMessage{Type: TypeStart, Difficulty: "hard"}); err != nil {
		t.Fatal(err)
	}
	msg := readUntil(t, conn, func(m Message) bool {
		return m.Type == TypeState && m.State != nil && m.State.Phase == game.PhasePlaying && !m.State.Loading
	})
	if msg.State.Image == "" || msg.State.Lives != 2 {
		t.Fatalf("unexpected state: %+v", msg.State)
	}

	conn.WriteJSON(IncomingMessage{Type: TypeGuess, Guess: "fullmetal alchemist"})
	msg = readUntil(t, conn, func(m Message) bool { return m.Type == TypeResult })
	if !msg.Result.Correct || msg.Result.Answer != "Hagane no Renkinjutsushi" {
		t.Fatalf("expected a correct result: %+v", msg.Result)
	}
	if msg.Profile == nil || msg.Profile.CorrectGuesses != 1 {
		t.Fatalf("result should carry the updated profile: %+v", msg.Profile)
	}
}

func TestUnknownMessageType(t *testing.T) {
	s := newTestServer(t)
	conn := s.dial(t, "u1", "ed")

	conn.WriteJSON(map[string]string{"type": "move"})
	msg := readUntil(t, conn, func(m Message) bool { return m.Type == TypeError })
	if msg.Message != "Unknown message type" {
		t.Fatalf("unexpected error: %q", msg.Message)
	}

	conn.WriteMessage(websocket.TextMessage, []byte("{"))
	msg = readUntil(t, conn, func(m Message) bool { return m.Type == TypeError })
	if msg.Message != "Invalid message format" {
		t.Fatalf("unexpected error: %q", msg.Message)
	}
}

func TestSearchSuggestions(t *testing.T) {
	s := newTestServer(t)
	conn := s.dial(t, "u1", "ed")

	conn.WriteJSON(IncomingMessage{Type: TypeSearch, Query: "fullmetal alchemist"})
	msg := readUntil(t, conn, func(m Message) bool { return m.Type == TypeSuggestions })
	if msg.Query != "fullmetal alchemist" || len(msg.Suggestions) != 2 {
		t.Fatalf("unexpected suggestions: %+v", msg)
	}
	if msg.Suggestions[0].ID != 2 {
		t.Fatalf("closest title should come first: %+v", msg.Suggestions)
	}
}

func TestDisconnectRemovesSession(t *testing.T) {
	s := newTestServer(t)
	conn := s.dial(t, "u1", "ed")

	conn.WriteJSON(IncomingMessage{Type: TypeStart, Difficulty: "easy"})
	readUntil(t, conn, func(m Message) bool { return m.Type == TypeState })
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := s.m.Session("u1"); !ok && s.hub.ConnectedCount() == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("session should be removed after disconnect")
}

func TestSecondConnectionTakesOver(t *testing.T) {
	s := newTestServer(t)
	first := s.dial(t, "u1", "ed")
	deadline := time.Now().Add(2 * time.Second)
	for s.hub.GetClient("u1") == nil && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	second := s.dial(t, "u1", "ed")

	msg := readUntil(t, first, func(m Message) bool { return m.Type == TypeError })
	if !strings.Contains(msg.Message, "another window") {
		t.Fatalf("unexpected message: %q", msg.Message)
	}

	second.WriteJSON(IncomingMessage{Type: TypeStart, Difficulty: "medium"})
	readUntil(t, second, func(m Message) bool { return m.Type == TypeState })
	if s.hub.ConnectedCount() != 1 {
		t.Fatalf("expected one connection, got %d", s.hub.ConnectedCount())
	}
}

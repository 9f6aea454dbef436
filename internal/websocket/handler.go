package websocket

import (
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/anime-guess/internal/character"
	"github.com/anime-guess/internal/game"
	"github.com/anime-guess/internal/sessions"
	"github.com/anime-guess/internal/storage"
)

// Message types
const (
	TypeStart      = "start"
	TypeGuess      = "guess"
	TypeHint       = "hint"
	TypeExtraHint  = "extraHint"
	TypeSkip       = "skip"
	TypeVisibility = "visibility"
	TypeReset      = "reset"
	TypeRetry      = "retry"
	TypeSearch     = "search"

	TypeState       = "state"
	TypeNotice      = "notice"
	TypeResult      = "result"
	TypeSuggestions = "suggestions"
	TypeGameOver    = "gameOver"
	TypeError       = "error"
)

// Message represents a message sent to the client
type Message struct {
	Type        string                     `json:"type"`
	State       *game.State                `json:"state,omitempty"`
	Notice      *game.Notice               `json:"notice,omitempty"`
	Result      *game.GuessResult          `json:"result,omitempty"`
	Summary     *game.Summary              `json:"summary,omitempty"`
	Profile     *storage.User              `json:"profile,omitempty"`
	Query       string                     `json:"query,omitempty"`
	Suggestions []character.TitleCandidate `json:"suggestions,omitempty"`
	Message     string                     `json:"message,omitempty"`
}

// IncomingMessage represents a message from the client
type IncomingMessage struct {
	Type       string `json:"type"`
	Difficulty string `json:"difficulty,omitempty"`
	Guess      string `json:"guess,omitempty"`
	Hidden     bool   `json:"hidden,omitempty"`
	Query      string `json:"query,omitempty"`
}

// Handler processes WebSocket messages
type Handler struct {
	hub      *Hub
	sessions *sessions.Manager
	search   character.SearchFunc
}

// NewHandler creates a new message handler. search may be nil, which
// disables title suggestions.
func NewHandler(hub *Hub, sm *sessions.Manager, search character.SearchFunc) *Handler {
	return &Handler{
		hub:      hub,
		sessions: sm,
		search:   search,
	}
}

// HandleMessage processes an incoming message
func (h *Handler) HandleMessage(client *Client, data []byte) {
	var msg IncomingMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Debug().Err(err).Str("player", client.playerID).Msg("Error parsing message")
		client.sendMessage(Message{Type: TypeError, Message: "Invalid message format"})
		return
	}

	switch msg.Type {
	case TypeStart:
		if err := h.sessions.Start(client.ctx, client.playerID, msg.Difficulty); err != nil {
			client.sendMessage(Message{Type: TypeError, Message: err.Error()})
		}
	case TypeGuess:
		h.sessions.Guess(client.ctx, client.playerID, msg.Guess)
	case TypeHint:
		h.sessions.Hint(client.playerID)
	case TypeExtraHint:
		h.sessions.ExtraHint(client.ctx, client.playerID)
	case TypeSkip:
		h.sessions.Skip(client.playerID)
	case TypeVisibility:
		h.sessions.Visibility(client.playerID, msg.Hidden)
	case TypeReset:
		h.sessions.Reset(client.playerID)
	case TypeRetry:
		h.sessions.Retry(client.playerID)
	case TypeSearch:
		h.handleSearch(client, msg.Query)
	default:
		client.sendMessage(Message{Type: TypeError, Message: "Unknown message type"})
	}
}

// handleSearch runs a typeahead lookup off the read loop. Results of a
// query overtaken by a newer one are dropped.
func (h *Handler) handleSearch(client *Client, query string) {
	if client.typeahead == nil {
		client.sendMessage(Message{Type: TypeSuggestions, Query: query})
		return
	}

	go func() {
		results, err := client.typeahead.Search(client.ctx, query)
		switch {
		case errors.Is(err, character.ErrSuperseded):
			return
		case err != nil:
			if client.ctx.Err() == nil {
				client.sendMessage(Message{Type: TypeError, Message: "Title search is unavailable"})
			}
			return
		}
		client.sendMessage(Message{
			Type:        TypeSuggestions,
			Query:       query,
			Suggestions: character.RankCandidates(query, results),
		})
	}()
}

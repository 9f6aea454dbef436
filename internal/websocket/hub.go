package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/anime-guess/internal/sessions"
)

// Hub maintains the set of connected players and routes session updates
// to their connections
type Hub struct {
	// Registered clients by player ID
	clients map[string]*Client

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Closed when Run returns
	done chan struct{}

	sessions *sessions.Manager

	mu sync.RWMutex
}

// NewHub creates a new Hub and subscribes it to the session manager
func NewHub(sm *sessions.Manager) *Hub {
	h := &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		sessions:   sm,
	}
	sm.OnUpdate(h.deliver)
	return h
}

// Run starts the hub's main loop
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			previous := h.clients[client.playerID]
			h.clients[client.playerID] = client
			h.mu.Unlock()
			if previous != nil {
				// a second tab takes over the session
				previous.sendMessage(Message{Type: TypeError, Message: "Connected from another window"})
				previous.close()
			}
			log.Info().Str("player", client.playerID).Str("username", client.username).Msg("Client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			current := h.clients[client.playerID] == client
			if current {
				delete(h.clients, client.playerID)
			}
			h.mu.Unlock()
			client.close()

			if current {
				h.sessions.Remove(client.playerID)
			}
			log.Info().Str("player", client.playerID).Bool("current", current).Msg("Client unregistered")
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]*Client)
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

// deliver turns a session update into a message for the player's connection
func (h *Hub) deliver(u sessions.Update) {
	msg := Message{Type: string(u.Kind)}
	switch u.Kind {
	case sessions.UpdateState:
		msg.State = u.State
	case sessions.UpdateNotice:
		msg.Notice = u.Notice
	case sessions.UpdateResult:
		msg.Result = u.Result
		msg.Profile = u.Rewards
	case sessions.UpdateGameOver:
		msg.State = u.State
		msg.Summary = u.Summary
	case sessions.UpdateError:
		msg.Message = u.Error
	}
	h.SendToClient(u.PlayerID, msg)
}

// SendToClient sends a message to a specific player
func (h *Hub) SendToClient(playerID string, msg Message) {
	h.mu.RLock()
	client, ok := h.clients[playerID]
	h.mu.RUnlock()

	if !ok {
		return
	}

	client.sendMessage(msg)
}

// GetClient returns a client by player ID
func (h *Hub) GetClient(playerID string) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clients[playerID]
}

// ConnectedCount returns the number of connected players
func (h *Hub) ConnectedCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func encode(msg Message) ([]byte, bool) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("type", msg.Type).Msg("Error marshaling message")
		return nil, false
	}
	return data, true
}

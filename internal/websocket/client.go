package websocket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/anime-guess/internal/auth"
	"github.com/anime-guess/internal/character"
	"github.com/anime-guess/internal/middleware"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// origins are enforced by the CORS layer and the access token
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Client is one authenticated player connection
type Client struct {
	hub      *Hub
	handler  *Handler
	conn     *websocket.Conn
	send     chan []byte
	playerID string
	username string

	typeahead *character.Typeahead
	ctx       context.Context
	cancel    context.CancelFunc

	closed bool
	mu     sync.Mutex
}

// ServeWs authenticates the request and upgrades it to a player connection
func ServeWs(hub *Hub, handler *Handler, tokens *auth.Tokens, w http.ResponseWriter, r *http.Request) {
	token := middleware.BearerToken(r)
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	claims, err := tokens.Validate(token)
	if err != nil {
		http.Error(w, "invalid or expired token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	client := &Client{
		hub:      hub,
		handler:  handler,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		playerID: claims.UserID,
		username: claims.Username,
		ctx:      ctx,
		cancel:   cancel,
	}
	if handler.search != nil {
		client.typeahead = character.NewTypeahead(handler.search)
	}

	select {
	case hub.register <- client:
	case <-hub.done:
		cancel()
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()

	// resume whatever the player had on screen
	if st, ok := hub.sessions.Session(client.playerID); ok {
		client.sendMessage(Message{Type: TypeState, State: st})
	}
}

// sendMessage queues a message without blocking. A client that cannot
// keep up loses messages.
func (c *Client) sendMessage(msg Message) {
	data, ok := encode(msg)
	if !ok {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		log.Warn().Str("player", c.playerID).Str("type", msg.Type).Msg("send buffer full, dropping message")
	}
}

// close stops the client's pumps. It is idempotent.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	c.cancel()
	if c.typeahead != nil {
		c.typeahead.Close()
	}
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
			c.close()
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("player", c.playerID).Msg("websocket closed unexpectedly")
			}
			return
		}
		c.handler.HandleMessage(c, data)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

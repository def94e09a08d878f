package websocket

import (
	"context"
	"errors"
	"html"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog/log"

	"github.com/wricardo/mcp-training/relaychat/chat/protocol"
)

const maxNameLength = 24

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Strips every tag; chat text is plain.
var textPolicy = bluemonday.StrictPolicy()

// Client is a connection held by the hub.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	// username is empty until the client registers. Only Run touches it.
	username string
}

type clientFrame struct {
	client *Client
	raw    []byte
}

// Hub maintains the set of active clients and relays frames between them.
type Hub struct {
	clients map[*Client]bool

	// Inbound frames from clients
	inbound chan clientFrame

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	done chan struct{}

	mu     sync.RWMutex
	roster []string
}

// NewHub creates a new relay hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		inbound:    make(chan clientFrame),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		roster:     []string{},
	}
}

// Run starts the hub's event loop. It returns when ctx ends, after closing
// every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			log.Debug().Int("clients", len(h.clients)).Msg("[relay] client connected")

		case client := <-h.unregister:
			h.unregisterClient(client)

		case f := <-h.inbound:
			h.handleFrame(f.client, f.raw)

		case <-ctx.Done():
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			log.Info().Msg("[relay] hub stopped")
			return
		}
	}
}

// Users returns the usernames currently registered, sorted.
func (h *Hub) Users() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	users := make([]string, len(h.roster))
	copy(users, h.roster)
	return users
}

// ServeWS upgrades the request and attaches the connection to the hub.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("[relay] websocket upgrade failed")
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (h *Hub) handleFrame(client *Client, raw []byte) {
	if !h.clients[client] {
		return
	}

	out, err := protocol.DecodeClient(raw)
	if err != nil {
		log.Debug().Err(err).Str("user", client.username).Msg("[relay] dropping frame")
		return
	}

	switch f := out.(type) {
	case protocol.Register:
		if client.username != "" {
			log.Debug().Str("user", client.username).Msg("[relay] ignoring repeated register")
			return
		}
		client.username = SanitizeName(f.Username)
		log.Info().Str("user", client.username).Msg("[relay] registered")
		h.broadcastRoster()

	case protocol.ChatSend:
		if client.username == "" {
			log.Debug().Msg("[relay] message from unregistered client")
			return
		}
		body := SanitizeText(f.Body)
		if body == "" {
			return
		}
		frame, err := protocol.EncodeDeliver(protocol.Delivery{From: client.username, Message: body})
		if err != nil {
			log.Error().Err(err).Msg("[relay] encode delivery")
			return
		}
		h.broadcast([]byte(frame))
	}
}

// unregisterClient removes a client and announces the new roster if it had
// registered.
func (h *Hub) unregisterClient(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)

	log.Debug().Str("user", client.username).Int("clients", len(h.clients)).Msg("[relay] client disconnected")
	if client.username != "" {
		h.broadcastRoster()
	}
}

func (h *Hub) broadcastRoster() {
	users := make([]string, 0, len(h.clients))
	for client := range h.clients {
		if client.username != "" {
			users = append(users, client.username)
		}
	}
	sort.Strings(users)

	h.mu.Lock()
	h.roster = users
	h.mu.Unlock()

	frame, err := protocol.EncodeUsers(users)
	if err != nil {
		log.Error().Err(err).Msg("[relay] encode roster")
		return
	}
	h.broadcast([]byte(frame))
}

// broadcast queues a frame for every registered client. Clients that cannot
// keep up are dropped.
func (h *Hub) broadcast(frame []byte) {
	var slow []*Client
	for client := range h.clients {
		if client.username == "" {
			continue
		}
		select {
		case client.send <- frame:
		default:
			slow = append(slow, client)
		}
	}
	for _, client := range slow {
		log.Warn().Str("user", client.username).Msg("[relay] dropping slow client")
		h.unregisterClient(client)
	}
}

// SanitizeName strips markup from a username, trims it to 24 characters and
// falls back to "anon".
func SanitizeName(name string) string {
	clean := strings.TrimSpace(SanitizeText(name))
	if utf8.RuneCountInString(clean) > maxNameLength {
		clean = string([]rune(clean)[:maxNameLength])
	}
	if clean == "" {
		return "anon"
	}
	return clean
}

// SanitizeText strips markup from chat text and trims surrounding space.
func SanitizeText(text string) string {
	clean := textPolicy.Sanitize(text)
	return strings.TrimSpace(html.UnescapeString(clean))
}

// readPump pumps frames from the connection to the hub.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Msg("[relay] websocket error")
			}
			return
		}

		select {
		case c.hub.inbound <- clientFrame{client: c, raw: payload}:
		case <-c.hub.done:
			return
		}
	}
}

// writePump pumps frames from the hub to the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					log.Debug().Err(err).Msg("[relay] write failed")
				}
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

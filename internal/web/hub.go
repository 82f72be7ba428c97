package web

import (
	"context"
	"encoding/json"
	log "log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"kashi/internal/assistant"
)

const writeWait = 10 * time.Second

// Frame is what websocket clients receive for every orchestrator event.
type Frame struct {
	Kind   assistant.EventKind `json:"kind"`
	UserID string              `json:"user_id,omitempty"`
	Text   string              `json:"text,omitempty"`
	Images []string            `json:"images,omitempty"`
}

type client struct {
	conn   *websocket.Conn
	userID string
	send   chan []byte
}

// Hub fans events out to connected websocket clients. Every client follows
// exactly one user; a client that names none follows the local user.
type Hub struct {
	upgrader  websocket.Upgrader
	localUser string

	mu      sync.RWMutex
	clients map[*client]struct{}
	wg      sync.WaitGroup
}

// NewHub builds a hub. With an empty localUser, clients must pass user_id.
func NewHub(localUser string) *Hub {
	return &Hub{
		localUser: localUser,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// Handle implements render.Sink.
func (h *Hub) Handle(_ context.Context, ev assistant.Event) error {
	if ev.Kind == assistant.EventSpeak {
		return nil
	}
	data, err := json.Marshal(Frame{
		Kind:   ev.Kind,
		UserID: ev.Session.UserID,
		Text:   ev.Text,
		Images: ev.Images,
	})
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.userID != ev.Session.UserID {
			continue
		}
		select {
		case c.send <- data:
		default:
		}
	}
	return nil
}

func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = h.localUser
	}
	if userID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("Failed to upgrade", "err", err)
		return
	}

	c := &client{
		conn:   conn,
		userID: userID,
		send:   make(chan []byte, 64),
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	log.Debug("Websocket connected", "user", c.userID, "clients", h.Clients())

	h.wg.Add(1)
	go h.writePump(c)
	h.readPump(c)
}

// readPump only watches for the client going away.
func (h *Hub) readPump(c *client) {
	defer h.drop(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	defer h.wg.Done()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
	c.conn.Close()
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	c.conn.Close()
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	h.wg.Wait()
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ashureev/socratic-tutor/internal/identity"
	"github.com/coder/websocket"
)

const wsWriteTimeout = 10 * time.Second

// wsMessage is a client frame.
type wsMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Content   string `json:"content,omitempty"`
}

// wsEvent is a server frame.
type wsEvent struct {
	Type      string    `json:"type"`
	SessionID string    `json:"session_id,omitempty"`
	Turn      *TurnView `json:"turn,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// wsConn serializes writes to one connection.
type wsConn struct {
	id   int64
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) writeJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), wsWriteTimeout)
	defer cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Write(ctx, websocket.MessageText, data)
}

// Hub tracks live chat connections per user so replies reach every open tab.
type Hub struct {
	mu     sync.RWMutex
	active map[string]map[int64]*wsConn
	nextID atomic.Int64
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{active: make(map[string]map[int64]*wsConn)}
}

func (h *Hub) register(userID string, conn *websocket.Conn) *wsConn {
	c := &wsConn{id: h.nextID.Add(1), conn: conn}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.active[userID]; !ok {
		h.active[userID] = make(map[int64]*wsConn)
	}
	h.active[userID][c.id] = c
	slog.Info("Chat connection registered", "user_id", userID, "conn_id", c.id)
	return c
}

func (h *Hub) unregister(userID string, c *wsConn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conns, ok := h.active[userID]; ok {
		if _, exists := conns[c.id]; exists {
			delete(conns, c.id)
			if len(conns) == 0 {
				delete(h.active, userID)
			}
			slog.Info("Chat connection unregistered", "user_id", userID, "conn_id", c.id)
		}
	}
}

// Count returns the number of live connections for a user.
func (h *Hub) Count(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.active[userID])
}

// Broadcast sends v to every connection of the user. Failures are logged.
func (h *Hub) Broadcast(userID string, v interface{}) {
	h.mu.RLock()
	conns := make([]*wsConn, 0, len(h.active[userID]))
	for _, c := range h.active[userID] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		if err := c.writeJSON(v); err != nil {
			slog.Debug("Failed to broadcast to chat connection", "user_id", userID, "conn_id", c.id, "error", err)
		}
	}
}

// CloseUser forcefully closes all connections for a user, e.g. on sign-out.
func (h *Hub) CloseUser(userID string) {
	h.mu.Lock()
	conns, ok := h.active[userID]
	delete(h.active, userID)
	h.mu.Unlock()
	if !ok {
		return
	}

	for id, c := range conns {
		_ = c.conn.Close(websocket.StatusPolicyViolation, "signed out")
		slog.Info("Chat connection closed", "user_id", userID, "conn_id", id)
	}
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := strings.TrimRight(r.Header.Get("Origin"), "/")
	if origin == "" {
		return true
	}
	for _, allowed := range h.origins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.origins)
	return false
}

// ServeWS upgrades to a WebSocket carrying chat turns for server-held sessions.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	slog.Info("WebSocket connection request", "user_id", userID, "ip", r.RemoteAddr)

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	ws.SetReadLimit(h.maxBody)
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()

	conn := h.hub.register(userID, ws)
	defer h.hub.unregister(userID, conn)

	h.readLoop(r.Context(), conn, userID)
}

// readLoop handles frames until the connection closes. Turns run on their own
// goroutines so pings are answered while a model call is pending; the loop
// waits for them before returning.
func (h *Handler) readLoop(ctx context.Context, conn *wsConn, userID string) {
	var turns sync.WaitGroup
	defer turns.Wait()

	// A dropped tab does not abort its turn: the reply still reaches the
	// user's other tabs. Deleting the session cancels it.
	turnCtx := context.WithoutCancel(ctx)

	for {
		_, data, err := conn.conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || errors.Is(err, context.Canceled) {
				slog.Debug("WebSocket closed", "user_id", userID)
			} else {
				slog.Warn("WebSocket read error", "error", err, "user_id", userID)
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.reply(conn, wsEvent{Type: "error", Error: "invalid message"})
			continue
		}

		switch msg.Type {
		case "ping":
			h.reply(conn, wsEvent{Type: "pong"})
		case "turn":
			turns.Add(1)
			go func() {
				defer turns.Done()
				h.wsTurn(turnCtx, conn, userID, msg)
			}()
		default:
			h.reply(conn, wsEvent{Type: "error", Error: "unknown message type"})
		}
	}
}

// wsTurn runs a turn; the reply reaches this connection through the hub broadcast.
func (h *Handler) wsTurn(ctx context.Context, conn *wsConn, userID string, msg wsMessage) {
	content := strings.TrimSpace(msg.Content)
	if msg.SessionID == "" || content == "" {
		h.reply(conn, wsEvent{Type: "error", SessionID: msg.SessionID, Error: "Message and session are required"})
		return
	}
	if h.limiter != nil && !h.limiter.Allow(userID) {
		h.reply(conn, wsEvent{Type: "error", SessionID: msg.SessionID, Error: "Too many requests, please slow down."})
		return
	}

	if _, err := h.runTurn(ctx, userID, msg.SessionID, content); err != nil {
		_, text := storeErrorMessage(err)
		h.reply(conn, wsEvent{Type: "error", SessionID: msg.SessionID, Error: text})
	}
}

func (h *Handler) reply(conn *wsConn, ev wsEvent) {
	if err := conn.writeJSON(ev); err != nil {
		slog.Debug("Failed to write WebSocket frame", "conn_id", conn.id, "error", err)
	}
}

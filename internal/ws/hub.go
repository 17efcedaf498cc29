package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"clubhouse/internal/domain"
)

const writeWait = 10 * time.Second

// client is one websocket connection. gorilla/websocket allows a single
// concurrent writer, so writes go through mu.
type client struct {
	conn *websocket.Conn
	role domain.Role
	mu   sync.Mutex
}

func (c *client) send(payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(payload)
}

// Hub manages active WebSocket connections keyed by user ID and pushes
// events to them. It implements service.Notifier.
type Hub struct {
	mu    sync.RWMutex
	conns map[int64]map[*client]struct{}
	log   *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		conns: make(map[int64]map[*client]struct{}),
		log:   log,
	}
}

func (h *Hub) register(userID int64, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.conns[userID] == nil {
		h.conns[userID] = make(map[*client]struct{})
	}
	h.conns[userID][c] = struct{}{}
}

func (h *Hub) unregister(userID int64, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conns, ok := h.conns[userID]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.conns, userID)
		}
	}
}

// Online reports whether the user has at least one open connection.
func (h *Hub) Online(userID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID]) > 0
}

// NotifyUsers sends the event to every connection of the given users.
// Connections that fail are closed; their read loop unregisters them.
func (h *Hub) NotifyUsers(userIDs []int64, event any) {
	for _, c := range h.clients(func(uid int64, _ *client) bool {
		for _, id := range userIDs {
			if id == uid {
				return true
			}
		}
		return false
	}) {
		h.deliver(c, event)
	}
}

// NotifyScope sends the event to every connection whose user may read the
// broadcast scope.
func (h *Hub) NotifyScope(scope domain.GroupScope, event any) {
	for _, c := range h.clients(func(_ int64, c *client) bool {
		return scope.CanRead(c.role)
	}) {
		h.deliver(c, event)
	}
}

func (h *Hub) clients(match func(int64, *client) bool) []*client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []*client
	for uid, conns := range h.conns {
		for c := range conns {
			if match(uid, c) {
				out = append(out, c)
			}
		}
	}
	return out
}

func (h *Hub) deliver(c *client, event any) {
	if err := c.send(event); err != nil {
		h.log.Debug("ws write failed", zap.Error(err))
		c.conn.Close()
	}
}

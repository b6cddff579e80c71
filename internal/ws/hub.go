package ws

import (
	"sync"

	"go.uber.org/zap"
)

// Hub tracks connected clients and their room memberships. Every client
// is always in its own user room; conversation rooms are joined and left
// explicitly.
type Hub struct {
	mu            sync.RWMutex
	clientsByConv map[string]map[string]*Client
	clientsByUser map[string]map[string]*Client
	log           *zap.SugaredLogger
}

func NewHub(log *zap.SugaredLogger) *Hub {
	return &Hub{
		clientsByConv: make(map[string]map[string]*Client),
		clientsByUser: make(map[string]map[string]*Client),
		log:           log,
	}
}

func (h *Hub) AddClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clientsByUser[c.UserID]; !ok {
		h.clientsByUser[c.UserID] = make(map[string]*Client)
	}
	h.clientsByUser[c.UserID][c.ID] = c
}

// RemoveClient detaches the client from every room and reports whether it
// was the user's last connection.
func (h *Hub) RemoveClient(c *Client) (last bool) {
	rooms := c.roomList()

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, room := range rooms {
		if conns, ok := h.clientsByConv[room]; ok {
			delete(conns, c.ID)
			if len(conns) == 0 {
				delete(h.clientsByConv, room)
			}
		}
	}
	if conns, ok := h.clientsByUser[c.UserID]; ok {
		delete(conns, c.ID)
		if len(conns) == 0 {
			delete(h.clientsByUser, c.UserID)
			last = true
		}
	}
	return last
}

func (h *Hub) JoinConversation(c *Client, conversationID string) {
	h.mu.Lock()
	if _, ok := h.clientsByConv[conversationID]; !ok {
		h.clientsByConv[conversationID] = make(map[string]*Client)
	}
	h.clientsByConv[conversationID][c.ID] = c
	h.mu.Unlock()
	c.joinRoom(conversationID)
}

func (h *Hub) LeaveConversation(c *Client, conversationID string) {
	h.mu.Lock()
	if conns, ok := h.clientsByConv[conversationID]; ok {
		delete(conns, c.ID)
		if len(conns) == 0 {
			delete(h.clientsByConv, conversationID)
		}
	}
	h.mu.Unlock()
	c.leaveRoom(conversationID)
}

// BroadcastToConversation delivers to every socket currently joined to
// the conversation room, optionally skipping one user (the sender).
func (h *Hub) BroadcastToConversation(conversationID string, ev Envelope, skipUserID string) {
	h.mu.RLock()
	conns := h.clientsByConv[conversationID]
	targets := make([]*Client, 0, len(conns))
	for _, c := range conns {
		if skipUserID != "" && c.UserID == skipUserID {
			continue
		}
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if !c.Enqueue(ev) {
			h.log.Warnw("dropping event for slow client", "event", ev.Type, "userId", c.UserID)
		}
	}
}

// SendToUser delivers to every socket the user currently holds.
func (h *Hub) SendToUser(userID string, ev Envelope) {
	h.mu.RLock()
	conns := h.clientsByUser[userID]
	targets := make([]*Client, 0, len(conns))
	for _, c := range conns {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if !c.Enqueue(ev) {
			h.log.Warnw("dropping event for slow client", "event", ev.Type, "userId", userID)
		}
	}
}

// BroadcastAll delivers to every connected socket.
func (h *Hub) BroadcastAll(ev Envelope) {
	h.mu.RLock()
	targets := make([]*Client, 0)
	for _, conns := range h.clientsByUser {
		for _, c := range conns {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		_ = c.Enqueue(ev)
	}
}

// OnlineUserIDs lists users with at least one open socket.
func (h *Hub) OnlineUserIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.clientsByUser))
	for uid := range h.clientsByUser {
		out = append(out, uid)
	}
	return out
}

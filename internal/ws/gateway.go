package ws

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/tdnguyen-dev/echochat/internal/auth"
	"github.com/tdnguyen-dev/echochat/internal/presence"
	"github.com/tdnguyen-dev/echochat/internal/service"
)

// presenceStore is the slice of the presence store the gateway drives.
type presenceStore interface {
	Connect(ctx context.Context, userID, connID string) error
	Disconnect(ctx context.Context, userID, connID string) error
	Touch(ctx context.Context, userID string) error
	IsOnline(ctx context.Context, userID string) (bool, error)
}

// Gateway owns the socket lifecycle: authentication, presence, room
// membership, and inbound event dispatch.
type Gateway struct {
	hub      *Hub
	jv       *auth.JWTValidator
	presence presenceStore
	msgs     *service.MessageService
	log      *zap.SugaredLogger
}

func NewGateway(hub *Hub, jv *auth.JWTValidator, pres presenceStore, msgs *service.MessageService, log *zap.SugaredLogger) *Gateway {
	return &Gateway{hub: hub, jv: jv, presence: pres, msgs: msgs, log: log}
}

// Handle authenticates the connection and runs it until close. Tokens
// come in the query string because browser websocket clients cannot set
// headers.
func (g *Gateway) Handle() func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		token := conn.Query("token")
		if token == "" {
			_ = conn.Close()
			return
		}
		userID, err := g.jv.Validate(token)
		if err != nil {
			g.log.Warnw("ws auth rejected", "error", err)
			_ = conn.Close()
			return
		}

		c := newClient(uuid.NewString(), userID, conn)
		g.hub.AddClient(c)
		go c.writePump()

		ctx := context.Background()
		if err := g.presence.Connect(ctx, userID, c.ID); err != nil {
			g.log.Warnw("presence connect", "userId", userID, "error", err)
		}

		g.log.Infow("ws connected", "userId", userID, "connId", c.ID)

		c.Enqueue(Envelope{
			Type:    EvAuthConnected,
			Payload: connectedPayload{UserID: userID, ConnectedAt: time.Now().UTC()},
		})
		c.Enqueue(Envelope{
			Type:    EvUsersOnlineList,
			Payload: onlineListPayload{UserIDs: g.hub.OnlineUserIDs()},
		})
		g.hub.BroadcastAll(Envelope{
			Type:    EvUserOnline,
			Payload: presencePayload{UserID: userID, Status: presence.StatusOnline, LastSeen: time.Now().UTC()},
		})

		g.readLoop(c)

		last := g.hub.RemoveClient(c)
		c.close()
		if err := g.presence.Disconnect(ctx, userID, c.ID); err != nil {
			g.log.Warnw("presence disconnect", "userId", userID, "error", err)
		}
		if last {
			g.announceOffline(ctx, userID)
		}
		g.log.Infow("ws disconnected", "userId", userID, "connId", c.ID)
	}
}

// announceOffline broadcasts user:offline, but only when the presence
// store agrees the user has no connection left on any instance. The
// hub's own bookkeeping only sees this process.
func (g *Gateway) announceOffline(ctx context.Context, userID string) {
	online, err := g.presence.IsOnline(ctx, userID)
	if err != nil {
		g.log.Warnw("presence online check", "userId", userID, "error", err)
	}
	if online {
		return
	}
	g.hub.BroadcastAll(Envelope{
		Type:    EvUserOffline,
		Payload: presencePayload{UserID: userID, Status: presence.StatusRecently, LastSeen: time.Now().UTC()},
	})
}

func (g *Gateway) readLoop(c *Client) {
	c.conn.SetReadLimit(readLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(readDeadline))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(readDeadline))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(readDeadline))

		g.handleFrame(c, data)
	}
}

// handleFrame dispatches one inbound frame and refreshes the sender's
// last-seen stamp, both under the same live deadline. The touch is what
// keeps an engaged user inside the push-suppression window.
func (g *Gateway) handleFrame(c *Client, data []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	g.dispatchEvent(ctx, c, data)

	if err := g.presence.Touch(ctx, c.UserID); err != nil {
		g.log.Debugw("presence touch", "userId", c.UserID, "error", err)
	}
}

type rawEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func (g *Gateway) dispatchEvent(ctx context.Context, c *Client, data []byte) {
	var raw rawEnvelope
	if err := json.Unmarshal(data, &raw); err != nil {
		// invalid frames are ignored, not fatal
		return
	}

	switch raw.Type {
	case EvConversationJoin:
		g.handleJoin(ctx, c, raw.Payload)
	case EvConversationLeave:
		g.handleLeave(c, raw.Payload)
	default:
		c.Enqueue(Envelope{
			Type:    EvError,
			Payload: errorPayload{Event: raw.Type, Message: "unknown event"},
		})
	}
}

// handleJoin verifies membership before placing the socket in the room,
// then resets the member's unread counter.
func (g *Gateway) handleJoin(ctx context.Context, c *Client, payload json.RawMessage) {
	var p joinPayload
	if err := json.Unmarshal(payload, &p); err != nil || p.ConversationID == "" {
		c.Enqueue(Envelope{
			Type:    EvError,
			Payload: errorPayload{Event: EvConversationJoin, Message: "conversationId required"},
		})
		return
	}
	convID, err := primitive.ObjectIDFromHex(p.ConversationID)
	if err != nil {
		c.Enqueue(Envelope{
			Type:    EvError,
			Payload: errorPayload{Event: EvConversationJoin, Message: "invalid conversationId"},
		})
		return
	}
	userID, err := primitive.ObjectIDFromHex(c.UserID)
	if err != nil {
		return
	}

	if err := g.msgs.MarkConversationOpened(ctx, convID, userID); err != nil {
		if errors.Is(err, service.ErrNotAMember) {
			c.Enqueue(Envelope{
				Type:    EvError,
				Payload: errorPayload{Event: EvConversationJoin, Message: "not a member of this conversation"},
			})
		} else {
			g.log.Errorw("mark conversation opened", "conversationId", p.ConversationID, "userId", c.UserID, "error", err)
		}
		return
	}

	g.hub.JoinConversation(c, p.ConversationID)
	g.hub.SendToUser(c.UserID, Envelope{
		Type:    EvConversationsUpdated,
		Payload: conversationsUpdatedPayload{Timestamp: time.Now().UTC()},
	})
}

func (g *Gateway) handleLeave(c *Client, payload json.RawMessage) {
	var p joinPayload
	if err := json.Unmarshal(payload, &p); err != nil || p.ConversationID == "" {
		return
	}
	// leaving a room you are not in is a no-op
	g.hub.LeaveConversation(c, p.ConversationID)
}

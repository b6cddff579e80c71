package ws

import (
	"time"

	"github.com/tdnguyen-dev/echochat/internal/models"
)

// Envelope is the single frame shape in both directions.
type Envelope struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// Client-to-server event types.
const (
	EvConversationJoin  = "conversation:join"
	EvConversationLeave = "conversation:leave"
)

// Server-to-client event types.
const (
	EvAuthConnected        = "auth:connected"
	EvMessageNew           = "message:new"
	EvMessageReaction      = "message:reaction"
	EvConversationsUpdated = "conversations:updated"
	EvNewNotification      = "new_notification"
	EvNotificationsUnread  = "notifications:unread"
	EvUserOnline           = "user:online"
	EvUserOffline          = "user:offline"
	EvUsersOnlineList      = "users:online:list"
	EvError                = "error"
)

type joinPayload struct {
	ConversationID string `json:"conversationId"`
}

type connectedPayload struct {
	UserID      string    `json:"userId"`
	ConnectedAt time.Time `json:"connectedAt"`
}

type newMessagePayload struct {
	ConversationID string          `json:"conversationId"`
	SenderID       string          `json:"senderId"`
	Message        *models.Message `json:"message"`
}

type conversationsUpdatedPayload struct {
	Timestamp time.Time `json:"timestamp"`
}

type newNotificationPayload struct {
	Notification *models.Notification `json:"notification"`
}

type unreadCountPayload struct {
	Count int64 `json:"count"`
}

type presencePayload struct {
	UserID   string    `json:"userId"`
	Status   string    `json:"status"`
	LastSeen time.Time `json:"lastSeen"`
}

type onlineListPayload struct {
	UserIDs []string `json:"userIds"`
}

type errorPayload struct {
	Event   string `json:"event,omitempty"`
	Message string `json:"message"`
}

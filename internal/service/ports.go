package service

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tdnguyen-dev/echochat/internal/models"
	"github.com/tdnguyen-dev/echochat/internal/push"
)

// Narrow collaborator interfaces supplied at construction. The messaging
// core never reaches into sibling modules directly.

// RelationshipOracle answers whether two users block each other (either
// direction).
type RelationshipOracle interface {
	IsBlocked(ctx context.Context, a, b primitive.ObjectID) (bool, error)
}

// ReactionEvent is the delta broadcast after a reaction change; it
// carries the full updated reaction list so clients need no merge logic.
type ReactionEvent struct {
	ConversationID string              `json:"conversationId"`
	MessageID      string              `json:"messageId"`
	UserID         string              `json:"userId"`
	Type           *models.ReactionType `json:"type"`
	Action         string              `json:"action"` // "added" | "removed"
	Reactions      []models.Reaction   `json:"reactions"`
	Timestamp      time.Time           `json:"timestamp"`
}

// Broadcaster delivers realtime events to currently connected sockets.
// All methods are fire-and-forget, at-most-once; durability lives in the
// stores, not here.
type Broadcaster interface {
	EmitNewMessage(conversationID string, message *models.Message, senderID string)
	EmitReactionUpdated(conversationID string, ev ReactionEvent)
	EmitConversationListUpdated(userID string)
	EmitNewNotification(userID string, n *models.Notification)
	EmitUnreadCountUpdate(userID string, count int64)
}

// PresenceStore is the slice of presence the dispatcher needs.
type PresenceStore interface {
	ActiveWithin(ctx context.Context, userID string, d time.Duration) (bool, error)
}

// PushSender is the external push provider capability.
type PushSender = push.Sender

// EventPublisher feeds the downstream message stream; optional.
type EventPublisher interface {
	PublishMessageSent(ctx context.Context, m *models.Message) error
}

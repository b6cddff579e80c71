package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tdnguyen-dev/echochat/internal/models"
)

// Lookup methods return (nil, nil) when the document is absent; only
// infrastructure failures surface as errors.

type ConversationRepository interface {
	Insert(ctx context.Context, c *models.Conversation) error
	FindActive(ctx context.Context, id primitive.ObjectID) (*models.Conversation, error)
	FindActiveByIDs(ctx context.Context, ids []primitive.ObjectID, typ models.ConversationType) ([]*models.Conversation, error)
	FindActivePrivateByPairKey(ctx context.Context, pairKey string) (*models.Conversation, error)
	SearchIDs(ctx context.Context, search string, typ models.ConversationType) ([]primitive.ObjectID, error)
	SetLastMessage(ctx context.Context, id primitive.ObjectID, lm models.LastMessage) error
	UpdateOtherUser(ctx context.Context, id, otherUserID primitive.ObjectID, name, avatar string) error
}

type MemberRepository interface {
	InsertMany(ctx context.Context, members []*models.ConversationMember) error
	Find(ctx context.Context, conversationID, userID primitive.ObjectID) (*models.ConversationMember, error)
	FindOther(ctx context.Context, conversationID, userID primitive.ObjectID) (*models.ConversationMember, error)
	ListByConversation(ctx context.Context, conversationID primitive.ObjectID) ([]*models.ConversationMember, error)
	ListOthers(ctx context.Context, conversationIDs []primitive.ObjectID, excludeUserID primitive.ObjectID) ([]*models.ConversationMember, error)
	ListByUser(ctx context.Context, userID primitive.ObjectID, conversationIDs []primitive.ObjectID, page, limit int64) ([]*models.ConversationMember, int64, error)
	IncrementUnreadExcept(ctx context.Context, conversationID, senderID primitive.ObjectID) error
	ResetUnread(ctx context.Context, conversationID, userID primitive.ObjectID) error
	UpdateSettings(ctx context.Context, conversationID, userID primitive.ObjectID, update models.MemberSettingsUpdate) (*models.ConversationMember, error)
}

type MessageRepository interface {
	Insert(ctx context.Context, m *models.Message) error
	FindInConversation(ctx context.Context, id, conversationID primitive.ObjectID) (*models.Message, error)
	List(ctx context.Context, conversationID primitive.ObjectID, page, limit int64) ([]*models.Message, int64, error)
	ListBySender(ctx context.Context, conversationID, senderID primitive.ObjectID, page, limit int64) ([]*models.Message, int64, error)
	SetReactions(ctx context.Context, id primitive.ObjectID, reactions []models.Reaction) error
}

type NotificationRepository interface {
	Insert(ctx context.Context, n *models.Notification) error
	List(ctx context.Context, userID primitive.ObjectID, page, limit int64, read *bool, typ string) ([]*models.Notification, int64, error)
	CountUnread(ctx context.Context, userID primitive.ObjectID) (int64, error)
	MarkRead(ctx context.Context, id, userID primitive.ObjectID) (*models.Notification, error)
	MarkAllRead(ctx context.Context, userID primitive.ObjectID) (int64, error)
	Delete(ctx context.Context, id, userID primitive.ObjectID) error
	DeleteAllRead(ctx context.Context, userID primitive.ObjectID) (int64, error)
}

type PushTokenRepository interface {
	Upsert(ctx context.Context, t *models.PushToken) (*models.PushToken, error)
	ListActive(ctx context.Context, userID primitive.ObjectID) ([]*models.PushToken, error)
	Deactivate(ctx context.Context, id primitive.ObjectID) error
	DeactivateByToken(ctx context.Context, token string, userID primitive.ObjectID) error
}

type UserRepository interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]*models.User, error)
}

// TxnRunner applies a group of related mutations as one logical unit. The
// mongo implementation wraps fn in a multi-document transaction and falls
// back to plain sequential execution on deployments without transaction
// support.
type TxnRunner interface {
	Run(ctx context.Context, fn func(ctx context.Context) error) error
}

package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type MemberRole string

const (
	RoleAdmin  MemberRole = "ADMIN"
	RoleMember MemberRole = "MEMBER"
)

// ConversationMember is one user's per-conversation settings and state.
// (conversationId, userId) is unique.
type ConversationMember struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ConversationID primitive.ObjectID `bson:"conversationId" json:"conversationId"`
	UserID         primitive.ObjectID `bson:"userId" json:"userId"`

	Nickname         string     `bson:"nickname,omitempty" json:"nickname,omitempty"`
	CustomBackground string     `bson:"customBackground,omitempty" json:"customBackground,omitempty"`
	Role             MemberRole `bson:"role" json:"role"`

	// local ignore of this conversation, distinct from the global block
	IsConversationBlocked bool `bson:"isConversationBlocked" json:"isConversationBlocked"`
	IsMuted               bool `bson:"isMuted" json:"isMuted"`
	IsPinned              bool `bson:"isPinned" json:"isPinned"`

	UnreadCount int `bson:"unreadCount" json:"unreadCount"`

	JoinedAt time.Time  `bson:"joinedAt" json:"joinedAt"`
	LeftAt   *time.Time `bson:"leftAt,omitempty" json:"leftAt,omitempty"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// MemberSettingsUpdate carries a sparse settings patch; nil fields are
// left untouched.
type MemberSettingsUpdate struct {
	Nickname              *string `json:"nickname,omitempty"`
	CustomBackground      *string `json:"customBackground,omitempty"`
	IsMuted               *bool   `json:"isMuted,omitempty"`
	IsPinned              *bool   `json:"isPinned,omitempty"`
	IsConversationBlocked *bool   `json:"isConversationBlocked,omitempty"`
}

func (u MemberSettingsUpdate) Empty() bool {
	return u.Nickname == nil && u.CustomBackground == nil &&
		u.IsMuted == nil && u.IsPinned == nil && u.IsConversationBlocked == nil
}

package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ConversationType string

const (
	ConversationPrivate ConversationType = "PRIVATE"
	ConversationGroup   ConversationType = "GROUP"
)

// LastMessage is the denormalized snapshot shown in conversation lists.
type LastMessage struct {
	MessageID primitive.ObjectID `bson:"messageId" json:"messageId"`
	SenderID  primitive.ObjectID `bson:"senderId" json:"senderId"`
	Text      string             `bson:"text" json:"text"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

type GroupSettings struct {
	OnlyAdminSend bool `bson:"onlyAdminSend" json:"onlyAdminSend"`
	AllowRename   bool `bson:"allowRename" json:"allowRename"`
}

type Conversation struct {
	ID   primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Type ConversationType   `bson:"type" json:"type"`
	Name string             `bson:"name,omitempty" json:"name,omitempty"`

	Avatar string `bson:"avatar,omitempty" json:"avatar,omitempty"`

	// PRIVATE only: cached counterpart info, refreshed lazily on lookup.
	// The pair key is the sorted "idA:idB" of both member ids; a unique
	// partial index on it enforces one live PRIVATE conversation per pair.
	PairKey         string             `bson:"pairKey,omitempty" json:"-"`
	OtherUserID     primitive.ObjectID `bson:"otherUserId,omitempty" json:"otherUserId,omitempty"`
	OtherUserName   string             `bson:"otherUserName,omitempty" json:"otherUserName,omitempty"`
	OtherUserAvatar string             `bson:"otherUserAvatar,omitempty" json:"otherUserAvatar,omitempty"`

	GroupSettings *GroupSettings `bson:"groupSettings,omitempty" json:"groupSettings,omitempty"`

	CreatedBy   primitive.ObjectID `bson:"createdBy" json:"createdBy"`
	LastMessage *LastMessage       `bson:"lastMessage,omitempty" json:"lastMessage,omitempty"`
	MemberCount int                `bson:"memberCount" json:"memberCount"`
	IsDeleted   bool               `bson:"isDeleted" json:"isDeleted"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// PairKeyFor builds the undirected pair key for two user ids.
func PairKeyFor(a, b primitive.ObjectID) string {
	x, y := a.Hex(), b.Hex()
	if x > y {
		x, y = y, x
	}
	return x + ":" + y
}

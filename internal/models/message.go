package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type MessageType string

const (
	MessageText   MessageType = "TEXT"
	MessageImage  MessageType = "IMAGE"
	MessageVideo  MessageType = "VIDEO"
	MessageAudio  MessageType = "AUDIO"
	MessageFile   MessageType = "FILE"
	MessageSystem MessageType = "SYSTEM"
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageText, MessageImage, MessageVideo, MessageAudio, MessageFile, MessageSystem:
		return true
	}
	return false
}

// IsMedia reports whether the type carries a media descriptor.
func (t MessageType) IsMedia() bool {
	switch t {
	case MessageImage, MessageVideo, MessageAudio, MessageFile:
		return true
	}
	return false
}

type ReactionType string

const (
	ReactionLike  ReactionType = "LIKE"
	ReactionLove  ReactionType = "LOVE"
	ReactionHaha  ReactionType = "HAHA"
	ReactionWow   ReactionType = "WOW"
	ReactionSad   ReactionType = "SAD"
	ReactionAngry ReactionType = "ANGRY"
)

func (t ReactionType) Valid() bool {
	switch t {
	case ReactionLike, ReactionLove, ReactionHaha, ReactionWow, ReactionSad, ReactionAngry:
		return true
	}
	return false
}

// MessageContent holds the type-dependent payload: text for TEXT, a
// media descriptor for IMAGE/VIDEO/AUDIO/FILE.
type MessageContent struct {
	Text     string `bson:"text,omitempty" json:"text,omitempty"`
	MediaURL string `bson:"mediaUrl,omitempty" json:"mediaUrl,omitempty"`
	MimeType string `bson:"mimeType,omitempty" json:"mimeType,omitempty"`
	FileName string `bson:"fileName,omitempty" json:"fileName,omitempty"`
	FileSize int64  `bson:"fileSize,omitempty" json:"fileSize,omitempty"`
	Duration int    `bson:"duration,omitempty" json:"duration,omitempty"`
}

// Reaction: at most one per (message, userId); a second add replaces it.
type Reaction struct {
	UserID    primitive.ObjectID `bson:"userId" json:"userId"`
	Type      ReactionType       `bson:"type" json:"type"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

type Message struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ConversationID primitive.ObjectID `bson:"conversationId" json:"conversationId"`
	SenderID       primitive.ObjectID `bson:"senderId" json:"senderId"`
	Type           MessageType        `bson:"type" json:"type"`
	Content        MessageContent     `bson:"content" json:"content"`

	// must reference a message in the same conversation
	ReplyToMessageID *primitive.ObjectID `bson:"replyToMessageId,omitempty" json:"replyToMessageId,omitempty"`

	Reactions []Reaction `bson:"reactions" json:"reactions"`
	IsDeleted bool       `bson:"isDeleted" json:"isDeleted"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	NotificationMessage = "message"
	NotificationCall    = "call"
	NotificationSystem  = "system"
)

// Notification is the durable record behind the realtime/push fan-out.
// "message" notifications are created already read and expire via a TTL
// index; other types persist until the user reads or deletes them.
type Notification struct {
	ID         primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	UserID     primitive.ObjectID  `bson:"userId" json:"userId"`
	FromUserID *primitive.ObjectID `bson:"fromUserId,omitempty" json:"fromUserId,omitempty"`
	Type       string              `bson:"type" json:"type"`
	Title      string              `bson:"title" json:"title"`
	Body       string              `bson:"body" json:"body"`
	Data       map[string]string   `bson:"data,omitempty" json:"data,omitempty"`
	Read       bool                `bson:"read" json:"read"`
	ReadAt     *time.Time          `bson:"readAt,omitempty" json:"readAt,omitempty"`
	CreatedAt  time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time           `bson:"updatedAt" json:"updatedAt"`
}

type PushPlatform string

const (
	PlatformAndroid PushPlatform = "android"
	PlatformIOS     PushPlatform = "ios"
	PlatformWeb     PushPlatform = "web"
)

func (p PushPlatform) Valid() bool {
	switch p {
	case PlatformAndroid, PlatformIOS, PlatformWeb:
		return true
	}
	return false
}

type PushToken struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID     primitive.ObjectID `bson:"userId" json:"userId"`
	Token      string             `bson:"token" json:"token"`
	Platform   PushPlatform       `bson:"platform" json:"platform"`
	DeviceID   string             `bson:"deviceId,omitempty" json:"deviceId,omitempty"`
	DeviceName string             `bson:"deviceName,omitempty" json:"deviceName,omitempty"`
	Active     bool               `bson:"active" json:"active"`
	CreatedAt  time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time          `bson:"updatedAt" json:"updatedAt"`
}

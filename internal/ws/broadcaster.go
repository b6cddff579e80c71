package ws

import (
	"time"

	"github.com/tdnguyen-dev/echochat/internal/models"
	"github.com/tdnguyen-dev/echochat/internal/service"
)

// HubBroadcaster adapts the hub to the event surface the services need.
type HubBroadcaster struct {
	hub *Hub
}

func NewHubBroadcaster(hub *Hub) *HubBroadcaster {
	return &HubBroadcaster{hub: hub}
}

func (b *HubBroadcaster) EmitNewMessage(conversationID string, message *models.Message, senderID string) {
	b.hub.BroadcastToConversation(conversationID, Envelope{
		Type: EvMessageNew,
		Payload: newMessagePayload{
			ConversationID: conversationID,
			SenderID:       senderID,
			Message:        message,
		},
	}, "")
}

func (b *HubBroadcaster) EmitReactionUpdated(conversationID string, ev service.ReactionEvent) {
	b.hub.BroadcastToConversation(conversationID, Envelope{
		Type:    EvMessageReaction,
		Payload: ev,
	}, "")
}

func (b *HubBroadcaster) EmitConversationListUpdated(userID string) {
	b.hub.SendToUser(userID, Envelope{
		Type:    EvConversationsUpdated,
		Payload: conversationsUpdatedPayload{Timestamp: time.Now().UTC()},
	})
}

func (b *HubBroadcaster) EmitNewNotification(userID string, n *models.Notification) {
	b.hub.SendToUser(userID, Envelope{
		Type:    EvNewNotification,
		Payload: newNotificationPayload{Notification: n},
	})
}

func (b *HubBroadcaster) EmitUnreadCountUpdate(userID string, count int64) {
	b.hub.SendToUser(userID, Envelope{
		Type:    EvNotificationsUnread,
		Payload: unreadCountPayload{Count: count},
	})
}

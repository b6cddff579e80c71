package service

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/tdnguyen-dev/echochat/internal/models"
	"github.com/tdnguyen-dev/echochat/internal/push"
	"github.com/tdnguyen-dev/echochat/internal/repository"
)

// activeWindow is how recently a user must have had socket activity for
// a push to be considered redundant.
const activeWindow = 5 * time.Minute

type NotificationService struct {
	notifs   repository.NotificationRepository
	tokens   repository.PushTokenRepository
	presence PresenceStore
	sender   PushSender
	bc       Broadcaster
	log      *zap.SugaredLogger
}

func NewNotificationService(
	notifs repository.NotificationRepository,
	tokens repository.PushTokenRepository,
	presence PresenceStore,
	sender PushSender,
	bc Broadcaster,
	log *zap.SugaredLogger,
) *NotificationService {
	return &NotificationService{
		notifs:   notifs,
		tokens:   tokens,
		presence: presence,
		sender:   sender,
		bc:       bc,
		log:      log,
	}
}

type CreateNotificationInput struct {
	UserID     primitive.ObjectID
	FromUserID *primitive.ObjectID
	Type       string
	Title      string
	Body       string
	Data       map[string]string
	SendPush   bool
}

// Create stores the notification, emits the realtime events, and sends a
// push when warranted. Message notifications are born read: the message
// itself is the durable record, the notification is transient transport
// and expires via the collection's TTL index.
func (s *NotificationService) Create(ctx context.Context, in CreateNotificationInput) (*models.Notification, error) {
	n := &models.Notification{
		UserID:     in.UserID,
		FromUserID: in.FromUserID,
		Type:       in.Type,
		Title:      in.Title,
		Body:       in.Body,
		Data:       in.Data,
	}
	if in.Type == models.NotificationMessage {
		now := time.Now().UTC()
		n.Read = true
		n.ReadAt = &now
	}
	if err := s.notifs.Insert(ctx, n); err != nil {
		return nil, err
	}

	s.bc.EmitNewNotification(in.UserID.Hex(), n)
	s.emitUnread(ctx, in.UserID)

	if in.SendPush {
		s.sendPush(ctx, n)
	}
	return n, nil
}

// sendPush delivers to all active device tokens unless the user is
// demonstrably at the keyboard. Failures are logged, never surfaced.
func (s *NotificationService) sendPush(ctx context.Context, n *models.Notification) {
	if s.sender == nil {
		return
	}

	active, err := s.presence.ActiveWithin(ctx, n.UserID.Hex(), activeWindow)
	if err != nil {
		s.log.Warnw("presence check before push", "userId", n.UserID.Hex(), "error", err)
	} else if active {
		return
	}

	tokens, err := s.tokens.ListActive(ctx, n.UserID)
	if err != nil {
		s.log.Errorw("list push tokens", "userId", n.UserID.Hex(), "error", err)
		return
	}

	for _, t := range tokens {
		result, err := s.sender.Send(ctx, t.Token, string(t.Platform), n.Title, n.Body, n.Data)
		if err != nil {
			s.log.Warnw("push delivery", "userId", n.UserID.Hex(), "platform", t.Platform, "error", err)
		}
		if result == push.ResultPermanentFailure {
			if err := s.tokens.Deactivate(ctx, t.ID); err != nil {
				s.log.Errorw("deactivate dead push token", "tokenId", t.ID.Hex(), "error", err)
			} else {
				s.log.Infow("deactivated dead push token", "userId", n.UserID.Hex(), "platform", t.Platform)
			}
		}
	}
}

func (s *NotificationService) emitUnread(ctx context.Context, userID primitive.ObjectID) {
	count, err := s.notifs.CountUnread(ctx, userID)
	if err != nil {
		s.log.Warnw("count unread notifications", "userId", userID.Hex(), "error", err)
		return
	}
	s.bc.EmitUnreadCountUpdate(userID.Hex(), count)
}

type NotificationPage struct {
	Notifications []*models.Notification `json:"notifications"`
	Total         int64                  `json:"total"`
	Unread        int64                  `json:"unread"`
	Page          int64                  `json:"page"`
	TotalPages    int64                  `json:"totalPages"`
}

func (s *NotificationService) List(ctx context.Context, userID primitive.ObjectID, page, limit int64, read *bool, typ string) (*NotificationPage, error) {
	notifs, total, err := s.notifs.List(ctx, userID, page, limit, read, typ)
	if err != nil {
		return nil, err
	}
	unread, err := s.notifs.CountUnread(ctx, userID)
	if err != nil {
		return nil, err
	}
	if notifs == nil {
		notifs = []*models.Notification{}
	}
	return &NotificationPage{
		Notifications: notifs,
		Total:         total,
		Unread:        unread,
		Page:          page,
		TotalPages:    (total + limit - 1) / limit,
	}, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID primitive.ObjectID) (*models.Notification, error) {
	n, err := s.notifs.MarkRead(ctx, notificationID, userID)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, ErrNotFound
	}
	s.emitUnread(ctx, userID)
	return n, nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	modified, err := s.notifs.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.bc.EmitUnreadCountUpdate(userID.Hex(), 0)
	return modified, nil
}

func (s *NotificationService) Delete(ctx context.Context, userID, notificationID primitive.ObjectID) error {
	err := s.notifs.Delete(ctx, notificationID, userID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	s.emitUnread(ctx, userID)
	return nil
}

func (s *NotificationService) DeleteAllRead(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	return s.notifs.DeleteAllRead(ctx, userID)
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	return s.notifs.CountUnread(ctx, userID)
}

// RegisterToken upserts a device token, reclaiming it from a previous
// owner when the device changes hands.
func (s *NotificationService) RegisterToken(ctx context.Context, userID primitive.ObjectID, token string, platform models.PushPlatform, deviceID, deviceName string) (*models.PushToken, error) {
	if token == "" || !platform.Valid() {
		return nil, ErrInvalidPayload
	}
	return s.tokens.Upsert(ctx, &models.PushToken{
		UserID:     userID,
		Token:      token,
		Platform:   platform,
		DeviceID:   deviceID,
		DeviceName: deviceName,
		Active:     true,
	})
}

func (s *NotificationService) UnregisterToken(ctx context.Context, userID primitive.ObjectID, token string) error {
	if token == "" {
		return ErrInvalidPayload
	}
	return s.tokens.DeactivateByToken(ctx, token, userID)
}

package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/tdnguyen-dev/echochat/internal/models"
	"github.com/tdnguyen-dev/echochat/internal/repository"
)

const sideEffectTimeout = 30 * time.Second

type MessageService struct {
	convs   repository.ConversationRepository
	members repository.MemberRepository
	msgs    repository.MessageRepository
	users   repository.UserRepository
	oracle  RelationshipOracle
	txn     repository.TxnRunner
	bc      Broadcaster
	notifs  *NotificationService
	events  EventPublisher
	log     *zap.SugaredLogger

	// dispatch runs post-commit side effects; a goroutine in production,
	// inline in tests.
	dispatch func(func())
}

func NewMessageService(
	convs repository.ConversationRepository,
	members repository.MemberRepository,
	msgs repository.MessageRepository,
	users repository.UserRepository,
	oracle RelationshipOracle,
	txn repository.TxnRunner,
	bc Broadcaster,
	notifs *NotificationService,
	events EventPublisher,
	log *zap.SugaredLogger,
) *MessageService {
	return &MessageService{
		convs:    convs,
		members:  members,
		msgs:     msgs,
		users:    users,
		oracle:   oracle,
		txn:      txn,
		bc:       bc,
		notifs:   notifs,
		events:   events,
		log:      log,
		dispatch: func(fn func()) { go fn() },
	}
}

// SetDispatch overrides how post-commit side effects are scheduled.
func (s *MessageService) SetDispatch(d func(func())) { s.dispatch = d }

type SendMessagePayload struct {
	Type             models.MessageType `json:"type"`
	Text             string             `json:"text,omitempty"`
	MediaURL         string             `json:"mediaUrl,omitempty"`
	MimeType         string             `json:"mimeType,omitempty"`
	FileName         string             `json:"fileName,omitempty"`
	FileSize         int64              `json:"fileSize,omitempty"`
	Duration         int                `json:"duration,omitempty"`
	ReplyToMessageID string             `json:"replyToMessageId,omitempty"`
}

// Send persists a message and applies its side effects: last-message
// cache, unread counters (one logical unit, transactional when the
// deployment allows), then realtime broadcast and notification fan-out.
// Fan-out failures never fail a stored message.
func (s *MessageService) Send(ctx context.Context, conversationID, senderID primitive.ObjectID, payload SendMessagePayload) (*models.Message, error) {
	conv, err := s.convs.FindActive(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, ErrNotFound
	}

	member, err := s.members.Find(ctx, conversationID, senderID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, ErrNotAMember
	}

	if conv.Type == models.ConversationPrivate {
		other, err := s.members.FindOther(ctx, conversationID, senderID)
		if err != nil {
			return nil, err
		}
		if other != nil {
			blocked, err := s.oracle.IsBlocked(ctx, senderID, other.UserID)
			if err != nil {
				return nil, fmt.Errorf("block check: %w", err)
			}
			if blocked {
				return nil, ErrBlocked
			}
		}
	}

	if conv.Type == models.ConversationGroup && conv.GroupSettings != nil &&
		conv.GroupSettings.OnlyAdminSend && member.Role != models.RoleAdmin &&
		payload.Type != models.MessageSystem {
		return nil, ErrAdminOnly
	}

	replyTo, err := s.validatePayload(ctx, conversationID, payload)
	if err != nil {
		return nil, err
	}

	msg := &models.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Type:           payload.Type,
		Content: models.MessageContent{
			Text:     payload.Text,
			MediaURL: payload.MediaURL,
			MimeType: payload.MimeType,
			FileName: payload.FileName,
			FileSize: payload.FileSize,
			Duration: payload.Duration,
		},
		ReplyToMessageID: replyTo,
		Reactions:        []models.Reaction{},
	}
	if err := s.msgs.Insert(ctx, msg); err != nil {
		return nil, err
	}

	preview := previewText(payload)
	err = s.txn.Run(ctx, func(ctx context.Context) error {
		if err := s.convs.SetLastMessage(ctx, conversationID, models.LastMessage{
			MessageID: msg.ID,
			SenderID:  senderID,
			Text:      preview,
			CreatedAt: msg.CreatedAt,
		}); err != nil {
			return err
		}
		return s.members.IncrementUnreadExcept(ctx, conversationID, senderID)
	})
	if err != nil {
		return nil, err
	}

	s.dispatch(func() { s.fanOut(conversationID, senderID, msg, preview) })

	return msg, nil
}

func (s *MessageService) validatePayload(ctx context.Context, conversationID primitive.ObjectID, payload SendMessagePayload) (*primitive.ObjectID, error) {
	if !payload.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown message type %q", ErrInvalidPayload, payload.Type)
	}
	if payload.Type == models.MessageText && strings.TrimSpace(payload.Text) == "" {
		return nil, fmt.Errorf("%w: text message requires text", ErrInvalidPayload)
	}
	if payload.Type.IsMedia() && payload.MediaURL == "" {
		return nil, fmt.Errorf("%w: %s message requires a media url", ErrInvalidPayload, payload.Type)
	}

	if payload.ReplyToMessageID == "" {
		return nil, nil
	}
	replyID, err := primitive.ObjectIDFromHex(payload.ReplyToMessageID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid replyToMessageId", ErrInvalidPayload)
	}
	replied, err := s.msgs.FindInConversation(ctx, replyID, conversationID)
	if err != nil {
		return nil, err
	}
	if replied == nil {
		return nil, fmt.Errorf("%w: replied message not in this conversation", ErrInvalidPayload)
	}
	return &replyID, nil
}

// fanOut runs after commit with its own deadline and error handling.
func (s *MessageService) fanOut(conversationID, senderID primitive.ObjectID, msg *models.Message, preview string) {
	ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
	defer cancel()

	s.bc.EmitNewMessage(conversationID.Hex(), msg, senderID.Hex())

	if s.events != nil {
		if err := s.events.PublishMessageSent(ctx, msg); err != nil {
			s.log.Warnw("publish message.sent", "messageId", msg.ID.Hex(), "error", err)
		}
	}

	members, err := s.members.ListByConversation(ctx, conversationID)
	if err != nil {
		s.log.Errorw("list members for fan-out", "conversationId", conversationID.Hex(), "error", err)
		return
	}

	senderName := "New message"
	if sender, err := s.users.FindByID(ctx, senderID); err != nil {
		s.log.Warnw("resolve sender for notification", "senderId", senderID.Hex(), "error", err)
	} else if sender != nil {
		senderName = sender.Name()
	}

	for _, m := range members {
		if m.UserID == senderID {
			continue
		}
		s.bc.EmitConversationListUpdated(m.UserID.Hex())

		_, err := s.notifs.Create(ctx, CreateNotificationInput{
			UserID:     m.UserID,
			FromUserID: &senderID,
			Type:       models.NotificationMessage,
			Title:      senderName,
			Body:       preview,
			Data: map[string]string{
				"conversationId": conversationID.Hex(),
				"messageId":      msg.ID.Hex(),
				"senderId":       senderID.Hex(),
			},
			// muted conversations keep the durable record and the socket
			// event but never push
			SendPush: !m.IsMuted,
		})
		if err != nil {
			s.log.Errorw("create message notification",
				"conversationId", conversationID.Hex(), "userId", m.UserID.Hex(), "error", err)
		}
	}
}

func previewText(payload SendMessagePayload) string {
	switch payload.Type {
	case models.MessageText:
		return payload.Text
	case models.MessageImage:
		return "Sent a photo"
	case models.MessageVideo:
		return "Sent a video"
	case models.MessageAudio:
		return "Sent a voice message"
	case models.MessageFile:
		if payload.FileName != "" {
			return "Sent file " + payload.FileName
		}
		return "Sent a file"
	default:
		return "System message"
	}
}

type MessagePage struct {
	Messages   []*models.Message `json:"messages"`
	Total      int64             `json:"total"`
	Page       int64             `json:"page"`
	TotalPages int64             `json:"totalPages"`
}

// GetMessages lists the conversation's messages newest-first; the caller
// must be a member.
func (s *MessageService) GetMessages(ctx context.Context, conversationID, callerID primitive.ObjectID, page, limit int64) (*MessagePage, error) {
	if err := s.requireMember(ctx, conversationID, callerID); err != nil {
		return nil, err
	}
	msgs, total, err := s.msgs.List(ctx, conversationID, page, limit)
	if err != nil {
		return nil, err
	}
	return newMessagePage(msgs, total, page, limit), nil
}

// GetMessagesBySender additionally requires the filter target to be (or
// have been) a member.
func (s *MessageService) GetMessagesBySender(ctx context.Context, conversationID, callerID, senderID primitive.ObjectID, page, limit int64) (*MessagePage, error) {
	if err := s.requireMember(ctx, conversationID, callerID); err != nil {
		return nil, err
	}
	if err := s.requireMember(ctx, conversationID, senderID); err != nil {
		return nil, err
	}
	msgs, total, err := s.msgs.ListBySender(ctx, conversationID, senderID, page, limit)
	if err != nil {
		return nil, err
	}
	return newMessagePage(msgs, total, page, limit), nil
}

func newMessagePage(msgs []*models.Message, total, page, limit int64) *MessagePage {
	if msgs == nil {
		msgs = []*models.Message{}
	}
	return &MessagePage{
		Messages:   msgs,
		Total:      total,
		Page:       page,
		TotalPages: (total + limit - 1) / limit,
	}
}

// AddOrUpdateReaction replaces any existing reaction by this user on the
// message with the new type. Repeated identical calls are idempotent.
func (s *MessageService) AddOrUpdateReaction(ctx context.Context, conversationID, userID, messageID primitive.ObjectID, reaction models.ReactionType) (*models.Message, error) {
	if !reaction.Valid() {
		return nil, fmt.Errorf("%w: unknown reaction type %q", ErrInvalidPayload, reaction)
	}
	if err := s.requireMember(ctx, conversationID, userID); err != nil {
		return nil, err
	}

	msg, err := s.msgs.FindInConversation(ctx, messageID, conversationID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, ErrNotFound
	}

	reactions := withoutUser(msg.Reactions, userID)
	reactions = append(reactions, models.Reaction{
		UserID:    userID,
		Type:      reaction,
		CreatedAt: time.Now().UTC(),
	})
	if err := s.msgs.SetReactions(ctx, msg.ID, reactions); err != nil {
		return nil, err
	}
	msg.Reactions = reactions

	rt := reaction
	ev := ReactionEvent{
		ConversationID: conversationID.Hex(),
		MessageID:      msg.ID.Hex(),
		UserID:         userID.Hex(),
		Type:           &rt,
		Action:         "added",
		Reactions:      reactions,
		Timestamp:      time.Now().UTC(),
	}
	s.dispatch(func() { s.bc.EmitReactionUpdated(conversationID.Hex(), ev) })

	return msg, nil
}

// RemoveReaction removes the caller's reaction; a no-op (no broadcast)
// when none exists.
func (s *MessageService) RemoveReaction(ctx context.Context, conversationID, userID, messageID primitive.ObjectID) (*models.Message, error) {
	if err := s.requireMember(ctx, conversationID, userID); err != nil {
		return nil, err
	}

	msg, err := s.msgs.FindInConversation(ctx, messageID, conversationID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, ErrNotFound
	}

	reactions := withoutUser(msg.Reactions, userID)
	if len(reactions) == len(msg.Reactions) {
		return msg, nil
	}
	if err := s.msgs.SetReactions(ctx, msg.ID, reactions); err != nil {
		return nil, err
	}
	msg.Reactions = reactions

	ev := ReactionEvent{
		ConversationID: conversationID.Hex(),
		MessageID:      msg.ID.Hex(),
		UserID:         userID.Hex(),
		Type:           nil,
		Action:         "removed",
		Reactions:      reactions,
		Timestamp:      time.Now().UTC(),
	}
	s.dispatch(func() { s.bc.EmitReactionUpdated(conversationID.Hex(), ev) })

	return msg, nil
}

func withoutUser(reactions []models.Reaction, userID primitive.ObjectID) []models.Reaction {
	out := make([]models.Reaction, 0, len(reactions))
	for _, r := range reactions {
		if r.UserID != userID {
			out = append(out, r)
		}
	}
	return out
}

// UpdateMemberSettings applies a sparse patch to the caller's own
// membership; unspecified fields are never clobbered.
func (s *MessageService) UpdateMemberSettings(ctx context.Context, conversationID, userID primitive.ObjectID, update models.MemberSettingsUpdate) (*models.ConversationMember, error) {
	if update.Empty() {
		return nil, ErrNoUpdates
	}
	member, err := s.members.UpdateSettings(ctx, conversationID, userID, update)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, ErrNotAMember
	}
	return member, nil
}

// MarkConversationOpened resets the member's unread counter. Only the
// explicit "conversation opened" signal does this, never mere receipt.
func (s *MessageService) MarkConversationOpened(ctx context.Context, conversationID, userID primitive.ObjectID) error {
	member, err := s.members.Find(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if member == nil {
		return ErrNotAMember
	}
	return s.members.ResetUnread(ctx, conversationID, userID)
}

func (s *MessageService) requireMember(ctx context.Context, conversationID, userID primitive.ObjectID) error {
	member, err := s.members.Find(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if member == nil {
		return ErrNotAMember
	}
	return nil
}

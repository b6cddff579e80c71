package service

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/tdnguyen-dev/echochat/internal/models"
	"github.com/tdnguyen-dev/echochat/internal/repository"
)

type ConversationService struct {
	convs   repository.ConversationRepository
	members repository.MemberRepository
	users   repository.UserRepository
	oracle  RelationshipOracle
	txn     repository.TxnRunner
	log     *zap.SugaredLogger
}

func NewConversationService(
	convs repository.ConversationRepository,
	members repository.MemberRepository,
	users repository.UserRepository,
	oracle RelationshipOracle,
	txn repository.TxnRunner,
	log *zap.SugaredLogger,
) *ConversationService {
	return &ConversationService{
		convs:   convs,
		members: members,
		users:   users,
		oracle:  oracle,
		txn:     txn,
		log:     log,
	}
}

type PrivateConversationResult struct {
	Conversation   *models.Conversation       `json:"conversation"`
	MemberSettings *models.ConversationMember `json:"memberSettings"`
}

type GroupConversationResult struct {
	Conversation *models.Conversation         `json:"conversation"`
	Members      []*models.ConversationMember `json:"members"`
}

// EnsurePrivate returns the live PRIVATE conversation between the two
// users, creating it on first contact. Idempotent; safe to call on every
// friend-accept.
func (s *ConversationService) EnsurePrivate(ctx context.Context, userID, otherUserID primitive.ObjectID) (*PrivateConversationResult, error) {
	if userID == otherUserID {
		return nil, ErrSelfConversation
	}

	blocked, err := s.oracle.IsBlocked(ctx, userID, otherUserID)
	if err != nil {
		return nil, fmt.Errorf("block check: %w", err)
	}
	if blocked {
		return nil, ErrBlocked
	}

	pairKey := models.PairKeyFor(userID, otherUserID)
	existing, err := s.convs.FindActivePrivateByPairKey(ctx, pairKey)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return s.refreshExisting(ctx, existing, userID, otherUserID)
	}

	other, err := s.users.FindByID(ctx, otherUserID)
	if err != nil {
		return nil, err
	}
	if other == nil {
		return nil, ErrNotFound
	}

	conv := &models.Conversation{
		Type:            models.ConversationPrivate,
		PairKey:         pairKey,
		CreatedBy:       userID,
		MemberCount:     2,
		OtherUserID:     otherUserID,
		OtherUserName:   other.Name(),
		OtherUserAvatar: other.Avatar,
	}
	memberRows := []*models.ConversationMember{
		{UserID: userID, Role: models.RoleMember},
		{UserID: otherUserID, Role: models.RoleMember},
	}

	err = s.txn.Run(ctx, func(ctx context.Context) error {
		if err := s.convs.Insert(ctx, conv); err != nil {
			return err
		}
		for _, m := range memberRows {
			m.ConversationID = conv.ID
		}
		return s.members.InsertMany(ctx, memberRows)
	})
	if err != nil {
		// Two first-contact calls can race past the existence check; the
		// unique pairKey index picks the winner and the loser re-reads.
		if mongo.IsDuplicateKeyError(err) {
			winner, ferr := s.convs.FindActivePrivateByPairKey(ctx, pairKey)
			if ferr == nil && winner != nil {
				return s.refreshExisting(ctx, winner, userID, otherUserID)
			}
		}
		return nil, err
	}

	return &PrivateConversationResult{Conversation: conv, MemberSettings: memberRows[0]}, nil
}

// refreshExisting refreshes the cached counterpart name/avatar if stale
// and returns the caller's membership alongside the conversation.
func (s *ConversationService) refreshExisting(ctx context.Context, conv *models.Conversation, userID, otherUserID primitive.ObjectID) (*PrivateConversationResult, error) {
	other, err := s.users.FindByID(ctx, otherUserID)
	if err != nil {
		return nil, err
	}
	if other != nil {
		name := other.Name()
		if conv.OtherUserID != otherUserID || conv.OtherUserName != name || conv.OtherUserAvatar != other.Avatar {
			if err := s.convs.UpdateOtherUser(ctx, conv.ID, otherUserID, name, other.Avatar); err != nil {
				s.log.Warnw("refresh other-user cache", "conversationId", conv.ID.Hex(), "error", err)
			} else {
				conv.OtherUserID = otherUserID
				conv.OtherUserName = name
				conv.OtherUserAvatar = other.Avatar
			}
		}
	}

	member, err := s.members.Find(ctx, conv.ID, userID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, ErrNotAMember
	}
	return &PrivateConversationResult{Conversation: conv, MemberSettings: member}, nil
}

// CreateGroup creates a GROUP conversation with the creator as ADMIN and
// every unique member id as MEMBER, atomically.
func (s *ConversationService) CreateGroup(ctx context.Context, creatorID primitive.ObjectID, name string, memberIDs []primitive.ObjectID) (*GroupConversationResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: group name required", ErrInvalidPayload)
	}

	unique := []primitive.ObjectID{creatorID}
	seen := map[primitive.ObjectID]struct{}{creatorID: {}}
	for _, id := range memberIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	conv := &models.Conversation{
		Type:          models.ConversationGroup,
		Name:          name,
		CreatedBy:     creatorID,
		MemberCount:   len(unique),
		GroupSettings: &models.GroupSettings{OnlyAdminSend: false, AllowRename: true},
	}
	memberRows := make([]*models.ConversationMember, 0, len(unique))
	for _, id := range unique {
		role := models.RoleMember
		if id == creatorID {
			role = models.RoleAdmin
		}
		memberRows = append(memberRows, &models.ConversationMember{UserID: id, Role: role})
	}

	err := s.txn.Run(ctx, func(ctx context.Context) error {
		if err := s.convs.Insert(ctx, conv); err != nil {
			return err
		}
		for _, m := range memberRows {
			m.ConversationID = conv.ID
		}
		return s.members.InsertMany(ctx, memberRows)
	})
	if err != nil {
		return nil, err
	}

	return &GroupConversationResult{Conversation: conv, Members: memberRows}, nil
}

type ConversationFilters struct {
	Type   models.ConversationType
	Search string
}

type ConversationListItem struct {
	Conversation   *models.Conversation       `json:"conversation"`
	MemberSettings *models.ConversationMember `json:"memberSettings"`
}

type ConversationPage struct {
	Conversations []ConversationListItem `json:"conversations"`
	Total         int64                  `json:"total"`
	Page          int64                  `json:"page"`
	TotalPages    int64                  `json:"totalPages"`
}

// List returns the user's conversations joined with their membership,
// pinned first then by most-recent activity. For PRIVATE conversations
// the counterpart is resolved from the live membership, not the cache,
// so renamed users show up without cache invalidation.
func (s *ConversationService) List(ctx context.Context, userID primitive.ObjectID, page, limit int64, filters ConversationFilters) (*ConversationPage, error) {
	var candidateIDs []primitive.ObjectID
	if filters.Search != "" || filters.Type != "" {
		ids, err := s.convs.SearchIDs(ctx, strings.TrimSpace(filters.Search), filters.Type)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return &ConversationPage{Conversations: []ConversationListItem{}, Page: page}, nil
		}
		candidateIDs = ids
	}

	memberships, total, err := s.members.ListByUser(ctx, userID, candidateIDs, page, limit)
	if err != nil {
		return nil, err
	}

	convIDs := make([]primitive.ObjectID, 0, len(memberships))
	for _, m := range memberships {
		convIDs = append(convIDs, m.ConversationID)
	}
	convs, err := s.convs.FindActiveByIDs(ctx, convIDs, filters.Type)
	if err != nil {
		return nil, err
	}

	convMap := make(map[primitive.ObjectID]*models.Conversation, len(convs))
	var privateIDs []primitive.ObjectID
	for _, c := range convs {
		convMap[c.ID] = c
		if c.Type == models.ConversationPrivate {
			privateIDs = append(privateIDs, c.ID)
		}
	}

	otherByConv, err := s.resolveOthers(ctx, privateIDs, userID)
	if err != nil {
		return nil, err
	}

	items := make([]ConversationListItem, 0, len(memberships))
	for _, m := range memberships {
		conv, ok := convMap[m.ConversationID]
		if !ok {
			continue
		}
		if conv.Type == models.ConversationPrivate {
			if other, ok := otherByConv[conv.ID]; ok {
				conv.OtherUserID = other.ID
				conv.OtherUserName = other.Name()
				conv.OtherUserAvatar = other.Avatar
			}
		}
		items = append(items, ConversationListItem{Conversation: conv, MemberSettings: m})
	}

	totalPages := (total + limit - 1) / limit
	return &ConversationPage{Conversations: items, Total: total, Page: page, TotalPages: totalPages}, nil
}

func (s *ConversationService) resolveOthers(ctx context.Context, privateIDs []primitive.ObjectID, userID primitive.ObjectID) (map[primitive.ObjectID]*models.User, error) {
	out := make(map[primitive.ObjectID]*models.User)
	if len(privateIDs) == 0 {
		return out, nil
	}

	others, err := s.members.ListOthers(ctx, privateIDs, userID)
	if err != nil {
		return nil, err
	}
	userIDs := make([]primitive.ObjectID, 0, len(others))
	for _, m := range others {
		userIDs = append(userIDs, m.UserID)
	}
	users, err := s.users.FindByIDs(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	userMap := make(map[primitive.ObjectID]*models.User, len(users))
	for _, u := range users {
		userMap[u.ID] = u
	}
	for _, m := range others {
		if _, ok := out[m.ConversationID]; ok {
			continue
		}
		if u, ok := userMap[m.UserID]; ok {
			out[m.ConversationID] = u
		}
	}
	return out, nil
}

package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tdnguyen-dev/echochat/internal/models"
)

type mongoMemberRepo struct {
	col *mongo.Collection
}

func NewMemberRepo(col *mongo.Collection) MemberRepository {
	return &mongoMemberRepo{col: col}
}

func (r *mongoMemberRepo) InsertMany(ctx context.Context, members []*models.ConversationMember) error {
	now := time.Now().UTC()
	docs := make([]interface{}, 0, len(members))
	for _, m := range members {
		m.CreatedAt = now
		m.UpdatedAt = now
		if m.JoinedAt.IsZero() {
			m.JoinedAt = now
		}
		docs = append(docs, m)
	}
	res, err := r.col.InsertMany(ctx, docs)
	if err != nil {
		return err
	}
	for i, id := range res.InsertedIDs {
		members[i].ID = id.(primitive.ObjectID)
	}
	return nil
}

func (r *mongoMemberRepo) Find(ctx context.Context, conversationID, userID primitive.ObjectID) (*models.ConversationMember, error) {
	var m models.ConversationMember
	err := r.col.FindOne(ctx, bson.M{"conversationId": conversationID, "userId": userID}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *mongoMemberRepo) FindOther(ctx context.Context, conversationID, userID primitive.ObjectID) (*models.ConversationMember, error) {
	var m models.ConversationMember
	err := r.col.FindOne(ctx, bson.M{
		"conversationId": conversationID,
		"userId":         bson.M{"$ne": userID},
	}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *mongoMemberRepo) ListByConversation(ctx context.Context, conversationID primitive.ObjectID) ([]*models.ConversationMember, error) {
	return r.list(ctx, bson.M{"conversationId": conversationID}, nil)
}

func (r *mongoMemberRepo) ListOthers(ctx context.Context, conversationIDs []primitive.ObjectID, excludeUserID primitive.ObjectID) ([]*models.ConversationMember, error) {
	if len(conversationIDs) == 0 {
		return nil, nil
	}
	return r.list(ctx, bson.M{
		"conversationId": bson.M{"$in": conversationIDs},
		"userId":         bson.M{"$ne": excludeUserID},
	}, nil)
}

func (r *mongoMemberRepo) ListByUser(ctx context.Context, userID primitive.ObjectID, conversationIDs []primitive.ObjectID, page, limit int64) ([]*models.ConversationMember, int64, error) {
	filter := bson.M{"userId": userID}
	if conversationIDs != nil {
		filter["conversationId"] = bson.M{"$in": conversationIDs}
	}

	total, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "isPinned", Value: -1}, {Key: "updatedAt", Value: -1}}).
		SetSkip((page - 1) * limit).
		SetLimit(limit)
	members, err := r.list(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	return members, total, nil
}

func (r *mongoMemberRepo) list(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*models.ConversationMember, error) {
	var cur *mongo.Cursor
	var err error
	if opts != nil {
		cur, err = r.col.Find(ctx, filter, opts)
	} else {
		cur, err = r.col.Find(ctx, filter)
	}
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*models.ConversationMember
	for cur.Next(ctx) {
		var m models.ConversationMember
		if err := cur.Decode(&m); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, cur.Err()
}

// IncrementUnreadExcept bumps unreadCount by one for every member but the
// sender. Per-document $inc, not read-modify-write, so concurrent sends
// never lose updates.
func (r *mongoMemberRepo) IncrementUnreadExcept(ctx context.Context, conversationID, senderID primitive.ObjectID) error {
	_, err := r.col.UpdateMany(ctx,
		bson.M{"conversationId": conversationID, "userId": bson.M{"$ne": senderID}},
		bson.M{
			"$inc": bson.M{"unreadCount": 1},
			"$set": bson.M{"updatedAt": time.Now().UTC()},
		},
	)
	return err
}

func (r *mongoMemberRepo) ResetUnread(ctx context.Context, conversationID, userID primitive.ObjectID) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"conversationId": conversationID, "userId": userID},
		bson.M{"$set": bson.M{"unreadCount": 0, "updatedAt": time.Now().UTC()}},
	)
	return err
}

func (r *mongoMemberRepo) UpdateSettings(ctx context.Context, conversationID, userID primitive.ObjectID, update models.MemberSettingsUpdate) (*models.ConversationMember, error) {
	set := bson.M{"updatedAt": time.Now().UTC()}
	if update.Nickname != nil {
		set["nickname"] = *update.Nickname
	}
	if update.CustomBackground != nil {
		set["customBackground"] = *update.CustomBackground
	}
	if update.IsMuted != nil {
		set["isMuted"] = *update.IsMuted
	}
	if update.IsPinned != nil {
		set["isPinned"] = *update.IsPinned
	}
	if update.IsConversationBlocked != nil {
		set["isConversationBlocked"] = *update.IsConversationBlocked
	}

	var m models.ConversationMember
	err := r.col.FindOneAndUpdate(ctx,
		bson.M{"conversationId": conversationID, "userId": userID},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

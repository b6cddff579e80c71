package repository

import (
	"context"
	"errors"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/tdnguyen-dev/echochat/internal/models"
)

type mongoConversationRepo struct {
	col *mongo.Collection
}

func NewConversationRepo(col *mongo.Collection) ConversationRepository {
	return &mongoConversationRepo{col: col}
}

func (r *mongoConversationRepo) Insert(ctx context.Context, c *models.Conversation) error {
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	res, err := r.col.InsertOne(ctx, c)
	if err != nil {
		return err
	}
	c.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *mongoConversationRepo) FindActive(ctx context.Context, id primitive.ObjectID) (*models.Conversation, error) {
	var c models.Conversation
	err := r.col.FindOne(ctx, bson.M{"_id": id, "isDeleted": false}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *mongoConversationRepo) FindActiveByIDs(ctx context.Context, ids []primitive.ObjectID, typ models.ConversationType) ([]*models.Conversation, error) {
	filter := bson.M{"_id": bson.M{"$in": ids}, "isDeleted": false}
	if typ != "" {
		filter["type"] = typ
	}
	cur, err := r.col.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*models.Conversation
	for cur.Next(ctx) {
		var c models.Conversation
		if err := cur.Decode(&c); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, cur.Err()
}

func (r *mongoConversationRepo) FindActivePrivateByPairKey(ctx context.Context, pairKey string) (*models.Conversation, error) {
	var c models.Conversation
	err := r.col.FindOne(ctx, bson.M{
		"pairKey":   pairKey,
		"type":      models.ConversationPrivate,
		"isDeleted": false,
	}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// SearchIDs returns ids of live conversations matching the type and,
// when search is non-empty, a case-insensitive name/otherUserName match.
func (r *mongoConversationRepo) SearchIDs(ctx context.Context, search string, typ models.ConversationType) ([]primitive.ObjectID, error) {
	filter := bson.M{"isDeleted": false}
	if search != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(search), Options: "i"}
		filter["$or"] = bson.A{
			bson.M{"name": pattern},
			bson.M{"otherUserName": pattern},
		}
	}
	if typ != "" {
		filter["type"] = typ
	}
	cur, err := r.col.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var ids []primitive.ObjectID
	for cur.Next(ctx) {
		var doc struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		ids = append(ids, doc.ID)
	}
	return ids, cur.Err()
}

func (r *mongoConversationRepo) SetLastMessage(ctx context.Context, id primitive.ObjectID, lm models.LastMessage) error {
	_, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"lastMessage": lm, "updatedAt": time.Now().UTC()},
	})
	return err
}

func (r *mongoConversationRepo) UpdateOtherUser(ctx context.Context, id, otherUserID primitive.ObjectID, name, avatar string) error {
	_, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"otherUserId":     otherUserID,
			"otherUserName":   name,
			"otherUserAvatar": avatar,
			"updatedAt":       time.Now().UTC(),
		},
	})
	return err
}

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

type mongoMessageRepo struct {
	col *mongo.Collection
}

func NewMessageRepo(col *mongo.Collection) MessageRepository {
	return &mongoMessageRepo{col: col}
}

func (r *mongoMessageRepo) Insert(ctx context.Context, m *models.Message) error {
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now
	if m.Reactions == nil {
		m.Reactions = []models.Reaction{}
	}
	res, err := r.col.InsertOne(ctx, m)
	if err != nil {
		return err
	}
	m.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *mongoMessageRepo) FindInConversation(ctx context.Context, id, conversationID primitive.ObjectID) (*models.Message, error) {
	var m models.Message
	err := r.col.FindOne(ctx, bson.M{
		"_id":            id,
		"conversationId": conversationID,
		"isDeleted":      false,
	}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *mongoMessageRepo) List(ctx context.Context, conversationID primitive.ObjectID, page, limit int64) ([]*models.Message, int64, error) {
	return r.page(ctx, bson.M{"conversationId": conversationID, "isDeleted": false}, page, limit)
}

func (r *mongoMessageRepo) ListBySender(ctx context.Context, conversationID, senderID primitive.ObjectID, page, limit int64) ([]*models.Message, int64, error) {
	return r.page(ctx, bson.M{
		"conversationId": conversationID,
		"senderId":       senderID,
		"isDeleted":      false,
	}, page, limit)
}

// page returns messages newest-first; (createdAt, _id) keeps pagination
// stable when two messages share a timestamp.
func (r *mongoMessageRepo) page(ctx context.Context, filter bson.M, page, limit int64) ([]*models.Message, int64, error) {
	total, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip((page - 1) * limit).
		SetLimit(limit)
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)

	var out []*models.Message
	for cur.Next(ctx) {
		var m models.Message
		if err := cur.Decode(&m); err != nil {
			return nil, 0, err
		}
		out = append(out, &m)
	}
	return out, total, cur.Err()
}

func (r *mongoMessageRepo) SetReactions(ctx context.Context, id primitive.ObjectID, reactions []models.Reaction) error {
	if reactions == nil {
		reactions = []models.Reaction{}
	}
	_, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"reactions": reactions, "updatedAt": time.Now().UTC()},
	})
	return err
}

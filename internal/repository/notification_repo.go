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

type mongoNotificationRepo struct {
	col *mongo.Collection
}

func NewNotificationRepo(col *mongo.Collection) NotificationRepository {
	return &mongoNotificationRepo{col: col}
}

func (r *mongoNotificationRepo) Insert(ctx context.Context, n *models.Notification) error {
	now := time.Now().UTC()
	n.CreatedAt = now
	n.UpdatedAt = now
	res, err := r.col.InsertOne(ctx, n)
	if err != nil {
		return err
	}
	n.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *mongoNotificationRepo) List(ctx context.Context, userID primitive.ObjectID, page, limit int64, read *bool, typ string) ([]*models.Notification, int64, error) {
	filter := bson.M{"userId": userID}
	if read != nil {
		filter["read"] = *read
	}
	if typ != "" {
		filter["type"] = typ
	}

	total, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip((page - 1) * limit).
		SetLimit(limit)
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)

	var out []*models.Notification
	for cur.Next(ctx) {
		var n models.Notification
		if err := cur.Decode(&n); err != nil {
			return nil, 0, err
		}
		out = append(out, &n)
	}
	return out, total, cur.Err()
}

func (r *mongoNotificationRepo) CountUnread(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	return r.col.CountDocuments(ctx, bson.M{"userId": userID, "read": false})
}

func (r *mongoNotificationRepo) MarkRead(ctx context.Context, id, userID primitive.ObjectID) (*models.Notification, error) {
	now := time.Now().UTC()
	var n models.Notification
	err := r.col.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "userId": userID},
		bson.M{"$set": bson.M{"read": true, "readAt": now, "updatedAt": now}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&n)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *mongoNotificationRepo) MarkAllRead(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	now := time.Now().UTC()
	res, err := r.col.UpdateMany(ctx,
		bson.M{"userId": userID, "read": false},
		bson.M{"$set": bson.M{"read": true, "readAt": now, "updatedAt": now}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (r *mongoNotificationRepo) Delete(ctx context.Context, id, userID primitive.ObjectID) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id, "userId": userID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

func (r *mongoNotificationRepo) DeleteAllRead(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	res, err := r.col.DeleteMany(ctx, bson.M{"userId": userID, "read": true})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tdnguyen-dev/echochat/internal/models"
)

type mongoPushTokenRepo struct {
	col *mongo.Collection
}

func NewPushTokenRepo(col *mongo.Collection) PushTokenRepository {
	return &mongoPushTokenRepo{col: col}
}

// Upsert registers a device token. A token already registered by another
// user is transferred: the device changed hands, the token did not.
func (r *mongoPushTokenRepo) Upsert(ctx context.Context, t *models.PushToken) (*models.PushToken, error) {
	now := time.Now().UTC()
	var out models.PushToken
	err := r.col.FindOneAndUpdate(ctx,
		bson.M{"token": t.Token},
		bson.M{
			"$set": bson.M{
				"userId":     t.UserID,
				"platform":   t.Platform,
				"deviceId":   t.DeviceID,
				"deviceName": t.DeviceName,
				"active":     true,
				"updatedAt":  now,
			},
			"$setOnInsert": bson.M{"createdAt": now},
		},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *mongoPushTokenRepo) ListActive(ctx context.Context, userID primitive.ObjectID) ([]*models.PushToken, error) {
	cur, err := r.col.Find(ctx, bson.M{"userId": userID, "active": true})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*models.PushToken
	for cur.Next(ctx) {
		var t models.PushToken
		if err := cur.Decode(&t); err != nil {
			return nil, err
		}
		out = append(out, &t)
	}
	return out, cur.Err()
}

func (r *mongoPushTokenRepo) Deactivate(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.col.UpdateOne(ctx, bson.M{"_id": id},
		bson.M{"$set": bson.M{"active": false, "updatedAt": time.Now().UTC()}})
	return err
}

func (r *mongoPushTokenRepo) DeactivateByToken(ctx context.Context, token string, userID primitive.ObjectID) error {
	_, err := r.col.UpdateOne(ctx, bson.M{"token": token, "userId": userID},
		bson.M{"$set": bson.M{"active": false, "updatedAt": time.Now().UTC()}})
	return err
}

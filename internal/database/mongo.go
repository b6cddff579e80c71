package database

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tdnguyen-dev/echochat/config"
)

const (
	ColConversations = "conversations"
	ColMembers       = "conversation_members"
	ColMessages      = "messages"
	ColNotifications = "notifications"
	ColPushTokens    = "push_tokens"
	ColBlocks        = "blocks"
	ColUsers         = "users"
)

func NewMongoClient(cfg *config.Config) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}
	return client, nil
}

// EnsureIndexes creates the index set the messaging core relies on:
// the private-pair uniqueness constraint, the unread/most-recent listing
// order, time-ordered message pagination and the message-notification TTL.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	var err error

	_, err = db.Collection(ColConversations).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			// one live PRIVATE conversation per user pair
			Keys: bson.D{{Key: "pairKey", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"type": "PRIVATE", "isDeleted": false}),
		},
		{Keys: bson.D{{Key: "lastMessage.createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "updatedAt", Value: -1}}},
	})
	if err != nil {
		return err
	}

	_, err = db.Collection(ColMembers).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "conversationId", Value: 1}, {Key: "userId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "isPinned", Value: -1}, {Key: "updatedAt", Value: -1}}},
	})
	if err != nil {
		return err
	}

	_, err = db.Collection(ColMessages).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "conversationId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "replyToMessageId", Value: 1}}},
	})
	if err != nil {
		return err
	}

	_, err = db.Collection(ColNotifications).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "read", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "type", Value: 1}, {Key: "createdAt", Value: -1}}},
		{
			// message notifications exist for history only; expire them
			Keys: bson.D{{Key: "createdAt", Value: 1}},
			Options: options.Index().
				SetExpireAfterSeconds(5 * 60).
				SetPartialFilterExpression(bson.M{"type": "message"}),
		},
	})
	if err != nil {
		return err
	}

	_, err = db.Collection(ColPushTokens).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "token", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "active", Value: 1}}},
	})
	if err != nil {
		return err
	}

	_, err = db.Collection(ColBlocks).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "blockerId", Value: 1}, {Key: "blockedId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	})
	return err
}

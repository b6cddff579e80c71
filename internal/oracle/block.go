// Package oracle answers block-relation queries for the messaging core.
// The friends/blocking workflow itself lives outside this service; only
// the lookup is consumed here.
package oracle

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type BlockOracle struct {
	col *mongo.Collection
}

func NewBlockOracle(col *mongo.Collection) *BlockOracle {
	return &BlockOracle{col: col}
}

// IsBlocked reports whether either user blocks the other.
func (o *BlockOracle) IsBlocked(ctx context.Context, a, b primitive.ObjectID) (bool, error) {
	err := o.col.FindOne(ctx, bson.M{
		"$or": bson.A{
			bson.M{"blockerId": a, "blockedId": b},
			bson.M{"blockerId": b, "blockedId": a},
		},
	}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

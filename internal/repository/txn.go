package repository

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type mongoTxnRunner struct {
	client *mongo.Client
	log    *zap.SugaredLogger
}

func NewTxnRunner(client *mongo.Client, log *zap.SugaredLogger) TxnRunner {
	return &mongoTxnRunner{client: client, log: log}
}

// Run executes fn inside a multi-document transaction. Standalone mongod
// deployments reject transactions with IllegalOperation (code 20); in
// that case the same steps are re-executed sequentially without
// atomicity. The tradeoff is logged, never surfaced to the caller.
func (r *mongoTxnRunner) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := r.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	if err == nil {
		return nil
	}
	if !IsTransactionUnsupported(err) {
		return err
	}

	r.log.Warnw("multi-document transactions unavailable, applying updates sequentially", "error", err)
	return fn(ctx)
}

// IsTransactionUnsupported reports whether err is the storage engine
// refusing transactions outright (standalone deployment), as opposed to
// a transaction that ran and failed.
func IsTransactionUnsupported(err error) bool {
	var ce mongo.CommandError
	if errors.As(err, &ce) {
		if ce.Code == 20 || ce.Name == "IllegalOperation" {
			return true
		}
	}
	// older standalone servers word it differently
	return err != nil && strings.Contains(err.Error(), "Transaction numbers are only allowed")
}

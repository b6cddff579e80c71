package repository

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestIsTransactionUnsupported(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"code 20", mongo.CommandError{Code: 20, Message: "Transaction numbers are only allowed on a replica set member or mongos"}, true},
		{"IllegalOperation name", mongo.CommandError{Name: "IllegalOperation", Message: "whatever"}, true},
		{"wrapped code 20", errors.New("wrapper"), false},
		{"legacy wording", errors.New("(NoSuchTransaction) Transaction numbers are only allowed on a replica set member or mongos"), true},
		{"write conflict", mongo.CommandError{Code: 112, Name: "WriteConflict"}, false},
		{"plain error", errors.New("network down"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsTransactionUnsupported(tc.err))
		})
	}
}

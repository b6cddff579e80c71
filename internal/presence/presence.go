// Package presence keeps connection-driven online state in Redis so any
// instance can answer "is this user active" without touching mongo.
//
// Keys:
//   - <prefix>:presence:<userId> -> json {status, last_seen}
//   - <prefix>:conn:<userId>     -> set of connection ids
package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	StatusOnline   = "online"
	StatusRecently = "recently"
)

type Store struct {
	client *redis.Client
	prefix string
}

type state struct {
	Status   string `json:"status"`
	LastSeen int64  `json:"last_seen"`
}

func NewStore(client *redis.Client, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

func (s *Store) connKey(userID string) string {
	return fmt.Sprintf("%s:conn:%s", s.prefix, userID)
}

func (s *Store) presenceKey(userID string) string {
	return fmt.Sprintf("%s:presence:%s", s.prefix, userID)
}

// Connect registers a connection and marks the user online.
func (s *Store) Connect(ctx context.Context, userID, connID string) error {
	if err := s.client.SAdd(ctx, s.connKey(userID), connID).Err(); err != nil {
		return err
	}
	return s.setState(ctx, userID, StatusOnline)
}

// Disconnect removes a connection; when the last one goes away the user
// transitions to "recently".
func (s *Store) Disconnect(ctx context.Context, userID, connID string) error {
	if err := s.client.SRem(ctx, s.connKey(userID), connID).Err(); err != nil {
		return err
	}
	cnt, err := s.client.SCard(ctx, s.connKey(userID)).Result()
	if err != nil {
		return err
	}
	if cnt > 0 {
		return nil
	}
	return s.setState(ctx, userID, StatusRecently)
}

// Touch refreshes last_seen for an online user; called on socket traffic.
func (s *Store) Touch(ctx context.Context, userID string) error {
	return s.setState(ctx, userID, StatusOnline)
}

func (s *Store) setState(ctx context.Context, userID, status string) error {
	b, _ := json.Marshal(state{Status: status, LastSeen: time.Now().Unix()})
	return s.client.Set(ctx, s.presenceKey(userID), b, 0).Err()
}

// IsOnline reports whether the user has at least one live connection.
func (s *Store) IsOnline(ctx context.Context, userID string) (bool, error) {
	cnt, err := s.client.SCard(ctx, s.connKey(userID)).Result()
	if err != nil {
		return false, err
	}
	return cnt > 0, nil
}

// ActiveWithin reports whether the user is online and was seen within d.
// Used by notification routing to skip push for actively engaged users.
func (s *Store) ActiveWithin(ctx context.Context, userID string, d time.Duration) (bool, error) {
	b, err := s.client.Get(ctx, s.presenceKey(userID)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	var st state
	if err := json.Unmarshal(b, &st); err != nil {
		return false, err
	}
	if st.Status != StatusOnline {
		return false, nil
	}
	return time.Since(time.Unix(st.LastSeen, 0)) < d, nil
}

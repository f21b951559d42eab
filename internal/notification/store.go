// Package notification projects user-facing lifecycle events into a per-user,
// append-only log kept in Redis, newest first.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

type Notification struct {
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Seen      bool      `json:"seen"`
	Timestamp time.Time `json:"timestamp"`
}

// Store appends and reads per-user notification logs. Each user's log is a
// Redis list; LPUSH keeps the newest entry at the head so a plain LRANGE
// returns newest-first.
type Store struct {
	rdb    *redis.Client
	logger *log.Logger
}

func NewStore(rdb *redis.Client, logger *log.Logger) *Store {
	return &Store{rdb: rdb, logger: logger}
}

func userKey(userID string) string {
	return "notifications:user:" + userID
}

func (s *Store) Append(ctx context.Context, userID string, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := s.rdb.LPush(ctx, userKey(userID), body).Err(); err != nil {
		return fmt.Errorf("lpush %s: %w", userKey(userID), err)
	}
	return nil
}

// List returns the user's notifications, newest first. Entries that fail to
// unmarshal are skipped; one corrupt entry must not hide the rest.
func (s *Store) List(ctx context.Context, userID string) ([]Notification, error) {
	raw, err := s.rdb.LRange(ctx, userKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange %s: %w", userKey(userID), err)
	}

	out := make([]Notification, 0, len(raw))
	for _, entry := range raw {
		var n Notification
		if err := json.Unmarshal([]byte(entry), &n); err != nil {
			s.logger.Printf("skipping corrupt notification for user %s: %v", userID, err)
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/m3rciful/rabiesbot/internal/conversation"
)

const defaultKeyPrefix = "rabiesbot:session:"

// RedisStore keeps sessions as JSON values without expiry.
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
}

// NewRedisStore wraps a connected client. An empty prefix selects the default.
func NewRedisStore(rdb redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (r *RedisStore) key(id int64) string {
	return r.prefix + strconv.FormatInt(id, 10)
}

// Get loads the session for id.
func (r *RedisStore) Get(ctx context.Context, id int64) (*conversation.Session, bool, error) {
	data, err := r.rdb.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("session: redis get %d: %w", id, err)
	}
	var sess conversation.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, false, fmt.Errorf("session: decode %d: %w", id, err)
	}
	return &sess, true, nil
}

// Put stores s with no TTL.
func (r *RedisStore) Put(ctx context.Context, s *conversation.Session) error {
	if s == nil {
		return ErrNilSession
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("session: encode %d: %w", s.ID, err)
	}
	if err := r.rdb.Set(ctx, r.key(s.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("session: redis set %d: %w", s.ID, err)
	}
	return nil
}

// Close closes the client.
func (r *RedisStore) Close() error {
	return r.rdb.Close()
}

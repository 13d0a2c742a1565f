package memory

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces history keys.
const DefaultRedisPrefix = "parrot:history:"

// RedisStore implements Store with one Redis string key per user.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to the Redis server at rawURL
// (redis://[:password@]host:port/db) and verifies the connection.
func NewRedisStore(ctx context.Context, rawURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("memory: parse redis url: %w", err)
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("memory: connect to redis: %w", err)
	}
	return NewRedisStoreWithClient(rdb, DefaultRedisPrefix), nil
}

// NewRedisStoreWithClient wraps an existing client. Keys are prefix+user.
func NewRedisStoreWithClient(rdb *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: rdb, prefix: prefix}
}

// Key returns the Redis key holding user's history.
func (s *RedisStore) Key(user string) string {
	return s.prefix + user
}

// Load returns the stored document, or nil when the key does not exist.
func (s *RedisStore) Load(ctx context.Context, user string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.Key(user)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Save stores the document without expiry.
func (s *RedisStore) Save(ctx context.Context, user string, data []byte) error {
	return s.client.Set(ctx, s.Key(user), data, 0).Err()
}

// Delete removes user's history.
func (s *RedisStore) Delete(ctx context.Context, user string) error {
	return s.client.Del(ctx, s.Key(user)).Err()
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

var _ Store = (*RedisStore)(nil)

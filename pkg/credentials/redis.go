package credentials

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is where the shared session document lives.
const DefaultRedisKey = "productfetch:credentials"

// ErrNotFound indicates no credentials are stored under the key.
var ErrNotFound = errors.New("credentials not found")

// RedisStore shares one browser-session document between hosts that call the
// batch service, so a rotated cookie only has to be pushed once.
type RedisStore struct {
	redis *redis.Client
	key   string
}

// NewRedisStore creates a store bound to key. An empty key uses DefaultRedisKey.
func NewRedisStore(redisClient *redis.Client, key string) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{
		redis: redisClient,
		key:   key,
	}
}

// Key returns the redis key the store reads and writes.
func (s *RedisStore) Key() string {
	return s.key
}

// Load fetches the stored bundle.
// Returns ErrNotFound if nothing is stored.
func (s *RedisStore) Load(ctx context.Context) (Bundle, error) {
	data, err := s.redis.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			credentialLoads.WithLabelValues("redis", "miss").Inc()
			return Bundle{}, ErrNotFound
		}
		credentialLoads.WithLabelValues("redis", "error").Inc()
		return Bundle{}, fmt.Errorf("redis get: %w", err)
	}

	b, err := Parse(data)
	if err != nil {
		credentialLoads.WithLabelValues("redis", "error").Inc()
		return Bundle{}, err
	}

	credentialLoads.WithLabelValues("redis", "ok").Inc()
	return b, nil
}

// Save stores the bundle. A ttl of zero keeps it until overwritten.
func (s *RedisStore) Save(ctx context.Context, b Bundle, ttl time.Duration) error {
	if b.IsZero() {
		return ErrNoCookies
	}

	data, err := Marshal(b)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes the stored bundle.
func (s *RedisStore) Delete(ctx context.Context) error {
	if err := s.redis.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

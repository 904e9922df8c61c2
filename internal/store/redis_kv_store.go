package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// compareAndDeleteScript deletes the key only when it still holds the
// expected value. The read-compare-delete must be one atomic step so a
// holder whose lease expired cannot delete a lease re-acquired by someone
// else in between.
var compareAndDeleteScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("del", KEYS[1])
end
return 0
`)

// RedisKVStore implements KeyValueStore for Redis
type RedisKVStore struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisKVStore creates a new Redis key-value store
func NewRedisKVStore(host string, port int, password string, db int, logger *zap.Logger) (*RedisKVStore, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisKVStore{
		client: client,
		logger: logger,
	}, nil
}

// Client exposes the underlying client for components that need stream or
// scripting commands beyond the KeyValueStore surface.
func (s *RedisKVStore) Client() *redis.Client {
	return s.client
}

// Get retrieves a value
func (s *RedisKVStore) Get(ctx context.Context, key string) (string, error) {
	value, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// Set stores a value with a TTL (zero TTL means no expiration)
func (s *RedisKVStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

// SetNX stores a value only if the key is absent
func (s *RedisKVStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, key, value, ttl).Result()
}

// Delete removes a key
func (s *RedisKVStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

// CompareAndDelete atomically deletes the key if it holds the expected value
func (s *RedisKVStore) CompareAndDelete(ctx context.Context, key, expected string) (bool, error) {
	deleted, err := compareAndDeleteScript.Run(ctx, s.client, []string{key}, expected).Int64()
	if err != nil {
		return false, fmt.Errorf("compare-and-delete failed: %w", err)
	}
	return deleted == 1, nil
}

// Increment atomically increments the counter at key
func (s *RedisKVStore) Increment(ctx context.Context, key string) (int64, error) {
	return s.client.Incr(ctx, key).Result()
}

// Ping checks the Redis connection
func (s *RedisKVStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis client
func (s *RedisKVStore) Close() error {
	return s.client.Close()
}

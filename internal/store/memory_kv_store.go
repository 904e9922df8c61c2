package store

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// MemoryKVStore implements KeyValueStore using an in-memory map. It mirrors
// the atomicity of the Redis implementation (every operation runs under one
// mutex) so concurrency behavior carries over to tests.
type MemoryKVStore struct {
	mu   sync.Mutex
	data map[string]*memoryItem
}

type memoryItem struct {
	value     string
	expiresAt time.Time // zero means no expiration
}

// NewMemoryKVStore creates a new in-memory key-value store
func NewMemoryKVStore() *MemoryKVStore {
	return &MemoryKVStore{
		data: make(map[string]*memoryItem),
	}
}

func (s *MemoryKVStore) live(key string) (*memoryItem, bool) {
	item, ok := s.data[key]
	if !ok {
		return nil, false
	}
	if !item.expiresAt.IsZero() && time.Now().After(item.expiresAt) {
		delete(s.data, key)
		return nil, false
	}
	return item, true
}

// Get retrieves a value
func (s *MemoryKVStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.live(key)
	if !ok {
		return "", ErrNotFound
	}
	return item.value, nil
}

// Set stores a value with a TTL (zero TTL means no expiration)
func (s *MemoryKVStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := &memoryItem{value: value}
	if ttl > 0 {
		item.expiresAt = time.Now().Add(ttl)
	}
	s.data[key] = item
	return nil
}

// SetNX stores a value only if the key is absent
func (s *MemoryKVStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.live(key); ok {
		return false, nil
	}
	item := &memoryItem{value: value}
	if ttl > 0 {
		item.expiresAt = time.Now().Add(ttl)
	}
	s.data[key] = item
	return true, nil
}

// Delete removes a key
func (s *MemoryKVStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	return nil
}

// CompareAndDelete atomically deletes the key if it holds the expected value
func (s *MemoryKVStore) CompareAndDelete(ctx context.Context, key, expected string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.live(key)
	if !ok || item.value != expected {
		return false, nil
	}
	delete(s.data, key)
	return true, nil
}

// Increment atomically increments the counter at key
func (s *MemoryKVStore) Increment(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current int64
	if item, ok := s.live(key); ok {
		parsed, err := strconv.ParseInt(item.value, 10, 64)
		if err != nil {
			return 0, err
		}
		current = parsed
	}
	current++
	s.data[key] = &memoryItem{value: strconv.FormatInt(current, 10)}
	return current, nil
}

// Ping always succeeds for the in-memory store
func (s *MemoryKVStore) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store
func (s *MemoryKVStore) Close() error {
	return nil
}

package service

import (
	"context"
	"fmt"
	"time"

	"github.com/flashmart/seckill/internal/store"
	"go.uber.org/zap"
)

const (
	// idEpoch is 2022-01-01T00:00:00Z. IDs are seconds since this epoch in
	// the high 32 bits, so they stay positive and roughly sortable by time.
	idEpoch = 1640995200

	sequenceBits = 32
)

// IDGenerator produces globally-unique 64-bit ids:
// (secondsSinceEpoch << 32) | perSecondSequence. The sequence is an atomic
// counter in the KV store scoped by key prefix and calendar day, so it never
// collides across restarts within the same day and allows 2^32 ids per
// prefix per day. Monotonicity holds as long as the wall clock does not go
// backward; clock regression is not corrected.
type IDGenerator struct {
	kv     store.KeyValueStore
	logger *zap.Logger
}

// NewIDGenerator creates a new distributed ID generator
func NewIDGenerator(kv store.KeyValueStore, logger *zap.Logger) *IDGenerator {
	return &IDGenerator{
		kv:     kv,
		logger: logger,
	}
}

// NextID returns the next id for the given key prefix
func (g *IDGenerator) NextID(ctx context.Context, prefix string) (int64, error) {
	now := time.Now().UTC()
	timestamp := now.Unix() - idEpoch

	counterKey := fmt.Sprintf("icr:%s:%s", prefix, now.Format("2006:01:02"))
	sequence, err := g.kv.Increment(ctx, counterKey)
	if err != nil {
		return 0, fmt.Errorf("failed to increment id counter: %w", err)
	}

	return timestamp<<sequenceBits | sequence, nil
}

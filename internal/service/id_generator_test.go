package service

import (
	"context"
	"sync"
	"testing"

	"github.com/flashmart/seckill/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNextID_Unique(t *testing.T) {
	gen := NewIDGenerator(store.NewMemoryKVStore(), zap.NewNop())
	ctx := context.Background()

	seen := make(map[int64]bool)
	for i := 0; i < 1000; i++ {
		id, err := gen.NextID(ctx, "order")
		require.NoError(t, err)
		assert.False(t, seen[id], "id %d issued twice", id)
		seen[id] = true
	}
}

func TestNextID_UniqueUnderConcurrency(t *testing.T) {
	gen := NewIDGenerator(store.NewMemoryKVStore(), zap.NewNop())
	ctx := context.Background()

	const goroutines = 50
	const perGoroutine = 100

	var mu sync.Mutex
	seen := make(map[int64]bool)
	var wg sync.WaitGroup

	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				id, err := gen.NextID(ctx, "order")
				if err != nil {
					t.Error(err)
					return
				}
				mu.Lock()
				if seen[id] {
					t.Errorf("id %d issued twice", id)
				}
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, goroutines*perGoroutine)
}

func TestNextID_PrefixesAreIndependent(t *testing.T) {
	gen := NewIDGenerator(store.NewMemoryKVStore(), zap.NewNop())
	ctx := context.Background()

	orderID, err := gen.NextID(ctx, "order")
	require.NoError(t, err)
	refundID, err := gen.NextID(ctx, "refund")
	require.NoError(t, err)

	// Both prefixes start their own sequence at 1.
	assert.Equal(t, orderID&0xFFFFFFFF, refundID&0xFFFFFFFF)
}

func TestNextID_TimestampInHighBits(t *testing.T) {
	gen := NewIDGenerator(store.NewMemoryKVStore(), zap.NewNop())

	id, err := gen.NextID(context.Background(), "order")
	require.NoError(t, err)

	assert.Positive(t, id)
	assert.Positive(t, id>>sequenceBits, "seconds-since-epoch part must be set")
}

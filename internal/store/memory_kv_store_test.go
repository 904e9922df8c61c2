package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryKV_SetGet(t *testing.T) {
	kv := NewMemoryKVStore()
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "k", "v", time.Minute))
	value, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", value)

	_, err = kv.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryKV_EmptyStringIsAValue(t *testing.T) {
	kv := NewMemoryKVStore()
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "k", "", time.Minute))
	value, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "", value)
}

func TestMemoryKV_TTLExpiry(t *testing.T) {
	kv := NewMemoryKVStore()
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "k", "v", 10*time.Millisecond))
	time.Sleep(20 * time.Millisecond)

	_, err := kv.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryKV_SetNX(t *testing.T) {
	kv := NewMemoryKVStore()
	ctx := context.Background()

	created, err := kv.SetNX(ctx, "k", "first", time.Minute)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = kv.SetNX(ctx, "k", "second", time.Minute)
	require.NoError(t, err)
	assert.False(t, created)

	value, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "first", value)
}

func TestMemoryKV_SetNXAfterExpiry(t *testing.T) {
	kv := NewMemoryKVStore()
	ctx := context.Background()

	created, err := kv.SetNX(ctx, "k", "first", 10*time.Millisecond)
	require.NoError(t, err)
	require.True(t, created)

	time.Sleep(20 * time.Millisecond)

	created, err = kv.SetNX(ctx, "k", "second", time.Minute)
	require.NoError(t, err)
	assert.True(t, created)
}

func TestMemoryKV_CompareAndDelete(t *testing.T) {
	kv := NewMemoryKVStore()
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "k", "token-a", time.Minute))

	deleted, err := kv.CompareAndDelete(ctx, "k", "token-b")
	require.NoError(t, err)
	assert.False(t, deleted)

	deleted, err = kv.CompareAndDelete(ctx, "k", "token-a")
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = kv.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryKV_IncrementConcurrent(t *testing.T) {
	kv := NewMemoryKVStore()
	ctx := context.Background()

	const goroutines = 20
	const perGoroutine = 50

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				if _, err := kv.Increment(ctx, "counter"); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()

	final, err := kv.Increment(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, int64(goroutines*perGoroutine+1), final)
}

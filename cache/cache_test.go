package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/versioned/config"
	"github.com/wyfcoding/versioned/logging"
)

type result struct {
	Value   int64 `json:"value"`
	Version int   `json:"version"`
}

// mapCache 内存实现的二级缓存，fail 为 true 时模拟故障。
type mapCache struct {
	mu   sync.Mutex
	data map[string]any
	fail bool
}

func newMapCache() *mapCache { return &mapCache{data: map[string]any{}} }

func (m *mapCache) Get(_ context.Context, key string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("down")
	}
	v, ok := m.data[key]
	if !ok {
		return ErrCacheMiss
	}
	*(value.(*result)) = v.(result)
	return nil
}

func (m *mapCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("down")
	}
	m.data[key] = *(value.(*result))
	return nil
}

func (m *mapCache) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *mapCache) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok, nil
}

func (m *mapCache) Close() error { return nil }

func newBig(t *testing.T) *BigCache {
	t.Helper()
	bc, err := NewBigCache(context.Background(), config.BigCacheConfig{LifeWindow: time.Minute, Shards: 16}, "test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = bc.Close() })
	return bc
}

func TestBigCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	bc := newBig(t)

	var got result
	assert.ErrorIs(t, bc.Get(ctx, "k", &got), ErrCacheMiss)

	require.NoError(t, bc.Set(ctx, "k", &result{Value: 45, Version: 1}, 0))
	require.NoError(t, bc.Get(ctx, "k", &got))
	assert.Equal(t, result{Value: 45, Version: 1}, got)

	ok, err := bc.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, bc.Delete(ctx, "k", "absent"))
	ok, err = bc.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMultiLevelBackfillsL1(t *testing.T) {
	ctx := context.Background()
	l1 := newBig(t)
	l2 := newMapCache()
	mc := NewMultiLevelCache(l1, l2, logging.NewLogger("test", "cache"))

	l2.data["q"] = result{Value: 7}
	var got result
	require.NoError(t, mc.Get(ctx, "q", &got))
	assert.Equal(t, int64(7), got.Value)

	ok, err := l1.Exists(ctx, "q")
	require.NoError(t, err)
	assert.True(t, ok, "L2 hit must be copied into L1")
}

func TestMultiLevelTreatsL2FailureAsMiss(t *testing.T) {
	ctx := context.Background()
	l2 := newMapCache()
	l2.fail = true
	mc := NewMultiLevelCache(newBig(t), l2, logging.NewLogger("test", "cache"))

	var got result
	assert.ErrorIs(t, mc.Get(ctx, "q", &got), ErrCacheMiss)
	assert.Error(t, mc.Set(ctx, "q", &result{Value: 1}, time.Minute))
}

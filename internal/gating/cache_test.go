package gating

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 8, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeStore 模拟需求表
type fakeStore struct {
	mu      sync.Mutex
	enabled map[string]bool
	loads   int
	err     error
}

func newFakeStore(keys ...string) *fakeStore {
	s := &fakeStore{enabled: map[string]bool{}}
	for _, k := range keys {
		s.enabled[k] = true
	}
	return s
}

func (s *fakeStore) EnabledKeys(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	if s.err != nil {
		return nil, s.err
	}
	var keys []string
	for k, on := range s.enabled {
		if on {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (s *fakeStore) set(key string, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled[key] = on
}

func (s *fakeStore) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func TestCacheTTL(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := newFakeStore("roster")
	cache := NewCache(store, time.Minute, WithClock(clock.Now))

	ok, err := cache.IsEnabled(ctx, "roster")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, store.loads)

	t.Run("有效期内不重新加载", func(t *testing.T) {
		store.set("roster", false)
		clock.Advance(30 * time.Second)
		ok, err := cache.IsEnabled(ctx, "roster")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 1, store.loads)
	})

	t.Run("过期后重新加载", func(t *testing.T) {
		clock.Advance(31 * time.Second)
		ok, err := cache.IsEnabled(ctx, "roster")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, 2, store.loads)
	})
}

func TestCacheInvalidate(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := newFakeStore("roster", "action-plan")
	cache := NewCache(store, time.Hour, WithClock(clock.Now))
	require.NoError(t, cache.Refresh(ctx, false))

	t.Run("变更后立即生效", func(t *testing.T) {
		store.set("roster", false)
		require.NoError(t, cache.Invalidate(ctx))
		ok, err := cache.IsEnabled(ctx, "roster")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("有效期内连续两次切换以最后一次为准", func(t *testing.T) {
		store.set("action-plan", false)
		require.NoError(t, cache.Invalidate(ctx))
		store.set("action-plan", true)
		require.NoError(t, cache.Invalidate(ctx))
		store.set("action-plan", false)
		require.NoError(t, cache.Invalidate(ctx))

		ok, err := cache.IsEnabled(ctx, "action-plan")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestCacheLoadFailure(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()

	t.Run("从未加载成功时返回错误", func(t *testing.T) {
		store := newFakeStore("roster")
		store.fail(errors.New("connection refused"))
		cache := NewCache(store, time.Minute, WithClock(clock.Now))

		_, err := cache.IsEnabled(ctx, "roster")
		require.Error(t, err)
		assert.True(t, cache.Snapshot().Stale)
	})

	t.Run("已有数据时继续使用旧集合", func(t *testing.T) {
		store := newFakeStore("roster")
		cache := NewCache(store, time.Minute, WithClock(clock.Now))
		require.NoError(t, cache.Refresh(ctx, false))

		store.fail(errors.New("connection refused"))
		clock.Advance(2 * time.Minute)

		ok, err := cache.IsEnabled(ctx, "roster")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.True(t, cache.Snapshot().Stale)

		store.fail(nil)
		store.set("roster", false)
		ok, err = cache.IsEnabled(ctx, "roster")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("强制刷新失败后下次检查重新加载", func(t *testing.T) {
		store := newFakeStore("roster")
		cache := NewCache(store, time.Hour, WithClock(clock.Now))
		require.NoError(t, cache.Refresh(ctx, false))

		store.fail(errors.New("timeout"))
		store.set("roster", false)
		require.Error(t, cache.Invalidate(ctx))

		store.fail(nil)
		loads := store.loads
		ok, err := cache.IsEnabled(ctx, "roster")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, loads+1, store.loads)
	})
}

// sequencedLoader 按调用顺序返回结果，可控制每次加载何时完成
type sequencedLoader struct {
	mu      sync.Mutex
	calls   int
	results [][]string
	gates   []chan struct{}
}

func (l *sequencedLoader) EnabledKeys(ctx context.Context) ([]string, error) {
	l.mu.Lock()
	i := l.calls
	l.calls++
	l.mu.Unlock()
	<-l.gates[i]
	return l.results[i], nil
}

func TestCacheStaleLoadDoesNotOverwrite(t *testing.T) {
	ctx := context.Background()
	loader := &sequencedLoader{
		results: [][]string{{"roster"}, {}},
		gates:   []chan struct{}{make(chan struct{}), make(chan struct{})},
	}
	cache := NewCache(loader, time.Hour)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = cache.Invalidate(ctx) // 较早的加载，读到旧数据
	}()

	require.Eventually(t, func() bool {
		loader.mu.Lock()
		defer loader.mu.Unlock()
		return loader.calls == 1
	}, time.Second, time.Millisecond)

	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = cache.Invalidate(ctx) // 较新的加载，先完成
	}()
	require.Eventually(t, func() bool {
		loader.mu.Lock()
		defer loader.mu.Unlock()
		return loader.calls == 2
	}, time.Second, time.Millisecond)

	close(loader.gates[1])
	require.Eventually(t, func() bool {
		return !cache.Snapshot().LastRefresh.IsZero()
	}, time.Second, time.Millisecond)
	close(loader.gates[0])
	wg.Wait()

	assert.Empty(t, cache.Snapshot().EnabledKeys)
}

func TestCacheSnapshot(t *testing.T) {
	store := newFakeStore("roster", "action-plan")
	cache := NewCache(store, 0)
	require.NoError(t, cache.Refresh(context.Background(), false))

	snap := cache.Snapshot()
	assert.Equal(t, []string{"action-plan", "roster"}, snap.EnabledKeys)
	assert.False(t, snap.Stale)
	assert.False(t, snap.LastRefresh.IsZero())
}

package gating

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/Locquiano101/CnscCodexMain-sub000/internal/logger"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/metrics"

	"go.uber.org/zap"
)

// DefaultTTL 默认缓存有效期
const DefaultTTL = 60 * time.Second

// Loader 加载当前启用的需求 key
type Loader interface {
	EnabledKeys(ctx context.Context) ([]string, error)
}

// LoaderFunc 函数适配器
type LoaderFunc func(ctx context.Context) ([]string, error)

// EnabledKeys 实现 Loader
func (f LoaderFunc) EnabledKeys(ctx context.Context) ([]string, error) {
	return f(ctx)
}

// Snapshot 缓存当前状态
type Snapshot struct {
	EnabledKeys []string  `json:"enabledKeys"`
	LastRefresh time.Time `json:"lastRefresh"`
	Stale       bool      `json:"stale"`
}

// Option 缓存可选项
type Option func(*Cache)

// WithClock 替换时钟（测试用）
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// Cache 启用需求集合的 TTL 缓存。
// 需求变更时通过 Invalidate 强制刷新；两次变更之间的读取最多滞后一个 TTL。
type Cache struct {
	loader Loader
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger

	mu          sync.Mutex
	keys        map[string]struct{}
	loaded      bool
	stale       bool
	lastRefresh time.Time
	// 加载序号：较早发起的加载晚于较新的加载完成时丢弃其结果
	issued  uint64
	applied uint64
}

// NewCache 创建门控缓存
func NewCache(loader Loader, ttl time.Duration, opts ...Option) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{
		loader: loader,
		ttl:    ttl,
		now:    time.Now,
		logger: logger.Get(),
		keys:   map[string]struct{}{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Refresh 未过期且非强制时直接返回；否则从 loader 重新加载。
// 加载失败时若已有旧集合则继续使用并标记过期（强制刷新仍返回错误），从未加载成功则返回错误。
func (c *Cache) Refresh(ctx context.Context, force bool) error {
	c.mu.Lock()
	if !force && c.fresh() {
		c.mu.Unlock()
		return nil
	}
	c.issued++
	seq := c.issued
	c.mu.Unlock()

	keys, err := c.loader.EnabledKeys(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	forced := strconv.FormatBool(force)

	if err != nil {
		metrics.GatingCacheReloadsTotal.WithLabelValues("error", forced).Inc()
		if seq > c.applied {
			c.applied = seq
			c.stale = true
		}
		if !c.loaded {
			return fmt.Errorf("加载启用需求失败: %w", err)
		}
		c.logger.Warn("门控缓存刷新失败，继续使用旧数据",
			zap.Bool("forced", force),
			zap.Time("last_refresh", c.lastRefresh),
			zap.Error(err),
		)
		if force {
			return fmt.Errorf("刷新启用需求失败: %w", err)
		}
		return nil
	}

	if seq <= c.applied {
		metrics.GatingCacheReloadsTotal.WithLabelValues("discarded", forced).Inc()
		return nil
	}

	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	c.keys = set
	c.applied = seq
	c.loaded = true
	c.stale = false
	c.lastRefresh = c.now()
	metrics.GatingCacheReloadsTotal.WithLabelValues("success", forced).Inc()
	return nil
}

// fresh 调用方持有锁
func (c *Cache) fresh() bool {
	return c.loaded && !c.stale && c.now().Sub(c.lastRefresh) < c.ttl
}

// IsEnabled 需求是否启用
func (c *Cache) IsEnabled(ctx context.Context, key string) (bool, error) {
	if err := c.Refresh(ctx, false); err != nil {
		return false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.keys[key]
	return ok, nil
}

// Invalidate 强制刷新，需求目录每次变更后同步调用
func (c *Cache) Invalidate(ctx context.Context) error {
	return c.Refresh(ctx, true)
}

// Snapshot 返回当前缓存内容（不触发加载）
func (c *Cache) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(c.keys))
	for k := range c.keys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return Snapshot{EnabledKeys: keys, LastRefresh: c.lastRefresh, Stale: c.stale || !c.loaded}
}

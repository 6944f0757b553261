package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/Locquiano101/CnscCodexMain-sub000/internal/auth"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/common"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/config"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/logger"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Store 固定窗口计数存储
type Store interface {
	// Hit 计数加一，返回当前窗口内的计数与窗口结束时间
	Hit(ctx context.Context, key string, window time.Duration) (count int64, resetAt time.Time, err error)
}

// ============================================================================
// 内存存储
// ============================================================================

type bucket struct {
	count   int64
	resetAt time.Time
}

// MemoryStore 进程内存储，定期清理过期窗口
type MemoryStore struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	now      func() time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewMemoryStore 创建内存存储，sweepInterval > 0 时启动清理协程
func NewMemoryStore(sweepInterval time.Duration, now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	m := &MemoryStore{
		buckets: make(map[string]*bucket),
		now:     now,
		stopCh:  make(chan struct{}),
	}
	if sweepInterval > 0 {
		go m.sweepLoop(sweepInterval)
	}
	return m
}

// Hit 实现 Store
func (m *MemoryStore) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	b, ok := m.buckets[key]
	if !ok || !now.Before(b.resetAt) {
		b = &bucket{resetAt: now.Add(window)}
		m.buckets[key] = b
	}
	b.count++
	return b.count, b.resetAt, nil
}

// Sweep 删除已过期的窗口，返回删除数量
func (m *MemoryStore) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for key, b := range m.buckets {
		if !now.Before(b.resetAt) {
			delete(m.buckets, key)
			removed++
		}
	}
	return removed
}

// Len 当前窗口数
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buckets)
}

func (m *MemoryStore) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				logger.Debug("清理过期限流窗口", zap.Int("removed", n))
			}
		case <-m.stopCh:
			return
		}
	}
}

// Stop 停止清理协程
func (m *MemoryStore) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

// ============================================================================
// Redis 存储（多实例共享计数）
// ============================================================================

// RedisStore 基于 INCR + PEXPIRE 的固定窗口
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisStore 创建 Redis 存储
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "ratelimit:"
	}
	return &RedisStore{client: client, prefix: prefix, now: time.Now}
}

// Hit 实现 Store。首次计数时设置过期时间；过期时间丢失时补设。
func (r *RedisStore) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	full := r.prefix + key

	count, err := r.client.Incr(ctx, full).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis incr 失败: %w", err)
	}
	if count == 1 {
		if err := r.client.PExpire(ctx, full, window).Err(); err != nil {
			return 0, time.Time{}, fmt.Errorf("redis pexpire 失败: %w", err)
		}
		return count, r.now().Add(window), nil
	}

	ttl, err := r.client.PTTL(ctx, full).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis pttl 失败: %w", err)
	}
	if ttl < 0 {
		if err := r.client.PExpire(ctx, full, window).Err(); err != nil {
			return 0, time.Time{}, fmt.Errorf("redis pexpire 失败: %w", err)
		}
		ttl = window
	}
	return count, r.now().Add(ttl), nil
}

// ============================================================================
// Gin 中间件
// ============================================================================

// RuleSource 按动作名查规则
type RuleSource interface {
	Rule(action string) config.RateLimitRule
}

// RateLimiter 按 (动作, 操作者) 的固定窗口限流
type RateLimiter struct {
	store Store
	rules RuleSource
	now   func() time.Time
}

// NewRateLimiter 创建限流器，now 为 nil 时使用系统时钟
func NewRateLimiter(store Store, rules RuleSource, now func() time.Time) *RateLimiter {
	if now == nil {
		now = time.Now
	}
	return &RateLimiter{store: store, rules: rules, now: now}
}

// Limit 返回指定动作的限流中间件
func (rl *RateLimiter) Limit(action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		rule := rl.rules.Rule(action)
		if rule.Max <= 0 || rule.Window <= 0 {
			c.Next()
			return
		}

		actor := c.ClientIP()
		if p, ok := auth.GetPrincipal(c); ok && p.ID != "" {
			actor = p.ID
		}

		ctx := c.Request.Context()
		count, resetAt, err := rl.store.Hit(ctx, action+":"+actor, rule.Window)
		if err != nil {
			// 存储不可用时放行
			metrics.RateLimiterErrorsTotal.WithLabelValues(action).Inc()
			logger.WithContext(ctx).Warn("限流存储不可用，放行请求",
				zap.String("action", action),
				zap.Error(err),
			)
			c.Next()
			return
		}

		if count > int64(rule.Max) {
			metrics.RateLimitedTotal.WithLabelValues(action).Inc()
			c.Header("Retry-After", strconv.Itoa(retryAfter(resetAt.Sub(rl.now()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"code":    common.CodeRateLimited,
				"message": "Too many requests, please try again later",
			})
			return
		}

		c.Next()
	}
}

// retryAfter 向上取整到秒，最少 1 秒
func retryAfter(remaining time.Duration) int {
	secs := int(math.Ceil(remaining.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

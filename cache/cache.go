// Package cache 提供缓存抽象和多种实现：BigCache 本地缓存、带熔断的 Redis 缓存以及二者组合的多级缓存。
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"

	"github.com/wyfcoding/versioned/config"
	"github.com/wyfcoding/versioned/logging"
	"github.com/wyfcoding/versioned/redis"
)

// ErrCacheMiss 键不存在或已过期。
var ErrCacheMiss = errors.New("cache miss")

var (
	cacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "The total number of cache hits",
		},
		[]string{"prefix"},
	)
	cacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "The total number of cache misses",
		},
		[]string{"prefix"},
	)
	cacheDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cache_operation_duration_seconds",
			Help:    "The duration of cache operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"prefix", "operation"},
	)
)

// Collectors 返回本包的指标，由调用方注册到自己的注册表。
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{cacheHits, cacheMisses, cacheDuration}
}

// Cache defines the cache interface
type Cache interface {
	Get(ctx context.Context, key string, value any) error
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	Close() error
}

// RedisCache implements Cache using Redis
type RedisCache struct {
	client  *redis.Client
	cleanup func()
	prefix  string
	cb      *gobreaker.CircuitBreaker
}

// NewRedisCache 创建 Redis 缓存，所有命令经过熔断器。
func NewRedisCache(ctx context.Context, cfg config.RedisConfig, cbCfg config.CircuitBreakerConfig, prefix string, logger *logging.Logger) (*RedisCache, error) {
	client, cleanup, err := redis.NewClient(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	timeout := cbCfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "redis-cache",
		MaxRequests: cbCfg.MaxRequests,
		Interval:    cbCfg.Interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 10 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
		// 未命中不是故障。
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrCacheMiss)
		},
	})

	return &RedisCache{client: client, cleanup: cleanup, prefix: prefix, cb: cb}, nil
}

func (c *RedisCache) buildKey(key string) string {
	if c.prefix == "" {
		return key
	}
	return c.prefix + ":" + key
}

func (c *RedisCache) observe(op string, start time.Time) {
	cacheDuration.WithLabelValues(c.prefix, op).Observe(time.Since(start).Seconds())
}

// Get 从缓存中获取值。value 必须是指针。
func (c *RedisCache) Get(ctx context.Context, key string, value any) error {
	defer c.observe("get", time.Now())

	fullKey := c.buildKey(key)
	_, err := c.cb.Execute(func() (any, error) {
		data, err := c.client.Get(ctx, fullKey).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				cacheMisses.WithLabelValues(c.prefix).Inc()
				return nil, ErrCacheMiss
			}
			return nil, err
		}
		cacheHits.WithLabelValues(c.prefix).Inc()
		return nil, json.Unmarshal(data, value)
	})
	return err
}

// Set 设置缓存值，value 以 JSON 序列化存储。
func (c *RedisCache) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	defer c.observe("set", time.Now())

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}
	fullKey := c.buildKey(key)
	_, err = c.cb.Execute(func() (any, error) {
		return nil, c.client.Set(ctx, fullKey, data, expiration).Err()
	})
	return err
}

// Delete 从缓存中删除值。
func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	defer c.observe("delete", time.Now())

	if len(keys) == 0 {
		return nil
	}
	fullKeys := make([]string, len(keys))
	for i, key := range keys {
		fullKeys[i] = c.buildKey(key)
	}
	_, err := c.cb.Execute(func() (any, error) {
		return nil, c.client.Del(ctx, fullKeys...).Err()
	})
	return err
}

// Exists 检查 key 是否存在。
func (c *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	defer c.observe("exists", time.Now())

	fullKey := c.buildKey(key)
	result, err := c.cb.Execute(func() (any, error) {
		n, err := c.client.Exists(ctx, fullKey).Result()
		if err != nil {
			return false, err
		}
		return n > 0, nil
	})
	if err != nil {
		return false, err
	}
	return result.(bool), nil
}

// Close 关闭 Redis 客户端。
func (c *RedisCache) Close() error {
	if c.cleanup != nil {
		c.cleanup()
	}
	return nil
}

// Client 底层 Redis 客户端，供健康检查使用。
func (c *RedisCache) Client() *redis.Client {
	return c.client
}

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/allegro/bigcache/v3"

	"github.com/wyfcoding/versioned/config"
)

// BigCache 实现了 `Cache` 接口，使用 `allegro/bigcache` 作为底层存储。
// BigCache 只支持全局 TTL，Set 的 expiration 参数被忽略。
type BigCache struct {
	cache  *bigcache.BigCache
	prefix string
}

// NewBigCache 按配置创建本地缓存。
func NewBigCache(ctx context.Context, cfg config.BigCacheConfig, prefix string) (*BigCache, error) {
	life := cfg.LifeWindow
	if life <= 0 {
		life = 10 * time.Minute
	}
	bc := bigcache.DefaultConfig(life)
	if cfg.CleanWindow > 0 {
		bc.CleanWindow = cfg.CleanWindow
	} else {
		bc.CleanWindow = 5 * time.Minute
	}
	if cfg.Shards > 0 {
		bc.Shards = cfg.Shards
	}
	if cfg.MaxEntrySize > 0 {
		bc.MaxEntrySize = cfg.MaxEntrySize
	}
	bc.HardMaxCacheSize = cfg.HardMaxCacheSize // MB，0 为不限。
	bc.Verbose = cfg.Verbose

	cache, err := bigcache.New(ctx, bc)
	if err != nil {
		return nil, fmt.Errorf("init bigcache: %w", err)
	}
	return &BigCache{cache: cache, prefix: prefix}, nil
}

// Get 从BigCache中获取指定键的值。value 必须是指针。
func (c *BigCache) Get(_ context.Context, key string, value any) error {
	data, err := c.cache.Get(key)
	if err != nil {
		if errors.Is(err, bigcache.ErrEntryNotFound) {
			cacheMisses.WithLabelValues(c.prefix).Inc()
			return ErrCacheMiss
		}
		return err
	}
	cacheHits.WithLabelValues(c.prefix).Inc()
	return json.Unmarshal(data, value)
}

// Set 写入键值对。
func (c *BigCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.cache.Set(key, data)
}

// Delete 删除一个或多个键，键不存在不算错误。
func (c *BigCache) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		if err := c.cache.Delete(key); err != nil && !errors.Is(err, bigcache.ErrEntryNotFound) {
			return err
		}
	}
	return nil
}

// Exists 检查键是否存在。
func (c *BigCache) Exists(_ context.Context, key string) (bool, error) {
	_, err := c.cache.Get(key)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return false, nil
	}
	return false, err
}

// Len 当前条目数。
func (c *BigCache) Len() int {
	return c.cache.Len()
}

// Close 关闭BigCache实例，释放其占用的资源。
func (c *BigCache) Close() error {
	return c.cache.Close()
}

package service

import (
	"context"
	"fmt"

	"github.com/wyfcoding/versioned/version"
)

func (s *Service) mutateSet(ctx context.Context, id, op string, fn func(*container) (version.ID, error)) (v version.ID, err error) {
	ctx, done := s.observe(ctx, KindSet, op)
	defer done(&err)

	c, err := s.lookup(id, KindSet)
	if err != nil {
		return version.None, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	before := c.set.Nodes()
	if v, err = fn(c); err != nil {
		return version.None, err
	}
	s.track(KindSet, c.set.Nodes()-before, 1)
	s.logger.DebugContext(ctx, "set version published", "id", id, "op", op, "version", v)
	return v, nil
}

// Insert 在版本 base 上插入 key。
func (s *Service) Insert(ctx context.Context, id string, base version.ID, key int64) (version.ID, error) {
	return s.mutateSet(ctx, id, "insert", func(c *container) (version.ID, error) {
		return c.set.Insert(base, key)
	})
}

// Delete 在版本 base 上删除一个 key，key 不存在时新版本与 base 内容相同。
func (s *Service) Delete(ctx context.Context, id string, base version.ID, key int64) (version.ID, error) {
	return s.mutateSet(ctx, id, "delete", func(c *container) (version.ID, error) {
		return c.set.Delete(base, key)
	})
}

// readSet 在读锁内执行一次查询。key 非空时结果进入查询缓存，缓存读写在锁外进行。
func (s *Service) readSet(ctx context.Context, id, op, key string, fn func(*container) (int64, error)) (out int64, err error) {
	ctx, done := s.observe(ctx, KindSet, op)
	defer done(&err)

	c, err := s.lookup(id, KindSet)
	if err != nil {
		return 0, err
	}
	load := func() (int64, error) {
		c.mu.RLock()
		defer c.mu.RUnlock()
		return fn(c)
	}
	if key == "" {
		return load()
	}
	return s.cached(ctx, key, load)
}

// Rank 返回 1 + 版本 v 中小于 key 的元素个数。
func (s *Service) Rank(ctx context.Context, id string, v version.ID, key int64) (int, error) {
	r, err := s.readSet(ctx, id, "rank", fmt.Sprintf("r:%s:%d:%d", id, v, key), func(c *container) (int64, error) {
		r, err := c.set.Rank(v, key)
		return int64(r), err
	})
	return int(r), err
}

// Kth 返回版本 v 中第 k 小的元素。
func (s *Service) Kth(ctx context.Context, id string, v version.ID, k int) (int64, error) {
	return s.readSet(ctx, id, "kth", fmt.Sprintf("k:%s:%d:%d", id, v, k), func(c *container) (int64, error) {
		return c.set.Kth(v, k)
	})
}

// Predecessor 返回版本 v 中严格小于 key 的最大元素，不存在时为 treap.MinKey。
func (s *Service) Predecessor(ctx context.Context, id string, v version.ID, key int64) (int64, error) {
	return s.readSet(ctx, id, "predecessor", "", func(c *container) (int64, error) {
		return c.set.Predecessor(v, key)
	})
}

// Successor 返回版本 v 中严格大于 key 的最小元素，不存在时为 treap.MaxKey。
func (s *Service) Successor(ctx context.Context, id string, v version.ID, key int64) (int64, error) {
	return s.readSet(ctx, id, "successor", "", func(c *container) (int64, error) {
		return c.set.Successor(v, key)
	})
}

// Contains 报告版本 v 是否含有 key。
func (s *Service) Contains(ctx context.Context, id string, v version.ID, key int64) (bool, error) {
	n, err := s.readSet(ctx, id, "contains", "", func(c *container) (int64, error) {
		ok, err := c.set.Contains(v, key)
		if ok {
			return 1, err
		}
		return 0, err
	})
	return n == 1, err
}

// Size 版本 v 的元素个数。
func (s *Service) Size(ctx context.Context, id string, v version.ID) (int, error) {
	n, err := s.readSet(ctx, id, "size", "", func(c *container) (int64, error) {
		n, err := c.set.Size(v)
		return int64(n), err
	})
	return int(n), err
}

// Keys 按升序返回版本 v 的全部元素。
func (s *Service) Keys(ctx context.Context, id string, v version.ID) (keys []int64, err error) {
	_, err = s.readSet(ctx, id, "keys", "", func(c *container) (int64, error) {
		keys, err = c.set.Keys(v)
		return 0, err
	})
	return keys, err
}

package service

import (
	"context"
	"fmt"

	"github.com/wyfcoding/versioned/version"
)

// mutateSegment 在写锁内执行一次修改，并记录节点增量。
func (s *Service) mutateSegment(ctx context.Context, id, op string, fn func(*container) (version.ID, error)) (v version.ID, err error) {
	ctx, done := s.observe(ctx, KindSegment, op)
	defer done(&err)

	c, err := s.lookup(id, KindSegment)
	if err != nil {
		return version.None, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	before := c.seg.Nodes()
	if v, err = fn(c); err != nil {
		return version.None, err
	}
	s.track(KindSegment, c.seg.Nodes()-before, 1)
	s.logger.DebugContext(ctx, "segment version published", "id", id, "op", op, "version", v)
	return v, nil
}

// Update 在版本 base 上对 [lo, hi] 区间加 delta。
func (s *Service) Update(ctx context.Context, id string, base version.ID, lo, hi int, delta int64) (version.ID, error) {
	return s.mutateSegment(ctx, id, "update", func(c *container) (version.ID, error) {
		return c.seg.Update(base, lo, hi, delta)
	})
}

// Set 在版本 base 上把位置 pos 赋值为 value。
func (s *Service) Set(ctx context.Context, id string, base version.ID, pos int, value int64) (version.ID, error) {
	return s.mutateSegment(ctx, id, "set", func(c *container) (version.ID, error) {
		return c.seg.Set(base, pos, value)
	})
}

// readSegment 在读锁内执行一次查询。
func (s *Service) readSegment(ctx context.Context, id, op string, fn func(*container) error) (err error) {
	_, done := s.observe(ctx, KindSegment, op)
	defer done(&err)

	c, err := s.lookup(id, KindSegment)
	if err != nil {
		return err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return fn(c)
}

// Query 返回版本 v 上 [lo, hi] 的聚合值。缓存读写不持有容器锁，只有回源时才加读锁。
func (s *Service) Query(ctx context.Context, id string, v version.ID, lo, hi int) (out int64, err error) {
	ctx, done := s.observe(ctx, KindSegment, "query")
	defer done(&err)

	c, err := s.lookup(id, KindSegment)
	if err != nil {
		return 0, err
	}
	return s.cached(ctx, fmt.Sprintf("q:%s:%d:%d:%d", id, v, lo, hi), func() (int64, error) {
		c.mu.RLock()
		defer c.mu.RUnlock()
		return c.seg.Query(v, lo, hi)
	})
}

// Point 返回版本 v 上位置 pos 的值。
func (s *Service) Point(ctx context.Context, id string, v version.ID, pos int) (out int64, err error) {
	err = s.readSegment(ctx, id, "point", func(c *container) error {
		out, err = c.seg.Point(v, pos)
		return err
	})
	return out, err
}

// Values 返回版本 v 的完整数组。
func (s *Service) Values(ctx context.Context, id string, v version.ID) (out []int64, err error) {
	err = s.readSegment(ctx, id, "values", func(c *container) error {
		out, err = c.seg.Values(v)
		return err
	})
	return out, err
}

// KthInDiff 计数型 (sum) 线段树上，newer 与 older 之差的前缀和首次达到 k 的位置。
func (s *Service) KthInDiff(ctx context.Context, id string, older, newer version.ID, k int64) (pos int, err error) {
	err = s.readSegment(ctx, id, "kth_in_diff", func(c *container) error {
		pos, err = c.seg.KthInDiff(older, newer, k)
		return err
	})
	return pos, err
}

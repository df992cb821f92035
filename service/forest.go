package service

import (
	"context"

	"github.com/wyfcoding/versioned/segmerge"
	"github.com/wyfcoding/versioned/xerrors"
)

// Aggregate 对 parent 描述的外部森林做一次线段树合并统计。结果不落地，每次调用独立。
func (s *Service) Aggregate(ctx context.Context, parent []int, values []int64) (res *segmerge.Result, err error) {
	ctx, done := s.observe(ctx, kindForest, "aggregate")
	defer done(&err)

	if s.cfg.MaxPositions > 0 && len(parent) > s.cfg.MaxPositions {
		return nil, xerrors.ErrTooManyPositions.Derive("%d nodes, limit %d", len(parent), s.cfg.MaxPositions)
	}
	res, err = segmerge.Aggregate(parent, values,
		segmerge.WithArenaLimit(s.arenaLimit()),
		segmerge.WithLogger(s.logger.Logger),
	)
	if err != nil {
		return nil, err
	}
	s.logger.DebugContext(ctx, "forest aggregated", "nodes", len(parent))
	return res, nil
}

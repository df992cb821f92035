package service

import (
	"context"

	"github.com/wyfcoding/versioned/segtree"
	"github.com/wyfcoding/versioned/snapshot"
	"github.com/wyfcoding/versioned/treap"
	"github.com/wyfcoding/versioned/xerrors"
)

// Save 把容器的全部版本写入快照存储，快照以容器名命名。
func (s *Service) Save(ctx context.Context, id string) (name string, err error) {
	if s.store == nil {
		return "", xerrors.ErrNoSnapshotStore.Derive("save %s", id)
	}
	c, err := s.lookup(id, "")
	if err != nil {
		return "", err
	}
	ctx, done := s.observe(ctx, c.kind, "save")
	defer done(&err)

	// 镜像持有独立的压缩列，只需在导出期间持有读锁。
	c.mu.RLock()
	var img *snapshot.Image
	if c.kind == KindSegment {
		img = c.seg.Snapshot()
	} else {
		img, err = c.set.Snapshot()
	}
	name = c.name
	c.mu.RUnlock()
	if err != nil {
		return "", err
	}

	img.Meta["name"] = name
	if err := s.store.Save(ctx, name, img); err != nil {
		return "", err
	}
	s.logger.InfoContext(ctx, "container saved", "id", id, "name", name, "kind", c.kind, "nodes", img.Count)
	return name, nil
}

// Load 从快照存储恢复容器，恢复出的容器获得新的 ID。
func (s *Service) Load(ctx context.Context, name string) (info Info, err error) {
	if s.store == nil {
		return Info{}, xerrors.ErrNoSnapshotStore.Derive("load %s", name)
	}
	img, err := s.store.Load(ctx, name)
	if err != nil {
		return Info{}, err
	}

	switch img.Kind {
	case segtree.SnapshotKind:
		ctx, done := s.observe(ctx, KindSegment, "load")
		defer done(&err)
		tree, rerr := segtree.Restore(img, segtree.WithArenaLimit(s.arenaLimit()), segtree.WithLogger(s.logger.Logger))
		if rerr != nil {
			return Info{}, rerr
		}
		return s.register(ctx, &container{name: name, kind: KindSegment, seg: tree})
	case treap.SnapshotKind:
		ctx, done := s.observe(ctx, KindSet, "load")
		defer done(&err)
		set, rerr := treap.Restore(img, treap.WithArenaLimit(s.arenaLimit()), treap.WithLogger(s.logger.Logger))
		if rerr != nil {
			return Info{}, rerr
		}
		return s.register(ctx, &container{name: name, kind: KindSet, set: set})
	default:
		return Info{}, xerrors.ErrSnapshotCorrupt.Derive("unknown kind %q", img.Kind)
	}
}

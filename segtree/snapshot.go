package segtree

import (
	"github.com/wyfcoding/versioned/arena"
	"github.com/wyfcoding/versioned/snapshot"
	"github.com/wyfcoding/versioned/version"
	"github.com/wyfcoding/versioned/xerrors"
)

// SnapshotKind 线段树镜像的类型标识。
const SnapshotKind = "segtree"

// Snapshot 导出节点池与全部版本。
func (t *Tree) Snapshot() *snapshot.Image {
	nodes := t.nodes.Nodes()
	left := make([]int64, len(nodes))
	right := make([]int64, len(nodes))
	value := make([]int64, len(nodes))
	lazy := make([]int64, len(nodes))
	for i, nd := range nodes {
		left[i], right[i] = int64(nd.left), int64(nd.right)
		value[i], lazy[i] = nd.value, nd.lazy
	}

	img := snapshot.Pack(SnapshotKind, len(nodes), map[string][]int64{
		"left": left, "right": right, "value": value, "lazy": lazy,
	})
	img.SetInt("n", int64(t.n))
	img.Meta["aggregator"] = t.agg.Name()
	roots, parents := t.versions.Roots()
	img.Roots = roots
	img.Parents = make([]int, len(parents))
	for i, p := range parents {
		img.Parents[i] = int(p)
	}
	return img
}

// Restore 从镜像重建线段树。每个版本都会做一次结构与聚合值校验，共享节点只校验一次。
func Restore(img *snapshot.Image, opts ...Option) (*Tree, error) {
	cols, err := img.Require(SnapshotKind, "left", "right", "value", "lazy")
	if err != nil {
		return nil, err
	}
	n, err := img.Int("n")
	if err != nil {
		return nil, err
	}
	if n < 1 {
		return nil, xerrors.ErrSnapshotCorrupt.Derive("n = %d", n)
	}
	agg, err := ParseAggregator(img.Meta["aggregator"])
	if err != nil {
		return nil, err
	}
	if len(img.Roots) == 0 {
		return nil, xerrors.ErrSnapshotCorrupt.Derive("no versions")
	}
	if err := snapshot.CheckChildren(img.Count, cols["left"], cols["right"]); err != nil {
		return nil, err
	}

	nodes := make([]node, img.Count)
	for i := range nodes {
		nodes[i] = node{
			left:  arena.NodeID(cols["left"][i]),
			right: arena.NodeID(cols["right"][i]),
			value: cols["value"][i],
			lazy:  cols["lazy"][i],
		}
	}
	parents := make([]version.ID, len(img.Parents))
	for i, p := range img.Parents {
		if p < int(version.None) || p >= i {
			return nil, xerrors.ErrSnapshotCorrupt.Derive("version %d has parent %d", i, p)
		}
		parents[i] = version.ID(p)
	}

	c := newConfig(opts)
	t := &Tree{
		agg:      agg,
		nodes:    arena.FromSlice(nodes, arena.WithLimit(c.arenaLimit)),
		versions: version.Restore(img.Roots, parents),
		logger:   c.logger,
		n:        int(n),
	}

	seen := make(map[arena.NodeID][2]int)
	for v, root := range img.Roots {
		if err := t.audit(root, 1, t.n, seen); err != nil {
			return nil, xerrors.ErrSnapshotCorrupt.Derive("version %d: %v", v, err)
		}
	}

	t.logger.Info("segment tree restored", "n", t.n, "versions", t.versions.Len(), "nodes", t.nodes.Allocated())
	return t, nil
}

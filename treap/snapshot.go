package treap

import (
	"encoding/hex"

	"github.com/wyfcoding/versioned/arena"
	"github.com/wyfcoding/versioned/snapshot"
	"github.com/wyfcoding/versioned/version"
	"github.com/wyfcoding/versioned/xerrors"
)

// SnapshotKind Treap 镜像的类型标识。
const SnapshotKind = "treap"

// Snapshot 导出节点池、全部版本与随机数发生器状态。
// 恢复后的 Treap 继续产生与原实例相同的优先级序列。
func (t *Treap) Snapshot() (*snapshot.Image, error) {
	nodes := t.nodes.Nodes()
	cols := map[string][]int64{
		"left":     make([]int64, len(nodes)),
		"right":    make([]int64, len(nodes)),
		"key":      make([]int64, len(nodes)),
		"priority": make([]int64, len(nodes)),
		"size":     make([]int64, len(nodes)),
	}
	for i, nd := range nodes {
		cols["left"][i] = int64(nd.left)
		cols["right"][i] = int64(nd.right)
		cols["key"][i] = nd.key
		cols["priority"][i] = int64(nd.priority) //nolint:gosec // 按位保存。
		cols["size"][i] = int64(nd.size)
	}

	state, err := t.pcg.MarshalBinary()
	if err != nil {
		return nil, xerrors.WrapInternal(err, "marshal rng state")
	}
	img := snapshot.Pack(SnapshotKind, len(nodes), cols)
	img.SetInt("seed", int64(t.seed)) //nolint:gosec // 按位保存。
	img.Meta["rng"] = hex.EncodeToString(state)
	roots, parents := t.versions.Roots()
	img.Roots = roots
	img.Parents = make([]int, len(parents))
	for i, p := range parents {
		img.Parents[i] = int(p)
	}
	return img, nil
}

// Restore 从镜像重建 Treap，并逐版本自检。
func Restore(img *snapshot.Image, opts ...Option) (*Treap, error) {
	cols, err := img.Require(SnapshotKind, "left", "right", "key", "priority", "size")
	if err != nil {
		return nil, err
	}
	if len(img.Roots) == 0 {
		return nil, xerrors.ErrSnapshotCorrupt.Derive("no versions")
	}
	if img.Roots[0] != int32(arena.Nil) {
		return nil, xerrors.ErrSnapshotCorrupt.Derive("version 0 must be empty")
	}
	if err := snapshot.CheckChildren(img.Count, cols["left"], cols["right"]); err != nil {
		return nil, err
	}
	seed, err := img.Int("seed")
	if err != nil {
		return nil, err
	}
	state, err := hex.DecodeString(img.Meta["rng"])
	if err != nil {
		return nil, xerrors.ErrSnapshotCorrupt.Derive("rng state: %v", err)
	}

	nodes := make([]node, img.Count)
	for i := range nodes {
		nodes[i] = node{
			left:     arena.NodeID(cols["left"][i]),
			right:    arena.NodeID(cols["right"][i]),
			key:      cols["key"][i],
			priority: uint64(cols["priority"][i]), //nolint:gosec // 按位恢复。
			size:     int32(cols["size"][i]),      //nolint:gosec // 由 Audit 校验。
		}
	}
	if nodes[arena.Nil] != (node{}) {
		return nil, xerrors.ErrSnapshotCorrupt.Derive("sentinel node is not empty")
	}
	parents := make([]version.ID, len(img.Parents))
	for i, p := range img.Parents {
		if p < int(version.None) || p >= i {
			return nil, xerrors.ErrSnapshotCorrupt.Derive("version %d has parent %d", i, p)
		}
		parents[i] = version.ID(p)
	}

	c := newConfig(append([]Option{WithSeed(uint64(seed))}, opts...)) //nolint:gosec // 按位恢复。
	t := newTreap(c, arena.FromSlice(nodes, arena.WithLimit(c.arenaLimit)), version.Restore(img.Roots, parents))
	if err := t.pcg.UnmarshalBinary(state); err != nil {
		return nil, xerrors.ErrSnapshotCorrupt.Derive("rng state: %v", err)
	}

	memo := make(map[arena.NodeID]subtree)
	for v, root := range img.Roots {
		if err := t.audit(root, memo); err != nil {
			return nil, xerrors.ErrSnapshotCorrupt.Derive("version %d: %v", v, err)
		}
	}

	t.logger.Info("treap restored", "versions", t.versions.Len(), "nodes", t.nodes.Allocated())
	return t, nil
}

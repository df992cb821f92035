package segtree

import (
	"github.com/wyfcoding/versioned/arena"
	"github.com/wyfcoding/versioned/version"
	"github.com/wyfcoding/versioned/xerrors"
)

// Audit 全树自检：每个内部节点都满足 value == Apply(Combine(left, right), lazy, len)，
// 且内部节点的两个子节点都存在、叶子没有子节点。
func (t *Tree) Audit(v version.ID) error {
	root, err := t.versions.Root(v)
	if err != nil {
		return err
	}
	return t.audit(root, 1, t.n, make(map[arena.NodeID][2]int))
}

// audit 中同一节点只检查一次，并要求它在所有引用处覆盖同一段区间。
func (t *Tree) audit(id arena.NodeID, l, r int, seen map[arena.NodeID][2]int) error {
	if seg, ok := seen[id]; ok {
		if seg != [2]int{l, r} {
			return xerrors.ErrAuditFailed.Derive("node %d covers [%d, %d] and [%d, %d]", id, seg[0], seg[1], l, r)
		}
		return nil
	}
	if id == arena.Nil || int(id) >= t.nodes.Len() {
		return xerrors.ErrAuditFailed.Derive("segment [%d, %d] points at invalid node %d", l, r, id)
	}
	nd := t.nodes.Get(id)
	if l == r {
		if nd.left != arena.Nil || nd.right != arena.Nil {
			return xerrors.ErrAuditFailed.Derive("leaf %d has children", l)
		}
		seen[id] = [2]int{l, r}
		return nil
	}
	mid := (l + r) >> 1
	if err := t.audit(nd.left, l, mid, seen); err != nil {
		return err
	}
	if err := t.audit(nd.right, mid+1, r, seen); err != nil {
		return err
	}
	want := t.agg.Apply(t.agg.Combine(t.nodes.Get(nd.left).value, t.nodes.Get(nd.right).value), nd.lazy, r-l+1)
	if nd.value != want {
		return xerrors.ErrAuditFailed.Derive("segment [%d, %d] value %d, children imply %d", l, r, nd.value, want)
	}
	seen[id] = [2]int{l, r}
	return nil
}

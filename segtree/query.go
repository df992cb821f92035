package segtree

import (
	"github.com/wyfcoding/versioned/arena"
	"github.com/wyfcoding/versioned/version"
	"github.com/wyfcoding/versioned/xerrors"
)

// Query 返回版本 v 中 [lo, hi] 的聚合值。
// 查询不写任何节点：祖先上的懒标记沿路径累加后折算进结果，节点池大小不变。
func (t *Tree) Query(v version.ID, lo, hi int) (int64, error) {
	root, err := t.versions.Root(v)
	if err != nil {
		return 0, err
	}
	if err := t.checkRange(lo, hi); err != nil {
		return 0, err
	}
	return t.query(root, 1, t.n, lo, hi, 0), nil
}

// query 中 acc 为祖先节点尚未下推的懒标记之和。
func (t *Tree) query(id arena.NodeID, l, r, ql, qr int, acc int64) int64 {
	if qr < l || r < ql {
		return t.agg.Identity()
	}
	nd := t.nodes.Get(id)
	if ql <= l && r <= qr {
		return t.agg.Apply(nd.value, acc, r-l+1)
	}
	acc += nd.lazy
	mid := (l + r) >> 1
	switch {
	case qr <= mid:
		return t.query(nd.left, l, mid, ql, qr, acc)
	case ql > mid:
		return t.query(nd.right, mid+1, r, ql, qr, acc)
	default:
		return t.agg.Combine(
			t.query(nd.left, l, mid, ql, qr, acc),
			t.query(nd.right, mid+1, r, ql, qr, acc),
		)
	}
}

// Point 返回版本 v 中位置 pos 的值。
func (t *Tree) Point(v version.ID, pos int) (int64, error) {
	return t.Query(v, pos, pos)
}

// Values 展开版本 v 的完整数组，values[i] 对应位置 i+1。
func (t *Tree) Values(v version.ID) ([]int64, error) {
	root, err := t.versions.Root(v)
	if err != nil {
		return nil, err
	}
	out := make([]int64, t.n)
	t.collect(root, 1, t.n, 0, out)
	return out, nil
}

func (t *Tree) collect(id arena.NodeID, l, r int, acc int64, out []int64) {
	nd := t.nodes.Get(id)
	if l == r {
		out[l-1] = t.agg.Apply(nd.value, acc, 1)
		return
	}
	acc += nd.lazy
	mid := (l + r) >> 1
	t.collect(nd.left, l, mid, acc, out)
	t.collect(nd.right, mid+1, r, acc, out)
}

// KthInDiff 在计数语义的 Sum 树上，返回最小的位置 p，使 newer 与 older 两个版本在 [1, p] 上的差值之和 >= k。
// 用于主席树的区间第 k 小：older 为前缀 l-1，newer 为前缀 r。
// 要求两个版本逐位置的差值非负。
func (t *Tree) KthInDiff(older, newer version.ID, k int64) (int, error) {
	if t.agg.Name() != Sum.Name() {
		return 0, xerrors.ErrKindMismatch.Derive("kth descent needs a sum tree, got %s", t.agg.Name())
	}
	a, err := t.versions.Root(older)
	if err != nil {
		return 0, err
	}
	b, err := t.versions.Root(newer)
	if err != nil {
		return 0, err
	}

	total := t.nodes.Get(b).value - t.nodes.Get(a).value
	if k < 1 || k > total {
		return 0, xerrors.ErrOutOfRange.Derive("k=%d, available %d", k, total)
	}

	l, r := 1, t.n
	var accA, accB int64
	for l < r {
		na, nb := t.nodes.Get(a), t.nodes.Get(b)
		accA += na.lazy
		accB += nb.lazy
		mid := (l + r) >> 1
		length := mid - l + 1
		leftCount := t.agg.Apply(t.nodes.Get(nb.left).value, accB, length) -
			t.agg.Apply(t.nodes.Get(na.left).value, accA, length)
		if k <= leftCount {
			a, b = na.left, nb.left
			r = mid
		} else {
			k -= leftCount
			a, b = na.right, nb.right
			l = mid + 1
		}
	}
	return l, nil
}

// Package segmerge 实现线段树合并：外部树上每个节点持有一棵值域线段树，
// DFS 回溯时把子节点的树破坏性地并入父节点，总代价均摊 O(n log M)。
//
// 与 segtree 的可持久化更新不同，这里的合并直接改写存活一侧的节点，
// 被并入的一侧随即失效 (consumed)，不能再单独查询。本包从不克隆节点。
package segmerge

import (
	"log/slog"
	"math/bits"
	"slices"
	"sort"

	"github.com/wyfcoding/versioned/arena"
	"github.com/wyfcoding/versioned/xerrors"
)

// node 值域线段树节点。
type node struct {
	left, right arena.NodeID
	count       int64 // 区间内的元素个数。
	best        int64 // 区间内单个值的最大出现次数。
	bestSum     int64 // 出现次数达到 best 的所有值之和。
}

// Forest 一组共享节点池的值域线段树，外部节点编号为 [0, n)。
type Forest struct {
	nodes    *arena.Arena[node]
	logger   *slog.Logger
	roots    []arena.NodeID
	consumed []bool
	domain   []int64 // 去重后的有序值表，下标 i 对应排名 i+1。
}

// Option Forest 配置项。
type Option func(*config)

type config struct {
	logger     *slog.Logger
	arenaLimit int
}

// WithArenaLimit 限制节点池大小。
func WithArenaLimit(n int) Option {
	return func(c *config) { c.arenaLimit = n }
}

// WithLogger 指定日志记录器。
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewForest 创建 n 棵空树，值域为 domain 中出现过的值。
func NewForest(n int, domain []int64, opts ...Option) (*Forest, error) {
	if n <= 0 || len(domain) == 0 {
		return nil, xerrors.ErrEmptyInput.Derive("forest needs nodes and a value domain")
	}
	c := config{logger: slog.Default()}
	for _, opt := range opts {
		opt(&c)
	}
	sorted := slices.Clone(domain)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	depth := bits.Len(uint(len(sorted))) + 1
	return &Forest{
		nodes: arena.New[node](
			arena.WithCapacity(len(domain)*depth+1),
			arena.WithLimit(c.arenaLimit),
		),
		logger:   c.logger,
		roots:    make([]arena.NodeID, n),
		consumed: make([]bool, n),
		domain:   sorted,
	}, nil
}

// Len 外部节点数。
func (f *Forest) Len() int { return len(f.roots) }

// Nodes 节点池中已分配的节点数。
func (f *Forest) Nodes() int { return f.nodes.Allocated() }

func (f *Forest) checkNode(u int) error {
	if u < 0 || u >= len(f.roots) {
		return xerrors.ErrOutOfRange.Derive("node %d outside [0, %d)", u, len(f.roots))
	}
	if f.consumed[u] {
		return xerrors.ErrConsumed.Derive("node %d", u)
	}
	return nil
}

// rankOf 返回 value 的排名 (1-based)，不在值域内时返回 0。
func (f *Forest) rankOf(value int64) int {
	i, ok := slices.BinarySearch(f.domain, value)
	if !ok {
		return 0
	}
	return i + 1
}

// AttachLeaf 向节点 u 的树中加入一个 value。
// 缺失的路径节点先全部分配再挂接，节点池耗尽时树保持原样。
func (f *Forest) AttachLeaf(u int, value int64) (err error) {
	if err := f.checkNode(u); err != nil {
		return err
	}
	pos := f.rankOf(value)
	if pos == 0 {
		return xerrors.InvalidArg("value outside forest domain")
	}

	type step struct {
		id   arena.NodeID
		l, r int
	}
	var path []step
	l, r := 1, len(f.domain)
	cur := f.roots[u]
	for cur != arena.Nil {
		path = append(path, step{id: cur, l: l, r: r})
		if l == r {
			break
		}
		mid := (l + r) >> 1
		if pos <= mid {
			cur, r = f.nodes.Get(cur).left, mid
		} else {
			cur, l = f.nodes.Get(cur).right, mid+1
		}
	}

	// 剩余的 [l, r] 需要新建一条到叶子的链。
	missing := 0
	if cur == arena.Nil {
		missing = chainLen(l, r, pos)
	}
	mark := f.nodes.Mark()
	defer f.nodes.Guard(mark, &err)
	fresh := make([]arena.NodeID, missing)
	for i := range fresh {
		fresh[i] = f.nodes.Alloc()
	}

	// 挂接新链。
	if missing > 0 {
		if len(path) == 0 {
			f.roots[u] = fresh[0]
		} else {
			last := path[len(path)-1]
			mid := (last.l + last.r) >> 1
			if pos <= mid {
				f.nodes.At(last.id).left = fresh[0]
			} else {
				f.nodes.At(last.id).right = fresh[0]
			}
		}
		for i := range fresh {
			path = append(path, step{id: fresh[i], l: l, r: r})
			if l == r {
				break
			}
			mid := (l + r) >> 1
			if pos <= mid {
				r = mid
				f.nodes.At(fresh[i]).left = fresh[i+1]
			} else {
				l = mid + 1
				f.nodes.At(fresh[i]).right = fresh[i+1]
			}
		}
	}

	leaf := f.nodes.At(path[len(path)-1].id)
	leaf.count++
	leaf.best, leaf.bestSum = leaf.count, value
	for i := len(path) - 2; i >= 0; i-- {
		f.pull(path[i].id)
	}
	return nil
}

// chainLen 从 [l, r] 下降到 pos 所在叶子经过的节点数。
func chainLen(l, r, pos int) int {
	n := 1
	for l < r {
		mid := (l + r) >> 1
		if pos <= mid {
			r = mid
		} else {
			l = mid + 1
		}
		n++
	}
	return n
}

func (f *Forest) pull(id arena.NodeID) {
	nd := f.nodes.At(id)
	lc, rc := f.nodes.Get(nd.left), f.nodes.Get(nd.right)
	nd.count = lc.count + rc.count
	switch {
	case lc.best > rc.best:
		nd.best, nd.bestSum = lc.best, lc.bestSum
	case lc.best < rc.best:
		nd.best, nd.bestSum = rc.best, rc.bestSum
	default:
		nd.best, nd.bestSum = lc.best, lc.bestSum+rc.bestSum
	}
}

// MergeChildInto 把 child 的树并入 parent，返回 parent 的新根。此后 child 被标记为已消费。
func (f *Forest) MergeChildInto(parent, child int) (arena.NodeID, error) {
	if err := f.checkNode(parent); err != nil {
		return arena.Nil, err
	}
	if err := f.checkNode(child); err != nil {
		return arena.Nil, err
	}
	if parent == child {
		return arena.Nil, xerrors.ErrInvalidTree.Derive("node %d merged into itself", parent)
	}
	f.roots[parent] = f.merge(f.roots[parent], f.roots[child], 1, len(f.domain))
	f.roots[child] = arena.Nil
	f.consumed[child] = true
	return f.roots[parent], nil
}

// merge 任一侧为空时直接返回另一侧，否则以 x 为存活节点原地合并。
// 递归深度不超过值域线段树高度。
func (f *Forest) merge(x, y arena.NodeID, l, r int) arena.NodeID {
	if x == arena.Nil {
		return y
	}
	if y == arena.Nil {
		return x
	}
	yn := f.nodes.Get(y)
	if l == r {
		xn := f.nodes.At(x)
		xn.count += yn.count
		xn.best = xn.count
		xn.bestSum = f.domain[l-1]
		return x
	}
	mid := (l + r) >> 1
	lc := f.merge(f.nodes.Get(x).left, yn.left, l, mid)
	rc := f.merge(f.nodes.Get(x).right, yn.right, mid+1, r)
	xn := f.nodes.At(x)
	xn.left, xn.right = lc, rc
	f.pull(x)
	return x
}

// Count 节点 u 子树中的元素总数。
func (f *Forest) Count(u int) (int64, error) {
	if err := f.checkNode(u); err != nil {
		return 0, err
	}
	return f.nodes.Get(f.roots[u]).count, nil
}

// QueryGreaterThan 节点 u 的树中严格大于 threshold 的元素个数。
func (f *Forest) QueryGreaterThan(u int, threshold int64) (int64, error) {
	if err := f.checkNode(u); err != nil {
		return 0, err
	}
	lo := sort.Search(len(f.domain), func(i int) bool { return f.domain[i] > threshold }) + 1
	return f.countRanks(f.roots[u], 1, len(f.domain), lo, len(f.domain)), nil
}

// CountRange 节点 u 的树中落在 [lo, hi] 内的元素个数。
func (f *Forest) CountRange(u int, lo, hi int64) (int64, error) {
	if err := f.checkNode(u); err != nil {
		return 0, err
	}
	if lo > hi {
		return 0, xerrors.ErrInvalidRange.Derive("[%d, %d]", lo, hi)
	}
	from := sort.Search(len(f.domain), func(i int) bool { return f.domain[i] >= lo }) + 1
	to := sort.Search(len(f.domain), func(i int) bool { return f.domain[i] > hi })
	return f.countRanks(f.roots[u], 1, len(f.domain), from, to), nil
}

// countRanks 统计排名 [ql, qr] 内的元素个数。
func (f *Forest) countRanks(id arena.NodeID, l, r, ql, qr int) int64 {
	var total int64
	type span struct {
		id   arena.NodeID
		l, r int
	}
	stack := []span{{id, l, r}}
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if s.id == arena.Nil || qr < s.l || s.r < ql {
			continue
		}
		nd := f.nodes.Get(s.id)
		if ql <= s.l && s.r <= qr {
			total += nd.count
			continue
		}
		mid := (s.l + s.r) >> 1
		stack = append(stack, span{nd.left, s.l, mid}, span{nd.right, mid + 1, s.r})
	}
	return total
}

// Kth 节点 u 的树中第 k 小的值。
func (f *Forest) Kth(u int, k int64) (int64, error) {
	if err := f.checkNode(u); err != nil {
		return 0, err
	}
	id := f.roots[u]
	if total := f.nodes.Get(id).count; k < 1 || k > total {
		return 0, xerrors.ErrOutOfRange.Derive("k=%d, size %d", k, total)
	}
	l, r := 1, len(f.domain)
	for l < r {
		nd := f.nodes.Get(id)
		mid := (l + r) >> 1
		if lc := f.nodes.Get(nd.left).count; k <= lc {
			id, r = nd.left, mid
		} else {
			k -= lc
			id, l = nd.right, mid+1
		}
	}
	return f.domain[l-1], nil
}

// Dominant 返回节点 u 的树中出现次数最多的值的出现次数，以及所有达到该次数的值之和。
func (f *Forest) Dominant(u int) (count, sum int64, err error) {
	if err := f.checkNode(u); err != nil {
		return 0, 0, err
	}
	nd := f.nodes.Get(f.roots[u])
	return nd.best, nd.bestSum, nil
}

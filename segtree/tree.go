// Package segtree 实现可持久化线段树 (主席树)。
//
// 每次修改只复制从根到被修改位置的 O(log N) 个节点，其余节点与旧版本共享。
// 区间加使用懒标记：节点的 value 已包含自身的 lazy，lazy 只对子节点尚未生效。
// 下推懒标记时先克隆子节点，保证任何已发布版本可达的节点都不会被改写。
package segtree

import (
	"log/slog"

	"github.com/wyfcoding/versioned/arena"
	"github.com/wyfcoding/versioned/version"
	"github.com/wyfcoding/versioned/xerrors"
)

// node 线段树节点。
type node struct {
	left, right arena.NodeID
	value       int64 // 子树聚合值，已包含本节点的 lazy。
	lazy        int64 // 尚未下推到子节点的区间加量。
}

// Tree 可持久化线段树，覆盖位置 [1, n]。
type Tree struct {
	agg      Aggregator
	nodes    *arena.Arena[node]
	versions *version.Table[arena.NodeID]
	logger   *slog.Logger
	n        int
}

// Option 线段树配置项。
type Option func(*config)

type config struct {
	agg         Aggregator
	logger      *slog.Logger
	arenaLimit  int
	expectedOps int
}

// WithAggregator 指定聚合方式，默认 Sum。
func WithAggregator(agg Aggregator) Option {
	return func(c *config) {
		if agg != nil {
			c.agg = agg
		}
	}
}

// WithArenaLimit 限制节点池大小，超出时修改操作返回 ErrArenaExhausted。
func WithArenaLimit(n int) Option {
	return func(c *config) { c.arenaLimit = n }
}

// WithExpectedOps 预估修改次数，用于预分配节点池。
func WithExpectedOps(n int) Option {
	return func(c *config) { c.expectedOps = n }
}

// WithLogger 指定日志记录器。
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func newConfig(opts []Option) config {
	c := config{agg: Sum, logger: slog.Default()}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// New 用初始数组建出版本 0。values[i] 对应位置 i+1。
func New(values []int64, opts ...Option) (t *Tree, err error) {
	if len(values) == 0 {
		return nil, xerrors.ErrEmptyInput.Derive("segment tree needs at least one position")
	}
	c := newConfig(opts)
	n := len(values)
	t = &Tree{
		agg: c.agg,
		nodes: arena.New[node](
			arena.WithCapacity(arena.CapacityFor(c.expectedOps, n)),
			arena.WithLimit(c.arenaLimit),
		),
		versions: version.NewTable[arena.NodeID](c.expectedOps + 1),
		logger:   c.logger,
		n:        n,
	}

	defer func() {
		if err != nil {
			t = nil
		}
	}()
	mark := t.nodes.Mark()
	defer t.nodes.Guard(mark, &err)
	root := t.build(values, 1, n)
	t.versions.Append(root, version.None)

	t.logger.Debug("segment tree built", "n", n, "aggregator", t.agg.Name(), "nodes", t.nodes.Allocated())
	return t, nil
}

func (t *Tree) build(values []int64, l, r int) arena.NodeID {
	id := t.nodes.Alloc()
	if l == r {
		t.nodes.At(id).value = values[l-1]
		return id
	}
	mid := (l + r) >> 1
	lc := t.build(values, l, mid)
	rc := t.build(values, mid+1, r)
	nd := t.nodes.At(id)
	nd.left, nd.right = lc, rc
	nd.value = t.agg.Combine(t.nodes.Get(lc).value, t.nodes.Get(rc).value)
	return id
}

// Update 在版本 base 上对 [lo, hi] 每个位置加 delta，返回新版本号。base 及更早版本保持不变。
func (t *Tree) Update(base version.ID, lo, hi int, delta int64) (v version.ID, err error) {
	root, err := t.versions.Root(base)
	if err != nil {
		return version.None, err
	}
	if err := t.checkRange(lo, hi); err != nil {
		return version.None, err
	}

	mark := t.nodes.Mark()
	defer version.ClearOnError(&v, &err)
	defer t.nodes.Guard(mark, &err)
	newRoot := t.update(root, 1, t.n, lo, hi, delta, mark)
	v = t.versions.Append(newRoot, base)

	t.logger.Debug("segment tree updated", "base", base, "version", v, "lo", lo, "hi", hi,
		"delta", delta, "new_nodes", int(t.nodes.Mark()-mark))
	return v, nil
}

func (t *Tree) update(id arena.NodeID, l, r, ql, qr int, delta int64, mark arena.NodeID) arena.NodeID {
	if qr < l || r < ql {
		return id
	}
	id = t.nodes.CloneShared(id, mark)
	if ql <= l && r <= qr {
		t.applyTag(id, delta, r-l+1)
		return id
	}
	t.pushDown(id, l, r, mark)
	mid := (l + r) >> 1
	cur := t.nodes.Get(id)
	lc := t.update(cur.left, l, mid, ql, qr, delta, mark)
	rc := t.update(cur.right, mid+1, r, ql, qr, delta, mark)
	t.pushUp(id, lc, rc, r-l+1)
	return id
}

// Set 在版本 base 上把位置 pos 赋值为 value，返回新版本号。
func (t *Tree) Set(base version.ID, pos int, value int64) (v version.ID, err error) {
	root, err := t.versions.Root(base)
	if err != nil {
		return version.None, err
	}
	if err := t.checkRange(pos, pos); err != nil {
		return version.None, err
	}

	mark := t.nodes.Mark()
	defer version.ClearOnError(&v, &err)
	defer t.nodes.Guard(mark, &err)
	newRoot := t.set(root, 1, t.n, pos, value, mark)
	v = t.versions.Append(newRoot, base)
	return v, nil
}

func (t *Tree) set(id arena.NodeID, l, r, pos int, value int64, mark arena.NodeID) arena.NodeID {
	id = t.nodes.CloneShared(id, mark)
	if l == r {
		nd := t.nodes.At(id)
		nd.value = value
		nd.lazy = 0
		return id
	}
	t.pushDown(id, l, r, mark)
	mid := (l + r) >> 1
	cur := t.nodes.Get(id)
	lc, rc := cur.left, cur.right
	if pos <= mid {
		lc = t.set(lc, l, mid, pos, value, mark)
	} else {
		rc = t.set(rc, mid+1, r, pos, value, mark)
	}
	t.pushUp(id, lc, rc, r-l+1)
	return id
}

// Checkout 把版本 v 重新发布为一个新版本 (回到过去的某个时刻)，不分配任何节点。
func (t *Tree) Checkout(v version.ID) (version.ID, error) {
	root, err := t.versions.Root(v)
	if err != nil {
		return version.None, err
	}
	return t.versions.Append(root, v), nil
}

// applyTag 对当前操作私有的节点 id 打上区间加标记。
func (t *Tree) applyTag(id arena.NodeID, delta int64, length int) {
	nd := t.nodes.At(id)
	nd.value = t.agg.Apply(nd.value, delta, length)
	nd.lazy += delta
}

// pushDown 把 id 的懒标记下推给克隆出的子节点。id 必须已属于当前操作。
func (t *Tree) pushDown(id arena.NodeID, l, r int, mark arena.NodeID) {
	cur := t.nodes.Get(id)
	if cur.lazy == 0 {
		return
	}
	mid := (l + r) >> 1
	lc := t.nodes.CloneShared(cur.left, mark)
	rc := t.nodes.CloneShared(cur.right, mark)
	t.applyTag(lc, cur.lazy, mid-l+1)
	t.applyTag(rc, cur.lazy, r-mid)
	nd := t.nodes.At(id)
	nd.left, nd.right = lc, rc
	nd.lazy = 0
}

func (t *Tree) pushUp(id, lc, rc arena.NodeID, length int) {
	value := t.agg.Combine(t.nodes.Get(lc).value, t.nodes.Get(rc).value)
	nd := t.nodes.At(id)
	nd.left, nd.right = lc, rc
	nd.value = t.agg.Apply(value, nd.lazy, length)
}

func (t *Tree) checkRange(lo, hi int) error {
	if lo < 1 || hi > t.n || lo > hi {
		return xerrors.ErrInvalidRange.Derive("range [%d, %d] outside [1, %d]", lo, hi, t.n)
	}
	return nil
}

// Len 位置数 N。
func (t *Tree) Len() int { return t.n }

// Aggregator 当前聚合方式。
func (t *Tree) Aggregator() Aggregator { return t.agg }

// Versions 已创建的版本数。
func (t *Tree) Versions() int { return t.versions.Len() }

// Latest 最新版本号。
func (t *Tree) Latest() version.ID { return t.versions.Latest() }

// Parent 返回版本 v 的来源版本。
func (t *Tree) Parent(v version.ID) (version.ID, error) { return t.versions.Parent(v) }

// Nodes 节点池中已分配的节点数。
func (t *Tree) Nodes() int { return t.nodes.Allocated() }

// Package treap 实现可持久化 FHQ Treap (无旋 Treap)，作为按版本查询的有序多重集合。
//
// 所有修改由 split 与 merge 组合而成，二者都是迭代实现并沿路径复制节点：
// 一次操作新建的节点对该操作私有，可以原地修改；更早的节点一律先克隆再改。
package treap

import (
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/wyfcoding/versioned/arena"
	"github.com/wyfcoding/versioned/version"
)

const (
	// MinKey 没有前驱时返回的哨兵。
	MinKey int64 = math.MinInt64
	// MaxKey 没有后继时返回的哨兵。
	MaxKey int64 = math.MaxInt64
)

// node Treap 节点，priority 满足大根堆。
type node struct {
	left, right arena.NodeID
	key         int64
	priority    uint64
	size        int32
}

// Treap 可持久化有序多重集合，版本 0 为空集。
type Treap struct {
	nodes    *arena.Arena[node]
	versions *version.Table[arena.NodeID]
	pcg      *rand.PCG
	rng      *rand.Rand
	logger   *slog.Logger
	seed     uint64
}

// Option Treap 配置项。
type Option func(*config)

type config struct {
	logger      *slog.Logger
	seed        uint64
	seeded      bool
	arenaLimit  int
	expectedOps int
}

// WithSeed 固定优先级随机数种子，相同的操作序列得到相同的树形。
func WithSeed(seed uint64) Option {
	return func(c *config) {
		c.seed = seed
		c.seeded = true
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
	c := config{logger: slog.Default()}
	for _, opt := range opts {
		opt(&c)
	}
	if !c.seeded {
		c.seed = uint64(time.Now().UnixNano()) //nolint:gosec // 只用作随机种子。
	}
	return c
}

// pathCopyEstimate 单次插入或删除平均复制的节点数估计。
const pathCopyEstimate = 32

// New 创建只含空版本 0 的 Treap。
func New(opts ...Option) *Treap {
	c := newConfig(opts)
	return newTreap(c, arena.New[node](
		arena.WithCapacity(c.expectedOps*pathCopyEstimate+1),
		arena.WithLimit(c.arenaLimit),
	), version.NewTable[arena.NodeID](c.expectedOps+1))
}

func newTreap(c config, nodes *arena.Arena[node], versions *version.Table[arena.NodeID]) *Treap {
	if versions.Len() == 0 {
		versions.Append(arena.Nil, version.None)
	}
	pcg := rand.NewPCG(c.seed, c.seed^0x9e3779b97f4a7c15)
	return &Treap{
		nodes:    nodes,
		versions: versions,
		pcg:      pcg,
		rng:      rand.New(pcg),
		logger:   c.logger,
		seed:     c.seed,
	}
}

// Insert 在版本 base 上插入 key，返回新版本号。
func (t *Treap) Insert(base version.ID, key int64) (v version.ID, err error) {
	root, err := t.versions.Root(base)
	if err != nil {
		return version.None, err
	}

	mark := t.nodes.Mark()
	defer version.ClearOnError(&v, &err)
	defer t.nodes.Guard(mark, &err)
	l, r := t.split(root, key, true, mark)
	leaf := t.nodes.Alloc()
	*t.nodes.At(leaf) = node{key: key, priority: t.rng.Uint64(), size: 1}
	newRoot := t.merge(t.merge(l, leaf, mark), r, mark)
	v = t.versions.Append(newRoot, base)

	t.logger.Debug("treap insert", "base", base, "version", v, "key", key, "new_nodes", int(t.nodes.Mark()-mark))
	return v, nil
}

// Delete 在版本 base 上删除一个等于 key 的元素，返回新版本号。
// key 不存在时新版本与 base 共享同一个根，不分配节点。
func (t *Treap) Delete(base version.ID, key int64) (v version.ID, err error) {
	root, err := t.versions.Root(base)
	if err != nil {
		return version.None, err
	}
	if !t.contains(root, key) {
		return t.versions.Append(root, base), nil
	}

	mark := t.nodes.Mark()
	defer version.ClearOnError(&v, &err)
	defer t.nodes.Guard(mark, &err)
	less, rest := t.split(root, key, false, mark)
	equal, greater := t.split(rest, key, true, mark)
	// equal 非空且只含 key；去掉它的根，等价于删掉一个 key。
	eq := t.nodes.Get(equal)
	equal = t.merge(eq.left, eq.right, mark)
	newRoot := t.merge(t.merge(less, equal, mark), greater, mark)
	v = t.versions.Append(newRoot, base)

	t.logger.Debug("treap delete", "base", base, "version", v, "key", key, "new_nodes", int(t.nodes.Mark()-mark))
	return v, nil
}

// Checkout 把版本 v 重新发布为一个新版本，不分配节点。
func (t *Treap) Checkout(v version.ID) (version.ID, error) {
	root, err := t.versions.Root(v)
	if err != nil {
		return version.None, err
	}
	return t.versions.Append(root, v), nil
}

// split 把 root 拆成 (< key, >= key)，inclusive 为 true 时拆成 (<= key, > key)。
// 自顶向下迭代：拆分路径上的节点依次挂到左右两条链的末端，最后自底向上修正 size。
func (t *Treap) split(root arena.NodeID, key int64, inclusive bool, mark arena.NodeID) (arena.NodeID, arena.NodeID) {
	var l, r, lTail, rTail arena.NodeID
	var path []arena.NodeID
	for cur := root; cur != arena.Nil; {
		id := t.nodes.CloneShared(cur, mark)
		path = append(path, id)
		nd := t.nodes.Get(id)
		if nd.key < key || (inclusive && nd.key == key) {
			if lTail == arena.Nil {
				l = id
			} else {
				t.nodes.At(lTail).right = id
			}
			lTail = id
			cur = nd.right
		} else {
			if rTail == arena.Nil {
				r = id
			} else {
				t.nodes.At(rTail).left = id
			}
			rTail = id
			cur = nd.left
		}
	}
	if lTail != arena.Nil {
		t.nodes.At(lTail).right = arena.Nil
	}
	if rTail != arena.Nil {
		t.nodes.At(rTail).left = arena.Nil
	}
	t.pullPath(path)
	return l, r
}

// merge 合并 a 与 b，要求 a 中所有键不大于 b 中所有键。
// 沿 a 的右链与 b 的左链交替下降，优先级高的节点在上。
func (t *Treap) merge(a, b, mark arena.NodeID) arena.NodeID {
	var root, tail arena.NodeID
	tailRight := false
	attach := func(id arena.NodeID) {
		switch {
		case tail == arena.Nil:
			root = id
		case tailRight:
			t.nodes.At(tail).right = id
		default:
			t.nodes.At(tail).left = id
		}
	}

	var path []arena.NodeID
	for a != arena.Nil && b != arena.Nil {
		if t.nodes.Get(a).priority >= t.nodes.Get(b).priority {
			id := t.nodes.CloneShared(a, mark)
			attach(id)
			tail, tailRight = id, true
			a = t.nodes.Get(id).right
			path = append(path, id)
		} else {
			id := t.nodes.CloneShared(b, mark)
			attach(id)
			tail, tailRight = id, false
			b = t.nodes.Get(id).left
			path = append(path, id)
		}
	}
	if a != arena.Nil {
		attach(a)
	} else {
		attach(b)
	}
	t.pullPath(path)
	return root
}

// pullPath 自底向上重算路径节点的 size。路径上每个节点的子节点要么在它之后，要么未被修改。
func (t *Treap) pullPath(path []arena.NodeID) {
	for i := len(path) - 1; i >= 0; i-- {
		nd := t.nodes.At(path[i])
		nd.size = 1 + t.nodes.Get(nd.left).size + t.nodes.Get(nd.right).size
	}
}

// Size 版本 v 中的元素个数。
func (t *Treap) Size(v version.ID) (int, error) {
	root, err := t.versions.Root(v)
	if err != nil {
		return 0, err
	}
	return int(t.nodes.Get(root).size), nil
}

// Versions 已创建的版本数。
func (t *Treap) Versions() int { return t.versions.Len() }

// Latest 最新版本号。
func (t *Treap) Latest() version.ID { return t.versions.Latest() }

// Parent 返回版本 v 的来源版本。
func (t *Treap) Parent(v version.ID) (version.ID, error) { return t.versions.Parent(v) }

// Seed 优先级随机数种子。
func (t *Treap) Seed() uint64 { return t.seed }

// Nodes 节点池中已分配的节点数。
func (t *Treap) Nodes() int { return t.nodes.Allocated() }

// Package arena 提供按下标引用的节点池，是所有可持久化结构共享的底层存储。
//
// 节点以 int32 下标互相引用，0 号槽位保留为"空节点"哨兵。
// 节点池只增不减：克隆出的新节点追加在尾部，旧节点从不回收，
// 因此多个版本可以放心地共享同一个下标。
package arena

import (
	"math/bits"

	"github.com/wyfcoding/versioned/xerrors"
)

// NodeID 节点下标。
type NodeID = int32

// Nil 空节点哨兵，永远不会被当作真实数据读取。
const Nil NodeID = 0

// exhaustion 是节点池达到上限时抛出的内部 panic 值，只由 Guard 捕获。
type exhaustion struct {
	limit int
}

// Arena 泛型节点池。
type Arena[T any] struct {
	nodes []T
	limit int // 节点数上限 (含 0 号哨兵)，0 表示不限。
}

// Option 节点池配置项。
type Option func(*options)

type options struct {
	capacity int
	limit    int
}

// WithCapacity 预分配容量，避免频繁扩容。
func WithCapacity(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.capacity = n
		}
	}
}

// WithLimit 设置节点数硬上限，超出时当前操作失败并返回 ErrArenaExhausted。
func WithLimit(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.limit = n
		}
	}
}

// New 创建一个只包含 0 号哨兵的节点池。
func New[T any](opts ...Option) *Arena[T] {
	o := options{capacity: 1}
	for _, opt := range opts {
		opt(&o)
	}
	if o.limit > 0 && o.capacity > o.limit {
		o.capacity = o.limit
	}
	nodes := make([]T, 1, max(o.capacity, 1))
	return &Arena[T]{nodes: nodes, limit: o.limit}
}

// FromSlice 用已有节点数组 (通常来自快照) 重建节点池，nodes[0] 必须是零值哨兵。
func FromSlice[T any](nodes []T, opts ...Option) *Arena[T] {
	a := New[T](opts...)
	if len(nodes) == 0 {
		return a
	}
	a.nodes = append(a.nodes[:0], nodes...)
	var zero T
	a.nodes[0] = zero
	return a
}

// Alloc 分配一个零值节点。
func (a *Arena[T]) Alloc() NodeID {
	var zero T
	return a.push(zero)
}

// Clone 复制 id 的全部字段到新槽位；克隆空节点仍得到空节点。
func (a *Arena[T]) Clone(id NodeID) NodeID {
	if id == Nil {
		return Nil
	}
	return a.push(a.nodes[id])
}

// CloneShared 仅当 id 不属于当前操作 (id < mark) 时才克隆。
// 当前操作新建的节点尚未被任何已发布版本引用，可以原地修改。
func (a *Arena[T]) CloneShared(id, mark NodeID) NodeID {
	if id == Nil || id >= mark {
		return id
	}
	return a.push(a.nodes[id])
}

func (a *Arena[T]) push(v T) NodeID {
	if a.limit > 0 && len(a.nodes) >= a.limit {
		panic(exhaustion{limit: a.limit})
	}
	a.nodes = append(a.nodes, v)
	return NodeID(len(a.nodes) - 1) //nolint:gosec // 节点数受 limit 与内存约束，远小于 int32 上限。
}

// At 返回节点指针。下一次分配后指针可能失效，调用方不要跨分配持有。
func (a *Arena[T]) At(id NodeID) *T {
	return &a.nodes[id]
}

// Get 返回节点副本。
func (a *Arena[T]) Get(id NodeID) T {
	return a.nodes[id]
}

// Mark 返回下一个将被分配的下标，作为当前操作的所有权分界线。
func (a *Arena[T]) Mark() NodeID {
	return NodeID(len(a.nodes)) //nolint:gosec // 同 push。
}

// Owned 报告 id 是否由 mark 之后开始的操作分配。
func (a *Arena[T]) Owned(id, mark NodeID) bool {
	return id != Nil && id >= mark
}

// Len 当前槽位数 (含 0 号哨兵)。
func (a *Arena[T]) Len() int {
	return len(a.nodes)
}

// Allocated 已分配的真实节点数。
func (a *Arena[T]) Allocated() int {
	return len(a.nodes) - 1
}

// Limit 节点数上限，0 表示不限。
func (a *Arena[T]) Limit() int {
	return a.limit
}

// Nodes 返回底层数组的只读视图，供快照编码使用。
func (a *Arena[T]) Nodes() []T {
	return a.nodes
}

// Guard 必须以 defer a.Guard(mark, &err) 的形式在公开的修改操作中调用。
// 节点池耗尽时，它回滚到 mark (本次操作建出的半条路径不可达)，并把错误写入 errp；
// 其他 panic 原样抛出。
func (a *Arena[T]) Guard(mark NodeID, errp *error) {
	r := recover()
	if r == nil {
		return
	}
	ex, ok := r.(exhaustion)
	if !ok {
		panic(r)
	}
	a.nodes = a.nodes[:mark]
	*errp = xerrors.ErrArenaExhausted.Derive("arena limit %d reached", ex.limit)
}

// CapacityFor 估算 updates 次路径复制操作在规模 n 上需要的节点数：
// 初始建树约 2n 个节点，每次区间操作约复制 4*(ceil(log2 n)+1) 个节点。
func CapacityFor(updates, n int) int {
	if n <= 0 {
		return 1
	}
	depth := bits.Len(uint(n)) + 1 //nolint:gosec // n > 0。
	return 2*n + updates*4*depth + 1
}

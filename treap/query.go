package treap

import (
	"github.com/wyfcoding/versioned/arena"
	"github.com/wyfcoding/versioned/version"
	"github.com/wyfcoding/versioned/xerrors"
)

// Rank 返回 1 + 版本 v 中严格小于 key 的元素个数。
func (t *Treap) Rank(v version.ID, key int64) (int, error) {
	root, err := t.versions.Root(v)
	if err != nil {
		return 0, err
	}
	less := 0
	for cur := root; cur != arena.Nil; {
		nd := t.nodes.Get(cur)
		if nd.key < key {
			less += int(t.nodes.Get(nd.left).size) + 1
			cur = nd.right
		} else {
			cur = nd.left
		}
	}
	return less + 1, nil
}

// Kth 返回版本 v 中第 k 小的元素 (1-based)，k 不在 [1, size] 内返回 ErrOutOfRange。
func (t *Treap) Kth(v version.ID, k int) (int64, error) {
	root, err := t.versions.Root(v)
	if err != nil {
		return 0, err
	}
	size := int(t.nodes.Get(root).size)
	if k < 1 || k > size {
		return 0, xerrors.ErrOutOfRange.Derive("k=%d, size %d", k, size)
	}
	cur := root
	for {
		nd := t.nodes.Get(cur)
		ls := int(t.nodes.Get(nd.left).size)
		switch {
		case k <= ls:
			cur = nd.left
		case k == ls+1:
			return nd.key, nil
		default:
			k -= ls + 1
			cur = nd.right
		}
	}
}

// Predecessor 返回版本 v 中严格小于 key 的最大元素，不存在时返回 MinKey。
func (t *Treap) Predecessor(v version.ID, key int64) (int64, error) {
	root, err := t.versions.Root(v)
	if err != nil {
		return 0, err
	}
	best := MinKey
	for cur := root; cur != arena.Nil; {
		nd := t.nodes.Get(cur)
		if nd.key < key {
			best = nd.key
			cur = nd.right
		} else {
			cur = nd.left
		}
	}
	return best, nil
}

// Successor 返回版本 v 中严格大于 key 的最小元素，不存在时返回 MaxKey。
func (t *Treap) Successor(v version.ID, key int64) (int64, error) {
	root, err := t.versions.Root(v)
	if err != nil {
		return 0, err
	}
	best := MaxKey
	for cur := root; cur != arena.Nil; {
		nd := t.nodes.Get(cur)
		if nd.key > key {
			best = nd.key
			cur = nd.left
		} else {
			cur = nd.right
		}
	}
	return best, nil
}

// Contains 报告版本 v 是否含有 key。
func (t *Treap) Contains(v version.ID, key int64) (bool, error) {
	root, err := t.versions.Root(v)
	if err != nil {
		return false, err
	}
	return t.contains(root, key), nil
}

func (t *Treap) contains(root arena.NodeID, key int64) bool {
	for cur := root; cur != arena.Nil; {
		nd := t.nodes.Get(cur)
		switch {
		case key < nd.key:
			cur = nd.left
		case key > nd.key:
			cur = nd.right
		default:
			return true
		}
	}
	return false
}

// Keys 按中序返回版本 v 的全部元素。
func (t *Treap) Keys(v version.ID) ([]int64, error) {
	root, err := t.versions.Root(v)
	if err != nil {
		return nil, err
	}
	out := make([]int64, 0, t.nodes.Get(root).size)
	var stack []arena.NodeID
	cur := root
	for cur != arena.Nil || len(stack) > 0 {
		for cur != arena.Nil {
			stack = append(stack, cur)
			cur = t.nodes.Get(cur).left
		}
		cur = stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		nd := t.nodes.Get(cur)
		out = append(out, nd.key)
		cur = nd.right
	}
	return out, nil
}

package segtree

import (
	"slices"
	"sort"

	"github.com/wyfcoding/versioned/version"
	"github.com/wyfcoding/versioned/xerrors"
)

// RangeKth 静态区间第 k 小 (主席树经典用法)。
// 值先离散化为 [1, m] 的排名，版本 i 是在版本 i-1 上给第 i 个元素的排名计数 +1，
// 区间 [l, r] 的分布即版本 r 减去版本 l-1。
type RangeKth struct {
	tree   *Tree
	sorted []int64 // 去重后的有序值表，下标 i 对应排名 i+1。
	n      int
}

// NewRangeKth 为 values 建立区间第 k 小索引。
func NewRangeKth(values []int64, opts ...Option) (*RangeKth, error) {
	if len(values) == 0 {
		return nil, xerrors.ErrEmptyInput.Derive("range kth needs at least one value")
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	opts = append(slices.Clone(opts), WithAggregator(Sum), WithExpectedOps(len(values)))
	tree, err := New(make([]int64, len(sorted)), opts...)
	if err != nil {
		return nil, err
	}

	prev := version.ID(0)
	for _, v := range values {
		pos, _ := slices.BinarySearch(sorted, v)
		if prev, err = tree.Update(prev, pos+1, pos+1, 1); err != nil {
			return nil, err
		}
	}
	return &RangeKth{tree: tree, sorted: sorted, n: len(values)}, nil
}

// Kth 返回 values[l-1 .. r-1] 中第 k 小的值 (1-based)。
func (rk *RangeKth) Kth(l, r int, k int64) (int64, error) {
	if err := rk.checkRange(l, r); err != nil {
		return 0, err
	}
	pos, err := rk.tree.KthInDiff(version.ID(l-1), version.ID(r), k)
	if err != nil {
		return 0, err
	}
	return rk.sorted[pos-1], nil
}

// CountLess 返回 values[l-1 .. r-1] 中严格小于 x 的元素个数。
func (rk *RangeKth) CountLess(l, r int, x int64) (int64, error) {
	if err := rk.checkRange(l, r); err != nil {
		return 0, err
	}
	rank := sort.Search(len(rk.sorted), func(i int) bool { return rk.sorted[i] >= x })
	if rank == 0 {
		return 0, nil
	}
	hi, err := rk.tree.Query(version.ID(r), 1, rank)
	if err != nil {
		return 0, err
	}
	lo, err := rk.tree.Query(version.ID(l-1), 1, rank)
	if err != nil {
		return 0, err
	}
	return hi - lo, nil
}

// Len 原数组长度。
func (rk *RangeKth) Len() int { return rk.n }

// Tree 底层的可持久化线段树。
func (rk *RangeKth) Tree() *Tree { return rk.tree }

func (rk *RangeKth) checkRange(l, r int) error {
	if l < 1 || r > rk.n || l > r {
		return xerrors.ErrInvalidRange.Derive("range [%d, %d] outside [1, %d]", l, r, rk.n)
	}
	return nil
}

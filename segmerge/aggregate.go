package segmerge

import (
	"github.com/wyfcoding/versioned/xerrors"
)

// Result 每个外部节点的子树统计。
type Result struct {
	// GreaterThanSelf[u] 子树中值严格大于 values[u] 的节点数。
	GreaterThanSelf []int64 `json:"greater_than_self"`
	// DominantCount[u] 子树中出现最多的值的出现次数。
	DominantCount   []int64 `json:"dominant_count"`
	// DominantSum[u] 子树中出现次数达到 DominantCount[u] 的所有值之和。
	DominantSum     []int64 `json:"dominant_sum"`
}

type frame struct {
	v        int
	expanded bool
}

// Aggregate 在 parent 描述的森林上自底向上合并，parent[u] == -1 表示根。
// 外部树的遍历使用显式栈，树深度不受调用栈限制。
func Aggregate(parent []int, values []int64, opts ...Option) (*Result, error) {
	n := len(parent)
	if n == 0 {
		return nil, xerrors.ErrEmptyInput.Derive("empty forest")
	}
	if len(values) != n {
		return nil, xerrors.ErrInvalidTree.Derive("%d parents, %d values", n, len(values))
	}

	children := make([][]int, n)
	var roots []int
	for u, p := range parent {
		switch {
		case p == -1:
			roots = append(roots, u)
		case p < 0 || p >= n || p == u:
			return nil, xerrors.ErrInvalidTree.Derive("node %d has parent %d", u, p)
		default:
			children[p] = append(children[p], u)
		}
	}

	f, err := NewForest(n, values, opts...)
	if err != nil {
		return nil, err
	}
	res := &Result{
		GreaterThanSelf: make([]int64, n),
		DominantCount:   make([]int64, n),
		DominantSum:     make([]int64, n),
	}

	visited := 0
	for _, root := range roots {
		stack := []frame{{v: root}}
		for len(stack) > 0 {
			top := len(stack) - 1
			cur := stack[top]
			if !cur.expanded {
				stack[top].expanded = true
				visited++
				if err := f.AttachLeaf(cur.v, values[cur.v]); err != nil {
					return nil, err
				}
				for _, c := range children[cur.v] {
					stack = append(stack, frame{v: c})
				}
				continue
			}
			stack = stack[:top]

			for _, c := range children[cur.v] {
				if _, err := f.MergeChildInto(cur.v, c); err != nil {
					return nil, err
				}
			}
			if res.GreaterThanSelf[cur.v], err = f.QueryGreaterThan(cur.v, values[cur.v]); err != nil {
				return nil, err
			}
			if res.DominantCount[cur.v], res.DominantSum[cur.v], err = f.Dominant(cur.v); err != nil {
				return nil, err
			}
		}
	}
	// 从根出发到达不了的节点必然在环上。
	if visited != n {
		return nil, xerrors.ErrInvalidTree.Derive("%d of %d nodes unreachable from a root", n-visited, n)
	}

	f.logger.Debug("forest aggregated", "nodes", n, "roots", len(roots), "arena", f.Nodes())
	return res, nil
}

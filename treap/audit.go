package treap

import (
	"github.com/wyfcoding/versioned/arena"
	"github.com/wyfcoding/versioned/version"
	"github.com/wyfcoding/versioned/xerrors"
)

// subtree 已校验子树的摘要。
type subtree struct {
	min, max int64
	size     int32
}

type auditFrame struct {
	id       arena.NodeID
	expanded bool
}

// Audit 全树自检：键满足二叉搜索树顺序，优先级满足大根堆，size 等于子树节点数。
func (t *Treap) Audit(v version.ID) error {
	root, err := t.versions.Root(v)
	if err != nil {
		return err
	}
	return t.audit(root, make(map[arena.NodeID]subtree))
}

// audit 迭代后序遍历，memo 记录已校验的节点，跨版本共享的子树只走一遍。
func (t *Treap) audit(root arena.NodeID, memo map[arena.NodeID]subtree) error {
	if root == arena.Nil {
		return nil
	}
	visiting := make(map[arena.NodeID]bool)
	stack := []auditFrame{{id: root}}
	for len(stack) > 0 {
		top := len(stack) - 1
		f := stack[top]
		if _, ok := memo[f.id]; ok {
			stack = stack[:top]
			continue
		}
		if f.id <= arena.Nil || int(f.id) >= t.nodes.Len() {
			return xerrors.ErrAuditFailed.Derive("invalid node %d", f.id)
		}
		nd := t.nodes.Get(f.id)

		if !f.expanded {
			if visiting[f.id] {
				return xerrors.ErrAuditFailed.Derive("cycle through node %d", f.id)
			}
			visiting[f.id] = true
			stack[top].expanded = true
			for _, c := range [2]arena.NodeID{nd.right, nd.left} {
				if c != arena.Nil {
					stack = append(stack, auditFrame{id: c})
				}
			}
			continue
		}

		stack = stack[:top]
		delete(visiting, f.id)
		sum := subtree{min: nd.key, max: nd.key, size: 1}
		if nd.left != arena.Nil {
			ls := memo[nd.left]
			if ls.max > nd.key {
				return xerrors.ErrAuditFailed.Derive("node %d key %d below left subtree max %d", f.id, nd.key, ls.max)
			}
			if t.nodes.Get(nd.left).priority > nd.priority {
				return xerrors.ErrAuditFailed.Derive("node %d priority below left child", f.id)
			}
			sum.min = ls.min
			sum.size += ls.size
		}
		if nd.right != arena.Nil {
			rs := memo[nd.right]
			if rs.min < nd.key {
				return xerrors.ErrAuditFailed.Derive("node %d key %d above right subtree min %d", f.id, nd.key, rs.min)
			}
			if t.nodes.Get(nd.right).priority > nd.priority {
				return xerrors.ErrAuditFailed.Derive("node %d priority below right child", f.id)
			}
			sum.max = rs.max
			sum.size += rs.size
		}
		if nd.size != sum.size {
			return xerrors.ErrAuditFailed.Derive("node %d size %d, subtree holds %d", f.id, nd.size, sum.size)
		}
		memo[f.id] = sum
	}
	return nil
}

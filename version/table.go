// Package version 维护"版本号 -> 根节点"的映射表。
package version

import (
	"github.com/wyfcoding/versioned/xerrors"
)

// ID 版本号，按创建顺序从 0 递增。
type ID int

// None 表示没有父版本 (仅版本 0 使用)。
const None ID = -1

type entry[R any] struct {
	root   R
	parent ID
}

// Table 版本表。只追加，从不删除。
type Table[R any] struct {
	entries []entry[R]
}

// NewTable 创建一个空版本表。
func NewTable[R any](capacity int) *Table[R] {
	return &Table[R]{entries: make([]entry[R], 0, max(capacity, 1))}
}

// ClearOnError 以 defer version.ClearOnError(&v, &err) 形式使用，出错时把返回的版本号置为 None。
// 需在 arena.Guard 之前 defer，才能看到 Guard 写入的错误。
func ClearOnError(v *ID, err *error) {
	if *err != nil {
		*v = None
	}
}

// Append 登记一个由 parent 派生出的新版本并返回其版本号。
func (t *Table[R]) Append(root R, parent ID) ID {
	t.entries = append(t.entries, entry[R]{root: root, parent: parent})
	return ID(len(t.entries) - 1)
}

// Valid 报告 id 是否已创建。
func (t *Table[R]) Valid(id ID) bool {
	return id >= 0 && int(id) < len(t.entries)
}

// Root 返回版本 id 的根节点。
func (t *Table[R]) Root(id ID) (R, error) {
	if !t.Valid(id) {
		var zero R
		return zero, xerrors.ErrUnknownVersion.Derive("version %d not in [0, %d)", id, len(t.entries))
	}
	return t.entries[id].root, nil
}

// Parent 返回版本 id 的来源版本。
func (t *Table[R]) Parent(id ID) (ID, error) {
	if !t.Valid(id) {
		return None, xerrors.ErrUnknownVersion.Derive("version %d not in [0, %d)", id, len(t.entries))
	}
	return t.entries[id].parent, nil
}

// Len 版本数。
func (t *Table[R]) Len() int {
	return len(t.entries)
}

// Latest 最新版本号，空表返回 None。
func (t *Table[R]) Latest() ID {
	return ID(len(t.entries) - 1)
}

// Roots 按版本顺序返回所有根节点与父版本，供快照使用。
func (t *Table[R]) Roots() ([]R, []ID) {
	roots := make([]R, len(t.entries))
	parents := make([]ID, len(t.entries))
	for i, e := range t.entries {
		roots[i] = e.root
		parents[i] = e.parent
	}
	return roots, parents
}

// Restore 用快照中的根节点与父版本重建版本表。
func Restore[R any](roots []R, parents []ID) *Table[R] {
	t := NewTable[R](len(roots))
	for i, r := range roots {
		p := None
		if i < len(parents) {
			p = parents[i]
		}
		t.Append(r, p)
	}
	return t
}

// Package snapshot 把可持久化结构的节点池与版本表编码为可落盘的镜像。
//
// 节点字段按列拆开 (left / right / value ...)，每列以小端 int64 序列化后用 LZ4 块压缩。
// 列之间互不依赖，压缩与解压并行执行。
package snapshot

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/sourcegraph/conc"

	"github.com/wyfcoding/versioned/xerrors"
)

// FormatVersion 镜像格式版本。
const FormatVersion = 1

// Column 一列压缩后的节点字段。
type Column struct {
	Data []byte `json:"data"`
	Raw  bool   `json:"raw,omitempty"` // 数据不可压缩时原样存储。
}

// Image 结构镜像。
type Image struct {
	Kind    string            `json:"kind"`
	Meta    map[string]string `json:"meta"`
	Columns map[string]Column `json:"columns"`
	Roots   []int32           `json:"roots"`
	Parents []int             `json:"parents"`
	Format  int               `json:"format"`
	Count   int               `json:"count"` // 节点池槽位数 (含 0 号哨兵)。
}

// Pack 并行压缩各列。所有列长度必须等于 count。
func Pack(kind string, count int, cols map[string][]int64) *Image {
	img := &Image{
		Format:  FormatVersion,
		Kind:    kind,
		Count:   count,
		Meta:    make(map[string]string),
		Columns: make(map[string]Column, len(cols)),
	}

	type result struct {
		name string
		col  Column
	}
	results := make([]result, 0, len(cols))
	for name := range cols {
		results = append(results, result{name: name})
	}

	var wg conc.WaitGroup
	for i := range results {
		wg.Go(func() {
			results[i].col = compressInt64s(cols[results[i].name])
		})
	}
	wg.Wait()

	for _, r := range results {
		img.Columns[r.name] = r.col
	}
	return img
}

// Unpack 并行解压所有列。
func (img *Image) Unpack() (map[string][]int64, error) {
	if err := img.checkCount(); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(img.Columns))
	for name := range img.Columns {
		names = append(names, name)
	}
	out := make([][]int64, len(names))
	errs := make([]error, len(names))

	var wg conc.WaitGroup
	for i, name := range names {
		wg.Go(func() {
			out[i], errs[i] = decompressInt64s(img.Columns[name], img.Count)
		})
	}
	wg.Wait()

	cols := make(map[string][]int64, len(names))
	for i, name := range names {
		if errs[i] != nil {
			return nil, xerrors.ErrSnapshotCorrupt.Derive("column %s: %v", name, errs[i])
		}
		cols[name] = out[i]
	}
	return cols, nil
}

// Require 校验镜像类型并返回所需的列。
func (img *Image) Require(kind string, names ...string) (map[string][]int64, error) {
	if img == nil {
		return nil, xerrors.ErrSnapshotCorrupt.Derive("nil image")
	}
	if img.Format != FormatVersion {
		return nil, xerrors.ErrSnapshotCorrupt.Derive("format %d, want %d", img.Format, FormatVersion)
	}
	if img.Kind != kind {
		return nil, xerrors.ErrSnapshotCorrupt.Derive("kind %q, want %q", img.Kind, kind)
	}
	if err := img.checkCount(); err != nil {
		return nil, err
	}
	for _, name := range names {
		if _, ok := img.Columns[name]; !ok {
			return nil, xerrors.ErrSnapshotCorrupt.Derive("missing column %s", name)
		}
	}
	if len(img.Parents) != len(img.Roots) {
		return nil, xerrors.ErrSnapshotCorrupt.Derive("%d roots, %d parents", len(img.Roots), len(img.Parents))
	}
	for _, r := range img.Roots {
		if r < 0 || int(r) >= img.Count {
			return nil, xerrors.ErrSnapshotCorrupt.Derive("root %d outside arena of %d", r, img.Count)
		}
	}
	return img.Unpack()
}

// checkCount 节点下标是 int32，槽位数不能超出其范围。
func (img *Image) checkCount() error {
	if img.Count < 1 || img.Count > math.MaxInt32 {
		return xerrors.ErrSnapshotCorrupt.Derive("node count %d", img.Count)
	}
	return nil
}

// SetInt 写入整型元数据。
func (img *Image) SetInt(key string, v int64) {
	img.Meta[key] = strconv.FormatInt(v, 10)
}

// Int 读取整型元数据。
func (img *Image) Int(key string) (int64, error) {
	raw, ok := img.Meta[key]
	if !ok {
		return 0, xerrors.ErrSnapshotCorrupt.Derive("missing meta %s", key)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, xerrors.ErrSnapshotCorrupt.Derive("meta %s: %v", key, err)
	}
	return v, nil
}

// Encode 以 JSON 写出镜像。
func (img *Image) Encode(w io.Writer) error {
	if err := json.NewEncoder(w).Encode(img); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return nil
}

// Decode 读取 JSON 镜像。
func Decode(r io.Reader) (*Image, error) {
	var img Image
	if err := json.NewDecoder(r).Decode(&img); err != nil {
		return nil, xerrors.ErrSnapshotCorrupt.Derive("decode: %v", err)
	}
	return &img, nil
}

// CheckChildren 校验子节点下标都落在节点池内。
func CheckChildren(count int, cols ...[]int64) error {
	for _, col := range cols {
		for i, c := range col {
			if c < 0 || c >= int64(count) {
				return xerrors.ErrSnapshotCorrupt.Derive("slot %d references node %d outside arena of %d", i, c, count)
			}
		}
	}
	return nil
}

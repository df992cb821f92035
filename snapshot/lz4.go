package snapshot

import (
	"encoding/binary"
	"fmt"

	"github.com/pierrec/lz4/v4"
)

const (
	int64ByteSize = 8
	// maxExpansion lz4 块压缩的最大解压倍数。
	maxExpansion = 255
)

func compressInt64s(data []int64) Column {
	raw := make([]byte, len(data)*int64ByteSize)
	for i, v := range data {
		binary.LittleEndian.PutUint64(raw[i*int64ByteSize:], uint64(v)) //nolint:gosec // 按位保存。
	}

	compressed := make([]byte, lz4.CompressBlockBound(len(raw)))
	written, err := lz4.CompressBlock(raw, compressed, nil)
	if err != nil || written == 0 {
		return Column{Data: raw, Raw: true}
	}
	return Column{Data: compressed[:written]}
}

func decompressInt64s(col Column, count int) ([]int64, error) {
	raw := col.Data
	if !col.Raw {
		if count > len(col.Data)*maxExpansion/int64ByteSize {
			return nil, fmt.Errorf("%d compressed bytes cannot hold %d values", len(col.Data), count)
		}
		raw = make([]byte, count*int64ByteSize)
		n, err := lz4.UncompressBlock(col.Data, raw)
		if err != nil {
			return nil, fmt.Errorf("lz4: %w", err)
		}
		raw = raw[:n]
	}
	if len(raw) != count*int64ByteSize {
		return nil, fmt.Errorf("column holds %d bytes, want %d", len(raw), count*int64ByteSize)
	}

	out := make([]int64, count)
	for i := range out {
		out[i] = int64(binary.LittleEndian.Uint64(raw[i*int64ByteSize:])) //nolint:gosec // 按位恢复。
	}
	return out, nil
}

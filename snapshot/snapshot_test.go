package snapshot

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/versioned/retry"
	"github.com/wyfcoding/versioned/storage"
	"github.com/wyfcoding/versioned/xerrors"
)

func sampleImage() *Image {
	const n = 1000
	left := make([]int64, n)
	value := make([]int64, n)
	noise := make([]int64, n)
	var x uint64 = 88172645463325252
	for i := range n {
		left[i] = int64(i / 2)
		value[i] = -int64(i) * 3
		x ^= x << 13
		x ^= x >> 7
		x ^= x << 17
		noise[i] = int64(x) //nolint:gosec // 测试数据。
	}
	img := Pack("test", n, map[string][]int64{"left": left, "value": value, "noise": noise})
	img.SetInt("n", 42)
	img.Roots = []int32{1, 2}
	img.Parents = []int{-1, 0}
	return img
}

func TestPackUnpackRoundTrip(t *testing.T) {
	img := sampleImage()
	assert.False(t, img.Columns["left"].Raw)
	assert.Less(t, len(img.Columns["left"].Data), 1000*8)

	cols, err := img.Require("test", "left", "value", "noise")
	require.NoError(t, err)
	assert.Equal(t, int64(499), cols["left"][999])
	assert.Equal(t, int64(-2997), cols["value"][999])
	assert.Len(t, cols["noise"], 1000)

	n, err := img.Int("n")
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
}

func TestRequireRejectsMismatch(t *testing.T) {
	img := sampleImage()
	_, err := img.Require("other")
	assert.ErrorIs(t, err, xerrors.ErrSnapshotCorrupt)
	_, err = img.Require("test", "right")
	assert.ErrorIs(t, err, xerrors.ErrSnapshotCorrupt)

	img.Roots = []int32{1, 5000}
	_, err = img.Require("test")
	assert.ErrorIs(t, err, xerrors.ErrSnapshotCorrupt)

	// 槽位数超出 int32 或溢出乘法时直接拒绝，不去分配。
	for _, count := range []int{1 << 46, 1 << 61, math.MaxInt32 + 1, -1} {
		img = sampleImage()
		img.Count = count
		_, err = img.Require("test", "left")
		assert.ErrorIs(t, err, xerrors.ErrSnapshotCorrupt, "count %d", count)
		_, err = img.Unpack()
		assert.ErrorIs(t, err, xerrors.ErrSnapshotCorrupt, "count %d", count)
	}

	// 压缩列的长度不可能解出这么多值。
	img = sampleImage()
	img.Count = 1 << 24
	img.Roots = []int32{1, 2}
	_, err = img.Require("test", "left")
	assert.ErrorIs(t, err, xerrors.ErrSnapshotCorrupt)
	_, err = decompressInt64s(Column{Data: []byte{0x10, 0x01}}, 1<<20)
	assert.Error(t, err)

	img = sampleImage()
	col := img.Columns["value"]
	col.Data = col.Data[:len(col.Data)/2]
	img.Columns["value"] = col
	_, err = img.Require("test", "value")
	assert.ErrorIs(t, err, xerrors.ErrSnapshotCorrupt)

	_, err = (*Image)(nil).Require("test")
	assert.ErrorIs(t, err, xerrors.ErrSnapshotCorrupt)
}

func TestCheckChildren(t *testing.T) {
	assert.NoError(t, CheckChildren(3, []int64{0, 1, 2}))
	assert.ErrorIs(t, CheckChildren(3, []int64{0, 3}), xerrors.ErrSnapshotCorrupt)
	assert.ErrorIs(t, CheckChildren(3, []int64{-1}), xerrors.ErrSnapshotCorrupt)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode(bytes.NewBufferString("{not json"))
	assert.ErrorIs(t, err, xerrors.ErrSnapshotCorrupt)
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	img := sampleImage()
	require.NoError(t, store.Save(ctx, "prices", img))
	got, err := store.Load(ctx, "prices")
	require.NoError(t, err)
	assert.Equal(t, img.Roots, got.Roots)
	assert.Equal(t, img.Columns, got.Columns)

	_, err = store.Load(ctx, "missing")
	e, ok := xerrors.FromError(err)
	require.True(t, ok)
	assert.Equal(t, xerrors.ErrNotFound, e.Type)

	assert.Error(t, store.Save(ctx, "../escape", img))
	assert.Error(t, store.Save(ctx, "", img))
}

type memStorage struct {
	mu       sync.Mutex
	objects  map[string][]byte
	failures int // 前 failures 次上传返回错误。
	uploads  int
}

func (m *memStorage) Upload(_ context.Context, name string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads++
	if m.uploads <= m.failures {
		return errors.New("connection reset")
	}
	m.objects[name] = data
	return nil
}

func (m *memStorage) Download(_ context.Context, name string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[name]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memStorage) Exists(_ context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[name]
	return ok, nil
}

func (m *memStorage) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, name)
	return nil
}

func TestObjectStore(t *testing.T) {
	ctx := context.Background()
	backend := &memStorage{objects: make(map[string][]byte)}
	store := NewObjectStore(backend, "snapshots/")

	img := sampleImage()
	require.NoError(t, store.Save(ctx, "orders", img))
	ok, err := backend.Exists(ctx, "snapshots/orders.snap.json")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := store.Load(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, img.Meta, got.Meta)

	_, err = store.Load(ctx, "nope")
	e, isErr := xerrors.FromError(err)
	require.True(t, isErr)
	assert.Equal(t, xerrors.ErrNotFound, e.Type)
}

func TestObjectStoreRetriesUpload(t *testing.T) {
	ctx := context.Background()
	backend := &memStorage{objects: make(map[string][]byte), failures: 2}
	store := NewObjectStore(backend, "").WithRetry(retry.Policy{Attempts: 3, InitialBackoff: time.Millisecond})

	img := sampleImage()
	require.NoError(t, store.Save(ctx, "orders", img))
	assert.Equal(t, 3, backend.uploads)

	got, err := store.Load(ctx, "orders")
	require.NoError(t, err)
	cols, err := got.Require("test", "left")
	require.NoError(t, err)
	assert.Equal(t, int64(499), cols["left"][999])

	backend.failures, backend.uploads = 5, 0
	assert.Error(t, store.Save(ctx, "orders", img))
	assert.Equal(t, 3, backend.uploads)
}

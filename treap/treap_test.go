package treap

import (
	"bytes"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/versioned/snapshot"
	"github.com/wyfcoding/versioned/version"
	"github.com/wyfcoding/versioned/xerrors"
)

func TestInsertDeleteKeepsOldVersions(t *testing.T) {
	tr := New(WithSeed(7))
	v1, err := tr.Insert(0, 5)
	require.NoError(t, err)
	v2, err := tr.Insert(v1, 3)
	require.NoError(t, err)
	v3, err := tr.Insert(v2, 8)
	require.NoError(t, err)

	k, err := tr.Kth(v3, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), k)
	r, err := tr.Rank(v3, 8)
	require.NoError(t, err)
	assert.Equal(t, 3, r)

	v4, err := tr.Delete(v3, 5)
	require.NoError(t, err)
	k, err = tr.Kth(v4, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(8), k)
	k, err = tr.Kth(v3, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), k)

	keys, err := tr.Keys(v4)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 8}, keys)
	size, err := tr.Size(0)
	require.NoError(t, err)
	assert.Zero(t, size)
}

func TestPredecessorSuccessorSentinels(t *testing.T) {
	tr := New(WithSeed(1))
	v := version.ID(0)
	var err error
	for _, k := range []int64{10, 20, 20, 30} {
		v, err = tr.Insert(v, k)
		require.NoError(t, err)
	}

	for _, tc := range []struct {
		key        int64
		pred, succ int64
	}{
		{5, MinKey, 10},
		{10, MinKey, 20},
		{20, 10, 30},
		{25, 20, 30},
		{30, 20, MaxKey},
		{99, 30, MaxKey},
	} {
		p, err := tr.Predecessor(v, tc.key)
		require.NoError(t, err)
		assert.Equal(t, tc.pred, p, "pred(%d)", tc.key)
		s, err := tr.Successor(v, tc.key)
		require.NoError(t, err)
		assert.Equal(t, tc.succ, s, "succ(%d)", tc.key)
	}

	p, err := tr.Predecessor(0, 1)
	require.NoError(t, err)
	assert.Equal(t, MinKey, p)
	s, err := tr.Successor(0, 1)
	require.NoError(t, err)
	assert.Equal(t, MaxKey, s)
}

func TestDeleteMissingKeySharesRoot(t *testing.T) {
	tr := New(WithSeed(3))
	v1, err := tr.Insert(0, 4)
	require.NoError(t, err)

	before := tr.Nodes()
	v2, err := tr.Delete(v1, 9)
	require.NoError(t, err)
	assert.Equal(t, before, tr.Nodes())
	assert.Equal(t, tr.versions.Len()-1, int(v2))

	root1, _ := tr.versions.Root(v1)
	root2, _ := tr.versions.Root(v2)
	assert.Equal(t, root1, root2)

	// 只删除一个重复元素。
	v3, err := tr.Insert(v2, 4)
	require.NoError(t, err)
	v4, err := tr.Delete(v3, 4)
	require.NoError(t, err)
	keys, err := tr.Keys(v4)
	require.NoError(t, err)
	assert.Equal(t, []int64{4}, keys)
}

func TestKthOutOfRange(t *testing.T) {
	tr := New(WithSeed(2))
	v, err := tr.Insert(0, 1)
	require.NoError(t, err)

	for _, k := range []int{0, -1, 2} {
		_, err := tr.Kth(v, k)
		assert.ErrorIs(t, err, xerrors.ErrOutOfRange, "k=%d", k)
	}
	_, err = tr.Kth(0, 1)
	assert.ErrorIs(t, err, xerrors.ErrOutOfRange)
}

func TestUnknownVersion(t *testing.T) {
	tr := New()
	_, err := tr.Insert(3, 1)
	assert.ErrorIs(t, err, xerrors.ErrUnknownVersion)
	_, err = tr.Delete(-1, 1)
	assert.ErrorIs(t, err, xerrors.ErrUnknownVersion)
	_, err = tr.Rank(1, 1)
	assert.ErrorIs(t, err, xerrors.ErrUnknownVersion)
	_, err = tr.Checkout(5)
	assert.ErrorIs(t, err, xerrors.ErrUnknownVersion)
}

func rank(keys []int64, x int64) int {
	n := 0
	for _, k := range keys {
		if k < x {
			n++
		}
	}
	return n + 1
}

func TestMatchesSortedSliceModel(t *testing.T) {
	rng := rand.New(rand.NewPCG(11, 13))
	tr := New(WithSeed(42))
	model := [][]int64{nil}

	for step := 0; step < 600; step++ {
		base := version.ID(rng.IntN(len(model)))
		key := rng.Int64N(40)
		var v version.ID
		var err error
		want := slices.Clone(model[base])
		switch rng.IntN(4) {
		case 0:
			v, err = tr.Delete(base, key)
			if i, ok := slices.BinarySearch(want, key); ok {
				want = slices.Delete(want, i, i+1)
			}
		case 1:
			v, err = tr.Checkout(base)
		default:
			v, err = tr.Insert(base, key)
			i, _ := slices.BinarySearch(want, key)
			want = slices.Insert(want, i, key)
		}
		require.NoError(t, err)
		require.Equal(t, version.ID(len(model)), v)
		model = append(model, want)

		probe := version.ID(rng.IntN(len(model)))
		keys, err := tr.Keys(probe)
		require.NoError(t, err)
		require.Equal(t, len(model[probe]), len(keys))
		if len(keys) > 0 {
			require.Equal(t, model[probe], keys)
		}
		x := rng.Int64N(44) - 2
		r, err := tr.Rank(probe, x)
		require.NoError(t, err)
		require.Equal(t, rank(model[probe], x), r)
		ok, err := tr.Contains(probe, x)
		require.NoError(t, err)
		require.Equal(t, slices.Contains(model[probe], x), ok)
		if n := len(model[probe]); n > 0 {
			k := 1 + rng.IntN(n)
			got, err := tr.Kth(probe, k)
			require.NoError(t, err)
			require.Equal(t, model[probe][k-1], got)
		}
	}

	for v := range model {
		require.NoError(t, tr.Audit(version.ID(v)), "version %d", v)
	}
}

func TestSeedReproducesShape(t *testing.T) {
	build := func() *Treap {
		tr := New(WithSeed(99))
		v := version.ID(0)
		var err error
		for _, k := range []int64{9, 2, 7, 4, 4, 1, 8} {
			v, err = tr.Insert(v, k)
			require.NoError(t, err)
		}
		_, err = tr.Delete(v, 4)
		require.NoError(t, err)
		return tr
	}
	a, b := build(), build()
	assert.Equal(t, a.nodes.Nodes(), b.nodes.Nodes())
	assert.Equal(t, uint64(99), a.Seed())
}

func TestArenaLimitRollsBack(t *testing.T) {
	tr := New(WithSeed(5), WithArenaLimit(8))
	v := version.ID(0)
	var err error
	for k := int64(1); ; k++ {
		nodes, versions := tr.Nodes(), tr.Versions()
		next, insErr := tr.Insert(v, k)
		if insErr != nil {
			assert.ErrorIs(t, insErr, xerrors.ErrArenaExhausted)
			assert.Equal(t, version.None, next)
			assert.Equal(t, nodes, tr.Nodes())
			assert.Equal(t, versions, tr.Versions())
			break
		}
		v = next
		require.Less(t, k, int64(8))
	}
	require.NoError(t, tr.Audit(v))
	_, err = tr.Kth(v, 1)
	require.NoError(t, err)
}

func TestSnapshotRoundTrip(t *testing.T) {
	tr := New(WithSeed(17))
	v := version.ID(0)
	var err error
	for _, k := range []int64{6, -3, 12, 6, 0} {
		v, err = tr.Insert(v, k)
		require.NoError(t, err)
	}
	v, err = tr.Delete(v, 12)
	require.NoError(t, err)

	img, err := tr.Snapshot()
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, img.Encode(&buf))
	decoded, err := snapshot.Decode(&buf)
	require.NoError(t, err)

	restored, err := Restore(decoded)
	require.NoError(t, err)
	assert.Equal(t, tr.Versions(), restored.Versions())
	for u := version.ID(0); int(u) < tr.Versions(); u++ {
		want, err := tr.Keys(u)
		require.NoError(t, err)
		got, err := restored.Keys(u)
		require.NoError(t, err)
		assert.Equal(t, want, got, "version %d", u)
	}

	// 随机数状态一并恢复，后续插入得到相同的树形。
	_, err = tr.Insert(v, 3)
	require.NoError(t, err)
	_, err = restored.Insert(v, 3)
	require.NoError(t, err)
	assert.Equal(t, tr.nodes.Nodes(), restored.nodes.Nodes())
}

func TestRestoreRejectsCorruptImages(t *testing.T) {
	tr := New(WithSeed(4))
	v := version.ID(0)
	var err error
	for _, k := range []int64{1, 2, 3} {
		v, err = tr.Insert(v, k)
		require.NoError(t, err)
	}
	img, err := tr.Snapshot()
	require.NoError(t, err)
	cols, err := img.Unpack()
	require.NoError(t, err)
	for i := range cols["size"] {
		if i > 0 {
			cols["size"][i] += 5
		}
	}
	broken := snapshot.Pack(SnapshotKind, img.Count, cols)
	broken.Meta = img.Meta
	broken.Roots, broken.Parents = img.Roots, img.Parents

	_, err = Restore(broken)
	assert.ErrorIs(t, err, xerrors.ErrSnapshotCorrupt)

	img.Kind = "segtree"
	_, err = Restore(img)
	assert.ErrorIs(t, err, xerrors.ErrSnapshotCorrupt)
}

package version

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/versioned/xerrors"
)

func TestAppendAssignsSequentialIDs(t *testing.T) {
	t.Parallel()

	tb := NewTable[int32](0)
	assert.Equal(t, None, tb.Latest())

	v0 := tb.Append(10, None)
	v1 := tb.Append(11, v0)
	v2 := tb.Append(12, v0)

	assert.Equal(t, ID(0), v0)
	assert.Equal(t, ID(1), v1)
	assert.Equal(t, ID(2), v2)
	assert.Equal(t, 3, tb.Len())

	root, err := tb.Root(v2)
	require.NoError(t, err)
	assert.Equal(t, int32(12), root)

	parent, err := tb.Parent(v2)
	require.NoError(t, err)
	assert.Equal(t, v0, parent, "a version may derive from any earlier version")
}

func TestUnknownVersion(t *testing.T) {
	t.Parallel()

	tb := NewTable[int32](4)
	tb.Append(1, None)

	for _, id := range []ID{-1, 1, 100} {
		_, err := tb.Root(id)
		require.Error(t, err)
		assert.True(t, errors.Is(err, xerrors.ErrUnknownVersion), "id %d", id)
	}
}

func TestRestoreRoundTrip(t *testing.T) {
	t.Parallel()

	tb := NewTable[int32](0)
	tb.Append(3, None)
	tb.Append(5, 0)
	tb.Append(5, 1)

	roots, parents := tb.Roots()
	back := Restore(roots, parents)

	assert.Equal(t, tb.Len(), back.Len())
	for i := range tb.Len() {
		r1, _ := tb.Root(ID(i))
		r2, _ := back.Root(ID(i))
		assert.Equal(t, r1, r2)
		p1, _ := tb.Parent(ID(i))
		p2, _ := back.Parent(ID(i))
		assert.Equal(t, p1, p2)
	}
}

func TestClearOnError(t *testing.T) {
	run := func(fail bool) (v ID, err error) {
		defer ClearOnError(&v, &err)
		v = 3
		if fail {
			err = errors.New("boom")
		}
		return v, err
	}
	v, err := run(false)
	require.NoError(t, err)
	assert.Equal(t, ID(3), v)

	v, err = run(true)
	require.Error(t, err)
	assert.Equal(t, None, v)
}

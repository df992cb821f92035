package segmerge

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/versioned/xerrors"
)

func TestMergeConsumesChild(t *testing.T) {
	f, err := NewForest(3, []int64{10, 20, 30})
	require.NoError(t, err)
	require.NoError(t, f.AttachLeaf(0, 10))
	require.NoError(t, f.AttachLeaf(1, 20))
	require.NoError(t, f.AttachLeaf(1, 30))
	require.NoError(t, f.AttachLeaf(2, 30))

	_, err = f.MergeChildInto(0, 1)
	require.NoError(t, err)
	_, err = f.MergeChildInto(0, 2)
	require.NoError(t, err)

	cnt, err := f.Count(0)
	require.NoError(t, err)
	assert.Equal(t, int64(4), cnt)
	gt, err := f.QueryGreaterThan(0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), gt)
	in, err := f.CountRange(0, 15, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(3), in)
	k, err := f.Kth(0, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(20), k)
	best, sum, err := f.Dominant(0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), best)
	assert.Equal(t, int64(30), sum)

	_, err = f.Count(1)
	assert.ErrorIs(t, err, xerrors.ErrConsumed)
	_, err = f.MergeChildInto(0, 2)
	assert.ErrorIs(t, err, xerrors.ErrConsumed)
	_, err = f.MergeChildInto(0, 0)
	assert.ErrorIs(t, err, xerrors.ErrInvalidTree)
	_, err = f.Kth(0, 5)
	assert.ErrorIs(t, err, xerrors.ErrOutOfRange)
}

func TestMergeWithEmptySideReturnsOther(t *testing.T) {
	f, err := NewForest(2, []int64{1, 2})
	require.NoError(t, err)
	require.NoError(t, f.AttachLeaf(1, 2))
	before := f.Nodes()

	root, err := f.MergeChildInto(0, 1)
	require.NoError(t, err)
	assert.NotZero(t, root)
	assert.Equal(t, before, f.Nodes())
	cnt, err := f.Count(0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cnt)
}

func TestAttachLeafRejectsUnknownValue(t *testing.T) {
	f, err := NewForest(1, []int64{1, 2})
	require.NoError(t, err)
	assert.Error(t, f.AttachLeaf(0, 3))
	assert.ErrorIs(t, f.AttachLeaf(4, 1), xerrors.ErrOutOfRange)
}

func TestAttachLeafArenaLimitKeepsTree(t *testing.T) {
	// 值域 4 时一条到叶子的链有 3 个节点。
	f, err := NewForest(2, []int64{1, 2, 3, 4}, WithArenaLimit(6))
	require.NoError(t, err)
	require.NoError(t, f.AttachLeaf(0, 1))
	require.NoError(t, f.AttachLeaf(0, 2))
	assert.Equal(t, 4, f.Nodes())

	err = f.AttachLeaf(1, 4)
	assert.ErrorIs(t, err, xerrors.ErrArenaExhausted)
	assert.Equal(t, 4, f.Nodes())
	cnt, err := f.Count(1)
	require.NoError(t, err)
	assert.Zero(t, cnt)
	cnt, err = f.Count(0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), cnt)
}

func TestAggregatePromotionCounting(t *testing.T) {
	//      0(5)
	//     /    \
	//   1(3)   2(8)
	//   /  \
	// 3(4) 4(3)
	parent := []int{-1, 0, 0, 1, 1}
	values := []int64{5, 3, 8, 4, 3}
	res, err := Aggregate(parent, values)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 1, 0, 0, 0}, res.GreaterThanSelf)
	assert.Equal(t, []int64{2, 2, 1, 1, 1}, res.DominantCount)
	assert.Equal(t, []int64{3, 3, 8, 4, 3}, res.DominantSum)
}

func TestAggregateRejectsInvalidTrees(t *testing.T) {
	_, err := Aggregate(nil, nil)
	assert.ErrorIs(t, err, xerrors.ErrEmptyInput)
	_, err = Aggregate([]int{-1, 0}, []int64{1})
	assert.ErrorIs(t, err, xerrors.ErrInvalidTree)
	_, err = Aggregate([]int{-1, 5}, []int64{1, 2})
	assert.ErrorIs(t, err, xerrors.ErrInvalidTree)
	_, err = Aggregate([]int{-1, 1}, []int64{1, 2})
	assert.ErrorIs(t, err, xerrors.ErrInvalidTree)
	// 1 与 2 互为父节点，构成环。
	_, err = Aggregate([]int{-1, 2, 1}, []int64{1, 2, 3})
	assert.ErrorIs(t, err, xerrors.ErrInvalidTree)
}

func TestAggregateDeepChain(t *testing.T) {
	const n = 50000
	parent := make([]int, n)
	values := make([]int64, n)
	for i := range parent {
		parent[i] = i - 1
		values[i] = int64(n - i)
	}
	res, err := Aggregate(parent, values)
	require.NoError(t, err)
	// 链上越靠下的值越小，因此没有后代大于自己。
	assert.Zero(t, res.GreaterThanSelf[0])
	assert.Equal(t, int64(1), res.DominantCount[0])
}

func TestAggregateMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	for round := 0; round < 20; round++ {
		n := 1 + rng.IntN(60)
		parent := make([]int, n)
		values := make([]int64, n)
		for u := range parent {
			parent[u] = -1
			if u > 0 && rng.IntN(5) > 0 {
				parent[u] = rng.IntN(u)
			}
			values[u] = rng.Int64N(8)
		}
		res, err := Aggregate(parent, values)
		require.NoError(t, err)

		for u := range n {
			var sub []int64
			for w := range n {
				for a := w; a != -1; a = parent[a] {
					if a == u {
						sub = append(sub, values[w])
						break
					}
				}
			}
			var gt int64
			freq := map[int64]int64{}
			for _, x := range sub {
				if x > values[u] {
					gt++
				}
				freq[x]++
			}
			var best, sum int64
			keys := make([]int64, 0, len(freq))
			for x := range freq {
				keys = append(keys, x)
			}
			slices.Sort(keys)
			for _, x := range keys {
				switch c := freq[x]; {
				case c > best:
					best, sum = c, x
				case c == best:
					sum += x
				}
			}
			require.Equal(t, gt, res.GreaterThanSelf[u], "round %d node %d", round, u)
			require.Equal(t, best, res.DominantCount[u], "round %d node %d", round, u)
			require.Equal(t, sum, res.DominantSum[u], "round %d node %d", round, u)
		}
	}
}

package history

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddAssignsMonotoneIndices(t *testing.T) {
	h := New[float64](4)
	i0 := h.Add(1.0)
	i1 := h.Add(2.0)
	require.Equal(t, int64(0), i0)
	require.Equal(t, int64(1), i1)
	require.Equal(t, 2, h.Len())
}

func TestFindAfterEviction(t *testing.T) {
	h := New[int](3)
	for i := 0; i < 5; i++ {
		h.Add(i)
	}
	// indices 0 and 1 should have been evicted; 2,3,4 remain.
	_, ok := h.Find(0)
	require.False(t, ok)
	v, ok := h.Find(4)
	require.True(t, ok)
	require.Equal(t, 4, v)
	require.Equal(t, 3, h.Len())
}

func TestRangeClampsToHeldWindow(t *testing.T) {
	h := New[int](3)
	for i := 0; i < 5; i++ {
		h.Add(i)
	}
	got := h.Range(0, 100)
	require.Equal(t, []int{2, 3, 4}, got)
}

func TestMinOverRange(t *testing.T) {
	h := New[int](8)
	for _, v := range []int{9, 3, 7, 1, 8} {
		h.Add(v)
	}
	less := func(a, b int) bool { return a < b }
	best, idx, ok := h.Min(0, 4, less)
	require.True(t, ok)
	require.Equal(t, 1, best)
	require.Equal(t, int64(3), idx)
}

func TestSetOverwritesHeldIndexWithoutReindexing(t *testing.T) {
	h := New[int](4)
	h.Add(1)
	h.Add(2)
	h.Add(3)
	require.True(t, h.Set(1, 99))
	v, ok := h.Find(1)
	require.True(t, ok)
	require.Equal(t, 99, v)
	require.Equal(t, 3, h.Len())

	require.False(t, h.Set(50, 1))
}

func TestLatest(t *testing.T) {
	h := New[int](4)
	_, ok := h.Latest()
	require.False(t, ok)
	h.Add(10)
	h.Add(20)
	idx, ok := h.Latest()
	require.True(t, ok)
	require.Equal(t, int64(1), idx)
}

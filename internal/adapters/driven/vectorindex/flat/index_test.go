package flat

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func build(t *testing.T, ids []string, vectors [][]float32) *Index {
	t.Helper()
	idx, err := NewBuilder().Build(context.Background(), ids, vectors)
	require.NoError(t, err)
	return idx.(*Index)
}

func TestBuild_Empty(t *testing.T) {
	idx := build(t, nil, nil)
	assert.Equal(t, 0, idx.Len())

	hits, err := idx.Search(context.Background(), []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestBuild_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := NewBuilder().Build(ctx, []string{"1"}, nil)
	assert.Error(t, err)

	_, err = NewBuilder().Build(ctx, []string{"1", "1"}, [][]float32{{1, 0}, {0, 1}})
	assert.ErrorContains(t, err, "duplicate")

	_, err = NewBuilder().Build(ctx, []string{"1", "2"}, [][]float32{{1, 0}, {0, 1, 0}})
	assert.ErrorContains(t, err, "dimension")
}

func TestSearch_OrdersByCosine(t *testing.T) {
	idx := build(t,
		[]string{"1", "2", "3"},
		[][]float32{{1, 0}, {0, 1}, {1, 1}},
	)

	hits, err := idx.Search(context.Background(), []float32{2, 0}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)

	assert.Equal(t, "1", hits[0].ID)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-6)
	assert.Equal(t, "3", hits[1].ID)
	assert.InDelta(t, 0.7071, hits[1].Similarity, 1e-4)
	assert.Equal(t, "2", hits[2].ID)
	assert.InDelta(t, 0.0, hits[2].Similarity, 1e-6)
}

func TestSearch_TiesBrokenByAscendingID(t *testing.T) {
	idx := build(t,
		[]string{"10", "9", "b", "a"},
		[][]float32{{1, 0}, {1, 0}, {1, 0}, {1, 0}},
	)

	hits, err := idx.Search(context.Background(), []float32{1, 0}, 4)
	require.NoError(t, err)

	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	assert.Equal(t, []string{"9", "10", "a", "b"}, ids)
}

func TestSearch_LimitsToK(t *testing.T) {
	idx := build(t,
		[]string{"1", "2", "3", "4"},
		[][]float32{{1, 0}, {0.9, 0.1}, {0.5, 0.5}, {0, 1}},
	)

	hits, err := idx.Search(context.Background(), []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "1", hits[0].ID)
	assert.Equal(t, "2", hits[1].ID)

	hits, err = idx.Search(context.Background(), []float32{1, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearch_DimensionMismatch(t *testing.T) {
	idx := build(t, []string{"1"}, [][]float32{{1, 0}})
	_, err := idx.Search(context.Background(), []float32{1, 0, 0}, 1)
	assert.Error(t, err)
}

func TestVector_ReturnsUnitCopy(t *testing.T) {
	idx := build(t, []string{"1"}, [][]float32{{3, 4}})

	v, ok := idx.Vector("1")
	require.True(t, ok)
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	v[0] = 42
	again, _ := idx.Vector("1")
	assert.InDelta(t, 0.6, again[0], 1e-6)

	_, ok = idx.Vector("missing")
	assert.False(t, ok)
}

func TestSearch_Concurrent(t *testing.T) {
	idx := build(t,
		[]string{"1", "2", "3"},
		[][]float32{{1, 0}, {0, 1}, {1, 1}},
	)

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hits, err := idx.Search(context.Background(), []float32{1, 0}, 1)
			assert.NoError(t, err)
			assert.Equal(t, "1", hits[0].ID)
		}()
	}
	wg.Wait()
}

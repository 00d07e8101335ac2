// Package flat provides an exact, in-memory vector index.
//
// Vectors are normalised at build time and searched by brute-force inner
// product, which equals cosine similarity. The index is read-only after
// Build, so concurrent searches need no locking.
package flat

import (
	"container/heap"
	"context"
	"fmt"
	"math"

	"github.com/Jeremy-Tarlie/smartmarket/internal/core/domain"
	"github.com/Jeremy-Tarlie/smartmarket/internal/core/ports/driven"
)

// Ensure interface compliance.
var (
	_ driven.VectorIndex        = (*Index)(nil)
	_ driven.VectorIndexBuilder = Builder{}
)

// ctxCheckEvery is how many vectors are scanned between cancellation checks.
const ctxCheckEvery = 4096

// Builder creates flat indexes.
type Builder struct{}

// NewBuilder returns a flat index builder.
func NewBuilder() Builder {
	return Builder{}
}

// Build creates an index over ids and vectors. All vectors must share one
// dimension and ids must be unique.
func (Builder) Build(ctx context.Context, ids []string, vectors [][]float32) (driven.VectorIndex, error) {
	if len(ids) != len(vectors) {
		return nil, fmt.Errorf("flat: %d ids for %d vectors", len(ids), len(vectors))
	}
	idx := &Index{
		ids:  make([]string, len(ids)),
		data: nil,
		pos:  make(map[string]int, len(ids)),
	}
	if len(ids) == 0 {
		return idx, nil
	}
	idx.dims = len(vectors[0])
	idx.data = make([]float32, 0, len(ids)*idx.dims)

	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, dup := idx.pos[id]; dup {
			return nil, fmt.Errorf("flat: duplicate id %q", id)
		}
		if len(vectors[i]) != idx.dims {
			return nil, fmt.Errorf("flat: vector %q has dimension %d, expected %d", id, len(vectors[i]), idx.dims)
		}
		idx.ids[i] = id
		idx.pos[id] = i
		idx.data = append(idx.data, unit(vectors[i])...)
	}
	return idx, nil
}

// Index is an immutable exact similarity index.
type Index struct {
	ids  []string
	data []float32 // row-major, len(ids) * dims
	pos  map[string]int
	dims int
}

// Search returns at most k hits by descending cosine similarity, ties
// broken by ascending id.
func (x *Index) Search(ctx context.Context, query []float32, k int) ([]driven.VectorHit, error) {
	if k <= 0 || len(x.ids) == 0 {
		return nil, nil
	}
	if len(query) != x.dims {
		return nil, fmt.Errorf("flat: query dimension %d, index dimension %d", len(query), x.dims)
	}
	q := unit(query)

	h := make(minHeap, 0, min(k, len(x.ids)))
	for i := range x.ids {
		if i%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		hit := driven.VectorHit{ID: x.ids[i], Similarity: x.dot(i, q)}
		if len(h) < k {
			heap.Push(&h, hit)
			continue
		}
		if better(hit, h[0]) {
			h[0] = hit
			heap.Fix(&h, 0)
		}
	}

	out := make([]driven.VectorHit, len(h))
	for i := len(h) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&h).(driven.VectorHit)
	}
	return out, nil
}

// Vector returns a copy of the stored unit vector for id.
func (x *Index) Vector(id string) ([]float32, bool) {
	i, ok := x.pos[id]
	if !ok {
		return nil, false
	}
	out := make([]float32, x.dims)
	copy(out, x.data[i*x.dims:(i+1)*x.dims])
	return out, true
}

// Len returns the number of vectors.
func (x *Index) Len() int { return len(x.ids) }

// Dimensions returns the vector length.
func (x *Index) Dimensions() int { return x.dims }

func (x *Index) dot(row int, q []float32) float64 {
	v := x.data[row*x.dims : (row+1)*x.dims]
	var sum float64
	for i := range v {
		sum += float64(v[i]) * float64(q[i])
	}
	return sum
}

// better reports whether a ranks before b.
func better(a, b driven.VectorHit) bool {
	if a.Similarity != b.Similarity {
		return a.Similarity > b.Similarity
	}
	return domain.CompareIDs(a.ID, b.ID) < 0
}

// minHeap keeps the worst retained hit at the root.
type minHeap []driven.VectorHit

func (h minHeap) Len() int           { return len(h) }
func (h minHeap) Less(i, j int) bool { return better(h[j], h[i]) }
func (h minHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x any)        { *h = append(*h, x.(driven.VectorHit)) }
func (h *minHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

func unit(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	norm := math.Sqrt(sum)
	if norm == 0 {
		return out
	}
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// Package vector holds the in-memory exhaustive cosine index over accepted items.
package vector

import (
	"cmp"
	"math"
	"slices"
	"sync"

	apperrors "AutoNews/internal/errors"
)

// Ref points an index row back at the corpus entry it was built from.
type Ref struct {
	Link string
	Text string
}

// Hit is a single search result.
type Hit struct {
	Ref   Ref
	Score float64
}

// Index stores unit-normalized copies of vectors and answers top-K cosine queries.
// It only grows; there is no eviction.
type Index struct {
	mu      sync.RWMutex
	dim     int
	vectors [][]float32
	refs    []Ref
}

// NewIndex creates an empty index for vectors of the given dimension.
func NewIndex(dim int) (*Index, error) {
	if dim <= 0 {
		return nil, apperrors.NewConfiguration("index dimension must be positive")
	}
	return &Index{dim: dim}, nil
}

// Dim returns the fixed vector dimension.
func (idx *Index) Dim() int {
	return idx.dim
}

// Len returns the number of indexed vectors.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.vectors)
}

// Insert adds a normalized copy of vec.
func (idx *Index) Insert(vec []float32, ref Ref) error {
	if len(vec) != idx.dim {
		return apperrors.NewDimensionMismatch(idx.dim, len(vec))
	}
	normalized := Normalize(vec)

	idx.mu.Lock()
	idx.vectors = append(idx.vectors, normalized)
	idx.refs = append(idx.refs, ref)
	idx.mu.Unlock()
	return nil
}

// Search returns up to k hits ordered by descending cosine score.
// k <= 0 means every indexed vector. An empty index yields an empty slice.
func (idx *Index) Search(vec []float32, k int) ([]Hit, error) {
	if len(vec) != idx.dim {
		return nil, apperrors.NewDimensionMismatch(idx.dim, len(vec))
	}
	query := Normalize(vec)

	idx.mu.RLock()
	hits := make([]Hit, 0, len(idx.vectors))
	for i, v := range idx.vectors {
		hits = append(hits, Hit{Ref: idx.refs[i], Score: Dot(query, v)})
	}
	idx.mu.RUnlock()

	slices.SortStableFunc(hits, func(a, b Hit) int {
		return cmp.Compare(b.Score, a.Score)
	})

	if k > 0 && k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

// Normalize returns a unit-length copy of vec. Zero vectors are copied unchanged.
func Normalize(vec []float32) []float32 {
	out := make([]float32, len(vec))
	copy(out, vec)

	var sum float64
	for _, x := range vec {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return out
	}
	for i := range out {
		out[i] = float32(float64(out[i]) / norm)
	}
	return out
}

// Dot is the inner product; on unit vectors it equals cosine similarity.
func Dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// Cosine computes cosine similarity directly from raw vectors.
func Cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

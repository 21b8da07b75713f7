package vector

import (
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "AutoNews/internal/errors"
)

func TestSearch_EmptyIndex(t *testing.T) {
	idx, err := NewIndex(3)
	require.NoError(t, err)

	hits, err := idx.Search([]float32{1, 0, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearch_OrdersByScore(t *testing.T) {
	idx, err := NewIndex(2)
	require.NoError(t, err)

	require.NoError(t, idx.Insert([]float32{0, 5}, Ref{Link: "up"}))
	require.NoError(t, idx.Insert([]float32{3, 0}, Ref{Link: "right"}))
	require.NoError(t, idx.Insert([]float32{1, 1}, Ref{Link: "diag"}))

	hits, err := idx.Search([]float32{2, 0}, 0)
	require.NoError(t, err)
	require.Len(t, hits, 3)

	assert.Equal(t, "right", hits[0].Ref.Link)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
	assert.Equal(t, "diag", hits[1].Ref.Link)
	assert.InDelta(t, math.Sqrt2/2, hits[1].Score, 1e-6)
	assert.Equal(t, "up", hits[2].Ref.Link)
	assert.InDelta(t, 0.0, hits[2].Score, 1e-6)

	top, err := idx.Search([]float32{2, 0}, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "right", top[0].Ref.Link)
}

func TestInsert_DimensionMismatch(t *testing.T) {
	idx, err := NewIndex(4)
	require.NoError(t, err)

	err = idx.Insert([]float32{1, 2}, Ref{})
	assert.True(t, apperrors.Is(err, apperrors.ErrConfiguration))

	_, err = idx.Search([]float32{1}, 1)
	assert.True(t, apperrors.Is(err, apperrors.ErrConfiguration))
	assert.Equal(t, 0, idx.Len())
}

func TestNewIndex_RejectsNonPositiveDim(t *testing.T) {
	_, err := NewIndex(0)
	assert.True(t, apperrors.Is(err, apperrors.ErrConfiguration))
}

func TestInsert_StoresNormalizedCopy(t *testing.T) {
	idx, err := NewIndex(2)
	require.NoError(t, err)

	raw := []float32{3, 4}
	require.NoError(t, idx.Insert(raw, Ref{Link: "a"}))

	assert.Equal(t, []float32{3, 4}, raw, "caller vector must not be mutated")
	assert.InDelta(t, 0.6, idx.vectors[0][0], 1e-6)
	assert.InDelta(t, 0.8, idx.vectors[0][1], 1e-6)
}

func TestDotOfNormalizedMatchesCosine(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		a := randomVector(rng, 16)
		b := randomVector(rng, 16)
		assert.InDelta(t, Cosine(a, b), Dot(Normalize(a), Normalize(b)), 1e-6)
	}
}

func TestNormalize_ZeroVector(t *testing.T) {
	assert.Equal(t, []float32{0, 0}, Normalize([]float32{0, 0}))
}

func TestConcurrentInsertAndSearch(t *testing.T) {
	idx, err := NewIndex(8)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for i := 0; i < 50; i++ {
				v := randomVector(rng, 8)
				_ = idx.Insert(v, Ref{Link: "x"})
				_, _ = idx.Search(v, 3)
			}
		}(int64(w))
	}
	wg.Wait()

	assert.Equal(t, 200, idx.Len())
}

func randomVector(rng *rand.Rand, dim int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = float32(rng.NormFloat64())
	}
	return v
}

package dedup

import (
	"context"
	stderrors "errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AutoNews/internal/domain"
	"AutoNews/internal/vector"
)

const candidateText = "model x launches the new model x goes on sale today..."

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f *fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	return f.vec, f.err
}

type fakeReranker struct {
	mu     sync.Mutex
	scores map[string]float64
	errs   map[string]error
	calls  []string
}

func (f *fakeReranker) Rerank(_ context.Context, _, b string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, b)
	if err := f.errs[b]; err != nil {
		return 0, err
	}
	return f.scores[b], nil
}

type judgeAnswer struct {
	same  bool
	err   error
	block bool
}

type fakeJudge struct {
	mu      sync.Mutex
	answers map[string]judgeAnswer
	calls   []string
}

func (f *fakeJudge) SameEvent(ctx context.Context, _, b string) (bool, error) {
	f.mu.Lock()
	f.calls = append(f.calls, b)
	answer := f.answers[b]
	f.mu.Unlock()

	if answer.block {
		<-ctx.Done()
		return false, ctx.Err()
	}
	return answer.same, answer.err
}

// vecAt returns a 2-d unit vector whose cosine with (1, 0) is score.
func vecAt(score float64) []float32 {
	return []float32{float32(score), float32(math.Sqrt(1 - score*score))}
}

func newIndex(t *testing.T, entries map[string][]float32) *vector.Index {
	t.Helper()
	idx, err := vector.NewIndex(2)
	require.NoError(t, err)
	for text, vec := range entries {
		require.NoError(t, idx.Insert(vec, vector.Ref{Link: "https://corpus/" + text, Text: text}))
	}
	return idx
}

func TestCheck_EmptyCorpusIsNotDuplicate(t *testing.T) {
	idx := newIndex(t, nil)
	reranker := &fakeReranker{}
	judge := &fakeJudge{}

	c := NewCascade(CascadeDeps{
		Index:    idx,
		Embedder: &fakeEmbedder{vec: []float32{1, 0}},
		Reranker: reranker,
		Judge:    judge,
	})

	res := c.Check(context.Background(), candidateText)
	assert.Equal(t, domain.NotDuplicate, res.Verdict)
	assert.Equal(t, []float32{1, 0}, res.Embedding)
	assert.Empty(t, reranker.calls)
	assert.Empty(t, judge.calls)
}

func TestCheck_VectorStageShortCircuits(t *testing.T) {
	idx := newIndex(t, map[string][]float32{"same story": vecAt(0.95)})
	reranker := &fakeReranker{}
	judge := &fakeJudge{}

	c := NewCascade(CascadeDeps{
		Index:    idx,
		Embedder: &fakeEmbedder{vec: []float32{1, 0}},
		Reranker: reranker,
		Judge:    judge,
	})

	res := c.Check(context.Background(), candidateText)
	assert.True(t, res.IsDuplicate())
	assert.Equal(t, domain.StageVector, res.Stage)
	assert.Equal(t, "https://corpus/same story", res.MatchedLink)
	assert.InDelta(t, 0.95, res.Score, 1e-6)
	assert.Empty(t, reranker.calls, "no rerank calls after a vector hit")
	assert.Empty(t, judge.calls, "no judge calls after a vector hit")
}

func TestCheck_RerankStageDetectsDuplicate(t *testing.T) {
	idx := newIndex(t, map[string][]float32{"close story": vecAt(0.85)})
	reranker := &fakeReranker{scores: map[string]float64{"close story": 0.92}}
	judge := &fakeJudge{}

	c := NewCascade(CascadeDeps{
		Index:    idx,
		Embedder: &fakeEmbedder{vec: []float32{1, 0}},
		Reranker: reranker,
		Judge:    judge,
	})

	res := c.Check(context.Background(), candidateText)
	assert.True(t, res.IsDuplicate())
	assert.Equal(t, domain.StageRerank, res.Stage)
	assert.InDelta(t, 0.92, res.Score, 1e-9)
	assert.Empty(t, judge.calls)
}

func TestCheck_JudgeYesIsDuplicate(t *testing.T) {
	idx := newIndex(t, map[string][]float32{"close story": vecAt(0.85)})
	reranker := &fakeReranker{scores: map[string]float64{"close story": 0.85}}
	judge := &fakeJudge{answers: map[string]judgeAnswer{"close story": {same: true}}}

	c := NewCascade(CascadeDeps{
		Index:    idx,
		Embedder: &fakeEmbedder{vec: []float32{1, 0}},
		Reranker: reranker,
		Judge:    judge,
	})

	res := c.Check(context.Background(), candidateText)
	assert.True(t, res.IsDuplicate())
	assert.Equal(t, domain.StageJudge, res.Stage)
	assert.Equal(t, []string{"close story"}, judge.calls)
}

func TestCheck_JudgeTimeoutFallsThrough(t *testing.T) {
	idx := newIndex(t, map[string][]float32{
		"first":  vecAt(0.86),
		"second": vecAt(0.84),
	})
	reranker := &fakeReranker{scores: map[string]float64{"first": 0.88, "second": 0.85}}
	judge := &fakeJudge{answers: map[string]judgeAnswer{
		"first":  {block: true},
		"second": {same: true},
	}}

	c := NewCascade(CascadeDeps{
		Index:    idx,
		Embedder: &fakeEmbedder{vec: []float32{1, 0}},
		Reranker: reranker,
		Judge:    judge,
		Config:   Config{CallTimeout: 20 * time.Millisecond},
	})

	res := c.Check(context.Background(), candidateText)
	assert.True(t, res.IsDuplicate())
	assert.Equal(t, "https://corpus/second", res.MatchedLink)
	assert.Equal(t, []string{"first", "second"}, judge.calls, "ambiguous entries are judged by rerank score")
}

func TestCheck_JudgeTimeoutAloneIsNotDuplicate(t *testing.T) {
	idx := newIndex(t, map[string][]float32{"close story": vecAt(0.85)})
	reranker := &fakeReranker{scores: map[string]float64{"close story": 0.85}}
	judge := &fakeJudge{answers: map[string]judgeAnswer{"close story": {block: true}}}

	c := NewCascade(CascadeDeps{
		Index:    idx,
		Embedder: &fakeEmbedder{vec: []float32{1, 0}},
		Reranker: reranker,
		Judge:    judge,
		Config:   Config{CallTimeout: 20 * time.Millisecond},
	})

	res := c.Check(context.Background(), candidateText)
	assert.False(t, res.IsDuplicate())
}

func TestCheck_RerankLimitsFanOut(t *testing.T) {
	entries := map[string][]float32{}
	names := []string{"s1", "s2", "s3", "s4", "s5", "s6", "s7"}
	for i, name := range names {
		entries[name] = vecAt(0.80 - float64(i)*0.01)
	}
	idx := newIndex(t, entries)
	reranker := &fakeReranker{scores: map[string]float64{
		"s1": 0.81, "s2": 0.83, "s3": 0.82, "s4": 0.1, "s5": 0.2,
	}}
	judge := &fakeJudge{}

	c := NewCascade(CascadeDeps{
		Index:    idx,
		Embedder: &fakeEmbedder{vec: []float32{1, 0}},
		Reranker: reranker,
		Judge:    judge,
	})

	res := c.Check(context.Background(), candidateText)
	assert.False(t, res.IsDuplicate())
	assert.Equal(t, []string{"s1", "s2", "s3", "s4", "s5"}, reranker.calls, "only the five best vector matches are reranked")
	assert.Equal(t, []string{"s2", "s3"}, judge.calls, "at most two ambiguous entries, best rerank score first")
}

func TestCheck_RerankErrorIsSkipped(t *testing.T) {
	idx := newIndex(t, map[string][]float32{
		"broken": vecAt(0.87),
		"fine":   vecAt(0.86),
	})
	reranker := &fakeReranker{
		scores: map[string]float64{"fine": 0.95},
		errs:   map[string]error{"broken": stderrors.New("503")},
	}

	c := NewCascade(CascadeDeps{
		Index:    idx,
		Embedder: &fakeEmbedder{vec: []float32{1, 0}},
		Reranker: reranker,
	})

	res := c.Check(context.Background(), candidateText)
	assert.True(t, res.IsDuplicate())
	assert.Equal(t, "https://corpus/fine", res.MatchedLink)
}

func TestCheck_EmbedderFailureFailsOpen(t *testing.T) {
	idx := newIndex(t, map[string][]float32{"x": vecAt(0.99)})

	c := NewCascade(CascadeDeps{
		Index:    idx,
		Embedder: &fakeEmbedder{err: stderrors.New("connection refused")},
	})

	res := c.Check(context.Background(), candidateText)
	assert.False(t, res.IsDuplicate())
	assert.Nil(t, res.Embedding)
}

func TestCheck_DimensionMismatchFailsOpen(t *testing.T) {
	idx := newIndex(t, map[string][]float32{"x": vecAt(0.99)})

	c := NewCascade(CascadeDeps{
		Index:    idx,
		Embedder: &fakeEmbedder{vec: []float32{1, 0, 0}},
	})

	res := c.Check(context.Background(), candidateText)
	assert.False(t, res.IsDuplicate())
	assert.Nil(t, res.Embedding, "a vector the index rejects is not carried forward")
}

func TestVectorStage(t *testing.T) {
	hits := []vector.Hit{
		{Ref: vector.Ref{Link: "a", Text: "ta"}, Score: 0.7},
		{Ref: vector.Ref{Link: "b", Text: "tb"}, Score: 0.5},
	}

	_, dup, pool := VectorStage(hits, 0.9)
	assert.False(t, dup)
	assert.Equal(t, []Match{{Link: "a", Text: "ta", Score: 0.7}, {Link: "b", Text: "tb", Score: 0.5}}, pool)

	m, dup, _ := VectorStage(hits, 0.7)
	assert.True(t, dup)
	assert.Equal(t, "a", m.Link)
}

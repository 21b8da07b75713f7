// Package dedup decides whether a candidate repeats something already accepted.
//
// The check runs three stages, cheapest first:
//
//	vector  - cosine similarity against every indexed entry
//	rerank  - pairwise reranker over the best vector matches
//	judge   - yes/no semantic judge over the ambiguous rerank band
//
// A failed collaborator call counts as "not a match" for that comparison;
// the cascade never blocks ingestion on a provider outage.
package dedup

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"time"

	"AutoNews/internal/domain"
	apperrors "AutoNews/internal/errors"
	"AutoNews/internal/ports"
	"AutoNews/internal/vector"
)

// Index is the read side of the corpus used by the vector stage.
type Index interface {
	Search(vec []float32, k int) ([]vector.Hit, error)
	Len() int
}

// Config holds thresholds and fan-out limits.
type Config struct {
	SimHigh     float64
	RerankHigh  float64
	JudgeMin    float64
	RerankTopN  int
	JudgeTopN   int
	CallTimeout time.Duration
}

// DefaultConfig returns the thresholds the cascade was tuned with.
func DefaultConfig() Config {
	return Config{
		SimHigh:     0.9,
		RerankHigh:  0.9,
		JudgeMin:    0.8,
		RerankTopN:  5,
		JudgeTopN:   2,
		CallTimeout: 30 * time.Second,
	}
}

// Result is the typed outcome of a cascade run.
type Result struct {
	Verdict     domain.Verdict
	Stage       domain.Stage
	MatchedLink string
	Score       float64
	// Embedding is the raw candidate vector, nil when the embedder failed.
	Embedding []float32
}

// IsDuplicate is shorthand for Verdict == Duplicate.
func (r Result) IsDuplicate() bool {
	return r.Verdict == domain.Duplicate
}

// Match is a corpus entry carried between stages.
type Match struct {
	Link  string
	Text  string
	Score float64
}

// CascadeDeps wires collaborators into the cascade. Reranker and Judge are optional.
type CascadeDeps struct {
	Index    Index
	Embedder ports.Embedder
	Reranker ports.Reranker
	Judge    ports.Judge
	Config   Config
	Logger   *slog.Logger
}

// Cascade is a read-only decision function over the current corpus.
type Cascade struct {
	index    Index
	embedder ports.Embedder
	reranker ports.Reranker
	judge    ports.Judge
	cfg      Config
	logger   *slog.Logger
}

// NewCascade builds a cascade; zero config fields fall back to defaults.
func NewCascade(deps CascadeDeps) *Cascade {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Cascade{
		index:    deps.Index,
		embedder: deps.Embedder,
		reranker: deps.Reranker,
		judge:    deps.Judge,
		cfg:      withDefaults(deps.Config),
		logger:   logger,
	}
}

// Check runs all stages for text and stops at the first duplicate verdict.
func (c *Cascade) Check(ctx context.Context, text string) Result {
	result := Result{Verdict: domain.NotDuplicate}

	embedding, err := c.embed(ctx, text)
	if err != nil {
		c.logger.Warn("embedding failed, skipping duplicate check", "error", err)
		return result
	}
	result.Embedding = embedding

	if c.index == nil || c.index.Len() == 0 {
		c.logger.Debug("index is empty, nothing to compare against")
		return result
	}

	hits, err := c.index.Search(embedding, 0)
	if err != nil {
		c.logger.Error("vector search failed", "error", err)
		result.Embedding = nil
		return result
	}

	match, dup, pool := VectorStage(hits, c.cfg.SimHigh)
	for _, m := range pool {
		c.logger.Debug("vector comparison", "link", m.Link, "score", m.Score)
	}
	if dup {
		return c.duplicate(result, domain.StageVector, match)
	}

	match, dup, ambiguous := c.rerankStage(ctx, text, pool)
	if dup {
		return c.duplicate(result, domain.StageRerank, match)
	}

	match, dup = c.judgeStage(ctx, text, ambiguous)
	if dup {
		return c.duplicate(result, domain.StageJudge, match)
	}

	return result
}

// VectorStage returns the first hit at or above simHigh, or the whole pool
// when nothing crosses it. hits must be ordered by descending score.
func VectorStage(hits []vector.Hit, simHigh float64) (Match, bool, []Match) {
	pool := make([]Match, 0, len(hits))
	for _, h := range hits {
		m := Match{Link: h.Ref.Link, Text: h.Ref.Text, Score: h.Score}
		if h.Score >= simHigh {
			return m, true, nil
		}
		pool = append(pool, m)
	}
	return Match{}, false, pool
}

func (c *Cascade) rerankStage(ctx context.Context, text string, pool []Match) (Match, bool, []Match) {
	if c.reranker == nil || len(pool) == 0 {
		return Match{}, false, nil
	}

	top := topN(pool, c.cfg.RerankTopN)
	var ambiguous []Match
	for _, m := range top {
		score, err := c.rerank(ctx, text, m.Text)
		if err != nil {
			c.logger.Warn("rerank failed, treating as no match", "link", m.Link, "error", err)
			continue
		}
		c.logger.Debug("rerank comparison", "link", m.Link, "score", score)

		reranked := Match{Link: m.Link, Text: m.Text, Score: score}
		if score >= c.cfg.RerankHigh {
			return reranked, true, nil
		}
		if score >= c.cfg.JudgeMin {
			ambiguous = append(ambiguous, reranked)
		}
	}

	return Match{}, false, topN(ambiguous, c.cfg.JudgeTopN)
}

func (c *Cascade) judgeStage(ctx context.Context, text string, ambiguous []Match) (Match, bool) {
	if c.judge == nil {
		return Match{}, false
	}

	for _, m := range ambiguous {
		same, err := c.sameEvent(ctx, text, m.Text)
		if err != nil {
			c.logger.Warn("judge failed, treating as different event", "link", m.Link, "error", err)
			continue
		}
		c.logger.Debug("judge comparison", "link", m.Link, "same_event", same)
		if same {
			return m, true
		}
	}
	return Match{}, false
}

func (c *Cascade) duplicate(result Result, stage domain.Stage, m Match) Result {
	result.Verdict = domain.Duplicate
	result.Stage = stage
	result.MatchedLink = m.Link
	result.Score = m.Score
	c.logger.Info("duplicate detected", "stage", string(stage), "match", m.Link, "score", m.Score)
	return result
}

func (c *Cascade) embed(ctx context.Context, text string) ([]float32, error) {
	if c.embedder == nil {
		return nil, apperrors.NewConfiguration("embedder is not configured")
	}
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()

	vec, err := c.embedder.Embed(callCtx, text)
	if err != nil {
		return nil, apperrors.NewTransientProvider("embedder", err)
	}
	return vec, nil
}

func (c *Cascade) rerank(ctx context.Context, a, b string) (float64, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()

	score, err := c.reranker.Rerank(callCtx, a, b)
	if err != nil {
		return 0, apperrors.NewTransientProvider("reranker", err)
	}
	return score, nil
}

func (c *Cascade) sameEvent(ctx context.Context, a, b string) (bool, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()

	same, err := c.judge.SameEvent(callCtx, a, b)
	if err != nil {
		return false, apperrors.NewTransientProvider("judge", err)
	}
	return same, nil
}

// topN returns the n best matches by score without reordering ties.
func topN(matches []Match, n int) []Match {
	sorted := slices.Clone(matches)
	slices.SortStableFunc(sorted, func(a, b Match) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if n > 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func withDefaults(cfg Config) Config {
	def := DefaultConfig()
	if cfg.SimHigh == 0 {
		cfg.SimHigh = def.SimHigh
	}
	if cfg.RerankHigh == 0 {
		cfg.RerankHigh = def.RerankHigh
	}
	if cfg.JudgeMin == 0 {
		cfg.JudgeMin = def.JudgeMin
	}
	if cfg.RerankTopN <= 0 {
		cfg.RerankTopN = def.RerankTopN
	}
	if cfg.JudgeTopN <= 0 {
		cfg.JudgeTopN = def.JudgeTopN
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = def.CallTimeout
	}
	return cfg
}

package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"AutoNews/internal/dedup"
	"AutoNews/internal/domain"
	"AutoNews/internal/ports"
)

// LinkIndex answers whether a link was already accepted.
type LinkIndex interface {
	HasLink(link string) bool
}

// DuplicateChecker runs the duplicate cascade over a comparison text.
type DuplicateChecker interface {
	Check(ctx context.Context, text string) dedup.Result
}

// PostQueue is the ingestion side of the publish queue.
type PostQueue interface {
	Enqueue(post domain.QueuedPost) error
	ContainsLink(link string) bool
	Similar(vec []float32, threshold float64) (domain.QueuedPost, float64, bool)
}

// PipelineDeps wires all driven adapters into the ingestion pipeline.
type PipelineDeps struct {
	Source  ports.CandidateSource
	Corpus  LinkIndex
	Checker DuplicateChecker
	Queue   PostQueue
	// SimHigh is the vector threshold applied to posts still waiting in the queue.
	SimHigh float64
	Logger  *slog.Logger
	Now     func() time.Time
}

// CycleReport counts what one sweep did with its candidates.
type CycleReport struct {
	Fetched    int
	Enqueued   int
	KnownLinks int
	Duplicates int
}

// Pipeline implements one ingestion sweep: fetch, dedupe, enqueue.
// Accepted candidates are only queued; the delivery worker records them.
type Pipeline struct {
	source  ports.CandidateSource
	corpus  LinkIndex
	checker DuplicateChecker
	queue   PostQueue
	simHigh float64
	logger  *slog.Logger
	now     func() time.Time
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	p := &Pipeline{
		source:  deps.Source,
		corpus:  deps.Corpus,
		checker: deps.Checker,
		queue:   deps.Queue,
		simHigh: deps.SimHigh,
		logger:  deps.Logger,
		now:     deps.Now,
	}
	if p.simHigh <= 0 {
		p.simHigh = dedup.DefaultConfig().SimHigh
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// RunCycle sweeps every source once. Only a failed fetch or a queue write
// error is returned; individual duplicates and provider failures are not.
func (p *Pipeline) RunCycle(ctx context.Context) (CycleReport, error) {
	var report CycleReport
	if p.source == nil {
		return report, nil
	}

	candidates, err := p.source.FetchCandidates(ctx)
	if err != nil {
		return report, fmt.Errorf("fetch candidates: %w", err)
	}
	report.Fetched = len(candidates)

	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		if _, dup := seen[c.Link]; dup {
			continue
		}
		seen[c.Link] = struct{}{}

		if p.knownLink(c.Link) {
			report.KnownLinks++
			p.logger.Debug("link already seen", "link", c.Link)
			continue
		}

		accepted, err := p.process(ctx, c)
		if err != nil {
			return report, err
		}
		if accepted {
			report.Enqueued++
		} else {
			report.Duplicates++
		}
	}

	p.logger.Info("ingestion cycle finished",
		"fetched", report.Fetched,
		"enqueued", report.Enqueued,
		"known_links", report.KnownLinks,
		"duplicates", report.Duplicates)
	return report, nil
}

func (p *Pipeline) knownLink(link string) bool {
	if p.corpus != nil && p.corpus.HasLink(link) {
		return true
	}
	return p.queue.ContainsLink(link)
}

func (p *Pipeline) process(ctx context.Context, c domain.Candidate) (bool, error) {
	text := c.ComparisonText()

	var result dedup.Result
	if p.checker != nil {
		result = p.checker.Check(ctx, text)
	}
	if result.IsDuplicate() {
		p.logger.Info("duplicate skipped",
			"title", c.Title, "stage", result.Stage, "matched", result.MatchedLink, "score", result.Score)
		return false, nil
	}

	if queued, score, ok := p.queue.Similar(result.Embedding, p.simHigh); ok {
		p.logger.Info("duplicate of queued post skipped",
			"title", c.Title, "queued", queued.Candidate.Link, "score", score)
		return false, nil
	}

	if err := p.queue.Enqueue(domain.NewQueuedPost(c, result.Embedding, p.now().UTC())); err != nil {
		return false, fmt.Errorf("enqueue %s: %w", c.Link, err)
	}
	return true, nil
}

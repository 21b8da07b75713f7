package ports

import (
	"context"
	"time"

	"AutoNews/internal/domain"
)

// CandidateSource pulls fresh candidates from upstream sites.
type CandidateSource interface {
	FetchCandidates(ctx context.Context) ([]domain.Candidate, error)
}

// Embedder turns text into a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Reranker scores how similar two texts are, in [0, 1].
type Reranker interface {
	Rerank(ctx context.Context, a, b string) (float64, error)
}

// Judge decides whether two texts describe the same event.
type Judge interface {
	SameEvent(ctx context.Context, a, b string) (bool, error)
}

// Publisher delivers captions to the public channel.
type Publisher interface {
	PublishPhoto(ctx context.Context, imageURL, caption string) error
	PublishText(ctx context.Context, caption string) error
	ImageUsable(ctx context.Context, imageURL string) bool
}

// Alerter sends operator alerts. imageURL may be empty.
type Alerter interface {
	Alert(ctx context.Context, text, imageURL string) error
}

// CorpusStore durably records accepted items.
type CorpusStore interface {
	Load(ctx context.Context) ([]domain.CorpusEntry, error)
	Append(ctx context.Context, entry domain.CorpusEntry) error
	Close() error
}

// QueueStore persists queued posts so they survive restarts.
type QueueStore interface {
	LoadPending() ([]domain.QueuedPost, error)
	Put(post domain.QueuedPost) error
	Delete(id string) error
	DeadLetter(post domain.QueuedPost) error
	LoadDeadLetters() ([]domain.QueuedPost, error)
	Close() error
}

// Scheduler controls when ingestion runs.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}

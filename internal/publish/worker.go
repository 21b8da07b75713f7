package publish

import (
	"context"
	"log/slog"
	"time"

	"AutoNews/internal/domain"
	apperrors "AutoNews/internal/errors"
	"AutoNews/internal/ports"
)

// Committer records a delivered post in the corpus.
type Committer interface {
	Commit(ctx context.Context, entry domain.CorpusEntry) error
}

// WorkerConfig paces the delivery loop.
type WorkerConfig struct {
	PostInterval  time.Duration
	RetryBackoff  time.Duration
	PollInterval  time.Duration
	SendTimeout   time.Duration
	EmbedTimeout  time.Duration
	// CommitTimeout bounds recording a delivered post; it runs even after shutdown starts.
	CommitTimeout time.Duration
	// MaxAttempts > 0 dead-letters a post after that many failures; 0 retries forever.
	MaxAttempts   int
}

// DefaultWorkerConfig matches the production pacing.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		PostInterval:  600 * time.Second,
		RetryBackoff:  60 * time.Second,
		PollInterval:  5 * time.Second,
		SendTimeout:   60 * time.Second,
		EmbedTimeout:  30 * time.Second,
		CommitTimeout: 30 * time.Second,
	}
}

// WorkerDeps wires the delivery worker.
type WorkerDeps struct {
	Queue     *Queue
	Corpus    Committer
	Embedder  ports.Embedder
	Publisher ports.Publisher
	Alerter   ports.Alerter
	Config    WorkerConfig
	Logger    *slog.Logger
	// Sleep and Now are replaced in tests.
	Sleep func(ctx context.Context, d time.Duration) error
	Now   func() time.Time
}

// Worker drains the queue one post at a time.
type Worker struct {
	queue     *Queue
	corpus    Committer
	embedder  ports.Embedder
	publisher ports.Publisher
	alerter   ports.Alerter
	cfg       WorkerConfig
	logger    *slog.Logger
	sleep     func(ctx context.Context, d time.Duration) error
	now       func() time.Time
}

// NewWorker builds a worker; zero durations fall back to defaults.
func NewWorker(deps WorkerDeps) *Worker {
	cfg := deps.Config
	def := DefaultWorkerConfig()
	if cfg.PostInterval <= 0 {
		cfg.PostInterval = def.PostInterval
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = def.RetryBackoff
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = def.SendTimeout
	}
	if cfg.EmbedTimeout <= 0 {
		cfg.EmbedTimeout = def.EmbedTimeout
	}
	if cfg.CommitTimeout <= 0 {
		cfg.CommitTimeout = def.CommitTimeout
	}

	w := &Worker{
		queue:     deps.Queue,
		corpus:    deps.Corpus,
		embedder:  deps.Embedder,
		publisher: deps.Publisher,
		alerter:   deps.Alerter,
		cfg:       cfg,
		logger:    deps.Logger,
		sleep:     deps.Sleep,
		now:       deps.Now,
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	if w.sleep == nil {
		w.sleep = sleepContext
	}
	if w.now == nil {
		w.now = time.Now
	}
	return w
}

// Run loops until ctx is cancelled or a delivered post cannot be recorded.
// Only persistence failures are returned; delivery failures are retried.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("delivery worker started", "queued", w.queue.Len())
	for {
		if ctx.Err() != nil {
			return nil
		}

		wait, err := w.Step(ctx)
		if err != nil {
			return err
		}
		if err := w.sleep(ctx, wait); err != nil {
			return nil
		}
	}
}

// Step performs one iteration and returns how long to wait before the next.
func (w *Worker) Step(ctx context.Context) (time.Duration, error) {
	post, ok := w.queue.Next()
	if !ok {
		return w.cfg.PollInterval, nil
	}

	if err := w.deliver(ctx, post); err != nil {
		if ctx.Err() != nil {
			// shutting down mid-send; keep the post for the next run
			return 0, w.queue.Requeue(post)
		}
		return w.cfg.RetryBackoff, w.handleFailure(ctx, post, err)
	}

	// the post is already public; record it even if shutdown has begun
	if err := w.commit(context.WithoutCancel(ctx), post); err != nil {
		w.logger.Error("delivered post could not be recorded, halting commits",
			"link", post.Candidate.Link, "error", err)
		return 0, err
	}
	if err := w.queue.Ack(post); err != nil {
		w.logger.Error("delivered post could not be removed from queue", "link", post.Candidate.Link, "error", err)
		return 0, err
	}

	return w.cfg.PostInterval, nil
}

func (w *Worker) deliver(ctx context.Context, post domain.QueuedPost) error {
	c := post.Candidate
	caption := FormatCaption(c)

	sendCtx, cancel := context.WithTimeout(ctx, w.cfg.SendTimeout)
	defer cancel()

	if w.publisher.ImageUsable(sendCtx, c.ImageURL) {
		if err := w.publisher.PublishPhoto(sendCtx, c.ImageURL, caption); err != nil {
			return apperrors.NewDelivery(c.Title, err)
		}
		w.logger.Info("published with image", "title", c.Title)
		return nil
	}

	w.logger.Warn("image unusable, sending text only", "image", c.ImageURL)
	if err := w.publisher.PublishText(sendCtx, caption); err != nil {
		return apperrors.NewDelivery(c.Title, err)
	}
	w.logger.Info("published without image", "title", c.Title)
	return nil
}

func (w *Worker) handleFailure(ctx context.Context, post domain.QueuedPost, cause error) error {
	post.Attempts++
	post.LastError = cause.Error()
	w.logger.Error("publish failed", "title", post.Candidate.Title, "attempt", post.Attempts, "error", cause)

	if w.cfg.MaxAttempts > 0 && post.Attempts >= w.cfg.MaxAttempts {
		if err := w.queue.DeadLetter(post); err != nil {
			return err
		}
		w.alert(ctx, FormatDeadLetterAlert(post), post.Candidate.ImageURL)
		return nil
	}

	if err := w.queue.Requeue(post); err != nil {
		return err
	}
	w.alert(ctx, FormatFailureAlert(post.Candidate.Title, unwrapDelivery(cause)), post.Candidate.ImageURL)
	return nil
}

func (w *Worker) alert(ctx context.Context, text, imageURL string) {
	if w.alerter == nil {
		return
	}
	alertCtx, cancel := context.WithTimeout(ctx, w.cfg.SendTimeout)
	defer cancel()
	if err := w.alerter.Alert(alertCtx, text, imageURL); err != nil {
		w.logger.Error("operator alert failed", "error", err)
	}
}

func (w *Worker) commit(ctx context.Context, post domain.QueuedPost) error {
	text := post.Candidate.ComparisonText()
	embedding := post.Embedding

	if len(embedding) == 0 && w.embedder != nil {
		embedCtx, cancel := context.WithTimeout(ctx, w.cfg.EmbedTimeout)
		vec, err := w.embedder.Embed(embedCtx, text)
		cancel()
		if err != nil {
			w.logger.Warn("embedding delivered post failed, storing without vector",
				"link", post.Candidate.Link, "error", err)
		} else {
			embedding = vec
		}
	}

	entry := domain.CorpusEntry{
		Link:      post.Candidate.Link,
		Text:      text,
		Embedding: embedding,
		Timestamp: w.now().UTC(),
	}
	commitCtx, cancel := context.WithTimeout(ctx, w.cfg.CommitTimeout)
	defer cancel()

	err := w.corpus.Commit(commitCtx, entry)
	if apperrors.Is(err, apperrors.ErrConfiguration) && entry.HasEmbedding() {
		w.logger.Error("corpus rejected embedding, storing without vector",
			"link", entry.Link, "error", err)
		entry.Embedding = nil
		err = w.corpus.Commit(commitCtx, entry)
	}
	return err
}

// unwrapDelivery strips the delivery wrapper so alerts show the transport's own message.
func unwrapDelivery(err error) error {
	if nErr, ok := err.(*apperrors.NewsError); ok && nErr.Code == apperrors.ErrDelivery && nErr.Err != nil {
		return nErr.Err
	}
	return err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

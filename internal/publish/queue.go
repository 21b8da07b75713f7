package publish

import (
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"AutoNews/internal/domain"
	apperrors "AutoNews/internal/errors"
	"AutoNews/internal/ports"
	"AutoNews/internal/vector"
)

// Queue holds accepted-but-undelivered posts.
//
// Discipline: when shuffling is on, the whole backlog is shuffled before every
// dequeue and the head is popped, so publish order is deliberately random.
// A failed post goes back to the head. Posts leave the queue only through
// Ack (delivered) or DeadLetter.
type Queue struct {
	mu       sync.Mutex
	items    []domain.QueuedPost
	inflight map[string]domain.QueuedPost
	store    ports.QueueStore
	shuffle  bool
	rng      *rand.Rand
	logger   *slog.Logger
}

// QueueOptions configures a Queue.
type QueueOptions struct {
	Store   ports.QueueStore
	Shuffle bool
	Rand    *rand.Rand
	Logger  *slog.Logger
}

// NewQueue builds a queue and restores any posts left in the store by a previous run.
func NewQueue(opts QueueOptions) (*Queue, error) {
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	q := &Queue{
		inflight: map[string]domain.QueuedPost{},
		store:    opts.Store,
		shuffle:  opts.Shuffle,
		rng:      rng,
		logger:   logger,
	}

	if q.store != nil {
		pending, err := q.store.LoadPending()
		if err != nil {
			return nil, apperrors.NewPersistence("load pending posts", err)
		}
		q.items = pending
		if len(pending) > 0 {
			logger.Info("restored queued posts", "count", len(pending))
		}
	}

	return q, nil
}

// Enqueue persists post and appends it to the backlog.
func (q *Queue) Enqueue(post domain.QueuedPost) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.store != nil {
		if err := q.store.Put(post); err != nil {
			return apperrors.NewPersistence("persist queued post", err)
		}
	}
	q.items = append(q.items, post)
	q.logger.Info("post enqueued", "title", post.Candidate.Title, "queue_len", len(q.items))
	return nil
}

// Next removes one post for a delivery attempt. ok is false when the queue is empty.
func (q *Queue) Next() (domain.QueuedPost, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return domain.QueuedPost{}, false
	}
	if q.shuffle {
		q.rng.Shuffle(len(q.items), func(i, j int) {
			q.items[i], q.items[j] = q.items[j], q.items[i]
		})
	}

	post := q.items[0]
	q.items = q.items[1:]
	q.inflight[post.ID] = post
	return post, true
}

// Requeue puts a failed post back at the head of the queue.
func (q *Queue) Requeue(post domain.QueuedPost) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.inflight, post.ID)
	q.items = append([]domain.QueuedPost{post}, q.items...)

	if q.store != nil {
		if err := q.store.Put(post); err != nil {
			return apperrors.NewPersistence("persist requeued post", err)
		}
	}
	return nil
}

// Ack drops a delivered post.
func (q *Queue) Ack(post domain.QueuedPost) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.inflight, post.ID)
	if q.store != nil {
		if err := q.store.Delete(post.ID); err != nil {
			return apperrors.NewPersistence("delete delivered post", err)
		}
	}
	return nil
}

// DeadLetter moves a post that exhausted its attempts out of the queue.
func (q *Queue) DeadLetter(post domain.QueuedPost) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.inflight, post.ID)
	if q.store != nil {
		if err := q.store.DeadLetter(post); err != nil {
			return apperrors.NewPersistence("dead-letter post", err)
		}
	}
	return nil
}

// Len counts queued and in-flight posts.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) + len(q.inflight)
}

// Snapshot copies queued and in-flight posts.
func (q *Queue) Snapshot() []domain.QueuedPost {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]domain.QueuedPost, 0, len(q.items)+len(q.inflight))
	out = append(out, q.items...)
	for _, p := range q.inflight {
		out = append(out, p)
	}
	return out
}

// ContainsLink reports whether a post with this link is waiting or being delivered.
func (q *Queue) ContainsLink(link string) bool {
	for _, p := range q.Snapshot() {
		if p.Candidate.Link == link {
			return true
		}
	}
	return false
}

// Similar returns the first pending post whose embedding scores at least threshold against vec.
func (q *Queue) Similar(vec []float32, threshold float64) (domain.QueuedPost, float64, bool) {
	if len(vec) == 0 {
		return domain.QueuedPost{}, 0, false
	}
	for _, p := range q.Snapshot() {
		if len(p.Embedding) != len(vec) {
			continue
		}
		if score := vector.Cosine(vec, p.Embedding); score >= threshold {
			return p, score, true
		}
	}
	return domain.QueuedPost{}, 0, false
}

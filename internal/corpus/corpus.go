// Package corpus owns the accepted-item state shared by ingestion and delivery:
// the durable store, the similarity index built from it and the link set.
package corpus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"AutoNews/internal/domain"
	apperrors "AutoNews/internal/errors"
	"AutoNews/internal/ports"
	"AutoNews/internal/vector"
)

// Stats summarises the loaded corpus.
type Stats struct {
	Entries       int
	WithEmbedding int
	// Skipped counts stored embeddings left out of the index for a wrong dimension.
	Skipped       int
	Dimension     int
}

// Corpus keeps the store, index and link set in step. All mutations go
// through Commit, which holds the corpus lock for the store write and the
// index insert. Searches do not take that lock, so a search racing a commit
// may miss the new entry.
type Corpus struct {
	mu     sync.RWMutex
	store  ports.CorpusStore
	index  *vector.Index
	links  map[string]struct{}
	stats  Stats
	logger *slog.Logger
}

// Open loads every stored entry and rebuilds the index from those that carry an embedding.
func Open(ctx context.Context, store ports.CorpusStore, dim int, logger *slog.Logger) (*Corpus, error) {
	if logger == nil {
		logger = slog.Default()
	}

	index, err := vector.NewIndex(dim)
	if err != nil {
		return nil, err
	}

	entries, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load corpus: %w", err)
	}

	c := &Corpus{
		store:  store,
		index:  index,
		links:  make(map[string]struct{}, len(entries)),
		stats:  Stats{Dimension: dim},
		logger: logger,
	}

	for _, entry := range entries {
		c.links[entry.Link] = struct{}{}
		c.stats.Entries++
		if !entry.HasEmbedding() {
			continue
		}
		if err := index.Insert(entry.Embedding, vector.Ref{Link: entry.Link, Text: entry.Text}); err != nil {
			if apperrors.Is(err, apperrors.ErrConfiguration) {
				logger.Warn("stored embedding has wrong dimension, entry kept out of the index",
					"link", entry.Link, "error", err)
				c.stats.Skipped++
				continue
			}
			return nil, fmt.Errorf("index entry %s: %w", entry.Link, err)
		}
		c.stats.WithEmbedding++
	}

	if c.stats.WithEmbedding == 0 {
		logger.Warn("corpus has no embeddings, index is empty", "entries", c.stats.Entries)
	} else {
		logger.Info("index built", "entries", c.stats.Entries, "vectors", c.stats.WithEmbedding)
	}

	return c, nil
}

// HasLink reports whether an entry with this link was ever accepted.
func (c *Corpus) HasLink(link string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.links[link]
	return ok
}

// Search queries the index; k <= 0 means exhaustive.
func (c *Corpus) Search(vec []float32, k int) ([]vector.Hit, error) {
	return c.index.Search(vec, k)
}

// Len returns the number of indexed vectors.
func (c *Corpus) Len() int {
	return c.index.Len()
}

// Dim returns the embedding dimension fixed for this corpus.
func (c *Corpus) Dim() int {
	return c.index.Dim()
}

// Stats returns entry counts.
func (c *Corpus) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// Commit persists entry and, once the write succeeded, indexes it.
// A failed write is returned as a persistence error and leaves memory untouched.
// A link that is already recorded is skipped.
func (c *Corpus) Commit(ctx context.Context, entry domain.CorpusEntry) error {
	if entry.HasEmbedding() && len(entry.Embedding) != c.index.Dim() {
		return apperrors.NewDimensionMismatch(c.index.Dim(), len(entry.Embedding))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.links[entry.Link]; ok {
		c.logger.Warn("link already in corpus, not recording twice", "link", entry.Link)
		return nil
	}

	if err := c.store.Append(ctx, entry); err != nil {
		return apperrors.NewPersistence("append corpus entry", err)
	}

	c.links[entry.Link] = struct{}{}
	c.stats.Entries++
	if entry.HasEmbedding() {
		if err := c.index.Insert(entry.Embedding, vector.Ref{Link: entry.Link, Text: entry.Text}); err != nil {
			return err
		}
		c.stats.WithEmbedding++
	}

	c.logger.Debug("corpus entry committed", "link", entry.Link, "entries", c.stats.Entries)
	return nil
}

// Close releases the underlying store.
func (c *Corpus) Close() error {
	return c.store.Close()
}

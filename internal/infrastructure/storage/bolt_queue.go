package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"AutoNews/internal/domain"
	"AutoNews/internal/ports"
)

var (
	bucketPending    = []byte("pending")
	bucketDeadLetter = []byte("dead_letter")
)

// BoltQueue persists queued posts keyed by post ID. IDs are ULIDs, so a
// cursor walk returns posts in enqueue order.
type BoltQueue struct {
	db *bbolt.DB
}

var _ ports.QueueStore = (*BoltQueue)(nil)

// OpenBoltQueue opens or creates the queue database at path.
func OpenBoltQueue(path string) (*BoltQueue, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open queue db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketPending); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(bucketDeadLetter); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create queue buckets: %w", err)
	}

	return &BoltQueue{db: db}, nil
}

// LoadPending returns every undelivered post.
func (q *BoltQueue) LoadPending() ([]domain.QueuedPost, error) {
	return q.loadBucket(bucketPending)
}

// LoadDeadLetters returns posts that exhausted their attempts.
func (q *BoltQueue) LoadDeadLetters() ([]domain.QueuedPost, error) {
	return q.loadBucket(bucketDeadLetter)
}

// Put inserts or replaces a pending post.
func (q *BoltQueue) Put(post domain.QueuedPost) error {
	data, err := json.Marshal(post)
	if err != nil {
		return fmt.Errorf("encode post %s: %w", post.ID, err)
	}
	return q.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketPending).Put([]byte(post.ID), data)
	})
}

// Delete drops a pending post; unknown IDs are ignored.
func (q *BoltQueue) Delete(id string) error {
	return q.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketPending).Delete([]byte(id))
	})
}

// DeadLetter moves post from pending to the dead-letter bucket in one transaction.
func (q *BoltQueue) DeadLetter(post domain.QueuedPost) error {
	data, err := json.Marshal(post)
	if err != nil {
		return fmt.Errorf("encode post %s: %w", post.ID, err)
	}
	return q.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketPending).Delete([]byte(post.ID)); err != nil {
			return err
		}
		return tx.Bucket(bucketDeadLetter).Put([]byte(post.ID), data)
	})
}

// Close releases the database file lock.
func (q *BoltQueue) Close() error {
	return q.db.Close()
}

func (q *BoltQueue) loadBucket(name []byte) ([]domain.QueuedPost, error) {
	var posts []domain.QueuedPost
	err := q.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(name).ForEach(func(k, v []byte) error {
			var post domain.QueuedPost
			if err := json.Unmarshal(v, &post); err != nil {
				return fmt.Errorf("decode post %s: %w", k, err)
			}
			posts = append(posts, post)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return posts, nil
}

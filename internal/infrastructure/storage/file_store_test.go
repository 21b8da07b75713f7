package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AutoNews/internal/domain"
)

func TestFileStore_MissingFileIsEmpty(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "corpus.json"))

	entries, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFileStore_AppendSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "corpus.json")
	ts := time.Date(2025, time.May, 1, 12, 0, 0, 0, time.UTC)

	s := NewFileStore(path)
	require.NoError(t, s.Append(context.Background(), domain.CorpusEntry{Link: "https://a", Text: "a", Embedding: []float32{1, 2}, Timestamp: ts}))
	require.NoError(t, s.Append(context.Background(), domain.CorpusEntry{Link: "https://b", Text: "b", Timestamp: ts}))

	entries, err := NewFileStore(path).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "https://a", entries[0].Link)
	assert.Equal(t, []float32{1, 2}, entries[0].Embedding)
	assert.True(t, entries[0].Timestamp.Equal(ts))
	assert.False(t, entries[1].HasEmbedding())

	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(path), ".corpus-*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestFileStore_LegacyRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "published_articles.json")
	legacy := `[{"link":"https://old","embedding":[0.5,0.5]},{"link":"https://older","text":"old text"}]`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o600))

	entries, err := NewFileStore(path).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, []float32{0.5, 0.5}, entries[0].Embedding)
	assert.Equal(t, "old text", entries[1].Text)
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	s := NewFileStore(path)
	_, err := s.Load(context.Background())
	assert.Error(t, err)
	assert.Error(t, s.Append(context.Background(), domain.CorpusEntry{Link: "x"}), "append never overwrites an unreadable corpus")
}

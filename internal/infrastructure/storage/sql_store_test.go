package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AutoNews/internal/domain"
)

func openTestSQLite(t *testing.T, path string) *SQLStore {
	t.Helper()
	s, err := OpenSQLite(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLStore_SQLiteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.db")
	ctx := context.Background()
	ts := time.Date(2025, time.March, 3, 8, 15, 0, 123, time.UTC)

	s := openTestSQLite(t, path)
	require.NoError(t, s.Append(ctx, domain.CorpusEntry{Link: "https://a", Text: "first", Embedding: []float32{0.25, -1}, Timestamp: ts}))
	require.NoError(t, s.Append(ctx, domain.CorpusEntry{Link: "https://b", Text: "second", Timestamp: ts}))
	require.NoError(t, s.Close())

	reopened := openTestSQLite(t, path)
	entries, err := reopened.Load(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, domain.CorpusEntry{Link: "https://a", Text: "first", Embedding: []float32{0.25, -1}, Timestamp: ts}, entries[0])
	assert.Equal(t, "https://b", entries[1].Link)
	assert.Nil(t, entries[1].Embedding)
}

func TestSQLStore_AppendSameLinkKeepsFirstEntry(t *testing.T) {
	ctx := context.Background()
	s := openTestSQLite(t, filepath.Join(t.TempDir(), "corpus.db"))

	require.NoError(t, s.Append(ctx, domain.CorpusEntry{Link: "https://a", Text: "v1", Timestamp: time.Now()}))
	require.NoError(t, s.Append(ctx, domain.CorpusEntry{Link: "https://a", Text: "v2", Embedding: []float32{1}, Timestamp: time.Now()}))

	entries, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "v1", entries[0].Text)
	assert.Empty(t, entries[0].Embedding)
}

func TestSQLStore_PostgresQueriesUseDollarPlaceholders(t *testing.T) {
	s := &SQLStore{dialect: DialectPostgres, sb: statementBuilder(DialectPostgres)}

	query, args, err := s.sb.Insert(corpusTable).Columns("link", "text").Values("l", "t").ToSql()
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO corpus_entries (link,text) VALUES ($1,$2)", query)
	assert.Len(t, args, 2)

	vec, err := s.encodeEmbedding([]float32{0.5, 2})
	require.NoError(t, err)
	assert.EqualValues(t, []float64{0.5, 2}, vec)
}

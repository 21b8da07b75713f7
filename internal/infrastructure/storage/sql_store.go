package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	_ "modernc.org/sqlite"

	"AutoNews/internal/domain"
	"AutoNews/internal/ports"
)

// Dialects supported by SQLStore.
const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

const corpusTable = "corpus_entries"

var schemas = map[string]string{
	DialectSQLite: `CREATE TABLE IF NOT EXISTS corpus_entries (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		link       TEXT NOT NULL UNIQUE,
		text       TEXT NOT NULL,
		embedding  TEXT,
		created_at TEXT NOT NULL
	)`,
	DialectPostgres: `CREATE TABLE IF NOT EXISTS corpus_entries (
		id         BIGSERIAL PRIMARY KEY,
		link       TEXT NOT NULL UNIQUE,
		text       TEXT NOT NULL,
		embedding  DOUBLE PRECISION[],
		created_at TEXT NOT NULL
	)`,
}

// SQLStore persists corpus entries in SQLite or Postgres. Embeddings are a
// JSON array on SQLite and a native float array on Postgres.
type SQLStore struct {
	db      *sql.DB
	dialect string
	sb      sq.StatementBuilderType
}

var _ ports.CorpusStore = (*SQLStore)(nil)

// OpenSQLite opens (creating if needed) a SQLite corpus in WAL mode.
func OpenSQLite(ctx context.Context, dsn string) (*SQLStore, error) {
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return NewSQLStore(ctx, db, DialectSQLite)
}

// OpenPostgres connects to a Postgres corpus.
func OpenPostgres(ctx context.Context, dsn string) (*SQLStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return NewSQLStore(ctx, db, DialectPostgres)
}

// NewSQLStore wires an open database and creates the table if it is missing.
func NewSQLStore(ctx context.Context, db *sql.DB, dialect string) (*SQLStore, error) {
	schema, ok := schemas[dialect]
	if !ok {
		db.Close()
		return nil, fmt.Errorf("unsupported sql dialect %q", dialect)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create corpus table: %w", err)
	}

	return &SQLStore{
		db:      db,
		dialect: dialect,
		sb:      statementBuilder(dialect),
	}, nil
}

func statementBuilder(dialect string) sq.StatementBuilderType {
	if dialect == DialectPostgres {
		return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}
	return sq.StatementBuilder.PlaceholderFormat(sq.Question)
}

// Load returns entries in insertion order.
func (s *SQLStore) Load(ctx context.Context) ([]domain.CorpusEntry, error) {
	query, args, err := s.sb.
		Select("link", "text", "embedding", "created_at").
		From(corpusTable).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query corpus: %w", err)
	}
	defer rows.Close()

	var entries []domain.CorpusEntry
	for rows.Next() {
		entry, err := s.scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return entries, nil
}

// Append inserts entry. A link that is already stored keeps its first row.
func (s *SQLStore) Append(ctx context.Context, entry domain.CorpusEntry) error {
	embedding, err := s.encodeEmbedding(entry.Embedding)
	if err != nil {
		return err
	}

	query, args, err := s.sb.
		Insert(corpusTable).
		Columns("link", "text", "embedding", "created_at").
		Values(entry.Link, entry.Text, embedding, entry.Timestamp.UTC().Format(time.RFC3339Nano)).
		Suffix("ON CONFLICT (link) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert corpus entry: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) scanEntry(rows *sql.Rows) (domain.CorpusEntry, error) {
	var (
		entry     domain.CorpusEntry
		createdAt string
	)

	switch s.dialect {
	case DialectPostgres:
		var vec pq.Float64Array
		if err := rows.Scan(&entry.Link, &entry.Text, &vec, &createdAt); err != nil {
			return entry, fmt.Errorf("scan corpus row: %w", err)
		}
		if len(vec) > 0 {
			entry.Embedding = make([]float32, len(vec))
			for i, v := range vec {
				entry.Embedding[i] = float32(v)
			}
		}
	default:
		var raw sql.NullString
		if err := rows.Scan(&entry.Link, &entry.Text, &raw, &createdAt); err != nil {
			return entry, fmt.Errorf("scan corpus row: %w", err)
		}
		if raw.Valid && raw.String != "" {
			if err := json.Unmarshal([]byte(raw.String), &entry.Embedding); err != nil {
				return entry, fmt.Errorf("decode embedding for %s: %w", entry.Link, err)
			}
		}
	}

	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return entry, fmt.Errorf("parse created_at for %s: %w", entry.Link, err)
	}
	entry.Timestamp = ts
	return entry, nil
}

func (s *SQLStore) encodeEmbedding(vec []float32) (any, error) {
	if len(vec) == 0 {
		return nil, nil
	}

	if s.dialect == DialectPostgres {
		out := make(pq.Float64Array, len(vec))
		for i, v := range vec {
			out[i] = float64(v)
		}
		return out, nil
	}

	raw, err := json.Marshal(vec)
	if err != nil {
		return nil, fmt.Errorf("encode embedding: %w", err)
	}
	return string(raw), nil
}

package app

import (
	"context"
	"path/filepath"
	"testing"

	"AutoNews/internal/config"
	"AutoNews/internal/domain"
	apperrors "AutoNews/internal/errors"
	"AutoNews/internal/infrastructure/llm"
	"AutoNews/internal/infrastructure/storage"
	"AutoNews/internal/logging"
)

func TestOpenCorpusStoreByBackend(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	store, err := openCorpusStore(context.Background(), config.CorpusConfig{Backend: config.BackendFile, Path: filepath.Join(dir, "c.json")})
	if err != nil {
		t.Fatalf("file backend: %v", err)
	}
	if _, ok := store.(*storage.FileStore); !ok {
		t.Fatalf("expected FileStore, got %T", store)
	}

	store, err = openCorpusStore(context.Background(), config.CorpusConfig{Backend: config.BackendSQLite, DSN: filepath.Join(dir, "c.db")})
	if err != nil {
		t.Fatalf("sqlite backend: %v", err)
	}
	if _, ok := store.(*storage.SQLStore); !ok {
		t.Fatalf("expected SQLStore, got %T", store)
	}
	store.Close()

	if _, err := openCorpusStore(context.Background(), config.CorpusConfig{Backend: "redis"}); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestOpenCorpusRebuildsIndex(t *testing.T) {
	t.Parallel()

	cfg := config.Config{Corpus: config.CorpusConfig{
		Backend:   config.BackendFile,
		Path:      filepath.Join(t.TempDir(), "published.json"),
		Dimension: 2,
	}}
	logger := logging.New("error")

	corp, err := OpenCorpus(context.Background(), cfg, logger)
	if err != nil {
		t.Fatalf("OpenCorpus: %v", err)
	}
	if err := corp.Commit(context.Background(), domain.CorpusEntry{Link: "https://a", Text: "a", Embedding: []float32{1, 0}}); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	corp.Close()

	reopened, err := OpenCorpus(context.Background(), cfg, logger)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if !reopened.HasLink("https://a") || reopened.Stats().WithEmbedding != 1 {
		t.Fatalf("corpus not restored: %+v", reopened.Stats())
	}
}

func TestNewJudgeByProvider(t *testing.T) {
	t.Parallel()
	logger := logging.New("error")

	if j := newJudge(config.JudgeConfig{Provider: config.JudgeNone}, logger); j != nil {
		t.Fatalf("expected no judge, got %T", j)
	}
	if j := newJudge(config.JudgeConfig{Provider: config.JudgeOpenAI}, logger); j != nil {
		t.Fatalf("expected no judge without api key, got %T", j)
	}
	if _, ok := newJudge(config.JudgeConfig{Provider: config.JudgeOpenAI, APIKey: "k"}, logger).(*llm.ChatJudge); !ok {
		t.Fatalf("expected ChatJudge")
	}
	if _, ok := newJudge(config.JudgeConfig{Provider: config.JudgeAnthropic, APIKey: "k"}, logger).(*llm.AnthropicJudge); !ok {
		t.Fatalf("expected AnthropicJudge")
	}
}

func TestNewRequiresTelegram(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), config.Config{}, logging.New("error"))
	if !apperrors.Is(err, apperrors.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

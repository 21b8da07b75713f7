package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"AutoNews/internal/domain"
	"AutoNews/internal/ports"
)

// FileStore keeps the corpus as a single JSON array, rewritten atomically on
// every append. Files written by earlier versions ({link, text, embedding}
// records without timestamp) load unchanged.
type FileStore struct {
	path    string
	mu      sync.Mutex
	entries []domain.CorpusEntry
	loaded  bool
}

var _ ports.CorpusStore = (*FileStore)(nil)

// NewFileStore points at path; the file is created on first append.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads every entry. A missing file is an empty corpus.
func (s *FileStore) Load(context.Context) ([]domain.CorpusEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return nil, err
	}
	return append([]domain.CorpusEntry(nil), s.entries...), nil
}

// Append adds entry and rewrites the file. On failure the previous file stays intact.
func (s *FileStore) Append(_ context.Context, entry domain.CorpusEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return err
	}

	next := append(append(make([]domain.CorpusEntry, 0, len(s.entries)+1), s.entries...), entry)
	if err := writeJSONAtomic(s.path, next); err != nil {
		return err
	}
	s.entries = next
	return nil
}

// Close is a no-op; every append is already on disk.
func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) loadLocked() error {
	if s.loaded {
		return nil
	}

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.loaded = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("read corpus file: %w", err)
	}

	var entries []domain.CorpusEntry
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &entries); err != nil {
			return fmt.Errorf("decode corpus file %s: %w", s.path, err)
		}
	}
	s.entries = entries
	s.loaded = true
	return nil
}

func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode corpus: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create corpus dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".corpus-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	_, writeErr := tmp.Write(data)
	syncErr := tmp.Sync()
	closeErr := tmp.Close()
	if writeErr != nil || syncErr != nil || closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", errors.Join(writeErr, syncErr, closeErr))
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace corpus file: %w", err)
	}
	return nil
}

// Package filestore keeps generation history in a JSON file when no database is configured.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/upb/concept-studio/models"
	"github.com/upb/concept-studio/repositories"
)

// HistoryStore implements repositories.HistoryRepository over a single JSON file.
// Records are held in memory and the file is rewritten on every mutation.
type HistoryStore struct {
	path   string
	rank   repositories.Ranker
	logger *zap.Logger

	mu      sync.RWMutex
	records []*models.GenerationRecord
}

// Open loads {dir}/{collection}.json, creating the directory when missing.
// A nil ranker uses repositories.Rank.
func Open(dir, collection string, rank repositories.Ranker, logger *zap.Logger) (*HistoryStore, error) {
	if collection == "" {
		collection = "concepts"
	}
	if rank == nil {
		rank = repositories.Rank
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history dir: %w", err)
	}

	s := &HistoryStore{
		path:    filepath.Join(dir, collection+".json"),
		rank:    rank,
		logger:  logger,
		records: []*models.GenerationRecord{},
	}
	if err := s.load(); err != nil {
		return nil, err
	}

	logger.Info("history store opened",
		zap.String("path", s.path),
		zap.Int("records", len(s.records)),
	)
	return s, nil
}

func (s *HistoryStore) load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read history file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, &s.records); err != nil {
		return fmt.Errorf("failed to decode history file %s: %w", s.path, err)
	}
	return nil
}

// persist writes through a temp file so a crash never leaves a truncated file
func (s *HistoryStore) persist() error {
	data, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write history file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace history file: %w", err)
	}
	return nil
}

// Append stores a generation record
func (s *HistoryStore) Append(ctx context.Context, record *models.GenerationRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("invalid generation record: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, record)
	if err := s.persist(); err != nil {
		s.records = s.records[:len(s.records)-1]
		return err
	}

	s.logger.Debug("generation appended", zap.String("id", record.ID.String()))
	return nil
}

// List returns the most recent generations, newest first
func (s *HistoryStore) List(ctx context.Context, limit int) ([]*models.GenerationRecord, error) {
	if limit <= 0 {
		limit = repositories.DefaultHistoryLimit
	}

	out := s.snapshot()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Search ranks every stored record against the query
func (s *HistoryStore) Search(ctx context.Context, query string, n int) ([]*models.SearchResult, error) {
	return s.rank(s.snapshot(), query, n), nil
}

// Delete removes a generation and reports whether it existed
func (s *HistoryStore) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, rec := range s.records {
		if rec.ID != id {
			continue
		}
		removed := rec
		s.records = append(s.records[:i], s.records[i+1:]...)
		if err := s.persist(); err != nil {
			s.records = append(s.records[:i], append([]*models.GenerationRecord{removed}, s.records[i:]...)...)
			return false, err
		}
		s.logger.Debug("generation deleted", zap.String("id", id.String()))
		return true, nil
	}
	return false, nil
}

// Count returns the number of stored generations
func (s *HistoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

// Path returns the backing file location
func (s *HistoryStore) Path() string {
	return s.path
}

func (s *HistoryStore) snapshot() []*models.GenerationRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.GenerationRecord, len(s.records))
	copy(out, s.records)
	return out
}

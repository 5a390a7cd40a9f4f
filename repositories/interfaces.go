package repositories

import (
	"context"

	"github.com/google/uuid"

	"github.com/upb/concept-studio/models"
)

const (
	// DefaultHistoryLimit is used when List is called with a non-positive limit
	DefaultHistoryLimit = 20

	// DefaultSearchResults is used when Search is called with a non-positive n
	DefaultSearchResults = 5
)

// HistoryRepository persists saved generations
type HistoryRepository interface {
	// Append stores a record. It is only called after a fully successful generation.
	Append(ctx context.Context, record *models.GenerationRecord) error

	// List returns the most recent records, newest first
	List(ctx context.Context, limit int) ([]*models.GenerationRecord, error)

	// Search returns up to n records ranked by relevance to query, closest first
	Search(ctx context.Context, query string, n int) ([]*models.SearchResult, error)

	// Delete removes a record and reports whether it existed
	Delete(ctx context.Context, id uuid.UUID) (bool, error)

	// Count returns the number of stored records
	Count(ctx context.Context) (int, error)
}

// Repositories holds all repository instances
type Repositories struct {
	History HistoryRepository
}

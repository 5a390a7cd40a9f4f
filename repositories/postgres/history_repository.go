package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/upb/concept-studio/models"
	"github.com/upb/concept-studio/repositories"
)

// searchCandidateLimit bounds how many matching rows are ranked per search
const searchCandidateLimit = 500

// HistoryRepository implements the repositories.HistoryRepository interface
type HistoryRepository struct {
	db     *DB
	rank   repositories.Ranker
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository. A nil ranker uses repositories.Rank.
func NewHistoryRepository(db *DB, rank repositories.Ranker, logger *zap.Logger) repositories.HistoryRepository {
	if rank == nil {
		rank = repositories.Rank
	}
	return &HistoryRepository{
		db:     db,
		rank:   rank,
		logger: logger,
	}
}

// Append stores a generation record
func (r *HistoryRepository) Append(ctx context.Context, record *models.GenerationRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("invalid generation record: %w", err)
	}

	query := `
		INSERT INTO generations (
			id, prompt, narrative, image_url, text_provider, image_provider, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		record.ID,
		record.Prompt,
		record.Narrative,
		record.ImageURL,
		record.TextProvider,
		record.ImageProvider,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append generation: %w", err)
	}

	r.logger.Debug("generation appended", zap.String("id", record.ID.String()))
	return nil
}

// List returns the most recent generations, newest first
func (r *HistoryRepository) List(ctx context.Context, limit int) ([]*models.GenerationRecord, error) {
	if limit <= 0 {
		limit = repositories.DefaultHistoryLimit
	}

	query := `
		SELECT id, prompt, narrative, image_url, text_provider, image_provider, created_at
		FROM generations
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list generations: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// Search loads rows containing any query term and ranks them
func (r *HistoryRepository) Search(ctx context.Context, query string, n int) ([]*models.SearchResult, error) {
	terms := repositories.Terms(query)
	if len(terms) == 0 {
		return []*models.SearchResult{}, nil
	}

	patterns := make([]string, len(terms))
	for i, term := range terms {
		patterns[i] = "%" + term + "%"
	}

	sqlQuery := `
		SELECT id, prompt, narrative, image_url, text_provider, image_provider, created_at
		FROM generations
		WHERE prompt ILIKE ANY($1) OR narrative ILIKE ANY($1)
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, sqlQuery, pq.Array(patterns), searchCandidateLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to search generations: %w", err)
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}

	results := r.rank(records, query, n)
	r.logger.Debug("history searched",
		zap.Int("candidates", len(records)),
		zap.Int("results", len(results)),
	)
	return results, nil
}

// Delete removes a generation and reports whether it existed
func (r *HistoryRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `DELETE FROM generations WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete generation: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows > 0 {
		r.logger.Debug("generation deleted", zap.String("id", id.String()))
	}
	return rows > 0, nil
}

// Count returns the number of stored generations
func (r *HistoryRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM generations`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count generations: %w", err)
	}
	return count, nil
}

func scanRecords(rows *sql.Rows) ([]*models.GenerationRecord, error) {
	records := []*models.GenerationRecord{}
	for rows.Next() {
		rec := &models.GenerationRecord{}
		err := rows.Scan(
			&rec.ID,
			&rec.Prompt,
			&rec.Narrative,
			&rec.ImageURL,
			&rec.TextProvider,
			&rec.ImageProvider,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan generation: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating generations: %w", err)
	}

	return records, nil
}

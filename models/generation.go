package models

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenerationRecord is one saved concept: the prompt, its narrative and the rendered image
type GenerationRecord struct {
	ID            uuid.UUID `json:"id" db:"id"`
	Prompt        string    `json:"prompt" db:"prompt"`
	Narrative     string    `json:"narrative" db:"narrative"`
	ImageURL      string    `json:"image_url" db:"image_url"`
	TextProvider  string    `json:"text_provider,omitempty" db:"text_provider"`
	ImageProvider string    `json:"image_provider,omitempty" db:"image_provider"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the GenerationRecord model
func (GenerationRecord) TableName() string {
	return "generations"
}

// NewGenerationRecord creates a new GenerationRecord instance
func NewGenerationRecord(prompt, narrative, imageURL string) *GenerationRecord {
	return &GenerationRecord{
		ID:        uuid.New(),
		Prompt:    prompt,
		Narrative: narrative,
		ImageURL:  imageURL,
		CreatedAt: time.Now().UTC(),
	}
}

// Document is the searchable text of the record
func (r *GenerationRecord) Document() string {
	return "Prompt: " + r.Prompt + "\n\nNarrative: " + r.Narrative
}

// Validate checks the fields every stored record needs
func (r *GenerationRecord) Validate() error {
	if r.ID == uuid.Nil {
		return errors.New("id is required")
	}
	if strings.TrimSpace(r.Prompt) == "" {
		return errors.New("prompt is required")
	}
	if r.CreatedAt.IsZero() {
		return errors.New("created_at is required")
	}
	return nil
}

// SearchResult pairs a record with its ranking.
// Distance is 1/(1+Score); lower is closer.
type SearchResult struct {
	Record   *GenerationRecord `json:"record"`
	Score    int               `json:"score"`
	Distance float64           `json:"distance"`
}

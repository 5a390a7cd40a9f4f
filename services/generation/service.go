package generation

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/upb/concept-studio/models"
	"github.com/upb/concept-studio/repositories"
	"github.com/upb/concept-studio/services"
	"github.com/upb/concept-studio/services/providers"
)

// Runner executes one operation across the configured fallback order
type Runner interface {
	Run(ctx context.Context, req providers.Request) (*providers.Result, error)
	Registry() *providers.Registry
}

// Service exposes text and image generation plus the saved history
type Service struct {
	runner  Runner
	history repositories.HistoryRepository
	logger  *zap.Logger

	// shuffle returns a permutation of [0,n); swapped in tests
	shuffle func(n int) []int
}

// NewService creates a new generation service
func NewService(runner Runner, history repositories.HistoryRepository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		runner:  runner,
		history: history,
		logger:  logger,
		shuffle: rand.Perm,
	}
}

// GenerateText runs one text operation through the fallback chain
func (s *Service) GenerateText(ctx context.Context, kind TextKind, payload TextPayload) (*providers.Result, error) {
	switch kind {
	case KindChat:
		return s.Chat(ctx, payload.Messages, payload.Context)
	case KindNarrative:
		return s.Narrate(ctx, payload.Prompt, payload.Context)
	case KindEnhance:
		return s.EnhancePrompt(ctx, payload.Prompt)
	default:
		return nil, services.ErrInvalidKind
	}
}

// Chat continues a conversation
func (s *Service) Chat(ctx context.Context, messages []providers.Message, chatContext string) (*providers.Result, error) {
	if len(messages) == 0 {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "at least one message is required", nil)
	}
	return s.run(ctx, &providers.ChatRequest{Messages: messages, Context: chatContext})
}

// Narrate writes a descriptive narrative for a concept prompt
func (s *Service) Narrate(ctx context.Context, prompt, narrativeContext string) (*providers.Result, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, services.ErrEmptyPrompt
	}
	return s.run(ctx, &providers.NarrateRequest{Prompt: prompt, Context: narrativeContext})
}

// EnhancePrompt rewrites a prompt for image generation. With no text backend configured
// at all it falls back to appending random modifiers locally.
func (s *Service) EnhancePrompt(ctx context.Context, prompt string) (*providers.Result, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, services.ErrEmptyPrompt
	}

	if !s.runner.Registry().AnyConfigured(providers.FamilyText) {
		s.logger.Info("no text provider configured, enhancing prompt locally")
		return &providers.Result{
			Operation: providers.OpEnhancePrompt,
			Kind:      providers.KindEnhancedPrompt,
			Text:      s.localEnhance(prompt),
		}, nil
	}
	return s.run(ctx, &providers.EnhanceRequest{Prompt: prompt})
}

func (s *Service) localEnhance(prompt string) string {
	n := localEnhancementCount
	if n > len(localModifiers) {
		n = len(localModifiers)
	}
	perm := s.shuffle(len(localModifiers))

	picked := make([]string, 0, n)
	for _, i := range perm[:n] {
		picked = append(picked, localModifiers[i])
	}
	return prompt + ", " + strings.Join(picked, ", ")
}

// GenerateImage renders a prompt. The image family has a single provider, so its failure is final.
func (s *Service) GenerateImage(ctx context.Context, prompt string, width, height int, opts ImageOptions) (*providers.Result, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, services.ErrEmptyPrompt
	}
	if width <= 0 || height <= 0 {
		width, height = defaultDimension, defaultDimension
	}

	return s.run(ctx, &providers.ImageRequest{
		Prompt:         prompt,
		NegativePrompt: opts.NegativePrompt,
		Width:          width,
		Height:         height,
		Quality:        opts.Quality,
		Style:          opts.Style,
	})
}

// CreateImage optionally enhances the prompt and then renders it at the requested size
func (s *Service) CreateImage(ctx context.Context, req *CreateImageRequest) (*CreateImageResult, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, services.ErrEmptyPrompt
	}

	finalPrompt := prompt
	if req.EnhancePrompt {
		enhanced, err := s.EnhancePrompt(ctx, prompt)
		if err != nil {
			return nil, err
		}
		finalPrompt = enhanced.Text
	}

	width, height := ParseSize(req.Size)
	image, err := s.GenerateImage(ctx, finalPrompt, width, height, ImageOptions{
		NegativePrompt: req.NegativePrompt,
		Quality:        req.Quality,
		Style:          req.Style,
	})
	if err != nil {
		return nil, err
	}

	return &CreateImageResult{
		ImageURL:      image.ImageRef,
		RevisedPrompt: finalPrompt,
		Provider:      image.Provider,
	}, nil
}

// GenerateBoth produces a narrative, optionally enhances the prompt, renders the image and
// saves the record. Nothing is saved unless every step succeeded.
func (s *Service) GenerateBoth(ctx context.Context, req *GenerateBothRequest) (*GenerationResult, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, services.ErrEmptyPrompt
	}

	start := time.Now()
	narrative, err := s.Narrate(ctx, prompt, req.Context)
	if err != nil {
		return nil, err
	}

	finalPrompt := prompt
	if req.EnhancePrompt {
		enhanced, err := s.EnhancePrompt(ctx, prompt)
		if err != nil {
			return nil, err
		}
		finalPrompt = enhanced.Text
	}

	width, height := ParseSize(req.ImageSize)
	image, err := s.GenerateImage(ctx, finalPrompt, width, height, ImageOptions{
		Quality: req.ImageQuality,
		Style:   req.ImageStyle,
	})
	if err != nil {
		return nil, err
	}

	result := &GenerationResult{
		Prompt:        prompt,
		Narrative:     narrative.Text,
		ImageURL:      image.ImageRef,
		RevisedPrompt: finalPrompt,
		TextProvider:  narrative.Provider,
		ImageProvider: image.Provider,
	}

	if req.SaveToHistory && s.history != nil {
		record := models.NewGenerationRecord(prompt, narrative.Text, image.ImageRef)
		record.TextProvider = string(narrative.Provider)
		record.ImageProvider = string(image.Provider)

		if err := s.history.Append(ctx, record); err != nil {
			s.logger.Error("failed to save generation", zap.Error(err))
			result.HistoryError = err.Error()
		} else {
			id := record.ID
			result.RecordID = &id
		}
	}

	s.logger.Info("concept generated",
		zap.String("text_provider", string(result.TextProvider)),
		zap.String("image_provider", string(result.ImageProvider)),
		zap.Bool("saved", result.RecordID != nil),
		zap.Duration("duration", time.Since(start)),
	)
	return result, nil
}

// ListHistory returns recent saved generations
func (s *Service) ListHistory(ctx context.Context, limit int) ([]*models.GenerationRecord, error) {
	records, err := s.requireHistory().List(ctx, limit)
	if err != nil {
		return nil, services.WrapInternal("failed to list history", err)
	}
	return records, nil
}

// SearchHistory returns saved generations ranked against a query
func (s *Service) SearchHistory(ctx context.Context, query string, n int) ([]*models.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "query cannot be empty", nil)
	}
	results, err := s.requireHistory().Search(ctx, query, n)
	if err != nil {
		return nil, services.WrapInternal("failed to search history", err)
	}
	return results, nil
}

// DeleteHistory removes one saved generation
func (s *Service) DeleteHistory(ctx context.Context, rawID string) error {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return services.WrapValidation("invalid record id", err)
	}

	deleted, err := s.requireHistory().Delete(ctx, id)
	if err != nil {
		return services.WrapInternal("failed to delete history record", err)
	}
	if !deleted {
		return services.ErrRecordNotFound
	}
	return nil
}

// ProviderStatus reports which backends are configured
func (s *Service) ProviderStatus() map[providers.ProviderID]bool {
	return s.runner.Registry().Status()
}

func (s *Service) run(ctx context.Context, req providers.Request) (*providers.Result, error) {
	res, err := s.runner.Run(ctx, req)
	if err != nil {
		return nil, services.FromGenerationError(ctx, err)
	}
	return res, nil
}

// requireHistory returns a store that fails every call when none is wired
func (s *Service) requireHistory() repositories.HistoryRepository {
	if s.history == nil {
		return unavailableHistory{}
	}
	return s.history
}

var errNoHistory = errors.New("history store not configured")

type unavailableHistory struct{}

func (unavailableHistory) Append(context.Context, *models.GenerationRecord) error {
	return errNoHistory
}
func (unavailableHistory) List(context.Context, int) ([]*models.GenerationRecord, error) {
	return nil, errNoHistory
}
func (unavailableHistory) Search(context.Context, string, int) ([]*models.SearchResult, error) {
	return nil, errNoHistory
}
func (unavailableHistory) Delete(context.Context, uuid.UUID) (bool, error) {
	return false, errNoHistory
}
func (unavailableHistory) Count(context.Context) (int, error) { return 0, errNoHistory }

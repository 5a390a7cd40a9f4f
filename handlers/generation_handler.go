package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/upb/concept-studio/middleware"
	"github.com/upb/concept-studio/services/generation"
	"github.com/upb/concept-studio/services/providers"
	"github.com/upb/concept-studio/utils"
)

// ChatRequest continues a conversation
type ChatRequest struct {
	Messages []providers.Message `json:"messages" validate:"required,min=1,dive"`
	Context  string              `json:"context,omitempty" validate:"max=4000"`
}

// NarrativeRequest asks for a concept narrative
type NarrativeRequest struct {
	Prompt  string `json:"prompt" validate:"required,min=3,max=2000"`
	Context string `json:"context,omitempty" validate:"max=4000"`
}

// EnhancePromptRequest asks for an image-ready rewrite of a prompt
type EnhancePromptRequest struct {
	Prompt string `json:"prompt" validate:"required,min=3,max=2000"`
}

// ImageRequest asks for a single rendered image. Style is either a tone hint (vivid, natural),
// which the image backend ignores, or one of its style preset names.
type ImageRequest struct {
	Prompt         string `json:"prompt" validate:"required,min=3,max=2000"`
	NegativePrompt string `json:"negative_prompt,omitempty" validate:"max=2000"`
	Size           string `json:"size,omitempty" validate:"omitempty,imagesize"`
	Quality        string `json:"quality,omitempty" validate:"omitempty,oneof=standard hd"`
	Style          string `json:"style,omitempty" validate:"omitempty,oneof=vivid natural 3d-model analog-film anime cinematic comic-book digital-art enhance fantasy-art isometric line-art low-poly modeling-compound neon-punk origami photographic pixel-art tile-texture"`
	EnhancePrompt  *bool  `json:"enhance_prompt,omitempty"`
}

// GenerateRequest asks for a narrative and a matching image
type GenerateRequest struct {
	Prompt        string `json:"prompt" validate:"required,min=3,max=2000"`
	Context       string `json:"context,omitempty" validate:"max=4000"`
	EnhancePrompt *bool  `json:"enhance_prompt,omitempty"`
	ImageSize     string `json:"image_size,omitempty" validate:"omitempty,imagesize"`
	ImageQuality  string `json:"image_quality,omitempty" validate:"omitempty,oneof=standard hd"`
	ImageStyle    string `json:"image_style,omitempty" validate:"omitempty,oneof=vivid natural 3d-model analog-film anime cinematic comic-book digital-art enhance fantasy-art isometric line-art low-poly modeling-compound neon-punk origami photographic pixel-art tile-texture"`
	SaveToHistory *bool  `json:"save_to_history,omitempty"`
}

// TextResponse is returned by the chat and narrative endpoints
type TextResponse struct {
	Text     string               `json:"text"`
	Provider providers.ProviderID `json:"provider"`
	Model    string               `json:"model,omitempty"`
	Usage    *providers.Usage     `json:"usage,omitempty"`
}

// EnhancePromptResponse carries the original and rewritten prompt
type EnhancePromptResponse struct {
	OriginalPrompt string               `json:"original_prompt"`
	EnhancedPrompt string               `json:"enhanced_prompt"`
	Provider       providers.ProviderID `json:"provider,omitempty"`
}

// GenerationService defines the generation operations exposed over HTTP
type GenerationService interface {
	Chat(ctx context.Context, messages []providers.Message, chatContext string) (*providers.Result, error)
	Narrate(ctx context.Context, prompt, narrativeContext string) (*providers.Result, error)
	EnhancePrompt(ctx context.Context, prompt string) (*providers.Result, error)
	CreateImage(ctx context.Context, req *generation.CreateImageRequest) (*generation.CreateImageResult, error)
	GenerateBoth(ctx context.Context, req *generation.GenerateBothRequest) (*generation.GenerationResult, error)
}

// GenerationHandler handles text and image generation requests
type GenerationHandler struct {
	service GenerationService
	logger  *zap.Logger
}

// NewGenerationHandler creates a new GenerationHandler
func NewGenerationHandler(service GenerationService, logger *zap.Logger) *GenerationHandler {
	return &GenerationHandler{
		service: service,
		logger:  logger,
	}
}

// HandleChat handles POST /api/chat
func (h *GenerationHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.service.Chat(r.Context(), req.Messages, req.Context)
	if err != nil {
		h.fail(w, r, "chat", err)
		return
	}

	h.write(w, r, textResponse(result))
}

// HandleNarrative handles POST /api/narrative
func (h *GenerationHandler) HandleNarrative(w http.ResponseWriter, r *http.Request) {
	var req NarrativeRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.service.Narrate(r.Context(), req.Prompt, req.Context)
	if err != nil {
		h.fail(w, r, "narrative", err)
		return
	}

	h.write(w, r, textResponse(result))
}

// HandleEnhancePrompt handles POST /api/prompt/enhance
func (h *GenerationHandler) HandleEnhancePrompt(w http.ResponseWriter, r *http.Request) {
	var req EnhancePromptRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.service.EnhancePrompt(r.Context(), req.Prompt)
	if err != nil {
		h.fail(w, r, "prompt enhancement", err)
		return
	}

	h.write(w, r, EnhancePromptResponse{
		OriginalPrompt: req.Prompt,
		EnhancedPrompt: result.Text,
		Provider:       result.Provider,
	})
}

// HandleImage handles POST /api/image. The prompt is enhanced unless enhance_prompt is false.
func (h *GenerationHandler) HandleImage(w http.ResponseWriter, r *http.Request) {
	var req ImageRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.service.CreateImage(r.Context(), &generation.CreateImageRequest{
		Prompt:         req.Prompt,
		Size:           req.Size,
		Quality:        req.Quality,
		Style:          req.Style,
		NegativePrompt: req.NegativePrompt,
		EnhancePrompt:  boolOr(req.EnhancePrompt, true),
	})
	if err != nil {
		h.fail(w, r, "image generation", err)
		return
	}

	h.write(w, r, result)
}

// HandleGenerate handles POST /api/generate
func (h *GenerationHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if !h.decode(w, r, &req) {
		return
	}

	h.logger.Debug("generating concept",
		zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
		zap.Int("prompt_length", len(req.Prompt)))

	result, err := h.service.GenerateBoth(r.Context(), &generation.GenerateBothRequest{
		Prompt:        req.Prompt,
		Context:       req.Context,
		EnhancePrompt: boolOr(req.EnhancePrompt, true),
		ImageSize:     req.ImageSize,
		ImageQuality:  req.ImageQuality,
		ImageStyle:    req.ImageStyle,
		SaveToHistory: boolOr(req.SaveToHistory, true),
	})
	if err != nil {
		h.fail(w, r, "concept generation", err)
		return
	}

	h.write(w, r, result)
}

// decode parses and validates the body, writing a 400 on failure
func (h *GenerationHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	return decodeAndValidate(w, r, dst, h.logger)
}

func (h *GenerationHandler) fail(w http.ResponseWriter, r *http.Request, what string, err error) {
	h.logger.Error(what+" failed",
		zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
		zap.Error(err))
	HandleServiceError(w, err, h.logger)
}

func (h *GenerationHandler) write(w http.ResponseWriter, r *http.Request, data interface{}) {
	if err := utils.WriteOK(w, data); err != nil {
		h.logger.Error("failed to write response",
			zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
			zap.Error(err))
	}
}

func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}, logger *zap.Logger) bool {
	requestID := middleware.GetRequestIDFromContext(r.Context())

	if err := utils.DecodeJSON(r, dst); err != nil {
		logger.Warn("failed to parse request body",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return false
	}

	if err := utils.ValidateStruct(dst); err != nil {
		logger.Warn("request validation failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		HandleValidationError(w, err, logger)
		return false
	}
	return true
}

func textResponse(result *providers.Result) TextResponse {
	return TextResponse{
		Text:     result.Text,
		Provider: result.Provider,
		Model:    result.Model,
		Usage:    result.Usage,
	}
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

package generation

import (
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/upb/concept-studio/services/providers"
)

const (
	// DefaultImageSize is used when a size string is missing or unparsable
	DefaultImageSize = "1024x1024"
	defaultDimension = 1024

	// localEnhancementCount is how many modifiers the offline enhancer adds
	localEnhancementCount = 5
)

// TextKind selects one of the text operations
type TextKind string

const (
	KindChat      TextKind = "chat"
	KindNarrative TextKind = "narrative"
	KindEnhance   TextKind = "enhance"
)

// TextPayload carries the inputs of every text kind; each kind reads only its own fields
type TextPayload struct {
	Prompt   string
	Context  string
	Messages []providers.Message
}

// ImageOptions are optional rendering hints
type ImageOptions struct {
	NegativePrompt string
	Quality        string
	Style          string
}

// CreateImageRequest drives a standalone image render
type CreateImageRequest struct {
	Prompt         string
	Size           string
	Quality        string
	Style          string
	NegativePrompt string
	EnhancePrompt  bool
}

// CreateImageResult is a rendered image and the prompt actually sent
type CreateImageResult struct {
	ImageURL      string               `json:"image_url"`
	RevisedPrompt string               `json:"revised_prompt"`
	Provider      providers.ProviderID `json:"provider"`
}

// GenerateBothRequest drives the narrative + image flow
type GenerateBothRequest struct {
	Prompt        string
	Context       string
	EnhancePrompt bool
	ImageSize     string
	ImageQuality  string
	ImageStyle    string
	SaveToHistory bool
}

// GenerationResult is the outcome of a full narrative + image run
type GenerationResult struct {
	Prompt        string               `json:"prompt"`
	Narrative     string               `json:"narrative"`
	ImageURL      string               `json:"image_url"`
	RevisedPrompt string               `json:"revised_prompt"`
	TextProvider  providers.ProviderID `json:"text_provider"`
	ImageProvider providers.ProviderID `json:"image_provider"`
	RecordID      *uuid.UUID           `json:"record_id,omitempty"`

	// HistoryError is set when generation succeeded but saving did not
	HistoryError string `json:"history_error,omitempty"`
}

// localModifiers feed the offline prompt enhancer
var localModifiers = []string{
	"ultra-realistic, photorealistic",
	"cinematic quality, 8k resolution",
	"highly detailed, professional photography",
	"natural lighting, sharp focus",
	"modern automotive design",
	"sleek aerodynamic body",
	"studio lighting, reflections",
	"carbon fiber accents",
	"metallic paint finish",
	"luxury interior",
}

// ParseSize reads "WxH". Anything else yields 1024x1024.
func ParseSize(size string) (int, int) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(size)), "x")
	if !ok {
		return defaultDimension, defaultDimension
	}
	width, err := strconv.Atoi(strings.TrimSpace(w))
	if err != nil || width <= 0 {
		return defaultDimension, defaultDimension
	}
	height, err := strconv.Atoi(strings.TrimSpace(h))
	if err != nil || height <= 0 {
		return defaultDimension, defaultDimension
	}
	return width, height
}

package providers

import (
	"context"
	"strings"
	"time"
)

// ProviderID identifies one generation backend
type ProviderID string

const (
	// LocalLLM is the self-hosted inference server (Ollama)
	LocalLLM ProviderID = "local-llm"

	// HostedLLMA is the first hosted chat backend (Groq)
	HostedLLMA ProviderID = "hosted-llm-a"

	// HostedLLMB is the second hosted chat backend (OpenAI)
	HostedLLMB ProviderID = "hosted-llm-b"

	// HostedImage is the hosted image backend (Stability AI)
	HostedImage ProviderID = "hosted-image"
)

// providerAliases maps backend names accepted in configuration to identities
var providerAliases = map[string]ProviderID{
	"ollama":    LocalLLM,
	"groq":      HostedLLMA,
	"openai":    HostedLLMB,
	"stability": HostedImage,
}

// ParseProviderID resolves an identity tag or backend alias. Matching is case-insensitive.
func ParseProviderID(s string) (ProviderID, bool) {
	name := strings.ToLower(strings.TrimSpace(s))
	if id, ok := providerAliases[name]; ok {
		return id, true
	}
	switch id := ProviderID(name); id {
	case LocalLLM, HostedLLMA, HostedLLMB, HostedImage:
		return id, true
	}
	return "", false
}

// String returns the identity tag
func (id ProviderID) String() string {
	return string(id)
}

// Operation is one generation capability
type Operation string

const (
	OpChat          Operation = "chat"
	OpNarrate       Operation = "narrate"
	OpEnhancePrompt Operation = "enhance-prompt"
	OpGenerateImage Operation = "generate-image"
)

// Family groups operations that share a fallback order
type Family string

const (
	FamilyText  Family = "text"
	FamilyImage Family = "image"
)

// Family returns the provider pool an operation draws from
func (op Operation) Family() Family {
	if op == OpGenerateImage {
		return FamilyImage
	}
	return FamilyText
}

// capabilities is fixed at compile time; adapters cannot widen it
var capabilities = map[ProviderID][]Operation{
	LocalLLM:    {OpChat, OpNarrate, OpEnhancePrompt},
	HostedLLMA:  {OpChat, OpNarrate, OpEnhancePrompt},
	HostedLLMB:  {OpChat, OpNarrate, OpEnhancePrompt},
	HostedImage: {OpGenerateImage},
}

// Supports reports whether the provider declares the operation's capability
func (id ProviderID) Supports(op Operation) bool {
	for _, c := range capabilities[id] {
		if c == op {
			return true
		}
	}
	return false
}

// Capabilities returns a copy of the provider's capability set
func (id ProviderID) Capabilities() []Operation {
	return append([]Operation(nil), capabilities[id]...)
}

// Request is the closed set of operation requests. Only types in this package implement it.
type Request interface {
	Operation() Operation
	isRequest()
}

// Message represents a single message in a conversation
type Message struct {
	// Role can be "system", "user", or "assistant"
	Role string `json:"role" validate:"required,oneof=system user assistant"`

	// Content is the message text
	Content string `json:"content" validate:"required"`
}

// ChatRequest continues a conversation
type ChatRequest struct {
	Messages []Message `json:"messages"`

	// Context is optional background appended to the system instruction
	Context string `json:"context,omitempty"`
}

// NarrateRequest asks for a descriptive narrative about a concept
type NarrateRequest struct {
	Prompt  string `json:"prompt"`
	Context string `json:"context,omitempty"`
}

// EnhanceRequest asks for a richer image-generation prompt
type EnhanceRequest struct {
	Prompt string `json:"prompt"`
}

// ImageRequest asks for a rendered image
type ImageRequest struct {
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`

	// Quality and Style are hints; backends without a matching knob ignore them
	Quality string `json:"quality,omitempty"`
	Style   string `json:"style,omitempty"`
}

func (*ChatRequest) Operation() Operation    { return OpChat }
func (*NarrateRequest) Operation() Operation { return OpNarrate }
func (*EnhanceRequest) Operation() Operation { return OpEnhancePrompt }
func (*ImageRequest) Operation() Operation   { return OpGenerateImage }

func (*ChatRequest) isRequest()    {}
func (*NarrateRequest) isRequest() {}
func (*EnhanceRequest) isRequest() {}
func (*ImageRequest) isRequest()   {}

// Adapter is the part every backend shares
type Adapter interface {
	// ID returns the provider identity
	ID() ProviderID

	// Configured reports whether credentials/endpoint are present.
	// Unconfigured adapters must never touch the network.
	Configured() bool
}

// TextAdapter serves the text family
type TextAdapter interface {
	Adapter
	Chat(ctx context.Context, req *ChatRequest) (*RawResponse, error)
	Narrate(ctx context.Context, req *NarrateRequest) (*RawResponse, error)
	EnhancePrompt(ctx context.Context, req *EnhanceRequest) (*RawResponse, error)
}

// ImageAdapter serves the image family
type ImageAdapter interface {
	Adapter
	GenerateImage(ctx context.Context, req *ImageRequest) (*RawResponse, error)
}

// ProviderConfig holds common configuration for providers
type ProviderConfig struct {
	// APIKey for authentication
	APIKey string

	// BaseURL for the API (optional override)
	BaseURL string

	// Model is the backend model name
	Model string

	// Timeout for a single HTTP attempt
	Timeout time.Duration

	// MaxAttempts including the first one
	MaxAttempts int

	// RetryDelay is the linear backoff base
	RetryDelay time.Duration

	// RateLimitDelay replaces RetryDelay after a 429 when set
	RateLimitDelay time.Duration

	// Sampling defaults
	MaxTokens   int
	Temperature float64
	TopP        float64
}

// DefaultProviderConfig returns a sensible default configuration
func DefaultProviderConfig() ProviderConfig {
	return ProviderConfig{
		Timeout:     60 * time.Second,
		MaxAttempts: 3,
		RetryDelay:  2 * time.Second,
		MaxTokens:   2048,
		Temperature: 0.7,
		TopP:        0.9,
	}
}

// RetryPolicy derives the retry policy for this provider
func (c ProviderConfig) RetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    c.MaxAttempts,
		BaseDelay:      c.RetryDelay,
		RateLimitDelay: c.RateLimitDelay,
	}
}

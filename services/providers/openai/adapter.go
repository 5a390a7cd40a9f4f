package openai

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"

	"github.com/upb/concept-studio/services/providers"
)

const (
	defaultModel = "gpt-3.5-turbo"
)

// Per-operation sampling, tuned so narratives run longer and warmer than rewrites
var sampling = map[providers.Operation]struct {
	maxTokens   int64
	temperature float64
}{
	providers.OpChat:          {maxTokens: 500, temperature: 0.7},
	providers.OpNarrate:       {maxTokens: 1000, temperature: 0.8},
	providers.OpEnhancePrompt: {maxTokens: 200, temperature: 0.7},
}

var _ providers.TextAdapter = (*Adapter)(nil)

// Adapter implements the text adapter on the official OpenAI SDK.
// SDK retries are disabled; providers.Retry owns backoff.
type Adapter struct {
	config providers.ProviderConfig
	client openai.Client
	logger *zap.Logger
}

// NewAdapter creates a new OpenAI adapter
func NewAdapter(config providers.ProviderConfig, logger *zap.Logger) *Adapter {
	if config.Model == "" {
		config.Model = defaultModel
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(config.Timeout),
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	return &Adapter{
		config: config,
		client: openai.NewClient(opts...),
		logger: logger.With(zap.String("provider", string(providers.HostedLLMB))),
	}
}

// ID returns the provider identity
func (a *Adapter) ID() providers.ProviderID {
	return providers.HostedLLMB
}

// Configured reports whether an API key is present
func (a *Adapter) Configured() bool {
	return a.config.APIKey != ""
}

// Chat prepends the system instruction to the full conversation
func (a *Adapter) Chat(ctx context.Context, req *providers.ChatRequest) (*providers.RawResponse, error) {
	msgs := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(providers.SystemWithContext(providers.ChatSystemPrompt, req.Context)),
	}
	for _, m := range req.Messages {
		msgs = append(msgs, convertMessage(m))
	}
	return a.complete(ctx, providers.OpChat, msgs)
}

// Narrate generates a concept narrative
func (a *Adapter) Narrate(ctx context.Context, req *providers.NarrateRequest) (*providers.RawResponse, error) {
	return a.complete(ctx, providers.OpNarrate, []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(providers.SystemWithContext(providers.NarrateSystemPrompt, req.Context)),
		openai.UserMessage(req.Prompt),
	})
}

// EnhancePrompt rewrites a prompt for image generation
func (a *Adapter) EnhancePrompt(ctx context.Context, req *providers.EnhanceRequest) (*providers.RawResponse, error) {
	return a.complete(ctx, providers.OpEnhancePrompt, []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(providers.EnhanceSystemPrompt),
		openai.UserMessage("Enhance this prompt for image generation: " + req.Prompt),
	})
}

func (a *Adapter) complete(ctx context.Context, op providers.Operation, msgs []openai.ChatCompletionMessageParamUnion) (*providers.RawResponse, error) {
	if !a.Configured() {
		return nil, providers.NotConfiguredError(a.ID())
	}

	params := openai.ChatCompletionNewParams{
		Model:    a.config.Model,
		Messages: msgs,
	}
	if s, ok := sampling[op]; ok {
		params.MaxTokens = openai.Int(s.maxTokens)
		params.Temperature = openai.Float(s.temperature)
	}

	policy := a.config.RetryPolicy()
	policy.OnRetry = func(err error, attempt int, delay time.Duration) {
		a.logger.Warn("retrying request",
			zap.String("operation", string(op)),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
	}

	return providers.Retry(ctx, policy, func(ctx context.Context) (*providers.RawResponse, error) {
		resp, err := a.client.Chat.Completions.New(ctx, params)
		if err != nil {
			return nil, a.convertError(err)
		}
		return &providers.RawResponse{
			Provider:   a.ID(),
			Operation:  op,
			Model:      resp.Model,
			StatusCode: 200,
			Payload:    convertResponse(resp),
		}, nil
	})
}

func convertMessage(m providers.Message) openai.ChatCompletionMessageParamUnion {
	switch m.Role {
	case "assistant":
		return openai.AssistantMessage(m.Content)
	case "system":
		return openai.SystemMessage(m.Content)
	default:
		return openai.UserMessage(m.Content)
	}
}

// convertResponse keeps a nil Choices slice nil so normalization can detect it
func convertResponse(resp *openai.ChatCompletion) *providers.ChatCompletionPayload {
	payload := &providers.ChatCompletionPayload{
		ID:    resp.ID,
		Model: resp.Model,
		Usage: &providers.Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}
	if resp.Choices == nil {
		return payload
	}

	payload.Choices = make([]providers.ChatChoice, 0, len(resp.Choices))
	for _, c := range resp.Choices {
		payload.Choices = append(payload.Choices, providers.ChatChoice{
			Index:        int(c.Index),
			Message:      &providers.ChatMessage{Role: string(c.Message.Role), Content: c.Message.Content},
			FinishReason: string(c.FinishReason),
		})
	}
	return payload
}

// convertError surfaces the API status and message unchanged
func (a *Adapter) convertError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = strings.TrimSpace(apiErr.Error())
		}
		return providers.NewProviderError(a.ID(), apiErr.Code, msg, apiErr.StatusCode, false, nil)
	}
	return providers.NewProviderError(a.ID(), "HTTP_ERROR", "request failed", 0, false, err)
}

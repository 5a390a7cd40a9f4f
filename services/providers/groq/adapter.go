package groq

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/upb/concept-studio/services/providers"
)

const (
	defaultBaseURL = "https://api.groq.com/openai/v1"
	defaultModel   = "llama-3.3-70b-versatile"

	// chatHistoryLimit bounds how many trailing messages are sent upstream
	chatHistoryLimit = 10
)

var _ providers.TextAdapter = (*Adapter)(nil)

// Adapter speaks Groq's OpenAI-compatible chat completions API
type Adapter struct {
	config     providers.ProviderConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// NewAdapter creates a new Groq adapter
func NewAdapter(config providers.ProviderConfig, logger *zap.Logger) *Adapter {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.Model == "" {
		config.Model = defaultModel
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = 2048
	}
	if config.Temperature == 0 {
		config.Temperature = 0.7
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Adapter{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: logger.With(zap.String("provider", string(providers.HostedLLMA))),
	}
}

// ID returns the provider identity
func (a *Adapter) ID() providers.ProviderID {
	return providers.HostedLLMA
}

// Configured reports whether an API key is present
func (a *Adapter) Configured() bool {
	return a.config.APIKey != ""
}

// Chat sends the system instruction plus the most recent messages
func (a *Adapter) Chat(ctx context.Context, req *providers.ChatRequest) (*providers.RawResponse, error) {
	msgs := []chatMessage{{Role: "system", Content: providers.SystemWithContext(providers.ChatSystemPrompt, req.Context)}}
	for _, m := range providers.LastMessages(req.Messages, chatHistoryLimit) {
		msgs = append(msgs, chatMessage{Role: m.Role, Content: m.Content})
	}
	return a.complete(ctx, providers.OpChat, msgs, a.config.MaxTokens, a.config.Temperature)
}

// Narrate generates a concept narrative
func (a *Adapter) Narrate(ctx context.Context, req *providers.NarrateRequest) (*providers.RawResponse, error) {
	msgs := []chatMessage{
		{Role: "system", Content: providers.SystemWithContext(providers.NarrateSystemPrompt, req.Context)},
		{Role: "user", Content: req.Prompt},
	}
	return a.complete(ctx, providers.OpNarrate, msgs, a.config.MaxTokens, a.config.Temperature)
}

// EnhancePrompt rewrites a prompt for image generation
func (a *Adapter) EnhancePrompt(ctx context.Context, req *providers.EnhanceRequest) (*providers.RawResponse, error) {
	msgs := []chatMessage{
		{Role: "system", Content: providers.EnhanceSystemPrompt},
		{Role: "user", Content: req.Prompt},
	}
	return a.complete(ctx, providers.OpEnhancePrompt, msgs, a.config.MaxTokens, a.config.Temperature)
}

// complete posts one chat completion through the retry executor
func (a *Adapter) complete(ctx context.Context, op providers.Operation, msgs []chatMessage, maxTokens int, temperature float64) (*providers.RawResponse, error) {
	if !a.Configured() {
		return nil, providers.NotConfiguredError(a.ID())
	}

	reqBody, err := json.Marshal(chatRequest{
		Model:       a.config.Model,
		Messages:    msgs,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		Stream:      false,
	})
	if err != nil {
		return nil, providers.NewProviderError(a.ID(), "MARSHAL_ERROR", "failed to marshal request", 0, false, err)
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
		return a.post(ctx, op, reqBody)
	})
}

// post performs a single HTTP attempt
func (a *Adapter) post(ctx context.Context, op providers.Operation, body []byte) (*providers.RawResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(a.config.BaseURL, "/")+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, providers.NewProviderError(a.ID(), "REQUEST_ERROR", "failed to create request", 0, false, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.config.APIKey)

	httpResp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, providers.NewProviderError(a.ID(), "HTTP_ERROR", "request failed", 0, false, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, providers.NewProviderError(a.ID(), "READ_ERROR", "failed to read response", httpResp.StatusCode, false, err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, a.handleErrorResponse(httpResp.StatusCode, respBody)
	}

	var payload providers.ChatCompletionPayload
	if err := json.Unmarshal(respBody, &payload); err != nil {
		return nil, providers.NewProviderError(a.ID(), "UNMARSHAL_ERROR", "failed to unmarshal response", httpResp.StatusCode, false, errors.Join(providers.ErrMalformedResponse, err))
	}

	return &providers.RawResponse{
		Provider:   a.ID(),
		Operation:  op,
		Model:      payload.Model,
		StatusCode: httpResp.StatusCode,
		Payload:    &payload,
	}, nil
}

// handleErrorResponse keeps the backend's raw message and status
func (a *Adapter) handleErrorResponse(statusCode int, body []byte) error {
	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error.Message == "" {
		return providers.NewProviderError(a.ID(), "UNKNOWN_ERROR", strings.TrimSpace(string(body)), statusCode, false, nil)
	}

	code := errResp.Error.Code
	if code == "" {
		code = errResp.Error.Type
	}
	return providers.NewProviderError(a.ID(), code, errResp.Error.Message, statusCode, false, nil)
}

// Groq wire types

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

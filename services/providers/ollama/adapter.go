package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/upb/concept-studio/services/providers"
)

const (
	defaultModel = "mistral"

	// maxPredict caps generation length; local models are slow past this
	maxPredict = 512
)

var _ providers.TextAdapter = (*Adapter)(nil)

// Adapter talks to a local Ollama server through /api/generate
type Adapter struct {
	config providers.ProviderConfig
	http   *resty.Client
	logger *zap.Logger
}

// NewAdapter creates a new Ollama adapter
func NewAdapter(config providers.ProviderConfig, logger *zap.Logger) *Adapter {
	if config.Model == "" {
		config.Model = defaultModel
	}
	if config.Timeout == 0 {
		config.Timeout = 120 * time.Second
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = 2048
	}
	if config.Temperature == 0 {
		config.Temperature = 0.7
	}
	if config.TopP == 0 {
		config.TopP = 0.9
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Adapter{
		config: config,
		http:   resty.New().SetTimeout(config.Timeout),
		logger: logger.With(zap.String("provider", string(providers.LocalLLM))),
	}
}

// ID returns the provider identity
func (a *Adapter) ID() providers.ProviderID {
	return providers.LocalLLM
}

// Configured reports whether an endpoint is set. No credentials are needed.
func (a *Adapter) Configured() bool {
	return a.config.BaseURL != ""
}

// Chat flattens the conversation into a role-prefixed transcript
func (a *Adapter) Chat(ctx context.Context, req *providers.ChatRequest) (*providers.RawResponse, error) {
	var b strings.Builder
	b.WriteString(providers.SystemWithContext(providers.ChatSystemPrompt, req.Context))
	b.WriteString("\n\n")
	for _, m := range req.Messages {
		fmt.Fprintf(&b, "%s: %s\n", roleLabel(m.Role), m.Content)
	}
	b.WriteString("Assistant:")

	return a.generate(ctx, providers.OpChat, b.String())
}

// Narrate generates a concept narrative
func (a *Adapter) Narrate(ctx context.Context, req *providers.NarrateRequest) (*providers.RawResponse, error) {
	prompt := providers.SystemWithContext(providers.NarrateSystemPrompt, req.Context) + "\n\nPrompt: " + req.Prompt
	return a.generate(ctx, providers.OpNarrate, prompt)
}

// EnhancePrompt rewrites a prompt for image generation. The answer is trimmed.
func (a *Adapter) EnhancePrompt(ctx context.Context, req *providers.EnhanceRequest) (*providers.RawResponse, error) {
	prompt := providers.EnhanceSystemPrompt + "\n\nOriginal prompt: " + req.Prompt + "\n\nEnhanced prompt:"
	raw, err := a.generate(ctx, providers.OpEnhancePrompt, prompt)
	if err != nil {
		return nil, err
	}
	if text, ok := raw.Payload.(providers.TextPayload); ok {
		raw.Payload = providers.TextPayload(strings.TrimSpace(string(text)))
	}
	return raw, nil
}

func (a *Adapter) generate(ctx context.Context, op providers.Operation, prompt string) (*providers.RawResponse, error) {
	if !a.Configured() {
		return nil, providers.NotConfiguredError(a.ID())
	}

	body := generateRequest{
		Model:  a.config.Model,
		Prompt: prompt,
		Stream: false,
		Options: generateOptions{
			NumPredict:  min(a.config.MaxTokens, maxPredict),
			Temperature: a.config.Temperature,
			TopP:        a.config.TopP,
		},
	}
	url := strings.TrimRight(a.config.BaseURL, "/") + "/api/generate"

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
		a.logger.Debug("sending generate request", zap.String("operation", string(op)), zap.String("model", a.config.Model))

		r, err := a.http.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/json").
			SetBody(body).
			Post(url)
		if err != nil {
			return nil, providers.NewProviderError(a.ID(), "HTTP_ERROR", "cannot connect to ollama at "+a.config.BaseURL, 0, false, err)
		}
		if r.IsError() {
			return nil, providers.NewProviderError(a.ID(), "API_ERROR", strings.TrimSpace(r.String()), r.StatusCode(), false, nil)
		}

		var resp generateResponse
		if err := json.Unmarshal(r.Body(), &resp); err != nil {
			return nil, providers.MalformedError(a.ID(), "invalid json: "+err.Error())
		}
		if resp.Response == nil {
			return nil, providers.MalformedError(a.ID(), "missing response field")
		}

		return &providers.RawResponse{
			Provider:   a.ID(),
			Operation:  op,
			Model:      resp.Model,
			StatusCode: r.StatusCode(),
			Payload:    providers.TextPayload(*resp.Response),
		}, nil
	})
}

func roleLabel(role string) string {
	if role == "" {
		return "User"
	}
	return strings.ToUpper(role[:1]) + role[1:]
}

// Ollama wire types

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	NumPredict  int     `json:"num_predict"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
}

type generateResponse struct {
	Model    string  `json:"model"`
	Response *string `json:"response"`
	Done     bool    `json:"done"`
}

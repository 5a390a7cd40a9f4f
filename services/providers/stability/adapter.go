package stability

import (
	"context"
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/upb/concept-studio/services/providers"
)

const (
	defaultBaseURL = "https://api.stability.ai"
	textToImage    = "/v2beta/image/text-to-image"

	maxDimension = 1024
	defaultSteps = 30
	hdSteps      = 50
	cfgScale     = 7.5
)

// stylePresets are the presets the backend accepts; other style hints are dropped
var stylePresets = map[string]bool{
	"3d-model": true, "analog-film": true, "anime": true, "cinematic": true,
	"comic-book": true, "digital-art": true, "enhance": true, "fantasy-art": true,
	"isometric": true, "line-art": true, "low-poly": true, "modeling-compound": true,
	"neon-punk": true, "origami": true, "photographic": true, "pixel-art": true,
	"tile-texture": true,
}

var _ providers.ImageAdapter = (*Adapter)(nil)

// Adapter renders images through Stability AI's text-to-image endpoint
type Adapter struct {
	config providers.ProviderConfig
	http   *resty.Client
	logger *zap.Logger
}

// NewAdapter creates a new Stability adapter. Image rendering is slow, so the defaults
// use a long timeout and a separate rate-limit backoff.
func NewAdapter(config providers.ProviderConfig, logger *zap.Logger) *Adapter {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = 180 * time.Second
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = 5 * time.Second
	}
	if config.RateLimitDelay == 0 {
		config.RateLimitDelay = 10 * time.Second
	}
	config.APIKey = strings.TrimSpace(config.APIKey)
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Adapter{
		config: config,
		http:   resty.New().SetTimeout(config.Timeout),
		logger: logger.With(zap.String("provider", string(providers.HostedImage))),
	}
}

// ID returns the provider identity
func (a *Adapter) ID() providers.ProviderID {
	return providers.HostedImage
}

// Configured reports whether an API key is present
func (a *Adapter) Configured() bool {
	return a.config.APIKey != ""
}

// GenerateImage renders one image and returns its artifacts
func (a *Adapter) GenerateImage(ctx context.Context, req *providers.ImageRequest) (*providers.RawResponse, error) {
	if !a.Configured() {
		return nil, providers.NotConfiguredError(a.ID())
	}

	body := buildRequest(req)
	url := strings.TrimRight(a.config.BaseURL, "/") + textToImage

	policy := a.config.RetryPolicy()
	policy.OnRetry = func(err error, attempt int, delay time.Duration) {
		a.logger.Warn("retrying image request",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
	}

	return providers.Retry(ctx, policy, func(ctx context.Context) (*providers.RawResponse, error) {
		r, err := a.http.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "application/json").
			SetAuthToken(a.config.APIKey).
			SetBody(body).
			Post(url)
		if err != nil {
			return nil, providers.NewProviderError(a.ID(), "HTTP_ERROR", "request failed", 0, false, err)
		}
		if r.IsError() {
			return nil, providers.NewProviderError(a.ID(), "API_ERROR", abbreviate(strings.TrimSpace(r.String()), 200), r.StatusCode(), false, nil)
		}

		var payload providers.ImagePayload
		if err := json.Unmarshal(r.Body(), &payload); err != nil {
			return nil, providers.MalformedError(a.ID(), "invalid json: "+err.Error())
		}

		return &providers.RawResponse{
			Provider:   a.ID(),
			Operation:  providers.OpGenerateImage,
			StatusCode: r.StatusCode(),
			Payload:    &payload,
		}, nil
	})
}

func buildRequest(req *providers.ImageRequest) imageRequest {
	prompts := []textPrompt{{Text: req.Prompt, Weight: 1.0}}
	if req.NegativePrompt != "" {
		prompts = append(prompts, textPrompt{Text: req.NegativePrompt, Weight: -1.0})
	}

	steps := defaultSteps
	if strings.EqualFold(req.Quality, "hd") {
		steps = hdSteps
	}

	body := imageRequest{
		TextPrompts: prompts,
		CfgScale:    cfgScale,
		Height:      clampDimension(req.Height),
		Width:       clampDimension(req.Width),
		Steps:       steps,
		Samples:     1,
	}
	if style := strings.ToLower(req.Style); stylePresets[style] {
		body.StylePreset = style
	}
	return body
}

func clampDimension(v int) int {
	if v <= 0 || v > maxDimension {
		return maxDimension
	}
	return v
}

// abbreviate caps s at n bytes without splitting a rune
func abbreviate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// Stability wire types

type imageRequest struct {
	TextPrompts []textPrompt `json:"text_prompts"`
	CfgScale    float64      `json:"cfg_scale"`
	Height      int          `json:"height"`
	Width       int          `json:"width"`
	Steps       int          `json:"steps"`
	Samples     int          `json:"samples"`
	StylePreset string       `json:"style_preset,omitempty"`
}

type textPrompt struct {
	Text   string  `json:"text"`
	Weight float64 `json:"weight"`
}

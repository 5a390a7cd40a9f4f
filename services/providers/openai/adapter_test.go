package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/concept-studio/services/providers"
)

const okBody = `{"id":"chatcmpl-9","object":"chat.completion","created":1700000000,"model":"gpt-3.5-turbo-0125","choices":[{"index":0,"message":{"role":"assistant","content":"Matte graphite body, LED light bar."},"finish_reason":"stop"}],"usage":{"prompt_tokens":20,"completion_tokens":8,"total_tokens":28}}`

func newTestAdapter(serverURL, apiKey string) *Adapter {
	return NewAdapter(providers.ProviderConfig{
		APIKey:      apiKey,
		BaseURL:     serverURL + "/v1/",
		Timeout:     5 * time.Second,
		MaxAttempts: 3,
		RetryDelay:  time.Millisecond,
	}, zap.NewNop())
}

func TestNewAdapter(t *testing.T) {
	a := NewAdapter(providers.ProviderConfig{}, nil)

	assert.Equal(t, providers.HostedLLMB, a.ID())
	assert.Equal(t, defaultModel, a.config.Model)
	assert.False(t, a.Configured())
}

func TestAdapter_NotConfigured(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer server.Close()

	_, err := newTestAdapter(server.URL, "").Narrate(context.Background(), &providers.NarrateRequest{Prompt: "truck"})

	assert.True(t, errors.Is(err, providers.ErrNotConfigured))
	assert.Equal(t, int32(0), atomic.LoadInt32(&hits))
}

func TestAdapter_EnhancePrompt(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, okBody)
	}))
	defer server.Close()

	a := newTestAdapter(server.URL, "sk-test")
	raw, err := a.EnhancePrompt(context.Background(), &providers.EnhanceRequest{Prompt: "pickup truck"})
	require.NoError(t, err)

	assert.Equal(t, "gpt-3.5-turbo", body["model"])
	assert.EqualValues(t, 200, body["max_tokens"])
	msgs, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[1].(map[string]any)["content"], "pickup truck")

	res, err := providers.Normalize(providers.OpEnhancePrompt, a.ID(), raw)
	require.NoError(t, err)
	assert.Equal(t, providers.KindEnhancedPrompt, res.Kind)
	assert.Equal(t, "Matte graphite body, LED light bar.", res.Text)
	assert.Equal(t, "gpt-3.5-turbo-0125", res.Model)
	assert.Equal(t, 28, res.Usage.TotalTokens)
}

func TestAdapter_ChatMessageRoles(t *testing.T) {
	var body struct {
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, okBody)
	}))
	defer server.Close()

	_, err := newTestAdapter(server.URL, "sk-test").Chat(context.Background(), &providers.ChatRequest{
		Messages: []providers.Message{
			{Role: "user", Content: "hi"},
			{Role: "assistant", Content: "hello"},
		},
	})
	require.NoError(t, err)

	require.Len(t, body.Messages, 3)
	assert.Equal(t, "system", body.Messages[0].Role)
	assert.Equal(t, "user", body.Messages[1].Role)
	assert.Equal(t, "assistant", body.Messages[2].Role)
}

func TestAdapter_QuotaErrorSurfacesStatus(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"You exceeded your current quota","type":"insufficient_quota","code":"insufficient_quota"}}`)
	}))
	defer server.Close()

	_, err := newTestAdapter(server.URL, "sk-test").Chat(context.Background(), &providers.ChatRequest{})

	require.Error(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
	assert.True(t, errors.Is(err, providers.ErrRetriesExhausted))
	assert.Equal(t, providers.ClassQuota, providers.Classify(err))

	var provErr *providers.ProviderError
	require.True(t, errors.As(err, &provErr))
	assert.Equal(t, http.StatusTooManyRequests, provErr.StatusCode)
	assert.Equal(t, "insufficient_quota", provErr.Code)
}

func TestAdapter_BadRequestNotRetried(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"message":"bad model","type":"invalid_request_error","code":"model_not_found"}}`)
	}))
	defer server.Close()

	_, err := newTestAdapter(server.URL, "sk-test").Chat(context.Background(), &providers.ChatRequest{})

	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.Equal(t, providers.ClassFatal, providers.Classify(err))
}

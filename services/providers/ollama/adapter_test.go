package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/concept-studio/services/providers"
)

func newTestAdapter(baseURL string) *Adapter {
	return NewAdapter(providers.ProviderConfig{
		BaseURL:     baseURL,
		Timeout:     5 * time.Second,
		MaxAttempts: 3,
		RetryDelay:  time.Millisecond,
		MaxTokens:   2048,
	}, zap.NewNop())
}

func TestAdapter_Configured(t *testing.T) {
	assert.False(t, NewAdapter(providers.ProviderConfig{}, nil).Configured())
	assert.True(t, newTestAdapter("http://localhost:11434").Configured())
	assert.Equal(t, providers.LocalLLM, newTestAdapter("http://localhost:11434").ID())
}

func TestAdapter_ChatTranscript(t *testing.T) {
	var got generateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"model":"mistral","response":"Try a hybrid drivetrain.","done":true}`)
	}))
	defer server.Close()

	a := newTestAdapter(server.URL)
	raw, err := a.Chat(context.Background(), &providers.ChatRequest{
		Messages: []providers.Message{
			{Role: "user", Content: "What engine?"},
			{Role: "assistant", Content: "Which budget?"},
		},
		Context: "city car",
	})
	require.NoError(t, err)

	assert.Equal(t, "mistral", got.Model)
	assert.False(t, got.Stream)
	assert.Equal(t, maxPredict, got.Options.NumPredict)
	assert.Contains(t, got.Prompt, "Context: city car")
	assert.Contains(t, got.Prompt, "User: What engine?\nAssistant: Which budget?\n")
	assert.True(t, len(got.Prompt) > 0 && got.Prompt[len(got.Prompt)-len("Assistant:"):] == "Assistant:")

	res, err := providers.Normalize(providers.OpChat, a.ID(), raw)
	require.NoError(t, err)
	assert.Equal(t, "Try a hybrid drivetrain.", res.Text)
}

func TestAdapter_EnhanceTrims(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"model":"mistral","response":"\n  red coupe, golden hour, 8k  \n","done":true}`)
	}))
	defer server.Close()

	raw, err := newTestAdapter(server.URL).EnhancePrompt(context.Background(), &providers.EnhanceRequest{Prompt: "red coupe"})
	require.NoError(t, err)
	assert.Equal(t, providers.TextPayload("red coupe, golden hour, 8k"), raw.Payload)
}

func TestAdapter_MissingResponseField(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"model":"mistral","done":true}`)
	}))
	defer server.Close()

	_, err := newTestAdapter(server.URL).Narrate(context.Background(), &providers.NarrateRequest{Prompt: "van"})
	assert.True(t, errors.Is(err, providers.ErrMalformedResponse))
}

func TestAdapter_ConnectionRefusedIsRetriedThenTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := newTestAdapter(url).Narrate(context.Background(), &providers.NarrateRequest{Prompt: "van"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, providers.ErrRetriesExhausted))
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, providers.ClassTransient, providers.Classify(err))
}

func TestAdapter_NotFoundModel(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":"model 'mistral' not found, try pulling it first"}`)
	}))
	defer server.Close()

	_, err := newTestAdapter(server.URL).Chat(context.Background(), &providers.ChatRequest{})

	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.Contains(t, err.Error(), "not found")
}

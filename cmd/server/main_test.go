package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/upb/concept-studio/app"
	"github.com/upb/concept-studio/config"
	"github.com/upb/concept-studio/middleware"
	"github.com/upb/concept-studio/routes"
)

func TestInitLogger(t *testing.T) {
	t.Run("default json logger", func(t *testing.T) {
		logger, err := initLogger(config.ObservabilityConfig{LogLevel: "info", LogFormat: "json"})
		require.NoError(t, err)
		require.NotNil(t, logger)
		defer logger.Sync()
	})

	t.Run("development console logger", func(t *testing.T) {
		logger, err := initLogger(config.ObservabilityConfig{LogLevel: "debug", LogFormat: "console"})
		require.NoError(t, err)
		require.NotNil(t, logger)
		defer logger.Sync()
	})

	t.Run("invalid log level", func(t *testing.T) {
		logger, err := initLogger(config.ObservabilityConfig{LogLevel: "invalid", LogFormat: "json"})
		assert.Error(t, err)
		assert.Nil(t, logger)
		assert.Contains(t, err.Error(), "invalid log level")
	})

	t.Run("defaults when not set", func(t *testing.T) {
		logger, err := initLogger(config.ObservabilityConfig{})
		require.NoError(t, err)
		require.NotNil(t, logger)
		defer logger.Sync()
	})
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t, testConfig(t))

	t.Run("health check returns ok", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/healthz")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
		assert.Equal(t, "ok", decode(t, resp)["status"])
	})

	t.Run("api health lists providers", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/health")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		data := decode(t, resp)["data"].(map[string]interface{})
		assert.Len(t, data["providers"], 4)
	})

	t.Run("status endpoint returns version info", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/status")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		data := decode(t, resp)["data"].(map[string]interface{})
		assert.Contains(t, data, "version")
		assert.Equal(t, "test", data["environment"])
		assert.Contains(t, data, "providers")
		assert.Equal(t, []interface{}{"local-llm", "hosted-llm-b", "hosted-llm-a"}, data["text_order"])
	})
}

func TestReadinessCheck(t *testing.T) {
	t.Run("not ready without a text provider", func(t *testing.T) {
		ts := newTestServer(t, testConfig(t))

		resp, err := http.Get(ts.URL + "/readyz")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

		body := decode(t, resp)
		assert.Equal(t, "not_ready", body["status"])
		checks := body["checks"].(map[string]interface{})
		assert.Equal(t, "healthy", checks["storage"])
		assert.Equal(t, "not_configured", checks["text_providers"])
	})

	t.Run("ready once a text provider is configured", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Providers.Groq.APIKey = "gsk-test"
		ts := newTestServer(t, cfg)

		resp, err := http.Get(ts.URL + "/readyz")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "ready", decode(t, resp)["status"])
	})
}

func TestAPIEndpoints(t *testing.T) {
	ts := newTestServer(t, testConfig(t))

	testCases := []struct {
		name           string
		method         string
		path           string
		body           string
		expectedStatus int
	}{
		{"narrative without providers", "POST", "/api/narrative", `{"prompt":"hover scooter"}`, http.StatusServiceUnavailable},
		{"chat without providers", "POST", "/api/chat", `{"messages":[{"role":"user","content":"hi"}]}`, http.StatusServiceUnavailable},
		{"image without providers", "POST", "/api/image", `{"prompt":"hover scooter","enhance_prompt":false}`, http.StatusServiceUnavailable},
		{"generate without providers", "POST", "/api/generate", `{"prompt":"hover scooter"}`, http.StatusServiceUnavailable},
		{"enhance runs locally", "POST", "/api/prompt/enhance", `{"prompt":"hover scooter"}`, http.StatusOK},
		{"narrative validation", "POST", "/api/narrative", `{"prompt":""}`, http.StatusBadRequest},
		{"empty history", "GET", "/api/history", "", http.StatusOK},
		{"search history", "POST", "/api/search", `{"query":"scooter"}`, http.StatusOK},
		{"delete unknown record", "DELETE", "/api/history/0f8fad5b-d9cb-469f-a165-70867728950e", "", http.StatusNotFound},
		{"delete malformed id", "DELETE", "/api/history/abc", "", http.StatusBadRequest},
		{"wrong method", "GET", "/api/generate", "", http.StatusMethodNotAllowed},
		{"not found", "GET", "/api/nonexistent", "", http.StatusNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req, err := http.NewRequest(tc.method, ts.URL+tc.path, bytes.NewBufferString(tc.body))
			require.NoError(t, err)
			req.Header.Set("Content-Type", "application/json")

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tc.expectedStatus, resp.StatusCode, "endpoint: %s %s", tc.method, tc.path)
		})
	}
}

func TestGenerateSavesHistory(t *testing.T) {
	local := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"model":"mistral","response":"A scooter that floats on magnets.","done":true}`)
	}))
	defer local.Close()

	image := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"artifacts":[{"base64":"iVBORw0KGgo=","finishReason":"SUCCESS","seed":1}]}`)
	}))
	defer image.Close()

	cfg := testConfig(t)
	cfg.Providers.Ollama.BaseURL = local.URL
	cfg.Providers.Stability.APIKey = "sk-test"
	cfg.Providers.Stability.BaseURL = image.URL
	ts := newTestServer(t, cfg)

	resp, err := http.Post(ts.URL+"/api/generate", "application/json",
		bytes.NewBufferString(`{"prompt":"hover scooter","enhance_prompt":false}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	data := decode(t, resp)["data"].(map[string]interface{})
	assert.Equal(t, "A scooter that floats on magnets.", data["narrative"])
	assert.Equal(t, "data:image/png;base64,iVBORw0KGgo=", data["image_url"])
	assert.NotEmpty(t, data["record_id"])

	resp, err = http.Get(ts.URL + "/api/history")
	require.NoError(t, err)
	defer resp.Body.Close()

	history := decode(t, resp)["data"].(map[string]interface{})
	assert.Equal(t, float64(1), history["count"])

	resp, err = http.Post(ts.URL+"/api/search", "application/json", bytes.NewBufferString(`{"query":"magnets"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	search := decode(t, resp)["data"].(map[string]interface{})
	assert.Equal(t, float64(1), search["count"])
}

func TestCORSMiddleware(t *testing.T) {
	ts := newTestServer(t, testConfig(t))

	t.Run("OPTIONS preflight request", func(t *testing.T) {
		req, err := http.NewRequest("OPTIONS", ts.URL+"/api/generate", nil)
		require.NoError(t, err)
		req.Header.Set("Origin", "http://localhost:3000")
		req.Header.Set("Access-Control-Request-Method", "POST")
		req.Header.Set("Access-Control-Request-Headers", "Content-Type")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
	})
}

func TestRequestIDMiddleware(t *testing.T) {
	ts := newTestServer(t, testConfig(t))

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set(middleware.RequestIDHeader, "trace-42")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "trace-42", resp.Header.Get(middleware.RequestIDHeader))
}

// Test helpers

func newTestServer(t *testing.T, cfg *config.Config) *httptest.Server {
	t.Helper()
	ctx := context.Background()

	deps, err := app.NewDependencies(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	ts := httptest.NewServer(routes.SetupRoutes(deps))
	t.Cleanup(func() {
		ts.Close()
		_ = deps.Close(ctx)
	})
	return ts
}

func decode(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func testConfig(t *testing.T) *config.Config {
	fast := config.ProviderConfig{
		Timeout:        5 * time.Second,
		MaxRetries:     1,
		RetryDelay:     time.Millisecond,
		RateLimitDelay: time.Millisecond,
	}

	return &config.Config{
		Environment: "test",
		Server: config.ServerConfig{
			Host:            "localhost",
			Port:            8000,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 5 * time.Second,
			RequestTimeout:  30 * time.Second,
			AllowedOrigins:  []string{"http://localhost:*"},
		},
		History: config.HistoryConfig{
			Dir:        t.TempDir(),
			Collection: "concepts",
		},
		Providers: config.ProvidersConfig{
			Preferred:   "local-llm",
			Ollama:      fast,
			Groq:        fast,
			OpenAI:      fast,
			Stability:   fast,
			MaxTokens:   256,
			Temperature: 0.7,
			TopP:        0.9,
		},
		Observability: config.ObservabilityConfig{
			LogLevel:  "error",
			LogFormat: "json",
		},
	}
}

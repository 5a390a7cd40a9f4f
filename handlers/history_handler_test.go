package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/upb/concept-studio/models"
	"github.com/upb/concept-studio/services"
)

// MockHistoryService is a mock implementation of HistoryService
type MockHistoryService struct {
	mock.Mock
}

func (m *MockHistoryService) ListHistory(ctx context.Context, limit int) ([]*models.GenerationRecord, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.GenerationRecord), args.Error(1)
}

func (m *MockHistoryService) SearchHistory(ctx context.Context, query string, n int) ([]*models.SearchResult, error) {
	args := m.Called(ctx, query, n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.SearchResult), args.Error(1)
}

func (m *MockHistoryService) DeleteHistory(ctx context.Context, rawID string) error {
	return m.Called(ctx, rawID).Error(0)
}

func sampleRecord(prompt string) *models.GenerationRecord {
	return &models.GenerationRecord{
		ID:        uuid.New(),
		Prompt:    prompt,
		Narrative: "A narrative about " + prompt,
		ImageURL:  "https://img/" + prompt + ".png",
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestHandleListHistory(t *testing.T) {
	logger := zap.NewNop()

	t.Run("default limit", func(t *testing.T) {
		mockService := new(MockHistoryService)
		handler := NewHistoryHandler(mockService, logger)

		records := []*models.GenerationRecord{sampleRecord("coupe"), sampleRecord("van")}
		mockService.On("ListHistory", mock.Anything, 20).Return(records, nil)

		w := httptest.NewRecorder()
		handler.HandleList(w, httptest.NewRequest(http.MethodGet, "/api/history", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		data := decodeBody(t, w)["data"].(map[string]interface{})
		assert.Equal(t, float64(2), data["count"])
		history := data["history"].([]interface{})
		assert.Equal(t, "coupe", history[0].(map[string]interface{})["prompt"])
	})

	t.Run("explicit limit", func(t *testing.T) {
		mockService := new(MockHistoryService)
		handler := NewHistoryHandler(mockService, logger)

		mockService.On("ListHistory", mock.Anything, 3).Return(nil, nil)

		w := httptest.NewRecorder()
		handler.HandleList(w, httptest.NewRequest(http.MethodGet, "/api/history?limit=3", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		data := decodeBody(t, w)["data"].(map[string]interface{})
		assert.Equal(t, []interface{}{}, data["history"])
		mockService.AssertExpectations(t)
	})

	t.Run("invalid limit", func(t *testing.T) {
		for _, raw := range []string{"0", "-1", "abc", "101"} {
			mockService := new(MockHistoryService)
			handler := NewHistoryHandler(mockService, logger)

			w := httptest.NewRecorder()
			handler.HandleList(w, httptest.NewRequest(http.MethodGet, "/api/history?limit="+raw, nil))

			assert.Equal(t, http.StatusBadRequest, w.Code, raw)
			mockService.AssertNotCalled(t, "ListHistory", mock.Anything, mock.Anything)
		}
	})

	t.Run("store failure", func(t *testing.T) {
		mockService := new(MockHistoryService)
		handler := NewHistoryHandler(mockService, logger)

		mockService.On("ListHistory", mock.Anything, 20).
			Return(nil, services.WrapInternal("failed to list history", errors.New("disk full")))

		w := httptest.NewRecorder()
		handler.HandleList(w, httptest.NewRequest(http.MethodGet, "/api/history", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "An internal error occurred", decodeBody(t, w)["message"])
	})
}

func TestHandleSearchHistory(t *testing.T) {
	logger := zap.NewNop()

	t.Run("ranked results", func(t *testing.T) {
		mockService := new(MockHistoryService)
		handler := NewHistoryHandler(mockService, logger)

		results := []*models.SearchResult{{Record: sampleRecord("electric coupe"), Score: 2, Distance: 1.0 / 3}}
		mockService.On("SearchHistory", mock.Anything, "electric coupe", 5).Return(results, nil)

		w := httptest.NewRecorder()
		handler.HandleSearch(w, newJSONRequest(t, http.MethodPost, "/api/search", SearchRequest{Query: "electric coupe"}))

		assert.Equal(t, http.StatusOK, w.Code)
		data := decodeBody(t, w)["data"].(map[string]interface{})
		assert.Equal(t, "electric coupe", data["query"])
		assert.Equal(t, float64(1), data["count"])
		mockService.AssertExpectations(t)
	})

	t.Run("custom result count", func(t *testing.T) {
		mockService := new(MockHistoryService)
		handler := NewHistoryHandler(mockService, logger)

		mockService.On("SearchHistory", mock.Anything, "van", 2).Return([]*models.SearchResult{}, nil)

		w := httptest.NewRecorder()
		handler.HandleSearch(w, newJSONRequest(t, http.MethodPost, "/api/search", SearchRequest{Query: "van", NResults: 2}))

		assert.Equal(t, http.StatusOK, w.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("missing query", func(t *testing.T) {
		mockService := new(MockHistoryService)
		handler := NewHistoryHandler(mockService, logger)

		w := httptest.NewRecorder()
		handler.HandleSearch(w, newJSONRequest(t, http.MethodPost, "/api/search", map[string]int{"n_results": 3}))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandleDeleteHistory(t *testing.T) {
	logger := zap.NewNop()

	serve := func(handler *HistoryHandler, id string) *httptest.ResponseRecorder {
		r := chi.NewRouter()
		r.Delete("/api/history/{id}", handler.HandleDelete)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/history/"+id, nil))
		return w
	}

	t.Run("deleted", func(t *testing.T) {
		mockService := new(MockHistoryService)
		handler := NewHistoryHandler(mockService, logger)

		id := uuid.New().String()
		mockService.On("DeleteHistory", mock.Anything, id).Return(nil)

		w := serve(handler, id)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "generation deleted", decodeBody(t, w)["message"])
		mockService.AssertExpectations(t)
	})

	t.Run("unknown id", func(t *testing.T) {
		mockService := new(MockHistoryService)
		handler := NewHistoryHandler(mockService, logger)

		id := uuid.New().String()
		mockService.On("DeleteHistory", mock.Anything, id).Return(services.ErrRecordNotFound)

		assert.Equal(t, http.StatusNotFound, serve(handler, id).Code)
	})

	t.Run("malformed id", func(t *testing.T) {
		mockService := new(MockHistoryService)
		handler := NewHistoryHandler(mockService, logger)

		mockService.On("DeleteHistory", mock.Anything, "nope").
			Return(services.WrapValidation("invalid record id", errors.New("invalid UUID length: 4")))

		assert.Equal(t, http.StatusBadRequest, serve(handler, "nope").Code)
	})
}

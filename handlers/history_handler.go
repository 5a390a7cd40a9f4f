package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/upb/concept-studio/middleware"
	"github.com/upb/concept-studio/models"
	"github.com/upb/concept-studio/repositories"
	"github.com/upb/concept-studio/utils"
)

const maxHistoryLimit = 100

// SearchRequest looks up saved generations by free text
type SearchRequest struct {
	Query    string `json:"query" validate:"required,min=1,max=500"`
	NResults int    `json:"n_results,omitempty" validate:"gte=0,lte=50"`
}

// HistoryResponse lists saved generations
type HistoryResponse struct {
	History []*models.GenerationRecord `json:"history"`
	Count   int                        `json:"count"`
}

// SearchResponse lists ranked matches
type SearchResponse struct {
	Query   string                 `json:"query"`
	Results []*models.SearchResult `json:"results"`
	Count   int                    `json:"count"`
}

// HistoryService defines the history operations exposed over HTTP
type HistoryService interface {
	ListHistory(ctx context.Context, limit int) ([]*models.GenerationRecord, error)
	SearchHistory(ctx context.Context, query string, n int) ([]*models.SearchResult, error)
	DeleteHistory(ctx context.Context, rawID string) error
}

// HistoryHandler handles saved generation requests
type HistoryHandler struct {
	service HistoryService
	logger  *zap.Logger
}

// NewHistoryHandler creates a new HistoryHandler
func NewHistoryHandler(service HistoryService, logger *zap.Logger) *HistoryHandler {
	return &HistoryHandler{
		service: service,
		logger:  logger,
	}
}

// HandleList handles GET /api/history?limit=N
func (h *HistoryHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := repositories.DefaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxHistoryLimit {
			_ = utils.WriteBadRequest(w, "limit must be an integer between 1 and 100", nil)
			return
		}
		limit = n
	}

	records, err := h.service.ListHistory(r.Context(), limit)
	if err != nil {
		h.fail(w, r, "list history", err)
		return
	}
	if records == nil {
		records = []*models.GenerationRecord{}
	}

	_ = utils.WriteOK(w, HistoryResponse{History: records, Count: len(records)})
}

// HandleSearch handles POST /api/search
func (h *HistoryHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if !decodeAndValidate(w, r, &req, h.logger) {
		return
	}

	n := req.NResults
	if n == 0 {
		n = repositories.DefaultSearchResults
	}

	results, err := h.service.SearchHistory(r.Context(), req.Query, n)
	if err != nil {
		h.fail(w, r, "search history", err)
		return
	}
	if results == nil {
		results = []*models.SearchResult{}
	}

	_ = utils.WriteOK(w, SearchResponse{Query: req.Query, Results: results, Count: len(results)})
}

// HandleDelete handles DELETE /api/history/{id}
func (h *HistoryHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.DeleteHistory(r.Context(), id); err != nil {
		h.fail(w, r, "delete history", err)
		return
	}

	h.logger.Info("generation deleted",
		zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
		zap.String("id", id))
	_ = utils.WriteMessage(w, "generation deleted")
}

func (h *HistoryHandler) fail(w http.ResponseWriter, r *http.Request, what string, err error) {
	h.logger.Error(what+" failed",
		zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
		zap.Error(err))
	HandleServiceError(w, err, h.logger)
}

package routes

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/upb/concept-studio/app"
	"github.com/upb/concept-studio/handlers"
	"github.com/upb/concept-studio/middleware"
	"github.com/upb/concept-studio/utils"
)

const defaultRequestTimeout = 5 * time.Minute

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()
	cfg := deps.Config

	timeout := cfg.Server.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	origins := cfg.Server.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:*", "https://*"}
	}

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(timeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	health := handlers.NewHealthHandler(sqlDB(deps), deps.History, deps.Orchestrator, cfg.Environment, deps.Logger)
	generation := handlers.NewGenerationHandler(deps.Generation, deps.Logger)
	history := handlers.NewHistoryHandler(deps.Generation, deps.Logger)

	// Health check endpoints
	r.Get("/healthz", health.HandleLiveness)
	r.Get("/readyz", health.HandleReadiness)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", health.HandleHealth)
		r.Get("/status", health.HandleStatus)

		// Generation
		r.Post("/chat", generation.HandleChat)
		r.Post("/narrative", generation.HandleNarrative)
		r.Post("/image", generation.HandleImage)
		r.Post("/generate", generation.HandleGenerate)
		r.Post("/prompt/enhance", generation.HandleEnhancePrompt)

		// Saved generations
		r.Get("/history", history.HandleList)
		r.Delete("/history/{id}", history.HandleDelete)
		r.Post("/search", history.HandleSearch)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "endpoint not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
	})

	return r
}

// sqlDB returns the pool readiness should ping, nil when history is on disk
func sqlDB(deps *app.Dependencies) *sql.DB {
	if deps.DB == nil {
		return nil
	}
	return deps.DB.DB
}

package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/upb/concept-studio/config"
	"github.com/upb/concept-studio/repositories"
	"github.com/upb/concept-studio/repositories/filestore"
	"github.com/upb/concept-studio/repositories/postgres"
	"github.com/upb/concept-studio/services/generation"
	"github.com/upb/concept-studio/services/providers"
	"github.com/upb/concept-studio/services/providers/groq"
	"github.com/upb/concept-studio/services/providers/ollama"
	"github.com/upb/concept-studio/services/providers/openai"
	"github.com/upb/concept-studio/services/providers/stability"
	"github.com/upb/concept-studio/services/routing"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	Logger *zap.Logger

	// DB and RepoFactory are nil when history is kept on disk
	DB          *postgres.DB
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	History repositories.HistoryRepository

	// Providers
	Registry     *providers.Registry
	Orchestrator *routing.Orchestrator

	// Services
	Generation *generation.Service
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initProviders(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize providers: %w", err)
	}

	if err := deps.initHistory(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize history: %w", err)
	}

	deps.Generation = generation.NewService(deps.Orchestrator, deps.History, logger)

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initProviders builds every adapter, the fallback policy and the orchestrator
func (d *Dependencies) initProviders(cfg *config.Config) error {
	registry, err := NewProviderRegistry(cfg.Providers, d.Logger)
	if err != nil {
		return err
	}

	policy, err := routing.NewFallbackPolicy(cfg.Providers.Preferred)
	if err != nil {
		return fmt.Errorf("invalid fallback policy: %w", err)
	}

	d.Registry = registry
	d.Orchestrator = routing.NewOrchestrator(registry, policy, d.Logger)

	d.Logger.Info("provider chain ready",
		zap.String("preferred", cfg.Providers.Preferred),
		zap.Any("text_order", policy.Order(providers.OpNarrate)),
		zap.Any("configured", registry.Configured()))
	return nil
}

// NewProviderRegistry registers one adapter per provider identity. Adapters without
// credentials are registered too; the orchestrator skips them without network I/O.
func NewProviderRegistry(cfg config.ProvidersConfig, logger *zap.Logger) (*providers.Registry, error) {
	registry := providers.NewRegistry()

	adapters := []providers.Adapter{
		ollama.NewAdapter(providerConfig(cfg.Ollama, cfg), logger),
		groq.NewAdapter(providerConfig(cfg.Groq, cfg), logger),
		openai.NewAdapter(providerConfig(cfg.OpenAI, cfg), logger),
		stability.NewAdapter(providerConfig(cfg.Stability, cfg), logger),
	}

	for _, adapter := range adapters {
		if err := registry.Register(adapter); err != nil {
			return nil, fmt.Errorf("failed to register %s: %w", adapter.ID(), err)
		}
		if !adapter.Configured() {
			logger.Warn("provider not configured", zap.String("provider", string(adapter.ID())))
		}
	}

	if !registry.AnyConfigured(providers.FamilyText) {
		logger.Warn("no text provider configured, prompt enhancement will run locally")
	}
	return registry, nil
}

func providerConfig(c config.ProviderConfig, shared config.ProvidersConfig) providers.ProviderConfig {
	return providers.ProviderConfig{
		APIKey:         c.APIKey,
		BaseURL:        c.BaseURL,
		Model:          c.Model,
		Timeout:        c.Timeout,
		MaxAttempts:    c.MaxRetries,
		RetryDelay:     c.RetryDelay,
		RateLimitDelay: c.RateLimitDelay,
		MaxTokens:      shared.MaxTokens,
		Temperature:    shared.Temperature,
		TopP:           shared.TopP,
	}
}

// initHistory connects to PostgreSQL when configured, otherwise opens the JSON file store
func (d *Dependencies) initHistory(ctx context.Context, cfg *config.Config) error {
	if cfg.Database == nil {
		store, err := filestore.Open(cfg.History.Dir, cfg.History.Collection, repositories.Rank, d.Logger)
		if err != nil {
			return fmt.Errorf("failed to open history store: %w", err)
		}
		d.History = store
		return nil
	}

	factory, err := postgres.NewRepositoryFactory(*cfg.Database, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create repository factory: %w", err)
	}

	if err := factory.InitSchema(ctx); err != nil {
		_ = factory.Close()
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	d.RepoFactory = factory
	d.DB = factory.GetDB()
	d.History = factory.NewRepositories().History

	d.Logger.Info("history stored in database",
		zap.String("connection", cfg.Database.LogString()))
	return nil
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}

package routing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/upb/concept-studio/services/providers"
)

// ProviderStats tracks outcomes for one provider
type ProviderStats struct {
	Attempts    int           `json:"attempts"`
	Successes   int           `json:"successes"`
	Failures    int           `json:"failures"`
	Skipped     int           `json:"skipped"`
	LastError   string        `json:"last_error,omitempty"`
	LastLatency time.Duration `json:"last_latency"`
}

// Orchestrator runs an operation against each provider in policy order until one succeeds
type Orchestrator struct {
	registry *providers.Registry
	policy   *FallbackPolicy
	logger   *zap.Logger

	mu    sync.Mutex
	stats map[providers.ProviderID]*ProviderStats
}

// NewOrchestrator creates a new orchestrator over an already populated registry
func NewOrchestrator(registry *providers.Registry, policy *FallbackPolicy, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		registry: registry,
		policy:   policy,
		logger:   logger,
		stats:    make(map[providers.ProviderID]*ProviderStats),
	}
}

// Run tries providers strictly in order. Every failure, Fatal included, moves on to the next
// provider; the aggregated error is returned only after the whole order is exhausted.
// Unconfigured providers are skipped without I/O and recorded in the aggregate.
func (o *Orchestrator) Run(ctx context.Context, req providers.Request) (*providers.Result, error) {
	op := req.Operation()
	order := o.policy.Order(op)
	failures := make([]providers.ProviderFailure, 0, len(order))

	for _, id := range order {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%s cancelled before trying %s: %w", op, id, err)
		}

		adapter, err := o.registry.Get(id)
		if err != nil || !adapter.Configured() {
			o.logger.Debug("skipping unconfigured provider",
				zap.String("operation", string(op)),
				zap.String("provider", string(id)),
			)
			o.recordSkip(id)
			failures = append(failures, providers.ProviderFailure{
				Provider:       id,
				Classification: providers.ClassFatal,
				Skipped:        true,
				Err:            providers.NotConfiguredError(id),
			})
			continue
		}

		o.logger.Info("trying provider",
			zap.String("operation", string(op)),
			zap.String("provider", string(id)),
		)

		start := time.Now()
		res, err := o.attempt(ctx, adapter, req)
		latency := time.Since(start)
		if err == nil {
			o.recordSuccess(id, latency)
			o.logger.Info("provider succeeded",
				zap.String("operation", string(op)),
				zap.String("provider", string(id)),
				zap.Duration("latency", latency),
			)
			return res, nil
		}

		class := providers.Classify(err)
		o.recordFailure(id, latency, err)
		o.logger.Warn("provider failed, trying next",
			zap.String("operation", string(op)),
			zap.String("provider", string(id)),
			zap.String("classification", string(class)),
			zap.Duration("latency", latency),
			zap.Error(err),
		)
		failures = append(failures, providers.ProviderFailure{
			Provider:       id,
			Classification: class,
			Err:            err,
		})
	}

	aggErr := &providers.AllProvidersFailedError{Operation: op, Failures: failures}
	o.logger.Error("all providers failed",
		zap.String("operation", string(op)),
		zap.Error(aggErr),
	)
	return nil, aggErr
}

// attempt invokes one adapter and normalizes its answer
func (o *Orchestrator) attempt(ctx context.Context, adapter providers.Adapter, req providers.Request) (*providers.Result, error) {
	raw, err := providers.Dispatch(ctx, adapter, req)
	if err != nil {
		return nil, err
	}
	return providers.Normalize(req.Operation(), adapter.ID(), raw)
}

// Order exposes the resolved order for an operation
func (o *Orchestrator) Order(op providers.Operation) []providers.ProviderID {
	return o.policy.Order(op)
}

// Policy returns the fallback policy in use
func (o *Orchestrator) Policy() *FallbackPolicy {
	return o.policy
}

// Registry returns the adapter registry in use
func (o *Orchestrator) Registry() *providers.Registry {
	return o.registry
}

func (o *Orchestrator) entry(id providers.ProviderID) *ProviderStats {
	s, ok := o.stats[id]
	if !ok {
		s = &ProviderStats{}
		o.stats[id] = s
	}
	return s
}

func (o *Orchestrator) recordSkip(id providers.ProviderID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.entry(id).Skipped++
}

func (o *Orchestrator) recordSuccess(id providers.ProviderID, latency time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := o.entry(id)
	s.Attempts++
	s.Successes++
	s.LastLatency = latency
}

func (o *Orchestrator) recordFailure(id providers.ProviderID, latency time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := o.entry(id)
	s.Attempts++
	s.Failures++
	s.LastLatency = latency
	s.LastError = err.Error()
}

// Stats returns a snapshot of per-provider counters
func (o *Orchestrator) Stats() map[providers.ProviderID]ProviderStats {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make(map[providers.ProviderID]ProviderStats, len(o.stats))
	for id, s := range o.stats {
		out[id] = *s
	}
	return out
}

// IsAllProvidersFailed reports whether err is an exhausted fallback
func IsAllProvidersFailed(err error) bool {
	return errors.Is(err, providers.ErrAllProvidersFailed)
}

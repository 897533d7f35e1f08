package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/scorebill/productfetch/pkg/credentials"
	"github.com/scorebill/productfetch/pkg/logging"
	"github.com/scorebill/productfetch/pkg/upstream"
)

// Concurrency ceilings.
const (
	// DefaultConcurrency suits a small hosted instance.
	DefaultConcurrency = 100

	// DefaultMaxConcurrency caps any per-request hint.
	DefaultMaxConcurrency = 500
)

// Prometheus metrics for batch calls.
var (
	batchRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "productfetch_batch_requests_total",
		Help: "Total batch calls by outcome",
	}, []string{"outcome"})

	batchItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "productfetch_batch_items_total",
		Help: "Total batch positions by result",
	}, []string{"result"})

	batchDuplicatesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "productfetch_batch_duplicates_total",
		Help: "Total request positions folded by deduplication",
	})

	batchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "productfetch_batch_duration_seconds",
		Help:    "Batch duration in seconds, all rounds included",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
	})
)

// Request is one batch call.
type Request struct {
	Identifiers []string
	Credentials credentials.Bundle

	// Concurrency is an optional ceiling hint; 0 uses the configured default.
	Concurrency int
}

// Config holds the batch service configuration.
type Config struct {
	// DefaultConcurrency applies when a request carries no hint.
	DefaultConcurrency int

	// MaxConcurrency clamps request hints.
	MaxConcurrency int

	// MaxRetries is the number of extra rounds for retriable failures.
	MaxRetries int
}

// DefaultConfig returns the default batch configuration.
func DefaultConfig() Config {
	return Config{
		DefaultConcurrency: DefaultConcurrency,
		MaxConcurrency:     DefaultMaxConcurrency,
		MaxRetries:         DefaultMaxRetries,
	}
}

// Service validates batch requests and runs them through the pipeline.
type Service struct {
	fetcher     Fetcher
	coordinator *Coordinator
	config      Config
	logger      zerolog.Logger
}

// NewService creates a batch service on top of fetcher.
func NewService(fetcher Fetcher, cfg Config) (*Service, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if cfg.DefaultConcurrency <= 0 {
		return nil, fmt.Errorf("default_concurrency must be > 0 (got %d)", cfg.DefaultConcurrency)
	}
	if cfg.MaxConcurrency < cfg.DefaultConcurrency {
		cfg.MaxConcurrency = cfg.DefaultConcurrency
	}

	return &Service{
		fetcher:     fetcher,
		coordinator: NewCoordinator(NewDispatcher(fetcher, cfg.DefaultConcurrency), cfg.MaxRetries),
		config:      cfg,
		logger:      logging.NewLogger("batch-service"),
	}, nil
}

// Validate rejects requests that must not reach the dispatcher.
func (s *Service) Validate(req Request) error {
	if len(req.Identifiers) == 0 {
		return invalid("nvmids are required")
	}
	if req.Credentials.Cookie == "" {
		return invalid("cookies are required")
	}
	if req.Concurrency < 0 {
		return invalid(fmt.Sprintf("concurrency must be >= 0 (got %d)", req.Concurrency))
	}
	return nil
}

// Run processes one batch. The returned error is non-nil only for invalid
// requests; fetch failures are reported per item in the Result.
//
// The caller's cancellation is not propagated to the fetches: once accepted,
// a batch runs every round to completion.
func (s *Service) Run(ctx context.Context, req Request) (Result, error) {
	if err := s.Validate(req); err != nil {
		batchRequestsTotal.WithLabelValues("invalid").Inc()
		return Result{}, err
	}

	start := time.Now()
	ctx = context.WithoutCancel(ctx)
	limit := s.limit(req.Concurrency)

	set := Normalize(req.Identifiers)
	outcomes, stats := s.coordinator.Run(ctx, set, req.Credentials, limit)
	res := Reassemble(set, outcomes)
	res.Rounds = stats.Rounds

	batchRequestsTotal.WithLabelValues("ok").Inc()
	batchItemsTotal.WithLabelValues("success").Add(float64(res.SuccessCount))
	batchItemsTotal.WithLabelValues("failure").Add(float64(res.FailCount))
	batchDuplicatesTotal.Add(float64(res.DuplicatesRemoved))
	batchDuration.Observe(time.Since(start).Seconds())

	s.loggerFor(ctx).Info().
		Int("total", res.Total).
		Int("unique", res.UniqueCount).
		Int("success", res.SuccessCount).
		Int("failed", res.FailCount).
		Int("rounds", stats.Rounds).
		Int("retried", stats.Retried).
		Int("exhausted", stats.Exhausted).
		Int("concurrency", limit).
		Dur("duration", time.Since(start)).
		Msg("Batch complete")

	return res, nil
}

// FetchOne is the single-item variant: no deduplication and no retry.
func (s *Service) FetchOne(ctx context.Context, id string, creds credentials.Bundle) (upstream.Outcome, error) {
	if id == "" {
		return upstream.Outcome{}, invalid("nvmid is required")
	}
	if creds.Cookie == "" {
		return upstream.Outcome{}, invalid("cookies are required")
	}

	return s.fetcher.Fetch(context.WithoutCancel(ctx), id, creds), nil
}

// loggerFor prefers the request-scoped logger put in ctx by the HTTP layer.
func (s *Service) loggerFor(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		l2 := l.With().Str("component", "batch-service").Logger()
		return &l2
	}
	return &s.logger
}

// limit resolves the concurrency ceiling for one request.
func (s *Service) limit(hint int) int {
	if hint <= 0 {
		return s.config.DefaultConcurrency
	}
	return min(hint, s.config.MaxConcurrency)
}

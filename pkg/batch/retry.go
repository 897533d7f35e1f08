package batch

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/scorebill/productfetch/pkg/credentials"
	"github.com/scorebill/productfetch/pkg/logging"
	"github.com/scorebill/productfetch/pkg/upstream"
)

// DefaultMaxRetries is the number of extra rounds after the first one.
const DefaultMaxRetries = 3

// Prometheus metrics for retry rounds.
var (
	retryRoundsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "productfetch_retry_rounds_total",
		Help: "Total number of retry rounds dispatched",
	})

	retryItemsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "productfetch_retry_items_total",
		Help: "Total number of identifiers re-dispatched in retry rounds",
	})

	retryExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "productfetch_retry_exhausted_total",
		Help: "Identifiers still retriable when the retry budget ran out",
	})
)

// RoundStats summarizes the rounds of one batch.
type RoundStats struct {
	// Rounds counts dispatch rounds, the first one included.
	Rounds int

	// Retried counts identifier re-dispatches over all retry rounds.
	Retried int

	// Exhausted counts identifiers left retriable after the last round.
	Exhausted int
}

// Coordinator runs the first round and the bounded retry rounds of a batch.
type Coordinator struct {
	dispatcher *Dispatcher
	maxRetries int
	logger     zerolog.Logger
}

// NewCoordinator creates a coordinator with the given retry budget.
func NewCoordinator(dispatcher *Dispatcher, maxRetries int) *Coordinator {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Coordinator{
		dispatcher: dispatcher,
		maxRetries: maxRetries,
		logger:     logging.NewLogger("retry-coordinator"),
	}
}

// Run fetches every identifier of set, then re-dispatches the retriable
// failures until none remain or the budget is spent. Rounds never overlap.
// The returned map holds the latest outcome for each unique identifier.
func (c *Coordinator) Run(ctx context.Context, set IdentifierSet, creds credentials.Bundle, limit int) (map[string]upstream.Outcome, RoundStats) {
	outcomes := c.dispatcher.Dispatch(ctx, set.Order, creds, limit)
	stats := RoundStats{Rounds: 1}

	for remaining := c.maxRetries; ; remaining-- {
		pending := retriable(set.Order, outcomes)
		if len(pending) == 0 {
			break
		}

		if remaining == 0 {
			stats.Exhausted = len(pending)
			retryExhaustedTotal.Add(float64(len(pending)))
			c.logger.Warn().
				Int("identifiers", len(pending)).
				Int("max_retries", c.maxRetries).
				Msg("Retry budget exhausted")
			break
		}

		retryRoundsTotal.Inc()
		retryItemsTotal.Add(float64(len(pending)))
		c.logger.Info().
			Int("round", stats.Rounds+1).
			Int("identifiers", len(pending)).
			Msg("Retrying transport failures")

		for id, o := range c.dispatcher.Dispatch(ctx, pending, creds, limit) {
			outcomes[id] = o
		}
		stats.Rounds++
		stats.Retried += len(pending)
	}

	return outcomes, stats
}

// retriable returns, in request order, the identifiers whose latest outcome
// is a detail-less transport failure.
func retriable(order []string, outcomes map[string]upstream.Outcome) []string {
	var pending []string
	for _, id := range order {
		if o, ok := outcomes[id]; ok && o.Retriable() {
			pending = append(pending, id)
		}
	}
	return pending
}

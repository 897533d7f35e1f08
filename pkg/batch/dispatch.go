package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/scorebill/productfetch/pkg/credentials"
	"github.com/scorebill/productfetch/pkg/logging"
	"github.com/scorebill/productfetch/pkg/upstream"
)

var dispatchInflight = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "productfetch_dispatch_inflight",
	Help: "Fetches currently in flight across all batches",
})

// Fetcher is the single-item lookup the dispatcher fans out.
// *upstream.Client implements it.
type Fetcher interface {
	Fetch(ctx context.Context, id string, creds credentials.Bundle) upstream.Outcome
}

// Dispatcher runs one round of fetches over a fixed-size worker pool.
type Dispatcher struct {
	fetcher      Fetcher
	defaultLimit int
	logger       zerolog.Logger
}

// NewDispatcher creates a dispatcher. defaultLimit applies when Dispatch is
// called without a positive limit.
func NewDispatcher(fetcher Fetcher, defaultLimit int) *Dispatcher {
	if defaultLimit <= 0 {
		defaultLimit = DefaultConcurrency
	}
	return &Dispatcher{
		fetcher:      fetcher,
		defaultLimit: defaultLimit,
		logger:       logging.NewLogger("dispatcher"),
	}
}

// Dispatch fetches every identifier in ids with at most limit in flight and
// blocks until all have resolved. ids must be unique. The returned map holds
// exactly one outcome per identifier; no failure stops the others.
func (d *Dispatcher) Dispatch(ctx context.Context, ids []string, creds credentials.Bundle, limit int) map[string]upstream.Outcome {
	outcomes := make(map[string]upstream.Outcome, len(ids))
	if len(ids) == 0 {
		return outcomes
	}

	if limit <= 0 {
		limit = d.defaultLimit
	}
	workers := min(limit, len(ids))

	start := time.Now()

	queue := make(chan string, len(ids))
	for _, id := range ids {
		queue <- id
	}
	close(queue)

	results := make(chan upstream.Outcome, len(ids))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go d.worker(ctx, creds, queue, results, &wg, i)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	// Only this loop writes the map; workers hand outcomes over the channel.
	succeeded := 0
	for o := range results {
		outcomes[o.Identifier] = o
		if o.Success() {
			succeeded++
		}
	}

	d.logger.Debug().
		Int("identifiers", len(ids)).
		Int("workers", workers).
		Int("succeeded", succeeded).
		Dur("duration", time.Since(start)).
		Msg("Dispatch round complete")

	return outcomes
}

// worker drains the queue. It deliberately ignores ctx cancellation between
// items: a round always runs to completion.
func (d *Dispatcher) worker(ctx context.Context, creds credentials.Bundle, queue <-chan string, results chan<- upstream.Outcome, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()
	processed := 0

	for id := range queue {
		results <- d.fetch(ctx, id, creds)
		processed++
	}

	d.logger.Trace().
		Int("worker_id", workerID).
		Int("processed", processed).
		Msg("Worker completed")
}

// fetch shields the round from a misbehaving Fetcher.
func (d *Dispatcher) fetch(ctx context.Context, id string, creds credentials.Bundle) (out upstream.Outcome) {
	dispatchInflight.Inc()
	defer dispatchInflight.Dec()

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error().Str("nvmid", id).Interface("panic", r).Msg("Fetcher panicked")
			out = upstream.Failed(id, &upstream.FetchError{
				Kind:   upstream.KindTransport,
				Detail: fmt.Sprintf("panic: %v", r),
			})
		}
	}()

	out = d.fetcher.Fetch(ctx, id, creds)
	out.Identifier = id
	if out.Err == nil && out.Product == nil {
		out.Err = &upstream.FetchError{Kind: upstream.KindShape, Detail: "empty result"}
	}
	return out
}

// Package metrics exposes the Prometheus registry that the productfetch
// packages register into. Metrics themselves are declared next to the code
// that updates them (upstream, batch, credentials).
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is where promauto registers every productfetch metric.
var Registry = prometheus.DefaultRegisterer

// Gatherer is read by Handler.
var Gatherer = prometheus.DefaultGatherer

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metric reference
//
// Upstream (pkg/upstream):
//   - productfetch_upstream_requests_total{status} (Counter): upstream calls by HTTP status or "transport_error"
//   - productfetch_upstream_request_duration_seconds (Histogram): single fetch latency
//   - productfetch_upstream_errors_total{kind} (Counter): failed fetches by kind (transport, http_status, parse, shape)
//
// Batch (pkg/batch):
//   - productfetch_batch_requests_total{outcome} (Counter): batch calls, "ok" or "invalid"
//   - productfetch_batch_items_total{result} (Counter): request positions by "success" / "failure"
//   - productfetch_batch_duplicates_total (Counter): positions folded by deduplication
//   - productfetch_batch_duration_seconds (Histogram): whole-batch latency
//   - productfetch_dispatch_inflight (Gauge): fetches in flight
//   - productfetch_retry_rounds_total (Counter): retry rounds dispatched
//   - productfetch_retry_items_total (Counter): identifiers re-dispatched
//   - productfetch_retry_exhausted_total (Counter): identifiers still retriable after the last round
//
// Credentials (pkg/credentials):
//   - productfetch_credential_loads_total{source,result} (Counter)
//
// Example queries:
//
//   # Share of positions that failed
//   sum(rate(productfetch_batch_items_total{result="failure"}[5m])) /
//   sum(rate(productfetch_batch_items_total[5m]))
//
//   # Cookie expiry shows up as 401/403
//   sum by (status) (rate(productfetch_upstream_requests_total{status=~"40[13]"}[5m]))
//
//   # P95 batch latency
//   histogram_quantile(0.95, rate(productfetch_batch_duration_seconds_bucket[5m]))

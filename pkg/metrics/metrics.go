// Package metrics exposes the Prometheus registry of the gateway.
// Metrics are defined next to the code that records them (upstream, cache,
// gateway, ratelimit, usage, warm, predict, server) and registered through
// promauto on the default registerer; this package serves them.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer every package records into.
var Registry = prometheus.DefaultRegisterer

// Gatherer is read by Handler.
var Gatherer = prometheus.DefaultGatherer

// Handler serves the gathered metrics in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}

// Metrics Documentation
//
// Upstream (pkg/upstream):
//   - footy_upstream_requests_total{endpoint, status} (Counter): Network-reaching calls
//   - footy_upstream_request_duration_seconds{endpoint} (Histogram): Call latency
//   - footy_upstream_errors_total{kind} (Counter): Failures by kind (configuration, transport, http, application)
//
// Budget (pkg/usage):
//   - footy_upstream_daily_usage (Gauge): Calls counted for the current UTC day
//   - footy_upstream_daily_limit (Gauge): Configured daily limit
//
// Rate-limit hold (pkg/ratelimit):
//   - footy_rate_limit_hold_seconds (Gauge): Seconds left in the current hold
//   - footy_rate_limit_holds_total (Counter): Holds started after an upstream 429
//   - footy_rate_limit_blocks_total (Counter): Calls suppressed by an active hold
//
// Cache (pkg/cache):
//   - footy_cache_hits_total{backend, namespace} (Counter): Reads that found an entry
//   - footy_cache_misses_total{backend} (Counter): Reads that found nothing
//   - footy_cache_writes_total{backend, namespace} (Counter): Entries written
//   - footy_cache_flushed_total{backend} (Counter): Entries removed by flush
//   - footy_cache_errors_total{backend, operation} (Counter): Store failures
//
// Gateway (pkg/gateway):
//   - footy_gateway_outcomes_total{tag, outcome} (Counter): fresh, fetched, stale_on_error, blocked, blocked_cached, config_error, error
//   - footy_gateway_budget_blocks_total{reason} (Counter): Fetches stopped by "hold" or "budget"
//   - footy_gateway_stale_served_total{tag} (Counter): Stale entries served after an upstream failure
//
// Warm and predict (pkg/warm, pkg/predict):
//   - footy_warm_runs_total{outcome} (Counter): Warm runs by outcome
//   - footy_warm_teamstats_prefetched_total (Counter): Team statistics fetched by warm runs
//   - footy_warm_duration_seconds (Histogram): Warm run duration
//   - footy_predictions_total{method} (Counter): Rows by rate method (teamstats, standings, synthetic)
//   - footy_predict_duration_seconds (Histogram): Predict query duration
//
// HTTP API (pkg/server):
//   - footy_http_requests_total{route, status} (Counter): API requests
//   - footy_http_request_duration_seconds{route} (Histogram): API latency
//
// Example Prometheus Queries:
//
//   # Cache hit rate
//   sum(rate(footy_cache_hits_total[5m])) /
//   (sum(rate(footy_cache_hits_total[5m])) + sum(rate(footy_cache_misses_total[5m])))
//
//   # Budget nearly spent
//   footy_upstream_daily_usage / footy_upstream_daily_limit > 0.9
//
//   # Share of predictions without real statistics
//   rate(footy_predictions_total{method="synthetic"}[1h]) / rate(footy_predictions_total[1h])
//
//   # P95 API latency
//   histogram_quantile(0.95, rate(footy_http_request_duration_seconds_bucket[5m]))

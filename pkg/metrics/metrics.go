// Package metrics documents the Prometheus metrics of the connector.
// Metrics are defined in their own packages (transport, pagination,
// connector, ratelimit) via promauto to keep those packages free of a
// shared dependency.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the connector.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer matching Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler returns an HTTP handler exposing the registered metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Request Metrics (pkg/transport):
//   - apiconn_requests_total{host, status} (Counter): Requests by host and HTTP status
//   - apiconn_request_duration_seconds{host} (Histogram): Request duration by host
//   - apiconn_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//
// Retry Metrics (pkg/transport):
//   - apiconn_retries_total{error_class} (Counter): Retry attempts by error class
//   - apiconn_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - apiconn_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Pagination Metrics (pkg/pagination):
//   - apiconn_pages_fetched_total{strategy} (Counter): Pages fetched by strategy
//   - apiconn_query_duration_seconds{strategy} (Histogram): Query duration by strategy
//
// Query Metrics (pkg/connector):
//   - apiconn_queries_total{table, outcome} (Counter): Queries by table and outcome (ok, error)
//   - apiconn_rows_total{table} (Counter): Rows returned by table
//
// Rate Limit Metrics (pkg/ratelimit):
//   - apiconn_rate_limit_remaining{source} (Gauge): Remaining quota reported by the source
//   - apiconn_rate_limit_blocks_total{source} (Counter): Requests blocked at the critical threshold
//   - apiconn_rate_limit_throttles_total{source} (Counter): Requests delayed at the warning threshold
//
// Example Prometheus Queries:
//
//   # Error Rate by Class
//   rate(apiconn_errors_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(apiconn_request_duration_seconds_bucket[5m]))
//
//   # Average Pages per Query
//   sum(rate(apiconn_pages_fetched_total[5m])) / sum(rate(apiconn_query_duration_seconds_count[5m]))
//
//   # Quota Running Low
//   apiconn_rate_limit_remaining < 10

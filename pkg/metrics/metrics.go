// Package metrics provides the centralized Prometheus registry for the
// harvester. All metrics are defined in their respective packages (m2m,
// ratelimit, transfer) to maintain modularity and avoid circular
// dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the harvester.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Catalog Request Metrics (pkg/m2m):
//   - m2m_requests_total{endpoint, status} (Counter): Total catalog requests by endpoint and HTTP status
//   - m2m_request_duration_seconds{endpoint} (Histogram): Catalog request duration by endpoint
//   - m2m_errors_total{class} (Counter): Errors by class (auth, client, server, rate_limit, network, provider)
//
// Retry Metrics (pkg/m2m):
//   - m2m_retries_total{error_class} (Counter): Retry attempts by error class
//   - m2m_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - m2m_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Rate Limit Metrics (pkg/ratelimit):
//   - m2m_rate_limit_cooldowns_total (Counter): Provider-imposed cooldowns (429 responses)
//   - m2m_rate_limit_cooldown_seconds (Gauge): Remaining seconds of the current cooldown
//
// Transfer Metrics (internal/transfer):
//   - transfer_fetches_total{result} (Counter): Download fetches by result (ok, error)
//   - transfer_artifacts_total{disposition} (Counter): Staged artifacts by disposition (uploaded, discarded, skipped, upload_error)
//   - transfer_retries_total (Counter): Links re-queued after a failed transfer attempt
//   - transfer_failures_total (Counter): Links abandoned after exhausting transfer retries
//
// Example Prometheus Queries:
//
//   # Catalog Error Rate
//   rate(m2m_errors_total[5m])
//
//   # P95 Catalog Request Latency
//   histogram_quantile(0.95, rate(m2m_request_duration_seconds_bucket[5m]))
//
//   # Upload Throughput
//   rate(transfer_artifacts_total{disposition="uploaded"}[5m])
//
//   # Transfer Failure Ratio
//   rate(transfer_failures_total[5m]) / rate(transfer_fetches_total[5m])
//
//   # Active Provider Cooldown
//   m2m_rate_limit_cooldown_seconds > 0

// Package metrics exports the Prometheus metrics of a refresh run.
// Metrics are defined in the packages that record them (client, pagination,
// fixture) and in this package for run-level results; all of them register
// with the default registry via promauto.
//
// The tool runs once and exits, so metrics are not served over HTTP. When a
// metrics file is configured they are written in the text exposition format
// for node_exporter's textfile collector.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry is the Prometheus registerer all packages register with.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the Prometheus gatherer written by WriteTextfile.
var Gatherer = prometheus.DefaultGatherer

var (
	// ErrorsTotal tracks failed resources and runs by error class
	ErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apicache_errors_total",
		Help: "Total refresh errors by class",
	}, []string{"class"})

	// LastSuccess is the Unix time of the last fully successful refresh
	LastSuccess = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "apicache_last_success_timestamp_seconds",
		Help: "Unix time of the last refresh that wrote every fixture",
	})

	// RunDuration is the wall time of the last refresh
	RunDuration = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "apicache_run_duration_seconds",
		Help: "Duration of the last refresh in seconds",
	})
)

// WriteTextfile writes every gathered metric to path, replacing it atomically.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, Gatherer); err != nil {
		return fmt.Errorf("write metrics to %s: %w", path, err)
	}
	return nil
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - apicache_requests_total{host, status} (Counter): Outbound requests by host and HTTP status
//   - apicache_request_duration_seconds{host} (Histogram): Request duration by host
//
// Pagination Metrics (pkg/pagination):
//   - apicache_pages_fetched_total{host} (Counter): Collection pages kept
//
// Fixture Metrics (pkg/fixture):
//   - apicache_fixtures_written_total{resource} (Counter): Fixture files written
//   - apicache_fixtures_unchanged_total{resource} (Counter): Writes identical to the previous file
//   - apicache_fixture_size_bytes{resource} (Gauge): Size of the last written fixture
//
// Run Metrics (pkg/metrics):
//   - apicache_errors_total{class} (Counter): Errors by class (credential, transport, auth_response, malformed_json, status)
//   - apicache_last_success_timestamp_seconds (Gauge): Last refresh that wrote every fixture
//   - apicache_run_duration_seconds (Gauge): Duration of the last refresh
//
// Example alert:
//
//   # Fixtures older than 30 days
//   time() - apicache_last_success_timestamp_seconds > 30 * 86400

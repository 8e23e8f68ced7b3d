package fixture

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FixturesWritten tracks fixture files written by resource
	FixturesWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apicache_fixtures_written_total",
			Help: "Total number of fixture files written",
		},
		[]string{"resource"},
	)

	// FixturesUnchanged tracks writes whose contents matched the existing file
	FixturesUnchanged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apicache_fixtures_unchanged_total",
			Help: "Total number of fixture writes identical to the previous file",
		},
		[]string{"resource"},
	)

	// FixtureSize tracks the size of the last written fixture
	FixtureSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "apicache_fixture_size_bytes",
			Help: "Size of the last written fixture file in bytes",
		},
		[]string{"resource"},
	)
)

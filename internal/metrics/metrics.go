// Package metrics defines the prometheus collectors for the wayfind server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Values for the State gauge.
const (
	Initializing float64 = iota
	Ready
)

var (
	// State tracks server lifecycle: 0 initializing, 1 ready.
	State = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wayfind_state",
		Help: "State of the wayfind server",
	})

	// ActiveSessions is the number of sessions currently being tracked.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wayfind_active_sessions",
		Help: "Number of navigation sessions currently being tracked",
	})

	// StepsAdvanced counts route steps completed across all sessions.
	StepsAdvanced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wayfind_steps_advanced_total",
		Help: "Count of route steps completed",
	})

	// Reroutes counts off-route recoveries.
	Reroutes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wayfind_reroutes_total",
		Help: "Count of reroutes after going off route",
	})

	// ObstacleReports counts obstacle reports ingested from detectors.
	ObstacleReports = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wayfind_obstacle_reports_total",
		Help: "Count of obstacle reports ingested",
	})

	// DirectionsRequests counts Directions API calls by response status.
	DirectionsRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wayfind_directions_requests_total",
		Help: "Count of Directions API requests",
	}, []string{"status"})

	// ProviderConnected reports whether the location provider is healthy.
	ProviderConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wayfind_location_provider_connected",
		Help: "Whether the location provider is healthy",
	})

	// ProviderHealthcheck counts provider health probes by outcome.
	ProviderHealthcheck = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wayfind_location_provider_healthcheck_total",
		Help: "Count of location provider health probes",
	}, []string{"success"})

	// Errors counts errors by operation and kind.
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wayfind_errors_total",
		Help: "Count of errors",
	}, []string{"op", "kind"})
)

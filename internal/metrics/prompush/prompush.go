// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// This package adapts the generic metrics.Backend interface to Prometheus by:
//
//   - Using client_golang CounterVec and SummaryVec collectors.
//   - Mapping the consolidation labels (country, stage, status, kind, lookup)
//     onto Prometheus labels.
//   - Pushing collected metrics to a Prometheus Pushgateway instance instead
//     of exposing an HTTP scrape endpoint, which suits a short-lived batch
//     run better than a scrape target.
//
// The package intentionally contains all Prometheus-specific dependencies so
// that the rest of the project remains decoupled from Prometheus and can swap
// to alternative backends (e.g. Datadog) without changes to the pipeline.
package prompush

import (
	"fmt"

	"mercancia/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	reg        *prometheus.Registry

	// Stage-level metrics
	stageCounter  *prometheus.CounterVec // "consolidation_stage_total"
	stageDuration *prometheus.SummaryVec // "consolidation_stage_duration_seconds"

	// Row- and lookup-level counters
	rowCounter    *prometheus.CounterVec // "consolidation_rows_total"
	lookupCounter *prometheus.CounterVec // "consolidation_lookup_matches_total"
}

// NewBackend constructs a Prometheus Pushgateway backend.
// jobName: the Pushgateway "job" name. gatewayURL: base URL of the
// Pushgateway server.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "mercancia"
	}

	reg := prometheus.NewRegistry()

	stageCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consolidation_stage_total",
			Help: "Total number of pipeline stage executions, partitioned by country, stage, and status.",
		},
		[]string{"country", "stage", "status"},
	)
	stageDuration := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "consolidation_stage_duration_seconds",
			Help:       "Duration of pipeline stages in seconds, partitioned by country, stage, and status.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"country", "stage", "status"},
	)

	rowCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consolidation_rows_total",
			Help: "Row-level counts per kind (read, normalized, filtered, exported, etc.).",
		},
		[]string{"country", "kind"},
	)

	lookupCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consolidation_lookup_matches_total",
			Help: "Rows matched by each master-data lookup.",
		},
		[]string{"country", "lookup"},
	)

	if err := reg.Register(stageCounter); err != nil {
		return nil, fmt.Errorf("prompush: register stage counter: %w", err)
	}
	if err := reg.Register(stageDuration); err != nil {
		return nil, fmt.Errorf("prompush: register stage summary: %w", err)
	}
	if err := reg.Register(rowCounter); err != nil {
		return nil, fmt.Errorf("prompush: register row counter: %w", err)
	}
	if err := reg.Register(lookupCounter); err != nil {
		return nil, fmt.Errorf("prompush: register lookup counter: %w", err)
	}

	return &Backend{
		gatewayURL:    gatewayURL,
		jobName:       jobName,
		reg:           reg,
		stageCounter:  stageCounter,
		stageDuration: stageDuration,
		rowCounter:    rowCounter,
		lookupCounter: lookupCounter,
	}, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case "consolidation_stage_total":
		if b.stageCounter == nil {
			return
		}
		b.stageCounter.WithLabelValues(labels["country"], labels["stage"], labels["status"]).Add(delta)

	case "consolidation_rows_total":
		if b.rowCounter == nil {
			return
		}
		b.rowCounter.WithLabelValues(labels["country"], labels["kind"]).Add(delta)

	case "consolidation_lookup_matches_total":
		if b.lookupCounter == nil {
			return
		}
		b.lookupCounter.WithLabelValues(labels["country"], labels["lookup"]).Add(delta)

	default:
		// unknown metric name: ignore
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != "consolidation_stage_duration_seconds" || b.stageDuration == nil {
		return
	}
	b.stageDuration.WithLabelValues(labels["country"], labels["stage"], labels["status"]).Observe(value)
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}

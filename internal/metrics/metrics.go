// Package metrics defines the Prometheus collectors for the moderation
// service. Collectors are registered once at package load via promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sif_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sif_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"method", "path"})
)

// Event counters (incremented on occurrence)
var (
	ReportsFiledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sif_reports_filed_total",
		Help: "Total number of content reports filed",
	}, []string{"reason"})

	BlocksCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sif_blocks_created_total",
		Help: "Total number of block relationships created",
	})

	ModerationActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sif_moderation_actions_total",
		Help: "Total number of moderation actions taken, by action kind",
	}, []string{"action"})

	SIFsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sif_messages_created_total",
		Help: "Total number of SIF messages created",
	})
)

// Business gauges (updated periodically by the collector)
var (
	ReportsPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sif_reports_pending",
		Help: "Number of reports awaiting moderator triage",
	})

	BlockRelationshipsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sif_block_relationships_total",
		Help: "Total number of active block relationships",
	})
)

// NormalizePath reduces high-cardinality path labels by replacing dynamic
// segments with placeholders. This keeps the metric label space bounded.
func NormalizePath(path string) string {
	segments := splitPath(path)
	if len(segments) < 3 || segments[0] != "api" {
		return path
	}

	switch segments[1] {
	case "reports":
		if len(segments) == 3 {
			return "/api/reports/:id"
		}
		if len(segments) == 4 {
			return "/api/reports/:id/" + segments[3]
		}
	case "sifs":
		if len(segments) == 3 {
			return "/api/sifs/:id"
		}
	case "blocks":
		if len(segments) == 3 {
			return "/api/blocks/:id"
		}
	}

	return path
}

func splitPath(path string) []string {
	if len(path) > 0 && path[0] == '/' {
		path = path[1:]
	}
	var segments []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '/' {
			if i > start {
				segments = append(segments, path[start:i])
			}
			start = i + 1
		}
	}
	if start < len(path) {
		segments = append(segments, path[start:])
	}
	return segments
}

package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// IngestionsTotal counts finished ingestions by source and terminal status.
var IngestionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "creditreport",
	Name:      "ingestions_total",
	Help:      "Total ingestions by source and terminal status.",
}, []string{"source", "status"})

// IngestionDuration tracks wall time of one ingestion.
var IngestionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "creditreport",
	Name:      "ingestion_duration_seconds",
	Help:      "Ingestion latency in seconds.",
	Buckets:   prometheus.DefBuckets,
}, []string{"source"})

// ParseConfidence is the distribution of free-text confidence scores.
var ParseConfidence = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "creditreport",
	Name:      "parse_confidence",
	Help:      "Confidence score of free-text parses (0-100).",
	Buckets:   prometheus.LinearBuckets(0, 10, 11),
})

// RowsWritten counts normalized rows written per table.
var RowsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "creditreport",
	Name:      "rows_written_total",
	Help:      "Normalized rows written by table.",
}, []string{"table"})

// ScrapePolls counts upstream status polls by outcome.
var ScrapePolls = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "creditreport",
	Name:      "scrape_polls_total",
	Help:      "Upstream scrape status polls by outcome.",
}, []string{"outcome"})

package infrastructure

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the ingestion counters exposed on /metrics.
type Metrics struct {
	DaysStored     prometheus.Counter
	DaysFailed     prometheus.Counter
	DaysSkipped    prometheus.Counter
	RowsUpserted   prometheus.Counter
	RowsRejected   prometheus.Counter
	DownloadBytes  prometheus.Counter
	IngestDuration prometheus.Histogram
}

// NewMetrics registers the ingestion metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		DaysStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "indistocks",
			Name:      "ingest_days_stored_total",
			Help:      "Trading days successfully upserted into the store.",
		}),
		DaysFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "indistocks",
			Name:      "ingest_days_failed_total",
			Help:      "Trading days that permanently failed ingestion.",
		}),
		DaysSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "indistocks",
			Name:      "ingest_days_skipped_total",
			Help:      "Dates skipped as non-trading days or no data published.",
		}),
		RowsUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "indistocks",
			Name:      "ingest_rows_upserted_total",
			Help:      "Validated price rows written to the store.",
		}),
		RowsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "indistocks",
			Name:      "ingest_rows_rejected_total",
			Help:      "Rows dropped by parsing or validation.",
		}),
		DownloadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "indistocks",
			Name:      "download_bytes_total",
			Help:      "Raw archive bytes fetched from the upstream source.",
		}),
		IngestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "indistocks",
			Name:      "ingest_day_duration_seconds",
			Help:      "Wall time spent ingesting one trading day.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
	}

	reg.MustRegister(
		m.DaysStored, m.DaysFailed, m.DaysSkipped,
		m.RowsUpserted, m.RowsRejected,
		m.DownloadBytes, m.IngestDuration,
	)
	return m
}

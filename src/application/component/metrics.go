package component

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricDocumentsValidated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "prepress",
		Name:      "documents_validated_total",
		Help:      "Number of validation runs over documents.",
	})

	metricFindings = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "prepress",
		Name:      "findings_total",
		Help:      "Findings produced by validation runs.",
	}, []string{"check", "severity"})

	metricSyncDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "prepress",
		Name:      "source_sync_duration_seconds",
		Help:      "Wall time of one source sync.",
	})

	metricLastSync = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "prepress",
		Name:      "last_sync_timestamp_seconds",
		Help:      "Unix time of the last successful source sync.",
	})
)

// Package metrics exposes the Prometheus counters and histograms the
// worker and ingestion handler update as they run.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	IngestedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhookrelay_ingested_total",
		Help: "Number of ingestion requests, labeled by result (accepted, skipped, malformed, signature_mismatch).",
	}, []string{"result"})

	DeliveryAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhookrelay_delivery_attempts_total",
		Help: "Number of delivery attempts, labeled by outcome status.",
	}, []string{"status"})

	DeliveryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "webhookrelay_delivery_duration_seconds",
		Help:    "Time spent performing one outbound delivery POST.",
		Buckets: prometheus.DefBuckets,
	})

	ClaimBatchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "webhookrelay_claim_batch_size",
		Help:    "Number of attempts claimed per worker cycle.",
		Buckets: []float64{0, 1, 5, 10, 20, 50, 100},
	})

	RetentionDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webhookrelay_retention_deleted_total",
		Help: "Number of attempt rows removed by the retention sweep.",
	})
)

package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	quotesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quotes_created",
		Help: "The total number of quotes issued",
	})
	settlementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlements",
		Help: "Settlements by terminal status",
	}, []string{"status"})
	uploadedBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "uploaded_bytes",
		Help: "Bytes streamed to the storage network",
	})
	settlementDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "settlement_duration_seconds",
		Help:    "Time from payment start to terminal status",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})
)

package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Commit outcomes.
const (
	outcomeCommitted = "committed"
	outcomeRejected  = "rejected"
	outcomeFailed    = "failed"
	outcomeBusy      = "busy"
	outcomeInvalid   = "invalid"
)

var (
	saleCommitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pos",
			Name:      "sale_commits_total",
			Help:      "Sale commit attempts by outcome",
		},
		[]string{"outcome"},
	)

	saleCommitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "pos",
			Name:      "sale_commit_duration_seconds",
			Help:      "Duration of the remote sale creation call",
			Buckets:   prometheus.DefBuckets,
		},
	)

	ledgerLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pos",
			Name:      "ledger_loads_total",
			Help:      "Full sales history loads by outcome",
		},
		[]string{"outcome"},
	)

	ledgerLoadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "pos",
			Name:      "ledger_load_duration_seconds",
			Help:      "Duration of full sales history loads",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	ledgerSales = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "pos",
			Name:      "ledger_sales",
			Help:      "Number of sales in the current ledger snapshot",
		},
	)

	dateQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pos",
			Name:      "date_queries_total",
			Help:      "Sales-by-date queries by the source that answered them",
		},
		[]string{"source"},
	)

	receiptPrintsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pos",
			Name:      "receipt_prints_total",
			Help:      "Receipt print attempts by outcome",
		},
		[]string{"outcome"},
	)
)

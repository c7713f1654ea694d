package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PurchaseAttempts counts purchase calls by strategy and terminal outcome
	// (paid, processing, insufficient_stock, conflict, not_initialized,
	// not_found, unknown, error).
	PurchaseAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ticketrush",
		Name:      "purchase_attempts_total",
		Help:      "Purchase attempts by strategy and outcome.",
	}, []string{"strategy", "outcome"})

	// ReservationCommits counts async reservations finalized by the worker.
	ReservationCommits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ticketrush",
		Name:      "reservation_commits_total",
		Help:      "Reservation messages finalized by the commit worker.",
	}, []string{"outcome"})

	// CommitDuration observes how long the worker takes per reservation.
	CommitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "ticketrush",
		Name:      "reservation_commit_seconds",
		Help:      "Commit worker processing time per reservation.",
		Buckets:   prometheus.DefBuckets,
	})
)

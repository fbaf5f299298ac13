package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// AuctionMetrics covers the lifecycle path: transitions, store behavior and
// result publishing.
type AuctionMetrics struct {
	TransitionsTotal        prometheus.CounterVec
	TransitionFailuresTotal prometheus.CounterVec
	MissedJobsTotal         prometheus.Counter
	SaveConflictsTotal      prometheus.Counter
	PublishAttemptsTotal    prometheus.Counter
	PublishFailuresTotal    prometheus.Counter
	BidsRecordedTotal       prometheus.Counter
	AuctionDuration         prometheus.Histogram
}

func NewAuctionMetrics() *AuctionMetrics {
	return &AuctionMetrics{
		TransitionsTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auction_transitions_total",
				Help: "Lifecycle transitions fired, by transition name",
			},
			[]string{"transition"},
		),

		TransitionFailuresTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auction_transition_failures_total",
				Help: "Scheduled transitions whose handler returned an error, by job id",
			},
			[]string{"transition"},
		),

		MissedJobsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "auction_missed_jobs_total",
				Help: "Scheduled transitions that fired outside the misfire grace window",
			},
		),

		SaveConflictsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "auction_save_conflicts_total",
				Help: "Optimistic-concurrency conflicts on auction document save",
			},
		),

		PublishAttemptsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "auction_publish_attempts_total",
				Help: "Attempts to publish auction results to the tender API",
			},
		),

		PublishFailuresTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "auction_publish_failures_total",
				Help: "Result publishing given up after exhausting retries",
			},
		),

		BidsRecordedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "auction_bids_recorded_total",
				Help: "Bids accepted during live bidding windows",
			},
		),

		AuctionDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "auction_duration_seconds",
				Help:    "Wall time from auction start to end",
				Buckets: prometheus.ExponentialBuckets(60, 2, 10),
			},
		),
	}
}

func (m *AuctionMetrics) RecordTransition(name string) {
	if m == nil {
		return
	}
	m.TransitionsTotal.WithLabelValues(name).Inc()
}

func (m *AuctionMetrics) RecordTransitionFailure(name string) {
	if m == nil {
		return
	}
	m.TransitionFailuresTotal.WithLabelValues(name).Inc()
}

func (m *AuctionMetrics) RecordMissedJob() {
	if m == nil {
		return
	}
	m.MissedJobsTotal.Inc()
}

func (m *AuctionMetrics) RecordSaveConflict() {
	if m == nil {
		return
	}
	m.SaveConflictsTotal.Inc()
}

func (m *AuctionMetrics) RecordPublishAttempt() {
	if m == nil {
		return
	}
	m.PublishAttemptsTotal.Inc()
}

func (m *AuctionMetrics) RecordPublishFailure() {
	if m == nil {
		return
	}
	m.PublishFailuresTotal.Inc()
}

func (m *AuctionMetrics) RecordBid() {
	if m == nil {
		return
	}
	m.BidsRecordedTotal.Inc()
}

func (m *AuctionMetrics) ObserveAuctionDuration(seconds float64) {
	if m == nil {
		return
	}
	m.AuctionDuration.Observe(seconds)
}

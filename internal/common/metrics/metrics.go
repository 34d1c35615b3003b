// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SweepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alert_sweeps_total",
			Help: "Total number of sweep runs by outcome",
		},
		[]string{"status"},
	)

	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "alert_sweep_duration_seconds",
			Help: "Duration of a full sweep in seconds",
		},
	)

	SearchesChecked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "alert_searches_checked_total",
			Help: "Total number of saved searches evaluated",
		},
	)

	MatchesFound = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "alert_matches_found_total",
			Help: "Total number of candidate matches produced by the scanner",
		},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alert_notifications_sent_total",
			Help: "Total number of notifications delivered per channel",
		},
		[]string{"channel"},
	)

	ChannelFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alert_channel_failures_total",
			Help: "Total number of failed channel attempts",
		},
		[]string{"channel"},
	)

	SearchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alert_search_errors_total",
			Help: "Total number of per-search errors by code",
		},
		[]string{"error_code"},
	)

	SuppressedSends = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alert_suppressed_sends_total",
			Help: "Sends suppressed by the policy gate",
		},
		[]string{"reason"},
	)
)

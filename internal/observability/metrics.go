package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for betting, the live feed and the
// cross-instance relay.
type Metrics struct {
	BetsSettled  *prometheus.CounterVec
	BetDuration  prometheus.Histogram
	BetConflicts prometheus.Counter
	BetFailures  *prometheus.CounterVec

	FeedSubscribers   prometheus.Gauge
	FeedEventsDropped prometheus.Counter

	RelayMessages *prometheus.CounterVec
}

// NewMetrics registers every collector on reg. Tests pass a fresh
// prometheus.NewRegistry() to avoid duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		BetsSettled: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dice_bets_settled_total",
			Help: "Dice bets committed, by currency and result",
		}, []string{"currency", "result"}),

		BetDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "dice_bet_duration_seconds",
			Help:    "Time from bet validation to commit, including retries",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),

		BetConflicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "dice_bet_conflicts_total",
			Help: "Bet transactions aborted by contention and retried",
		}),

		BetFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dice_bet_failures_total",
			Help: "Bets that did not settle, by reason",
		}, []string{"reason"}),

		FeedSubscribers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "feed_subscribers",
			Help: "Connected live feed subscribers",
		}),

		FeedEventsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "feed_events_dropped_total",
			Help: "Feed events dropped because a subscriber buffer was full",
		}),

		RelayMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_messages_total",
			Help: "Settled bets relayed through Redis",
		}, []string{"direction"}),
	}
}

// NewNopMetrics registers on a private registry.
func NewNopMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}

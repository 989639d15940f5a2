package metrics

import "github.com/prometheus/client_golang/prometheus"

// Nudge results.
const (
	NudgeSent     = "sent"
	NudgeRejected = "rejected"
)

var (
	NudgesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nudges_total",
			Help: "Nudge attempts by outcome",
		},
		[]string{"result"},
	)
	NudgeDeliveryFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nudge_delivery_failures_total",
			Help: "Failed nudge deliveries by channel",
		},
		[]string{"channel"},
	)
	ProgressWrites = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "progress_writes_total",
			Help: "Accepted daily progress writes",
		},
	)
	LeaderboardCacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leaderboard_cache_lookups_total",
			Help: "Leaderboard cache lookups by result",
		},
		[]string{"result"},
	)
)

// Register adds the domain collectors to reg.
func Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{NudgesTotal, NudgeDeliveryFailures, ProgressWrites, LeaderboardCacheLookups} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

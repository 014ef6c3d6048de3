package host

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	promTotalStaked = promauto.NewGauge(prometheus.GaugeOpts{
		Subsystem: "ftstake",
		Name:      "staked_total",
	})
	promNumStakers = promauto.NewGauge(prometheus.GaugeOpts{
		Subsystem: "ftstake",
		Name:      "staker_count",
	})
	promPaidReward = promauto.NewGauge(prometheus.GaugeOpts{
		Subsystem: "ftstake",
		Name:      "reward_paid_total",
	})
	promPoolReward = promauto.NewGauge(prometheus.GaugeOpts{
		Subsystem: "ftstake",
		Name:      "reward_accrued",
	})
	promPaused = promauto.NewGauge(prometheus.GaugeOpts{
		Subsystem: "ftstake",
		Name:      "paused",
	})
	promPendingTransfers = promauto.NewGauge(prometheus.GaugeOpts{
		Subsystem: "ftstake",
		Name:      "transfers_pending",
	})
	promCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "ftstake",
		Name:      "calls_total",
	}, []string{"op", "result"})
)

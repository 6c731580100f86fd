package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"lmstaker/core/events"
	"lmstaker/native/staker"
)

// StakerMetrics tracks engine activity. It implements events.Emitter so it
// can be attached to the engine's fanout.
type StakerMetrics struct {
	events       *prometheus.CounterVec
	rewardsAdded prometheus.Counter
	claimed      prometheus.Counter
	refunds      prometheus.Counter
	activeStakes prometheus.Gauge
}

var (
	stakerOnce     sync.Once
	stakerRegistry *StakerMetrics
)

var _ events.Emitter = (*StakerMetrics)(nil)

// Staker returns the process-wide staker metrics, registering them on first use.
func Staker() *StakerMetrics {
	stakerOnce.Do(func() {
		stakerRegistry = NewStakerMetrics()
		stakerRegistry.MustRegister(prometheus.DefaultRegisterer)
	})
	return stakerRegistry
}

// NewStakerMetrics builds an unregistered set of staker metrics.
func NewStakerMetrics() *StakerMetrics {
	return &StakerMetrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "staker_events_total",
			Help: "Count of engine events by type.",
		}, []string{"type"}),
		rewardsAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "staker_rewards_added_total",
			Help: "Reward units funded into incentives.",
		}),
		claimed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "staker_rewards_claimed_total",
			Help: "Reward units paid out of reward accounts.",
		}),
		refunds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "staker_refunds_total",
			Help: "Reward units refunded when incentives end.",
		}),
		activeStakes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "staker_active_stakes",
			Help: "Open stakes across all incentives.",
		}),
	}
}

// MustRegister registers every collector on reg.
func (m *StakerMetrics) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(m.events, m.rewardsAdded, m.claimed, m.refunds, m.activeStakes)
}

// SeedActiveStakes sets the open stake gauge from persisted incentives so it
// survives restarts. Events emitted afterwards adjust it from there.
func (m *StakerMetrics) SeedActiveStakes(incentives []*staker.Incentive) {
	if m == nil {
		return
	}
	var open uint64
	for _, inc := range incentives {
		if inc != nil {
			open += uint64(inc.NumberOfStakes)
		}
	}
	m.activeStakes.Set(float64(open))
}

// Emit implements events.Emitter.
func (m *StakerMetrics) Emit(evt events.Event) {
	if m == nil || evt == nil {
		return
	}
	m.events.WithLabelValues(evt.EventType()).Inc()
	switch e := evt.(type) {
	case staker.RewardAdded:
		m.rewardsAdded.Add(float64(e.Reward))
	case staker.RewardClaimed:
		m.claimed.Add(float64(e.Reward))
	case staker.IncentiveEnded:
		m.refunds.Add(float64(e.Refund))
	case staker.StakeOpened:
		m.activeStakes.Inc()
	case staker.StakeClosed:
		m.activeStakes.Dec()
	}
}

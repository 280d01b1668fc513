// Package metrics exports machine transitions and timer expiry failures as
// Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/librescoot/tempfsm"
)

const (
	originManual = "manual"
	originTimer  = "timer"
)

// Collector observes machines. Labels are bounded by the size of each
// machine's state and command sets.
type Collector struct {
	transitions    *prometheus.CounterVec
	state          *prometheus.GaugeVec
	expiryFailures *prometheus.CounterVec
}

// New registers the collector's metrics with reg
func New(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tempfsm_transitions_total",
			Help: "Total number of completed transitions, by machine, source, destination, command and origin (manual/timer).",
		}, []string{"machine", "from", "to", "command", "origin"}),

		state: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tempfsm_state",
			Help: "1 for the current state of each machine, 0 for states it has left.",
		}, []string{"machine", "state"}),

		expiryFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tempfsm_timer_expiry_failures_total",
			Help: "Total number of dwell timer expiries that failed or were dropped, by machine and state.",
		}, []string{"machine", "state"}),
	}
}

// Observe implements tempfsm.Observer
func (c *Collector) Observe(ch tempfsm.Change) {
	origin := originManual
	if ch.Auto {
		origin = originTimer
	}
	c.transitions.WithLabelValues(ch.Machine, string(ch.From), string(ch.To), string(ch.Command), origin).Inc()
	c.state.WithLabelValues(ch.Machine, string(ch.From)).Set(0)
	c.state.WithLabelValues(ch.Machine, string(ch.To)).Set(1)
}

// ExpiryFailed counts a failed expiry, then passes it on to next if set
func (c *Collector) ExpiryFailed(next func(tempfsm.ExpiryError)) func(tempfsm.ExpiryError) {
	return func(e tempfsm.ExpiryError) {
		c.expiryFailures.WithLabelValues(e.Machine, string(e.State)).Inc()
		if next != nil {
			next(e)
		}
	}
}

// Track publishes the machine's current state and subscribes to its
// transitions. The returned function stops tracking.
func (c *Collector) Track(m *tempfsm.Machine) (stop func()) {
	c.state.WithLabelValues(m.Name(), string(m.CurrentState())).Set(1)
	return m.Subscribe(c.Observe)
}

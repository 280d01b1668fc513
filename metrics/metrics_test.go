package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/librescoot/tempfsm"
)

func TestCollectorTracksTransitions(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	m, err := tempfsm.NewDefinition().
		State("idle").
		State("busy", tempfsm.WithTimeout(20*time.Millisecond, "idle")).
		Transition("idle", "work", "busy").
		Initial("idle").
		Build(tempfsm.WithName("worker"))
	require.NoError(t, err)
	require.NoError(t, m.Start(context.Background()))
	defer m.Stop()

	stop := c.Track(m)
	defer stop()

	assert.Equal(t, 1.0, testutil.ToFloat64(c.state.WithLabelValues("worker", "idle")))

	_, err = m.Fire(context.Background(), "work")
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.transitions.WithLabelValues("worker", "idle", "busy", "work", "manual")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.state.WithLabelValues("worker", "idle")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.state.WithLabelValues("worker", "busy")))

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(c.transitions.WithLabelValues("worker", "busy", "idle", "timeout", "timer")) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.state.WithLabelValues("worker", "idle")))

	stop()
	_, err = m.Fire(context.Background(), "work")
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.transitions.WithLabelValues("worker", "idle", "busy", "work", "manual")))
}

func TestExpiryFailed(t *testing.T) {
	c := New(prometheus.NewRegistry())

	var forwarded []tempfsm.ExpiryError
	handler := c.ExpiryFailed(func(e tempfsm.ExpiryError) { forwarded = append(forwarded, e) })

	e := tempfsm.ExpiryError{Machine: "panel", State: "prearmed", Err: errors.New("lock timeout")}
	handler(e)
	handler(e)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.expiryFailures.WithLabelValues("panel", "prearmed")))
	assert.Len(t, forwarded, 2)

	// nil next is allowed
	c.ExpiryFailed(nil)(e)
	assert.Equal(t, 3.0, testutil.ToFloat64(c.expiryFailures.WithLabelValues("panel", "prearmed")))
}

func TestRegisterTwiceFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}

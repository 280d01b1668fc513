package tempfsm

import (
	"context"
	"sync/atomic"
	"time"
)

const defaultExpiryLockTimeout = 5 * time.Second

// dwellTimer is the one-shot countdown of a single stay in a temporary
// state. A fresh one is created on every entry; they are never reset.
type dwellTimer struct {
	state    StateID
	duration time.Duration
	deadline time.Time
	timer    *time.Timer
	fired    atomic.Bool // Runtime timer has elapsed, expiry pending or dropped
}

// TimerStatus is a snapshot of the running dwell timer
type TimerStatus struct {
	State    StateID
	Duration time.Duration
	Deadline time.Time
}

// startTimer registers a new dwell timer for state. Caller holds lock.
func (m *Machine) startTimer(state State) {
	// At most one timer at a time
	m.cancelTimer()

	h := &dwellTimer{
		state:    state.ID,
		duration: state.Timeout,
		deadline: time.Now().Add(state.Timeout),
	}
	h.timer = time.AfterFunc(state.Timeout, func() {
		m.expire(h)
	})
	m.timer = h

	m.logger.Debug().Str("state", string(state.ID)).Dur("duration", state.Timeout).Msg("timer started")
}

// cancelTimer stops and unregisters the running timer. Caller holds lock.
// A callback already waiting for the lock will find itself unregistered
// and drop its expiry.
func (m *Machine) cancelTimer() {
	if m.timer == nil {
		return
	}
	m.timer.timer.Stop()
	m.logger.Debug().Str("state", string(m.timer.state)).Msg("timer cancelled")
	m.timer = nil
}

// expire runs on the timer goroutine. Failures are reported once the
// lock is released so the handler may use the machine.
func (m *Machine) expire(h *dwellTimer) {
	h.fired.Store(true)

	if err := m.applyExpiry(h); err != nil {
		m.onExpiryError(ExpiryError{
			Machine:  m.name,
			State:    h.state,
			Duration: h.duration,
			Err:      err,
		})
	}
}

// applyExpiry competes for the lock like any manual Fire and only proceeds
// if h is still the registered timer
func (m *Machine) applyExpiry(h *dwellTimer) error {
	ctx, cancel := context.WithTimeout(context.Background(), m.expiryTimeout)
	defer cancel()

	if err := m.lock.Acquire(ctx, 1); err != nil {
		return err
	}
	defer m.lock.Release(1)

	if m.timer != h {
		m.logger.Debug().Str("state", string(h.state)).Msg("stale timer expiry dropped")
		return nil
	}

	m.logger.Debug().Str("state", string(h.state)).Str("command", string(m.table.timeoutCommand)).Msg("timer fired")

	_, err := m.fireLocked(context.Background(), m.table.timeoutCommand, true)
	return err
}

// ActiveTimer returns the running dwell timer, if any. A timer that has
// elapsed is no longer reported, even while its expiry waits for the lock
// or after it was dropped.
func (m *Machine) ActiveTimer() (TimerStatus, bool) {
	_ = m.lock.Acquire(context.Background(), 1)
	defer m.lock.Release(1)

	if m.timer == nil || m.timer.fired.Load() {
		return TimerStatus{}, false
	}
	return TimerStatus{
		State:    m.timer.state,
		Duration: m.timer.duration,
		Deadline: m.timer.deadline,
	}, true
}

func (m *Machine) logExpiryError(e ExpiryError) {
	m.logger.Warn().Err(e.Err).Str("state", string(e.State)).Dur("duration", e.Duration).Msg("timer expiry failed")
}

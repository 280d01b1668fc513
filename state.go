package tempfsm

import "time"

// Hook is an entry or exit action. Hooks run while the machine is locked and
// must hand long-running work off instead of blocking.
type Hook func(ctx *Context) error

// State defines a state in the machine
type State struct {
	ID StateID

	OnEnter Hook
	OnExit  Hook

	// Declarative timeout: a temporary state starts a one-shot timer on
	// entry, cancels it on exit, and moves to TimeoutTarget on expiry.
	Timeout       time.Duration
	TimeoutTarget StateID
}

// Temporary reports whether the state carries a dwell timer
func (s *State) Temporary() bool {
	return s.TimeoutTarget != ""
}

// StateOption is a functional option for configuring a State
type StateOption func(*State)

// WithOnEnter sets the entry action for the state
func WithOnEnter(fn Hook) StateOption {
	return func(s *State) {
		s.OnEnter = fn
	}
}

// WithOnExit sets the exit action for the state
func WithOnExit(fn Hook) StateOption {
	return func(s *State) {
		s.OnExit = fn
	}
}

// WithTimeout marks the state temporary. On entry a timer of the given
// duration starts; if it expires before the state is left, the machine's
// timeout command moves it to target.
func WithTimeout(duration time.Duration, target StateID) StateOption {
	return func(s *State) {
		s.Timeout = duration
		s.TimeoutTarget = target
	}
}

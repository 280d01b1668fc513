package tempfsm

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrConfiguration is wrapped by every definition validation failure
	ErrConfiguration = errors.New("invalid state machine configuration")
	// ErrUndefinedTransition means no edge exists for the (state, command) pair
	ErrUndefinedTransition = errors.New("undefined transition")
	// ErrNoMatchingGuard means edges exist but every guard rejected the command
	ErrNoMatchingGuard = errors.New("no matching guard")
	// ErrReentrantFire means a hook or guard tried to fire on its own machine
	ErrReentrantFire = errors.New("reentrant fire from within a transition")
	// ErrNotStarted is returned when firing before Start
	ErrNotStarted = errors.New("machine not started")
	// ErrStopped is returned when firing after Stop
	ErrStopped = errors.New("machine stopped")
)

// ConfigurationError lists every problem found while validating a Definition
type ConfigurationError struct {
	Problems []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrConfiguration, strings.Join(e.Problems, "; "))
}

func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

// TransitionError reports a rejected Fire. Kind is ErrUndefinedTransition or
// ErrNoMatchingGuard.
type TransitionError struct {
	Kind        error
	State       StateID
	Command     CommandID
	UnmetGuards []string
	Permitted   []CommandID
}

func (e *TransitionError) Error() string {
	if errors.Is(e.Kind, ErrNoMatchingGuard) {
		return fmt.Sprintf("%s: command %q is valid in state %q but guard conditions are not met: %s",
			e.Kind, e.Command, e.State, strings.Join(e.UnmetGuards, ", "))
	}

	permitted := "none"
	if len(e.Permitted) > 0 {
		cmds := make([]string, len(e.Permitted))
		for i, c := range e.Permitted {
			cmds[i] = string(c)
		}
		permitted = strings.Join(cmds, ", ")
	}
	return fmt.Sprintf("%s: no transition from state %q for command %q (permitted: %s)",
		e.Kind, e.State, e.Command, permitted)
}

func (e *TransitionError) Unwrap() error {
	return e.Kind
}

// HookError wraps a failure returned by an entry or exit hook
type HookError struct {
	State StateID
	Phase string // "entry" or "exit"
	Err   error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("%s action failed for %q: %v", e.Phase, e.State, e.Err)
}

func (e *HookError) Unwrap() error {
	return e.Err
}

// ExpiryError describes a dwell timer expiry that could not be applied,
// either because the lock was not obtained in time (the expiry is dropped,
// not retried) or because the timeout transition itself failed.
type ExpiryError struct {
	Machine  string
	State    StateID
	Duration time.Duration
	Err      error
}

func (e ExpiryError) Error() string {
	return fmt.Sprintf("timer expiry for state %q on machine %s failed: %v", e.State, e.Machine, e.Err)
}

func (e ExpiryError) Unwrap() error {
	return e.Err
}

package tempfsm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// Change describes a completed transition as seen by observers
type Change struct {
	// Ctx is marked with the machine like Context.Ctx; an observer that
	// fires on the same machine must pass it so the call is rejected with
	// ErrReentrantFire instead of blocking.
	Ctx     context.Context
	Machine string
	From    StateID
	Command CommandID
	To      StateID
	Reentry bool
	Auto    bool // Caused by a dwell timer expiry
	At      time.Time
}

// Observer is notified after every transition, while the machine is still
// locked. Observers must not call back into the machine other than through
// Fire with Change.Ctx, which reports ErrReentrantFire.
type Observer func(Change)

// Machine is the runtime FSM instance. All transitions, manual or
// timer-originated, are serialized through one exclusive lock.
type Machine struct {
	table *table
	lock  *semaphore.Weighted

	// Guarded by lock
	current StateID
	timer   *dwellTimer
	started bool
	stopped bool

	name          string
	data          any
	logger        zerolog.Logger
	durations     map[StateID]time.Duration
	expiryTimeout time.Duration
	onExpiryError func(ExpiryError)

	obsMu     sync.Mutex
	observers []observerEntry
	nextObsID int
}

type observerEntry struct {
	id int
	fn Observer
}

// MachineOption is a functional option for configuring a Machine
type MachineOption func(*Machine)

// WithLogger sets the logger for the machine
func WithLogger(logger zerolog.Logger) MachineOption {
	return func(m *Machine) {
		m.logger = logger
	}
}

// WithName names the machine in logs, errors and observer notifications.
// Defaults to a random UUID.
func WithName(name string) MachineOption {
	return func(m *Machine) {
		m.name = name
	}
}

// WithData sets the application data accessible via Context
func WithData(data any) MachineOption {
	return func(m *Machine) {
		m.data = data
	}
}

// WithObserver registers a transition observer at build time
func WithObserver(fn Observer) MachineOption {
	return func(m *Machine) {
		m.addObserver(fn)
	}
}

// WithStateDurations overrides the dwell duration of temporary states.
// Durations are fixed once the machine is built.
func WithStateDurations(durations map[StateID]time.Duration) MachineOption {
	return func(m *Machine) {
		m.durations = make(map[StateID]time.Duration, len(durations))
		for id, d := range durations {
			m.durations[id] = d
		}
	}
}

// WithExpiryLockTimeout bounds how long an expired timer waits for the
// machine lock before its expiry is dropped
func WithExpiryLockTimeout(d time.Duration) MachineOption {
	return func(m *Machine) {
		m.expiryTimeout = d
	}
}

// WithExpiryErrorHandler receives timer expiries that failed or were
// dropped. The handler runs on the timer goroutine after the machine lock
// has been released.
func WithExpiryErrorHandler(fn func(ExpiryError)) MachineOption {
	return func(m *Machine) {
		m.onExpiryError = fn
	}
}

// Name returns the machine name
func (m *Machine) Name() string {
	return m.name
}

// Start enters the initial state, running its entry hook and starting its
// timer if it is temporary
func (m *Machine) Start(ctx context.Context) error {
	if firingOn(ctx, m) {
		return ErrReentrantFire
	}
	if err := m.lock.Acquire(ctx, 1); err != nil {
		return err
	}
	defer m.lock.Release(1)

	if m.stopped {
		return ErrStopped
	}
	if m.started {
		return fmt.Errorf("machine %s already started", m.name)
	}
	m.started = true
	m.current = m.table.initial

	hctx := m.makeContext(ctx, "", "", m.table.initial)
	if err := m.enterState(hctx); err != nil {
		return fmt.Errorf("failed to enter initial state: %w", err)
	}
	return nil
}

// Stop cancels the active timer. Later calls to Fire fail with ErrStopped.
func (m *Machine) Stop() {
	_ = m.lock.Acquire(context.Background(), 1)
	defer m.lock.Release(1)

	m.stopped = true
	m.cancelTimer()
}

// Fire applies a command. On success it returns the new state. If no edge
// matches, the error is a *TransitionError wrapping ErrUndefinedTransition or
// ErrNoMatchingGuard and the returned state is the unchanged current one.
// ctx bounds the wait for the machine lock; if it expires first the ctx
// error is returned with an empty state.
func (m *Machine) Fire(ctx context.Context, cmd CommandID) (StateID, error) {
	if firingOn(ctx, m) {
		return "", fmt.Errorf("fire %q: %w", cmd, ErrReentrantFire)
	}
	if err := m.lock.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer m.lock.Release(1)

	return m.fireLocked(ctx, cmd, false)
}

// fireLocked is the body shared by Fire and timer expiry. Caller holds lock.
func (m *Machine) fireLocked(ctx context.Context, cmd CommandID, auto bool) (StateID, error) {
	if !m.started {
		return m.current, ErrNotStarted
	}
	if m.stopped {
		return m.current, ErrStopped
	}

	from := m.current
	m.logger.Debug().Str("state", string(from)).Str("command", string(cmd)).Bool("auto", auto).Msg("processing command")

	r := m.resolve(ctx, from, cmd)
	if r.err != nil {
		terr := &TransitionError{
			Kind:        r.err,
			State:       from,
			Command:     cmd,
			UnmetGuards: r.unmet,
		}
		if errors.Is(r.err, ErrUndefinedTransition) {
			terr.Permitted = m.permitted(ctx, from)
		}
		m.logger.Debug().Err(terr).Msg("transition rejected")
		return from, terr
	}

	return m.executeTransition(ctx, r.edge, auto)
}

// executeTransition performs the state transition
func (m *Machine) executeTransition(ctx context.Context, t *Transition, auto bool) (StateID, error) {
	from := m.current
	hctx := m.makeContext(ctx, t.Command, from, t.To)
	hctx.Reentry = t.Reentry
	hctx.Auto = auto

	m.logger.Debug().Str("from", string(from)).Str("to", string(t.To)).Str("command", string(t.Command)).Msg("executing transition")

	if err := m.exitState(hctx); err != nil {
		return from, err
	}

	m.current = t.To
	entryErr := m.enterState(hctx)

	m.notify(Change{
		Ctx:     hctx.Ctx,
		Machine: m.name,
		From:    from,
		Command: t.Command,
		To:      t.To,
		Reentry: t.Reentry,
		Auto:    auto,
		At:      time.Now(),
	})

	return m.current, entryErr
}

// enterState starts the dwell timer of a temporary state, then runs the
// entry hook. The state is already committed when the hook runs.
func (m *Machine) enterState(hctx *Context) error {
	state := m.table.states[hctx.To]

	m.logger.Debug().Str("state", string(state.ID)).Msg("entering state")

	if state.Temporary() {
		m.startTimer(state)
	}

	if state.OnEnter != nil {
		if err := state.OnEnter(hctx); err != nil {
			return &HookError{State: state.ID, Phase: "entry", Err: err}
		}
	}
	return nil
}

// exitState runs the exit hook, then cancels the state's dwell timer. A
// failing hook aborts the transition with state and timer untouched.
func (m *Machine) exitState(hctx *Context) error {
	state := m.table.states[hctx.From]

	m.logger.Debug().Str("state", string(state.ID)).Msg("exiting state")

	if state.OnExit != nil {
		if err := state.OnExit(hctx); err != nil {
			return &HookError{State: state.ID, Phase: "exit", Err: err}
		}
	}

	m.cancelTimer()
	return nil
}

// CurrentState returns the current state. It waits for any transition in
// progress, so hooks and guards must read Context.From/To instead.
func (m *Machine) CurrentState() StateID {
	_ = m.lock.Acquire(context.Background(), 1)
	defer m.lock.Release(1)
	return m.current
}

// CanFire reports whether cmd would currently succeed. It evaluates guards
// but runs no hooks and changes nothing.
func (m *Machine) CanFire(cmd CommandID) bool {
	_ = m.lock.Acquire(context.Background(), 1)
	defer m.lock.Release(1)

	if !m.started || m.stopped {
		return false
	}
	return m.resolve(context.Background(), m.current, cmd).edge != nil
}

// PermittedCommands lists the commands that would currently succeed, in
// registration order
func (m *Machine) PermittedCommands() []CommandID {
	_ = m.lock.Acquire(context.Background(), 1)
	defer m.lock.Release(1)

	if !m.started || m.stopped {
		return nil
	}
	return m.permitted(context.Background(), m.current)
}

// Subscribe registers an observer and returns a function that removes it
func (m *Machine) Subscribe(fn Observer) (unsubscribe func()) {
	id := m.addObserver(fn)
	var once sync.Once
	return func() {
		once.Do(func() { m.removeObserver(id) })
	}
}

func (m *Machine) addObserver(fn Observer) int {
	m.obsMu.Lock()
	defer m.obsMu.Unlock()

	m.nextObsID++
	// Copy on write so notify can iterate without holding obsMu
	observers := make([]observerEntry, len(m.observers), len(m.observers)+1)
	copy(observers, m.observers)
	m.observers = append(observers, observerEntry{id: m.nextObsID, fn: fn})
	return m.nextObsID
}

func (m *Machine) removeObserver(id int) {
	m.obsMu.Lock()
	defer m.obsMu.Unlock()

	observers := make([]observerEntry, 0, len(m.observers))
	for _, o := range m.observers {
		if o.id != id {
			observers = append(observers, o)
		}
	}
	m.observers = observers
}

func (m *Machine) notify(c Change) {
	m.obsMu.Lock()
	observers := m.observers
	m.obsMu.Unlock()

	for _, o := range observers {
		o.fn(c)
	}
}

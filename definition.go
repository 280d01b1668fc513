package tempfsm

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// Definition holds the FSM structure before building a Machine
type Definition struct {
	states         map[StateID]*State
	order          []StateID
	transitions    []Transition
	initial        StateID
	timeoutCommand CommandID
}

// NewDefinition creates a new FSM definition builder
func NewDefinition() *Definition {
	return &Definition{
		states:         make(map[StateID]*State),
		transitions:    make([]Transition, 0),
		timeoutCommand: DefaultTimeoutCommand,
	}
}

// State adds a state to the definition. Declaring the same state twice
// replaces the earlier declaration.
func (d *Definition) State(id StateID, opts ...StateOption) *Definition {
	s := &State{ID: id}
	for _, opt := range opts {
		opt(s)
	}
	if _, ok := d.states[id]; !ok {
		d.order = append(d.order, id)
	}
	d.states[id] = s
	return d
}

// Transition adds an edge from one state to a different state
func (d *Definition) Transition(from StateID, cmd CommandID, to StateID, opts ...TransitionOption) *Definition {
	t := Transition{
		From:    from,
		Command: cmd,
		To:      to,
	}
	for _, opt := range opts {
		opt(&t)
	}
	d.transitions = append(d.transitions, t)
	return d
}

// Reentry adds an edge that leaves and re-enters the same state, running
// its exit and entry hooks
func (d *Definition) Reentry(state StateID, cmd CommandID, opts ...TransitionOption) *Definition {
	t := Transition{
		From:    state,
		Command: cmd,
		To:      state,
		Reentry: true,
	}
	for _, opt := range opts {
		opt(&t)
	}
	d.transitions = append(d.transitions, t)
	return d
}

// Initial sets the bootstrap state
func (d *Definition) Initial(id StateID) *Definition {
	d.initial = id
	return d
}

// TimeoutCommand sets the synthetic command injected on timer expiry
func (d *Definition) TimeoutCommand(cmd CommandID) *Definition {
	d.timeoutCommand = cmd
	return d
}

// Validate checks the definition for errors. All problems are reported in a
// single ConfigurationError.
func (d *Definition) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if d.initial == "" {
		add("no initial state defined")
	} else if _, ok := d.states[d.initial]; !ok {
		add("initial state %q not defined", d.initial)
	}

	if d.timeoutCommand == "" {
		add("timeout command is empty")
	}

	for _, id := range d.order {
		state := d.states[id]
		if state.TimeoutTarget == "" {
			if state.Timeout != 0 {
				add("state %q has a timeout but no timeout target", id)
			}
			continue
		}
		if state.Timeout <= 0 {
			add("temporary state %q has non-positive duration %s", id, state.Timeout)
		}
		if _, ok := d.states[state.TimeoutTarget]; !ok {
			add("state %q timeout target %q not defined", id, state.TimeoutTarget)
		}
	}

	// Edges sharing a (state, command) pair must all be guarded, otherwise
	// the winner would depend on registration order alone.
	groups := make(map[tableKey][]*Transition)
	var keys []tableKey
	for i := range d.transitions {
		t := &d.transitions[i]
		if _, ok := d.states[t.From]; !ok {
			add("transition from undefined state %q", t.From)
		}
		if _, ok := d.states[t.To]; !ok {
			add("transition to undefined state %q", t.To)
		}
		if t.Command == "" {
			add("transition from %q has an empty command", t.From)
		}
		if t.From == t.To && !t.Reentry {
			add("transition %q -> %q on %q targets its source; declare it with Reentry", t.From, t.To, t.Command)
		}
		if t.Command == d.timeoutCommand {
			if s, ok := d.states[t.From]; ok && s.Temporary() {
				add("temporary state %q already times out to %q; remove the explicit %q transition",
					t.From, s.TimeoutTarget, t.Command)
			}
		}

		k := tableKey{t.From, t.Command}
		if _, seen := groups[k]; !seen {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], t)
	}

	for _, k := range keys {
		edges := groups[k]
		if len(edges) < 2 {
			continue
		}
		for _, t := range edges {
			if t.Guard == nil {
				add("ambiguous transitions from %q on %q: %d edges and at least one has no guard",
					k.state, k.command, len(edges))
				break
			}
		}
	}

	if len(problems) > 0 {
		return &ConfigurationError{Problems: problems}
	}
	return nil
}

// Build creates a Machine from the definition. The transition table is
// compiled once here and never changes afterwards.
func (d *Definition) Build(opts ...MachineOption) (*Machine, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	m := &Machine{
		lock:          semaphore.NewWeighted(1),
		name:          uuid.NewString(),
		logger:        Logger,
		expiryTimeout: defaultExpiryLockTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}

	table, err := d.compile(m.durations)
	if err != nil {
		return nil, err
	}
	m.table = table
	m.logger = m.logger.With().Str("machine", m.name).Logger()
	if m.onExpiryError == nil {
		m.onExpiryError = m.logExpiryError
	}

	return m, nil
}

// compile copies the definition into an immutable table, applying duration
// overrides and generating the timeout edge of every temporary state
func (d *Definition) compile(durations map[StateID]time.Duration) (*table, error) {
	var problems []string
	for id, dur := range durations {
		s, ok := d.states[id]
		switch {
		case !ok:
			problems = append(problems, fmt.Sprintf("duration given for undefined state %q", id))
		case !s.Temporary():
			problems = append(problems, fmt.Sprintf("duration given for state %q which is not temporary", id))
		case dur <= 0:
			problems = append(problems, fmt.Sprintf("non-positive duration %s for state %q", dur, id))
		}
	}
	if len(problems) > 0 {
		sort.Strings(problems)
		return nil, &ConfigurationError{Problems: problems}
	}

	tb := &table{
		states:         make(map[StateID]State, len(d.states)),
		order:          append([]StateID(nil), d.order...),
		edges:          make(map[tableKey][]*Transition),
		initial:        d.initial,
		timeoutCommand: d.timeoutCommand,
	}

	for _, id := range d.order {
		s := *d.states[id]
		if dur, ok := durations[id]; ok {
			s.Timeout = dur
		}
		tb.states[id] = s
	}

	transitions := make([]Transition, 0, len(d.transitions)+len(d.order))
	transitions = append(transitions, d.transitions...)
	for _, id := range d.order {
		s := tb.states[id]
		if s.Temporary() {
			transitions = append(transitions, Transition{
				From:    id,
				Command: d.timeoutCommand,
				To:      s.TimeoutTarget,
				timeout: true,
			})
		}
	}
	for i := range transitions {
		t := &transitions[i]
		k := tableKey{t.From, t.Command}
		if _, ok := tb.edges[k]; !ok {
			tb.commands = append(tb.commands, k)
		}
		tb.edges[k] = append(tb.edges[k], t)
	}
	tb.transitions = transitions

	return tb, nil
}

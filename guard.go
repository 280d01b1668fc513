package tempfsm

import "context"

type tableKey struct {
	state   StateID
	command CommandID
}

// table is the compiled, read-only transition table
type table struct {
	states         map[StateID]State
	order          []StateID
	transitions    []Transition
	edges          map[tableKey][]*Transition
	commands       []tableKey // (state, command) pairs in registration order
	initial        StateID
	timeoutCommand CommandID
}

// lookup returns the candidate edges for a pair in registration order
func (tb *table) lookup(state StateID, cmd CommandID) []*Transition {
	return tb.edges[tableKey{state, cmd}]
}

// resolution is the outcome of evaluating a pair's edges against guards
type resolution struct {
	edge  *Transition
	unmet []string
	err   error // ErrUndefinedTransition or ErrNoMatchingGuard
}

// resolve picks the first edge whose guard passes. A missing guard always
// passes. Guards see a context marked with the machine so a guard that
// tries to fire is reported as reentrant.
func (m *Machine) resolve(ctx context.Context, state StateID, cmd CommandID) resolution {
	edges := m.table.lookup(state, cmd)
	if len(edges) == 0 {
		return resolution{err: ErrUndefinedTransition}
	}

	var unmet []string
	for _, t := range edges {
		if t.Guard == nil {
			return resolution{edge: t}
		}
		gctx := m.makeContext(ctx, cmd, state, t.To)
		gctx.Reentry = t.Reentry
		if t.Guard(gctx) {
			return resolution{edge: t}
		}
		m.logger.Debug().
			Str("state", string(state)).
			Str("command", string(cmd)).
			Str("to", string(t.To)).
			Str("guard", t.label()).
			Msg("guard rejected transition")
		unmet = append(unmet, t.label())
	}

	return resolution{unmet: unmet, err: ErrNoMatchingGuard}
}

// permitted lists the commands that would currently succeed from state
func (m *Machine) permitted(ctx context.Context, state StateID) []CommandID {
	var cmds []CommandID
	for _, k := range m.table.commands {
		if k.state != state {
			continue
		}
		if r := m.resolve(ctx, state, k.command); r.edge != nil {
			cmds = append(cmds, k.command)
		}
	}
	return cmds
}

package tempfsm

import "time"

// StateInfo describes one state of a built machine
type StateInfo struct {
	ID            StateID
	Initial       bool
	Temporary     bool
	Timeout       time.Duration
	TimeoutTarget StateID
	HasEntry      bool
	HasExit       bool
}

// TransitionInfo describes one edge of a built machine
type TransitionInfo struct {
	From       StateID
	Command    CommandID
	To         StateID
	GuardLabel string
	Reentry    bool
	Timeout    bool // Generated from a temporary state's timeout
}

// Info is a read-only description of a machine's transition table
type Info struct {
	Name           string
	Initial        StateID
	TimeoutCommand CommandID
	States         []StateInfo
	Transitions    []TransitionInfo
}

// Info describes the machine's states and edges in declaration order
func (m *Machine) Info() Info {
	tb := m.table
	info := Info{
		Name:           m.name,
		Initial:        tb.initial,
		TimeoutCommand: tb.timeoutCommand,
		States:         make([]StateInfo, 0, len(tb.order)),
		Transitions:    make([]TransitionInfo, 0, len(tb.transitions)),
	}

	for _, id := range tb.order {
		s := tb.states[id]
		info.States = append(info.States, StateInfo{
			ID:            id,
			Initial:       id == tb.initial,
			Temporary:     s.Temporary(),
			Timeout:       s.Timeout,
			TimeoutTarget: s.TimeoutTarget,
			HasEntry:      s.OnEnter != nil,
			HasExit:       s.OnExit != nil,
		})
	}

	for i := range tb.transitions {
		t := &tb.transitions[i]
		info.Transitions = append(info.Transitions, TransitionInfo{
			From:       t.From,
			Command:    t.Command,
			To:         t.To,
			GuardLabel: t.label(),
			Reentry:    t.Reentry,
			Timeout:    t.timeout,
		})
	}

	return info
}

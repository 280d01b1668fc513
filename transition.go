package tempfsm

// Guard gates whether a transition may be taken. Guards must be pure: they
// read the supplied Context and external conditions, nothing else.
type Guard func(ctx *Context) bool

// Transition defines one candidate edge for a (state, command) pair
type Transition struct {
	From       StateID
	Command    CommandID
	To         StateID
	Guard      Guard  // Optional: must return true to take transition
	GuardLabel string // Optional: shown in errors and graphs
	Reentry    bool   // To == From, hooks still run

	// Set on edges generated from WithTimeout
	timeout bool
}

// TransitionOption is a functional option for configuring a Transition
type TransitionOption func(*Transition)

// WithGuard sets a guard condition for the transition
func WithGuard(fn Guard) TransitionOption {
	return func(t *Transition) {
		t.Guard = fn
	}
}

// WithGuardLabel sets a guard condition along with a human readable label
func WithGuardLabel(label string, fn Guard) TransitionOption {
	return func(t *Transition) {
		t.Guard = fn
		t.GuardLabel = label
	}
}

// WithGuards sets multiple guard conditions that must ALL pass (AND logic)
func WithGuards(guards ...Guard) TransitionOption {
	return func(t *Transition) {
		t.Guard = func(ctx *Context) bool {
			for _, g := range guards {
				if !g(ctx) {
					return false
				}
			}
			return true
		}
	}
}

// label returns the guard label, or a placeholder for unlabelled guards
func (t *Transition) label() string {
	if t.GuardLabel != "" {
		return t.GuardLabel
	}
	if t.Guard != nil {
		return "guard"
	}
	return ""
}

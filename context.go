package tempfsm

import (
	"context"

	"github.com/rs/zerolog"
)

// Context is passed to hooks and guards. It describes the transition being
// evaluated or executed and gives no way to mutate the machine.
type Context struct {
	// Ctx is marked with the owning machine; pass it on to anything that
	// may end up calling Fire so reentrancy is reported instead of deadlocking.
	Ctx     context.Context
	Machine string
	Command CommandID
	From    StateID
	To      StateID
	Reentry bool
	Auto    bool // Transition was caused by a dwell timer expiry
	Data    any  // User-provided application data
	Logger  zerolog.Logger
}

type firingKey struct{}

// withFiring marks ctx as belonging to a Fire in progress on m
func withFiring(ctx context.Context, m *Machine) context.Context {
	return context.WithValue(ctx, firingKey{}, m)
}

// firingOn reports whether ctx was handed out by a Fire in progress on m
func firingOn(ctx context.Context, m *Machine) bool {
	owner, ok := ctx.Value(firingKey{}).(*Machine)
	return ok && owner == m
}

// makeContext creates a context for callbacks
func (m *Machine) makeContext(ctx context.Context, cmd CommandID, from, to StateID) *Context {
	return &Context{
		Ctx:     withFiring(ctx, m),
		Machine: m.name,
		Command: cmd,
		From:    from,
		To:      to,
		Data:    m.data,
		Logger:  m.logger,
	}
}

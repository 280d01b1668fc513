package tempfsm

import "github.com/rs/zerolog"

// StateID is a unique identifier for a state
type StateID string

// CommandID is a unique identifier for a command
type CommandID string

// DefaultTimeoutCommand is the synthetic command injected when a dwell timer expires
const DefaultTimeoutCommand CommandID = "timeout"

// Logger is the default logger used when none is provided
var Logger = zerolog.Nop()

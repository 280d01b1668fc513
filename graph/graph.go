// Package graph renders a machine's transition table as DOT or Mermaid text
// for visualization. It only reads the table description and has no effect
// on the machine.
package graph

import (
	"strings"

	"github.com/librescoot/tempfsm"
)

// Describer is anything that can describe its transition table.
// *tempfsm.Machine satisfies it.
type Describer interface {
	Info() tempfsm.Info
}

// Style renders a table description
type Style interface {
	Format(info tempfsm.Info) string
}

// Export renders the table of d using style
func Export(d Describer, style Style) string {
	return style.Format(d.Info())
}

// edgeLabel builds "command [guard]" labels shared by both styles
func edgeLabel(t tempfsm.TransitionInfo, timeout string) string {
	var sb strings.Builder
	sb.WriteString(string(t.Command))
	if t.Timeout && timeout != "" {
		sb.WriteString(" (")
		sb.WriteString(timeout)
		sb.WriteString(")")
	}
	if t.GuardLabel != "" {
		sb.WriteString(" [")
		sb.WriteString(t.GuardLabel)
		sb.WriteString("]")
	}
	return sb.String()
}

// timeouts maps each temporary state to its formatted dwell duration
func timeouts(info tempfsm.Info) map[tempfsm.StateID]string {
	out := make(map[tempfsm.StateID]string)
	for _, s := range info.States {
		if s.Temporary {
			out[s.ID] = s.Timeout.String()
		}
	}
	return out
}

package graph

import (
	"fmt"
	"strings"

	"github.com/librescoot/tempfsm"
)

// UmlDot generates DOT graphs in basic UML style. Temporary states list
// their dwell bound; generated timeout edges are dashed.
type UmlDot struct{}

// Format implements Style
func (UmlDot) Format(info tempfsm.Info) string {
	var sb strings.Builder
	sb.WriteString("digraph {\n")
	sb.WriteString("compound=true;\n")
	sb.WriteString("node [shape=Mrecord]\n")
	sb.WriteString("rankdir=\"LR\"\n")

	for _, s := range info.States {
		sb.WriteString(formatDotState(s))
	}

	dwell := timeouts(info)
	for _, t := range info.Transitions {
		style := "solid"
		if t.Timeout {
			style = "dashed"
		}
		sb.WriteString(fmt.Sprintf("\"%s\" -> \"%s\" [style=\"%s\", label=\"%s\"];\n",
			EscapeLabel(string(t.From)), EscapeLabel(string(t.To)), style,
			EscapeLabel(edgeLabel(t, dwell[t.From]))))
	}

	if info.Initial != "" {
		sb.WriteString(" init [label=\"\", shape=point];\n")
		sb.WriteString(fmt.Sprintf(" init -> \"%s\"[style = \"solid\"]\n", EscapeLabel(string(info.Initial))))
	}
	sb.WriteString("}")
	return sb.String()
}

func formatDotState(s tempfsm.StateInfo) string {
	name := EscapeLabel(string(s.ID))

	var details []string
	if s.HasEntry {
		details = append(details, "entry / hook")
	}
	if s.HasExit {
		details = append(details, "exit / hook")
	}
	if s.Temporary {
		details = append(details, fmt.Sprintf("after %s / %s", s.Timeout, EscapeLabel(string(s.TimeoutTarget))))
	}

	if len(details) == 0 {
		return fmt.Sprintf("\"%s\" [label=\"%s\"];\n", name, name)
	}
	return fmt.Sprintf("\"%s\" [label=\"%s|%s\"];\n", name, name, strings.Join(details, "\\n"))
}

// EscapeLabel escapes special characters in a label
func EscapeLabel(label string) string {
	label = strings.ReplaceAll(label, "\\", "\\\\")
	label = strings.ReplaceAll(label, "\"", "\\\"")
	return label
}

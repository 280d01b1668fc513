package graph

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/librescoot/tempfsm"
)

// Mermaid generates Mermaid state diagrams
type Mermaid struct {
	// Direction is emitted as "direction <Direction>" when set, e.g. "LR".
	Direction string
}

// Format implements Style
func (s Mermaid) Format(info tempfsm.Info) string {
	var sb strings.Builder
	sb.WriteString("stateDiagram-v2")
	if s.Direction != "" {
		sb.WriteString("\n\tdirection ")
		sb.WriteString(s.Direction)
	}

	// Aliases for names Mermaid cannot use as identifiers
	for _, st := range info.States {
		if id := sanitize(string(st.ID)); id != string(st.ID) {
			sb.WriteString(fmt.Sprintf("\n\t%s : %s", id, st.ID))
		}
	}

	if info.Initial != "" {
		sb.WriteString(fmt.Sprintf("\n\t[*] --> %s", sanitize(string(info.Initial))))
	}

	dwell := timeouts(info)
	for _, t := range info.Transitions {
		sb.WriteString(fmt.Sprintf("\n\t%s --> %s : %s",
			sanitize(string(t.From)), sanitize(string(t.To)), edgeLabel(t, dwell[t.From])))
	}

	return sb.String()
}

// sanitize replaces characters Mermaid does not accept in state identifiers
func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			return r
		}
		return '_'
	}, name)
}

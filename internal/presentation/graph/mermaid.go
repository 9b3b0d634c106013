package graph

import (
	"fmt"
	"strings"
)

// Edge is one interaction between two agents.
type Edge struct {
	From  string
	To    string
	Label string
	Sync  bool // request/response rather than an update event
}

// Topology produces a Mermaid flowchart of agents and the interactions between them.
// Synchronous calls are drawn as solid arrows, update events as dotted ones.
func Topology(agents []string, edges []Edge) string {
	var sb strings.Builder
	sb.WriteString("graph LR\n")

	for _, a := range agents {
		sb.WriteString(fmt.Sprintf("    %s[\"%s\"]\n", sanitizeMermaidID(a), a))
	}

	for _, e := range edges {
		from, to := sanitizeMermaidID(e.From), sanitizeMermaidID(e.To)
		label := strings.ReplaceAll(e.Label, "\"", "'")
		arrow := "-."
		closer := ".->"
		if e.Sync {
			arrow, closer = "--", "-->"
		}
		if label == "" {
			sb.WriteString(fmt.Sprintf("    %s %s%s %s\n", from, arrow, closer, to))
			continue
		}
		sb.WriteString(fmt.Sprintf("    %s %s \"%s\" %s %s\n", from, arrow, label, closer, to))
	}
	return sb.String()
}

// StateDiagram produces a Mermaid state diagram. next returns the successors of a state;
// states without successors are drawn as final. current, if set, is highlighted.
func StateDiagram(states []string, next func(string) []string, current string) string {
	var sb strings.Builder
	sb.WriteString("stateDiagram-v2\n")
	if len(states) > 0 {
		sb.WriteString(fmt.Sprintf("    [*] --> %s\n", sanitizeMermaidID(states[0])))
	}

	for _, s := range states {
		successors := next(s)
		for _, to := range successors {
			sb.WriteString(fmt.Sprintf("    %s --> %s\n", sanitizeMermaidID(s), sanitizeMermaidID(to)))
		}
		if len(successors) == 0 {
			sb.WriteString(fmt.Sprintf("    %s --> [*]\n", sanitizeMermaidID(s)))
		}
	}

	if current != "" {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
		sb.WriteString(fmt.Sprintf("    class %s current\n", sanitizeMermaidID(current)))
	}
	return sb.String()
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	return s
}

package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/sluice/pkg/domain"
)

// Overlay contains run state to highlight on the graph.
type Overlay struct {
	CurrentNode string
	// Running lists job nodes whose job was submitted and not yet observed
	// as finished.
	Running []string
}

// OverlayFor derives the overlay from a schedule's persisted position.
func OverlayFor(s *domain.Schedule) *Overlay {
	o := &Overlay{CurrentNode: s.CurrentNode}
	for _, name := range s.JobNames() {
		if s.Jobs[name].HasStarted {
			o.Running = append(o.Running, name)
		}
	}
	return o
}

// GenerateMermaid produces a Mermaid flowchart of the schedule.
// It applies semantic styling:
// - Start node: ((Circle))
// - Job: [[Subroutine]]
// - WAIT: {{Hexagon}}
// - EXIT: (((Double circle)))
// - Operator: [Rectangle]
// Forks draw the true branch solid and the false branch dotted, both
// labelled with the condition variable.
func GenerateMermaid(s *domain.Schedule, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, name := range nodeNames(s) {
		safeID := sanitizeMermaidID(name)
		opener, closer := "[", "]"
		label := name

		switch ref := s.Resolve(name); {
		case ref.Kind == domain.NodeKindExit:
			opener, closer = "(((", ")))"
		case name == s.OriginalStartNode:
			opener, closer = "((", "))"
		case ref.Kind == domain.NodeKindJob:
			opener, closer = "[[", "]]"
			if job := s.Jobs[name]; job.CurrentName != name {
				label = fmt.Sprintf("%s <br/> %s", name, job.CurrentName)
			}
		case ref.Kind == domain.NodeKindWait:
			opener, closer = "{{", "}}"
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", safeID, opener, escape(label), closer))
	}

	for _, e := range s.Edges {
		from, to := sanitizeMermaidID(e.From), sanitizeMermaidID(e.To)
		if !e.IsFork {
			sb.WriteString(fmt.Sprintf("    %s --> %s\n", from, to))
			continue
		}
		cond := escape(e.Condition)
		sb.WriteString(fmt.Sprintf("    %s -- \"%s\" --> %s\n", from, cond, to))
		sb.WriteString(fmt.Sprintf("    %s -. \"not %s\" .-> %s\n", from, cond, sanitizeMermaidID(e.ToIfFalse)))
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef running fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
		for _, name := range overlay.Running {
			sb.WriteString(fmt.Sprintf("    class %s running;\n", sanitizeMermaidID(name)))
		}
		if overlay.CurrentNode != "" && overlay.CurrentNode != domain.Undefined {
			sb.WriteString(fmt.Sprintf("    class %s current;\n", sanitizeMermaidID(overlay.CurrentNode)))
		}
	}

	return sb.String()
}

// nodeNames lists jobs and operators, plus the reserved nodes the edges use.
func nodeNames(s *domain.Schedule) []string {
	names := append(s.JobNames(), s.OperatorNames()...)
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		seen[n] = true
	}
	var reserved []string
	for _, e := range s.Edges {
		for _, n := range append([]string{e.From}, e.Targets()...) {
			if domain.IsReservedName(n) && !seen[n] {
				seen[n] = true
				reserved = append(reserved, n)
			}
		}
	}
	sort.Strings(reserved)
	return append(names, reserved...)
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

// sanitizeMermaidID maps operator names such as "count=count_PLUS_1" or
// "MOVE_${dir}/a.txt_TO_b.txt" to valid Mermaid identifiers.
func sanitizeMermaidID(id string) string {
	var sb strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	return sb.String()
}

package tui

import (
	"fmt"
	"strings"

	"github.com/aretw0/sluice/internal/validator"
	"github.com/aretw0/sluice/pkg/domain"
)

// InspectMarkdown describes a schedule as markdown tables. A nil report
// omits the validation section.
func InspectMarkdown(s *domain.Schedule, report *validator.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", s.Name)
	fmt.Fprintf(&b, "- **Current node:** `%s`\n", s.CurrentNode)
	fmt.Fprintf(&b, "- **Start node:** `%s`\n", s.OriginalStartNode)
	if s.Email != "" {
		fmt.Fprintf(&b, "- **Notify:** %s\n", s.Email)
	}

	if names := s.Variables.Names(""); len(names) > 0 {
		b.WriteString("\n## Variables\n\n| Name | Kind | Current | Original |\n|---|---|---|---|\n")
		for _, name := range names {
			v, _ := s.Variables.Lookup(name)
			fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", cell(name), v.Kind(), cell(v.Current.String()), cell(v.Original.String()))
		}
	}

	if names := s.OperatorNames(); len(names) > 0 {
		b.WriteString("\n## Operators\n\n| Node | Type | Input 1 | Input 2 | Output |\n|---|---|---|---|---|\n")
		for _, name := range names {
			op := s.Operators[name]
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n", cell(name), op.Kind, cell(op.Input1), cell(op.Input2), cell(op.Output))
		}
	}

	if names := s.JobNames(); len(names) > 0 {
		b.WriteString("\n## Jobs\n\n| Node | Instance | Mode | Started |\n|---|---|---|---|\n")
		for _, name := range names {
			job := s.Jobs[name]
			fmt.Fprintf(&b, "| %s | %s | %s | %t |\n", cell(name), cell(job.CurrentName), job.Mode, job.HasStarted)
		}
	}

	if len(s.Edges) > 0 {
		b.WriteString("\n## Edges\n\n| From | To | If false | Condition |\n|---|---|---|---|\n")
		for _, e := range s.Edges {
			ifFalse, cond := "", ""
			if e.IsFork {
				ifFalse, cond = e.ToIfFalse, e.Condition
			}
			fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", cell(e.From), cell(e.To), cell(ifFalse), cell(cond))
		}
	}

	if report != nil {
		b.WriteString("\n## Validation\n\n")
		if len(report.Issues) == 0 {
			b.WriteString("No issues found.\n")
		}
		for _, issue := range report.Issues {
			fmt.Fprintf(&b, "- **%s:** %s\n", issue.Severity, issue.Message)
		}
	}
	return b.String()
}

// cell escapes pipes so names like "a|b" keep the table intact.
func cell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

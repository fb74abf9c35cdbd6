package validator

import (
	"fmt"
	"strings"

	"github.com/aretw0/sluice/pkg/domain"
)

// Severity grades a reported issue. Only errors refuse a run.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one finding of Validate.
type Issue struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s", i.Severity, i.Message)
}

// Report lists every issue found in a schedule. It is returned as an error
// when a schedule is refused.
type Report struct {
	Issues []Issue `json:"issues"`
}

func (r *Report) errorf(format string, args ...any) {
	r.Issues = append(r.Issues, Issue{Severity: SeverityError, Message: fmt.Sprintf(format, args...)})
}

func (r *Report) warnf(format string, args ...any) {
	r.Issues = append(r.Issues, Issue{Severity: SeverityWarning, Message: fmt.Sprintf(format, args...)})
}

// Valid reports whether no error was found. Warnings do not count.
func (r *Report) Valid() bool {
	return len(r.Errors()) == 0
}

// Errors returns the error-level issues.
func (r *Report) Errors() []Issue {
	return r.filter(SeverityError)
}

// Warnings returns the warning-level issues.
func (r *Report) Warnings() []Issue {
	return r.filter(SeverityWarning)
}

func (r *Report) filter(sev Severity) []Issue {
	var out []Issue
	for _, i := range r.Issues {
		if i.Severity == sev {
			out = append(out, i)
		}
	}
	return out
}

func (r *Report) Error() string {
	errs := r.Errors()
	lines := make([]string, len(errs))
	for i, issue := range errs {
		lines[i] = issue.Message
	}
	return fmt.Sprintf("found %d errors:\n- %s", len(errs), strings.Join(lines, "\n- "))
}

// Validate checks a schedule without mutating it.
func Validate(s *domain.Schedule) *Report {
	r := &Report{}
	checkNames(s, r)
	checkEdges(s, r)
	checkOperators(s, r)
	checkStart(s, r)
	checkVariables(s, r)
	return r
}

// checkNames makes sure every node name classifies as exactly one kind.
func checkNames(s *domain.Schedule, r *Report) {
	for _, name := range s.JobNames() {
		if name == domain.Undefined || domain.IsReservedName(name) {
			r.errorf("job '%s' uses a reserved name", name)
		}
		if _, ok := s.Operators[name]; ok {
			r.errorf("'%s' is both a job and an operator", name)
		}
	}
}

func checkEdges(s *domain.Schedule, r *Report) {
	outgoing := make(map[string]int)
	for _, e := range s.Edges {
		outgoing[e.From]++
		if !s.IsNode(e.From) {
			r.errorf("edge from unknown node '%s'", e.From)
		}
		if s.Resolve(e.From).Kind == domain.NodeKindExit {
			r.errorf("edge leaves the EXIT node")
		}
		for _, to := range e.Targets() {
			if !s.IsNode(to) {
				r.errorf("edge from '%s' leads to unknown node '%s'", e.From, to)
			}
		}
		if e.IsFork {
			kind, ok := s.Variables.Kind(e.Condition)
			switch {
			case !ok:
				r.errorf("fork from '%s' uses undeclared variable '%s'", e.From, e.Condition)
			case kind != domain.KindBool:
				r.errorf("fork from '%s' uses %s variable '%s', want bool", e.From, kind, e.Condition)
			}
		}
	}
	for from, n := range outgoing {
		if n > 1 {
			r.errorf("node '%s' has %d outgoing edges", from, n)
		}
	}

	for _, name := range append(s.JobNames(), s.OperatorNames()...) {
		if s.Resolve(name).Kind == domain.NodeKindExit || s.Operators[name].Kind == domain.OpExit {
			continue
		}
		if outgoing[name] == 0 {
			r.warnf("node '%s' has no outgoing edge; the run stops there", name)
		}
	}
}

func checkOperators(s *domain.Schedule, r *Report) {
	for _, name := range s.OperatorNames() {
		op := s.Operators[name]
		if err := op.Check(); err != nil {
			r.errorf("operator '%s': %v", name, err)
			continue
		}
		if domain.IsReservedName(name) && op.Kind != domain.OpExit {
			r.errorf("operator '%s' uses a reserved name", name)
		}
		sig, _ := op.Kind.Signature()
		checkSlot(s, r, name, "input1", op.Input1, sig.Input1, false)
		checkSlot(s, r, name, "input2", op.Input2, sig.Input2, false)
		checkSlot(s, r, name, "output", op.Output, sig.Output, true)
	}
}

// checkSlot verifies that a slot resolves. Variable slots must name a declared
// variable of the slot kind; literal slots accept either a variable or a
// parseable constant.
func checkSlot(s *domain.Schedule, r *Report, node, slot, value string, op *domain.Operand, output bool) {
	if op == nil || value == domain.Undefined || value == "" {
		return
	}
	kind, ok := s.Variables.Kind(value)
	if ok {
		if kind != op.Kind {
			r.errorf("operator '%s' %s: variable '%s' is %s, want %s", node, slot, value, kind, op.Kind)
		}
		return
	}
	if output || !op.Literal {
		r.errorf("operator '%s' %s: undeclared %s variable '%s'", node, slot, op.Kind, value)
		return
	}
	if _, err := domain.ParseValue(op.Kind, value); err != nil {
		r.errorf("operator '%s' %s: '%s' is neither a variable nor a %s constant", node, slot, value, op.Kind)
	}
}

func checkStart(s *domain.Schedule, r *Report) {
	if len(s.Jobs) == 0 && len(s.Operators) == 0 {
		r.errorf("schedule has no nodes")
		return
	}
	start := s.OriginalStartNode
	if start == "" || start == domain.Undefined {
		r.errorf("start node is not set")
		return
	}
	if !s.IsNode(start) {
		r.errorf("start node '%s' does not exist", start)
		return
	}
	if cur := s.CurrentNode; cur != "" && cur != domain.Undefined && !s.IsNode(cur) {
		r.errorf("current node '%s' does not exist", cur)
	}
	if !reachesExit(s, start) {
		r.warnf("no path from '%s' reaches EXIT; the run only ends on abort", start)
	}
}

// reachesExit crawls the graph breadth-first from start. EXIT and any exit
// operator end a run.
func reachesExit(s *domain.Schedule, start string) bool {
	visited := make(map[string]bool)
	queue := []string{start}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if visited[current] {
			continue
		}
		visited[current] = true

		if s.Resolve(current).Kind == domain.NodeKindExit {
			return true
		}
		if op, ok := s.Operators[current]; ok && op.Kind == domain.OpExit && !s.IsJob(current) {
			return true
		}
		for _, e := range s.Edges {
			if e.From != current {
				continue
			}
			for _, to := range e.Targets() {
				if !visited[to] {
					queue = append(queue, to)
				}
			}
		}
	}
	return false
}

func checkVariables(s *domain.Schedule, r *Report) {
	for _, name := range s.Variables.Names("") {
		if len(s.References(name)) == 0 {
			r.warnf("variable '%s' is never used", name)
		}
	}
}

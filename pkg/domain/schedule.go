package domain

import (
	"fmt"
	"slices"
	"sort"
)

// Schedule is the persisted aggregate: variables, operators, jobs, edges and
// the current execution position.
type Schedule struct {
	Name              string
	Email             string
	CurrentNode       string
	OriginalStartNode string

	Variables *VariableStore
	Operators map[string]Operator
	Jobs      map[string]Job
	Edges     []Edge
}

// NewSchedule creates an empty schedule.
func NewSchedule(name string) *Schedule {
	s := &Schedule{Name: name}
	s.Clear()
	return s
}

// Clear drops every variable, node and edge. The name is kept.
func (s *Schedule) Clear() {
	s.Email = ""
	s.CurrentNode = Undefined
	s.OriginalStartNode = Undefined
	s.Variables = NewVariableStore()
	s.Operators = make(map[string]Operator)
	s.Jobs = make(map[string]Job)
	s.Edges = nil
}

// Reset restores every variable to its original value, clears the started
// flag of every job and moves back to the start node.
func (s *Schedule) Reset() {
	s.Variables.Reset()
	for name, job := range s.Jobs {
		job.HasStarted = false
		s.Jobs[name] = job
	}
	s.CurrentNode = s.OriginalStartNode
}

// Resolve classifies a node name.
func (s *Schedule) Resolve(name string) NodeRef {
	switch {
	case name == NodeWait:
		return NodeRef{Kind: NodeKindWait, Name: name}
	case name == NodeExit:
		return NodeRef{Kind: NodeKindExit, Name: name}
	}
	if _, ok := s.Jobs[name]; ok {
		return NodeRef{Kind: NodeKindJob, Name: name}
	}
	if _, ok := s.Operators[name]; ok {
		return NodeRef{Kind: NodeKindOperator, Name: name}
	}
	return NodeRef{Kind: NodeKindUndefined, Name: name}
}

// IsNode reports whether name resolves to any node.
func (s *Schedule) IsNode(name string) bool { return s.Resolve(name).Exists() }

// IsJob reports whether name is a job node.
func (s *Schedule) IsJob(name string) bool { return s.Resolve(name).Kind == NodeKindJob }

// SetCurrentNode moves the execution position.
func (s *Schedule) SetCurrentNode(name string) error {
	if !s.IsNode(name) {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, name)
	}
	s.CurrentNode = name
	return nil
}

// SetOriginalStartNode sets the node Reset returns to. A schedule without a
// position also moves there.
func (s *Schedule) SetOriginalStartNode(name string) error {
	if !s.IsNode(name) {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, name)
	}
	s.OriginalStartNode = name
	if s.CurrentNode == "" || s.CurrentNode == Undefined {
		s.CurrentNode = name
	}
	return nil
}

// FindJobByCurrentName returns the node owning the concrete job name.
func (s *Schedule) FindJobByCurrentName(current string) (string, bool) {
	for _, name := range s.JobNames() {
		if s.Jobs[name].CurrentName == current {
			return name, true
		}
	}
	return "", false
}

// JobNames returns the sorted job node names.
func (s *Schedule) JobNames() []string {
	return sortedKeys(s.Jobs)
}

// OperatorNames returns the sorted operator node names.
func (s *Schedule) OperatorNames() []string {
	return sortedKeys(s.Operators)
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SetVariable assigns text to a variable, parsing it with the kind of the
// existing variable. A new variable gets a kind inferred from the text.
func (s *Schedule) SetVariable(name, text string) error {
	if kind, ok := s.Variables.Kind(name); ok {
		val, err := ParseValue(kind, text)
		if err != nil {
			return fmt.Errorf("variable '%s': %w", name, err)
		}
		return s.Variables.Set(name, val)
	}
	return s.addVariable(name, InferValue(text))
}

// AddFloatVariable declares a new float variable.
func (s *Schedule) AddFloatVariable(name string, v float64) error {
	return s.addVariable(name, FloatValue(v))
}

// AddBooleanVariable declares a new boolean variable.
func (s *Schedule) AddBooleanVariable(name string, v bool) error {
	return s.addVariable(name, BoolValue(v))
}

// AddStringVariable declares a new string variable.
func (s *Schedule) AddStringVariable(name string, v string) error {
	return s.addVariable(name, StringValue(v))
}

func (s *Schedule) addVariable(name string, val Value) error {
	if name == "" || name == Undefined {
		return fmt.Errorf("invalid variable name %q", name)
	}
	if s.Variables.Has(name) {
		return fmt.Errorf("%w: variable '%s'", ErrNameCollision, name)
	}
	return s.Variables.Set(name, val)
}

// RemoveVariable deletes a variable that no operator or fork references.
func (s *Schedule) RemoveVariable(name string) error {
	if !s.Variables.Has(name) {
		return fmt.Errorf("%w: %s", ErrVariableNotFound, name)
	}
	if refs := s.References(name); len(refs) > 0 {
		return fmt.Errorf("%w: '%s' is used by %v", ErrVariableInUse, name, refs)
	}
	s.Variables.Delete(name)
	return nil
}

// References lists the operator nodes and forks that use a variable, either
// in a slot or through a path expansion.
func (s *Schedule) References(variable string) []string {
	var refs []string
	for _, name := range s.OperatorNames() {
		op := s.Operators[name]
		if slices.Contains(op.VariableRefs(s.Variables), variable) ||
			slices.Contains(op.PathRefs(s.Variables), variable) {
			refs = append(refs, name)
		}
	}
	for _, e := range s.Edges {
		if e.IsFork && e.Condition == variable {
			refs = append(refs, "fork:"+e.From)
		}
	}
	return refs
}

// AddOperator registers an operator node under its derived name.
func (s *Schedule) AddOperator(op Operator) (string, error) {
	if err := op.Check(); err != nil {
		return "", err
	}
	name := op.Name()
	if s.IsNode(name) {
		return "", fmt.Errorf("%w: node '%s'", ErrNameCollision, name)
	}
	s.Operators[name] = op
	return name, nil
}

// OperatorParameters returns the parameters of an operator node.
func (s *Schedule) OperatorParameters(name string) (Operator, bool) {
	op, ok := s.Operators[name]
	return op, ok
}

// SetOperatorParameters replaces the parameters of an operator node. The node
// keeps its place in the graph: edges, forks and positions that pointed at the
// old name follow the new derived name, which is returned.
func (s *Schedule) SetOperatorParameters(name string, op Operator) (string, error) {
	if _, ok := s.Operators[name]; !ok {
		return "", fmt.Errorf("%w: operator '%s'", ErrNodeNotFound, name)
	}
	if err := op.Check(); err != nil {
		return "", err
	}
	newName := op.Name()
	if newName != name && s.IsNode(newName) {
		return "", fmt.Errorf("%w: node '%s'", ErrNameCollision, newName)
	}
	delete(s.Operators, name)
	s.Operators[newName] = op
	if newName != name {
		s.renameNode(name, newName)
	}
	return newName, nil
}

func (s *Schedule) renameNode(from, to string) {
	for i := range s.Edges {
		e := &s.Edges[i]
		if e.From == from {
			e.From = to
		}
		if e.To == from {
			e.To = to
		}
		if e.IsFork && e.ToIfFalse == from {
			e.ToIfFalse = to
		}
	}
	if s.CurrentNode == from {
		s.CurrentNode = to
	}
	if s.OriginalStartNode == from {
		s.OriginalStartNode = to
	}
}

// RemoveOperator deletes an operator node and every edge touching it.
func (s *Schedule) RemoveOperator(name string) error {
	if _, ok := s.Operators[name]; !ok {
		return fmt.Errorf("%w: operator '%s'", ErrNodeNotFound, name)
	}
	delete(s.Operators, name)
	s.dropEdges(name)
	return nil
}

// AddJob registers a job node. The concrete name starts out as the node name.
func (s *Schedule) AddJob(name string, mode JobMode) error {
	if !mode.Valid() {
		return fmt.Errorf("job '%s': unknown mode %q", name, mode)
	}
	if name == "" || name == Undefined || IsReservedName(name) {
		return fmt.Errorf("invalid job name %q", name)
	}
	if s.IsNode(name) {
		return fmt.Errorf("%w: node '%s'", ErrNameCollision, name)
	}
	s.Jobs[name] = Job{CurrentName: name, Mode: mode}
	return nil
}

// RemoveJob deletes a job node and every edge touching it.
func (s *Schedule) RemoveJob(name string) error {
	if _, ok := s.Jobs[name]; !ok {
		return fmt.Errorf("%w: job '%s'", ErrNodeNotFound, name)
	}
	delete(s.Jobs, name)
	s.dropEdges(name)
	return nil
}

func (s *Schedule) dropEdges(node string) {
	kept := s.Edges[:0]
	for _, e := range s.Edges {
		if e.From == node || e.To == node || (e.IsFork && e.ToIfFalse == node) {
			continue
		}
		kept = append(kept, e)
	}
	s.Edges = kept
}

// AddExitNode registers the exit operator under the reserved EXIT name so it
// is listed and persisted with the other operators.
func (s *Schedule) AddExitNode() {
	s.Operators[NodeExit] = NewOperator(OpExit, "", "", "")
}

// AddEdge links from to to. A node keeps at most one outgoing edge or fork.
func (s *Schedule) AddEdge(from, to string) error {
	if _, ok := s.Outgoing(from); ok {
		return fmt.Errorf("%w: '%s'", ErrAmbiguousBranch, from)
	}
	s.Edges = append(s.Edges, NewEdge(from, to))
	return nil
}

// AddFork adds a conditional edge on a boolean variable.
func (s *Schedule) AddFork(from, condition, ifTrue, ifFalse string) error {
	if _, ok := s.Outgoing(from); ok {
		return fmt.Errorf("%w: '%s'", ErrAmbiguousBranch, from)
	}
	s.Edges = append(s.Edges, NewFork(from, condition, ifTrue, ifFalse))
	return nil
}

// Outgoing returns the edge leaving a node.
func (s *Schedule) Outgoing(from string) (Edge, bool) {
	for _, e := range s.Edges {
		if e.From == from {
			return e, true
		}
	}
	return Edge{}, false
}

// NextNode evaluates the edge leaving from.
func (s *Schedule) NextNode(from string) (string, error) {
	e, ok := s.Outgoing(from)
	if !ok {
		return "", fmt.Errorf("%w: '%s'", ErrNoOutgoingEdge, from)
	}
	return e.Next(s.Variables)
}

// Clone returns a deep copy.
func (s *Schedule) Clone() *Schedule {
	next := *s
	next.Variables = s.Variables.Clone()
	next.Operators = make(map[string]Operator, len(s.Operators))
	for k, v := range s.Operators {
		next.Operators[k] = v
	}
	next.Jobs = make(map[string]Job, len(s.Jobs))
	for k, v := range s.Jobs {
		next.Jobs[k] = v
	}
	next.Edges = append([]Edge(nil), s.Edges...)
	return &next
}

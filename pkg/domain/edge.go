package domain

import "fmt"

// Edge links a node to its successor. A fork picks To when the boolean
// Condition variable is true and ToIfFalse otherwise.
type Edge struct {
	From      string
	To        string
	IsFork    bool
	Condition string
	ToIfFalse string
}

// NewEdge creates a plain edge.
func NewEdge(from, to string) Edge {
	return Edge{
		From:      from,
		To:        to,
		Condition: Undefined,
		ToIfFalse: Undefined,
	}
}

// NewFork creates a conditional edge.
func NewFork(from, condition, ifTrue, ifFalse string) Edge {
	return Edge{
		From:      from,
		To:        ifTrue,
		IsFork:    true,
		Condition: condition,
		ToIfFalse: ifFalse,
	}
}

// Next returns the successor selected by the edge.
func (e Edge) Next(vars *VariableStore) (string, error) {
	if !e.IsFork {
		return e.To, nil
	}
	ok, err := vars.GetBool(e.Condition)
	if err != nil {
		return "", fmt.Errorf("fork from '%s': %w", e.From, err)
	}
	if ok {
		return e.To, nil
	}
	return e.ToIfFalse, nil
}

// Targets returns every node the edge can lead to.
func (e Edge) Targets() []string {
	if e.IsFork {
		return []string{e.To, e.ToIfFalse}
	}
	return []string{e.To}
}

package dsl

// NodeBuilder provides a fluent API for wiring a node.
type NodeBuilder struct {
	name    string
	builder *Builder
}

// Name returns the node name, e.g. "count=count_PLUS_1" for an operator.
func (n *NodeBuilder) Name() string {
	return n.name
}

// Go adds a plain edge to target.
func (n *NodeBuilder) Go(target *NodeBuilder) *NodeBuilder {
	from, to := n.name, target.name
	n.builder.edges = append(n.builder.edges, func() error {
		return n.builder.schedule.AddEdge(from, to)
	})
	return n
}

// Fork adds a conditional edge on the boolean variable condition.
func (n *NodeBuilder) Fork(condition string, ifTrue, ifFalse *NodeBuilder) *NodeBuilder {
	from, t, f := n.name, ifTrue.name, ifFalse.name
	n.builder.edges = append(n.builder.edges, func() error {
		return n.builder.schedule.AddFork(from, condition, t, f)
	})
	return n
}

// Start makes this node the start node.
func (n *NodeBuilder) Start() *NodeBuilder {
	n.builder.start = n.name
	return n
}

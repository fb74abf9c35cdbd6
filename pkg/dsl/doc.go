/*
Package dsl provides a fluent builder for constructing schedules in Go.

Operator node names are derived from their parameters, so the builder hands
back a NodeBuilder for every node and edges are wired between builders
rather than spelled-out names. Edges are resolved in Build, which means a
node may be referenced before it is added.

Example usage:

	b := dsl.New("counter")
	b.Float("count", 0).Bool("enough", false)

	inc := b.Op(domain.OpFloatPlusConst, "count", "1", "count").Start()
	cmp := b.Op(domain.OpBoolGtConst, "count", "3", "enough")
	inc.Go(cmp)
	cmp.Fork("enough", b.Exit(), inc)

	schedule, report, err := b.Build()
*/
package dsl

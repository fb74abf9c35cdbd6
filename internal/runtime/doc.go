/*
Package runtime drives a schedule through its graph.

The Controller advances one node per step: operator nodes run immediately,
job nodes are submitted once and then polled, WAIT suspends for the
configured interval and EXIT ends the run. The abort signal is checked at the
start of every step and suspensions never exceed the poll interval, so an
abort takes effect within one interval. Steps that succeed are saved, so a
run can stop at any suspension point and resume later from the same node.
*/
package runtime

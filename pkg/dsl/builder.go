package dsl

import (
	"errors"
	"fmt"

	"github.com/aretw0/sluice/internal/validator"
	"github.com/aretw0/sluice/pkg/domain"
)

// Builder manages the schedule construction. Errors are collected and
// reported by Build, so calls can be chained freely.
type Builder struct {
	schedule *domain.Schedule
	edges    []func() error
	start    string
	errs     []error
}

// New creates a builder for an empty schedule.
func New(name string) *Builder {
	return &Builder{schedule: domain.NewSchedule(name)}
}

func (b *Builder) fail(err error) {
	if err != nil {
		b.errs = append(b.errs, err)
	}
}

// Email sets the notification address.
func (b *Builder) Email(address string) *Builder {
	b.schedule.Email = address
	return b
}

// Float declares a float variable.
func (b *Builder) Float(name string, value float64) *Builder {
	b.fail(b.schedule.AddFloatVariable(name, value))
	return b
}

// Bool declares a boolean variable.
func (b *Builder) Bool(name string, value bool) *Builder {
	b.fail(b.schedule.AddBooleanVariable(name, value))
	return b
}

// String declares a string variable.
func (b *Builder) String(name string, value string) *Builder {
	b.fail(b.schedule.AddStringVariable(name, value))
	return b
}

// Op adds an operator node. Its name is derived from the parameters, see
// NodeBuilder.Name.
func (b *Builder) Op(kind domain.OperatorKind, input1, input2, output string) *NodeBuilder {
	name, err := b.schedule.AddOperator(domain.NewOperator(kind, input1, input2, output))
	if err != nil {
		b.fail(fmt.Errorf("operator %s(%s, %s) -> %s: %w", kind, input1, input2, output, err))
		name = domain.NewOperator(kind, input1, input2, output).Name()
	}
	return &NodeBuilder{name: name, builder: b}
}

// Job adds a job node.
func (b *Builder) Job(name string, mode domain.JobMode) *NodeBuilder {
	b.fail(b.schedule.AddJob(name, mode))
	return &NodeBuilder{name: name, builder: b}
}

// Wait returns the reserved WAIT node.
func (b *Builder) Wait() *NodeBuilder {
	return &NodeBuilder{name: domain.NodeWait, builder: b}
}

// Exit returns the reserved EXIT node and registers it.
func (b *Builder) Exit() *NodeBuilder {
	b.schedule.AddExitNode()
	return &NodeBuilder{name: domain.NodeExit, builder: b}
}

// Start sets the node a run begins from and a reset returns to.
func (b *Builder) Start(node string) *Builder {
	b.start = node
	return b
}

// Build wires the edges, sets the start node and validates the result.
// Warnings are not errors; the returned report lists them.
func (b *Builder) Build() (*domain.Schedule, *validator.Report, error) {
	for _, edge := range b.edges {
		b.fail(edge())
	}
	if b.start != "" {
		b.fail(b.schedule.SetOriginalStartNode(b.start))
	}
	if len(b.errs) > 0 {
		return nil, nil, errors.Join(b.errs...)
	}

	report := validator.Validate(b.schedule)
	if !report.Valid() {
		return nil, report, fmt.Errorf("%w: %w", domain.ErrInvalidSchedule, report)
	}
	return b.schedule, report, nil
}

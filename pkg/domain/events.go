package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventNodeEnter   EventType = "node_enter"
	EventNodeLeave   EventType = "node_leave"
	EventOperator    EventType = "operator"
	EventJobSubmit   EventType = "job_submit"
	EventJobFinished EventType = "job_finished"
	EventRunEnd      EventType = "run_end"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	Schedule  string    `json:"schedule"`
	RunID     string    `json:"run_id,omitempty"`
}

// NodeEvent represents entry into or exit from a node.
type NodeEvent struct {
	EventBase
	Node string   `json:"node"`
	Kind NodeKind `json:"kind"`
}

// OperatorEvent reports a performed operator.
type OperatorEvent struct {
	EventBase
	Node     string       `json:"node"`
	Operator OperatorKind `json:"operator"`
	Err      error        `json:"-"`
}

// JobEvent reports a submission or a completion.
type JobEvent struct {
	EventBase
	Node string  `json:"node"`
	Job  string  `json:"job"`
	Mode JobMode `json:"mode"`
}

// RunEvent reports the end of a run.
type RunEvent struct {
	EventBase
	Status Status `json:"status"`
	Node   string `json:"node"`
	Err    error  `json:"-"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnNodeEnter   func(context.Context, *NodeEvent)
	OnNodeLeave   func(context.Context, *NodeEvent)
	OnOperator    func(context.Context, *OperatorEvent)
	OnJobSubmit   func(context.Context, *JobEvent)
	OnJobFinished func(context.Context, *JobEvent)
	OnRunEnd      func(context.Context, *RunEvent)
}

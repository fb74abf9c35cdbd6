package domain

// Reserved node names.
const (
	NodeWait = "WAIT"
	NodeExit = "EXIT"
)

// NodeKind classifies a node name.
type NodeKind string

const (
	NodeKindUndefined NodeKind = "undefined"
	NodeKindJob       NodeKind = "job"
	NodeKindOperator  NodeKind = "operator"
	NodeKindWait      NodeKind = "wait"
	NodeKindExit      NodeKind = "exit"
)

// NodeRef is a resolved node name. Schedule.Resolve is the only producer.
type NodeRef struct {
	Kind NodeKind
	Name string
}

// IsReserved reports whether the node is WAIT or EXIT.
func (r NodeRef) IsReserved() bool {
	return r.Kind == NodeKindWait || r.Kind == NodeKindExit
}

// Exists reports whether the name resolved to anything.
func (r NodeRef) Exists() bool {
	return r.Kind != NodeKindUndefined
}

// IsReservedName reports whether name is WAIT or EXIT.
func IsReservedName(name string) bool {
	return name == NodeWait || name == NodeExit
}

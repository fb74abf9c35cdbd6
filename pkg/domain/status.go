package domain

// Status is the execution state of a schedule run.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusAtOperator Status = "at_operator"
	StatusAtJob      Status = "at_job"
	StatusWaiting    Status = "waiting"
	StatusAborting   Status = "aborting"
	StatusDone       Status = "done"
	StatusError      Status = "error"
)

// IsTerminal reports whether no further step can happen.
func (s Status) IsTerminal() bool {
	return s == StatusDone || s == StatusError
}

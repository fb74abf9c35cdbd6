package domain

// JobMode tells the executor how to treat a (re)submission.
type JobMode string

const (
	// JobModeNew starts a fresh job instance.
	JobModeNew JobMode = "new"
	// JobModeContinue resumes an existing job instance.
	JobModeContinue JobMode = "continue"
	// JobModeOverwrite reruns an existing job instance, replacing its output.
	JobModeOverwrite JobMode = "overwrite"
)

// Valid reports whether m is a known mode.
func (m JobMode) Valid() bool {
	switch m {
	case JobModeNew, JobModeContinue, JobModeOverwrite:
		return true
	}
	return false
}

// Job is a node delegated to the external executor.
type Job struct {
	// CurrentName is the concrete name the executor knows the job by. It starts
	// out as the node name and follows any rename done by the executor.
	CurrentName string
	Mode        JobMode
	// HasStarted is set once the job was submitted and cleared when the
	// controller leaves the node after completion.
	HasStarted bool
}

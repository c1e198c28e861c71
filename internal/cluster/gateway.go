package cluster

import (
	"context"
)

// JobState is the terminal-or-not state of a submitted Job.
type JobState int

const (
	// JobRunning covers everything before a terminal condition is reported.
	JobRunning JobState = iota
	JobComplete
	JobFailed
)

func (s JobState) String() string {
	switch s {
	case JobComplete:
		return "Complete"
	case JobFailed:
		return "Failed"
	default:
		return "Running"
	}
}

// JobStatus is the status of a Job as read from its conditions.
type JobStatus struct {
	State JobState

	// Message of the terminal condition, if any
	Message string
}

// Terminal reports whether the Job reached Complete or Failed.
func (s JobStatus) Terminal() bool {
	return s.State == JobComplete || s.State == JobFailed
}

// Gateway is the narrow surface of the cluster used by the job runner.
// Implementations must treat a missing Job as success in DeleteJob.
type Gateway interface {
	// ApplyJob submits a rendered Job.
	ApplyJob(ctx context.Context, spec JobSpec) error

	// GetJobStatus reads the Job's completion/failure conditions.
	GetJobStatus(ctx context.Context, namespace, name string) (JobStatus, error)

	// GetJobLogs returns at most tailLines of the Job's most recent pod output.
	GetJobLogs(ctx context.Context, namespace, name string, tailLines int64) (string, error)

	// DeleteJob removes the Job and its pods; "not found" is not an error.
	DeleteJob(ctx context.Context, namespace, name string) error
}

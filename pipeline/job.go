package pipeline

import (
	"fmt"

	"github.com/pavel-te/simple-json-translations/transfer"
)

// Status is the lifecycle state of one job within a run.
type Status string

// Job lifecycle states. A job only ever moves forward: unknown → queued →
// in_progress → one of the three final states.
const (
	StatusUnknown    Status = "unknown"
	StatusQueued     Status = "queued"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusTimedOut   Status = "timed_out"
)

// IsFinal reports whether a job in this state is done for the run.
func (s Status) IsFinal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusTimedOut:
		return true
	}
	return false
}

// allowedTransitions lists the forward moves; anything else is a bug.
var allowedTransitions = map[Status][]Status{
	StatusUnknown:    {StatusQueued, StatusFailed},
	StatusQueued:     {StatusInProgress, StatusFailed},
	StatusInProgress: {StatusCompleted, StatusFailed, StatusTimedOut},
}

// Job is one source file moving through the pipeline. The fields are
// inputs only; all run state lives with the Run invocation that owns
// the job.
type Job struct {
	// SourcePath is the local file to upload.
	SourcePath string
	// RelativePath identifies the file remotely (the file_path field).
	RelativePath string
	// OutputPattern is the output template carrying the {{lang}} placeholder.
	OutputPattern string
	// Tag groups this run's files on the service (the file_tag_name field).
	Tag string
	// Additional are extra output templates uploaded alongside the main one.
	Additional []string
}

func (j Job) submission() transfer.Submission {
	return transfer.Submission{
		SourcePath:    j.SourcePath,
		RelativePath:  j.RelativePath,
		OutputPattern: j.OutputPattern,
		Tag:           j.Tag,
		Additional:    j.Additional,
	}
}

// ---------------------------------------------------------------------------
// Per-run job state
// ---------------------------------------------------------------------------

// jobState is the mutable record for one job. The state table belongs to
// a single Run call and nothing of it survives the run.
type jobState struct {
	job    Job
	status Status
	// remote is the last raw status string the service reported.
	remote string
	// completeness is the last reported translation percentage.
	completeness float64
	// err is the terminal failure reason for failed jobs.
	err error
	// retrievalErr is a download or unpack failure recorded after the
	// translation itself completed.
	retrievalErr error
}

func (s *jobState) advance(to Status) error {
	for _, next := range allowedTransitions[s.status] {
		if next == to {
			s.status = to
			return nil
		}
	}
	return fmt.Errorf("job %s: illegal status transition %s -> %s", s.job.RelativePath, s.status, to)
}

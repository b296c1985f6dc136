package models

import "time"

type ExportStatus string

const (
	ExportPending    ExportStatus = "PENDING"
	ExportProcessing ExportStatus = "PROCESSING"
	ExportCompleted  ExportStatus = "COMPLETED"
	ExportFailed     ExportStatus = "FAILED"
)

// Terminal reports whether no further
// transition is allowed from the status.
func (s ExportStatus) Terminal() bool {
	return s == ExportCompleted || s == ExportFailed
}

// ExportJob is one render request, keyed by the
// caller-supplied draft reference.
type ExportJob struct {
	DraftRef   string
	DraftID    string
	Status     ExportStatus
	Progress   int
	CreatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
	ResultURL  string
	Error      string
	Credential string

	// Viewed is set once the job status was queried
	// after reaching a terminal state. Jobs are reaped
	// only after being viewed.
	Viewed bool
}

// ExportJobView is a read-only snapshot of an export job.
type ExportJobView struct {
	DraftRef   string       `json:"draftRef"`
	DraftID    string       `json:"draftId"`
	Status     ExportStatus `json:"status"`
	Progress   int          `json:"progress"`
	CreatedAt  time.Time    `json:"createdAt"`
	StartedAt  *time.Time   `json:"startedAt,omitempty"`
	FinishedAt *time.Time   `json:"finishedAt,omitempty"`
	ResultURL  string       `json:"resultUrl,omitempty"`
	Error      string       `json:"error,omitempty"`
}

// View returns a snapshot safe to hand out of the scheduler.
func (j *ExportJob) View() ExportJobView {
	v := ExportJobView{
		DraftRef:  j.DraftRef,
		DraftID:   j.DraftID,
		Status:    j.Status,
		Progress:  j.Progress,
		CreatedAt: j.CreatedAt,
		ResultURL: j.ResultURL,
		Error:     j.Error,
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		v.StartedAt = &t
	}
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		v.FinishedAt = &t
	}
	return v
}

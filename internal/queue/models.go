package queue

import "time"

// Status mirrors the terminal states of a transfer job.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// JobRecord is the persisted outcome of one transfer job.
type JobRecord struct {
	JobID      string     `json:"job_id"`
	BookID     string     `json:"book_id"`
	Title      string     `json:"title,omitempty"`
	Status     Status     `json:"status"`
	FilesTotal int        `json:"files_total"`
	FilesDone  int        `json:"files_done"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Succeeded reports whether every file of the job transferred.
func (r JobRecord) Succeeded() bool {
	return r.Status == StatusCompleted
}

// Duration returns the wall time from enqueue to finish, or zero when the
// job never finished.
func (r JobRecord) Duration() time.Duration {
	if r.FinishedAt == nil || r.CreatedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.CreatedAt)
}

// ListOptions filters history queries.
type ListOptions struct {
	BookID string
	Status Status
	Limit  int
}

// DatabaseHealth describes the state of the history database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    int
	TotalJobs        int
	IntegrityCheck   bool
	Error            string
}

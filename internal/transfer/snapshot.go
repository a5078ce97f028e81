package transfer

import (
	"time"

	"shelfcast/internal/library"
)

// Status is a job's lifecycle state.
type Status string

const (
	StatusQueued      Status = "queued"
	StatusDownloading Status = "downloading"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusCancelled   Status = "cancelled"
)

// Terminal reports whether no further transitions follow.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// File is one asset of a job.
type File struct {
	Kind library.AssetKind `json:"kind"`
	URL  string            `json:"url"`
	Dest string            `json:"dest"`
}

// Snapshot is an immutable view of a job at one point in time.
type Snapshot struct {
	JobID        string     `json:"job_id"`
	BookID       string     `json:"book_id"`
	Title        string     `json:"title"`
	Status       Status     `json:"status"`
	Files        []File     `json:"files"`
	Current      int        `json:"current"`
	FileProgress float64    `json:"file_progress"`
	Progress     float64    `json:"progress"`
	Message      string     `json:"message,omitempty"`
	Error        string     `json:"error,omitempty"`
	EnqueuedAt   time.Time  `json:"enqueued_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

// Failed reports whether the job ended in failure.
func (s Snapshot) Failed() bool { return s.Status == StatusFailed }

// Completed reports whether every file was transferred.
func (s Snapshot) Completed() bool { return s.Status == StatusCompleted }

// Terminal reports whether the job has finished in any way.
func (s Snapshot) Terminal() bool { return s.Status.Terminal() }

// FilesDone returns how many files finished transferring.
func (s Snapshot) FilesDone() int {
	switch {
	case s.Status == StatusCompleted:
		return len(s.Files)
	case s.Status == StatusQueued || s.Current < 0:
		return 0
	default:
		return s.Current
	}
}

// clone copies s so that later mutation of the source never leaks into a
// published value.
func (s Snapshot) clone() Snapshot {
	out := s
	out.Files = append([]File(nil), s.Files...)
	if s.StartedAt != nil {
		t := *s.StartedAt
		out.StartedAt = &t
	}
	if s.FinishedAt != nil {
		t := *s.FinishedAt
		out.FinishedAt = &t
	}
	return out
}

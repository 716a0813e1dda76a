package domain

import "time"

// DeletionStatus tracks a scheduled object deletion.
type DeletionStatus string

const (
	DeletionPending   DeletionStatus = "pending"
	DeletionCompleted DeletionStatus = "completed"
	DeletionError     DeletionStatus = "error"
)

// ScheduledDeletion is created whenever a temporary public object is
// produced and consumed by the sweeper once Deadline has passed.
type ScheduledDeletion struct {
	ID         string         `json:"id"`
	ObjectPath string         `json:"objectPath"`
	Bucket     string         `json:"bucket"`
	Deadline   time.Time      `json:"deadline"`
	Status     DeletionStatus `json:"status"`
	Error      string         `json:"error,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

package models

import "time"

type SubtaskStatus string

const (
	PendingSubtaskStatus   SubtaskStatus = "PENDING"
	QueuedSubtaskStatus    SubtaskStatus = "QUEUED"
	WorkingSubtaskStatus   SubtaskStatus = "WORKING"
	CompletedSubtaskStatus SubtaskStatus = "COMPLETED"
	FailedSubtaskStatus    SubtaskStatus = "FAILED"
	CanceledSubtaskStatus  SubtaskStatus = "CANCELED"
	BlockedSubtaskStatus   SubtaskStatus = "BLOCKED"
)

// Terminal reports whether a subtask in this status will never transition again.
func (s SubtaskStatus) Terminal() bool {
	switch s {
	case CompletedSubtaskStatus, FailedSubtaskStatus, CanceledSubtaskStatus, BlockedSubtaskStatus:
		return true
	}
	return false
}

// Subtask is a single node in a workflow DAG, bound to one worker capability.
type Subtask struct {
	ID           string        `json:"id" db:"id"`                       // Unique within its workflow (e.g., "t1")
	WorkflowID   string        `json:"workflow_id" db:"workflow_id"`     // Foreign key to Workflow
	WorkerID     string        `json:"worker_id" db:"worker_id"`         // Target worker, resolved at dispatch time
	CapabilityID string        `json:"capability_id" db:"capability_id"` // Operation the worker must perform
	Description  string        `json:"description" db:"description"`     // Human-readable intent, passed to the worker
	DependsOn    StringList    `json:"depends_on" db:"depends_on"`       // Subtask IDs that must complete first
	Status       SubtaskStatus `json:"status" db:"status"`
	InputData    JSONMap       `json:"input_data,omitempty" db:"input_data"`   // Opaque payload sent to the worker
	OutputData   JSONMap       `json:"output_data,omitempty" db:"output_data"` // Opaque payload returned by the worker
	ErrorMsg     string        `json:"error,omitempty" db:"error_msg"`         // Last error message (optional)
	AttemptCount int           `json:"attempt_count" db:"attempt_count"`
	DurationMS   int64         `json:"duration_ms" db:"duration_ms"`
	StartedAt    *time.Time    `json:"started_at,omitempty" db:"started_at"`   // Nullable start time
	FinishedAt   *time.Time    `json:"finished_at,omitempty" db:"finished_at"` // Nullable end time
}

package models

import "time"

type AuditEventType string

const (
	WorkflowCreatedEvent   AuditEventType = "workflow_created"
	SubtaskDispatchedEvent AuditEventType = "subtask_dispatched"
	SubtaskCompletedEvent  AuditEventType = "subtask_completed"
	SubtaskFailedEvent     AuditEventType = "subtask_failed"
	SubtaskBlockedEvent    AuditEventType = "subtask_blocked"
	SubtaskCanceledEvent   AuditEventType = "subtask_canceled"
	WorkflowCompletedEvent AuditEventType = "workflow_completed"
	WorkflowFailedEvent    AuditEventType = "workflow_failed"
)

// AuditEvent records one state transition for the append-only audit trail.
type AuditEvent struct {
	ID         int64          `json:"id" db:"id"` // Auto-incremented event ID
	WorkflowID string         `json:"workflow_id" db:"workflow_id"`
	SubtaskID  string         `json:"subtask_id,omitempty" db:"subtask_id"` // Empty for workflow-level events
	Type       AuditEventType `json:"type" db:"type"`
	Details    JSONMap        `json:"details,omitempty" db:"details"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
}

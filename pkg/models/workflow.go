package models

import "time"

type WorkflowStatus string

const (
	PendingWorkflowStatus            WorkflowStatus = "PENDING"
	RunningWorkflowStatus            WorkflowStatus = "RUNNING"
	CompletedWorkflowStatus          WorkflowStatus = "COMPLETED"
	FailedWorkflowStatus             WorkflowStatus = "FAILED"
	PartiallyCompletedWorkflowStatus WorkflowStatus = "PARTIALLY_COMPLETED"
	CanceledWorkflowStatus           WorkflowStatus = "CANCELED"
)

// Terminal reports whether a workflow in this status has finished its run attempt.
func (s WorkflowStatus) Terminal() bool {
	switch s {
	case CompletedWorkflowStatus, FailedWorkflowStatus, PartiallyCompletedWorkflowStatus, CanceledWorkflowStatus:
		return true
	}
	return false
}

// ValidWorkflowStatus reports whether s is one of the known workflow statuses.
func ValidWorkflowStatus(s WorkflowStatus) bool {
	switch s {
	case PendingWorkflowStatus, RunningWorkflowStatus, CompletedWorkflowStatus,
		FailedWorkflowStatus, PartiallyCompletedWorkflowStatus, CanceledWorkflowStatus:
		return true
	}
	return false
}

// Workflow is a named collection of subtasks forming one DAG.
// The record ID is stable across re-runs; subtask statuses reset on re-submission.
type Workflow struct {
	ID               string              `json:"id" db:"id"`                 // UUID, assigned at decomposition time
	Name             string              `json:"name" db:"name"`             // Descriptive name from the decomposition
	ContextID        string              `json:"context_id" db:"context_id"` // Project/tenant scope
	CreatedBy        string              `json:"created_by" db:"created_by"`
	Status           WorkflowStatus      `json:"status" db:"status"`
	Subtasks         map[string]*Subtask `json:"subtasks,omitempty"`                  // Populated at runtime; graph order derived from DependsOn
	AggregatedResult *AggregatedResult   `json:"aggregated_result,omitempty" db:"-"`  // Written once per run attempt, after dispatch drains
	CreatedAt        time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at" db:"updated_at"`
}

// SubtaskIDs returns the ids of all subtasks in the workflow.
func (w Workflow) SubtaskIDs() []string {
	ids := make([]string, 0, len(w.Subtasks))
	for id := range w.Subtasks {
		ids = append(ids, id)
	}
	return ids
}

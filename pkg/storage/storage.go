package storage

import (
	"github.com/pkg/errors"

	"github.com/vmitrev/agentmesh/pkg/models"
)

// ErrNotFound is returned when a workflow or subtask does not exist.
var ErrNotFound = errors.New("not found")

// Store defines the durable storage operations for agentmesh.
type Store interface {
	// Transaction control. Begin returns a Store scoped to one transaction.
	Begin() (Store, error)
	Commit() error
	Rollback() error
	Close() error

	// Workflow operations. SaveWorkflow upserts the workflow row and every
	// subtask row in one logical unit; persisting the same workflow id twice
	// updates in place and never creates duplicate subtask rows.
	SaveWorkflow(w models.Workflow) error
	GetWorkflow(id string) (models.Workflow, error)
	ListWorkflows() ([]models.Workflow, error)
	UpdateWorkflowStatus(id string, status models.WorkflowStatus) error

	// Subtask operations. UpdateSubtaskStatus is a narrow single-row update
	// for the high-frequency "just finished" case.
	GetSubtask(id, workflowID string) (models.Subtask, error)
	UpdateSubtaskStatus(st models.Subtask) error

	// Audit trail operations
	AppendAuditEvent(e models.AuditEvent) error
	ListAuditEvents(workflowID string) ([]models.AuditEvent, error)
}

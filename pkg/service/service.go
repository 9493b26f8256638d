package service

import (
	"context"
	"fmt"
	"time"

	"github.com/vmitrev/agentmesh/pkg/audit"
	"github.com/vmitrev/agentmesh/pkg/decompose"
	"github.com/vmitrev/agentmesh/pkg/models"
	"github.com/vmitrev/agentmesh/pkg/storage"
)

// Logger defines the logging interface for the service layer.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// WorkflowService is the caller-facing surface of the orchestration engine:
// decompose a task description into a workflow, execute a workflow, and query
// its status. The engine exclusively owns subtask status transitions; the
// decomposition service and remote workers only hand data back through it.
type WorkflowService struct {
	store      storage.Store
	builder    *decompose.GraphBuilder
	dispatcher *Dispatcher
	sink       audit.Sink
	logger     Logger
}

func NewWorkflowService(
	store storage.Store,
	builder *decompose.GraphBuilder,
	dispatcher *Dispatcher,
	sink audit.Sink,
	logger Logger) *WorkflowService {
	return &WorkflowService{
		store:      store,
		builder:    builder,
		dispatcher: dispatcher,
		sink:       sink,
		logger:     logger,
	}
}

// Decompose builds a workflow from a task description and persists it.
// Decomposition never raises to the caller; at worst a degraded one-step
// workflow is produced. Only a storage failure is returned as an error.
func (s *WorkflowService) Decompose(ctx context.Context, description, contextID, createdBy string) (models.Workflow, error) {
	wf := s.builder.Build(ctx, description, contextID, createdBy)
	if err := s.persistWorkflow(wf); err != nil {
		return models.Workflow{}, err
	}
	s.sink.Record(models.AuditEvent{
		WorkflowID: wf.ID,
		Type:       models.WorkflowCreatedEvent,
		Details: models.JSONMap{
			"subtask_count": len(wf.Subtasks),
			"subtask_ids":   wf.SubtaskIDs(),
		},
	})
	s.logger.Infof("Created workflow '%s' (%s) with %d subtasks", wf.Name, wf.ID, len(wf.Subtasks))
	return wf, nil
}

// Execute runs one execution attempt of a stored workflow. Re-submitting an
// already-run workflow resets its subtasks to pending; the record id stays
// stable across re-runs. The returned workflow carries the terminal status
// and the aggregated result.
func (s *WorkflowService) Execute(ctx context.Context, workflowID string, timeout time.Duration) (models.Workflow, error) {
	wf, err := s.store.GetWorkflow(workflowID)
	if err != nil {
		return models.Workflow{}, fmt.Errorf("workflow %s: %w", workflowID, err)
	}

	resetForRun(&wf)
	wf.Status = models.RunningWorkflowStatus
	if err := s.persistWorkflow(wf); err != nil {
		return models.Workflow{}, err
	}

	if err := s.dispatcher.Run(ctx, &wf, timeout); err != nil {
		// Graph validation failed; the workflow is already marked failed and
		// zero subtasks were dispatched.
		s.logger.Errorf("Workflow %s not dispatched: %v", wf.ID, err)
	}

	if err := s.persistWorkflow(wf); err != nil {
		return models.Workflow{}, err
	}
	return wf, nil
}

// GetStatus returns the full reconstructed workflow, or storage.ErrNotFound
// for a missing id. The aggregated result is recomputed for terminal
// workflows so callers always see a summary consistent with subtask state.
func (s *WorkflowService) GetStatus(workflowID string) (models.Workflow, error) {
	wf, err := s.store.GetWorkflow(workflowID)
	if err != nil {
		return models.Workflow{}, err
	}
	if wf.Status.Terminal() {
		wf.AggregatedResult = Aggregate(&wf)
	}
	return wf, nil
}

func (s *WorkflowService) ListWorkflows() ([]models.Workflow, error) {
	return s.store.ListWorkflows()
}

// AuditTrail returns the append-only event history of a workflow.
func (s *WorkflowService) AuditTrail(workflowID string) ([]models.AuditEvent, error) {
	return s.store.ListAuditEvents(workflowID)
}

// persistWorkflow upserts the workflow and all its subtasks in one transaction.
func (s *WorkflowService) persistWorkflow(wf models.Workflow) (err error) {
	txStore, err := s.store.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rollbackErr := txStore.Rollback(); rollbackErr != nil {
				s.logger.Errorf("Failed to rollback after error: %v (original error: %v)", rollbackErr, err)
			}
			return
		}
		if commitErr := txStore.Commit(); commitErr != nil {
			s.logger.Errorf("Failed to commit: %v", commitErr)
			err = commitErr
		}
	}()

	if err = txStore.SaveWorkflow(wf); err != nil {
		return fmt.Errorf("failed to save workflow %s: %w", wf.ID, err)
	}
	return nil
}

// resetForRun puts every subtask back to pending for a fresh execution attempt.
func resetForRun(wf *models.Workflow) {
	wf.AggregatedResult = nil
	for _, st := range wf.Subtasks {
		st.Status = models.PendingSubtaskStatus
		st.ErrorMsg = ""
		st.OutputData = nil
		st.AttemptCount = 0
		st.DurationMS = 0
		st.StartedAt = nil
		st.FinishedAt = nil
	}
}

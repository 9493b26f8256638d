package storage

import (
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/vmitrev/agentmesh/pkg/models"
	"github.com/vmitrev/agentmesh/pkg/storage"
)

type DBInterface interface {
	Get(dest interface{}, query string, args ...interface{}) error
	Select(dest interface{}, query string, args ...interface{}) error
	QueryRowx(query string, args ...interface{}) *sqlx.Row
	Exec(query string, args ...interface{}) (sql.Result, error)
}

type PostgresStore struct {
	db DBInterface
}

func NewPostgresStore(connStr string) (*PostgresStore, error) {
	db, err := sqlx.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Begin() (storage.Store, error) {
	if db, ok := s.db.(*sqlx.DB); ok {
		tx, err := db.Beginx()
		if err != nil {
			return nil, err
		}
		return &PostgresStore{db: tx}, nil
	}
	return nil, fmt.Errorf("cannot begin transaction on unknown type")
}

func (s *PostgresStore) Commit() error {
	if tx, ok := s.db.(*sqlx.Tx); ok {
		return tx.Commit()
	}
	return fmt.Errorf("cannot commit: not a transaction")
}

func (s *PostgresStore) Rollback() error {
	if tx, ok := s.db.(*sqlx.Tx); ok {
		return tx.Rollback()
	}
	return fmt.Errorf("cannot rollback: not a transaction")
}

func (s *PostgresStore) Close() error {
	if db, ok := s.db.(*sqlx.DB); ok {
		return db.Close()
	}
	return nil // No-op for *sqlx.Tx
}

// SaveWorkflow upserts the workflow row and every subtask row. The upsert is
// idempotent: persisting the same workflow id twice updates in place and
// never creates duplicate subtask rows.
func (s *PostgresStore) SaveWorkflow(w models.Workflow) error {
	_, err := s.db.Exec(`
		INSERT INTO workflows (id, name, context_id, created_by, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, CURRENT_TIMESTAMP)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			status = EXCLUDED.status,
			updated_at = CURRENT_TIMESTAMP`,
		w.ID, w.Name, w.ContextID, w.CreatedBy, w.Status, w.CreatedAt)
	if err != nil {
		return fmt.Errorf("save workflow: %w", err)
	}
	for _, st := range w.Subtasks {
		if err := s.saveSubtask(*st); err != nil {
			return fmt.Errorf("save workflow %s: %w", w.ID, err)
		}
	}
	return nil
}

func (s *PostgresStore) saveSubtask(t models.Subtask) error {
	_, err := s.db.Exec(`
		INSERT INTO subtasks (id, workflow_id, worker_id, capability_id, description, depends_on,
			status, input_data, output_data, error_msg, attempt_count, duration_ms, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id, workflow_id) DO UPDATE SET
			worker_id = EXCLUDED.worker_id,
			capability_id = EXCLUDED.capability_id,
			description = EXCLUDED.description,
			depends_on = EXCLUDED.depends_on,
			status = EXCLUDED.status,
			input_data = EXCLUDED.input_data,
			output_data = EXCLUDED.output_data,
			error_msg = EXCLUDED.error_msg,
			attempt_count = EXCLUDED.attempt_count,
			duration_ms = EXCLUDED.duration_ms,
			started_at = EXCLUDED.started_at,
			finished_at = EXCLUDED.finished_at`,
		t.ID, t.WorkflowID, t.WorkerID, t.CapabilityID, t.Description, t.DependsOn,
		t.Status, t.InputData, t.OutputData, t.ErrorMsg, t.AttemptCount, t.DurationMS, t.StartedAt, t.FinishedAt)
	if err != nil {
		return fmt.Errorf("save subtask %s: %w", t.ID, err)
	}
	return nil
}

// GetWorkflow retrieves a workflow by ID, including its subtask map.
func (s *PostgresStore) GetWorkflow(id string) (models.Workflow, error) {
	var wf models.Workflow
	err := s.db.Get(&wf, "SELECT id, name, context_id, created_by, status, created_at, updated_at FROM workflows WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return models.Workflow{}, storage.ErrNotFound
	}
	if err != nil {
		return models.Workflow{}, err
	}

	var subtasks []models.Subtask
	err = s.db.Select(&subtasks, "SELECT * FROM subtasks WHERE workflow_id = $1 ORDER BY id", id)
	if err != nil {
		return models.Workflow{}, fmt.Errorf("get workflow %s: %w", id, err)
	}
	wf.Subtasks = make(map[string]*models.Subtask, len(subtasks))
	for i := range subtasks {
		wf.Subtasks[subtasks[i].ID] = &subtasks[i]
	}
	return wf, nil
}

func (s *PostgresStore) ListWorkflows() ([]models.Workflow, error) {
	workflows := []models.Workflow{}
	query := "SELECT id, name, context_id, created_by, status, created_at, updated_at FROM workflows ORDER BY created_at DESC"
	err := s.db.Select(&workflows, query)
	if err != nil {
		return nil, err
	}
	return workflows, nil
}

// UpdateWorkflowStatus updates the status of a workflow.
func (s *PostgresStore) UpdateWorkflowStatus(id string, status models.WorkflowStatus) error {
	_, err := s.db.Exec("UPDATE workflows SET status = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2", status, id)
	return err
}

// GetSubtask retrieves a subtask by ID and workflow ID.
func (s *PostgresStore) GetSubtask(id, workflowID string) (models.Subtask, error) {
	var st models.Subtask
	err := s.db.Get(&st, "SELECT * FROM subtasks WHERE id = $1 AND workflow_id = $2", id, workflowID)
	if err == sql.ErrNoRows {
		return models.Subtask{}, storage.ErrNotFound
	}
	if err != nil {
		return models.Subtask{}, err
	}
	return st, nil
}

// UpdateSubtaskStatus is the narrow single-row update for the common "just
// finished" case, so high-frequency status changes do not rewrite the graph.
func (s *PostgresStore) UpdateSubtaskStatus(st models.Subtask) error {
	res, err := s.db.Exec(`
		UPDATE subtasks
		SET status = $1,
		    error_msg = $2,
		    output_data = $3,
		    attempt_count = $4,
		    duration_ms = $5,
		    started_at = $6,
		    finished_at = $7
		WHERE id = $8 AND workflow_id = $9`,
		st.Status, st.ErrorMsg, st.OutputData, st.AttemptCount, st.DurationMS, st.StartedAt, st.FinishedAt,
		st.ID, st.WorkflowID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// AppendAuditEvent adds one event to the append-only audit trail.
func (s *PostgresStore) AppendAuditEvent(e models.AuditEvent) error {
	_, err := s.db.Exec(`
		INSERT INTO audit_events (workflow_id, subtask_id, type, details, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		e.WorkflowID, e.SubtaskID, e.Type, e.Details, e.CreatedAt)
	return err
}

// ListAuditEvents retrieves the audit trail of a workflow in insertion order.
func (s *PostgresStore) ListAuditEvents(workflowID string) ([]models.AuditEvent, error) {
	var events []models.AuditEvent
	err := s.db.Select(&events, "SELECT * FROM audit_events WHERE workflow_id = $1 ORDER BY id", workflowID)
	if err != nil {
		return nil, err
	}
	return events, nil
}

package storage

import (
	"sync"
	"time"

	"github.com/vmitrev/agentmesh/pkg/models"
)

// mockStore implements Store with in-memory storage.
// It is safe for concurrent use so dispatcher tests can exercise parallel
// completions against it.
type mockStore struct {
	mu        sync.Mutex
	workflows map[string]models.Workflow
	subtasks  map[string]map[string]models.Subtask // workflow id -> subtask id -> subtask
	events    []models.AuditEvent
	nextEvent int64
}

// NewMockStore returns an empty in-memory Store for tests and examples.
func NewMockStore() Store {
	return &mockStore{
		workflows: make(map[string]models.Workflow),
		subtasks:  make(map[string]map[string]models.Subtask),
	}
}

// Begin returns the store itself; the in-memory store applies writes directly.
func (m *mockStore) Begin() (Store, error) { return m, nil }
func (m *mockStore) Commit() error         { return nil }
func (m *mockStore) Rollback() error       { return nil }
func (m *mockStore) Close() error          { return nil }

func (m *mockStore) SaveWorkflow(wf models.Workflow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	wf.UpdatedAt = time.Now()
	stored := wf
	stored.Subtasks = nil
	m.workflows[wf.ID] = stored
	rows, ok := m.subtasks[wf.ID]
	if !ok {
		rows = make(map[string]models.Subtask)
		m.subtasks[wf.ID] = rows
	}
	for id, st := range wf.Subtasks {
		rows[id] = *st
	}
	return nil
}

func (m *mockStore) GetWorkflow(id string) (models.Workflow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wf, ok := m.workflows[id]
	if !ok {
		return models.Workflow{}, ErrNotFound
	}
	wf.Subtasks = make(map[string]*models.Subtask, len(m.subtasks[id]))
	for stID, st := range m.subtasks[id] {
		copied := st
		wf.Subtasks[stID] = &copied
	}
	return wf, nil
}

func (m *mockStore) ListWorkflows() ([]models.Workflow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Workflow, 0, len(m.workflows))
	for _, wf := range m.workflows {
		out = append(out, wf)
	}
	return out, nil
}

func (m *mockStore) UpdateWorkflowStatus(id string, status models.WorkflowStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	wf, ok := m.workflows[id]
	if !ok {
		return ErrNotFound
	}
	wf.Status = status
	wf.UpdatedAt = time.Now()
	m.workflows[id] = wf
	return nil
}

func (m *mockStore) GetSubtask(id, workflowID string) (models.Subtask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.subtasks[workflowID][id]
	if !ok {
		return models.Subtask{}, ErrNotFound
	}
	return st, nil
}

func (m *mockStore) UpdateSubtaskStatus(st models.Subtask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows, ok := m.subtasks[st.WorkflowID]
	if !ok {
		return ErrNotFound
	}
	existing, ok := rows[st.ID]
	if !ok {
		return ErrNotFound
	}
	existing.Status = st.Status
	existing.ErrorMsg = st.ErrorMsg
	existing.OutputData = st.OutputData
	existing.AttemptCount = st.AttemptCount
	existing.DurationMS = st.DurationMS
	existing.StartedAt = st.StartedAt
	existing.FinishedAt = st.FinishedAt
	rows[st.ID] = existing
	return nil
}

func (m *mockStore) AppendAuditEvent(e models.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextEvent++
	e.ID = m.nextEvent
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	m.events = append(m.events, e)
	return nil
}

func (m *mockStore) ListAuditEvents(workflowID string) ([]models.AuditEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.AuditEvent
	for _, e := range m.events {
		if e.WorkflowID == workflowID {
			out = append(out, e)
		}
	}
	return out, nil
}

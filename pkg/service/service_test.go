package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/vmitrev/agentmesh/pkg/audit"
	"github.com/vmitrev/agentmesh/pkg/decompose"
	"github.com/vmitrev/agentmesh/pkg/models"
	"github.com/vmitrev/agentmesh/pkg/service"
	"github.com/vmitrev/agentmesh/pkg/storage"
	"github.com/vmitrev/agentmesh/pkg/worker"
)

// fakeDecomposer returns a scripted plan, or an error to force the fallback.
type fakeDecomposer struct {
	plan decompose.Plan
	err  error
}

func (f *fakeDecomposer) Decompose(ctx context.Context, req decompose.Request) (decompose.Plan, error) {
	return f.plan, f.err
}

func newTestService(store storage.Store, dec decompose.Service, client *fakeClient) *service.WorkflowService {
	logger := newLogger(nil)
	builder := decompose.NewGraphBuilder(dec, testDirectory(), logger)
	sink := audit.NewStoreSink(store, logger)
	dispatcher := service.NewDispatcher(store, testDirectory(), client, sink, logger, service.DispatcherConfig{
		Workers:      2,
		PollInterval: 10 * time.Millisecond,
	})
	return service.NewWorkflowService(store, builder, dispatcher, sink, logger)
}

func plan(name string, specs ...decompose.SubtaskSpec) decompose.Plan {
	return decompose.Plan{WorkflowName: name, Subtasks: specs}
}

func TestWorkflowService_DecomposePersistsWorkflow(t *testing.T) {
	store := storage.NewMockStore()
	dec := &fakeDecomposer{plan: plan("fetch and summarize",
		decompose.SubtaskSpec{ID: "fetch", WorkerID: "general", CapabilityID: "execute", Description: "fetch the report"},
		decompose.SubtaskSpec{ID: "summarize", WorkerID: "general", CapabilityID: "execute", Description: "summarize it", DependsOn: []string{"fetch"}},
	)}
	svc := newTestService(store, dec, newFakeClient())

	wf, err := svc.Decompose(context.Background(), "fetch the report and summarize it", "ctx-1", "alice")
	assert.NoError(t, err)
	assert.NotEmpty(t, wf.ID)
	assert.Equal(t, "fetch and summarize", wf.Name)
	assert.Equal(t, models.PendingWorkflowStatus, wf.Status)
	assert.Len(t, wf.Subtasks, 2)
	assert.Equal(t, models.StringList{"fetch"}, wf.Subtasks["summarize"].DependsOn)

	stored, err := store.GetWorkflow(wf.ID)
	assert.NoError(t, err)
	assert.Len(t, stored.Subtasks, 2)
	assert.Equal(t, models.PendingSubtaskStatus, stored.Subtasks["fetch"].Status)

	events, err := svc.AuditTrail(wf.ID)
	assert.NoError(t, err)
	if assert.Len(t, events, 1) {
		assert.Equal(t, models.WorkflowCreatedEvent, events[0].Type)
	}
}

func TestWorkflowService_DecomposeFallsBackOnError(t *testing.T) {
	store := storage.NewMockStore()
	dec := &fakeDecomposer{err: errors.New("model unavailable")}
	svc := newTestService(store, dec, newFakeClient())

	wf, err := svc.Decompose(context.Background(), "do the thing", "", "")
	assert.NoError(t, err)
	assert.Len(t, wf.Subtasks, 1)
	for _, st := range wf.Subtasks {
		assert.Equal(t, decompose.DefaultWorkerID, st.WorkerID)
		assert.Equal(t, decompose.DefaultCapabilityID, st.CapabilityID)
		assert.Equal(t, "do the thing", st.Description)
		assert.Equal(t, models.JSONMap{"task": "do the thing"}, st.InputData)
	}
}

func TestWorkflowService_ExecuteRunsToCompletion(t *testing.T) {
	store := storage.NewMockStore()
	dec := &fakeDecomposer{plan: plan("two step",
		decompose.SubtaskSpec{ID: "a", WorkerID: "general", CapabilityID: "execute"},
		decompose.SubtaskSpec{ID: "b", WorkerID: "general", CapabilityID: "execute", DependsOn: []string{"a"}},
	)}
	svc := newTestService(store, dec, newFakeClient())

	created, err := svc.Decompose(context.Background(), "two step task", "", "")
	assert.NoError(t, err)

	wf, err := svc.Execute(context.Background(), created.ID, time.Minute)
	assert.NoError(t, err)
	assert.Equal(t, models.CompletedWorkflowStatus, wf.Status)
	assert.NotNil(t, wf.AggregatedResult)
	assert.Equal(t, 2, wf.AggregatedResult.Completed)

	// The terminal state is durable.
	stored, err := store.GetWorkflow(created.ID)
	assert.NoError(t, err)
	assert.Equal(t, models.CompletedWorkflowStatus, stored.Status)
	assert.Equal(t, models.CompletedSubtaskStatus, stored.Subtasks["b"].Status)
}

func TestWorkflowService_ExecuteUnknownWorkflow(t *testing.T) {
	store := storage.NewMockStore()
	svc := newTestService(store, &fakeDecomposer{}, newFakeClient())

	_, err := svc.Execute(context.Background(), "no-such-id", time.Minute)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestWorkflowService_ReExecuteResetsSubtasks(t *testing.T) {
	store := storage.NewMockStore()
	dec := &fakeDecomposer{plan: plan("flaky",
		decompose.SubtaskSpec{ID: "a", WorkerID: "general", CapabilityID: "execute"},
	)}
	client := newFakeClient()
	client.results["a"] = worker.SubmitResult{State: worker.RemoteFailed, ErrorMsg: "transient"}
	svc := newTestService(store, dec, client)

	created, err := svc.Decompose(context.Background(), "flaky task", "", "")
	assert.NoError(t, err)

	first, err := svc.Execute(context.Background(), created.ID, time.Minute)
	assert.NoError(t, err)
	assert.Equal(t, models.FailedWorkflowStatus, first.Status)
	assert.Equal(t, "transient", first.Subtasks["a"].ErrorMsg)

	// The worker recovers; the same workflow id runs again from a clean slate.
	client.mu.Lock()
	delete(client.results, "a")
	client.mu.Unlock()

	second, err := svc.Execute(context.Background(), created.ID, time.Minute)
	assert.NoError(t, err)
	assert.Equal(t, created.ID, second.ID)
	assert.Equal(t, models.CompletedWorkflowStatus, second.Status)
	assert.Equal(t, models.CompletedSubtaskStatus, second.Subtasks["a"].Status)
	assert.Empty(t, second.Subtasks["a"].ErrorMsg)
	assert.Equal(t, 1, second.Subtasks["a"].AttemptCount)
}

func TestWorkflowService_GetStatusRecomputesAggregate(t *testing.T) {
	store := storage.NewMockStore()
	dec := &fakeDecomposer{plan: plan("one step",
		decompose.SubtaskSpec{ID: "a", WorkerID: "general", CapabilityID: "execute"},
	)}
	svc := newTestService(store, dec, newFakeClient())

	created, err := svc.Decompose(context.Background(), "one step task", "", "")
	assert.NoError(t, err)

	// Before execution there is nothing to aggregate.
	pending, err := svc.GetStatus(created.ID)
	assert.NoError(t, err)
	assert.Nil(t, pending.AggregatedResult)

	_, err = svc.Execute(context.Background(), created.ID, time.Minute)
	assert.NoError(t, err)

	done, err := svc.GetStatus(created.ID)
	assert.NoError(t, err)
	if assert.NotNil(t, done.AggregatedResult) {
		assert.Equal(t, 1, done.AggregatedResult.Completed)
	}

	_, err = svc.GetStatus("missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestWorkflowService_AuditTrailCoversRun(t *testing.T) {
	store := storage.NewMockStore()
	dec := &fakeDecomposer{plan: plan("audited",
		decompose.SubtaskSpec{ID: "a", WorkerID: "general", CapabilityID: "execute"},
	)}
	svc := newTestService(store, dec, newFakeClient())

	created, err := svc.Decompose(context.Background(), "audited task", "", "")
	assert.NoError(t, err)
	_, err = svc.Execute(context.Background(), created.ID, time.Minute)
	assert.NoError(t, err)

	events, err := svc.AuditTrail(created.ID)
	assert.NoError(t, err)
	types := make([]models.AuditEventType, 0, len(events))
	for _, e := range events {
		types = append(types, e.Type)
	}
	assert.Contains(t, types, models.WorkflowCreatedEvent)
	assert.Contains(t, types, models.WorkflowCompletedEvent)
}

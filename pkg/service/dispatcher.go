package service

import (
	"context"
	"sync"
	"time"

	"github.com/vmitrev/agentmesh/pkg/audit"
	"github.com/vmitrev/agentmesh/pkg/models"
	"github.com/vmitrev/agentmesh/pkg/storage"
	"github.com/vmitrev/agentmesh/pkg/worker"
)

const (
	// DefaultWorkerCount bounds how many subtasks may be in flight at once.
	DefaultWorkerCount = 4
	// DefaultPollInterval is the wait between polls of an asynchronous remote result.
	DefaultPollInterval = 500 * time.Millisecond
	// DefaultWorkflowTimeout is the wall-clock budget for one execution attempt.
	DefaultWorkflowTimeout = 10 * time.Minute
)

// DispatcherConfig tunes the concurrency core.
type DispatcherConfig struct {
	Workers      int
	PollInterval time.Duration
}

// Dispatcher executes ready subtasks concurrently, bounded by a worker pool,
// and drives a workflow to exactly one terminal status per run.
//
// The in-memory workflow is mutated only by the coordinating loop in Run;
// worker goroutines operate on subtask copies and hand results back over a
// channel, so two concurrent completions can never corrupt the ready-set
// bookkeeping.
type Dispatcher struct {
	store        storage.Store
	directory    worker.Directory
	client       worker.ExecutionClient
	sink         audit.Sink
	logger       Logger
	workers      int
	pollInterval time.Duration
}

func NewDispatcher(
	store storage.Store,
	directory worker.Directory,
	client worker.ExecutionClient,
	sink audit.Sink,
	logger Logger,
	cfg DispatcherConfig) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkerCount
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	return &Dispatcher{
		store:        store,
		directory:    directory,
		client:       client,
		sink:         sink,
		logger:       logger,
		workers:      cfg.Workers,
		pollInterval: cfg.PollInterval,
	}
}

// dispatchItem is one queued subtask plus the execution context built from
// the outputs of its completed dependencies.
type dispatchItem struct {
	subtask models.Subtask
	input   models.JSONMap
}

type outcome struct {
	subtask models.Subtask
}

// Run executes wf until every subtask is terminal or the workflow timeout
// expires. On a cyclic graph it fails the workflow before dispatching
// anything and returns ErrCycleDetected. Subtask-level errors never escape;
// the workflow always reaches a terminal status.
func (d *Dispatcher) Run(ctx context.Context, wf *models.Workflow, timeout time.Duration) error {
	sched, err := newScheduler(wf.Subtasks)
	if err != nil {
		wf.Status = models.FailedWorkflowStatus
		d.logger.Errorf("Workflow %s failed validation: %v", wf.ID, err)
		d.sink.Record(models.AuditEvent{
			WorkflowID: wf.ID,
			Type:       models.WorkflowFailedEvent,
			Details:    models.JSONMap{"error": err.Error()},
		})
		return err
	}

	if timeout <= 0 {
		timeout = DefaultWorkflowTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	taskCh := make(chan dispatchItem)
	// Buffered so workers never block handing back a result after the
	// coordinating loop has stopped receiving.
	resultCh := make(chan outcome, len(wf.Subtasks))
	var wg sync.WaitGroup
	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range taskCh {
				resultCh <- d.executeOne(runCtx, item)
			}
		}()
	}

	var queue []dispatchItem
	enqueue := func(ids []string) {
		for _, id := range ids {
			st := wf.Subtasks[id]
			st.Status = models.QueuedSubtaskStatus
			d.persistSubtask(*st)
			queue = append(queue, dispatchItem{subtask: *st, input: buildInput(wf, st)})
		}
	}
	enqueue(sched.Ready())

	inflight := 0
	timedOut := false
loop:
	for inflight > 0 || len(queue) > 0 {
		// A nil send channel keeps the send case dormant while the queue is empty.
		var sendCh chan dispatchItem
		var next dispatchItem
		if len(queue) > 0 {
			sendCh = taskCh
			next = queue[0]
		}
		select {
		case sendCh <- next:
			queue = queue[1:]
			inflight++
		case out := <-resultCh:
			inflight--
			d.handleOutcome(wf, sched, out)
			enqueue(sched.Ready())
		case <-runCtx.Done():
			timedOut = true
			break loop
		}
	}
	close(taskCh)

	if timedOut {
		d.cancelUnfinished(wf)
	}
	// Workers notice the expired context quickly; in-flight remote work is
	// abandoned, not forcibly killed.
	wg.Wait()

	wf.AggregatedResult = Aggregate(wf)
	wf.Status = terminalStatus(wf.AggregatedResult)
	eventType := models.WorkflowCompletedEvent
	if wf.Status == models.FailedWorkflowStatus {
		eventType = models.WorkflowFailedEvent
	}
	d.sink.Record(models.AuditEvent{
		WorkflowID: wf.ID,
		Type:       eventType,
		Details: models.JSONMap{
			"status":    string(wf.Status),
			"completed": wf.AggregatedResult.Completed,
			"failed":    wf.AggregatedResult.Failed,
			"blocked":   wf.AggregatedResult.Blocked,
			"canceled":  wf.AggregatedResult.Canceled,
		},
	})
	d.logger.Infof("Workflow %s finished with status %s (%d/%d subtasks completed)",
		wf.ID, wf.Status, wf.AggregatedResult.Completed, wf.AggregatedResult.Total)
	return nil
}

// handleOutcome merges one finished subtask back into the workflow, notifies
// the scheduler and blocks the immediate dependents of a failure. Repeated
// passes keep propagating blocking as further failures occur, because a
// blocked subtask is never later revisited as ready.
func (d *Dispatcher) handleOutcome(wf *models.Workflow, sched *scheduler, out outcome) {
	st := wf.Subtasks[out.subtask.ID]
	*st = out.subtask
	d.persistSubtask(*st)

	switch st.Status {
	case models.CompletedSubtaskStatus:
		sched.OnCompleted(st.ID)
		d.sink.Record(models.AuditEvent{
			WorkflowID: wf.ID,
			SubtaskID:  st.ID,
			Type:       models.SubtaskCompletedEvent,
			Details:    models.JSONMap{"duration_ms": st.DurationMS},
		})
	case models.CanceledSubtaskStatus:
		sched.OnSettled(st.ID)
		d.sink.Record(models.AuditEvent{
			WorkflowID: wf.ID,
			SubtaskID:  st.ID,
			Type:       models.SubtaskCanceledEvent,
		})
	default:
		sched.OnSettled(st.ID)
		d.sink.Record(models.AuditEvent{
			WorkflowID: wf.ID,
			SubtaskID:  st.ID,
			Type:       models.SubtaskFailedEvent,
			Details:    models.JSONMap{"error": st.ErrorMsg},
		})
		d.blockDependents(wf, sched, st.ID)
	}
}

func (d *Dispatcher) blockDependents(wf *models.Workflow, sched *scheduler, failedID string) {
	for _, depID := range sched.Dependents(failedID) {
		dep := wf.Subtasks[depID]
		if dep.Status != models.PendingSubtaskStatus && dep.Status != models.QueuedSubtaskStatus {
			continue
		}
		dep.Status = models.BlockedSubtaskStatus
		sched.OnSettled(depID)
		d.persistSubtask(*dep)
		d.sink.Record(models.AuditEvent{
			WorkflowID: wf.ID,
			SubtaskID:  depID,
			Type:       models.SubtaskBlockedEvent,
			Details:    models.JSONMap{"blocked_by": failedID},
		})
	}
}

// cancelUnfinished marks everything still pending or queued as canceled so an
// operator can distinguish "never got a chance to run" from "ran and errored".
func (d *Dispatcher) cancelUnfinished(wf *models.Workflow) {
	for _, st := range wf.Subtasks {
		if st.Status != models.PendingSubtaskStatus && st.Status != models.QueuedSubtaskStatus {
			continue
		}
		st.Status = models.CanceledSubtaskStatus
		d.persistSubtask(*st)
		d.sink.Record(models.AuditEvent{
			WorkflowID: wf.ID,
			SubtaskID:  st.ID,
			Type:       models.SubtaskCanceledEvent,
			Details:    models.JSONMap{"reason": "workflow timeout"},
		})
	}
	d.logger.Warnf("Workflow %s exceeded its timeout, canceled unfinished subtasks", wf.ID)
}

// executeOne runs a single subtask against its worker. It operates on a copy
// and never touches shared workflow state.
func (d *Dispatcher) executeOne(ctx context.Context, item dispatchItem) outcome {
	st := item.subtask
	if ctx.Err() != nil {
		st.Status = models.CanceledSubtaskStatus
		return outcome{subtask: st}
	}

	start := time.Now()
	st.Status = models.WorkingSubtaskStatus
	st.StartedAt = &start
	st.AttemptCount++
	d.persistSubtask(st)
	d.sink.Record(models.AuditEvent{
		WorkflowID: st.WorkflowID,
		SubtaskID:  st.ID,
		Type:       models.SubtaskDispatchedEvent,
		Details:    models.JSONMap{"worker_id": st.WorkerID, "capability_id": st.CapabilityID},
	})

	finish := func() {
		st.DurationMS = time.Since(start).Milliseconds()
		now := time.Now()
		st.FinishedAt = &now
	}
	fail := func(err error) outcome {
		finish()
		if ctx.Err() != nil {
			st.Status = models.CanceledSubtaskStatus
			st.ErrorMsg = ""
			return outcome{subtask: st}
		}
		st.Status = models.FailedSubtaskStatus
		st.ErrorMsg = err.Error()
		return outcome{subtask: st}
	}

	ep, err := d.directory.Resolve(ctx, st.WorkerID)
	if err != nil {
		// A missing worker registration is not transient; no retry.
		return fail(err)
	}

	res, err := d.client.Submit(ctx, ep, worker.SubmitRequest{
		WorkflowID:   st.WorkflowID,
		SubtaskID:    st.ID,
		CapabilityID: st.CapabilityID,
		Description:  st.Description,
		Input:        item.input,
	})
	if err != nil {
		return fail(err)
	}

	state, output, errMsg := res.State, res.Output, res.ErrorMsg
	if !state.Terminal() {
		state, output, errMsg, err = d.waitForResult(ctx, ep, res.Handle)
		if err != nil {
			return fail(err)
		}
	}

	finish()
	if state == worker.RemoteCompleted {
		st.Status = models.CompletedSubtaskStatus
		st.OutputData = output
		st.ErrorMsg = ""
	} else {
		st.Status = models.FailedSubtaskStatus
		if errMsg == "" {
			errMsg = "worker reported failure without a message"
		}
		st.ErrorMsg = errMsg
	}
	return outcome{subtask: st}
}

// waitForResult polls an asynchronous remote task until it reaches a terminal
// state or the workflow budget runs out.
func (d *Dispatcher) waitForResult(ctx context.Context, ep worker.Endpoint, handle string) (worker.RemoteState, models.JSONMap, string, error) {
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return "", nil, "", ctx.Err()
		case <-ticker.C:
			res, err := d.client.Poll(ctx, ep, handle)
			if err != nil {
				return "", nil, "", err
			}
			if res.State.Terminal() {
				return res.State, res.Output, res.ErrorMsg, nil
			}
		}
	}
}

func (d *Dispatcher) persistSubtask(st models.Subtask) {
	if err := d.store.UpdateSubtaskStatus(st); err != nil {
		d.logger.Errorf("Failed to persist subtask %s status %s: %v", st.ID, st.Status, err)
	}
}

// buildInput assembles the execution context for a ready subtask: its own
// input plus the outputs of all completed dependencies, so downstream
// subtasks consume upstream results without a shared mutable blackboard.
func buildInput(wf *models.Workflow, st *models.Subtask) models.JSONMap {
	input := make(models.JSONMap, len(st.InputData)+1)
	for k, v := range st.InputData {
		input[k] = v
	}
	if len(st.DependsOn) > 0 {
		deps := make(map[string]interface{}, len(st.DependsOn))
		for _, depID := range st.DependsOn {
			if dep, ok := wf.Subtasks[depID]; ok && dep.OutputData != nil {
				deps[depID] = map[string]interface{}(dep.OutputData)
			}
		}
		input["dependencies"] = deps
	}
	return input
}

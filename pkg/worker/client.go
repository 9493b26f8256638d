package worker

import (
	"context"

	"github.com/vmitrev/agentmesh/pkg/models"
)

// RemoteState is the remote side's view of a submitted subtask.
type RemoteState string

const (
	RemotePending   RemoteState = "pending"
	RemoteWorking   RemoteState = "working"
	RemoteCompleted RemoteState = "completed"
	RemoteFailed    RemoteState = "failed"
)

// Terminal reports whether the remote state will not change again.
func (s RemoteState) Terminal() bool {
	return s == RemoteCompleted || s == RemoteFailed
}

// SubmitRequest carries one subtask to a worker endpoint.
type SubmitRequest struct {
	WorkflowID   string         `json:"workflow_id"`
	SubtaskID    string         `json:"subtask_id"`
	CapabilityID string         `json:"capability_id"`
	Description  string         `json:"description"`
	Input        models.JSONMap `json:"input,omitempty"`
}

// SubmitResult is the immediate outcome of a submission. When State is not
// terminal, Handle identifies the remote task for subsequent polls.
type SubmitResult struct {
	State    RemoteState    `json:"state"`
	Handle   string         `json:"handle,omitempty"`
	Output   models.JSONMap `json:"output,omitempty"`
	ErrorMsg string         `json:"error,omitempty"`
}

// PollResult is the outcome of one poll of an asynchronous remote task.
type PollResult struct {
	State    RemoteState    `json:"state"`
	Output   models.JSONMap `json:"output,omitempty"`
	ErrorMsg string         `json:"error,omitempty"`
}

// ExecutionClient sends subtasks to worker endpoints. Implementations exist
// per transport; both calls must honor ctx cancellation.
type ExecutionClient interface {
	Submit(ctx context.Context, ep Endpoint, req SubmitRequest) (SubmitResult, error)
	Poll(ctx context.Context, ep Endpoint, handle string) (PollResult, error)
}

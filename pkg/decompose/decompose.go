// Package decompose turns a natural-language task description into a workflow
// of subtasks with dependencies.
package decompose

import (
	"context"

	"github.com/vmitrev/agentmesh/pkg/worker"
)

// Logger is the subset of logging used by this package.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Request is the input to the decomposition service.
type Request struct {
	Description string
	ContextID   string
	// Catalog is the available workers and their capabilities. When empty,
	// the graph builder discovers it from the worker directory.
	Catalog []worker.Endpoint
}

// SubtaskSpec is one subtask descriptor returned by the decomposition service.
type SubtaskSpec struct {
	ID           string   `json:"id"`
	WorkerID     string   `json:"worker_id"`
	CapabilityID string   `json:"capability_id"`
	Description  string   `json:"description"`
	DependsOn    []string `json:"depends_on"`
}

// Plan is the structured output of a decomposition attempt.
type Plan struct {
	WorkflowName string        `json:"workflow_name"`
	Subtasks     []SubtaskSpec `json:"subtasks"`
}

// Service produces a candidate subtask graph for a task description.
// Retry and backoff are internal concerns of the implementation; the engine
// only needs a success/failure/timeout outcome from this boundary.
type Service interface {
	Decompose(ctx context.Context, req Request) (Plan, error)
}

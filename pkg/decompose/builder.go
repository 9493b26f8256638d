package decompose

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vmitrev/agentmesh/pkg/models"
	"github.com/vmitrev/agentmesh/pkg/worker"
)

const (
	// DefaultWorkerID and DefaultCapabilityID address the fallback subtask
	// produced when decomposition fails.
	DefaultWorkerID     = "general"
	DefaultCapabilityID = "execute"

	maxFallbackNameLen = 60
)

// GraphBuilder turns a task description into a Workflow with a populated
// subtask map. It never fails: when the decomposition service is unreachable
// or returns malformed output, it degrades to a single-subtask workflow
// carrying the whole description.
type GraphBuilder struct {
	svc       Service
	directory worker.Directory
	logger    Logger
}

func NewGraphBuilder(svc Service, directory worker.Directory, logger Logger) *GraphBuilder {
	return &GraphBuilder{svc: svc, directory: directory, logger: logger}
}

// Build decomposes description into a Workflow. All subtasks start PENDING.
func (b *GraphBuilder) Build(ctx context.Context, description, contextID, createdBy string) models.Workflow {
	req := Request{Description: description, ContextID: contextID}
	catalog, err := b.directory.List(ctx)
	if err != nil {
		b.logger.Warnf("Failed to list worker catalog, decomposing without it: %v", err)
	} else {
		req.Catalog = catalog
	}

	fellBack := false
	plan, err := b.svc.Decompose(ctx, req)
	if err != nil {
		b.logger.Warnf("Decomposition failed, falling back to single subtask: %v", err)
		plan = fallbackPlan(description)
		fellBack = true
	} else if len(plan.Subtasks) == 0 {
		b.logger.Warnf("Decomposition returned no subtasks, falling back to single subtask")
		plan = fallbackPlan(description)
		fellBack = true
	}

	wf := models.Workflow{
		ID:        uuid.NewString(),
		Name:      plan.WorkflowName,
		ContextID: contextID,
		CreatedBy: createdBy,
		Status:    models.PendingWorkflowStatus,
		Subtasks:  make(map[string]*models.Subtask, len(plan.Subtasks)),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if wf.Name == "" {
		wf.Name = fallbackName(description)
	}

	// First pass: register subtasks so dependency references can be checked.
	for _, spec := range plan.Subtasks {
		id := spec.ID
		if id == "" {
			id = uuid.NewString()
			b.logger.Warnf("Subtask descriptor without id, assigned %s", id)
		}
		if _, exists := wf.Subtasks[id]; exists {
			b.logger.Warnf("Duplicate subtask id '%s' in decomposition output, keeping the first", id)
			continue
		}
		st := &models.Subtask{
			ID:           id,
			WorkflowID:   wf.ID,
			WorkerID:     spec.WorkerID,
			CapabilityID: spec.CapabilityID,
			Description:  spec.Description,
			Status:       models.PendingSubtaskStatus,
		}
		if fellBack {
			// The degraded one-step workflow carries the whole task description
			// as its input.
			st.InputData = models.JSONMap{"task": description}
		}
		wf.Subtasks[id] = st
	}

	// Second pass: keep only dependency edges that reference known subtasks.
	// Unknown references are dropped, never silently assumed satisfied.
	for _, spec := range plan.Subtasks {
		st, ok := wf.Subtasks[spec.ID]
		if !ok || st.DependsOn != nil {
			continue
		}
		deps := make([]string, 0, len(spec.DependsOn))
		for _, dep := range spec.DependsOn {
			if _, known := wf.Subtasks[dep]; !known {
				b.logger.Warnf("Subtask '%s' depends on unknown subtask '%s', dropping the edge", st.ID, dep)
				continue
			}
			deps = append(deps, dep)
		}
		st.DependsOn = deps
	}

	b.logger.Infof("Built workflow '%s' (%s) with %d subtasks", wf.Name, wf.ID, len(wf.Subtasks))
	return wf
}

func fallbackPlan(description string) Plan {
	return Plan{
		WorkflowName: fallbackName(description),
		Subtasks: []SubtaskSpec{
			{
				ID:           uuid.NewString(),
				WorkerID:     DefaultWorkerID,
				CapabilityID: DefaultCapabilityID,
				Description:  description,
			},
		},
	}
}

func fallbackName(description string) string {
	name := strings.TrimSpace(description)
	if len(name) > maxFallbackNameLen {
		name = name[:maxFallbackNameLen]
	}
	if name == "" {
		name = "workflow"
	}
	return name
}

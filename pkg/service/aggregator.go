package service

import "github.com/vmitrev/agentmesh/pkg/models"

// Aggregate produces the summary of one execution attempt. It is pure
// computation over the final subtask map; it is recomputed rather than
// incrementally maintained so it can never drift from the true final state.
func Aggregate(wf *models.Workflow) *models.AggregatedResult {
	agg := &models.AggregatedResult{
		Total:    len(wf.Subtasks),
		Subtasks: make(map[string]models.SubtaskResult, len(wf.Subtasks)),
	}
	for id, st := range wf.Subtasks {
		switch st.Status {
		case models.CompletedSubtaskStatus:
			agg.Completed++
		case models.FailedSubtaskStatus:
			agg.Failed++
		case models.BlockedSubtaskStatus:
			agg.Blocked++
		case models.CanceledSubtaskStatus:
			agg.Canceled++
		}
		agg.TotalDurationMS += st.DurationMS
		agg.Subtasks[id] = models.SubtaskResult{
			Status:     st.Status,
			DurationMS: st.DurationMS,
			Output:     st.OutputData,
			Error:      st.ErrorMsg,
		}
	}
	return agg
}

// terminalStatus applies the workflow terminal-status rule exactly once per
// run, after dispatch has fully drained.
func terminalStatus(agg *models.AggregatedResult) models.WorkflowStatus {
	switch {
	case agg.Completed == agg.Total:
		return models.CompletedWorkflowStatus
	case agg.Completed == 0 && agg.Failed > 0:
		return models.FailedWorkflowStatus
	default:
		return models.PartiallyCompletedWorkflowStatus
	}
}

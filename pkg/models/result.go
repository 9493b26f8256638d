package models

// SubtaskResult is the per-subtask entry in an aggregated workflow summary.
type SubtaskResult struct {
	Status     SubtaskStatus `json:"status"`
	DurationMS int64         `json:"duration_ms"`
	Output     JSONMap       `json:"output,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// AggregatedResult summarizes one workflow execution attempt.
// It is recomputed from the final subtask map, never incrementally maintained.
type AggregatedResult struct {
	Total           int                      `json:"total"`
	Completed       int                      `json:"completed"`
	Failed          int                      `json:"failed"`
	Blocked         int                      `json:"blocked"`
	Canceled        int                      `json:"canceled"`
	TotalDurationMS int64                    `json:"total_duration_ms"`
	Subtasks        map[string]SubtaskResult `json:"subtasks"`
}

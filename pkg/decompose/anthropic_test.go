package decompose

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vmitrev/agentmesh/pkg/worker"
)

func TestParsePlan_PlainJSON(t *testing.T) {
	plan, err := parsePlan(`{"workflow_name": "report", "subtasks": [
		{"id": "t1", "worker_id": "crawler", "capability_id": "fetch", "description": "fetch the page", "depends_on": []},
		{"id": "t2", "worker_id": "writer", "capability_id": "summarize", "description": "summarize it", "depends_on": ["t1"]}
	]}`)
	assert.NoError(t, err)
	assert.Equal(t, "report", plan.WorkflowName)
	assert.Len(t, plan.Subtasks, 2)
	assert.Equal(t, []string{"t1"}, plan.Subtasks[1].DependsOn)
}

func TestParsePlan_SurroundingProseAndFences(t *testing.T) {
	plan, err := parsePlan("Here is the plan:\n```json\n" +
		`{"workflow_name": "x", "subtasks": [{"id": "t1", "worker_id": "w", "capability_id": "c", "description": "d"}]}` +
		"\n```\nLet me know if you need changes.")
	assert.NoError(t, err)
	assert.Len(t, plan.Subtasks, 1)
	assert.Equal(t, "t1", plan.Subtasks[0].ID)
}

func TestParsePlan_Malformed(t *testing.T) {
	_, err := parsePlan("I could not produce a plan.")
	assert.ErrorContains(t, err, "malformed decomposition output")
}

func TestParsePlan_MissingSubtasks(t *testing.T) {
	_, err := parsePlan(`{"workflow_name": "x"}`)
	assert.ErrorContains(t, err, "lacks a subtask array")
}

func TestBuildPrompt_IncludesCatalog(t *testing.T) {
	prompt := buildPrompt(Request{
		Description: "summarize the report",
		ContextID:   "proj-1",
		Catalog: []worker.Endpoint{
			{WorkerID: "writer", Name: "Writer", Capabilities: []worker.Capability{
				{ID: "summarize", Description: "summarize documents"},
			}},
		},
	})
	assert.Contains(t, prompt, "Task: summarize the report")
	assert.Contains(t, prompt, "Context: proj-1")
	assert.Contains(t, prompt, "writer")
	assert.Contains(t, prompt, "capability summarize")
}

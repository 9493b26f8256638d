package service

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vmitrev/agentmesh/pkg/models"
)

func graph(edges map[string][]string) map[string]*models.Subtask {
	subtasks := make(map[string]*models.Subtask, len(edges))
	for id, deps := range edges {
		subtasks[id] = &models.Subtask{
			ID:        id,
			DependsOn: deps,
			Status:    models.PendingSubtaskStatus,
		}
	}
	return subtasks
}

func sorted(ids []string) []string {
	out := append([]string(nil), ids...)
	sort.Strings(out)
	return out
}

func TestScheduler_ReadyRoots(t *testing.T) {
	sched, err := newScheduler(graph(map[string][]string{
		"a": nil,
		"b": nil,
		"c": {"a", "b"},
	}))
	assert.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, sorted(sched.Ready()))
	// Each id is offered exactly once.
	assert.Empty(t, sched.Ready())
}

func TestScheduler_ReleaseOnLastDependency(t *testing.T) {
	sched, err := newScheduler(graph(map[string][]string{
		"a": nil,
		"b": nil,
		"c": {"a", "b"},
	}))
	assert.NoError(t, err)
	sched.Ready()

	sched.OnCompleted("a")
	assert.Empty(t, sched.Ready(), "c must wait for b as well")

	sched.OnCompleted("b")
	assert.Equal(t, []string{"c"}, sched.Ready())
}

func TestScheduler_ChainReleasesInOrder(t *testing.T) {
	sched, err := newScheduler(graph(map[string][]string{
		"a": nil,
		"b": {"a"},
		"c": {"b"},
	}))
	assert.NoError(t, err)

	assert.Equal(t, []string{"a"}, sched.Ready())
	sched.OnCompleted("a")
	assert.Equal(t, []string{"b"}, sched.Ready())
	sched.OnCompleted("b")
	assert.Equal(t, []string{"c"}, sched.Ready())
	sched.OnCompleted("c")
	assert.Empty(t, sched.Ready())
}

func TestScheduler_SettledWithoutReleaseHoldsDependents(t *testing.T) {
	sched, err := newScheduler(graph(map[string][]string{
		"a": nil,
		"b": {"a"},
	}))
	assert.NoError(t, err)
	sched.Ready()

	sched.OnSettled("a")
	assert.Empty(t, sched.Ready(), "a failed, b must never become ready")
}

func TestScheduler_DuplicateCompletionIsIgnored(t *testing.T) {
	sched, err := newScheduler(graph(map[string][]string{
		"a": nil,
		"b": {"a", "a"},
	}))
	assert.NoError(t, err)
	sched.Ready()

	sched.OnCompleted("a")
	sched.OnCompleted("a")
	// b is released once; the repeated completion must not offer it again.
	assert.Equal(t, []string{"b"}, sched.Ready())
	assert.Empty(t, sched.Ready())
}

func TestScheduler_CycleDetected(t *testing.T) {
	_, err := newScheduler(graph(map[string][]string{
		"a": {"b"},
		"b": {"a"},
	}))
	assert.ErrorIs(t, err, ErrCycleDetected)
}

func TestScheduler_SelfCycleDetected(t *testing.T) {
	_, err := newScheduler(graph(map[string][]string{
		"a": {"a"},
	}))
	assert.ErrorIs(t, err, ErrCycleDetected)
}

func TestScheduler_Dependents(t *testing.T) {
	sched, err := newScheduler(graph(map[string][]string{
		"a": nil,
		"b": {"a"},
		"c": {"a"},
	}))
	assert.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, sorted(sched.Dependents("a")))
	assert.Empty(t, sched.Dependents("b"))
}

package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJSONMap_RoundTrip(t *testing.T) {
	m := JSONMap{"task": "fetch", "count": float64(3)}
	v, err := m.Value()
	assert.NoError(t, err)

	var out JSONMap
	assert.NoError(t, out.Scan(v))
	assert.Equal(t, m, out)
}

func TestJSONMap_NilAndInvalid(t *testing.T) {
	var m JSONMap
	v, err := m.Value()
	assert.NoError(t, err)
	assert.Nil(t, v)

	var out JSONMap
	assert.NoError(t, out.Scan(nil))
	assert.Nil(t, out)
	assert.Error(t, out.Scan(42))
}

func TestStringList_NilStoresEmptyArray(t *testing.T) {
	var l StringList
	v, err := l.Value()
	assert.NoError(t, err)
	assert.Equal(t, []byte("[]"), v)

	var out StringList
	assert.NoError(t, out.Scan([]byte(`["a","b"]`)))
	assert.Equal(t, StringList{"a", "b"}, out)
}

func TestSubtaskStatus_Terminal(t *testing.T) {
	assert.False(t, PendingSubtaskStatus.Terminal())
	assert.False(t, QueuedSubtaskStatus.Terminal())
	assert.False(t, WorkingSubtaskStatus.Terminal())
	assert.True(t, CompletedSubtaskStatus.Terminal())
	assert.True(t, FailedSubtaskStatus.Terminal())
	assert.True(t, CanceledSubtaskStatus.Terminal())
	assert.True(t, BlockedSubtaskStatus.Terminal())
}

func TestWorkflowStatus_Terminal(t *testing.T) {
	assert.False(t, PendingWorkflowStatus.Terminal())
	assert.False(t, RunningWorkflowStatus.Terminal())
	assert.True(t, CompletedWorkflowStatus.Terminal())
	assert.True(t, FailedWorkflowStatus.Terminal())
	assert.True(t, PartiallyCompletedWorkflowStatus.Terminal())
	assert.True(t, CanceledWorkflowStatus.Terminal())
}

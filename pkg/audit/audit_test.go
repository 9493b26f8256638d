package audit_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vmitrev/agentmesh/pkg/audit"
	"github.com/vmitrev/agentmesh/pkg/models"
	"github.com/vmitrev/agentmesh/pkg/storage"
)

type countingLogger struct {
	infos  int
	errors int
}

func (l *countingLogger) Infof(format string, args ...interface{})  { l.infos++ }
func (l *countingLogger) Errorf(format string, args ...interface{}) { l.errors++ }

func TestStoreSink_AppendsToTrail(t *testing.T) {
	store := storage.NewMockStore()
	sink := audit.NewStoreSink(store, &countingLogger{})

	sink.Record(models.AuditEvent{WorkflowID: "wf-1", Type: models.WorkflowCreatedEvent})
	sink.Record(models.AuditEvent{WorkflowID: "wf-1", SubtaskID: "t1", Type: models.SubtaskDispatchedEvent})

	events, err := store.ListAuditEvents("wf-1")
	assert.NoError(t, err)
	if assert.Len(t, events, 2) {
		assert.Equal(t, models.WorkflowCreatedEvent, events[0].Type)
		assert.False(t, events[0].CreatedAt.IsZero(), "sink stamps missing timestamps")
	}
}

func TestMultiSink_FansOut(t *testing.T) {
	store := storage.NewMockStore()
	logger := &countingLogger{}
	sink := audit.MultiSink{
		audit.NewStoreSink(store, logger),
		audit.NewLogSink(logger),
		audit.Discard{},
	}

	sink.Record(models.AuditEvent{WorkflowID: "wf-2", Type: models.WorkflowCompletedEvent})

	events, err := store.ListAuditEvents("wf-2")
	assert.NoError(t, err)
	assert.Len(t, events, 1)
	assert.Equal(t, 1, logger.infos)
}

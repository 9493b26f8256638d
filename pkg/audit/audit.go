// Package audit provides the append-only audit sink for workflow and subtask
// state transitions.
package audit

import (
	"time"

	"github.com/vmitrev/agentmesh/pkg/models"
	"github.com/vmitrev/agentmesh/pkg/storage"
)

// Sink receives structured events for every state transition. Record must
// never fail the caller; sinks deal with their own errors.
type Sink interface {
	Record(e models.AuditEvent)
}

// Logger is the subset of logging used by audit sinks.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// StoreSink appends events to the durable store's audit trail.
type StoreSink struct {
	store  storage.Store
	logger Logger
}

func NewStoreSink(store storage.Store, logger Logger) *StoreSink {
	return &StoreSink{store: store, logger: logger}
}

func (s *StoreSink) Record(e models.AuditEvent) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	if err := s.store.AppendAuditEvent(e); err != nil {
		// The audit trail is best-effort from the dispatcher's point of view;
		// a failed append must not fail the workflow.
		s.logger.Errorf("Failed to append audit event %s for workflow %s: %v", e.Type, e.WorkflowID, err)
	}
}

// LogSink writes events to the application log.
type LogSink struct {
	logger Logger
}

func NewLogSink(logger Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Record(e models.AuditEvent) {
	if e.SubtaskID != "" {
		s.logger.Infof("audit: %s workflow=%s subtask=%s details=%v", e.Type, e.WorkflowID, e.SubtaskID, e.Details)
		return
	}
	s.logger.Infof("audit: %s workflow=%s details=%v", e.Type, e.WorkflowID, e.Details)
}

// MultiSink fans one event out to several sinks.
type MultiSink []Sink

func (m MultiSink) Record(e models.AuditEvent) {
	for _, s := range m {
		s.Record(e)
	}
}

// Discard is a Sink that drops every event, for tests.
type Discard struct{}

func (Discard) Record(models.AuditEvent) {}

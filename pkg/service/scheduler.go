package service

import (
	"github.com/pkg/errors"

	"github.com/vmitrev/agentmesh/pkg/models"
)

// ErrCycleDetected indicates the dependency edges of a workflow form a cycle.
var ErrCycleDetected = errors.New("cycle detected in dependencies")

// scheduler converts the depends_on edges of a workflow into an incremental
// ready-set computation. Readiness is tracked with in-degree counters so
// completions do not require re-scanning the whole graph, and a subtask is
// never offered for dispatch twice.
//
// The scheduler is not safe for concurrent use; the dispatcher's coordinating
// loop is its only caller.
type scheduler struct {
	indegree   map[string]int
	dependents map[string][]string
	ready      []string
	offered    map[string]bool
	settled    map[string]bool
}

// newScheduler builds the dependency graph and rejects cyclic input before
// any work begins.
func newScheduler(subtasks map[string]*models.Subtask) (*scheduler, error) {
	s := &scheduler{
		indegree:   make(map[string]int, len(subtasks)),
		dependents: make(map[string][]string),
		offered:    make(map[string]bool, len(subtasks)),
		settled:    make(map[string]bool, len(subtasks)),
	}
	for id, st := range subtasks {
		s.indegree[id] = len(st.DependsOn)
		for _, dep := range st.DependsOn {
			s.dependents[dep] = append(s.dependents[dep], id)
		}
	}

	// Kahn's algorithm over a scratch copy: if not every node can be ordered,
	// the graph has a cycle.
	scratch := make(map[string]int, len(s.indegree))
	var queue []string
	for id, deg := range s.indegree {
		scratch[id] = deg
		if deg == 0 {
			queue = append(queue, id)
		}
	}
	visited := 0
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		visited++
		for _, dep := range s.dependents[curr] {
			scratch[dep]--
			if scratch[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}
	if visited != len(subtasks) {
		return nil, ErrCycleDetected
	}

	for id, deg := range s.indegree {
		if deg == 0 {
			s.ready = append(s.ready, id)
		}
	}
	return s, nil
}

// Ready returns the subtask ids whose dependencies are all completed and that
// have not been offered for dispatch yet. Each id is returned exactly once.
func (s *scheduler) Ready() []string {
	out := s.ready
	s.ready = nil
	for _, id := range out {
		s.offered[id] = true
	}
	return out
}

// OnCompleted records a successful completion and releases dependents whose
// last unmet dependency this was.
func (s *scheduler) OnCompleted(id string) {
	if s.settled[id] {
		return
	}
	s.settled[id] = true
	for _, dep := range s.dependents[id] {
		s.indegree[dep]--
		if s.indegree[dep] == 0 && !s.offered[dep] && !s.settled[dep] {
			s.ready = append(s.ready, dep)
		}
	}
}

// OnSettled marks a subtask terminal without releasing its dependents
// (failed, blocked or canceled outcomes).
func (s *scheduler) OnSettled(id string) {
	s.settled[id] = true
}

// Dependents returns the ids that list id in their depends_on.
func (s *scheduler) Dependents(id string) []string {
	return s.dependents[id]
}

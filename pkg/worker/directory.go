// Package worker defines the boundary to remote workers: a directory that
// resolves worker ids to reachable endpoints, and an execution client that
// sends subtasks to a resolved endpoint. The engine depends only on these
// interfaces, never on a concrete worker type.
package worker

import (
	"context"

	"github.com/pkg/errors"
)

// ErrWorkerNotFound is returned when a worker id has no registered endpoint.
// A missing registration is not transient, so callers must not retry.
var ErrWorkerNotFound = errors.New("worker not found")

// Capability describes one operation a worker can perform.
type Capability struct {
	ID          string `json:"id" mapstructure:"id"`
	Description string `json:"description" mapstructure:"description"`
}

// Endpoint is a resolved, reachable worker.
type Endpoint struct {
	WorkerID     string       `json:"worker_id" mapstructure:"worker_id"`
	Name         string       `json:"name" mapstructure:"name"`
	URL          string       `json:"url" mapstructure:"url"`
	Capabilities []Capability `json:"capabilities" mapstructure:"capabilities"`
}

// Directory resolves worker ids to endpoints and lists the known catalog.
type Directory interface {
	Resolve(ctx context.Context, workerID string) (Endpoint, error)
	List(ctx context.Context) ([]Endpoint, error)
}

// StaticDirectory is a Directory backed by a fixed set of endpoints,
// typically loaded from configuration.
type StaticDirectory struct {
	endpoints map[string]Endpoint
}

func NewStaticDirectory(endpoints []Endpoint) *StaticDirectory {
	byID := make(map[string]Endpoint, len(endpoints))
	for _, ep := range endpoints {
		byID[ep.WorkerID] = ep
	}
	return &StaticDirectory{endpoints: byID}
}

func (d *StaticDirectory) Resolve(_ context.Context, workerID string) (Endpoint, error) {
	ep, ok := d.endpoints[workerID]
	if !ok {
		return Endpoint{}, errors.Wrapf(ErrWorkerNotFound, "worker '%s'", workerID)
	}
	return ep, nil
}

func (d *StaticDirectory) List(_ context.Context) ([]Endpoint, error) {
	out := make([]Endpoint, 0, len(d.endpoints))
	for _, ep := range d.endpoints {
		out = append(out, ep)
	}
	return out, nil
}

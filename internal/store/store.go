// Package store defines the persistence contract the task graph core
// consumes. The store is the single source of truth for tasks and
// dependency edges; callers above it (engine, cache, service) never keep
// authoritative state of their own.
package store

import (
	"context"
	"time"

	"github.com/khoitran3172/todo-list/internal/types"
)

// Store persists tasks and dependency edges.
//
// Implementations must be safe for concurrent use. Lookups of a missing
// task return an error matching types.ErrNotFound; every other failure is
// reported as-is and classified by the caller.
type Store interface {
	// FindTask returns the task with the given ID.
	FindTask(ctx context.Context, id int64) (*types.Task, error)

	// FindTasksPage returns tasks matching filter ordered by ID, skipping
	// offset rows and returning at most limit rows, together with the total
	// number of matching tasks.
	FindTasksPage(ctx context.Context, filter types.TaskFilter, offset, limit int) ([]*types.Task, int, error)

	// SaveTask inserts the task when its ID is zero and updates it
	// otherwise. The stored task, with ID and timestamps, is returned.
	SaveTask(ctx context.Context, task *types.Task) (*types.Task, error)

	// DeleteTask removes a task. It reports whether a row was removed.
	DeleteTask(ctx context.Context, id int64) (bool, error)

	// LoadDirectDependencies returns the IDs the task depends on, in edge
	// storage (insertion) order.
	LoadDirectDependencies(ctx context.Context, taskID int64) ([]int64, error)

	// InsertEdge stores taskID -> dependencyID.
	InsertEdge(ctx context.Context, taskID, dependencyID int64) error

	// DeleteEdge removes taskID -> dependencyID and reports whether it existed.
	DeleteEdge(ctx context.Context, taskID, dependencyID int64) (bool, error)

	// DeleteAllEdgesFor removes every edge that starts or ends at taskID.
	DeleteAllEdgesFor(ctx context.Context, taskID int64) error

	// ListEdges returns every stored edge.
	ListEdges(ctx context.Context) ([]types.Dependency, error)

	// FindTasksDueBefore returns tasks with the given status whose due date
	// is strictly before the given time, ordered by due date.
	FindTasksDueBefore(ctx context.Context, before time.Time, status types.Status) ([]*types.Task, error)
}

// CascadeDeleter is implemented by stores that can remove a task and every
// edge touching it atomically. The engine prefers it over DeleteAllEdgesFor
// followed by DeleteTask.
type CascadeDeleter interface {
	DeleteTaskCascade(ctx context.Context, id int64) (bool, error)
}

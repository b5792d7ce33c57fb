// Package graph implements the task dependency graph engine: edge mutation
// with cycle rejection, transitive dependency listing, and the
// single-writer discipline that keeps check-then-commit atomic.
//
// The engine never trusts cached data. Every cycle check and closure is
// derived from the store, which is the single source of truth.
package graph

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/khoitran3172/todo-list/internal/store"
	"github.com/khoitran3172/todo-list/internal/types"
)

// Engine owns every write to the dependency edge set.
//
// Mutations (edge add/remove, and task writes routed through Update) hold
// the write lock for their whole check-then-commit sequence. Reads routed
// through View hold the read lock, so they observe either the state before
// or after a mutation, never a partial edge set.
type Engine struct {
	store  store.Store
	logger *log.Logger

	mu    sync.RWMutex
	hooks []func()
}

// Option configures an Engine.
type Option func(*Engine)

// WithInvalidation registers a hook run after every successful mutation,
// while the write lock is still held. The cache flush is wired here.
func WithInvalidation(hook func()) Option {
	return func(e *Engine) {
		if hook != nil {
			e.hooks = append(e.hooks, hook)
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *log.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates an engine over st.
func New(st store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:  st,
		logger: log.New(os.Stderr, "[graph] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Update runs fn as a serialized mutation. If fn succeeds the invalidation
// hooks run before Update returns.
func (e *Engine) Update(ctx context.Context, fn func(ctx context.Context, st store.Store) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fn(ctx, e.store); err != nil {
		return err
	}
	e.invalidate()
	return nil
}

// View runs fn under the shared read lock.
func (e *Engine) View(ctx context.Context, fn func(ctx context.Context, st store.Store) error) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx, e.store)
}

func (e *Engine) invalidate() {
	for _, hook := range e.hooks {
		hook()
	}
}

// AddDependency records that taskID depends on dependencyID.
//
// It reports whether a new edge was written; adding an edge that already
// exists is a successful no-op. The edge is rejected with
// types.ErrSelfDependency when both IDs are equal, types.ErrTaskNotFound
// when either task is missing, and types.ErrCircularDependency when
// dependencyID already reaches taskID.
func (e *Engine) AddDependency(ctx context.Context, taskID, dependencyID int64) (bool, error) {
	if taskID == dependencyID {
		return false, fmt.Errorf("%w: %d", types.ErrSelfDependency, taskID)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireTask(ctx, taskID); err != nil {
		return false, err
	}
	if err := e.requireTask(ctx, dependencyID); err != nil {
		return false, err
	}

	direct, err := e.store.LoadDirectDependencies(ctx, taskID)
	if err != nil {
		return false, types.WrapStore("load dependencies", err)
	}
	for _, id := range direct {
		if id == dependencyID {
			return false, nil
		}
	}

	cycle, err := e.reaches(ctx, dependencyID, taskID)
	if err != nil {
		return false, err
	}
	if cycle {
		return false, fmt.Errorf("%w: adding %d -> %d would create a cycle (%d -> %d -> ... -> %d)",
			types.ErrCircularDependency, taskID, dependencyID, taskID, dependencyID, taskID)
	}

	if err := e.store.InsertEdge(ctx, taskID, dependencyID); err != nil {
		return false, types.WrapStore("insert dependency", err)
	}

	e.logger.Printf("Dependency added: %d -> %d", taskID, dependencyID)
	e.invalidate()
	return true, nil
}

// RemoveDependency deletes the edge taskID -> dependencyID.
//
// A missing task yields types.ErrTaskNotFound; an existing task without that
// edge yields types.ErrDependencyNotFound and leaves the graph unchanged.
func (e *Engine) RemoveDependency(ctx context.Context, taskID, dependencyID int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireTask(ctx, taskID); err != nil {
		return err
	}

	removed, err := e.store.DeleteEdge(ctx, taskID, dependencyID)
	if err != nil {
		return types.WrapStore("delete dependency", err)
	}
	if !removed {
		return fmt.Errorf("%w: %d -> %d", types.ErrDependencyNotFound, taskID, dependencyID)
	}

	e.logger.Printf("Dependency removed: %d -> %d", taskID, dependencyID)
	e.invalidate()
	return nil
}

// DeleteTask removes a task together with every edge that touches it. It
// reports false, with no error, when the task does not exist.
func (e *Engine) DeleteTask(ctx context.Context, taskID int64) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireTask(ctx, taskID); err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	if cd, ok := e.store.(store.CascadeDeleter); ok {
		deleted, err := cd.DeleteTaskCascade(ctx, taskID)
		if err != nil {
			return false, types.WrapStore("delete task", err)
		}
		e.invalidate()
		return deleted, nil
	}

	if err := e.store.DeleteAllEdgesFor(ctx, taskID); err != nil {
		// Some edges may already be gone.
		e.invalidate()
		return false, types.WrapStore("delete dependencies", err)
	}
	// The edge set changed whether or not the row delete succeeds.
	defer e.invalidate()
	deleted, err := e.store.DeleteTask(ctx, taskID)
	if err != nil {
		return false, types.WrapStore("delete task", err)
	}
	return deleted, nil
}

// ListDependencies returns the direct and indirect dependencies of taskID.
//
// Direct keeps edge storage order. Indirect holds every task reachable from
// the direct set that is neither direct nor the origin, once each, in
// breadth-first discovery order.
func (e *Engine) ListDependencies(ctx context.Context, taskID int64) (*types.DependencySet, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if err := e.requireTask(ctx, taskID); err != nil {
		return nil, err
	}

	direct, err := e.store.LoadDirectDependencies(ctx, taskID)
	if err != nil {
		return nil, types.WrapStore("load dependencies", err)
	}
	indirect, err := e.closure(ctx, taskID, direct)
	if err != nil {
		return nil, err
	}

	set := &types.DependencySet{
		Direct:   make([]*types.Task, 0, len(direct)),
		Indirect: make([]*types.Task, 0, len(indirect)),
	}
	if set.Direct, err = e.loadTasks(ctx, direct, set.Direct); err != nil {
		return nil, err
	}
	if set.Indirect, err = e.loadTasks(ctx, indirect, set.Indirect); err != nil {
		return nil, err
	}
	return set, nil
}

// FindCycle audits the whole stored graph and returns one cycle as a path
// whose first and last elements are equal, or nil if the graph is acyclic.
func (e *Engine) FindCycle(ctx context.Context) ([]int64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	edges, err := e.store.ListEdges(ctx)
	if err != nil {
		return nil, types.WrapStore("list dependencies", err)
	}
	return findCycle(edges), nil
}

// requireTask returns types.ErrTaskNotFound (wrapped) if id is absent.
func (e *Engine) requireTask(ctx context.Context, id int64) error {
	if _, err := e.store.FindTask(ctx, id); err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return fmt.Errorf("%w: %d", types.ErrTaskNotFound, id)
		}
		return types.WrapStore("find task", err)
	}
	return nil
}

// loadTasks appends the tasks for ids to dst, skipping IDs whose task row
// has disappeared.
func (e *Engine) loadTasks(ctx context.Context, ids []int64, dst []*types.Task) ([]*types.Task, error) {
	for _, id := range ids {
		task, err := e.store.FindTask(ctx, id)
		if errors.Is(err, types.ErrNotFound) {
			e.logger.Printf("Warning: dependency %d points at a missing task", id)
			continue
		}
		if err != nil {
			return nil, types.WrapStore("find task", err)
		}
		dst = append(dst, task)
	}
	return dst, nil
}

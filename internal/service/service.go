// Package service composes the store, the dependency graph engine and the
// read cache into the task operations exposed to the CLI and HTTP layers.
//
// Every mutation goes through the engine's single-writer lock and flushes
// the cache before returning. Reads are served from the cache or, on a miss,
// from the store under the engine's read lock.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"time"

	"github.com/khoitran3172/todo-list/internal/cache"
	"github.com/khoitran3172/todo-list/internal/graph"
	"github.com/khoitran3172/todo-list/internal/store"
	"github.com/khoitran3172/todo-list/internal/types"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Service is the task facade.
type Service struct {
	store    store.Store
	engine   *graph.Engine
	cache    *cache.Cache
	notifier Notifier
	logger   *log.Logger
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithCache sets the read cache. Without it every read loads from the store.
func WithCache(c *cache.Cache) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithNotifier sets the event receiver.
func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithLogger sets the logger shared by the service and its engine.
func WithLogger(logger *log.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New builds a service over st. The engine is created here so the cache
// flush is always registered as its invalidation hook.
func New(st store.Store, opts ...Option) *Service {
	s := &Service{
		store:    st,
		cache:    cache.Disabled(),
		notifier: nopNotifier{},
		logger:   log.New(os.Stderr, "[service] ", log.LstdFlags),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.engine = graph.New(st,
		graph.WithInvalidation(s.cache.Flush),
		graph.WithLogger(s.logger),
	)
	return s
}

// Engine exposes the dependency graph engine for audits.
func (s *Service) Engine() *graph.Engine { return s.engine }

// Cache exposes the read cache.
func (s *Service) Cache() *cache.Cache { return s.cache }

// CreateTask stores a new task. Status defaults to todo and priority to
// medium; title and due date are required.
func (s *Service) CreateTask(ctx context.Context, in types.TaskInput) (*types.Task, error) {
	task := &types.Task{
		Title:       in.Title,
		Description: in.Description,
		DueDate:     in.DueDate,
		Priority:    in.Priority,
		Status:      in.Status,
	}
	if task.Priority == "" {
		task.Priority = types.PriorityMedium
	}
	if task.Status == "" {
		task.Status = types.StatusTodo
	}
	if err := task.Validate(); err != nil {
		return nil, err
	}

	var created *types.Task
	err := s.engine.Update(ctx, func(ctx context.Context, st store.Store) error {
		saved, err := st.SaveTask(ctx, task)
		if err != nil {
			return types.WrapStore("create task", err)
		}
		created = saved
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.TaskCreated(created.Clone())
	return created, nil
}

// GetTask returns the task with its direct dependency IDs, or nil with no
// error when it does not exist.
func (s *Service) GetTask(ctx context.Context, id int64) (*types.Task, error) {
	return cache.Fetch(ctx, s.cache, cache.TaskKey(id), (*types.Task).Clone, func(ctx context.Context) (*types.Task, error) {
		var task *types.Task
		err := s.engine.View(ctx, func(ctx context.Context, st store.Store) error {
			found, err := st.FindTask(ctx, id)
			if errors.Is(err, types.ErrNotFound) {
				return nil
			}
			if err != nil {
				return types.WrapStore("find task", err)
			}
			deps, err := st.LoadDirectDependencies(ctx, id)
			if err != nil {
				return types.WrapStore("load dependencies", err)
			}
			found.Dependencies = deps
			task = found
			return nil
		})
		return task, err
	})
}

// ListTasks returns one page of tasks matching filter, ordered by ID.
//
// page and pageSize are 1-based and default to 1 and 10 when not positive.
// A pageSize above MaxPageSize, a page whose offset does not fit in an int,
// or an unknown filter value is rejected.
func (s *Service) ListTasks(ctx context.Context, page, pageSize int, filter types.TaskFilter) (*types.TaskPage, error) {
	if page <= 0 {
		page = DefaultPage
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		return nil, fmt.Errorf("%w: page size must be at most %d (got %d)", types.ErrInvalidArgument, MaxPageSize, pageSize)
	}
	if page-1 > math.MaxInt/pageSize {
		return nil, fmt.Errorf("%w: page %d is out of range", types.ErrInvalidArgument, page)
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	key := cache.ListKey(page, pageSize, filter)
	return cache.Fetch(ctx, s.cache, key, (*types.TaskPage).Clone, func(ctx context.Context) (*types.TaskPage, error) {
		result := &types.TaskPage{Items: []*types.Task{}}
		err := s.engine.View(ctx, func(ctx context.Context, st store.Store) error {
			items, total, err := st.FindTasksPage(ctx, filter, (page-1)*pageSize, pageSize)
			if err != nil {
				return types.WrapStore("list tasks", err)
			}
			if items != nil {
				result.Items = items
			}
			result.Total = total
			return nil
		})
		if err != nil {
			return nil, err
		}
		return result, nil
	})
}

// UpdateTask merges patch into the stored task and returns the result.
func (s *Service) UpdateTask(ctx context.Context, id int64, patch types.TaskPatch) (*types.Task, error) {
	var updated *types.Task
	err := s.engine.Update(ctx, func(ctx context.Context, st store.Store) error {
		task, err := st.FindTask(ctx, id)
		if errors.Is(err, types.ErrNotFound) {
			return fmt.Errorf("%w: %d", types.ErrTaskNotFound, id)
		}
		if err != nil {
			return types.WrapStore("find task", err)
		}

		patch.Apply(task)
		if err := task.Validate(); err != nil {
			return err
		}

		saved, err := st.SaveTask(ctx, task)
		if err != nil {
			return types.WrapStore("update task", err)
		}
		updated = saved
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.TaskUpdated(updated.Clone())
	return updated, nil
}

// DeleteTask removes the task and every edge touching it. It reports false,
// with no error, when the task does not exist.
func (s *Service) DeleteTask(ctx context.Context, id int64) (bool, error) {
	deleted, err := s.engine.DeleteTask(ctx, id)
	if err != nil {
		return false, err
	}
	if deleted {
		s.notifier.TaskDeleted(id)
	}
	return deleted, nil
}

// AddDependency makes taskID depend on dependencyID. Adding an existing
// edge succeeds without changing anything and reports false.
func (s *Service) AddDependency(ctx context.Context, taskID, dependencyID int64) (bool, error) {
	added, err := s.engine.AddDependency(ctx, taskID, dependencyID)
	if err != nil {
		return false, err
	}
	if added {
		s.notifier.DependencyAdded(types.Dependency{TaskID: taskID, DependsOnID: dependencyID, CreatedAt: s.now().UTC()})
	}
	return added, nil
}

// RemoveDependency deletes the edge taskID -> dependencyID. An absent edge
// is reported as false with no error; a missing task is an error.
func (s *Service) RemoveDependency(ctx context.Context, taskID, dependencyID int64) (bool, error) {
	err := s.engine.RemoveDependency(ctx, taskID, dependencyID)
	if errors.Is(err, types.ErrDependencyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	s.notifier.DependencyRemoved(types.Dependency{TaskID: taskID, DependsOnID: dependencyID})
	return true, nil
}

// ListDependencies returns the direct and indirect dependencies of taskID.
// It always reads the store, never the cache.
func (s *Service) ListDependencies(ctx context.Context, taskID int64) (*types.DependencySet, error) {
	return s.engine.ListDependencies(ctx, taskID)
}

// Snapshot is a consistent copy of every task and edge.
type Snapshot struct {
	Tasks   []*types.Task      `json:"tasks" yaml:"tasks"`
	Edges   []types.Dependency `json:"dependencies" yaml:"dependencies"`
	TakenAt time.Time          `json:"taken_at" yaml:"taken_at"`
}

// Snapshot reads every task and edge under one read lock.
func (s *Service) Snapshot(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{TakenAt: s.now().UTC()}
	err := s.engine.View(ctx, func(ctx context.Context, st store.Store) error {
		tasks, _, err := st.FindTasksPage(ctx, types.TaskFilter{}, 0, 0)
		if err != nil {
			return types.WrapStore("list tasks", err)
		}
		edges, err := st.ListEdges(ctx)
		if err != nil {
			return types.WrapStore("list dependencies", err)
		}
		snap.Tasks = tasks
		snap.Edges = edges
		return nil
	})
	if err != nil {
		return nil, err
	}
	if snap.Tasks == nil {
		snap.Tasks = []*types.Task{}
	}
	if snap.Edges == nil {
		snap.Edges = []types.Dependency{}
	}
	return snap, nil
}

// Stats summarizes the graph for the dashboard and doctor command.
type Stats struct {
	Tasks        int `json:"tasks"`
	Dependencies int `json:"dependencies"`
	Todo         int `json:"todo"`
	InProgress   int `json:"in_progress"`
	Completed    int `json:"completed"`
	CacheEntries int `json:"cache_entries"`
}

// Stats counts tasks by status and edges.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	stats := &Stats{
		Tasks:        len(snap.Tasks),
		Dependencies: len(snap.Edges),
		CacheEntries: s.cache.Len(),
	}
	for _, t := range snap.Tasks {
		switch t.Status {
		case types.StatusTodo:
			stats.Todo++
		case types.StatusInProgress:
			stats.InProgress++
		case types.StatusCompleted:
			stats.Completed++
		}
	}
	return stats, nil
}

// DueBefore returns tasks with the given status due before the given time.
func (s *Service) DueBefore(ctx context.Context, before time.Time, status types.Status) ([]*types.Task, error) {
	var due []*types.Task
	err := s.engine.View(ctx, func(ctx context.Context, st store.Store) error {
		tasks, err := st.FindTasksDueBefore(ctx, before, status)
		if err != nil {
			return types.WrapStore("find due tasks", err)
		}
		due = tasks
		return nil
	})
	return due, err
}

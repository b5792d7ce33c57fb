// Package memory provides an in-process Store used by tests and by the
// CLI's --memory mode.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/khoitran3172/todo-list/internal/store"
	"github.com/khoitran3172/todo-list/internal/types"
)

var (
	_ store.Store          = (*Store)(nil)
	_ store.CascadeDeleter = (*Store)(nil)
)

// Store keeps tasks and edges in maps guarded by a mutex.
type Store struct {
	mu     sync.RWMutex
	nextID int64
	tasks  map[int64]*types.Task
	deps   map[int64][]types.Dependency // taskID -> outgoing edges, insertion order
	now    func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{
		tasks: make(map[int64]*types.Task),
		deps:  make(map[int64][]types.Dependency),
		now:   time.Now,
	}
}

// FindTask implements store.Store.
func (s *Store) FindTask(ctx context.Context, id int64) (*types.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", types.ErrTaskNotFound, id)
	}
	return t.Clone(), nil
}

// FindTasksPage implements store.Store.
func (s *Store) FindTasksPage(ctx context.Context, filter types.TaskFilter, offset, limit int) ([]*types.Task, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int64, 0, len(s.tasks))
	for id, t := range s.tasks {
		if filter.Matches(t) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	total := len(ids)
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return []*types.Task{}, total, nil
	}
	end := total
	if limit > 0 && limit < total-offset {
		end = offset + limit
	}

	items := make([]*types.Task, 0, end-offset)
	for _, id := range ids[offset:end] {
		items = append(items, s.tasks[id].Clone())
	}
	return items, total, nil
}

// SaveTask implements store.Store.
func (s *Store) SaveTask(ctx context.Context, task *types.Task) (*types.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved := task.Clone()
	saved.Dependencies = nil
	now := s.now().UTC()

	if saved.ID == 0 {
		s.nextID++
		saved.ID = s.nextID
		saved.CreatedAt = now
	} else {
		existing, ok := s.tasks[saved.ID]
		if !ok {
			return nil, fmt.Errorf("%w: %d", types.ErrTaskNotFound, saved.ID)
		}
		saved.CreatedAt = existing.CreatedAt
	}
	saved.UpdatedAt = now

	s.tasks[saved.ID] = saved
	return saved.Clone(), nil
}

// DeleteTask implements store.Store.
func (s *Store) DeleteTask(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[id]; !ok {
		return false, nil
	}
	delete(s.tasks, id)
	return true, nil
}

// DeleteTaskCascade implements store.CascadeDeleter.
func (s *Store) DeleteTaskCascade(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[id]; !ok {
		return false, nil
	}
	s.dropEdgesLocked(id)
	delete(s.tasks, id)
	return true, nil
}

// LoadDirectDependencies implements store.Store.
func (s *Store) LoadDirectDependencies(ctx context.Context, taskID int64) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	edges := s.deps[taskID]
	ids := make([]int64, len(edges))
	for i, e := range edges {
		ids[i] = e.DependsOnID
	}
	return ids, nil
}

// InsertEdge implements store.Store. Inserting an existing edge is a no-op.
func (s *Store) InsertEdge(ctx context.Context, taskID, dependencyID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.deps[taskID] {
		if e.DependsOnID == dependencyID {
			return nil
		}
	}
	s.deps[taskID] = append(s.deps[taskID], types.Dependency{
		TaskID:      taskID,
		DependsOnID: dependencyID,
		CreatedAt:   s.now().UTC(),
	})
	return nil
}

// DeleteEdge implements store.Store.
func (s *Store) DeleteEdge(ctx context.Context, taskID, dependencyID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	edges := s.deps[taskID]
	for i, e := range edges {
		if e.DependsOnID == dependencyID {
			s.deps[taskID] = append(edges[:i:i], edges[i+1:]...)
			if len(s.deps[taskID]) == 0 {
				delete(s.deps, taskID)
			}
			return true, nil
		}
	}
	return false, nil
}

// DeleteAllEdgesFor implements store.Store.
func (s *Store) DeleteAllEdgesFor(ctx context.Context, taskID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dropEdgesLocked(taskID)
	return nil
}

func (s *Store) dropEdgesLocked(taskID int64) {
	delete(s.deps, taskID)
	for from, edges := range s.deps {
		kept := edges[:0:0]
		for _, e := range edges {
			if e.DependsOnID != taskID {
				kept = append(kept, e)
			}
		}
		if len(kept) == 0 {
			delete(s.deps, from)
		} else {
			s.deps[from] = kept
		}
	}
}

// ListEdges implements store.Store. Edges are grouped by task ID ascending,
// each group in insertion order.
func (s *Store) ListEdges(ctx context.Context) ([]types.Dependency, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	from := make([]int64, 0, len(s.deps))
	for id := range s.deps {
		from = append(from, id)
	}
	sort.Slice(from, func(i, j int) bool { return from[i] < from[j] })

	var edges []types.Dependency
	for _, id := range from {
		edges = append(edges, s.deps[id]...)
	}
	return edges, nil
}

// FindTasksDueBefore implements store.Store.
func (s *Store) FindTasksDueBefore(ctx context.Context, before time.Time, status types.Status) ([]*types.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var due []*types.Task
	for _, t := range s.tasks {
		if t.Status == status && t.DueDate.Before(before) {
			due = append(due, t.Clone())
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].DueDate.Equal(due[j].DueDate) {
			return due[i].ID < due[j].ID
		}
		return due[i].DueDate.Before(due[j].DueDate)
	})
	return due, nil
}

// SetClock replaces the time source used for timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

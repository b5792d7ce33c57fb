// Package storetest holds the behavior every store.Store implementation
// must share. Implementations call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/khoitran3172/todo-list/internal/store"
	"github.com/khoitran3172/todo-list/internal/types"
)

// Factory returns an empty, ready-to-use store.
type Factory func(t *testing.T) store.Store

// NewTask returns a valid unsaved task.
func NewTask(title string) *types.Task {
	return &types.Task{
		Title:    title,
		DueDate:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Priority: types.PriorityMedium,
		Status:   types.StatusTodo,
	}
}

// Run exercises the store contract.
func Run(t *testing.T, newStore Factory) {
	t.Run("SaveAndFind", func(t *testing.T) { testSaveAndFind(t, newStore(t)) })
	t.Run("UpdateMissing", func(t *testing.T) { testUpdateMissing(t, newStore(t)) })
	t.Run("FindMissing", func(t *testing.T) { testFindMissing(t, newStore(t)) })
	t.Run("Page", func(t *testing.T) { testPage(t, newStore(t)) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, newStore(t)) })
	t.Run("EdgesKeepInsertionOrder", func(t *testing.T) { testEdgeOrder(t, newStore(t)) })
	t.Run("InsertEdgeIdempotent", func(t *testing.T) { testInsertIdempotent(t, newStore(t)) })
	t.Run("DeleteEdge", func(t *testing.T) { testDeleteEdge(t, newStore(t)) })
	t.Run("DeleteAllEdgesFor", func(t *testing.T) { testDeleteAllEdges(t, newStore(t)) })
	t.Run("DeleteTaskCascade", func(t *testing.T) { testDeleteCascade(t, newStore(t)) })
	t.Run("DueBefore", func(t *testing.T) { testDueBefore(t, newStore(t)) })
}

func mustSave(t *testing.T, s store.Store, task *types.Task) *types.Task {
	t.Helper()
	saved, err := s.SaveTask(context.Background(), task)
	if err != nil {
		t.Fatalf("SaveTask(%q) failed: %v", task.Title, err)
	}
	return saved
}

func testSaveAndFind(t *testing.T, s store.Store) {
	ctx := context.Background()
	task := NewTask("Write docs")
	task.Description = "all of them"

	saved := mustSave(t, s, task)
	if saved.ID == 0 {
		t.Fatal("SaveTask() did not assign an ID")
	}
	if saved.CreatedAt.IsZero() || saved.UpdatedAt.IsZero() {
		t.Error("SaveTask() did not set timestamps")
	}

	got, err := s.FindTask(ctx, saved.ID)
	if err != nil {
		t.Fatalf("FindTask() failed: %v", err)
	}
	if diff := cmp.Diff(saved, got); diff != "" {
		t.Errorf("FindTask() mismatch (-saved +got):\n%s", diff)
	}

	got.Title = "Write better docs"
	got.Status = types.StatusInProgress
	updated := mustSave(t, s, got)
	if updated.ID != saved.ID {
		t.Errorf("update changed ID from %d to %d", saved.ID, updated.ID)
	}
	if updated.Title != "Write better docs" || updated.Status != types.StatusInProgress {
		t.Errorf("update not persisted: %+v", updated)
	}
	if !updated.CreatedAt.Equal(saved.CreatedAt) {
		t.Errorf("update changed created_at from %v to %v", saved.CreatedAt, updated.CreatedAt)
	}
}

func testUpdateMissing(t *testing.T, s store.Store) {
	task := NewTask("ghost")
	task.ID = 4242
	if _, err := s.SaveTask(context.Background(), task); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("SaveTask(missing id) error = %v, want ErrNotFound", err)
	}
}

func testFindMissing(t *testing.T, s store.Store) {
	_, err := s.FindTask(context.Background(), 999)
	if !errors.Is(err, types.ErrNotFound) {
		t.Errorf("FindTask(999) error = %v, want ErrNotFound", err)
	}
}

func testPage(t *testing.T, s store.Store) {
	ctx := context.Background()
	for i, p := range []types.Priority{types.PriorityHigh, types.PriorityLow, types.PriorityHigh, types.PriorityHigh, types.PriorityMedium} {
		task := NewTask("task")
		task.Priority = p
		if i == 3 {
			task.Status = types.StatusCompleted
		}
		mustSave(t, s, task)
	}

	items, total, err := s.FindTasksPage(ctx, types.TaskFilter{}, 0, 2)
	if err != nil {
		t.Fatalf("FindTasksPage() failed: %v", err)
	}
	if total != 5 || len(items) != 2 {
		t.Fatalf("FindTasksPage() = %d items, total %d; want 2, 5", len(items), total)
	}
	if items[0].ID >= items[1].ID {
		t.Errorf("FindTasksPage() not ordered by ID: %d, %d", items[0].ID, items[1].ID)
	}

	items, total, err = s.FindTasksPage(ctx, types.TaskFilter{Priority: types.PriorityHigh}, 2, 10)
	if err != nil {
		t.Fatalf("FindTasksPage(high) failed: %v", err)
	}
	if total != 3 || len(items) != 1 {
		t.Errorf("FindTasksPage(high, offset 2) = %d items, total %d; want 1, 3", len(items), total)
	}

	items, total, err = s.FindTasksPage(ctx, types.TaskFilter{Priority: types.PriorityHigh, Status: types.StatusTodo}, 0, 10)
	if err != nil {
		t.Fatalf("FindTasksPage(high,todo) failed: %v", err)
	}
	if total != 2 || len(items) != 2 {
		t.Errorf("FindTasksPage(high,todo) = %d items, total %d; want 2, 2", len(items), total)
	}

	items, total, err = s.FindTasksPage(ctx, types.TaskFilter{}, 50, 10)
	if err != nil {
		t.Fatalf("FindTasksPage(past end) failed: %v", err)
	}
	if total != 5 || len(items) != 0 {
		t.Errorf("FindTasksPage(past end) = %d items, total %d; want 0, 5", len(items), total)
	}

	items, total, err = s.FindTasksPage(ctx, types.TaskFilter{}, -3, 2)
	if err != nil {
		t.Fatalf("FindTasksPage(negative offset) failed: %v", err)
	}
	if total != 5 || len(items) != 2 {
		t.Errorf("FindTasksPage(negative offset) = %d items, total %d; want 2, 5", len(items), total)
	}
}

func testDelete(t *testing.T, s store.Store) {
	ctx := context.Background()
	saved := mustSave(t, s, NewTask("doomed"))

	ok, err := s.DeleteTask(ctx, saved.ID)
	if err != nil || !ok {
		t.Fatalf("DeleteTask() = %v, %v; want true, nil", ok, err)
	}
	ok, err = s.DeleteTask(ctx, saved.ID)
	if err != nil || ok {
		t.Errorf("second DeleteTask() = %v, %v; want false, nil", ok, err)
	}
}

func testEdgeOrder(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := mustSave(t, s, NewTask("a"))
	b := mustSave(t, s, NewTask("b"))
	c := mustSave(t, s, NewTask("c"))
	d := mustSave(t, s, NewTask("d"))

	for _, dep := range []int64{d.ID, b.ID, c.ID} {
		if err := s.InsertEdge(ctx, a.ID, dep); err != nil {
			t.Fatalf("InsertEdge() failed: %v", err)
		}
	}

	got, err := s.LoadDirectDependencies(ctx, a.ID)
	if err != nil {
		t.Fatalf("LoadDirectDependencies() failed: %v", err)
	}
	if diff := cmp.Diff([]int64{d.ID, b.ID, c.ID}, got); diff != "" {
		t.Errorf("LoadDirectDependencies() order mismatch (-want +got):\n%s", diff)
	}

	none, err := s.LoadDirectDependencies(ctx, d.ID)
	if err != nil {
		t.Fatalf("LoadDirectDependencies(leaf) failed: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("LoadDirectDependencies(leaf) = %v, want empty", none)
	}
}

func testInsertIdempotent(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := mustSave(t, s, NewTask("a"))
	b := mustSave(t, s, NewTask("b"))

	for i := 0; i < 3; i++ {
		if err := s.InsertEdge(ctx, a.ID, b.ID); err != nil {
			t.Fatalf("InsertEdge() #%d failed: %v", i, err)
		}
	}
	edges, err := s.ListEdges(ctx)
	if err != nil {
		t.Fatalf("ListEdges() failed: %v", err)
	}
	if len(edges) != 1 {
		t.Errorf("ListEdges() = %d edges, want 1", len(edges))
	}
}

func testDeleteEdge(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := mustSave(t, s, NewTask("a"))
	b := mustSave(t, s, NewTask("b"))

	if err := s.InsertEdge(ctx, a.ID, b.ID); err != nil {
		t.Fatalf("InsertEdge() failed: %v", err)
	}
	ok, err := s.DeleteEdge(ctx, a.ID, b.ID)
	if err != nil || !ok {
		t.Fatalf("DeleteEdge() = %v, %v; want true, nil", ok, err)
	}
	ok, err = s.DeleteEdge(ctx, a.ID, b.ID)
	if err != nil || ok {
		t.Errorf("DeleteEdge(absent) = %v, %v; want false, nil", ok, err)
	}
	ok, err = s.DeleteEdge(ctx, b.ID, a.ID)
	if err != nil || ok {
		t.Errorf("DeleteEdge(reverse) = %v, %v; want false, nil", ok, err)
	}
}

func testDeleteAllEdges(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := mustSave(t, s, NewTask("a"))
	b := mustSave(t, s, NewTask("b"))
	c := mustSave(t, s, NewTask("c"))

	for _, e := range [][2]int64{{a.ID, b.ID}, {b.ID, c.ID}, {a.ID, c.ID}} {
		if err := s.InsertEdge(ctx, e[0], e[1]); err != nil {
			t.Fatalf("InsertEdge(%v) failed: %v", e, err)
		}
	}

	if err := s.DeleteAllEdgesFor(ctx, b.ID); err != nil {
		t.Fatalf("DeleteAllEdgesFor() failed: %v", err)
	}

	edges, err := s.ListEdges(ctx)
	if err != nil {
		t.Fatalf("ListEdges() failed: %v", err)
	}
	if len(edges) != 1 || edges[0].TaskID != a.ID || edges[0].DependsOnID != c.ID {
		t.Errorf("ListEdges() after cascade = %v, want only %d -> %d", edges, a.ID, c.ID)
	}
}

func testDueBefore(t *testing.T, s store.Store) {
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	late := NewTask("late")
	late.DueDate = base.Add(-2 * time.Hour)
	soon := NewTask("soon")
	soon.DueDate = base.Add(3 * time.Hour)
	far := NewTask("far")
	far.DueDate = base.Add(72 * time.Hour)
	done := NewTask("done")
	done.DueDate = base.Add(-time.Hour)
	done.Status = types.StatusCompleted

	for _, task := range []*types.Task{far, soon, late, done} {
		mustSave(t, s, task)
	}

	got, err := s.FindTasksDueBefore(ctx, base.Add(24*time.Hour), types.StatusTodo)
	if err != nil {
		t.Fatalf("FindTasksDueBefore() failed: %v", err)
	}
	var titles []string
	for _, task := range got {
		titles = append(titles, task.Title)
	}
	if diff := cmp.Diff([]string{"late", "soon"}, titles); diff != "" {
		t.Errorf("FindTasksDueBefore() mismatch (-want +got):\n%s", diff)
	}
}

func testDeleteCascade(t *testing.T, s store.Store) {
	cd, ok := s.(store.CascadeDeleter)
	if !ok {
		t.Skip("store does not implement CascadeDeleter")
	}
	ctx := context.Background()
	a := mustSave(t, s, NewTask("a"))
	b := mustSave(t, s, NewTask("b"))
	c := mustSave(t, s, NewTask("c"))
	for _, e := range [][2]int64{{a.ID, b.ID}, {b.ID, c.ID}, {a.ID, c.ID}} {
		if err := s.InsertEdge(ctx, e[0], e[1]); err != nil {
			t.Fatalf("InsertEdge(%v) failed: %v", e, err)
		}
	}

	deleted, err := cd.DeleteTaskCascade(ctx, b.ID)
	if err != nil || !deleted {
		t.Fatalf("DeleteTaskCascade(b) = %v, %v; want true, nil", deleted, err)
	}
	if _, err := s.FindTask(ctx, b.ID); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("FindTask(b) error = %v, want ErrNotFound", err)
	}
	edges, err := s.ListEdges(ctx)
	if err != nil {
		t.Fatalf("ListEdges() failed: %v", err)
	}
	if len(edges) != 1 || edges[0].TaskID != a.ID || edges[0].DependsOnID != c.ID {
		t.Errorf("edges after cascade = %v, want only a -> c", edges)
	}

	deleted, err = cd.DeleteTaskCascade(ctx, b.ID)
	if err != nil || deleted {
		t.Errorf("DeleteTaskCascade(b) again = %v, %v; want false, nil", deleted, err)
	}
}

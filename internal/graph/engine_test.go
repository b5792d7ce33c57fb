package graph

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/khoitran3172/todo-list/internal/store"
	"github.com/khoitran3172/todo-list/internal/store/memory"
	"github.com/khoitran3172/todo-list/internal/store/storetest"
	"github.com/khoitran3172/todo-list/internal/types"
)

type fixture struct {
	store   *memory.Store
	engine  *Engine
	flushes atomic.Int64
	ids     map[string]int64
}

func newFixture(t *testing.T, names ...string) *fixture {
	t.Helper()
	f := &fixture{store: memory.New(), ids: map[string]int64{}}
	f.engine = New(f.store,
		WithLogger(log.New(io.Discard, "", 0)),
		WithInvalidation(func() { f.flushes.Add(1) }),
	)
	for _, name := range names {
		saved, err := f.store.SaveTask(context.Background(), storetest.NewTask(name))
		if err != nil {
			t.Fatalf("SaveTask(%s) failed: %v", name, err)
		}
		f.ids[name] = saved.ID
	}
	return f
}

func (f *fixture) add(t *testing.T, from, to string) {
	t.Helper()
	if _, err := f.engine.AddDependency(context.Background(), f.ids[from], f.ids[to]); err != nil {
		t.Fatalf("AddDependency(%s -> %s) failed: %v", from, to, err)
	}
}

func (f *fixture) edges(t *testing.T) []types.Dependency {
	t.Helper()
	edges, err := f.store.ListEdges(context.Background())
	if err != nil {
		t.Fatalf("ListEdges() failed: %v", err)
	}
	for i := range edges {
		edges[i].CreatedAt = edges[i].CreatedAt.UTC().Truncate(0)
	}
	return edges
}

func titles(tasks []*types.Task) []string {
	out := []string{}
	for _, task := range tasks {
		out = append(out, task.Title)
	}
	return out
}

func TestAddDependency_RejectsSelfDependency(t *testing.T) {
	f := newFixture(t, "x")
	_, err := f.engine.AddDependency(context.Background(), f.ids["x"], f.ids["x"])
	if !errors.Is(err, types.ErrInvalidArgument) || !errors.Is(err, types.ErrCircularDependency) {
		t.Fatalf("AddDependency(x, x) error = %v, want self-dependency", err)
	}
	if len(f.edges(t)) != 0 {
		t.Error("self-dependency was persisted")
	}
}

func TestAddDependency_MissingTask(t *testing.T) {
	f := newFixture(t, "a")
	ctx := context.Background()

	if _, err := f.engine.AddDependency(ctx, f.ids["a"], 999); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("AddDependency(a, missing) error = %v, want ErrNotFound", err)
	}
	if _, err := f.engine.AddDependency(ctx, 999, f.ids["a"]); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("AddDependency(missing, a) error = %v, want ErrNotFound", err)
	}
	if f.flushes.Load() != 0 {
		t.Errorf("failed mutations flushed the cache %d times", f.flushes.Load())
	}
}

func TestAddDependency_RejectsCycle(t *testing.T) {
	f := newFixture(t, "A", "B", "C")
	f.add(t, "A", "B")
	f.add(t, "B", "C")
	before := f.edges(t)
	flushes := f.flushes.Load()

	_, err := f.engine.AddDependency(context.Background(), f.ids["C"], f.ids["A"])
	if !errors.Is(err, types.ErrCircularDependency) {
		t.Fatalf("AddDependency(C, A) error = %v, want ErrCircularDependency", err)
	}
	if diff := cmp.Diff(before, f.edges(t)); diff != "" {
		t.Errorf("edge set changed after rejected edge (-before +after):\n%s", diff)
	}
	if f.flushes.Load() != flushes {
		t.Error("rejected edge flushed the cache")
	}
}

func TestAddDependency_RejectsDirectBackEdge(t *testing.T) {
	f := newFixture(t, "A", "B")
	f.add(t, "A", "B")

	_, err := f.engine.AddDependency(context.Background(), f.ids["B"], f.ids["A"])
	if !errors.Is(err, types.ErrCircularDependency) {
		t.Fatalf("AddDependency(B, A) error = %v, want ErrCircularDependency", err)
	}
}

func TestAddDependency_AllowsDiamond(t *testing.T) {
	f := newFixture(t, "A", "B", "C", "D")
	f.add(t, "A", "B")
	f.add(t, "A", "C")
	f.add(t, "B", "D")
	f.add(t, "C", "D")
	f.add(t, "A", "D")

	if len(f.edges(t)) != 5 {
		t.Errorf("got %d edges, want 5", len(f.edges(t)))
	}
}

func TestAddDependency_DuplicateIsNoop(t *testing.T) {
	f := newFixture(t, "A", "B")
	ctx := context.Background()

	added, err := f.engine.AddDependency(ctx, f.ids["A"], f.ids["B"])
	if err != nil || !added {
		t.Fatalf("first AddDependency() = %v, %v; want true, nil", added, err)
	}
	flushes := f.flushes.Load()

	added, err = f.engine.AddDependency(ctx, f.ids["A"], f.ids["B"])
	if err != nil || added {
		t.Fatalf("duplicate AddDependency() = %v, %v; want false, nil", added, err)
	}
	if len(f.edges(t)) != 1 {
		t.Errorf("duplicate edge stored: %v", f.edges(t))
	}
	if f.flushes.Load() != flushes {
		t.Error("duplicate edge flushed the cache")
	}
}

func TestRemoveDependency(t *testing.T) {
	f := newFixture(t, "A", "B", "C")
	ctx := context.Background()
	f.add(t, "A", "B")

	err := f.engine.RemoveDependency(ctx, f.ids["A"], f.ids["C"])
	if !errors.Is(err, types.ErrDependencyNotFound) {
		t.Errorf("RemoveDependency(absent edge) error = %v, want ErrDependencyNotFound", err)
	}
	if len(f.edges(t)) != 1 {
		t.Error("removing an absent edge changed the graph")
	}

	err = f.engine.RemoveDependency(ctx, 999, f.ids["A"])
	if !errors.Is(err, types.ErrTaskNotFound) {
		t.Errorf("RemoveDependency(missing task) error = %v, want ErrTaskNotFound", err)
	}

	flushes := f.flushes.Load()
	if err := f.engine.RemoveDependency(ctx, f.ids["A"], f.ids["B"]); err != nil {
		t.Fatalf("RemoveDependency(A, B) failed: %v", err)
	}
	if len(f.edges(t)) != 0 {
		t.Error("edge still present after removal")
	}
	if f.flushes.Load() != flushes+1 {
		t.Error("removal did not flush the cache")
	}
}

func TestListDependencies_TransitiveClosure(t *testing.T) {
	f := newFixture(t, "A", "B", "C", "D")
	f.add(t, "A", "B")
	f.add(t, "B", "C")
	f.add(t, "B", "D")

	set, err := f.engine.ListDependencies(context.Background(), f.ids["A"])
	if err != nil {
		t.Fatalf("ListDependencies(A) failed: %v", err)
	}
	if diff := cmp.Diff([]string{"B"}, titles(set.Direct)); diff != "" {
		t.Errorf("Direct mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"C", "D"}, titles(set.Indirect)); diff != "" {
		t.Errorf("Indirect mismatch (-want +got):\n%s", diff)
	}
}

func TestListDependencies_NoDuplicatesAcrossBranches(t *testing.T) {
	f := newFixture(t, "A", "B", "C", "D", "E")
	f.add(t, "A", "B")
	f.add(t, "A", "C")
	f.add(t, "B", "D")
	f.add(t, "C", "D")
	f.add(t, "D", "E")
	f.add(t, "B", "C")

	set, err := f.engine.ListDependencies(context.Background(), f.ids["A"])
	if err != nil {
		t.Fatalf("ListDependencies(A) failed: %v", err)
	}
	if diff := cmp.Diff([]string{"B", "C"}, titles(set.Direct)); diff != "" {
		t.Errorf("Direct mismatch (-want +got):\n%s", diff)
	}
	// C is reachable through B but already counted as direct.
	if diff := cmp.Diff([]string{"D", "E"}, titles(set.Indirect)); diff != "" {
		t.Errorf("Indirect mismatch (-want +got):\n%s", diff)
	}
}

func TestListDependencies_EmptyAndMissing(t *testing.T) {
	f := newFixture(t, "A")
	ctx := context.Background()

	set, err := f.engine.ListDependencies(ctx, f.ids["A"])
	if err != nil {
		t.Fatalf("ListDependencies(A) failed: %v", err)
	}
	if len(set.Direct) != 0 || len(set.Indirect) != 0 {
		t.Errorf("ListDependencies(leaf) = %+v, want empty", set)
	}
	if set.Direct == nil || set.Indirect == nil {
		t.Error("ListDependencies(leaf) returned nil slices")
	}

	if _, err := f.engine.ListDependencies(ctx, 999); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("ListDependencies(missing) error = %v, want ErrNotFound", err)
	}
}

// TestTraversalTerminatesOnMalformedGraph writes a cycle behind the
// engine's back and checks that reads and cycle checks still finish.
func TestTraversalTerminatesOnMalformedGraph(t *testing.T) {
	f := newFixture(t, "A", "B", "C", "D")
	ctx := context.Background()
	for _, e := range [][2]string{{"A", "B"}, {"B", "C"}, {"C", "A"}} {
		if err := f.store.InsertEdge(ctx, f.ids[e[0]], f.ids[e[1]]); err != nil {
			t.Fatalf("InsertEdge() failed: %v", err)
		}
	}

	set, err := f.engine.ListDependencies(ctx, f.ids["A"])
	if err != nil {
		t.Fatalf("ListDependencies(A) failed: %v", err)
	}
	if diff := cmp.Diff([]string{"C"}, titles(set.Indirect)); diff != "" {
		t.Errorf("Indirect mismatch (-want +got):\n%s", diff)
	}

	if _, err := f.engine.AddDependency(ctx, f.ids["D"], f.ids["A"]); err != nil {
		t.Errorf("AddDependency(D, A) on cyclic component failed: %v", err)
	}
	if _, err := f.engine.AddDependency(ctx, f.ids["B"], f.ids["D"]); !errors.Is(err, types.ErrCircularDependency) {
		t.Errorf("AddDependency(B, D) error = %v, want ErrCircularDependency", err)
	}

	cycle, err := f.engine.FindCycle(ctx)
	if err != nil {
		t.Fatalf("FindCycle() failed: %v", err)
	}
	if len(cycle) < 2 || cycle[0] != cycle[len(cycle)-1] {
		t.Errorf("FindCycle() = %v, want closed path", cycle)
	}
}

func TestDeleteTask_CascadesEdges(t *testing.T) {
	f := newFixture(t, "A", "B", "C")
	ctx := context.Background()
	f.add(t, "A", "B")
	f.add(t, "B", "C")

	deleted, err := f.engine.DeleteTask(ctx, f.ids["B"])
	if err != nil || !deleted {
		t.Fatalf("DeleteTask(B) = %v, %v; want true, nil", deleted, err)
	}
	if edges := f.edges(t); len(edges) != 0 {
		t.Errorf("edges left after cascade delete: %v", edges)
	}

	set, err := f.engine.ListDependencies(ctx, f.ids["A"])
	if err != nil {
		t.Fatalf("ListDependencies(A) failed: %v", err)
	}
	if len(set.Direct) != 0 {
		t.Errorf("Direct after cascade = %v, want empty", titles(set.Direct))
	}

	deleted, err = f.engine.DeleteTask(ctx, f.ids["B"])
	if err != nil || deleted {
		t.Errorf("DeleteTask(B) again = %v, %v; want false, nil", deleted, err)
	}
}

func TestUpdate_FlushesOnlyOnSuccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := f.engine.Update(ctx, func(context.Context, store.Store) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("Update() error = %v, want boom", err)
	}
	if f.flushes.Load() != 0 {
		t.Error("failed Update flushed the cache")
	}

	if err := f.engine.Update(ctx, func(context.Context, store.Store) error { return nil }); err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	if f.flushes.Load() != 1 {
		t.Errorf("flushes = %d, want 1", f.flushes.Load())
	}
}

func TestFindCycle_AcyclicGraph(t *testing.T) {
	f := newFixture(t, "A", "B", "C")
	f.add(t, "A", "B")
	f.add(t, "A", "C")
	f.add(t, "B", "C")

	cycle, err := f.engine.FindCycle(context.Background())
	if err != nil {
		t.Fatalf("FindCycle() failed: %v", err)
	}
	if cycle != nil {
		t.Errorf("FindCycle() = %v, want nil", cycle)
	}
}

// TestConcurrentOppositeEdges races A->B against B->A; exactly one may win.
func TestConcurrentOppositeEdges(t *testing.T) {
	for round := 0; round < 50; round++ {
		f := newFixture(t, "A", "B")
		ctx := context.Background()

		var wg sync.WaitGroup
		errs := make([]error, 2)
		pairs := [][2]int64{{f.ids["A"], f.ids["B"]}, {f.ids["B"], f.ids["A"]}}
		for i, p := range pairs {
			wg.Add(1)
			go func(i int, p [2]int64) {
				defer wg.Done()
				_, errs[i] = f.engine.AddDependency(ctx, p[0], p[1])
			}(i, p)
		}
		wg.Wait()

		var ok, cyc int
		for _, err := range errs {
			switch {
			case err == nil:
				ok++
			case errors.Is(err, types.ErrCircularDependency):
				cyc++
			default:
				t.Fatalf("round %d: unexpected error: %v", round, err)
			}
		}
		if ok != 1 || cyc != 1 {
			t.Fatalf("round %d: %d succeeded, %d rejected; want 1 and 1", round, ok, cyc)
		}
	}
}

// TestAcyclicityUnderConcurrentWriters hammers the engine with random edges
// from several goroutines and audits the result.
func TestAcyclicityUnderConcurrentWriters(t *testing.T) {
	names := make([]string, 30)
	for i := range names {
		names[i] = fmt.Sprintf("t%02d", i)
	}
	f := newFixture(t, names...)
	ctx := context.Background()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for i := 0; i < 200; i++ {
				from := f.ids[names[rng.Intn(len(names))]]
				to := f.ids[names[rng.Intn(len(names))]]
				_, err := f.engine.AddDependency(ctx, from, to)
				if err != nil && !errors.Is(err, types.ErrCircularDependency) {
					t.Errorf("AddDependency(%d, %d) unexpected error: %v", from, to, err)
					return
				}
				if rng.Intn(4) == 0 {
					_, _ = f.engine.ListDependencies(ctx, from)
				}
			}
		}(int64(w))
	}
	wg.Wait()

	cycle, err := f.engine.FindCycle(ctx)
	if err != nil {
		t.Fatalf("FindCycle() failed: %v", err)
	}
	if cycle != nil {
		t.Fatalf("graph contains a cycle after concurrent writes: %v", cycle)
	}

	// No task may reach itself.
	for _, name := range names {
		set, err := f.engine.ListDependencies(ctx, f.ids[name])
		if err != nil {
			t.Fatalf("ListDependencies(%s) failed: %v", name, err)
		}
		for _, task := range append(set.Direct, set.Indirect...) {
			if task.ID == f.ids[name] {
				t.Fatalf("task %s reaches itself", name)
			}
		}
	}
}

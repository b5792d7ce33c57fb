package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/khoitran3172/todo-list/internal/types"
)

func cloneTask(t *types.Task) *types.Task { return t.Clone() }

func counter(loads *atomic.Int64, title string) func(context.Context) (*types.Task, error) {
	return func(context.Context) (*types.Task, error) {
		loads.Add(1)
		return &types.Task{ID: 1, Title: title}, nil
	}
}

func TestKeys(t *testing.T) {
	if got := TaskKey(42); got != "task:42" {
		t.Errorf("TaskKey(42) = %q", got)
	}
	a := ListKey(2, 20, types.TaskFilter{Status: types.StatusTodo})
	b := ListKey(2, 20, types.TaskFilter{Status: types.StatusTodo})
	if a != b {
		t.Errorf("equal filters produced different keys: %q vs %q", a, b)
	}
	if a == ListKey(2, 20, types.TaskFilter{Priority: types.PriorityHigh}) {
		t.Error("different filters produced the same key")
	}
	if a == ListKey(3, 20, types.TaskFilter{Status: types.StatusTodo}) {
		t.Error("different pages produced the same key")
	}
}

func TestFetch_HitSkipsLoad(t *testing.T) {
	c := New(Config{Enabled: true})
	ctx := context.Background()
	var loads atomic.Int64

	for i := 0; i < 3; i++ {
		got, err := Fetch(ctx, c, TaskKey(1), cloneTask, counter(&loads, "first"))
		if err != nil {
			t.Fatalf("Fetch() failed: %v", err)
		}
		if got.Title != "first" {
			t.Errorf("Fetch() title = %q, want first", got.Title)
		}
	}
	if loads.Load() != 1 {
		t.Errorf("loads = %d, want 1", loads.Load())
	}
}

func TestFetch_FlushForcesReload(t *testing.T) {
	c := New(Config{Enabled: true})
	ctx := context.Background()
	var loads atomic.Int64

	if _, err := Fetch(ctx, c, TaskKey(1), cloneTask, counter(&loads, "old")); err != nil {
		t.Fatalf("Fetch() failed: %v", err)
	}
	c.Flush()
	got, err := Fetch(ctx, c, TaskKey(1), cloneTask, counter(&loads, "new"))
	if err != nil {
		t.Fatalf("Fetch() failed: %v", err)
	}
	if got.Title != "new" {
		t.Errorf("Fetch() after flush title = %q, want new", got.Title)
	}
	if c.Generation() != 1 {
		t.Errorf("Generation() = %d, want 1", c.Generation())
	}
}

func TestFetch_ErrorsAreNotCached(t *testing.T) {
	c := New(Config{Enabled: true})
	ctx := context.Background()
	boom := errors.New("boom")

	_, err := Fetch(ctx, c, TaskKey(1), cloneTask, func(context.Context) (*types.Task, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Fetch() error = %v, want boom", err)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d after failed load, want 0", c.Len())
	}
}

func TestFetch_Disabled(t *testing.T) {
	c := Disabled()
	ctx := context.Background()
	var loads atomic.Int64

	for i := 0; i < 3; i++ {
		if _, err := Fetch(ctx, c, TaskKey(1), cloneTask, counter(&loads, "x")); err != nil {
			t.Fatalf("Fetch() failed: %v", err)
		}
	}
	if loads.Load() != 3 {
		t.Errorf("loads = %d, want 3", loads.Load())
	}
	if c.Len() != 0 {
		t.Errorf("disabled cache holds %d entries", c.Len())
	}
}

func TestFetch_CallersGetCopies(t *testing.T) {
	c := New(Config{Enabled: true})
	ctx := context.Background()
	var loads atomic.Int64

	first, err := Fetch(ctx, c, TaskKey(1), cloneTask, counter(&loads, "orig"))
	if err != nil {
		t.Fatalf("Fetch() failed: %v", err)
	}
	first.Title = "mutated"

	second, err := Fetch(ctx, c, TaskKey(1), cloneTask, counter(&loads, "orig"))
	if err != nil {
		t.Fatalf("Fetch() failed: %v", err)
	}
	if second.Title != "orig" {
		t.Errorf("cached value was mutated through a returned copy: %q", second.Title)
	}
}

func TestFetch_FlushDuringLoadDiscardsFill(t *testing.T) {
	c := New(Config{Enabled: true})
	ctx := context.Background()

	got, err := Fetch(ctx, c, TaskKey(1), cloneTask, func(context.Context) (*types.Task, error) {
		// A mutation commits while this load is still running.
		c.Flush()
		return &types.Task{ID: 1, Title: "stale"}, nil
	})
	if err != nil {
		t.Fatalf("Fetch() failed: %v", err)
	}
	if got.Title != "stale" {
		t.Errorf("Fetch() title = %q, want the loaded value", got.Title)
	}
	if c.Len() != 0 {
		t.Error("fill from before the flush was stored")
	}

	var loads atomic.Int64
	fresh, err := Fetch(ctx, c, TaskKey(1), cloneTask, counter(&loads, "fresh"))
	if err != nil {
		t.Fatalf("Fetch() failed: %v", err)
	}
	if fresh.Title != "fresh" || loads.Load() != 1 {
		t.Errorf("next read = %q after %d loads, want fresh after 1", fresh.Title, loads.Load())
	}
}

func TestFetch_CoalescesConcurrentMisses(t *testing.T) {
	c := New(Config{Enabled: true})
	ctx := context.Background()

	var loads atomic.Int64
	release := make(chan struct{})
	load := func(context.Context) (*types.Task, error) {
		loads.Add(1)
		<-release
		return &types.Task{ID: 1, Title: "shared"}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := Fetch(ctx, c, TaskKey(1), cloneTask, load)
			if err != nil || got.Title != "shared" {
				t.Errorf("Fetch() = %v, %v", got, err)
			}
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if loads.Load() != 1 {
		t.Errorf("loads = %d, want 1", loads.Load())
	}
}

func TestFetch_CanceledWaiterDoesNotFailOthers(t *testing.T) {
	c := New(Config{Enabled: true})

	var once sync.Once
	started := make(chan struct{})
	release := make(chan struct{})
	load := func(ctx context.Context) (*types.Task, error) {
		once.Do(func() { close(started) })
		<-release
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return &types.Task{ID: 1, Title: "shared"}, nil
	}

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := Fetch(first, c, TaskKey(1), cloneTask, load)
		firstErr <- err
	}()
	<-started

	type result struct {
		task *types.Task
		err  error
	}
	second := make(chan result, 1)
	go func() {
		got, err := Fetch(context.Background(), c, TaskKey(1), cloneTask, load)
		second <- result{got, err}
	}()

	cancel()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Errorf("canceled caller error = %v, want context.Canceled", err)
	}
	close(release)

	res := <-second
	if res.err != nil || res.task.Title != "shared" {
		t.Errorf("second caller = %v, %v; want shared task", res.task, res.err)
	}
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(Config{Enabled: true, TTL: time.Minute, Registerer: reg})
	ctx := context.Background()
	var loads atomic.Int64

	_, _ = Fetch(ctx, c, TaskKey(1), cloneTask, counter(&loads, "a"))
	_, _ = Fetch(ctx, c, TaskKey(1), cloneTask, counter(&loads, "a"))
	c.Flush()

	if got := testutil.ToFloat64(c.metrics.misses); got != 1 {
		t.Errorf("misses = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.metrics.hits); got != 1 {
		t.Errorf("hits = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.metrics.flushes); got != 1 {
		t.Errorf("flushes = %v, want 1", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() failed: %v", err)
	}
	if len(families) != 4 {
		t.Errorf("registered %d metric families, want 4", len(families))
	}
}

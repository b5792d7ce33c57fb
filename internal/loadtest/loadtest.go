// Package loadtest drives the task service with concurrent writers adding
// random dependency edges while readers list dependencies.
//
// Random edges are the worst case for the cycle check: many of them would
// close a loop and must be rejected under contention. After a run the graph
// is audited to confirm it is still acyclic.
package loadtest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/khoitran3172/todo-list/internal/service"
	"github.com/khoitran3172/todo-list/internal/types"
)

// Config sizes a run.
type Config struct {
	Tasks          int   // tasks created by Populate
	Writers        int   // concurrent AddDependency loops
	EdgesPerWriter int   // attempts per writer
	Readers        int   // concurrent ListDependencies loops
	ReadsPerReader int   // reads per reader
	Seed           int64 // base seed; writer i uses Seed+i
}

// DefaultConfig returns a small run suitable for a laptop.
func DefaultConfig() Config {
	return Config{
		Tasks:          200,
		Writers:        8,
		EdgesPerWriter: 100,
		Readers:        8,
		ReadsPerReader: 100,
		Seed:           42,
	}
}

func (c Config) validate() error {
	if c.Tasks < 2 {
		return fmt.Errorf("need at least 2 tasks (got %d)", c.Tasks)
	}
	if c.Writers < 0 || c.Readers < 0 || c.EdgesPerWriter < 0 || c.ReadsPerReader < 0 {
		return fmt.Errorf("worker counts cannot be negative")
	}
	return nil
}

// Graph is a populated service under test.
type Graph struct {
	Service *service.Service
	TaskIDs []int64
}

// Populate creates n tasks with staggered due dates and mixed priorities.
func Populate(ctx context.Context, svc *service.Service, n int) (*Graph, error) {
	priorities := []types.Priority{types.PriorityLow, types.PriorityMedium, types.PriorityMedium, types.PriorityHigh}
	base := time.Now().Add(24 * time.Hour).Truncate(time.Hour)

	g := &Graph{Service: svc, TaskIDs: make([]int64, 0, n)}
	for i := 0; i < n; i++ {
		task, err := svc.CreateTask(ctx, types.TaskInput{
			Title:    fmt.Sprintf("Load task %d", i),
			DueDate:  base.Add(time.Duration(i) * time.Hour),
			Priority: priorities[i%len(priorities)],
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create task %d: %w", i, err)
		}
		g.TaskIDs = append(g.TaskIDs, task.ID)
	}
	return g, nil
}

// Report is the outcome of a run.
type Report struct {
	Writes *LatencyStats
	Reads  *LatencyStats

	Added    int // new edges written
	Existing int // edge already present
	Rejected int // would have closed a cycle

	// Cycle is non-nil when the post-run audit found a loop.
	Cycle []int64

	Duration time.Duration
}

// Verify returns an error if the graph is no longer acyclic.
func (r *Report) Verify() error {
	if r.Cycle != nil {
		return fmt.Errorf("graph contains a cycle: %v", r.Cycle)
	}
	return nil
}

type writerResult struct {
	durations                 []time.Duration
	added, existing, rejected int
}

// Run starts the writers and readers, waits for them, and audits the graph.
// Any error other than a cycle rejection aborts the run.
func (g *Graph) Run(ctx context.Context, cfg Config) (*Report, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if len(g.TaskIDs) < 2 {
		return nil, fmt.Errorf("graph has %d tasks, need at least 2", len(g.TaskIDs))
	}

	start := time.Now()
	var (
		mu      sync.Mutex
		writes  []writerResult
		reads   []time.Duration
		grp, gc = errgroup.WithContext(ctx)
	)

	for i := 0; i < cfg.Writers; i++ {
		rng := rand.New(rand.NewSource(cfg.Seed + int64(i)))
		grp.Go(func() error {
			res, err := g.write(gc, rng, cfg.EdgesPerWriter)
			if err != nil {
				return err
			}
			mu.Lock()
			writes = append(writes, res)
			mu.Unlock()
			return nil
		})
	}

	for i := 0; i < cfg.Readers; i++ {
		rng := rand.New(rand.NewSource(cfg.Seed - int64(i) - 1))
		grp.Go(func() error {
			durations, err := g.read(gc, rng, cfg.ReadsPerReader)
			if err != nil {
				return err
			}
			mu.Lock()
			reads = append(reads, durations...)
			mu.Unlock()
			return nil
		})
	}

	if err := grp.Wait(); err != nil {
		return nil, err
	}

	report := &Report{Reads: computeLatencyStats(reads)}
	var writeDurations []time.Duration
	for _, w := range writes {
		writeDurations = append(writeDurations, w.durations...)
		report.Added += w.added
		report.Existing += w.existing
		report.Rejected += w.rejected
	}
	report.Writes = computeLatencyStats(writeDurations)

	cycle, err := g.Service.Engine().FindCycle(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to audit graph: %w", err)
	}
	report.Cycle = cycle
	report.Duration = time.Since(start)
	return report, nil
}

func (g *Graph) pick(rng *rand.Rand) (int64, int64) {
	a := rng.Intn(len(g.TaskIDs))
	b := rng.Intn(len(g.TaskIDs) - 1)
	if b >= a {
		b++
	}
	return g.TaskIDs[a], g.TaskIDs[b]
}

func (g *Graph) write(ctx context.Context, rng *rand.Rand, n int) (writerResult, error) {
	res := writerResult{durations: make([]time.Duration, 0, n)}
	for j := 0; j < n; j++ {
		from, to := g.pick(rng)

		begin := time.Now()
		added, err := g.Service.AddDependency(ctx, from, to)
		res.durations = append(res.durations, time.Since(begin))

		switch {
		case err == nil && added:
			res.added++
		case err == nil:
			res.existing++
		case errors.Is(err, types.ErrCircularDependency):
			res.rejected++
		default:
			return res, fmt.Errorf("add %d -> %d failed: %w", from, to, err)
		}
	}
	return res, nil
}

func (g *Graph) read(ctx context.Context, rng *rand.Rand, n int) ([]time.Duration, error) {
	durations := make([]time.Duration, 0, n)
	for j := 0; j < n; j++ {
		id := g.TaskIDs[rng.Intn(len(g.TaskIDs))]

		begin := time.Now()
		set, err := g.Service.ListDependencies(ctx, id)
		durations = append(durations, time.Since(begin))
		if err != nil {
			return durations, fmt.Errorf("list dependencies of %d failed: %w", id, err)
		}
		for _, task := range set.Direct {
			if task.ID == id {
				return durations, fmt.Errorf("task %d lists itself as a direct dependency", id)
			}
		}
	}
	return durations, nil
}

// LatencyStats captures latency percentiles for one kind of operation.
type LatencyStats struct {
	Min   time.Duration
	Max   time.Duration
	Mean  time.Duration
	P50   time.Duration
	P95   time.Duration
	P99   time.Duration
	Count int
}

// computeLatencyStats calculates statistics from a slice of durations.
func computeLatencyStats(durations []time.Duration) *LatencyStats {
	if len(durations) == 0 {
		return &LatencyStats{}
	}

	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}

	return &LatencyStats{
		Min:   sorted[0],
		Max:   sorted[len(sorted)-1],
		Mean:  sum / time.Duration(len(sorted)),
		P50:   sorted[len(sorted)*50/100],
		P95:   sorted[len(sorted)*95/100],
		P99:   sorted[len(sorted)*99/100],
		Count: len(sorted),
	}
}

// Write prints the statistics under a heading.
func (s *LatencyStats) Write(w io.Writer, heading string) {
	fmt.Fprintf(w, "%s:\n", heading)
	fmt.Fprintf(w, "  Count:         %d\n", s.Count)
	fmt.Fprintf(w, "  Min:           %v\n", s.Min)
	fmt.Fprintf(w, "  P50 (Median):  %v\n", s.P50)
	fmt.Fprintf(w, "  Mean:          %v\n", s.Mean)
	fmt.Fprintf(w, "  P95:           %v\n", s.P95)
	fmt.Fprintf(w, "  P99:           %v\n", s.P99)
	fmt.Fprintf(w, "  Max:           %v\n", s.Max)
}

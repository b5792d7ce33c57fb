package reminder

import (
	"bytes"
	"context"
	"io"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/khoitran3172/todo-list/internal/service"
	"github.com/khoitran3172/todo-list/internal/store/memory"
	"github.com/khoitran3172/todo-list/internal/types"
)

var now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type collectSink struct {
	mu  sync.Mutex
	got []string
}

func (c *collectSink) Deliver(r Reminder) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, string(r.Kind)+":"+r.Task.Title)
}

func seed(t *testing.T) *service.Service {
	t.Helper()
	svc := service.New(memory.New(), service.WithLogger(log.New(io.Discard, "", 0)))
	ctx := context.Background()

	tasks := []struct {
		title  string
		due    time.Time
		status types.Status
	}{
		{"late", now.Add(-2 * time.Hour), types.StatusTodo},
		{"late but done", now.Add(-2 * time.Hour), types.StatusCompleted},
		{"soon", now.Add(3 * time.Hour), types.StatusTodo},
		{"soon in progress", now.Add(3 * time.Hour), types.StatusInProgress},
		{"tomorrow evening", now.Add(30 * time.Hour), types.StatusTodo},
	}
	for _, tt := range tasks {
		if _, err := svc.CreateTask(ctx, types.TaskInput{Title: tt.title, DueDate: tt.due, Status: tt.status}); err != nil {
			t.Fatalf("CreateTask(%q) failed: %v", tt.title, err)
		}
	}
	return svc
}

func newScheduler(t *testing.T, src Source, sinks ...Sink) *Scheduler {
	t.Helper()
	s, err := New(src, &Config{Logger: log.New(io.Discard, "", 0), Location: time.UTC}, sinks...)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	s.now = func() time.Time { return now }
	return s
}

func TestCheck(t *testing.T) {
	tests := []struct {
		kind Kind
		want []string
	}{
		{KindUpcoming, []string{"upcoming:soon"}},
		{KindOverdue, []string{"overdue:late"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			sink := &collectSink{}
			s := newScheduler(t, seed(t), sink)

			n, err := s.Check(context.Background(), tt.kind)
			if err != nil {
				t.Fatalf("Check() failed: %v", err)
			}
			if n != len(tt.want) {
				t.Errorf("Check() = %d, want %d", n, len(tt.want))
			}
			if diff := cmp.Diff(tt.want, sink.got); diff != "" {
				t.Errorf("reminders mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCheck_WindowIsConfigurable(t *testing.T) {
	sink := &collectSink{}
	s, err := New(seed(t), &Config{Window: 48 * time.Hour, Logger: log.New(io.Discard, "", 0)}, sink)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	s.now = func() time.Time { return now }

	if _, err := s.Check(context.Background(), KindUpcoming); err != nil {
		t.Fatalf("Check() failed: %v", err)
	}
	want := []string{"upcoming:soon", "upcoming:tomorrow evening"}
	if diff := cmp.Diff(want, sink.got); diff != "" {
		t.Errorf("reminders mismatch (-want +got):\n%s", diff)
	}
}

func TestNew_InvalidSpec(t *testing.T) {
	_, err := New(seed(t), &Config{UpcomingSpec: "every day", Logger: log.New(io.Discard, "", 0)})
	if err == nil {
		t.Fatal("New() accepted an invalid cron expression")
	}
}

func TestStartStop(t *testing.T) {
	s := newScheduler(t, seed(t))
	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
	if ctx.Err() != nil {
		t.Error("Stop() did not return before the deadline")
	}
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	sink := LogSink{Logger: log.New(&buf, "", 0)}
	task := &types.Task{ID: 7, Title: "pay rent", DueDate: now}

	sink.Deliver(Reminder{Kind: KindOverdue, Task: task, At: now})
	sink.Deliver(Reminder{Kind: KindUpcoming, Task: task, At: now})

	out := buf.String()
	if !strings.Contains(out, "Overdue: task 7") || !strings.Contains(out, "Upcoming: task 7") {
		t.Errorf("unexpected log output:\n%s", out)
	}
}

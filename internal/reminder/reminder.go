// Package reminder runs the scheduled due-date checks: an upcoming check
// for open tasks due soon and an overdue check for open tasks past due.
// Each hit is handed to every configured Sink.
package reminder

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/khoitran3172/todo-list/internal/types"
)

// Kind distinguishes the two checks.
type Kind string

const (
	KindUpcoming Kind = "upcoming"
	KindOverdue  Kind = "overdue"
)

// Reminder is one task found by a check.
type Reminder struct {
	Kind Kind
	Task *types.Task
	At   time.Time
}

// Sink receives reminders. Deliver must not block for long; it runs on the
// scheduler goroutine.
type Sink interface {
	Deliver(r Reminder)
}

// Source finds tasks with the given status due before a point in time.
// *service.Service satisfies it.
type Source interface {
	DueBefore(ctx context.Context, before time.Time, status types.Status) ([]*types.Task, error)
}

// Config holds the schedule.
type Config struct {
	// UpcomingSpec is a standard five-field cron expression (default "0 9 * * *").
	UpcomingSpec string

	// OverdueSpec is a standard five-field cron expression (default "0 * * * *").
	OverdueSpec string

	// Window is how far ahead the upcoming check looks (default 24h).
	Window time.Duration

	// Timeout bounds a single check (default 30s).
	Timeout time.Duration

	Location *time.Location
	Logger   *log.Logger
}

// DefaultConfig returns the daily/hourly schedule.
func DefaultConfig() *Config {
	return &Config{
		UpcomingSpec: "0 9 * * *",
		OverdueSpec:  "0 * * * *",
		Window:       24 * time.Hour,
		Timeout:      30 * time.Second,
		Location:     time.Local,
		Logger:       log.New(os.Stderr, "[reminder] ", log.LstdFlags),
	}
}

// Scheduler owns the cron jobs.
type Scheduler struct {
	source Source
	sinks  []Sink
	config *Config
	cron   *cron.Cron
	logger *log.Logger
	now    func() time.Time
}

// New validates the cron expressions and registers both checks. Call Start
// to begin running them.
func New(source Source, config *Config, sinks ...Sink) (*Scheduler, error) {
	def := DefaultConfig()
	if config == nil {
		config = def
	}
	if config.UpcomingSpec == "" {
		config.UpcomingSpec = def.UpcomingSpec
	}
	if config.OverdueSpec == "" {
		config.OverdueSpec = def.OverdueSpec
	}
	if config.Window <= 0 {
		config.Window = def.Window
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if config.Location == nil {
		config.Location = def.Location
	}
	if config.Logger == nil {
		config.Logger = def.Logger
	}

	cronLogger := cron.PrintfLogger(config.Logger)
	s := &Scheduler{
		source: source,
		sinks:  sinks,
		config: config,
		logger: config.Logger,
		now:    time.Now,
		cron: cron.New(
			cron.WithLocation(config.Location),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
	}

	if _, err := s.cron.AddFunc(config.UpcomingSpec, s.job(KindUpcoming)); err != nil {
		return nil, fmt.Errorf("invalid upcoming schedule %q: %w", config.UpcomingSpec, err)
	}
	if _, err := s.cron.AddFunc(config.OverdueSpec, s.job(KindOverdue)); err != nil {
		return nil, fmt.Errorf("invalid overdue schedule %q: %w", config.OverdueSpec, err)
	}
	return s, nil
}

func (s *Scheduler) job(kind Kind) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.config.Timeout)
		defer cancel()

		n, err := s.Check(ctx, kind)
		if err != nil {
			s.logger.Printf("Warning: %s check failed: %v", kind, err)
			return
		}
		if n > 0 {
			s.logger.Printf("%s check: %d reminder(s) sent", kind, n)
		}
	}
}

// Start runs the scheduler in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Printf("Reminders scheduled (upcoming %q, overdue %q)", s.config.UpcomingSpec, s.config.OverdueSpec)
}

// Stop halts scheduling and waits for a running check to finish or ctx to
// expire.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// Check runs one check immediately and returns the number of reminders
// delivered.
func (s *Scheduler) Check(ctx context.Context, kind Kind) (int, error) {
	now := s.now()

	var (
		tasks []*types.Task
		err   error
	)
	switch kind {
	case KindUpcoming:
		tasks, err = s.source.DueBefore(ctx, now.Add(s.config.Window), types.StatusTodo)
	case KindOverdue:
		tasks, err = s.source.DueBefore(ctx, now, types.StatusTodo)
	default:
		return 0, fmt.Errorf("unknown reminder kind %q", kind)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to find %s tasks: %w", kind, err)
	}

	sent := 0
	for _, task := range tasks {
		// Past-due tasks belong to the overdue check.
		if kind == KindUpcoming && task.DueDate.Before(now) {
			continue
		}
		r := Reminder{Kind: kind, Task: task, At: now}
		for _, sink := range s.sinks {
			sink.Deliver(r)
		}
		sent++
	}
	return sent, nil
}

// LogSink writes each reminder to a logger.
type LogSink struct {
	Logger *log.Logger
}

// Deliver implements Sink.
func (l LogSink) Deliver(r Reminder) {
	switch r.Kind {
	case KindOverdue:
		l.Logger.Printf("Overdue: task %d %q was due %s", r.Task.ID, r.Task.Title, r.Task.DueDate.Format(time.RFC3339))
	default:
		l.Logger.Printf("Upcoming: task %d %q is due %s", r.Task.ID, r.Task.Title, r.Task.DueDate.Format(time.RFC3339))
	}
}

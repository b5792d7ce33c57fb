package types

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestTask_Validate(t *testing.T) {
	due := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	valid := func() Task {
		return Task{Title: "Write report", DueDate: due, Priority: PriorityMedium, Status: StatusTodo}
	}

	tests := []struct {
		name    string
		mutate  func(*Task)
		wantErr bool
	}{
		{name: "valid task", mutate: func(*Task) {}},
		{name: "missing title", mutate: func(t *Task) { t.Title = "  " }, wantErr: true},
		{name: "title too long", mutate: func(t *Task) { t.Title = strings.Repeat("x", MaxTitleLength+1) }, wantErr: true},
		{name: "missing due date", mutate: func(t *Task) { t.DueDate = time.Time{} }, wantErr: true},
		{name: "bad priority", mutate: func(t *Task) { t.Priority = "urgent" }, wantErr: true},
		{name: "bad status", mutate: func(t *Task) { t.Status = "open" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := valid()
			tt.mutate(&task)
			err := task.Validate()
			if tt.wantErr {
				if err == nil {
					t.Fatal("Validate() error = nil, want error")
				}
				if !errors.Is(err, ErrInvalidArgument) {
					t.Errorf("Validate() error = %v, want ErrInvalidArgument", err)
				}
				return
			}
			if err != nil {
				t.Errorf("Validate() unexpected error = %v", err)
			}
		})
	}
}

func TestTaskFilter_KeyIsNormalized(t *testing.T) {
	a := TaskFilter{Priority: PriorityHigh, Status: StatusTodo}
	b := TaskFilter{Status: StatusTodo, Priority: PriorityHigh}
	if a.Key() != b.Key() {
		t.Errorf("Key() differs for equal filters: %q vs %q", a.Key(), b.Key())
	}
	if a.Key() == (TaskFilter{}).Key() {
		t.Error("Key() for non-empty filter equals empty filter key")
	}
}

func TestTaskFilter_Validate(t *testing.T) {
	if err := (TaskFilter{Status: "done"}).Validate(); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Validate(bad status) = %v, want ErrInvalidArgument", err)
	}
	if err := (TaskFilter{Priority: "p0"}).Validate(); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Validate(bad priority) = %v, want ErrInvalidArgument", err)
	}
	if err := (TaskFilter{Status: StatusCompleted, Priority: PriorityLow}).Validate(); err != nil {
		t.Errorf("Validate(valid) = %v", err)
	}
}

func TestTaskPatch_Apply(t *testing.T) {
	task := &Task{Title: "old", Priority: PriorityLow, Status: StatusTodo}
	title := "new"
	status := StatusCompleted
	TaskPatch{Title: &title, Status: &status}.Apply(task)

	if task.Title != "new" || task.Status != StatusCompleted {
		t.Errorf("Apply() = %+v", task)
	}
	if task.Priority != PriorityLow {
		t.Errorf("Apply() changed untouched priority to %q", task.Priority)
	}
	if !(TaskPatch{}).IsEmpty() {
		t.Error("empty patch reports non-empty")
	}
}

func TestTask_CloneIsDeep(t *testing.T) {
	orig := &Task{ID: 1, Dependencies: []int64{2, 3}}
	c := orig.Clone()
	c.Dependencies[0] = 99
	if orig.Dependencies[0] != 2 {
		t.Error("Clone() shares the Dependencies slice")
	}
}

func TestTask_ClonePreservesEmptyDependencies(t *testing.T) {
	if c := (&Task{ID: 1, Dependencies: []int64{}}).Clone(); c.Dependencies == nil {
		t.Error("Clone() turned empty Dependencies into nil")
	}
	if c := (&Task{ID: 1}).Clone(); c.Dependencies != nil {
		t.Errorf("Clone() Dependencies = %v, want nil", c.Dependencies)
	}
}

func TestErrorKinds(t *testing.T) {
	if !errors.Is(ErrSelfDependency, ErrInvalidArgument) || !errors.Is(ErrSelfDependency, ErrCircularDependency) {
		t.Error("ErrSelfDependency must match both ErrInvalidArgument and ErrCircularDependency")
	}
	if !errors.Is(ErrTaskNotFound, ErrNotFound) || !errors.Is(ErrDependencyNotFound, ErrNotFound) {
		t.Error("narrow not-found errors must match ErrNotFound")
	}

	cause := errors.New("disk I/O error")
	err := WrapStore("insert edge", cause)
	if !errors.Is(err, ErrStoreFailure) {
		t.Errorf("WrapStore() = %v, want ErrStoreFailure", err)
	}
	if !errors.Is(err, cause) {
		t.Error("WrapStore() lost the cause")
	}
	wrapped := fmt.Errorf("query: %w", context.Canceled)
	if got := WrapStore("find task", wrapped); errors.Is(got, ErrStoreFailure) || !errors.Is(got, context.Canceled) {
		t.Errorf("WrapStore(canceled) = %v, want context error passthrough", got)
	}
	if got := WrapStore("find task", ErrTaskNotFound); got != ErrTaskNotFound {
		t.Errorf("WrapStore(not found) = %v, want passthrough", got)
	}
	if WrapStore("noop", nil) != nil {
		t.Error("WrapStore(nil) != nil")
	}
}

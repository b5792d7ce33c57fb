// Package types defines the core data types shared by the task graph engine,
// the cache, the store implementations, and the request layer.
package types

import (
	"fmt"
	"strings"
	"time"
)

// Priority is the urgency of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// IsValid reports whether p is one of the known priorities.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Status is the workflow state of a task.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// IsValid reports whether s is one of the known statuses.
func (s Status) IsValid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// MaxTitleLength bounds task titles.
const MaxTitleLength = 255

// Task is a unit of work. Tasks are owned by the store; the graph engine
// only references them by ID.
type Task struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	DueDate     time.Time `json:"due_date"`
	Priority    Priority  `json:"priority"`
	Status      Status    `json:"status"`

	// Dependencies holds the IDs of the task's direct dependencies, in edge
	// storage order. Only populated on single-task reads.
	Dependencies []int64 `json:"dependencies,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy of t.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	if t.Dependencies != nil {
		c.Dependencies = append(make([]int64, 0, len(t.Dependencies)), t.Dependencies...)
	}
	return &c
}

// Validate checks the fields a stored task must always carry.
func (t *Task) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidArgument)
	}
	if len(t.Title) > MaxTitleLength {
		return fmt.Errorf("%w: title must be %d characters or less (got %d)", ErrInvalidArgument, MaxTitleLength, len(t.Title))
	}
	if t.DueDate.IsZero() {
		return fmt.Errorf("%w: due_date is required", ErrInvalidArgument)
	}
	if !t.Priority.IsValid() {
		return fmt.Errorf("%w: invalid priority %q", ErrInvalidArgument, t.Priority)
	}
	if !t.Status.IsValid() {
		return fmt.Errorf("%w: invalid status %q", ErrInvalidArgument, t.Status)
	}
	return nil
}

// TaskInput carries the fields accepted when creating a task.
type TaskInput struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	DueDate     time.Time `json:"due_date"`
	Priority    Priority  `json:"priority,omitempty"`
	Status      Status    `json:"status,omitempty"`
}

// TaskPatch carries a partial update. Nil fields are left unchanged.
type TaskPatch struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Priority    *Priority  `json:"priority,omitempty"`
	Status      *Status    `json:"status,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.DueDate == nil &&
		p.Priority == nil && p.Status == nil
}

// Apply merges the patch into t. It does not validate the result.
func (p TaskPatch) Apply(t *Task) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.DueDate != nil {
		t.DueDate = *p.DueDate
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
}

// TaskFilter restricts a task listing to equality matches. Empty fields
// match everything.
type TaskFilter struct {
	Status   Status   `json:"status,omitempty"`
	Priority Priority `json:"priority,omitempty"`
}

// Validate rejects unknown enum values.
func (f TaskFilter) Validate() error {
	if f.Status != "" && !f.Status.IsValid() {
		return fmt.Errorf("%w: invalid status filter %q", ErrInvalidArgument, f.Status)
	}
	if f.Priority != "" && !f.Priority.IsValid() {
		return fmt.Errorf("%w: invalid priority filter %q", ErrInvalidArgument, f.Priority)
	}
	return nil
}

// Key returns a normalized representation usable as part of a cache key.
// Field order is fixed so equal filters always produce equal keys.
func (f TaskFilter) Key() string {
	return fmt.Sprintf("status=%s&priority=%s", f.Status, f.Priority)
}

// Matches reports whether t satisfies the filter.
func (f TaskFilter) Matches(t *Task) bool {
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.Priority != "" && t.Priority != f.Priority {
		return false
	}
	return true
}

// TaskPage is one page of a task listing.
type TaskPage struct {
	Items []*Task `json:"items"`
	Total int     `json:"total"`
}

// Clone returns a deep copy of the page.
func (p *TaskPage) Clone() *TaskPage {
	if p == nil {
		return nil
	}
	c := &TaskPage{Total: p.Total, Items: make([]*Task, len(p.Items))}
	for i, t := range p.Items {
		c.Items[i] = t.Clone()
	}
	return c
}

// Dependency is a directed edge: TaskID depends on DependsOnID.
type Dependency struct {
	TaskID      int64     `json:"task_id"`
	DependsOnID int64     `json:"depends_on_id"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// String formats the edge for logs.
func (d Dependency) String() string {
	return fmt.Sprintf("%d -> %d", d.TaskID, d.DependsOnID)
}

// DependencySet is the result of a dependency listing.
type DependencySet struct {
	Direct   []*Task `json:"direct"`
	Indirect []*Task `json:"indirect"`
}

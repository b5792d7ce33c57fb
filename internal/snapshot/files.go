// Package snapshot exports and imports the task graph as files.
//
// Two layouts are supported. A directory holds one JSON file per task in
// tasks/{id}.json and one per edge in deps/{task}--{dependency}.json. A
// bundle is a single JSON or YAML document holding both lists. Imports go
// through the task service so every edge is cycle-checked again.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/khoitran3172/todo-list/internal/types"
)

// TaskFile is a task as stored in tasks/{id}.json or in a bundle.
type TaskFile struct {
	ID          int64     `json:"id" yaml:"id"`
	Title       string    `json:"title" yaml:"title"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	DueDate     time.Time `json:"due_date" yaml:"due_date"`
	Priority    string    `json:"priority" yaml:"priority"`
	Status      string    `json:"status" yaml:"status"`
	CreatedAt   time.Time `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// Validate checks the fields an import needs.
func (t *TaskFile) Validate() error {
	if t.ID <= 0 {
		return fmt.Errorf("id must be positive (got %d)", t.ID)
	}
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if len(t.Title) > types.MaxTitleLength {
		return fmt.Errorf("title must be %d characters or less (got %d)", types.MaxTitleLength, len(t.Title))
	}
	if t.DueDate.IsZero() {
		return fmt.Errorf("due_date is required")
	}
	if t.Priority != "" && !types.Priority(t.Priority).IsValid() {
		return fmt.Errorf("invalid priority: %s", t.Priority)
	}
	if t.Status != "" && !types.Status(t.Status).IsValid() {
		return fmt.Errorf("invalid status: %s", t.Status)
	}
	return nil
}

// Filename returns the canonical filename for this task: {id}.json
func (t *TaskFile) Filename() string {
	return fmt.Sprintf("%d.json", t.ID)
}

// Input converts the file into a creation request. The stored ID and
// timestamps are not carried over.
func (t *TaskFile) Input() types.TaskInput {
	return types.TaskInput{
		Title:       t.Title,
		Description: t.Description,
		DueDate:     t.DueDate,
		Priority:    types.Priority(t.Priority),
		Status:      types.Status(t.Status),
	}
}

// FromTask converts a stored task.
func FromTask(task *types.Task) TaskFile {
	return TaskFile{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		DueDate:     task.DueDate.UTC(),
		Priority:    string(task.Priority),
		Status:      string(task.Status),
		CreatedAt:   task.CreatedAt.UTC(),
		UpdatedAt:   task.UpdatedAt.UTC(),
	}
}

// DepFile is one edge as stored in deps/{task}--{dependency}.json or in a
// bundle.
type DepFile struct {
	TaskID      int64     `json:"task_id" yaml:"task_id"`
	DependsOnID int64     `json:"depends_on_id" yaml:"depends_on_id"`
	CreatedAt   time.Time `json:"created_at,omitempty" yaml:"created_at,omitempty"`
}

// Validate checks both endpoints are set and distinct.
func (d *DepFile) Validate() error {
	if d.TaskID <= 0 {
		return fmt.Errorf("task_id must be positive (got %d)", d.TaskID)
	}
	if d.DependsOnID <= 0 {
		return fmt.Errorf("depends_on_id must be positive (got %d)", d.DependsOnID)
	}
	if d.TaskID == d.DependsOnID {
		return fmt.Errorf("task %d cannot depend on itself", d.TaskID)
	}
	return nil
}

// ToFileName generates the filename for this dependency
// Format: {task}--{dependency}.json
func (d *DepFile) ToFileName() string {
	return fmt.Sprintf("%d--%d.json", d.TaskID, d.DependsOnID)
}

// ParseDepFileName returns the endpoints encoded in a dependency filename.
func ParseDepFileName(filename string) (int64, int64, error) {
	name := strings.TrimSuffix(filepath.Base(filename), ".json")
	parts := strings.Split(name, "--")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid filename format: expected {task}--{dependency}.json, got %s", filename)
	}
	from, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid task id in %s: %w", filename, err)
	}
	to, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid dependency id in %s: %w", filename, err)
	}
	return from, to, nil
}

// FromDependency converts a stored edge.
func FromDependency(dep types.Dependency) DepFile {
	return DepFile{TaskID: dep.TaskID, DependsOnID: dep.DependsOnID, CreatedAt: dep.CreatedAt.UTC()}
}

// ReadTaskFile reads and validates a task file.
func ReadTaskFile(path string) (*TaskFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read task file: %w", err)
	}
	var task TaskFile
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("failed to parse task file: %w", err)
	}
	if err := task.Validate(); err != nil {
		return nil, fmt.Errorf("invalid task file: %w", err)
	}
	return &task, nil
}

// WriteTaskFile writes a task file into dir.
func WriteTaskFile(dir string, task *TaskFile) error {
	if err := task.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}
	return writeJSON(filepath.Join(dir, task.Filename()), task)
}

// ReadDepFile reads and validates a dependency file. The endpoints in the
// body must match the filename.
func ReadDepFile(path string) (*DepFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dep file: %w", err)
	}
	var dep DepFile
	if err := json.Unmarshal(data, &dep); err != nil {
		return nil, fmt.Errorf("failed to parse dep file: %w", err)
	}
	if err := dep.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dep file: %w", err)
	}
	from, to, err := ParseDepFileName(path)
	if err != nil {
		return nil, err
	}
	if from != dep.TaskID || to != dep.DependsOnID {
		return nil, fmt.Errorf("dep file %s does not match its contents (%d -> %d)", filepath.Base(path), dep.TaskID, dep.DependsOnID)
	}
	return &dep, nil
}

// WriteDepFile writes a dependency file into dir.
func WriteDepFile(dir string, dep *DepFile) error {
	if err := dep.Validate(); err != nil {
		return fmt.Errorf("invalid dependency: %w", err)
	}
	return writeJSON(filepath.Join(dir, dep.ToFileName()), dep)
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// listJSON returns the .json files in dir sorted by name. A missing
// directory yields no files.
func listJSON(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// Package sqlite provides the durable task store, an embedded SQLite
// database accessed through the ncruces/go-sqlite3 driver.
//
// Architecture:
//   - Database file: configured by database.path (default todo.db)
//   - WAL mode: concurrent readers during writes
//   - Schema: tasks, task_dependencies
//   - Foreign keys with ON DELETE CASCADE back the cascade delete
//
// The graph engine remains the only writer of task_dependencies; this
// package persists what it is told to and performs no cycle checks.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/khoitran3172/todo-list/internal/store"
	"github.com/khoitran3172/todo-list/internal/types"
)

// timeFormat is fixed-width so stored timestamps sort lexicographically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

var (
	_ store.Store          = (*DB)(nil)
	_ store.CascadeDeleter = (*DB)(nil)
)

// DB wraps the SQLite connection pool.
type DB struct {
	conn *sql.DB
	path string
	now  func() time.Time
}

// Open creates a new database connection at the specified path.
//
// Pragmas are passed in the DSN so that every pooled connection gets them,
// not only the first one.
//
// The caller MUST call Close() when done.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	return &DB{conn: conn, path: path, now: time.Now}, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// RawDB returns the underlying sql.DB connection.
func (db *DB) RawDB() *sql.DB {
	return db.conn
}

// Close checkpoints the WAL and closes the connection pool.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	db.conn = nil
	return nil
}

// InitSchema creates the tables and indexes if they don't exist. It is
// idempotent.
func (db *DB) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		due_date TEXT NOT NULL,
		priority TEXT NOT NULL DEFAULT 'medium',
		status TEXT NOT NULL DEFAULT 'todo',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS task_dependencies (
		task_id INTEGER NOT NULL,
		dependency_id INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY (task_id, dependency_id),
		FOREIGN KEY (task_id) REFERENCES tasks(id) ON DELETE CASCADE,
		FOREIGN KEY (dependency_id) REFERENCES tasks(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
	CREATE INDEX IF NOT EXISTS idx_tasks_priority ON tasks(priority);
	CREATE INDEX IF NOT EXISTS idx_tasks_due ON tasks(status, due_date);
	CREATE INDEX IF NOT EXISTS idx_deps_dependency ON task_dependencies(dependency_id);
	`

	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

const taskColumns = `id, title, description, due_date, priority, status, created_at, updated_at`

// FindTask implements store.Store.
func (db *DB) FindTask(ctx context.Context, id int64) (*types.Task, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", types.ErrTaskNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task %d: %w", id, err)
	}
	return task, nil
}

// FindTasksPage implements store.Store.
func (db *DB) FindTasksPage(ctx context.Context, filter types.TaskFilter, offset, limit int) ([]*types.Task, int, error) {
	var conditions []string
	var args []interface{}

	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Priority != "" {
		conditions = append(conditions, "priority = ?")
		args = append(args, string(filter.Priority))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count tasks: %w", err)
	}

	query := `SELECT ` + taskColumns + ` FROM tasks` + where + ` ORDER BY id ASC`
	if limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, offset)
	} else if offset > 0 {
		query += " LIMIT -1 OFFSET ?"
		args = append(args, offset)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	tasks, err := scanTasks(rows)
	if err != nil {
		return nil, 0, err
	}
	return tasks, total, nil
}

// SaveTask implements store.Store.
func (db *DB) SaveTask(ctx context.Context, task *types.Task) (*types.Task, error) {
	now := db.now().UTC()

	if task.ID == 0 {
		res, err := db.conn.ExecContext(ctx, `
		INSERT INTO tasks (title, description, due_date, priority, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		`,
			task.Title,
			task.Description,
			formatTime(task.DueDate),
			string(task.Priority),
			string(task.Status),
			formatTime(now),
			formatTime(now),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert task: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("failed to read inserted task id: %w", err)
		}
		return db.FindTask(ctx, id)
	}

	res, err := db.conn.ExecContext(ctx, `
	UPDATE tasks SET
		title = ?,
		description = ?,
		due_date = ?,
		priority = ?,
		status = ?,
		updated_at = ?
	WHERE id = ?
	`,
		task.Title,
		task.Description,
		formatTime(task.DueDate),
		string(task.Priority),
		string(task.Status),
		formatTime(now),
		task.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update task %d: %w", task.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("%w: %d", types.ErrTaskNotFound, task.ID)
	}
	return db.FindTask(ctx, task.ID)
}

// DeleteTask implements store.Store.
func (db *DB) DeleteTask(ctx context.Context, id int64) (bool, error) {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete task %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected: %w", err)
	}
	return affected > 0, nil
}

// DeleteTaskCascade implements store.CascadeDeleter. Both deletes run in
// one transaction.
func (db *DB) DeleteTaskCascade(ctx context.Context, id int64) (bool, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM task_dependencies WHERE task_id = ? OR dependency_id = ?`, id, id); err != nil {
		return false, fmt.Errorf("failed to delete dependencies of %d: %w", id, err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete task %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return affected > 0, nil
}

// LoadDirectDependencies implements store.Store.
func (db *DB) LoadDirectDependencies(ctx context.Context, taskID int64) ([]int64, error) {
	rows, err := db.conn.QueryContext(ctx, `
	SELECT dependency_id FROM task_dependencies
	WHERE task_id = ?
	ORDER BY rowid ASC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query dependencies of %d: %w", taskID, err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan dependency: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dependencies: %w", err)
	}
	return ids, nil
}

// InsertEdge implements store.Store. Inserting an existing edge is a no-op.
func (db *DB) InsertEdge(ctx context.Context, taskID, dependencyID int64) error {
	_, err := db.conn.ExecContext(ctx, `
	INSERT INTO task_dependencies (task_id, dependency_id, created_at)
	VALUES (?, ?, ?)
	ON CONFLICT(task_id, dependency_id) DO NOTHING
	`, taskID, dependencyID, formatTime(db.now().UTC()))
	if err != nil {
		return fmt.Errorf("failed to insert dependency %d -> %d: %w", taskID, dependencyID, err)
	}
	return nil
}

// DeleteEdge implements store.Store.
func (db *DB) DeleteEdge(ctx context.Context, taskID, dependencyID int64) (bool, error) {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM task_dependencies WHERE task_id = ? AND dependency_id = ?`,
		taskID, dependencyID)
	if err != nil {
		return false, fmt.Errorf("failed to delete dependency %d -> %d: %w", taskID, dependencyID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected: %w", err)
	}
	return affected > 0, nil
}

// DeleteAllEdgesFor implements store.Store.
func (db *DB) DeleteAllEdgesFor(ctx context.Context, taskID int64) error {
	_, err := db.conn.ExecContext(ctx,
		`DELETE FROM task_dependencies WHERE task_id = ? OR dependency_id = ?`,
		taskID, taskID)
	if err != nil {
		return fmt.Errorf("failed to delete dependencies of %d: %w", taskID, err)
	}
	return nil
}

// ListEdges implements store.Store.
func (db *DB) ListEdges(ctx context.Context) ([]types.Dependency, error) {
	rows, err := db.conn.QueryContext(ctx, `
	SELECT task_id, dependency_id, created_at
	FROM task_dependencies
	ORDER BY task_id ASC, rowid ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query dependencies: %w", err)
	}
	defer rows.Close()

	var deps []types.Dependency
	for rows.Next() {
		var dep types.Dependency
		var createdAt string
		if err := rows.Scan(&dep.TaskID, &dep.DependsOnID, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan dependency: %w", err)
		}
		if dep.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}
		deps = append(deps, dep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dependencies: %w", err)
	}
	return deps, nil
}

// FindTasksDueBefore implements store.Store.
func (db *DB) FindTasksDueBefore(ctx context.Context, before time.Time, status types.Status) ([]*types.Task, error) {
	rows, err := db.conn.QueryContext(ctx, `
	SELECT `+taskColumns+` FROM tasks
	WHERE status = ? AND due_date < ?
	ORDER BY due_date ASC, id ASC
	`, string(status), formatTime(before))
	if err != nil {
		return nil, fmt.Errorf("failed to query due tasks: %w", err)
	}
	defer rows.Close()

	return scanTasks(rows)
}

// TaskCount returns the total number of tasks in the database.
func (db *DB) TaskCount(ctx context.Context) (int, error) {
	var count int
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to get task count: %w", err)
	}
	return count, nil
}

// EdgeCount returns the total number of dependency edges in the database.
func (db *DB) EdgeCount(ctx context.Context) (int, error) {
	var count int
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM task_dependencies").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to get dependency count: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*types.Task, error) {
	var task types.Task
	var dueDate, createdAt, updatedAt, priority, status string

	if err := row.Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&dueDate,
		&priority,
		&status,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	task.Priority = types.Priority(priority)
	task.Status = types.Status(status)

	var err error
	if task.DueDate, err = parseTime(dueDate); err != nil {
		return nil, fmt.Errorf("failed to parse due_date of task %d: %w", task.ID, err)
	}
	if task.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at of task %d: %w", task.ID, err)
	}
	if task.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at of task %d: %w", task.ID, err)
	}
	return &task, nil
}

// scanTasks scans multiple tasks from query results.
func scanTasks(rows *sql.Rows) ([]*types.Task, error) {
	tasks := []*types.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}
	return tasks, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

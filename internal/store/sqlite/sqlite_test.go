package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/khoitran3172/todo-list/internal/store"
	"github.com/khoitran3172/todo-list/internal/store/storetest"
)

// testDBPath returns a temporary path for test databases
func testDBPath(t *testing.T) string {
	return filepath.Join(t.TempDir(), "test.db")
}

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(testDBPath(t))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := db.InitSchema(context.Background()); err != nil {
		t.Fatalf("InitSchema() failed: %v", err)
	}
	return db
}

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return openTestDB(t)
	})
}

// TestInitSchema_Success tests schema creation
func TestInitSchema_Success(t *testing.T) {
	db := openTestDB(t)

	for _, table := range []string{"tasks", "task_dependencies"} {
		var count int
		query := `SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`
		if err := db.conn.QueryRow(query, table).Scan(&count); err != nil {
			t.Fatalf("Failed to query table %s: %v", table, err)
		}
		if count != 1 {
			t.Errorf("Table %s does not exist", table)
		}
	}
}

// TestInitSchema_Idempotent tests that schema initialization is idempotent
func TestInitSchema_Idempotent(t *testing.T) {
	db := openTestDB(t)
	if err := db.InitSchema(context.Background()); err != nil {
		t.Errorf("Second InitSchema() failed: %v", err)
	}
}

// TestForeignKeysCascade verifies that deleting a task row also drops its
// edges even when the caller skips DeleteAllEdgesFor.
func TestForeignKeysCascade(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	a, err := db.SaveTask(ctx, storetest.NewTask("a"))
	if err != nil {
		t.Fatalf("SaveTask(a) failed: %v", err)
	}
	b, err := db.SaveTask(ctx, storetest.NewTask("b"))
	if err != nil {
		t.Fatalf("SaveTask(b) failed: %v", err)
	}
	if err := db.InsertEdge(ctx, a.ID, b.ID); err != nil {
		t.Fatalf("InsertEdge() failed: %v", err)
	}

	if _, err := db.DeleteTask(ctx, b.ID); err != nil {
		t.Fatalf("DeleteTask() failed: %v", err)
	}

	count, err := db.EdgeCount(ctx)
	if err != nil {
		t.Fatalf("EdgeCount() failed: %v", err)
	}
	if count != 0 {
		t.Errorf("EdgeCount() = %d after cascade, want 0", count)
	}
}

func TestCounts(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	for _, title := range []string{"one", "two", "three"} {
		if _, err := db.SaveTask(ctx, storetest.NewTask(title)); err != nil {
			t.Fatalf("SaveTask(%s) failed: %v", title, err)
		}
	}
	if err := db.InsertEdge(ctx, 1, 2); err != nil {
		t.Fatalf("InsertEdge() failed: %v", err)
	}

	tasks, err := db.TaskCount(ctx)
	if err != nil || tasks != 3 {
		t.Errorf("TaskCount() = %d, %v; want 3", tasks, err)
	}
	edges, err := db.EdgeCount(ctx)
	if err != nil || edges != 1 {
		t.Errorf("EdgeCount() = %d, %v; want 1", edges, err)
	}
}

func TestClose_Idempotent(t *testing.T) {
	db, err := Open(testDBPath(t))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Errorf("second Close() failed: %v", err)
	}
}

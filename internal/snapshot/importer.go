package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/khoitran3172/todo-list/internal/service"
	"github.com/khoitran3172/todo-list/internal/types"
)

// Result summarizes one import.
type Result struct {
	TasksCreated int
	TasksFailed  int
	DepsAdded    int
	DepsExisting int
	DepsRejected int // would have created a cycle
	DepsFailed   int
	FilesSkipped int // unreadable files in a directory import

	// IDs maps IDs in the source to the IDs assigned on import.
	IDs map[int64]int64

	Duration time.Duration
}

// Failed returns the number of records that were not imported.
func (r *Result) Failed() int {
	return r.TasksFailed + r.DepsRejected + r.DepsFailed + r.FilesSkipped
}

func (r *Result) String() string {
	return fmt.Sprintf("tasks=%d (failed=%d), deps=%d (existing=%d, rejected=%d, failed=%d), skipped files=%d in %v",
		r.TasksCreated, r.TasksFailed, r.DepsAdded, r.DepsExisting, r.DepsRejected, r.DepsFailed,
		r.FilesSkipped, r.Duration.Round(time.Millisecond))
}

// Importer recreates bundles through the task service.
type Importer struct {
	svc    *service.Service
	logger *log.Logger
}

// NewImporter creates an importer. If logger is nil, a default logger
// writing to stderr is used.
func NewImporter(svc *service.Service, logger *log.Logger) *Importer {
	if logger == nil {
		logger = log.New(os.Stderr, "[import] ", log.LstdFlags)
	}
	return &Importer{svc: svc, logger: logger}
}

// Import creates every task in b with a fresh ID, then adds every edge
// between the new IDs. Individual failures are logged and counted; only a
// store failure or cancellation stops the import.
func (im *Importer) Import(ctx context.Context, b *Bundle) (*Result, error) {
	start := time.Now()
	res := &Result{IDs: make(map[int64]int64, len(b.Tasks))}

	for i := range b.Tasks {
		tf := &b.Tasks[i]
		if err := tf.Validate(); err != nil {
			im.logger.Printf("Warning: skipping task %d: %v", tf.ID, err)
			res.TasksFailed++
			continue
		}
		if _, dup := res.IDs[tf.ID]; dup {
			im.logger.Printf("Warning: skipping duplicate task %d", tf.ID)
			res.TasksFailed++
			continue
		}

		created, err := im.svc.CreateTask(ctx, tf.Input())
		if err != nil {
			if fatal(err) {
				return res, fmt.Errorf("failed to import task %d: %w", tf.ID, err)
			}
			im.logger.Printf("Warning: skipping task %d: %v", tf.ID, err)
			res.TasksFailed++
			continue
		}
		res.IDs[tf.ID] = created.ID
		res.TasksCreated++
	}

	for _, dep := range b.Dependencies {
		from, okFrom := res.IDs[dep.TaskID]
		to, okTo := res.IDs[dep.DependsOnID]
		if !okFrom || !okTo {
			im.logger.Printf("Warning: skipping dependency %d -> %d: endpoint not imported", dep.TaskID, dep.DependsOnID)
			res.DepsFailed++
			continue
		}

		added, err := im.svc.AddDependency(ctx, from, to)
		switch {
		case err == nil && added:
			res.DepsAdded++
		case err == nil:
			res.DepsExisting++
		case errors.Is(err, types.ErrCircularDependency):
			im.logger.Printf("Warning: rejected dependency %d -> %d: %v", dep.TaskID, dep.DependsOnID, err)
			res.DepsRejected++
		case fatal(err):
			return res, fmt.Errorf("failed to import dependency %d -> %d: %w", dep.TaskID, dep.DependsOnID, err)
		default:
			im.logger.Printf("Warning: skipping dependency %d -> %d: %v", dep.TaskID, dep.DependsOnID, err)
			res.DepsFailed++
		}
	}

	res.Duration = time.Since(start)
	im.logger.Printf("Import complete: %s", res)
	return res, nil
}

// ImportPath imports a bundle file or a tasks/ + deps/ directory.
func (im *Importer) ImportPath(ctx context.Context, path string) (*Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	var b *Bundle
	if info.IsDir() {
		var unreadable int
		b, unreadable, err = ReadDir(path, im.logger)
		if err != nil {
			return nil, err
		}
		res, err := im.Import(ctx, b)
		if res != nil {
			res.FilesSkipped = unreadable
		}
		return res, err
	}

	b, err = ReadBundleFile(path)
	if err != nil {
		return nil, err
	}
	return im.Import(ctx, b)
}

func fatal(err error) bool {
	return errors.Is(err, types.ErrStoreFailure) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Export writes a consistent snapshot of the service to path. A path ending
// in .json, .yaml or .yml gets a bundle; anything else is treated as a
// directory.
func Export(ctx context.Context, svc *service.Service, path string) (*Bundle, error) {
	snap, err := svc.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot: %w", err)
	}
	b := FromSnapshot(snap)

	if IsBundlePath(path) {
		return b, WriteBundleFile(path, b)
	}
	return b, WriteDir(path, b)
}

// IsBundlePath reports whether path names a single-file bundle.
func IsBundlePath(path string) bool {
	switch lowerExt(path) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}

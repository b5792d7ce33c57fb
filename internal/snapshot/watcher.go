package snapshot

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Suffixes appended to processed inbox files.
const (
	DoneSuffix   = ".done"
	FailedSuffix = ".failed"
)

// WatcherConfig configures an InboxWatcher.
type WatcherConfig struct {
	// Dir is the inbox directory. It is created if missing.
	Dir string

	// Debounce is how long a file must stay unchanged before it is imported.
	// This lets writers finish before the import starts.
	Debounce time.Duration

	// Timeout bounds a single import (default 1m).
	Timeout time.Duration

	// OnImport, if set, is called after each file is processed.
	OnImport func(path string, res *Result, err error)

	Logger *log.Logger
}

// InboxWatcher imports bundles dropped into a directory. Each processed
// file is renamed with DoneSuffix, or FailedSuffix when the import could
// not run or skipped records.
type InboxWatcher struct {
	importer *Importer
	config   *WatcherConfig
	logger   *log.Logger

	watcher   *fsnotify.Watcher
	pending   map[string]time.Time // path -> last event
	pendingMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewInboxWatcher creates a watcher. Call Start to begin watching.
func NewInboxWatcher(importer *Importer, config *WatcherConfig) (*InboxWatcher, error) {
	if importer == nil {
		return nil, fmt.Errorf("importer cannot be nil")
	}
	if config == nil || config.Dir == "" {
		return nil, fmt.Errorf("inbox dir cannot be empty")
	}
	if config.Debounce <= 0 {
		config.Debounce = 500 * time.Millisecond
	}
	if config.Timeout <= 0 {
		config.Timeout = time.Minute
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[inbox] ", log.LstdFlags)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &InboxWatcher{
		importer: importer,
		config:   config,
		logger:   config.Logger,
		watcher:  watcher,
		pending:  make(map[string]time.Time),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start watches the inbox. Bundles already present are queued too.
func (w *InboxWatcher) Start() error {
	if err := os.MkdirAll(w.config.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create inbox %s: %w", w.config.Dir, err)
	}
	if err := w.watcher.Add(w.config.Dir); err != nil {
		return fmt.Errorf("failed to watch inbox %s: %w", w.config.Dir, err)
	}

	entries, err := os.ReadDir(w.config.Dir)
	if err != nil {
		return fmt.Errorf("failed to read inbox %s: %w", w.config.Dir, err)
	}
	for _, entry := range entries {
		if !entry.IsDir() && IsBundlePath(entry.Name()) {
			w.queue(filepath.Join(w.config.Dir, entry.Name()))
		}
	}

	w.logger.Printf("Watching inbox: %s", w.config.Dir)

	w.wg.Add(2)
	go w.watchEvents()
	go w.processQueue()
	return nil
}

// Stop ends watching and waits for an in-flight import to finish.
func (w *InboxWatcher) Stop() error {
	w.cancel()
	err := w.watcher.Close()
	w.wg.Wait()
	if err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

func (w *InboxWatcher) watchEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !IsBundlePath(event.Name) {
				continue
			}
			w.queue(event.Name)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Printf("Watcher error: %v", err)
		}
	}
}

func (w *InboxWatcher) queue(path string) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()
	w.pending[path] = time.Now()
}

func (w *InboxWatcher) processQueue() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.Debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			for _, path := range w.settled() {
				w.importFile(path)
			}
		}
	}
}

// settled removes and returns the paths quiet for at least the debounce
// interval.
func (w *InboxWatcher) settled() []string {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	now := time.Now()
	var ready []string
	for path, last := range w.pending {
		if now.Sub(last) < w.config.Debounce {
			continue
		}
		ready = append(ready, path)
		delete(w.pending, path)
	}
	return ready
}

func (w *InboxWatcher) importFile(path string) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return
	}

	ctx, cancel := context.WithTimeout(w.ctx, w.config.Timeout)
	defer cancel()

	w.logger.Printf("Importing %s", filepath.Base(path))
	res, err := w.importer.ImportPath(ctx, path)

	suffix := DoneSuffix
	switch {
	case err != nil:
		w.logger.Printf("Import of %s failed: %v", filepath.Base(path), err)
		suffix = FailedSuffix
	case res.Failed() > 0:
		suffix = FailedSuffix
	}
	if rerr := os.Rename(path, path+suffix); rerr != nil {
		w.logger.Printf("Warning: failed to rename %s: %v", filepath.Base(path), rerr)
	}

	if w.config.OnImport != nil {
		w.config.OnImport(path, res, err)
	}
}

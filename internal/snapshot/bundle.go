package snapshot

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/khoitran3172/todo-list/internal/service"
)

// BundleVersion is written into every bundle.
const BundleVersion = 1

// Format selects the bundle encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFor picks the format from a file extension. Anything other than
// .yaml or .yml is JSON.
func FormatFor(path string) Format {
	switch lowerExt(path) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

func lowerExt(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

// Bundle is a whole graph in one document.
type Bundle struct {
	Version      int        `json:"version" yaml:"version"`
	ExportedAt   time.Time  `json:"exported_at" yaml:"exported_at"`
	Tasks        []TaskFile `json:"tasks" yaml:"tasks"`
	Dependencies []DepFile  `json:"dependencies" yaml:"dependencies"`
}

// FromSnapshot converts a service snapshot.
func FromSnapshot(snap *service.Snapshot) *Bundle {
	b := &Bundle{
		Version:      BundleVersion,
		ExportedAt:   snap.TakenAt.UTC(),
		Tasks:        make([]TaskFile, 0, len(snap.Tasks)),
		Dependencies: make([]DepFile, 0, len(snap.Edges)),
	}
	for _, task := range snap.Tasks {
		b.Tasks = append(b.Tasks, FromTask(task))
	}
	for _, edge := range snap.Edges {
		b.Dependencies = append(b.Dependencies, FromDependency(edge))
	}
	return b
}

// Encode writes the bundle to w.
func (b *Bundle) Encode(w io.Writer, format Format) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(b); err != nil {
			return fmt.Errorf("failed to encode yaml bundle: %w", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(b); err != nil {
			return fmt.Errorf("failed to encode json bundle: %w", err)
		}
		return nil
	}
}

// DecodeBundle reads a bundle from r.
func DecodeBundle(r io.Reader, format Format) (*Bundle, error) {
	var b Bundle
	switch format {
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&b); err != nil {
			return nil, fmt.Errorf("failed to parse yaml bundle: %w", err)
		}
	default:
		if err := json.NewDecoder(r).Decode(&b); err != nil {
			return nil, fmt.Errorf("failed to parse json bundle: %w", err)
		}
	}
	if b.Version > BundleVersion {
		return nil, fmt.Errorf("unsupported bundle version %d (max %d)", b.Version, BundleVersion)
	}
	return &b, nil
}

// WriteBundleFile writes the bundle to path, choosing the format from the
// extension.
func WriteBundleFile(path string, b *Bundle) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create bundle: %w", err)
	}
	if err := b.Encode(f, FormatFor(path)); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write bundle: %w", err)
	}
	return nil
}

// ReadBundleFile reads a bundle from path, choosing the format from the
// extension.
func ReadBundleFile(path string) (*Bundle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open bundle: %w", err)
	}
	defer f.Close()
	return DecodeBundle(f, FormatFor(path))
}

// WriteDir writes the bundle as tasks/ and deps/ under dir.
func WriteDir(dir string, b *Bundle) error {
	tasksDir := filepath.Join(dir, "tasks")
	depsDir := filepath.Join(dir, "deps")
	for _, d := range []string{tasksDir, depsDir} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", d, err)
		}
	}

	for i := range b.Tasks {
		if err := WriteTaskFile(tasksDir, &b.Tasks[i]); err != nil {
			return err
		}
	}
	for i := range b.Dependencies {
		if err := WriteDepFile(depsDir, &b.Dependencies[i]); err != nil {
			return err
		}
	}
	return nil
}

// ReadDir loads tasks/ and deps/ under dir into a bundle. Unreadable or
// invalid files are logged and counted rather than failing the read.
func ReadDir(dir string, logger *log.Logger) (*Bundle, int, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	b := &Bundle{Version: BundleVersion, Tasks: []TaskFile{}, Dependencies: []DepFile{}}
	failed := 0

	taskPaths, err := listJSON(filepath.Join(dir, "tasks"))
	if err != nil {
		return nil, 0, err
	}
	for _, path := range taskPaths {
		task, err := ReadTaskFile(path)
		if err != nil {
			logger.Printf("Warning: skipping %s: %v", filepath.Base(path), err)
			failed++
			continue
		}
		b.Tasks = append(b.Tasks, *task)
	}

	depPaths, err := listJSON(filepath.Join(dir, "deps"))
	if err != nil {
		return nil, 0, err
	}
	for _, path := range depPaths {
		dep, err := ReadDepFile(path)
		if err != nil {
			logger.Printf("Warning: skipping %s: %v", filepath.Base(path), err)
			failed++
			continue
		}
		b.Dependencies = append(b.Dependencies, *dep)
	}

	// File names sort lexically; restore numeric order.
	sort.Slice(b.Tasks, func(i, j int) bool { return b.Tasks[i].ID < b.Tasks[j].ID })
	sort.SliceStable(b.Dependencies, func(i, j int) bool {
		return b.Dependencies[i].TaskID < b.Dependencies[j].TaskID
	})
	return b, failed, nil
}

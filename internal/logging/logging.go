// Package logging builds the per-component loggers. Every component gets a
// *log.Logger with a bracketed prefix; when a log file is configured the
// output also goes to a size-rotated file.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/khoitran3172/todo-list/internal/config"
)

// Factory hands out loggers sharing one output.
type Factory struct {
	out  io.Writer
	file *lumberjack.Logger
}

// New creates a factory writing to stderr and, if cfg.File is set, to a
// rotating log file.
func New(cfg config.LogConfig) *Factory {
	return newFactory(os.Stderr, cfg)
}

func newFactory(console io.Writer, cfg config.LogConfig) *Factory {
	f := &Factory{out: console}
	if cfg.File == "" {
		return f
	}
	f.file = &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	f.out = io.MultiWriter(console, f.file)
	return f
}

// Discard returns a factory whose loggers write nowhere.
func Discard() *Factory {
	return &Factory{out: io.Discard}
}

// Logger returns a logger for component, prefixed "[component] ".
func (f *Factory) Logger(component string) *log.Logger {
	return log.New(f.out, fmt.Sprintf("[%s] ", component), log.LstdFlags)
}

// Writer returns the shared output.
func (f *Factory) Writer() io.Writer {
	return f.out
}

// Rotate starts a new log file. It is a no-op without a log file.
func (f *Factory) Rotate() error {
	if f.file == nil {
		return nil
	}
	if err := f.file.Rotate(); err != nil {
		return fmt.Errorf("failed to rotate log: %w", err)
	}
	return nil
}

// Close flushes and closes the log file.
func (f *Factory) Close() error {
	if f.file == nil {
		return nil
	}
	return f.file.Close()
}

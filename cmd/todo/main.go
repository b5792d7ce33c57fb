// Command todo manages tasks and their dependency graph, either directly
// against the database or as a long-running HTTP server.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/khoitran3172/todo-list/internal/cache"
	"github.com/khoitran3172/todo-list/internal/config"
	"github.com/khoitran3172/todo-list/internal/logging"
	"github.com/khoitran3172/todo-list/internal/service"
	"github.com/khoitran3172/todo-list/internal/store"
	"github.com/khoitran3172/todo-list/internal/store/memory"
	"github.com/khoitran3172/todo-list/internal/store/sqlite"
)

var rootCmd = &cobra.Command{
	Use:   "todo",
	Short: "Task list with dependency tracking",
	Long: `todo keeps tasks and the dependencies between them.

A task may depend on any number of other tasks. Dependencies that would
create a cycle are rejected, so the graph always stays acyclic.

Configuration is read from todo.toml in the working directory (or --config),
then TODO_* environment variables, then flags.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default ./todo.toml)")
	rootCmd.PersistentFlags().String("db", "", "SQLite database path (overrides database.path)")
	rootCmd.PersistentFlags().Bool("memory", false, "use an in-memory store instead of SQLite")

	rootCmd.AddGroup(
		&cobra.Group{ID: "tasks", Title: "Tasks and dependencies:"},
		&cobra.Group{ID: "data", Title: "Import and export:"},
		&cobra.Group{ID: "advanced", Title: "Server and maintenance:"},
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// fatalf prints an error and exits.
func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

// loadConfig merges the config file, environment and flags.
func loadConfig(cmd *cobra.Command) (*config.Config, string) {
	path, _ := cmd.Flags().GetString("config")
	loader := config.NewLoader(path)
	if flag := cmd.Flags().Lookup("db"); flag != nil && flag.Changed {
		if err := loader.BindFlag("database.path", flag); err != nil {
			fatalf("%v", err)
		}
	}
	cfg, err := loader.Load()
	if err != nil {
		fatalf("%v", err)
	}
	return cfg, loader.File()
}

// app bundles what every command needs.
type app struct {
	cfg  *config.Config
	logs *logging.Factory
	db   *sqlite.DB // nil with --memory
	svc  *service.Service
}

// openApp loads config, opens the store and builds the service.
func openApp(cmd *cobra.Command, opts ...service.Option) *app {
	cfg, _ := loadConfig(cmd)
	return openAppWith(cmd, &app{cfg: cfg, logs: logging.New(cfg.Log)}, opts...)
}

// openAppWith opens the store for a configured app. Extra options are
// applied after the defaults.
func openAppWith(cmd *cobra.Command, a *app, opts ...service.Option) *app {
	cfg := a.cfg
	var st store.Store
	if mem, _ := cmd.Flags().GetBool("memory"); mem {
		st = memory.New()
	} else {
		db, err := sqlite.Open(cfg.Database.Path)
		if err != nil {
			fatalf("opening database: %v", err)
		}
		if err := db.InitSchema(ctxOf(cmd)); err != nil {
			_ = db.Close()
			fatalf("initializing schema: %v", err)
		}
		a.db = db
		st = db
	}

	base := []service.Option{
		service.WithLogger(a.logger("service")),
		service.WithCache(cache.New(cache.Config{Enabled: cfg.Cache.Enabled, TTL: cfg.Cache.TTL})),
	}
	a.svc = service.New(st, append(base, opts...)...)
	return a
}

func (a *app) logger(component string) *log.Logger {
	return a.logs.Logger(component)
}

func (a *app) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
		}
	}
	_ = a.logs.Close()
}

func ctxOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/khoitran3172/todo-list/internal/api"
	"github.com/khoitran3172/todo-list/internal/cache"
	"github.com/khoitran3172/todo-list/internal/dashboard"
	"github.com/khoitran3172/todo-list/internal/logging"
	"github.com/khoitran3172/todo-list/internal/reminder"
	"github.com/khoitran3172/todo-list/internal/service"
	"github.com/khoitran3172/todo-list/internal/snapshot"
	"github.com/khoitran3172/todo-list/internal/ui"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	GroupID: "advanced",
	Short:   "Run the HTTP API with reminders, dashboard and inbox",
	Long: `Run the task HTTP API in the foreground.

Depending on configuration the server also:
  - runs the upcoming and overdue reminder checks on their cron schedules
  - serves the WebSocket dashboard on dashboard.port
  - imports bundles dropped into inbox.dir

Endpoints:
  /api/tasks, /api/tasks/{id}, /api/tasks/{id}/dependencies
  /health, /metrics`,
	Run: func(cmd *cobra.Command, args []string) {
		addr, _ := cmd.Flags().GetString("addr")
		withDashboard, _ := cmd.Flags().GetBool("dashboard")

		cfg, _ := loadConfig(cmd)
		if addr != "" {
			cfg.Server.Addr = addr
		}
		if withDashboard {
			cfg.Dashboard.Enabled = true
		}

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		// The dashboard handler needs the service for stats and the service
		// needs the handler as its notifier.
		var (
			svc     *service.Service
			board   *dashboard.Server
			handler *dashboard.Handler
			opts    []service.Option
		)
		a := &app{cfg: cfg, logs: logging.New(cfg.Log)}
		if cfg.Dashboard.Enabled {
			board = dashboard.NewServer(&dashboard.Config{Port: cfg.Dashboard.Port, Logger: a.logger("dashboard")})
			handler = dashboard.NewHandler(board, func(ctx context.Context) (*service.Stats, error) {
				return svc.Stats(ctx)
			}, a.logger("dashboard"))
			opts = append(opts, service.WithNotifier(handler))
		}
		opts = append(opts, service.WithCache(cache.New(cache.Config{
			Enabled:    cfg.Cache.Enabled,
			TTL:        cfg.Cache.TTL,
			Registerer: reg,
		})))
		a = openAppWith(cmd, a, opts...)
		defer a.Close()
		svc = a.svc

		server := api.NewServer(svc, &api.Config{
			Addr:         cfg.Server.Addr,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			Gatherer:     reg,
			Logger:       a.logger("api"),
		})
		reg.MustRegister(server.Collectors()...)

		if board != nil {
			if err := board.Start(); err != nil {
				fatalf("failed to start dashboard: %v", err)
			}
			defer board.Stop()
		}

		var scheduler *reminder.Scheduler
		if cfg.Reminder.Enabled {
			sinks := []reminder.Sink{reminder.LogSink{Logger: a.logger("reminder")}}
			if handler != nil {
				sinks = append(sinks, handler)
			}
			var err error
			scheduler, err = reminder.New(svc, &reminder.Config{
				UpcomingSpec: cfg.Reminder.UpcomingSpec,
				OverdueSpec:  cfg.Reminder.OverdueSpec,
				Window:       cfg.Reminder.Window,
				Logger:       a.logger("reminder"),
			}, sinks...)
			if err != nil {
				fatalf("%v", err)
			}
			scheduler.Start()
		}

		var inbox *snapshot.InboxWatcher
		if cfg.Inbox.Dir != "" {
			var err error
			inbox, err = snapshot.NewInboxWatcher(snapshot.NewImporter(svc, a.logger("import")), &snapshot.WatcherConfig{
				Dir:      cfg.Inbox.Dir,
				Debounce: cfg.Inbox.Debounce,
				Logger:   a.logger("inbox"),
			})
			if err != nil {
				fatalf("%v", err)
			}
			if err := inbox.Start(); err != nil {
				fatalf("%v", err)
			}
		}

		if err := server.Start(); err != nil {
			fatalf("failed to start server: %v", err)
		}

		fmt.Printf("%s Serving on http://%s\n", ui.RenderAccent("🚀"), server.GetAddr())
		fmt.Printf("   Database: %s\n", storeName(a))
		fmt.Printf("   Cache: %s\n", enabled(cfg.Cache.Enabled, cfg.Cache.TTL.String()))
		fmt.Printf("   Reminders: %s\n", enabled(cfg.Reminder.Enabled, cfg.Reminder.UpcomingSpec+" / "+cfg.Reminder.OverdueSpec))
		if board != nil {
			fmt.Printf("   Dashboard: ws://%s/ws\n", board.GetAddr())
		}
		if inbox != nil {
			fmt.Printf("   Inbox: %s\n", cfg.Inbox.Dir)
		}
		fmt.Println("\nPress Ctrl+C to stop...")

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		<-ctx.Done()

		fmt.Println("\nShutting down...")
		if err := server.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "Error during shutdown: %v\n", err)
		}
		if inbox != nil {
			if err := inbox.Stop(); err != nil {
				fmt.Fprintf(os.Stderr, "Error stopping inbox: %v\n", err)
			}
		}
		if scheduler != nil {
			stopCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
			scheduler.Stop(stopCtx)
			stop()
		}
		fmt.Println("Server stopped")
	},
}

func storeName(a *app) string {
	if a.db == nil {
		return "in-memory"
	}
	return a.db.Path()
}

func enabled(on bool, detail string) string {
	if !on {
		return ui.RenderMuted("disabled")
	}
	return detail
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	serveCmd.Flags().Bool("dashboard", false, "enable the WebSocket dashboard")
	rootCmd.AddCommand(serveCmd)
}

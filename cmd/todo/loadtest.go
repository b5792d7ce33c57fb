package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/khoitran3172/todo-list/internal/loadtest"
	"github.com/khoitran3172/todo-list/internal/ui"
)

var loadtestCmd = &cobra.Command{
	Use:     "loadtest",
	GroupID: "advanced",
	Short:   "Hammer the graph with concurrent writers and readers",
	Long: `Create tasks, then run concurrent writers adding random dependencies
while readers list dependencies. Afterwards the graph is audited for cycles.

Runs against an in-memory store unless --db is given, so it never touches
real data by accident.

Example:
  todo loadtest --tasks 500 --writers 16 --edges 200`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadtest.DefaultConfig()
		flags := cmd.Flags()
		cfg.Tasks, _ = flags.GetInt("tasks")
		cfg.Writers, _ = flags.GetInt("writers")
		cfg.EdgesPerWriter, _ = flags.GetInt("edges")
		cfg.Readers, _ = flags.GetInt("readers")
		cfg.ReadsPerReader, _ = flags.GetInt("reads")
		cfg.Seed, _ = flags.GetInt64("seed")

		if !flags.Changed("db") {
			_ = flags.Set("memory", "true")
		}

		a := openApp(cmd)
		defer a.Close()
		ctx := ctxOf(cmd)

		fmt.Printf("%s Creating %d tasks in %s...\n", ui.RenderAccent("🔄"), cfg.Tasks, storeName(a))
		g, err := loadtest.Populate(ctx, a.svc, cfg.Tasks)
		if err != nil {
			fatalf("%v", err)
		}

		fmt.Printf("%s Running %d writers x %d edges, %d readers x %d reads...\n",
			ui.RenderAccent("🔄"), cfg.Writers, cfg.EdgesPerWriter, cfg.Readers, cfg.ReadsPerReader)
		report, err := g.Run(ctx, cfg)
		if err != nil {
			fatalf("%v", err)
		}

		fmt.Printf("\nCompleted in %v\n", report.Duration)
		fmt.Printf("Edges: %d added, %d existing, %d rejected as cycles\n\n", report.Added, report.Existing, report.Rejected)
		report.Writes.Write(os.Stdout, "AddDependency latency")
		fmt.Println()
		report.Reads.Write(os.Stdout, "ListDependencies latency")
		fmt.Println()

		if err := report.Verify(); err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n", ui.RenderFail("✗"), err)
			os.Exit(1)
		}
		fmt.Printf("%s Graph is still acyclic\n", ui.RenderPass("✓"))
	},
}

func init() {
	def := loadtest.DefaultConfig()
	loadtestCmd.Flags().Int("tasks", def.Tasks, "tasks to create")
	loadtestCmd.Flags().Int("writers", def.Writers, "concurrent writers")
	loadtestCmd.Flags().Int("edges", def.EdgesPerWriter, "edge attempts per writer")
	loadtestCmd.Flags().Int("readers", def.Readers, "concurrent readers")
	loadtestCmd.Flags().Int("reads", def.ReadsPerReader, "reads per reader")
	loadtestCmd.Flags().Int64("seed", def.Seed, "random seed")
	rootCmd.AddCommand(loadtestCmd)
}

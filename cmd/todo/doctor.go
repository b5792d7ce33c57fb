package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/khoitran3172/todo-list/internal/ui"
)

var doctorCmd = &cobra.Command{
	Use:     "doctor",
	GroupID: "advanced",
	Short:   "Check the stored graph for cycles and dangling edges",
	Long: `Audit the stored dependency graph.

The graph should never contain a cycle. A cycle here means the database was
edited outside this tool; the offending path is printed so it can be fixed
with 'todo dep remove'.`,
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp(cmd)
		defer a.Close()
		ctx := ctxOf(cmd)

		stats, err := a.svc.Stats(ctx)
		if err != nil {
			fatalf("reading stats: %v", err)
		}
		snap, err := a.svc.Snapshot(ctx)
		if err != nil {
			fatalf("reading graph: %v", err)
		}

		fmt.Printf("\n%s Graph Health\n\n", ui.RenderAccent("📊"))
		fmt.Printf("Database: %s\n", storeName(a))
		fmt.Printf("Tasks: %d (todo %d, in progress %d, completed %d)\n",
			stats.Tasks, stats.Todo, stats.InProgress, stats.Completed)
		fmt.Printf("Dependencies: %d\n\n", stats.Dependencies)

		problems := 0

		known := make(map[int64]bool, len(snap.Tasks))
		for _, t := range snap.Tasks {
			known[t.ID] = true
		}
		for _, e := range snap.Edges {
			if !known[e.TaskID] || !known[e.DependsOnID] {
				fmt.Printf("%s Dangling dependency %s\n", ui.RenderWarn("⚠"), e)
				problems++
			}
		}

		cycle, err := a.svc.Engine().FindCycle(ctx)
		if err != nil {
			fatalf("checking for cycles: %v", err)
		}
		if cycle != nil {
			fmt.Printf("%s Cycle found: %s\n", ui.RenderFail("✗"), formatPath(cycle))
			problems++
		} else {
			fmt.Printf("%s No cycles\n", ui.RenderPass("✓"))
		}

		if problems > 0 {
			fmt.Println()
			os.Exit(1)
		}
		fmt.Printf("%s Graph is healthy\n\n", ui.RenderPass("✓"))
	},
}

func formatPath(ids []int64) string {
	s := ""
	for i, id := range ids {
		if i > 0 {
			s += " -> "
		}
		s += fmt.Sprint(id)
	}
	return s
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/khoitran3172/todo-list/internal/types"
	"github.com/khoitran3172/todo-list/internal/ui"
)

var depCmd = &cobra.Command{
	Use:     "dep",
	GroupID: "tasks",
	Short:   "Manage dependencies between tasks",
}

var depAddCmd = &cobra.Command{
	Use:   "add <task-id> <depends-on-id>",
	Short: "Make a task depend on another",
	Long: `Make a task depend on another.

The edge is rejected if it would create a cycle, for example when the
dependency already depends on the task directly or through other tasks.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		taskID, depID := parseID(args[0]), parseID(args[1])

		a := openApp(cmd)
		defer a.Close()

		added, err := a.svc.AddDependency(ctxOf(cmd), taskID, depID)
		switch {
		case errors.Is(err, types.ErrSelfDependency):
			fatalf("task %d cannot depend on itself", taskID)
		case errors.Is(err, types.ErrCircularDependency):
			fmt.Fprintf(os.Stderr, "%s %v\n", ui.RenderFail("✗"), err)
			os.Exit(1)
		case err != nil:
			fatalf("adding dependency: %v", err)
		}

		if added {
			fmt.Printf("%s Task %d now depends on %d\n", ui.RenderPass("✓"), taskID, depID)
		} else {
			fmt.Printf("%s Task %d already depends on %d\n", ui.RenderWarn("⚠"), taskID, depID)
		}
	},
}

var depRemoveCmd = &cobra.Command{
	Use:   "remove <task-id> <depends-on-id>",
	Short: "Remove a dependency",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		taskID, depID := parseID(args[0]), parseID(args[1])

		a := openApp(cmd)
		defer a.Close()

		removed, err := a.svc.RemoveDependency(ctxOf(cmd), taskID, depID)
		if err != nil {
			fatalf("removing dependency: %v", err)
		}
		if !removed {
			fmt.Printf("%s Task %d did not depend on %d\n", ui.RenderWarn("⚠"), taskID, depID)
			return
		}
		fmt.Printf("%s Removed dependency %d -> %d\n", ui.RenderPass("✓"), taskID, depID)
	},
}

var depListCmd = &cobra.Command{
	Use:   "list <task-id>",
	Short: "List direct and indirect dependencies of a task",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		taskID := parseID(args[0])

		a := openApp(cmd)
		defer a.Close()

		set, err := a.svc.ListDependencies(ctxOf(cmd), taskID)
		if err != nil {
			if errors.Is(err, types.ErrNotFound) {
				fatalf("task %d not found", taskID)
			}
			fatalf("listing dependencies: %v", err)
		}
		if asJSON(cmd) {
			writeJSON(os.Stdout, set)
			return
		}

		fmt.Printf("\n%s Dependencies of task %d\n\n", ui.RenderAccent("🔗"), taskID)
		if len(set.Direct) == 0 {
			fmt.Println("None")
			return
		}
		fmt.Println(ui.RenderBold("Direct:"))
		printTasks(os.Stdout, set.Direct)
		if len(set.Indirect) > 0 {
			fmt.Printf("\n%s\n", ui.RenderBold("Indirect:"))
			printTasks(os.Stdout, set.Indirect)
		}
		fmt.Println()
	},
}

func init() {
	depListCmd.Flags().Bool("json", false, "output JSON")

	depCmd.AddCommand(depAddCmd, depRemoveCmd, depListCmd)
	rootCmd.AddCommand(depCmd)
}

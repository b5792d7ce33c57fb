package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/khoitran3172/todo-list/internal/types"
	"github.com/khoitran3172/todo-list/internal/ui"
)

var taskCmd = &cobra.Command{
	Use:     "task",
	GroupID: "tasks",
	Short:   "Create, list, show, update and delete tasks",
}

var taskCreateCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create a task",
	Long: `Create a task. A due date is required.

Examples:
  todo task create "Write report" --due "friday 5pm" --priority high
  todo task create "Renew passport" --due 2026-09-01`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		in := types.TaskInput{Title: args[0]}
		in.Description, _ = cmd.Flags().GetString("description")
		priority, _ := cmd.Flags().GetString("priority")
		status, _ := cmd.Flags().GetString("status")
		in.Priority = types.Priority(priority)
		in.Status = types.Status(status)

		dueStr, _ := cmd.Flags().GetString("due")
		due, err := parseDue(dueStr, time.Now())
		if err != nil {
			fatalf("%v", err)
		}
		in.DueDate = due

		a := openApp(cmd)
		defer a.Close()

		task, err := a.svc.CreateTask(ctxOf(cmd), in)
		if err != nil {
			fatalf("creating task: %v", err)
		}
		if asJSON(cmd) {
			writeJSON(os.Stdout, task)
			return
		}
		fmt.Printf("%s Created task %d: %s (due %s)\n", ui.RenderPass("✓"), task.ID, task.Title, formatDue(task.DueDate))
	},
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	Run: func(cmd *cobra.Command, args []string) {
		page, _ := cmd.Flags().GetInt("page")
		limit, _ := cmd.Flags().GetInt("limit")
		status, _ := cmd.Flags().GetString("status")
		priority, _ := cmd.Flags().GetString("priority")
		filter := types.TaskFilter{Status: types.Status(status), Priority: types.Priority(priority)}

		a := openApp(cmd)
		defer a.Close()

		result, err := a.svc.ListTasks(ctxOf(cmd), page, limit, filter)
		if err != nil {
			fatalf("listing tasks: %v", err)
		}
		if asJSON(cmd) {
			writeJSON(os.Stdout, result)
			return
		}
		if len(result.Items) == 0 {
			fmt.Println("No tasks found")
			return
		}
		printTasks(os.Stdout, result.Items)
		fmt.Printf("\n%s\n", ui.RenderMuted(fmt.Sprintf("%d of %d tasks", len(result.Items), result.Total)))
	},
}

var taskShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a task and its direct dependencies",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id := parseID(args[0])

		a := openApp(cmd)
		defer a.Close()

		task, err := a.svc.GetTask(ctxOf(cmd), id)
		if err != nil {
			fatalf("getting task: %v", err)
		}
		if task == nil {
			fatalf("task %d not found", id)
		}
		if asJSON(cmd) {
			writeJSON(os.Stdout, task)
			return
		}

		fmt.Printf("\n%s %s\n\n", ui.RenderAccent(fmt.Sprintf("#%d", task.ID)), ui.RenderBold(task.Title))
		if task.Description != "" {
			fmt.Printf("%s\n\n", task.Description)
		}
		fmt.Printf("Status:   %s\n", ui.RenderStatus(string(task.Status)))
		fmt.Printf("Priority: %s\n", ui.RenderPriority(string(task.Priority)))
		fmt.Printf("Due:      %s\n", formatDue(task.DueDate))
		if len(task.Dependencies) > 0 {
			fmt.Printf("Depends on: %v\n", task.Dependencies)
		}
		fmt.Printf("Created:  %s\n", task.CreatedAt.Local().Format("2006-01-02 15:04:05"))
		fmt.Printf("Updated:  %s\n", task.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
		fmt.Println()
	},
}

var taskUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update fields of a task",
	Long: `Update fields of a task. Only the flags given are changed.

Examples:
  todo task update 3 --status in_progress
  todo task update 3 --due "next monday" --priority low`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id := parseID(args[0])

		var patch types.TaskPatch
		flags := cmd.Flags()
		if flags.Changed("title") {
			v, _ := flags.GetString("title")
			patch.Title = &v
		}
		if flags.Changed("description") {
			v, _ := flags.GetString("description")
			patch.Description = &v
		}
		if flags.Changed("due") {
			v, _ := flags.GetString("due")
			due, err := parseDue(v, time.Now())
			if err != nil {
				fatalf("%v", err)
			}
			patch.DueDate = &due
		}
		if flags.Changed("priority") {
			v, _ := flags.GetString("priority")
			p := types.Priority(v)
			patch.Priority = &p
		}
		if flags.Changed("status") {
			v, _ := flags.GetString("status")
			s := types.Status(v)
			patch.Status = &s
		}
		if patch.IsEmpty() {
			fatalf("nothing to update (set at least one of --title, --description, --due, --priority, --status)")
		}

		a := openApp(cmd)
		defer a.Close()

		task, err := a.svc.UpdateTask(ctxOf(cmd), id, patch)
		if err != nil {
			if errors.Is(err, types.ErrNotFound) {
				fatalf("task %d not found", id)
			}
			fatalf("updating task: %v", err)
		}
		if asJSON(cmd) {
			writeJSON(os.Stdout, task)
			return
		}
		fmt.Printf("%s Updated task %d: %s [%s]\n", ui.RenderPass("✓"), task.ID, task.Title, ui.RenderStatus(string(task.Status)))
	},
}

var taskDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a task and every edge touching it",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id := parseID(args[0])

		a := openApp(cmd)
		defer a.Close()

		deleted, err := a.svc.DeleteTask(ctxOf(cmd), id)
		if err != nil {
			fatalf("deleting task: %v", err)
		}
		if !deleted {
			fatalf("task %d not found", id)
		}
		fmt.Printf("%s Deleted task %d\n", ui.RenderPass("✓"), id)
	},
}

func printTasks(w io.Writer, tasks []*types.Task) {
	width := ui.TermWidth(100) - 60
	if width < 20 {
		width = 20
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tPRIORITY\tDUE\tTITLE")
	for _, t := range tasks {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			t.ID, t.Status, t.Priority, formatDue(t.DueDate), ui.Truncate(t.Title, width))
	}
	_ = tw.Flush()
}

func formatDue(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04")
}

func parseID(s string) int64 {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		fatalf("invalid task id %q", s)
	}
	return id
}

func asJSON(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func writeJSON(w io.Writer, v interface{}) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fatalf("encoding output: %v", err)
	}
}

func init() {
	taskCmd.PersistentFlags().Bool("json", false, "output JSON")

	taskCreateCmd.Flags().String("due", "", "due date: RFC 3339, YYYY-MM-DD, or natural language")
	taskCreateCmd.Flags().StringP("description", "d", "", "task description")
	taskCreateCmd.Flags().StringP("priority", "p", "", "low, medium or high (default medium)")
	taskCreateCmd.Flags().String("status", "", "todo, in_progress or completed (default todo)")
	_ = taskCreateCmd.MarkFlagRequired("due")

	taskListCmd.Flags().Int("page", 1, "page number (1-based)")
	taskListCmd.Flags().Int("limit", 10, "tasks per page (max 100)")
	taskListCmd.Flags().String("status", "", "filter by status")
	taskListCmd.Flags().String("priority", "", "filter by priority")

	taskUpdateCmd.Flags().String("title", "", "new title")
	taskUpdateCmd.Flags().StringP("description", "d", "", "new description")
	taskUpdateCmd.Flags().String("due", "", "new due date")
	taskUpdateCmd.Flags().StringP("priority", "p", "", "new priority")
	taskUpdateCmd.Flags().String("status", "", "new status")

	taskCmd.AddCommand(taskCreateCmd, taskListCmd, taskShowCmd, taskUpdateCmd, taskDeleteCmd)
	rootCmd.AddCommand(taskCmd)
}

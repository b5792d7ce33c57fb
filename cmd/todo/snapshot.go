package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/khoitran3172/todo-list/internal/snapshot"
	"github.com/khoitran3172/todo-list/internal/ui"
)

var exportCmd = &cobra.Command{
	Use:     "export <path>",
	GroupID: "data",
	Short:   "Export all tasks and dependencies",
	Long: `Export every task and dependency.

A path ending in .json, .yaml or .yml is written as a single bundle. Any
other path is treated as a directory and receives one file per task in
tasks/ and one per dependency in deps/.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp(cmd)
		defer a.Close()

		start := time.Now()
		b, err := snapshot.Export(ctxOf(cmd), a.svc, args[0])
		if err != nil {
			fatalf("exporting: %v", err)
		}
		fmt.Printf("%s Exported in %v\n", ui.RenderPass("✓"), time.Since(start).Round(time.Millisecond))
		fmt.Printf("   Tasks: %d\n", len(b.Tasks))
		fmt.Printf("   Deps: %d\n", len(b.Dependencies))
		fmt.Printf("   Path: %s\n", args[0])
	},
}

var importCmd = &cobra.Command{
	Use:     "import <path>",
	GroupID: "data",
	Short:   "Import a bundle or export directory",
	Long: `Import tasks and dependencies from a bundle or an export directory.

Tasks get new IDs and dependencies are remapped to them. Every dependency is
checked for cycles again; rejected edges and unreadable files are reported
but do not stop the import.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp(cmd)
		defer a.Close()

		fmt.Printf("%s Importing %s...\n", ui.RenderAccent("🔄"), args[0])
		res, err := snapshot.NewImporter(a.svc, a.logger("import")).ImportPath(ctxOf(cmd), args[0])
		if err != nil {
			fatalf("importing: %v", err)
		}

		mark := ui.RenderPass("✓")
		if res.Failed() > 0 {
			mark = ui.RenderWarn("⚠")
		}
		fmt.Printf("%s Import complete in %v\n", mark, res.Duration.Round(time.Millisecond))
		fmt.Printf("   Tasks: %d created, %d failed\n", res.TasksCreated, res.TasksFailed)
		fmt.Printf("   Deps: %d added, %d existing, %d rejected (cycle), %d failed\n",
			res.DepsAdded, res.DepsExisting, res.DepsRejected, res.DepsFailed)
		if res.FilesSkipped > 0 {
			fmt.Printf("   Unreadable files: %d\n", res.FilesSkipped)
		}

		if strict, _ := cmd.Flags().GetBool("strict"); strict && res.Failed() > 0 {
			fmt.Fprintf(os.Stderr, "Error: %d records were not imported\n", res.Failed())
			os.Exit(1)
		}
	},
}

func init() {
	importCmd.Flags().Bool("strict", false, "exit non-zero if any record was not imported")
	rootCmd.AddCommand(exportCmd, importCmd)
}

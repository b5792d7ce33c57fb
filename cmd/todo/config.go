package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/khoitran3172/todo-list/internal/config"
	"github.com/khoitran3172/todo-list/internal/ui"
)

var configCmd = &cobra.Command{
	Use:     "config",
	GroupID: "advanced",
	Short:   "Create or inspect the configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a config file with the default settings",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := config.DefaultFile
		if len(args) == 1 {
			path = args[0]
		}
		force, _ := cmd.Flags().GetBool("force")

		if err := config.Default().WriteFile(path, force); err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("%s Wrote %s\n", ui.RenderPass("✓"), path)
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration after merging defaults, the config file,
TODO_* environment variables and flags.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, file := loadConfig(cmd)
		data, err := cfg.Encode()
		if err != nil {
			fatalf("%v", err)
		}
		if file == "" {
			file = ui.RenderMuted("none, using defaults")
		}
		fmt.Fprintf(os.Stderr, "# config file: %s\n", file)
		fmt.Print(string(data))
	},
}

func init() {
	configInitCmd.Flags().Bool("force", false, "overwrite an existing file")
	configCmd.AddCommand(configInitCmd, configShowCmd)
	rootCmd.AddCommand(configCmd)
}

// Command buildtrack drives the module-tracking/build-map subsystem from
// the command line: build, query, watch, and restore.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sunholo/buildtrack/internal/config"
)

var (
	Version = "dev"
	Commit  = "unknown"

	green = color.New(color.FgGreen).SprintFunc()
	red   = color.New(color.FgRed).SprintFunc()
	cyan  = color.New(color.FgCyan).SprintFunc()

	logger = log.New(os.Stderr, "", log.LstdFlags)
)

var configPath string
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:     "buildtrack",
	Short:   "Track module identity and build-map state for a dynamic-language analyzer",
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}
		loaded, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("%s: %w", red("config"), err)
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "buildtrack.yaml", "project configuration file")
	rootCmd.AddCommand(newBuildCmd())
	rootCmd.AddCommand(newQueryCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newRestoreCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, red("error:"), err)
		os.Exit(1)
	}
}

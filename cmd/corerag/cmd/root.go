// Package cmd provides the CLI commands for corerag.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ragforge/corerag/pkg/version"
)

var configPath string

// NewRootCmd builds the corerag root command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "corerag",
		Short:   "Local hybrid retrieval-augmented-generation core server",
		Version: version.Version,
	}
	cmd.SetVersionTemplate("corerag version {{.Version}}\n")
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML configuration file")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newSyncCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newReindexCmd())

	return cmd
}

// Execute runs the root command and exits the process on error.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Package cli wires the concierge commands: running the assistant pipeline,
// inspecting run state, listing the executor's tools, and resetting a
// workspace.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// Execute runs the root command against os.Args.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// NewRootCommand assembles the concierge command tree.
func NewRootCommand() *cobra.Command {
	var project string

	cmd := &cobra.Command{
		Use:           "concierge",
		Short:         "concierge is a personal assistant that plans and runs household tasks",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&project, "project", "p", ".", "project directory holding the .concierge workspace")

	cmd.AddCommand(newRunCommand(&project))
	cmd.AddCommand(newStatusCommand(&project))
	cmd.AddCommand(newToolsCommand(&project))
	cmd.AddCommand(newResetCommand(&project))
	return cmd
}

func resolveProjectDir(project string) (string, error) {
	if project == "" {
		project = "."
	}
	abs, err := filepath.Abs(project)
	if err != nil {
		return "", fmt.Errorf("cli: resolve project dir: %w", err)
	}
	return abs, nil
}

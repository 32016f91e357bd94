package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conciergehq/concierge/internal/config"
	"github.com/conciergehq/concierge/internal/workflow"
)

func newResetCommand(project *string) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear the current run so the next task starts fresh",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return fmt.Errorf("cli: reset removes the task, plan, transcript, and report; re-run with --force")
			}
			projectDir, err := resolveProjectDir(*project)
			if err != nil {
				return err
			}
			cfg, err := config.NewConfig(projectDir)
			if err != nil {
				return err
			}
			wf := workflow.New(cfg.ConciergeProjectDir)
			if err := wf.Reset(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Workspace reset.")
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "confirm the reset")
	return cmd
}

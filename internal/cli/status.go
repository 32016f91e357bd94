package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/conciergehq/concierge/internal/config"
	"github.com/conciergehq/concierge/internal/module"
	"github.com/conciergehq/concierge/internal/workflow"
	"github.com/conciergehq/concierge/internal/workflow/engine"
)

func newStatusCommand(project *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the state of the current run",
		RunE: func(cmd *cobra.Command, args []string) error {
			projectDir, err := resolveProjectDir(*project)
			if err != nil {
				return err
			}
			cfg, err := config.NewConfig(projectDir)
			if err != nil {
				return err
			}
			wf := workflow.New(cfg.ConciergeProjectDir)
			return printStatus(cmd.OutOrStdout(), wf)
		},
	}
}

func printStatus(out io.Writer, wf *workflow.Workflow) error {
	state, err := engine.NewRepository(wf).Load()
	if errors.Is(err, engine.ErrStateNotFound) {
		fmt.Fprintln(out, "No run found. Start one with: concierge run --task \"...\"")
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Pipeline: %s (%s)\n", state.Definition.Name, state.WorkflowID)
	fmt.Fprintf(out, "Status:   %s", state.Status)
	if state.StatusReason != "" {
		fmt.Fprintf(out, " (%s)", state.StatusReason)
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Updated:  %s\n\n", state.UpdatedAt.Format("2006-01-02 15:04:05"))

	for _, node := range state.Nodes {
		mark := statusMark(state, node.ID)
		fmt.Fprintf(out, "  %s %s", mark, node.Name)
		if run, ok := state.Runs[node.ID]; ok && run.Message != "" {
			fmt.Fprintf(out, " - %s", run.Message)
		}
		if node.Error != "" {
			fmt.Fprintf(out, " [%s]", node.Error)
		}
		fmt.Fprintln(out)
	}

	if wf.ExecutionComplete() {
		fmt.Fprintf(out, "\nShopping list: %s\n", wf.ShoppingListPath())
	}
	if wf.HasMarker(wf.OutputDir(), workflow.MarkerReportDone) {
		fmt.Fprintf(out, "Report: %s\n", wf.ReportPath())
	}
	return nil
}

func statusMark(state engine.State, id string) string {
	if run, ok := state.Runs[id]; ok {
		switch {
		case run.Error != "" || run.Status == module.StatusFailed:
			return "✗"
		case run.Status == module.StatusNeedsInput:
			return "?"
		default:
			return "✓"
		}
	}
	for _, runnable := range state.Runnable {
		if runnable == id {
			return "→"
		}
	}
	return "·"
}

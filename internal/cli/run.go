package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/conciergehq/concierge/internal/config"
	"github.com/conciergehq/concierge/internal/events"
	"github.com/conciergehq/concierge/internal/module"
	"github.com/conciergehq/concierge/internal/runner"
	"github.com/conciergehq/concierge/internal/tui"
	"github.com/conciergehq/concierge/internal/workflow/engine"
)

func newRunCommand(project *string) *cobra.Command {
	var task string
	var pipelineID string
	var zip string
	var headful bool
	var plain bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Plan and execute a task with the assistant pipeline",
		Long: "Run starts (or resumes) the assistant pipeline: the task brief is " +
			"captured, a plan is generated, the executor works the plan against " +
			"the tool registry, and a report lands in .concierge/output/.",
		RunE: func(cmd *cobra.Command, args []string) error {
			projectDir, err := resolveProjectDir(*project)
			if err != nil {
				return err
			}
			env, err := newEnvironment(cmd.Context(), projectDir, envOptions{
				chat:    true,
				browser: true,
				headful: headful,
				zip:     zip,
			})
			if err != nil {
				return err
			}
			defer env.Close()

			// Config edits mid-run (say, switching the executor model) apply
			// to the modules that have not started yet.
			watcher, err := env.cfg.Watch(func(*config.Config) {
				env.log.Scoped("config").Info("config.yaml reloaded")
			}, config.WithErrorHandler(func(err error) {
				env.log.Scoped("config").Warn("reload failed: %v", err)
			}))
			if err != nil {
				return err
			}
			defer watcher.Close()

			bridge := events.NewBridge(events.BridgeSettingsFromConfig(env.cfg),
				events.BridgeWithProcessor(env.router),
				events.BridgeWithLogger(env.log.Scoped("bridge")),
			)
			if err := bridge.Start(cmd.Context()); err != nil && !errors.Is(err, events.ErrBridgeDisabled) {
				return err
			}
			defer bridge.Shutdown(context.Background())

			def, err := env.pipelineDefinition(pipelineID)
			if err != nil {
				return err
			}
			run, err := runner.New(env.modules, engine.NewRepository(env.wf), def, runner.WithLogbook(env.log))
			if err != nil {
				return err
			}
			mctx := env.moduleContext(task)

			if plain {
				return runPlain(cmd.OutOrStdout(), run, mctx, env)
			}
			return tui.Run(tui.Options{
				Workflow: env.wf,
				Logbook:  env.log,
				Router:   env.router,
				Stages:   tui.StagesFromDefinition(def),
				Run: func() (engine.State, error) {
					return run.Run(mctx)
				},
			})
		},
	}

	cmd.Flags().StringVarP(&task, "task", "t", "", "task brief, e.g. \"plan meals for the week and check HEB stock\"")
	cmd.Flags().StringVar(&pipelineID, "pipeline", "", "pipeline ID (defaults to the configured pipeline)")
	cmd.Flags().StringVar(&zip, "zip", "", "zip code for the grocery store search (overrides config)")
	cmd.Flags().BoolVar(&headful, "headful", false, "run the browser headful with extended timeouts")
	cmd.Flags().BoolVar(&plain, "plain", false, "log progress to stdout instead of the terminal UI")
	return cmd
}

func runPlain(out io.Writer, run *runner.Runner, mctx *module.ModuleContext, env *environment) error {
	state, err := run.Run(mctx)
	switch {
	case errors.Is(err, runner.ErrNeedsInput):
		fmt.Fprintln(out, "The pipeline is waiting for a task brief. Re-run with --task \"...\".")
		return err
	case err != nil:
		return err
	}
	fmt.Fprintf(out, "Pipeline %s complete.\n", state.WorkflowID)
	fmt.Fprintf(out, "Report: %s\n", env.wf.ReportPath())
	fmt.Fprintf(out, "Shopping list: %s\n", env.wf.ShoppingListPath())
	return nil
}

// Package plan_execution drives the executor agent through the generated
// plan. The full conversation is persisted as TRANSCRIPT.md, a shopping list
// is distilled from it with the utility model, and a completion marker closes
// the phase. The executor owns the shared browser session, so this module
// runs exclusively.
package plan_execution

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/conciergehq/concierge/internal/agent"
	"github.com/conciergehq/concierge/internal/artifact"
	"github.com/conciergehq/concierge/internal/events"
	"github.com/conciergehq/concierge/internal/llm"
	"github.com/conciergehq/concierge/internal/module"
	"github.com/conciergehq/concierge/internal/modules/runtime"
	"github.com/conciergehq/concierge/internal/workflow"
)

const (
	moduleID      = "plan-execution"
	moduleVersion = "1.0.0"
)

const shoppingListMaxTokens = 2000

// shoppingListPrompt distills the run transcript into the final list.
const shoppingListPrompt = `You will receive the transcript of an assistant
run that researched recipes and checked grocery store availability. Extract
the final shopping list from the transcript: every ingredient that still
needs to be purchased, with quantities where the transcript states them.
Respond in markdown with a single "# Shopping List" heading followed by one
bullet per item. If the transcript contains no shopping list, respond with
"# Shopping List" followed by "No items required."

Transcript:
{text}`

const fallbackShoppingList = "# Shopping List\n\nNo items could be extracted from this run.\n"

// Option customizes the plan execution module.
type Option func(*PlanExecutionModule)

// WithClock overrides the timestamp source.
func WithClock(clock func() time.Time) Option {
	return func(m *PlanExecutionModule) {
		if clock != nil {
			m.now = clock
		}
	}
}

// WithRunner swaps the execution loop (used in tests).
func WithRunner(r executionRunner) Option {
	return func(m *PlanExecutionModule) {
		if r != nil {
			m.runner = r
		}
	}
}

type executionRunner interface {
	ExecutePlan(goCtx context.Context, ctx *module.ModuleContext, plan string) ([]llm.Message, error)
}

// PlanExecutionModule runs the executor agent and captures its outputs.
type PlanExecutionModule struct {
	*module.Base
	now    func() time.Time
	runner executionRunner
}

// Register installs the module factory.
func Register(reg *module.Registry) {
	if reg == nil {
		return
	}
	reg.MustRegister(moduleID, func(module.Config) (module.Module, error) {
		return New(), nil
	})
}

// New configures the module metadata and IO contracts.
func New(opts ...Option) *PlanExecutionModule {
	info := module.Info{
		ID:          moduleID,
		Name:        "Plan Execution",
		Description: "Executes the plan through the tool-calling loop and records the transcript.",
		Version:     moduleVersion,
		Concurrency: module.ConcurrencyProfile{Exclusive: true},
	}
	base := module.NewBase(info)
	base.SetInputs(artifact.PlanDoc, artifact.PlanReadyMarker)
	base.SetOutputs(
		artifact.TranscriptDoc,
		artifact.ShoppingListDoc,
		artifact.ExecutionCompleteMarker,
	)
	mod := &PlanExecutionModule{
		Base:   &base,
		now:    time.Now,
		runner: defaultExecutionRunner{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(mod)
		}
	}
	return mod
}

// Run executes the plan, writes the transcript and shopping list, and stamps
// the completion marker. The in-progress marker brackets the agent loop so a
// crashed run is distinguishable from one that never started.
func (m *PlanExecutionModule) Run(ctx *module.ModuleContext) (module.Result, error) {
	if err := runtime.ValidateContext(moduleID, ctx); err != nil {
		return module.Result{Status: module.StatusFailed}, err
	}
	if missing, err := m.missingInput(ctx); err != nil {
		return module.Result{Status: module.StatusFailed}, err
	} else if missing != "" {
		return module.Result{Status: module.StatusNeedsInput, Message: fmt.Sprintf("waiting for %s", missing)}, nil
	}
	if complete, err := m.IsComplete(ctx); err != nil {
		return module.Result{Status: module.StatusFailed}, err
	} else if complete {
		return module.Result{Status: module.StatusNoOp, Message: "plan already executed"}, nil
	}
	plan, err := documentBody(ctx, artifact.PlanDoc)
	if err != nil {
		return module.Result{Status: module.StatusFailed}, err
	}

	if err := os.MkdirAll(ctx.Workflow.WorkDir(), 0o755); err != nil {
		return module.Result{Status: module.StatusFailed}, fmt.Errorf("%s: create work dir: %w", moduleID, err)
	}
	if err := ctx.Workflow.WriteMarker(ctx.Workflow.WorkDir(), workflow.MarkerWorkInProgress); err != nil {
		return module.Result{Status: module.StatusFailed}, fmt.Errorf("%s: mark in progress: %w", moduleID, err)
	}

	goCtx := context.Background()
	messages, err := m.runner.ExecutePlan(goCtx, ctx, string(plan))
	if err != nil && !errors.Is(err, agent.ErrTurnLimit) {
		m.clearInProgress(ctx)
		return module.Result{Status: module.StatusFailed}, fmt.Errorf("%s: execute plan: %w", moduleID, err)
	}
	turnLimited := errors.Is(err, agent.ErrTurnLimit)

	transcript := agent.RenderTranscript(messages)
	if err := ctx.Artifacts.Write(artifact.TranscriptDoc, []byte(transcript), m.metadataFor(ctx, artifact.TranscriptDoc)); err != nil {
		m.clearInProgress(ctx)
		return module.Result{Status: module.StatusFailed}, fmt.Errorf("%s: write transcript: %w", moduleID, err)
	}

	if err := os.MkdirAll(ctx.Workflow.OutputDir(), 0o755); err != nil {
		m.clearInProgress(ctx)
		return module.Result{Status: module.StatusFailed}, fmt.Errorf("%s: create output dir: %w", moduleID, err)
	}
	list := m.extractShoppingList(goCtx, ctx, transcript)
	if err := ctx.Artifacts.Write(artifact.ShoppingListDoc, []byte(list), m.metadataFor(ctx, artifact.ShoppingListDoc)); err != nil {
		m.clearInProgress(ctx)
		return module.Result{Status: module.StatusFailed}, fmt.Errorf("%s: write shopping list: %w", moduleID, err)
	}

	if turnLimited {
		// The partial transcript and list are kept for inspection, but the
		// phase stays open so a rerun can pick the plan back up.
		m.clearInProgress(ctx)
		return module.Result{Status: module.StatusFailed}, fmt.Errorf("%s: execute plan: %w", moduleID, agent.ErrTurnLimit)
	}

	if err := ctx.Artifacts.Write(artifact.ExecutionCompleteMarker, nil, artifact.Metadata{}); err != nil {
		return module.Result{Status: module.StatusFailed}, fmt.Errorf("%s: mark complete: %w", moduleID, err)
	}
	m.clearInProgress(ctx)
	ctx.Notify(moduleID, events.TypeStatus, map[string]string{"content": "Execution finished."})
	return module.Result{Status: module.StatusCompleted, Message: fmt.Sprintf("executed plan in %d message(s)", len(messages))}, nil
}

// IsComplete reports whether a finished execution already exists. An
// in-progress marker left by a crashed run keeps the module incomplete.
func (m *PlanExecutionModule) IsComplete(ctx *module.ModuleContext) (bool, error) {
	if err := runtime.ValidateContext(moduleID, ctx); err != nil {
		return false, err
	}
	if ctx.Workflow.HasMarker(ctx.Workflow.WorkDir(), workflow.MarkerWorkInProgress) {
		return false, nil
	}
	ready, err := runtime.EnsureDocuments(ctx, moduleID, moduleVersion,
		[]artifact.ArtifactRef{artifact.TranscriptDoc, artifact.ShoppingListDoc},
		runtime.WithInputs(m.Inputs()...))
	if err != nil || !ready {
		return false, err
	}
	return runtime.EnsureMarker(ctx, moduleID, moduleVersion, artifact.ExecutionCompleteMarker)
}

func (m *PlanExecutionModule) extractShoppingList(goCtx context.Context, ctx *module.ModuleContext, transcript string) string {
	if ctx.Chat == nil {
		return fallbackShoppingList
	}
	list, err := llm.SimpleCall(goCtx, ctx.Chat, ctx.Config.UtilityModel(), shoppingListPrompt, transcript, shoppingListMaxTokens)
	if err != nil || list == "" {
		if ctx.Logbook != nil {
			ctx.Logbook.Scoped(moduleID).Warn("shopping list extraction failed: %v", err)
		}
		return fallbackShoppingList
	}
	return list + "\n"
}

func (m *PlanExecutionModule) clearInProgress(ctx *module.ModuleContext) {
	os.Remove(ctx.Workflow.WorkInProgressPath())
}

func (m *PlanExecutionModule) missingInput(ctx *module.ModuleContext) (string, error) {
	for _, ref := range m.Inputs() {
		result, err := ctx.Artifacts.Check(ref)
		if err != nil {
			return "", fmt.Errorf("%s: check %s: %w", moduleID, ref.ID, err)
		}
		if result.State != artifact.StateReady {
			return ref.Name, nil
		}
	}
	return "", nil
}

func (m *PlanExecutionModule) metadataFor(ctx *module.ModuleContext, ref artifact.ArtifactRef) artifact.Metadata {
	meta := artifact.Metadata{
		ArtifactID: ref.ID,
		ModuleID:   moduleID,
		Version:    moduleVersion,
		Workflow:   ctx.Workflow.Dir(),
		CreatedAt:  m.now(),
	}
	for _, input := range m.Inputs() {
		meta.Inputs = append(meta.Inputs, input.ID)
	}
	return meta
}

func documentBody(ctx *module.ModuleContext, ref artifact.ArtifactRef) ([]byte, error) {
	path := ref.Path(ctx.Workflow)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: read %s: %w", moduleID, ref.ID, err)
	}
	if _, body, err := artifact.ParseFrontMatter(data); err == nil {
		return body, nil
	}
	return data, nil
}

type defaultExecutionRunner struct{}

func (defaultExecutionRunner) ExecutePlan(goCtx context.Context, ctx *module.ModuleContext, plan string) ([]llm.Message, error) {
	if ctx.Chat == nil {
		return nil, fmt.Errorf("%s: chat client unavailable", moduleID)
	}
	if ctx.Tools == nil {
		return nil, fmt.Errorf("%s: tool registry unavailable", moduleID)
	}
	opts := []agent.ExecutorOption{}
	if ctx.Logbook != nil {
		opts = append(opts, agent.ExecutorWithLogbook(ctx.Logbook))
	}
	if ctx.Events != nil {
		opts = append(opts, agent.ExecutorWithNotifier(func(eventType string, payload any) {
			ctx.Notify(moduleID, eventType, payload)
		}))
	}
	executor := agent.NewExecutor(ctx.Chat, ctx.Config.ExecutorModel(), ctx.Tools, opts...)
	return executor.ExecutePlan(goCtx, plan)
}

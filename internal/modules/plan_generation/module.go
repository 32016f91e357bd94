// Package plan_generation turns the task brief into an executable markdown
// plan. It asks the utility model for audience-friendly tool summaries,
// feeds them with the task to the planner model, and persists PLAN.md, the
// tool manifest, and the plan-ready marker.
package plan_generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/conciergehq/concierge/internal/agent"
	"github.com/conciergehq/concierge/internal/artifact"
	"github.com/conciergehq/concierge/internal/events"
	"github.com/conciergehq/concierge/internal/module"
	"github.com/conciergehq/concierge/internal/modules/runtime"
)

const (
	moduleID      = "plan-generation"
	moduleVersion = "1.0.0"
)

// Option customizes the plan generation module.
type Option func(*PlanGenerationModule)

// WithClock overrides the timestamp source.
func WithClock(clock func() time.Time) Option {
	return func(m *PlanGenerationModule) {
		if clock != nil {
			m.now = clock
		}
	}
}

// WithPlanner swaps the planning implementation (used in tests).
func WithPlanner(p planRunner) Option {
	return func(m *PlanGenerationModule) {
		if p != nil {
			m.planner = p
		}
	}
}

type planRunner interface {
	ToolSummaries(goCtx context.Context, ctx *module.ModuleContext) (map[string]string, error)
	BuildPlan(goCtx context.Context, ctx *module.ModuleContext, task string, summaries map[string]string) (string, error)
}

// PlanGenerationModule runs the planner agent against the task brief.
type PlanGenerationModule struct {
	*module.Base
	now     func() time.Time
	planner planRunner
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
func New(opts ...Option) *PlanGenerationModule {
	info := module.Info{
		ID:          moduleID,
		Name:        "Plan Generation",
		Description: "Builds the step-by-step execution plan with the planner model.",
		Version:     moduleVersion,
	}
	base := module.NewBase(info)
	base.SetInputs(artifact.TaskDoc)
	base.SetOutputs(
		artifact.PlanDoc,
		artifact.ToolManifestJSON,
		artifact.PlanReadyMarker,
	)
	mod := &PlanGenerationModule{
		Base:    &base,
		now:     time.Now,
		planner: defaultPlanRunner{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(mod)
		}
	}
	return mod
}

// Run generates PLAN.md plus the tool manifest and stamps the ready marker.
func (m *PlanGenerationModule) Run(ctx *module.ModuleContext) (module.Result, error) {
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
		return module.Result{Status: module.StatusNoOp, Message: "plan already generated"}, nil
	}
	task, err := documentBody(ctx, artifact.TaskDoc)
	if err != nil {
		return module.Result{Status: module.StatusFailed}, err
	}
	goCtx := context.Background()
	summaries, err := m.planner.ToolSummaries(goCtx, ctx)
	if err != nil {
		return module.Result{Status: module.StatusFailed}, fmt.Errorf("%s: describe tools: %w", moduleID, err)
	}
	plan, err := m.planner.BuildPlan(goCtx, ctx, string(task), summaries)
	if err != nil {
		return module.Result{Status: module.StatusFailed}, fmt.Errorf("%s: build plan: %w", moduleID, err)
	}
	if err := os.MkdirAll(ctx.Workflow.PlanDir(), 0o755); err != nil {
		return module.Result{Status: module.StatusFailed}, fmt.Errorf("%s: create plan dir: %w", moduleID, err)
	}
	if err := m.writeManifest(ctx, summaries); err != nil {
		return module.Result{Status: module.StatusFailed}, err
	}
	if err := ctx.Artifacts.Write(artifact.PlanDoc, []byte(plan), m.metadataFor(ctx, artifact.PlanDoc)); err != nil {
		return module.Result{Status: module.StatusFailed}, fmt.Errorf("%s: write plan: %w", moduleID, err)
	}
	if err := ctx.Artifacts.Write(artifact.PlanReadyMarker, nil, artifact.Metadata{}); err != nil {
		return module.Result{Status: module.StatusFailed}, fmt.Errorf("%s: stamp plan ready: %w", moduleID, err)
	}
	ctx.Notify(moduleID, events.TypeStatus, map[string]string{"content": "Plan ready."})
	return module.Result{Status: module.StatusCompleted, Message: fmt.Sprintf("planned with %d tool(s)", len(summaries))}, nil
}

// IsComplete returns true when the plan, manifest, and marker all exist.
func (m *PlanGenerationModule) IsComplete(ctx *module.ModuleContext) (bool, error) {
	if err := runtime.ValidateContext(moduleID, ctx); err != nil {
		return false, err
	}
	ready, err := runtime.EnsureDocument(ctx, moduleID, moduleVersion, artifact.PlanDoc, runtime.WithInputs(m.Inputs()...))
	if err != nil || !ready {
		return false, err
	}
	result, err := ctx.Artifacts.Check(artifact.ToolManifestJSON)
	if err != nil {
		return false, fmt.Errorf("%s: check %s: %w", moduleID, artifact.ToolManifestJSON.ID, err)
	}
	if result.State != artifact.StateReady {
		return false, nil
	}
	return runtime.EnsureMarker(ctx, moduleID, moduleVersion, artifact.PlanReadyMarker)
}

func (m *PlanGenerationModule) missingInput(ctx *module.ModuleContext) (string, error) {
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

func (m *PlanGenerationModule) writeManifest(ctx *module.ModuleContext, summaries map[string]string) error {
	manifest := map[string]any{
		"generated_at": m.now().UTC().Format(time.RFC3339),
		"tools":        summaries,
	}
	body, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("%s: encode tool manifest: %w", moduleID, err)
	}
	if err := ctx.Artifacts.Write(artifact.ToolManifestJSON, body, m.metadataFor(ctx, artifact.ToolManifestJSON)); err != nil {
		return fmt.Errorf("%s: write tool manifest: %w", moduleID, err)
	}
	return nil
}

func (m *PlanGenerationModule) metadataFor(ctx *module.ModuleContext, ref artifact.ArtifactRef) artifact.Metadata {
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
	_, body, err := artifact.ParseFrontMatter(data)
	if err == nil {
		return body, nil
	}
	if errors.Is(err, artifact.ErrMissingFrontMatter) || errors.Is(err, artifact.ErrMalformedFrontMatter) {
		return data, nil
	}
	return nil, fmt.Errorf("%s: parse %s: %w", moduleID, ref.ID, err)
}

type defaultPlanRunner struct{}

func (defaultPlanRunner) ToolSummaries(goCtx context.Context, ctx *module.ModuleContext) (map[string]string, error) {
	if ctx.Chat == nil {
		return nil, fmt.Errorf("%s: chat client unavailable", moduleID)
	}
	if ctx.Tools == nil {
		return nil, fmt.Errorf("%s: tool registry unavailable", moduleID)
	}
	return ctx.Tools.Summaries(goCtx, ctx.Chat, ctx.Config.UtilityModel())
}

func (defaultPlanRunner) BuildPlan(goCtx context.Context, ctx *module.ModuleContext, task string, summaries map[string]string) (string, error) {
	if ctx.Chat == nil {
		return "", fmt.Errorf("%s: chat client unavailable", moduleID)
	}
	opts := []agent.PlannerOption{}
	if ctx.Logbook != nil {
		opts = append(opts, agent.PlannerWithLogbook(ctx.Logbook))
	}
	if ctx.Events != nil {
		opts = append(opts, agent.PlannerWithNotifier(func(eventType string, payload any) {
			ctx.Notify(moduleID, eventType, payload)
		}))
	}
	planner := agent.NewPlanner(ctx.Chat, ctx.Config.PlannerModel(), opts...)
	return planner.BuildPlan(goCtx, task, summaries)
}

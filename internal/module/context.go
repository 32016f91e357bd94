package module

import (
	"github.com/conciergehq/concierge/internal/artifact"
	"github.com/conciergehq/concierge/internal/config"
	"github.com/conciergehq/concierge/internal/events"
	"github.com/conciergehq/concierge/internal/llm"
	"github.com/conciergehq/concierge/internal/logbook"
	"github.com/conciergehq/concierge/internal/tool"
	"github.com/conciergehq/concierge/internal/workflow"
)

// ModuleContext carries shared runtime dependencies into every module.
type ModuleContext struct {
	Config    *config.Config
	Workflow  *workflow.Workflow
	Logbook   *logbook.Logbook
	Artifacts *artifact.Store
	// Chat is the language-model client shared by the planner and executor
	// stages. Nil in tests that never reach a model call.
	Chat llm.Client
	// Tools is the registry of callable functions exposed to the executor.
	Tools *tool.Registry
	// Events receives typed progress events for streaming consumers.
	Events *events.Router
	// Task is the raw task brief supplied on the command line, if any. The
	// intake module prefers an existing task document over this value.
	Task       string
	OriginMode string
}

// NewContext builds a ModuleContext with a fresh ArtifactStore.
func NewContext(cfg *config.Config, wf *workflow.Workflow, lb *logbook.Logbook) *ModuleContext {
	return &ModuleContext{
		Config:    cfg,
		Workflow:  wf,
		Logbook:   lb,
		Artifacts: artifact.NewStore(wf),
	}
}

// WithArtifacts allows dependency injection of a pre-built store.
func (ctx *ModuleContext) WithArtifacts(store *artifact.Store) *ModuleContext {
	clone := *ctx
	clone.Artifacts = store
	return &clone
}

// WithChat attaches a language-model client.
func (ctx *ModuleContext) WithChat(client llm.Client) *ModuleContext {
	clone := *ctx
	clone.Chat = client
	return &clone
}

// WithTools attaches a tool registry.
func (ctx *ModuleContext) WithTools(reg *tool.Registry) *ModuleContext {
	clone := *ctx
	clone.Tools = reg
	return &clone
}

// WithEvents attaches an event router.
func (ctx *ModuleContext) WithEvents(router *events.Router) *ModuleContext {
	clone := *ctx
	clone.Events = router
	return &clone
}

// WithTask records the task brief passed on the command line.
func (ctx *ModuleContext) WithTask(task string) *ModuleContext {
	clone := *ctx
	clone.Task = task
	return &clone
}

// WithMode records which entry point triggered the invocation.
func (ctx *ModuleContext) WithMode(name string) *ModuleContext {
	clone := *ctx
	clone.OriginMode = name
	return &clone
}

// Notify publishes a typed event through the router, when one is attached.
func (ctx *ModuleContext) Notify(moduleID, eventType string, payload any) {
	if ctx.Events == nil {
		return
	}
	ctx.Events.Route(events.New(eventType, moduleID, payload))
}

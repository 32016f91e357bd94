// Package task_intake seeds the run with the user's task brief. The task
// text arrives on the command line and is persisted as TASK.md so the rest
// of the pipeline (and any resumed run) reads it from disk.
package task_intake

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/conciergehq/concierge/internal/artifact"
	"github.com/conciergehq/concierge/internal/events"
	"github.com/conciergehq/concierge/internal/module"
	"github.com/conciergehq/concierge/internal/modules/runtime"
)

const (
	moduleID      = "task-intake"
	moduleVersion = "1.0.0"
)

// Option customizes the task intake module.
type Option func(*TaskIntakeModule)

// WithClock overrides the timestamp source.
func WithClock(clock func() time.Time) Option {
	return func(m *TaskIntakeModule) {
		if clock != nil {
			m.now = clock
		}
	}
}

// TaskIntakeModule persists the task brief as the pipeline's root artifact.
type TaskIntakeModule struct {
	*module.Base
	now func() time.Time
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
func New(opts ...Option) *TaskIntakeModule {
	info := module.Info{
		ID:          moduleID,
		Name:        "Task Intake",
		Description: "Captures the user's task brief as TASK.md for the planning pipeline.",
		Version:     moduleVersion,
	}
	base := module.NewBase(info)
	base.SetOutputs(artifact.TaskDoc)
	mod := &TaskIntakeModule{
		Base: &base,
		now:  time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(mod)
		}
	}
	return mod
}

// Run writes TASK.md from the context-supplied task text.
func (m *TaskIntakeModule) Run(ctx *module.ModuleContext) (module.Result, error) {
	if err := runtime.ValidateContext(moduleID, ctx); err != nil {
		return module.Result{Status: module.StatusFailed}, err
	}
	if complete, err := m.IsComplete(ctx); err != nil {
		return module.Result{Status: module.StatusFailed}, err
	} else if complete {
		return module.Result{Status: module.StatusNoOp, Message: "task brief already captured"}, nil
	}
	task := strings.TrimSpace(ctx.Task)
	if task == "" {
		return module.Result{Status: module.StatusNeedsInput, Message: "waiting for a task brief"}, nil
	}
	if err := os.MkdirAll(ctx.Workflow.TaskDir(), 0o755); err != nil {
		return module.Result{Status: module.StatusFailed}, fmt.Errorf("%s: create task dir: %w", moduleID, err)
	}
	body := fmt.Sprintf("# Task\n\n%s\n", task)
	meta := artifact.Metadata{
		ArtifactID: artifact.TaskDoc.ID,
		ModuleID:   moduleID,
		Version:    moduleVersion,
		Workflow:   ctx.Workflow.Dir(),
		CreatedAt:  m.now(),
	}
	if err := ctx.Artifacts.Write(artifact.TaskDoc, []byte(body), meta); err != nil {
		return module.Result{Status: module.StatusFailed}, fmt.Errorf("%s: write task brief: %w", moduleID, err)
	}
	ctx.Notify(moduleID, events.TypeStatus, map[string]string{"content": "Task captured."})
	return module.Result{Status: module.StatusCompleted, Message: "task brief captured"}, nil
}

// IsComplete reports whether a valid TASK.md already exists.
func (m *TaskIntakeModule) IsComplete(ctx *module.ModuleContext) (bool, error) {
	if err := runtime.ValidateContext(moduleID, ctx); err != nil {
		return false, err
	}
	return runtime.EnsureDocument(ctx, moduleID, moduleVersion, artifact.TaskDoc)
}

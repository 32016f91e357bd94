// Package runner drives a pipeline definition to completion. It claims
// runnable modules from the workflow engine one batch at a time, executes
// them, and feeds results back until the pipeline completes, blocks, or
// fails.
package runner

import (
	"errors"
	"fmt"

	"github.com/conciergehq/concierge/internal/logbook"
	"github.com/conciergehq/concierge/internal/module"
	"github.com/conciergehq/concierge/internal/workflow"
	"github.com/conciergehq/concierge/internal/workflow/engine"
)

// ErrNeedsInput signals that a module is waiting on user-provided input and
// the run cannot proceed without it.
var ErrNeedsInput = errors.New("runner: module needs input")

// ErrBlocked signals that no module is runnable but the pipeline is not
// complete.
var ErrBlocked = errors.New("runner: pipeline blocked")

// defaultMaxPasses bounds the claim/execute/update loop. Each pass runs at
// least one module, so a well-formed pipeline finishes well under the cap.
const defaultMaxPasses = 100

// Option customizes a Runner.
type Option func(*Runner)

// WithLogbook records runner progress in the run log.
func WithLogbook(log *logbook.Logbook) Option {
	return func(r *Runner) {
		if log != nil {
			r.log = log.Scoped("runner")
		}
	}
}

// WithMaxPasses caps the execution loop. Values <= 0 keep the default.
func WithMaxPasses(limit int) Option {
	return func(r *Runner) {
		if limit > 0 {
			r.maxPasses = limit
		}
	}
}

// Runner executes a pipeline definition against the workflow engine.
type Runner struct {
	engine     *engine.Engine
	registry   *module.Registry
	definition workflow.PipelineDefinition
	log        *logbook.Scoped
	maxPasses  int
}

// New builds a runner for the given definition. The registry must contain
// every module the definition references.
func New(registry *module.Registry, repo engine.StateStore, definition workflow.PipelineDefinition, opts ...Option) (*Runner, error) {
	eng, err := engine.New(registry, repo)
	if err != nil {
		return nil, err
	}
	normalized, err := definition.Normalized()
	if err != nil {
		return nil, err
	}
	r := &Runner{
		engine:     eng,
		registry:   registry,
		definition: normalized,
		maxPasses:  defaultMaxPasses,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r, nil
}

// Run starts or resumes the pipeline and executes modules until the engine
// reports completion. A module asking for input stops the loop with
// ErrNeedsInput; a failed module surfaces its error.
func (r *Runner) Run(ctx *module.ModuleContext) (engine.State, error) {
	state, err := r.engine.Resume(ctx, engine.ResumeRequest{})
	if errors.Is(err, engine.ErrStateNotFound) {
		r.log.Info("starting pipeline %s", r.definition.ID)
		state, err = r.engine.Start(ctx, engine.StartRequest{Definition: r.definition})
	} else if err == nil {
		r.log.Info("resuming pipeline %s", state.WorkflowID)
	}
	if err != nil {
		return engine.State{}, err
	}

	for pass := 0; pass < r.maxPasses; pass++ {
		switch state.Status {
		case engine.EngineStatusComplete:
			r.log.Info("pipeline %s complete", state.WorkflowID)
			return state, nil
		case engine.EngineStatusError:
			return state, fmt.Errorf("runner: pipeline failed: %s", state.StatusReason)
		}

		claim, err := r.engine.Claim(ctx, engine.ClaimRequest{})
		if err != nil {
			return state, err
		}
		state = claim.State
		if len(claim.Claims) == 0 {
			if state.Status == engine.EngineStatusComplete {
				return state, nil
			}
			return state, fmt.Errorf("%w: %s", ErrBlocked, state.StatusReason)
		}

		results := make([]engine.ModuleStatusUpdate, 0, len(claim.Claims))
		needsInput := ""
		for _, work := range claim.Claims {
			result, runErr := r.runModule(ctx, work)
			results = append(results, engine.ModuleStatusUpdate{ID: work.ID, Result: result, Err: runErr})
			if runErr != nil {
				if _, updateErr := r.engine.Update(ctx, engine.UpdateRequest{Results: results}); updateErr != nil {
					r.log.Error("persist failure state: %v", updateErr)
				}
				return state, fmt.Errorf("runner: %s: %w", work.ID, runErr)
			}
			if result.Status == module.StatusNeedsInput {
				needsInput = work.ID
			}
		}
		state, err = r.engine.Update(ctx, engine.UpdateRequest{Results: results})
		if err != nil {
			return state, err
		}
		if needsInput != "" {
			return state, fmt.Errorf("%w: %s", ErrNeedsInput, needsInput)
		}
	}
	return state, fmt.Errorf("runner: pipeline did not settle after %d passes", r.maxPasses)
}

func (r *Runner) runModule(ctx *module.ModuleContext, work engine.WorkClaim) (module.Result, error) {
	ref, ok := r.findRef(work.ID)
	if !ok {
		return module.Result{Status: module.StatusFailed}, fmt.Errorf("definition has no module %s", work.ID)
	}
	mod, err := r.registry.Resolve(ref.ModuleID, module.Config(ref.Config))
	if err != nil {
		return module.Result{Status: module.StatusFailed}, err
	}
	r.log.Info("running %s", work.ID)
	result, err := mod.Run(ctx)
	if err != nil {
		r.log.Error("%s failed: %v", work.ID, err)
		return result, err
	}
	r.log.Info("%s finished: %s %s", work.ID, result.Status, result.Message)
	return result, nil
}

func (r *Runner) findRef(instanceID string) (workflow.ModuleRef, bool) {
	for _, ref := range r.definition.Modules {
		if ref.InstanceID() == instanceID {
			return ref, true
		}
	}
	return workflow.ModuleRef{}, false
}

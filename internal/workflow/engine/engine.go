package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/conciergehq/concierge/internal/module"
	"github.com/conciergehq/concierge/internal/workflow"
	"github.com/conciergehq/concierge/internal/workflow/resolver"
	"github.com/conciergehq/concierge/internal/workflow/scheduler"
)

// Engine drives a pipeline run. Each call rebuilds the resolver view from
// the workspace, asks the scheduler what may start, and persists the
// snapshot so a separate worker process can pick up claims.
type Engine struct {
	registry *module.Registry
	repo     StateStore
	clock    func() time.Time
}

// Option customizes the engine instance.
type Option func(*Engine)

// WithClock injects a deterministic clock for tests.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

func New(registry *module.Registry, repo StateStore, opts ...Option) (*Engine, error) {
	if registry == nil {
		return nil, fmt.Errorf("workflow engine: module registry is required")
	}
	if repo == nil {
		return nil, fmt.Errorf("workflow engine: state store is required")
	}
	engine := &Engine{registry: registry, repo: repo, clock: time.Now}
	for _, opt := range opts {
		opt(engine)
	}
	return engine, nil
}

// StartRequest begins a fresh run of a pipeline definition.
type StartRequest struct {
	Definition workflow.PipelineDefinition
	Runtime    *RuntimeOverrides
}

// ResumeRequest re-evaluates a persisted run, typically after a restart.
type ResumeRequest struct {
	Runtime *RuntimeOverrides
}

// ModuleStatusUpdate tells the engine a module finished running.
type ModuleStatusUpdate struct {
	ID         string
	Result     module.Result
	Err        error
	FinishedAt time.Time
}

// UpdateRequest folds module results and runtime overrides into the run.
type UpdateRequest struct {
	Runtime *RuntimeOverrides
	Results []ModuleStatusUpdate
}

// Start evaluates a pipeline definition from scratch and persists the
// initial snapshot under a new run ID.
func (e *Engine) Start(ctx *module.ModuleContext, req StartRequest) (State, error) {
	if ctx == nil {
		return State{}, fmt.Errorf("workflow engine: module context is required")
	}
	normalized, err := req.Definition.Normalized()
	if err != nil {
		return State{}, err
	}
	runtime := overlayRuntime(EngineRuntime{}, req.Runtime)
	state, err := e.snapshot(ctx, normalized, runtime, nil)
	if err != nil {
		return State{}, err
	}
	state.RunID = newRunID(normalized.ID, e.now())
	state.WorkflowID = normalized.ID
	return e.commit(state)
}

// Resume reloads the persisted run and recomputes readiness against the
// current workspace.
func (e *Engine) Resume(ctx *module.ModuleContext, req ResumeRequest) (State, error) {
	if ctx == nil {
		return State{}, fmt.Errorf("workflow engine: module context is required")
	}
	prev, err := e.repo.Load()
	if err != nil {
		return State{}, err
	}
	runtime := overlayRuntime(prev.Runtime, req.Runtime)
	state, err := e.snapshot(ctx, prev.Definition, runtime, prev.Runs)
	if err != nil {
		return State{}, err
	}
	state.RunID = prev.RunID
	state.WorkflowID = prev.WorkflowID
	return e.commit(state)
}

// Update records finished modules, releases their running reservations, and
// persists the refreshed snapshot.
func (e *Engine) Update(ctx *module.ModuleContext, req UpdateRequest) (State, error) {
	if ctx == nil {
		return State{}, fmt.Errorf("workflow engine: module context is required")
	}
	prev, err := e.repo.Load()
	if err != nil {
		return State{}, err
	}
	runs := recordResults(prev.Runs, req.Results, e.now)
	runtime := overlayRuntime(prev.Runtime, req.Runtime)
	runtime.Running = releaseRunning(runtime.Running, req.Results)
	state, err := e.snapshot(ctx, prev.Definition, runtime, runs)
	if err != nil {
		return State{}, err
	}
	state.RunID = prev.RunID
	state.WorkflowID = prev.WorkflowID
	return e.commit(state)
}

// View returns the last persisted snapshot without re-evaluating anything.
func (e *Engine) View() (State, error) {
	return e.repo.Load()
}

func (e *Engine) commit(state State) (State, error) {
	state.UpdatedAt = e.now()
	if err := e.repo.Save(state); err != nil {
		return State{}, err
	}
	return state, nil
}

func (e *Engine) snapshot(ctx *module.ModuleContext, def workflow.PipelineDefinition, runtime EngineRuntime, runs map[string]ModuleRun) (State, error) {
	runtime = adoptPipelineDefaults(def, runtime)
	res, err := resolver.New(def, e.registry)
	if err != nil {
		return State{}, err
	}
	if err := res.Refresh(ctx); err != nil {
		return State{}, err
	}
	sched, err := scheduler.New(res)
	if err != nil {
		return State{}, err
	}
	batch, err := sched.Plan(runtime.schedulerRequest())
	if err != nil {
		return State{}, err
	}

	statuses := nodeStatuses(res.Nodes(), runs)
	runtime.Running = pruneFinished(runtime.Running, statuses)
	status, reason := summarize(statuses, runtime, runs)
	return State{
		WorkflowID:   def.ID,
		Definition:   def.Clone(),
		Runtime:      runtime.clone(),
		Nodes:        statuses,
		Runnable:     nodeIDs(batch.Nodes),
		Skipped:      copySkips(batch.Skipped),
		Runs:         copyRuns(runs),
		Status:       status,
		StatusReason: reason,
	}, nil
}

func nodeStatuses(nodes []*resolver.Node, runs map[string]ModuleRun) []ModuleStatus {
	statuses := make([]ModuleStatus, 0, len(nodes))
	for _, node := range nodes {
		status := statusOf(node)
		if run, ok := runs[node.ID]; ok {
			last := run
			status.LastRun = &last
		}
		statuses = append(statuses, status)
	}
	return statuses
}

func statusOf(node *resolver.Node) ModuleStatus {
	info := node.Module.Info()
	status := ModuleStatus{
		ID:           node.ID,
		ModuleID:     node.Ref.ModuleID,
		Name:         displayName(node.Ref, info),
		Description:  node.Ref.Description,
		Optional:     node.Ref.Optional,
		Concurrency:  info.Concurrency,
		State:        node.State,
		Dependencies: cloneStrings(node.Dependencies),
		Dependents:   cloneStrings(node.Dependents),
		BlockedBy:    cloneStrings(node.BlockedBy),
		Error:        errText(node.Err),
	}
	if len(node.Artifacts) == 0 {
		return status
	}
	status.Artifacts = make(map[string]ArtifactStatus, len(node.Artifacts))
	for id, report := range node.Artifacts {
		status.Artifacts[id] = ArtifactStatus{
			ID:                  id,
			Status:              report.Status,
			ExpectedFingerprint: report.ExpectedFingerprint,
			StoredFingerprint:   report.StoredFingerprint,
			Error:               errText(report.Err),
		}
	}
	return status
}

func displayName(ref workflow.ModuleRef, info module.Info) string {
	for _, candidate := range []string{ref.Name, info.Name, ref.ModuleID} {
		if candidate != "" {
			return candidate
		}
	}
	return ref.InstanceID()
}

// summarize rolls node states up into the coarse engine status. Errors win,
// then completion, then running versus blocked.
func summarize(statuses []ModuleStatus, runtime EngineRuntime, runs map[string]ModuleRun) (EngineStatus, string) {
	for _, status := range statuses {
		if status.State == resolver.NodeStateError {
			return EngineStatusError, fmt.Sprintf("%s encountered an error", status.ID)
		}
	}
	for id, run := range runs {
		if run.Status == module.StatusFailed {
			return EngineStatusError, fmt.Sprintf("%s failed", id)
		}
	}

	var ready, unfinished bool
	for _, status := range statuses {
		switch status.State {
		case resolver.NodeStateReady:
			ready = true
		case resolver.NodeStatePending, resolver.NodeStateBlocked, resolver.NodeStateUnknown:
			unfinished = true
		}
	}
	switch {
	case !ready && !unfinished:
		return EngineStatusComplete, ""
	case ready || len(runtime.Running) > 0:
		return EngineStatusRunning, ""
	default:
		return EngineStatusBlocked, ""
	}
}

// pruneFinished drops running reservations for modules the resolver now
// reports complete, so a crashed worker cannot wedge the run.
func pruneFinished(running []string, statuses []ModuleStatus) []string {
	if len(running) == 0 {
		return running
	}
	complete := make(map[string]bool, len(statuses))
	for _, status := range statuses {
		if status.State == resolver.NodeStateComplete {
			complete[status.ID] = true
		}
	}
	kept := running[:0:0]
	for _, id := range running {
		if !complete[id] {
			kept = append(kept, id)
		}
	}
	return kept
}

func nodeIDs(nodes []*resolver.Node) []string {
	if len(nodes) == 0 {
		return nil
	}
	ids := make([]string, len(nodes))
	for i, node := range nodes {
		ids[i] = node.ID
	}
	return ids
}

func copySkips(skips map[string]scheduler.Skip) map[string]scheduler.Skip {
	if len(skips) == 0 {
		return nil
	}
	out := make(map[string]scheduler.Skip, len(skips))
	for id, skip := range skips {
		out[id] = skip
	}
	return out
}

func copyRuns(runs map[string]ModuleRun) map[string]ModuleRun {
	out := make(map[string]ModuleRun, len(runs))
	for id, run := range runs {
		out[id] = run
	}
	return out
}

func recordResults(existing map[string]ModuleRun, updates []ModuleStatusUpdate, clock func() time.Time) map[string]ModuleRun {
	runs := copyRuns(existing)
	for _, update := range updates {
		if update.ID == "" {
			continue
		}
		finished := update.FinishedAt
		if finished.IsZero() {
			finished = clock()
		}
		runs[update.ID] = ModuleRun{
			Status:     update.Result.Status,
			Message:    update.Result.Message,
			Error:      errText(update.Err),
			FinishedAt: finished,
		}
	}
	return runs
}

func overlayRuntime(base EngineRuntime, overrides *RuntimeOverrides) EngineRuntime {
	if overrides == nil {
		return base
	}
	if overrides.Targets != nil {
		base.Targets = cloneStrings(*overrides.Targets)
	}
	if overrides.BatchSize != nil {
		base.BatchSize = *overrides.BatchSize
	}
	if overrides.MaxParallel != nil {
		base.MaxParallel = *overrides.MaxParallel
	}
	if overrides.Running != nil {
		base.Running = cloneStrings(*overrides.Running)
	}
	return base
}

func newRunID(workflowID string, now time.Time) string {
	base := strings.TrimSpace(workflowID)
	if base == "" {
		base = "workflow"
	}
	base = strings.ToLower(strings.ReplaceAll(base, " ", "-"))
	return fmt.Sprintf("%s-%d", base, now.UnixNano())
}

func (e *Engine) now() time.Time {
	if e.clock == nil {
		return time.Now()
	}
	return e.clock()
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

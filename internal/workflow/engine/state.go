package engine

import (
	"time"

	"github.com/conciergehq/concierge/internal/module"
	"github.com/conciergehq/concierge/internal/workflow"
	"github.com/conciergehq/concierge/internal/workflow/resolver"
	"github.com/conciergehq/concierge/internal/workflow/scheduler"
)

// EngineStatus is the coarse phase of a pipeline run.
type EngineStatus string

const (
	EngineStatusUnknown  EngineStatus = "unknown"
	EngineStatusRunning  EngineStatus = "running"
	EngineStatusBlocked  EngineStatus = "blocked"
	EngineStatusComplete EngineStatus = "complete"
	EngineStatusError    EngineStatus = "error"
)

// State is the snapshot persisted after every engine operation. Workers and
// the status command read it instead of re-deriving anything themselves.
type State struct {
	RunID      string                      `json:"run_id"`
	WorkflowID string                      `json:"workflow_id"`
	Definition workflow.PipelineDefinition `json:"definition"`
	Status     EngineStatus                `json:"status"`
	// StatusReason explains blocked and error states in one line.
	StatusReason string                    `json:"status_reason,omitempty"`
	Runtime      EngineRuntime             `json:"runtime"`
	Nodes        []ModuleStatus            `json:"nodes"`
	Runnable     []string                  `json:"runnable"`
	Skipped      map[string]scheduler.Skip `json:"skipped,omitempty"`
	Runs         map[string]ModuleRun      `json:"runs,omitempty"`
	UpdatedAt    time.Time                 `json:"updated_at"`
}

// EngineRuntime carries the scheduling constraints that survive across
// updates: what to aim for, how much to dispatch, and what is running now.
type EngineRuntime struct {
	Targets     []string `json:"targets,omitempty"`
	BatchSize   int      `json:"batch_size,omitempty"`
	MaxParallel int      `json:"max_parallel,omitempty"`
	Running     []string `json:"running,omitempty"`
}

// RuntimeOverrides mutates selected EngineRuntime fields; nil leaves a
// field untouched.
type RuntimeOverrides struct {
	Targets     *[]string
	BatchSize   *int
	MaxParallel *int
	Running     *[]string
}

// ModuleStatus is the per-node slice of the snapshot.
type ModuleStatus struct {
	ID           string                    `json:"id"`
	ModuleID     string                    `json:"module_id"`
	Name         string                    `json:"name"`
	Description  string                    `json:"description,omitempty"`
	Optional     bool                      `json:"optional,omitempty"`
	Concurrency  module.ConcurrencyProfile `json:"concurrency"`
	State        resolver.NodeState        `json:"state"`
	Dependencies []string                  `json:"dependencies,omitempty"`
	Dependents   []string                  `json:"dependents,omitempty"`
	BlockedBy    []string                  `json:"blocked_by,omitempty"`
	Error        string                    `json:"error,omitempty"`
	Artifacts    map[string]ArtifactStatus `json:"artifacts,omitempty"`
	LastRun      *ModuleRun                `json:"last_run,omitempty"`
}

// ArtifactStatus carries the audit verdict for one output into the snapshot.
type ArtifactStatus struct {
	ID                  string                `json:"id"`
	Status              module.ArtifactStatus `json:"status"`
	ExpectedFingerprint string                `json:"expected_fingerprint,omitempty"`
	StoredFingerprint   string                `json:"stored_fingerprint,omitempty"`
	Error               string                `json:"error,omitempty"`
}

// ModuleRun is the last reported result for a module in this run.
type ModuleRun struct {
	Status     module.Status `json:"status"`
	Message    string        `json:"message,omitempty"`
	Error      string        `json:"error,omitempty"`
	FinishedAt time.Time     `json:"finished_at"`
}

// schedulerRequest maps the persisted runtime onto scheduler terms:
// BatchSize caps the batch, MaxParallel is the slot budget.
func (rt EngineRuntime) schedulerRequest() scheduler.Request {
	return scheduler.Request{
		Targets: cloneStrings(rt.Targets),
		Limit:   rt.BatchSize,
		Slots:   rt.MaxParallel,
		Running: cloneStrings(rt.Running),
	}
}

func (rt EngineRuntime) clone() EngineRuntime {
	rt.Targets = cloneStrings(rt.Targets)
	rt.Running = cloneStrings(rt.Running)
	return rt
}

func cloneStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, len(values))
	copy(out, values)
	return out
}

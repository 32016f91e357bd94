package engine

import (
	"fmt"

	"github.com/conciergehq/concierge/internal/module"
)

// ClaimRequest asks the engine to reserve runnable modules for a worker.
type ClaimRequest struct {
	Runtime *RuntimeOverrides
	// Limit caps how many modules are claimed. Zero claims everything runnable.
	Limit int
	// Modules restricts claims to these instance IDs. Empty allows any.
	Modules []string
}

// WorkClaim is one reserved module, carrying what the worker needs to run it.
type WorkClaim struct {
	ID          string                    `json:"id"`
	ModuleID    string                    `json:"module_id"`
	Name        string                    `json:"name"`
	Description string                    `json:"description,omitempty"`
	Optional    bool                      `json:"optional,omitempty"`
	Concurrency module.ConcurrencyProfile `json:"concurrency"`
}

// ClaimResult pairs the reserved modules with the persisted snapshot.
type ClaimResult struct {
	Claims []WorkClaim
	State  State
}

// Claim reserves runnable modules and persists them as running, so a second
// worker asking immediately after sees them occupied.
func (e *Engine) Claim(ctx *module.ModuleContext, req ClaimRequest) (ClaimResult, error) {
	if ctx == nil {
		return ClaimResult{}, fmt.Errorf("workflow engine: module context is required")
	}
	prev, err := e.repo.Load()
	if err != nil {
		return ClaimResult{}, err
	}
	runtime := overlayRuntime(prev.Runtime, req.Runtime)
	state, err := e.snapshot(ctx, prev.Definition, runtime, prev.Runs)
	if err != nil {
		return ClaimResult{}, err
	}
	state.RunID = prev.RunID
	state.WorkflowID = prev.WorkflowID

	eligible := filterClaimable(state.Runnable, req.Modules)
	if req.Limit > 0 && req.Limit < len(eligible) {
		eligible = eligible[:req.Limit]
	}
	claims := make([]WorkClaim, 0, len(eligible))
	for _, id := range eligible {
		status, ok := findModuleStatus(state.Nodes, id)
		if !ok {
			continue
		}
		claims = append(claims, WorkClaim{
			ID:          status.ID,
			ModuleID:    status.ModuleID,
			Name:        status.Name,
			Description: status.Description,
			Optional:    status.Optional,
			Concurrency: status.Concurrency,
		})
	}

	state.Runtime.Running = appendRunning(state.Runtime.Running, eligible)
	state.Runnable = stripIDs(state.Runnable, eligible)
	state.Status, state.StatusReason = summarize(state.Nodes, state.Runtime, state.Runs)
	result, err := e.commit(state)
	if err != nil {
		return ClaimResult{}, err
	}
	return ClaimResult{Claims: claims, State: result}, nil
}

func findModuleStatus(nodes []ModuleStatus, id string) (ModuleStatus, bool) {
	for _, node := range nodes {
		if node.ID == id {
			return node, true
		}
	}
	return ModuleStatus{}, false
}

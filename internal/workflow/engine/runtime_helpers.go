package engine

import (
	"strings"

	"github.com/conciergehq/concierge/internal/workflow"
)

// adoptPipelineDefaults fills runtime gaps from the pipeline definition.
// An explicit override always wins over the declared default.
func adoptPipelineDefaults(def workflow.PipelineDefinition, runtime EngineRuntime) EngineRuntime {
	if runtime.MaxParallel <= 0 && def.Runtime.MaxParallel > 0 {
		runtime.MaxParallel = def.Runtime.MaxParallel
	}
	return runtime
}

// releaseRunning frees reservations for every reported module, including
// needs-input results. A module waiting on the user holds no worker slot,
// and a reservation left behind would make the scheduler skip it on the
// next resume even after the input arrives.
func releaseRunning(running []string, updates []ModuleStatusUpdate) []string {
	if len(running) == 0 || len(updates) == 0 {
		return running
	}
	done := make(map[string]bool, len(updates))
	for _, update := range updates {
		if id := strings.TrimSpace(update.ID); id != "" {
			done[id] = true
		}
	}
	if len(done) == 0 {
		return running
	}
	kept := running[:0:0]
	for _, id := range running {
		if !done[id] {
			kept = append(kept, id)
		}
	}
	return kept
}

// appendRunning adds ids to the running set, skipping blanks and duplicates.
func appendRunning(running []string, ids []string) []string {
	have := make(map[string]bool, len(running))
	for _, id := range running {
		have[id] = true
	}
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || have[id] {
			continue
		}
		running = append(running, id)
		have[id] = true
	}
	return running
}

func stripIDs(values []string, ids []string) []string {
	if len(values) == 0 || len(ids) == 0 {
		return values
	}
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := values[:0:0]
	for _, id := range values {
		if !drop[id] {
			kept = append(kept, id)
		}
	}
	return kept
}

// filterClaimable intersects the runnable list with an optional request
// subset, preserving scheduler order.
func filterClaimable(runnable []string, requested []string) []string {
	if len(runnable) == 0 {
		return nil
	}
	if len(requested) == 0 {
		return cloneStrings(runnable)
	}
	wanted := make(map[string]bool, len(requested))
	for _, id := range requested {
		if id = strings.TrimSpace(id); id != "" {
			wanted[id] = true
		}
	}
	var out []string
	for _, id := range runnable {
		if wanted[id] {
			out = append(out, id)
		}
	}
	return out
}

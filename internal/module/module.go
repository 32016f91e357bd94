package module

import (
	"fmt"
	"strings"

	"github.com/conciergehq/concierge/internal/artifact"
)

// Module is one unit of assistant work: it can say whether its output
// already exists and produce it when asked. The engine never calls Run
// without a prior IsComplete check during the same refresh cycle.
type Module interface {
	Info() Info
	Inputs() []artifact.ArtifactRef
	Outputs() []artifact.ArtifactRef
	IsComplete(ctx *ModuleContext) (bool, error)
	Run(ctx *ModuleContext) (Result, error)
}

// Info identifies a module and declares its scheduling needs.
type Info struct {
	ID          string
	Name        string
	Description string
	Version     string
	Concurrency ConcurrencyProfile
}

// Validate reports the first problem with the info block.
func (i Info) Validate() error {
	var missing []string
	if i.ID == "" {
		missing = append(missing, "id")
	}
	if i.Name == "" {
		missing = append(missing, "name")
	}
	if i.Version == "" {
		missing = append(missing, "version")
	}
	if len(missing) > 0 {
		return fmt.Errorf("module %q: missing %s", i.ID, strings.Join(missing, ", "))
	}
	if i.Concurrency.Slots < 0 {
		return fmt.Errorf("module %q: concurrency slots must not be negative", i.ID)
	}
	return nil
}

// SlotCost is how much of the engine's parallel budget this module takes.
func (i Info) SlotCost() int {
	if i.Concurrency.Slots <= 0 {
		return 1
	}
	return i.Concurrency.Slots
}

// RequiresExclusiveExecution reports whether the module must be the only
// thing running, e.g. because it owns the browser session.
func (i Info) RequiresExclusiveExecution() bool {
	return i.Concurrency.Exclusive
}

// ConcurrencyProfile declares a module's footprint on the scheduler.
// Slots below one count as one. Exclusive modules wait for the engine to
// drain and then hold it until they finish.
type ConcurrencyProfile struct {
	Slots     int
	Exclusive bool
}

// Status enumerates module run outcomes.
type Status string

const (
	StatusCompleted  Status = "completed"
	StatusNoOp       Status = "no-op"
	StatusNeedsInput Status = "needs-input"
	StatusFailed     Status = "failed"
)

// Result is what a module reports back after Run.
type Result struct {
	Status  Status
	Message string
}

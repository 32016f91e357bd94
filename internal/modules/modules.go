package modules

import (
	"github.com/conciergehq/concierge/internal/module"
	"github.com/conciergehq/concierge/internal/modules/plan_execution"
	"github.com/conciergehq/concierge/internal/modules/plan_generation"
	"github.com/conciergehq/concierge/internal/modules/report"
	"github.com/conciergehq/concierge/internal/modules/task_intake"
)

// RegisterBuiltins installs all of the built-in module factories into the
// provided registry.
func RegisterBuiltins(reg *module.Registry) {
	if reg == nil {
		return
	}
	task_intake.Register(reg)
	plan_generation.Register(reg)
	plan_execution.Register(reg)
	report.Register(reg)
}

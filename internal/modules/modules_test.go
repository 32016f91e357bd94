package modules

import (
	"testing"

	"github.com/conciergehq/concierge/internal/module"
	"github.com/conciergehq/concierge/internal/workflow"
)

func TestRegisterBuiltinsCoversDefaultPipeline(t *testing.T) {
	reg := module.NewRegistry()
	RegisterBuiltins(reg)

	def := workflow.AssistantPipeline()
	for _, ref := range def.Modules {
		mod, err := reg.Resolve(ref.ModuleID, nil)
		if err != nil {
			t.Fatalf("resolve %s: %v", ref.ModuleID, err)
		}
		if mod.Info().ID != ref.ModuleID {
			t.Fatalf("module %s reports id %s", ref.ModuleID, mod.Info().ID)
		}
	}
}

func TestPlanExecutionIsExclusive(t *testing.T) {
	reg := module.NewRegistry()
	RegisterBuiltins(reg)
	mod, err := reg.Resolve("plan-execution", nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !mod.Info().RequiresExclusiveExecution() {
		t.Fatal("plan-execution must run exclusively")
	}
}

package engine

import (
	"path/filepath"
	"slices"
	"testing"

	"github.com/conciergehq/concierge/internal/module"
	"github.com/conciergehq/concierge/internal/workflow"
)

func TestAssistantPipelineModuleOrder(t *testing.T) {
	def := loadAssistantPipelineDefinition(t)
	want := []string{
		"task-intake",
		"plan-generation",
		"plan-execution",
		"report",
	}
	if got := def.ModuleIDs(); !slices.Equal(got, want) {
		t.Fatalf("assistant-task module order mismatch\nwant %v\ngot  %v", want, got)
	}
	assertDependencies := func(id string, expected []string) {
		if deps := def.Dependencies(id); !slices.Equal(deps, expected) {
			t.Fatalf("%s dependencies mismatch\nwant %v\ngot  %v", id, expected, deps)
		}
	}
	assertDependencies("plan-generation", []string{"task-intake"})
	assertDependencies("plan-execution", []string{"plan-generation"})
	assertDependencies("report", []string{"plan-execution"})
}

func TestAssistantPipelineYAMLMatchesBuiltin(t *testing.T) {
	fromFile := loadAssistantPipelineDefinition(t)
	builtin, err := workflow.AssistantPipeline().Normalized()
	if err != nil {
		t.Fatalf("normalize builtin: %v", err)
	}
	if fromFile.ID != builtin.ID {
		t.Fatalf("id mismatch: %s vs %s", fromFile.ID, builtin.ID)
	}
	if !slices.Equal(fromFile.ModuleIDs(), builtin.ModuleIDs()) {
		t.Fatalf("module ids mismatch\nfile    %v\nbuiltin %v", fromFile.ModuleIDs(), builtin.ModuleIDs())
	}
	if fromFile.Runtime.MaxParallel != builtin.Runtime.MaxParallel {
		t.Fatalf("max_parallel mismatch: %d vs %d", fromFile.Runtime.MaxParallel, builtin.Runtime.MaxParallel)
	}
}

func TestAssistantPipelineRunsToCompletionWithEngine(t *testing.T) {
	def := loadAssistantPipelineDefinition(t)
	ctx := newTestModuleContext(t)
	reg := module.NewRegistry()
	stubs := map[string]*stubModule{}
	for _, ref := range def.Modules {
		modID := ref.ModuleID
		if _, exists := stubs[modID]; exists {
			continue
		}
		stub := newStubModule(modID)
		stubs[modID] = stub
		instance := stub
		reg.MustRegister(modID, func(module.Config) (module.Module, error) {
			return instance, nil
		})
	}
	repo := NewRepository(ctx.Workflow)
	eng, err := New(reg, repo)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	state, err := eng.Start(ctx, StartRequest{Definition: def})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if len(state.Runnable) == 0 || state.Runnable[0] != def.Modules[0].InstanceID() {
		t.Fatalf("expected first module runnable, got %+v", state.Runnable)
	}
	for _, ref := range def.Modules {
		stubs[ref.ModuleID].setComplete(true)
		state, err = eng.Update(ctx, UpdateRequest{Results: []ModuleStatusUpdate{{
			ID:     ref.InstanceID(),
			Result: module.Result{Status: module.StatusCompleted},
		}}})
		if err != nil {
			t.Fatalf("update %s: %v", ref.InstanceID(), err)
		}
	}
	if state.Status != EngineStatusComplete {
		t.Fatalf("expected engine complete, got %s", state.Status)
	}
}

func loadAssistantPipelineDefinition(t *testing.T) workflow.PipelineDefinition {
	t.Helper()
	path := filepath.Join("..", "..", "..", "pipelines", "assistant-task.yaml")
	def, err := workflow.LoadDefinitionFile(path)
	if err != nil {
		t.Fatalf("load %s: %v", path, err)
	}
	return def
}

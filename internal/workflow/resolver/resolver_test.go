package resolver

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/conciergehq/concierge/internal/artifact"
	"github.com/conciergehq/concierge/internal/config"
	"github.com/conciergehq/concierge/internal/module"
	"github.com/conciergehq/concierge/internal/workflow"
)

// assistantChain mirrors the core pipeline shape: intake feeds planning,
// planning feeds execution.
func assistantChain(stubs map[string]*stubModule) (*Resolver, error) {
	reg := module.NewRegistry()
	for id, stub := range stubs {
		stub := stub
		reg.MustRegister(id, func(module.Config) (module.Module, error) {
			return stub, nil
		})
	}
	def := workflow.PipelineDefinition{
		ID: "assistant-task",
		Modules: []workflow.ModuleRef{
			{ID: "task-intake", ModuleID: "intake"},
			{ID: "plan-generation", ModuleID: "planning", DependsOn: []string{"task-intake"}},
			{ID: "plan-execution", ModuleID: "execution", DependsOn: []string{"plan-generation"}},
		},
	}
	return New(def, reg)
}

func TestRefreshClassifiesChain(t *testing.T) {
	res, err := assistantChain(map[string]*stubModule{
		"intake":    newStubModule("intake", true, nil),
		"planning":  newStubModule("planning", false, nil),
		"execution": newStubModule("execution", false, nil),
	})
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	ctx := newTestModuleContext(t)
	if err := res.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	for id, want := range map[string]NodeState{
		"task-intake":     NodeStateComplete,
		"plan-generation": NodeStateReady,
		"plan-execution":  NodeStateBlocked,
	} {
		if got := mustNode(t, res, id).State; got != want {
			t.Errorf("%s: state %s, want %s", id, got, want)
		}
	}

	execution := mustNode(t, res, "plan-execution")
	if len(execution.BlockedBy) != 1 || execution.BlockedBy[0] != "plan-generation" {
		t.Fatalf("plan-execution blocked by %v", execution.BlockedBy)
	}
	ready := res.Ready()
	if len(ready) != 1 || ready[0].ID != "plan-generation" {
		t.Fatalf("ready set: %#v", ready)
	}
}

func TestQueueWalksDependenciesFirst(t *testing.T) {
	res, err := assistantChain(map[string]*stubModule{
		"intake":    newStubModule("intake", false, nil),
		"planning":  newStubModule("planning", false, nil),
		"execution": newStubModule("execution", false, nil),
	})
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	if err := res.Refresh(newTestModuleContext(t)); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	queue, err := res.Queue("plan-execution")
	if err != nil {
		t.Fatalf("queue: %v", err)
	}
	got := make([]string, len(queue))
	for i, node := range queue {
		got[i] = node.ID
	}
	want := []string{"task-intake", "plan-generation", "plan-execution"}
	for i := range want {
		if i >= len(got) || got[i] != want[i] {
			t.Fatalf("queue order %v, want %v", got, want)
		}
	}

	if _, err := res.Queue("no-such-module"); err == nil {
		t.Fatal("expected error for unknown target")
	}
}

func TestQueueDropsCompletedModules(t *testing.T) {
	res, err := assistantChain(map[string]*stubModule{
		"intake":    newStubModule("intake", true, nil),
		"planning":  newStubModule("planning", true, nil),
		"execution": newStubModule("execution", false, nil),
	})
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	if err := res.Refresh(newTestModuleContext(t)); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	queue, err := res.Queue()
	if err != nil {
		t.Fatalf("queue: %v", err)
	}
	if len(queue) != 1 || queue[0].ID != "plan-execution" {
		t.Fatalf("expected only plan-execution queued, got %v", queue)
	}
}

func TestRefreshIsolatesModuleErrors(t *testing.T) {
	res, err := assistantChain(map[string]*stubModule{
		"intake":    newStubModule("intake", true, nil),
		"planning":  newStubModule("planning", false, errors.New("planner offline")),
		"execution": newStubModule("execution", false, nil),
	})
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	if err := res.Refresh(newTestModuleContext(t)); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	planning := mustNode(t, res, "plan-generation")
	if planning.State != NodeStateError {
		t.Fatalf("plan-generation state %s, want error", planning.State)
	}
	if planning.Err == nil || planning.Err.Error() != "planner offline" {
		t.Fatalf("plan-generation err: %v", planning.Err)
	}
	execution := mustNode(t, res, "plan-execution")
	if execution.State != NodeStateBlocked {
		t.Fatalf("plan-execution state %s, want blocked", execution.State)
	}
}

func TestRefreshDemotesModuleWithForeignArtifact(t *testing.T) {
	stubs := map[string]*stubModule{
		"intake":    newStubModule("intake", true, nil),
		"planning":  newStubModule("planning", false, nil),
		"execution": newStubModule("execution", false, nil),
	}
	stubs["intake"].outputs = []artifact.ArtifactRef{artifact.TaskDoc}
	res, err := assistantChain(stubs)
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	ctx := newTestModuleContext(t)
	meta := artifact.Metadata{
		ArtifactID: artifact.TaskDoc.ID,
		ModuleID:   "some-other-module",
		Version:    stubs["intake"].info.Version,
		Workflow:   ctx.Workflow.Dir(),
	}
	if err := ctx.Artifacts.Write(artifact.TaskDoc, []byte("groceries for the week"), meta); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	if err := res.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	intake := mustNode(t, res, "task-intake")
	if intake.State != NodeStateReady {
		t.Fatalf("task-intake state %s, want ready after demotion", intake.State)
	}
	report, ok := intake.Artifacts[artifact.TaskDoc.ID]
	if !ok || report.Status != module.ArtifactStatusInvalid {
		t.Fatalf("task doc report: %+v", report)
	}
}

func newTestModuleContext(t *testing.T) *module.ModuleContext {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{ProjectDir: dir, ConciergeProjectDir: filepath.Join(dir, ".concierge")}
	wf := workflow.New(cfg.ConciergeProjectDir)
	if err := wf.Initialize(); err != nil {
		t.Fatalf("initialize workflow: %v", err)
	}
	return &module.ModuleContext{
		Config:    cfg,
		Workflow:  wf,
		Artifacts: artifact.NewStore(wf),
	}
}

func mustNode(t *testing.T, res *Resolver, id string) *Node {
	t.Helper()
	node, ok := res.Node(id)
	if !ok {
		t.Fatalf("missing node %s", id)
	}
	return node
}

type stubModule struct {
	info     module.Info
	complete bool
	err      error
	outputs  []artifact.ArtifactRef
}

func newStubModule(id string, complete bool, err error) *stubModule {
	return &stubModule{
		info:     module.Info{ID: id, Name: "stub " + id, Version: "1.0.0"},
		complete: complete,
		err:      err,
	}
}

func (m *stubModule) Info() module.Info { return m.info }

func (m *stubModule) Inputs() []artifact.ArtifactRef { return nil }

func (m *stubModule) Outputs() []artifact.ArtifactRef {
	out := make([]artifact.ArtifactRef, len(m.outputs))
	copy(out, m.outputs)
	return out
}

func (m *stubModule) IsComplete(*module.ModuleContext) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	return m.complete, nil
}

func (m *stubModule) Run(*module.ModuleContext) (module.Result, error) {
	return module.Result{Status: module.StatusCompleted}, nil
}

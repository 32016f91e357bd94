package module

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/conciergehq/concierge/internal/artifact"
	"github.com/conciergehq/concierge/internal/config"
	"github.com/conciergehq/concierge/internal/events"
	"github.com/conciergehq/concierge/internal/workflow"
)

type fakeModule struct {
	Base
}

func (fakeModule) IsComplete(ctx *ModuleContext) (bool, error) { return false, nil }
func (fakeModule) Run(ctx *ModuleContext) (Result, error) {
	return Result{Status: StatusCompleted}, nil
}

func validInfo() Info {
	return Info{ID: "task-intake", Name: "Task Intake", Version: "1.0.0"}
}

func TestInfoValidate(t *testing.T) {
	if err := validInfo().Validate(); err != nil {
		t.Fatalf("valid info rejected: %v", err)
	}
	cases := map[string]Info{
		"missing id":      {Name: "n", Version: "1.0.0"},
		"missing name":    {ID: "x", Version: "1.0.0"},
		"missing version": {ID: "x", Name: "n"},
		"negative slots":  {ID: "x", Name: "n", Version: "1.0.0", Concurrency: ConcurrencyProfile{Slots: -1}},
	}
	for name, info := range cases {
		if err := info.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestSlotCostDefaultsToOne(t *testing.T) {
	info := validInfo()
	if info.SlotCost() != 1 {
		t.Fatalf("slot cost %d", info.SlotCost())
	}
	info.Concurrency.Slots = 3
	if info.SlotCost() != 3 {
		t.Fatalf("slot cost %d", info.SlotCost())
	}
}

func TestRegistryResolve(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister("task-intake", func(cfg Config) (Module, error) {
		m := &fakeModule{Base: NewBase(validInfo())}
		return m, nil
	})

	mod, err := reg.Resolve("task-intake", nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if mod.Info().Name != "Task Intake" {
		t.Fatalf("wrong module %+v", mod.Info())
	}
	if _, err := reg.Resolve("missing", nil); err == nil {
		t.Fatal("expected unknown id error")
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	reg := NewRegistry()
	factory := func(cfg Config) (Module, error) {
		return &fakeModule{Base: NewBase(validInfo())}, nil
	}
	if err := reg.Register("task-intake", factory); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.Register("task-intake", factory); err == nil {
		t.Fatal("expected duplicate error")
	}
	if err := reg.Register("", factory); err == nil {
		t.Fatal("expected empty id error")
	}
}

func TestResolveRejectsInvalidInfo(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister("broken", func(cfg Config) (Module, error) {
		return &fakeModule{Base: NewBase(Info{ID: "broken"})}, nil
	})
	if _, err := reg.Resolve("broken", nil); err == nil {
		t.Fatal("expected info validation error")
	}
}

func TestRegistryIDsAreSorted(t *testing.T) {
	reg := NewRegistry()
	factory := func(cfg Config) (Module, error) {
		return &fakeModule{Base: NewBase(validInfo())}, nil
	}
	reg.MustRegister("report", factory)
	reg.MustRegister("plan-generation", factory)
	ids := reg.IDs()
	if len(ids) != 2 || ids[0] != "plan-generation" || ids[1] != "report" {
		t.Fatalf("unexpected ids %v", ids)
	}
}

func TestBaseCopiesArtifactRefs(t *testing.T) {
	base := NewBase(validInfo())
	base.SetInputs(artifact.TaskDoc)
	base.SetOutputs(artifact.PlanDoc, artifact.PlanReadyMarker)

	inputs := base.Inputs()
	inputs[0] = artifact.ReportDoc
	if base.Inputs()[0].ID != artifact.TaskDoc.ID {
		t.Fatal("inputs slice must be a copy")
	}
	if len(base.Outputs()) != 2 {
		t.Fatalf("outputs %v", base.Outputs())
	}
}

func TestContextWithMethodsClone(t *testing.T) {
	wf := workflow.New(filepath.Join(t.TempDir(), ".concierge"))
	ctx := NewContext(&config.Config{}, wf, nil)

	tasked := ctx.WithTask("buy milk").WithMode("cli")
	if tasked.Task != "buy milk" || tasked.OriginMode != "cli" {
		t.Fatalf("clone fields %+v", tasked)
	}
	if ctx.Task != "" || ctx.OriginMode != "" {
		t.Fatal("original context mutated")
	}
	if tasked.Artifacts == nil {
		t.Fatal("artifact store not carried into clone")
	}
}

func TestNotifyWithoutRouterIsSafe(t *testing.T) {
	ctx := &ModuleContext{}
	ctx.Notify("plan-generation", events.TypeStatus, map[string]string{"content": "ok"})
}

func TestNotifyRoutesEvents(t *testing.T) {
	router := events.NewRouter()
	sub := router.Subscribe("plan-generation")
	defer sub.Close()

	ctx := &ModuleContext{Events: router}
	ctx.Notify("plan-generation", events.TypeStatus, map[string]string{"content": "Planning..."})
	ev := <-sub.Events
	if ev.Type != events.TypeStatus || ev.Text() != "Planning..." {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestFingerprintNoteKey(t *testing.T) {
	if got := FingerprintNoteKey("plan-doc"); got != "fingerprint:plan-doc" {
		t.Fatalf("unexpected key %q", got)
	}
	if got := FingerprintNoteKey("  "); !strings.HasSuffix(got, "default") {
		t.Fatalf("unexpected fallback %q", got)
	}
}

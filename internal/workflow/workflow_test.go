package workflow

import (
	"os"
	"path/filepath"
	"testing"
)

func initialized(t *testing.T) *Workflow {
	t.Helper()
	wf := New(filepath.Join(t.TempDir(), ".concierge"))
	if err := wf.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return wf
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("touch %s: %v", path, err)
	}
}

func TestInitializeCreatesRunDirectories(t *testing.T) {
	wf := initialized(t)
	for _, dir := range []string{wf.TaskDir(), wf.PlanDir(), wf.WorkDir(), wf.OutputDir(), wf.StateDir(), wf.BrowserDir()} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Errorf("missing %s: %v", dir, err)
		}
	}
}

func TestPhaseChecks(t *testing.T) {
	wf := initialized(t)
	if wf.TaskReady() || wf.PlanningComplete() || wf.ExecutionComplete() {
		t.Fatal("fresh workspace must report no progress")
	}

	touch(t, wf.TaskPath())
	if !wf.TaskReady() {
		t.Fatal("task document not detected")
	}

	touch(t, wf.PlanPath())
	touch(t, wf.ToolManifestPath())
	if wf.PlanningComplete() {
		t.Fatal("planning must require the ready marker")
	}
	if err := wf.WriteMarker(wf.PlanDir(), MarkerPlanReady); err != nil {
		t.Fatalf("write marker: %v", err)
	}
	if !wf.PlanningComplete() {
		t.Fatal("planning not detected")
	}

	touch(t, wf.TranscriptPath())
	if err := wf.WriteMarker(wf.WorkDir(), MarkerWorkComplete); err != nil {
		t.Fatalf("write marker: %v", err)
	}
	if !wf.ExecutionComplete() {
		t.Fatal("execution not detected")
	}
}

func TestMarkers(t *testing.T) {
	wf := initialized(t)
	if wf.HasMarker(wf.WorkDir(), MarkerWorkInProgress) {
		t.Fatal("marker reported before write")
	}
	if err := wf.WriteMarker(wf.WorkDir(), MarkerWorkInProgress); err != nil {
		t.Fatalf("write marker: %v", err)
	}
	if !wf.HasMarker(wf.WorkDir(), MarkerWorkInProgress) {
		t.Fatal("marker not found after write")
	}
}

func TestResetKeepsBrowserProfile(t *testing.T) {
	wf := initialized(t)
	touch(t, wf.TaskPath())
	touch(t, wf.PlanPath())
	profile := filepath.Join(wf.BrowserDir(), "Default")
	if err := os.MkdirAll(profile, 0o755); err != nil {
		t.Fatalf("mkdir profile: %v", err)
	}
	configPath := filepath.Join(wf.Dir(), "config.yaml")
	touch(t, configPath)

	if err := wf.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if wf.TaskReady() {
		t.Fatal("task document survived reset")
	}
	if _, err := os.Stat(wf.PlanDir()); !os.IsNotExist(err) {
		t.Fatal("plan directory survived reset")
	}
	if _, err := os.Stat(profile); err != nil {
		t.Fatal("browser profile must survive reset")
	}
	if _, err := os.Stat(configPath); err != nil {
		t.Fatal("config.yaml must survive reset")
	}
}

func TestLoadDefinitionRelative(t *testing.T) {
	base := t.TempDir()
	yaml := `
id: assistant-task
name: Assistant Task
modules:
  - id: intake
    module: task-intake
  - id: plan
    module: plan-generation
    depends_on: [intake]
`
	if err := os.WriteFile(filepath.Join(base, "assistant-task.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatalf("write definition: %v", err)
	}
	def, err := LoadDefinitionRelative(base, "assistant-task.yaml")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if def.ID != "assistant-task" || len(def.Modules) != 2 {
		t.Fatalf("unexpected definition %+v", def)
	}
}

func TestParseDefinitionYAMLRejectsEmpty(t *testing.T) {
	if _, err := ParseDefinitionYAML(nil); err == nil {
		t.Fatal("expected error for empty payload")
	}
	if _, err := ParseDefinitionYAML([]byte("   \n")); err == nil {
		t.Fatal("expected error for blank payload")
	}
}

package tui

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/conciergehq/concierge/internal/events"
	"github.com/conciergehq/concierge/internal/workflow"
)

func testWorkflow(t *testing.T) *workflow.Workflow {
	t.Helper()
	wf := workflow.New(filepath.Join(t.TempDir(), ".concierge"))
	if err := wf.Initialize(); err != nil {
		t.Fatalf("initialize workflow: %v", err)
	}
	return wf
}

func TestStagesFromDefinition(t *testing.T) {
	stages := StagesFromDefinition(workflow.AssistantPipeline())
	if len(stages) != 4 {
		t.Fatalf("unexpected stage count %d", len(stages))
	}
	if stages[0].ModuleID != workflow.ModuleTaskIntake || stages[0].Title != "Task Intake" {
		t.Fatalf("unexpected first stage %+v", stages[0])
	}
}

func TestStageDoneTracksMarkers(t *testing.T) {
	wf := testWorkflow(t)
	app := NewApp(Options{Workflow: wf, Stages: StagesFromDefinition(workflow.AssistantPipeline())})

	if app.stageDone(workflow.ModulePlanExecution) {
		t.Fatal("execution should not be done in a fresh workspace")
	}
	if err := wf.WriteMarker(wf.WorkDir(), workflow.MarkerWorkComplete); err != nil {
		t.Fatalf("write marker: %v", err)
	}
	if !app.stageDone(workflow.ModulePlanExecution) {
		t.Fatal("execution marker not reflected")
	}
}

func TestRenderEventFormatsToolCalls(t *testing.T) {
	line := renderEvent(events.New(events.TypeToolCall, "plan-execution", map[string]string{
		"function":  "find_product_at_HEB",
		"arguments": `{"product_query":"eggs"}`,
	}))
	if !strings.Contains(line, "find_product_at_HEB") {
		t.Fatalf("missing function name: %q", line)
	}
	if !strings.Contains(line, "eggs") {
		t.Fatalf("missing arguments: %q", line)
	}
}

func TestRenderEventUsesFirstLineOfContent(t *testing.T) {
	line := renderEvent(events.New(events.TypeStatus, "plan-generation", map[string]string{
		"content": "Plan ready.\nStep two follows.",
	}))
	if line != "Plan ready." {
		t.Fatalf("unexpected line %q", line)
	}
}

func TestFeedIsBounded(t *testing.T) {
	wf := testWorkflow(t)
	app := NewApp(Options{Workflow: wf, Stages: StagesFromDefinition(workflow.AssistantPipeline())})

	for i := 0; i < feedCapacity*2; i++ {
		app.Update(eventMsg(events.New(events.TypeStatus, "plan-execution", map[string]string{
			"content": "status update",
		})))
	}
	if len(app.feed) != feedCapacity {
		t.Fatalf("feed not bounded: %d", len(app.feed))
	}
}

func TestTruncateAddsEllipsis(t *testing.T) {
	long := strings.Repeat("a", 80)
	got := truncate(long, 10)
	if got != strings.Repeat("a", 10)+"…" {
		t.Fatalf("unexpected truncation %q", got)
	}
	if truncate("short", 10) != "short" {
		t.Fatal("short strings must pass through")
	}
}

func TestTruncateKeepsMultiByteRunesWhole(t *testing.T) {
	long := strings.Repeat("héb", 10)
	got := truncate(long, 5)
	if got != "hébhé…" {
		t.Fatalf("unexpected truncation %q", got)
	}
	if strings.ContainsRune(got, '�') {
		t.Fatalf("truncation split a rune: %q", got)
	}
}

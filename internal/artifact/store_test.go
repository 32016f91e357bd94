package artifact

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

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

func testMetadata(ref ArtifactRef) Metadata {
	return Metadata{
		ArtifactID: ref.ID,
		ModuleID:   "plan-generation",
		Version:    "1.0.0",
		CreatedAt:  time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestCheckReportsMissing(t *testing.T) {
	store := NewStore(testWorkflow(t))
	result, err := store.Check(PlanDoc)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if result.State != StateMissing {
		t.Fatalf("expected missing, got %s", result.State)
	}
}

func TestWriteAndCheckDocumentRoundTrip(t *testing.T) {
	store := NewStore(testWorkflow(t))
	meta := testMetadata(PlanDoc)
	if err := store.Write(PlanDoc, []byte("# Plan\n\n1. step\n"), meta); err != nil {
		t.Fatalf("write: %v", err)
	}
	result, err := store.Check(PlanDoc)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if result.State != StateReady {
		t.Fatalf("expected ready, got %s", result.State)
	}
	if result.Metadata == nil || result.Metadata.ModuleID != "plan-generation" {
		t.Fatalf("metadata not preserved: %+v", result.Metadata)
	}
}

func TestCheckRejectsDocumentWithoutFrontMatter(t *testing.T) {
	wf := testWorkflow(t)
	store := NewStore(wf)
	if err := os.WriteFile(wf.PlanPath(), []byte("# Plan\n\nbare document\n"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	result, err := store.Check(PlanDoc)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if result.State != StateInvalid {
		t.Fatalf("expected invalid, got %s", result.State)
	}
}

func TestCheckRejectsMismatchedArtifactID(t *testing.T) {
	wf := testWorkflow(t)
	store := NewStore(wf)
	meta := testMetadata(TaskDoc)
	body, err := WriteFrontMatter(meta, []byte("# Task\n"))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if err := os.WriteFile(wf.PlanPath(), body, 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	result, err := store.Check(PlanDoc)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if result.State != StateInvalid {
		t.Fatalf("expected invalid, got %s", result.State)
	}
}

func TestWriteJSONInjectsMetadataBlock(t *testing.T) {
	wf := testWorkflow(t)
	store := NewStore(wf)
	payload, _ := json.Marshal(map[string]any{"tools": map[string]string{"echo()": "Echoes."}})
	if err := store.Write(ToolManifestJSON, payload, testMetadata(ToolManifestJSON)); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := os.ReadFile(wf.ToolManifestPath())
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := decoded["_concierge"]; !ok {
		t.Fatalf("metadata block missing: %v", decoded)
	}
	result, err := store.Check(ToolManifestJSON)
	if err != nil || result.State != StateReady {
		t.Fatalf("manifest not ready: %s %v", result.State, err)
	}
}

func TestWriteMarkerCreatesEmptyFile(t *testing.T) {
	wf := testWorkflow(t)
	store := NewStore(wf)
	if err := store.Write(PlanReadyMarker, nil, Metadata{}); err != nil {
		t.Fatalf("write marker: %v", err)
	}
	if !wf.HasMarker(wf.PlanDir(), workflow.MarkerPlanReady) {
		t.Fatal("marker file missing")
	}
	result, err := store.Check(PlanReadyMarker)
	if err != nil || result.State != StateReady {
		t.Fatalf("marker not ready: %s %v", result.State, err)
	}
}

func TestParseFrontMatterErrors(t *testing.T) {
	if _, _, err := ParseFrontMatter(nil); !errors.Is(err, ErrMissingFrontMatter) {
		t.Fatalf("expected missing frontmatter, got %v", err)
	}
	if _, _, err := ParseFrontMatter([]byte("# Plan\n")); !errors.Is(err, ErrMissingFrontMatter) {
		t.Fatalf("expected missing frontmatter, got %v", err)
	}
	if _, _, err := ParseFrontMatter([]byte("---\nconcierge:\n  artifact: x\n")); !errors.Is(err, ErrMalformedFrontMatter) {
		t.Fatalf("expected malformed frontmatter, got %v", err)
	}
}

func TestFrontMatterRoundTripPreservesBody(t *testing.T) {
	meta := testMetadata(TranscriptDoc)
	meta.Inputs = []string{PlanDoc.ID}
	rendered, err := WriteFrontMatter(meta, []byte("# Execution Transcript\n"))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	parsed, body, err := ParseFrontMatter(rendered)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.ArtifactID != TranscriptDoc.ID || parsed.Version != "1.0.0" {
		t.Fatalf("metadata mangled: %+v", parsed)
	}
	if len(parsed.Inputs) != 1 || parsed.Inputs[0] != PlanDoc.ID {
		t.Fatalf("inputs mangled: %v", parsed.Inputs)
	}
	if !strings.Contains(string(body), "# Execution Transcript") {
		t.Fatalf("body mangled: %q", body)
	}
}

func TestLookupFindsCanonicalRefs(t *testing.T) {
	for _, id := range []string{TaskDoc.ID, PlanDoc.ID, TranscriptDoc.ID, ShoppingListDoc.ID, ReportDoc.ID} {
		if _, ok := Lookup(id); !ok {
			t.Errorf("canonical ref %s not registered", id)
		}
	}
}

package runtime

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/conciergehq/concierge/internal/artifact"
	"github.com/conciergehq/concierge/internal/config"
	"github.com/conciergehq/concierge/internal/module"
	"github.com/conciergehq/concierge/internal/workflow"
)

func testContext(t *testing.T) *module.ModuleContext {
	t.Helper()
	wf := workflow.New(filepath.Join(t.TempDir(), ".concierge"))
	if err := wf.Initialize(); err != nil {
		t.Fatalf("initialize workflow: %v", err)
	}
	return module.NewContext(&config.Config{}, wf, nil)
}

func TestValidateContext(t *testing.T) {
	if err := ValidateContext("task-intake", nil); err == nil {
		t.Fatal("expected nil context error")
	}
	ctx := testContext(t)
	if err := ValidateContext("task-intake", ctx); err != nil {
		t.Fatalf("valid context rejected: %v", err)
	}
	ctx.Artifacts = nil
	if err := ValidateContext("task-intake", ctx); err == nil {
		t.Fatal("expected missing store error")
	}
}

func TestEnsureDocumentMissing(t *testing.T) {
	ctx := testContext(t)
	ready, err := EnsureDocument(ctx, "plan-generation", "1.0.0", artifact.PlanDoc)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if ready {
		t.Fatal("missing document reported ready")
	}
}

func TestEnsureDocumentStampsBareFile(t *testing.T) {
	ctx := testContext(t)
	path := artifact.PlanDoc.Path(ctx.Workflow)
	if err := os.WriteFile(path, []byte("# Plan\n\n1. step\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	// First pass stamps the bare file with metadata.
	ready, err := EnsureDocument(ctx, "plan-generation", "1.0.0", artifact.PlanDoc, WithInputs(artifact.TaskDoc))
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if ready {
		t.Fatal("stamping pass must not report ready")
	}

	ready, err = EnsureDocument(ctx, "plan-generation", "1.0.0", artifact.PlanDoc)
	if err != nil {
		t.Fatalf("ensure second pass: %v", err)
	}
	if !ready {
		t.Fatal("stamped document not ready")
	}
	result, err := ctx.Artifacts.Check(artifact.PlanDoc)
	if err != nil || result.Metadata == nil {
		t.Fatalf("check: %v %+v", err, result)
	}
	if len(result.Metadata.Inputs) != 1 || result.Metadata.Inputs[0] != artifact.TaskDoc.ID {
		t.Fatalf("inputs not recorded: %v", result.Metadata.Inputs)
	}
}

func TestEnsureDocumentRestampsOtherModuleOutput(t *testing.T) {
	ctx := testContext(t)
	meta := artifact.Metadata{ArtifactID: artifact.PlanDoc.ID, ModuleID: "someone-else", Version: "0.9.0"}
	if err := ctx.Artifacts.Write(artifact.PlanDoc, []byte("# Plan\n"), meta); err != nil {
		t.Fatalf("seed: %v", err)
	}
	ready, err := EnsureDocument(ctx, "plan-generation", "1.0.0", artifact.PlanDoc)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if ready {
		t.Fatal("foreign stamp must trigger a rewrite pass")
	}
	result, err := ctx.Artifacts.Check(artifact.PlanDoc)
	if err != nil || result.Metadata == nil {
		t.Fatalf("check: %v", err)
	}
	if result.Metadata.ModuleID != "plan-generation" || result.Metadata.Version != "1.0.0" {
		t.Fatalf("metadata not restamped: %+v", result.Metadata)
	}
}

func TestEnsureDocumentsStopsAtFirstPending(t *testing.T) {
	ctx := testContext(t)
	refs := []artifact.ArtifactRef{artifact.TaskDoc, artifact.PlanDoc}
	meta := artifact.Metadata{ArtifactID: artifact.TaskDoc.ID, ModuleID: "task-intake", Version: "1.0.0"}
	if err := ctx.Artifacts.Write(artifact.TaskDoc, []byte("# Task\n"), meta); err != nil {
		t.Fatalf("seed: %v", err)
	}
	ready, err := EnsureDocuments(ctx, "task-intake", "1.0.0", refs)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if ready {
		t.Fatal("pending plan document reported ready")
	}
}

func TestEnsureMarker(t *testing.T) {
	ctx := testContext(t)
	ready, err := EnsureMarker(ctx, "plan-generation", "1.0.0", artifact.PlanReadyMarker)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if ready {
		t.Fatal("missing marker reported ready")
	}
	if err := ctx.Artifacts.Write(artifact.PlanReadyMarker, nil, artifact.Metadata{}); err != nil {
		t.Fatalf("write marker: %v", err)
	}
	ready, err = EnsureMarker(ctx, "plan-generation", "1.0.0", artifact.PlanReadyMarker)
	if err != nil || !ready {
		t.Fatalf("marker not ready: %v %v", ready, err)
	}
}

func TestWithFingerprintRecordsNote(t *testing.T) {
	meta := artifact.Metadata{}
	WithFingerprint(artifact.PlanDoc, "abc123")(&meta)
	key := module.FingerprintNoteKey(artifact.PlanDoc.ID)
	if meta.Notes[key] != "abc123" {
		t.Fatalf("fingerprint note missing: %v", meta.Notes)
	}
	WithFingerprint(artifact.PlanDoc, "  ")(&meta)
	if meta.Notes[key] != "abc123" {
		t.Fatal("blank fingerprint must not overwrite")
	}
}

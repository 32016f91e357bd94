// Package artifact defines the files modules exchange: each artifact has a
// stable ID, a storage kind, and a resolver mapping it to its place in the
// run's .concierge tree. The store stamps provenance metadata into every
// artifact so the resolver can audit freshness across runs.
package artifact

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/conciergehq/concierge/internal/workflow"
)

// Kind is the storage shape of an artifact.
type Kind string

const (
	// KindDocument is a markdown file with a YAML frontmatter stamp.
	KindDocument Kind = "document"
	// KindJSON is a JSON file carrying a _concierge metadata block.
	KindJSON Kind = "json"
	// KindMarker is an empty file whose existence is the signal.
	KindMarker Kind = "marker"
	// KindDirectory is a directory that must exist.
	KindDirectory Kind = "directory"
)

// PathResolver maps an artifact to its absolute path for a run.
type PathResolver func(*workflow.Workflow) string

// ArtifactRef is the declared identity of an artifact.
type ArtifactRef struct {
	ID          string
	Name        string
	Description string
	Kind        Kind
	Optional    bool
	path        PathResolver
}

// Path resolves the artifact's location within the given run.
func (r ArtifactRef) Path(wf *workflow.Workflow) string {
	if wf == nil || r.path == nil {
		return ""
	}
	return filepath.Clean(r.path(wf))
}

// Validate reports whether the reference is usable.
func (r ArtifactRef) Validate() error {
	switch {
	case r.ID == "":
		return fmt.Errorf("artifact: ref without an id")
	case r.Kind == "":
		return fmt.Errorf("artifact: %s has no kind", r.ID)
	case r.path == nil:
		return fmt.Errorf("artifact: %s has no path resolver", r.ID)
	}
	return nil
}

// Metadata is the provenance stamp written into every document and JSON
// artifact: which module produced it, at what version, from which inputs.
type Metadata struct {
	ArtifactID string
	ModuleID   string
	Version    string
	Workflow   string
	Inputs     []string
	CreatedAt  time.Time
	Checksum   string
	Notes      map[string]string
}

// WithDefaults fills in the artifact ID and creation time if absent.
func (m Metadata) WithDefaults(ref ArtifactRef, now time.Time) Metadata {
	stamped := m
	if stamped.ArtifactID == "" {
		stamped.ArtifactID = ref.ID
	}
	if stamped.CreatedAt.IsZero() {
		stamped.CreatedAt = now
	}
	stamped.CreatedAt = stamped.CreatedAt.UTC()
	return stamped
}

// ValidateFor checks the stamp against the artifact it claims to describe.
func (m Metadata) ValidateFor(ref ArtifactRef) error {
	switch {
	case m.ArtifactID != ref.ID:
		return fmt.Errorf("artifact: stamp id %s does not match %s", m.ArtifactID, ref.ID)
	case m.ModuleID == "":
		return fmt.Errorf("artifact: stamp for %s has no module id", ref.ID)
	case m.Version == "":
		return fmt.Errorf("artifact: stamp for %s has no version", ref.ID)
	}
	return nil
}

// State is what Check found on disk.
type State string

const (
	StateMissing State = "missing"
	StateReady   State = "ready"
	StateInvalid State = "invalid"
	StateError   State = "error"
)

// CheckResult is the outcome of a Store.Check call.
type CheckResult struct {
	Ref      ArtifactRef
	Path     string
	State    State
	Metadata *Metadata
	Err      error
}

var refs = map[string]ArtifactRef{}

// Lookup finds a registered artifact reference by ID.
func Lookup(id string) (ArtifactRef, bool) {
	ref, ok := refs[id]
	return ref, ok
}

func register(kind Kind, id, name, desc string, resolver PathResolver) ArtifactRef {
	ref := ArtifactRef{
		ID:          id,
		Name:        name,
		Description: desc,
		Kind:        kind,
		path:        resolver,
	}
	refs[id] = ref
	return ref
}

// Canonical artifacts of the assistant task pipeline, in pipeline order.
var (
	TaskDoc = register(KindDocument, "task-doc", "Task Brief", "TASK.md holding the user's task text",
		func(wf *workflow.Workflow) string { return wf.TaskPath() })

	PlanDoc = register(KindDocument, "plan-doc", "Execution Plan", "PLAN.md produced by the planner agent",
		func(wf *workflow.Workflow) string { return wf.PlanPath() })
	ToolManifestJSON = register(KindJSON, "tool-manifest", "Tool Manifest", "tools.json describing the tools offered to the planner",
		func(wf *workflow.Workflow) string { return wf.ToolManifestPath() })
	PlanReadyMarker = register(KindMarker, "plan-ready", "Plan Ready Marker", "Marker created once the planner produced an actionable plan",
		func(wf *workflow.Workflow) string { return wf.PlanReadyPath() })

	TranscriptDoc = register(KindDocument, "transcript-doc", "Execution Transcript", "TRANSCRIPT.md recording the executor conversation and tool calls",
		func(wf *workflow.Workflow) string { return wf.TranscriptPath() })
	WorkInProgressMarker = register(KindMarker, "work-in-progress", "Work In Progress Marker", "Marker created while the executor agent is actively running",
		func(wf *workflow.Workflow) string { return wf.WorkInProgressPath() })
	ExecutionCompleteMarker = register(KindMarker, "work-complete", "Execution Complete Marker", "Marker written after the executor signaled completion",
		func(wf *workflow.Workflow) string { return wf.WorkCompletePath() })

	ShoppingListDoc = register(KindDocument, "shopping-list", "Shopping List", "SHOPPING_LIST.md with the products selected during execution",
		func(wf *workflow.Workflow) string { return wf.ShoppingListPath() })
	ReportDoc = register(KindDocument, "report-doc", "Task Report", "REPORT.md summarizing what the assistant did",
		func(wf *workflow.Workflow) string { return wf.ReportPath() })
	ReportDoneMarker = register(KindMarker, "report-done", "Report Done Marker", "Marker created after report generation finished",
		func(wf *workflow.Workflow) string { return wf.ReportDonePath() })
	OutputDirectory = register(KindDirectory, "output-dir", "Output Directory", "output folder holding user-facing results",
		func(wf *workflow.Workflow) string { return wf.OutputDir() })
)

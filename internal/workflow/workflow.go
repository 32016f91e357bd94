// Package workflow names the on-disk layout of an assistant run. Every
// document, marker, and directory the pipeline touches lives under
// .concierge/, so a task survives a process restart.
package workflow

import (
	"os"
	"path/filepath"
)

// Directory names within .concierge/
const (
	TaskDirName    = "task"
	PlanDirName    = "plan"
	WorkDirName    = "work"
	OutputDirName  = "output"
	StateDirName   = "state"
	BrowserDirName = "browser"
)

// Task intake files (in .concierge/task/)
const (
	FileTask = "TASK.md"
)

// Planning output files (in .concierge/plan/)
const (
	FilePlan      = "PLAN.md"
	FileToolsJSON = "tools.json"
)

// Execution files (in .concierge/work/)
const (
	FileTranscript = "TRANSCRIPT.md"
)

// Output files (in .concierge/output/)
const (
	FileShoppingList = "SHOPPING_LIST.md"
	FileReport       = "REPORT.md"
)

// Phase markers. Each is an empty file whose presence records that a
// pipeline phase finished.
const (
	MarkerPlanReady      = ".plan-ready"
	MarkerWorkInProgress = ".in-progress"
	MarkerWorkComplete   = ".complete"
	MarkerReportDone     = ".report-done"
)

// Workflow resolves paths inside one assistant run's .concierge directory.
type Workflow struct {
	conciergeDir string
}

// New wraps an existing or to-be-created .concierge directory.
func New(conciergeDir string) *Workflow {
	return &Workflow{conciergeDir: conciergeDir}
}

// Dir returns the base .concierge directory path
func (w *Workflow) Dir() string {
	return w.conciergeDir
}

// TaskDir returns the path to the task directory (.concierge/task/)
func (w *Workflow) TaskDir() string {
	return filepath.Join(w.conciergeDir, TaskDirName)
}

// PlanDir returns the path to the plan directory (.concierge/plan/)
func (w *Workflow) PlanDir() string {
	return filepath.Join(w.conciergeDir, PlanDirName)
}

// WorkDir returns the path to the work directory (.concierge/work/)
func (w *Workflow) WorkDir() string {
	return filepath.Join(w.conciergeDir, WorkDirName)
}

// OutputDir returns the path to the output directory (.concierge/output/)
func (w *Workflow) OutputDir() string {
	return filepath.Join(w.conciergeDir, OutputDirName)
}

// StateDir returns the path to the engine state directory (.concierge/state/)
func (w *Workflow) StateDir() string {
	return filepath.Join(w.conciergeDir, StateDirName)
}

// BrowserDir returns the persistent browser profile directory
func (w *Workflow) BrowserDir() string {
	return filepath.Join(w.conciergeDir, BrowserDirName)
}

// TaskPath returns the path to TASK.md
func (w *Workflow) TaskPath() string {
	return filepath.Join(w.TaskDir(), FileTask)
}

// PlanPath returns the path to PLAN.md
func (w *Workflow) PlanPath() string {
	return filepath.Join(w.PlanDir(), FilePlan)
}

// ToolManifestPath returns the path to tools.json
func (w *Workflow) ToolManifestPath() string {
	return filepath.Join(w.PlanDir(), FileToolsJSON)
}

// PlanReadyPath returns the marker path set once planning concluded
func (w *Workflow) PlanReadyPath() string {
	return filepath.Join(w.PlanDir(), MarkerPlanReady)
}

// TranscriptPath returns the path to TRANSCRIPT.md
func (w *Workflow) TranscriptPath() string {
	return filepath.Join(w.WorkDir(), FileTranscript)
}

// WorkInProgressPath returns the marker path for an active execution
func (w *Workflow) WorkInProgressPath() string {
	return filepath.Join(w.WorkDir(), MarkerWorkInProgress)
}

// WorkCompletePath returns the marker path for a finished execution
func (w *Workflow) WorkCompletePath() string {
	return filepath.Join(w.WorkDir(), MarkerWorkComplete)
}

// ShoppingListPath returns the path to SHOPPING_LIST.md
func (w *Workflow) ShoppingListPath() string {
	return filepath.Join(w.OutputDir(), FileShoppingList)
}

// ReportPath returns the path to REPORT.md
func (w *Workflow) ReportPath() string {
	return filepath.Join(w.OutputDir(), FileReport)
}

// ReportDonePath returns the marker path set after report generation
func (w *Workflow) ReportDonePath() string {
	return filepath.Join(w.OutputDir(), MarkerReportDone)
}

// TaskReady returns true once the task intake document exists
func (w *Workflow) TaskReady() bool {
	return fileExistsAt(w.TaskPath())
}

// PlanningComplete returns true if the plan and its marker exist
func (w *Workflow) PlanningComplete() bool {
	return fileExistsAt(w.PlanPath()) &&
		fileExistsAt(w.ToolManifestPath()) &&
		fileExistsAt(w.PlanReadyPath())
}

// ExecutionComplete returns true once the executor finished a plan
func (w *Workflow) ExecutionComplete() bool {
	return fileExistsAt(w.TranscriptPath()) &&
		fileExistsAt(w.WorkCompletePath())
}

func fileExistsAt(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Initialize creates every run directory that does not exist yet.
func (w *Workflow) Initialize() error {
	for _, dir := range []string{
		w.Dir(), w.TaskDir(), w.PlanDir(), w.WorkDir(),
		w.OutputDir(), w.StateDir(), w.BrowserDir(),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// WriteMarker drops an empty marker file into dir.
func (w *Workflow) WriteMarker(dir, marker string) error {
	return os.WriteFile(filepath.Join(dir, marker), nil, 0o644)
}

// HasMarker reports whether the marker file exists in dir.
func (w *Workflow) HasMarker(dir, marker string) bool {
	return fileExistsAt(filepath.Join(dir, marker))
}

// Reset removes the run-phase directories so the next task starts fresh.
// The browser profile and the rest of .concierge/ survive.
func (w *Workflow) Reset() error {
	dirs := []string{
		w.TaskDir(),
		w.PlanDir(),
		w.WorkDir(),
		w.OutputDir(),
		w.StateDir(),
	}
	for _, dir := range dirs {
		if err := os.RemoveAll(dir); err != nil {
			return err
		}
	}
	return nil
}

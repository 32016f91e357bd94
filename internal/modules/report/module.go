// Package report summarizes a finished run. The utility model condenses the
// execution transcript into REPORT.md for the user, and a marker records
// that reporting is done.
package report

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/conciergehq/concierge/internal/artifact"
	"github.com/conciergehq/concierge/internal/events"
	"github.com/conciergehq/concierge/internal/llm"
	"github.com/conciergehq/concierge/internal/module"
	"github.com/conciergehq/concierge/internal/modules/runtime"
)

const (
	moduleID      = "report"
	moduleVersion = "1.0.0"
)

const reportMaxTokens = 1500

// reportPrompt condenses the transcript into a user-facing summary.
const reportPrompt = `You will receive the transcript of an assistant run.
Write a concise report for the user in markdown with a "# Run Report"
heading. Cover what was accomplished, any recipes or products that were
reviewed, what could not be completed and why, and where the outputs were
left. Keep it under 300 words and do not invent details that are not in the
transcript.

Transcript:
{text}`

// Option customizes the report module.
type Option func(*ReportModule)

// WithClock overrides the timestamp source.
func WithClock(clock func() time.Time) Option {
	return func(m *ReportModule) {
		if clock != nil {
			m.now = clock
		}
	}
}

// ReportModule writes the closing summary of a run.
type ReportModule struct {
	*module.Base
	now func() time.Time
}

// Register installs the module factory.
func Register(reg *module.Registry) {
	if reg == nil {
		return
	}
	reg.MustRegister(moduleID, func(module.Config) (module.Module, error) {
		return New(), nil
	})
}

// New configures the module metadata and IO contracts.
func New(opts ...Option) *ReportModule {
	info := module.Info{
		ID:          moduleID,
		Name:        "Report",
		Description: "Summarizes the execution transcript into REPORT.md.",
		Version:     moduleVersion,
	}
	base := module.NewBase(info)
	base.SetInputs(artifact.TranscriptDoc, artifact.ExecutionCompleteMarker)
	base.SetOutputs(artifact.ReportDoc, artifact.ReportDoneMarker)
	mod := &ReportModule{
		Base: &base,
		now:  time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(mod)
		}
	}
	return mod
}

// Run generates REPORT.md from the transcript and stamps the done marker.
func (m *ReportModule) Run(ctx *module.ModuleContext) (module.Result, error) {
	if err := runtime.ValidateContext(moduleID, ctx); err != nil {
		return module.Result{Status: module.StatusFailed}, err
	}
	if missing, err := m.missingInput(ctx); err != nil {
		return module.Result{Status: module.StatusFailed}, err
	} else if missing != "" {
		return module.Result{Status: module.StatusNeedsInput, Message: fmt.Sprintf("waiting for %s", missing)}, nil
	}
	if complete, err := m.IsComplete(ctx); err != nil {
		return module.Result{Status: module.StatusFailed}, err
	} else if complete {
		return module.Result{Status: module.StatusNoOp, Message: "report already written"}, nil
	}
	if ctx.Chat == nil {
		return module.Result{Status: module.StatusFailed}, fmt.Errorf("%s: chat client unavailable", moduleID)
	}
	transcript, err := documentBody(ctx, artifact.TranscriptDoc)
	if err != nil {
		return module.Result{Status: module.StatusFailed}, err
	}
	summary, err := llm.SimpleCall(context.Background(), ctx.Chat, ctx.Config.UtilityModel(), reportPrompt, string(transcript), reportMaxTokens)
	if err != nil {
		return module.Result{Status: module.StatusFailed}, fmt.Errorf("%s: summarize transcript: %w", moduleID, err)
	}
	if summary == "" {
		return module.Result{Status: module.StatusFailed}, fmt.Errorf("%s: utility model returned an empty report", moduleID)
	}
	if err := os.MkdirAll(ctx.Workflow.OutputDir(), 0o755); err != nil {
		return module.Result{Status: module.StatusFailed}, fmt.Errorf("%s: create output dir: %w", moduleID, err)
	}
	meta := artifact.Metadata{
		ArtifactID: artifact.ReportDoc.ID,
		ModuleID:   moduleID,
		Version:    moduleVersion,
		Workflow:   ctx.Workflow.Dir(),
		CreatedAt:  m.now(),
	}
	for _, input := range m.Inputs() {
		meta.Inputs = append(meta.Inputs, input.ID)
	}
	if err := ctx.Artifacts.Write(artifact.ReportDoc, []byte(summary+"\n"), meta); err != nil {
		return module.Result{Status: module.StatusFailed}, fmt.Errorf("%s: write report: %w", moduleID, err)
	}
	if err := ctx.Artifacts.Write(artifact.ReportDoneMarker, nil, artifact.Metadata{}); err != nil {
		return module.Result{Status: module.StatusFailed}, fmt.Errorf("%s: stamp report done: %w", moduleID, err)
	}
	ctx.Notify(moduleID, events.TypeTaskEnd, map[string]string{"content": "Report ready."})
	return module.Result{Status: module.StatusCompleted, Message: "report written"}, nil
}

// IsComplete reports whether REPORT.md and its marker already exist.
func (m *ReportModule) IsComplete(ctx *module.ModuleContext) (bool, error) {
	if err := runtime.ValidateContext(moduleID, ctx); err != nil {
		return false, err
	}
	ready, err := runtime.EnsureDocument(ctx, moduleID, moduleVersion, artifact.ReportDoc, runtime.WithInputs(m.Inputs()...))
	if err != nil || !ready {
		return false, err
	}
	return runtime.EnsureMarker(ctx, moduleID, moduleVersion, artifact.ReportDoneMarker)
}

func (m *ReportModule) missingInput(ctx *module.ModuleContext) (string, error) {
	for _, ref := range m.Inputs() {
		result, err := ctx.Artifacts.Check(ref)
		if err != nil {
			return "", fmt.Errorf("%s: check %s: %w", moduleID, ref.ID, err)
		}
		if result.State != artifact.StateReady {
			return ref.Name, nil
		}
	}
	return "", nil
}

func documentBody(ctx *module.ModuleContext, ref artifact.ArtifactRef) ([]byte, error) {
	path := ref.Path(ctx.Workflow)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: read %s: %w", moduleID, ref.ID, err)
	}
	if _, body, err := artifact.ParseFrontMatter(data); err == nil {
		return body, nil
	}
	return data, nil
}

package runtime

import (
	"fmt"
	"os"
	"strings"

	"github.com/conciergehq/concierge/internal/artifact"
	"github.com/conciergehq/concierge/internal/module"
)

// MetadataOption adjusts the provenance stamp before it is written.
type MetadataOption func(*artifact.Metadata)

// WithInputs records which artifacts the output was derived from.
func WithInputs(refs ...artifact.ArtifactRef) MetadataOption {
	return func(meta *artifact.Metadata) {
		var ids []string
		for _, ref := range refs {
			if ref.ID != "" {
				ids = append(ids, ref.ID)
			}
		}
		if len(ids) > 0 {
			meta.Inputs = ids
		}
	}
}

// WithFingerprint stamps a content fingerprint for the artifact. Blank
// values are dropped so an empty fingerprint never overwrites a real one.
func WithFingerprint(ref artifact.ArtifactRef, value string) MetadataOption {
	return func(meta *artifact.Metadata) {
		if strings.TrimSpace(value) == "" {
			return
		}
		if meta.Notes == nil {
			meta.Notes = map[string]string{}
		}
		meta.Notes[module.FingerprintNoteKey(ref.ID)] = value
	}
}

// ValidateContext rejects contexts missing the pieces every module needs.
func ValidateContext(moduleID string, ctx *module.ModuleContext) error {
	switch {
	case ctx == nil:
		return fmt.Errorf("%s: nil module context", moduleID)
	case ctx.Config == nil:
		return fmt.Errorf("%s: module context has no config", moduleID)
	case ctx.Workflow == nil:
		return fmt.Errorf("%s: module context has no workflow", moduleID)
	case ctx.Artifacts == nil:
		return fmt.Errorf("%s: module context has no artifact store", moduleID)
	}
	return nil
}

// EnsureDocument reports whether the artifact exists with this module's
// stamp. A file without a stamp, or stamped by someone else, is restamped
// in place and reported not-ready so the caller's completion check reruns.
func EnsureDocument(ctx *module.ModuleContext, moduleID, version string, ref artifact.ArtifactRef, opts ...MetadataOption) (bool, error) {
	result, err := ctx.Artifacts.Check(ref)
	if err != nil && result.State == artifact.StateError {
		return false, checkFailure(moduleID, ref, result.Err)
	}
	switch result.State {
	case artifact.StateMissing:
		return false, nil
	case artifact.StateInvalid:
		return false, restamp(ctx, moduleID, version, ref, opts...)
	case artifact.StateReady:
		meta := result.Metadata
		if meta != nil && meta.ModuleID == moduleID && meta.Version == version {
			return true, nil
		}
		return false, restamp(ctx, moduleID, version, ref, opts...)
	default:
		return false, nil
	}
}

// EnsureDocuments applies EnsureDocument in order, stopping at the first
// artifact that is not ready.
func EnsureDocuments(ctx *module.ModuleContext, moduleID, version string, refs []artifact.ArtifactRef, opts ...MetadataOption) (bool, error) {
	for _, ref := range refs {
		ready, err := EnsureDocument(ctx, moduleID, version, ref, opts...)
		if err != nil || !ready {
			return false, err
		}
	}
	return true, nil
}

// EnsureMarker reports whether a marker file exists, recreating it when the
// path holds something that is not a marker.
func EnsureMarker(ctx *module.ModuleContext, moduleID, version string, ref artifact.ArtifactRef) (bool, error) {
	result, err := ctx.Artifacts.Check(ref)
	if err != nil && result.State == artifact.StateError {
		return false, checkFailure(moduleID, ref, result.Err)
	}
	switch result.State {
	case artifact.StateReady:
		return true, nil
	case artifact.StateInvalid:
		meta := artifact.Metadata{
			ArtifactID: ref.ID,
			ModuleID:   moduleID,
			Version:    version,
			Workflow:   ctx.Workflow.Dir(),
		}
		if err := ctx.Artifacts.Write(ref, nil, meta); err != nil {
			return false, fmt.Errorf("%s: rewrite %s: %w", moduleID, ref.ID, err)
		}
		return false, nil
	default:
		return false, nil
	}
}

// restamp rewrites the file with this module's provenance, keeping whatever
// body is already on disk.
func restamp(ctx *module.ModuleContext, moduleID, version string, ref artifact.ArtifactRef, opts ...MetadataOption) error {
	path := ref.Path(ctx.Workflow)
	if path == "" {
		return fmt.Errorf("%s: no path for %s", moduleID, ref.ID)
	}
	body, err := currentBody(path)
	if err != nil {
		return fmt.Errorf("%s: read %s: %w", moduleID, ref.ID, err)
	}
	meta := artifact.Metadata{
		ArtifactID: ref.ID,
		ModuleID:   moduleID,
		Version:    version,
		Workflow:   ctx.Workflow.Dir(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&meta)
		}
	}
	if err := ctx.Artifacts.Write(ref, body, meta); err != nil {
		return fmt.Errorf("%s: write %s: %w", moduleID, ref.ID, err)
	}
	return nil
}

// currentBody returns the file contents minus any existing stamp.
func currentBody(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if _, body, err := artifact.ParseFrontMatter(data); err == nil {
		return body, nil
	}
	return data, nil
}

func checkFailure(moduleID string, ref artifact.ArtifactRef, err error) error {
	if err != nil {
		return fmt.Errorf("%s: %s: %w", moduleID, ref.ID, err)
	}
	return fmt.Errorf("%s: check of %s failed for an unknown reason", moduleID, ref.ID)
}

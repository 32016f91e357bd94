package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/conciergehq/concierge/internal/workflow"
)

// Store reads and writes artifacts inside a run's .concierge tree. Every
// write stamps provenance metadata so later runs can tell which module
// produced a file and whether it is still current.
type Store struct {
	workflow *workflow.Workflow
	now      func() time.Time
}

// StoreOption customizes a Store during construction.
type StoreOption func(*Store)

// WithClock overrides the metadata timestamp clock, mainly for tests.
func WithClock(clock func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = clock
	}
}

func NewStore(wf *workflow.Workflow, opts ...StoreOption) *Store {
	store := &Store{workflow: wf, now: time.Now}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Write persists the artifact in its kind-specific shape: documents get
// YAML frontmatter, JSON files get an embedded _concierge block, markers
// are touched empty, directories are created.
func (s *Store) Write(ref ArtifactRef, body []byte, meta Metadata) error {
	path := ref.Path(s.workflow)
	if path == "" {
		return fmt.Errorf("artifact: no path for %s", ref.ID)
	}
	switch ref.Kind {
	case KindMarker:
		return touch(path)
	case KindDirectory:
		return os.MkdirAll(path, 0o755)
	case KindJSON:
		return s.writeJSON(path, ref, body, meta)
	default:
		return s.writeDocument(path, ref, body, meta)
	}
}

func (s *Store) writeDocument(path string, ref ArtifactRef, body []byte, meta Metadata) error {
	stamped := meta.WithDefaults(ref, s.now())
	if err := stamped.ValidateFor(ref); err != nil {
		return err
	}
	content, err := WriteFrontMatter(stamped, body)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, content, 0o644)
}

func (s *Store) writeJSON(path string, ref ArtifactRef, body []byte, meta Metadata) error {
	if len(body) == 0 {
		body = []byte("{}")
	}
	stamped := meta.WithDefaults(ref, s.now())
	if err := stamped.ValidateFor(ref); err != nil {
		return err
	}
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return fmt.Errorf("artifact: %s body is not valid json: %w", ref.ID, err)
	}
	payload["_concierge"] = metadataPayload(stamped)
	encoded, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("artifact: encode %s: %w", ref.ID, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, encoded, 0o644)
}

// Check stats the artifact and, for documents and JSON files, decodes its
// provenance metadata. A file owned by a different artifact ID counts as
// invalid, not ready.
func (s *Store) Check(ref ArtifactRef) (CheckResult, error) {
	path := ref.Path(s.workflow)
	result := CheckResult{Ref: ref, Path: path}
	if path == "" {
		result.State = StateError
		result.Err = fmt.Errorf("artifact: no path for %s", ref.ID)
		return result, result.Err
	}

	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		result.State = StateMissing
		return result, nil
	case err != nil:
		result.State = StateError
		result.Err = err
		return result, err
	}

	switch ref.Kind {
	case KindMarker:
		if info.IsDir() {
			return result.invalid(fmt.Errorf("artifact: %s should be a marker file, found a directory", ref.ID))
		}
		result.State = StateReady
		return result, nil
	case KindDirectory:
		if !info.IsDir() {
			return result.invalid(fmt.Errorf("artifact: %s should be a directory", ref.ID))
		}
		result.State = StateReady
		return result, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		result.State = StateError
		result.Err = err
		return result, err
	}
	var meta Metadata
	if ref.Kind == KindJSON {
		meta, err = decodeJSONMetadata(data)
	} else {
		meta, _, err = ParseFrontMatter(data)
	}
	if err != nil {
		return result.invalid(err)
	}
	if meta.ArtifactID != ref.ID {
		return result.invalid(fmt.Errorf("artifact: %s is stamped as %s", ref.ID, meta.ArtifactID))
	}
	result.State = StateReady
	result.Metadata = &meta
	return result, nil
}

func (r CheckResult) invalid(err error) (CheckResult, error) {
	r.State = StateInvalid
	r.Err = err
	return r, err
}

func touch(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, nil, 0o644)
}

func decodeJSONMetadata(data []byte) (Metadata, error) {
	var payload struct {
		Concierge map[string]any `json:"_concierge"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return Metadata{}, fmt.Errorf("artifact: parse json: %w", err)
	}
	if payload.Concierge == nil {
		return Metadata{}, fmt.Errorf("artifact: no _concierge block")
	}
	return metadataFromPayload(payload.Concierge)
}

func metadataPayload(meta Metadata) map[string]any {
	payload := map[string]any{
		"artifact": meta.ArtifactID,
		"module":   meta.ModuleID,
		"version":  meta.Version,
		"workflow": meta.Workflow,
		"inputs":   append([]string{}, meta.Inputs...),
		"created":  meta.CreatedAt.UTC().Format(timeLayout),
	}
	if meta.Checksum != "" {
		payload["checksum"] = meta.Checksum
	}
	if len(meta.Notes) > 0 {
		payload["notes"] = cloneNotes(meta.Notes)
	}
	return payload
}

func metadataFromPayload(values map[string]any) (Metadata, error) {
	meta := Metadata{
		ArtifactID: asString(values["artifact"]),
		ModuleID:   asString(values["module"]),
		Version:    asString(values["version"]),
		Workflow:   asString(values["workflow"]),
		Inputs:     asStringSlice(values["inputs"]),
		Checksum:   asString(values["checksum"]),
		Notes:      asStringMap(values["notes"]),
	}
	if meta.ArtifactID == "" || meta.ModuleID == "" || meta.Version == "" {
		return Metadata{}, fmt.Errorf("artifact: incomplete _concierge block")
	}
	created, err := parseTime(asString(values["created"]))
	if err != nil {
		return Metadata{}, err
	}
	meta.CreatedAt = created
	return meta, nil
}

func asString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return ""
	}
}

func asStringSlice(value any) []string {
	items, ok := value.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := asString(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func asStringMap(value any) map[string]string {
	raw, ok := value.(map[string]any)
	if !ok || len(raw) == 0 {
		return nil
	}
	out := make(map[string]string, len(raw))
	for key, item := range raw {
		if s := asString(item); s != "" {
			out[key] = s
		}
	}
	return out
}

package artifact

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	// ErrMissingFrontMatter means the document does not open with a YAML fence.
	ErrMissingFrontMatter = errors.New("artifact: missing frontmatter")
	// ErrMalformedFrontMatter means the fence exists but cannot be decoded.
	ErrMalformedFrontMatter = errors.New("artifact: malformed frontmatter")
)

const (
	openFence  = "---\n"
	closeFence = "\n---\n"
	timeLayout = "2006-01-02T15:04:05Z07:00"
)

// ParseFrontMatter splits a stamped document into its provenance metadata
// and body. Windows line endings are tolerated.
func ParseFrontMatter(content []byte) (Metadata, []byte, error) {
	doc := bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(doc, []byte(openFence)) {
		return Metadata{}, nil, ErrMissingFrontMatter
	}
	doc = doc[len(openFence):]
	end := bytes.Index(doc, []byte(closeFence))
	if end < 0 {
		return Metadata{}, nil, ErrMalformedFrontMatter
	}
	var header stampHeader
	if err := yaml.Unmarshal(doc[:end], &header); err != nil {
		return Metadata{}, nil, fmt.Errorf("artifact: parse frontmatter: %w", err)
	}
	meta, err := header.metadata()
	if err != nil {
		return Metadata{}, nil, err
	}
	return meta, doc[end+len(closeFence):], nil
}

// WriteFrontMatter renders the metadata stamp above the body.
func WriteFrontMatter(meta Metadata, body []byte) ([]byte, error) {
	if meta.ArtifactID == "" {
		return nil, fmt.Errorf("artifact: frontmatter needs an artifact id")
	}
	header := newStampHeader(meta)
	encoded, err := yaml.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("artifact: encode frontmatter: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString(openFence)
	buf.Write(bytes.TrimRight(encoded, "\n"))
	buf.WriteString(closeFence)
	buf.WriteString("\n")
	buf.Write(body)
	return buf.Bytes(), nil
}

// stampHeader is the YAML shape of the provenance stamp. Everything lives
// under a single "concierge" key so user-authored frontmatter fields never
// collide with ours.
type stampHeader struct {
	Concierge stampFields `yaml:"concierge"`
}

type stampFields struct {
	Artifact string            `yaml:"artifact"`
	Module   string            `yaml:"module"`
	Version  string            `yaml:"version"`
	Workflow string            `yaml:"workflow,omitempty"`
	Inputs   []string          `yaml:"inputs,omitempty"`
	Created  string            `yaml:"created"`
	Checksum string            `yaml:"checksum,omitempty"`
	Notes    map[string]string `yaml:"notes,omitempty"`
}

func newStampHeader(meta Metadata) stampHeader {
	return stampHeader{Concierge: stampFields{
		Artifact: meta.ArtifactID,
		Module:   meta.ModuleID,
		Version:  meta.Version,
		Workflow: meta.Workflow,
		Inputs:   append([]string{}, meta.Inputs...),
		Created:  meta.CreatedAt.UTC().Format(timeLayout),
		Checksum: meta.Checksum,
		Notes:    cloneNotes(meta.Notes),
	}}
}

func (h stampHeader) metadata() (Metadata, error) {
	f := h.Concierge
	if f.Artifact == "" || f.Module == "" || f.Version == "" {
		return Metadata{}, ErrMalformedFrontMatter
	}
	created, err := parseTime(f.Created)
	if err != nil {
		return Metadata{}, fmt.Errorf("artifact: parse created timestamp: %w", err)
	}
	return Metadata{
		ArtifactID: f.Artifact,
		ModuleID:   f.Module,
		Version:    f.Version,
		Workflow:   f.Workflow,
		Inputs:     append([]string{}, f.Inputs...),
		CreatedAt:  created,
		Checksum:   f.Checksum,
		Notes:      cloneNotes(f.Notes),
	}, nil
}

func cloneNotes(notes map[string]string) map[string]string {
	if len(notes) == 0 {
		return nil
	}
	out := make(map[string]string, len(notes))
	for k, v := range notes {
		out[k] = v
	}
	return out
}

func parseTime(value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, fmt.Errorf("artifact: missing created timestamp")
	}
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
